package builder

import (
	"fmt"
	"strconv"
	"time"

	"github.com/dunamismax/normalflow/internal/domain"
)

const (
	CopyLabel        = "Run"
	CopyDoneLabel    = "Go!"
	CopyRevertDelay  = 1500 * time.Millisecond
	ProvisionLabel   = "Download"
	ProvisionBusy    = "⏳ Downloading..."
	ProvisionDone    = "✅ Downloaded"
	ProvisionFailed  = "❌ Error"
	ProvisionRetry   = "Update"
	ProvisionBackoff = 3 * time.Second

	provisionStartMessage = "Downloading BumpToNormalMap repository..."
)

// Menu identifies which choice menu is open. At most one is open at a time.
type Menu int

const (
	MenuNone Menu = iota
	MenuStrength
	MenuFormat
)

// Action tells the host what to start after a click was handled.
type Action int

const (
	ActionNone Action = iota
	ActionStartProvision
)

type Clipboard interface {
	WriteText(text string) error
}

// Controller owns the state of one builder session. It is not safe for
// concurrent use; the host drives it from a single event loop.
type Controller struct {
	tool      string
	clipboard Clipboard
	now       func() time.Time

	selection domain.Selection
	openMenu  Menu

	copyLabel    string
	copyRevertAt time.Time

	provisionLabel    string
	provisionDisabled bool
	provisionInFlight bool
	provisionResetAt  time.Time

	notice          domain.StatusNotice
	noticeExpiresAt time.Time
}

func NewController(tool string, clipboard Clipboard, now func() time.Time) *Controller {
	if tool == "" {
		tool = domain.DefaultTool
	}
	if now == nil {
		now = time.Now
	}
	return &Controller{
		tool:           tool,
		clipboard:      clipboard,
		now:            now,
		selection:      domain.NewSelection(),
		copyLabel:      CopyLabel,
		provisionLabel: ProvisionLabel,
	}
}

func (c *Controller) Selection() domain.Selection { return c.selection }
func (c *Controller) OpenMenu() Menu                { return c.openMenu }
func (c *Controller) CopyEnabled() bool             { return c.selection.HasFile() }
func (c *Controller) CopyLabel() string             { return c.copyLabel }
func (c *Controller) ProvisionLabel() string        { return c.provisionLabel }
func (c *Controller) ProvisionEnabled() bool        { return !c.provisionDisabled }
func (c *Controller) Notice() domain.StatusNotice   { return c.notice }

func (c *Controller) StrengthLabel() string {
	return fmt.Sprintf("💪 %d", c.selection.Strength)
}

func (c *Controller) FormatLabel() string {
	return fmt.Sprintf("📁 %s", c.selection.Format)
}

// Command is the text the copy control would place on the clipboard, or ""
// while no file has been dropped.
func (c *Controller) Command() string {
	if !c.selection.HasFile() {
		return ""
	}
	return c.selection.Command(c.tool)
}

// Drop accepts a dropped file list. Only the first file counts; an empty
// list leaves the session untouched.
func (c *Controller) Drop(files []DroppedFile) {
	if len(files) == 0 {
		return
	}
	ref := files[0].Reference()
	if ref == "" {
		return
	}
	c.selection.FileReference = ref
}

// Dispatch runs the target's handler and then the document handler, unless
// the target stopped propagation.
func (c *Controller) Dispatch(ev *ClickEvent) Action {
	action := c.handleTarget(ev)
	if !ev.propagationStopped {
		c.closeMenus()
	}
	return action
}

func (c *Controller) handleTarget(ev *ClickEvent) Action {
	switch ev.Target {
	case TargetStrengthButton:
		ev.StopPropagation()
		c.toggleMenu(MenuStrength)
	case TargetFormatButton:
		ev.StopPropagation()
		c.toggleMenu(MenuFormat)
	case TargetStrengthOption:
		if v, err := strconv.Atoi(ev.Value); err == nil && domain.IsStrengthChoice(v) {
			c.selection.Strength = v
			c.closeMenu(MenuStrength)
		}
	case TargetFormatOption:
		if domain.IsFormatChoice(ev.Value) {
			c.selection.Format = ev.Value
			c.closeMenu(MenuFormat)
		}
	case TargetCopyButton:
		c.copyCommand()
	case TargetProvisionButton:
		if c.beginProvision() {
			return ActionStartProvision
		}
	}
	return ActionNone
}

func (c *Controller) toggleMenu(m Menu) {
	if c.openMenu == m {
		c.openMenu = MenuNone
		return
	}
	c.openMenu = m
}

func (c *Controller) closeMenu(m Menu) {
	if c.openMenu == m {
		c.openMenu = MenuNone
	}
}

func (c *Controller) closeMenus() {
	c.openMenu = MenuNone
}

func (c *Controller) copyCommand() {
	if !c.CopyEnabled() {
		return
	}
	cmd := c.selection.Command(c.tool)
	if c.clipboard != nil {
		if err := c.clipboard.WriteText(cmd); err != nil {
			c.showNotice(fmt.Sprintf("Clipboard unavailable: %v", err), domain.NoticeError)
			return
		}
	}
	c.copyLabel = CopyDoneLabel
	c.copyRevertAt = c.now().Add(CopyRevertDelay)
}

func (c *Controller) beginProvision() bool {
	if c.provisionDisabled || c.provisionInFlight {
		return false
	}
	c.provisionInFlight = true
	c.provisionDisabled = true
	c.provisionResetAt = time.Time{}
	c.provisionLabel = ProvisionBusy
	c.showNotice(provisionStartMessage, domain.NoticeInfo)
	return true
}

// CompleteProvision applies the outcome of the request started by
// ActionStartProvision.
func (c *Controller) CompleteProvision(out Outcome) {
	if !c.provisionInFlight {
		return
	}
	c.provisionInFlight = false

	switch out.Kind {
	case OutcomeSuccess:
		c.showNotice(out.Result.Message, domain.NoticeSuccess)
		c.provisionLabel = ProvisionDone
	case OutcomeFailure:
		c.showNotice(fmt.Sprintf("Error: %s", out.ErrorText()), domain.NoticeError)
		c.failProvision()
	case OutcomeTransportFailure:
		c.showNotice(fmt.Sprintf("Network error: %s", out.ErrorText()), domain.NoticeError)
		c.failProvision()
	}
}

func (c *Controller) failProvision() {
	c.provisionLabel = ProvisionFailed
	c.provisionResetAt = c.now().Add(ProvisionBackoff)
}

func (c *Controller) showNotice(message string, kind domain.NoticeKind) {
	c.notice = domain.StatusNotice{Message: message, Kind: kind}
	c.noticeExpiresAt = time.Time{}
	if c.notice.Expires() {
		c.noticeExpiresAt = c.now().Add(domain.NoticeLifetime)
	}
}

// Tick applies every delayed transition due at now.
func (c *Controller) Tick(now time.Time) {
	if !c.noticeExpiresAt.IsZero() && !now.Before(c.noticeExpiresAt) {
		c.notice = domain.StatusNotice{}
		c.noticeExpiresAt = time.Time{}
	}
	if !c.copyRevertAt.IsZero() && !now.Before(c.copyRevertAt) {
		c.copyLabel = CopyLabel
		c.copyRevertAt = time.Time{}
	}
	if !c.provisionResetAt.IsZero() && !now.Before(c.provisionResetAt) {
		c.provisionLabel = ProvisionRetry
		c.provisionDisabled = false
		c.provisionResetAt = time.Time{}
	}
}

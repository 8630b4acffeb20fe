// Package tui hosts the command builder in a terminal. Dragging a file onto
// the terminal pastes its path, which the model treats as a drop.
package tui

import (
	"context"
	"io"
	"log"
	"slices"
	"strconv"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/dunamismax/normalflow/internal/builder"
	"github.com/dunamismax/normalflow/internal/domain"
	"github.com/dunamismax/normalflow/internal/imageinfo"
)

const tickInterval = 100 * time.Millisecond

type provisionClient interface {
	Provision(ctx context.Context) builder.Outcome
}

type Model struct {
	ctrl   *builder.Controller
	client provisionClient
	logger *log.Logger

	// cursor is the highlighted option of the open menu.
	cursor   int
	fileInfo string
	width    int
}

type tickMsg time.Time

type provisionDoneMsg builder.Outcome

type probeMsg struct {
	ref  string
	info string
}

func New(ctrl *builder.Controller, client provisionClient, logger *log.Logger) Model {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return Model{
		ctrl:   ctrl,
		client: client,
		logger: logger,
		width:  80,
	}
}

func (m Model) Init() tea.Cmd {
	return tick()
}

func tick() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case tickMsg:
		m.ctrl.Tick(time.Time(msg))
		return m, tick()

	case provisionDoneMsg:
		out := builder.Outcome(msg)
		if out.Kind != builder.OutcomeSuccess {
			m.logger.Printf("provision failed kind=%d err=%s", out.Kind, out.ErrorText())
		}
		m.ctrl.CompleteProvision(out)
		return m, nil

	case probeMsg:
		if msg.ref == m.ctrl.Selection().FileReference {
			m.fileInfo = msg.info
		}
		return m, nil

	case tea.KeyMsg:
		if msg.Paste {
			return m.drop(string(msg.Runes))
		}
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) drop(text string) (tea.Model, tea.Cmd) {
	before := m.ctrl.Selection().FileReference
	m.ctrl.Drop(builder.ParseDrop(text))
	ref := m.ctrl.Selection().FileReference
	if ref == before {
		return m, nil
	}
	m.fileInfo = ""
	return m, probe(ref)
}

func probe(ref string) tea.Cmd {
	return func() tea.Msg {
		info, err := imageinfo.Probe(ref)
		if err != nil {
			return probeMsg{ref: ref}
		}
		return probeMsg{ref: ref, info: info.String()}
	}
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		return m, tea.Quit
	case "s":
		m.ctrl.Dispatch(builder.Click(builder.TargetStrengthButton))
		m.cursor = max(0, slices.Index(domain.StrengthChoices, m.ctrl.Selection().Strength))
	case "f":
		m.ctrl.Dispatch(builder.Click(builder.TargetFormatButton))
		m.cursor = max(0, slices.Index(domain.FormatChoices, m.ctrl.Selection().Format))
	case "up", "k":
		if m.ctrl.OpenMenu() != builder.MenuNone && m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if n := m.menuLen(); n > 0 && m.cursor < n-1 {
			m.cursor++
		}
	case "enter":
		m.chooseHighlighted()
	case "esc":
		m.ctrl.Dispatch(builder.Click(builder.TargetDocument))
	case "c":
		m.ctrl.Dispatch(builder.Click(builder.TargetCopyButton))
	case "d":
		if m.ctrl.Dispatch(builder.Click(builder.TargetProvisionButton)) == builder.ActionStartProvision {
			return m, m.provision()
		}
	}
	return m, nil
}

func (m Model) menuLen() int {
	switch m.ctrl.OpenMenu() {
	case builder.MenuStrength:
		return len(domain.StrengthChoices)
	case builder.MenuFormat:
		return len(domain.FormatChoices)
	default:
		return 0
	}
}

func (m Model) chooseHighlighted() {
	switch m.ctrl.OpenMenu() {
	case builder.MenuStrength:
		value := strconv.Itoa(domain.StrengthChoices[m.cursor])
		m.ctrl.Dispatch(builder.ClickOption(builder.TargetStrengthOption, value))
	case builder.MenuFormat:
		m.ctrl.Dispatch(builder.ClickOption(builder.TargetFormatOption, domain.FormatChoices[m.cursor]))
	}
}

func (m Model) provision() tea.Cmd {
	client := m.client
	return func() tea.Msg {
		return provisionDoneMsg(client.Provision(context.Background()))
	}
}

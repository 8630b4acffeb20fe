package tui

import (
	"context"
	"errors"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/dunamismax/normalflow/internal/builder"
	"github.com/dunamismax/normalflow/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type MockClipboard struct {
	Text string
}

func (c *MockClipboard) WriteText(text string) error {
	c.Text = text
	return nil
}

type MockProvisionClient struct {
	Outcome builder.Outcome
	Calls   int
}

func (c *MockProvisionClient) Provision(_ context.Context) builder.Outcome {
	c.Calls++
	return c.Outcome
}

func createTestModel(clip *MockClipboard, client *MockProvisionClient) Model {
	ctrl := builder.NewController(domain.DefaultTool, clip, time.Now)
	return New(ctrl, client, nil)
}

func keyRune(r rune) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}}
}

func paste(text string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(text), Paste: true}
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	out, ok := next.(Model)
	require.True(t, ok)
	return out, cmd
}

func TestInit_ReturnsTick(t *testing.T) {
	model := createTestModel(&MockClipboard{}, &MockProvisionClient{})
	assert.NotNil(t, model.Init())
}

func TestUpdate_PasteDropsFile(t *testing.T) {
	model := createTestModel(&MockClipboard{}, &MockProvisionClient{})

	model, cmd := update(t, model, paste("/tmp/a.png"))

	assert.Equal(t, "/tmp/a.png", model.ctrl.Selection().FileReference)
	assert.True(t, model.ctrl.CopyEnabled())
	assert.NotNil(t, cmd, "expected an image probe")
}

func TestUpdate_EmptyPasteIsNoOp(t *testing.T) {
	model := createTestModel(&MockClipboard{}, &MockProvisionClient{})
	model, _ = update(t, model, paste("/tmp/a.png"))

	model, cmd := update(t, model, paste("   "))

	assert.Equal(t, "/tmp/a.png", model.ctrl.Selection().FileReference)
	assert.Nil(t, cmd)
}

func TestUpdate_StrengthMenuScenario(t *testing.T) {
	clip := &MockClipboard{}
	model := createTestModel(clip, &MockProvisionClient{})

	model, _ = update(t, model, keyRune('s'))
	assert.Equal(t, builder.MenuStrength, model.ctrl.OpenMenu())
	assert.Equal(t, 1, model.cursor, "cursor starts on the current strength")

	model, _ = update(t, model, tea.KeyMsg{Type: tea.KeyDown})
	model, _ = update(t, model, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Equal(t, 3, model.ctrl.Selection().Strength)
	assert.Equal(t, builder.MenuNone, model.ctrl.OpenMenu())

	model, _ = update(t, model, paste("/tmp/a.png"))
	model, _ = update(t, model, keyRune('f'))
	model, _ = update(t, model, tea.KeyMsg{Type: tea.KeyDown})
	model, _ = update(t, model, tea.KeyMsg{Type: tea.KeyEnter})
	model, _ = update(t, model, keyRune('c'))

	assert.Equal(t, domain.DefaultTool+" /tmp/a.png 3 jpg", clip.Text)
	assert.Equal(t, builder.CopyDoneLabel, model.ctrl.CopyLabel())
}

func TestUpdate_EscClosesMenus(t *testing.T) {
	model := createTestModel(&MockClipboard{}, &MockProvisionClient{})
	model, _ = update(t, model, keyRune('f'))
	require.Equal(t, builder.MenuFormat, model.ctrl.OpenMenu())

	model, _ = update(t, model, tea.KeyMsg{Type: tea.KeyEsc})
	assert.Equal(t, builder.MenuNone, model.ctrl.OpenMenu())
}

func TestUpdate_MenuSwitchKeepsOneOpen(t *testing.T) {
	model := createTestModel(&MockClipboard{}, &MockProvisionClient{})
	model, _ = update(t, model, keyRune('s'))
	model, _ = update(t, model, keyRune('f'))
	assert.Equal(t, builder.MenuFormat, model.ctrl.OpenMenu())
}

func TestUpdate_ProvisionRoundTrip(t *testing.T) {
	client := &MockProvisionClient{Outcome: builder.Outcome{
		Kind:   builder.OutcomeSuccess,
		Result: domain.ProvisionResult{Success: true, Message: "Repository already exists! Output folder ready."},
	}}
	model := createTestModel(&MockClipboard{}, client)

	model, cmd := update(t, model, keyRune('d'))
	require.NotNil(t, cmd)
	assert.False(t, model.ctrl.ProvisionEnabled())

	model, second := update(t, model, keyRune('d'))
	assert.Nil(t, second, "duplicate trigger must not start another request")

	model, _ = update(t, model, cmd())
	assert.Equal(t, 1, client.Calls)
	assert.Equal(t, builder.ProvisionDone, model.ctrl.ProvisionLabel())
	assert.Equal(t, domain.NoticeSuccess, model.ctrl.Notice().Kind)
}

func TestUpdate_ProvisionNetworkError(t *testing.T) {
	client := &MockProvisionClient{Outcome: builder.Outcome{
		Kind: builder.OutcomeTransportFailure,
		Err:  errors.New("connection refused"),
	}}
	model := createTestModel(&MockClipboard{}, client)

	model, cmd := update(t, model, keyRune('d'))
	require.NotNil(t, cmd)
	model, _ = update(t, model, cmd())

	assert.Equal(t, "Network error: connection refused", model.ctrl.Notice().Message)

	model, _ = update(t, model, tickMsg(time.Now().Add(builder.ProvisionBackoff+time.Second)))
	assert.True(t, model.ctrl.ProvisionEnabled())
	assert.Equal(t, builder.ProvisionRetry, model.ctrl.ProvisionLabel())
}

func TestUpdate_ProbeShowsImageInfo(t *testing.T) {
	path := filepath.Join(t.TempDir(), "height.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, image.NewGray(image.Rect(0, 0, 16, 8))))
	require.NoError(t, f.Close())

	model := createTestModel(&MockClipboard{}, &MockProvisionClient{})
	model, cmd := update(t, model, paste(path))
	require.NotNil(t, cmd)

	model, _ = update(t, model, cmd())
	assert.Equal(t, "16x8 png", model.fileInfo)
	assert.Contains(t, model.View(), "16x8 png")
}

func TestUpdate_StaleProbeIgnored(t *testing.T) {
	model := createTestModel(&MockClipboard{}, &MockProvisionClient{})
	model, _ = update(t, model, paste("/tmp/b.png"))

	model, _ = update(t, model, probeMsg{ref: "/tmp/a.png", info: "1x1 png"})
	assert.Empty(t, model.fileInfo)
}

func TestUpdate_QuitKey(t *testing.T) {
	model := createTestModel(&MockClipboard{}, &MockProvisionClient{})
	_, cmd := update(t, model, keyRune('q'))
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}

func TestView_ShowsCommandAndNotice(t *testing.T) {
	model := createTestModel(&MockClipboard{}, &MockProvisionClient{})
	assert.Contains(t, model.View(), "Drag an image file")

	model, _ = update(t, model, paste("/tmp/a.png"))
	model, _ = update(t, model, keyRune('d'))

	view := model.View()
	assert.Contains(t, view, domain.DefaultTool+" /tmp/a.png 2 png")
	assert.Contains(t, view, "a_normal.png")
	assert.Contains(t, view, "Downloading BumpToNormalMap repository...")
}

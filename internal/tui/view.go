package tui

import (
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dunamismax/normalflow/internal/builder"
	"github.com/dunamismax/normalflow/internal/domain"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#2c3e50")).MarginBottom(1)

	dropStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#3498db")).
			Padding(1, 2)

	buttonStyle = lipgloss.NewStyle().
			Padding(0, 2).
			Foreground(lipgloss.Color("#ffffff")).
			Background(lipgloss.Color("#27ae60"))

	disabledStyle = buttonStyle.
			Background(lipgloss.Color("#7f8c8d"))

	menuStyle     = lipgloss.NewStyle().Border(lipgloss.NormalBorder()).Padding(0, 1)
	cursorStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#3498db"))
	mutedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#7f8c8d"))
	commandStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#f1c40f"))
	infoStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#3498db"))
	successStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#27ae60"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#e74c3c"))
	helpKeysStyle = mutedStyle.MarginTop(1)
)

func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Normal Map Command Builder"))
	b.WriteString("\n")

	sel := m.ctrl.Selection()
	drop := mutedStyle.Render("Drag an image file onto this window")
	if sel.HasFile() {
		drop = sel.FileReference
		if m.fileInfo != "" {
			drop += "\n" + mutedStyle.Render(m.fileInfo)
		}
	}
	b.WriteString(dropStyle.Width(max(20, m.width-4)).Render(drop))
	b.WriteString("\n\n")

	controls := lipgloss.JoinHorizontal(lipgloss.Top,
		m.renderChoice(m.ctrl.StrengthLabel(), builder.MenuStrength, strengthOptions()),
		"  ",
		m.renderChoice(m.ctrl.FormatLabel(), builder.MenuFormat, domain.FormatChoices),
		"  ",
		renderButton(m.ctrl.CopyLabel(), m.ctrl.CopyEnabled()),
		"  ",
		renderButton(m.ctrl.ProvisionLabel(), m.ctrl.ProvisionEnabled()),
	)
	b.WriteString(controls)
	b.WriteString("\n\n")

	if cmd := m.ctrl.Command(); cmd != "" {
		b.WriteString(commandStyle.Render(cmd))
		b.WriteString("\n")
		b.WriteString(mutedStyle.Render("output: " + sel.ExpectedOutput()))
		b.WriteString("\n")
	}

	if notice := m.ctrl.Notice(); !notice.Empty() {
		b.WriteString("\n")
		b.WriteString(noticeStyle(notice.Kind).Render(notice.Message))
		b.WriteString("\n")
	}

	b.WriteString(helpKeysStyle.Render("s strength • f format • ↑/↓ enter choose • esc close • c copy • d download repo • q quit"))
	b.WriteString("\n")
	return b.String()
}

func (m Model) renderChoice(label string, menu builder.Menu, options []string) string {
	trigger := buttonStyle.Render(label)
	if m.ctrl.OpenMenu() != menu {
		return trigger
	}

	lines := make([]string, len(options))
	for i, opt := range options {
		if i == m.cursor {
			lines[i] = cursorStyle.Render("> " + opt)
			continue
		}
		lines[i] = "  " + opt
	}
	return lipgloss.JoinVertical(lipgloss.Left, trigger, menuStyle.Render(strings.Join(lines, "\n")))
}

func renderButton(label string, enabled bool) string {
	if !enabled {
		return disabledStyle.Render(label)
	}
	return buttonStyle.Render(label)
}

func noticeStyle(kind domain.NoticeKind) lipgloss.Style {
	switch kind {
	case domain.NoticeSuccess:
		return successStyle
	case domain.NoticeError:
		return errorStyle
	default:
		return infoStyle
	}
}

func strengthOptions() []string {
	out := make([]string, len(domain.StrengthChoices))
	for i, v := range domain.StrengthChoices {
		out[i] = strconv.Itoa(v)
	}
	return out
}

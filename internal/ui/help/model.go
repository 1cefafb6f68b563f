package help

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/phoenix-warmup/internal/keys"
	"github.com/nhle/phoenix-warmup/internal/ramp"
	"github.com/nhle/phoenix-warmup/internal/theme"
)

// Model is the help overlay view.
type Model struct {
	keys   *keys.KeyMap
	help   help.Model
	width  int
	height int
}

// New creates a new help view model.
func New(k *keys.KeyMap, width, height int) Model {
	h := help.New()
	h.Width = width
	return Model{
		keys:   k,
		help:   h,
		width:  width,
		height: height,
	}
}

// Init returns the initial command.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages for the help view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	return m, nil
}

// View renders the help overlay: key bindings followed by the ramp table.
func (m Model) View() string {
	title := theme.SectionTitleStyle.MarginBottom(1).Render("Keyboard Shortcuts")

	m.help.Width = m.width - 4
	m.help.ShowAll = true
	helpText := m.help.View(m.keys)

	content := lipgloss.JoinVertical(lipgloss.Left,
		title, helpText, "",
		theme.SectionTitleStyle.Render("Warm-up Stages"),
		stageTable(),
	)

	return theme.DetailPanelStyle.
		Width(max(20, m.width-4)).
		Height(max(5, m.height-4)).
		Render(content)
}

func stageTable() string {
	var b strings.Builder
	for s := 1; s <= ramp.MaxStage; s++ {
		iv := ramp.SendInterval(s)
		fmt.Fprintf(&b, "%s  %2d emails/day, one every %d to %d min\n",
			theme.StageStyle(s).Render(fmt.Sprintf("Stage %d", s)),
			ramp.DailyLimit(s), iv.Min/60, iv.Max/60)
	}
	b.WriteString(theme.HelpStyle.Render("Inboxes move up a stage after meeting their quota at the daily reset."))
	return b.String()
}

// SetSize updates the help view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.help.Width = width - 4
}

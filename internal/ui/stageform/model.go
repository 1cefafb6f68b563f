// Package stageform picks a new ramp stage for an inbox.
package stageform

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/phoenix-warmup/internal/ramp"
	"github.com/nhle/phoenix-warmup/internal/theme"
)

// ChosenMsg carries the stage picked for Email.
type ChosenMsg struct {
	Email string
	Stage int
}

// CancelMsg is sent when the picker is dismissed.
type CancelMsg struct{}

// Model is the stage picker.
type Model struct {
	email string
	stage *int
	form  *huh.Form
	width int
}

// New creates an idle picker.
func New(width int) Model {
	return Model{stage: new(int), width: width}
}

// Options lists every stage with its daily quota.
func Options() []huh.Option[int] {
	opts := make([]huh.Option[int], 0, ramp.MaxStage)
	for s := 1; s <= ramp.MaxStage; s++ {
		iv := ramp.SendInterval(s)
		label := fmt.Sprintf("Stage %d  %d/day, every %d to %d min", s, ramp.DailyLimit(s), iv.Min/60, iv.Max/60)
		opts = append(opts, huh.NewOption(label, s))
	}
	return opts
}

// Start opens the picker for email, preselecting current.
func (m *Model) Start(email string, current int) tea.Cmd {
	m.email = email
	*m.stage = ramp.ClampStage(current)
	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[int]().
				Title("Stage for " + email).
				Options(Options()...).
				Value(m.stage),
		),
	).WithWidth(min(max(m.width-4, 40), 80))
	return m.form.Init()
}

// Update handles messages for the picker.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if m.form == nil {
		return m, nil
	}

	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	switch m.form.State {
	case huh.StateCompleted:
		chosen := ChosenMsg{Email: m.email, Stage: *m.stage}
		return m, func() tea.Msg { return chosen }
	case huh.StateAborted:
		return m, func() tea.Msg { return CancelMsg{} }
	}
	return m, cmd
}

// View renders the picker.
func (m Model) View() string {
	if m.form == nil {
		return ""
	}
	title := theme.SectionTitleStyle.MarginBottom(1).Render("Edit Stage")
	return lipgloss.NewStyle().Padding(1, 2).Render(title + "\n" + m.form.View())
}

// SetSize updates the picker width.
func (m *Model) SetSize(width, _ int) {
	m.width = width
}

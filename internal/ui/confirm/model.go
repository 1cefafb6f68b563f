// Package confirm is a yes/no dialog used before destructive actions.
package confirm

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
)

// ResultMsg reports the user's answer for the dialog opened with ID.
type ResultMsg struct {
	ID        string
	Confirmed bool
}

// Model is the confirmation dialog.
type Model struct {
	id     string
	form   *huh.Form
	answer *bool
	width  int
}

// New creates an idle dialog.
func New(width int) Model {
	return Model{answer: new(bool), width: width}
}

// Ask opens the dialog. id is echoed back in the ResultMsg.
func (m *Model) Ask(id, title, description string) tea.Cmd {
	m.id = id
	*m.answer = false
	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(title).
				Description(description).
				Affirmative("Yes").
				Negative("Cancel").
				Value(m.answer),
		),
	).WithWidth(min(max(m.width-4, 40), 80))
	return m.form.Init()
}

// ID returns the identifier of the open dialog.
func (m Model) ID() string { return m.id }

// Update handles messages for the dialog.
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
		return m, m.result(*m.answer)
	case huh.StateAborted:
		return m, m.result(false)
	}
	return m, cmd
}

func (m Model) result(ok bool) tea.Cmd {
	id := m.id
	return func() tea.Msg { return ResultMsg{ID: id, Confirmed: ok} }
}

// View renders the dialog.
func (m Model) View() string {
	if m.form == nil {
		return ""
	}
	return lipgloss.NewStyle().Padding(1, 2).Render(m.form.View())
}

// SetSize updates the dialog width.
func (m *Model) SetSize(width, _ int) {
	m.width = width
}

// Package recipients manages the warm-up recipient pool.
package recipients

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/phoenix-warmup/internal/keys"
	"github.com/nhle/phoenix-warmup/internal/model"
	"github.com/nhle/phoenix-warmup/internal/theme"
)

// Backend is the recipient operations the view needs.
type Backend interface {
	Recipients(ctx context.Context) ([]model.Recipient, error)
	AddRecipient(ctx context.Context, addr, name string) (bool, error)
	DeactivateRecipient(ctx context.Context, addr string) error
	DeleteRecipient(ctx context.Context, addr string) error
	SeedRecipients(ctx context.Context, n int) (int, error)
}

// CloseMsg signals the parent to close the recipients view.
type CloseMsg struct{}

// ChangedMsg signals that the pool was modified.
type ChangedMsg struct{}

type viewMode int

const (
	modeList viewMode = iota
	modeAdd
	modeSeed
	modeConfirmDelete
)

type formBindings struct {
	email   string
	name    string
	count   string
	confirm bool
}

type loadedMsg struct {
	recipients []model.Recipient
	err        error
}

type doneMsg struct {
	status string
	err    error
}

// Model is the recipients manager view.
type Model struct {
	mode        viewMode
	backend     Backend
	keys        *keys.KeyMap
	recipients  []model.Recipient
	selectedIdx int
	offset      int
	form        *huh.Form
	fb          *formBindings
	statusMsg   string
	width       int
	height      int
}

// New creates a recipients manager.
func New(b Backend, k *keys.KeyMap, width, height int) Model {
	return Model{
		backend: b,
		keys:    k,
		fb:      &formBindings{},
		width:   width,
		height:  height,
	}
}

// Init loads the pool.
func (m Model) Init() tea.Cmd {
	return m.load()
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case loadedMsg:
		if msg.err != nil {
			m.statusMsg = fmt.Sprintf("Error: %v", msg.err)
			return m, nil
		}
		m.recipients = msg.recipients
		if m.selectedIdx >= len(m.recipients) {
			m.selectedIdx = max(0, len(m.recipients)-1)
		}
		m.scroll()
		return m, nil

	case doneMsg:
		m.mode = modeList
		if msg.err != nil {
			m.statusMsg = fmt.Sprintf("Error: %v", msg.err)
		} else {
			m.statusMsg = msg.status
		}
		return m, tea.Batch(m.load(), func() tea.Msg { return ChangedMsg{} })

	case tea.KeyMsg:
		if m.mode == modeList {
			return m.handleListKey(msg)
		}
	}

	return m.updateForm(msg)
}

func (m Model) handleListKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Back):
		return m, func() tea.Msg { return CloseMsg{} }

	case key.Matches(msg, m.keys.Down):
		if len(m.recipients) > 0 {
			m.selectedIdx = (m.selectedIdx + 1) % len(m.recipients)
			m.scroll()
		}
		return m, nil

	case key.Matches(msg, m.keys.Up):
		if len(m.recipients) > 0 {
			m.selectedIdx--
			if m.selectedIdx < 0 {
				m.selectedIdx = len(m.recipients) - 1
			}
			m.scroll()
		}
		return m, nil
	}

	switch msg.String() {
	case "n":
		m.fb.email, m.fb.name = "", ""
		return m.open(modeAdd, m.buildAddForm())

	case "s":
		m.fb.count = "50"
		return m.open(modeSeed, m.buildSeedForm())

	case "x":
		r, ok := m.selected()
		if !ok || !r.Active {
			return m, nil
		}
		return m, m.run(func(ctx context.Context) (string, error) {
			return "Deactivated " + r.Email, m.backend.DeactivateRecipient(ctx, r.Email)
		})

	case "d":
		r, ok := m.selected()
		if !ok {
			return m, nil
		}
		m.fb.confirm = false
		return m.open(modeConfirmDelete, m.buildConfirmForm(r.Email))
	}
	return m, nil
}

func (m Model) open(mode viewMode, f *huh.Form) (Model, tea.Cmd) {
	m.mode = mode
	m.form = f
	return m, m.form.Init()
}

func (m Model) selected() (model.Recipient, bool) {
	if m.selectedIdx < 0 || m.selectedIdx >= len(m.recipients) {
		return model.Recipient{}, false
	}
	return m.recipients[m.selectedIdx], true
}

// scroll keeps the selection inside the visible window.
func (m *Model) scroll() {
	rows := m.visibleRows()
	if m.selectedIdx < m.offset {
		m.offset = m.selectedIdx
	}
	if m.selectedIdx >= m.offset+rows {
		m.offset = m.selectedIdx - rows + 1
	}
}

func (m Model) visibleRows() int {
	return max(3, m.height-10)
}

func (m Model) buildAddForm() *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Email").
				Placeholder("friend@example.org").
				Value(&m.fb.email).
				Validate(func(s string) error {
					if model.DomainOf(strings.TrimSpace(s)) == "" {
						return fmt.Errorf("enter a full address")
					}
					return nil
				}),
			huh.NewInput().
				Title("Name").
				Description("Optional").
				Value(&m.fb.name),
		),
	).WithWidth(m.formWidth())
}

func (m Model) buildSeedForm() *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("How many synthetic recipients?").
				Value(&m.fb.count).
				Validate(func(s string) error {
					n, err := strconv.Atoi(strings.TrimSpace(s))
					if err != nil || n < 1 || n > 1000 {
						return fmt.Errorf("enter a number between 1 and 1000")
					}
					return nil
				}),
		),
	).WithWidth(m.formWidth())
}

func (m Model) buildConfirmForm(addr string) *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(fmt.Sprintf("Delete %s?", addr)).
				Description("It will no longer receive warm-up mail.").
				Affirmative("Yes, delete").
				Negative("Cancel").
				Value(&m.fb.confirm),
		),
	).WithWidth(m.formWidth())
}

func (m Model) updateForm(msg tea.Msg) (Model, tea.Cmd) {
	if m.form == nil || m.mode == modeList {
		return m, nil
	}
	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	switch m.form.State {
	case huh.StateAborted:
		m.mode = modeList
		return m, nil
	case huh.StateCompleted:
		return m.submit()
	}
	return m, cmd
}

func (m Model) submit() (Model, tea.Cmd) {
	fb := *m.fb
	switch m.mode {
	case modeAdd:
		return m, m.run(func(ctx context.Context) (string, error) {
			added, err := m.backend.AddRecipient(ctx, fb.email, fb.name)
			if err == nil && !added {
				return strings.TrimSpace(fb.email) + " is already in the pool", nil
			}
			return "Added " + strings.TrimSpace(fb.email), err
		})

	case modeSeed:
		n, _ := strconv.Atoi(strings.TrimSpace(fb.count))
		return m, m.run(func(ctx context.Context) (string, error) {
			added, err := m.backend.SeedRecipients(ctx, n)
			return fmt.Sprintf("Seeded %d recipients", added), err
		})

	case modeConfirmDelete:
		r, ok := m.selected()
		if !fb.confirm || !ok {
			m.mode = modeList
			return m, nil
		}
		return m, m.run(func(ctx context.Context) (string, error) {
			return "Deleted " + r.Email, m.backend.DeleteRecipient(ctx, r.Email)
		})
	}
	m.mode = modeList
	return m, nil
}

func (m Model) run(fn func(ctx context.Context) (string, error)) tea.Cmd {
	return func() tea.Msg {
		status, err := fn(context.Background())
		return doneMsg{status: status, err: err}
	}
}

func (m Model) load() tea.Cmd {
	b := m.backend
	return func() tea.Msg {
		rs, err := b.Recipients(context.Background())
		return loadedMsg{recipients: rs, err: err}
	}
}

// View renders the recipients manager.
func (m Model) View() string {
	if m.mode != modeList && m.form != nil {
		return lipgloss.NewStyle().Padding(1, 2).Render(m.form.View())
	}
	return m.viewList()
}

func (m Model) viewList() string {
	var b strings.Builder

	active := 0
	for _, r := range m.recipients {
		if r.Active {
			active++
		}
	}
	b.WriteString(theme.SectionTitleStyle.Render(
		fmt.Sprintf("Recipients (%d active / %d total)", active, len(m.recipients)),
	))
	b.WriteString("\n\n")

	if len(m.recipients) == 0 {
		b.WriteString(theme.HelpStyle.Render("No recipients yet. Press 'n' to add one or 's' to seed the pool."))
	}

	end := min(len(m.recipients), m.offset+m.visibleRows())
	for i := m.offset; i < end; i++ {
		r := m.recipients[i]
		label := fmt.Sprintf("%-40s %-20s used %3d", r.Email, clip(r.Name, 20), r.CountUsed)
		if !r.Active {
			label += "  inactive"
		}

		switch {
		case i == m.selectedIdx:
			b.WriteString(theme.SelectedItemStyle.Render(label))
		case !r.Active:
			b.WriteString(theme.ListItemStyle.Foreground(theme.ColorGray).Render(label))
		default:
			b.WriteString(theme.ListItemStyle.Render(label))
		}
		b.WriteString("\n")
	}

	if m.statusMsg != "" {
		b.WriteString("\n")
		b.WriteString(lipgloss.NewStyle().Foreground(theme.ColorYellow).Italic(true).Render(m.statusMsg))
	}

	b.WriteString("\n\n")
	b.WriteString(theme.HelpStyle.Render("n add | s seed | x deactivate | d delete | esc back"))

	return lipgloss.NewStyle().Padding(1, 2).Width(m.width).Render(b.String())
}

// SetSize updates dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}

func (m Model) formWidth() int {
	return min(max(m.width-4, 40), 90)
}

func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

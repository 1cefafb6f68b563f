// Package inboxform is the add-inbox form. It can verify the SMTP and
// IMAP logins before the inbox is saved.
package inboxform

import (
	"cmp"
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/phoenix-warmup/internal/model"
	"github.com/nhle/phoenix-warmup/internal/ramp"
	"github.com/nhle/phoenix-warmup/internal/theme"
)

// saveTimeout bounds the connection test and the write.
const saveTimeout = 45 * time.Second

// SaveFunc persists a new inbox, testing its logins first when verify is set.
type SaveFunc func(ctx context.Context, in model.Inbox, verify bool) error

// SavedMsg is sent after an inbox was stored.
type SavedMsg struct {
	Email string
}

// CancelMsg is sent when the user leaves the form without saving.
type CancelMsg struct{}

type saveResultMsg struct{ err error }

type mode int

const (
	modeForm mode = iota
	modeSaving
	modeResult
)

// formBindings holds field values on the heap so huh's Value pointers
// stay valid across Bubble Tea model copies.
type formBindings struct {
	email       string
	password    string
	displayName string
	smtpHost    string
	smtpPort    string
	imapHost    string
	imapPort    string
	workStart   string
	workEnd     string
	stage       int
	verify      bool
}

// Model is the add-inbox view.
type Model struct {
	mode    mode
	form    *huh.Form
	fb      *formBindings
	save    SaveFunc
	spinner spinner.Model
	err     error
	width   int
	height  int
}

// New creates the form. save is called when the user submits.
func New(save SaveFunc, width, height int) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(theme.ColorOrange)

	return Model{
		fb:      &formBindings{},
		save:    save,
		spinner: sp,
		width:   width,
		height:  height,
	}
}

// Start resets the fields to provider defaults and the configured
// working hours in w, and shows the form.
func (m *Model) Start(w model.WarmupConfig) tea.Cmd {
	*m.fb = formBindings{
		smtpHost:  model.DefaultSMTPHost,
		smtpPort:  strconv.Itoa(model.DefaultSMTPPort),
		imapHost:  model.DefaultIMAPHost,
		imapPort:  strconv.Itoa(model.DefaultIMAPPort),
		workStart: cmp.Or(w.WorkStart, model.DefaultWorkStart),
		workEnd:   cmp.Or(w.WorkEnd, model.DefaultWorkEnd),
		stage:     1,
		verify:    true,
	}
	return m.showForm()
}

func (m *Model) showForm() tea.Cmd {
	m.mode = modeForm
	m.err = nil
	m.form = m.buildForm()
	return m.form.Init()
}

func (m *Model) buildForm() *huh.Form {
	stages := make([]huh.Option[int], 0, ramp.MaxStage)
	for s := 1; s <= ramp.MaxStage; s++ {
		stages = append(stages, huh.NewOption(fmt.Sprintf("Stage %d (%d/day)", s, ramp.DailyLimit(s)), s))
	}

	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Email").
				Placeholder("sales@yourdomain.com").
				Value(&m.fb.email).
				Validate(validateEmail),
			huh.NewInput().
				Title("App Password").
				EchoMode(huh.EchoModePassword).
				Value(&m.fb.password).
				Validate(validateRequired("password")),
			huh.NewInput().
				Title("Display Name").
				Description("Optional; derived from the address when blank").
				Value(&m.fb.displayName),
			huh.NewSelect[int]().
				Title("Starting Stage").
				Options(stages...).
				Value(&m.fb.stage),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("SMTP Host").
				Value(&m.fb.smtpHost).
				Validate(validateRequired("SMTP host")),
			huh.NewInput().
				Title("SMTP Port").
				Value(&m.fb.smtpPort).
				Validate(validatePort),
			huh.NewInput().
				Title("IMAP Host").
				Value(&m.fb.imapHost).
				Validate(validateRequired("IMAP host")),
			huh.NewInput().
				Title("IMAP Port").
				Value(&m.fb.imapPort).
				Validate(validatePort),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Working Hours Start").
				Placeholder("08:00").
				Value(&m.fb.workStart).
				Validate(validateClock),
			huh.NewInput().
				Title("Working Hours End").
				Placeholder("20:00").
				Value(&m.fb.workEnd).
				Validate(validateClock),
			huh.NewConfirm().
				Title("Test connection before saving?").
				Affirmative("Yes").
				Negative("No").
				Value(&m.fb.verify),
		),
	).WithWidth(m.formWidth())
}

// Inbox builds the inbox described by the current field values.
func (m Model) Inbox() model.Inbox {
	in := model.NewInbox(m.fb.email, m.fb.password)
	in.DisplayName = strings.TrimSpace(m.fb.displayName)
	in.SMTPHost = strings.TrimSpace(m.fb.smtpHost)
	in.IMAPHost = strings.TrimSpace(m.fb.imapHost)
	in.SMTPPort, _ = strconv.Atoi(strings.TrimSpace(m.fb.smtpPort))
	in.IMAPPort, _ = strconv.Atoi(strings.TrimSpace(m.fb.imapPort))
	in.WorkStart = strings.TrimSpace(m.fb.workStart)
	in.WorkEnd = strings.TrimSpace(m.fb.workEnd)
	in.Stage = ramp.ClampStage(m.fb.stage)
	in.DailyLimit = ramp.DailyLimit(in.Stage)
	return in
}

// Update handles messages for the form.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case saveResultMsg:
		if msg.err != nil {
			m.mode = modeResult
			m.err = msg.err
			return m, nil
		}
		addr := strings.TrimSpace(m.fb.email)
		m.mode = modeForm
		return m, func() tea.Msg { return SavedMsg{Email: addr} }

	case spinner.TickMsg:
		if m.mode != modeSaving {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if m.mode == modeResult {
			switch msg.String() {
			case "r":
				return m, m.showForm()
			case "esc", "enter":
				return m, func() tea.Msg { return CancelMsg{} }
			}
			return m, nil
		}
		if m.mode == modeSaving {
			return m, nil
		}
	}

	if m.mode != modeForm || m.form == nil {
		return m, nil
	}

	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	if m.form.State == huh.StateCompleted {
		m.mode = modeSaving
		return m, tea.Batch(m.spinner.Tick, m.submit())
	}
	if m.form.State == huh.StateAborted {
		return m, func() tea.Msg { return CancelMsg{} }
	}
	return m, cmd
}

func (m Model) submit() tea.Cmd {
	in := m.Inbox()
	verify := m.fb.verify
	save := m.save
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
		defer cancel()
		return saveResultMsg{err: save(ctx, in, verify)}
	}
}

// View renders the form.
func (m Model) View() string {
	style := lipgloss.NewStyle().Padding(1, 2)
	title := theme.SectionTitleStyle.MarginBottom(1).Render("Add Inbox")

	switch m.mode {
	case modeSaving:
		msg := "Saving..."
		if m.fb.verify {
			msg = "Testing SMTP and IMAP login..."
		}
		return style.Render(title + "\n" + m.spinner.View() + " " + msg)

	case modeResult:
		content := lipgloss.NewStyle().Bold(true).Foreground(theme.ColorRed).Render("Could not add inbox") +
			"\n\n" + m.err.Error() + "\n\n" +
			theme.HelpStyle.Render("r edit and retry | esc back")
		return style.Render(title + "\n" + content)
	}

	if m.form == nil {
		return ""
	}
	return style.Render(title + "\n" + m.form.View())
}

// SetSize updates the form dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}

func (m Model) formWidth() int {
	return min(max(m.width-4, 40), 90)
}

func validateRequired(fieldName string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", fieldName)
		}
		return nil
	}
}

func validateEmail(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return fmt.Errorf("email is required")
	}
	if model.DomainOf(s) == "" || strings.Count(s, "@") != 1 || strings.HasPrefix(s, "@") {
		return fmt.Errorf("enter a full address like name@domain.com")
	}
	return nil
}

func validatePort(s string) error {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 1 || n > 65535 {
		return fmt.Errorf("port must be a number between 1 and 65535")
	}
	return nil
}

func validateClock(s string) error {
	if _, err := ramp.ParseClock(strings.TrimSpace(s)); err != nil {
		return fmt.Errorf("use HH:MM")
	}
	return nil
}

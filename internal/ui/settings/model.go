// Package settings edits the warm-up tunables and saves them to the
// config file. Running engines pick the new values up on the next cycle.
package settings

import (
	"fmt"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/phoenix-warmup/internal/model"
	"github.com/nhle/phoenix-warmup/internal/ramp"
	"github.com/nhle/phoenix-warmup/internal/theme"
)

// SaveFunc validates and persists new warm-up settings.
type SaveFunc func(model.WarmupConfig) error

// SavedMsg is sent after the settings were written.
type SavedMsg struct{}

// CancelMsg is sent when the form is left without saving.
type CancelMsg struct{}

type saveResultMsg struct{ err error }

type formBindings struct {
	workStart       string
	workEnd         string
	replyRate       string
	bounceThreshold string
	promoteAfter    string
	sendsPerMinute  string
	maxErrors       string
	seedRecipients  string
	replyDelay      bool
}

// Model is the settings view.
type Model struct {
	form   *huh.Form
	fb     *formBindings
	base   model.WarmupConfig
	save   SaveFunc
	saving bool
	err    error
	width  int
	height int
}

// New creates the view. save is called on submit.
func New(save SaveFunc, width, height int) Model {
	return Model{
		fb:     &formBindings{},
		save:   save,
		width:  width,
		height: height,
	}
}

// Start fills the form from current and shows it.
func (m *Model) Start(current model.WarmupConfig) tea.Cmd {
	m.base = current
	*m.fb = formBindings{
		workStart:       current.WorkStart,
		workEnd:         current.WorkEnd,
		replyRate:       formatFloat(current.ReplyRate),
		bounceThreshold: formatFloat(current.BounceThreshold),
		promoteAfter:    strconv.Itoa(current.PromoteAfterDays),
		sendsPerMinute:  strconv.Itoa(current.MaxSendsPerMinute),
		maxErrors:       strconv.Itoa(current.MaxConsecutiveErrors),
		seedRecipients:  strconv.Itoa(current.SeedRecipients),
		replyDelay:      current.ReplyDelay,
	}
	m.saving = false
	m.err = nil
	m.form = m.buildForm()
	return m.form.Init()
}

func (m *Model) buildForm() *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Default Working Hours Start").
				Description("Used by inboxes without their own window").
				Value(&m.fb.workStart).
				Validate(validateClock),
			huh.NewInput().
				Title("Default Working Hours End").
				Value(&m.fb.workEnd).
				Validate(validateClock),
			huh.NewInput().
				Title("Reply Rate").
				Description("Share of incoming mail answered, 0 to 1").
				Value(&m.fb.replyRate).
				Validate(validateRatio),
			huh.NewConfirm().
				Title("Delay replies by 5 to 45 minutes?").
				Affirmative("Yes").
				Negative("No").
				Value(&m.fb.replyDelay),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Bounce Threshold").
				Description("24h bounce ratio that pauses an inbox, 0 to 1").
				Value(&m.fb.bounceThreshold).
				Validate(validateRatio),
			huh.NewInput().
				Title("Promote After Days").
				Description("Consecutive full-quota days before the next stage").
				Value(&m.fb.promoteAfter).
				Validate(validatePositive),
			huh.NewInput().
				Title("Max Sends per Minute").
				Value(&m.fb.sendsPerMinute).
				Validate(validatePositive),
			huh.NewInput().
				Title("Errors Before Auto-Pause").
				Value(&m.fb.maxErrors).
				Validate(validatePositive),
			huh.NewInput().
				Title("Seed Recipients").
				Description("Synthetic recipients created when the pool is empty; 0 disables").
				Value(&m.fb.seedRecipients).
				Validate(validateCount),
		),
	).WithWidth(min(max(m.width-4, 40), 90))
}

// Warmup returns the settings described by the form.
func (m Model) Warmup() model.WarmupConfig {
	w := m.base
	w.WorkStart = strings.TrimSpace(m.fb.workStart)
	w.WorkEnd = strings.TrimSpace(m.fb.workEnd)
	w.ReplyRate, _ = strconv.ParseFloat(strings.TrimSpace(m.fb.replyRate), 64)
	w.BounceThreshold, _ = strconv.ParseFloat(strings.TrimSpace(m.fb.bounceThreshold), 64)
	w.PromoteAfterDays, _ = strconv.Atoi(strings.TrimSpace(m.fb.promoteAfter))
	w.MaxSendsPerMinute, _ = strconv.Atoi(strings.TrimSpace(m.fb.sendsPerMinute))
	w.MaxConsecutiveErrors, _ = strconv.Atoi(strings.TrimSpace(m.fb.maxErrors))
	w.SeedRecipients, _ = strconv.Atoi(strings.TrimSpace(m.fb.seedRecipients))
	w.ReplyDelay = m.fb.replyDelay
	return w
}

// Update handles messages for the form.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if res, ok := msg.(saveResultMsg); ok {
		m.saving = false
		if res.err != nil {
			m.err = res.err
			m.form = m.buildForm()
			return m, m.form.Init()
		}
		return m, func() tea.Msg { return SavedMsg{} }
	}
	if m.form == nil || m.saving {
		return m, nil
	}

	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	switch m.form.State {
	case huh.StateCompleted:
		m.saving = true
		w, save := m.Warmup(), m.save
		return m, func() tea.Msg { return saveResultMsg{err: save(w)} }
	case huh.StateAborted:
		return m, func() tea.Msg { return CancelMsg{} }
	}
	return m, cmd
}

// View renders the form.
func (m Model) View() string {
	title := theme.SectionTitleStyle.MarginBottom(1).Render("Warm-up Settings")
	body := ""
	switch {
	case m.saving:
		body = "Saving..."
	case m.form != nil:
		body = m.form.View()
	}
	if m.err != nil {
		body = theme.ErrorTextStyle.Render("Not saved: "+m.err.Error()) + "\n\n" + body
	}
	return lipgloss.NewStyle().Padding(1, 2).Render(title + "\n" + body)
}

// SetSize updates the form dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func validateClock(s string) error {
	if _, err := ramp.ParseClock(strings.TrimSpace(s)); err != nil {
		return fmt.Errorf("use HH:MM")
	}
	return nil
}

func validateRatio(s string) error {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || f < 0 || f > 1 {
		return fmt.Errorf("enter a number between 0 and 1")
	}
	return nil
}

func validatePositive(s string) error {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 1 {
		return fmt.Errorf("enter a whole number of at least 1")
	}
	return nil
}

func validateCount(s string) error {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 0 {
		return fmt.Errorf("enter a whole number")
	}
	return nil
}

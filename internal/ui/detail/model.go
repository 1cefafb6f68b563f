package detail

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/phoenix-warmup/internal/keys"
	"github.com/nhle/phoenix-warmup/internal/model"
	"github.com/nhle/phoenix-warmup/internal/ramp"
	"github.com/nhle/phoenix-warmup/internal/theme"
)

// LogRows is how many log entries the detail view shows.
const LogRows = 30

// BackMsg signals the parent to return to the dashboard.
type BackMsg struct{}

// LoadedMsg carries an inbox and its recent activity.
type LoadedMsg struct {
	Inbox model.Inbox
	Logs  []model.LogEntry
	Err   error
}

// Action names carried by ActionMsg.
const (
	ActionPause  = "pause"
	ActionStage  = "stage"
	ActionReset  = "reset"
	ActionTest   = "test"
	ActionDelete = "delete"
)

// ActionMsg asks the parent to act on the displayed inbox.
type ActionMsg struct {
	Action string
	Email  string
}

// Model is the inbox detail view.
type Model struct {
	inbox    *model.Inbox
	logs     []model.LogEntry
	err      error
	viewport viewport.Model
	keys     *keys.KeyMap
	width    int
	height   int
	loading  bool
}

// New creates a new detail view model.
func New(k *keys.KeyMap, width, height int) Model {
	vp := viewport.New(width, max(1, height-2))
	vp.Style = lipgloss.NewStyle()

	return Model{
		viewport: vp,
		keys:     k,
		width:    width,
		height:   height,
	}
}

// Init returns the initial command for the detail view.
func (m Model) Init() tea.Cmd {
	return nil
}

// Email is the address of the displayed inbox, or "".
func (m Model) Email() string {
	if m.inbox == nil {
		return ""
	}
	return m.inbox.Email
}

// Update handles messages for the detail view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case LoadedMsg:
		m.loading = false
		m.err = msg.Err
		if msg.Err == nil {
			in := msg.Inbox
			m.inbox = &in
			m.logs = msg.Logs
		}
		m.viewport.SetContent(m.renderContent())
		m.viewport.GotoTop()
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, m.keys.Back) {
			return m, func() tea.Msg { return BackMsg{} }
		}
		if m.inbox != nil {
			if action := m.actionFor(msg); action != "" {
				am := ActionMsg{Action: action, Email: m.inbox.Email}
				return m, func() tea.Msg { return am }
			}
		}
	}

	// j/k, up/down, pgup/pgdn scroll
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m Model) actionFor(msg tea.KeyMsg) string {
	switch {
	case key.Matches(msg, m.keys.Pause):
		return ActionPause
	case key.Matches(msg, m.keys.Stage):
		return ActionStage
	case key.Matches(msg, m.keys.Reset):
		return ActionReset
	case key.Matches(msg, m.keys.Test):
		return ActionTest
	case key.Matches(msg, m.keys.Delete):
		return ActionDelete
	}
	return ""
}

// View renders the detail view.
func (m Model) View() string {
	placeholder := lipgloss.NewStyle().
		Width(m.width).
		Height(m.height).
		Align(lipgloss.Center, lipgloss.Center).
		Foreground(theme.ColorGray)

	switch {
	case m.loading:
		return placeholder.Render("Loading inbox...")
	case m.err != nil:
		return placeholder.Foreground(theme.ColorRed).Render(m.err.Error())
	case m.inbox == nil:
		return placeholder.Render("No inbox selected")
	}
	return m.viewport.View()
}

// renderContent builds the viewport text.
func (m Model) renderContent() string {
	if m.inbox == nil {
		return ""
	}
	in := m.inbox

	var sections []string
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(theme.ColorWhite)
	sections = append(sections, titleStyle.Render(in.SenderName()+" <"+in.Email+">"))

	status := theme.InboxStatusStyle(in.Status).Render(strings.ToUpper(string(in.Status)))
	stage := theme.StageStyle(in.Stage).Render(fmt.Sprintf("STAGE %d/%d", in.Stage, ramp.MaxStage))
	sections = append(sections, lipgloss.JoinHorizontal(lipgloss.Top, status, "  ", stage), "")

	metaStyle := lipgloss.NewStyle().Foreground(theme.ColorGray).Width(16)
	valStyle := lipgloss.NewStyle().Foreground(theme.ColorWhite)
	field := func(label, value string) {
		sections = append(sections, metaStyle.Render(label)+valStyle.Render(value))
	}

	iv := ramp.SendInterval(in.Stage)
	field("Sent today:", fmt.Sprintf("%d of %d", in.DailySent, in.DailyLimit))
	field("Send interval:", fmt.Sprintf("%d to %d min", iv.Min/60, iv.Max/60))
	field("Full-quota days:", strconv.Itoa(in.QuotaStreak))
	field("Working hours:", in.WorkStart+" - "+in.WorkEnd)
	field("SMTP:", fmt.Sprintf("%s:%d", in.SMTPHost, in.SMTPPort))
	field("IMAP:", fmt.Sprintf("%s:%d", in.IMAPHost, in.IMAPPort))
	field("Last sent:", formatTime(in.LastSentAt))
	field("Next send:", formatTime(in.NextSendAt))
	if in.PausedReason != "" {
		field("Reason:", in.PausedReason)
	}

	sepStyle := lipgloss.NewStyle().Foreground(theme.ColorSubtle)
	separator := sepStyle.Render(strings.Repeat("─", max(10, min(m.width-4, 80))))
	sections = append(sections, "", separator, "")
	sections = append(sections, titleStyle.Render(fmt.Sprintf("Recent activity (%d)", len(m.logs))), "")

	if len(m.logs) == 0 {
		sections = append(sections, lipgloss.NewStyle().
			Foreground(theme.ColorGray).
			Italic(true).
			Render("No activity yet"))
	}

	timeStyle := lipgloss.NewStyle().Foreground(theme.ColorGray)
	for _, e := range m.logs {
		line := fmt.Sprintf("%s  %s", timeStyle.Render(e.Timestamp.Format("01-02 15:04:05")), logTypeStyle(e.Type).Render(fmt.Sprintf("%-6s", e.Type)))
		if e.Recipient != "" {
			line += "  " + e.Recipient
		}
		if e.Subject != "" {
			line += "  " + e.Subject
		}
		if e.Details != "" {
			line += "  " + timeStyle.Render(e.Details)
		}
		sections = append(sections, line)
	}

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func formatTime(t model.Timestamp) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("2006-01-02 15:04:05")
}

func logTypeStyle(t model.LogType) lipgloss.Style {
	switch t {
	case model.LogSend:
		return theme.EventStyle(model.EventSend)
	case model.LogReply:
		return theme.EventStyle(model.EventReply)
	case model.LogBounce, model.LogError:
		return theme.EventStyle(model.EventError)
	case model.LogPause:
		return theme.EventStyle(model.EventPause)
	case model.LogStage:
		return theme.EventStyle(model.EventStageAdvance)
	default:
		return theme.EventStyle(model.EventStatus)
	}
}

// SetLoading sets the loading state.
func (m *Model) SetLoading(loading bool) {
	m.loading = loading
}

// SetSize updates the detail view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.viewport.Width = width
	m.viewport.Height = max(1, height-2)
	m.viewport.SetContent(m.renderContent())
}

// Package dashboard renders the main screen: stat cards, the inbox table
// and the activity feed.
package dashboard

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/phoenix-warmup/internal/keys"
	"github.com/nhle/phoenix-warmup/internal/model"
	"github.com/nhle/phoenix-warmup/internal/service"
	"github.com/nhle/phoenix-warmup/internal/theme"
)

// DefaultFeedSize is how many events the feed keeps.
const DefaultFeedSize = 50

// cardsHeight is the rendered height of the stat card row.
const cardsHeight = 4

// SelectedInboxMsg is sent when the user opens an inbox.
type SelectedInboxMsg struct {
	Email string
}

// Model is the dashboard view component.
type Model struct {
	table    table.Model
	snap     service.Snapshot
	feed     []model.Event
	feedSize int
	keys     *keys.KeyMap
	now      func() time.Time
	width    int
	height   int
}

// New creates a dashboard keeping feedSize events.
func New(k *keys.KeyMap, feedSize, width, height int) Model {
	if feedSize <= 0 {
		feedSize = DefaultFeedSize
	}

	t := table.New(
		table.WithColumns(columns(width)),
		table.WithFocused(true),
	)
	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(theme.ColorBorder).
		BorderBottom(true).
		Bold(true)
	styles.Selected = styles.Selected.
		Foreground(theme.ColorWhite).
		Background(theme.ColorOrange).
		Bold(false)
	t.SetStyles(styles)

	m := Model{
		table:    t,
		feedSize: feedSize,
		keys:     k,
		now:      time.Now,
	}
	m.SetSize(width, height)
	return m
}

// columns sizes the inbox table for width, giving the slack to the
// email column.
func columns(width int) []table.Column {
	fixed := []table.Column{
		{Title: "Stage", Width: 6},
		{Title: "Sent", Width: 9},
		{Title: "Status", Width: 8},
		{Title: "Last Sent", Width: 10},
		{Title: "Next Send", Width: 10},
	}
	used := 0
	for _, c := range fixed {
		used += c.Width + 2
	}
	emailWidth := max(20, width-used-4)
	return append([]table.Column{{Title: "Email", Width: emailWidth}}, fixed...)
}

func rows(inboxes []model.Inbox, now time.Time) []table.Row {
	out := make([]table.Row, 0, len(inboxes))
	for _, in := range inboxes {
		out = append(out, table.Row{
			in.Email,
			strconv.Itoa(in.Stage),
			fmt.Sprintf("%d/%d", in.DailySent, in.DailyLimit),
			statusLabel(in),
			relativeTime(in.LastSentAt.Time, now),
			nextSend(in, now),
		})
	}
	return out
}

// Init returns the initial command.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages for the dashboard.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok && key.Matches(msg, m.keys.Select) {
		in, ok := m.Selected()
		if !ok {
			return m, nil
		}
		return m, func() tea.Msg { return SelectedInboxMsg{Email: in.Email} }
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

// SetSnapshot replaces the displayed state, keeping the cursor on the
// same row where possible.
func (m *Model) SetSnapshot(snap service.Snapshot) {
	m.snap = snap
	cursor := m.table.Cursor()
	m.table.SetRows(rows(snap.Inboxes, m.now()))
	if cursor >= len(snap.Inboxes) {
		cursor = len(snap.Inboxes) - 1
	}
	m.table.SetCursor(max(0, cursor))
}

// Snapshot returns the state last passed to SetSnapshot.
func (m Model) Snapshot() service.Snapshot { return m.snap }

// PushEvents adds events to the top of the feed, dropping the oldest past
// the feed size.
func (m *Model) PushEvents(events ...model.Event) {
	for _, e := range events {
		m.feed = append([]model.Event{e}, m.feed...)
	}
	if len(m.feed) > m.feedSize {
		m.feed = m.feed[:m.feedSize]
	}
}

// Feed returns the feed, newest first.
func (m Model) Feed() []model.Event { return m.feed }

// Selected returns the inbox under the cursor.
func (m Model) Selected() (model.Inbox, bool) {
	i := m.table.Cursor()
	if i < 0 || i >= len(m.snap.Inboxes) {
		return model.Inbox{}, false
	}
	return m.snap.Inboxes[i], true
}

// View renders the dashboard.
func (m Model) View() string {
	sections := []string{m.renderCards()}

	title := theme.SectionTitleStyle.Render("Inboxes")
	if len(m.snap.Inboxes) == 0 {
		empty := theme.HelpStyle.Render("No inboxes yet. Press a to add one.")
		sections = append(sections, title, empty)
	} else {
		sections = append(sections, title, m.table.View())
	}

	sections = append(sections, "", m.renderFeed())
	return lipgloss.NewStyle().Padding(0, 1).Render(
		lipgloss.JoinVertical(lipgloss.Left, sections...),
	)
}

func (m Model) renderCards() string {
	s := m.snap
	cards := []struct {
		label string
		value int
		color lipgloss.TerminalColor
	}{
		{"Active Inboxes", s.Active, theme.ColorOrange},
		{"Sent Today", s.Stats.Sent, theme.ColorGreen},
		{"Replies Today", s.Stats.Replies, theme.ColorBlue},
		{"Errors Today", s.Stats.Errors, theme.ColorRed},
		{"Bounces Today", s.Stats.Bounces, theme.ColorYellow},
	}

	width := max(14, (m.width-2)/len(cards)-2)
	rendered := make([]string, 0, len(cards))
	for _, c := range cards {
		body := lipgloss.JoinVertical(lipgloss.Center,
			theme.CardValueStyle(c.color).Render(strconv.Itoa(c.value)),
			theme.CardLabelStyle.Render(c.label),
		)
		rendered = append(rendered, theme.CardStyle.Width(width).Render(body))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, rendered...)
}

func (m Model) feedLines() int {
	return max(3, m.height/3)
}

func (m Model) renderFeed() string {
	var b strings.Builder
	b.WriteString(theme.SectionTitleStyle.Render("Activity"))

	if len(m.feed) == 0 {
		b.WriteString("\n")
		b.WriteString(theme.HelpStyle.Render("Waiting for activity..."))
		return b.String()
	}

	timeStyle := lipgloss.NewStyle().Foreground(theme.ColorGray)
	for i, e := range m.feed {
		if i == m.feedLines() {
			break
		}
		line := fmt.Sprintf("%s %s", timeStyle.Render(e.Clock()), theme.EventStyle(e.Kind).Render(theme.EventIcon(e.Kind)))
		if e.Inbox != "" {
			line += " " + e.Inbox
		}
		line += "  " + e.Message
		b.WriteString("\n")
		b.WriteString(lipgloss.NewStyle().MaxWidth(m.width - 2).Render(line))
	}
	return b.String()
}

// SetSize updates the dashboard dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.table.SetColumns(columns(width))
	m.table.SetWidth(width - 2)
	// cards, two section titles, the feed and a spacer
	m.table.SetHeight(max(3, height-cardsHeight-m.feedLines()-4))
}

package dashboard

import (
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/phoenix-warmup/internal/keys"
	"github.com/nhle/phoenix-warmup/internal/model"
	"github.com/nhle/phoenix-warmup/internal/service"
)

var now = time.Date(2026, time.March, 10, 10, 0, 0, 0, time.UTC)

func newDashboard(feed int) Model {
	m := New(keys.DefaultKeyMap(), feed, 120, 40)
	m.now = func() time.Time { return now }
	return m
}

func TestPushEventsKeepsNewestFirst(t *testing.T) {
	m := newDashboard(3)

	for i, msg := range []string{"a", "b", "c", "d"} {
		m.PushEvents(model.Event{Kind: model.EventSend, Message: msg, Time: now.Add(time.Duration(i) * time.Second)})
	}

	feed := m.Feed()
	require.Len(t, feed, 3)
	assert.Equal(t, "d", feed[0].Message)
	assert.Equal(t, "b", feed[2].Message)
}

func TestSelectedFollowsSnapshot(t *testing.T) {
	m := newDashboard(0)

	_, ok := m.Selected()
	assert.False(t, ok)

	m.SetSnapshot(service.Snapshot{Inboxes: []model.Inbox{
		model.NewInbox("a@example.com", ""),
		model.NewInbox("b@example.com", ""),
	}})

	in, ok := m.Selected()
	require.True(t, ok)
	assert.Equal(t, "a@example.com", in.Email)

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyDown})
	in, _ = m.Selected()
	assert.Equal(t, "b@example.com", in.Email)

	// shrinking the list pulls the cursor back in range
	m.SetSnapshot(service.Snapshot{Inboxes: []model.Inbox{model.NewInbox("a@example.com", "")}})
	in, ok = m.Selected()
	require.True(t, ok)
	assert.Equal(t, "a@example.com", in.Email)
}

func TestEnterOpensSelectedInbox(t *testing.T) {
	m := newDashboard(0)
	m.SetSnapshot(service.Snapshot{Inboxes: []model.Inbox{model.NewInbox("a@example.com", "")}})

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	assert.Equal(t, SelectedInboxMsg{Email: "a@example.com"}, cmd())
}

func TestRows(t *testing.T) {
	in := model.NewInbox("a@example.com", "")
	in.DailySent = 3
	in.LastSentAt = model.At(now.Add(-5 * time.Minute))
	in.NextSendAt = model.At(now.Add(20 * time.Minute))

	paused := model.NewInbox("b@example.com", "")
	paused.Status = model.InboxPaused

	got := rows([]model.Inbox{in, paused}, now)
	require.Len(t, got, 2)
	assert.Equal(t, []string{"a@example.com", "1", "3/5", "Active", "5m ago", "in 20m"}, []string(got[0]))
	assert.Equal(t, []string{"b@example.com", "1", "0/5", "Paused", "never", "-"}, []string(got[1]))
}

func TestNextSend(t *testing.T) {
	in := model.NewInbox("a@example.com", "")
	assert.Equal(t, "due", nextSend(in, now))

	in.NextSendAt = model.At(now.Add(90 * time.Minute))
	assert.Equal(t, "in 1h30m", nextSend(in, now))

	in.DailySent = in.DailyLimit
	assert.Equal(t, "quota met", nextSend(in, now))
}

func TestViewShowsCardsAndFeed(t *testing.T) {
	m := newDashboard(0)
	m.SetSnapshot(service.Snapshot{
		Active: 2,
		Stats:  model.DailyStats{Sent: 17, Replies: 4},
	})
	m.PushEvents(model.Event{Kind: model.EventReply, Inbox: "a@example.com", Message: "Replied to bob", Time: now})

	view := m.View()
	assert.Contains(t, view, "Sent Today")
	assert.Contains(t, view, "17")
	assert.Contains(t, view, "Replied to bob")
	assert.Contains(t, view, "No inboxes yet")
}

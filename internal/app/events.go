package app

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/phoenix-warmup/internal/model"
	"github.com/nhle/phoenix-warmup/internal/service"
)

// eventBatch is the most events folded into one redraw.
const eventBatch = 100

// eventMsg carries events read from the bus.
type eventMsg []model.Event

// snapshotMsg carries freshly loaded dashboard state.
type snapshotMsg struct {
	snap service.Snapshot
	err  error
}

// tickMsg triggers a periodic store refresh.
type tickMsg time.Time

// waitForEvent blocks until the bus yields an event, then drains whatever
// else is queued so bursts render once.
func waitForEvent(svc *service.Service) tea.Cmd {
	bus := svc.Bus
	return func() tea.Msg {
		e := <-bus.C()
		return eventMsg(append([]model.Event{e}, bus.Drain(eventBatch-1)...))
	}
}

func tick(every time.Duration) tea.Cmd {
	return tea.Tick(every, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func loadSnapshot(svc *service.Service) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()
		snap, err := svc.Snapshot(ctx)
		return snapshotMsg{snap: snap, err: err}
	}
}

package engine

import (
	"sync/atomic"
	"time"

	"github.com/nhle/phoenix-warmup/internal/model"
)

// DefaultBusSize is the number of events buffered for the dashboard.
const DefaultBusSize = 1000

// Bus carries events from background jobs to the UI. Posting never
// blocks: when the buffer is full the event is dropped and counted.
type Bus struct {
	ch      chan model.Event
	dropped atomic.Uint64

	// OnDrop, if set, is called for every dropped event.
	OnDrop func()
}

// NewBus returns a bus buffering size events (DefaultBusSize if size <= 0).
func NewBus(size int) *Bus {
	if size <= 0 {
		size = DefaultBusSize
	}
	return &Bus{ch: make(chan model.Event, size)}
}

// Post queues e, stamping the current time if it has none. It reports
// whether the event was accepted.
func (b *Bus) Post(e model.Event) bool {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	select {
	case b.ch <- e:
		return true
	default:
		b.dropped.Add(1)
		if b.OnDrop != nil {
			b.OnDrop()
		}
		return false
	}
}

// Emit is shorthand for posting an event built from its parts.
func (b *Bus) Emit(kind model.EventKind, inbox, message string) bool {
	return b.Post(model.Event{Kind: kind, Inbox: inbox, Message: message})
}

// C returns the receive side of the queue.
func (b *Bus) C() <-chan model.Event { return b.ch }

// Drain returns up to max queued events without waiting.
func (b *Bus) Drain(max int) []model.Event {
	var out []model.Event
	for len(out) < max {
		select {
		case e := <-b.ch:
			out = append(out, e)
		default:
			return out
		}
	}
	return out
}

// Len is the number of queued events.
func (b *Bus) Len() int { return len(b.ch) }

// Dropped is the number of events discarded since the bus was created.
func (b *Bus) Dropped() uint64 { return b.dropped.Load() }

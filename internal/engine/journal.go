package engine

import (
	"context"
	"regexp"
	"time"

	"github.com/rs/zerolog"

	"github.com/nhle/phoenix-warmup/internal/model"
	"github.com/nhle/phoenix-warmup/internal/store"
)

var secretPattern = regexp.MustCompile(`(?i)(password|passwd|pass|pwd)\s*[=:]\s*\S+`)

// Redact masks anything that looks like a password assignment.
func Redact(s string) string {
	return secretPattern.ReplaceAllString(s, "$1=***")
}

// Journal writes activity to the log store and the dashboard bus.
type Journal struct {
	logs store.LogStore
	bus  *Bus
	log  zerolog.Logger
	now  func() time.Time
}

// NewJournal returns a journal. bus may be nil.
func NewJournal(logs store.LogStore, bus *Bus, log zerolog.Logger, now func() time.Time) *Journal {
	if now == nil {
		now = time.Now
	}
	return &Journal{logs: logs, bus: bus, log: log, now: now}
}

// Record appends a log row. A failed write is logged and swallowed so
// one broken log never stops a cycle.
func (j *Journal) Record(ctx context.Context, t model.LogType, inbox, recipient, subject, details string) {
	e := model.LogEntry{
		Timestamp:  model.At(j.now()),
		InboxEmail: inbox,
		Type:       t,
		Recipient:  recipient,
		Subject:    subject,
		Details:    Redact(details),
	}
	if err := j.logs.Append(ctx, e); err != nil {
		j.log.Error().Err(err).Str("type", string(t)).Str("inbox", inbox).Msg("writing activity log")
	}
}

// Emit posts a dashboard event.
func (j *Journal) Emit(kind model.EventKind, inbox, message string) {
	if j.bus == nil {
		return
	}
	j.bus.Post(model.Event{Kind: kind, Inbox: inbox, Message: Redact(message), Time: j.now()})
}

// clip shortens s to n runes for one-line feed messages.
func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

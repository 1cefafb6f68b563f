package store

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/nhle/phoenix-warmup/internal/model"
)

// LogFile is the activity log name inside the data directory.
const LogFile = "logs.csv"

// CSVLogStore implements LogStore as an append-only logs.csv.
type CSVLogStore struct {
	table *csvTable[model.LogEntry]
}

// NewCSVLogStore opens (or creates) logs.csv under dataDir.
func NewCSVLogStore(dataDir string) (*CSVLogStore, error) {
	t, err := newCSVTable[model.LogEntry](filepath.Join(dataDir, LogFile))
	if err != nil {
		return nil, err
	}
	return &CSVLogStore{table: t}, nil
}

// Append writes one entry at the end of the log.
func (s *CSVLogStore) Append(ctx context.Context, e model.LogEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = model.At(time.Now())
	}
	s.table.mu.Lock()
	defer s.table.mu.Unlock()
	return s.table.appendRow(&e)
}

func (s *CSVLogStore) scan(ctx context.Context) ([]*model.LogEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.table.mu.Lock()
	defer s.table.mu.Unlock()
	return s.table.read()
}

// newest returns up to n matching entries walking from the end of rows.
func newest(rows []*model.LogEntry, n int, keep func(*model.LogEntry) bool) []model.LogEntry {
	out := []model.LogEntry{}
	for i := len(rows) - 1; i >= 0 && (n <= 0 || len(out) < n); i-- {
		if keep == nil || keep(rows[i]) {
			out = append(out, *rows[i])
		}
	}
	return out
}

// Recent returns the latest n entries, newest first. n <= 0 returns all.
func (s *CSVLogStore) Recent(ctx context.Context, n int) ([]model.LogEntry, error) {
	rows, err := s.scan(ctx)
	if err != nil {
		return nil, err
	}
	return newest(rows, n, nil), nil
}

// ForInbox returns the latest n entries for email, newest first.
func (s *CSVLogStore) ForInbox(ctx context.Context, email string, n int) ([]model.LogEntry, error) {
	rows, err := s.scan(ctx)
	if err != nil {
		return nil, err
	}
	return newest(rows, n, func(e *model.LogEntry) bool {
		return strings.EqualFold(e.InboxEmail, email)
	}), nil
}

// Stats tallies entries at or after since.
func (s *CSVLogStore) Stats(ctx context.Context, since time.Time) (model.DailyStats, error) {
	rows, err := s.scan(ctx)
	if err != nil {
		return model.DailyStats{}, err
	}
	var st model.DailyStats
	for _, e := range rows {
		if e.Timestamp.Before(since) {
			continue
		}
		tally(&st, e.Type, 1)
	}
	return st, nil
}

func tally(st *model.DailyStats, t model.LogType, n int) {
	switch t {
	case model.LogSend:
		st.Sent += n
	case model.LogReply:
		st.Replies += n
	case model.LogError:
		st.Errors += n
	case model.LogBounce:
		st.Bounces += n
	}
}

// Count returns the number of t entries for email at or after since.
func (s *CSVLogStore) Count(ctx context.Context, email string, t model.LogType, since time.Time) (int, error) {
	rows, err := s.scan(ctx)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, e := range rows {
		if e.Type == t && strings.EqualFold(e.InboxEmail, email) && !e.Timestamp.Before(since) {
			n++
		}
	}
	return n, nil
}

// Close is a no-op; every operation opens and closes the file.
func (s *CSVLogStore) Close() error { return nil }

package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/nhle/phoenix-warmup/internal/model"
)

// SQLiteLogFile is the SQLite activity log name inside the data directory.
const SQLiteLogFile = "logs.db"

// SQLiteLogStore implements LogStore on a local SQLite database. It suits
// long-running installs where logs.csv would be rescanned on every query.
type SQLiteLogStore struct {
	db *sqlx.DB
}

// NewSQLiteLogStore opens (or creates) a SQLite database at dbPath,
// enables WAL mode, and runs any pending schema migrations.
func NewSQLiteLogStore(dbPath string) (*SQLiteLogStore, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
	}

	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// An in-memory database exists per connection.
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteLogStore{db: db}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLiteLogStore) Close() error {
	return s.db.Close()
}

// runMigrations checks the current schema version and applies any
// outstanding migrations in order.
func (s *SQLiteLogStore) runMigrations() error {
	currentVersion := 0

	// Check if schema_version table exists.
	var tableCount int
	err := s.db.Get(
		&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	)
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}

	if tableCount > 0 {
		err = s.db.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_version")
		if err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}

	return nil
}

// logRow mirrors a logs table row.
type logRow struct {
	TS         int64  `db:"ts"`
	InboxEmail string `db:"inbox_email"`
	EventType  string `db:"event_type"`
	Recipient  string `db:"recipient"`
	Subject    string `db:"subject"`
	Details    string `db:"details"`
}

func (r logRow) entry() model.LogEntry {
	return model.LogEntry{
		Timestamp:  model.At(time.Unix(r.TS, 0)),
		InboxEmail: r.InboxEmail,
		Type:       model.LogType(r.EventType),
		Recipient:  r.Recipient,
		Subject:    r.Subject,
		Details:    r.Details,
	}
}

// Append inserts one entry.
func (s *SQLiteLogStore) Append(ctx context.Context, e model.LogEntry) error {
	ts := e.Timestamp.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO logs (ts, inbox_email, event_type, recipient, subject, details)
		VALUES (?, ?, ?, ?, ?, ?)`,
		ts.Unix(), e.InboxEmail, string(e.Type), e.Recipient, e.Subject, e.Details,
	)
	if err != nil {
		return fmt.Errorf("appending log entry: %w", err)
	}
	return nil
}

func (s *SQLiteLogStore) query(ctx context.Context, where string, n int, args ...any) ([]model.LogEntry, error) {
	q := `SELECT ts, inbox_email, event_type, recipient, subject, details FROM logs`
	if where != "" {
		q += " WHERE " + where
	}
	q += " ORDER BY ts DESC, id DESC"
	if n > 0 {
		q += " LIMIT ?"
		args = append(args, n)
	}

	var rows []logRow
	if err := s.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, fmt.Errorf("querying logs: %w", err)
	}
	out := make([]model.LogEntry, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.entry())
	}
	return out, nil
}

// Recent returns the latest n entries, newest first.
func (s *SQLiteLogStore) Recent(ctx context.Context, n int) ([]model.LogEntry, error) {
	return s.query(ctx, "", n)
}

// ForInbox returns the latest n entries for email, newest first.
func (s *SQLiteLogStore) ForInbox(ctx context.Context, email string, n int) ([]model.LogEntry, error) {
	return s.query(ctx, "inbox_email = ? COLLATE NOCASE", n, email)
}

// Stats tallies entries at or after since.
func (s *SQLiteLogStore) Stats(ctx context.Context, since time.Time) (model.DailyStats, error) {
	var counts []struct {
		EventType string `db:"event_type"`
		N         int    `db:"n"`
	}
	err := s.db.SelectContext(ctx, &counts, `
		SELECT event_type, COUNT(*) AS n FROM logs
		WHERE ts >= ? GROUP BY event_type`, since.Unix())
	if err != nil {
		return model.DailyStats{}, fmt.Errorf("counting logs: %w", err)
	}

	var st model.DailyStats
	for _, c := range counts {
		tally(&st, model.LogType(strings.ToUpper(c.EventType)), c.N)
	}
	return st, nil
}

// Count returns the number of t entries for email at or after since.
func (s *SQLiteLogStore) Count(ctx context.Context, email string, t model.LogType, since time.Time) (int, error) {
	var n int
	err := s.db.GetContext(ctx, &n, `
		SELECT COUNT(*) FROM logs
		WHERE inbox_email = ? COLLATE NOCASE AND event_type = ? AND ts >= ?`,
		email, string(t), since.Unix())
	if err != nil {
		return 0, fmt.Errorf("counting %s logs for %s: %w", t, email, err)
	}
	return n, nil
}

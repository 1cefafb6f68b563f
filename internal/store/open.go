package store

import (
	"fmt"
	"path/filepath"
)

// Stores groups the three tables that make up a data directory.
type Stores struct {
	Inboxes    *CSVInboxStore
	Recipients *CSVRecipientStore
	Logs       LogStore
}

// Open opens every table under dataDir. backend selects the activity log
// implementation: "csv" (logs.csv) or "sqlite" (logs.db).
func Open(dataDir, backend string) (*Stores, error) {
	inboxes, err := NewCSVInboxStore(dataDir)
	if err != nil {
		return nil, fmt.Errorf("opening inbox store: %w", err)
	}
	recipients, err := NewCSVRecipientStore(dataDir)
	if err != nil {
		return nil, fmt.Errorf("opening recipient store: %w", err)
	}

	var logs LogStore
	switch backend {
	case "", "csv":
		logs, err = NewCSVLogStore(dataDir)
	case "sqlite":
		logs, err = NewSQLiteLogStore(filepath.Join(dataDir, SQLiteLogFile))
	default:
		err = fmt.Errorf("unknown log backend %q", backend)
	}
	if err != nil {
		return nil, fmt.Errorf("opening log store: %w", err)
	}

	return &Stores{Inboxes: inboxes, Recipients: recipients, Logs: logs}, nil
}

// Close releases the log store.
func (s *Stores) Close() error {
	if s == nil || s.Logs == nil {
		return nil
	}
	return s.Logs.Close()
}

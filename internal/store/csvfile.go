package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/gocarina/gocsv"
)

// csvTable is a whole-file CSV table of T rows. Callers hold mu across
// read-modify-write sequences.
type csvTable[T any] struct {
	path string
	mu   sync.Mutex
}

func newCSVTable[T any](path string) (*csvTable[T], error) {
	t := &csvTable[T]{path: path}
	if err := t.ensure(); err != nil {
		return nil, err
	}
	return t, nil
}

// ensure creates the parent directory and a header-only file when missing.
func (t *csvTable[T]) ensure() error {
	if err := os.MkdirAll(filepath.Dir(t.path), 0o755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}
	if _, err := os.Stat(t.path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("checking %s: %w", t.path, err)
	}
	return t.write(nil)
}

func (t *csvTable[T]) read() ([]*T, error) {
	f, err := os.Open(t.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening %s: %w", t.path, err)
	}
	defer f.Close()

	var rows []*T
	if err := gocsv.UnmarshalFile(f, &rows); err != nil {
		if errors.Is(err, gocsv.ErrEmptyCSVFile) {
			return nil, nil
		}
		return nil, fmt.Errorf("decoding %s: %w", t.path, err)
	}
	return rows, nil
}

// write replaces the file atomically via a temp file in the same directory.
func (t *csvTable[T]) write(rows []*T) error {
	if rows == nil {
		rows = []*T{}
	}

	tmp, err := os.CreateTemp(filepath.Dir(t.path), filepath.Base(t.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file for %s: %w", t.path, err)
	}
	defer os.Remove(tmp.Name())

	if err := gocsv.Marshal(rows, tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("encoding %s: %w", t.path, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("syncing %s: %w", t.path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file for %s: %w", t.path, err)
	}
	if err := os.Rename(tmp.Name(), t.path); err != nil {
		return fmt.Errorf("replacing %s: %w", t.path, err)
	}
	return nil
}

// appendRow writes one row at the end of the file, adding the header
// when the file is empty.
func (t *csvTable[T]) appendRow(row *T) error {
	f, err := os.OpenFile(t.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening %s: %w", t.path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", t.path, err)
	}

	rows := []*T{row}
	if info.Size() == 0 {
		err = gocsv.Marshal(rows, f)
	} else {
		err = gocsv.MarshalWithoutHeaders(rows, f)
	}
	if err != nil {
		return fmt.Errorf("appending to %s: %w", t.path, err)
	}
	return nil
}

package testutil

import (
	"testing"

	"github.com/nhle/phoenix-warmup/internal/store"
)

// NewTestLogStore creates an in-memory SQLiteLogStore with all migrations
// applied. It automatically closes the store when the test completes.
func NewTestLogStore(t *testing.T) *store.SQLiteLogStore {
	t.Helper()

	s, err := store.NewSQLiteLogStore(":memory:")
	if err != nil {
		t.Fatalf("creating test store: %v", err)
	}

	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("closing test store: %v", err)
		}
	})

	return s
}

// NewTestStores opens CSV stores in a fresh temporary data directory.
func NewTestStores(t *testing.T) *store.Stores {
	t.Helper()

	s, err := store.Open(t.TempDir(), "csv")
	if err != nil {
		t.Fatalf("opening test stores: %v", err)
	}

	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("closing test stores: %v", err)
		}
	})

	return s
}

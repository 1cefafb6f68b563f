package store

import (
	"context"
	"fmt"
	"math/rand/v2"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/nhle/phoenix-warmup/internal/model"
)

// RecipientFile is the recipient table name inside the data directory.
const RecipientFile = "recipients.csv"

// CSVRecipientStore implements RecipientStore on recipients.csv.
type CSVRecipientStore struct {
	table *csvTable[model.Recipient]
}

// NewCSVRecipientStore opens (or creates) recipients.csv under dataDir.
func NewCSVRecipientStore(dataDir string) (*CSVRecipientStore, error) {
	t, err := newCSVTable[model.Recipient](filepath.Join(dataDir, RecipientFile))
	if err != nil {
		return nil, err
	}
	return &CSVRecipientStore{table: t}, nil
}

func findRecipient(rows []*model.Recipient, email string) int {
	for i, r := range rows {
		if strings.EqualFold(r.Email, email) {
			return i
		}
	}
	return -1
}

func (s *CSVRecipientStore) snapshot(ctx context.Context, keep func(model.Recipient) bool) ([]model.Recipient, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.table.mu.Lock()
	defer s.table.mu.Unlock()

	rows, err := s.table.read()
	if err != nil {
		return nil, err
	}
	out := make([]model.Recipient, 0, len(rows))
	for _, r := range rows {
		if keep == nil || keep(*r) {
			out = append(out, *r)
		}
	}
	return out, nil
}

func isActive(r model.Recipient) bool { return r.Active }

// All returns every recipient.
func (s *CSVRecipientStore) All(ctx context.Context) ([]model.Recipient, error) {
	return s.snapshot(ctx, nil)
}

// Active returns recipients that have not bounced.
func (s *CSVRecipientStore) Active(ctx context.Context) ([]model.Recipient, error) {
	return s.snapshot(ctx, isActive)
}

// HasRecords reports whether the pool has any rows at all.
func (s *CSVRecipientStore) HasRecords(ctx context.Context) (bool, error) {
	all, err := s.snapshot(ctx, nil)
	if err != nil {
		return false, err
	}
	return len(all) > 0, nil
}

// Add inserts r unless its address is already present.
func (s *CSVRecipientStore) Add(ctx context.Context, r model.Recipient) (bool, error) {
	n, err := s.AddMany(ctx, []model.Recipient{r})
	return n == 1, err
}

// AddMany inserts new addresses and skips known ones.
func (s *CSVRecipientStore) AddMany(ctx context.Context, rs []model.Recipient) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.table.mu.Lock()
	defer s.table.mu.Unlock()

	rows, err := s.table.read()
	if err != nil {
		return 0, err
	}

	seen := make(map[string]bool, len(rows)+len(rs))
	for _, r := range rows {
		seen[strings.ToLower(r.Email)] = true
	}

	added := 0
	for _, r := range rs {
		key := strings.ToLower(strings.TrimSpace(r.Email))
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		if r.Domain == "" {
			r.Domain = model.DomainOf(r.Email)
		}
		rec := r
		rows = append(rows, &rec)
		added++
	}
	if added == 0 {
		return 0, nil
	}
	if err := s.table.write(rows); err != nil {
		return 0, err
	}
	return added, nil
}

func (s *CSVRecipientStore) modify(ctx context.Context, email string, fn func(*model.Recipient)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.table.mu.Lock()
	defer s.table.mu.Unlock()

	rows, err := s.table.read()
	if err != nil {
		return err
	}
	i := findRecipient(rows, email)
	if i < 0 {
		return fmt.Errorf("recipient %s: %w", email, ErrNotFound)
	}
	fn(rows[i])
	return s.table.write(rows)
}

// Delete removes a recipient.
func (s *CSVRecipientStore) Delete(ctx context.Context, email string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.table.mu.Lock()
	defer s.table.mu.Unlock()

	rows, err := s.table.read()
	if err != nil {
		return err
	}
	i := findRecipient(rows, email)
	if i < 0 {
		return fmt.Errorf("recipient %s: %w", email, ErrNotFound)
	}
	return s.table.write(append(rows[:i], rows[i+1:]...))
}

// Deactivate takes a recipient out of rotation, e.g. after a hard bounce.
func (s *CSVRecipientStore) Deactivate(ctx context.Context, email string) error {
	return s.modify(ctx, email, func(r *model.Recipient) { r.Active = false })
}

// RecordUse bumps the use counter and last-use time.
func (s *CSVRecipientStore) RecordUse(ctx context.Context, email string, at time.Time) error {
	return s.modify(ctx, email, func(r *model.Recipient) {
		r.CountUsed++
		r.LastUsed = model.At(at)
	})
}

func (s *CSVRecipientStore) candidates(ctx context.Context, exclude string) ([]model.Recipient, error) {
	active, err := s.Active(ctx)
	if err != nil {
		return nil, err
	}
	pool := slices.DeleteFunc(slices.Clone(active), func(r model.Recipient) bool {
		return strings.EqualFold(r.Email, exclude)
	})
	if len(pool) == 0 {
		return active, nil
	}
	return pool, nil
}

// LeastUsed picks the least-used active recipient other than exclude.
func (s *CSVRecipientStore) LeastUsed(ctx context.Context, exclude string) (model.Recipient, bool, error) {
	pool, err := s.candidates(ctx, exclude)
	if err != nil || len(pool) == 0 {
		return model.Recipient{}, false, err
	}
	slices.SortStableFunc(pool, func(a, b model.Recipient) int {
		if a.CountUsed != b.CountUsed {
			return a.CountUsed - b.CountUsed
		}
		return a.LastUsed.Compare(b.LastUsed.Time)
	})
	return pool[0], true, nil
}

// PickRandom picks any active recipient other than exclude.
func (s *CSVRecipientStore) PickRandom(ctx context.Context, rng *rand.Rand, exclude string) (model.Recipient, bool, error) {
	pool, err := s.candidates(ctx, exclude)
	if err != nil || len(pool) == 0 {
		return model.Recipient{}, false, err
	}
	return pool[rng.IntN(len(pool))], true, nil
}

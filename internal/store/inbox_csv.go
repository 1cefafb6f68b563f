package store

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/nhle/phoenix-warmup/internal/model"
	"github.com/nhle/phoenix-warmup/internal/ramp"
)

// InboxFile is the inbox table name inside the data directory.
const InboxFile = "inboxes.csv"

// CSVInboxStore implements InboxStore on inboxes.csv.
type CSVInboxStore struct {
	table *csvTable[model.Inbox]
}

// NewCSVInboxStore opens (or creates) inboxes.csv under dataDir.
func NewCSVInboxStore(dataDir string) (*CSVInboxStore, error) {
	t, err := newCSVTable[model.Inbox](filepath.Join(dataDir, InboxFile))
	if err != nil {
		return nil, err
	}
	return &CSVInboxStore{table: t}, nil
}

// normalizeInbox fills columns that older files leave blank.
func normalizeInbox(in *model.Inbox) {
	in.Email = strings.TrimSpace(in.Email)
	if in.SMTPHost == "" {
		in.SMTPHost = model.DefaultSMTPHost
	}
	if in.SMTPPort == 0 {
		in.SMTPPort = model.DefaultSMTPPort
	}
	if in.IMAPHost == "" {
		in.IMAPHost = model.DefaultIMAPHost
	}
	if in.IMAPPort == 0 {
		in.IMAPPort = model.DefaultIMAPPort
	}
	if in.Stage == 0 {
		in.Stage = 1
	}
	if in.DailyLimit == 0 {
		in.DailyLimit = ramp.DailyLimit(in.Stage)
	}
	if in.Status == "" {
		in.Status = model.InboxActive
	}
}

func (s *CSVInboxStore) load() ([]*model.Inbox, error) {
	rows, err := s.table.read()
	if err != nil {
		return nil, err
	}
	for _, r := range rows {
		normalizeInbox(r)
	}
	return rows, nil
}

func findInbox(rows []*model.Inbox, email string) int {
	for i, r := range rows {
		if strings.EqualFold(r.Email, email) {
			return i
		}
	}
	return -1
}

func copyInboxes(rows []*model.Inbox, keep func(model.Inbox) bool) []model.Inbox {
	out := make([]model.Inbox, 0, len(rows))
	for _, r := range rows {
		if keep == nil || keep(*r) {
			out = append(out, *r)
		}
	}
	return out
}

// All returns every inbox in file order.
func (s *CSVInboxStore) All(ctx context.Context) ([]model.Inbox, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.table.mu.Lock()
	defer s.table.mu.Unlock()

	rows, err := s.load()
	if err != nil {
		return nil, err
	}
	return copyInboxes(rows, nil), nil
}

// Active returns inboxes whose status is active.
func (s *CSVInboxStore) Active(ctx context.Context) ([]model.Inbox, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.table.mu.Lock()
	defer s.table.mu.Unlock()

	rows, err := s.load()
	if err != nil {
		return nil, err
	}
	return copyInboxes(rows, model.Inbox.IsActive), nil
}

// Get returns the inbox with the given address.
func (s *CSVInboxStore) Get(ctx context.Context, email string) (model.Inbox, error) {
	if err := ctx.Err(); err != nil {
		return model.Inbox{}, err
	}
	s.table.mu.Lock()
	defer s.table.mu.Unlock()

	rows, err := s.load()
	if err != nil {
		return model.Inbox{}, err
	}
	i := findInbox(rows, email)
	if i < 0 {
		return model.Inbox{}, fmt.Errorf("inbox %s: %w", email, ErrNotFound)
	}
	return *rows[i], nil
}

// Add appends a new inbox. Adding an existing address fails with ErrDuplicate.
func (s *CSVInboxStore) Add(ctx context.Context, inbox model.Inbox) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(inbox.Email) == "" {
		return fmt.Errorf("inbox email must not be empty")
	}

	s.table.mu.Lock()
	defer s.table.mu.Unlock()

	rows, err := s.load()
	if err != nil {
		return err
	}
	if findInbox(rows, inbox.Email) >= 0 {
		return fmt.Errorf("inbox %s: %w", inbox.Email, ErrDuplicate)
	}
	normalizeInbox(&inbox)
	return s.table.write(append(rows, &inbox))
}

// Update replaces the stored row with the same address.
func (s *CSVInboxStore) Update(ctx context.Context, inbox model.Inbox) error {
	_, err := s.Modify(ctx, inbox.Email, func(in *model.Inbox) error {
		*in = inbox
		return nil
	})
	return err
}

// Delete removes the inbox with the given address.
func (s *CSVInboxStore) Delete(ctx context.Context, email string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.table.mu.Lock()
	defer s.table.mu.Unlock()

	rows, err := s.load()
	if err != nil {
		return err
	}
	i := findInbox(rows, email)
	if i < 0 {
		return fmt.Errorf("inbox %s: %w", email, ErrNotFound)
	}
	return s.table.write(append(rows[:i], rows[i+1:]...))
}

// Modify runs fn against one row inside a single locked read-modify-write.
func (s *CSVInboxStore) Modify(ctx context.Context, email string, fn func(*model.Inbox) error) (model.Inbox, error) {
	if err := ctx.Err(); err != nil {
		return model.Inbox{}, err
	}
	s.table.mu.Lock()
	defer s.table.mu.Unlock()

	rows, err := s.load()
	if err != nil {
		return model.Inbox{}, err
	}
	i := findInbox(rows, email)
	if i < 0 {
		return model.Inbox{}, fmt.Errorf("inbox %s: %w", email, ErrNotFound)
	}

	updated := *rows[i]
	if err := fn(&updated); err != nil {
		return model.Inbox{}, err
	}
	updated.Email = rows[i].Email
	normalizeInbox(&updated)
	rows[i] = &updated

	if err := s.table.write(rows); err != nil {
		return model.Inbox{}, err
	}
	return updated, nil
}

// ModifyAll runs fn against every row and writes the table once.
func (s *CSVInboxStore) ModifyAll(ctx context.Context, fn func(*model.Inbox)) ([]model.Inbox, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.table.mu.Lock()
	defer s.table.mu.Unlock()

	rows, err := s.load()
	if err != nil {
		return nil, err
	}
	for _, r := range rows {
		email := r.Email
		fn(r)
		r.Email = email
		normalizeInbox(r)
	}
	if err := s.table.write(rows); err != nil {
		return nil, err
	}
	return copyInboxes(rows, nil), nil
}

// Pause stops an inbox from sending and records why.
func (s *CSVInboxStore) Pause(ctx context.Context, email, reason string) error {
	_, err := s.Modify(ctx, email, func(in *model.Inbox) error {
		in.Status = model.InboxPaused
		in.PausedReason = reason
		return nil
	})
	return err
}

// Resume reactivates a paused or errored inbox.
func (s *CSVInboxStore) Resume(ctx context.Context, email string) error {
	_, err := s.Modify(ctx, email, func(in *model.Inbox) error {
		in.Status = model.InboxActive
		in.PausedReason = ""
		return nil
	})
	return err
}

// MarkError flags an inbox as failing, e.g. after rejected credentials.
func (s *CSVInboxStore) MarkError(ctx context.Context, email, reason string) error {
	_, err := s.Modify(ctx, email, func(in *model.Inbox) error {
		in.Status = model.InboxError
		in.PausedReason = reason
		return nil
	})
	return err
}

// SetStage moves an inbox to stage and resets its quota to match.
func (s *CSVInboxStore) SetStage(ctx context.Context, email string, stage int) error {
	if stage < 1 || stage > ramp.MaxStage {
		return fmt.Errorf("stage %d out of range 1-%d", stage, ramp.MaxStage)
	}
	_, err := s.Modify(ctx, email, func(in *model.Inbox) error {
		in.Stage = stage
		in.DailyLimit = ramp.DailyLimit(stage)
		in.QuotaStreak = 0
		return nil
	})
	return err
}

package store

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	"github.com/nhle/phoenix-warmup/internal/model"
)

var (
	// ErrNotFound is returned when no row matches the given key.
	ErrNotFound = errors.New("not found")

	// ErrDuplicate is returned when adding a row whose key already exists.
	ErrDuplicate = errors.New("already exists")
)

// InboxStore persists warm-up inboxes keyed by email address.
type InboxStore interface {
	All(ctx context.Context) ([]model.Inbox, error)
	Active(ctx context.Context) ([]model.Inbox, error)
	Get(ctx context.Context, email string) (model.Inbox, error)
	Add(ctx context.Context, inbox model.Inbox) error
	Update(ctx context.Context, inbox model.Inbox) error
	Delete(ctx context.Context, email string) error

	// Modify applies fn to the stored row under the store lock and
	// persists the result. Returning an error from fn aborts the write.
	Modify(ctx context.Context, email string, fn func(*model.Inbox) error) (model.Inbox, error)

	// ModifyAll applies fn to every row in one read-modify-write.
	ModifyAll(ctx context.Context, fn func(*model.Inbox)) ([]model.Inbox, error)

	Pause(ctx context.Context, email, reason string) error
	Resume(ctx context.Context, email string) error
	MarkError(ctx context.Context, email, reason string) error
	SetStage(ctx context.Context, email string, stage int) error
}

// RecipientStore persists the warm-up recipient pool keyed by email.
type RecipientStore interface {
	All(ctx context.Context) ([]model.Recipient, error)
	Active(ctx context.Context) ([]model.Recipient, error)
	HasRecords(ctx context.Context) (bool, error)

	// Add inserts r; an existing address is skipped without error.
	// It reports whether a row was written.
	Add(ctx context.Context, r model.Recipient) (bool, error)

	// AddMany inserts every new address in one write and returns how
	// many were added.
	AddMany(ctx context.Context, rs []model.Recipient) (int, error)

	Delete(ctx context.Context, email string) error
	Deactivate(ctx context.Context, email string) error

	// LeastUsed returns the active recipient with the lowest use count,
	// oldest last use breaking ties. The excluded address is skipped
	// unless it is the only one left. ok is false when the pool is empty.
	LeastUsed(ctx context.Context, exclude string) (r model.Recipient, ok bool, err error)

	// PickRandom returns a uniformly chosen active recipient, honouring
	// exclude the same way LeastUsed does.
	PickRandom(ctx context.Context, rng *rand.Rand, exclude string) (r model.Recipient, ok bool, err error)

	RecordUse(ctx context.Context, email string, at time.Time) error
}

// LogStore is the append-only activity log.
type LogStore interface {
	Append(ctx context.Context, e model.LogEntry) error

	// Recent returns up to n entries, newest first.
	Recent(ctx context.Context, n int) ([]model.LogEntry, error)

	// ForInbox returns up to n entries for one inbox, newest first.
	ForInbox(ctx context.Context, email string, n int) ([]model.LogEntry, error)

	// Stats counts send, reply, error and bounce rows since the given time.
	Stats(ctx context.Context, since time.Time) (model.DailyStats, error)

	// Count returns how many rows of type t the inbox logged since the
	// given time.
	Count(ctx context.Context, email string, t model.LogType, since time.Time) (int, error)

	Close() error
}

// StartOfDay returns local midnight of the day containing t.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// Package engine runs the warm-up jobs: the send cycle, the reply cycle
// and the daily reset. Engines never return per-inbox failures; they
// record them and carry on with the next inbox.
package engine

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/nhle/phoenix-warmup/internal/content"
	"github.com/nhle/phoenix-warmup/internal/credential"
	"github.com/nhle/phoenix-warmup/internal/email"
	"github.com/nhle/phoenix-warmup/internal/metrics"
	"github.com/nhle/phoenix-warmup/internal/model"
	"github.com/nhle/phoenix-warmup/internal/store"
)

// Sender delivers one message over SMTP.
type Sender interface {
	Send(ctx context.Context, acct email.Account, out email.Outgoing) email.SendResult
}

// Mailbox reads incoming mail over IMAP.
type Mailbox interface {
	FetchUnseen(ctx context.Context, acct email.Account) ([]email.FetchedMessage, error)
	MarkAnswered(ctx context.Context, acct email.Account, uids ...uint32) error
}

// Deferrer runs fn once after delay.
type Deferrer interface {
	After(name string, delay time.Duration, fn func(ctx context.Context))
}

// Deps are the collaborators shared by all engines.
type Deps struct {
	Inboxes    store.InboxStore
	Recipients store.RecipientStore
	Logs       store.LogStore
	Bus        *Bus

	Passwords credential.Resolver
	Content   *content.Generator
	Settings  *model.Settings
	Metrics   *metrics.Metrics
	Log       zerolog.Logger

	// Location is where working hours are evaluated. Nil means local.
	Location *time.Location

	// Now and Seed are overridable for tests.
	Now  func() time.Time
	Seed uint64
}

func (d *Deps) defaults() {
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Location == nil {
		d.Location = time.Local
	}
	if d.Passwords == nil {
		d.Passwords = credential.Plain{}
	}
	if d.Content == nil {
		d.Content = content.New(d.Seed)
	}
	if d.Settings == nil {
		d.Settings = model.NewSettings(model.DefaultWarmup())
	}
}

// lockedRand is a rand.Rand safe for use from deferred jobs.
type lockedRand struct {
	mu sync.Mutex
	r  *rand.Rand
}

func newLockedRand(seed uint64) *lockedRand {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return &lockedRand{r: rand.New(rand.NewPCG(seed, seed>>1|1))}
}

func (l *lockedRand) Float64() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Float64()
}

func (l *lockedRand) with(fn func(r *rand.Rand)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fn(l.r)
}

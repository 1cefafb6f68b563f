package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/nhle/phoenix-warmup/internal/email"
	"github.com/nhle/phoenix-warmup/internal/model"
	"github.com/nhle/phoenix-warmup/internal/store"
	"github.com/nhle/phoenix-warmup/tests/testutil"
)

// fakeSender records outgoing mail and answers from a script, falling
// back to success once the script runs out.
type fakeSender struct {
	mu     sync.Mutex
	sent   []email.Outgoing
	script []email.SendResult
}

func (f *fakeSender) Send(_ context.Context, _ email.Account, out email.Outgoing) email.SendResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, out)
	if len(f.script) > 0 {
		res := f.script[0]
		f.script = f.script[1:]
		return res
	}
	return email.SendResult{Success: true, MessageID: "id@x.com", Duration: 10 * time.Millisecond}
}

func (f *fakeSender) outbox() []email.Outgoing {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]email.Outgoing(nil), f.sent...)
}

type fakeMailbox struct {
	msgs     []email.FetchedMessage
	err      error
	answered []uint32
}

func (f *fakeMailbox) FetchUnseen(context.Context, email.Account) ([]email.FetchedMessage, error) {
	return f.msgs, f.err
}

func (f *fakeMailbox) MarkAnswered(_ context.Context, _ email.Account, uids ...uint32) error {
	f.answered = append(f.answered, uids...)
	return nil
}

type pendingJob struct {
	name  string
	delay time.Duration
	fn    func(ctx context.Context)
}

type fakeDeferrer struct {
	jobs []pendingJob
}

func (f *fakeDeferrer) After(name string, delay time.Duration, fn func(ctx context.Context)) {
	f.jobs = append(f.jobs, pendingJob{name: name, delay: delay, fn: fn})
}

var tenAM = time.Date(2026, 3, 10, 10, 0, 0, 0, time.Local)

type fixture struct {
	stores *store.Stores
	bus    *Bus
	deps   Deps
}

func newFixture(t *testing.T, now time.Time, mutate func(*model.WarmupConfig)) *fixture {
	t.Helper()
	s := testutil.NewTestStores(t)
	bus := NewBus(0)
	w := model.DefaultWarmup()
	if mutate != nil {
		mutate(&w)
	}
	return &fixture{
		stores: s,
		bus:    bus,
		deps: Deps{
			Inboxes:    s.Inboxes,
			Recipients: s.Recipients,
			Logs:       s.Logs,
			Bus:        bus,
			Settings:   model.NewSettings(w),
			Log:        zerolog.Nop(),
			Now:        func() time.Time { return now },
			Seed:       1,
		},
	}
}

func (f *fixture) addInbox(t *testing.T, addr string, mutate func(*model.Inbox)) {
	t.Helper()
	in := model.NewInbox(addr, "secret")
	if mutate != nil {
		mutate(&in)
	}
	require.NoError(t, f.stores.Inboxes.Add(context.Background(), in))
}

func (f *fixture) addRecipient(t *testing.T, addr, name string) {
	t.Helper()
	_, err := f.stores.Recipients.Add(context.Background(), model.NewRecipient(addr, name))
	require.NoError(t, err)
}

func (f *fixture) inbox(t *testing.T, addr string) model.Inbox {
	t.Helper()
	in, err := f.stores.Inboxes.Get(context.Background(), addr)
	require.NoError(t, err)
	return in
}

func (f *fixture) events() []model.Event {
	return f.bus.Drain(DefaultBusSize)
}

func kinds(events []model.Event) []model.EventKind {
	out := make([]model.EventKind, 0, len(events))
	for _, e := range events {
		out = append(out, e.Kind)
	}
	return out
}

func (f *fixture) logTypes(t *testing.T) []model.LogType {
	t.Helper()
	entries, err := f.stores.Logs.Recent(context.Background(), 100)
	require.NoError(t, err)
	out := make([]model.LogType, 0, len(entries))
	for i := len(entries) - 1; i >= 0; i-- {
		out = append(out, entries[i].Type)
	}
	return out
}

package service

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/99designs/keyring"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/phoenix-warmup/internal/credential"
	"github.com/nhle/phoenix-warmup/internal/email"
	"github.com/nhle/phoenix-warmup/internal/engine"
	"github.com/nhle/phoenix-warmup/internal/model"
	"github.com/nhle/phoenix-warmup/internal/scheduler"
)

type stubSender struct {
	mu   sync.Mutex
	sent []email.Outgoing
}

func (s *stubSender) Send(_ context.Context, _ email.Account, out email.Outgoing) email.SendResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, out)
	return email.SendResult{Success: true, MessageID: "abc@example.com"}
}

type stubMailbox struct{}

func (stubMailbox) FetchUnseen(context.Context, email.Account) ([]email.FetchedMessage, error) {
	return nil, nil
}

func (stubMailbox) MarkAnswered(context.Context, email.Account, ...uint32) error { return nil }

var tenAM = time.Date(2026, time.March, 10, 10, 0, 0, 0, time.Local)

func testConfig(t *testing.T) *model.AppConfig {
	t.Helper()
	return &model.AppConfig{
		DataDir: t.TempDir(),
		Warmup:  model.DefaultWarmup(),
		Schedule: model.ScheduleConfig{
			SendInterval:  time.Minute,
			ReplyInterval: 5 * time.Minute,
			DailyReset:    "0 0 0 * * *",
		},
		Log: model.LogConfig{Backend: "csv"},
	}
}

func newService(t *testing.T) (*Service, *stubSender, *keyring.ArrayKeyring) {
	t.Helper()
	ring := keyring.NewArrayKeyring(nil)
	sender := &stubSender{}
	svc, err := New(testConfig(t), zerolog.Nop(), Options{
		Sender:  sender,
		Mailbox: stubMailbox{},
		Keyring: credential.NewWithBackend(ring),
		Now:     func() time.Time { return tenAM },
		Seed:    7,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = svc.Shutdown(ctx)
		_ = svc.Close()
	})
	return svc, sender, ring
}

func drainKinds(svc *Service) []model.EventKind {
	var kinds []model.EventKind
	for _, e := range svc.Bus.Drain(engine.DefaultBusSize) {
		kinds = append(kinds, e.Kind)
	}
	return kinds
}

func TestAddInboxMovesPasswordToKeyring(t *testing.T) {
	svc, _, ring := newService(t)
	ctx := context.Background()

	require.NoError(t, svc.AddInbox(ctx, model.NewInbox("a@zoho.example", "s3cret"), false))

	stored, err := svc.Stores.Inboxes.Get(ctx, "a@zoho.example")
	require.NoError(t, err)
	assert.Empty(t, stored.Password)
	assert.Equal(t, 5, stored.DailyLimit)

	item, err := ring.Get(credential.InboxKey("a@zoho.example"))
	require.NoError(t, err)
	assert.Equal(t, "s3cret", string(item.Data))
	assert.Contains(t, drainKinds(svc), model.EventStatus)
}

func TestAddInboxValidation(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()

	assert.Error(t, svc.AddInbox(ctx, model.NewInbox("not-an-address", "pw"), false))
	assert.ErrorIs(t, svc.AddInbox(ctx, model.NewInbox("b@example.com", ""), false), ErrNoPassword)

	all, err := svc.Stores.Inboxes.All(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestRemoveInboxDeletesPassword(t *testing.T) {
	svc, _, ring := newService(t)
	ctx := context.Background()
	require.NoError(t, svc.AddInbox(ctx, model.NewInbox("a@example.com", "pw"), false))

	require.NoError(t, svc.RemoveInbox(ctx, "a@example.com"))

	_, err := svc.Stores.Inboxes.Get(ctx, "a@example.com")
	assert.Error(t, err)
	_, err = ring.Get(credential.InboxKey("a@example.com"))
	assert.ErrorIs(t, err, keyring.ErrKeyNotFound)
}

func TestPauseResumeToggle(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()
	require.NoError(t, svc.AddInbox(ctx, model.NewInbox("a@example.com", "pw"), false))
	svc.Bus.Drain(engine.DefaultBusSize)

	require.NoError(t, svc.ToggleInbox(ctx, "a@example.com"))
	in, err := svc.Stores.Inboxes.Get(ctx, "a@example.com")
	require.NoError(t, err)
	assert.Equal(t, model.InboxPaused, in.Status)
	assert.Equal(t, "Paused manually", in.PausedReason)

	require.NoError(t, svc.ToggleInbox(ctx, "a@example.com"))
	in, err = svc.Stores.Inboxes.Get(ctx, "a@example.com")
	require.NoError(t, err)
	assert.True(t, in.IsActive())

	assert.Equal(t, []model.EventKind{model.EventPause, model.EventResume}, drainKinds(svc))

	logs, err := svc.Stores.Logs.ForInbox(ctx, "a@example.com", 2)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, model.LogResume, logs[0].Type)
	assert.Equal(t, model.LogPause, logs[1].Type)
}

func TestSetStageUpdatesLimit(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()
	require.NoError(t, svc.AddInbox(ctx, model.NewInbox("a@example.com", "pw"), false))

	require.NoError(t, svc.SetStage(ctx, "a@example.com", 3))

	in, err := svc.Stores.Inboxes.Get(ctx, "a@example.com")
	require.NoError(t, err)
	assert.Equal(t, 3, in.Stage)
	assert.Equal(t, 25, in.DailyLimit)
}

func TestSeedIfEmpty(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()

	n, err := svc.SeedIfEmpty(ctx)
	require.NoError(t, err)
	assert.Equal(t, 150, n)

	n, err = svc.SeedIfEmpty(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestWarmupCycleUsesKeyringPassword(t *testing.T) {
	svc, sender, _ := newService(t)
	ctx := context.Background()
	require.NoError(t, svc.AddInbox(ctx, model.NewInbox("a@example.com", "pw"), false))
	added, err := svc.AddRecipient(ctx, "bob@example.org", "Bob")
	require.NoError(t, err)
	require.True(t, added)

	require.NoError(t, svc.Warmup.RunCycle(ctx))

	require.Len(t, sender.sent, 1)
	assert.Equal(t, "bob@example.org", sender.sent[0].To)

	snap, err := svc.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, snap.Active)
	assert.Equal(t, 1, snap.Stats.Sent)
	assert.Equal(t, 1, snap.Recipients)
	require.Len(t, snap.Inboxes, 1)
	assert.Equal(t, 1, snap.Inboxes[0].DailySent)
}

func TestResetCountersAll(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()
	require.NoError(t, svc.AddInbox(ctx, model.NewInbox("a@example.com", "pw"), false))
	_, err := svc.Stores.Inboxes.Modify(ctx, "a@example.com", func(in *model.Inbox) error {
		in.DailySent = 4
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, svc.ResetCounters(ctx, ""))

	in, err := svc.Stores.Inboxes.Get(ctx, "a@example.com")
	require.NoError(t, err)
	assert.Zero(t, in.DailySent)
}

func TestStartStop(t *testing.T) {
	svc, _, _ := newService(t)

	require.NoError(t, svc.Start())
	assert.True(t, svc.Running())
	_, ok := svc.Scheduler.NextRunTime(scheduler.JobWarmup)
	assert.True(t, ok)

	svc.Stop()
	assert.False(t, svc.Running())
}

func TestApplyConfigPublishesSettings(t *testing.T) {
	svc, _, _ := newService(t)
	cfg := testConfig(t)
	cfg.Warmup.ReplyRate = 0.9

	svc.ApplyConfig(cfg)

	assert.InDelta(t, 0.9, svc.Settings.Warmup().ReplyRate, 1e-9)
}

func TestSaveWarmupWritesAndApplies(t *testing.T) {
	cfg := testConfig(t)
	path := filepath.Join(cfg.DataDir, "config.yaml")
	svc, err := New(cfg, zerolog.Nop(), Options{
		Sender:     &stubSender{},
		Mailbox:    stubMailbox{},
		Now:        func() time.Time { return tenAM },
		ConfigPath: path,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close() })

	w := svc.Settings.Warmup()
	w.ReplyRate = 0.7
	w.WorkStart = "07:30"
	require.NoError(t, svc.SaveWarmup(w))
	assert.InDelta(t, 0.7, svc.Settings.Warmup().ReplyRate, 1e-9)

	loaded, err := model.LoadConfig(path)
	require.NoError(t, err)
	assert.InDelta(t, 0.7, loaded.Warmup.ReplyRate, 1e-9)
	assert.Equal(t, "07:30", loaded.Warmup.WorkStart)

	w.ReplyRate = 2
	require.Error(t, svc.SaveWarmup(w))
	assert.InDelta(t, 0.7, svc.Settings.Warmup().ReplyRate, 1e-9)
}

func unsetEnv(t *testing.T, names ...string) {
	t.Helper()
	for _, env := range names {
		t.Setenv(env, "")
		require.NoError(t, os.Unsetenv(env))
	}
}

func TestSaveWarmupSurvivesDotEnvReload(t *testing.T) {
	unsetEnv(t, "REPLY_RATE", "WORK_START")
	t.Chdir(t.TempDir())
	cfg := testConfig(t)
	path := filepath.Join(cfg.DataDir, "config.yaml")
	dotenv := filepath.Join(cfg.DataDir, ".env")
	require.NoError(t, os.WriteFile(dotenv, []byte("REPLY_RATE=0.40\nLOG_LEVEL=debug\n"), 0o600))
	cfg.Warmup.ReplyRate = 0.4

	svc, err := New(cfg, zerolog.Nop(), Options{
		Sender:     &stubSender{},
		Mailbox:    stubMailbox{},
		Now:        func() time.Time { return tenAM },
		ConfigPath: path,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.WatchConfig(ctx, path) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	time.Sleep(200 * time.Millisecond)
	svc.Bus.Drain(engine.DefaultBusSize)

	w := svc.Settings.Warmup()
	w.ReplyRate = 0.9
	require.NoError(t, svc.SaveWarmup(w))

	raw, err := os.ReadFile(dotenv)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "0.9")
	assert.Contains(t, string(raw), "LOG_LEVEL", "other overrides are kept")

	loaded, err := model.LoadConfig(path)
	require.NoError(t, err)
	assert.InDelta(t, 0.9, loaded.Warmup.ReplyRate, 1e-9)

	reloads := 0
	require.Eventually(t, func() bool {
		for _, e := range svc.Bus.Drain(engine.DefaultBusSize) {
			assert.NotEqual(t, model.EventWarning, e.Kind, e.Message)
			if e.Message == "Configuration reloaded" {
				reloads++
			}
		}
		return reloads >= 2
	}, 3*time.Second, 20*time.Millisecond, "save and watcher both apply")
	assert.InDelta(t, 0.9, svc.Settings.Warmup().ReplyRate, 1e-9)
}

func TestSaveWarmupRefusesEnvPinnedValues(t *testing.T) {
	unsetEnv(t, "WORK_START")
	t.Setenv("REPLY_RATE", "0.4")
	cfg := testConfig(t)
	cfg.Warmup.ReplyRate = 0.4
	path := filepath.Join(cfg.DataDir, "config.yaml")
	svc, err := New(cfg, zerolog.Nop(), Options{
		Sender:     &stubSender{},
		Mailbox:    stubMailbox{},
		Now:        func() time.Time { return tenAM },
		ConfigPath: path,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close() })

	w := svc.Settings.Warmup()
	w.ReplyRate = 0.9
	err = svc.SaveWarmup(w)
	require.ErrorIs(t, err, ErrPinnedByEnv)
	assert.Contains(t, err.Error(), "REPLY_RATE")
	assert.InDelta(t, 0.4, svc.Settings.Warmup().ReplyRate, 1e-9)
	assert.NoFileExists(t, path)

	w.ReplyRate = 0.4
	w.WorkStart = "07:00"
	require.NoError(t, svc.SaveWarmup(w), "unchanged pinned values do not block a save")
	assert.Equal(t, "07:00", svc.Settings.Warmup().WorkStart)
}

func TestSaveWarmupWithoutConfigFile(t *testing.T) {
	svc, _, _ := newService(t)
	assert.ErrorIs(t, svc.SaveWarmup(model.DefaultWarmup()), ErrReadOnlyConfig)
}

// Package service assembles the stores, engines and scheduler into one
// application object shared by the terminal UI and the CLI commands.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/nhle/phoenix-warmup/internal/content"
	"github.com/nhle/phoenix-warmup/internal/credential"
	"github.com/nhle/phoenix-warmup/internal/email"
	"github.com/nhle/phoenix-warmup/internal/engine"
	"github.com/nhle/phoenix-warmup/internal/logging"
	"github.com/nhle/phoenix-warmup/internal/metrics"
	"github.com/nhle/phoenix-warmup/internal/model"
	"github.com/nhle/phoenix-warmup/internal/ramp"
	"github.com/nhle/phoenix-warmup/internal/scheduler"
	"github.com/nhle/phoenix-warmup/internal/store"
)

// Service is the running application.
type Service struct {
	Config   *model.AppConfig
	Settings *model.Settings
	Stores   *store.Stores
	Bus      *engine.Bus
	Metrics  *metrics.Metrics

	Scheduler *scheduler.Scheduler
	Warmup    *engine.Warmup
	Replier   *engine.Replier
	Reset     *engine.DailyReset
	Content   *content.Generator

	SMTP    *email.SMTPClient
	IMAP    *email.IMAPClient
	Keyring *credential.Keyring

	log        zerolog.Logger
	journal    *engine.Journal
	now        func() time.Time
	configPath string
}

// Options overrides collaborators, mainly for tests.
type Options struct {
	Sender  engine.Sender
	Mailbox engine.Mailbox
	Keyring *credential.Keyring
	Now     func() time.Time
	Seed    uint64

	// ConfigPath is where SaveWarmup writes; empty makes settings read-only.
	ConfigPath string
}

// New opens the data directory and wires every component.
func New(cfg *model.AppConfig, log zerolog.Logger, opts Options) (*Service, error) {
	stores, err := store.Open(cfg.DataDir, cfg.Log.Backend)
	if err != nil {
		return nil, err
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}

	s := &Service{
		Config:   cfg,
		Settings: model.NewSettings(cfg.Warmup),
		Stores:   stores,
		Bus:      engine.NewBus(engine.DefaultBusSize),
		Metrics:  metrics.New(),
		Content:  content.New(opts.Seed),
		SMTP:     email.NewSMTPClient(),
		IMAP:     email.NewIMAPClient(),
		Keyring:  opts.Keyring,
		log:      log,
		now:      now,

		configPath: opts.ConfigPath,
	}
	s.Bus.OnDrop = s.Metrics.Dropped
	s.journal = engine.NewJournal(stores.Logs, s.Bus, logging.Component(log, "service"), now)

	var passwords credential.Resolver = credential.Plain{}
	if s.Keyring == nil && cfg.Keyring.Enabled {
		s.Keyring = credential.New(cfg.Keyring.Dir)
	}
	if s.Keyring != nil {
		passwords = s.Keyring
	}

	sender := opts.Sender
	if sender == nil {
		sender = s.SMTP
	}
	mailbox := opts.Mailbox
	if mailbox == nil {
		mailbox = s.IMAP
	}

	s.Scheduler = scheduler.New(scheduler.Options{
		Location: cfg.Location(),
		Log:      logging.Component(log, "scheduler"),
		Metrics:  s.Metrics,
		OnError: func(job string, err error) {
			s.Bus.Emit(model.EventError, "", fmt.Sprintf("%s job failed: %v", job, err))
		},
	})

	deps := func(component string) engine.Deps {
		return engine.Deps{
			Inboxes:    stores.Inboxes,
			Recipients: stores.Recipients,
			Logs:       stores.Logs,
			Bus:        s.Bus,
			Passwords:  passwords,
			Content:    s.Content,
			Settings:   s.Settings,
			Metrics:    s.Metrics,
			Log:        logging.Component(log, component),
			Location:   cfg.Location(),
			Now:        now,
			Seed:       opts.Seed,
		}
	}
	s.Warmup = engine.NewWarmup(deps("warmup"), sender)
	s.Replier = engine.NewReplier(deps("reply"), sender, mailbox, s.Scheduler)
	s.Reset = engine.NewDailyReset(deps("reset"))

	if err := s.addJobs(); err != nil {
		_ = stores.Close()
		return nil, err
	}
	return s, nil
}

func every(d time.Duration) string { return "@every " + d.String() }

func (s *Service) addJobs() error {
	sched := s.Config.Schedule
	jobs := []scheduler.Job{
		{Name: scheduler.JobWarmup, Spec: every(sched.SendInterval), Run: s.Warmup.RunCycle},
		{Name: scheduler.JobReply, Spec: every(sched.ReplyInterval), Run: s.Replier.RunCycle},
		{Name: scheduler.JobReset, Spec: sched.DailyReset, Run: func(ctx context.Context) error {
			_, err := s.Reset.Run(ctx)
			return err
		}},
	}
	for _, j := range jobs {
		if err := s.Scheduler.Add(j); err != nil {
			return err
		}
	}
	return nil
}

// Close releases the stores. Call Shutdown first when the scheduler ran.
func (s *Service) Close() error {
	return s.Stores.Close()
}

// Start launches the scheduler.
func (s *Service) Start() error {
	if err := s.Scheduler.Start(); err != nil {
		return err
	}
	s.Bus.Emit(model.EventStatus, "", "Scheduler started")
	return nil
}

// Stop pauses the scheduler.
func (s *Service) Stop() {
	s.Scheduler.Stop()
	s.Bus.Emit(model.EventStatus, "", "Scheduler stopped")
}

// Running reports whether the scheduler is firing jobs.
func (s *Service) Running() bool { return s.Scheduler.IsRunning() }

// RunNow triggers one job outside its schedule.
func (s *Service) RunNow(job string) error { return s.Scheduler.RunNow(job) }

// Shutdown stops the scheduler and waits for running jobs.
func (s *Service) Shutdown(ctx context.Context) error {
	return s.Scheduler.Shutdown(ctx)
}

// ApplyConfig publishes reloaded tunables to the running engines.
// Schedule and storage changes take effect on restart.
func (s *Service) ApplyConfig(cfg *model.AppConfig) {
	s.Settings.SetWarmup(cfg.Warmup)
	s.log.Info().
		Float64("reply_rate", cfg.Warmup.ReplyRate).
		Float64("bounce_threshold", cfg.Warmup.BounceThreshold).
		Msg("config reloaded")
	s.Bus.Emit(model.EventStatus, "", "Configuration reloaded")
}

// WatchConfig reloads path on change until ctx is done.
func (s *Service) WatchConfig(ctx context.Context, path string) error {
	return model.WatchConfig(ctx, path, s.ApplyConfig, func(err error) {
		s.log.Warn().Err(err).Msg("ignoring invalid config")
		s.Bus.Emit(model.EventWarning, "", "Config reload failed: "+err.Error())
	})
}

// ErrReadOnlyConfig is returned by SaveWarmup when no config file is set.
var ErrReadOnlyConfig = errors.New("no config file to save to")

// ErrPinnedByEnv is returned by SaveWarmup when a changed value is set in
// the process environment, which outranks the config file.
var ErrPinnedByEnv = errors.New("set in the environment")

// SaveWarmup validates w, writes it to the config file and applies it to
// the running engines. Overrides already present in a .env file are
// rewritten too, so the watcher reload keeps the saved values.
func (s *Service) SaveWarmup(w model.WarmupConfig) error {
	if s.configPath == "" {
		return ErrReadOnlyConfig
	}
	next := *s.Config
	next.Warmup = w
	if err := next.Validate(); err != nil {
		return err
	}
	if pinned := model.PinnedWarmupEnv(s.Settings.Warmup(), w); len(pinned) > 0 {
		return fmt.Errorf("%w: %s", ErrPinnedByEnv, strings.Join(pinned, ", "))
	}
	if err := model.SaveConfig(s.configPath, &next); err != nil {
		return err
	}
	if err := model.SyncDotEnv(s.configPath, w); err != nil {
		return err
	}
	s.ApplyConfig(&next)
	return nil
}

// SeedIfEmpty fills an empty recipient pool with synthetic addresses.
func (s *Service) SeedIfEmpty(ctx context.Context) (int, error) {
	n := s.Settings.Warmup().SeedRecipients
	if n <= 0 {
		return 0, nil
	}
	has, err := s.Stores.Recipients.HasRecords(ctx)
	if err != nil || has {
		return 0, err
	}
	return s.SeedRecipients(ctx, n)
}

// SeedRecipients adds n synthetic recipients.
func (s *Service) SeedRecipients(ctx context.Context, n int) (int, error) {
	added, err := s.Stores.Recipients.AddMany(ctx, s.Content.Recipients(n))
	if err != nil {
		return 0, fmt.Errorf("seeding recipients: %w", err)
	}
	s.journal.Record(ctx, model.LogInfo, "", "", "", fmt.Sprintf("seeded %d recipients", added))
	return added, nil
}

// Snapshot is what the dashboard shows.
type Snapshot struct {
	Inboxes    []model.Inbox
	Active     int
	Stats      model.DailyStats
	Recipients int
	Running    bool
	NextSend   string
	NextReply  string
	Dropped    uint64
}

// Snapshot reads the current dashboard state.
func (s *Service) Snapshot(ctx context.Context) (Snapshot, error) {
	inboxes, err := s.Stores.Inboxes.All(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	stats, err := s.Stores.Logs.Stats(ctx, store.StartOfDay(s.now()))
	if err != nil {
		return Snapshot{}, err
	}
	recipients, err := s.Stores.Recipients.Active(ctx)
	if err != nil {
		return Snapshot{}, err
	}

	snap := Snapshot{
		Inboxes:    inboxes,
		Stats:      stats,
		Recipients: len(recipients),
		Running:    s.Running(),
		NextSend:   s.Scheduler.NextRun(scheduler.JobWarmup),
		NextReply:  s.Scheduler.NextRun(scheduler.JobReply),
		Dropped:    s.Bus.Dropped(),
	}
	for _, in := range inboxes {
		if in.IsActive() {
			snap.Active++
		}
	}
	return snap, nil
}

// ErrNoPassword is returned when an inbox is added without a password.
var ErrNoPassword = errors.New("password is required")

// AddInbox validates and stores a new inbox. When the keyring is enabled
// the password is kept there and the CSV column is left blank. With
// verify set, the SMTP and IMAP logins are checked first.
func (s *Service) AddInbox(ctx context.Context, in model.Inbox, verify bool) error {
	in.Email = strings.TrimSpace(in.Email)
	if model.DomainOf(in.Email) == "" {
		return fmt.Errorf("invalid email address %q", in.Email)
	}
	if in.Password == "" {
		return ErrNoPassword
	}
	in.Stage = ramp.ClampStage(in.Stage)
	in.DailyLimit = ramp.DailyLimit(in.Stage)
	if in.WorkStart == "" {
		in.WorkStart = s.Settings.Warmup().WorkStart
	}
	if in.WorkEnd == "" {
		in.WorkEnd = s.Settings.Warmup().WorkEnd
	}

	if verify {
		if err := s.TestInbox(ctx, in); err != nil {
			return err
		}
	}

	if s.Keyring != nil {
		if err := s.Keyring.Set(credential.InboxKey(in.Email), in.Password); err != nil {
			return fmt.Errorf("saving password: %w", err)
		}
		in.Password = ""
	}
	if err := s.Stores.Inboxes.Add(ctx, in); err != nil {
		return err
	}
	s.Metrics.SetStage(in.Email, in.Stage)
	s.journal.Record(ctx, model.LogInfo, in.Email, "", "", "inbox added")
	s.journal.Emit(model.EventStatus, in.Email, "Inbox added")
	return nil
}

// TestInbox checks SMTP and IMAP logins for in.
func (s *Service) TestInbox(ctx context.Context, in model.Inbox) error {
	password := in.Password
	if password == "" && s.Keyring != nil {
		var err error
		if password, err = s.Keyring.Password(in); err != nil {
			return err
		}
	}
	if password == "" {
		return ErrNoPassword
	}
	return email.CheckAccount(ctx, s.SMTP, s.IMAP, email.AccountFor(in, password))
}

// TestStoredInbox checks the logins of an inbox already in the store.
func (s *Service) TestStoredInbox(ctx context.Context, addr string) error {
	in, err := s.Stores.Inboxes.Get(ctx, addr)
	if err != nil {
		return err
	}
	return s.TestInbox(ctx, in)
}

// RemoveInbox deletes an inbox and its stored password.
func (s *Service) RemoveInbox(ctx context.Context, addr string) error {
	if err := s.Stores.Inboxes.Delete(ctx, addr); err != nil {
		return err
	}
	if s.Keyring != nil {
		if err := s.Keyring.Delete(credential.InboxKey(addr)); err != nil {
			s.log.Warn().Err(err).Str("inbox", addr).Msg("removing stored password")
		}
	}
	s.journal.Record(ctx, model.LogInfo, addr, "", "", "inbox removed")
	s.journal.Emit(model.EventStatus, addr, "Inbox removed")
	return nil
}

// PauseInbox stops sending from an inbox.
func (s *Service) PauseInbox(ctx context.Context, addr, reason string) error {
	if reason == "" {
		reason = "Paused manually"
	}
	if err := s.Stores.Inboxes.Pause(ctx, addr, reason); err != nil {
		return err
	}
	s.journal.Record(ctx, model.LogPause, addr, "", "", reason)
	s.journal.Emit(model.EventPause, addr, reason)
	return nil
}

// ResumeInbox reactivates a paused or failed inbox.
func (s *Service) ResumeInbox(ctx context.Context, addr string) error {
	if err := s.Stores.Inboxes.Resume(ctx, addr); err != nil {
		return err
	}
	s.journal.Record(ctx, model.LogResume, addr, "", "", "resumed")
	s.journal.Emit(model.EventResume, addr, "Resumed")
	return nil
}

// ToggleInbox pauses an active inbox or resumes any other.
func (s *Service) ToggleInbox(ctx context.Context, addr string) error {
	in, err := s.Stores.Inboxes.Get(ctx, addr)
	if err != nil {
		return err
	}
	if in.IsActive() {
		return s.PauseInbox(ctx, addr, "")
	}
	return s.ResumeInbox(ctx, addr)
}

// SetStage moves an inbox to stage and updates its quota.
func (s *Service) SetStage(ctx context.Context, addr string, stage int) error {
	if err := s.Stores.Inboxes.SetStage(ctx, addr, stage); err != nil {
		return err
	}
	limit := ramp.DailyLimit(stage)
	s.Metrics.SetStage(addr, stage)
	s.journal.Record(ctx, model.LogStage, addr, "", "", fmt.Sprintf("stage=%d daily_limit=%d (manual)", stage, limit))
	s.journal.Emit(model.EventStageAdvance, addr, fmt.Sprintf("Stage set to %d, daily limit %d", stage, limit))
	return nil
}

// ResetCounters zeroes today's sends for one inbox, or all when addr is "".
func (s *Service) ResetCounters(ctx context.Context, addr string) error {
	if err := s.Reset.ResetCounters(ctx, addr); err != nil {
		return err
	}
	target := addr
	if target == "" {
		target = "all inboxes"
	}
	s.Bus.Emit(model.EventStatus, addr, "Counters reset for "+target)
	return nil
}

// InboxDetail returns an inbox and its most recent log rows.
func (s *Service) InboxDetail(ctx context.Context, addr string, n int) (model.Inbox, []model.LogEntry, error) {
	in, err := s.Stores.Inboxes.Get(ctx, addr)
	if err != nil {
		return model.Inbox{}, nil, err
	}
	logs, err := s.Stores.Logs.ForInbox(ctx, addr, n)
	if err != nil {
		return in, nil, err
	}
	return in, logs, nil
}

// AddRecipient adds one address to the pool. It reports false when the
// address was already present.
func (s *Service) AddRecipient(ctx context.Context, addr, name string) (bool, error) {
	addr = strings.TrimSpace(addr)
	if model.DomainOf(addr) == "" {
		return false, fmt.Errorf("invalid email address %q", addr)
	}
	return s.Stores.Recipients.Add(ctx, model.NewRecipient(addr, name))
}

// Recipients lists the whole pool, active or not.
func (s *Service) Recipients(ctx context.Context) ([]model.Recipient, error) {
	return s.Stores.Recipients.All(ctx)
}

// DeactivateRecipient keeps an address on file but stops sending to it.
func (s *Service) DeactivateRecipient(ctx context.Context, addr string) error {
	return s.Stores.Recipients.Deactivate(ctx, addr)
}

// DeleteRecipient removes an address from the pool.
func (s *Service) DeleteRecipient(ctx context.Context, addr string) error {
	return s.Stores.Recipients.Delete(ctx, addr)
}

// RecentLogs returns the latest n activity rows, newest first.
func (s *Service) RecentLogs(ctx context.Context, n int) ([]model.LogEntry, error) {
	return s.Stores.Logs.Recent(ctx, n)
}

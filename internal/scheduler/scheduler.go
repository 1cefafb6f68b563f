// Package scheduler runs the periodic warm-up jobs on a cron clock and
// one-shot deferred work on timers.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/nhle/phoenix-warmup/internal/metrics"
)

// Job names used by the application.
const (
	JobWarmup = "warmup"
	JobReply  = "reply"
	JobReset  = "daily_reset"
)

// ErrUnknownJob is returned for a job name that was never added.
var ErrUnknownJob = errors.New("unknown job")

// Job is a named periodic task. Spec is a cron expression with a
// seconds field, or a descriptor such as "@every 60s".
type Job struct {
	Name    string
	Spec    string
	Timeout time.Duration
	Run     func(ctx context.Context) error
}

// Options configures a Scheduler.
type Options struct {
	Location *time.Location
	Log      zerolog.Logger
	Metrics  *metrics.Metrics

	// OnError is called when a job returns an error or panics.
	OnError func(job string, err error)
}

type entry struct {
	job   Job
	id    cron.EntryID
	guard sync.Mutex
}

// Scheduler owns the cron instance. Each job runs at most once at a
// time; a tick that finds the job still running is skipped.
type Scheduler struct {
	opts Options

	mu      sync.Mutex
	c       *cron.Cron
	jobs    map[string]*entry
	order   []string
	running bool
	closed  bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	tmu    sync.Mutex
	timers map[string]*time.Timer
}

// New returns a stopped scheduler.
func New(opts Options) *Scheduler {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		opts:   opts,
		jobs:   make(map[string]*entry),
		ctx:    ctx,
		cancel: cancel,
		timers: make(map[string]*time.Timer),
	}
}

// Add registers a job. Jobs added while running are scheduled at once.
func (s *Scheduler) Add(j Job) error {
	if j.Name == "" || j.Run == nil {
		return errors.New("job needs a name and a run func")
	}
	if _, err := secondsParser.Parse(j.Spec); err != nil {
		return fmt.Errorf("job %s: invalid schedule %q: %w", j.Name, j.Spec, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.jobs[j.Name]; dup {
		return fmt.Errorf("job %s already added", j.Name)
	}
	e := &entry{job: j}
	s.jobs[j.Name] = e
	s.order = append(s.order, j.Name)
	if s.running {
		return s.scheduleLocked(e)
	}
	return nil
}

var secondsParser = cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

func (s *Scheduler) scheduleLocked(e *entry) error {
	id, err := s.c.AddFunc(e.job.Spec, func() { s.execute(e) })
	if err != nil {
		return fmt.Errorf("scheduling %s: %w", e.job.Name, err)
	}
	e.id = id
	return nil
}

// Start begins firing jobs. Calling Start on a running scheduler does
// nothing.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New("scheduler shut down")
	}
	if s.running {
		return nil
	}

	cl := cronLogger{s.opts.Log}
	s.c = cron.New(
		cron.WithParser(secondsParser),
		cron.WithLocation(s.opts.Location),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	for _, name := range s.order {
		if err := s.scheduleLocked(s.jobs[name]); err != nil {
			return err
		}
	}
	s.c.Start()
	s.running = true
	s.opts.Log.Info().Int("jobs", len(s.order)).Str("tz", s.opts.Location.String()).Msg("scheduler started")
	return nil
}

// Resume restarts a stopped scheduler.
func (s *Scheduler) Resume() error { return s.Start() }

// Stop pauses periodic jobs and cancels pending one-shot work. Jobs
// already running finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	c := s.c
	s.c = nil
	s.running = false
	s.mu.Unlock()

	<-c.Stop().Done()
	s.cancelTimers()
	s.opts.Log.Info().Msg("scheduler stopped")
}

// Shutdown stops the scheduler, cancels the context handed to running
// jobs and waits for them until ctx is done.
func (s *Scheduler) Shutdown(ctx context.Context) error {
	s.Stop()

	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for jobs: %w", ctx.Err())
	}
}

// IsRunning reports whether periodic jobs are firing.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// NextRun returns the next fire time of a job as HH:MM:SS, or
// "--:--:--" when the scheduler is stopped or the job is unknown.
func (s *Scheduler) NextRun(name string) string {
	if t, ok := s.NextRunTime(name); ok {
		return t.In(s.opts.Location).Format("15:04:05")
	}
	return "--:--:--"
}

// NextRunTime returns the next fire time of a job.
func (s *Scheduler) NextRunTime(name string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.jobs[name]
	if !ok || !s.running {
		return time.Time{}, false
	}
	next := s.c.Entry(e.id).Next
	return next, !next.IsZero()
}

// RunNow runs a job in the background outside its schedule. It is
// skipped if the job is already running.
func (s *Scheduler) RunNow(name string) error {
	s.mu.Lock()
	e, ok := s.jobs[name]
	closed := s.closed
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}
	if closed {
		return errors.New("scheduler shut down")
	}
	go s.execute(e)
	return nil
}

// After runs fn once after delay. A pending call with the same name is
// replaced.
func (s *Scheduler) After(name string, delay time.Duration, fn func(ctx context.Context)) {
	s.tmu.Lock()
	defer s.tmu.Unlock()

	if t, ok := s.timers[name]; ok {
		t.Stop()
	}
	var t *time.Timer
	t = time.AfterFunc(delay, func() {
		s.tmu.Lock()
		if s.timers[name] != t {
			s.tmu.Unlock()
			return
		}
		delete(s.timers, name)
		s.tmu.Unlock()

		_ = s.run(name, func(ctx context.Context) error {
			fn(ctx)
			return nil
		}, 0)
	})
	s.timers[name] = t
}

// Pending returns how many one-shot calls are waiting.
func (s *Scheduler) Pending() int {
	s.tmu.Lock()
	defer s.tmu.Unlock()
	return len(s.timers)
}

func (s *Scheduler) cancelTimers() {
	s.tmu.Lock()
	defer s.tmu.Unlock()
	for name, t := range s.timers {
		t.Stop()
		delete(s.timers, name)
	}
}

func (s *Scheduler) execute(e *entry) {
	if !e.guard.TryLock() {
		s.opts.Log.Debug().Str("job", e.job.Name).Msg("job still running, skipped")
		return
	}
	defer e.guard.Unlock()

	err := s.run(e.job.Name, e.job.Run, e.job.Timeout)
	s.opts.Metrics.JobRun(e.job.Name, err)
}

// run executes fn with panic recovery, reporting failures.
func (s *Scheduler) run(name string, fn func(ctx context.Context) error, timeout time.Duration) (err error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.wg.Add(1)
	s.mu.Unlock()
	defer s.wg.Done()

	ctx := s.ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
			s.opts.Log.Error().Str("job", name).Str("stack", string(debug.Stack())).Msg("job panicked")
		}
		if err != nil {
			s.opts.Log.Warn().Err(err).Str("job", name).Msg("job failed")
			if s.opts.OnError != nil {
				s.opts.OnError(name, err)
			}
			return
		}
		s.opts.Log.Debug().Str("job", name).Dur("took", time.Since(start)).Msg("job ok")
	}()

	return fn(ctx)
}

// cronLogger adapts zerolog to the cron.Logger interface.
type cronLogger struct{ l zerolog.Logger }

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.l.Debug().Fields(keysAndValues).Msg(msg)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.l.Error().Err(err).Fields(keysAndValues).Msg(msg)
}

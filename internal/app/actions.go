package app

import (
	"context"
	"fmt"
	"strconv"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/phoenix-warmup/internal/scheduler"
	"github.com/nhle/phoenix-warmup/internal/ui/detail"
)

// opTimeout bounds one UI-triggered operation.
const opTimeout = 30 * time.Second

// shutdownTimeout bounds the wait for running jobs on quit.
const shutdownTimeout = 10 * time.Second

// opResultMsg reports the outcome of a background operation.
type opResultMsg struct {
	notice string
	err    error
}

// do runs fn off the UI goroutine and reports notice on success.
func (m Model) do(notice string, fn func(ctx context.Context) error) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()
		return opResultMsg{notice: notice, err: fn(ctx)}
	}
}

func (m Model) toggleScheduler() tea.Cmd {
	svc := m.svc
	if svc.Running() {
		return m.do("Scheduler stopped", func(context.Context) error {
			svc.Stop()
			return nil
		})
	}
	return m.do("Scheduler started", func(context.Context) error {
		return svc.Start()
	})
}

func (m Model) runJob(job string) tea.Cmd {
	svc := m.svc
	label := map[string]string{
		scheduler.JobWarmup: "Send cycle started",
		scheduler.JobReply:  "Reply cycle started",
		scheduler.JobReset:  "Daily reset started",
	}[job]
	return m.do(label, func(context.Context) error {
		return svc.RunNow(job)
	})
}

func (m Model) togglePause(email string) tea.Cmd {
	svc := m.svc
	return m.do("Updated "+email, func(ctx context.Context) error {
		return svc.ToggleInbox(ctx, email)
	})
}

func (m Model) setStage(email string, stage int) tea.Cmd {
	svc := m.svc
	return m.do(fmt.Sprintf("%s moved to stage %d", email, stage), func(ctx context.Context) error {
		return svc.SetStage(ctx, email, stage)
	})
}

func (m Model) resetCounters(email string) tea.Cmd {
	svc := m.svc
	target := email
	if target == "" {
		target = "all inboxes"
	}
	return m.do("Counters reset for "+target, func(ctx context.Context) error {
		return svc.ResetCounters(ctx, email)
	})
}

func (m Model) testInbox(email string) tea.Cmd {
	svc := m.svc
	return m.do(email+": SMTP and IMAP login OK", func(ctx context.Context) error {
		return svc.TestStoredInbox(ctx, email)
	})
}

func (m Model) removeInbox(email string) tea.Cmd {
	svc := m.svc
	return m.do("Removed "+email, func(ctx context.Context) error {
		return svc.RemoveInbox(ctx, email)
	})
}

func (m Model) seed(arg string) tea.Cmd {
	n, err := strconv.Atoi(arg)
	if arg == "" {
		n, err = 50, nil
	}
	if err != nil || n < 1 {
		return func() tea.Msg { return opResultMsg{err: fmt.Errorf("seed: want a positive count, got %q", arg)} }
	}
	svc := m.svc
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()
		added, err := svc.SeedRecipients(ctx, n)
		return opResultMsg{notice: fmt.Sprintf("Seeded %d recipients", added), err: err}
	}
}

func (m Model) loadDetail(email string) tea.Cmd {
	svc := m.svc
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()
		in, logs, err := svc.InboxDetail(ctx, email, detail.LogRows)
		return detail.LoadedMsg{Inbox: in, Logs: logs, Err: err}
	}
}

// shutdown stops the scheduler, waits for running jobs and quits.
func (m Model) shutdown() tea.Cmd {
	svc := m.svc
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = svc.Shutdown(ctx)
		return tea.Quit()
	}
}

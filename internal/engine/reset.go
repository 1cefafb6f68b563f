package engine

import (
	"context"
	"fmt"

	"github.com/nhle/phoenix-warmup/internal/model"
	"github.com/nhle/phoenix-warmup/internal/ramp"
)

// Promoted records a stage change made by the daily reset.
type Promoted struct {
	Inbox string
	Stage int
	Limit int
}

// DailyReset closes one day for every inbox.
type DailyReset struct {
	Deps
	journal *Journal
}

// NewDailyReset returns the reset job.
func NewDailyReset(deps Deps) *DailyReset {
	deps.defaults()
	return &DailyReset{Deps: deps, journal: NewJournal(deps.Logs, deps.Bus, deps.Log, deps.Now)}
}

// Run updates quota streaks, promotes inboxes that earned it, and zeroes
// the daily counters.
func (d *DailyReset) Run(ctx context.Context) ([]Promoted, error) {
	promoteAfter := d.Settings.Warmup().PromoteAfterDays

	var promoted []Promoted
	rows, err := d.Inboxes.ModifyAll(ctx, func(in *model.Inbox) {
		p := ramp.EvaluateDay(in.Stage, in.QuotaStreak, in.QuotaMet(), promoteAfter)
		in.Stage = p.Stage
		in.QuotaStreak = p.Streak
		in.DailySent = 0
		in.DailyLimit = ramp.DailyLimit(p.Stage)
		in.NextSendAt = model.Timestamp{}
		if p.Promoted {
			promoted = append(promoted, Promoted{Inbox: in.Email, Stage: p.Stage, Limit: in.DailyLimit})
		}
	})
	if err != nil {
		return nil, fmt.Errorf("resetting inboxes: %w", err)
	}

	for _, p := range promoted {
		d.journal.Record(ctx, model.LogStage, p.Inbox, "", "", fmt.Sprintf("stage=%d daily_limit=%d", p.Stage, p.Limit))
		d.journal.Emit(model.EventStageAdvance, p.Inbox, fmt.Sprintf("Promoted to Stage %d! Daily limit now %d", p.Stage, p.Limit))
	}
	for _, in := range rows {
		d.Metrics.SetStage(in.Email, in.Stage)
	}

	d.journal.Record(ctx, model.LogReset, "", "", "", fmt.Sprintf("daily counters reset for %d inboxes", len(rows)))
	d.journal.Emit(model.EventStatus, "", "Daily counters reset")
	d.Log.Info().Int("inboxes", len(rows)).Int("promoted", len(promoted)).Msg("daily reset")
	return promoted, nil
}

// ResetCounters zeroes today's sends for one inbox, or all inboxes when
// email is empty, without evaluating promotion.
func (d *DailyReset) ResetCounters(ctx context.Context, email string) error {
	zero := func(in *model.Inbox) {
		in.DailySent = 0
		in.DailyLimit = ramp.DailyLimit(in.Stage)
		in.NextSendAt = model.Timestamp{}
	}
	if email == "" {
		if _, err := d.Inboxes.ModifyAll(ctx, zero); err != nil {
			return fmt.Errorf("resetting counters: %w", err)
		}
	} else {
		_, err := d.Inboxes.Modify(ctx, email, func(in *model.Inbox) error { zero(in); return nil })
		if err != nil {
			return fmt.Errorf("resetting counters: %w", err)
		}
	}
	d.journal.Record(ctx, model.LogReset, email, "", "", "counters reset manually")
	return nil
}

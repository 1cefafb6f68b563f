package engine

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/nhle/phoenix-warmup/internal/email"
	"github.com/nhle/phoenix-warmup/internal/model"
	"github.com/nhle/phoenix-warmup/internal/ramp"
)

// Pause reasons written to paused_reason.
const (
	ReasonBounceRate = "Auto-paused: bounce rate exceeded threshold"
	ReasonAuthFailed = "Authentication failed"
)

var errSoftFailure = errors.New("soft failure")

// Warmup runs the send cycle.
type Warmup struct {
	Deps
	sender  Sender
	journal *Journal
	rng     *lockedRand

	mu       sync.Mutex
	limiter  *rate.Limiter
	perMin   int
	breakers map[string]*gobreaker.CircuitBreaker
}

// NewWarmup returns a send engine delivering through sender.
func NewWarmup(deps Deps, sender Sender) *Warmup {
	deps.defaults()
	return &Warmup{
		Deps:     deps,
		sender:   sender,
		journal:  NewJournal(deps.Logs, deps.Bus, deps.Log, deps.Now),
		rng:      newLockedRand(deps.Seed),
		breakers: make(map[string]*gobreaker.CircuitBreaker),
	}
}

// RunCycle makes at most one send per active inbox. Cycles never
// overlap.
func (w *Warmup) RunCycle(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	inboxes, err := w.Inboxes.Active(ctx)
	if err != nil {
		return fmt.Errorf("loading inboxes: %w", err)
	}
	if len(inboxes) == 0 {
		return nil
	}

	has, err := w.Recipients.HasRecords(ctx)
	if err != nil {
		return fmt.Errorf("loading recipients: %w", err)
	}
	if !has {
		w.journal.Emit(model.EventWarning, "", "No recipients configured")
		return nil
	}

	set := w.Settings.Warmup()
	w.applyRate(set.MaxSendsPerMinute)

	for _, in := range inboxes {
		if err := ctx.Err(); err != nil {
			return err
		}
		w.processInbox(ctx, in, set)
	}
	return nil
}

func (w *Warmup) applyRate(perMin int) {
	perMin = max(perMin, 1)
	if w.limiter != nil && w.perMin == perMin {
		return
	}
	limit := rate.Every(time.Minute / time.Duration(perMin))
	if w.limiter == nil {
		w.limiter = rate.NewLimiter(limit, perMin)
	} else {
		w.limiter.SetLimit(limit)
		w.limiter.SetBurst(perMin)
	}
	w.perMin = perMin
}

func workingHours(in model.Inbox, set model.WarmupConfig) (string, string) {
	start, end := in.WorkStart, in.WorkEnd
	if strings.TrimSpace(start) == "" {
		start = set.WorkStart
	}
	if strings.TrimSpace(end) == "" {
		end = set.WorkEnd
	}
	return start, end
}

func (w *Warmup) processInbox(ctx context.Context, in model.Inbox, set model.WarmupConfig) {
	log := w.Log.With().Str("inbox", in.Email).Logger()
	now := w.Now().In(w.Location)

	start, end := workingHours(in, set)
	if !ramp.WithinWorkingHours(now, start, end) {
		log.Debug().Str("window", start+"-"+end).Msg("outside working hours")
		return
	}
	if !ramp.ShouldSend(in.DailySent, in.DailyLimit) {
		log.Debug().Int("sent", in.DailySent).Int("limit", in.DailyLimit).Msg("daily quota reached")
		return
	}
	if !in.Due(now) {
		return
	}
	if !w.limiter.AllowN(now, 1) {
		log.Debug().Msg("global send rate reached")
		return
	}

	rcpt, ok, err := w.Recipients.LeastUsed(ctx, in.Email)
	if err != nil {
		log.Error().Err(err).Msg("picking recipient")
		return
	}
	if !ok {
		w.journal.Emit(model.EventWarning, in.Email, "No recipients configured")
		return
	}

	password, err := w.Passwords.Password(in)
	if err != nil {
		w.journal.Record(ctx, model.LogError, in.Email, "", "", err.Error())
		w.journal.Emit(model.EventError, in.Email, err.Error())
		return
	}
	acct := email.AccountFor(in, password)

	msg := w.Content.Email(in.SenderName(), rcpt.Greeting())
	out := email.Outgoing{To: rcpt.Email, ToName: rcpt.Name, Subject: msg.Subject, Body: msg.Body}

	cb := w.breaker(in.Email, set.MaxConsecutiveErrors)
	var res email.SendResult
	_, cbErr := cb.Execute(func() (any, error) {
		res = w.sender.Send(ctx, acct, out)
		if !res.Success && !res.HardBounce && !res.AuthFailure {
			return nil, errSoftFailure
		}
		return nil, nil
	})

	if errors.Is(cbErr, gobreaker.ErrOpenState) || errors.Is(cbErr, gobreaker.ErrTooManyRequests) {
		w.tripBreaker(ctx, in, set.MaxConsecutiveErrors)
		return
	}

	if err := w.Recipients.RecordUse(ctx, rcpt.Email, now); err != nil {
		log.Warn().Err(err).Str("recipient", rcpt.Email).Msg("recording recipient use")
	}

	switch {
	case res.Success:
		w.onSuccess(ctx, in, rcpt.Email, msg.Subject, res, now)
	case res.AuthFailure:
		w.onAuthFailure(ctx, in, res)
	case res.HardBounce:
		w.onHardBounce(ctx, in, rcpt.Email, msg.Subject, res, now, set.BounceThreshold)
	default:
		w.onSoftFailure(ctx, in, rcpt.Email, msg.Subject, res)
		if cb.State() == gobreaker.StateOpen {
			w.tripBreaker(ctx, in, set.MaxConsecutiveErrors)
		}
	}
}

// breaker returns the per-inbox circuit breaker, which opens after
// limit consecutive soft failures.
func (w *Warmup) breaker(inbox string, limit int) *gobreaker.CircuitBreaker {
	key := strings.ToLower(inbox)
	if cb, ok := w.breakers[key]; ok {
		return cb
	}
	limit = max(limit, 1)
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        inbox,
		MaxRequests: 1,
		Timeout:     time.Hour,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= uint32(limit)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			w.Log.Info().Str("inbox", name).Str("from", from.String()).Str("to", to.String()).Msg("send breaker state changed")
		},
	})
	w.breakers[key] = cb
	return cb
}

func (w *Warmup) tripBreaker(ctx context.Context, in model.Inbox, limit int) {
	delete(w.breakers, strings.ToLower(in.Email))
	reason := fmt.Sprintf("Auto-paused: %d consecutive send failures", max(limit, 1))
	w.pause(ctx, in.Email, reason)
}

func (w *Warmup) pause(ctx context.Context, inbox, reason string) {
	if err := w.Inboxes.Pause(ctx, inbox, reason); err != nil {
		w.Log.Error().Err(err).Str("inbox", inbox).Msg("pausing inbox")
	}
	w.journal.Record(ctx, model.LogPause, inbox, "", "", reason)
	w.journal.Emit(model.EventPause, inbox, reason)
	w.Metrics.Paused(reason)
}

func (w *Warmup) onSuccess(ctx context.Context, in model.Inbox, to, subject string, res email.SendResult, now time.Time) {
	var delay time.Duration
	w.rng.with(func(r *rand.Rand) { delay = ramp.SendDelay(r, in.Stage) })

	_, err := w.Inboxes.Modify(ctx, in.Email, func(row *model.Inbox) error {
		row.DailySent++
		row.LastSentAt = model.At(now)
		row.NextSendAt = model.At(now.Add(delay))
		return nil
	})
	if err != nil {
		w.Log.Error().Err(err).Str("inbox", in.Email).Msg("recording send")
	}

	w.journal.Record(ctx, model.LogSend, in.Email, to, subject, "message_id="+res.MessageID)
	w.journal.Emit(model.EventSend, in.Email, fmt.Sprintf("Sent to %s | %s", to, clip(subject, 40)))
	w.Metrics.Sent(in.Email, res.Duration)
	w.Log.Info().Str("inbox", in.Email).Str("to", to).Dur("next_in", delay).Msg("sent")
}

func (w *Warmup) onAuthFailure(ctx context.Context, in model.Inbox, res email.SendResult) {
	delete(w.breakers, strings.ToLower(in.Email))
	if err := w.Inboxes.MarkError(ctx, in.Email, ReasonAuthFailed); err != nil {
		w.Log.Error().Err(err).Str("inbox", in.Email).Msg("marking inbox error")
	}
	w.journal.Record(ctx, model.LogError, in.Email, "", "", ReasonAuthFailed+": "+res.Message)
	w.journal.Emit(model.EventError, in.Email, "Authentication failed, check credentials")
	w.Metrics.Failed(in.Email, "auth")
}

func (w *Warmup) onHardBounce(ctx context.Context, in model.Inbox, to, subject string, res email.SendResult, now time.Time, threshold float64) {
	w.journal.Record(ctx, model.LogBounce, in.Email, to, subject, fmt.Sprintf("%d %s", res.Code, res.Message))
	w.Metrics.Bounced(in.Email)
	if err := w.Recipients.Deactivate(ctx, to); err != nil {
		w.Log.Warn().Err(err).Str("recipient", to).Msg("deactivating recipient")
	}

	since := now.Add(-24 * time.Hour)
	sent, err1 := w.Logs.Count(ctx, in.Email, model.LogSend, since)
	bounced, err2 := w.Logs.Count(ctx, in.Email, model.LogBounce, since)
	if err := errors.Join(err1, err2); err != nil {
		w.Log.Error().Err(err).Str("inbox", in.Email).Msg("computing bounce rate")
	} else if ramp.BounceRateExceeded(sent, bounced, threshold) {
		w.pause(ctx, in.Email, ReasonBounceRate)
		return
	}

	w.journal.Emit(model.EventBounce, in.Email, "Hard bounce from "+to)
}

func (w *Warmup) onSoftFailure(ctx context.Context, in model.Inbox, to, subject string, res email.SendResult) {
	details := res.Message
	if res.Code != 0 {
		details = fmt.Sprintf("Soft bounce: %d %s", res.Code, res.Message)
	}
	w.journal.Record(ctx, model.LogError, in.Email, to, subject, details)
	w.journal.Emit(model.EventError, in.Email, "Send failed: "+clip(details, 80))
	w.Metrics.Failed(in.Email, "soft")
}

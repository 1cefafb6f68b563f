// Package ramp holds the stage-based warm-up schedule: daily quotas, send
// intervals, working-hours windows and the bounce gate. Everything here is
// a pure function of its inputs.
package ramp

import (
	"fmt"
	"math"
	"math/rand/v2"
	"time"
)

// MaxStage is the final warm-up stage.
const MaxStage = 4

var stageLimits = map[int]int{
	1: 5,
	2: 15,
	3: 25,
	4: 40,
}

// Interval is a closed range of seconds.
type Interval struct {
	Min, Max int
}

var sendIntervals = map[int]Interval{
	1: {1800, 10800},
	2: {900, 5400},
	3: {600, 3600},
	4: {300, 2400},
}

// ReplyDelayRange bounds the pause before answering an incoming message.
var ReplyDelayRange = Interval{300, 2700}

// DailyLimit returns the send quota for stage. Unknown stages get the
// stage 1 quota.
func DailyLimit(stage int) int {
	if n, ok := stageLimits[stage]; ok {
		return n
	}
	return stageLimits[1]
}

// SendInterval returns the gap range between sends for stage.
func SendInterval(stage int) Interval {
	if iv, ok := sendIntervals[stage]; ok {
		return iv
	}
	return sendIntervals[1]
}

// ClampStage forces stage into 1..MaxStage.
func ClampStage(stage int) int {
	return max(1, min(stage, MaxStage))
}

// NextStage returns the stage after current, capped at MaxStage.
func NextStage(current int) int {
	return min(current+1, MaxStage)
}

// ShouldSend reports whether the quota allows another send today.
func ShouldSend(sent, limit int) bool {
	return sent < limit
}

// SendDelay draws the wait before the next send for stage: uniform over
// the stage range plus gaussian jitter of 5% of the range, never below
// half the minimum.
func SendDelay(r *rand.Rand, stage int) time.Duration {
	iv := SendInterval(stage)
	span := float64(iv.Max - iv.Min)
	base := float64(iv.Min) + r.Float64()*span
	jitter := r.NormFloat64() * span * 0.05
	secs := math.Max(float64(iv.Min)*0.5, base+jitter)
	return time.Duration(int(secs)) * time.Second
}

// ReplyDelay draws the wait before answering a message.
func ReplyDelay(r *rand.Rand) time.Duration {
	iv := ReplyDelayRange
	secs := iv.Min + r.IntN(iv.Max-iv.Min+1)
	return time.Duration(secs) * time.Second
}

// ParseClock parses "HH:MM" into minutes after midnight.
func ParseClock(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("invalid time %q: want HH:MM", s)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// WithinWorkingHours reports whether now falls inside the inclusive
// [start, end] window. A window whose start is after its end wraps past
// midnight. Unparseable bounds never block sending.
func WithinWorkingHours(now time.Time, start, end string) bool {
	s, err := ParseClock(start)
	if err != nil {
		return true
	}
	e, err := ParseClock(end)
	if err != nil {
		return true
	}
	cur := now.Hour()*60 + now.Minute()
	if s <= e {
		return s <= cur && cur <= e
	}
	return cur >= s || cur <= e
}

// BounceRateExceeded reports whether bounced/sent is above threshold.
// No sends means no verdict.
func BounceRateExceeded(sent, bounced int, threshold float64) bool {
	if sent <= 0 {
		return false
	}
	return float64(bounced)/float64(sent) > threshold
}

// Promotion is the outcome of the end-of-day evaluation for one inbox.
type Promotion struct {
	Stage    int
	Streak   int
	Promoted bool
}

// EvaluateDay updates the full-quota streak and decides whether the inbox
// advances. A stage moves up after promoteAfter consecutive days of
// meeting the quota; the streak restarts after a promotion or a short day.
func EvaluateDay(stage, streak int, quotaMet bool, promoteAfter int) Promotion {
	stage = ClampStage(stage)
	if !quotaMet {
		return Promotion{Stage: stage}
	}
	streak++
	if stage < MaxStage && streak >= max(promoteAfter, 1) {
		return Promotion{Stage: NextStage(stage), Promoted: true}
	}
	return Promotion{Stage: stage, Streak: streak}
}

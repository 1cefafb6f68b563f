package ramp

import (
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDailyLimit(t *testing.T) {
	assert.Equal(t, 5, DailyLimit(1))
	assert.Equal(t, 15, DailyLimit(2))
	assert.Equal(t, 25, DailyLimit(3))
	assert.Equal(t, 40, DailyLimit(4))
	assert.Equal(t, 5, DailyLimit(9), "unknown stage falls back to stage 1")
}

func TestNextStageCaps(t *testing.T) {
	assert.Equal(t, 2, NextStage(1))
	assert.Equal(t, MaxStage, NextStage(MaxStage))
	assert.Equal(t, 1, ClampStage(0))
	assert.Equal(t, MaxStage, ClampStage(7))
}

func TestShouldSend(t *testing.T) {
	assert.True(t, ShouldSend(4, 5))
	assert.False(t, ShouldSend(5, 5))
}

func TestSendDelayStaysInBounds(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))
	for stage := 1; stage <= MaxStage; stage++ {
		iv := SendInterval(stage)
		floor := time.Duration(iv.Min/2) * time.Second
		// jitter can push slightly past Max; 5 sigma is a safe ceiling
		ceil := time.Duration(float64(iv.Max)+float64(iv.Max-iv.Min)*0.25) * time.Second
		for range 500 {
			d := SendDelay(r, stage)
			assert.GreaterOrEqual(t, d, floor)
			assert.LessOrEqual(t, d, ceil)
		}
	}
}

func TestReplyDelayRange(t *testing.T) {
	r := rand.New(rand.NewPCG(3, 4))
	for range 200 {
		d := ReplyDelay(r)
		assert.GreaterOrEqual(t, d, 300*time.Second)
		assert.LessOrEqual(t, d, 2700*time.Second)
	}
}

func TestWithinWorkingHours(t *testing.T) {
	at := func(h, m int) time.Time {
		return time.Date(2024, 1, 1, h, m, 0, 0, time.Local)
	}

	assert.True(t, WithinWorkingHours(at(8, 0), "08:00", "18:00"), "start is inclusive")
	assert.True(t, WithinWorkingHours(at(18, 0), "08:00", "18:00"), "end is inclusive")
	assert.False(t, WithinWorkingHours(at(7, 59), "08:00", "18:00"))
	assert.False(t, WithinWorkingHours(at(18, 1), "08:00", "18:00"))

	assert.True(t, WithinWorkingHours(at(23, 0), "22:00", "06:00"))
	assert.True(t, WithinWorkingHours(at(5, 30), "22:00", "06:00"))
	assert.False(t, WithinWorkingHours(at(12, 0), "22:00", "06:00"))

	assert.True(t, WithinWorkingHours(at(3, 0), "bogus", "18:00"))
}

func TestBounceRateExceeded(t *testing.T) {
	assert.False(t, BounceRateExceeded(0, 3, 0.05))
	assert.False(t, BounceRateExceeded(20, 1, 0.05), "exactly at threshold")
	assert.True(t, BounceRateExceeded(20, 2, 0.05))
}

func TestEvaluateDay(t *testing.T) {
	p := EvaluateDay(1, 0, true, 1)
	assert.Equal(t, Promotion{Stage: 2, Promoted: true}, p)

	p = EvaluateDay(2, 0, true, 3)
	assert.Equal(t, Promotion{Stage: 2, Streak: 1}, p)
	p = EvaluateDay(p.Stage, p.Streak, true, 3)
	p = EvaluateDay(p.Stage, p.Streak, true, 3)
	assert.True(t, p.Promoted)
	assert.Equal(t, 3, p.Stage)

	p = EvaluateDay(3, 2, false, 3)
	assert.Equal(t, Promotion{Stage: 3}, p, "a short day resets the streak")

	p = EvaluateDay(MaxStage, 5, true, 1)
	assert.False(t, p.Promoted)
	assert.Equal(t, MaxStage, p.Stage)
}

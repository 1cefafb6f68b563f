package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/phoenix-warmup/internal/model"
)

func TestDailyResetPromotesFullDays(t *testing.T) {
	f := newFixture(t, tenAM, nil)
	f.addInbox(t, "full@sender.com", func(in *model.Inbox) { in.DailySent = 5 })
	f.addInbox(t, "short@sender.com", func(in *model.Inbox) {
		in.DailySent = 2
		in.QuotaStreak = 4
	})
	f.addInbox(t, "top@sender.com", func(in *model.Inbox) {
		in.Stage = 4
		in.DailyLimit = 40
		in.DailySent = 40
	})

	promoted, err := NewDailyReset(f.deps).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []Promoted{{Inbox: "full@sender.com", Stage: 2, Limit: 15}}, promoted)

	full := f.inbox(t, "full@sender.com")
	assert.Equal(t, 2, full.Stage)
	assert.Equal(t, 15, full.DailyLimit)
	assert.Equal(t, 0, full.DailySent)
	assert.Equal(t, 0, full.QuotaStreak)

	short := f.inbox(t, "short@sender.com")
	assert.Equal(t, 1, short.Stage)
	assert.Equal(t, 0, short.QuotaStreak)

	top := f.inbox(t, "top@sender.com")
	assert.Equal(t, 4, top.Stage)
	assert.Equal(t, 1, top.QuotaStreak)

	assert.Equal(t, []model.LogType{model.LogStage, model.LogReset}, f.logTypes(t))
	events := f.events()
	require.Len(t, events, 2)
	assert.Equal(t, model.EventStageAdvance, events[0].Kind)
	assert.Equal(t, "Promoted to Stage 2! Daily limit now 15", events[0].Message)
}

func TestDailyResetWaitsForStreak(t *testing.T) {
	f := newFixture(t, tenAM, func(w *model.WarmupConfig) { w.PromoteAfterDays = 2 })
	f.addInbox(t, "a@sender.com", func(in *model.Inbox) { in.DailySent = 5 })
	reset := NewDailyReset(f.deps)

	promoted, err := reset.Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, promoted)
	assert.Equal(t, 1, f.inbox(t, "a@sender.com").QuotaStreak)

	_, err = f.stores.Inboxes.Modify(context.Background(), "a@sender.com", func(in *model.Inbox) error {
		in.DailySent = 5
		return nil
	})
	require.NoError(t, err)

	promoted, err = reset.Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, promoted, 1)
	assert.Equal(t, 2, f.inbox(t, "a@sender.com").Stage)
}

func TestResetCountersSingleInbox(t *testing.T) {
	f := newFixture(t, tenAM, nil)
	f.addInbox(t, "a@sender.com", func(in *model.Inbox) { in.DailySent = 3 })
	f.addInbox(t, "b@sender.com", func(in *model.Inbox) { in.DailySent = 4 })

	require.NoError(t, NewDailyReset(f.deps).ResetCounters(context.Background(), "a@sender.com"))
	assert.Equal(t, 0, f.inbox(t, "a@sender.com").DailySent)
	assert.Equal(t, 4, f.inbox(t, "b@sender.com").DailySent)
}

package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/phoenix-warmup/internal/model"
	"github.com/nhle/phoenix-warmup/internal/store"
	"github.com/nhle/phoenix-warmup/tests/testutil"
)

// Both backends must satisfy the same contract.
func logBackends(t *testing.T) map[string]store.LogStore {
	return map[string]store.LogStore{
		"csv":    testutil.NewTestStores(t).Logs,
		"sqlite": testutil.NewTestLogStore(t),
	}
}

func TestLogStoreContract(t *testing.T) {
	now := time.Now().Truncate(time.Second)
	yesterday := now.Add(-30 * time.Hour)

	for name, s := range logBackends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			entries := []model.LogEntry{
				{Timestamp: model.At(yesterday), InboxEmail: "a@example.com", Type: model.LogSend, Recipient: "r@x.com"},
				{Timestamp: model.At(now.Add(-3 * time.Second)), InboxEmail: "a@example.com", Type: model.LogSend, Subject: "hi"},
				{Timestamp: model.At(now.Add(-2 * time.Second)), InboxEmail: "a@example.com", Type: model.LogBounce},
				{Timestamp: model.At(now.Add(-1 * time.Second)), InboxEmail: "b@example.com", Type: model.LogReply},
				{Timestamp: model.At(now), InboxEmail: "b@example.com", Type: model.LogError, Details: "boom"},
			}
			for _, e := range entries {
				require.NoError(t, s.Append(ctx, e))
			}

			recent, err := s.Recent(ctx, 2)
			require.NoError(t, err)
			require.Len(t, recent, 2)
			assert.Equal(t, model.LogError, recent[0].Type)
			assert.Equal(t, "boom", recent[0].Details)
			assert.Equal(t, model.LogReply, recent[1].Type)

			forA, err := s.ForInbox(ctx, "A@example.com", 0)
			require.NoError(t, err)
			assert.Len(t, forA, 3)

			st, err := s.Stats(ctx, now.Add(-time.Hour))
			require.NoError(t, err)
			assert.Equal(t, model.DailyStats{Sent: 1, Replies: 1, Errors: 1, Bounces: 1}, st)

			n, err := s.Count(ctx, "a@example.com", model.LogSend, now.Add(-24*time.Hour))
			require.NoError(t, err)
			assert.Equal(t, 1, n)

			n, err = s.Count(ctx, "a@example.com", model.LogSend, yesterday)
			require.NoError(t, err)
			assert.Equal(t, 2, n)
		})
	}
}

func TestCSVLogAppendAddsTimestamp(t *testing.T) {
	ctx := context.Background()
	s := testutil.NewTestStores(t).Logs

	require.NoError(t, s.Append(ctx, model.LogEntry{Type: model.LogInfo, Details: "started"}))
	recent, err := s.Recent(ctx, 0)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.False(t, recent[0].Timestamp.IsZero())
}

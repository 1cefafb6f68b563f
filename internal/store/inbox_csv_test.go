package store_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/phoenix-warmup/internal/model"
	"github.com/nhle/phoenix-warmup/internal/store"
	"github.com/nhle/phoenix-warmup/tests/testutil"
)

func TestInboxAddGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := testutil.NewTestStores(t).Inboxes

	in := model.NewInbox("jane@example.com", "secret")
	in.LastSentAt = model.At(time.Date(2024, 4, 2, 9, 30, 0, 0, time.Local))
	require.NoError(t, s.Add(ctx, in))

	got, err := s.Get(ctx, "JANE@example.com")
	require.NoError(t, err)
	assert.Equal(t, "jane@example.com", got.Email)
	assert.Equal(t, 587, got.SMTPPort)
	assert.Equal(t, model.InboxActive, got.Status)
	assert.True(t, got.LastSentAt.Equal(in.LastSentAt.Time))

	err = s.Add(ctx, in)
	assert.ErrorIs(t, err, store.ErrDuplicate)
}

func TestInboxMissingRow(t *testing.T) {
	ctx := context.Background()
	s := testutil.NewTestStores(t).Inboxes

	_, err := s.Get(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.ErrorIs(t, s.Update(ctx, model.NewInbox("nobody@example.com", "")), store.ErrNotFound)
	assert.ErrorIs(t, s.Delete(ctx, "nobody@example.com"), store.ErrNotFound)
}

func TestInboxStatusTransitions(t *testing.T) {
	ctx := context.Background()
	s := testutil.NewTestStores(t).Inboxes
	require.NoError(t, s.Add(ctx, model.NewInbox("a@example.com", "pw")))
	require.NoError(t, s.Add(ctx, model.NewInbox("b@example.com", "pw")))

	require.NoError(t, s.Pause(ctx, "a@example.com", "manual"))
	active, err := s.Active(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "b@example.com", active[0].Email)

	require.NoError(t, s.MarkError(ctx, "b@example.com", "Authentication failed"))
	got, err := s.Get(ctx, "b@example.com")
	require.NoError(t, err)
	assert.Equal(t, model.InboxError, got.Status)
	assert.Equal(t, "Authentication failed", got.PausedReason)

	require.NoError(t, s.Resume(ctx, "a@example.com"))
	got, err = s.Get(ctx, "a@example.com")
	require.NoError(t, err)
	assert.True(t, got.IsActive())
	assert.Empty(t, got.PausedReason)
}

func TestInboxSetStage(t *testing.T) {
	ctx := context.Background()
	s := testutil.NewTestStores(t).Inboxes
	require.NoError(t, s.Add(ctx, model.NewInbox("a@example.com", "pw")))

	require.NoError(t, s.SetStage(ctx, "a@example.com", 3))
	got, err := s.Get(ctx, "a@example.com")
	require.NoError(t, err)
	assert.Equal(t, 3, got.Stage)
	assert.Equal(t, 25, got.DailyLimit)

	assert.Error(t, s.SetStage(ctx, "a@example.com", 5))
}

func TestInboxModifyAll(t *testing.T) {
	ctx := context.Background()
	s := testutil.NewTestStores(t).Inboxes
	for _, e := range []string{"a@example.com", "b@example.com"} {
		in := model.NewInbox(e, "pw")
		in.DailySent = 4
		require.NoError(t, s.Add(ctx, in))
	}

	rows, err := s.ModifyAll(ctx, func(in *model.Inbox) { in.DailySent = 0 })
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	all, err := s.All(ctx)
	require.NoError(t, err)
	for _, in := range all {
		assert.Zero(t, in.DailySent)
	}
}

func TestInboxLoadsLegacyFile(t *testing.T) {
	dir := t.TempDir()
	legacy := "email,smtp_host,smtp_port,imap_host,imap_port,password,stage,daily_sent,daily_limit,status,last_sent_at,paused_reason,working_hours_start,working_hours_end\n" +
		"old@example.com,smtp.example.com,,imap.example.com,,pw,2,3,,active,2024-01-05T10:11:12,,09:00,17:00\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, store.InboxFile), []byte(legacy), 0o644))

	s, err := store.NewCSVInboxStore(dir)
	require.NoError(t, err)

	got, err := s.Get(context.Background(), "old@example.com")
	require.NoError(t, err)
	assert.Equal(t, 587, got.SMTPPort)
	assert.Equal(t, 993, got.IMAPPort)
	assert.Equal(t, 2, got.Stage)
	assert.Equal(t, 15, got.DailyLimit)
	assert.Equal(t, 3, got.DailySent)
	assert.Equal(t, "09:00", got.WorkStart)
	assert.Empty(t, got.DisplayName)
	assert.Equal(t, 12, got.LastSentAt.Second())
}

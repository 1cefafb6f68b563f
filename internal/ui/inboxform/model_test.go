package inboxform

import (
	"context"
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/phoenix-warmup/internal/model"
)

func TestInboxFromFields(t *testing.T) {
	m := New(nil, 80, 24)
	m.Start(model.DefaultWarmup())
	m.fb.email = " ops@acme.io "
	m.fb.password = "pw"
	m.fb.stage = 3
	m.fb.smtpPort = "465"

	in := m.Inbox()
	assert.Equal(t, "ops@acme.io", in.Email)
	assert.Equal(t, model.DefaultSMTPHost, in.SMTPHost)
	assert.Equal(t, 465, in.SMTPPort)
	assert.Equal(t, model.DefaultIMAPPort, in.IMAPPort)
	assert.Equal(t, 3, in.Stage)
	assert.Equal(t, 25, in.DailyLimit)
	assert.Equal(t, model.InboxActive, in.Status)
}

func TestSubmitPassesVerifyFlag(t *testing.T) {
	var got model.Inbox
	var verified bool
	m := New(func(_ context.Context, in model.Inbox, verify bool) error {
		got, verified = in, verify
		return nil
	}, 80, 24)
	m.Start(model.DefaultWarmup())
	m.fb.email = "ops@acme.io"
	m.fb.password = "pw"
	m.fb.verify = false

	msg := m.submit()()
	assert.Equal(t, saveResultMsg{}, msg)
	assert.Equal(t, "ops@acme.io", got.Email)
	assert.False(t, verified)
}

func TestSaveResult(t *testing.T) {
	m := New(nil, 80, 24)
	m.Start(model.DefaultWarmup())
	m.fb.email = "ops@acme.io"
	m.mode = modeSaving

	ok, cmd := m.Update(saveResultMsg{})
	require.NotNil(t, cmd)
	assert.Equal(t, SavedMsg{Email: "ops@acme.io"}, cmd())
	assert.Equal(t, modeForm, ok.mode)

	failed, cmd := m.Update(saveResultMsg{err: errors.New("535 auth failed")})
	assert.Nil(t, cmd)
	assert.Equal(t, modeResult, failed.mode)
	assert.Contains(t, failed.View(), "535 auth failed")

	retry, _ := failed.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("r")})
	assert.Equal(t, modeForm, retry.mode)
	assert.Equal(t, "ops@acme.io", retry.fb.email)

	_, cmd = failed.Update(tea.KeyMsg{Type: tea.KeyEsc})
	require.NotNil(t, cmd)
	assert.Equal(t, CancelMsg{}, cmd())
}

func TestValidators(t *testing.T) {
	assert.NoError(t, validateEmail("a@b.com"))
	assert.Error(t, validateEmail(""))
	assert.Error(t, validateEmail("nobody"))
	assert.Error(t, validateEmail("@b.com"))

	assert.NoError(t, validatePort("587"))
	assert.Error(t, validatePort("0"))
	assert.Error(t, validatePort("smtp"))

	assert.NoError(t, validateClock("08:30"))
	assert.Error(t, validateClock("8am"))
}

func TestStartUsesConfiguredWorkingHours(t *testing.T) {
	m := New(nil, 80, 24)
	w := model.DefaultWarmup()
	w.WorkStart, w.WorkEnd = "09:30", "21:15"
	m.Start(w)

	in := m.Inbox()
	assert.Equal(t, "09:30", in.WorkStart)
	assert.Equal(t, "21:15", in.WorkEnd)

	m.Start(model.WarmupConfig{})
	assert.Equal(t, model.DefaultWorkStart, m.fb.workStart)
	assert.Equal(t, "20:00", m.fb.workEnd)
}

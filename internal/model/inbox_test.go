package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSenderName(t *testing.T) {
	assert.Equal(t, "Jane Doe", Inbox{Email: "jane.doe@example.com"}.SenderName())
	assert.Equal(t, "Sales Team", Inbox{Email: "sales_team@example.com"}.SenderName())
	assert.Equal(t, "Ops", Inbox{Email: "x@example.com", DisplayName: "Ops"}.SenderName())
}

func TestDomainOf(t *testing.T) {
	assert.Equal(t, "example.com", DomainOf("a@Example.COM"))
	assert.Equal(t, "", DomainOf("nobody"))
}

func TestInboxDue(t *testing.T) {
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.Local)
	inbox := NewInbox("a@example.com", "pw")
	assert.True(t, inbox.Due(now), "never sent")

	inbox.NextSendAt = At(now.Add(time.Minute))
	assert.False(t, inbox.Due(now))
	assert.True(t, inbox.Due(now.Add(time.Minute)))
}

func TestRecipientGreeting(t *testing.T) {
	assert.Equal(t, "Alice", NewRecipient("x@y.com", "Alice Smith").Greeting())
	assert.Equal(t, "Bob", NewRecipient("bob.jones@y.com", "").Greeting())
}

func TestTimestampCSV(t *testing.T) {
	var ts Timestamp
	require.NoError(t, ts.UnmarshalCSV(""))
	assert.True(t, ts.IsZero())

	s, err := ts.MarshalCSV()
	require.NoError(t, err)
	assert.Equal(t, "", s)

	require.NoError(t, ts.UnmarshalCSV("2024-03-09T14:05:00"))
	assert.Equal(t, 14, ts.Hour())
	s, err = ts.MarshalCSV()
	require.NoError(t, err)
	assert.Equal(t, "2024-03-09T14:05:00", s)

	assert.Error(t, ts.UnmarshalCSV("yesterday"))
}

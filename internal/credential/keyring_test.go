package credential

import (
	"testing"

	"github.com/99designs/keyring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/phoenix-warmup/internal/model"
)

func TestKeyringPasswordFallback(t *testing.T) {
	k := NewWithBackend(keyring.NewArrayKeyring(nil))

	in := model.NewInbox("Jane@Example.com", "")
	_, err := k.Password(in)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, k.Set(InboxKey(in.Email), "from-keyring"))
	pw, err := k.Password(in)
	require.NoError(t, err)
	assert.Equal(t, "from-keyring", pw)

	in.Password = "from-row"
	pw, err = k.Password(in)
	require.NoError(t, err)
	assert.Equal(t, "from-row", pw)

	require.NoError(t, k.Delete(InboxKey(in.Email)))
	require.NoError(t, k.Delete(InboxKey(in.Email)), "deleting twice is fine")
}

func TestInboxKeyNormalizes(t *testing.T) {
	assert.Equal(t, "inbox:jane@example.com", InboxKey(" Jane@Example.COM "))
}

func TestPlainResolver(t *testing.T) {
	_, err := Plain{}.Password(model.NewInbox("a@b.c", ""))
	assert.Error(t, err)
	pw, err := Plain{}.Password(model.NewInbox("a@b.c", "x"))
	require.NoError(t, err)
	assert.Equal(t, "x", pw)
}

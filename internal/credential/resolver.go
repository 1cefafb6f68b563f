package credential

import (
	"fmt"

	"github.com/nhle/phoenix-warmup/internal/model"
)

// Resolver returns the password to use for an inbox.
type Resolver interface {
	Password(inbox model.Inbox) (string, error)
}

// Password prefers the password stored on the row and falls back to the
// keyring when it is blank.
func (k *Keyring) Password(inbox model.Inbox) (string, error) {
	if inbox.Password != "" {
		return inbox.Password, nil
	}
	pw, err := k.Get(InboxKey(inbox.Email))
	if err != nil {
		return "", fmt.Errorf("no password for %s: %w", inbox.Email, err)
	}
	return pw, nil
}

// Plain resolves passwords only from the inbox row.
type Plain struct{}

// Password returns the row password.
func (Plain) Password(inbox model.Inbox) (string, error) {
	if inbox.Password == "" {
		return "", fmt.Errorf("no password stored for %s", inbox.Email)
	}
	return inbox.Password, nil
}

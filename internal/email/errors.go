package email

import (
	"errors"
	"fmt"
)

// AuthError indicates that the server rejected the account credentials.
type AuthError struct {
	Protocol string
	User     string
	Err      error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s authentication failed for %s: %v", e.Protocol, e.User, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// IsAuthError reports whether err (or any error in its chain) is an AuthError.
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}

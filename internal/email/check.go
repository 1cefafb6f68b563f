package email

import (
	"context"
	"fmt"
)

// CheckAccount verifies that acct can log in to both SMTP and IMAP.
func CheckAccount(ctx context.Context, s *SMTPClient, i *IMAPClient, acct Account) error {
	if err := s.TestConnection(ctx, acct); err != nil {
		return fmt.Errorf("smtp: %w", err)
	}
	if err := i.TestConnection(ctx, acct); err != nil {
		return fmt.Errorf("imap: %w", err)
	}
	return nil
}

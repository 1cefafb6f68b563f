package email

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
)

// fetchBatch is how many messages are fetched per FETCH command.
const fetchBatch = 10

// sessionTimeout bounds a whole IMAP session once connected.
const sessionTimeout = 2 * time.Minute

// IMAPClient wraps go-imap v2. Every operation opens a fresh session and
// logs out when done.
type IMAPClient struct {
	Timeout   time.Duration
	Security  Security
	TLSConfig *tls.Config
}

// NewIMAPClient returns a client with the default timeout and automatic
// transport security.
func NewIMAPClient() *IMAPClient {
	return &IMAPClient{Timeout: DefaultTimeout}
}

func (c *IMAPClient) security(port int) Security {
	if c.Security != SecurityAuto {
		return c.Security
	}
	if port == 993 {
		return SecurityTLS
	}
	return SecurityStartTLS
}

// Connect establishes a connection to the IMAP server, authenticates,
// and returns the connected client. The caller is responsible for
// calling Logout/Close on the returned client.
func (c *IMAPClient) Connect(ctx context.Context, acct Account) (*imapclient.Client, error) {
	addr := acct.imapAddr()
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	dialer := &net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("connecting to IMAP %s: %w", addr, err)
	}
	_ = conn.SetDeadline(time.Now().Add(sessionTimeout))

	tlsConfig := c.TLSConfig
	if tlsConfig == nil {
		tlsConfig = &tls.Config{ServerName: acct.IMAPHost}
	}
	opts := &imapclient.Options{TLSConfig: tlsConfig}

	var client *imapclient.Client
	switch c.security(acct.IMAPPort) {
	case SecurityTLS:
		client = imapclient.New(tls.Client(conn, tlsConfig), opts)
	case SecurityStartTLS:
		client, err = imapclient.NewStartTLS(conn, opts)
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("starting TLS with IMAP %s: %w", addr, err)
		}
	default:
		client = imapclient.New(conn, opts)
	}

	if err := client.Login(acct.Email, acct.Password).Wait(); err != nil {
		_ = client.Logout().Wait()
		client.Close()
		return nil, &AuthError{Protocol: "IMAP", User: acct.Email, Err: err}
	}

	return client, nil
}

func (c *IMAPClient) session(ctx context.Context, acct Account, fn func(*imapclient.Client) error) error {
	client, err := c.Connect(ctx, acct)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Logout().Wait()
		client.Close()
	}()

	if _, err := client.Select("INBOX", nil).Wait(); err != nil {
		return fmt.Errorf("selecting INBOX: %w", err)
	}
	return fn(client)
}

// FetchUnseen returns every unread INBOX message and marks each fetched
// batch \Seen.
func (c *IMAPClient) FetchUnseen(ctx context.Context, acct Account) ([]FetchedMessage, error) {
	var messages []FetchedMessage
	err := c.session(ctx, acct, func(client *imapclient.Client) error {
		criteria := &imap.SearchCriteria{
			NotFlag: []imap.Flag{imap.FlagSeen},
		}
		searchData, err := client.UIDSearch(criteria, nil).Wait()
		if err != nil {
			return fmt.Errorf("searching unseen messages: %w", err)
		}

		uids := searchData.AllUIDs()
		for start := 0; start < len(uids); start += fetchBatch {
			if err := ctx.Err(); err != nil {
				return err
			}
			batch := uids[start:min(start+fetchBatch, len(uids))]
			fetched, err := fetchBodies(client, batch)
			messages = append(messages, fetched...)
			if err != nil {
				return err
			}
			// Marking seen is best effort; the messages are already in hand.
			_ = client.Store(imap.UIDSetNum(batch...), &imap.StoreFlags{
				Op:     imap.StoreFlagsAdd,
				Silent: true,
				Flags:  []imap.Flag{imap.FlagSeen},
			}, nil).Close()
		}
		return nil
	})
	return messages, err
}

func fetchBodies(client *imapclient.Client, uids []imap.UID) ([]FetchedMessage, error) {
	bodySection := &imap.FetchItemBodySection{Peek: true}
	fetchOpts := &imap.FetchOptions{
		UID:         true,
		BodySection: []*imap.FetchItemBodySection{bodySection},
	}

	fetchCmd := client.Fetch(imap.UIDSetNum(uids...), fetchOpts)
	defer fetchCmd.Close()

	var out []FetchedMessage
	for {
		msg := fetchCmd.Next()
		if msg == nil {
			break
		}

		buf, err := msg.Collect()
		if err != nil {
			continue
		}

		raw := buf.FindBodySection(bodySection)
		if raw == nil {
			continue
		}
		parsed, err := ParseMessage(uint32(buf.UID), raw)
		if err != nil {
			continue
		}
		out = append(out, parsed)
	}

	if err := fetchCmd.Close(); err != nil {
		return out, fmt.Errorf("fetching messages: %w", err)
	}
	return out, nil
}

// MarkAnswered sets \Answered on the given messages.
func (c *IMAPClient) MarkAnswered(ctx context.Context, acct Account, uids ...uint32) error {
	if len(uids) == 0 {
		return nil
	}
	set := make([]imap.UID, len(uids))
	for i, u := range uids {
		set[i] = imap.UID(u)
	}
	return c.session(ctx, acct, func(client *imapclient.Client) error {
		return client.Store(imap.UIDSetNum(set...), &imap.StoreFlags{
			Op:     imap.StoreFlagsAdd,
			Silent: true,
			Flags:  []imap.Flag{imap.FlagAnswered},
		}, nil).Close()
	})
}

// TestConnection logs in and selects INBOX.
func (c *IMAPClient) TestConnection(ctx context.Context, acct Account) error {
	return c.session(ctx, acct, func(*imapclient.Client) error { return nil })
}

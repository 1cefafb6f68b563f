package email

import (
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"github.com/emersion/go-imap/v2/imapserver"
	"github.com/emersion/go-imap/v2/imapserver/imapmemserver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	imapUser = "sender@example.com"
	imapPass = "app-password"
)

func startIMAPServer(t *testing.T) int {
	t.Helper()

	mem := imapmemserver.New()
	user := imapmemserver.NewUser(imapUser, imapPass)
	require.NoError(t, user.Create("INBOX", nil))
	mem.AddUser(user)

	srv := imapserver.New(&imapserver.Options{
		NewSession: func(*imapserver.Conn) (imapserver.Session, *imapserver.GreetingData, error) {
			return mem.NewSession(), nil, nil
		},
		Caps: imap.CapSet{
			imap.CapIMAP4rev1: {},
			imap.CapIMAP4rev2: {},
		},
		InsecureAuth: true,
	})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = srv.Serve(ln) }()
	t.Cleanup(func() { _ = srv.Close() })

	return ln.Addr().(*net.TCPAddr).Port
}

func imapAccount(port int, password string) Account {
	return Account{Email: imapUser, Password: password, IMAPHost: "127.0.0.1", IMAPPort: port}
}

func plainIMAP() *IMAPClient {
	c := NewIMAPClient()
	c.Security = SecurityNone
	c.Timeout = 5 * time.Second
	return c
}

// appendMessage stores raw in INBOX through a regular client session.
func appendMessage(t *testing.T, c *IMAPClient, acct Account, raw string) {
	t.Helper()
	client, err := c.Connect(context.Background(), acct)
	require.NoError(t, err)
	defer client.Close()

	cmd := client.Append("INBOX", int64(len(raw)), nil)
	_, err = cmd.Write([]byte(raw))
	require.NoError(t, err)
	require.NoError(t, cmd.Close())
	_, err = cmd.Wait()
	require.NoError(t, err)
	require.NoError(t, client.Logout().Wait())
}

func rawMessage(from, subject, id string) string {
	return strings.Join([]string{
		"From: " + from,
		"To: " + imapUser,
		"Subject: " + subject,
		"Message-ID: <" + id + ">",
		"Content-Type: text/plain; charset=utf-8",
		"",
		"Hope this finds you well.",
		"",
	}, "\r\n")
}

func TestIMAPFetchUnseenMarksSeen(t *testing.T) {
	port := startIMAPServer(t)
	c := plainIMAP()
	acct := imapAccount(port, imapPass)
	ctx := context.Background()

	for i, subj := range []string{"Regarding the budget review", "About the team update"} {
		appendMessage(t, c, acct, rawMessage("Pat <pat@example.org>", subj, "id-"+string(rune('a'+i))+"@example.org"))
	}

	msgs, err := c.FetchUnseen(ctx, acct)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "Regarding the budget review", msgs[0].Subject)
	assert.Equal(t, "pat@example.org", msgs[0].FromEmail)
	assert.Equal(t, "Pat", msgs[0].FromName)
	assert.Equal(t, "id-a@example.org", msgs[0].MessageID)
	assert.Contains(t, msgs[0].Body, "Hope this finds you well.")

	again, err := c.FetchUnseen(ctx, acct)
	require.NoError(t, err)
	assert.Empty(t, again, "fetched messages are marked seen")

	require.NoError(t, c.MarkAnswered(ctx, acct, msgs[0].UID))
	assert.True(t, hasFlag(t, c, acct, msgs[0].UID, imap.FlagAnswered))
}

func hasFlag(t *testing.T, c *IMAPClient, acct Account, uid uint32, flag imap.Flag) bool {
	t.Helper()
	found := false
	err := c.session(context.Background(), acct, func(client *imapclient.Client) error {
		bufs, err := client.Fetch(imap.UIDSetNum(imap.UID(uid)), &imap.FetchOptions{Flags: true}).Collect()
		if err != nil {
			return err
		}
		for _, b := range bufs {
			for _, f := range b.Flags {
				if f == flag {
					found = true
				}
			}
		}
		return nil
	})
	require.NoError(t, err)
	return found
}

func TestIMAPBadPasswordIsAuthError(t *testing.T) {
	port := startIMAPServer(t)

	err := plainIMAP().TestConnection(context.Background(), imapAccount(port, "wrong"))
	require.Error(t, err)
	assert.True(t, IsAuthError(err))

	assert.NoError(t, plainIMAP().TestConnection(context.Background(), imapAccount(port, imapPass)))
}

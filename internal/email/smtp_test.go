package email

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testBackend struct {
	user, pass string

	mu       sync.Mutex
	messages []string
}

func (b *testBackend) NewSession(*smtp.Conn) (smtp.Session, error) {
	return &testSession{b: b}, nil
}

func (b *testBackend) received() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.messages...)
}

type testSession struct {
	b      *testBackend
	authed bool
}

func (s *testSession) AuthMechanisms() []string { return []string{sasl.Plain} }

func (s *testSession) Auth(string) (sasl.Server, error) {
	return sasl.NewPlainServer(func(_, username, password string) error {
		if username != s.b.user || password != s.b.pass {
			return &smtp.SMTPError{Code: 535, EnhancedCode: smtp.EnhancedCode{5, 7, 8}, Message: "Authentication failed"}
		}
		s.authed = true
		return nil
	}), nil
}

func (s *testSession) Mail(string, *smtp.MailOptions) error {
	if !s.authed {
		return smtp.ErrAuthRequired
	}
	return nil
}

func (s *testSession) Rcpt(to string, _ *smtp.RcptOptions) error {
	switch {
	case strings.HasPrefix(to, "bounce"):
		return &smtp.SMTPError{Code: 550, EnhancedCode: smtp.EnhancedCode{5, 1, 1}, Message: "No such user"}
	case strings.HasPrefix(to, "busy"):
		return &smtp.SMTPError{Code: 451, EnhancedCode: smtp.EnhancedCode{4, 3, 0}, Message: "Try again later"}
	}
	return nil
}

func (s *testSession) Data(r io.Reader) error {
	b, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	s.b.mu.Lock()
	s.b.messages = append(s.b.messages, string(b))
	s.b.mu.Unlock()
	return nil
}

func (s *testSession) Reset()        {}
func (s *testSession) Logout() error { return nil }

func startSMTPServer(t *testing.T) (*testBackend, int) {
	t.Helper()
	be := &testBackend{user: "sender@example.com", pass: "app-password"}

	srv := smtp.NewServer(be)
	srv.Domain = "localhost"
	srv.AllowInsecureAuth = true
	srv.ReadTimeout = 5 * time.Second
	srv.WriteTimeout = 5 * time.Second

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = srv.Serve(ln) }()
	t.Cleanup(func() { _ = srv.Close() })

	return be, ln.Addr().(*net.TCPAddr).Port
}

func testAccount(port int, password string) Account {
	return Account{
		Email:       "sender@example.com",
		Password:    password,
		DisplayName: "Sender",
		SMTPHost:    "127.0.0.1",
		SMTPPort:    port,
	}
}

func plainClient() *SMTPClient {
	c := NewSMTPClient()
	c.Security = SecurityNone
	c.Timeout = 5 * time.Second
	return c
}

func TestSMTPSendDelivers(t *testing.T) {
	be, port := startSMTPServer(t)

	res := plainClient().Send(context.Background(), testAccount(port, "app-password"), Outgoing{
		To:      "friend@example.org",
		Subject: "Update on the deliverables",
		Body:    "Hi,\n\nJust a quick note.\n",
	})

	require.True(t, res.Success, res.Message)
	assert.NotEmpty(t, res.MessageID)
	msgs := be.received()
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0], "Subject: Update on the deliverables")
	assert.Contains(t, msgs[0], "<"+res.MessageID+">")
}

func TestSMTPSendClassifiesFailures(t *testing.T) {
	_, port := startSMTPServer(t)
	ctx := context.Background()
	c := plainClient()

	res := c.Send(ctx, testAccount(port, "wrong"), Outgoing{To: "x@example.org"})
	assert.False(t, res.Success)
	assert.True(t, res.AuthFailure)
	assert.False(t, res.HardBounce)

	res = c.Send(ctx, testAccount(port, "app-password"), Outgoing{To: "bounce@example.org"})
	assert.False(t, res.Success)
	assert.True(t, res.HardBounce)
	assert.Equal(t, 550, res.Code)

	res = c.Send(ctx, testAccount(port, "app-password"), Outgoing{To: "busy@example.org"})
	assert.True(t, res.SoftBounce)
	assert.Equal(t, 451, res.Code)
}

func TestSMTPConnectionRefusedIsSoft(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())

	res := plainClient().Send(context.Background(), testAccount(port, "pw"), Outgoing{To: "x@example.org"})
	assert.False(t, res.Success)
	assert.True(t, res.SoftBounce)
	assert.False(t, res.AuthFailure)
}

func TestSMTPTestConnection(t *testing.T) {
	_, port := startSMTPServer(t)
	ctx := context.Background()
	c := plainClient()

	assert.NoError(t, c.TestConnection(ctx, testAccount(port, "app-password")))

	err := c.TestConnection(ctx, testAccount(port, "nope"))
	require.Error(t, err)
	assert.True(t, IsAuthError(err))
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want SendResult
	}{
		{
			name: "hard bounce",
			err:  &stageError{stageSend, &smtp.SMTPError{Code: 553, Message: "bad mailbox"}},
			want: SendResult{Code: 553, Message: "bad mailbox", HardBounce: true},
		},
		{
			name: "soft bounce",
			err:  &stageError{stageSend, &smtp.SMTPError{Code: 421, Message: "closing"}},
			want: SendResult{Code: 421, Message: "closing", SoftBounce: true},
		},
		{
			name: "auth code outside auth stage",
			err:  &stageError{stageSend, &smtp.SMTPError{Code: 535, Message: "no"}},
			want: SendResult{Code: 535, Message: "no", AuthFailure: true},
		},
		{
			name: "network error",
			err:  &stageError{stageConnect, errors.New("dial tcp: timeout")},
			want: SendResult{Message: "smtp connect: dial tcp: timeout", SoftBounce: true},
		},
		{
			name: "unlisted permanent code",
			err:  fmt.Errorf("wrapped: %w", &smtp.SMTPError{Code: 530, Message: "policy"}),
			want: SendResult{Code: 530, Message: "policy", SoftBounce: true},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got SendResult
			classify(&got, tt.err)
			assert.Equal(t, tt.want, got)
		})
	}
}

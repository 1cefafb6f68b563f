package email

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
)

// DefaultTimeout bounds connection setup for SMTP and IMAP.
const DefaultTimeout = 30 * time.Second

// Security selects how a connection is protected.
type Security int

const (
	// SecurityAuto picks implicit TLS on 465/993 and STARTTLS otherwise.
	SecurityAuto Security = iota
	SecurityTLS
	SecurityStartTLS
	// SecurityNone sends credentials in the clear. Only for local test servers.
	SecurityNone
)

var (
	hardBounceCodes = map[int]bool{550: true, 551: true, 552: true, 553: true, 554: true, 555: true}
	softBounceCodes = map[int]bool{421: true, 450: true, 451: true, 452: true}
)

const authFailedCode = 535

// SMTPClient delivers one message per connection.
type SMTPClient struct {
	Timeout   time.Duration
	Security  Security
	TLSConfig *tls.Config

	// LocalName is sent in EHLO; empty uses the library default.
	LocalName string

	now func() time.Time
}

// NewSMTPClient returns a client with the default timeout and automatic
// transport security.
func NewSMTPClient() *SMTPClient {
	return &SMTPClient{Timeout: DefaultTimeout, now: time.Now}
}

func (c *SMTPClient) security(port int) Security {
	if c.Security != SecurityAuto {
		return c.Security
	}
	if port == 465 {
		return SecurityTLS
	}
	return SecurityStartTLS
}

func (c *SMTPClient) tlsConfig(host string) *tls.Config {
	if c.TLSConfig != nil {
		return c.TLSConfig.Clone()
	}
	return &tls.Config{ServerName: host}
}

// smtpStage names the step a failure happened in.
type smtpStage string

const (
	stageConnect smtpStage = "connect"
	stageAuth    smtpStage = "auth"
	stageSend    smtpStage = "send"
)

type stageError struct {
	stage smtpStage
	err   error
}

func (e *stageError) Error() string { return fmt.Sprintf("smtp %s: %v", e.stage, e.err) }
func (e *stageError) Unwrap() error { return e.err }

// dial connects and authenticates. The caller must Close the client.
func (c *SMTPClient) dial(ctx context.Context, acct Account) (*smtp.Client, error) {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	dialer := &net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", acct.smtpAddr())
	if err != nil {
		return nil, &stageError{stageConnect, err}
	}

	var client *smtp.Client
	switch c.security(acct.SMTPPort) {
	case SecurityTLS:
		client = smtp.NewClient(tls.Client(conn, c.tlsConfig(acct.SMTPHost)))
	case SecurityStartTLS:
		client, err = smtp.NewClientStartTLS(conn, c.tlsConfig(acct.SMTPHost))
		if err != nil {
			conn.Close()
			return nil, &stageError{stageConnect, err}
		}
	default:
		client = smtp.NewClient(conn)
	}
	client.CommandTimeout = timeout

	if c.LocalName != "" {
		if err := client.Hello(c.LocalName); err != nil {
			client.Close()
			return nil, &stageError{stageConnect, err}
		}
	}

	if err := client.Auth(sasl.NewPlainClient("", acct.Email, acct.Password)); err != nil {
		client.Close()
		return nil, &stageError{stageAuth, &AuthError{Protocol: "SMTP", User: acct.Email, Err: err}}
	}
	return client, nil
}

// Send delivers out from acct and reports the classified outcome. It
// never returns an error: every failure is folded into the result.
func (c *SMTPClient) Send(ctx context.Context, acct Account, out Outgoing) SendResult {
	now := time.Now
	if c.now != nil {
		now = c.now
	}
	start := now()

	id := NewMessageID(acct.Email)
	res := SendResult{MessageID: id}
	err := c.send(ctx, acct, out, id, start)
	res.Duration = now().Sub(start)
	if err != nil {
		classify(&res, err)
		return res
	}
	res.Success = true
	return res
}

func (c *SMTPClient) send(ctx context.Context, acct Account, out Outgoing, id string, at time.Time) error {
	raw, err := Compose(acct, out, id, at)
	if err != nil {
		return &stageError{stageSend, err}
	}

	client, err := c.dial(ctx, acct)
	if err != nil {
		return err
	}
	defer client.Close()

	if err := client.Mail(acct.Email, nil); err != nil {
		return &stageError{stageSend, err}
	}
	if err := client.Rcpt(out.To, nil); err != nil {
		return &stageError{stageSend, err}
	}
	w, err := client.Data()
	if err != nil {
		return &stageError{stageSend, err}
	}
	if _, err := bytes.NewReader(raw).WriteTo(w); err != nil {
		w.Close()
		return &stageError{stageSend, err}
	}
	if err := w.Close(); err != nil {
		return &stageError{stageSend, err}
	}
	// The message was accepted; a failed QUIT does not undo that.
	_ = client.Quit()
	return nil
}

// classify maps a delivery error onto the bounce categories. Permanent
// rejections (550-555) are hard bounces; rejected credentials are auth
// failures; everything else, including network errors, is soft.
func classify(res *SendResult, err error) {
	res.Message = err.Error()

	var se *smtp.SMTPError
	if errors.As(err, &se) {
		res.Code = se.Code
		res.Message = se.Message
	}

	var st *stageError
	inAuth := errors.As(err, &st) && st.stage == stageAuth
	switch {
	case inAuth || res.Code == authFailedCode:
		res.AuthFailure = true
		if res.Code == 0 {
			res.Code = authFailedCode
		}
	case hardBounceCodes[res.Code]:
		res.HardBounce = true
	case softBounceCodes[res.Code]:
		res.SoftBounce = true
	default:
		res.SoftBounce = true
	}
}

// TestConnection logs in and disconnects without sending.
func (c *SMTPClient) TestConnection(ctx context.Context, acct Account) error {
	client, err := c.dial(ctx, acct)
	if err != nil {
		var st *stageError
		if errors.As(err, &st) && st.stage == stageAuth {
			return st.err
		}
		return fmt.Errorf("connecting to SMTP %s: %w", acct.smtpAddr(), err)
	}
	defer client.Close()
	_ = client.Quit()
	return nil
}

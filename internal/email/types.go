package email

import (
	"strconv"
	"time"

	"github.com/nhle/phoenix-warmup/internal/model"
)

// Account holds the connection settings for one mailbox.
type Account struct {
	Email       string
	Password    string
	DisplayName string
	SMTPHost    string
	SMTPPort    int
	IMAPHost    string
	IMAPPort    int
}

// AccountFor builds an Account from an inbox row and its resolved password.
func AccountFor(in model.Inbox, password string) Account {
	return Account{
		Email:       in.Email,
		Password:    password,
		DisplayName: in.SenderName(),
		SMTPHost:    in.SMTPHost,
		SMTPPort:    in.SMTPPort,
		IMAPHost:    in.IMAPHost,
		IMAPPort:    in.IMAPPort,
	}
}

func (a Account) smtpAddr() string { return a.SMTPHost + ":" + strconv.Itoa(a.SMTPPort) }
func (a Account) imapAddr() string { return a.IMAPHost + ":" + strconv.Itoa(a.IMAPPort) }

// Outgoing is a plain-text message to send.
type Outgoing struct {
	To      string
	ToName  string
	Subject string
	Body    string

	// InReplyTo and References thread a reply onto an earlier message.
	// IDs are given without angle brackets.
	InReplyTo  string
	References []string
}

// SendResult describes the outcome of one SMTP delivery attempt.
type SendResult struct {
	Success   bool
	MessageID string

	// Code is the SMTP reply code of a rejection, or 0.
	Code    int
	Message string

	Duration time.Duration

	HardBounce  bool
	SoftBounce  bool
	AuthFailure bool
}

// FetchedMessage is an unread message pulled from an inbox.
type FetchedMessage struct {
	UID       uint32
	MessageID string
	Subject   string
	FromEmail string
	FromName  string
	Body      string
	Date      time.Time
}

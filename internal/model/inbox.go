package model

import (
	"strings"
	"time"
)

// InboxStatus is the lifecycle state of a warm-up inbox.
type InboxStatus string

const (
	InboxActive InboxStatus = "active"
	InboxPaused InboxStatus = "paused"
	InboxError  InboxStatus = "error"
)

// Provider defaults applied to inboxes created without explicit endpoints.
const (
	DefaultSMTPHost  = "smtp.zoho.in"
	DefaultSMTPPort  = 587
	DefaultIMAPHost  = "imap.zoho.in"
	DefaultIMAPPort  = 993
	DefaultWorkStart = "08:00"
	DefaultWorkEnd   = "20:00"
)

// Inbox is one sending account being warmed up. Each row of inboxes.csv
// decodes into an Inbox.
type Inbox struct {
	// Email is the login and sender address; it keys the row.
	Email string `csv:"email"`

	SMTPHost string `csv:"smtp_host"`
	SMTPPort int    `csv:"smtp_port"`
	IMAPHost string `csv:"imap_host"`
	IMAPPort int    `csv:"imap_port"`

	// Password is the app password. When empty the credential is
	// looked up in the OS keyring.
	Password string `csv:"password"`

	// Stage is the ramp stage (1..4) that sets the daily quota.
	Stage int `csv:"stage"`

	// DailySent counts successful sends since the last daily reset.
	DailySent int `csv:"daily_sent"`

	// DailyLimit is the send quota for the current day.
	DailyLimit int `csv:"daily_limit"`

	Status InboxStatus `csv:"status"`

	// LastSentAt is the time of the most recent successful send.
	LastSentAt Timestamp `csv:"last_sent_at"`

	// PausedReason explains a paused or error status.
	PausedReason string `csv:"paused_reason"`

	// WorkStart and WorkEnd bound the local sending window (HH:MM).
	WorkStart string `csv:"working_hours_start"`
	WorkEnd   string `csv:"working_hours_end"`

	DisplayName string `csv:"display_name"`

	// NextSendAt is the earliest time the next send may happen. It is
	// drawn from the stage interval range when a send succeeds.
	NextSendAt Timestamp `csv:"next_send_at"`

	// QuotaStreak counts consecutive days on which the quota was met.
	QuotaStreak int `csv:"quota_streak"`
}

// NewInbox returns an inbox for email with provider defaults filled in.
func NewInbox(email, password string) Inbox {
	return Inbox{
		Email:      strings.TrimSpace(email),
		SMTPHost:   DefaultSMTPHost,
		SMTPPort:   DefaultSMTPPort,
		IMAPHost:   DefaultIMAPHost,
		IMAPPort:   DefaultIMAPPort,
		Password:   password,
		Stage:      1,
		DailyLimit: 5,
		Status:     InboxActive,
		WorkStart:  DefaultWorkStart,
		WorkEnd:    DefaultWorkEnd,
	}
}

// IsActive reports whether the scheduler should process this inbox.
func (i Inbox) IsActive() bool {
	return i.Status == InboxActive
}

// Domain returns the part of the address after '@'.
func (i Inbox) Domain() string {
	return DomainOf(i.Email)
}

// SenderName is the name printed in the From header and signature.
// Without a display name it is derived from the local part, so
// "jane.doe@x.com" signs as "Jane Doe".
func (i Inbox) SenderName() string {
	if strings.TrimSpace(i.DisplayName) != "" {
		return i.DisplayName
	}
	return NameFromAddress(i.Email)
}

// QuotaMet reports whether today's quota has been reached.
func (i Inbox) QuotaMet() bool {
	return i.DailyLimit > 0 && i.DailySent >= i.DailyLimit
}

// Due reports whether the send interval has elapsed at now.
func (i Inbox) Due(now time.Time) bool {
	return i.NextSendAt.IsZero() || !now.Before(i.NextSendAt.Time)
}

// DomainOf returns the domain of an address, or "" if it has none.
func DomainOf(addr string) string {
	at := strings.LastIndexByte(addr, '@')
	if at < 0 {
		return ""
	}
	return strings.ToLower(addr[at+1:])
}

// NameFromAddress turns the local part of an address into a title-cased
// name, treating dots, underscores and dashes as word breaks.
func NameFromAddress(addr string) string {
	local := addr
	if at := strings.IndexByte(addr, '@'); at >= 0 {
		local = addr[:at]
	}
	words := strings.FieldsFunc(local, func(r rune) bool {
		return r == '.' || r == '_' || r == '-'
	})
	for n, w := range words {
		r := []rune(w)
		words[n] = strings.ToUpper(string(r[:1])) + strings.ToLower(string(r[1:]))
	}
	return strings.Join(words, " ")
}

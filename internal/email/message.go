package email

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
	"github.com/google/uuid"

	"github.com/nhle/phoenix-warmup/internal/model"
)

// Mailer is the value of the X-Mailer header on outgoing mail.
const Mailer = "Microsoft Outlook 16.0"

// maxBody caps the text kept from an incoming message.
const maxBody = 2000

// NewMessageID returns a unique Message-ID (without brackets) in the
// sender's domain.
func NewMessageID(sender string) string {
	domain := model.DomainOf(sender)
	if domain == "" {
		domain = "localhost"
	}
	return uuid.NewString() + "@" + domain
}

// Compose renders out as an RFC 5322 plain-text UTF-8 message from acct.
func Compose(acct Account, out Outgoing, id string, now time.Time) ([]byte, error) {
	var h mail.Header
	h.SetDate(now)
	h.SetAddressList("From", []*mail.Address{{Name: acct.DisplayName, Address: acct.Email}})
	h.SetAddressList("To", []*mail.Address{{Name: out.ToName, Address: out.To}})
	h.SetSubject(out.Subject)
	h.SetMessageID(id)
	if out.InReplyTo != "" {
		h.SetMsgIDList("In-Reply-To", []string{out.InReplyTo})
		refs := out.References
		if len(refs) == 0 {
			refs = []string{out.InReplyTo}
		}
		h.SetMsgIDList("References", refs)
	}
	h.Set("X-Mailer", Mailer)
	h.Set("MIME-Version", "1.0")
	h.SetContentType("text/plain", map[string]string{"charset": "utf-8"})
	h.Set("Content-Transfer-Encoding", "quoted-printable")

	var buf bytes.Buffer
	w, err := mail.CreateSingleInlineWriter(&buf, h)
	if err != nil {
		return nil, fmt.Errorf("creating message writer: %w", err)
	}
	if _, err := io.WriteString(w, out.Body); err != nil {
		return nil, fmt.Errorf("writing message body: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("closing message body: %w", err)
	}
	return buf.Bytes(), nil
}

// ParseMessage extracts the fields the reply engine needs from a raw
// message: subject, Message-ID, sender, date and the first text/plain part.
func ParseMessage(uid uint32, raw []byte) (FetchedMessage, error) {
	msg := FetchedMessage{UID: uid}

	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil && !message.IsUnknownCharset(err) {
		return msg, fmt.Errorf("parsing message %d: %w", uid, err)
	}
	defer mr.Close()

	msg.Subject, _ = mr.Header.Subject()
	msg.Subject = strings.TrimSpace(msg.Subject)
	msg.MessageID, _ = mr.Header.MessageID()
	msg.Date, _ = mr.Header.Date()
	if from, err := mr.Header.AddressList("From"); err == nil && len(from) > 0 {
		msg.FromEmail = strings.ToLower(from[0].Address)
		msg.FromName = from[0].Name
	}

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			if message.IsUnknownCharset(err) {
				continue
			}
			break
		}

		h, ok := part.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}
		contentType, _, _ := h.ContentType()
		if contentType != "" && !strings.HasPrefix(contentType, "text/plain") {
			continue
		}
		body, err := io.ReadAll(io.LimitReader(part.Body, maxBody*4))
		if err != nil {
			continue
		}
		msg.Body = truncate(string(body), maxBody)
		break
	}

	return msg, nil
}

// truncate limits s to n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8Start(s[n]) {
		n--
	}
	return s[:n]
}

func utf8Start(b byte) bool { return b&0xC0 != 0x80 }

package engine

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/nhle/phoenix-warmup/internal/email"
	"github.com/nhle/phoenix-warmup/internal/model"
	"github.com/nhle/phoenix-warmup/internal/ramp"
)

// systemMarkers identify automated mail that must never be answered.
var systemMarkers = []string{
	"unsubscribe",
	"no-reply",
	"noreply",
	"bounce",
	"auto-reply",
	"out of office",
	"vacation",
	"delivery failure",
}

const snippetRunes = 300

// IsSystemMail reports whether m looks automated, judged by its subject
// and sender address.
func IsSystemMail(m email.FetchedMessage) bool {
	subject := strings.ToLower(m.Subject)
	from := strings.ToLower(m.FromEmail)
	for _, marker := range systemMarkers {
		if strings.Contains(subject, marker) || strings.Contains(from, marker) {
			return true
		}
	}
	return false
}

// Replier runs the reply cycle.
type Replier struct {
	Deps
	sender   Sender
	mailbox  Mailbox
	deferrer Deferrer
	journal  *Journal
	rng      *lockedRand

	mu sync.Mutex
}

// NewReplier returns a reply engine. When deferrer is nil or reply delay
// is off, replies go out within the cycle.
func NewReplier(deps Deps, sender Sender, mailbox Mailbox, deferrer Deferrer) *Replier {
	deps.defaults()
	return &Replier{
		Deps:     deps,
		sender:   sender,
		mailbox:  mailbox,
		deferrer: deferrer,
		journal:  NewJournal(deps.Logs, deps.Bus, deps.Log, deps.Now),
		rng:      newLockedRand(deps.Seed + 1),
	}
}

// RunCycle reads unseen mail for every active inbox and answers a share
// of it.
func (r *Replier) RunCycle(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	inboxes, err := r.Inboxes.Active(ctx)
	if err != nil {
		return fmt.Errorf("loading inboxes: %w", err)
	}
	set := r.Settings.Warmup()
	for _, in := range inboxes {
		if err := ctx.Err(); err != nil {
			return err
		}
		r.processInbox(ctx, in, set)
	}
	return nil
}

func (r *Replier) processInbox(ctx context.Context, in model.Inbox, set model.WarmupConfig) {
	log := r.Log.With().Str("inbox", in.Email).Logger()

	password, err := r.Passwords.Password(in)
	if err != nil {
		log.Warn().Err(err).Msg("no password for reply cycle")
		return
	}
	acct := email.AccountFor(in, password)

	msgs, err := r.mailbox.FetchUnseen(ctx, acct)
	if err != nil {
		r.journal.Record(ctx, model.LogError, in.Email, "", "", "IMAP fetch failed: "+err.Error())
		r.journal.Emit(model.EventError, in.Email, "IMAP fetch failed: "+clip(err.Error(), 80))
		r.Metrics.Failed(in.Email, "fetch")
		log.Warn().Err(err).Msg("fetching unseen mail")
		return
	}

	for _, m := range msgs {
		if m.FromEmail == "" || strings.EqualFold(m.FromEmail, in.Email) || IsSystemMail(m) {
			continue
		}
		if r.rng.Float64() >= set.ReplyRate {
			continue
		}

		if set.ReplyDelay && r.deferrer != nil {
			var delay time.Duration
			r.rng.with(func(rr *rand.Rand) { delay = ramp.ReplyDelay(rr) })
			r.deferrer.After(fmt.Sprintf("reply:%s:%d", in.Email, m.UID), delay, func(ctx context.Context) {
				r.deferredReply(ctx, in.Email, m)
			})
			log.Debug().Str("from", m.FromEmail).Dur("delay", delay).Msg("reply scheduled")
			continue
		}
		r.reply(ctx, in, acct, m)
	}
}

// deferredReply re-reads the inbox so a pause or a credential change made
// while the reply was pending is honoured.
func (r *Replier) deferredReply(ctx context.Context, inbox string, m email.FetchedMessage) {
	in, err := r.Inboxes.Get(ctx, inbox)
	if err != nil || !in.IsActive() {
		return
	}
	password, err := r.Passwords.Password(in)
	if err != nil {
		return
	}
	r.reply(ctx, in, email.AccountFor(in, password), m)
}

func (r *Replier) reply(ctx context.Context, in model.Inbox, acct email.Account, m email.FetchedMessage) {
	name := m.FromName
	if name == "" {
		name = model.NameFromAddress(m.FromEmail)
	}
	msg := r.Content.Reply(in.SenderName(), name, m.Subject, clip(m.Body, snippetRunes))

	out := email.Outgoing{
		To:        m.FromEmail,
		ToName:    m.FromName,
		Subject:   msg.Subject,
		Body:      msg.Body,
		InReplyTo: m.MessageID,
	}
	if m.MessageID != "" {
		out.References = []string{m.MessageID}
	}

	res := r.sender.Send(ctx, acct, out)
	if !res.Success {
		r.journal.Record(ctx, model.LogError, in.Email, m.FromEmail, msg.Subject, "Reply failed: "+res.Message)
		r.journal.Emit(model.EventError, in.Email, "Reply failed: "+clip(res.Message, 80))
		r.Metrics.Failed(in.Email, "reply")
		return
	}

	r.journal.Record(ctx, model.LogReply, in.Email, m.FromEmail, msg.Subject, "in_reply_to="+m.MessageID)
	r.journal.Emit(model.EventReply, in.Email, fmt.Sprintf("Replied to %s | %s", m.FromEmail, clip(m.Subject, 40)))
	r.Metrics.Replied(in.Email)

	if err := r.mailbox.MarkAnswered(ctx, acct, m.UID); err != nil {
		r.Log.Warn().Err(err).Str("inbox", in.Email).Uint32("uid", m.UID).Msg("marking answered")
	}
}

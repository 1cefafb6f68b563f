package dashboard

import (
	"fmt"
	"time"

	"github.com/nhle/phoenix-warmup/internal/model"
)

// relativeTime renders how long ago t was.
func relativeTime(t, now time.Time) string {
	if t.IsZero() {
		return "never"
	}

	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}

// untilTime renders the wait until t, or "due" once it has passed.
func untilTime(t, now time.Time) string {
	if t.IsZero() || !t.After(now) {
		return "due"
	}

	d := t.Sub(now)
	switch {
	case d < time.Minute:
		return fmt.Sprintf("in %ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("in %dm", int(d.Minutes()))
	default:
		return fmt.Sprintf("in %dh%02dm", int(d.Hours()), int(d.Minutes())%60)
	}
}

// nextSend describes when an inbox sends next.
func nextSend(in model.Inbox, now time.Time) string {
	switch {
	case !in.IsActive():
		return "-"
	case in.QuotaMet():
		return "quota met"
	default:
		return untilTime(in.NextSendAt.Time, now)
	}
}

// statusLabel is the table text for an inbox status.
func statusLabel(in model.Inbox) string {
	switch in.Status {
	case model.InboxActive:
		return "Active"
	case model.InboxPaused:
		return "Paused"
	case model.InboxError:
		return "Error"
	default:
		return string(in.Status)
	}
}

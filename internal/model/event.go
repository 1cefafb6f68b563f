package model

import "time"

// EventKind is the category of a dashboard feed event.
type EventKind string

const (
	EventSend         EventKind = "send"
	EventReply        EventKind = "reply"
	EventBounce       EventKind = "bounce"
	EventError        EventKind = "error"
	EventPause        EventKind = "pause"
	EventResume       EventKind = "resume"
	EventStageAdvance EventKind = "stage_advance"
	EventWarning      EventKind = "warning"
	EventStatus       EventKind = "status"
)

// Event is a notification posted by a background job to the UI.
type Event struct {
	Kind    EventKind
	Inbox   string
	Message string
	Time    time.Time
}

// Clock is the event time as HH:MM:SS.
func (e Event) Clock() string {
	return e.Time.Format("15:04:05")
}

package model

// LogType classifies a row in the activity log.
type LogType string

const (
	LogSend   LogType = "SEND"
	LogReply  LogType = "REPLY"
	LogBounce LogType = "BOUNCE"
	LogError  LogType = "ERROR"
	LogPause  LogType = "PAUSE"
	LogResume LogType = "RESUME"
	LogStage  LogType = "STAGE"
	LogReset  LogType = "RESET"
	LogInfo   LogType = "INFO"
)

// LogEntry is one append-only row of logs.csv.
type LogEntry struct {
	Timestamp  Timestamp `csv:"timestamp"`
	InboxEmail string    `csv:"inbox_email"`
	Type       LogType   `csv:"event_type"`
	Recipient  string    `csv:"recipient"`
	Subject    string    `csv:"subject"`
	Details    string    `csv:"details"`
}

// DailyStats aggregates today's log rows for the dashboard.
type DailyStats struct {
	Sent    int
	Replies int
	Errors  int
	Bounces int
}

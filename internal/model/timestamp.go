package model

import (
	"fmt"
	"strings"
	"time"
)

// TimestampLayout is the on-disk format for every timestamp column.
// It is local wall-clock time without a zone, matching files written by
// earlier releases.
const TimestampLayout = "2006-01-02T15:04:05"

var timestampLayouts = []string{
	TimestampLayout,
	time.RFC3339,
	"2006-01-02T15:04:05.999999",
	"2006-01-02 15:04:05",
}

// Timestamp is a time.Time that encodes to and from CSV cells.
// The zero value is stored as an empty cell.
type Timestamp struct {
	time.Time
}

// At wraps t as a Timestamp truncated to whole seconds.
func At(t time.Time) Timestamp {
	if t.IsZero() {
		return Timestamp{}
	}
	return Timestamp{Time: t.Truncate(time.Second)}
}

// MarshalCSV implements gocsv.TypeMarshaller.
func (t Timestamp) MarshalCSV() (string, error) {
	if t.IsZero() {
		return "", nil
	}
	return t.Local().Format(TimestampLayout), nil
}

// UnmarshalCSV implements gocsv.TypeUnmarshaller.
func (t *Timestamp) UnmarshalCSV(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		t.Time = time.Time{}
		return nil
	}
	for _, layout := range timestampLayouts {
		parsed, err := time.ParseInLocation(layout, s, time.Local)
		if err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("parsing timestamp %q", s)
}

// Clock renders the time as HH:MM:SS, or "--:--:--" when unset.
func (t Timestamp) Clock() string {
	if t.IsZero() {
		return "--:--:--"
	}
	return t.Local().Format("15:04:05")
}

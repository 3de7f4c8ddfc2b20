package domain

import (
	"strings"
	"time"
)

// Exercise is one recorded activity owned by a user. Entries are immutable
// after creation.
type Exercise struct {
	ID          string
	UserID      string
	Description string
	Duration    int
	Date        time.Time // Midnight UTC; date-only precision.
	CreatedAt   time.Time
}

const (
	// DateInputFormat is the only accepted format for caller-supplied dates.
	DateInputFormat = "2006-01-02"
	// DateOutputFormat renders calendar dates for API responses, e.g. "Sun Jan 15 2023".
	DateOutputFormat = "Mon Jan 02 2006"
)

// ParseDate parses caller-provided date text and normalises it to date-only
// precision at midnight UTC.
func ParseDate(text string) (time.Time, error) {
	parsed, err := time.Parse(DateInputFormat, strings.TrimSpace(text))
	if err != nil {
		return time.Time{}, err
	}
	return DateOnly(parsed), nil
}

// DateOnly truncates a timestamp to its calendar date at midnight UTC,
// discarding time-of-day and zone information.
func DateOnly(t time.Time) time.Time {
	year, month, day := t.UTC().Date()
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// FormatDate renders a stored date in the human-readable day string used on
// the wire.
func FormatDate(t time.Time) string {
	return t.UTC().Format(DateOutputFormat)
}

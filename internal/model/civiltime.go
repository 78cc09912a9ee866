package model

import (
	"errors"
	"strings"
	"time"
)

// The timetable API emits timestamps as local civil time with a bare
// UTC offset suffix, e.g. "2025-08-18T08:00:00+02". The offset is
// informational only: all grouping, layout and export logic works on
// the wall-clock fields and discards the offset, so there is no
// timezone-database conversion anywhere in this service.

const civilLayout = "2006-01-02T15:04:05"

// ParseCivil parses an upstream timestamp into a wall-clock time.Time
// (location UTC, but the location carries no meaning). A space
// separator between date and time is tolerated, matching payload
// variants seen from the upstream API.
func ParseCivil(s string) (time.Time, error) {
	s = strings.Replace(s, " ", "T", 1)
	if len(s) < len(civilLayout) {
		return time.Time{}, errors.New("timestamp too short: " + s)
	}
	return time.Parse(civilLayout, s[:len(civilLayout)])
}

// ClockString extracts the "HH:MM" portion of an upstream timestamp
// without parsing it. Returns "" for malformed input.
func ClockString(s string) string {
	s = strings.Replace(s, " ", "T", 1)
	if len(s) < 16 {
		return ""
	}
	return s[11:16]
}

// ISOWeek returns the ISO-8601 week number for a wall-clock time.
func ISOWeek(t time.Time) int {
	_, week := t.ISOWeek()
	return week
}

// Package dates provides canonical date, time and datetime parsing helpers.
//
// Metadata values reach this package either as strings or, when the YAML
// decoder recognised a timestamp, as time.Time. Both shapes are accepted.
package dates

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

const (
	DateLayout     = "2006-01-02"
	DatetimeLayout = "2006-01-02T15:04"
	TimeLayout     = "15:04"
)

var (
	dateRegex = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	timeRegex = regexp.MustCompile(`^\d{1,2}:\d{2}(:\d{2})?$`)
)

// IsValidDate checks if a string is a valid YYYY-MM-DD date.
func IsValidDate(s string) bool {
	if !dateRegex.MatchString(s) {
		return false
	}
	_, err := time.Parse(DateLayout, s)
	return err == nil
}

// ParseDate parses a YYYY-MM-DD date.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if !IsValidDate(s) {
		return time.Time{}, fmt.Errorf("invalid date: %q", s)
	}
	return time.Parse(DateLayout, s)
}

// ParseDatetime parses a datetime in one of the accepted formats:
// RFC3339, YYYY-MM-DDTHH:MM, YYYY-MM-DDTHH:MM:SS, or the same two with a
// space instead of the T.
func ParseDatetime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("invalid datetime: empty")
	}

	formats := []string{
		time.RFC3339,
		DatetimeLayout,
		"2006-01-02T15:04:05",
		"2006-01-02 15:04",
		"2006-01-02 15:04:05",
	}
	for _, format := range formats {
		if t, err := time.Parse(format, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid datetime: %q", s)
}

// IsValidDatetime checks if a string is a valid datetime.
func IsValidDatetime(s string) bool {
	_, err := ParseDatetime(s)
	return err == nil
}

// ParseClock parses a time of day (HH:MM or HH:MM:SS) into an offset
// from midnight.
func ParseClock(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if !timeRegex.MatchString(s) {
		return 0, fmt.Errorf("invalid time: %q", s)
	}
	layout := TimeLayout
	if strings.Count(s, ":") == 2 {
		layout = "15:04:05"
	}
	if len(s) > 0 && s[1] == ':' {
		s = "0" + s
	}
	t, err := time.Parse(layout, s)
	if err != nil {
		return 0, fmt.Errorf("invalid time: %q", s)
	}
	return time.Duration(t.Hour())*time.Hour +
		time.Duration(t.Minute())*time.Minute +
		time.Duration(t.Second())*time.Second, nil
}

// FromValue converts a metadata value into a time. Strings may hold a date
// or a datetime; time.Time values pass through.
func FromValue(v any) (time.Time, bool) {
	switch vv := v.(type) {
	case time.Time:
		return vv, !vv.IsZero()
	case string:
		s := strings.TrimSpace(vv)
		if s == "" {
			return time.Time{}, false
		}
		if t, err := ParseDate(s); err == nil {
			return t, true
		}
		if t, err := ParseDatetime(s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Combine resolves a date value and an optional time-of-day value into a
// single instant. A missing or unparseable time leaves the date at midnight.
func Combine(date, clock any) (time.Time, bool) {
	d, ok := FromValue(date)
	if !ok {
		return time.Time{}, false
	}
	s, isString := clock.(string)
	if !isString {
		return d, true
	}
	offset, err := ParseClock(s)
	if err != nil {
		return d, true
	}
	midnight := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, d.Location())
	return midnight.Add(offset), true
}

// FormatDate formats a time as YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// FormatDatetime formats a time as YYYY-MM-DDTHH:MM.
func FormatDatetime(t time.Time) string {
	return t.Format(DatetimeLayout)
}

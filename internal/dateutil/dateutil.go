// Package dateutil converts between naive calendar dates and their string
// forms. Dates carry no timezone meaning; a *time.Location only decides which
// midnight a date is anchored to.
package dateutil

import (
	"errors"
	"regexp"
	"time"
)

const (
	// LayoutYMD is the canonical stored form, e.g. 2024-01-31.
	LayoutYMD = "2006-01-02"
	// LayoutInput is the form used by interactive date fields, e.g. 2024/01/31.
	LayoutInput = "2006/01/02"
)

var (
	ErrInvalidDate = errors.New("invalid date")
	ErrInvalidTime = errors.New("invalid time of day")

	ymdPattern   = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	inputPattern = regexp.MustCompile(`^\d{4}/\d{2}/\d{2}$`)
	clockPattern = regexp.MustCompile(`^(?:2[0-3]|[01]?[0-9]):[0-5][0-9]$`)
)

// IsYMD reports whether s has the exact shape YYYY-MM-DD. It does not check
// that the date exists.
func IsYMD(s string) bool {
	return ymdPattern.MatchString(s)
}

// FormatYMD renders t's calendar date in its own location.
func FormatYMD(t time.Time) string {
	return t.Format(LayoutYMD)
}

// FormatInput renders t's calendar date as YYYY/MM/DD.
func FormatInput(t time.Time) string {
	return t.Format(LayoutInput)
}

// ParseYMD parses a canonical date as local midnight.
func ParseYMD(s string) (time.Time, error) {
	return ParseYMDIn(s, time.Local)
}

// ParseYMDIn parses a canonical date as midnight in loc.
func ParseYMDIn(s string, loc *time.Location) (time.Time, error) {
	if !IsYMD(s) {
		return time.Time{}, ErrInvalidDate
	}
	if loc == nil {
		loc = time.Local
	}
	t, err := time.ParseInLocation(LayoutYMD, s, loc)
	if err != nil {
		return time.Time{}, ErrInvalidDate
	}
	return t, nil
}

// ParseInput parses the interactive YYYY/MM/DD form as local midnight,
// rejecting dates that do not exist (e.g. 2023/02/29).
func ParseInput(s string) (time.Time, error) {
	if !inputPattern.MatchString(s) {
		return time.Time{}, ErrInvalidDate
	}
	t, err := time.ParseInLocation(LayoutInput, s, time.Local)
	if err != nil {
		return time.Time{}, ErrInvalidDate
	}
	return t, nil
}

// Normalize accepts either the canonical or the interactive form and returns
// the canonical string.
func Normalize(s string) (string, error) {
	if t, err := ParseYMD(s); err == nil {
		return FormatYMD(t), nil
	}
	t, err := ParseInput(s)
	if err != nil {
		return "", err
	}
	return FormatYMD(t), nil
}

// StartOfDay truncates t to midnight in its own location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// reminderLayouts are tried in order. Zone-less forms are read as local time.
var reminderLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04:05.000",
	LayoutYMD,
}

// ParseDateTime parses a reminder value. RFC 3339 strings keep their offset;
// the zone-less forms written by the reminder form are read as local time.
func ParseDateTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	for _, layout := range reminderLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, ErrInvalidDate
}

// CombineReminder joins an interactive date (YYYY/MM/DD or YYYY-MM-DD) and an
// HH:MM clock into the stored reminder form YYYY-MM-DDTHH:MM:00.
func CombineReminder(date, clock string) (string, error) {
	ymd, err := Normalize(date)
	if err != nil {
		return "", err
	}
	if !clockPattern.MatchString(clock) {
		return "", ErrInvalidTime
	}
	if len(clock) == 4 {
		clock = "0" + clock
	}
	return ymd + "T" + clock + ":00", nil
}

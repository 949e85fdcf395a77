// Package shared contains common domain types, errors, and events that are
// used across all domain packages.
package shared

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ═══════════════════════════════════════════════════════════════════════════
// Value Objects
// ═══════════════════════════════════════════════════════════════════════════

// Email represents a member's email address, the recipient identity
// used by the notifier.
type Email string

// Loose format check; the mail provider is the final authority.
var emailRegex = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// IsValid checks if the email has a plausible format.
func (e Email) IsValid() bool {
	return emailRegex.MatchString(string(e))
}

// String returns the string representation.
func (e Email) String() string {
	return string(e)
}

// Normalize returns a normalized (lowercase, trimmed) version of the email.
func (e Email) Normalize() Email {
	return Email(strings.ToLower(strings.TrimSpace(string(e))))
}

// NewEmail creates a new Email with validation.
func NewEmail(s string) (Email, error) {
	e := Email(s).Normalize()
	if !e.IsValid() {
		return "", WrapError("shared", "NewEmail", ErrInvalidFormat, "invalid email address", nil)
	}
	return e, nil
}

// HourOfDay represents an hour slot (0-23) used for unlock and reminder
// scheduling. All tick arithmetic happens on whole hours.
type HourOfDay int

// IsValid checks if the hour is within 0-23.
func (h HourOfDay) IsValid() bool {
	return h >= 0 && h <= 23
}

// Int returns the underlying int value.
func (h HourOfDay) Int() int {
	return int(h)
}

// String returns the hour formatted as "HH:00".
func (h HourOfDay) String() string {
	s := strconv.Itoa(int(h))
	if h < 10 {
		s = "0" + s
	}
	return s + ":00"
}

// NewHourOfDay creates a new HourOfDay with validation.
func NewHourOfDay(h int) (HourOfDay, error) {
	hour := HourOfDay(h)
	if !hour.IsValid() {
		return 0, WrapError("shared", "NewHourOfDay", ErrValueOutOfRange, "hour must be between 0 and 23", nil)
	}
	return hour, nil
}

// ═══════════════════════════════════════════════════════════════════════════
// Time Helpers
// ═══════════════════════════════════════════════════════════════════════════

// StartOfDay returns midnight of the given time in UTC.
func StartOfDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// SameDay reports whether two timestamps fall on the same UTC calendar day.
func SameDay(a, b time.Time) bool {
	return StartOfDay(a).Equal(StartOfDay(b))
}

// Package calendar provides weekday tags and active-day arithmetic used by
// the lesson unlock and reminder logic. All functions are pure: they operate
// on the dates they are given and never read the wall clock.
package calendar

import (
	"errors"
	"strings"
	"time"
)

// Weekday is a lowercase three-letter weekday tag ("mon" .. "sun").
type Weekday string

const (
	Monday    Weekday = "mon"
	Tuesday   Weekday = "tue"
	Wednesday Weekday = "wed"
	Thursday  Weekday = "thu"
	Friday    Weekday = "fri"
	Saturday  Weekday = "sat"
	Sunday    Weekday = "sun"
)

// ErrInvalidWeekday is returned when a string is not a recognized weekday tag.
var ErrInvalidWeekday = errors.New("invalid weekday tag")

// AllWeekdays returns the seven weekday tags in Monday-first order.
func AllWeekdays() []Weekday {
	return []Weekday{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday}
}

// IsValid reports whether the tag is one of the seven known weekdays.
func (w Weekday) IsValid() bool {
	switch w {
	case Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday:
		return true
	default:
		return false
	}
}

// String returns the tag itself.
func (w Weekday) String() string {
	return string(w)
}

// ParseWeekday parses a tag, accepting any case and full English names.
func ParseWeekday(s string) (Weekday, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "mon", "monday":
		return Monday, nil
	case "tue", "tuesday":
		return Tuesday, nil
	case "wed", "wednesday":
		return Wednesday, nil
	case "thu", "thursday":
		return Thursday, nil
	case "fri", "friday":
		return Friday, nil
	case "sat", "saturday":
		return Saturday, nil
	case "sun", "sunday":
		return Sunday, nil
	default:
		return "", ErrInvalidWeekday
	}
}

// WeekdayOf returns the tag for the calendar day of t.
func WeekdayOf(t time.Time) Weekday {
	switch t.Weekday() {
	case time.Monday:
		return Monday
	case time.Tuesday:
		return Tuesday
	case time.Wednesday:
		return Wednesday
	case time.Thursday:
		return Thursday
	case time.Friday:
		return Friday
	case time.Saturday:
		return Saturday
	default:
		return Sunday
	}
}

// DaySet is a set of weekday tags. The zero value is the empty set.
type DaySet map[Weekday]bool

// NewDaySet builds a set from the given tags, ignoring duplicates.
// Returns ErrInvalidWeekday if any tag is unknown.
func NewDaySet(days ...Weekday) (DaySet, error) {
	set := make(DaySet, len(days))
	for _, d := range days {
		if !d.IsValid() {
			return nil, ErrInvalidWeekday
		}
		set[d] = true
	}
	return set, nil
}

// EveryDay returns a set containing all seven weekdays.
func EveryDay() DaySet {
	set := make(DaySet, 7)
	for _, d := range AllWeekdays() {
		set[d] = true
	}
	return set
}

// Contains reports whether the set includes the given day.
func (s DaySet) Contains(d Weekday) bool {
	return s[d]
}

// ContainsDate reports whether the set includes the weekday of t.
func (s DaySet) ContainsDate(t time.Time) bool {
	return s[WeekdayOf(t)]
}

// IsEmpty reports whether no weekday is in the set.
func (s DaySet) IsEmpty() bool {
	return len(s) == 0
}

// Tags returns the set's tags in Monday-first order.
func (s DaySet) Tags() []Weekday {
	tags := make([]Weekday, 0, len(s))
	for _, d := range AllWeekdays() {
		if s[d] {
			tags = append(tags, d)
		}
	}
	return tags
}

// DateOnly truncates t to midnight in its own location.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// DaysBetween returns the number of calendar days from a to b.
// Negative when b precedes a.
func DaysBetween(a, b time.Time) int {
	da := DateOnly(a.UTC())
	db := DateOnly(b.UTC())
	return int(db.Sub(da).Hours() / 24)
}

// ActiveDaysBetween counts the active-day occurrences strictly between
// from and to. Both endpoints are excluded: the day of a completion and
// the day being evaluated never count toward the gap.
func ActiveDaysBetween(from, to time.Time, active DaySet) int {
	start := DateOnly(from.UTC())
	end := DateOnly(to.UTC())
	if !start.Before(end) {
		return 0
	}

	count := 0
	for d := start.AddDate(0, 0, 1); d.Before(end); d = d.AddDate(0, 0, 1) {
		if active.ContainsDate(d) {
			count++
		}
	}
	return count
}

// FollowUpHour returns the follow-up reminder slot for the given initial
// hour: two hours later, wrapping past midnight.
func FollowUpHour(reminderHour int) int {
	return (reminderHour + 2) % 24
}

// IsValidHour reports whether h is a valid hour of day.
func IsValidHour(h int) bool {
	return h >= 0 && h <= 23
}

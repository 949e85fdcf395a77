package scheduler

import (
	"fmt"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// SCHEDULES
// The tick engine is driven by two schedule shapes: the top of every
// hour for unlock and reminder ticks, and a fixed daily time for
// housekeeping jobs.
// ══════════════════════════════════════════════════════════════════════════════

// HourlySchedule fires at the top of every hour. Firing on the exact
// hour boundary matters: tick handlers derive the hour they evaluate
// from the trigger time.
type HourlySchedule struct{}

// NewHourlySchedule creates a new HourlySchedule.
func NewHourlySchedule() *HourlySchedule {
	return &HourlySchedule{}
}

// Next returns the start of the next hour after t.
func (s *HourlySchedule) Next(t time.Time) time.Time {
	return t.Truncate(time.Hour).Add(time.Hour)
}

// String returns the string representation of the schedule.
func (s *HourlySchedule) String() string {
	return "@hourly"
}

// DailySchedule fires once a day at the given hour and minute.
type DailySchedule struct {
	Hour   int
	Minute int
}

// NewDailySchedule creates a new DailySchedule.
func NewDailySchedule(hour, minute int) *DailySchedule {
	return &DailySchedule{Hour: hour, Minute: minute}
}

// Next returns the next occurrence of the daily time after t.
func (s *DailySchedule) Next(t time.Time) time.Time {
	next := time.Date(t.Year(), t.Month(), t.Day(), s.Hour, s.Minute, 0, 0, t.Location())
	if !next.After(t) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// String returns the string representation of the schedule.
func (s *DailySchedule) String() string {
	return fmt.Sprintf("@daily %02d:%02d", s.Hour, s.Minute)
}

// IntervalSchedule schedules a job to run at a fixed interval.
type IntervalSchedule struct {
	Interval time.Duration
}

// NewIntervalSchedule creates a new IntervalSchedule.
func NewIntervalSchedule(interval time.Duration) *IntervalSchedule {
	return &IntervalSchedule{
		Interval: interval,
	}
}

// Next returns the next scheduled time.
func (s *IntervalSchedule) Next(t time.Time) time.Time {
	return t.Add(s.Interval)
}

// String returns the string representation of the schedule.
func (s *IntervalSchedule) String() string {
	return fmt.Sprintf("@every %s", s.Interval.String())
}

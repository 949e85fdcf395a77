package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestHourlySchedule_NextIsTopOfNextHour(t *testing.T) {
	s := NewHourlySchedule()

	at := time.Date(2026, 3, 10, 14, 37, 12, 0, time.UTC)
	next := s.Next(at)

	assert.Equal(t, time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC), next)
}

func TestHourlySchedule_ExactBoundaryAdvancesFullHour(t *testing.T) {
	s := NewHourlySchedule()

	at := time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)
	next := s.Next(at)

	assert.Equal(t, time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC), next)
}

func TestDailySchedule_SameDayWhenTimeNotPassed(t *testing.T) {
	s := NewDailySchedule(18, 0)

	at := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	next := s.Next(at)

	assert.Equal(t, time.Date(2026, 3, 10, 18, 0, 0, 0, time.UTC), next)
}

func TestDailySchedule_NextDayWhenTimePassed(t *testing.T) {
	s := NewDailySchedule(18, 0)

	at := time.Date(2026, 3, 10, 18, 0, 0, 0, time.UTC)
	next := s.Next(at)

	assert.Equal(t, time.Date(2026, 3, 11, 18, 0, 0, 0, time.UTC), next)
}

func TestIntervalSchedule_Next(t *testing.T) {
	s := NewIntervalSchedule(15 * time.Minute)

	at := time.Date(2026, 3, 10, 14, 5, 0, 0, time.UTC)
	assert.Equal(t, at.Add(15*time.Minute), s.Next(at))
}

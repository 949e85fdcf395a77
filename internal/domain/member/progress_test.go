package member

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leadpath/leadpath-engine/pkg/calendar"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestRecordCompletionFirstActivity(t *testing.T) {
	p := NewProgress("m1", "j1", "clarity")

	wasReset, err := p.RecordCompletion(20, day(2026, time.March, 2), calendar.EveryDay())
	assert.NoError(t, err)
	assert.False(t, wasReset)

	assert.Equal(t, 20, p.TotalPoints)
	assert.Equal(t, 1, p.TotalLessons)
	assert.Equal(t, 1, p.CurrentStreakDays)
	assert.Equal(t, 1, p.LongestStreakDays)
	assert.Equal(t, day(2026, time.March, 2), p.LastActivityDate)
}

func TestRecordCompletionSameDayKeepsStreak(t *testing.T) {
	p := NewProgress("m1", "j1", "clarity")

	_, err := p.RecordCompletion(10, time.Date(2026, time.March, 2, 9, 0, 0, 0, time.UTC), calendar.EveryDay())
	assert.NoError(t, err)

	wasReset, err := p.RecordCompletion(15, time.Date(2026, time.March, 2, 21, 30, 0, 0, time.UTC), calendar.EveryDay())
	assert.NoError(t, err)
	assert.False(t, wasReset)

	assert.Equal(t, 1, p.CurrentStreakDays, "same-day completion must not change the streak")
	assert.Equal(t, 25, p.TotalPoints)
	assert.Equal(t, 2, p.TotalLessons)
}

func TestRecordCompletionNextDayIncrementsStreak(t *testing.T) {
	p := NewProgress("m1", "j1", "clarity")

	_, _ = p.RecordCompletion(10, day(2026, time.March, 2), calendar.EveryDay())
	wasReset, err := p.RecordCompletion(10, day(2026, time.March, 3), calendar.EveryDay())
	assert.NoError(t, err)
	assert.False(t, wasReset)

	assert.Equal(t, 2, p.CurrentStreakDays)
	assert.Equal(t, 2, p.LongestStreakDays)
}

func TestRecordCompletionGapResetsStreak(t *testing.T) {
	p := NewProgress("m1", "j1", "clarity")

	_, _ = p.RecordCompletion(10, day(2026, time.March, 2), calendar.EveryDay())
	_, _ = p.RecordCompletion(10, day(2026, time.March, 3), calendar.EveryDay())
	_, _ = p.RecordCompletion(10, day(2026, time.March, 4), calendar.EveryDay())

	wasReset, err := p.RecordCompletion(10, day(2026, time.March, 10), calendar.EveryDay())
	assert.NoError(t, err)
	assert.True(t, wasReset)

	assert.Equal(t, 1, p.CurrentStreakDays)
	assert.Equal(t, 3, p.LongestStreakDays, "longest streak survives the reset")
}

func TestRecordCompletionStreakCountsActiveDays(t *testing.T) {
	// Участник занимается по понедельникам, средам и пятницам.
	active, err := calendar.NewDaySet(calendar.Monday, calendar.Wednesday, calendar.Friday)
	require.NoError(t, err)

	p := NewProgress("m1", "j1", "clarity")

	// 2 марта 2026 - понедельник, 4 марта - среда: между ними нет
	// пропущенных активных дней, серия продолжается.
	_, _ = p.RecordCompletion(10, day(2026, time.March, 2), active)
	wasReset, err := p.RecordCompletion(10, day(2026, time.March, 4), active)
	assert.NoError(t, err)
	assert.False(t, wasReset)
	assert.Equal(t, 2, p.CurrentStreakDays, "no active day missed between mon and wed")

	// Среда -> пятница: вторник и четверг не активны, серия растёт дальше.
	wasReset, err = p.RecordCompletion(10, day(2026, time.March, 6), active)
	assert.NoError(t, err)
	assert.False(t, wasReset)
	assert.Equal(t, 3, p.CurrentStreakDays)
}

func TestRecordCompletionMissedActiveDayResetsStreak(t *testing.T) {
	active, err := calendar.NewDaySet(calendar.Monday, calendar.Wednesday, calendar.Friday)
	require.NoError(t, err)

	p := NewProgress("m1", "j1", "clarity")

	// Понедельник, затем пятница: среда была активным днём и пропущена.
	_, _ = p.RecordCompletion(10, day(2026, time.March, 2), active)
	wasReset, err := p.RecordCompletion(10, day(2026, time.March, 6), active)
	assert.NoError(t, err)
	assert.True(t, wasReset)
	assert.Equal(t, 1, p.CurrentStreakDays)
}

func TestRecordCompletionEmptyDaySetFallsBackToEveryDay(t *testing.T) {
	p := NewProgress("m1", "j1", "clarity")

	_, _ = p.RecordCompletion(10, day(2026, time.March, 2), nil)
	wasReset, err := p.RecordCompletion(10, day(2026, time.March, 4), nil)
	assert.NoError(t, err)
	assert.True(t, wasReset, "with all days active a skipped day resets the streak")
}

func TestRecordCompletionRejectsInvalidPoints(t *testing.T) {
	p := NewProgress("m1", "j1", "clarity")

	_, err := p.RecordCompletion(-1, day(2026, time.March, 2), calendar.EveryDay())
	assert.ErrorIs(t, err, ErrInvalidPoints)

	_, err = p.RecordCompletion(26, day(2026, time.March, 2), calendar.EveryDay())
	assert.ErrorIs(t, err, ErrInvalidPoints)

	assert.Equal(t, 0, p.TotalPoints, "rejected completion must not mutate progress")
	assert.Equal(t, 0, p.TotalLessons)
}

func TestAdvanceCategory(t *testing.T) {
	p := NewProgress("m1", "j1", "clarity")
	p.CurrentWeek = 3

	p.AdvanceCategory("consistency")

	assert.Equal(t, 1, p.TotalCategories)
	assert.Equal(t, "consistency", p.CurrentCategory)
	assert.Equal(t, 1, p.CurrentWeek)
}

func TestNextMilestone(t *testing.T) {
	p := NewProgress("m1", "j1", "clarity")

	m, ok := p.NextMilestone()
	assert.True(t, ok)
	assert.Equal(t, 1, m.Threshold)

	p.TotalLessons = 7
	m, ok = p.NextMilestone()
	assert.True(t, ok)
	assert.Equal(t, 10, m.Threshold)

	p.TotalLessons = 500
	_, ok = p.NextMilestone()
	assert.False(t, ok)
}

func TestDaysSinceLastActivity(t *testing.T) {
	p := NewProgress("m1", "j1", "clarity")
	assert.Equal(t, -1, p.DaysSinceLastActivity(day(2026, time.March, 10)))

	_, _ = p.RecordCompletion(5, day(2026, time.March, 2), calendar.EveryDay())
	assert.Equal(t, 8, p.DaysSinceLastActivity(day(2026, time.March, 10)))
}

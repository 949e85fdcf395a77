package calendar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestParseWeekday(t *testing.T) {
	tests := []struct {
		input   string
		want    Weekday
		wantErr bool
	}{
		{"mon", Monday, false},
		{"Monday", Monday, false},
		{" FRI ", Friday, false},
		{"sunday", Sunday, false},
		{"frid", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		got, err := ParseWeekday(tt.input)
		if tt.wantErr {
			assert.ErrorIs(t, err, ErrInvalidWeekday, "input %q", tt.input)
			continue
		}
		assert.NoError(t, err, "input %q", tt.input)
		assert.Equal(t, tt.want, got, "input %q", tt.input)
	}
}

func TestWeekdayOf(t *testing.T) {
	// 2026-08-24 is a Monday.
	assert.Equal(t, Monday, WeekdayOf(date(2026, time.August, 24)))
	assert.Equal(t, Wednesday, WeekdayOf(date(2026, time.August, 26)))
	assert.Equal(t, Sunday, WeekdayOf(date(2026, time.August, 30)))
}

func TestDaySetContainsDate(t *testing.T) {
	set, err := NewDaySet(Monday, Wednesday, Friday)
	assert.NoError(t, err)

	assert.True(t, set.ContainsDate(date(2026, time.August, 24)))  // Monday
	assert.False(t, set.ContainsDate(date(2026, time.August, 25))) // Tuesday
	assert.True(t, set.ContainsDate(date(2026, time.August, 28)))  // Friday
}

func TestNewDaySetRejectsUnknownTag(t *testing.T) {
	_, err := NewDaySet(Monday, Weekday("xyz"))
	assert.ErrorIs(t, err, ErrInvalidWeekday)
}

func TestEveryDay(t *testing.T) {
	set := EveryDay()
	assert.Len(t, set.Tags(), 7)
	for _, d := range AllWeekdays() {
		assert.True(t, set.Contains(d))
	}
}

func TestActiveDaysBetween(t *testing.T) {
	mwf, _ := NewDaySet(Monday, Wednesday, Friday)
	all := EveryDay()

	mon := date(2026, time.August, 24)
	tue := date(2026, time.August, 25)
	wed := date(2026, time.August, 26)
	fri := date(2026, time.August, 28)
	nextMon := date(2026, time.August, 31)

	tests := []struct {
		name   string
		from   time.Time
		to     time.Time
		active DaySet
		want   int
	}{
		// Only Tuesday lies between Monday and Wednesday, and it is
		// not an active day.
		{"mon to wed with mwf", mon, wed, mwf, 0},
		// Wednesday lies between Monday and Friday and is active.
		{"mon to fri with mwf", mon, fri, mwf, 1},
		{"mon to next mon with mwf", mon, nextMon, mwf, 2},
		{"consecutive days", mon, tue, all, 0},
		{"same day", mon, mon, all, 0},
		{"reversed", fri, mon, all, 0},
		{"every day over a week", mon, nextMon, all, 6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ActiveDaysBetween(tt.from, tt.to, tt.active))
		})
	}
}

func TestDaysBetween(t *testing.T) {
	assert.Equal(t, 0, DaysBetween(date(2026, time.August, 24), date(2026, time.August, 24)))
	assert.Equal(t, 1, DaysBetween(date(2026, time.August, 24), date(2026, time.August, 25)))
	assert.Equal(t, -3, DaysBetween(date(2026, time.August, 28), date(2026, time.August, 25)))

	// Time of day must not affect the result.
	late := time.Date(2026, time.August, 24, 23, 59, 0, 0, time.UTC)
	early := time.Date(2026, time.August, 25, 0, 1, 0, 0, time.UTC)
	assert.Equal(t, 1, DaysBetween(late, early))
}

func TestFollowUpHour(t *testing.T) {
	assert.Equal(t, 16, FollowUpHour(14))
	assert.Equal(t, 0, FollowUpHour(22))
	assert.Equal(t, 1, FollowUpHour(23))
}

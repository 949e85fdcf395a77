package member

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/leadpath/leadpath-engine/pkg/calendar"
)

func TestNewMemberDefaults(t *testing.T) {
	m, err := NewMember(NewMemberParams{
		ID:          "id-1",
		Email:       "  Dana@Example.COM ",
		DisplayName: "Dana",
	})
	assert.NoError(t, err)

	assert.Equal(t, "dana@example.com", m.Email)
	assert.Equal(t, StatusActive, m.Status)
	assert.Equal(t, "UTC", m.Timezone)
	assert.Equal(t, 9, m.Preferences.UnlockHour)
	assert.Equal(t, 14, m.Preferences.ReminderHour)
	assert.Equal(t, RemindersSingle, m.Preferences.ReminderCount)
	assert.True(t, m.Preferences.RemindersEnabled)
	assert.Len(t, m.Preferences.ActiveDays.Tags(), 7)
}

func TestNewMemberValidation(t *testing.T) {
	_, err := NewMember(NewMemberParams{ID: "", Email: "a@b.c", DisplayName: "x"})
	assert.Error(t, err)

	_, err = NewMember(NewMemberParams{ID: "id", Email: "not-an-email", DisplayName: "x"})
	assert.ErrorIs(t, err, ErrInvalidEmail)

	_, err = NewMember(NewMemberParams{ID: "id", Email: "a@b.c", DisplayName: "  "})
	assert.ErrorIs(t, err, ErrInvalidDisplayName)
}

func TestPreferencesNormalizeSyncsCountAndFlag(t *testing.T) {
	p := DefaultPreferences()
	p.ReminderCount = RemindersOff
	p.Normalize()
	assert.False(t, p.RemindersEnabled, "zero count must disable reminders")

	p = DefaultPreferences()
	p.RemindersEnabled = false
	p.Normalize()
	assert.Equal(t, RemindersOff, p.ReminderCount, "disabling must zero the count")
}

func TestPreferencesValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Preferences)
		wantErr error
	}{
		{"empty active days", func(p *Preferences) { p.ActiveDays = calendar.DaySet{} }, ErrEmptyActiveDays},
		{"unlock hour too high", func(p *Preferences) { p.UnlockHour = 24 }, ErrInvalidUnlockHour},
		{"negative reminder hour", func(p *Preferences) { p.ReminderHour = -1 }, ErrInvalidReminderHour},
		{"reminder count out of range", func(p *Preferences) { p.ReminderCount = 3 }, ErrInvalidReminderCount},
		{"count and flag out of sync", func(p *Preferences) { p.ReminderCount = RemindersOff }, ErrReminderCountMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultPreferences()
			tt.mutate(&p)
			assert.ErrorIs(t, p.Validate(), tt.wantErr)
		})
	}

	p := DefaultPreferences()
	assert.NoError(t, p.Validate())
}

func TestPreferencesWantsReminderAt(t *testing.T) {
	p := DefaultPreferences()
	p.ReminderHour = 14

	p.ReminderCount = RemindersSingle
	assert.True(t, p.WantsReminderAt(14))
	assert.False(t, p.WantsReminderAt(16), "single reminder must never use the follow-up slot")

	p.ReminderCount = RemindersDouble
	assert.True(t, p.WantsReminderAt(14))
	assert.True(t, p.WantsReminderAt(16))
	assert.False(t, p.WantsReminderAt(15))

	// Follow-up slot wraps past midnight.
	p.ReminderHour = 23
	assert.True(t, p.WantsReminderAt(1))

	p.RemindersEnabled = false
	p.ReminderCount = RemindersOff
	assert.False(t, p.WantsReminderAt(23))
}

func TestUpdatePreferencesAppliesNormalization(t *testing.T) {
	m, err := NewMember(NewMemberParams{ID: "id", Email: "a@b.c", DisplayName: "A"})
	assert.NoError(t, err)

	prefs := DefaultPreferences()
	prefs.ReminderCount = RemindersOff
	assert.NoError(t, m.UpdatePreferences(prefs))
	assert.False(t, m.Preferences.RemindersEnabled)

	prefs = DefaultPreferences()
	prefs.UnlockHour = 99
	assert.ErrorIs(t, m.UpdatePreferences(prefs), ErrInvalidUnlockHour)
}

func TestPreferencesIsActiveOn(t *testing.T) {
	p := DefaultPreferences()
	p.ActiveDays, _ = calendar.NewDaySet(calendar.Monday, calendar.Friday)

	mon := time.Date(2026, time.August, 24, 0, 0, 0, 0, time.UTC)
	tue := mon.AddDate(0, 0, 1)

	assert.True(t, p.IsActiveOn(mon))
	assert.False(t, p.IsActiveOn(tue))
}

func TestMemberStatusTransitions(t *testing.T) {
	m, _ := NewMember(NewMemberParams{ID: "id", Email: "a@b.c", DisplayName: "A"})

	assert.NoError(t, m.Pause())
	assert.Equal(t, StatusPaused, m.Status)
	assert.False(t, m.CanBeNotified())

	assert.NoError(t, m.Resume())
	assert.Equal(t, StatusActive, m.Status)
	assert.True(t, m.CanBeNotified())

	assert.NoError(t, m.Leave())
	assert.ErrorIs(t, m.Pause(), ErrMemberNotEnrolled)
}

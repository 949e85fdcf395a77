package command

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leadpath/leadpath-engine/internal/domain/member"
	"github.com/leadpath/leadpath-engine/pkg/calendar"
)

func intPtr(n int) *int    { return &n }
func boolPtr(b bool) *bool { return &b }

func TestUpdatePreferencesAppliesPartialUpdates(t *testing.T) {
	m := testMember(t, "m1")
	cache := &fakePrefsCache{}
	handler := NewUpdatePreferencesHandler(newFakeMemberRepo(m), cache)

	result, err := handler.Handle(context.Background(), UpdatePreferencesCommand{
		MemberID: "m1",
		Updates: PreferenceUpdates{
			ActiveDays: []string{"mon", "wed", "fri"},
			UnlockHour: intPtr(7),
		},
	})
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"active_days", "unlock_hour"}, result.ChangedFields)
	assert.Equal(t, 7, m.Preferences.UnlockHour)
	assert.True(t, m.Preferences.ActiveDays.Contains(calendar.Wednesday))
	assert.False(t, m.Preferences.ActiveDays.Contains(calendar.Tuesday))
	// Untouched fields keep their values.
	assert.Equal(t, 14, m.Preferences.ReminderHour)

	assert.Equal(t, []string{"m1"}, cache.invalidated)
}

func TestUpdatePreferencesZeroCountDisablesReminders(t *testing.T) {
	m := testMember(t, "m1")
	handler := NewUpdatePreferencesHandler(newFakeMemberRepo(m), nil)

	result, err := handler.Handle(context.Background(), UpdatePreferencesCommand{
		MemberID: "m1",
		Updates:  PreferenceUpdates{ReminderCount: intPtr(0)},
	})
	require.NoError(t, err)

	assert.False(t, result.UpdatedPreferences.RemindersEnabled)
	assert.Equal(t, member.RemindersOff, result.UpdatedPreferences.ReminderCount)
}

func TestUpdatePreferencesDisableZeroesCount(t *testing.T) {
	m := testMember(t, "m1")
	handler := NewUpdatePreferencesHandler(newFakeMemberRepo(m), nil)

	result, err := handler.Handle(context.Background(), UpdatePreferencesCommand{
		MemberID: "m1",
		Updates:  PreferenceUpdates{RemindersEnabled: boolPtr(false)},
	})
	require.NoError(t, err)

	assert.Equal(t, member.RemindersOff, result.UpdatedPreferences.ReminderCount)
	assert.False(t, result.UpdatedPreferences.RemindersEnabled)
}

func TestUpdatePreferencesReEnableDefaultsToSingle(t *testing.T) {
	m := testMember(t, "m1")
	m.Preferences.ReminderCount = member.RemindersOff
	m.Preferences.RemindersEnabled = false

	handler := NewUpdatePreferencesHandler(newFakeMemberRepo(m), nil)

	result, err := handler.Handle(context.Background(), UpdatePreferencesCommand{
		MemberID: "m1",
		Updates:  PreferenceUpdates{RemindersEnabled: boolPtr(true)},
	})
	require.NoError(t, err)

	assert.Equal(t, member.RemindersSingle, result.UpdatedPreferences.ReminderCount)
	assert.True(t, result.UpdatedPreferences.RemindersEnabled)
}

func TestUpdatePreferencesValidation(t *testing.T) {
	m := testMember(t, "m1")
	handler := NewUpdatePreferencesHandler(newFakeMemberRepo(m), nil)

	cases := []struct {
		name    string
		updates PreferenceUpdates
	}{
		{"bad unlock hour", PreferenceUpdates{UnlockHour: intPtr(24)}},
		{"bad reminder hour", PreferenceUpdates{ReminderHour: intPtr(-1)}},
		{"bad count", PreferenceUpdates{ReminderCount: intPtr(3)}},
		{"bad day tag", PreferenceUpdates{ActiveDays: []string{"mon", "someday"}}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := handler.Handle(context.Background(), UpdatePreferencesCommand{
				MemberID: "m1",
				Updates:  tc.updates,
			})
			assert.Error(t, err)
		})
	}
}

func TestUpdatePreferencesUnknownMember(t *testing.T) {
	handler := NewUpdatePreferencesHandler(newFakeMemberRepo(), nil)

	_, err := handler.Handle(context.Background(), UpdatePreferencesCommand{
		MemberID: "ghost",
		Updates:  PreferenceUpdates{UnlockHour: intPtr(8)},
	})
	assert.ErrorIs(t, err, member.ErrMemberNotFound)
}

package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/leadpath/leadpath-engine/internal/domain/member"
	"github.com/leadpath/leadpath-engine/pkg/calendar"
)

// ══════════════════════════════════════════════════════════════════════════════
// UPDATE PREFERENCES COMMAND
// Updates a member's schedule and reminder preferences. Changing
// preferences never recomputes existing lesson state: lessons that are
// already available or completed stay as they are, and the new settings
// apply only to future ticks.
// ══════════════════════════════════════════════════════════════════════════════

// UpdatePreferencesCommand contains the data to update preferences.
type UpdatePreferencesCommand struct {
	// MemberID is the ID of the member.
	MemberID string

	// Updates contains the new preference values.
	// Only non-nil values will be applied.
	Updates PreferenceUpdates

	// CorrelationID for tracing.
	CorrelationID string
}

// PreferenceUpdates contains optional preference updates.
// nil values mean "don't change".
type PreferenceUpdates struct {
	// ActiveDays - weekday tags the member practices on.
	ActiveDays []string

	// UnlockHour - hour (0-23) new lessons open.
	UnlockHour *int

	// ReminderHour - hour (0-23) of the first reminder.
	ReminderHour *int

	// ReminderCount - reminders per day (0, 1 or 2). Setting zero
	// disables reminders; the enabled flag follows automatically.
	ReminderCount *int

	// RemindersEnabled - reminder on/off switch. Disabling zeroes the
	// count automatically.
	RemindersEnabled *bool
}

// Validate validates the command.
func (c UpdatePreferencesCommand) Validate() error {
	if c.MemberID == "" {
		return errors.New("update_preferences: member_id is required")
	}

	if c.Updates.UnlockHour != nil && !calendar.IsValidHour(*c.Updates.UnlockHour) {
		return errors.New("update_preferences: unlock_hour must be 0-23")
	}
	if c.Updates.ReminderHour != nil && !calendar.IsValidHour(*c.Updates.ReminderHour) {
		return errors.New("update_preferences: reminder_hour must be 0-23")
	}
	if c.Updates.ReminderCount != nil {
		if n := *c.Updates.ReminderCount; n < 0 || n > 2 {
			return errors.New("update_preferences: reminder_count must be 0, 1 or 2")
		}
	}
	for _, tag := range c.Updates.ActiveDays {
		if _, err := calendar.ParseWeekday(tag); err != nil {
			return fmt.Errorf("update_preferences: invalid active day %q", tag)
		}
	}

	return nil
}

// UpdatePreferencesResult contains the result of updating preferences.
type UpdatePreferencesResult struct {
	// MemberID is the ID of the member.
	MemberID string

	// UpdatedPreferences contains the final, normalized values.
	UpdatedPreferences member.Preferences

	// ChangedFields lists which fields were changed.
	ChangedFields []string

	// UpdatedAt is when the preferences were updated.
	UpdatedAt time.Time
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// UpdatePreferencesHandler handles the UpdatePreferencesCommand.
type UpdatePreferencesHandler struct {
	memberRepo member.Repository
	cache      member.PreferencesCache // Optional cache for invalidation
}

// NewUpdatePreferencesHandler creates a new UpdatePreferencesHandler.
func NewUpdatePreferencesHandler(
	memberRepo member.Repository,
	cache member.PreferencesCache,
) *UpdatePreferencesHandler {
	return &UpdatePreferencesHandler{
		memberRepo: memberRepo,
		cache:      cache,
	}
}

// Handle executes the update preferences command.
func (h *UpdatePreferencesHandler) Handle(
	ctx context.Context,
	cmd UpdatePreferencesCommand,
) (*UpdatePreferencesResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	m, err := h.memberRepo.GetByID(ctx, cmd.MemberID)
	if err != nil {
		return nil, fmt.Errorf("update_preferences: member not found: %w", err)
	}

	changedFields := make([]string, 0)
	prefs := m.Preferences

	if len(cmd.Updates.ActiveDays) > 0 {
		days := make([]calendar.Weekday, 0, len(cmd.Updates.ActiveDays))
		for _, tag := range cmd.Updates.ActiveDays {
			d, _ := calendar.ParseWeekday(tag)
			days = append(days, d)
		}
		set, err := calendar.NewDaySet(days...)
		if err != nil {
			return nil, fmt.Errorf("update_preferences: %w", err)
		}
		prefs.ActiveDays = set
		changedFields = append(changedFields, "active_days")
	}

	if cmd.Updates.UnlockHour != nil && *cmd.Updates.UnlockHour != prefs.UnlockHour {
		prefs.UnlockHour = *cmd.Updates.UnlockHour
		changedFields = append(changedFields, "unlock_hour")
	}

	if cmd.Updates.ReminderHour != nil && *cmd.Updates.ReminderHour != prefs.ReminderHour {
		prefs.ReminderHour = *cmd.Updates.ReminderHour
		changedFields = append(changedFields, "reminder_hour")
	}

	if cmd.Updates.ReminderCount != nil && member.ReminderCount(*cmd.Updates.ReminderCount) != prefs.ReminderCount {
		prefs.ReminderCount = member.ReminderCount(*cmd.Updates.ReminderCount)
		// Keep the pair consistent: the count drives the flag.
		prefs.RemindersEnabled = prefs.ReminderCount != member.RemindersOff
		changedFields = append(changedFields, "reminder_count")
	}

	if cmd.Updates.RemindersEnabled != nil && *cmd.Updates.RemindersEnabled != prefs.RemindersEnabled {
		prefs.RemindersEnabled = *cmd.Updates.RemindersEnabled
		if prefs.RemindersEnabled && prefs.ReminderCount == member.RemindersOff {
			prefs.ReminderCount = member.RemindersSingle
		}
		changedFields = append(changedFields, "reminders_enabled")
	}

	// UpdatePreferences normalizes the count/flag pair and validates.
	if err := m.UpdatePreferences(prefs); err != nil {
		return nil, fmt.Errorf("update_preferences: %w", err)
	}

	if len(changedFields) > 0 {
		if err := h.memberRepo.UpdatePreferences(ctx, m.ID, m.Preferences); err != nil {
			return nil, fmt.Errorf("update_preferences: failed to save: %w", err)
		}

		// Stale cached preferences would make ticks use old hours.
		if h.cache != nil {
			_ = h.cache.Invalidate(ctx, cmd.MemberID)
		}
	}

	return &UpdatePreferencesResult{
		MemberID:           cmd.MemberID,
		UpdatedPreferences: m.Preferences,
		ChangedFields:      changedFields,
		UpdatedAt:          m.UpdatedAt,
	}, nil
}

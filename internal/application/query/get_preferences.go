package query

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/leadpath/leadpath-engine/internal/domain/member"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET PREFERENCES QUERY
// Returns a member's schedule preferences. Reads go through the
// preferences cache when one is configured: a hit skips the database,
// a miss loads the member and backfills the cache. Preference updates
// invalidate the key, so a stale entry lives at most one TTL.
// ══════════════════════════════════════════════════════════════════════════════

// PreferencesCacheTTL is how long cached preferences stay valid.
const PreferencesCacheTTL = 15 * time.Minute

// GetPreferencesQuery requests a member's schedule preferences.
type GetPreferencesQuery struct {
	// MemberID is the ID of the member.
	MemberID string
}

// Validate validates the query.
func (q GetPreferencesQuery) Validate() error {
	if q.MemberID == "" {
		return errors.New("get_preferences: member_id is required")
	}
	return nil
}

// PreferencesView is the read model returned to callers.
type PreferencesView struct {
	// MemberID is the ID of the member.
	MemberID string

	// ActiveDays are the member's practice days as weekday tags.
	ActiveDays []string

	// UnlockHour is the hour of day new lessons open.
	UnlockHour int

	// ReminderHour is the hour of day the first reminder fires.
	ReminderHour int

	// ReminderCount is how many reminders fire per day (0-2).
	ReminderCount int

	// RemindersEnabled reports whether reminders fire at all.
	RemindersEnabled bool

	// FromCache reports whether the view was served from the cache.
	FromCache bool
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// GetPreferencesHandler handles the GetPreferencesQuery.
type GetPreferencesHandler struct {
	memberRepo member.Repository
	cache      member.PreferencesCache // Optional read-through cache
}

// NewGetPreferencesHandler creates a new GetPreferencesHandler.
func NewGetPreferencesHandler(
	memberRepo member.Repository,
	cache member.PreferencesCache,
) *GetPreferencesHandler {
	return &GetPreferencesHandler{
		memberRepo: memberRepo,
		cache:      cache,
	}
}

// Handle executes the query.
func (h *GetPreferencesHandler) Handle(ctx context.Context, q GetPreferencesQuery) (*PreferencesView, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	if h.cache != nil {
		if prefs, err := h.cache.Get(ctx, q.MemberID); err == nil {
			return newPreferencesView(q.MemberID, *prefs, true), nil
		}
		// Любая ошибка кеша трактуется как промах: источником истины
		// остаётся база.
	}

	m, err := h.memberRepo.GetByID(ctx, q.MemberID)
	if err != nil {
		return nil, fmt.Errorf("get_preferences: %w", err)
	}

	if h.cache != nil {
		// Неудачная запись в кеш не мешает ответу
		_ = h.cache.Set(ctx, q.MemberID, m.Preferences, PreferencesCacheTTL)
	}

	return newPreferencesView(q.MemberID, m.Preferences, false), nil
}

// newPreferencesView строит представление из доменных настроек.
func newPreferencesView(memberID string, prefs member.Preferences, fromCache bool) *PreferencesView {
	tags := prefs.ActiveDays.Tags()
	days := make([]string, 0, len(tags))
	for _, t := range tags {
		days = append(days, string(t))
	}

	return &PreferencesView{
		MemberID:         memberID,
		ActiveDays:       days,
		UnlockHour:       prefs.UnlockHour,
		ReminderHour:     prefs.ReminderHour,
		ReminderCount:    int(prefs.ReminderCount),
		RemindersEnabled: prefs.RemindersEnabled,
		FromCache:        fromCache,
	}
}

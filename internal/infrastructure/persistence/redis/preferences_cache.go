package redis

import (
	"context"
	"time"

	"github.com/leadpath/leadpath-engine/internal/domain/member"
	"github.com/leadpath/leadpath-engine/pkg/calendar"
)

// PreferencesCache implements member.PreferencesCache on top of the
// generic Cache. Every hourly tick reads the preferences of all of its
// candidates, so they are kept hot here; preference updates invalidate
// the key so the next tick sees fresh values.
type PreferencesCache struct {
	cache *Cache
}

// NewPreferencesCache creates a new PreferencesCache.
func NewPreferencesCache(cache *Cache) *PreferencesCache {
	return &PreferencesCache{cache: cache}
}

// cachedPreferences is the stored representation. Active days are kept
// as plain tags so the cached form stays stable across domain changes.
type cachedPreferences struct {
	ActiveDays       []string `json:"active_days"`
	UnlockHour       int      `json:"unlock_hour"`
	ReminderHour     int      `json:"reminder_hour"`
	ReminderCount    int      `json:"reminder_count"`
	RemindersEnabled bool     `json:"reminders_enabled"`
}

// Get retrieves preferences from the cache.
// Returns ErrCacheMiss if the member's preferences are not cached.
func (p *PreferencesCache) Get(ctx context.Context, memberID string) (*member.Preferences, error) {
	var stored cachedPreferences
	if err := p.cache.Get(ctx, PreferencesKey(memberID), &stored); err != nil {
		return nil, err
	}

	days := make(calendar.DaySet, len(stored.ActiveDays))
	for _, tag := range stored.ActiveDays {
		d := calendar.Weekday(tag)
		if d.IsValid() {
			days[d] = true
		}
	}

	prefs := member.Preferences{
		ActiveDays:       days,
		UnlockHour:       stored.UnlockHour,
		ReminderHour:     stored.ReminderHour,
		ReminderCount:    member.ReminderCount(stored.ReminderCount),
		RemindersEnabled: stored.RemindersEnabled,
	}
	return &prefs, nil
}

// Set stores preferences in the cache with the given TTL.
func (p *PreferencesCache) Set(ctx context.Context, memberID string, prefs member.Preferences, ttl time.Duration) error {
	tags := prefs.ActiveDays.Tags()
	days := make([]string, 0, len(tags))
	for _, t := range tags {
		days = append(days, string(t))
	}

	stored := cachedPreferences{
		ActiveDays:       days,
		UnlockHour:       prefs.UnlockHour,
		ReminderHour:     prefs.ReminderHour,
		ReminderCount:    int(prefs.ReminderCount),
		RemindersEnabled: prefs.RemindersEnabled,
	}
	return p.cache.Set(ctx, PreferencesKey(memberID), stored, ttl)
}

// Invalidate removes a member's preferences from the cache.
func (p *PreferencesCache) Invalidate(ctx context.Context, memberID string) error {
	return p.cache.Delete(ctx, PreferencesKey(memberID))
}

// InvalidateAll clears all cached preferences.
func (p *PreferencesCache) InvalidateAll(ctx context.Context) error {
	return p.cache.DeleteByPattern(ctx, PrefixPreferences+"*")
}

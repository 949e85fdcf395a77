package query

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leadpath/leadpath-engine/internal/domain/member"
	"github.com/leadpath/leadpath-engine/pkg/calendar"
)

type stubMemberRepo struct {
	members map[string]*member.Member
}

func (r *stubMemberRepo) Create(_ context.Context, m *member.Member) error {
	r.members[m.ID] = m
	return nil
}

func (r *stubMemberRepo) GetByID(_ context.Context, id string) (*member.Member, error) {
	m, ok := r.members[id]
	if !ok {
		return nil, member.ErrMemberNotFound
	}
	return m, nil
}

func (r *stubMemberRepo) GetByEmail(_ context.Context, _ string) (*member.Member, error) {
	return nil, member.ErrMemberNotFound
}

func (r *stubMemberRepo) Update(_ context.Context, m *member.Member) error {
	r.members[m.ID] = m
	return nil
}

func (r *stubMemberRepo) UpdatePreferences(_ context.Context, memberID string, prefs member.Preferences) error {
	m, ok := r.members[memberID]
	if !ok {
		return member.ErrMemberNotFound
	}
	m.Preferences = prefs
	return nil
}

func (r *stubMemberRepo) FindUnlockCandidates(_ context.Context, _ int) ([]*member.Member, error) {
	return nil, nil
}

func (r *stubMemberRepo) FindReminderCandidates(_ context.Context, _ int) ([]*member.Member, error) {
	return nil, nil
}

func (r *stubMemberRepo) Count(_ context.Context) (int, error) { return len(r.members), nil }

func (r *stubMemberRepo) Exists(_ context.Context, id string) (bool, error) {
	_, ok := r.members[id]
	return ok, nil
}

// recordingPrefsCache фиксирует обращения к кешу для проверки сквозного
// чтения: попадание, промах с дозаписью и отключённый кеш.
type recordingPrefsCache struct {
	entries     map[string]member.Preferences
	getCalls    int
	setCalls    int
	lastSetTTL  time.Duration
	failWrites  bool
	invalidated []string
}

func newRecordingPrefsCache() *recordingPrefsCache {
	return &recordingPrefsCache{entries: map[string]member.Preferences{}}
}

func (c *recordingPrefsCache) Get(_ context.Context, memberID string) (*member.Preferences, error) {
	c.getCalls++
	prefs, ok := c.entries[memberID]
	if !ok {
		return nil, errors.New("cache miss")
	}
	return &prefs, nil
}

func (c *recordingPrefsCache) Set(_ context.Context, memberID string, prefs member.Preferences, ttl time.Duration) error {
	c.setCalls++
	c.lastSetTTL = ttl
	if c.failWrites {
		return errors.New("cache unavailable")
	}
	c.entries[memberID] = prefs
	return nil
}

func (c *recordingPrefsCache) Invalidate(_ context.Context, memberID string) error {
	c.invalidated = append(c.invalidated, memberID)
	delete(c.entries, memberID)
	return nil
}

func prefsMember(t *testing.T, id string) *member.Member {
	t.Helper()
	m, err := member.NewMember(member.NewMemberParams{
		ID:          id,
		Email:       id + "@example.com",
		DisplayName: "Test Member",
	})
	require.NoError(t, err)
	return m
}

func TestGetPreferencesCacheMissBackfills(t *testing.T) {
	m := prefsMember(t, "m1")
	active, err := calendar.NewDaySet(calendar.Monday, calendar.Wednesday, calendar.Friday)
	require.NoError(t, err)
	m.Preferences.ActiveDays = active
	m.Preferences.UnlockHour = 7

	cache := newRecordingPrefsCache()
	handler := NewGetPreferencesHandler(
		&stubMemberRepo{members: map[string]*member.Member{"m1": m}},
		cache,
	)

	view, err := handler.Handle(context.Background(), GetPreferencesQuery{MemberID: "m1"})
	require.NoError(t, err)

	assert.False(t, view.FromCache)
	assert.Equal(t, []string{"mon", "wed", "fri"}, view.ActiveDays)
	assert.Equal(t, 7, view.UnlockHour)

	// Промах дозаписывает кеш со стандартным TTL.
	assert.Equal(t, 1, cache.setCalls)
	assert.Equal(t, PreferencesCacheTTL, cache.lastSetTTL)

	// Повторный запрос обслуживается из кеша.
	view, err = handler.Handle(context.Background(), GetPreferencesQuery{MemberID: "m1"})
	require.NoError(t, err)
	assert.True(t, view.FromCache)
	assert.Equal(t, 2, cache.getCalls)
	assert.Equal(t, 1, cache.setCalls)
}

func TestGetPreferencesCacheWriteFailureIsNonFatal(t *testing.T) {
	m := prefsMember(t, "m1")
	cache := newRecordingPrefsCache()
	cache.failWrites = true

	handler := NewGetPreferencesHandler(
		&stubMemberRepo{members: map[string]*member.Member{"m1": m}},
		cache,
	)

	view, err := handler.Handle(context.Background(), GetPreferencesQuery{MemberID: "m1"})
	require.NoError(t, err)
	assert.False(t, view.FromCache)
	assert.Equal(t, 1, cache.setCalls)
}

func TestGetPreferencesWithoutCache(t *testing.T) {
	m := prefsMember(t, "m1")
	handler := NewGetPreferencesHandler(
		&stubMemberRepo{members: map[string]*member.Member{"m1": m}},
		nil,
	)

	view, err := handler.Handle(context.Background(), GetPreferencesQuery{MemberID: "m1"})
	require.NoError(t, err)
	assert.False(t, view.FromCache)
	assert.Equal(t, 14, view.ReminderHour)
	assert.True(t, view.RemindersEnabled)
}

func TestGetPreferencesUnknownMember(t *testing.T) {
	handler := NewGetPreferencesHandler(
		&stubMemberRepo{members: map[string]*member.Member{}},
		newRecordingPrefsCache(),
	)

	_, err := handler.Handle(context.Background(), GetPreferencesQuery{MemberID: "ghost"})
	assert.ErrorIs(t, err, member.ErrMemberNotFound)
}

func TestGetPreferencesValidation(t *testing.T) {
	handler := NewGetPreferencesHandler(
		&stubMemberRepo{members: map[string]*member.Member{}},
		nil,
	)

	_, err := handler.Handle(context.Background(), GetPreferencesQuery{})
	assert.Error(t, err)
}

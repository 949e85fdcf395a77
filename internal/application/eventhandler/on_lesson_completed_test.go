package eventhandler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leadpath/leadpath-engine/internal/domain/journey"
	"github.com/leadpath/leadpath-engine/internal/domain/member"
	"github.com/leadpath/leadpath-engine/internal/domain/shared"
	"github.com/leadpath/leadpath-engine/pkg/calendar"
)

// ─────────────────────────────────────────────────────────────────────────────
// FAKES
// ─────────────────────────────────────────────────────────────────────────────

type stubMemberRepo struct {
	mu      sync.Mutex
	members map[string]*member.Member
}

func newStubMemberRepo(members ...*member.Member) *stubMemberRepo {
	r := &stubMemberRepo{members: make(map[string]*member.Member)}
	for _, m := range members {
		r.members[m.ID] = m
	}
	return r
}

func (r *stubMemberRepo) Create(_ context.Context, m *member.Member) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.members[m.ID] = m
	return nil
}

func (r *stubMemberRepo) GetByID(_ context.Context, id string) (*member.Member, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
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
	r.mu.Lock()
	defer r.mu.Unlock()
	r.members[m.ID] = m
	return nil
}

func (r *stubMemberRepo) UpdatePreferences(_ context.Context, _ string, _ member.Preferences) error {
	return nil
}

func (r *stubMemberRepo) FindUnlockCandidates(_ context.Context, _ int) ([]*member.Member, error) {
	return nil, nil
}

func (r *stubMemberRepo) FindReminderCandidates(_ context.Context, _ int) ([]*member.Member, error) {
	return nil, nil
}

func (r *stubMemberRepo) Count(_ context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.members), nil
}

func (r *stubMemberRepo) Exists(_ context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.members[id]
	return ok, nil
}

type stubProgressRepo struct {
	mu      sync.Mutex
	records map[string]*member.Progress
}

func newStubProgressRepo(records ...*member.Progress) *stubProgressRepo {
	r := &stubProgressRepo{records: make(map[string]*member.Progress)}
	for _, p := range records {
		r.records[p.MemberID] = p
	}
	return r
}

func (r *stubProgressRepo) Save(_ context.Context, p *member.Progress) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[p.MemberID] = p
	return nil
}

func (r *stubProgressRepo) GetByMemberID(_ context.Context, memberID string) (*member.Progress, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.records[memberID]
	if !ok {
		return nil, member.ErrMemberNotFound
	}
	return p, nil
}

func (r *stubProgressRepo) FindInactiveSince(_ context.Context, _ time.Time) ([]*member.Progress, error) {
	return nil, nil
}

type stubJourneyRepo struct {
	journeys map[string]*journey.Journey
}

func newStubJourneyRepo(journeys ...*journey.Journey) *stubJourneyRepo {
	r := &stubJourneyRepo{journeys: make(map[string]*journey.Journey)}
	for _, j := range journeys {
		r.journeys[j.ID] = j
	}
	return r
}

func (r *stubJourneyRepo) Create(_ context.Context, j *journey.Journey) error {
	r.journeys[j.ID] = j
	return nil
}

func (r *stubJourneyRepo) GetByID(_ context.Context, id string) (*journey.Journey, error) {
	j, ok := r.journeys[id]
	if !ok {
		return nil, journey.ErrJourneyNotFound
	}
	return j, nil
}

func (r *stubJourneyRepo) GetActiveByMemberID(_ context.Context, memberID string) (*journey.Journey, error) {
	for _, j := range r.journeys {
		if j.MemberID == memberID && j.Status == journey.JourneyActive {
			return j, nil
		}
	}
	return nil, journey.ErrJourneyNotFound
}

func (r *stubJourneyRepo) Update(_ context.Context, j *journey.Journey) error {
	r.journeys[j.ID] = j
	return nil
}

type stubLessonRepo struct {
	lessons []*journey.LessonInstance
}

func (r *stubLessonRepo) CreateBatch(_ context.Context, lessons []*journey.LessonInstance) error {
	r.lessons = append(r.lessons, lessons...)
	return nil
}

func (r *stubLessonRepo) GetByID(_ context.Context, id string) (*journey.LessonInstance, error) {
	for _, li := range r.lessons {
		if li.ID == id {
			return li, nil
		}
	}
	return nil, journey.ErrLessonNotFound
}

func (r *stubLessonRepo) GetByMemberAndID(_ context.Context, memberID, lessonID string) (*journey.LessonInstance, error) {
	for _, li := range r.lessons {
		if li.ID == lessonID && li.MemberID == memberID {
			return li, nil
		}
	}
	return nil, journey.ErrLessonNotFound
}

func (r *stubLessonRepo) NextLocked(_ context.Context, _, _ string, _ journey.Category) (*journey.LessonInstance, error) {
	return nil, journey.ErrLessonNotFound
}

func (r *stubLessonRepo) LastCompleted(_ context.Context, _, _ string, _ journey.Category) (*journey.LessonInstance, error) {
	return nil, journey.ErrLessonNotFound
}

func (r *stubLessonRepo) CountAvailable(_ context.Context, _ string) (int, error) {
	return 0, nil
}

func (r *stubLessonRepo) CountAvailableInCategory(_ context.Context, _, _ string, _ journey.Category) (int, error) {
	return 0, nil
}

func (r *stubLessonRepo) CountRemaining(_ context.Context, _, _ string, _ journey.Category) (int, error) {
	return 0, nil
}

func (r *stubLessonRepo) MarkAvailable(_ context.Context, _ string, _ time.Time) (bool, error) {
	return false, nil
}

func (r *stubLessonRepo) Update(_ context.Context, _ *journey.LessonInstance) error {
	return nil
}

func (r *stubLessonRepo) ListByJourney(_ context.Context, journeyID string) ([]*journey.LessonInstance, error) {
	var out []*journey.LessonInstance
	for _, li := range r.lessons {
		if li.JourneyID == journeyID {
			out = append(out, li)
		}
	}
	return out, nil
}

type stubCatalog struct {
	defs map[journey.Category][]journey.LessonDefinition
}

func (c *stubCatalog) LessonsFor(category journey.Category) []journey.LessonDefinition {
	return c.defs[category]
}

type recordingPublisher struct {
	events []shared.Event
}

func (p *recordingPublisher) Publish(event shared.Event) error {
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) eventTypes() []shared.EventType {
	out := make([]shared.EventType, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.EventType())
	}
	return out
}

// ─────────────────────────────────────────────────────────────────────────────
// HELPERS
// ─────────────────────────────────────────────────────────────────────────────

func makeLesson(id, memberID, journeyID string, cat journey.Category, week, day int, status journey.LessonStatus) *journey.LessonInstance {
	return &journey.LessonInstance{
		ID:         id,
		MemberID:   memberID,
		JourneyID:  journeyID,
		LessonID:   id,
		Category:   cat,
		WeekNumber: week,
		DayNumber:  day,
		Status:     status,
	}
}

func makeJourney(t *testing.T, id, memberID string, focus journey.Category) *journey.Journey {
	t.Helper()
	j, err := journey.NewJourney(journey.NewJourneyParams{
		ID:          id,
		MemberID:    memberID,
		GrowthFocus: focus,
	})
	require.NoError(t, err)
	return j
}

func newHandler(
	progressRepo member.ProgressRepository,
	journeyRepo journey.Repository,
	lessonRepo journey.LessonRepository,
	catalog journey.Catalog,
	publisher shared.EventPublisher,
) *OnLessonCompletedHandler {
	if catalog == nil {
		catalog = &stubCatalog{}
	}
	return NewOnLessonCompletedHandler(
		newStubMemberRepo(), progressRepo, journeyRepo, lessonRepo, catalog, publisher,
		nil, DefaultOnLessonCompletedConfig(),
	)
}

var day1 = time.Date(2024, 3, 4, 18, 0, 0, 0, time.UTC)

// ─────────────────────────────────────────────────────────────────────────────
// TESTS
// ─────────────────────────────────────────────────────────────────────────────

func TestOnLessonCompletedAddsPointsAndStreak(t *testing.T) {
	jny := makeJourney(t, "j1", "m1", journey.CategoryClarity)
	progress := member.NewProgress("m1", "j1", "clarity")
	progressRepo := newStubProgressRepo(progress)

	lessonRepo := &stubLessonRepo{lessons: []*journey.LessonInstance{
		makeLesson("l1", "m1", "j1", journey.CategoryClarity, 1, 1, journey.LessonCompleted),
		makeLesson("l2", "m1", "j1", journey.CategoryClarity, 1, 2, journey.LessonLocked),
	}}
	publisher := &recordingPublisher{}

	handler := newHandler(progressRepo, newStubJourneyRepo(jny), lessonRepo, nil, publisher)

	err := handler.Handle(shared.NewLessonCompletedEvent("m1", "l1", "j1", "clarity", 20, day1))
	require.NoError(t, err)

	assert.Equal(t, 20, progress.TotalPoints)
	assert.Equal(t, 1, progress.TotalLessons)
	assert.Equal(t, 1, progress.CurrentStreakDays)
	assert.Contains(t, publisher.eventTypes(), shared.EventStreakUpdated)
}

func TestOnLessonCompletedStreakFollowsActiveDays(t *testing.T) {
	// Участник занимается по понедельникам, средам и пятницам.
	m, err := member.NewMember(member.NewMemberParams{
		ID:          "m1",
		Email:       "m1@example.com",
		DisplayName: "Member m1",
	})
	require.NoError(t, err)
	m.Preferences.ActiveDays, err = calendar.NewDaySet(calendar.Monday, calendar.Wednesday, calendar.Friday)
	require.NoError(t, err)

	jny := makeJourney(t, "j1", "m1", journey.CategoryClarity)
	progress := member.NewProgress("m1", "j1", "clarity")
	progressRepo := newStubProgressRepo(progress)

	lessonRepo := &stubLessonRepo{lessons: []*journey.LessonInstance{
		makeLesson("l1", "m1", "j1", journey.CategoryClarity, 1, 1, journey.LessonCompleted),
		makeLesson("l2", "m1", "j1", journey.CategoryClarity, 1, 2, journey.LessonCompleted),
		makeLesson("l3", "m1", "j1", journey.CategoryClarity, 1, 3, journey.LessonLocked),
	}}

	handler := NewOnLessonCompletedHandler(
		newStubMemberRepo(m), progressRepo, newStubJourneyRepo(jny), lessonRepo,
		&stubCatalog{}, &recordingPublisher{}, nil, DefaultOnLessonCompletedConfig(),
	)

	// day1 - понедельник 4 марта 2024; среда - 6 марта. Вторник не
	// активен, поэтому серия продолжается, а не сбрасывается.
	monday := day1
	wednesday := day1.AddDate(0, 0, 2)

	require.NoError(t, handler.Handle(shared.NewLessonCompletedEvent("m1", "l1", "j1", "clarity", 10, monday)))
	require.NoError(t, handler.Handle(shared.NewLessonCompletedEvent("m1", "l2", "j1", "clarity", 10, wednesday)))

	assert.Equal(t, 2, progress.CurrentStreakDays, "wednesday follows monday with no active day missed")
	assert.Equal(t, 2, progress.LongestStreakDays)
}

func TestOnLessonCompletedStreakAcrossDays(t *testing.T) {
	jny := makeJourney(t, "j1", "m1", journey.CategoryClarity)
	progress := member.NewProgress("m1", "j1", "clarity")
	progressRepo := newStubProgressRepo(progress)

	lessonRepo := &stubLessonRepo{lessons: []*journey.LessonInstance{
		makeLesson("l1", "m1", "j1", journey.CategoryClarity, 1, 1, journey.LessonCompleted),
		makeLesson("l2", "m1", "j1", journey.CategoryClarity, 1, 2, journey.LessonCompleted),
		makeLesson("l3", "m1", "j1", journey.CategoryClarity, 1, 3, journey.LessonLocked),
	}}

	handler := newHandler(progressRepo, newStubJourneyRepo(jny), lessonRepo, nil, &recordingPublisher{})

	// Day one, then a second completion the same day, then the next
	// day, then a three-day gap.
	require.NoError(t, handler.Handle(shared.NewLessonCompletedEvent("m1", "l1", "j1", "clarity", 10, day1)))
	require.NoError(t, handler.Handle(shared.NewLessonCompletedEvent("m1", "l2", "j1", "clarity", 10, day1.Add(2*time.Hour))))
	assert.Equal(t, 1, progress.CurrentStreakDays)

	require.NoError(t, handler.Handle(shared.NewLessonCompletedEvent("m1", "l1", "j1", "clarity", 10, day1.AddDate(0, 0, 1))))
	assert.Equal(t, 2, progress.CurrentStreakDays)
	assert.Equal(t, 2, progress.LongestStreakDays)

	require.NoError(t, handler.Handle(shared.NewLessonCompletedEvent("m1", "l2", "j1", "clarity", 10, day1.AddDate(0, 0, 4))))
	assert.Equal(t, 1, progress.CurrentStreakDays)
	assert.Equal(t, 2, progress.LongestStreakDays)
}

func TestOnLessonCompletedRebuildsMissingProgress(t *testing.T) {
	jny := makeJourney(t, "j1", "m1", journey.CategoryClarity)
	progressRepo := newStubProgressRepo()

	lessonRepo := &stubLessonRepo{lessons: []*journey.LessonInstance{
		makeLesson("l1", "m1", "j1", journey.CategoryClarity, 1, 1, journey.LessonCompleted),
		makeLesson("l2", "m1", "j1", journey.CategoryClarity, 1, 2, journey.LessonLocked),
	}}

	handler := newHandler(progressRepo, newStubJourneyRepo(jny), lessonRepo, nil, &recordingPublisher{})

	require.NoError(t, handler.Handle(shared.NewLessonCompletedEvent("m1", "l1", "j1", "clarity", 15, day1)))

	progress, err := progressRepo.GetByMemberID(context.Background(), "m1")
	require.NoError(t, err)
	assert.Equal(t, 15, progress.TotalPoints)
	assert.Equal(t, "j1", progress.CurrentJourneyID)
}

func TestOnLessonCompletedWeekBoundary(t *testing.T) {
	jny := makeJourney(t, "j1", "m1", journey.CategoryClarity)
	progress := member.NewProgress("m1", "j1", "clarity")
	progressRepo := newStubProgressRepo(progress)

	// Week 1 fully done, week 2 still closed.
	lessonRepo := &stubLessonRepo{lessons: []*journey.LessonInstance{
		makeLesson("l1", "m1", "j1", journey.CategoryClarity, 1, 1, journey.LessonCompleted),
		makeLesson("l2", "m1", "j1", journey.CategoryClarity, 1, 2, journey.LessonCompleted),
		makeLesson("l3", "m1", "j1", journey.CategoryClarity, 2, 1, journey.LessonLocked),
	}}

	handler := newHandler(progressRepo, newStubJourneyRepo(jny), lessonRepo, nil, &recordingPublisher{})

	require.NoError(t, handler.Handle(shared.NewLessonCompletedEvent("m1", "l2", "j1", "clarity", 10, day1)))

	assert.Equal(t, 1, progress.TotalWeeks)
	assert.Equal(t, 2, progress.CurrentWeek)
	assert.Equal(t, journey.CategoryClarity, jny.CurrentCategory)
}

func TestOnLessonCompletedCategoryAdvance(t *testing.T) {
	jny := makeJourney(t, "j1", "m1", journey.CategoryClarity)
	progress := member.NewProgress("m1", "j1", "clarity")
	progressRepo := newStubProgressRepo(progress)

	lessonRepo := &stubLessonRepo{lessons: []*journey.LessonInstance{
		makeLesson("l1", "m1", "j1", journey.CategoryClarity, 1, 1, journey.LessonCompleted),
	}}
	catalog := &stubCatalog{defs: map[journey.Category][]journey.LessonDefinition{
		journey.CategoryConsistency: {
			{LessonID: "c-w1d1", Title: "one", WeekNumber: 1, DayNumber: 1, SpacingDays: 1},
			{LessonID: "c-w1d2", Title: "two", WeekNumber: 1, DayNumber: 2, SpacingDays: 1},
		},
	}}
	publisher := &recordingPublisher{}

	handler := newHandler(progressRepo, newStubJourneyRepo(jny), lessonRepo, catalog, publisher)

	require.NoError(t, handler.Handle(shared.NewLessonCompletedEvent("m1", "l1", "j1", "clarity", 25, day1)))

	// Rotation moved clarity -> consistency.
	assert.Equal(t, journey.CategoryConsistency, jny.CurrentCategory)
	assert.Equal(t, []journey.Category{journey.CategoryClarity}, jny.CompletedCategories)

	// Next category lessons exist: first open, the rest closed.
	created, err := lessonRepo.ListByJourney(context.Background(), "j1")
	require.NoError(t, err)
	require.Len(t, created, 3)

	var next []*journey.LessonInstance
	for _, li := range created {
		if li.Category == journey.CategoryConsistency {
			next = append(next, li)
		}
	}
	require.Len(t, next, 2)
	assert.Equal(t, journey.LessonAvailable, next[0].Status)
	assert.Equal(t, journey.LessonLocked, next[1].Status)

	assert.Equal(t, "consistency", progress.CurrentCategory)
	assert.Equal(t, 1, progress.TotalCategories)
	assert.Equal(t, 1, progress.CurrentWeek)
	assert.Contains(t, publisher.eventTypes(), shared.EventCategoryCompleted)
}

func TestOnLessonCompletedFinishesJourneyAfterFifthCategory(t *testing.T) {
	jny := makeJourney(t, "j1", "m1", journey.CategoryClarity)
	jny.CurrentCategory = journey.CategoryCuriosity
	jny.CompletedCategories = []journey.Category{
		journey.CategoryClarity,
		journey.CategoryConsistency,
		journey.CategoryConnection,
		journey.CategoryCourage,
	}

	progress := member.NewProgress("m1", "j1", "curiosity")
	progressRepo := newStubProgressRepo(progress)

	lessonRepo := &stubLessonRepo{lessons: []*journey.LessonInstance{
		makeLesson("l1", "m1", "j1", journey.CategoryCuriosity, 1, 1, journey.LessonCompleted),
	}}
	publisher := &recordingPublisher{}

	handler := newHandler(progressRepo, newStubJourneyRepo(jny), lessonRepo, nil, publisher)

	require.NoError(t, handler.Handle(shared.NewLessonCompletedEvent("m1", "l1", "j1", "curiosity", 25, day1)))

	assert.True(t, jny.IsCompleted())
	assert.False(t, jny.CompletedAt.IsZero())
	assert.Equal(t, member.CategoryCompleted, progress.CurrentCategory)
	assert.Contains(t, publisher.eventTypes(), shared.EventJourneyCompleted)
}

func TestOnLessonCompletedRejectsWrongEventType(t *testing.T) {
	handler := newHandler(newStubProgressRepo(), newStubJourneyRepo(), &stubLessonRepo{}, nil, nil)

	err := handler.Handle(shared.NewBaseEvent(shared.EventMemberRegistered, "m1"))
	assert.Error(t, err)
}

package command

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leadpath/leadpath-engine/internal/domain/journey"
	"github.com/leadpath/leadpath-engine/internal/domain/member"
	"github.com/leadpath/leadpath-engine/internal/domain/shared"
	"github.com/leadpath/leadpath-engine/pkg/calendar"
)

// 2024-01-01 is a Monday; the dates below lean on that.
var (
	monday    = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tuesday   = monday.AddDate(0, 0, 1)
	wednesday = monday.AddDate(0, 0, 2)
	friday    = monday.AddDate(0, 0, 4)
)

func testMember(t *testing.T, id string, days ...calendar.Weekday) *member.Member {
	t.Helper()

	m, err := member.NewMember(member.NewMemberParams{
		ID:          id,
		Email:       id + "@example.com",
		DisplayName: "Member " + id,
	})
	require.NoError(t, err)

	if len(days) > 0 {
		set, err := calendar.NewDaySet(days...)
		require.NoError(t, err)
		m.Preferences.ActiveDays = set
	}
	return m
}

func testJourney(t *testing.T, id, memberID string, category journey.Category) *journey.Journey {
	t.Helper()

	j, err := journey.NewJourney(journey.NewJourneyParams{
		ID:          id,
		MemberID:    memberID,
		GrowthFocus: category,
	})
	require.NoError(t, err)
	return j
}

func lockedLesson(id, memberID, journeyID string, category journey.Category, week, day, spacing int) *journey.LessonInstance {
	return &journey.LessonInstance{
		ID:          id,
		MemberID:    memberID,
		JourneyID:   journeyID,
		LessonID:    id,
		Category:    category,
		WeekNumber:  week,
		DayNumber:   day,
		Status:      journey.LessonLocked,
		SpacingDays: spacing,
	}
}

func completedLesson(id, memberID, journeyID string, category journey.Category, week, day int, at time.Time) *journey.LessonInstance {
	li := lockedLesson(id, memberID, journeyID, category, week, day, 0)
	li.Status = journey.LessonCompleted
	li.CompletedAt = at
	return li
}

func TestUnlockTickSpacingWalkthrough(t *testing.T) {
	// Member practices Mon/Wed/Fri and completed the prior lesson on
	// Monday. With one active day of spacing the next lesson stays
	// closed on Wednesday and opens on Friday.
	m := testMember(t, "m1", calendar.Monday, calendar.Wednesday, calendar.Friday)
	jny := testJourney(t, "j1", m.ID, journey.CategoryClarity)

	prior := completedLesson("l1", m.ID, jny.ID, journey.CategoryClarity, 1, 1, monday)
	next := lockedLesson("l2", m.ID, jny.ID, journey.CategoryClarity, 1, 2, 1)

	memberRepo := newFakeMemberRepo(m)
	journeyRepo := newFakeJourneyRepo(jny)
	lessonRepo := newFakeLessonRepo(prior, next)
	publisher := &fakePublisher{}

	handler := NewRunUnlockTickHandler(memberRepo, journeyRepo, lessonRepo, publisher, nil, 1)

	// Tuesday is not one of the member's active days.
	result, err := handler.Handle(context.Background(), RunUnlockTickCommand{Hour: 9, Date: tuesday})
	require.NoError(t, err)
	assert.Equal(t, 0, result.UnlockedCount)
	assert.Equal(t, 1, result.SkippedReasons[SkipInactiveDay])

	// Wednesday: no active day lies strictly between Monday and today.
	result, err = handler.Handle(context.Background(), RunUnlockTickCommand{Hour: 9, Date: wednesday})
	require.NoError(t, err)
	assert.Equal(t, 0, result.UnlockedCount)
	assert.Equal(t, 1, result.SkippedReasons[SkipSpacingNotMet])
	assert.Equal(t, journey.LessonLocked, next.Status)

	// Friday: Wednesday sits between Monday and today, spacing is met.
	result, err = handler.Handle(context.Background(), RunUnlockTickCommand{Hour: 9, Date: friday})
	require.NoError(t, err)
	assert.Equal(t, 1, result.UnlockedCount)
	assert.Equal(t, 0, result.FailedCount)

	assert.Equal(t, journey.LessonAvailable, next.Status)
	assert.Equal(t, time.Date(2024, 1, 5, 9, 0, 0, 0, time.UTC), next.UnlockedAt)

	events := publisher.published()
	require.Len(t, events, 1)
	assert.Equal(t, shared.EventLessonUnlocked, events[0].EventType())
}

func TestUnlockTickZeroSpacingOpensNextActiveDay(t *testing.T) {
	m := testMember(t, "m1", calendar.Monday, calendar.Wednesday)
	jny := testJourney(t, "j1", m.ID, journey.CategoryClarity)

	prior := completedLesson("l1", m.ID, jny.ID, journey.CategoryClarity, 1, 1, monday)
	next := lockedLesson("l2", m.ID, jny.ID, journey.CategoryClarity, 1, 2, 0)

	handler := NewRunUnlockTickHandler(
		newFakeMemberRepo(m),
		newFakeJourneyRepo(jny),
		newFakeLessonRepo(prior, next),
		&fakePublisher{},
		nil, 1,
	)

	result, err := handler.Handle(context.Background(), RunUnlockTickCommand{Hour: 9, Date: wednesday})
	require.NoError(t, err)
	assert.Equal(t, 1, result.UnlockedCount)
	assert.Equal(t, journey.LessonAvailable, next.Status)
}

func TestUnlockTickReplayIsIdempotent(t *testing.T) {
	m := testMember(t, "m1")
	jny := testJourney(t, "j1", m.ID, journey.CategoryClarity)

	prior := completedLesson("l1", m.ID, jny.ID, journey.CategoryClarity, 1, 1, monday)
	next := lockedLesson("l2", m.ID, jny.ID, journey.CategoryClarity, 1, 2, 0)
	after := lockedLesson("l3", m.ID, jny.ID, journey.CategoryClarity, 1, 3, 0)

	handler := NewRunUnlockTickHandler(
		newFakeMemberRepo(m),
		newFakeJourneyRepo(jny),
		newFakeLessonRepo(prior, next, after),
		&fakePublisher{},
		nil, 1,
	)

	cmd := RunUnlockTickCommand{Hour: 9, Date: tuesday}

	result, err := handler.Handle(context.Background(), cmd)
	require.NoError(t, err)
	assert.Equal(t, 1, result.UnlockedCount)

	// The replay finds one open lesson in the category and unlocks
	// nothing further.
	result, err = handler.Handle(context.Background(), cmd)
	require.NoError(t, err)
	assert.Equal(t, 0, result.UnlockedCount)
	assert.Equal(t, 1, result.SkippedReasons[SkipPriorIncomplete])
}

func TestUnlockTickLosesRaceToConcurrentWriter(t *testing.T) {
	m := testMember(t, "m1")
	jny := testJourney(t, "j1", m.ID, journey.CategoryClarity)

	prior := completedLesson("l1", m.ID, jny.ID, journey.CategoryClarity, 1, 1, monday)
	next := lockedLesson("l2", m.ID, jny.ID, journey.CategoryClarity, 1, 2, 0)

	lessonRepo := newFakeLessonRepo(prior, next)
	// Another tick flips the lesson between our read and our write;
	// the conditional update must report zero rows.
	lessonRepo.beforeMark = func(li *journey.LessonInstance) {
		li.Status = journey.LessonAvailable
	}

	handler := NewRunUnlockTickHandler(
		newFakeMemberRepo(m),
		newFakeJourneyRepo(jny),
		lessonRepo,
		&fakePublisher{},
		nil, 1,
	)

	result, err := handler.Handle(context.Background(), RunUnlockTickCommand{Hour: 9, Date: tuesday})
	require.NoError(t, err)
	assert.Equal(t, 0, result.UnlockedCount)
	assert.Equal(t, 1, result.SkippedReasons[SkipAlreadyUnlocked])
}

func TestUnlockTickPriorLessonStillOpen(t *testing.T) {
	m := testMember(t, "m1")
	jny := testJourney(t, "j1", m.ID, journey.CategoryClarity)

	open := lockedLesson("l1", m.ID, jny.ID, journey.CategoryClarity, 1, 1, 0)
	open.Status = journey.LessonAvailable
	next := lockedLesson("l2", m.ID, jny.ID, journey.CategoryClarity, 1, 2, 0)

	handler := NewRunUnlockTickHandler(
		newFakeMemberRepo(m),
		newFakeJourneyRepo(jny),
		newFakeLessonRepo(open, next),
		&fakePublisher{},
		nil, 1,
	)

	result, err := handler.Handle(context.Background(), RunUnlockTickCommand{Hour: 9, Date: tuesday})
	require.NoError(t, err)
	assert.Equal(t, 0, result.UnlockedCount)
	assert.Equal(t, 1, result.SkippedReasons[SkipPriorIncomplete])
	assert.Equal(t, journey.LessonLocked, next.Status)
}

func TestUnlockTickPacesAgainstSequenceLastCompletion(t *testing.T) {
	// l1 was completed after l2 in wall-clock time (a backdated edit),
	// but l2 is further along the sequence. Spacing paces against l2's
	// Monday completion, so Friday satisfies one active day of spacing.
	m := testMember(t, "m1", calendar.Monday, calendar.Wednesday, calendar.Friday)
	jny := testJourney(t, "j1", m.ID, journey.CategoryClarity)

	first := completedLesson("l1", m.ID, jny.ID, journey.CategoryClarity, 1, 1, friday)
	second := completedLesson("l2", m.ID, jny.ID, journey.CategoryClarity, 1, 2, monday)
	next := lockedLesson("l3", m.ID, jny.ID, journey.CategoryClarity, 1, 3, 1)

	handler := NewRunUnlockTickHandler(
		newFakeMemberRepo(m),
		newFakeJourneyRepo(jny),
		newFakeLessonRepo(first, second, next),
		&fakePublisher{},
		nil, 1,
	)

	result, err := handler.Handle(context.Background(), RunUnlockTickCommand{Hour: 9, Date: friday})
	require.NoError(t, err)
	assert.Equal(t, 1, result.UnlockedCount)
	assert.Equal(t, journey.LessonAvailable, next.Status)
}

func TestUnlockTickUnderSpacedReportsSpacingBeforeOpenLesson(t *testing.T) {
	// The member is both under-spaced and mid-lesson: l1 completed on
	// Monday, l2 still open, l3 needs one active day of spacing. On
	// Wednesday the skip is attributed to spacing, not to the open lesson.
	m := testMember(t, "m1", calendar.Monday, calendar.Wednesday, calendar.Friday)
	jny := testJourney(t, "j1", m.ID, journey.CategoryClarity)

	prior := completedLesson("l1", m.ID, jny.ID, journey.CategoryClarity, 1, 1, monday)
	open := lockedLesson("l2", m.ID, jny.ID, journey.CategoryClarity, 1, 2, 0)
	open.Status = journey.LessonAvailable
	next := lockedLesson("l3", m.ID, jny.ID, journey.CategoryClarity, 1, 3, 1)

	handler := NewRunUnlockTickHandler(
		newFakeMemberRepo(m),
		newFakeJourneyRepo(jny),
		newFakeLessonRepo(prior, open, next),
		&fakePublisher{},
		nil, 1,
	)

	result, err := handler.Handle(context.Background(), RunUnlockTickCommand{Hour: 9, Date: wednesday})
	require.NoError(t, err)
	assert.Equal(t, 0, result.UnlockedCount)
	assert.Equal(t, 1, result.SkippedReasons[SkipSpacingNotMet])
	assert.Equal(t, 0, result.SkippedReasons[SkipPriorIncomplete])
	assert.Equal(t, journey.LessonLocked, next.Status)
}

func TestUnlockTickAvailabilityInvariantViolation(t *testing.T) {
	m := testMember(t, "m1")
	jny := testJourney(t, "j1", m.ID, journey.CategoryClarity)

	openA := lockedLesson("l1", m.ID, jny.ID, journey.CategoryClarity, 1, 1, 0)
	openA.Status = journey.LessonAvailable
	openB := lockedLesson("l2", m.ID, jny.ID, journey.CategoryClarity, 1, 2, 0)
	openB.Status = journey.LessonAvailable
	next := lockedLesson("l3", m.ID, jny.ID, journey.CategoryClarity, 1, 3, 0)

	handler := NewRunUnlockTickHandler(
		newFakeMemberRepo(m),
		newFakeJourneyRepo(jny),
		newFakeLessonRepo(openA, openB, next),
		&fakePublisher{},
		nil, 1,
	)

	result, err := handler.Handle(context.Background(), RunUnlockTickCommand{Hour: 9, Date: tuesday})
	require.NoError(t, err)
	assert.Equal(t, 0, result.UnlockedCount)
	assert.Equal(t, 1, result.FailedCount)
	assert.Equal(t, journey.LessonLocked, next.Status)
}

func TestUnlockTickSkipsWithoutJourney(t *testing.T) {
	m := testMember(t, "m1")

	handler := NewRunUnlockTickHandler(
		newFakeMemberRepo(m),
		newFakeJourneyRepo(),
		newFakeLessonRepo(),
		&fakePublisher{},
		nil, 1,
	)

	result, err := handler.Handle(context.Background(), RunUnlockTickCommand{Hour: 9, Date: tuesday})
	require.NoError(t, err)
	assert.Equal(t, 1, result.CandidateCount)
	assert.Equal(t, 1, result.SkippedReasons[SkipNoJourney])
}

func TestUnlockTickUntouchedCategoryWaitsForCompletion(t *testing.T) {
	// Nothing completed and nothing open in the category: the next
	// lesson stays closed until its predecessor path is walked.
	m := testMember(t, "m1")
	jny := testJourney(t, "j1", m.ID, journey.CategoryCourage)

	next := lockedLesson("l1", m.ID, jny.ID, journey.CategoryCourage, 1, 1, 0)

	handler := NewRunUnlockTickHandler(
		newFakeMemberRepo(m),
		newFakeJourneyRepo(jny),
		newFakeLessonRepo(next),
		&fakePublisher{},
		nil, 1,
	)

	result, err := handler.Handle(context.Background(), RunUnlockTickCommand{Hour: 9, Date: tuesday})
	require.NoError(t, err)
	assert.Equal(t, 0, result.UnlockedCount)
	assert.Equal(t, 1, result.SkippedReasons[SkipPriorIncomplete])
}

func TestUnlockTickOnlyMatchingHourCandidates(t *testing.T) {
	early := testMember(t, "m-early")
	early.Preferences.UnlockHour = 6
	late := testMember(t, "m-late")
	late.Preferences.UnlockHour = 21

	handler := NewRunUnlockTickHandler(
		newFakeMemberRepo(early, late),
		newFakeJourneyRepo(),
		newFakeLessonRepo(),
		&fakePublisher{},
		nil, 2,
	)

	result, err := handler.Handle(context.Background(), RunUnlockTickCommand{Hour: 6, Date: tuesday})
	require.NoError(t, err)
	assert.Equal(t, 1, result.CandidateCount)
}

func TestUnlockTickCommandValidation(t *testing.T) {
	handler := NewRunUnlockTickHandler(
		newFakeMemberRepo(),
		newFakeJourneyRepo(),
		newFakeLessonRepo(),
		nil,
		nil, 1,
	)

	_, err := handler.Handle(context.Background(), RunUnlockTickCommand{Hour: 24, Date: tuesday})
	assert.Error(t, err)

	_, err = handler.Handle(context.Background(), RunUnlockTickCommand{Hour: 9})
	assert.Error(t, err)
}

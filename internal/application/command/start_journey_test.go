package command

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leadpath/leadpath-engine/internal/domain/journey"
)

func TestStartJourneyCreatesLessonsAndProgress(t *testing.T) {
	m := testMember(t, "m1")
	memberRepo := newFakeMemberRepo(m)
	journeyRepo := newFakeJourneyRepo()
	lessonRepo := newFakeLessonRepo()
	progressRepo := newFakeProgressRepo()

	handler := NewStartJourneyHandler(
		memberRepo, journeyRepo, lessonRepo, progressRepo,
		journey.NewStaticCatalog(), &fakePublisher{},
	)

	result, err := handler.Handle(context.Background(), StartJourneyCommand{
		MemberID:    "m1",
		GrowthFocus: "courage",
	})
	require.NoError(t, err)

	assert.Equal(t, "courage", result.FirstCategory)
	assert.Equal(t, 12, result.LessonCount)

	jny, err := journeyRepo.GetActiveByMemberID(context.Background(), "m1")
	require.NoError(t, err)
	assert.Equal(t, journey.CategoryCourage, jny.CurrentCategory)
	assert.Equal(t, journey.CategoryCourage, jny.GrowthFocus)

	// First lesson open, the rest closed.
	lessons, err := lessonRepo.ListByJourney(context.Background(), jny.ID)
	require.NoError(t, err)
	require.Len(t, lessons, 12)
	assert.Equal(t, journey.LessonAvailable, lessons[0].Status)
	for _, li := range lessons[1:] {
		assert.Equal(t, journey.LessonLocked, li.Status)
	}

	progress, err := progressRepo.GetByMemberID(context.Background(), "m1")
	require.NoError(t, err)
	assert.Equal(t, jny.ID, progress.CurrentJourneyID)
	assert.Equal(t, "courage", progress.CurrentCategory)
	assert.Equal(t, 0, progress.TotalPoints)
}

func TestStartJourneyRejectsSecondActiveJourney(t *testing.T) {
	m := testMember(t, "m1")
	existing := testJourney(t, "j1", m.ID, journey.CategoryClarity)

	handler := NewStartJourneyHandler(
		newFakeMemberRepo(m),
		newFakeJourneyRepo(existing),
		newFakeLessonRepo(),
		newFakeProgressRepo(),
		journey.NewStaticCatalog(),
		&fakePublisher{},
	)

	_, err := handler.Handle(context.Background(), StartJourneyCommand{
		MemberID:    "m1",
		GrowthFocus: "clarity",
	})
	assert.ErrorIs(t, err, journey.ErrJourneyAlreadyActive)
}

func TestStartJourneyRejectsUnknownMemberAndCategory(t *testing.T) {
	handler := NewStartJourneyHandler(
		newFakeMemberRepo(),
		newFakeJourneyRepo(),
		newFakeLessonRepo(),
		newFakeProgressRepo(),
		journey.NewStaticCatalog(),
		&fakePublisher{},
	)

	_, err := handler.Handle(context.Background(), StartJourneyCommand{
		MemberID:    "ghost",
		GrowthFocus: "clarity",
	})
	assert.Error(t, err)

	_, err = handler.Handle(context.Background(), StartJourneyCommand{
		MemberID:    "m1",
		GrowthFocus: "bravery",
	})
	assert.ErrorIs(t, err, journey.ErrInvalidCategory)
}

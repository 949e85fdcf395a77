package command

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leadpath/leadpath-engine/internal/domain/journey"
	"github.com/leadpath/leadpath-engine/internal/domain/shared"
)

func TestCompleteLessonAwardsPointsAndPublishes(t *testing.T) {
	lesson := availableLesson("l1", "m1", "j1", journey.CategoryConnection, 2, 1)
	publisher := &fakePublisher{}
	handler := NewCompleteLessonHandler(newFakeLessonRepo(lesson), publisher)

	at := time.Date(2024, 1, 2, 18, 30, 0, 0, time.UTC)
	result, err := handler.Handle(context.Background(), CompleteLessonCommand{
		MemberID:    "m1",
		LessonID:    "l1",
		Points:      20,
		CompletedAt: at,
	})
	require.NoError(t, err)

	assert.Equal(t, journey.LessonCompleted, lesson.Status)
	assert.Equal(t, 20, lesson.PointsEarned)
	assert.Equal(t, at, lesson.CompletedAt)
	assert.Equal(t, "connection", result.Category)

	events := publisher.published()
	require.Len(t, events, 1)
	completed, ok := events[0].(shared.LessonCompletedEvent)
	require.True(t, ok)
	assert.Equal(t, "m1", completed.MemberID)
	assert.Equal(t, "j1", completed.JourneyID)
	assert.Equal(t, 20, completed.Points)
}

func TestCompleteLessonCommitmentSurvives(t *testing.T) {
	lesson := availableLesson("l1", "m1", "j1", journey.CategoryClarity, 1, 1)
	require.NoError(t, lesson.SetCommitment(2, "by friday"))

	handler := NewCompleteLessonHandler(newFakeLessonRepo(lesson), &fakePublisher{})

	_, err := handler.Handle(context.Background(), CompleteLessonCommand{
		MemberID: "m1",
		LessonID: "l1",
		Points:   15,
	})
	require.NoError(t, err)

	require.NotNil(t, lesson.CommitWithinDays)
	assert.Equal(t, 2, *lesson.CommitWithinDays)
	assert.Equal(t, "by friday", lesson.CommitNote)
}

func TestCompleteLessonRejectsLockedAndRepeated(t *testing.T) {
	locked := lockedLesson("l1", "m1", "j1", journey.CategoryClarity, 1, 1, 0)
	done := availableLesson("l2", "m1", "j1", journey.CategoryClarity, 1, 2)
	require.NoError(t, done.Complete(10, time.Now()))

	handler := NewCompleteLessonHandler(newFakeLessonRepo(locked, done), &fakePublisher{})

	_, err := handler.Handle(context.Background(), CompleteLessonCommand{
		MemberID: "m1", LessonID: "l1", Points: 10,
	})
	assert.ErrorIs(t, err, journey.ErrLessonNotAvailable)

	_, err = handler.Handle(context.Background(), CompleteLessonCommand{
		MemberID: "m1", LessonID: "l2", Points: 10,
	})
	assert.ErrorIs(t, err, journey.ErrLessonAlreadyCompleted)
}

func TestCompleteLessonValidatesPoints(t *testing.T) {
	handler := NewCompleteLessonHandler(newFakeLessonRepo(), &fakePublisher{})

	for _, points := range []int{-1, 26, 100} {
		_, err := handler.Handle(context.Background(), CompleteLessonCommand{
			MemberID: "m1", LessonID: "l1", Points: points,
		})
		assert.ErrorIs(t, err, journey.ErrInvalidPoints, "points=%d", points)
	}
}

func TestStartLessonKeepsFirstTimestamp(t *testing.T) {
	lesson := availableLesson("l1", "m1", "j1", journey.CategoryClarity, 1, 1)
	handler := NewStartLessonHandler(newFakeLessonRepo(lesson))

	first := time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)
	require.NoError(t, handler.Handle(context.Background(), StartLessonCommand{
		MemberID: "m1", LessonID: "l1", StartedAt: first,
	}))
	require.NoError(t, handler.Handle(context.Background(), StartLessonCommand{
		MemberID: "m1", LessonID: "l1", StartedAt: first.Add(2 * time.Hour),
	}))

	assert.Equal(t, first, lesson.StartedAt)
}

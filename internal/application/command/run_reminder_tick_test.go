package command

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leadpath/leadpath-engine/internal/domain/journey"
	"github.com/leadpath/leadpath-engine/internal/domain/member"
	"github.com/leadpath/leadpath-engine/pkg/calendar"
)

func availableLesson(id, memberID, journeyID string, category journey.Category, week, day int) *journey.LessonInstance {
	li := lockedLesson(id, memberID, journeyID, category, week, day, 0)
	li.Status = journey.LessonAvailable
	return li
}

func TestReminderTickInitialSlot(t *testing.T) {
	m := testMember(t, "m1")
	m.Preferences.ReminderHour = 14

	lessonRepo := newFakeLessonRepo(
		availableLesson("l1", m.ID, "j1", journey.CategoryClarity, 1, 1),
		availableLesson("l2", m.ID, "j1", journey.CategoryClarity, 1, 2),
	)
	notifier := &fakeNotifier{}

	handler := NewRunReminderTickHandler(newFakeMemberRepo(m), lessonRepo, notifier, nil, 1)

	result, err := handler.Handle(context.Background(), RunReminderTickCommand{Hour: 14, Date: tuesday})
	require.NoError(t, err)
	assert.Equal(t, 1, result.NotifiedCount)
	assert.Equal(t, 0, result.FailedCount)

	mails := notifier.sentMails()
	require.Len(t, mails, 1)
	assert.Equal(t, m.Email, mails[0].Recipient)
	assert.Contains(t, mails[0].Subject, "2 lessons")
}

func TestReminderTickSingleCountNeverFiresFollowUp(t *testing.T) {
	// One reminder per day: the 16:00 slot two hours after the main
	// hour must stay silent even though the member is a candidate.
	m := testMember(t, "m1")
	m.Preferences.ReminderHour = 14
	m.Preferences.ReminderCount = member.RemindersSingle

	lessonRepo := newFakeLessonRepo(
		availableLesson("l1", m.ID, "j1", journey.CategoryClarity, 1, 1),
	)
	notifier := &fakeNotifier{}

	handler := NewRunReminderTickHandler(newFakeMemberRepo(m), lessonRepo, notifier, nil, 1)

	result, err := handler.Handle(context.Background(), RunReminderTickCommand{Hour: 16, Date: tuesday})
	require.NoError(t, err)
	assert.Equal(t, 0, result.NotifiedCount)
	assert.Equal(t, 1, result.SkippedReasons[SkipNoSlotMatch])
	assert.Empty(t, notifier.sentMails())
}

func TestReminderTickFollowUpSlot(t *testing.T) {
	m := testMember(t, "m1")
	m.Preferences.ReminderHour = 14
	m.Preferences.ReminderCount = member.RemindersDouble

	lessonRepo := newFakeLessonRepo(
		availableLesson("l1", m.ID, "j1", journey.CategoryClarity, 1, 1),
	)
	notifier := &fakeNotifier{}

	handler := NewRunReminderTickHandler(newFakeMemberRepo(m), lessonRepo, notifier, nil, 1)

	result, err := handler.Handle(context.Background(), RunReminderTickCommand{Hour: 16, Date: tuesday})
	require.NoError(t, err)
	assert.Equal(t, 1, result.NotifiedCount)

	mails := notifier.sentMails()
	require.Len(t, mails, 1)
	assert.Contains(t, mails[0].Subject, "Still time today")
}

func TestReminderTickFollowUpWrapsPastMidnight(t *testing.T) {
	m := testMember(t, "m1")
	m.Preferences.ReminderHour = 23
	m.Preferences.ReminderCount = member.RemindersDouble

	lessonRepo := newFakeLessonRepo(
		availableLesson("l1", m.ID, "j1", journey.CategoryClarity, 1, 1),
	)
	notifier := &fakeNotifier{}

	handler := NewRunReminderTickHandler(newFakeMemberRepo(m), lessonRepo, notifier, nil, 1)

	result, err := handler.Handle(context.Background(), RunReminderTickCommand{Hour: 1, Date: tuesday})
	require.NoError(t, err)
	assert.Equal(t, 1, result.NotifiedCount)
}

func TestReminderTickAutoStopsWhenNothingIsOpen(t *testing.T) {
	// 14:00 reminder goes out, the member finishes the lesson in the
	// afternoon, and the 16:00 follow-up stays silent with no sent
	// flag involved anywhere.
	m := testMember(t, "m1")
	m.Preferences.ReminderHour = 14
	m.Preferences.ReminderCount = member.RemindersDouble

	lesson := availableLesson("l1", m.ID, "j1", journey.CategoryClarity, 1, 1)
	lessonRepo := newFakeLessonRepo(lesson)
	notifier := &fakeNotifier{}

	handler := NewRunReminderTickHandler(newFakeMemberRepo(m), lessonRepo, notifier, nil, 1)

	result, err := handler.Handle(context.Background(), RunReminderTickCommand{Hour: 14, Date: tuesday})
	require.NoError(t, err)
	assert.Equal(t, 1, result.NotifiedCount)

	require.NoError(t, lesson.Complete(20, tuesday.Add(15*time.Hour+30*time.Minute)))

	result, err = handler.Handle(context.Background(), RunReminderTickCommand{Hour: 16, Date: tuesday})
	require.NoError(t, err)
	assert.Equal(t, 0, result.NotifiedCount)
	assert.Equal(t, 1, result.SkippedReasons[SkipNoAvailableLessons])
	assert.Len(t, notifier.sentMails(), 1)
}

func TestReminderTickSkipsDisabledAndPausedMembers(t *testing.T) {
	off := testMember(t, "m-off")
	off.Preferences.ReminderCount = member.RemindersOff
	off.Preferences.RemindersEnabled = false

	paused := testMember(t, "m-paused")
	require.NoError(t, paused.Pause())

	lessonRepo := newFakeLessonRepo(
		availableLesson("l1", off.ID, "j1", journey.CategoryClarity, 1, 1),
		availableLesson("l2", paused.ID, "j2", journey.CategoryClarity, 1, 1),
	)
	notifier := &fakeNotifier{}

	handler := NewRunReminderTickHandler(newFakeMemberRepo(off, paused), lessonRepo, notifier, nil, 2)

	result, err := handler.Handle(context.Background(), RunReminderTickCommand{Hour: 14, Date: tuesday})
	require.NoError(t, err)
	assert.Equal(t, 0, result.NotifiedCount)
	assert.Equal(t, 1, result.SkippedReasons[SkipRemindersOff])
	assert.Equal(t, 1, result.SkippedReasons[SkipNotNotifiable])
	assert.Empty(t, notifier.sentMails())
}

func TestReminderTickRespectsActiveDays(t *testing.T) {
	m := testMember(t, "m1", calendar.Monday)

	lessonRepo := newFakeLessonRepo(
		availableLesson("l1", m.ID, "j1", journey.CategoryClarity, 1, 1),
	)
	notifier := &fakeNotifier{}

	handler := NewRunReminderTickHandler(newFakeMemberRepo(m), lessonRepo, notifier, nil, 1)

	result, err := handler.Handle(context.Background(), RunReminderTickCommand{Hour: 14, Date: tuesday})
	require.NoError(t, err)
	assert.Equal(t, 0, result.NotifiedCount)
	assert.Equal(t, 1, result.SkippedReasons[SkipInactiveDay])
}

func TestReminderTickSendFailureIsIsolated(t *testing.T) {
	a := testMember(t, "m-a")
	b := testMember(t, "m-b")

	lessonRepo := newFakeLessonRepo(
		availableLesson("l1", a.ID, "j1", journey.CategoryClarity, 1, 1),
		availableLesson("l2", b.ID, "j2", journey.CategoryClarity, 1, 1),
	)
	notifier := &fakeNotifier{
		failFn: func(recipient string) error {
			if recipient == a.Email {
				return errors.New("mail api unavailable")
			}
			return nil
		},
	}

	handler := NewRunReminderTickHandler(newFakeMemberRepo(a, b), lessonRepo, notifier, nil, 1)

	result, err := handler.Handle(context.Background(), RunReminderTickCommand{Hour: 14, Date: tuesday})
	require.NoError(t, err)
	assert.Equal(t, 1, result.NotifiedCount)
	assert.Equal(t, 1, result.FailedCount)

	mails := notifier.sentMails()
	require.Len(t, mails, 1)
	assert.Equal(t, b.Email, mails[0].Recipient)
}

func TestReminderTickCommandValidation(t *testing.T) {
	handler := NewRunReminderTickHandler(newFakeMemberRepo(), newFakeLessonRepo(), &fakeNotifier{}, nil, 1)

	_, err := handler.Handle(context.Background(), RunReminderTickCommand{Hour: -1, Date: tuesday})
	assert.Error(t, err)

	_, err = handler.Handle(context.Background(), RunReminderTickCommand{Hour: 14})
	assert.Error(t, err)
}

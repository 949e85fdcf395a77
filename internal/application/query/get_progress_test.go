package query

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leadpath/leadpath-engine/internal/domain/journey"
	"github.com/leadpath/leadpath-engine/internal/domain/member"
	"github.com/leadpath/leadpath-engine/pkg/calendar"
)

type stubProgressRepo struct {
	records map[string]*member.Progress
}

func (r *stubProgressRepo) Save(_ context.Context, p *member.Progress) error {
	r.records[p.MemberID] = p
	return nil
}

func (r *stubProgressRepo) GetByMemberID(_ context.Context, memberID string) (*member.Progress, error) {
	p, ok := r.records[memberID]
	if !ok {
		return nil, member.ErrMemberNotFound
	}
	return p, nil
}

func (r *stubProgressRepo) FindInactiveSince(_ context.Context, _ time.Time) ([]*member.Progress, error) {
	return nil, nil
}

type stubLessonRepo struct {
	lessons []*journey.LessonInstance
}

func (r *stubLessonRepo) CreateBatch(_ context.Context, lessons []*journey.LessonInstance) error {
	r.lessons = append(r.lessons, lessons...)
	return nil
}

func (r *stubLessonRepo) GetByID(_ context.Context, _ string) (*journey.LessonInstance, error) {
	return nil, journey.ErrLessonNotFound
}

func (r *stubLessonRepo) GetByMemberAndID(_ context.Context, _, _ string) (*journey.LessonInstance, error) {
	return nil, journey.ErrLessonNotFound
}

func (r *stubLessonRepo) NextLocked(_ context.Context, _, _ string, _ journey.Category) (*journey.LessonInstance, error) {
	return nil, journey.ErrLessonNotFound
}

func (r *stubLessonRepo) LastCompleted(_ context.Context, _, _ string, _ journey.Category) (*journey.LessonInstance, error) {
	return nil, journey.ErrLessonNotFound
}

func (r *stubLessonRepo) CountAvailable(_ context.Context, _ string) (int, error) { return 0, nil }

func (r *stubLessonRepo) CountAvailableInCategory(_ context.Context, _, _ string, _ journey.Category) (int, error) {
	return 0, nil
}

func (r *stubLessonRepo) CountRemaining(_ context.Context, _, _ string, _ journey.Category) (int, error) {
	return 0, nil
}

func (r *stubLessonRepo) MarkAvailable(_ context.Context, _ string, _ time.Time) (bool, error) {
	return false, nil
}

func (r *stubLessonRepo) Update(_ context.Context, _ *journey.LessonInstance) error { return nil }

func (r *stubLessonRepo) ListByJourney(_ context.Context, journeyID string) ([]*journey.LessonInstance, error) {
	var out []*journey.LessonInstance
	for _, li := range r.lessons {
		if li.JourneyID == journeyID {
			out = append(out, li)
		}
	}
	return out, nil
}

func lesson(journeyID string, status journey.LessonStatus) *journey.LessonInstance {
	return &journey.LessonInstance{
		ID:        journeyID + "-" + string(status),
		JourneyID: journeyID,
		Status:    status,
	}
}

func TestGetProgressView(t *testing.T) {
	progress := member.NewProgress("m1", "j1", "clarity")
	_, err := progress.RecordCompletion(20, time.Date(2024, 3, 4, 12, 0, 0, 0, time.UTC), calendar.EveryDay())
	require.NoError(t, err)
	_, err = progress.RecordCompletion(10, time.Date(2024, 3, 5, 12, 0, 0, 0, time.UTC), calendar.EveryDay())
	require.NoError(t, err)

	progressRepo := &stubProgressRepo{records: map[string]*member.Progress{"m1": progress}}
	lessonRepo := &stubLessonRepo{lessons: []*journey.LessonInstance{
		lesson("j1", journey.LessonCompleted),
		lesson("j1", journey.LessonCompleted),
		lesson("j1", journey.LessonAvailable),
		lesson("j1", journey.LessonLocked),
	}}

	handler := NewGetProgressHandler(progressRepo, lessonRepo)

	view, err := handler.Handle(context.Background(), GetProgressQuery{
		MemberID: "m1",
		AsOf:     time.Date(2024, 3, 8, 9, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	assert.Equal(t, 30, view.TotalPoints)
	assert.Equal(t, 2, view.TotalLessons)
	assert.Equal(t, 2, view.CurrentStreakDays)
	assert.InDelta(t, 15.0, view.AveragePoints, 0.001)
	assert.InDelta(t, 50.0, view.CompletionPercent, 0.001)
	assert.Equal(t, 3, view.DaysSinceLastActivity)

	// Two lessons done, the five-lesson milestone is next.
	assert.Equal(t, "Building momentum", view.NextMilestone)
	assert.Equal(t, 3, view.NextMilestoneLessons)
}

func TestGetProgressUnknownMember(t *testing.T) {
	handler := NewGetProgressHandler(
		&stubProgressRepo{records: map[string]*member.Progress{}},
		&stubLessonRepo{},
	)

	_, err := handler.Handle(context.Background(), GetProgressQuery{MemberID: "ghost"})
	assert.ErrorIs(t, err, member.ErrMemberNotFound)
}

func TestGetProgressValidation(t *testing.T) {
	handler := NewGetProgressHandler(
		&stubProgressRepo{records: map[string]*member.Progress{}},
		&stubLessonRepo{},
	)

	_, err := handler.Handle(context.Background(), GetProgressQuery{})
	assert.Error(t, err)
}

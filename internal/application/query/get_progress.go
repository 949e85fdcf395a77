// Package query contains read operations (CQRS - Queries).
package query

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/leadpath/leadpath-engine/internal/domain/journey"
	"github.com/leadpath/leadpath-engine/internal/domain/member"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET PROGRESS QUERY
// Returns the aggregated progress view for a member: totals, streaks,
// derived statistics and the next milestone.
// ══════════════════════════════════════════════════════════════════════════════

// GetProgressQuery requests a member's progress.
type GetProgressQuery struct {
	// MemberID is the ID of the member.
	MemberID string

	// AsOf is the reference date for derived statistics such as days
	// since the last activity. Zero means "now".
	AsOf time.Time
}

// Validate validates the query.
func (q GetProgressQuery) Validate() error {
	if q.MemberID == "" {
		return errors.New("get_progress: member_id is required")
	}
	return nil
}

// ProgressView is the read model returned to callers.
type ProgressView struct {
	// MemberID is the ID of the member.
	MemberID string

	// TotalPoints earned across all completed lessons.
	TotalPoints int

	// TotalLessons completed.
	TotalLessons int

	// TotalWeeks completed.
	TotalWeeks int

	// TotalCategories completed.
	TotalCategories int

	// CurrentCategory the member is working on.
	CurrentCategory string

	// CurrentWeek within the category.
	CurrentWeek int

	// CurrentStreakDays is the running streak.
	CurrentStreakDays int

	// LongestStreakDays is the best streak ever.
	LongestStreakDays int

	// AveragePoints per completed lesson.
	AveragePoints float64

	// CompletionPercent of the journey's created lessons.
	CompletionPercent float64

	// DaysSinceLastActivity relative to AsOf; -1 when never active.
	DaysSinceLastActivity int

	// NextMilestone names the next goal; empty when all are reached.
	NextMilestone string

	// NextMilestoneLessons is how many lessons remain to the milestone.
	NextMilestoneLessons int
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// GetProgressHandler handles the GetProgressQuery.
type GetProgressHandler struct {
	progressRepo member.ProgressRepository
	lessonRepo   journey.LessonRepository
}

// NewGetProgressHandler creates a new GetProgressHandler.
func NewGetProgressHandler(
	progressRepo member.ProgressRepository,
	lessonRepo journey.LessonRepository,
) *GetProgressHandler {
	return &GetProgressHandler{
		progressRepo: progressRepo,
		lessonRepo:   lessonRepo,
	}
}

// Handle executes the query.
func (h *GetProgressHandler) Handle(ctx context.Context, q GetProgressQuery) (*ProgressView, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	asOf := q.AsOf
	if asOf.IsZero() {
		asOf = time.Now().UTC()
	}

	progress, err := h.progressRepo.GetByMemberID(ctx, q.MemberID)
	if err != nil {
		return nil, fmt.Errorf("get_progress: %w", err)
	}

	view := &ProgressView{
		MemberID:              progress.MemberID,
		TotalPoints:           progress.TotalPoints,
		TotalLessons:          progress.TotalLessons,
		TotalWeeks:            progress.TotalWeeks,
		TotalCategories:       progress.TotalCategories,
		CurrentCategory:       progress.CurrentCategory,
		CurrentWeek:           progress.CurrentWeek,
		CurrentStreakDays:     progress.CurrentStreakDays,
		LongestStreakDays:     progress.LongestStreakDays,
		AveragePoints:         progress.AveragePoints(),
		DaysSinceLastActivity: progress.DaysSinceLastActivity(asOf),
	}

	if milestone, ok := progress.NextMilestone(); ok {
		view.NextMilestone = milestone.Title
		view.NextMilestoneLessons = milestone.Threshold - progress.TotalLessons
	}

	if progress.CurrentJourneyID != "" {
		lessons, err := h.lessonRepo.ListByJourney(ctx, progress.CurrentJourneyID)
		if err == nil && len(lessons) > 0 {
			completed := 0
			for _, li := range lessons {
				if li.Status == journey.LessonCompleted {
					completed++
				}
			}
			view.CompletionPercent = 100 * float64(completed) / float64(len(lessons))
		}
	}

	return view, nil
}

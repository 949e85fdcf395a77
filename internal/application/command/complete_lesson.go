package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/leadpath/leadpath-engine/internal/domain/journey"
	"github.com/leadpath/leadpath-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// COMPLETE LESSON COMMAND
// Finishes an available lesson and publishes the completion event that
// drives the progress aggregator. Points are awarded here; streaks,
// category advancement and journey completion all happen in the event
// handler, which is the sole writer of aggregate progress.
// ══════════════════════════════════════════════════════════════════════════════

// CompleteLessonCommand contains the completion data.
type CompleteLessonCommand struct {
	// MemberID is the ID of the member completing the lesson.
	MemberID string

	// LessonID is the lesson instance being completed.
	LessonID string

	// Points earned for the lesson (0-25).
	Points int

	// CompletedAt is the completion timestamp supplied by the caller.
	// Zero means "now".
	CompletedAt time.Time

	// CorrelationID for tracing.
	CorrelationID string
}

// Validate validates the command.
func (c CompleteLessonCommand) Validate() error {
	if c.MemberID == "" {
		return errors.New("complete_lesson: member_id is required")
	}
	if c.LessonID == "" {
		return errors.New("complete_lesson: lesson_id is required")
	}
	if c.Points < 0 || c.Points > journey.MaxPoints {
		return fmt.Errorf("complete_lesson: %w", journey.ErrInvalidPoints)
	}
	return nil
}

// CompleteLessonResult contains the result of completing a lesson.
type CompleteLessonResult struct {
	// LessonID is the completed lesson.
	LessonID string

	// Category of the completed lesson.
	Category string

	// Points awarded.
	Points int

	// CompletedAt is the recorded completion time.
	CompletedAt time.Time
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// CompleteLessonHandler handles the CompleteLessonCommand.
type CompleteLessonHandler struct {
	lessonRepo journey.LessonRepository
	publisher  shared.EventPublisher
}

// NewCompleteLessonHandler creates a new CompleteLessonHandler.
func NewCompleteLessonHandler(
	lessonRepo journey.LessonRepository,
	publisher shared.EventPublisher,
) *CompleteLessonHandler {
	return &CompleteLessonHandler{
		lessonRepo: lessonRepo,
		publisher:  publisher,
	}
}

// Handle completes the lesson and publishes the completion event.
func (h *CompleteLessonHandler) Handle(
	ctx context.Context,
	cmd CompleteLessonCommand,
) (*CompleteLessonResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	lesson, err := h.lessonRepo.GetByMemberAndID(ctx, cmd.MemberID, cmd.LessonID)
	if err != nil {
		return nil, fmt.Errorf("complete_lesson: %w", err)
	}

	completedAt := cmd.CompletedAt
	if completedAt.IsZero() {
		completedAt = time.Now().UTC()
	}

	if err := lesson.Complete(cmd.Points, completedAt); err != nil {
		return nil, fmt.Errorf("complete_lesson: %w", err)
	}

	if err := h.lessonRepo.Update(ctx, lesson); err != nil {
		return nil, fmt.Errorf("complete_lesson: failed to save: %w", err)
	}

	if h.publisher != nil {
		event := shared.NewLessonCompletedEvent(
			cmd.MemberID,
			lesson.ID,
			lesson.JourneyID,
			lesson.Category.String(),
			cmd.Points,
			completedAt,
		)
		if err := h.publisher.Publish(event); err != nil {
			// Completion is already durable; the aggregator will catch
			// up when the event is replayed or the next completion lands.
			return nil, fmt.Errorf("complete_lesson: saved but failed to publish event: %w", err)
		}
	}

	return &CompleteLessonResult{
		LessonID:    lesson.ID,
		Category:    lesson.Category.String(),
		Points:      cmd.Points,
		CompletedAt: completedAt,
	}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// START LESSON COMMAND
// Stamps the first-opened timestamp on an available lesson.
// ══════════════════════════════════════════════════════════════════════════════

// StartLessonCommand marks an available lesson as started.
type StartLessonCommand struct {
	// MemberID is the ID of the member.
	MemberID string

	// LessonID is the lesson instance being started.
	LessonID string

	// StartedAt is the start timestamp. Zero means "now".
	StartedAt time.Time
}

// StartLessonHandler handles the StartLessonCommand.
type StartLessonHandler struct {
	lessonRepo journey.LessonRepository
}

// NewStartLessonHandler creates a new StartLessonHandler.
func NewStartLessonHandler(lessonRepo journey.LessonRepository) *StartLessonHandler {
	return &StartLessonHandler{lessonRepo: lessonRepo}
}

// Handle stamps the start time. Repeated starts keep the first timestamp.
func (h *StartLessonHandler) Handle(ctx context.Context, cmd StartLessonCommand) error {
	if cmd.MemberID == "" {
		return errors.New("start_lesson: member_id is required")
	}
	if cmd.LessonID == "" {
		return errors.New("start_lesson: lesson_id is required")
	}

	lesson, err := h.lessonRepo.GetByMemberAndID(ctx, cmd.MemberID, cmd.LessonID)
	if err != nil {
		return fmt.Errorf("start_lesson: %w", err)
	}

	startedAt := cmd.StartedAt
	if startedAt.IsZero() {
		startedAt = time.Now().UTC()
	}

	if err := lesson.Start(startedAt); err != nil {
		return fmt.Errorf("start_lesson: %w", err)
	}

	if err := h.lessonRepo.Update(ctx, lesson); err != nil {
		return fmt.Errorf("start_lesson: failed to save: %w", err)
	}

	return nil
}

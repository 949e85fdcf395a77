package command

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/leadpath/leadpath-engine/internal/domain/journey"
)

// ══════════════════════════════════════════════════════════════════════════════
// SET COMMITMENT COMMAND
// Records a member's promise to finish an available lesson within N days.
// The commitment is advisory: it never changes unlock timing or reminder
// behavior, and it survives lesson completion.
// ══════════════════════════════════════════════════════════════════════════════

// SetCommitmentCommand contains the commitment to record.
type SetCommitmentCommand struct {
	// MemberID is the ID of the member making the commitment.
	MemberID string

	// LessonID is the lesson instance being committed to.
	LessonID string

	// Days is the promised completion horizon. Must be positive.
	Days int

	// Note is an optional free-text note.
	Note string

	// CorrelationID for tracing.
	CorrelationID string
}

// Validate validates the command.
func (c SetCommitmentCommand) Validate() error {
	if c.MemberID == "" {
		return errors.New("set_commitment: member_id is required")
	}
	if c.LessonID == "" {
		return errors.New("set_commitment: lesson_id is required")
	}
	if c.Days <= 0 {
		return fmt.Errorf("set_commitment: %w", journey.ErrInvalidCommitDays)
	}
	if len(c.Note) > 500 {
		return errors.New("set_commitment: note must be at most 500 characters")
	}
	return nil
}

// SetCommitmentResult contains the result of recording a commitment.
type SetCommitmentResult struct {
	// LessonID is the lesson the commitment was recorded on.
	LessonID string

	// Days is the recorded horizon.
	Days int

	// Overwrote is true when a previous commitment was replaced.
	Overwrote bool

	// UpdatedAt is when the commitment was recorded.
	UpdatedAt time.Time
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// SetCommitmentHandler handles the SetCommitmentCommand.
type SetCommitmentHandler struct {
	lessonRepo journey.LessonRepository
}

// NewSetCommitmentHandler creates a new SetCommitmentHandler.
func NewSetCommitmentHandler(lessonRepo journey.LessonRepository) *SetCommitmentHandler {
	return &SetCommitmentHandler{lessonRepo: lessonRepo}
}

// Handle records the commitment. Validation failures leave the lesson
// untouched.
func (h *SetCommitmentHandler) Handle(
	ctx context.Context,
	cmd SetCommitmentCommand,
) (*SetCommitmentResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	lesson, err := h.lessonRepo.GetByMemberAndID(ctx, cmd.MemberID, cmd.LessonID)
	if err != nil {
		return nil, fmt.Errorf("set_commitment: %w", err)
	}

	overwrote := lesson.HasCommitment()

	if err := lesson.SetCommitment(cmd.Days, strings.TrimSpace(cmd.Note)); err != nil {
		return nil, fmt.Errorf("set_commitment: %w", err)
	}

	if err := h.lessonRepo.Update(ctx, lesson); err != nil {
		return nil, fmt.Errorf("set_commitment: failed to save: %w", err)
	}

	return &SetCommitmentResult{
		LessonID:  lesson.ID,
		Days:      cmd.Days,
		Overwrote: overwrote,
		UpdatedAt: lesson.UpdatedAt,
	}, nil
}

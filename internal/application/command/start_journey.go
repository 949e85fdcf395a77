package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/leadpath/leadpath-engine/internal/domain/journey"
	"github.com/leadpath/leadpath-engine/internal/domain/member"
	"github.com/leadpath/leadpath-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// START JOURNEY COMMAND
// Creates a member's journey from their growth focus, instantiates the
// first category's lessons from the catalog (first lesson open, the rest
// locked) and seeds the progress record. Ticks never create lesson rows;
// this command and the category advance in the completion handler are
// the only two places instantiation happens.
// ══════════════════════════════════════════════════════════════════════════════

// StartJourneyCommand contains the data to start a journey.
type StartJourneyCommand struct {
	// MemberID is the ID of the member starting the journey.
	MemberID string

	// GrowthFocus is the category the rotation starts at.
	GrowthFocus string

	// IntentionalAdvantage is the member's named strength.
	IntentionalAdvantage string

	// CorrelationID for tracing.
	CorrelationID string
}

// Validate validates the command.
func (c StartJourneyCommand) Validate() error {
	if c.MemberID == "" {
		return errors.New("start_journey: member_id is required")
	}
	if !journey.Category(c.GrowthFocus).IsValid() {
		return fmt.Errorf("start_journey: %w: %q", journey.ErrInvalidCategory, c.GrowthFocus)
	}
	return nil
}

// StartJourneyResult contains the result of starting a journey.
type StartJourneyResult struct {
	// JourneyID is the new journey's ID.
	JourneyID string

	// FirstCategory is the category the journey starts with.
	FirstCategory string

	// LessonCount is the number of lesson instances created.
	LessonCount int

	// StartedAt is when the journey started.
	StartedAt time.Time
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// StartJourneyHandler handles the StartJourneyCommand.
type StartJourneyHandler struct {
	memberRepo   member.Repository
	journeyRepo  journey.Repository
	lessonRepo   journey.LessonRepository
	progressRepo member.ProgressRepository
	catalog      journey.Catalog
	publisher    shared.EventPublisher
}

// NewStartJourneyHandler creates a new StartJourneyHandler.
func NewStartJourneyHandler(
	memberRepo member.Repository,
	journeyRepo journey.Repository,
	lessonRepo journey.LessonRepository,
	progressRepo member.ProgressRepository,
	catalog journey.Catalog,
	publisher shared.EventPublisher,
) *StartJourneyHandler {
	return &StartJourneyHandler{
		memberRepo:   memberRepo,
		journeyRepo:  journeyRepo,
		lessonRepo:   lessonRepo,
		progressRepo: progressRepo,
		catalog:      catalog,
		publisher:    publisher,
	}
}

// Handle starts the journey.
func (h *StartJourneyHandler) Handle(
	ctx context.Context,
	cmd StartJourneyCommand,
) (*StartJourneyResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	if _, err := h.memberRepo.GetByID(ctx, cmd.MemberID); err != nil {
		return nil, fmt.Errorf("start_journey: %w", err)
	}

	// The repository also enforces single-active via a partial unique
	// index; checking here gives a clean error instead of a violation.
	if _, err := h.journeyRepo.GetActiveByMemberID(ctx, cmd.MemberID); err == nil {
		return nil, fmt.Errorf("start_journey: %w", journey.ErrJourneyAlreadyActive)
	} else if !errors.Is(err, journey.ErrJourneyNotFound) {
		return nil, fmt.Errorf("start_journey: %w", err)
	}

	jny, err := journey.NewJourney(journey.NewJourneyParams{
		ID:                   uuid.New().String(),
		MemberID:             cmd.MemberID,
		GrowthFocus:          journey.Category(cmd.GrowthFocus),
		IntentionalAdvantage: cmd.IntentionalAdvantage,
	})
	if err != nil {
		return nil, fmt.Errorf("start_journey: %w", err)
	}

	if err := h.journeyRepo.Create(ctx, jny); err != nil {
		return nil, fmt.Errorf("start_journey: failed to create journey: %w", err)
	}

	defs := h.catalog.LessonsFor(jny.CurrentCategory)
	lessons := journey.InstantiateCategory(jny, jny.CurrentCategory, defs, func() string {
		return uuid.New().String()
	}, jny.StartedAt)

	if err := h.lessonRepo.CreateBatch(ctx, lessons); err != nil {
		return nil, fmt.Errorf("start_journey: failed to create lessons: %w", err)
	}

	progress := member.NewProgress(cmd.MemberID, jny.ID, jny.CurrentCategory.String())
	if err := h.progressRepo.Save(ctx, progress); err != nil {
		return nil, fmt.Errorf("start_journey: failed to seed progress: %w", err)
	}

	if h.publisher != nil {
		event := shared.NewBaseEvent(shared.EventJourneyStarted, jny.ID)
		_ = h.publisher.Publish(journeyStartedEvent{BaseEvent: event, MemberID: cmd.MemberID, JourneyID: jny.ID})
	}

	return &StartJourneyResult{
		JourneyID:     jny.ID,
		FirstCategory: jny.CurrentCategory.String(),
		LessonCount:   len(lessons),
		StartedAt:     jny.StartedAt,
	}, nil
}

// journeyStartedEvent is a minimal event for journey creation.
type journeyStartedEvent struct {
	shared.BaseEvent
	MemberID  string
	JourneyID string
}

// Payload implements shared.Event.
func (e journeyStartedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"member_id":  e.MemberID,
		"journey_id": e.JourneyID,
	}
}

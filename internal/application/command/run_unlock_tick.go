// Package command contains write operations (CQRS - Commands).
package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/leadpath/leadpath-engine/internal/domain/journey"
	"github.com/leadpath/leadpath-engine/internal/domain/member"
	"github.com/leadpath/leadpath-engine/internal/domain/shared"
	"github.com/leadpath/leadpath-engine/pkg/calendar"
)

// ══════════════════════════════════════════════════════════════════════════════
// RUN UNLOCK TICK COMMAND
// Evaluates every member whose unlock hour matches the tick and opens the
// next lesson where the unlock conditions hold. The hour and date arrive
// as arguments: the engine never reads a live clock, which makes ticks
// replayable and testable.
// ══════════════════════════════════════════════════════════════════════════════

// RunUnlockTickCommand carries the tick being evaluated.
type RunUnlockTickCommand struct {
	// Hour is the hour of day (0-23) the tick fires for.
	Hour int

	// Date is the calendar day of the tick. Time of day is ignored.
	Date time.Time

	// CorrelationID for tracing.
	CorrelationID string
}

// Validate validates the command.
func (c RunUnlockTickCommand) Validate() error {
	if !calendar.IsValidHour(c.Hour) {
		return errors.New("run_unlock_tick: hour must be 0-23")
	}
	if c.Date.IsZero() {
		return errors.New("run_unlock_tick: date is required")
	}
	return nil
}

// RunUnlockTickResult contains the outcome of one unlock tick.
type RunUnlockTickResult struct {
	// UnlockedCount is the number of lessons opened by this tick.
	UnlockedCount int

	// CandidateCount is the number of members whose unlock hour matched.
	CandidateCount int

	// SkippedReasons tallies why candidates were passed over.
	// Skips are ordinary outcomes, not failures.
	SkippedReasons map[string]int

	// FailedCount is the number of candidates that hit a store error.
	FailedCount int

	// Duration is how long the tick took.
	Duration time.Duration
}

// Skip reasons recorded by the unlock tick.
const (
	SkipInactiveDay     = "inactive_day"
	SkipNoJourney       = "no_active_journey"
	SkipNoLockedLesson  = "no_locked_lesson"
	SkipPriorIncomplete = "prior_not_completed"
	SkipSpacingNotMet   = "spacing_not_met"
	SkipAlreadyUnlocked = "already_unlocked"
)

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// RunUnlockTickHandler handles the RunUnlockTickCommand.
type RunUnlockTickHandler struct {
	memberRepo  member.Repository
	journeyRepo journey.Repository
	lessonRepo  journey.LessonRepository
	publisher   shared.EventPublisher
	logger      *slog.Logger
	concurrency int
}

// NewRunUnlockTickHandler creates a new RunUnlockTickHandler.
func NewRunUnlockTickHandler(
	memberRepo member.Repository,
	journeyRepo journey.Repository,
	lessonRepo journey.LessonRepository,
	publisher shared.EventPublisher,
	logger *slog.Logger,
	concurrency int,
) *RunUnlockTickHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if concurrency <= 0 {
		concurrency = 10
	}

	return &RunUnlockTickHandler{
		memberRepo:  memberRepo,
		journeyRepo: journeyRepo,
		lessonRepo:  lessonRepo,
		publisher:   publisher,
		logger:      logger,
		concurrency: concurrency,
	}
}

// Handle executes one unlock tick.
//
// Candidate failures are isolated: a store error for one member is logged
// and counted, and the tick moves on. The returned error is reserved for
// tick-level problems such as an invalid command or a failed candidate
// query.
func (h *RunUnlockTickHandler) Handle(
	ctx context.Context,
	cmd RunUnlockTickCommand,
) (*RunUnlockTickResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	startedAt := time.Now()
	result := &RunUnlockTickResult{
		SkippedReasons: make(map[string]int),
	}

	h.logger.Info("starting unlock tick", "hour", cmd.Hour, "date", cmd.Date.Format("2006-01-02"))

	// The store filters by unlock hour and by the existence of a locked
	// lesson, so the tick never scans the full member base in memory.
	candidates, err := h.memberRepo.FindUnlockCandidates(ctx, cmd.Hour)
	if err != nil {
		return nil, fmt.Errorf("run_unlock_tick: failed to query candidates: %w", err)
	}

	result.CandidateCount = len(candidates)

	var (
		wg        sync.WaitGroup
		semaphore = make(chan struct{}, h.concurrency)
		mu        sync.Mutex
	)

	for _, m := range candidates {
		select {
		case <-ctx.Done():
			h.logger.Warn("unlock tick cancelled mid-run", "processed_so_far", result.UnlockedCount)
			wg.Wait()
			result.Duration = time.Since(startedAt)
			return result, ctx.Err()
		default:
		}

		wg.Add(1)
		semaphore <- struct{}{} // Acquire

		go func(mem *member.Member) {
			defer wg.Done()
			defer func() { <-semaphore }() // Release

			unlocked, skipReason, err := h.evaluateMember(ctx, mem, cmd)

			mu.Lock()
			defer mu.Unlock()

			switch {
			case err != nil:
				result.FailedCount++
				h.logger.Error("unlock evaluation failed",
					"member_id", mem.ID,
					"error", err,
				)
			case unlocked:
				result.UnlockedCount++
			default:
				result.SkippedReasons[skipReason]++
			}
		}(m)
	}

	wg.Wait()

	result.Duration = time.Since(startedAt)
	h.logger.Info("unlock tick completed",
		"duration", result.Duration.String(),
		"candidates", result.CandidateCount,
		"unlocked", result.UnlockedCount,
		"failed", result.FailedCount,
	)

	return result, nil
}

// evaluateMember applies the unlock conditions to a single member.
func (h *RunUnlockTickHandler) evaluateMember(
	ctx context.Context,
	m *member.Member,
	cmd RunUnlockTickCommand,
) (unlocked bool, skipReason string, err error) {
	prefs := m.Preferences

	// Today must be one of the member's active days.
	if !prefs.IsActiveOn(cmd.Date) {
		return false, SkipInactiveDay, nil
	}

	jny, err := h.journeyRepo.GetActiveByMemberID(ctx, m.ID)
	if err != nil {
		if errors.Is(err, journey.ErrJourneyNotFound) {
			return false, SkipNoJourney, nil
		}
		return false, "", err
	}

	next, err := h.lessonRepo.NextLocked(ctx, m.ID, jny.ID, jny.CurrentCategory)
	if err != nil {
		if errors.Is(err, journey.ErrLessonNotFound) {
			return false, SkipNoLockedLesson, nil
		}
		return false, "", err
	}

	// Spacing is evaluated before the prior-completion check, so a member
	// who is both under-spaced and mid-lesson lands in SkipSpacingNotMet.
	// Spacing counts the member's active days strictly between the last
	// completion date and today. Zero spacing always passes.
	prior, err := h.lessonRepo.LastCompleted(ctx, m.ID, jny.ID, jny.CurrentCategory)
	switch {
	case err == nil:
		gap := calendar.ActiveDaysBetween(prior.CompletedAt, cmd.Date, prefs.ActiveDays)
		if gap < next.SpacingDays {
			return false, SkipSpacingNotMet, nil
		}
	case errors.Is(err, journey.ErrLessonNotFound):
		// Nothing completed in the category yet, nothing to pace against.
	default:
		return false, "", err
	}

	// A still-open lesson means the sequence predecessor has not been
	// completed. More than one open lesson breaks the category invariant;
	// the member is abandoned for this tick but the tick itself goes on.
	openCount, err := h.lessonRepo.CountAvailableInCategory(ctx, m.ID, jny.ID, jny.CurrentCategory)
	if err != nil {
		return false, "", err
	}
	if openCount > 1 {
		h.logger.Error("availability invariant violated",
			"member_id", m.ID,
			"journey_id", jny.ID,
			"category", jny.CurrentCategory.String(),
			"open_lessons", openCount,
		)
		return false, "", journey.ErrLessonNotLocked
	}
	if openCount == 1 || prior == nil {
		// Either the predecessor is still open, or the category has not
		// been touched at all.
		return false, SkipPriorIncomplete, nil
	}

	unlockedAt := time.Date(
		cmd.Date.Year(), cmd.Date.Month(), cmd.Date.Day(),
		cmd.Hour, 0, 0, 0, time.UTC,
	)

	// Conditional update: only a locked lesson flips to available, so a
	// replayed or concurrent tick cannot double-unlock.
	ok, err := h.lessonRepo.MarkAvailable(ctx, next.ID, unlockedAt)
	if err != nil {
		return false, "", err
	}
	if !ok {
		return false, SkipAlreadyUnlocked, nil
	}

	if h.publisher != nil {
		event := shared.NewLessonUnlockedEvent(m.ID, next.ID, next.Category.String(), unlockedAt)
		if err := h.publisher.Publish(event); err != nil {
			h.logger.Warn("failed to publish lesson unlocked event",
				"member_id", m.ID,
				"lesson_id", next.ID,
				"error", err,
			)
		}
	}

	h.logger.Info("lesson unlocked",
		"member_id", m.ID,
		"lesson_id", next.ID,
		"category", next.Category.String(),
		"week", next.WeekNumber,
		"day", next.DayNumber,
	)

	return true, "", nil
}

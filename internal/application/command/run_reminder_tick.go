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
	"github.com/leadpath/leadpath-engine/internal/domain/notification"
	"github.com/leadpath/leadpath-engine/pkg/calendar"
)

// ══════════════════════════════════════════════════════════════════════════════
// RUN REMINDER TICK COMMAND
// Sends reminder emails to members whose reminder slot matches the tick
// hour. The dispatcher is stateless: no "already sent" flag exists
// anywhere. Whether a reminder goes out is derived entirely from the
// member's preferences and the current count of available lessons, which
// is what makes reminders stop automatically once everything is done.
// ══════════════════════════════════════════════════════════════════════════════

// RunReminderTickCommand carries the tick being evaluated.
type RunReminderTickCommand struct {
	// Hour is the hour of day (0-23) the tick fires for.
	Hour int

	// Date is the calendar day of the tick. Time of day is ignored.
	Date time.Time

	// CorrelationID for tracing.
	CorrelationID string
}

// Validate validates the command.
func (c RunReminderTickCommand) Validate() error {
	if !calendar.IsValidHour(c.Hour) {
		return errors.New("run_reminder_tick: hour must be 0-23")
	}
	if c.Date.IsZero() {
		return errors.New("run_reminder_tick: date is required")
	}
	return nil
}

// RunReminderTickResult contains the outcome of one reminder tick.
type RunReminderTickResult struct {
	// NotifiedCount is the number of reminders actually sent.
	NotifiedCount int

	// CandidateCount is the number of members whose slot matched.
	CandidateCount int

	// SkippedReasons tallies why candidates were passed over.
	SkippedReasons map[string]int

	// FailedCount is the number of sends that failed after the
	// notifier's own retries.
	FailedCount int

	// Duration is how long the tick took.
	Duration time.Duration
}

// Skip reasons recorded by the reminder tick.
const (
	SkipRemindersOff       = "reminders_disabled"
	SkipNotNotifiable      = "member_not_active"
	SkipNoSlotMatch        = "no_slot_match"
	SkipNoAvailableLessons = "no_available_lessons"
)

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// RunReminderTickHandler handles the RunReminderTickCommand.
type RunReminderTickHandler struct {
	memberRepo  member.Repository
	lessonRepo  journey.LessonRepository
	notifier    notification.Notifier
	logger      *slog.Logger
	concurrency int
}

// NewRunReminderTickHandler creates a new RunReminderTickHandler.
func NewRunReminderTickHandler(
	memberRepo member.Repository,
	lessonRepo journey.LessonRepository,
	notifier notification.Notifier,
	logger *slog.Logger,
	concurrency int,
) *RunReminderTickHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if concurrency <= 0 {
		concurrency = 10
	}

	return &RunReminderTickHandler{
		memberRepo:  memberRepo,
		lessonRepo:  lessonRepo,
		notifier:    notifier,
		logger:      logger,
		concurrency: concurrency,
	}
}

// Handle executes one reminder tick. Send failures are logged per member
// and never abort the tick.
func (h *RunReminderTickHandler) Handle(
	ctx context.Context,
	cmd RunReminderTickCommand,
) (*RunReminderTickResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	startedAt := time.Now()
	result := &RunReminderTickResult{
		SkippedReasons: make(map[string]int),
	}

	h.logger.Info("starting reminder tick", "hour", cmd.Hour, "date", cmd.Date.Format("2006-01-02"))

	candidates, err := h.memberRepo.FindReminderCandidates(ctx, cmd.Hour)
	if err != nil {
		return nil, fmt.Errorf("run_reminder_tick: failed to query candidates: %w", err)
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
			h.logger.Warn("reminder tick cancelled mid-run", "sent_so_far", result.NotifiedCount)
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

			sent, skipReason, err := h.remindMember(ctx, mem, cmd)

			mu.Lock()
			defer mu.Unlock()

			switch {
			case err != nil:
				result.FailedCount++
				h.logger.Error("reminder delivery failed",
					"member_id", mem.ID,
					"error", err,
				)
			case sent:
				result.NotifiedCount++
			default:
				result.SkippedReasons[skipReason]++
			}
		}(m)
	}

	wg.Wait()

	result.Duration = time.Since(startedAt)
	h.logger.Info("reminder tick completed",
		"duration", result.Duration.String(),
		"candidates", result.CandidateCount,
		"notified", result.NotifiedCount,
		"failed", result.FailedCount,
	)

	return result, nil
}

// remindMember evaluates and, when everything holds, sends one reminder.
// All state reads happen before the send; the notifier call is the final
// step and commits nothing.
func (h *RunReminderTickHandler) remindMember(
	ctx context.Context,
	m *member.Member,
	cmd RunReminderTickCommand,
) (sent bool, skipReason string, err error) {
	if !m.CanBeNotified() {
		if !m.Status.CanReceiveNotifications() {
			return false, SkipNotNotifiable, nil
		}
		return false, SkipRemindersOff, nil
	}

	prefs := m.Preferences

	// Reminders respect the member's active days just like unlocks.
	if !prefs.IsActiveOn(cmd.Date) {
		return false, SkipInactiveDay, nil
	}

	slot, err := notification.ResolveSlot(
		cmd.Hour,
		prefs.ReminderHour,
		calendar.FollowUpHour(prefs.ReminderHour),
		prefs.ReminderCount.HasFollowUp(),
	)
	if err != nil {
		// A count of one never fires the follow-up slot even when the
		// candidate query matched on the initial hour.
		return false, SkipNoSlotMatch, nil
	}

	// Auto-stop: re-count right before composing. A lesson completed
	// since the candidate query means silence, with no flag to clear.
	available, err := h.lessonRepo.CountAvailable(ctx, m.ID)
	if err != nil {
		return false, "", err
	}
	if available == 0 {
		return false, SkipNoAvailableLessons, nil
	}

	reminder, err := notification.Compose(m.ID, m.Email, m.DisplayName, slot, available)
	if err != nil {
		return false, "", err
	}

	sendStart := time.Now()
	if err := h.notifier.Send(ctx, reminder.Recipient, reminder.Subject, reminder.Body); err != nil {
		res := notification.NewFailureResult(m.ID, reminder.Recipient, slot, err, time.Since(sendStart))
		h.logger.Error("reminder send failed",
			"member_id", res.MemberID,
			"slot", string(res.Slot),
			"duration", res.Duration.String(),
			"error", res.Error,
		)
		return false, "", err
	}

	res := notification.NewSuccessResult(m.ID, reminder.Recipient, slot, time.Since(sendStart))
	h.logger.Info("reminder sent",
		"member_id", res.MemberID,
		"slot", string(res.Slot),
		"available_lessons", available,
		"duration", res.Duration.String(),
	)

	return true, "", nil
}

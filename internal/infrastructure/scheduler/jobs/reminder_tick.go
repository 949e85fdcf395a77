package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/leadpath/leadpath-engine/internal/application/command"
)

// ══════════════════════════════════════════════════════════════════════════════
// REMINDER TICK JOB
// Часовой тик напоминаний. Как и тик разблокировки - тонкий адаптер
// вокруг обработчика команды; никакого состояния "уже отправлено"
// задача не хранит.
// ══════════════════════════════════════════════════════════════════════════════

// ReminderTickJob запускает тик напоминаний каждый час.
type ReminderTickJob struct {
	handler  *command.RunReminderTickHandler
	timezone *time.Location
	logger   *slog.Logger

	lastResult atomic.Value // *command.RunReminderTickResult
}

// NewReminderTickJob создаёт новую задачу тика напоминаний.
func NewReminderTickJob(
	handler *command.RunReminderTickHandler,
	timezone *time.Location,
	logger *slog.Logger,
) *ReminderTickJob {
	if timezone == nil {
		timezone = time.UTC
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &ReminderTickJob{
		handler:  handler,
		timezone: timezone,
		logger:   logger,
	}
}

// Name возвращает имя задачи.
func (j *ReminderTickJob) Name() string {
	return "reminder_tick"
}

// Description возвращает описание задачи.
func (j *ReminderTickJob) Description() string {
	return "Sends reminder emails to members whose reminder slot matches the current hour"
}

// Run выполняет один тик напоминаний.
func (j *ReminderTickJob) Run(ctx context.Context) error {
	now := time.Now().In(j.timezone)

	result, err := j.handler.Handle(ctx, command.RunReminderTickCommand{
		Hour: now.Hour(),
		Date: now,
	})
	if err != nil {
		return fmt.Errorf("reminder tick failed: %w", err)
	}

	j.lastResult.Store(result)

	j.logger.Info("reminder tick finished",
		"hour", now.Hour(),
		"candidates", result.CandidateCount,
		"notified", result.NotifiedCount,
		"failed", result.FailedCount,
	)

	return nil
}

// RunAt переигрывает тик для произвольного часа и даты.
func (j *ReminderTickJob) RunAt(ctx context.Context, hour int, date time.Time) (*command.RunReminderTickResult, error) {
	return j.handler.Handle(ctx, command.RunReminderTickCommand{
		Hour: hour,
		Date: date,
	})
}

// LastResult возвращает результат последнего запуска.
func (j *ReminderTickJob) LastResult() *command.RunReminderTickResult {
	result := j.lastResult.Load()
	if result == nil {
		return nil
	}
	return result.(*command.RunReminderTickResult)
}

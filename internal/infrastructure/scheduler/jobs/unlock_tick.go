// Package jobs содержит реализации фоновых задач движка уроков.
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
// UNLOCK TICK JOB
// Часовой тик разблокировки. Задача - тонкий адаптер: она выводит час
// и дату из времени срабатывания в настроенном часовом поясе и передаёт
// их обработчику команды. Сам обработчик часов не читает, поэтому любой
// тик можно переиграть вручную с теми же аргументами.
// ══════════════════════════════════════════════════════════════════════════════

// UnlockTickJob запускает тик разблокировки уроков каждый час.
type UnlockTickJob struct {
	handler  *command.RunUnlockTickHandler
	timezone *time.Location
	logger   *slog.Logger

	lastResult atomic.Value // *command.RunUnlockTickResult
}

// NewUnlockTickJob создаёт новую задачу тика разблокировки.
func NewUnlockTickJob(
	handler *command.RunUnlockTickHandler,
	timezone *time.Location,
	logger *slog.Logger,
) *UnlockTickJob {
	if timezone == nil {
		timezone = time.UTC
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &UnlockTickJob{
		handler:  handler,
		timezone: timezone,
		logger:   logger,
	}
}

// Name возвращает имя задачи.
func (j *UnlockTickJob) Name() string {
	return "unlock_tick"
}

// Description возвращает описание задачи.
func (j *UnlockTickJob) Description() string {
	return "Opens the next lesson for members whose unlock hour matches the current hour"
}

// Run выполняет один тик разблокировки.
func (j *UnlockTickJob) Run(ctx context.Context) error {
	now := time.Now().In(j.timezone)

	result, err := j.handler.Handle(ctx, command.RunUnlockTickCommand{
		Hour: now.Hour(),
		Date: now,
	})
	if err != nil {
		return fmt.Errorf("unlock tick failed: %w", err)
	}

	j.lastResult.Store(result)

	j.logger.Info("unlock tick finished",
		"hour", now.Hour(),
		"candidates", result.CandidateCount,
		"unlocked", result.UnlockedCount,
		"skipped", len(result.SkippedReasons),
		"failed", result.FailedCount,
	)

	return nil
}

// RunAt переигрывает тик для произвольного часа и даты.
// Используется ручным HTTP-эндпоинтом.
func (j *UnlockTickJob) RunAt(ctx context.Context, hour int, date time.Time) (*command.RunUnlockTickResult, error) {
	return j.handler.Handle(ctx, command.RunUnlockTickCommand{
		Hour: hour,
		Date: date,
	})
}

// LastResult возвращает результат последнего запуска.
func (j *UnlockTickJob) LastResult() *command.RunUnlockTickResult {
	result := j.lastResult.Load()
	if result == nil {
		return nil
	}
	return result.(*command.RunUnlockTickResult)
}

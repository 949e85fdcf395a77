package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/leadpath/leadpath-engine/internal/domain/member"
	"github.com/leadpath/leadpath-engine/internal/domain/notification"
)

// ══════════════════════════════════════════════════════════════════════════════
// SUPPORT NUDGE JOB
// Ежедневное письмо поддержки участникам, у которых давно не было
// активности. В отличие от напоминаний о доступных уроках, здесь
// участника не подгоняют, а напоминают, что вернуться никогда не поздно.
// ══════════════════════════════════════════════════════════════════════════════

// SupportNudgeJob отправляет письма поддержки отстающим участникам.
type SupportNudgeJob struct {
	memberRepo   member.Repository
	progressRepo member.ProgressRepository
	notifier     notification.Notifier
	logger       *slog.Logger
	config       SupportNudgeConfig

	lastRunStats atomic.Value // *SupportNudgeStats
}

// SupportNudgeConfig содержит настройки задачи.
type SupportNudgeConfig struct {
	// InactiveAfterDays - через сколько дней без активности участник
	// считается отстающим.
	InactiveAfterDays int

	// MaxNudgesPerRun ограничивает количество писем за один запуск.
	MaxNudgesPerRun int
}

// DefaultSupportNudgeConfig возвращает настройки по умолчанию.
func DefaultSupportNudgeConfig() SupportNudgeConfig {
	return SupportNudgeConfig{
		InactiveAfterDays: 5,
		MaxNudgesPerRun:   200,
	}
}

// SupportNudgeStats содержит статистику одного запуска.
type SupportNudgeStats struct {
	StartedAt    time.Time
	Duration     time.Duration
	Candidates   int
	NudgesSent   int
	Skipped      int
	SendFailures int
}

// NewSupportNudgeJob создаёт новую задачу писем поддержки.
func NewSupportNudgeJob(
	memberRepo member.Repository,
	progressRepo member.ProgressRepository,
	notifier notification.Notifier,
	logger *slog.Logger,
	config SupportNudgeConfig,
) *SupportNudgeJob {
	if logger == nil {
		logger = slog.Default()
	}
	if config.InactiveAfterDays <= 0 {
		config.InactiveAfterDays = 5
	}

	return &SupportNudgeJob{
		memberRepo:   memberRepo,
		progressRepo: progressRepo,
		notifier:     notifier,
		logger:       logger,
		config:       config,
	}
}

// Name возвращает имя задачи.
func (j *SupportNudgeJob) Name() string {
	return "support_nudge"
}

// Description возвращает описание задачи.
func (j *SupportNudgeJob) Description() string {
	return "Sends a supportive email to members with no recent lesson activity"
}

// Run выполняет один проход по отстающим участникам.
func (j *SupportNudgeJob) Run(ctx context.Context) error {
	startedAt := time.Now()
	stats := &SupportNudgeStats{StartedAt: startedAt}

	before := time.Now().UTC().AddDate(0, 0, -j.config.InactiveAfterDays)
	records, err := j.progressRepo.FindInactiveSince(ctx, before)
	if err != nil {
		return fmt.Errorf("support nudge: failed to find inactive members: %w", err)
	}

	stats.Candidates = len(records)

	for _, p := range records {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if j.config.MaxNudgesPerRun > 0 && stats.NudgesSent >= j.config.MaxNudgesPerRun {
			break
		}

		m, err := j.memberRepo.GetByID(ctx, p.MemberID)
		if err != nil {
			stats.Skipped++
			continue
		}

		// Письма поддержки уважают те же переключатели, что и
		// напоминания: паузу и полное отключение рассылок.
		if !m.CanBeNotified() {
			stats.Skipped++
			continue
		}

		subject, body := j.composeNudge(m, p)
		if err := j.notifier.Send(ctx, m.Email, subject, body); err != nil {
			stats.SendFailures++
			j.logger.Error("support nudge send failed",
				"member_id", m.ID,
				"error", err,
			)
			continue
		}

		stats.NudgesSent++
	}

	stats.Duration = time.Since(startedAt)
	j.lastRunStats.Store(stats)

	j.logger.Info("support nudge completed",
		"duration", stats.Duration.String(),
		"candidates", stats.Candidates,
		"sent", stats.NudgesSent,
		"skipped", stats.Skipped,
		"failed", stats.SendFailures,
	)

	return nil
}

// composeNudge составляет письмо поддержки с учётом прогресса участника.
func (j *SupportNudgeJob) composeNudge(m *member.Member, p *member.Progress) (subject, body string) {
	days := p.DaysSinceLastActivity(time.Now().UTC())

	subject = "Your leadership journey is waiting for you"
	body = fmt.Sprintf(
		"Hi %s,\n\n"+
			"It has been %d days since your last lesson. Life gets busy - "+
			"that is completely fine.\n\n"+
			"You have already completed %d lessons and earned %d points. "+
			"None of that goes away. Whenever you are ready, your next "+
			"lesson is right where you left it.\n\n"+
			"See you inside.",
		m.DisplayName, days, p.TotalLessons, p.TotalPoints,
	)
	return subject, body
}

// LastRunStats возвращает статистику последнего запуска.
func (j *SupportNudgeJob) LastRunStats() *SupportNudgeStats {
	stats := j.lastRunStats.Load()
	if stats == nil {
		return nil
	}
	return stats.(*SupportNudgeStats)
}

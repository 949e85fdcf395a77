// Package eventhandler содержит обработчики доменных событий.
package eventhandler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/leadpath/leadpath-engine/internal/domain/journey"
	"github.com/leadpath/leadpath-engine/internal/domain/member"
	"github.com/leadpath/leadpath-engine/internal/domain/shared"
	"github.com/leadpath/leadpath-engine/pkg/calendar"
)

// ══════════════════════════════════════════════════════════════════════════════
// ОБРАБОТЧИК ЗАВЕРШЕНИЯ УРОКА (Progress Aggregator)
// Единственный писатель агрегированного прогресса и текущей категории
// путешествия. Реагирует на событие lesson.completed: начисляет очки,
// обновляет серию, а на границе категории продвигает ротацию и создаёт
// уроки следующей категории.
// ══════════════════════════════════════════════════════════════════════════════

// OnLessonCompletedConfig содержит настройки обработчика.
type OnLessonCompletedConfig struct {
	// PublishStreakEvents - публиковать ли события об изменении серии.
	PublishStreakEvents bool
}

// DefaultOnLessonCompletedConfig возвращает настройки по умолчанию.
func DefaultOnLessonCompletedConfig() OnLessonCompletedConfig {
	return OnLessonCompletedConfig{
		PublishStreakEvents: true,
	}
}

// OnLessonCompletedHandler обрабатывает событие завершения урока.
type OnLessonCompletedHandler struct {
	memberRepo   member.Repository
	progressRepo member.ProgressRepository
	journeyRepo  journey.Repository
	lessonRepo   journey.LessonRepository
	catalog      journey.Catalog
	publisher    shared.EventPublisher
	logger       *slog.Logger
	config       OnLessonCompletedConfig
}

// NewOnLessonCompletedHandler создаёт новый обработчик.
func NewOnLessonCompletedHandler(
	memberRepo member.Repository,
	progressRepo member.ProgressRepository,
	journeyRepo journey.Repository,
	lessonRepo journey.LessonRepository,
	catalog journey.Catalog,
	publisher shared.EventPublisher,
	logger *slog.Logger,
	config OnLessonCompletedConfig,
) *OnLessonCompletedHandler {
	if logger == nil {
		logger = slog.Default()
	}

	return &OnLessonCompletedHandler{
		memberRepo:   memberRepo,
		progressRepo: progressRepo,
		journeyRepo:  journeyRepo,
		lessonRepo:   lessonRepo,
		catalog:      catalog,
		publisher:    publisher,
		logger:       logger,
		config:       config,
	}
}

// Handle обрабатывает событие shared.LessonCompletedEvent.
func (h *OnLessonCompletedHandler) Handle(event shared.Event) error {
	completed, ok := event.(shared.LessonCompletedEvent)
	if !ok {
		return fmt.Errorf("on_lesson_completed: unexpected event type %T", event)
	}

	ctx := context.Background()

	if err := h.updateProgress(ctx, completed); err != nil {
		return err
	}

	return h.advanceJourneyIfNeeded(ctx, completed)
}

// updateProgress начисляет очки и обновляет серию активных дней.
func (h *OnLessonCompletedHandler) updateProgress(ctx context.Context, e shared.LessonCompletedEvent) error {
	progress, err := h.progressRepo.GetByMemberID(ctx, e.MemberID)
	if err != nil {
		if !errors.Is(err, member.ErrMemberNotFound) {
			return fmt.Errorf("on_lesson_completed: failed to load progress: %w", err)
		}
		// Запись прогресса создаётся при старте путешествия; если её
		// нет, восстанавливаем на лету.
		progress = member.NewProgress(e.MemberID, e.JourneyID, e.Category)
	}

	// Серия считается в активных днях участника, поэтому здесь нужны
	// его текущие предпочтения.
	activeDays := calendar.EveryDay()
	if m, mErr := h.memberRepo.GetByID(ctx, e.MemberID); mErr == nil {
		activeDays = m.Preferences.ActiveDays
	} else if !errors.Is(mErr, member.ErrMemberNotFound) {
		return fmt.Errorf("on_lesson_completed: failed to load member: %w", mErr)
	}

	wasReset, err := progress.RecordCompletion(e.Points, e.CompletedAt, activeDays)
	if err != nil {
		return fmt.Errorf("on_lesson_completed: %w", err)
	}

	if err := h.progressRepo.Save(ctx, progress); err != nil {
		return fmt.Errorf("on_lesson_completed: failed to save progress: %w", err)
	}

	h.logger.Info("progress updated",
		"member_id", e.MemberID,
		"total_points", progress.TotalPoints,
		"total_lessons", progress.TotalLessons,
		"streak", progress.CurrentStreakDays,
	)

	if h.config.PublishStreakEvents && h.publisher != nil {
		streakEvent := shared.NewStreakUpdatedEvent(
			e.MemberID,
			progress.CurrentStreakDays,
			progress.LongestStreakDays,
			wasReset,
		)
		if err := h.publisher.Publish(streakEvent); err != nil {
			h.logger.Warn("failed to publish streak event", "member_id", e.MemberID, "error", err)
		}
	}

	return nil
}

// advanceJourneyIfNeeded проверяет границы недели и категории.
// Когда все уроки категории завершены, ротация продвигается и создаются
// уроки следующей категории; после пятой категории путешествие
// завершается.
func (h *OnLessonCompletedHandler) advanceJourneyIfNeeded(ctx context.Context, e shared.LessonCompletedEvent) error {
	jny, err := h.journeyRepo.GetByID(ctx, e.JourneyID)
	if err != nil {
		return fmt.Errorf("on_lesson_completed: failed to load journey: %w", err)
	}
	if jny.IsCompleted() {
		return nil
	}

	lessons, err := h.lessonRepo.ListByJourney(ctx, e.JourneyID)
	if err != nil {
		return fmt.Errorf("on_lesson_completed: failed to list lessons: %w", err)
	}

	category := journey.Category(e.Category)
	completedLesson := findLesson(lessons, e.LessonID)

	progress, err := h.progressRepo.GetByMemberID(ctx, e.MemberID)
	if err != nil {
		return fmt.Errorf("on_lesson_completed: failed to reload progress: %w", err)
	}

	// Граница недели: в неделе завершённого урока не осталось
	// незавершённых уроков.
	if completedLesson != nil && weekFinished(lessons, category, completedLesson.WeekNumber) {
		progress.AdvanceWeek()
	}

	// Граница категории: незавершённых уроков категории не осталось.
	if !categoryFinished(lessons, category) {
		return h.progressRepo.Save(ctx, progress)
	}

	next, ongoing, err := jny.AdvanceCategory()
	if err != nil {
		return fmt.Errorf("on_lesson_completed: failed to advance category: %w", err)
	}

	if err := h.journeyRepo.Update(ctx, jny); err != nil {
		return fmt.Errorf("on_lesson_completed: failed to save journey: %w", err)
	}

	if !ongoing {
		progress.AdvanceCategory(member.CategoryCompleted)
		if err := h.progressRepo.Save(ctx, progress); err != nil {
			return fmt.Errorf("on_lesson_completed: failed to save progress: %w", err)
		}

		h.logger.Info("journey completed", "member_id", e.MemberID, "journey_id", jny.ID)

		if h.publisher != nil {
			_ = h.publisher.Publish(shared.NewJourneyCompletedEvent(e.MemberID, jny.ID))
		}
		return nil
	}

	// Создаём уроки следующей категории: первый открыт, остальные закрыты.
	defs := h.catalog.LessonsFor(next)
	instances := journey.InstantiateCategory(jny, next, defs, func() string {
		return uuid.New().String()
	}, e.CompletedAt)

	if err := h.lessonRepo.CreateBatch(ctx, instances); err != nil {
		return fmt.Errorf("on_lesson_completed: failed to create next category lessons: %w", err)
	}

	progress.AdvanceCategory(next.String())
	if err := h.progressRepo.Save(ctx, progress); err != nil {
		return fmt.Errorf("on_lesson_completed: failed to save progress: %w", err)
	}

	h.logger.Info("category advanced",
		"member_id", e.MemberID,
		"journey_id", jny.ID,
		"completed_category", e.Category,
		"next_category", next.String(),
		"lessons_created", len(instances),
	)

	if h.publisher != nil {
		_ = h.publisher.Publish(shared.NewCategoryCompletedEvent(e.MemberID, jny.ID, e.Category, next.String()))
	}

	return nil
}

// findLesson ищет урок по идентификатору.
func findLesson(lessons []*journey.LessonInstance, id string) *journey.LessonInstance {
	for _, li := range lessons {
		if li.ID == id {
			return li
		}
	}
	return nil
}

// weekFinished проверяет, что в неделе категории не осталось
// незавершённых уроков.
func weekFinished(lessons []*journey.LessonInstance, category journey.Category, week int) bool {
	for _, li := range lessons {
		if li.Category == category && li.WeekNumber == week && li.Status != journey.LessonCompleted {
			return false
		}
	}
	return true
}

// categoryFinished проверяет, что в категории не осталось
// незавершённых уроков.
func categoryFinished(lessons []*journey.LessonInstance, category journey.Category) bool {
	for _, li := range lessons {
		if li.Category == category && li.Status != journey.LessonCompleted {
			return false
		}
	}
	return true
}

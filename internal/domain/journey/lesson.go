package journey

import (
	"errors"
	"fmt"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// LESSON STATE MACHINE
// ══════════════════════════════════════════════════════════════════════════════

// LessonStatus определяет состояние экземпляра урока.
// Переходы строго вперёд: locked -> available -> completed.
type LessonStatus string

const (
	// LessonLocked - урок ещё не открыт.
	LessonLocked LessonStatus = "locked"
	// LessonAvailable - урок открыт и ждёт прохождения.
	LessonAvailable LessonStatus = "available"
	// LessonCompleted - урок завершён.
	LessonCompleted LessonStatus = "completed"
)

// IsValid проверяет, что статус корректен.
func (s LessonStatus) IsValid() bool {
	switch s {
	case LessonLocked, LessonAvailable, LessonCompleted:
		return true
	default:
		return false
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// LESSON INSTANCE
// ══════════════════════════════════════════════════════════════════════════════

// MaxPoints - максимум очков за один урок.
const MaxPoints = 25

// DefaultSpacingDays - интервал между уроками по умолчанию
// (в активных днях участника).
const DefaultSpacingDays = 1

// LessonInstance - экземпляр урока, назначенный конкретному участнику.
// Порядок уроков внутри категории задаётся парой (WeekNumber, DayNumber).
type LessonInstance struct {
	// ID - уникальный идентификатор экземпляра (UUID).
	ID string

	// MemberID - идентификатор участника.
	MemberID string

	// JourneyID - идентификатор путешествия.
	JourneyID string

	// LessonID - идентификатор урока в каталоге.
	LessonID string

	// Title - название урока.
	Title string

	// Category - категория урока.
	Category Category

	// WeekNumber - номер недели внутри категории (с 1).
	WeekNumber int

	// DayNumber - номер дня внутри недели (с 1).
	DayNumber int

	// Status - текущее состояние урока.
	Status LessonStatus

	// PointsEarned - очки, полученные при завершении (0-25).
	PointsEarned int

	// SpacingDays - сколько активных дней должно пройти между
	// завершением предыдущего урока и открытием этого.
	// Ноль означает открытие на ближайшем тике.
	SpacingDays int

	// CommitWithinDays - обещание завершить урок за N дней.
	// Консультативное поле: на открытие уроков не влияет.
	CommitWithinDays *int

	// CommitNote - заметка к обещанию.
	CommitNote string

	// UnlockedAt - время открытия урока.
	UnlockedAt time.Time

	// StartedAt - время начала прохождения.
	StartedAt time.Time

	// CompletedAt - время завершения.
	CompletedAt time.Time

	// CreatedAt - время создания записи.
	CreatedAt time.Time

	// UpdatedAt - время последнего обновления.
	UpdatedAt time.Time
}

// ══════════════════════════════════════════════════════════════════════════════
// DOMAIN ERRORS
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrLessonNotFound - экземпляр урока не найден.
	ErrLessonNotFound = errors.New("lesson instance not found")

	// ErrLessonNotLocked - открыть можно только закрытый урок.
	ErrLessonNotLocked = errors.New("lesson is not locked")

	// ErrLessonNotAvailable - урок не в состоянии available.
	ErrLessonNotAvailable = errors.New("lesson is not available")

	// ErrLessonAlreadyCompleted - урок уже завершён.
	ErrLessonAlreadyCompleted = errors.New("lesson already completed")

	// ErrInvalidPoints - очки вне диапазона 0-25.
	ErrInvalidPoints = errors.New("invalid points: must be between 0 and 25")

	// ErrInvalidCommitDays - срок обещания должен быть положительным.
	ErrInvalidCommitDays = errors.New("commitment days must be positive")

	// ErrNotMemberLesson - урок принадлежит другому участнику.
	ErrNotMemberLesson = errors.New("lesson belongs to another member")
)

// ══════════════════════════════════════════════════════════════════════════════
// STATE TRANSITIONS
// ══════════════════════════════════════════════════════════════════════════════

// Unlock переводит урок из locked в available.
// Запись в хранилище выполняется условным обновлением, поэтому
// повторное открытие на другом тике невозможно.
func (li *LessonInstance) Unlock(at time.Time) error {
	if li.Status != LessonLocked {
		return ErrLessonNotLocked
	}

	li.Status = LessonAvailable
	li.UnlockedAt = at.UTC()
	li.UpdatedAt = time.Now().UTC()
	return nil
}

// Start отмечает начало прохождения открытого урока.
// Повторный вызов не меняет время первого старта.
func (li *LessonInstance) Start(at time.Time) error {
	if li.Status != LessonAvailable {
		return ErrLessonNotAvailable
	}

	if li.StartedAt.IsZero() {
		li.StartedAt = at.UTC()
	}
	li.UpdatedAt = time.Now().UTC()
	return nil
}

// Complete переводит урок из available в completed и фиксирует очки.
func (li *LessonInstance) Complete(points int, at time.Time) error {
	if li.Status == LessonCompleted {
		return ErrLessonAlreadyCompleted
	}
	if li.Status != LessonAvailable {
		return ErrLessonNotAvailable
	}
	if points < 0 || points > MaxPoints {
		return ErrInvalidPoints
	}

	li.Status = LessonCompleted
	li.PointsEarned = points
	li.CompletedAt = at.UTC()
	li.UpdatedAt = time.Now().UTC()
	return nil
}

// SetCommitment записывает обещание завершить урок за days дней.
// Обещание можно дать только по открытому уроку; повторный вызов
// перезаписывает предыдущее. Поля обещания переживают завершение урока.
func (li *LessonInstance) SetCommitment(days int, note string) error {
	if days <= 0 {
		return ErrInvalidCommitDays
	}
	if li.Status == LessonCompleted {
		return ErrLessonAlreadyCompleted
	}
	if li.Status != LessonAvailable {
		return ErrLessonNotAvailable
	}

	d := days
	li.CommitWithinDays = &d
	li.CommitNote = note
	li.UpdatedAt = time.Now().UTC()
	return nil
}

// HasCommitment возвращает true, если по уроку дано обещание.
func (li *LessonInstance) HasCommitment() bool {
	return li.CommitWithinDays != nil
}

// SequenceKey возвращает позицию урока внутри категории для сортировки.
func (li *LessonInstance) SequenceKey() int {
	return li.WeekNumber*100 + li.DayNumber
}

// String возвращает строковое представление урока для логирования.
func (li *LessonInstance) String() string {
	return fmt.Sprintf(
		"Lesson{ID: %s, Member: %s, %s w%dd%d, Status: %s}",
		li.ID, li.MemberID, li.Category, li.WeekNumber, li.DayNumber, li.Status,
	)
}

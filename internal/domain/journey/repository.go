package journey

import (
	"context"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// Эти интерфейсы определяют контракт для работы с хранилищем данных.
// Реализации находятся в infrastructure/persistence.
// ══════════════════════════════════════════════════════════════════════════════

// Repository определяет операции для путешествий.
type Repository interface {
	// Create создаёт путешествие.
	// Возвращает ErrJourneyAlreadyActive, если у участника уже есть
	// активное путешествие.
	Create(ctx context.Context, j *Journey) error

	// GetByID возвращает путешествие по ID.
	// Возвращает ErrJourneyNotFound, если путешествие не найдено.
	GetByID(ctx context.Context, id string) (*Journey, error)

	// GetActiveByMemberID возвращает активное путешествие участника.
	// Возвращает ErrJourneyNotFound, если активного путешествия нет.
	GetActiveByMemberID(ctx context.Context, memberID string) (*Journey, error)

	// Update обновляет путешествие.
	Update(ctx context.Context, j *Journey) error
}

// ══════════════════════════════════════════════════════════════════════════════
// LESSON REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// LessonRepository определяет операции для экземпляров уроков.
type LessonRepository interface {
	// CreateBatch сохраняет пакет экземпляров уроков одной категории.
	CreateBatch(ctx context.Context, lessons []*LessonInstance) error

	// GetByID возвращает экземпляр урока по ID.
	// Возвращает ErrLessonNotFound, если урок не найден.
	GetByID(ctx context.Context, id string) (*LessonInstance, error)

	// GetByMemberAndID возвращает урок участника.
	// Возвращает ErrLessonNotFound, если урок не найден или
	// принадлежит другому участнику.
	GetByMemberAndID(ctx context.Context, memberID, lessonID string) (*LessonInstance, error)

	// NextLocked возвращает ближайший по порядку (неделя, день) закрытый
	// урок категории. Возвращает ErrLessonNotFound, если закрытых нет.
	NextLocked(ctx context.Context, memberID, journeyID string, category Category) (*LessonInstance, error)

	// LastCompleted возвращает последний завершённый урок категории.
	// Возвращает ErrLessonNotFound, если завершённых нет.
	LastCompleted(ctx context.Context, memberID, journeyID string, category Category) (*LessonInstance, error)

	// CountAvailable возвращает количество открытых уроков участника.
	// Используется и тиком напоминаний (автостоп), и проверкой
	// инварианта единственного открытого урока категории.
	CountAvailable(ctx context.Context, memberID string) (int, error)

	// CountAvailableInCategory возвращает количество открытых уроков
	// категории внутри путешествия.
	CountAvailableInCategory(ctx context.Context, memberID, journeyID string, category Category) (int, error)

	// CountRemaining возвращает количество незавершённых уроков
	// категории (locked + available).
	CountRemaining(ctx context.Context, memberID, journeyID string, category Category) (int, error)

	// MarkAvailable выполняет условное обновление
	// status='available' WHERE status='locked'.
	// Возвращает false, если урок уже не был закрыт.
	MarkAvailable(ctx context.Context, lessonID string, at time.Time) (bool, error)

	// Update сохраняет изменённый экземпляр урока.
	Update(ctx context.Context, li *LessonInstance) error

	// ListByJourney возвращает уроки путешествия в порядке прохождения.
	ListByJourney(ctx context.Context, journeyID string) ([]*LessonInstance, error)
}

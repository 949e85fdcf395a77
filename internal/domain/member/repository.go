package member

import (
	"context"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// Эти интерфейсы определяют контракт для работы с хранилищем данных.
// Реализации находятся в infrastructure/persistence.
// ══════════════════════════════════════════════════════════════════════════════

// Repository определяет основные операции для участников.
type Repository interface {
	// Create создаёт нового участника.
	// Возвращает ErrMemberAlreadyExists, если участник уже существует.
	Create(ctx context.Context, m *Member) error

	// GetByID возвращает участника по внутреннему ID.
	// Возвращает ErrMemberNotFound, если участник не найден.
	GetByID(ctx context.Context, id string) (*Member, error)

	// GetByEmail возвращает участника по email.
	// Возвращает ErrMemberNotFound, если участник не найден.
	GetByEmail(ctx context.Context, email string) (*Member, error)

	// Update обновляет данные участника.
	// Возвращает ErrMemberNotFound, если участник не найден.
	Update(ctx context.Context, m *Member) error

	// UpdatePreferences сохраняет только настройки участника.
	UpdatePreferences(ctx context.Context, memberID string, prefs Preferences) error

	// FindUnlockCandidates возвращает активных участников, у которых час
	// разблокировки равен hour и есть хотя бы один закрытый урок.
	// Фильтрация выполняется хранилищем по индексу, а не в памяти.
	FindUnlockCandidates(ctx context.Context, hour int) ([]*Member, error)

	// FindReminderCandidates возвращает активных участников с включёнными
	// напоминаниями, хотя бы одним доступным уроком и подходящим слотом:
	// основной час равен hour либо повторный слот (при двух напоминаниях)
	// равен hour.
	FindReminderCandidates(ctx context.Context, hour int) ([]*Member, error)

	// Count возвращает общее количество участников.
	Count(ctx context.Context) (int, error)

	// Exists проверяет существование участника по ID.
	Exists(ctx context.Context, id string) (bool, error)
}

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESS REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// ProgressRepository определяет операции для работы с прогрессом.
// Запись прогресса создаётся вместе с путешествием и обновляется
// только обработчиком завершения урока.
type ProgressRepository interface {
	// Save сохраняет или обновляет запись прогресса (upsert).
	Save(ctx context.Context, p *Progress) error

	// GetByMemberID возвращает прогресс участника.
	// Возвращает ErrMemberNotFound, если записи нет.
	GetByMemberID(ctx context.Context, memberID string) (*Progress, error)

	// FindInactiveSince возвращает записи без активности с указанной даты.
	// Используется письмами поддержки для отстающих участников.
	FindInactiveSince(ctx context.Context, before time.Time) ([]*Progress, error)
}

// ══════════════════════════════════════════════════════════════════════════════
// PREFERENCES CACHE
// Каждый тик читает настройки всех кандидатов, поэтому они кешируются
// (обычно в Redis).
// ══════════════════════════════════════════════════════════════════════════════

// PreferencesCache определяет операции кеширования настроек.
type PreferencesCache interface {
	// Get получает настройки из кеша.
	Get(ctx context.Context, memberID string) (*Preferences, error)

	// Set сохраняет настройки в кеш.
	Set(ctx context.Context, memberID string, prefs Preferences, ttl time.Duration) error

	// Invalidate удаляет настройки участника из кеша.
	Invalidate(ctx context.Context, memberID string) error
}

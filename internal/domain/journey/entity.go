// Package journey содержит доменную модель путешествия развития:
// ротацию категорий, путешествие участника и экземпляры уроков
// с их машиной состояний.
package journey

import (
	"errors"
	"fmt"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// CATEGORY (Категории развития)
// ══════════════════════════════════════════════════════════════════════════════

// Category представляет одну из пяти категорий развития лидерства.
type Category string

const (
	CategoryClarity     Category = "clarity"
	CategoryConsistency Category = "consistency"
	CategoryConnection  Category = "connection"
	CategoryCourage     Category = "courage"
	CategoryCuriosity   Category = "curiosity"
)

// CategoryRotation возвращает фиксированный порядок категорий.
// Путешествие начинается с фокуса роста участника и циклически
// проходит все пять категорий.
func CategoryRotation() []Category {
	return []Category{
		CategoryClarity,
		CategoryConsistency,
		CategoryConnection,
		CategoryCourage,
		CategoryCuriosity,
	}
}

// IsValid проверяет, что категория известна.
func (c Category) IsValid() bool {
	switch c {
	case CategoryClarity, CategoryConsistency, CategoryConnection, CategoryCourage, CategoryCuriosity:
		return true
	default:
		return false
	}
}

// String возвращает строковое представление категории.
func (c Category) String() string {
	return string(c)
}

// Next возвращает следующую категорию в ротации с переходом через конец.
func (c Category) Next() Category {
	rotation := CategoryRotation()
	for i, cat := range rotation {
		if cat == c {
			return rotation[(i+1)%len(rotation)]
		}
	}
	return rotation[0]
}

// ══════════════════════════════════════════════════════════════════════════════
// ENUMS
// ══════════════════════════════════════════════════════════════════════════════

// JourneyStatus определяет состояние путешествия.
type JourneyStatus string

const (
	// JourneyActive - путешествие идёт.
	JourneyActive JourneyStatus = "active"
	// JourneyPaused - путешествие приостановлено.
	JourneyPaused JourneyStatus = "paused"
	// JourneyCompleted - все пять категорий завершены.
	JourneyCompleted JourneyStatus = "completed"
)

// IsValid проверяет, что статус корректен.
func (s JourneyStatus) IsValid() bool {
	switch s {
	case JourneyActive, JourneyPaused, JourneyCompleted:
		return true
	default:
		return false
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// MAIN ENTITY: JOURNEY
// ══════════════════════════════════════════════════════════════════════════════

// Journey - путешествие участника через пять категорий развития.
// У участника может быть не более одного активного путешествия.
type Journey struct {
	// ID - уникальный идентификатор путешествия (UUID).
	ID string

	// MemberID - идентификатор участника.
	MemberID string

	// GrowthFocus - категория, с которой началась ротация.
	GrowthFocus Category

	// IntentionalAdvantage - сильная сторона участника (свободный текст).
	IntentionalAdvantage string

	// CurrentCategory - категория, над которой участник работает сейчас.
	CurrentCategory Category

	// Status - состояние путешествия.
	Status JourneyStatus

	// CompletedCategories - завершённые категории в порядке прохождения.
	CompletedCategories []Category

	// StartedAt - время начала путешествия.
	StartedAt time.Time

	// CompletedAt - время завершения (нулевое, пока путешествие идёт).
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
	// ErrJourneyNotFound - путешествие не найдено.
	ErrJourneyNotFound = errors.New("journey not found")

	// ErrJourneyAlreadyActive - у участника уже есть активное путешествие.
	ErrJourneyAlreadyActive = errors.New("member already has an active journey")

	// ErrJourneyNotActive - путешествие не в активном состоянии.
	ErrJourneyNotActive = errors.New("journey is not active")

	// ErrJourneyFinished - путешествие уже завершено.
	ErrJourneyFinished = errors.New("journey already completed")

	// ErrInvalidCategory - неизвестная категория.
	ErrInvalidCategory = errors.New("unknown category")
)

// ══════════════════════════════════════════════════════════════════════════════
// FACTORY & VALIDATION
// ══════════════════════════════════════════════════════════════════════════════

// NewJourneyParams содержит параметры для создания путешествия.
type NewJourneyParams struct {
	ID                   string
	MemberID             string
	GrowthFocus          Category
	IntentionalAdvantage string
}

// NewJourney создаёт новое путешествие, начинающееся с фокуса роста.
func NewJourney(params NewJourneyParams) (*Journey, error) {
	if params.ID == "" {
		return nil, errors.New("journey id is required")
	}
	if params.MemberID == "" {
		return nil, errors.New("member id is required")
	}
	if !params.GrowthFocus.IsValid() {
		return nil, ErrInvalidCategory
	}

	now := time.Now().UTC()

	return &Journey{
		ID:                   params.ID,
		MemberID:             params.MemberID,
		GrowthFocus:          params.GrowthFocus,
		IntentionalAdvantage: params.IntentionalAdvantage,
		CurrentCategory:      params.GrowthFocus,
		Status:               JourneyActive,
		CompletedCategories:  nil,
		StartedAt:            now,
		CreatedAt:            now,
		UpdatedAt:            now,
	}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// DOMAIN METHODS
// ══════════════════════════════════════════════════════════════════════════════

// AdvanceCategory завершает текущую категорию и переходит к следующей
// в ротации. Когда все пять категорий пройдены, путешествие завершается.
// Возвращает следующую категорию и true, если путешествие продолжается.
func (j *Journey) AdvanceCategory() (next Category, ongoing bool, err error) {
	if j.Status != JourneyActive {
		return "", false, ErrJourneyNotActive
	}

	j.CompletedCategories = append(j.CompletedCategories, j.CurrentCategory)
	j.UpdatedAt = time.Now().UTC()

	if len(j.CompletedCategories) >= len(CategoryRotation()) {
		j.Status = JourneyCompleted
		j.CompletedAt = j.UpdatedAt
		return "", false, nil
	}

	j.CurrentCategory = j.CurrentCategory.Next()
	return j.CurrentCategory, true, nil
}

// IsCompleted возвращает true, если путешествие завершено.
func (j *Journey) IsCompleted() bool {
	return j.Status == JourneyCompleted
}

// Pause приостанавливает путешествие.
func (j *Journey) Pause() error {
	if j.Status != JourneyActive {
		return ErrJourneyNotActive
	}
	j.Status = JourneyPaused
	j.UpdatedAt = time.Now().UTC()
	return nil
}

// Resume возобновляет приостановленное путешествие.
func (j *Journey) Resume() error {
	if j.Status != JourneyPaused {
		return errors.New("can only resume a paused journey")
	}
	j.Status = JourneyActive
	j.UpdatedAt = time.Now().UTC()
	return nil
}

// String возвращает строковое представление путешествия для логирования.
func (j *Journey) String() string {
	return fmt.Sprintf(
		"Journey{ID: %s, Member: %s, Category: %s, Status: %s}",
		j.ID, j.MemberID, j.CurrentCategory, j.Status,
	)
}

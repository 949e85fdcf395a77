// Package member содержит доменную модель участника программы развития.
// Это ядро бизнес-логики - здесь нет внешних зависимостей.
package member

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/leadpath/leadpath-engine/pkg/calendar"
)

// ══════════════════════════════════════════════════════════════════════════════
// VALUE OBJECTS
// ══════════════════════════════════════════════════════════════════════════════

// ReminderCount определяет количество напоминаний в день: 0, 1 или 2.
type ReminderCount int

const (
	// RemindersOff - напоминания выключены.
	RemindersOff ReminderCount = 0
	// RemindersSingle - одно напоминание в день.
	RemindersSingle ReminderCount = 1
	// RemindersDouble - напоминание плюс повторное через два часа.
	RemindersDouble ReminderCount = 2
)

// IsValid проверяет, что количество напоминаний корректно.
func (r ReminderCount) IsValid() bool {
	return r == RemindersOff || r == RemindersSingle || r == RemindersDouble
}

// HasFollowUp возвращает true, если предусмотрено повторное напоминание.
func (r ReminderCount) HasFollowUp() bool {
	return r == RemindersDouble
}

// ══════════════════════════════════════════════════════════════════════════════
// ENUMS
// ══════════════════════════════════════════════════════════════════════════════

// Status определяет текущий статус участника в программе.
type Status string

const (
	// StatusActive - участник активно проходит программу.
	StatusActive Status = "active"
	// StatusPaused - участник временно приостановил программу.
	StatusPaused Status = "paused"
	// StatusLeft - участник покинул программу.
	StatusLeft Status = "left"
)

// IsValid проверяет, что статус корректен.
func (s Status) IsValid() bool {
	switch s {
	case StatusActive, StatusPaused, StatusLeft:
		return true
	default:
		return false
	}
}

// CanReceiveNotifications возвращает true, если участнику можно слать письма.
func (s Status) CanReceiveNotifications() bool {
	return s == StatusActive
}

// IsEnrolled возвращает true, если участник всё ещё в программе.
func (s Status) IsEnrolled() bool {
	return s == StatusActive || s == StatusPaused
}

// ══════════════════════════════════════════════════════════════════════════════
// MAIN ENTITY: MEMBER
// ══════════════════════════════════════════════════════════════════════════════

// Member - центральная сущность системы, представляющая участника программы.
type Member struct {
	// ID - внутренний уникальный идентификатор (UUID в строковом формате).
	ID string

	// Email - адрес, на который отправляются напоминания.
	Email string

	// DisplayName - отображаемое имя участника.
	DisplayName string

	// Status - текущий статус в программе.
	Status Status

	// Timezone - часовой пояс участника (IANA, напр. "Europe/Berlin").
	Timezone string

	// Preferences - настройки расписания и напоминаний.
	Preferences Preferences

	// JoinedAt - время регистрации в программе.
	JoinedAt time.Time

	// CreatedAt - время создания записи.
	CreatedAt time.Time

	// UpdatedAt - время последнего обновления.
	UpdatedAt time.Time
}

// Preferences содержит настройки расписания участника. Именно эти поля
// читает каждый часовой тик разблокировки и напоминаний.
type Preferences struct {
	// ActiveDays - дни недели, в которые участник занимается.
	ActiveDays calendar.DaySet

	// UnlockHour - час (0-23), в который открываются новые уроки.
	UnlockHour int

	// ReminderHour - час (0-23) первого напоминания.
	ReminderHour int

	// ReminderCount - количество напоминаний в день (0, 1 или 2).
	ReminderCount ReminderCount

	// RemindersEnabled - включены ли напоминания.
	// Инвариант: RemindersEnabled == false тогда и только тогда,
	// когда ReminderCount == 0.
	RemindersEnabled bool
}

// DefaultPreferences возвращает настройки по умолчанию: занятия каждый
// день, открытие уроков в 9:00, одно напоминание в 14:00.
func DefaultPreferences() Preferences {
	return Preferences{
		ActiveDays:       calendar.EveryDay(),
		UnlockHour:       9,
		ReminderHour:     14,
		ReminderCount:    RemindersSingle,
		RemindersEnabled: true,
	}
}

// Normalize приводит пару ReminderCount/RemindersEnabled в согласованное
// состояние: нулевое количество выключает напоминания, выключенные
// напоминания обнуляют количество.
func (p *Preferences) Normalize() {
	if p.ReminderCount == RemindersOff {
		p.RemindersEnabled = false
	}
	if !p.RemindersEnabled {
		p.ReminderCount = RemindersOff
	}
}

// Validate проверяет корректность всех полей настроек.
func (p Preferences) Validate() error {
	if p.ActiveDays.IsEmpty() {
		return ErrEmptyActiveDays
	}
	for _, d := range p.ActiveDays.Tags() {
		if !d.IsValid() {
			return ErrInvalidActiveDay
		}
	}
	if !calendar.IsValidHour(p.UnlockHour) {
		return ErrInvalidUnlockHour
	}
	if !calendar.IsValidHour(p.ReminderHour) {
		return ErrInvalidReminderHour
	}
	if !p.ReminderCount.IsValid() {
		return ErrInvalidReminderCount
	}
	if p.RemindersEnabled != (p.ReminderCount != RemindersOff) {
		return ErrReminderCountMismatch
	}
	return nil
}

// WantsReminderAt возвращает true, если участник ожидает напоминание
// в указанный час: либо это его основной слот, либо повторный слот
// при двух напоминаниях в день.
func (p Preferences) WantsReminderAt(hour int) bool {
	if !p.RemindersEnabled || p.ReminderCount == RemindersOff {
		return false
	}
	if hour == p.ReminderHour {
		return true
	}
	return p.ReminderCount.HasFollowUp() && hour == calendar.FollowUpHour(p.ReminderHour)
}

// IsActiveOn возвращает true, если дата приходится на активный день участника.
func (p Preferences) IsActiveOn(date time.Time) bool {
	return p.ActiveDays.ContainsDate(date)
}

// ══════════════════════════════════════════════════════════════════════════════
// DOMAIN ERRORS
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrEmptyActiveDays - пустой набор активных дней.
	ErrEmptyActiveDays = errors.New("active days must not be empty")

	// ErrInvalidActiveDay - неизвестный тег дня недели.
	ErrInvalidActiveDay = errors.New("invalid active day tag")

	// ErrInvalidUnlockHour - час разблокировки вне диапазона 0-23.
	ErrInvalidUnlockHour = errors.New("invalid unlock hour: must be 0-23")

	// ErrInvalidReminderHour - час напоминания вне диапазона 0-23.
	ErrInvalidReminderHour = errors.New("invalid reminder hour: must be 0-23")

	// ErrInvalidReminderCount - количество напоминаний не 0, 1 или 2.
	ErrInvalidReminderCount = errors.New("invalid reminder count: must be 0, 1 or 2")

	// ErrReminderCountMismatch - флаг и количество напоминаний рассогласованы.
	ErrReminderCountMismatch = errors.New("reminder count and enabled flag are inconsistent")

	// ErrInvalidEmail - невалидный email.
	ErrInvalidEmail = errors.New("invalid email address")

	// ErrInvalidDisplayName - невалидное отображаемое имя.
	ErrInvalidDisplayName = errors.New("invalid display name: must be 1-100 chars")

	// ErrMemberNotFound - участник не найден.
	ErrMemberNotFound = errors.New("member not found")

	// ErrMemberAlreadyExists - участник уже существует.
	ErrMemberAlreadyExists = errors.New("member already exists")

	// ErrMemberNotEnrolled - участник больше не в программе.
	ErrMemberNotEnrolled = errors.New("member is not enrolled in the program")
)

// ══════════════════════════════════════════════════════════════════════════════
// FACTORY & VALIDATION
// ══════════════════════════════════════════════════════════════════════════════

// NewMemberParams содержит параметры для создания нового участника.
type NewMemberParams struct {
	ID          string
	Email       string
	DisplayName string
	Timezone    string
}

// NewMember создаёт нового участника с валидацией всех полей.
func NewMember(params NewMemberParams) (*Member, error) {
	if params.ID == "" {
		return nil, errors.New("member id is required")
	}

	email := strings.ToLower(strings.TrimSpace(params.Email))
	if !strings.Contains(email, "@") {
		return nil, ErrInvalidEmail
	}

	displayName := strings.TrimSpace(params.DisplayName)
	if len(displayName) == 0 || len(displayName) > 100 {
		return nil, ErrInvalidDisplayName
	}

	tz := params.Timezone
	if tz == "" {
		tz = "UTC"
	}

	now := time.Now().UTC()

	return &Member{
		ID:          params.ID,
		Email:       email,
		DisplayName: displayName,
		Status:      StatusActive,
		Timezone:    tz,
		Preferences: DefaultPreferences(),
		JoinedAt:    now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// DOMAIN METHODS
// ══════════════════════════════════════════════════════════════════════════════

// UpdatePreferences заменяет настройки участника после нормализации и
// валидации. Уже открытые и завершённые уроки не пересчитываются -
// новые настройки влияют только на будущие тики.
func (m *Member) UpdatePreferences(prefs Preferences) error {
	prefs.Normalize()
	if err := prefs.Validate(); err != nil {
		return err
	}

	m.Preferences = prefs
	m.UpdatedAt = time.Now().UTC()
	return nil
}

// Pause временно приостанавливает участие в программе.
func (m *Member) Pause() error {
	if !m.Status.IsEnrolled() {
		return ErrMemberNotEnrolled
	}

	m.Status = StatusPaused
	m.UpdatedAt = time.Now().UTC()
	return nil
}

// Resume возвращает участника в активное состояние.
func (m *Member) Resume() error {
	if m.Status != StatusPaused {
		return errors.New("can only resume paused members")
	}

	m.Status = StatusActive
	m.UpdatedAt = time.Now().UTC()
	return nil
}

// Leave помечает участника как покинувшего программу.
func (m *Member) Leave() error {
	if !m.Status.IsEnrolled() {
		return ErrMemberNotEnrolled
	}

	m.Status = StatusLeft
	m.UpdatedAt = time.Now().UTC()
	return nil
}

// CanBeNotified возвращает true, если участнику можно отправить напоминание.
func (m *Member) CanBeNotified() bool {
	return m.Status.CanReceiveNotifications() &&
		m.Preferences.RemindersEnabled &&
		m.Preferences.ReminderCount != RemindersOff
}

// String возвращает строковое представление участника для логирования.
func (m *Member) String() string {
	return fmt.Sprintf(
		"Member{ID: %s, Email: %s, Status: %s, UnlockHour: %d}",
		m.ID, m.Email, m.Status, m.Preferences.UnlockHour,
	)
}

// Clone создаёт глубокую копию участника.
func (m *Member) Clone() *Member {
	if m == nil {
		return nil
	}

	clone := *m
	clone.Preferences.ActiveDays = make(calendar.DaySet, len(m.Preferences.ActiveDays))
	for d, ok := range m.Preferences.ActiveDays {
		clone.Preferences.ActiveDays[d] = ok
	}
	return &clone
}

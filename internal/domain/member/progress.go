package member

import (
	"errors"
	"time"

	"github.com/leadpath/leadpath-engine/pkg/calendar"
)

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESS (Агрегированный прогресс участника)
// ══════════════════════════════════════════════════════════════════════════════

// Progress представляет агрегированный прогресс участника. На каждого
// участника существует ровно одна запись; единственный писатель -
// обработчик события завершения урока.
type Progress struct {
	// MemberID - идентификатор участника.
	MemberID string

	// TotalPoints - суммарные очки за все завершённые уроки.
	TotalPoints int

	// TotalLessons - количество завершённых уроков.
	TotalLessons int

	// TotalWeeks - количество завершённых недель.
	TotalWeeks int

	// TotalCategories - количество завершённых категорий.
	TotalCategories int

	// CurrentJourneyID - идентификатор текущего путешествия.
	CurrentJourneyID string

	// CurrentCategory - категория, над которой участник работает сейчас.
	CurrentCategory string

	// CurrentWeek - текущая неделя внутри категории.
	CurrentWeek int

	// CurrentStreakDays - текущая серия активных дней.
	CurrentStreakDays int

	// LongestStreakDays - лучшая серия активных дней.
	LongestStreakDays int

	// LastActivityDate - дата последней активности (без времени, UTC).
	LastActivityDate time.Time

	// UpdatedAt - время последнего обновления.
	UpdatedAt time.Time
}

// ErrInvalidPoints - очки за урок вне диапазона 0-25.
var ErrInvalidPoints = errors.New("invalid points: must be between 0 and 25")

// MaxLessonPoints - максимум очков за один урок.
const MaxLessonPoints = 25

// CategoryCompleted - значение CurrentCategory после завершения всех
// категорий путешествия.
const CategoryCompleted = "completed"

// NewProgress создаёт пустую запись прогресса для участника.
func NewProgress(memberID, journeyID, category string) *Progress {
	return &Progress{
		MemberID:         memberID,
		CurrentJourneyID: journeyID,
		CurrentCategory:  category,
		CurrentWeek:      1,
		UpdatedAt:        time.Now().UTC(),
	}
}

// RecordCompletion записывает завершение урока: начисляет очки и
// обновляет серию. Серия считается в активных днях участника:
//   - активность в тот же день серию не меняет;
//   - если между прошлой активностью и сегодня не пропущено ни одного
//     активного дня, серия увеличивается на 1;
//   - любой пропущенный активный день сбрасывает серию до 1.
//
// Для участника с семью активными днями это совпадает с правилом
// "следующий календарный день". Пустой набор трактуется как все семь
// дней.
//
// Возвращает true, если серия была сброшена.
func (p *Progress) RecordCompletion(points int, completedAt time.Time, activeDays calendar.DaySet) (wasReset bool, err error) {
	if points < 0 || points > MaxLessonPoints {
		return false, ErrInvalidPoints
	}

	p.TotalPoints += points
	p.TotalLessons++

	wasReset = p.recordActivity(completedAt, activeDays)
	p.UpdatedAt = time.Now().UTC()
	return wasReset, nil
}

// recordActivity обновляет серию активных дней по дате активности.
func (p *Progress) recordActivity(at time.Time, activeDays calendar.DaySet) (wasReset bool) {
	day := time.Date(at.UTC().Year(), at.UTC().Month(), at.UTC().Day(), 0, 0, 0, 0, time.UTC)

	// Первая активность
	if p.LastActivityDate.IsZero() {
		p.CurrentStreakDays = 1
		p.LongestStreakDays = 1
		p.LastActivityDate = day
		return false
	}

	last := time.Date(
		p.LastActivityDate.Year(),
		p.LastActivityDate.Month(),
		p.LastActivityDate.Day(),
		0, 0, 0, 0, time.UTC,
	)

	if activeDays.IsEmpty() {
		activeDays = calendar.EveryDay()
	}

	switch {
	case !day.After(last):
		// Тот же день (или активность задним числом) - ничего не меняем
		return false
	case calendar.ActiveDaysBetween(last, day, activeDays) == 0:
		// Активные дни не пропущены - продолжаем серию
		p.CurrentStreakDays++
		if p.CurrentStreakDays > p.LongestStreakDays {
			p.LongestStreakDays = p.CurrentStreakDays
		}
	default:
		// Пропущен хотя бы один активный день - сбрасываем серию
		p.CurrentStreakDays = 1
		wasReset = true
	}

	p.LastActivityDate = day
	return wasReset
}

// AdvanceWeek отмечает завершение недели внутри текущей категории.
func (p *Progress) AdvanceWeek() {
	p.TotalWeeks++
	p.CurrentWeek++
	p.UpdatedAt = time.Now().UTC()
}

// AdvanceCategory отмечает завершение категории и переход к следующей.
func (p *Progress) AdvanceCategory(nextCategory string) {
	p.TotalCategories++
	p.CurrentCategory = nextCategory
	p.CurrentWeek = 1
	p.UpdatedAt = time.Now().UTC()
}

// AveragePoints возвращает среднее количество очков за урок.
func (p *Progress) AveragePoints() float64 {
	if p.TotalLessons == 0 {
		return 0
	}
	return float64(p.TotalPoints) / float64(p.TotalLessons)
}

// DaysSinceLastActivity возвращает количество дней с последней активности
// относительно переданной даты.
func (p *Progress) DaysSinceLastActivity(today time.Time) int {
	if p.LastActivityDate.IsZero() {
		return -1
	}
	day := time.Date(today.UTC().Year(), today.UTC().Month(), today.UTC().Day(), 0, 0, 0, 0, time.UTC)
	return int(day.Sub(p.LastActivityDate).Hours() / 24)
}

// ══════════════════════════════════════════════════════════════════════════════
// MILESTONES (Вехи прогресса)
// ══════════════════════════════════════════════════════════════════════════════

// Milestone описывает следующую веху на пути участника.
type Milestone struct {
	// Threshold - количество уроков, открывающее веху.
	Threshold int

	// Title - название вехи.
	Title string
}

// milestoneLadder - лестница вех по количеству завершённых уроков.
var milestoneLadder = []Milestone{
	{1, "First lesson complete"},
	{5, "Building momentum"},
	{10, "Ten lessons strong"},
	{25, "Quarter century"},
	{50, "Halfway to mastery"},
	{100, "Century of growth"},
}

// NextMilestone возвращает следующую недостигнутую веху.
// Вторым значением возвращает false, если все вехи пройдены.
func (p *Progress) NextMilestone() (Milestone, bool) {
	for _, m := range milestoneLadder {
		if p.TotalLessons < m.Threshold {
			return m, true
		}
	}
	return Milestone{}, false
}

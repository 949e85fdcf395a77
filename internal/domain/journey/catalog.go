package journey

import (
	"fmt"
	"strings"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// LESSON CATALOG
// Каталог описывает содержание категорий. Экземпляры уроков создаются
// из каталога при старте путешествия и при переходе к новой категории;
// тики только меняют состояние существующих экземпляров.
// ══════════════════════════════════════════════════════════════════════════════

// LessonDefinition описывает один урок в каталоге.
type LessonDefinition struct {
	// LessonID - стабильный идентификатор урока в каталоге.
	LessonID string

	// Title - название урока.
	Title string

	// WeekNumber - номер недели внутри категории (с 1).
	WeekNumber int

	// DayNumber - номер дня внутри недели (с 1).
	DayNumber int

	// SpacingDays - интервал в активных днях перед открытием урока.
	SpacingDays int
}

// Catalog предоставляет определения уроков по категориям.
type Catalog interface {
	// LessonsFor возвращает уроки категории в порядке прохождения.
	LessonsFor(category Category) []LessonDefinition
}

// ══════════════════════════════════════════════════════════════════════════════
// INSTANTIATION
// ══════════════════════════════════════════════════════════════════════════════

// IDGenerator выдаёт идентификаторы для новых экземпляров уроков.
type IDGenerator func() string

// InstantiateCategory создаёт экземпляры уроков категории для участника.
// Первый урок создаётся сразу открытым, остальные - закрытыми.
func InstantiateCategory(
	j *Journey,
	category Category,
	defs []LessonDefinition,
	newID IDGenerator,
	at time.Time,
) []*LessonInstance {
	now := time.Now().UTC()
	instances := make([]*LessonInstance, 0, len(defs))

	for i, def := range defs {
		li := &LessonInstance{
			ID:          newID(),
			MemberID:    j.MemberID,
			JourneyID:   j.ID,
			LessonID:    def.LessonID,
			Title:       def.Title,
			Category:    category,
			WeekNumber:  def.WeekNumber,
			DayNumber:   def.DayNumber,
			Status:      LessonLocked,
			SpacingDays: def.SpacingDays,
			CreatedAt:   now,
			UpdatedAt:   now,
		}

		if i == 0 {
			li.Status = LessonAvailable
			li.UnlockedAt = at.UTC()
		}

		instances = append(instances, li)
	}

	return instances
}

// ══════════════════════════════════════════════════════════════════════════════
// STATIC CATALOG
// Встроенный каталог: четыре недели по три урока на категорию.
// ══════════════════════════════════════════════════════════════════════════════

// StaticCatalog - каталог с фиксированным набором уроков.
type StaticCatalog struct {
	lessons map[Category][]LessonDefinition
}

// NewStaticCatalog создаёт встроенный каталог.
func NewStaticCatalog() *StaticCatalog {
	c := &StaticCatalog{lessons: make(map[Category][]LessonDefinition)}
	for _, cat := range CategoryRotation() {
		c.lessons[cat] = buildCategoryLessons(cat)
	}
	return c
}

// LessonsFor реализует Catalog.
func (c *StaticCatalog) LessonsFor(category Category) []LessonDefinition {
	defs := c.lessons[category]
	out := make([]LessonDefinition, len(defs))
	copy(out, defs)
	return out
}

const (
	weeksPerCategory = 4
	lessonsPerWeek   = 3
)

func buildCategoryLessons(cat Category) []LessonDefinition {
	defs := make([]LessonDefinition, 0, weeksPerCategory*lessonsPerWeek)
	for week := 1; week <= weeksPerCategory; week++ {
		for day := 1; day <= lessonsPerWeek; day++ {
			defs = append(defs, LessonDefinition{
				LessonID:    fmt.Sprintf("%s-w%dd%d", cat, week, day),
				Title:       fmt.Sprintf("%s: week %d, lesson %d", titleCase(string(cat)), week, day),
				WeekNumber:  week,
				DayNumber:   day,
				SpacingDays: DefaultSpacingDays,
			})
		}
	}
	return defs
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

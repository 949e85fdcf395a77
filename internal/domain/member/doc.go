// Package member содержит доменную модель участника программы развития.
//
// Это ядро бизнес-логики движка. Пакет определяет:
//
//   - Сущности (Entities): Member, Progress
//   - Value Objects: Preferences, ReminderCount, Status
//   - Интерфейсы репозиториев: Repository, ProgressRepository, PreferencesCache
//
// # Архитектурные принципы
//
// Пакет следует принципам Clean Architecture и DDD:
//
//  1. Нулевые внешние зависимости - только стандартная библиотека и pkg/calendar
//  2. Dependency Inversion - определяет интерфейсы, реализуемые в infrastructure
//  3. Rich Domain Model - бизнес-логика инкапсулирована в сущностях
//
// # Основные сущности
//
// Member - центральная сущность, представляющая участника:
//
//	m, err := NewMember(NewMemberParams{
//	    ID:          uuid.New().String(),
//	    Email:       "member@example.com",
//	    DisplayName: "Имя Участника",
//	    Timezone:    "Europe/Berlin",
//	})
//
// Preferences управляют тем, какие часы и дни недели движок считает
// подходящими для открытия уроков и напоминаний. Progress агрегирует
// очки и серии активных дней; его единственный писатель - обработчик
// события завершения урока.
package member

// Package notification содержит доменную модель напоминаний: слоты,
// составление писем и контракт отправителя. Движок не хранит факт
// отправки - каждое напоминание выводится из текущего состояния уроков.
package notification

import (
	"errors"
	"fmt"
)

// ══════════════════════════════════════════════════════════════════════════════
// REMINDER SLOTS
// ══════════════════════════════════════════════════════════════════════════════

// Slot определяет, какое из дневных напоминаний отправляется.
type Slot string

const (
	// SlotInitial - основное напоминание в выбранный участником час.
	SlotInitial Slot = "initial"
	// SlotFollowUp - повторное напоминание через два часа.
	// Используется только при двух напоминаниях в день.
	SlotFollowUp Slot = "follow_up"
)

// IsValid проверяет, что слот известен.
func (s Slot) IsValid() bool {
	return s == SlotInitial || s == SlotFollowUp
}

// ErrNoSlot - час не соответствует ни одному слоту участника.
var ErrNoSlot = errors.New("hour does not match any reminder slot")

// ResolveSlot определяет слот по часу тика. reminderHour - основной час
// участника, followUpHour - повторный слот (основной час плюс два по
// модулю 24), hasFollowUp - включены ли два напоминания в день.
func ResolveSlot(hour, reminderHour, followUpHour int, hasFollowUp bool) (Slot, error) {
	switch {
	case hour == reminderHour:
		return SlotInitial, nil
	case hasFollowUp && hour == followUpHour:
		return SlotFollowUp, nil
	default:
		return "", ErrNoSlot
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// MESSAGE COMPOSITION
// ══════════════════════════════════════════════════════════════════════════════

// Reminder - готовое к отправке напоминание.
type Reminder struct {
	// MemberID - идентификатор участника.
	MemberID string

	// Recipient - email-адрес получателя.
	Recipient string

	// Slot - слот напоминания.
	Slot Slot

	// AvailableLessons - количество открытых уроков на момент составления.
	AvailableLessons int

	// Subject - тема письма.
	Subject string

	// Body - текст письма.
	Body string
}

// Compose составляет напоминание для участника. available должно быть
// положительным: при нуле открытых уроков напоминание не отправляется
// вовсе (автостоп), это проверяет вызывающий код.
func Compose(memberID, recipient, displayName string, slot Slot, available int) (*Reminder, error) {
	if recipient == "" {
		return nil, errors.New("recipient is required")
	}
	if !slot.IsValid() {
		return nil, fmt.Errorf("invalid reminder slot %q", slot)
	}
	if available <= 0 {
		return nil, errors.New("no available lessons to remind about")
	}

	r := &Reminder{
		MemberID:         memberID,
		Recipient:        recipient,
		Slot:             slot,
		AvailableLessons: available,
	}

	lessonWord := "lesson"
	if available > 1 {
		lessonWord = "lessons"
	}

	switch slot {
	case SlotInitial:
		r.Subject = fmt.Sprintf("Your leadership practice: %d %s waiting", available, lessonWord)
		r.Body = fmt.Sprintf(
			"Hi %s,\n\n"+
				"You have %d %s ready for you today. "+
				"A few focused minutes is all it takes to keep your momentum.\n\n"+
				"See you inside.",
			displayName, available, lessonWord,
		)
	case SlotFollowUp:
		r.Subject = fmt.Sprintf("Still time today: %d %s open", available, lessonWord)
		r.Body = fmt.Sprintf(
			"Hi %s,\n\n"+
				"Just a nudge - %d %s from earlier today %s still open. "+
				"Even one step forward counts.\n\n"+
				"See you inside.",
			displayName, available, lessonWord, isAre(available),
		)
	}

	return r, nil
}

func isAre(n int) string {
	if n == 1 {
		return "is"
	}
	return "are"
}

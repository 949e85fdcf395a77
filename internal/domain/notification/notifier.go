package notification

import (
	"context"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// NOTIFIER CONTRACT
// Реализации находятся в infrastructure/notifier. Политика повторов -
// забота самой реализации: движок вызывает Send ровно один раз за тик.
// ══════════════════════════════════════════════════════════════════════════════

// Notifier отправляет письмо получателю.
type Notifier interface {
	// Send отправляет письмо. Ошибка означает, что доставка не удалась
	// после всех внутренних повторов реализации.
	Send(ctx context.Context, recipient, subject, body string) error
}

// ══════════════════════════════════════════════════════════════════════════════
// DELIVERY RESULT
// ══════════════════════════════════════════════════════════════════════════════

// DeliveryResult описывает исход попытки доставки для логирования.
// Результаты нигде не сохраняются - состояние "уже отправлено"
// в системе отсутствует принципиально.
type DeliveryResult struct {
	// MemberID - идентификатор участника.
	MemberID string

	// Recipient - адрес получателя.
	Recipient string

	// Slot - слот напоминания.
	Slot Slot

	// Success - удалась ли доставка.
	Success bool

	// Error - текст ошибки при неудаче.
	Error string

	// Duration - длительность попытки.
	Duration time.Duration

	// AttemptedAt - время попытки.
	AttemptedAt time.Time
}

// NewSuccessResult создаёт результат успешной доставки.
func NewSuccessResult(memberID, recipient string, slot Slot, duration time.Duration) DeliveryResult {
	return DeliveryResult{
		MemberID:    memberID,
		Recipient:   recipient,
		Slot:        slot,
		Success:     true,
		Duration:    duration,
		AttemptedAt: time.Now().UTC(),
	}
}

// NewFailureResult создаёт результат неудачной доставки.
func NewFailureResult(memberID, recipient string, slot Slot, err error, duration time.Duration) DeliveryResult {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return DeliveryResult{
		MemberID:    memberID,
		Recipient:   recipient,
		Slot:        slot,
		Success:     false,
		Error:       msg,
		Duration:    duration,
		AttemptedAt: time.Now().UTC(),
	}
}

// Package shared contains common domain types, errors, and events that are
// used across all domain packages.
package shared

import (
	"encoding/json"
	"time"
)

// EventType represents the type of domain event.
type EventType string

// Domain event types - these drive the event-driven architecture.
// Each event represents something significant that happened in the domain.
const (
	// Member events
	EventMemberRegistered   EventType = "member.registered"
	EventMemberDeactivated  EventType = "member.deactivated"
	EventPreferencesUpdated EventType = "member.preferences_updated"

	// Lesson events
	EventLessonUnlocked  EventType = "lesson.unlocked"
	EventLessonStarted   EventType = "lesson.started"
	EventLessonCompleted EventType = "lesson.completed"
	EventCommitmentMade  EventType = "lesson.commitment_made"

	// Journey events
	EventJourneyStarted    EventType = "journey.started"
	EventCategoryCompleted EventType = "journey.category_completed"
	EventJourneyCompleted  EventType = "journey.completed"

	// Progress events
	EventStreakUpdated EventType = "progress.streak_updated"

	// Notification events
	EventReminderSent       EventType = "notification.reminder_sent"
	EventNotificationFailed EventType = "notification.failed"
)

// Event is the base interface for all domain events.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// AggregateID returns the ID of the aggregate that produced this event.
	AggregateID() string

	// Payload returns the event data as a map for serialization.
	Payload() map[string]interface{}
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	Type          EventType `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
	AggregateId   string    `json:"aggregate_id"`
	Version       int       `json:"version"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

// EventType implements Event interface.
func (e BaseEvent) EventType() EventType {
	return e.Type
}

// OccurredAt implements Event interface.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// AggregateID implements Event interface.
func (e BaseEvent) AggregateID() string {
	return e.AggregateId
}

// Payload implements Event interface. Concrete events override this.
func (e BaseEvent) Payload() map[string]interface{} {
	return map[string]interface{}{}
}

// NewBaseEvent creates a new base event.
func NewBaseEvent(eventType EventType, aggregateID string) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		Timestamp:   time.Now(),
		AggregateId: aggregateID,
		Version:     1,
	}
}

// WithCorrelationID sets the correlation ID for tracing.
func (e BaseEvent) WithCorrelationID(id string) BaseEvent {
	e.CorrelationID = id
	return e
}

// ═══════════════════════════════════════════════════════════════════════════
// Lesson Events
// ═══════════════════════════════════════════════════════════════════════════

// LessonUnlockedEvent is emitted when the unlock tick opens a lesson.
type LessonUnlockedEvent struct {
	BaseEvent
	MemberID   string    `json:"member_id"`
	LessonID   string    `json:"lesson_id"`
	Category   string    `json:"category"`
	UnlockedAt time.Time `json:"unlocked_at"`
}

// Payload implements Event interface.
func (e LessonUnlockedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"member_id":   e.MemberID,
		"lesson_id":   e.LessonID,
		"category":    e.Category,
		"unlocked_at": e.UnlockedAt.Format(time.RFC3339),
	}
}

// NewLessonUnlockedEvent creates a new LessonUnlockedEvent.
func NewLessonUnlockedEvent(memberID, lessonID, category string, unlockedAt time.Time) LessonUnlockedEvent {
	return LessonUnlockedEvent{
		BaseEvent:  NewBaseEvent(EventLessonUnlocked, memberID),
		MemberID:   memberID,
		LessonID:   lessonID,
		Category:   category,
		UnlockedAt: unlockedAt,
	}
}

// LessonCompletedEvent is emitted when a member completes a lesson.
// The progress aggregator is its primary consumer.
type LessonCompletedEvent struct {
	BaseEvent
	MemberID    string    `json:"member_id"`
	LessonID    string    `json:"lesson_id"`
	JourneyID   string    `json:"journey_id"`
	Category    string    `json:"category"`
	Points      int       `json:"points"`
	CompletedAt time.Time `json:"completed_at"`
}

// Payload implements Event interface.
func (e LessonCompletedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"member_id":    e.MemberID,
		"lesson_id":    e.LessonID,
		"journey_id":   e.JourneyID,
		"category":     e.Category,
		"points":       e.Points,
		"completed_at": e.CompletedAt.Format(time.RFC3339),
	}
}

// NewLessonCompletedEvent creates a new LessonCompletedEvent.
func NewLessonCompletedEvent(memberID, lessonID, journeyID, category string, points int, completedAt time.Time) LessonCompletedEvent {
	return LessonCompletedEvent{
		BaseEvent:   NewBaseEvent(EventLessonCompleted, memberID),
		MemberID:    memberID,
		LessonID:    lessonID,
		JourneyID:   journeyID,
		Category:    category,
		Points:      points,
		CompletedAt: completedAt,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Journey Events
// ═══════════════════════════════════════════════════════════════════════════

// CategoryCompletedEvent is emitted when every lesson of a category is done.
type CategoryCompletedEvent struct {
	BaseEvent
	MemberID     string `json:"member_id"`
	JourneyID    string `json:"journey_id"`
	Category     string `json:"category"`
	NextCategory string `json:"next_category,omitempty"`
}

// Payload implements Event interface.
func (e CategoryCompletedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"member_id":     e.MemberID,
		"journey_id":    e.JourneyID,
		"category":      e.Category,
		"next_category": e.NextCategory,
	}
}

// NewCategoryCompletedEvent creates a new CategoryCompletedEvent.
func NewCategoryCompletedEvent(memberID, journeyID, category, nextCategory string) CategoryCompletedEvent {
	return CategoryCompletedEvent{
		BaseEvent:    NewBaseEvent(EventCategoryCompleted, journeyID),
		MemberID:     memberID,
		JourneyID:    journeyID,
		Category:     category,
		NextCategory: nextCategory,
	}
}

// JourneyCompletedEvent is emitted when the five-category rotation finishes.
type JourneyCompletedEvent struct {
	BaseEvent
	MemberID  string `json:"member_id"`
	JourneyID string `json:"journey_id"`
}

// Payload implements Event interface.
func (e JourneyCompletedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"member_id":  e.MemberID,
		"journey_id": e.JourneyID,
	}
}

// NewJourneyCompletedEvent creates a new JourneyCompletedEvent.
func NewJourneyCompletedEvent(memberID, journeyID string) JourneyCompletedEvent {
	return JourneyCompletedEvent{
		BaseEvent: NewBaseEvent(EventJourneyCompleted, journeyID),
		MemberID:  memberID,
		JourneyID: journeyID,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Progress Events
// ═══════════════════════════════════════════════════════════════════════════

// StreakUpdatedEvent is emitted when a member's activity streak changes.
type StreakUpdatedEvent struct {
	BaseEvent
	MemberID      string `json:"member_id"`
	CurrentStreak int    `json:"current_streak"`
	LongestStreak int    `json:"longest_streak"`
	WasReset      bool   `json:"was_reset"`
}

// Payload implements Event interface.
func (e StreakUpdatedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"member_id":      e.MemberID,
		"current_streak": e.CurrentStreak,
		"longest_streak": e.LongestStreak,
		"was_reset":      e.WasReset,
	}
}

// NewStreakUpdatedEvent creates a new StreakUpdatedEvent.
func NewStreakUpdatedEvent(memberID string, current, longest int, wasReset bool) StreakUpdatedEvent {
	return StreakUpdatedEvent{
		BaseEvent:     NewBaseEvent(EventStreakUpdated, memberID),
		MemberID:      memberID,
		CurrentStreak: current,
		LongestStreak: longest,
		WasReset:      wasReset,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Event Envelope (for serialization and transport)
// ═══════════════════════════════════════════════════════════════════════════

// EventEnvelope wraps an event for transport/storage.
type EventEnvelope struct {
	ID            string          `json:"id"`
	Type          EventType       `json:"type"`
	AggregateID   string          `json:"aggregate_id"`
	Timestamp     time.Time       `json:"timestamp"`
	Version       int             `json:"version"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

// EventHandler is a function that handles an event.
type EventHandler func(event Event) error

// EventPublisher defines the interface for publishing events.
type EventPublisher interface {
	// Publish sends an event to subscribers.
	Publish(event Event) error
}

// EventSubscriber defines the interface for subscribing to events.
type EventSubscriber interface {
	// Subscribe registers a handler for an event type.
	Subscribe(eventType EventType, handler EventHandler) error

	// SubscribeAll registers a handler for all events.
	SubscribeAll(handler EventHandler) error
}

// EventBus combines publishing and subscribing.
type EventBus interface {
	EventPublisher
	EventSubscriber
}

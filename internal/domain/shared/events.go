package shared

import (
	"time"
)

// EventType represents the type of domain event.
type EventType string

// Типы доменных событий.
const (
	// События достижений
	EventAchievementUnlocked EventType = "achievement.unlocked"
	EventAchievementCreated  EventType = "achievement.created"

	// События прогресса
	EventXPAwarded EventType = "progress.xp_awarded"
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
	Type        EventType `json:"type"`
	Timestamp   time.Time `json:"timestamp"`
	AggregateId string    `json:"aggregate_id"`
	Version     int       `json:"version"`
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

// NewBaseEvent creates a new base event stamped with the given time.
func NewBaseEvent(eventType EventType, aggregateID string, at time.Time) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		Timestamp:   at,
		AggregateId: aggregateID,
		Version:     1,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Achievement Events
// ═══════════════════════════════════════════════════════════════════════════

// AchievementUnlockedEvent is emitted when a student's progress on an
// achievement reaches 100 and the unlock is persisted.
type AchievementUnlockedEvent struct {
	BaseEvent
	StudentID      string `json:"student_id"`
	OrganizationID string `json:"organization_id"`
	AchievementID  string `json:"achievement_id"`
	Name           string `json:"name"`
	XPReward       int    `json:"xp_reward"`
}

// Payload implements Event interface.
func (e AchievementUnlockedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"student_id":      e.StudentID,
		"organization_id": e.OrganizationID,
		"achievement_id":  e.AchievementID,
		"name":            e.Name,
		"xp_reward":       e.XPReward,
	}
}

// NewAchievementUnlockedEvent creates a new AchievementUnlockedEvent.
// The aggregate is the student.
func NewAchievementUnlockedEvent(studentID, organizationID, achievementID, name string, xpReward int, at time.Time) AchievementUnlockedEvent {
	return AchievementUnlockedEvent{
		BaseEvent:      NewBaseEvent(EventAchievementUnlocked, studentID, at),
		StudentID:      studentID,
		OrganizationID: organizationID,
		AchievementID:  achievementID,
		Name:           name,
		XPReward:       xpReward,
	}
}

// AchievementCreatedEvent is emitted when an academy defines a new achievement.
type AchievementCreatedEvent struct {
	BaseEvent
	OrganizationID string `json:"organization_id"`
	Name           string `json:"name"`
	Category       string `json:"category"`
}

// Payload implements Event interface.
func (e AchievementCreatedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"organization_id": e.OrganizationID,
		"name":            e.Name,
		"category":        e.Category,
	}
}

// NewAchievementCreatedEvent creates a new AchievementCreatedEvent.
func NewAchievementCreatedEvent(achievementID, organizationID, name, category string, at time.Time) AchievementCreatedEvent {
	return AchievementCreatedEvent{
		BaseEvent:      NewBaseEvent(EventAchievementCreated, achievementID, at),
		OrganizationID: organizationID,
		Name:           name,
		Category:       category,
	}
}

// XPAwardedEvent is emitted when an unlock grants XP to a student.
type XPAwardedEvent struct {
	BaseEvent
	Amount int    `json:"amount"`
	Reason string `json:"reason"`
}

// Payload implements Event interface.
func (e XPAwardedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"amount": e.Amount,
		"reason": e.Reason,
	}
}

// NewXPAwardedEvent creates a new XPAwardedEvent.
func NewXPAwardedEvent(studentID string, amount int, reason string, at time.Time) XPAwardedEvent {
	return XPAwardedEvent{
		BaseEvent: NewBaseEvent(EventXPAwarded, studentID, at),
		Amount:    amount,
		Reason:    reason,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Event Bus Interfaces
// ═══════════════════════════════════════════════════════════════════════════

// EventHandler is a function that handles an event.
type EventHandler func(event Event) error

// EventPublisher defines the interface for publishing events.
type EventPublisher interface {
	// Publish sends an event to all subscribers.
	Publish(event Event) error
}

// EventSubscriber defines the interface for subscribing to events.
type EventSubscriber interface {
	// Subscribe registers a handler for a specific event type.
	Subscribe(eventType EventType, handler EventHandler) error

	// SubscribeAll registers a handler for all event types.
	SubscribeAll(handler EventHandler) error
}

// EventBus combines publishing and subscribing.
type EventBus interface {
	EventPublisher
	EventSubscriber
}

// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages.
package shared

import (
	"fmt"
	"time"
)

// EventType represents the type of domain event.
type EventType string

const (
	// Attendance events
	EventAttendanceMarked EventType = "attendance.marked"
	EventAttendanceEdited EventType = "attendance.edited"

	// Course events
	EventCourseAdded   EventType = "course.added"
	EventCourseDeleted EventType = "course.deleted"

	// User events
	EventUserVerified EventType = "user.verified"
	EventUserBlocked  EventType = "user.blocked"
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

// NewBaseEvent creates a new base event.
func NewBaseEvent(eventType EventType, aggregateID string) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		Timestamp:   time.Now(),
		AggregateId: aggregateID,
	}
}

// WithCorrelationID sets the correlation ID for tracing.
func (e BaseEvent) WithCorrelationID(id string) BaseEvent {
	e.CorrelationID = id
	return e
}

// ═══════════════════════════════════════════════════════════════════════════
// Attendance Events
// ═══════════════════════════════════════════════════════════════════════════

// AttendanceMarkedEvent is emitted after a present/absent mark is stored.
type AttendanceMarkedEvent struct {
	BaseEvent
	UserID     int64   `json:"user_id"`
	CourseCode string  `json:"course_code"`
	Present    bool    `json:"present"`
	Streak     int     `json:"streak"`
	Percentage float64 `json:"percentage"`
}

// Payload implements Event interface.
func (e AttendanceMarkedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":     e.UserID,
		"course_code": e.CourseCode,
		"present":     e.Present,
		"streak":      e.Streak,
		"percentage":  e.Percentage,
	}
}

// NewAttendanceMarkedEvent creates a new AttendanceMarkedEvent.
func NewAttendanceMarkedEvent(userID int64, courseCode string, present bool, streak int, percentage float64) AttendanceMarkedEvent {
	return AttendanceMarkedEvent{
		BaseEvent:  NewBaseEvent(EventAttendanceMarked, courseCode),
		UserID:     userID,
		CourseCode: courseCode,
		Present:    present,
		Streak:     streak,
		Percentage: percentage,
	}
}

// AttendanceEditedEvent is emitted after counts are overwritten manually.
type AttendanceEditedEvent struct {
	BaseEvent
	UserID     int64  `json:"user_id"`
	CourseCode string `json:"course_code"`
	Present    int    `json:"present"`
	Absent     int    `json:"absent"`
}

// Payload implements Event interface.
func (e AttendanceEditedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":     e.UserID,
		"course_code": e.CourseCode,
		"present":     e.Present,
		"absent":      e.Absent,
	}
}

// NewAttendanceEditedEvent creates a new AttendanceEditedEvent.
func NewAttendanceEditedEvent(userID int64, courseCode string, present, absent int) AttendanceEditedEvent {
	return AttendanceEditedEvent{
		BaseEvent:  NewBaseEvent(EventAttendanceEdited, courseCode),
		UserID:     userID,
		CourseCode: courseCode,
		Present:    present,
		Absent:     absent,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Course Events
// ═══════════════════════════════════════════════════════════════════════════

// CourseChangedEvent is emitted when a course is added or deleted.
type CourseChangedEvent struct {
	BaseEvent
	UserID     int64  `json:"user_id"`
	CourseCode string `json:"course_code"`
	Nickname   string `json:"nickname"`
}

// Payload implements Event interface.
func (e CourseChangedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":     e.UserID,
		"course_code": e.CourseCode,
		"nickname":    e.Nickname,
	}
}

// NewCourseAddedEvent creates a course.added event.
func NewCourseAddedEvent(userID int64, courseCode, nickname string) CourseChangedEvent {
	return CourseChangedEvent{
		BaseEvent:  NewBaseEvent(EventCourseAdded, courseCode),
		UserID:     userID,
		CourseCode: courseCode,
		Nickname:   nickname,
	}
}

// NewCourseDeletedEvent creates a course.deleted event.
func NewCourseDeletedEvent(userID int64, courseCode, nickname string) CourseChangedEvent {
	return CourseChangedEvent{
		BaseEvent:  NewBaseEvent(EventCourseDeleted, courseCode),
		UserID:     userID,
		CourseCode: courseCode,
		Nickname:   nickname,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// User Events
// ═══════════════════════════════════════════════════════════════════════════

// UserVerifiedEvent is emitted when a user shares their phone number.
type UserVerifiedEvent struct {
	BaseEvent
	UserID   int64  `json:"user_id"`
	Name     string `json:"name"`
	Username string `json:"username"`
	Phone    string `json:"phone"`
	NewUser  bool   `json:"new_user"`
}

// Payload implements Event interface.
func (e UserVerifiedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":  e.UserID,
		"name":     e.Name,
		"username": e.Username,
		"phone":    e.Phone,
		"new_user": e.NewUser,
	}
}

// NewUserVerifiedEvent creates a new UserVerifiedEvent.
func NewUserVerifiedEvent(userID int64, name, username, phone string, newUser bool) UserVerifiedEvent {
	return UserVerifiedEvent{
		BaseEvent: NewBaseEvent(EventUserVerified, fmt.Sprintf("%d", userID)),
		UserID:    userID,
		Name:      name,
		Username:  username,
		Phone:     phone,
		NewUser:   newUser,
	}
}

// UserBlockedEvent is emitted when a user is blocked, automatically or by the admin.
type UserBlockedEvent struct {
	BaseEvent
	UserID    int64  `json:"user_id"`
	Name      string `json:"name"`
	Username  string `json:"username"`
	Reason    string `json:"reason"`
	Automatic bool   `json:"automatic"`
}

// Payload implements Event interface.
func (e UserBlockedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":   e.UserID,
		"name":      e.Name,
		"username":  e.Username,
		"reason":    e.Reason,
		"automatic": e.Automatic,
	}
}

// NewUserBlockedEvent creates a new UserBlockedEvent.
func NewUserBlockedEvent(userID int64, name, username, reason string, automatic bool) UserBlockedEvent {
	return UserBlockedEvent{
		BaseEvent: NewBaseEvent(EventUserBlocked, fmt.Sprintf("%d", userID)),
		UserID:    userID,
		Name:      name,
		Username:  username,
		Reason:    reason,
		Automatic: automatic,
	}
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

// NopPublisher discards every event.
type NopPublisher struct{}

// Publish implements EventPublisher.
func (NopPublisher) Publish(Event) error { return nil }

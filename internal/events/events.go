package events

import (
	"time"

	"achievehub/internal/models"

	"github.com/gofrs/uuid"
)

// Event types published by the engine
const (
	TypeActivityRecorded = "activity.recorded"
	TypeBadgeAwarded     = "badge.awarded"
)

// Event represents a domain event
type Event interface {
	GetEventID() string
	GetEventType() string
	GetTimestamp() time.Time
	GetUserID() int64
}

// BaseEvent provides common event functionality
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
	UserID    int64     `json:"user_id"`
}

// GetEventID returns the event ID
func (e *BaseEvent) GetEventID() string {
	return e.EventID
}

// GetEventType returns the event type
func (e *BaseEvent) GetEventType() string {
	return e.EventType
}

// GetTimestamp returns the event timestamp
func (e *BaseEvent) GetTimestamp() time.Time {
	return e.Timestamp
}

// GetUserID returns the user the event belongs to
func (e *BaseEvent) GetUserID() int64 {
	return e.UserID
}

func newBase(eventType string, userID int64) BaseEvent {
	return BaseEvent{
		EventID:   GenerateEventID(),
		EventType: eventType,
		Timestamp: time.Now().UTC(),
		UserID:    userID,
	}
}

// GenerateEventID returns a random event id
func GenerateEventID() string {
	id, err := uuid.NewV4()
	if err != nil {
		return "evt_" + time.Now().UTC().Format("20060102T150405.000000000")
	}
	return "evt_" + id.String()
}

// ===============================
// DOMAIN EVENTS
// ===============================

// ActivityRecordedEvent is published after an activity reached the ledger
type ActivityRecordedEvent struct {
	BaseEvent
	ActivityType models.ActivityType  `json:"activity_type"`
	Day          models.Day           `json:"day"`
	Delta        models.ActivityDelta `json:"delta"`
}

// NewActivityRecordedEvent creates an activity.recorded event
func NewActivityRecordedEvent(userID int64, activityType models.ActivityType, day models.Day, delta models.ActivityDelta) *ActivityRecordedEvent {
	return &ActivityRecordedEvent{
		BaseEvent:    newBase(TypeActivityRecorded, userID),
		ActivityType: activityType,
		Day:          day,
		Delta:        delta,
	}
}

// BadgeAwardedEvent is published once per check cycle that committed badges
type BadgeAwardedEvent struct {
	BaseEvent
	ActivityType models.ActivityType   `json:"activity_type"`
	Badges       []models.AwardedBadge `json:"badges"`
}

// NewBadgeAwardedEvent creates a badge.awarded event
func NewBadgeAwardedEvent(userID int64, activityType models.ActivityType, badges []models.AwardedBadge) *BadgeAwardedEvent {
	return &BadgeAwardedEvent{
		BaseEvent:    newBase(TypeBadgeAwarded, userID),
		ActivityType: activityType,
		Badges:       badges,
	}
}

package services

import (
	"time"

	"achievehub/internal/models"
)

// ===============================
// REQUEST TYPES
// ===============================

// TrackActivityRequest is an activity event reported by a collaborator
type TrackActivityRequest struct {
	ActivityType models.ActivityType    `json:"activityType" validate:"required,oneof=quiz_completed game_completed forum_post_created forum_comment_created dashboard_view manual"`
	Payload      models.ActivityPayload `json:"payload"`
	OccurredAt   *time.Time             `json:"occurredAt,omitempty"`
}

// Event converts the request, defaulting the occurrence time to now.
// Times in the future are clamped to now.
func (r *TrackActivityRequest) Event(now time.Time) models.ActivityEvent {
	at := now
	if r.OccurredAt != nil && !r.OccurredAt.IsZero() && r.OccurredAt.Before(now) {
		at = *r.OccurredAt
	}
	return models.ActivityEvent{
		Type:       r.ActivityType,
		Payload:    r.Payload,
		OccurredAt: at,
	}
}

// CheckRequest asks for a check cycle without new activity
type CheckRequest struct {
	ActivityType models.ActivityType    `json:"activityType" validate:"omitempty,oneof=quiz_completed game_completed forum_post_created forum_comment_created dashboard_view manual"`
	Payload      models.ActivityPayload `json:"payload"`
}

// ===============================
// HEALTH TYPES
// ===============================

// ServiceHealth represents the health status of the service collection
type ServiceHealth struct {
	Status       string                   `json:"status"`
	Timestamp    time.Time                `json:"timestamp"`
	Dependencies map[string]ServiceStatus `json:"dependencies"`
	Uptime       time.Duration            `json:"uptime"`
	Catalog      CatalogStatus            `json:"catalog"`
	Issues       []string                 `json:"issues,omitempty"`
}

// ServiceStatus represents the status of one dependency
type ServiceStatus struct {
	Name         string        `json:"name"`
	Status       string        `json:"status"` // healthy, unhealthy
	LastCheck    time.Time     `json:"last_check"`
	ResponseTime time.Duration `json:"response_time"`
	Error        string        `json:"error,omitempty"`
}

// CatalogStatus describes the loaded badge catalog
type CatalogStatus struct {
	Version      int `json:"version"`
	ActiveBadges int `json:"active_badges"`
}

package models

import (
	"time"

	"github.com/google/uuid"
)

// EventStatus is the lifecycle state of an event.
type EventStatus string

const (
	StatusUpcoming  EventStatus = "upcoming"
	StatusCompleted EventStatus = "completed"
	StatusCancelled EventStatus = "cancelled"
)

// Valid reports whether s is a known status.
func (s EventStatus) Valid() bool {
	return s == StatusUpcoming || s == StatusCompleted || s == StatusCancelled
}

// Event represents a published event that users may register for.
// Capacity is nil for unlimited events; when set it is a positive integer.
type Event struct {
	ID          uuid.UUID   `json:"id"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	EventDate   time.Time   `json:"event_date"`
	Location    string      `json:"location"`
	Latitude    *float64    `json:"latitude,omitempty"`
	Longitude   *float64    `json:"longitude,omitempty"`
	Capacity    *int        `json:"capacity,omitempty"`
	Status      EventStatus `json:"status"`
	Category    string      `json:"category"`
	ImageURL    *string     `json:"image_url,omitempty"`
	CreatedBy   uuid.UUID   `json:"created_by"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// IsOpen reports whether the event accepts new registrations.
func (e *Event) IsOpen() bool {
	return e.Status == StatusUpcoming
}

// HasCapacity reports whether a registration limit is set.
func (e *Event) HasCapacity() bool {
	return e.Capacity != nil
}

// Remaining returns the free seats given the current registration count.
// Unlimited events return -1.
func (e *Event) Remaining(registered int) int {
	if e.Capacity == nil {
		return -1
	}
	if r := *e.Capacity - registered; r > 0 {
		return r
	}
	return 0
}

// CanTransition reports whether the status change from e.Status to next is
// allowed: upcoming may close to cancelled or completed, and either terminal
// state may be reopened. Same-status writes are no-ops.
func (e *Event) CanTransition(next EventStatus) bool {
	if next == e.Status {
		return true
	}
	switch e.Status {
	case StatusUpcoming:
		return next == StatusCancelled || next == StatusCompleted
	case StatusCancelled, StatusCompleted:
		return next == StatusUpcoming
	}
	return false
}

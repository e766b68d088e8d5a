// Package events owns the event catalog: creation, mutation, and lookup of
// event records, with field validation and role gating on every write.
package events

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gatherspot/backend/internal/authz"
	"github.com/gatherspot/backend/internal/models"
	"github.com/gatherspot/backend/pkg/apperr"
)

// DefaultCategory is applied when an event is created without one.
const DefaultCategory = "General"

// ListFilter narrows List results. Zero-value fields are ignored.
type ListFilter struct {
	Status    models.EventStatus
	Category  string
	CreatedBy *uuid.UUID
}

// Store is the persistence interface for the catalog.
type Store interface {
	Insert(ctx context.Context, e *models.Event) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Event, error)
	Update(ctx context.Context, e *models.Event) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, filter ListFilter) ([]models.Event, error)
	CountRegistrations(ctx context.Context, eventID uuid.UUID) (int, error)
}

// CreateParams are the fields for a new event.
type CreateParams struct {
	Title       string
	Description string
	EventDate   time.Time
	Location    string
	Category    string
	Capacity    *int
	Latitude    *float64
	Longitude   *float64
}

// UpdateParams are the fields for a partial event update. Nil pointers leave
// the field unchanged; ClearCapacity removes the registration limit.
type UpdateParams struct {
	Title         *string
	Description   *string
	EventDate     *time.Time
	Location      *string
	Category      *string
	Capacity      *int
	ClearCapacity bool
	Latitude      *float64
	Longitude     *float64
	Status        *models.EventStatus
}

// Service is the event catalog. Every mutating operation passes through the
// authorization gate before any storage write.
type Service struct {
	store  Store
	gate   *authz.Gate
	logger *zap.Logger
}

// NewService creates an event catalog service.
func NewService(store Store, gate *authz.Gate, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, gate: gate, logger: logger}
}

// Create publishes a new event owned by the caller. Admin only.
func (s *Service) Create(ctx context.Context, identity authz.Identity, params CreateParams) (*models.Event, error) {
	if err := s.gate.Authorize(identity, authz.CreateEvent()); err != nil {
		return nil, err
	}

	params.Title = strings.TrimSpace(params.Title)
	params.Description = strings.TrimSpace(params.Description)
	params.Location = strings.TrimSpace(params.Location)
	params.Category = strings.TrimSpace(params.Category)

	if params.Title == "" {
		return nil, apperr.Validation("title", "is required")
	}
	if params.Description == "" {
		return nil, apperr.Validation("description", "is required")
	}
	if params.EventDate.IsZero() {
		return nil, apperr.Validation("event_date", "is required")
	}
	if params.Location == "" {
		return nil, apperr.Validation("location", "is required")
	}
	if err := validateCapacity(params.Capacity); err != nil {
		return nil, err
	}
	if err := validateCoordinates(params.Latitude, params.Longitude); err != nil {
		return nil, err
	}
	if params.Category == "" {
		params.Category = DefaultCategory
	}

	event := &models.Event{
		Title:       params.Title,
		Description: params.Description,
		EventDate:   params.EventDate,
		Location:    params.Location,
		Category:    params.Category,
		Capacity:    params.Capacity,
		Latitude:    params.Latitude,
		Longitude:   params.Longitude,
		Status:      models.StatusUpcoming,
		CreatedBy:   identity.UserID,
	}
	if err := s.store.Insert(ctx, event); err != nil {
		return nil, err
	}

	s.logger.Info("event created",
		zap.String("event_id", event.ID.String()),
		zap.String("created_by", identity.UserID.String()),
	)
	return event, nil
}

// Update applies a partial update. Any admin may edit any event, matching
// catalog behavior; ownership is not required.
func (s *Service) Update(ctx context.Context, identity authz.Identity, id uuid.UUID, params UpdateParams) (*models.Event, error) {
	event, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.gate.Authorize(identity, authz.UpdateEvent(event.CreatedBy)); err != nil {
		return nil, err
	}

	if params.Title != nil {
		t := strings.TrimSpace(*params.Title)
		if t == "" {
			return nil, apperr.Validation("title", "cannot be empty")
		}
		event.Title = t
	}
	if params.Description != nil {
		d := strings.TrimSpace(*params.Description)
		if d == "" {
			return nil, apperr.Validation("description", "cannot be empty")
		}
		event.Description = d
	}
	if params.EventDate != nil {
		if params.EventDate.IsZero() {
			return nil, apperr.Validation("event_date", "cannot be empty")
		}
		event.EventDate = *params.EventDate
	}
	if params.Location != nil {
		l := strings.TrimSpace(*params.Location)
		if l == "" {
			return nil, apperr.Validation("location", "cannot be empty")
		}
		event.Location = l
	}
	if params.Category != nil {
		if c := strings.TrimSpace(*params.Category); c != "" {
			event.Category = c
		}
	}
	if params.Latitude != nil || params.Longitude != nil {
		if err := validateCoordinates(params.Latitude, params.Longitude); err != nil {
			return nil, err
		}
		event.Latitude = params.Latitude
		event.Longitude = params.Longitude
	}

	if params.ClearCapacity {
		event.Capacity = nil
	} else if params.Capacity != nil {
		if err := validateCapacity(params.Capacity); err != nil {
			return nil, err
		}
		count, err := s.store.CountRegistrations(ctx, id)
		if err != nil {
			return nil, err
		}
		if *params.Capacity < count {
			return nil, apperr.Validation("capacity", "cannot be lower than the current registration count")
		}
		event.Capacity = params.Capacity
	}

	if params.Status != nil {
		next := *params.Status
		if !next.Valid() {
			return nil, apperr.Validation("status", "unknown status")
		}
		if !event.CanTransition(next) {
			return nil, apperr.Validation("status", "transition from "+string(event.Status)+" to "+string(next)+" is not allowed")
		}
		event.Status = next
	}

	if err := s.store.Update(ctx, event); err != nil {
		return nil, err
	}

	s.logger.Info("event updated", zap.String("event_id", id.String()))
	return event, nil
}

// AttachImage saves the blob store URL of an uploaded image on the event.
// The catalog only ever stores the URL string.
func (s *Service) AttachImage(ctx context.Context, identity authz.Identity, id uuid.UUID, url string) (*models.Event, error) {
	event, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.gate.Authorize(identity, authz.UpdateEvent(event.CreatedBy)); err != nil {
		return nil, err
	}
	if url == "" {
		return nil, apperr.Validation("image_url", "is required")
	}
	event.ImageURL = &url
	if err := s.store.Update(ctx, event); err != nil {
		return nil, err
	}
	return event, nil
}

// Delete removes an event and, in the same transaction, all of its
// registrations. Admin only.
func (s *Service) Delete(ctx context.Context, identity authz.Identity, id uuid.UUID) error {
	event, err := s.store.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.gate.Authorize(identity, authz.DeleteEvent(event.CreatedBy)); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("event deleted", zap.String("event_id", id.String()))
	return nil
}

// Get returns a single event.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.Event, error) {
	return s.store.GetByID(ctx, id)
}

// List returns events matching the filter, ordered by event date.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]models.Event, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, apperr.Validation("status", "unknown status")
	}
	return s.store.List(ctx, filter)
}

func validateCapacity(capacity *int) error {
	if capacity != nil && *capacity <= 0 {
		return apperr.Validation("capacity", "must be a positive integer")
	}
	return nil
}

func validateCoordinates(lat, lng *float64) error {
	if (lat == nil) != (lng == nil) {
		return apperr.Validation("coordinates", "latitude and longitude must be provided together")
	}
	if lat == nil {
		return nil
	}
	if *lat < -90 || *lat > 90 {
		return apperr.Validation("latitude", "must be between -90 and 90")
	}
	if *lng < -180 || *lng > 180 {
		return apperr.Validation("longitude", "must be between -180 and 180")
	}
	return nil
}

package registrations

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gatherspot/backend/internal/events"
	"github.com/gatherspot/backend/internal/middleware"
	"github.com/gatherspot/backend/pkg/apperr"
	"github.com/gatherspot/backend/pkg/queue"
	"github.com/gatherspot/backend/pkg/response"
)

// EmailQueue enqueues registration-confirmation emails.
type EmailQueue interface {
	EnqueueConfirmation(ctx context.Context, payload queue.ConfirmationPayload) error
}

// Handler handles registration HTTP endpoints.
type Handler struct {
	ledger *Ledger
	events *events.Service
	emails EmailQueue
	logger *zap.Logger
}

// NewHandler creates a registrations handler. emails may be nil when no
// queue is configured; confirmations are then skipped.
func NewHandler(ledger *Ledger, events *events.Service, emails EmailQueue, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{ledger: ledger, events: events, emails: emails, logger: logger}
}

// Register handles POST /events/:id/register. The caller registers themself;
// the subject user id is always the authenticated identity.
func (h *Handler) Register(c *gin.Context) {
	identity, ok := middleware.IdentityFrom(c)
	if !ok {
		response.Unauthorized(c, "missing user context")
		return
	}
	eventID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}

	reg, err := h.ledger.Register(c.Request.Context(), identity, eventID, identity.UserID)
	if err != nil {
		// Duplicate and full are expected outcomes, not faults.
		if errors.Is(err, apperr.ErrAlreadyRegistered) || errors.Is(err, apperr.ErrEventFull) || errors.Is(err, apperr.ErrEventNotOpen) {
			h.logger.Info("registration rejected",
				zap.String("event_id", eventID.String()),
				zap.String("user_id", identity.UserID.String()),
				zap.String("reason", err.Error()),
			)
		} else if !errors.Is(err, apperr.ErrNotFound) && !errors.Is(err, apperr.ErrForbidden) {
			h.logger.Error("registration failed", zap.Error(err), zap.String("event_id", eventID.String()))
		}
		response.Error(c, err)
		return
	}

	h.enqueueConfirmation(c, eventID, c.GetString(middleware.ContextUserEmail), reg.ID)
	response.Created(c, reg)
}

// Cancel handles DELETE /events/:id/register. Cancelling a registration
// that does not exist returns 404 and is safe to repeat.
func (h *Handler) Cancel(c *gin.Context) {
	identity, ok := middleware.IdentityFrom(c)
	if !ok {
		response.Unauthorized(c, "missing user context")
		return
	}
	eventID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	if err := h.ledger.Cancel(c.Request.Context(), identity, eventID, identity.UserID); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Count handles GET /events/:id/registrations/count. Public.
func (h *Handler) Count(c *gin.Context) {
	eventID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	event, err := h.events.Get(c.Request.Context(), eventID)
	if err != nil {
		response.Error(c, err)
		return
	}
	count, err := h.ledger.Count(c.Request.Context(), eventID)
	if err != nil {
		response.Error(c, err)
		return
	}
	body := gin.H{"count": count}
	if event.HasCapacity() {
		body["capacity"] = *event.Capacity
		body["remaining"] = event.Remaining(count)
	}
	response.OK(c, body)
}

// ListByEvent handles GET /events/:id/registrations (admin only).
func (h *Handler) ListByEvent(c *gin.Context) {
	identity, ok := middleware.IdentityFrom(c)
	if !ok {
		response.Unauthorized(c, "missing user context")
		return
	}
	eventID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	list, err := h.ledger.ListByEvent(c.Request.Context(), identity, eventID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, list)
}

// ListMine handles GET /me/registrations.
func (h *Handler) ListMine(c *gin.Context) {
	identity, ok := middleware.IdentityFrom(c)
	if !ok {
		response.Unauthorized(c, "missing user context")
		return
	}
	list, err := h.ledger.ListByUser(c.Request.Context(), identity)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, list)
}

// enqueueConfirmation sends the confirmation email job. Best effort: a queue
// failure never fails the registration.
func (h *Handler) enqueueConfirmation(c *gin.Context, eventID uuid.UUID, email string, regID uuid.UUID) {
	if h.emails == nil || email == "" {
		return
	}
	event, err := h.events.Get(c.Request.Context(), eventID)
	if err != nil {
		return
	}
	payload := queue.ConfirmationPayload{
		RegistrationID: regID,
		EventID:        eventID,
		RecipientEmail: email,
		EventTitle:     event.Title,
		EventDate:      event.EventDate,
		EventLocation:  event.Location,
	}
	if err := h.emails.EnqueueConfirmation(c.Request.Context(), payload); err != nil {
		h.logger.Warn("confirmation enqueue failed", zap.Error(err), zap.String("registration_id", regID.String()))
	}
}

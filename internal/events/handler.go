package events

import (
	"context"
	"io"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gatherspot/backend/internal/middleware"
	"github.com/gatherspot/backend/internal/models"
	"github.com/gatherspot/backend/pkg/response"
	"github.com/gatherspot/backend/pkg/storage"
)

// BlobStore stores uploaded event images and returns a retrievable URL.
type BlobStore interface {
	UploadEventImage(ctx context.Context, eventID uuid.UUID, filename, contentType string, body io.Reader, size int64) (string, error)
}

// CreateRequest is the body for POST /events.
type CreateRequest struct {
	Title       string   `json:"title" binding:"required"`
	Description string   `json:"description" binding:"required"`
	EventDate   string   `json:"event_date" binding:"required"`
	Location    string   `json:"location" binding:"required"`
	Category    string   `json:"category"`
	Capacity    *int     `json:"capacity"`
	Latitude    *float64 `json:"latitude"`
	Longitude   *float64 `json:"longitude"`
}

// UpdateRequest is the body for PATCH /events/:id. Absent fields are left
// unchanged; clear_capacity removes the registration limit.
type UpdateRequest struct {
	Title         *string  `json:"title"`
	Description   *string  `json:"description"`
	EventDate     *string  `json:"event_date"`
	Location      *string  `json:"location"`
	Category      *string  `json:"category"`
	Capacity      *int     `json:"capacity"`
	ClearCapacity bool     `json:"clear_capacity"`
	Latitude      *float64 `json:"latitude"`
	Longitude     *float64 `json:"longitude"`
	Status        *string  `json:"status"`
}

// Handler handles event catalog HTTP endpoints.
type Handler struct {
	svc    *Service
	blobs  BlobStore
	logger *zap.Logger
}

// NewHandler creates an events handler. blobs may be nil when no object
// store is configured; image uploads then return 503.
func NewHandler(svc *Service, blobs BlobStore, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, blobs: blobs, logger: logger}
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339, s)
}

// Create handles POST /events.
func (h *Handler) Create(c *gin.Context) {
	identity, ok := middleware.IdentityFrom(c)
	if !ok {
		response.Unauthorized(c, "missing user context")
		return
	}
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	eventDate, err := parseTime(req.EventDate)
	if err != nil {
		response.BadRequest(c, "invalid event_date")
		return
	}

	event, err := h.svc.Create(c.Request.Context(), identity, CreateParams{
		Title:       req.Title,
		Description: req.Description,
		EventDate:   eventDate,
		Location:    req.Location,
		Category:    req.Category,
		Capacity:    req.Capacity,
		Latitude:    req.Latitude,
		Longitude:   req.Longitude,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, event)
}

// Update handles PATCH /events/:id.
func (h *Handler) Update(c *gin.Context) {
	identity, ok := middleware.IdentityFrom(c)
	if !ok {
		response.Unauthorized(c, "missing user context")
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	var req UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	params := UpdateParams{
		Title:         req.Title,
		Description:   req.Description,
		Location:      req.Location,
		Category:      req.Category,
		Capacity:      req.Capacity,
		ClearCapacity: req.ClearCapacity,
		Latitude:      req.Latitude,
		Longitude:     req.Longitude,
	}
	if req.EventDate != nil {
		t, err := parseTime(*req.EventDate)
		if err != nil {
			response.BadRequest(c, "invalid event_date")
			return
		}
		params.EventDate = &t
	}
	if req.Status != nil {
		status := models.EventStatus(*req.Status)
		params.Status = &status
	}

	event, err := h.svc.Update(c.Request.Context(), identity, id, params)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, event)
}

// Delete handles DELETE /events/:id.
func (h *Handler) Delete(c *gin.Context) {
	identity, ok := middleware.IdentityFrom(c)
	if !ok {
		response.Unauthorized(c, "missing user context")
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	if err := h.svc.Delete(c.Request.Context(), identity, id); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// GetByID handles GET /events/:id.
func (h *Handler) GetByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	event, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, event)
}

// List handles GET /events with optional status, category and created_by
// query filters.
func (h *Handler) List(c *gin.Context) {
	filter := ListFilter{
		Status:   models.EventStatus(c.Query("status")),
		Category: c.Query("category"),
	}
	if v := c.Query("created_by"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			response.BadRequest(c, "invalid created_by")
			return
		}
		filter.CreatedBy = &id
	}
	list, err := h.svc.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, list)
}

// UploadImage handles POST /events/:id/image. The image bytes go to the
// blob store; the catalog keeps only the returned URL.
func (h *Handler) UploadImage(c *gin.Context) {
	if h.blobs == nil {
		response.ServiceUnavailable(c, "object storage not configured")
		return
	}
	identity, ok := middleware.IdentityFrom(c)
	if !ok {
		response.Unauthorized(c, "missing user context")
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	// Check the event exists before touching the blob store so a bad id
	// does not leave an orphaned object behind.
	if _, err := h.svc.Get(c.Request.Context(), id); err != nil {
		response.Error(c, err)
		return
	}

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		response.BadRequest(c, "file is required")
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if !storage.ValidateImageType(contentType, header.Filename) {
		response.BadRequest(c, "unsupported image type")
		return
	}
	if header.Size > storage.MaxImageSize {
		response.BadRequest(c, "image exceeds the size limit")
		return
	}

	url, err := h.blobs.UploadEventImage(c.Request.Context(), id, header.Filename, contentType, file, header.Size)
	if err != nil {
		h.logger.Error("event image upload failed", zap.Error(err), zap.String("event_id", id.String()))
		response.Internal(c, "failed to upload image")
		return
	}

	event, err := h.svc.AttachImage(c.Request.Context(), identity, id, url)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, event)
}

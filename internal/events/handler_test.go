package events

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/gatherspot/backend/internal/authz"
	"github.com/gatherspot/backend/internal/middleware"
	"github.com/gatherspot/backend/internal/models"
)

func setupRouter(store *fakeStore, identity *authz.Identity) *gin.Engine {
	gin.SetMode(gin.TestMode)
	svc := NewService(store, authz.NewGate(), nil)
	handler := NewHandler(svc, nil, nil)

	router := gin.New()
	if identity != nil {
		router.Use(func(c *gin.Context) {
			c.Set(middleware.ContextUserID, identity.UserID)
			c.Set(middleware.ContextUserRole, string(identity.Role))
		})
	}
	router.POST("/events", handler.Create)
	router.PATCH("/events/:id", handler.Update)
	router.DELETE("/events/:id", handler.Delete)
	router.GET("/events", handler.List)
	router.GET("/events/:id", handler.GetByID)
	router.POST("/events/:id/image", handler.UploadImage)
	return router
}

func doJSON(router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	return w
}

func createBody() gin.H {
	return gin.H{
		"title":       "Go Conference",
		"description": "A full day of talks",
		"event_date":  time.Now().Add(48 * time.Hour).Format(time.RFC3339),
		"location":    "Berlin",
	}
}

func TestCreateEndpoint(t *testing.T) {
	store := newFakeStore()
	router := setupRouter(store, &testAdmin)

	w := doJSON(router, http.MethodPost, "/events", createBody())
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	if len(store.events) != 1 {
		t.Errorf("expected 1 stored event, got %d", len(store.events))
	}
}

func TestCreateEndpointForbidden(t *testing.T) {
	router := setupRouter(newFakeStore(), &testMember)
	w := doJSON(router, http.MethodPost, "/events", createBody())
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", w.Code)
	}
}

func TestCreateEndpointBadInput(t *testing.T) {
	router := setupRouter(newFakeStore(), &testAdmin)

	body := createBody()
	delete(body, "title")
	if w := doJSON(router, http.MethodPost, "/events", body); w.Code != http.StatusBadRequest {
		t.Fatalf("missing field: expected 400, got %d", w.Code)
	}

	body = createBody()
	body["event_date"] = "tomorrow"
	if w := doJSON(router, http.MethodPost, "/events", body); w.Code != http.StatusBadRequest {
		t.Fatalf("bad date: expected 400, got %d", w.Code)
	}

	body = createBody()
	body["capacity"] = -3
	if w := doJSON(router, http.MethodPost, "/events", body); w.Code != http.StatusBadRequest {
		t.Fatalf("negative capacity: expected 400, got %d", w.Code)
	}
}

func TestUpdateEndpoint(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store, authz.NewGate(), nil)
	event, _ := svc.Create(context.Background(), testAdmin, validParams())
	router := setupRouter(store, &testAdmin)

	w := doJSON(router, http.MethodPatch, "/events/"+event.ID.String(), gin.H{"title": "Renamed"})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if store.events[event.ID].Title != "Renamed" {
		t.Error("title not persisted")
	}

	w = doJSON(router, http.MethodPatch, "/events/"+uuid.NewString(), gin.H{"title": "x"})
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestUpdateEndpointBadTransition(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store, authz.NewGate(), nil)
	event, _ := svc.Create(context.Background(), testAdmin, validParams())
	store.events[event.ID].Status = models.StatusCompleted
	router := setupRouter(store, &testAdmin)

	w := doJSON(router, http.MethodPatch, "/events/"+event.ID.String(), gin.H{"status": "cancelled"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestDeleteEndpoint(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store, authz.NewGate(), nil)
	event, _ := svc.Create(context.Background(), testAdmin, validParams())

	if w := doJSON(setupRouter(store, &testMember), http.MethodDelete, "/events/"+event.ID.String(), nil); w.Code != http.StatusForbidden {
		t.Fatalf("member delete: expected 403, got %d", w.Code)
	}
	if w := doJSON(setupRouter(store, &testAdmin), http.MethodDelete, "/events/"+event.ID.String(), nil); w.Code != http.StatusNoContent {
		t.Fatalf("admin delete: expected 204, got %d", w.Code)
	}
}

func TestGetAndListEndpoints(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store, authz.NewGate(), nil)
	event, _ := svc.Create(context.Background(), testAdmin, validParams())
	router := setupRouter(store, nil)

	if w := doJSON(router, http.MethodGet, "/events/"+event.ID.String(), nil); w.Code != http.StatusOK {
		t.Fatalf("get: expected 200, got %d", w.Code)
	}
	if w := doJSON(router, http.MethodGet, "/events/"+uuid.NewString(), nil); w.Code != http.StatusNotFound {
		t.Fatalf("get missing: expected 404, got %d", w.Code)
	}
	if w := doJSON(router, http.MethodGet, "/events?status=upcoming", nil); w.Code != http.StatusOK {
		t.Fatalf("list: expected 200, got %d", w.Code)
	}
	if w := doJSON(router, http.MethodGet, "/events?status=bogus", nil); w.Code != http.StatusBadRequest {
		t.Fatalf("list bad status: expected 400, got %d", w.Code)
	}
}

func TestUploadImageEndpointNoBlobStore(t *testing.T) {
	router := setupRouter(newFakeStore(), &testAdmin)
	w := doJSON(router, http.MethodPost, "/events/"+uuid.NewString()+"/image", nil)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 without object storage, got %d", w.Code)
	}
}

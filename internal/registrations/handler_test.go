package registrations

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/gatherspot/backend/internal/authz"
	"github.com/gatherspot/backend/internal/events"
	"github.com/gatherspot/backend/internal/middleware"
	"github.com/gatherspot/backend/internal/models"
	"github.com/gatherspot/backend/pkg/apperr"
	"github.com/gatherspot/backend/pkg/queue"
)

// catalogStub serves the same events as the ledger's memStore through the
// catalog Store interface.
type catalogStub struct {
	store *memStore
}

func (s *catalogStub) Insert(_ context.Context, e *models.Event) error {
	s.store.addEvent(e)
	return nil
}

func (s *catalogStub) GetByID(ctx context.Context, id uuid.UUID) (*models.Event, error) {
	return s.store.GetEvent(ctx, id)
}

func (s *catalogStub) Update(_ context.Context, e *models.Event) error {
	s.store.addEvent(e)
	return nil
}

func (s *catalogStub) Delete(_ context.Context, _ uuid.UUID) error { return nil }

func (s *catalogStub) List(_ context.Context, _ events.ListFilter) ([]models.Event, error) {
	return nil, nil
}

func (s *catalogStub) CountRegistrations(ctx context.Context, eventID uuid.UUID) (int, error) {
	return s.store.Count(ctx, eventID)
}

type mockEmailQueue struct {
	mu       sync.Mutex
	payloads []queue.ConfirmationPayload
	fail     error
}

func (q *mockEmailQueue) EnqueueConfirmation(_ context.Context, p queue.ConfirmationPayload) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.fail != nil {
		return q.fail
	}
	q.payloads = append(q.payloads, p)
	return nil
}

func setupRouter(store *memStore, emails EmailQueue, identity *authz.Identity, email string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	gate := authz.NewGate()
	ledger := NewLedger(store, gate, nil)
	catalog := events.NewService(&catalogStub{store: store}, gate, nil)
	handler := NewHandler(ledger, catalog, emails, nil)

	router := gin.New()
	if identity != nil {
		router.Use(func(c *gin.Context) {
			c.Set(middleware.ContextUserID, identity.UserID)
			c.Set(middleware.ContextUserRole, string(identity.Role))
			c.Set(middleware.ContextUserEmail, email)
		})
	}
	router.POST("/events/:id/register", handler.Register)
	router.DELETE("/events/:id/register", handler.Cancel)
	router.GET("/events/:id/registrations/count", handler.Count)
	router.GET("/events/:id/registrations", handler.ListByEvent)
	router.GET("/me/registrations", handler.ListMine)
	return router
}

func doRequest(router *gin.Engine, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	router.ServeHTTP(w, req)
	return w
}

func TestRegisterEndpoint(t *testing.T) {
	store := newMemStore()
	event := upcomingEvent(intPtr(10))
	store.addEvent(event)
	identity := member(uuid.New())
	emails := &mockEmailQueue{}
	router := setupRouter(store, emails, &identity, "member@example.com")

	w := doRequest(router, http.MethodPost, "/events/"+event.ID.String()+"/register")
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	if len(emails.payloads) != 1 {
		t.Fatalf("expected 1 confirmation enqueued, got %d", len(emails.payloads))
	}
	p := emails.payloads[0]
	if p.EventID != event.ID || p.RecipientEmail != "member@example.com" || p.EventTitle != event.Title {
		t.Errorf("bad confirmation payload: %+v", p)
	}
}

func TestRegisterEndpointDuplicate(t *testing.T) {
	store := newMemStore()
	event := upcomingEvent(nil)
	store.addEvent(event)
	identity := member(uuid.New())
	router := setupRouter(store, nil, &identity, "")

	if w := doRequest(router, http.MethodPost, "/events/"+event.ID.String()+"/register"); w.Code != http.StatusCreated {
		t.Fatalf("first register: %d", w.Code)
	}
	w := doRequest(router, http.MethodPost, "/events/"+event.ID.String()+"/register")
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate, got %d", w.Code)
	}
}

func TestRegisterEndpointFull(t *testing.T) {
	store := newMemStore()
	event := upcomingEvent(intPtr(1))
	store.addEvent(event)

	first := member(uuid.New())
	if w := doRequest(setupRouter(store, nil, &first, ""), http.MethodPost, "/events/"+event.ID.String()+"/register"); w.Code != http.StatusCreated {
		t.Fatalf("first register: %d", w.Code)
	}
	second := member(uuid.New())
	w := doRequest(setupRouter(store, nil, &second, ""), http.MethodPost, "/events/"+event.ID.String()+"/register")
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409 for full event, got %d", w.Code)
	}
}

func TestRegisterEndpointEventMissing(t *testing.T) {
	identity := member(uuid.New())
	router := setupRouter(newMemStore(), nil, &identity, "")

	w := doRequest(router, http.MethodPost, "/events/"+uuid.NewString()+"/register")
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
	if w := doRequest(router, http.MethodPost, "/events/not-a-uuid/register"); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad id, got %d", w.Code)
	}
}

func TestRegisterEndpointNoIdentity(t *testing.T) {
	store := newMemStore()
	event := upcomingEvent(nil)
	store.addEvent(event)
	router := setupRouter(store, nil, nil, "")

	w := doRequest(router, http.MethodPost, "/events/"+event.ID.String()+"/register")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

// A broken email queue must never fail the registration itself.
func TestRegisterEndpointQueueFailure(t *testing.T) {
	store := newMemStore()
	event := upcomingEvent(nil)
	store.addEvent(event)
	identity := member(uuid.New())
	emails := &mockEmailQueue{fail: apperr.Transient(context.DeadlineExceeded)}
	router := setupRouter(store, emails, &identity, "member@example.com")

	w := doRequest(router, http.MethodPost, "/events/"+event.ID.String()+"/register")
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201 despite queue failure, got %d", w.Code)
	}
}

func TestCancelEndpoint(t *testing.T) {
	store := newMemStore()
	event := upcomingEvent(nil)
	store.addEvent(event)
	identity := member(uuid.New())
	router := setupRouter(store, nil, &identity, "")

	if w := doRequest(router, http.MethodPost, "/events/"+event.ID.String()+"/register"); w.Code != http.StatusCreated {
		t.Fatalf("register: %d", w.Code)
	}
	if w := doRequest(router, http.MethodDelete, "/events/"+event.ID.String()+"/register"); w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", w.Code)
	}
	if w := doRequest(router, http.MethodDelete, "/events/"+event.ID.String()+"/register"); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 on repeat cancel, got %d", w.Code)
	}
}

func TestCountEndpoint(t *testing.T) {
	store := newMemStore()
	event := upcomingEvent(intPtr(5))
	store.addEvent(event)
	identity := member(uuid.New())
	router := setupRouter(store, nil, &identity, "")

	if w := doRequest(router, http.MethodPost, "/events/"+event.ID.String()+"/register"); w.Code != http.StatusCreated {
		t.Fatalf("register: %d", w.Code)
	}
	w := doRequest(router, http.MethodGet, "/events/"+event.ID.String()+"/registrations/count")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	body := w.Body.String()
	for _, want := range []string{`"count":1`, `"capacity":5`, `"remaining":4`} {
		if !strings.Contains(body, want) {
			t.Errorf("body missing %s: %s", want, body)
		}
	}
}

func TestListByEventEndpointRequiresAdmin(t *testing.T) {
	store := newMemStore()
	event := upcomingEvent(nil)
	store.addEvent(event)

	identity := member(uuid.New())
	w := doRequest(setupRouter(store, nil, &identity, ""), http.MethodGet, "/events/"+event.ID.String()+"/registrations")
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for member, got %d", w.Code)
	}

	admin := authz.Identity{UserID: uuid.New(), Role: models.RoleAdmin}
	w = doRequest(setupRouter(store, nil, &admin, ""), http.MethodGet, "/events/"+event.ID.String()+"/registrations")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 for admin, got %d", w.Code)
	}
}

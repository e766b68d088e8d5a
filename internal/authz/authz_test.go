package authz

import (
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/gatherspot/backend/internal/models"
	"github.com/gatherspot/backend/pkg/apperr"
)

func TestAuthorize(t *testing.T) {
	gate := NewGate()
	adminID := uuid.New()
	memberID := uuid.New()
	admin := Identity{UserID: adminID, Role: models.RoleAdmin}
	member := Identity{UserID: memberID, Role: models.RoleMember}

	tests := []struct {
		name     string
		identity Identity
		action   Action
		allowed  bool
	}{
		{"admin creates event", admin, CreateEvent(), true},
		{"member creates event", member, CreateEvent(), false},
		{"admin updates any event", admin, UpdateEvent(uuid.New()), true},
		{"member updates event", member, UpdateEvent(memberID), false},
		{"admin deletes event", admin, DeleteEvent(uuid.New()), true},
		{"member deletes event", member, DeleteEvent(memberID), false},
		{"member registers themself", member, Register(memberID), true},
		{"member registers someone else", member, Register(uuid.New()), false},
		{"admin registers themself", admin, Register(adminID), true},
		{"admin registers someone else", admin, Register(uuid.New()), false},
		{"member cancels own registration", member, CancelRegistration(memberID), true},
		{"member cancels another's registration", member, CancelRegistration(uuid.New()), false},
		{"unauthenticated create", Identity{}, CreateEvent(), false},
		{"unauthenticated register", Identity{}, Register(uuid.Nil), false},
		{"missing role", Identity{UserID: uuid.New()}, Register(uuid.New()), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := gate.Authorize(tt.identity, tt.action)
			if tt.allowed && err != nil {
				t.Fatalf("expected allow, got %v", err)
			}
			if !tt.allowed {
				if !errors.Is(err, apperr.ErrForbidden) {
					t.Fatalf("expected ErrForbidden, got %v", err)
				}
			}
		})
	}
}

func TestIdentityValid(t *testing.T) {
	if (Identity{}).Valid() {
		t.Error("zero identity must not be valid")
	}
	if (Identity{UserID: uuid.New(), Role: "superuser"}).Valid() {
		t.Error("unknown role must not be valid")
	}
	if !(Identity{UserID: uuid.New(), Role: models.RoleMember}).Valid() {
		t.Error("member identity must be valid")
	}
}

// Package authz evaluates role-based permission for every mutating core
// operation. Services call the gate before touching storage; a denial
// short-circuits the operation with apperr.ErrForbidden.
package authz

import (
	"github.com/google/uuid"

	"github.com/gatherspot/backend/internal/models"
	"github.com/gatherspot/backend/pkg/apperr"
)

// Identity is the verified subject of a request, as issued by the identity
// provider. It is passed explicitly into every core operation.
type Identity struct {
	UserID uuid.UUID
	Role   models.Role
}

// Valid reports whether the identity carries an authenticated user.
func (id Identity) Valid() bool {
	return id.UserID != uuid.Nil && id.Role.Valid()
}

// IsAdmin reports whether the identity holds the admin role.
func (id Identity) IsAdmin() bool {
	return id.Role == models.RoleAdmin
}

type actionKind int

const (
	actionCreateEvent actionKind = iota
	actionUpdateEvent
	actionDeleteEvent
	actionRegister
	actionCancelRegistration
)

// Action describes an operation a caller wants to perform.
type Action struct {
	kind    actionKind
	ownerID uuid.UUID
	subject uuid.UUID
}

// CreateEvent is the action of publishing a new event.
func CreateEvent() Action {
	return Action{kind: actionCreateEvent}
}

// UpdateEvent is the action of modifying the event owned by ownerID.
// Any admin may update any event; ownership is recorded but not enforced.
func UpdateEvent(ownerID uuid.UUID) Action {
	return Action{kind: actionUpdateEvent, ownerID: ownerID}
}

// DeleteEvent is the action of removing the event owned by ownerID.
func DeleteEvent(ownerID uuid.UUID) Action {
	return Action{kind: actionDeleteEvent, ownerID: ownerID}
}

// Register is the action of registering subject for an event.
func Register(subject uuid.UUID) Action {
	return Action{kind: actionRegister, subject: subject}
}

// CancelRegistration is the action of cancelling subject's registration.
func CancelRegistration(subject uuid.UUID) Action {
	return Action{kind: actionCancelRegistration, subject: subject}
}

// Gate evaluates authorization rules. Stateless; the zero value is ready
// to use.
type Gate struct{}

// NewGate creates an authorization gate.
func NewGate() *Gate {
	return &Gate{}
}

// Authorize returns nil when identity may perform action, or an error
// wrapping apperr.ErrForbidden with the denial reason.
func (g *Gate) Authorize(identity Identity, action Action) error {
	if !identity.Valid() {
		return apperr.Forbiddenf("unauthenticated identity")
	}
	switch action.kind {
	case actionCreateEvent, actionUpdateEvent, actionDeleteEvent:
		if !identity.IsAdmin() {
			return apperr.Forbiddenf("admin role required")
		}
		return nil
	case actionRegister, actionCancelRegistration:
		// A user may only register or cancel for themself.
		if identity.UserID != action.subject {
			return apperr.Forbiddenf("cannot act on another user's registration")
		}
		return nil
	}
	return apperr.Forbiddenf("unknown action")
}

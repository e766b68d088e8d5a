// Package registrations enforces the uniqueness and capacity invariants for
// event registrations. All writes to registration rows go through the Ledger;
// nothing else mutates them.
package registrations

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gatherspot/backend/internal/authz"
	"github.com/gatherspot/backend/internal/models"
	"github.com/gatherspot/backend/pkg/apperr"
)

// Store is the persistence interface the ledger runs against.
//
// Insert must be atomic with respect to concurrent callers for the same
// event: the Postgres implementation re-checks uniqueness and capacity
// inside a transaction that locks the event row, and the schema carries a
// UNIQUE(event_id, user_id) constraint as backstop.
type Store interface {
	GetEvent(ctx context.Context, eventID uuid.UUID) (*models.Event, error)
	Insert(ctx context.Context, eventID, userID uuid.UUID) (*models.Registration, error)
	Delete(ctx context.Context, eventID, userID uuid.UUID) error
	Count(ctx context.Context, eventID uuid.UUID) (int, error)
	IsRegistered(ctx context.Context, eventID, userID uuid.UUID) (bool, error)
	ListByEvent(ctx context.Context, eventID uuid.UUID) ([]models.Registration, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Registration, error)
}

// Ledger serializes registration writes per event so the check-then-insert
// sequence is indivisible. Events are independent: no operation holds more
// than one event's lock.
type Ledger struct {
	store  Store
	gate   *authz.Gate
	logger *zap.Logger
	locks  sync.Map // event id -> *sync.Mutex
}

// NewLedger creates a registration ledger.
func NewLedger(store Store, gate *authz.Gate, logger *zap.Logger) *Ledger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ledger{store: store, gate: gate, logger: logger}
}

func (l *Ledger) lockEvent(eventID uuid.UUID) func() {
	v, _ := l.locks.LoadOrStore(eventID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// Register creates a registration for userID on eventID.
//
// Returns apperr.ErrNotFound when the event does not exist,
// apperr.ErrEventNotOpen when it is cancelled or completed,
// apperr.ErrAlreadyRegistered when the user already holds a registration,
// and apperr.ErrEventFull when the capacity is reached. Exactly one of a set
// of concurrent callers racing for the last seat succeeds.
func (l *Ledger) Register(ctx context.Context, identity authz.Identity, eventID, userID uuid.UUID) (*models.Registration, error) {
	if err := l.gate.Authorize(identity, authz.Register(userID)); err != nil {
		return nil, err
	}

	unlock := l.lockEvent(eventID)
	defer unlock()

	event, err := l.store.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if !event.IsOpen() {
		return nil, apperr.ErrEventNotOpen
	}

	registered, err := l.store.IsRegistered(ctx, eventID, userID)
	if err != nil {
		return nil, err
	}
	if registered {
		return nil, apperr.ErrAlreadyRegistered
	}

	if event.HasCapacity() {
		count, err := l.store.Count(ctx, eventID)
		if err != nil {
			return nil, err
		}
		if count >= *event.Capacity {
			return nil, apperr.ErrEventFull
		}
	}

	reg, err := l.store.Insert(ctx, eventID, userID)
	if err != nil {
		return nil, err
	}

	l.logger.Info("registration created",
		zap.String("event_id", eventID.String()),
		zap.String("user_id", userID.String()),
	)
	return reg, nil
}

// Cancel removes userID's registration for eventID. Returns
// apperr.ErrNotFound when no registration exists; calling it repeatedly is
// safe.
func (l *Ledger) Cancel(ctx context.Context, identity authz.Identity, eventID, userID uuid.UUID) error {
	if err := l.gate.Authorize(identity, authz.CancelRegistration(userID)); err != nil {
		return err
	}

	unlock := l.lockEvent(eventID)
	defer unlock()

	if err := l.store.Delete(ctx, eventID, userID); err != nil {
		return err
	}

	l.logger.Info("registration cancelled",
		zap.String("event_id", eventID.String()),
		zap.String("user_id", userID.String()),
	)
	return nil
}

// Count returns the number of registrations for eventID.
func (l *Ledger) Count(ctx context.Context, eventID uuid.UUID) (int, error) {
	return l.store.Count(ctx, eventID)
}

// IsRegistered reports whether userID holds a registration for eventID.
func (l *Ledger) IsRegistered(ctx context.Context, eventID, userID uuid.UUID) (bool, error) {
	return l.store.IsRegistered(ctx, eventID, userID)
}

// ListByEvent returns all registrations for an event. Admin only.
func (l *Ledger) ListByEvent(ctx context.Context, identity authz.Identity, eventID uuid.UUID) ([]models.Registration, error) {
	if !identity.IsAdmin() {
		return nil, apperr.Forbiddenf("admin role required")
	}
	return l.store.ListByEvent(ctx, eventID)
}

// ListByUser returns the identity's own registrations.
func (l *Ledger) ListByUser(ctx context.Context, identity authz.Identity) ([]models.Registration, error) {
	if !identity.Valid() {
		return nil, apperr.Forbiddenf("unauthenticated identity")
	}
	return l.store.ListByUser(ctx, identity.UserID)
}

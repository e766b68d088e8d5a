package models

import (
	"time"

	"github.com/google/uuid"
)

// Registration links one user to one event. The (event_id, user_id) pair is
// unique; rows are created by the ledger's register operation and removed
// only by cancellation or event deletion.
type Registration struct {
	ID        uuid.UUID `json:"id"`
	EventID   uuid.UUID `json:"event_id"`
	UserID    uuid.UUID `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

package registrations

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gatherspot/backend/internal/models"
	"github.com/gatherspot/backend/pkg/apperr"
	"github.com/gatherspot/backend/pkg/database"
)

// Repository implements Store on PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a registrations repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetEvent returns the event a registration targets.
func (r *Repository) GetEvent(ctx context.Context, eventID uuid.UUID) (*models.Event, error) {
	const q = `SELECT id, title, description, event_date, location, latitude, longitude, capacity, status, category, image_url, created_by, created_at, updated_at
		FROM events WHERE id = $1`
	var e models.Event
	err := r.pool.QueryRow(ctx, q, eventID).Scan(&e.ID, &e.Title, &e.Description, &e.EventDate, &e.Location,
		&e.Latitude, &e.Longitude, &e.Capacity, &e.Status, &e.Category, &e.ImageURL, &e.CreatedBy, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, database.WrapErr("get event", err)
	}
	return &e, nil
}

// Insert creates a registration inside a transaction that locks the event
// row. The SELECT ... FOR UPDATE serializes concurrent inserts for the same
// event across processes, so the duplicate and capacity re-checks here hold
// even when multiple server instances share the database.
func (r *Repository) Insert(ctx context.Context, eventID, userID uuid.UUID) (*models.Registration, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, database.WrapErr("begin", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	var capacity *int
	var status models.EventStatus
	err = tx.QueryRow(ctx, `SELECT capacity, status FROM events WHERE id = $1 FOR UPDATE`, eventID).
		Scan(&capacity, &status)
	if err != nil {
		return nil, database.WrapErr("lock event row", err)
	}
	if status != models.StatusUpcoming {
		err = apperr.ErrEventNotOpen
		return nil, err
	}

	var exists bool
	err = tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM registrations WHERE event_id = $1 AND user_id = $2)`, eventID, userID).
		Scan(&exists)
	if err != nil {
		return nil, database.WrapErr("check duplicate", err)
	}
	if exists {
		err = apperr.ErrAlreadyRegistered
		return nil, err
	}

	if capacity != nil {
		var count int
		err = tx.QueryRow(ctx, `SELECT COUNT(*) FROM registrations WHERE event_id = $1`, eventID).Scan(&count)
		if err != nil {
			return nil, database.WrapErr("count registrations", err)
		}
		if count >= *capacity {
			err = apperr.ErrEventFull
			return nil, err
		}
	}

	reg := &models.Registration{EventID: eventID, UserID: userID}
	err = tx.QueryRow(ctx, `INSERT INTO registrations (event_id, user_id) VALUES ($1, $2) RETURNING id, created_at`, eventID, userID).
		Scan(&reg.ID, &reg.CreatedAt)
	if err != nil {
		// The duplicate check above ran under the event lock, so a unique
		// violation here means the store no longer matches the ledger's view.
		if database.IsUniqueViolation(err) {
			err = fmt.Errorf("%w: duplicate registration for event %s user %s", apperr.ErrStoreCorrupted, eventID, userID)
			return nil, err
		}
		return nil, database.WrapErr("insert registration", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, database.WrapErr("commit", err)
	}
	return reg, nil
}

// Delete removes the registration for (eventID, userID). Returns
// apperr.ErrNotFound when no row matched.
func (r *Repository) Delete(ctx context.Context, eventID, userID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM registrations WHERE event_id = $1 AND user_id = $2`, eventID, userID)
	if err != nil {
		return database.WrapErr("delete registration", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

// Count returns the registration count for an event.
func (r *Repository) Count(ctx context.Context, eventID uuid.UUID) (int, error) {
	var n int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM registrations WHERE event_id = $1`, eventID).Scan(&n); err != nil {
		return 0, database.WrapErr("count registrations", err)
	}
	return n, nil
}

// IsRegistered reports whether the (event, user) pair has a registration.
func (r *Repository) IsRegistered(ctx context.Context, eventID, userID uuid.UUID) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM registrations WHERE event_id = $1 AND user_id = $2)`, eventID, userID).
		Scan(&exists)
	if err != nil {
		return false, database.WrapErr("check registration", err)
	}
	return exists, nil
}

// ListByEvent returns all registrations for an event, oldest first.
func (r *Repository) ListByEvent(ctx context.Context, eventID uuid.UUID) ([]models.Registration, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, event_id, user_id, created_at FROM registrations WHERE event_id = $1 ORDER BY created_at ASC`, eventID)
	if err != nil {
		return nil, database.WrapErr("list by event", err)
	}
	defer rows.Close()
	return scanRegistrations(rows)
}

// ListByUser returns all of a user's registrations, newest first.
func (r *Repository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Registration, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, event_id, user_id, created_at FROM registrations WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, database.WrapErr("list by user", err)
	}
	defer rows.Close()
	return scanRegistrations(rows)
}

func scanRegistrations(rows pgx.Rows) ([]models.Registration, error) {
	var list []models.Registration
	for rows.Next() {
		var reg models.Registration
		if err := rows.Scan(&reg.ID, &reg.EventID, &reg.UserID, &reg.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan registration: %w", err)
		}
		list = append(list, reg)
	}
	return list, rows.Err()
}

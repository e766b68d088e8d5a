package events

import (
	"context"
	"strconv"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gatherspot/backend/internal/models"
	"github.com/gatherspot/backend/pkg/apperr"
	"github.com/gatherspot/backend/pkg/database"
)

const eventColumns = `id, title, description, event_date, location, latitude, longitude, capacity, status, category, image_url, created_by, created_at, updated_at`

// Repository implements Store on PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an events repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Insert creates a new event row and fills the generated fields.
func (r *Repository) Insert(ctx context.Context, e *models.Event) error {
	const q = `INSERT INTO events (title, description, event_date, location, latitude, longitude, capacity, status, category, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at, updated_at`
	err := r.pool.QueryRow(ctx, q, e.Title, e.Description, e.EventDate, e.Location,
		e.Latitude, e.Longitude, e.Capacity, string(e.Status), e.Category, e.CreatedBy).
		Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt)
	return database.WrapErr("insert event", err)
}

// GetByID returns an event by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Event, error) {
	var e models.Event
	err := r.pool.QueryRow(ctx, `SELECT `+eventColumns+` FROM events WHERE id = $1`, id).
		Scan(&e.ID, &e.Title, &e.Description, &e.EventDate, &e.Location, &e.Latitude, &e.Longitude,
			&e.Capacity, &e.Status, &e.Category, &e.ImageURL, &e.CreatedBy, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, database.WrapErr("get event", err)
	}
	return &e, nil
}

// Update writes all mutable fields of an event.
func (r *Repository) Update(ctx context.Context, e *models.Event) error {
	const q = `UPDATE events SET
			title = $2, description = $3, event_date = $4, location = $5,
			latitude = $6, longitude = $7, capacity = $8, status = $9,
			category = $10, image_url = $11, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`
	err := r.pool.QueryRow(ctx, q, e.ID, e.Title, e.Description, e.EventDate, e.Location,
		e.Latitude, e.Longitude, e.Capacity, string(e.Status), e.Category, e.ImageURL).
		Scan(&e.UpdatedAt)
	return database.WrapErr("update event", err)
}

// Delete removes an event and its registrations in one transaction, so no
// orphaned registration rows remain.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return database.WrapErr("begin", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if _, err = tx.Exec(ctx, `DELETE FROM registrations WHERE event_id = $1`, id); err != nil {
		return database.WrapErr("delete registrations", err)
	}
	tag, err := tx.Exec(ctx, `DELETE FROM events WHERE id = $1`, id)
	if err != nil {
		return database.WrapErr("delete event", err)
	}
	if tag.RowsAffected() == 0 {
		err = apperr.ErrNotFound
		return err
	}
	if err = tx.Commit(ctx); err != nil {
		return database.WrapErr("commit", err)
	}
	return nil
}

// List returns events matching the filter, soonest first.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]models.Event, error) {
	q := `SELECT ` + eventColumns + ` FROM events`
	var args []interface{}
	var conds []string
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		conds = append(conds, "status = $"+strconv.Itoa(len(args)))
	}
	if filter.Category != "" {
		args = append(args, filter.Category)
		conds = append(conds, "category = $"+strconv.Itoa(len(args)))
	}
	if filter.CreatedBy != nil {
		args = append(args, *filter.CreatedBy)
		conds = append(conds, "created_by = $"+strconv.Itoa(len(args)))
	}
	for i, c := range conds {
		if i == 0 {
			q += " WHERE " + c
		} else {
			q += " AND " + c
		}
	}
	q += " ORDER BY event_date ASC"

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, database.WrapErr("list events", err)
	}
	defer rows.Close()

	var list []models.Event
	for rows.Next() {
		var e models.Event
		if err := rows.Scan(&e.ID, &e.Title, &e.Description, &e.EventDate, &e.Location, &e.Latitude, &e.Longitude,
			&e.Capacity, &e.Status, &e.Category, &e.ImageURL, &e.CreatedBy, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, database.WrapErr("scan event", err)
		}
		list = append(list, e)
	}
	return list, rows.Err()
}

// CountRegistrations returns the registration count for an event.
func (r *Repository) CountRegistrations(ctx context.Context, eventID uuid.UUID) (int, error) {
	var n int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM registrations WHERE event_id = $1`, eventID).Scan(&n); err != nil {
		return 0, database.WrapErr("count registrations", err)
	}
	return n, nil
}

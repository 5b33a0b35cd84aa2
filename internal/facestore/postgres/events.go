package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/grapic/facematch/internal/facestore"
)

const eventColumns = `id, owner_id, name, description, created_at, expires_at,
       access_code, organizer_code, photo_count, processed_count, attendee_count`

func scanEvent(scanner interface{ Scan(...any) error }) (*facestore.Event, error) {
	var ev facestore.Event
	var expiresAt sql.NullTime

	err := scanner.Scan(
		&ev.ID,
		&ev.OwnerID,
		&ev.Name,
		&ev.Description,
		&ev.CreatedAt,
		&expiresAt,
		&ev.AccessCode,
		&ev.OrganizerCode,
		&ev.PhotoCount,
		&ev.ProcessedCount,
		&ev.AttendeeCount,
	)
	if err != nil {
		return nil, err
	}
	if expiresAt.Valid {
		t := expiresAt.Time
		ev.ExpiresAt = &t
	}
	return &ev, nil
}

func (s *Store) getEventWhere(ctx context.Context, where string, arg any) (*facestore.Event, error) {
	query := "SELECT " + eventColumns + " FROM events WHERE " + where
	ev, err := scanEvent(s.pool.QueryRow(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan event: %w", err)
	}
	return ev, nil
}

// GetEvent retrieves an event by id, returns nil if not found.
func (s *Store) GetEvent(ctx context.Context, id uuid.UUID) (*facestore.Event, error) {
	return s.getEventWhere(ctx, "id = $1", id)
}

// GetEventByAccessCode retrieves an event by attendee access code.
func (s *Store) GetEventByAccessCode(ctx context.Context, code string) (*facestore.Event, error) {
	return s.getEventWhere(ctx, "access_code = UPPER(TRIM($1))", code)
}

// GetEventByOrganizerCode retrieves an event by organizer code.
func (s *Store) GetEventByOrganizerCode(ctx context.Context, code string) (*facestore.Event, error) {
	return s.getEventWhere(ctx, "organizer_code = UPPER(TRIM($1))", code)
}

// EventsByOwner returns all events owned by the given identity, newest first.
func (s *Store) EventsByOwner(ctx context.Context, ownerID string) ([]facestore.Event, error) {
	query := "SELECT " + eventColumns + " FROM events WHERE owner_id = $1 ORDER BY created_at DESC, id"
	rows, err := s.pool.Query(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("query events by owner: %w", err)
	}
	defer rows.Close()

	var events []facestore.Event
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, *ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

// EventIDs returns the ids of all events.
func (s *Store) EventIDs(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := s.pool.Query(ctx, "SELECT id FROM events ORDER BY created_at, id")
	if err != nil {
		return nil, fmt.Errorf("query event ids: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan event id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate event ids: %w", err)
	}
	return ids, nil
}

// CreateEvent persists a new event.
func (s *Store) CreateEvent(ctx context.Context, ev *facestore.Event) error {
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now()
	}
	var expiresAt sql.NullTime
	if ev.ExpiresAt != nil {
		expiresAt = sql.NullTime{Time: *ev.ExpiresAt, Valid: true}
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO events (id, owner_id, name, description, created_at, expires_at,
		                    access_code, organizer_code, photo_count, processed_count, attendee_count)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 0, 0, 0)
	`,
		ev.ID,
		ev.OwnerID,
		ev.Name,
		ev.Description,
		ev.CreatedAt,
		expiresAt,
		ev.AccessCode,
		ev.OrganizerCode,
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// DeleteEvent removes an event and all its dependents. Photos, embeddings,
// and match records go with it through ON DELETE CASCADE, so the whole
// removal is one atomic statement.
func (s *Store) DeleteEvent(ctx context.Context, id uuid.UUID) (bool, error) {
	res, err := s.pool.Exec(ctx, "DELETE FROM events WHERE id = $1", id)
	if err != nil {
		return false, fmt.Errorf("delete event: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete event rows affected: %w", err)
	}
	return n > 0, nil
}

// DeleteExpiredEvents removes every event past its expiry, returning ids.
func (s *Store) DeleteExpiredEvents(ctx context.Context, now time.Time) ([]uuid.UUID, error) {
	rows, err := s.pool.Query(ctx, `
		DELETE FROM events
		WHERE expires_at IS NOT NULL AND expires_at < $1
		RETURNING id
	`, now)
	if err != nil {
		return nil, fmt.Errorf("delete expired events: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan deleted event id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate deleted event ids: %w", err)
	}
	return ids, nil
}

// IncrementAttendeeCount bumps the attendee usage counter.
func (s *Store) IncrementAttendeeCount(ctx context.Context, id uuid.UUID) error {
	res, err := s.pool.Exec(ctx, "UPDATE events SET attendee_count = attendee_count + 1 WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("increment attendee count: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("increment attendee count rows affected: %w", err)
	}
	if n == 0 {
		return facestore.ErrUnknownEvent
	}
	return nil
}

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

const photoColumns = `id, seq, event_id, filename, original_name, file_size,
       width, height, face_count, status, uploaded_at, processed_at, processing_ms`

func scanPhoto(scanner interface{ Scan(...any) error }) (*facestore.Photo, error) {
	var p facestore.Photo
	var status string
	var processedAt sql.NullTime
	var processingMS sql.NullInt64

	err := scanner.Scan(
		&p.ID,
		&p.Seq,
		&p.EventID,
		&p.Filename,
		&p.OriginalName,
		&p.FileSize,
		&p.Width,
		&p.Height,
		&p.FaceCount,
		&status,
		&p.UploadedAt,
		&processedAt,
		&processingMS,
	)
	if err != nil {
		return nil, err
	}
	p.Status = facestore.PhotoStatus(status)
	if processedAt.Valid {
		t := processedAt.Time
		p.ProcessedAt = &t
	}
	if processingMS.Valid {
		ms := processingMS.Int64
		p.ProcessingMS = &ms
	}
	return &p, nil
}

// GetPhoto retrieves a photo by id, returns nil if not found.
func (s *Store) GetPhoto(ctx context.Context, id uuid.UUID) (*facestore.Photo, error) {
	query := "SELECT " + photoColumns + " FROM photos WHERE id = $1"
	p, err := scanPhoto(s.pool.QueryRow(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan photo: %w", err)
	}
	return p, nil
}

// PhotosForEvent returns all photos for an event in upload order.
func (s *Store) PhotosForEvent(ctx context.Context, eventID uuid.UUID) ([]facestore.Photo, error) {
	query := "SELECT " + photoColumns + " FROM photos WHERE event_id = $1 ORDER BY seq"
	rows, err := s.pool.Query(ctx, query, eventID)
	if err != nil {
		return nil, fmt.Errorf("query photos: %w", err)
	}
	defer rows.Close()

	var photos []facestore.Photo
	for rows.Next() {
		p, err := scanPhoto(rows)
		if err != nil {
			return nil, fmt.Errorf("scan photo: %w", err)
		}
		photos = append(photos, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate photos: %w", err)
	}
	return photos, nil
}

// CreatePhoto persists a new photo and bumps the event photo counter.
func (s *Store) CreatePhoto(ctx context.Context, p *facestore.Photo) error {
	if p.Status == "" {
		p.Status = facestore.PhotoPending
	}
	if p.UploadedAt.IsZero() {
		p.UploadedAt = time.Now()
	}

	tx, err := s.pool.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, "UPDATE events SET photo_count = photo_count + 1 WHERE id = $1", p.EventID)
	if err != nil {
		return fmt.Errorf("bump photo count: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("bump photo count rows affected: %w", err)
	}
	if n == 0 {
		return facestore.ErrUnknownEvent
	}

	err = tx.QueryRowContext(ctx, `
		INSERT INTO photos (id, event_id, filename, original_name, file_size,
		                    width, height, face_count, status, uploaded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING seq
	`,
		p.ID,
		p.EventID,
		p.Filename,
		p.OriginalName,
		p.FileSize,
		p.Width,
		p.Height,
		p.FaceCount,
		string(p.Status),
		p.UploadedAt,
	).Scan(&p.Seq)
	if err != nil {
		return fmt.Errorf("insert photo: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit photo insert: %w", err)
	}
	return nil
}

// UpdatePhotoStatus records the outcome of pipeline processing. The first
// transition to done bumps the event's processed counter.
func (s *Store) UpdatePhotoStatus(ctx context.Context, id uuid.UUID, status facestore.PhotoStatus, faceCount int, processingMS *int64) error {
	tx, err := s.pool.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var eventID uuid.UUID
	var oldStatus string
	err = tx.QueryRowContext(ctx, "SELECT event_id, status FROM photos WHERE id = $1 FOR UPDATE", id).
		Scan(&eventID, &oldStatus)
	if errors.Is(err, sql.ErrNoRows) {
		return facestore.ErrUnknownPhoto
	}
	if err != nil {
		return fmt.Errorf("lock photo: %w", err)
	}

	var ms sql.NullInt64
	if processingMS != nil {
		ms = sql.NullInt64{Int64: *processingMS, Valid: true}
	}
	_, err = tx.ExecContext(ctx, `
		UPDATE photos SET status = $1, face_count = $2, processed_at = NOW(), processing_ms = $3
		WHERE id = $4
	`, string(status), faceCount, ms, id)
	if err != nil {
		return fmt.Errorf("update photo status: %w", err)
	}

	if status == facestore.PhotoDone && facestore.PhotoStatus(oldStatus) != facestore.PhotoDone {
		_, err = tx.ExecContext(ctx, "UPDATE events SET processed_count = processed_count + 1 WHERE id = $1", eventID)
		if err != nil {
			return fmt.Errorf("bump processed count: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit photo status: %w", err)
	}
	return nil
}

// DeletePhoto removes a photo and its embeddings, adjusting event counters.
func (s *Store) DeletePhoto(ctx context.Context, id uuid.UUID) (bool, error) {
	tx, err := s.pool.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	var eventID uuid.UUID
	var status string
	err = tx.QueryRowContext(ctx, "SELECT event_id, status FROM photos WHERE id = $1 FOR UPDATE", id).
		Scan(&eventID, &status)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("lock photo: %w", err)
	}

	// Embeddings go through ON DELETE CASCADE.
	if _, err := tx.ExecContext(ctx, "DELETE FROM photos WHERE id = $1", id); err != nil {
		return false, fmt.Errorf("delete photo: %w", err)
	}

	processedDelta := 0
	if facestore.PhotoStatus(status) == facestore.PhotoDone {
		processedDelta = 1
	}
	_, err = tx.ExecContext(ctx, `
		UPDATE events SET photo_count = photo_count - 1, processed_count = processed_count - $1
		WHERE id = $2
	`, processedDelta, eventID)
	if err != nil {
		return false, fmt.Errorf("adjust event counters: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit photo delete: %w", err)
	}
	return true, nil
}

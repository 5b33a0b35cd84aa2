package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"

	"github.com/grapic/facematch/internal/facestore"
	"github.com/grapic/facematch/internal/index"
)

// EmbeddingsForEvent returns every embedding for an event, ordered by photo
// upload order then embedding sequence.
func (s *Store) EmbeddingsForEvent(ctx context.Context, eventID uuid.UUID) ([]facestore.FaceEmbedding, error) {
	query := `
		SELECT e.id, e.seq, e.photo_id, e.event_id, e.embedding, e.bbox, e.created_at, p.seq
		FROM face_embeddings e
		JOIN photos p ON p.id = e.photo_id
		WHERE e.event_id = $1
		ORDER BY p.seq, e.seq
	`
	rows, err := s.pool.Query(ctx, query, eventID)
	if err != nil {
		return nil, fmt.Errorf("query embeddings: %w", err)
	}
	defer rows.Close()

	var embs []facestore.FaceEmbedding
	for rows.Next() {
		var e facestore.FaceEmbedding
		var vec pgvector.Vector
		var bbox pq.Float64Array

		err := rows.Scan(&e.ID, &e.Seq, &e.PhotoID, &e.EventID, &vec, &bbox, &e.CreatedAt, &e.PhotoSeq)
		if err != nil {
			return nil, fmt.Errorf("scan embedding: %w", err)
		}
		e.Vector = vec.Slice()
		if len(bbox) == 4 {
			e.BBox = facestore.BoundingBox{X: bbox[0], Y: bbox[1], W: bbox[2], H: bbox[3]}
		}
		embs = append(embs, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate embeddings: %w", err)
	}
	return embs, nil
}

// CountEmbeddings returns the number of embeddings for an event.
func (s *Store) CountEmbeddings(ctx context.Context, eventID uuid.UUID) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM face_embeddings WHERE event_id = $1", eventID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count embeddings: %w", err)
	}
	return count, nil
}

// InsertEmbedding appends one embedding. The vector dimension is checked
// before touching the database; referential checks ride on the photo lookup
// so a violation never leaves a partial write.
func (s *Store) InsertEmbedding(ctx context.Context, e *facestore.FaceEmbedding) error {
	if len(e.Vector) != facestore.EmbeddingDim {
		return fmt.Errorf("vector has %d dimensions, want %d: %w",
			len(e.Vector), facestore.EmbeddingDim, facestore.ErrDimensionMismatch)
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}

	var exists bool
	err := s.pool.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM events WHERE id = $1)", e.EventID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check event exists: %w", err)
	}
	if !exists {
		return facestore.ErrUnknownEvent
	}

	var photoSeq sql.NullInt64
	err = s.pool.QueryRow(ctx, "SELECT seq FROM photos WHERE id = $1 AND event_id = $2", e.PhotoID, e.EventID).
		Scan(&photoSeq)
	if errors.Is(err, sql.ErrNoRows) {
		return facestore.ErrUnknownPhoto
	}
	if err != nil {
		return fmt.Errorf("check photo exists: %w", err)
	}
	e.PhotoSeq = photoSeq.Int64

	bbox := pq.Array([]float64{e.BBox.X, e.BBox.Y, e.BBox.W, e.BBox.H})
	err = s.pool.QueryRow(ctx, `
		INSERT INTO face_embeddings (id, photo_id, event_id, embedding, bbox, created_at)
		VALUES ($1, $2, $3, $4::vector, $5, $6)
		RETURNING seq
	`,
		e.ID,
		e.PhotoID,
		e.EventID,
		pgvector.NewVector(e.Vector),
		bbox,
		e.CreatedAt,
	).Scan(&e.Seq)
	if err != nil {
		return fmt.Errorf("insert embedding: %w", err)
	}
	return nil
}

// DeleteEmbeddingsByPhoto removes all embeddings for a photo.
func (s *Store) DeleteEmbeddingsByPhoto(ctx context.Context, photoID uuid.UUID) (int, error) {
	res, err := s.pool.Exec(ctx, "DELETE FROM face_embeddings WHERE photo_id = $1", photoID)
	if err != nil {
		return 0, fmt.Errorf("delete embeddings by photo: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete embeddings rows affected: %w", err)
	}
	return int(n), nil
}

// DeleteEmbeddingsByEvent removes all embeddings for an event.
func (s *Store) DeleteEmbeddingsByEvent(ctx context.Context, eventID uuid.UUID) (int, error) {
	res, err := s.pool.Exec(ctx, "DELETE FROM face_embeddings WHERE event_id = $1", eventID)
	if err != nil {
		return 0, fmt.Errorf("delete embeddings by event: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete embeddings rows affected: %w", err)
	}
	return int(n), nil
}

// FindSimilar runs a durable-side similarity search with cosine distance,
// filtered to one event. It backs maintenance tooling and serves as a
// cross-check for the in-memory path.
func (s *Store) FindSimilar(ctx context.Context, eventID uuid.UUID, embedding []float32, threshold float64, limit int) ([]facestore.FaceEmbedding, []float64, error) {
	if len(embedding) != facestore.EmbeddingDim {
		return nil, nil, facestore.ErrDimensionMismatch
	}

	query := `
		SELECT e.id, e.seq, e.photo_id, e.event_id, e.embedding, e.bbox, e.created_at, p.seq,
		       1 - (e.embedding <=> $2::vector) AS similarity
		FROM face_embeddings e
		JOIN photos p ON p.id = e.photo_id
		WHERE e.event_id = $1 AND 1 - (e.embedding <=> $2::vector) >= $3
		ORDER BY e.embedding <=> $2::vector, p.seq
		LIMIT $4
	`
	vec := pgvector.NewVector(embedding)
	rows, err := s.pool.Query(ctx, query, eventID, vec, threshold, limit)
	if err != nil {
		return nil, nil, fmt.Errorf("query similar embeddings: %w", err)
	}
	defer rows.Close()

	var embs []facestore.FaceEmbedding
	var sims []float64
	for rows.Next() {
		var e facestore.FaceEmbedding
		var v pgvector.Vector
		var bbox pq.Float64Array
		var sim float64

		err := rows.Scan(&e.ID, &e.Seq, &e.PhotoID, &e.EventID, &v, &bbox, &e.CreatedAt, &e.PhotoSeq, &sim)
		if err != nil {
			return nil, nil, fmt.Errorf("scan similar embedding: %w", err)
		}
		e.Vector = v.Slice()
		if len(bbox) == 4 {
			e.BBox = facestore.BoundingBox{X: bbox[0], Y: bbox[1], W: bbox[2], H: bbox[3]}
		}
		embs = append(embs, e)
		sims = append(sims, sim)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate similar embeddings: %w", err)
	}
	return embs, sims, nil
}

// EnsureVectorIndex retunes the ivfflat index to roughly sqrt(total rows)
// partitions. Run from the reindex command after large ingests.
func (s *Store) EnsureVectorIndex(ctx context.Context) (int, error) {
	var total int
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM face_embeddings").Scan(&total); err != nil {
		return 0, fmt.Errorf("count embeddings for reindex: %w", err)
	}

	lists := index.IVFLists(total)
	if _, err := s.pool.Exec(ctx, "DROP INDEX IF EXISTS idx_face_embeddings_vector"); err != nil {
		return 0, fmt.Errorf("drop vector index: %w", err)
	}
	stmt := fmt.Sprintf(`
		CREATE INDEX idx_face_embeddings_vector ON face_embeddings
		USING ivfflat (embedding vector_cosine_ops) WITH (lists = %d)
	`, lists)
	if _, err := s.pool.Exec(ctx, stmt); err != nil {
		return 0, fmt.Errorf("create vector index: %w", err)
	}
	return lists, nil
}

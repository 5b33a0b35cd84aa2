package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/grapic/facematch/internal/facestore"
)

// RecordMatch appends one match record.
func (s *Store) RecordMatch(ctx context.Context, m *facestore.MatchRecord) error {
	if m.MatchedAt.IsZero() {
		m.MatchedAt = time.Now()
	}

	var metadata any
	if len(m.Metadata) > 0 {
		b, err := json.Marshal(m.Metadata)
		if err != nil {
			return fmt.Errorf("marshal match metadata: %w", err)
		}
		metadata = b
	}

	var feedback sql.NullString
	if m.Feedback != "" {
		feedback = sql.NullString{String: m.Feedback, Valid: true}
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO match_history (id, event_id, photo_id, similarity, threshold_used,
		                           matched_at, requester_id, feedback, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`,
		m.ID,
		m.EventID,
		m.PhotoID,
		m.Similarity,
		m.ThresholdUsed,
		m.MatchedAt,
		m.RequesterID,
		feedback,
		metadata,
	)
	if err != nil {
		if fkErr := fkViolation(err); fkErr != nil {
			return fkErr
		}
		return fmt.Errorf("insert match record: %w", err)
	}
	return nil
}

// fkViolation maps a foreign key violation to the unknown-reference
// sentinel for the constraint that fired, or nil for any other error.
func fkViolation(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code != "23503" {
		return nil
	}
	if strings.Contains(pqErr.Constraint, "event") {
		return facestore.ErrUnknownEvent
	}
	return facestore.ErrUnknownPhoto
}

// SimilarityDistribution buckets the event's matches into the fixed
// confidence bands, non-empty bands only, highest first.
func (s *Store) SimilarityDistribution(ctx context.Context, eventID uuid.UUID) ([]facestore.SimilarityBand, error) {
	query := `
		SELECT CASE
		           WHEN similarity >= 0.90 THEN '0.90-1.00'
		           WHEN similarity >= 0.70 THEN '0.70-0.89'
		           WHEN similarity >= 0.50 THEN '0.50-0.69'
		           WHEN similarity >= 0.40 THEN '0.40-0.49'
		           ELSE '0.00-0.39'
		       END AS band,
		       COUNT(*) AS matches
		FROM match_history
		WHERE event_id = $1
		GROUP BY band
		ORDER BY MIN(similarity) DESC
	`
	rows, err := s.pool.Query(ctx, query, eventID)
	if err != nil {
		return nil, fmt.Errorf("query similarity distribution: %w", err)
	}
	defer rows.Close()

	lowByLabel := make(map[string]float64, len(facestore.Bands))
	for _, b := range facestore.Bands {
		lowByLabel[b.Label] = b.Low
	}

	var bands []facestore.SimilarityBand
	for rows.Next() {
		var b facestore.SimilarityBand
		if err := rows.Scan(&b.Label, &b.Count); err != nil {
			return nil, fmt.Errorf("scan distribution band: %w", err)
		}
		b.Low = lowByLabel[b.Label]
		bands = append(bands, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate distribution bands: %w", err)
	}
	return bands, nil
}

// SimilarityStats returns mean/median/min/max/count over the event's
// matches. The median uses percentile_cont, linearly interpolated.
func (s *Store) SimilarityStats(ctx context.Context, eventID uuid.UUID) (*facestore.SimilarityStats, error) {
	query := `
		SELECT COALESCE(AVG(similarity), 0),
		       COALESCE(PERCENTILE_CONT(0.5) WITHIN GROUP (ORDER BY similarity), 0),
		       COALESCE(MIN(similarity), 0),
		       COALESCE(MAX(similarity), 0),
		       COUNT(*)
		FROM match_history
		WHERE event_id = $1
	`
	var st facestore.SimilarityStats
	err := s.pool.QueryRow(ctx, query, eventID).
		Scan(&st.Mean, &st.Median, &st.Min, &st.Max, &st.TotalMatches)
	if err != nil {
		return nil, fmt.Errorf("query similarity stats: %w", err)
	}
	return &st, nil
}

// FalsePositiveEstimate returns the share of matches below lowThreshold as
// a percentage rounded to 2 decimals.
func (s *Store) FalsePositiveEstimate(ctx context.Context, eventID uuid.UUID, lowThreshold float64) (*facestore.FalsePositiveEstimate, error) {
	query := `
		SELECT COUNT(*), COUNT(*) FILTER (WHERE similarity < $2)
		FROM match_history
		WHERE event_id = $1
	`
	var est facestore.FalsePositiveEstimate
	err := s.pool.QueryRow(ctx, query, eventID, lowThreshold).
		Scan(&est.TotalMatches, &est.LowConfidenceMatches)
	if err != nil {
		return nil, fmt.Errorf("query false positive estimate: %w", err)
	}
	if est.TotalMatches > 0 {
		pct := float64(est.LowConfidenceMatches) / float64(est.TotalMatches) * 100
		est.EstimatePct = math.Round(pct*100) / 100
	}
	return &est, nil
}

// LastMatchAt returns the timestamp of the event's most recent match.
func (s *Store) LastMatchAt(ctx context.Context, eventID uuid.UUID) (*time.Time, error) {
	var last sql.NullTime
	err := s.pool.QueryRow(ctx, "SELECT MAX(matched_at) FROM match_history WHERE event_id = $1", eventID).
		Scan(&last)
	if err != nil {
		return nil, fmt.Errorf("query last match time: %w", err)
	}
	if !last.Valid {
		return nil, nil
	}
	t := last.Time
	return &t, nil
}

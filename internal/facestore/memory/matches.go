package memory

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/grapic/facematch/internal/facestore"
)

// RecordMatch appends one match record. Append-only; existing records are
// never rewritten.
func (s *Store) RecordMatch(ctx context.Context, m *facestore.MatchRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.events[m.EventID]; !ok {
		return facestore.ErrUnknownEvent
	}
	photo, ok := s.photos[m.PhotoID]
	if !ok || photo.EventID != m.EventID {
		return facestore.ErrUnknownPhoto
	}

	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	if m.MatchedAt.IsZero() {
		m.MatchedAt = s.Now()
	}
	s.matches[m.EventID] = append(s.matches[m.EventID], *m)
	return nil
}

// SimilarityDistribution buckets the event's matches into the five fixed
// confidence bands, non-empty bands only, highest band first.
func (s *Store) SimilarityDistribution(ctx context.Context, eventID uuid.UUID) ([]facestore.SimilarityBand, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make([]int64, len(facestore.Bands))
	for _, m := range s.matches[eventID] {
		counts[facestore.BandIndex(m.Similarity)]++
	}

	var out []facestore.SimilarityBand
	for i, def := range facestore.Bands {
		if counts[i] == 0 {
			continue
		}
		out = append(out, facestore.SimilarityBand{Label: def.Label, Low: def.Low, Count: counts[i]})
	}
	return out, nil
}

// SimilarityStats returns mean/median/min/max/count over all recorded
// matches for the event.
func (s *Store) SimilarityStats(ctx context.Context, eventID uuid.UUID) (*facestore.SimilarityStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := s.matches[eventID]
	stats := &facestore.SimilarityStats{TotalMatches: int64(len(records))}
	if len(records) == 0 {
		return stats, nil
	}

	sims := make([]float64, len(records))
	var sum float64
	for i, m := range records {
		sims[i] = m.Similarity
		sum += m.Similarity
	}
	sort.Float64s(sims)

	stats.Mean = sum / float64(len(sims))
	stats.Min = sims[0]
	stats.Max = sims[len(sims)-1]
	stats.Median = median(sims)
	return stats, nil
}

// median computes the 50th percentile with linear interpolation, matching
// SQL percentile_cont(0.5).
func median(sorted []float64) float64 {
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// FalsePositiveEstimate returns the share of matches below lowThreshold as
// a percentage rounded to 2 decimals, with the raw counts used.
func (s *Store) FalsePositiveEstimate(ctx context.Context, eventID uuid.UUID, lowThreshold float64) (*facestore.FalsePositiveEstimate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	est := &facestore.FalsePositiveEstimate{}
	for _, m := range s.matches[eventID] {
		est.TotalMatches++
		if m.Similarity < lowThreshold {
			est.LowConfidenceMatches++
		}
	}
	if est.TotalMatches > 0 {
		pct := float64(est.LowConfidenceMatches) / float64(est.TotalMatches) * 100
		est.EstimatePct = math.Round(pct*100) / 100
	}
	return est, nil
}

// LastMatchAt returns the timestamp of the event's most recent match.
func (s *Store) LastMatchAt(ctx context.Context, eventID uuid.UUID) (*time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var last *time.Time
	for _, m := range s.matches[eventID] {
		if last == nil || m.MatchedAt.After(*last) {
			t := m.MatchedAt
			last = &t
		}
	}
	return last, nil
}

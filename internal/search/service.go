// Package search implements similarity search over an event's face
// embeddings: validate, authorize, gather candidates (ANN index or exact
// scan), re-rank with exact cosine similarity, and return photo-level
// matches in deterministic order.
package search

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/grapic/facematch/internal/facestore"
	"github.com/grapic/facematch/internal/index"
	"github.com/grapic/facematch/internal/observability"
	"github.com/grapic/facematch/internal/tenancy"
)

// Match is one result: a photo the queried face likely appears in.
// Similarity is exact cosine similarity of the best matching face in the
// photo, not the index's approximation.
type Match struct {
	PhotoID    uuid.UUID
	PhotoSeq   int64
	Similarity float64
	BBox       facestore.BoundingBox
}

// Options tune one search. Zero Limit means the default; Threshold must be
// set explicitly, use DefaultOptions for the standard configuration.
type Options struct {
	Threshold float64
	Limit     int
}

// DefaultOptions returns the standard search configuration.
func DefaultOptions() Options {
	return Options{
		Threshold: facestore.DefaultThreshold,
		Limit:     facestore.DefaultSearchLimit,
	}
}

// Service runs similarity searches. Reads only; recording search outcomes
// is the analytics recorder's job.
type Service struct {
	events facestore.EventReader
	embs   facestore.EmbeddingReader
	idx    *index.Manager
}

// NewService creates a search Service.
func NewService(events facestore.EventReader, embs facestore.EmbeddingReader, idx *index.Manager) *Service {
	return &Service{events: events, embs: embs, idx: idx}
}

// Search finds photos in the event whose faces are similar to the query
// embedding. Results carry similarity >= opts.Threshold, one entry per
// photo (best face wins), ordered by similarity descending and photo
// upload order ascending. An event with no embeddings yields an empty
// result, not an error.
func (s *Service) Search(ctx context.Context, p tenancy.Principal, eventID uuid.UUID, query []float32, opts Options) ([]Match, error) {
	start := time.Now()

	if len(query) != facestore.EmbeddingDim {
		observability.SearchErrors.WithLabelValues("dimension").Inc()
		return nil, fmt.Errorf("query has %d dimensions, want %d: %w", len(query), facestore.EmbeddingDim, facestore.ErrDimensionMismatch)
	}
	if opts.Threshold < 0 || opts.Threshold > 1 {
		observability.SearchErrors.WithLabelValues("threshold").Inc()
		return nil, fmt.Errorf("threshold %v outside [0, 1]: %w", opts.Threshold, facestore.ErrInvalidThreshold)
	}
	limit := opts.Limit
	if limit <= 0 || limit > facestore.DefaultSearchLimit {
		limit = facestore.DefaultSearchLimit
	}

	ev, err := s.events.GetEvent(ctx, eventID)
	if err != nil {
		observability.SearchErrors.WithLabelValues("store").Inc()
		return nil, mapCtxErr(err)
	}
	if ev == nil {
		observability.SearchErrors.WithLabelValues("unknown_event").Inc()
		return nil, facestore.ErrUnknownEvent
	}
	if err := tenancy.Authorize(p, tenancy.ActionSearch, tenancy.Resource{EventID: ev.ID, OwnerID: ev.OwnerID}); err != nil {
		observability.SearchErrors.WithLabelValues("unauthorized").Inc()
		return nil, err
	}

	candidates, source, err := s.candidates(ctx, eventID, query, limit)
	if err != nil {
		observability.SearchErrors.WithLabelValues("store").Inc()
		return nil, mapCtxErr(err)
	}
	if err := ctx.Err(); err != nil {
		observability.SearchErrors.WithLabelValues("timeout").Inc()
		return nil, mapCtxErr(err)
	}

	matches := rank(candidates, query, opts.Threshold, limit)

	observability.SearchDuration.WithLabelValues(source).Observe(time.Since(start).Seconds())
	observability.SearchMatches.Observe(float64(len(matches)))
	return matches, nil
}

// candidates returns the embeddings to re-rank and the source label. The
// index serves large events; small events and events whose first index
// build is still in flight fall back to an exact scan of the full set.
func (s *Service) candidates(ctx context.Context, eventID uuid.UUID, query []float32, limit int) ([]facestore.FaceEmbedding, string, error) {
	k := limit * facestore.HNSWSearchMultiplier
	cands, served, err := s.idx.Candidates(ctx, eventID, query, k)
	if err != nil {
		return nil, "", err
	}
	if served {
		return cands, "index", nil
	}

	observability.FallbackScans.Inc()
	all, err := s.embs.EmbeddingsForEvent(ctx, eventID)
	if err != nil {
		return nil, "", err
	}
	return all, "scan", nil
}

// rank computes exact similarities, filters by threshold, keeps the best
// face per photo, and orders the result deterministically.
func rank(candidates []facestore.FaceEmbedding, query []float32, threshold float64, limit int) []Match {
	best := make(map[uuid.UUID]Match, len(candidates))
	for i := range candidates {
		e := &candidates[i]
		sim := facestore.Similarity(query, e.Vector)
		if sim < threshold {
			continue
		}
		if prev, ok := best[e.PhotoID]; ok && prev.Similarity >= sim {
			continue
		}
		best[e.PhotoID] = Match{
			PhotoID:    e.PhotoID,
			PhotoSeq:   e.PhotoSeq,
			Similarity: sim,
			BBox:       e.BBox,
		}
	}

	matches := make([]Match, 0, len(best))
	for _, m := range best {
		matches = append(matches, m)
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Similarity != matches[j].Similarity {
			return matches[i].Similarity > matches[j].Similarity
		}
		return matches[i].PhotoSeq < matches[j].PhotoSeq
	})

	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches
}

// mapCtxErr folds context cancellation into the service error taxonomy.
func mapCtxErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("search aborted: %w", facestore.ErrTimeout)
	}
	return err
}

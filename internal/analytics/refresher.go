package analytics

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/grapic/facematch/internal/facestore"
	"github.com/grapic/facematch/internal/observability"
)

// Refresher maintains the in-memory analytics snapshots. A refresh builds a
// complete replacement map off to the side and swaps it in atomically, so
// concurrent readers always see a whole generation.
type Refresher struct {
	matches facestore.MatchReader
	events  facestore.EventReader

	refreshing sync.Mutex
	current    atomic.Pointer[map[uuid.UUID]EventAggregate]

	// Now is swappable for tests.
	Now func() time.Time
}

// NewRefresher creates a Refresher with an empty initial snapshot.
func NewRefresher(matches facestore.MatchReader, events facestore.EventReader) *Refresher {
	r := &Refresher{
		matches: matches,
		events:  events,
		Now:     time.Now,
	}
	empty := make(map[uuid.UUID]EventAggregate)
	r.current.Store(&empty)
	return r
}

// Snapshot returns the current aggregate for an event, or nil when the
// event has not been aggregated yet.
func (r *Refresher) Snapshot(eventID uuid.UUID) *EventAggregate {
	m := *r.current.Load()
	if agg, ok := m[eventID]; ok {
		return &agg
	}
	return nil
}

// RefreshedAt returns when the current generation was built, or the zero
// time before the first refresh.
func (r *Refresher) RefreshedAt() time.Time {
	var latest time.Time
	for _, agg := range *r.current.Load() {
		if agg.RefreshedAt.After(latest) {
			latest = agg.RefreshedAt
		}
	}
	return latest
}

// Refresh rebuilds every event's aggregate and swaps the snapshot. Only one
// refresh runs at a time; a concurrent caller gets ErrRefreshInProgress and
// keeps serving the previous generation, which stays fully consistent.
func (r *Refresher) Refresh(ctx context.Context) error {
	if !r.refreshing.TryLock() {
		observability.AggregateRefreshes.WithLabelValues("in_progress").Inc()
		return facestore.ErrRefreshInProgress
	}
	defer r.refreshing.Unlock()

	ids, err := r.events.EventIDs(ctx)
	if err != nil {
		observability.AggregateRefreshes.WithLabelValues("error").Inc()
		return fmt.Errorf("listing events: %w", err)
	}

	now := r.Now()
	next := make(map[uuid.UUID]EventAggregate, len(ids))
	for _, id := range ids {
		agg, err := r.aggregateEvent(ctx, id, now)
		if err != nil {
			observability.AggregateRefreshes.WithLabelValues("error").Inc()
			return fmt.Errorf("aggregating event %s: %w", id, err)
		}
		next[id] = agg
	}

	r.current.Store(&next)
	observability.AggregateRefreshes.WithLabelValues("ok").Inc()
	return nil
}

func (r *Refresher) aggregateEvent(ctx context.Context, eventID uuid.UUID, now time.Time) (EventAggregate, error) {
	bands, err := r.matches.SimilarityDistribution(ctx, eventID)
	if err != nil {
		return EventAggregate{}, err
	}
	stats, err := r.matches.SimilarityStats(ctx, eventID)
	if err != nil {
		return EventAggregate{}, err
	}
	fp, err := r.matches.FalsePositiveEstimate(ctx, eventID, facestore.LowConfidenceThreshold)
	if err != nil {
		return EventAggregate{}, err
	}
	last, err := r.matches.LastMatchAt(ctx, eventID)
	if err != nil {
		return EventAggregate{}, err
	}
	return buildAggregate(eventID, bands, stats, fp, last, now), nil
}

// Start runs periodic refreshes until the context is cancelled. An initial
// refresh runs immediately so the service does not serve empty snapshots
// for a whole interval after boot.
func (r *Refresher) Start(ctx context.Context, interval time.Duration) {
	if err := r.Refresh(ctx); err != nil {
		log.Printf("analytics: initial refresh failed: %v", err)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.Refresh(ctx); err != nil && err != facestore.ErrRefreshInProgress {
				log.Printf("analytics: periodic refresh failed: %v", err)
			}
		}
	}
}

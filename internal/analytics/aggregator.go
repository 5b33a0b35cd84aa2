package analytics

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/grapic/facematch/internal/facestore"
	"github.com/grapic/facematch/internal/tenancy"
)

// Aggregator exposes the analytics read operations over match records,
// scoped to one event and gated by the tenancy layer.
type Aggregator struct {
	matches facestore.MatchReader
	events  facestore.EventReader
}

// NewAggregator creates an Aggregator over the given store.
func NewAggregator(matches facestore.MatchReader, events facestore.EventReader) *Aggregator {
	return &Aggregator{matches: matches, events: events}
}

func (a *Aggregator) authorize(ctx context.Context, p tenancy.Principal, eventID uuid.UUID) error {
	ev, err := a.events.GetEvent(ctx, eventID)
	if err != nil {
		return fmt.Errorf("loading event: %w", err)
	}
	if ev == nil {
		return facestore.ErrUnknownEvent
	}
	return tenancy.Authorize(p, tenancy.ActionReadAnalytics, tenancy.Resource{EventID: ev.ID, OwnerID: ev.OwnerID})
}

// SimilarityDistribution returns the event's confidence band counts,
// non-empty bands only, highest band first.
func (a *Aggregator) SimilarityDistribution(ctx context.Context, p tenancy.Principal, eventID uuid.UUID) ([]facestore.SimilarityBand, error) {
	if err := a.authorize(ctx, p, eventID); err != nil {
		return nil, err
	}
	return a.matches.SimilarityDistribution(ctx, eventID)
}

// SimilarityStats returns mean/median/min/max/total over the event's
// recorded matches.
func (a *Aggregator) SimilarityStats(ctx context.Context, p tenancy.Principal, eventID uuid.UUID) (*facestore.SimilarityStats, error) {
	if err := a.authorize(ctx, p, eventID); err != nil {
		return nil, err
	}
	return a.matches.SimilarityStats(ctx, eventID)
}

// FalsePositiveEstimate returns the heuristic accuracy proxy for the
// event: the share of matches below lowThreshold, as a percentage. This is
// an estimate standing in for real user feedback, not ground truth.
func (a *Aggregator) FalsePositiveEstimate(ctx context.Context, p tenancy.Principal, eventID uuid.UUID, lowThreshold float64) (*facestore.FalsePositiveEstimate, error) {
	if err := a.authorize(ctx, p, eventID); err != nil {
		return nil, err
	}
	if lowThreshold <= 0 {
		lowThreshold = facestore.LowConfidenceThreshold
	}
	return a.matches.FalsePositiveEstimate(ctx, eventID, lowThreshold)
}

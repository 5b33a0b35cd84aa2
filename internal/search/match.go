package search

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/grapic/facematch/internal/facestore"
	"github.com/grapic/facematch/internal/tenancy"
)

// MatchRecorder appends one analytics fact per returned match.
type MatchRecorder interface {
	Record(ctx context.Context, p tenancy.Principal, rec *facestore.MatchRecord) error
}

// Matcher runs a search and records its outcome. Recording and usage
// counters are strictly best-effort: the user gets their matches even when
// the analytics write path is down.
type Matcher struct {
	search   *Service
	events   facestore.EventWriter
	recorder MatchRecorder

	// Now is swappable for tests.
	Now func() time.Time
}

// NewMatcher creates a Matcher.
func NewMatcher(search *Service, events facestore.EventWriter, recorder MatchRecorder) *Matcher {
	return &Matcher{
		search:   search,
		events:   events,
		recorder: recorder,
		Now:      time.Now,
	}
}

// SearchAndRecord searches and then records every returned match plus the
// attendee counter bump. The search result is returned regardless of
// recording outcome; failures are logged and counted, never surfaced.
func (m *Matcher) SearchAndRecord(ctx context.Context, p tenancy.Principal, eventID uuid.UUID, query []float32, opts Options) ([]Match, error) {
	matches, err := m.search.Search(ctx, p, eventID, query, opts)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return matches, nil
	}

	now := m.Now()
	requester := requesterID(p)
	for _, match := range matches {
		rec := &facestore.MatchRecord{
			ID:            uuid.New(),
			EventID:       eventID,
			PhotoID:       match.PhotoID,
			Similarity:    match.Similarity,
			ThresholdUsed: opts.Threshold,
			MatchedAt:     now,
			RequesterID:   requester,
		}
		// Recorded under the service principal: the attendee is allowed
		// to search, the system writes the telemetry on their behalf.
		if err := m.recorder.Record(ctx, tenancy.ServicePrincipal{}, rec); err != nil {
			log.Printf("search: recording match for photo %s: %v", match.PhotoID, err)
		}
	}

	if err := m.events.IncrementAttendeeCount(ctx, eventID); err != nil {
		log.Printf("search: bumping attendee count for event %s: %v", eventID, err)
	}
	return matches, nil
}

func requesterID(p tenancy.Principal) string {
	if owner, ok := p.(tenancy.Owner); ok {
		return owner.UserID
	}
	return ""
}

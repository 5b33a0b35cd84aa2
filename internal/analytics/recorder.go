// Package analytics records search outcomes and aggregates them into
// per-event accuracy metrics. Recording is best-effort telemetry on the
// write side; all reads run over append-only facts or immutable snapshots.
package analytics

import (
	"context"
	"fmt"

	"github.com/grapic/facematch/internal/facestore"
	"github.com/grapic/facematch/internal/observability"
	"github.com/grapic/facematch/internal/tenancy"
)

// Recorder appends match records. Every returned match is recorded,
// unsampled: the false-positive estimator needs the full similarity
// distribution, including low-confidence matches near the threshold.
type Recorder struct {
	matches facestore.MatchWriter
	events  facestore.EventReader
}

// NewRecorder creates a Recorder over the given store.
func NewRecorder(matches facestore.MatchWriter, events facestore.EventReader) *Recorder {
	return &Recorder{matches: matches, events: events}
}

// Record appends one match record. It fails only on authorization or
// referential violation; callers on the search path treat failures as
// reportable, never as a reason to drop the user-facing response.
func (r *Recorder) Record(ctx context.Context, p tenancy.Principal, rec *facestore.MatchRecord) error {
	ev, err := r.events.GetEvent(ctx, rec.EventID)
	if err != nil {
		return fmt.Errorf("loading event: %w", err)
	}
	if ev == nil {
		return facestore.ErrUnknownEvent
	}
	if err := tenancy.Authorize(p, tenancy.ActionRecordMatch, tenancy.Resource{EventID: ev.ID, OwnerID: ev.OwnerID}); err != nil {
		return err
	}

	if err := r.matches.RecordMatch(ctx, rec); err != nil {
		observability.RecordFailures.Inc()
		return fmt.Errorf("recording match: %w", err)
	}
	return nil
}

package analytics

import (
	"context"
	"errors"
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/grapic/facematch/internal/facestore"
	"github.com/grapic/facematch/internal/facestore/memory"
	"github.com/grapic/facematch/internal/tenancy"
)

func seedEvent(t *testing.T, store *memory.Store) (*facestore.Event, *facestore.Photo) {
	t.Helper()
	ctx := context.Background()
	ev := &facestore.Event{
		ID:            uuid.New(),
		OwnerID:       "owner-1",
		Name:          "Wedding",
		AccessCode:    facestore.NewCode(),
		OrganizerCode: facestore.NewCode(),
	}
	if err := store.CreateEvent(ctx, ev); err != nil {
		t.Fatalf("CreateEvent: %v", err)
	}
	photo := &facestore.Photo{ID: uuid.New(), EventID: ev.ID, Filename: "img.jpg"}
	if err := store.CreatePhoto(ctx, photo); err != nil {
		t.Fatalf("CreatePhoto: %v", err)
	}
	return ev, photo
}

func recordSim(t *testing.T, store *memory.Store, eventID, photoID uuid.UUID, sim float64, at time.Time) {
	t.Helper()
	rec := &facestore.MatchRecord{
		ID:            uuid.New(),
		EventID:       eventID,
		PhotoID:       photoID,
		Similarity:    sim,
		ThresholdUsed: facestore.DefaultThreshold,
		MatchedAt:     at,
	}
	if err := store.RecordMatch(context.Background(), rec); err != nil {
		t.Fatalf("RecordMatch(%f): %v", sim, err)
	}
}

func TestRecorder(t *testing.T) {
	store := memory.NewStore()
	ev, photo := seedEvent(t, store)
	recorder := NewRecorder(store, store)
	ctx := context.Background()

	rec := &facestore.MatchRecord{
		ID:         uuid.New(),
		EventID:    ev.ID,
		PhotoID:    photo.ID,
		Similarity: 0.8,
		MatchedAt:  time.Now(),
	}
	if err := recorder.Record(ctx, tenancy.ServicePrincipal{}, rec); err != nil {
		t.Fatalf("service record: %v", err)
	}

	stats, err := store.SimilarityStats(ctx, ev.ID)
	if err != nil {
		t.Fatalf("SimilarityStats: %v", err)
	}
	if stats.TotalMatches != 1 {
		t.Errorf("expected 1 recorded match, got %d", stats.TotalMatches)
	}

	t.Run("anonymous denied", func(t *testing.T) {
		rec := &facestore.MatchRecord{ID: uuid.New(), EventID: ev.ID, PhotoID: photo.ID, Similarity: 0.7}
		err := recorder.Record(ctx, tenancy.Anonymous{EventID: ev.ID}, rec)
		if !errors.Is(err, facestore.ErrUnauthorized) {
			t.Errorf("expected ErrUnauthorized, got %v", err)
		}
	})

	t.Run("unknown event", func(t *testing.T) {
		rec := &facestore.MatchRecord{ID: uuid.New(), EventID: uuid.New(), PhotoID: photo.ID, Similarity: 0.7}
		err := recorder.Record(ctx, tenancy.ServicePrincipal{}, rec)
		if !errors.Is(err, facestore.ErrUnknownEvent) {
			t.Errorf("expected ErrUnknownEvent, got %v", err)
		}
	})
}

func TestAggregator(t *testing.T) {
	store := memory.NewStore()
	ev, photo := seedEvent(t, store)
	ctx := context.Background()
	at := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

	// One match per band, two of five below the low-confidence threshold.
	for _, sim := range []float64{0.95, 0.85, 0.65, 0.45, 0.30} {
		recordSim(t, store, ev.ID, photo.ID, sim, at)
	}

	agg := NewAggregator(store, store)
	owner := tenancy.Owner{UserID: "owner-1"}

	t.Run("distribution", func(t *testing.T) {
		bands, err := agg.SimilarityDistribution(ctx, owner, ev.ID)
		if err != nil {
			t.Fatalf("SimilarityDistribution: %v", err)
		}
		if len(bands) != 5 {
			t.Fatalf("expected 5 bands, got %d", len(bands))
		}
		if bands[0].Label != "0.90-1.00" || bands[len(bands)-1].Label != "0.00-0.39" {
			t.Errorf("expected highest band first, got %s .. %s", bands[0].Label, bands[len(bands)-1].Label)
		}
		for _, b := range bands {
			if b.Count != 1 {
				t.Errorf("band %s: expected count 1, got %d", b.Label, b.Count)
			}
		}
	})

	t.Run("stats", func(t *testing.T) {
		stats, err := agg.SimilarityStats(ctx, owner, ev.ID)
		if err != nil {
			t.Fatalf("SimilarityStats: %v", err)
		}
		if stats.TotalMatches != 5 {
			t.Errorf("expected 5 matches, got %d", stats.TotalMatches)
		}
		if math.Abs(stats.Mean-0.64) > 1e-9 {
			t.Errorf("expected mean 0.64, got %f", stats.Mean)
		}
		if math.Abs(stats.Median-0.65) > 1e-9 {
			t.Errorf("expected median 0.65, got %f", stats.Median)
		}
		if stats.Min != 0.30 || stats.Max != 0.95 {
			t.Errorf("expected min 0.30 max 0.95, got %f / %f", stats.Min, stats.Max)
		}
	})

	t.Run("false positive estimate with default threshold", func(t *testing.T) {
		fp, err := agg.FalsePositiveEstimate(ctx, owner, ev.ID, 0)
		if err != nil {
			t.Fatalf("FalsePositiveEstimate: %v", err)
		}
		if fp.TotalMatches != 5 || fp.LowConfidenceMatches != 2 {
			t.Errorf("expected 2/5 low-confidence, got %d/%d", fp.LowConfidenceMatches, fp.TotalMatches)
		}
		if math.Abs(fp.EstimatePct-40.0) > 1e-9 {
			t.Errorf("expected 40.00%%, got %f", fp.EstimatePct)
		}
	})

	t.Run("attendee denied", func(t *testing.T) {
		attendee := tenancy.Anonymous{EventID: ev.ID}
		_, err := agg.SimilarityDistribution(ctx, attendee, ev.ID)
		if !errors.Is(err, facestore.ErrUnauthorized) {
			t.Errorf("expected ErrUnauthorized, got %v", err)
		}
	})

	t.Run("unknown event", func(t *testing.T) {
		_, err := agg.SimilarityStats(ctx, owner, uuid.New())
		if !errors.Is(err, facestore.ErrUnknownEvent) {
			t.Errorf("expected ErrUnknownEvent, got %v", err)
		}
	})
}

func TestRefresher(t *testing.T) {
	store := memory.NewStore()
	ev, photo := seedEvent(t, store)
	ctx := context.Background()

	first := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	last := time.Date(2026, 5, 1, 11, 0, 0, 0, time.UTC)
	recordSim(t, store, ev.ID, photo.ID, 0.95, first)
	recordSim(t, store, ev.ID, photo.ID, 0.45, last)

	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	r := NewRefresher(store, store)
	r.Now = func() time.Time { return now }

	if snap := r.Snapshot(ev.ID); snap != nil {
		t.Fatal("expected no snapshot before the first refresh")
	}

	if err := r.Refresh(ctx); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	snap := r.Snapshot(ev.ID)
	if snap == nil {
		t.Fatal("expected a snapshot after refresh")
	}
	if snap.RefreshedAt != now {
		t.Errorf("expected RefreshedAt %v, got %v", now, snap.RefreshedAt)
	}
	if snap.Stats.TotalMatches != 2 {
		t.Errorf("expected 2 matches, got %d", snap.Stats.TotalMatches)
	}
	if snap.LastMatchAt == nil || !snap.LastMatchAt.Equal(last) {
		t.Errorf("expected last match at %v, got %v", last, snap.LastMatchAt)
	}
	if math.Abs(snap.FalsePos.EstimatePct-50.0) > 1e-9 {
		t.Errorf("expected 50.00%% low-confidence share, got %f", snap.FalsePos.EstimatePct)
	}

	var pctTotal float64
	for _, b := range snap.Distribution {
		pctTotal += b.Percentage
	}
	if math.Abs(pctTotal-100.0) > 0.01 {
		t.Errorf("expected band percentages to sum to 100, got %f", pctTotal)
	}

	if r.Snapshot(uuid.New()) != nil {
		t.Error("expected nil snapshot for unknown event")
	}
}

func TestRefresher_PicksUpNewMatches(t *testing.T) {
	store := memory.NewStore()
	ev, photo := seedEvent(t, store)
	ctx := context.Background()

	r := NewRefresher(store, store)
	if err := r.Refresh(ctx); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if snap := r.Snapshot(ev.ID); snap == nil || snap.Stats.TotalMatches != 0 {
		t.Fatalf("expected an empty aggregate for a match-less event, got %+v", snap)
	}

	recordSim(t, store, ev.ID, photo.ID, 0.9, time.Now())

	// The old generation keeps serving until the next refresh swaps it out.
	if snap := r.Snapshot(ev.ID); snap.Stats.TotalMatches != 0 {
		t.Errorf("expected stale snapshot before refresh, got %d matches", snap.Stats.TotalMatches)
	}
	if err := r.Refresh(ctx); err != nil {
		t.Fatalf("second Refresh: %v", err)
	}
	if snap := r.Snapshot(ev.ID); snap.Stats.TotalMatches != 1 {
		t.Errorf("expected refreshed snapshot with 1 match, got %d", snap.Stats.TotalMatches)
	}
}

func TestRefresher_DeletedEventDropsOut(t *testing.T) {
	store := memory.NewStore()
	ev, photo := seedEvent(t, store)
	ctx := context.Background()
	recordSim(t, store, ev.ID, photo.ID, 0.8, time.Now())

	r := NewRefresher(store, store)
	if err := r.Refresh(ctx); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if r.Snapshot(ev.ID) == nil {
		t.Fatal("expected a snapshot for the live event")
	}

	if _, err := store.DeleteEvent(ctx, ev.ID); err != nil {
		t.Fatalf("DeleteEvent: %v", err)
	}
	if err := r.Refresh(ctx); err != nil {
		t.Fatalf("Refresh after delete: %v", err)
	}
	if r.Snapshot(ev.ID) != nil {
		t.Error("expected snapshot to drop after event deletion")
	}
}

func TestRefresher_RefreshIsIdempotent(t *testing.T) {
	store := memory.NewStore()
	ev, photo := seedEvent(t, store)
	ctx := context.Background()
	for _, sim := range []float64{0.95, 0.85, 0.65, 0.45, 0.30} {
		recordSim(t, store, ev.ID, photo.ID, sim, time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC))
	}

	r := NewRefresher(store, store)
	r.Now = func() time.Time { return time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC) }

	if err := r.Refresh(ctx); err != nil {
		t.Fatalf("first Refresh: %v", err)
	}
	first := r.Snapshot(ev.ID)
	if err := r.Refresh(ctx); err != nil {
		t.Fatalf("second Refresh: %v", err)
	}
	second := r.Snapshot(ev.ID)

	if first == nil || second == nil {
		t.Fatal("expected snapshots from both refreshes")
	}
	if !reflect.DeepEqual(*first, *second) {
		t.Errorf("refresh without new data changed the snapshot:\nfirst:  %+v\nsecond: %+v", *first, *second)
	}
}

func TestRefresher_ConcurrentRefreshRejected(t *testing.T) {
	store := memory.NewStore()
	seedEvent(t, store)

	r := NewRefresher(store, store)
	r.refreshing.Lock()
	defer r.refreshing.Unlock()

	err := r.Refresh(context.Background())
	if !errors.Is(err, facestore.ErrRefreshInProgress) {
		t.Errorf("expected ErrRefreshInProgress, got %v", err)
	}
}

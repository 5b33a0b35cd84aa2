package memory

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/grapic/facematch/internal/facestore"
)

func newTestEvent() *facestore.Event {
	return &facestore.Event{
		ID:            uuid.New(),
		OwnerID:       "owner-1",
		Name:          "Summer Gala",
		AccessCode:    facestore.NewCode(),
		OrganizerCode: facestore.NewCode(),
	}
}

func mustEvent(t *testing.T, s *Store) *facestore.Event {
	t.Helper()
	ev := newTestEvent()
	if err := s.CreateEvent(context.Background(), ev); err != nil {
		t.Fatalf("CreateEvent: %v", err)
	}
	return ev
}

func mustPhoto(t *testing.T, s *Store, eventID uuid.UUID) *facestore.Photo {
	t.Helper()
	p := &facestore.Photo{ID: uuid.New(), EventID: eventID, Filename: "img.jpg"}
	if err := s.CreatePhoto(context.Background(), p); err != nil {
		t.Fatalf("CreatePhoto: %v", err)
	}
	return p
}

func vector(dim int, fill float32) []float32 {
	v := make([]float32, dim)
	for i := range v {
		v[i] = fill
	}
	return v
}

func mustEmbedding(t *testing.T, s *Store, eventID, photoID uuid.UUID, fill float32) *facestore.FaceEmbedding {
	t.Helper()
	e := &facestore.FaceEmbedding{
		ID:      uuid.New(),
		PhotoID: photoID,
		EventID: eventID,
		Vector:  vector(facestore.EmbeddingDim, fill),
	}
	if err := s.InsertEmbedding(context.Background(), e); err != nil {
		t.Fatalf("InsertEmbedding: %v", err)
	}
	return e
}

func TestEventCodeLookup(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	ev := mustEvent(t, s)

	t.Run("by access code", func(t *testing.T) {
		got, err := s.GetEventByAccessCode(ctx, ev.AccessCode)
		if err != nil {
			t.Fatalf("GetEventByAccessCode: %v", err)
		}
		if got == nil || got.ID != ev.ID {
			t.Fatalf("expected event, got %+v", got)
		}
	})

	t.Run("case and whitespace insensitive", func(t *testing.T) {
		got, err := s.GetEventByAccessCode(ctx, "  "+lower(ev.AccessCode)+" ")
		if err != nil {
			t.Fatalf("GetEventByAccessCode: %v", err)
		}
		if got == nil || got.ID != ev.ID {
			t.Fatalf("expected normalized lookup to match, got %+v", got)
		}
	})

	t.Run("unknown code", func(t *testing.T) {
		got, err := s.GetEventByAccessCode(ctx, "NOPE1234")
		if err != nil {
			t.Fatalf("GetEventByAccessCode: %v", err)
		}
		if got != nil {
			t.Fatalf("expected nil for unknown code, got %+v", got)
		}
	})
}

func lower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + 32
		}
	}
	return string(b)
}

func TestInsertEmbedding_Validation(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	ev := mustEvent(t, s)
	photo := mustPhoto(t, s, ev.ID)

	t.Run("dimension mismatch", func(t *testing.T) {
		e := &facestore.FaceEmbedding{ID: uuid.New(), PhotoID: photo.ID, EventID: ev.ID, Vector: vector(64, 0.5)}
		if err := s.InsertEmbedding(ctx, e); !errors.Is(err, facestore.ErrDimensionMismatch) {
			t.Errorf("expected ErrDimensionMismatch, got %v", err)
		}
	})

	t.Run("unknown event", func(t *testing.T) {
		e := &facestore.FaceEmbedding{ID: uuid.New(), PhotoID: photo.ID, EventID: uuid.New(), Vector: vector(facestore.EmbeddingDim, 0.5)}
		if err := s.InsertEmbedding(ctx, e); !errors.Is(err, facestore.ErrUnknownEvent) {
			t.Errorf("expected ErrUnknownEvent, got %v", err)
		}
	})

	t.Run("unknown photo", func(t *testing.T) {
		e := &facestore.FaceEmbedding{ID: uuid.New(), PhotoID: uuid.New(), EventID: ev.ID, Vector: vector(facestore.EmbeddingDim, 0.5)}
		if err := s.InsertEmbedding(ctx, e); !errors.Is(err, facestore.ErrUnknownPhoto) {
			t.Errorf("expected ErrUnknownPhoto, got %v", err)
		}
	})

	t.Run("photo from another event", func(t *testing.T) {
		other := mustEvent(t, s)
		otherPhoto := mustPhoto(t, s, other.ID)
		e := &facestore.FaceEmbedding{ID: uuid.New(), PhotoID: otherPhoto.ID, EventID: ev.ID, Vector: vector(facestore.EmbeddingDim, 0.5)}
		if err := s.InsertEmbedding(ctx, e); !errors.Is(err, facestore.ErrUnknownPhoto) {
			t.Errorf("expected ErrUnknownPhoto for cross-event photo, got %v", err)
		}
	})

	t.Run("nothing was written", func(t *testing.T) {
		count, err := s.CountEmbeddings(ctx, ev.ID)
		if err != nil {
			t.Fatalf("CountEmbeddings: %v", err)
		}
		if count != 0 {
			t.Errorf("expected 0 embeddings after failed inserts, got %d", count)
		}
	})
}

func TestEmbeddingsForEvent_Order(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	ev := mustEvent(t, s)
	p1 := mustPhoto(t, s, ev.ID)
	p2 := mustPhoto(t, s, ev.ID)

	// Insert out of photo order.
	e2 := mustEmbedding(t, s, ev.ID, p2.ID, 0.2)
	e1 := mustEmbedding(t, s, ev.ID, p1.ID, 0.1)

	embs, err := s.EmbeddingsForEvent(ctx, ev.ID)
	if err != nil {
		t.Fatalf("EmbeddingsForEvent: %v", err)
	}
	if len(embs) != 2 {
		t.Fatalf("expected 2 embeddings, got %d", len(embs))
	}
	if embs[0].ID != e1.ID || embs[1].ID != e2.ID {
		t.Errorf("expected upload order (photo seq), got %v then %v", embs[0].PhotoID, embs[1].PhotoID)
	}
}

func TestCascadingDelete(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	ev := mustEvent(t, s)
	photo := mustPhoto(t, s, ev.ID)
	mustEmbedding(t, s, ev.ID, photo.ID, 0.3)

	rec := &facestore.MatchRecord{
		ID: uuid.New(), EventID: ev.ID, PhotoID: photo.ID,
		Similarity: 0.8, ThresholdUsed: 0.4,
	}
	if err := s.RecordMatch(ctx, rec); err != nil {
		t.Fatalf("RecordMatch: %v", err)
	}

	deleted, err := s.DeleteEvent(ctx, ev.ID)
	if err != nil {
		t.Fatalf("DeleteEvent: %v", err)
	}
	if !deleted {
		t.Fatal("expected delete to report true")
	}

	if got, _ := s.GetEvent(ctx, ev.ID); got != nil {
		t.Error("event still present after delete")
	}
	if got, _ := s.GetPhoto(ctx, photo.ID); got != nil {
		t.Error("photo still present after delete")
	}
	if count, _ := s.CountEmbeddings(ctx, ev.ID); count != 0 {
		t.Errorf("embeddings still present after delete: %d", count)
	}
	if stats, _ := s.SimilarityStats(ctx, ev.ID); stats.TotalMatches != 0 {
		t.Errorf("matches still present after delete: %d", stats.TotalMatches)
	}
	if got, _ := s.GetEventByAccessCode(ctx, ev.AccessCode); got != nil {
		t.Error("access code still resolves after delete")
	}

	// Deleting again is a no-op, not an error.
	deleted, err = s.DeleteEvent(ctx, ev.ID)
	if err != nil {
		t.Fatalf("second DeleteEvent: %v", err)
	}
	if deleted {
		t.Error("expected second delete to report false")
	}
}

func TestPhotoCounters(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	ev := mustEvent(t, s)
	photo := mustPhoto(t, s, ev.ID)

	got, _ := s.GetEvent(ctx, ev.ID)
	if got.PhotoCount != 1 {
		t.Errorf("expected photo count 1, got %d", got.PhotoCount)
	}

	ms := int64(85)
	if err := s.UpdatePhotoStatus(ctx, photo.ID, facestore.PhotoDone, 2, &ms); err != nil {
		t.Fatalf("UpdatePhotoStatus: %v", err)
	}
	if err := s.UpdatePhotoStatus(ctx, photo.ID, facestore.PhotoDone, 2, &ms); err != nil {
		t.Fatalf("UpdatePhotoStatus repeat: %v", err)
	}
	got, _ = s.GetEvent(ctx, ev.ID)
	if got.ProcessedCount != 1 {
		t.Errorf("expected processed count 1 after repeat done, got %d", got.ProcessedCount)
	}

	if err := s.UpdatePhotoStatus(ctx, uuid.New(), facestore.PhotoDone, 0, nil); !errors.Is(err, facestore.ErrUnknownPhoto) {
		t.Errorf("expected ErrUnknownPhoto, got %v", err)
	}

	deleted, err := s.DeletePhoto(ctx, photo.ID)
	if err != nil {
		t.Fatalf("DeletePhoto: %v", err)
	}
	if !deleted {
		t.Fatal("expected photo delete to report true")
	}
	got, _ = s.GetEvent(ctx, ev.ID)
	if got.PhotoCount != 0 || got.ProcessedCount != 0 {
		t.Errorf("expected counters back to 0, got photos=%d processed=%d", got.PhotoCount, got.ProcessedCount)
	}
}

func TestAttendeeCounter(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	ev := mustEvent(t, s)

	if err := s.IncrementAttendeeCount(ctx, ev.ID); err != nil {
		t.Fatalf("IncrementAttendeeCount: %v", err)
	}
	got, _ := s.GetEvent(ctx, ev.ID)
	if got.AttendeeCount != 1 {
		t.Errorf("expected attendee count 1, got %d", got.AttendeeCount)
	}

	if err := s.IncrementAttendeeCount(ctx, uuid.New()); !errors.Is(err, facestore.ErrUnknownEvent) {
		t.Errorf("expected ErrUnknownEvent, got %v", err)
	}
}

func TestDeleteExpiredEvents(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	past := time.Now().Add(-time.Hour)
	expired := newTestEvent()
	expired.ExpiresAt = &past
	if err := s.CreateEvent(ctx, expired); err != nil {
		t.Fatalf("CreateEvent: %v", err)
	}
	alive := mustEvent(t, s)

	ids, err := s.DeleteExpiredEvents(ctx, time.Now())
	if err != nil {
		t.Fatalf("DeleteExpiredEvents: %v", err)
	}
	if len(ids) != 1 || ids[0] != expired.ID {
		t.Fatalf("expected only expired event deleted, got %v", ids)
	}
	if got, _ := s.GetEvent(ctx, alive.ID); got == nil {
		t.Error("unexpired event was deleted")
	}
}

func TestMatchAnalytics(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	ev := mustEvent(t, s)
	photo := mustPhoto(t, s, ev.ID)

	sims := []float64{0.95, 0.85, 0.60, 0.45, 0.45, 0.30, 0.30, 0.30, 0.30, 0.30}
	for _, sim := range sims {
		rec := &facestore.MatchRecord{
			ID: uuid.New(), EventID: ev.ID, PhotoID: photo.ID,
			Similarity: sim, ThresholdUsed: 0.4,
		}
		if err := s.RecordMatch(ctx, rec); err != nil {
			t.Fatalf("RecordMatch: %v", err)
		}
	}

	t.Run("distribution", func(t *testing.T) {
		bands, err := s.SimilarityDistribution(ctx, ev.ID)
		if err != nil {
			t.Fatalf("SimilarityDistribution: %v", err)
		}
		want := map[string]int64{
			"0.90-1.00": 1,
			"0.70-0.89": 1,
			"0.50-0.69": 1,
			"0.40-0.49": 2,
			"0.00-0.39": 5,
		}
		var total int64
		for _, b := range bands {
			if b.Count != want[b.Label] {
				t.Errorf("band %s: got %d, want %d", b.Label, b.Count, want[b.Label])
			}
			total += b.Count
		}
		if total != int64(len(sims)) {
			t.Errorf("band counts sum to %d, want %d", total, len(sims))
		}
		for i := 1; i < len(bands); i++ {
			if bands[i-1].Low < bands[i].Low {
				t.Error("bands not ordered highest first")
			}
		}
	})

	t.Run("stats", func(t *testing.T) {
		stats, err := s.SimilarityStats(ctx, ev.ID)
		if err != nil {
			t.Fatalf("SimilarityStats: %v", err)
		}
		if stats.TotalMatches != 10 {
			t.Errorf("expected 10 matches, got %d", stats.TotalMatches)
		}
		if stats.Min != 0.30 || stats.Max != 0.95 {
			t.Errorf("unexpected min/max: %f/%f", stats.Min, stats.Max)
		}
		// sorted middle pair is 0.30 and 0.45
		if math.Abs(stats.Median-0.375) > 1e-9 {
			t.Errorf("expected interpolated median 0.375, got %f", stats.Median)
		}
	})

	t.Run("false positive estimate", func(t *testing.T) {
		est, err := s.FalsePositiveEstimate(ctx, ev.ID, 0.50)
		if err != nil {
			t.Fatalf("FalsePositiveEstimate: %v", err)
		}
		if est.TotalMatches != 10 || est.LowConfidenceMatches != 7 {
			t.Errorf("unexpected counts: %+v", est)
		}
		if est.EstimatePct != 70.0 {
			t.Errorf("expected 70.0%%, got %f", est.EstimatePct)
		}
	})

	t.Run("empty event", func(t *testing.T) {
		other := mustEvent(t, s)
		bands, err := s.SimilarityDistribution(ctx, other.ID)
		if err != nil {
			t.Fatalf("SimilarityDistribution: %v", err)
		}
		if len(bands) != 0 {
			t.Errorf("expected no bands for empty event, got %v", bands)
		}
		est, err := s.FalsePositiveEstimate(ctx, other.ID, 0.50)
		if err != nil {
			t.Fatalf("FalsePositiveEstimate: %v", err)
		}
		if est.EstimatePct != 0 || est.TotalMatches != 0 {
			t.Errorf("expected zero estimate for empty event, got %+v", est)
		}
		last, err := s.LastMatchAt(ctx, other.ID)
		if err != nil {
			t.Fatalf("LastMatchAt: %v", err)
		}
		if last != nil {
			t.Errorf("expected nil last match, got %v", last)
		}
	})
}

func TestDeleteEmbeddings_Idempotent(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	ev := mustEvent(t, s)
	photo := mustPhoto(t, s, ev.ID)
	mustEmbedding(t, s, ev.ID, photo.ID, 0.1)
	mustEmbedding(t, s, ev.ID, photo.ID, 0.2)

	n, err := s.DeleteEmbeddingsByPhoto(ctx, photo.ID)
	if err != nil {
		t.Fatalf("DeleteEmbeddingsByPhoto: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 removed, got %d", n)
	}

	n, err = s.DeleteEmbeddingsByPhoto(ctx, photo.ID)
	if err != nil {
		t.Fatalf("second DeleteEmbeddingsByPhoto: %v", err)
	}
	if n != 0 {
		t.Errorf("expected 0 removed on repeat, got %d", n)
	}
}

//go:build integration

package postgres

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/grapic/facematch/internal/config"
	"github.com/grapic/facematch/internal/facestore"
)

func setupTestContainer(t *testing.T) (*Store, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "pgvector/pgvector:pg16",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Skipf("Docker not available or container failed to start, skipping integration test: %v", err)
		return nil, func() {}
	}
	if container == nil {
		t.Skip("Docker not available, skipping integration test")
		return nil, func() {}
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	dbURL := fmt.Sprintf("postgres://test:test@%s:%s/testdb?sslmode=disable", host, port.Port())

	cfg := &config.DatabaseConfig{
		URL:          dbURL,
		MaxOpenConns: 5,
		MaxIdleConns: 2,
	}

	pool, err := NewPool(cfg)
	if err != nil {
		container.Terminate(ctx)
		t.Fatalf("Failed to create pool: %v", err)
	}

	// Run migrations
	if err := pool.Migrate(ctx); err != nil {
		pool.Close()
		container.Terminate(ctx)
		t.Fatalf("Failed to run migrations: %v", err)
	}

	cleanup := func() {
		pool.Close()
		container.Terminate(ctx)
	}

	return NewStore(pool), cleanup
}

func mustCreateEvent(t *testing.T, ctx context.Context, s *Store) *facestore.Event {
	t.Helper()
	ev := &facestore.Event{
		ID:            uuid.New(),
		OwnerID:       "owner-1",
		Name:          "Test Wedding",
		AccessCode:    facestore.NewCode(),
		OrganizerCode: facestore.NewCode(),
	}
	if err := s.CreateEvent(ctx, ev); err != nil {
		t.Fatalf("CreateEvent: %v", err)
	}
	return ev
}

func mustCreatePhoto(t *testing.T, ctx context.Context, s *Store, eventID uuid.UUID) *facestore.Photo {
	t.Helper()
	p := &facestore.Photo{
		ID:       uuid.New(),
		EventID:  eventID,
		Filename: "img.jpg",
	}
	if err := s.CreatePhoto(ctx, p); err != nil {
		t.Fatalf("CreatePhoto: %v", err)
	}
	return p
}

func testVector(fill float32) []float32 {
	v := make([]float32, facestore.EmbeddingDim)
	for i := range v {
		v[i] = fill
	}
	v[0] = 1 // keep the vector non-uniform and non-zero
	return v
}

func TestEventLifecycle(t *testing.T) {
	store, cleanup := setupTestContainer(t)
	defer cleanup()
	ctx := context.Background()

	ev := mustCreateEvent(t, ctx, store)

	got, err := store.GetEvent(ctx, ev.ID)
	if err != nil {
		t.Fatalf("GetEvent: %v", err)
	}
	if got == nil || got.Name != "Test Wedding" {
		t.Fatalf("unexpected event: %+v", got)
	}

	byCode, err := store.GetEventByAccessCode(ctx, ev.AccessCode)
	if err != nil {
		t.Fatalf("GetEventByAccessCode: %v", err)
	}
	if byCode == nil || byCode.ID != ev.ID {
		t.Fatalf("expected event by access code, got %+v", byCode)
	}

	missing, err := store.GetEvent(ctx, uuid.New())
	if err != nil {
		t.Fatalf("GetEvent missing: %v", err)
	}
	if missing != nil {
		t.Fatalf("expected nil for missing event, got %+v", missing)
	}
}

func TestCascadingDelete(t *testing.T) {
	store, cleanup := setupTestContainer(t)
	defer cleanup()
	ctx := context.Background()

	ev := mustCreateEvent(t, ctx, store)
	photo := mustCreatePhoto(t, ctx, store, ev.ID)

	emb := &facestore.FaceEmbedding{
		ID:      uuid.New(),
		PhotoID: photo.ID,
		EventID: ev.ID,
		Vector:  testVector(0.1),
	}
	if err := store.InsertEmbedding(ctx, emb); err != nil {
		t.Fatalf("InsertEmbedding: %v", err)
	}

	rec := &facestore.MatchRecord{
		ID:            uuid.New(),
		EventID:       ev.ID,
		PhotoID:       photo.ID,
		Similarity:    0.85,
		ThresholdUsed: 0.40,
	}
	if err := store.RecordMatch(ctx, rec); err != nil {
		t.Fatalf("RecordMatch: %v", err)
	}

	deleted, err := store.DeleteEvent(ctx, ev.ID)
	if err != nil {
		t.Fatalf("DeleteEvent: %v", err)
	}
	if !deleted {
		t.Fatal("expected event to be deleted")
	}

	count, err := store.CountEmbeddings(ctx, ev.ID)
	if err != nil {
		t.Fatalf("CountEmbeddings: %v", err)
	}
	if count != 0 {
		t.Errorf("expected 0 embeddings after cascade, got %d", count)
	}

	gotPhoto, err := store.GetPhoto(ctx, photo.ID)
	if err != nil {
		t.Fatalf("GetPhoto: %v", err)
	}
	if gotPhoto != nil {
		t.Errorf("expected photo to be deleted with event")
	}

	stats, err := store.SimilarityStats(ctx, ev.ID)
	if err != nil {
		t.Fatalf("SimilarityStats: %v", err)
	}
	if stats.TotalMatches != 0 {
		t.Errorf("expected 0 matches after cascade, got %d", stats.TotalMatches)
	}
}

func TestInsertEmbedding_DimensionMismatch(t *testing.T) {
	store, cleanup := setupTestContainer(t)
	defer cleanup()
	ctx := context.Background()

	ev := mustCreateEvent(t, ctx, store)
	photo := mustCreatePhoto(t, ctx, store, ev.ID)

	emb := &facestore.FaceEmbedding{
		ID:      uuid.New(),
		PhotoID: photo.ID,
		EventID: ev.ID,
		Vector:  make([]float32, 64),
	}
	err := store.InsertEmbedding(ctx, emb)
	if err == nil {
		t.Fatal("expected dimension mismatch error")
	}

	count, err := store.CountEmbeddings(ctx, ev.ID)
	if err != nil {
		t.Fatalf("CountEmbeddings: %v", err)
	}
	if count != 0 {
		t.Errorf("expected no partial write, got %d embeddings", count)
	}
}

func TestFindSimilar(t *testing.T) {
	store, cleanup := setupTestContainer(t)
	defer cleanup()
	ctx := context.Background()

	ev := mustCreateEvent(t, ctx, store)
	photoA := mustCreatePhoto(t, ctx, store, ev.ID)
	photoB := mustCreatePhoto(t, ctx, store, ev.ID)

	query := testVector(0.5)
	same := make([]float32, facestore.EmbeddingDim)
	copy(same, query)

	if err := store.InsertEmbedding(ctx, &facestore.FaceEmbedding{
		ID: uuid.New(), PhotoID: photoA.ID, EventID: ev.ID, Vector: same,
	}); err != nil {
		t.Fatalf("InsertEmbedding same: %v", err)
	}
	// Orthogonal-ish vector, similarity well below threshold.
	other := make([]float32, facestore.EmbeddingDim)
	for i := range other {
		other[i] = float32(i%2)*2 - 1
	}
	if err := store.InsertEmbedding(ctx, &facestore.FaceEmbedding{
		ID: uuid.New(), PhotoID: photoB.ID, EventID: ev.ID, Vector: other,
	}); err != nil {
		t.Fatalf("InsertEmbedding other: %v", err)
	}

	embs, sims, err := store.FindSimilar(ctx, ev.ID, query, 0.90, 10)
	if err != nil {
		t.Fatalf("FindSimilar: %v", err)
	}
	if len(embs) != 1 {
		t.Fatalf("expected 1 similar embedding, got %d", len(embs))
	}
	if embs[0].PhotoID != photoA.ID {
		t.Errorf("expected photo A, got %s", embs[0].PhotoID)
	}
	if sims[0] < 0.99 {
		t.Errorf("expected near-identical similarity, got %f", sims[0])
	}
}

func TestAnalyticsQueries(t *testing.T) {
	store, cleanup := setupTestContainer(t)
	defer cleanup()
	ctx := context.Background()

	ev := mustCreateEvent(t, ctx, store)
	photo := mustCreatePhoto(t, ctx, store, ev.ID)

	sims := []float64{0.95, 0.85, 0.60, 0.45, 0.45, 0.30, 0.30, 0.30, 0.30, 0.30}
	for _, sim := range sims {
		rec := &facestore.MatchRecord{
			ID:            uuid.New(),
			EventID:       ev.ID,
			PhotoID:       photo.ID,
			Similarity:    sim,
			ThresholdUsed: 0.40,
		}
		if err := store.RecordMatch(ctx, rec); err != nil {
			t.Fatalf("RecordMatch: %v", err)
		}
	}

	t.Run("distribution", func(t *testing.T) {
		bands, err := store.SimilarityDistribution(ctx, ev.ID)
		if err != nil {
			t.Fatalf("SimilarityDistribution: %v", err)
		}
		if len(bands) != 5 {
			t.Fatalf("expected 5 non-empty bands, got %d", len(bands))
		}
		if bands[0].Label != "0.90-1.00" || bands[0].Count != 1 {
			t.Errorf("unexpected top band: %+v", bands[0])
		}
		if bands[4].Label != "0.00-0.39" || bands[4].Count != 5 {
			t.Errorf("unexpected bottom band: %+v", bands[4])
		}
		var total int64
		for _, b := range bands {
			total += b.Count
		}
		if total != int64(len(sims)) {
			t.Errorf("band counts sum to %d, want %d", total, len(sims))
		}
	})

	t.Run("stats", func(t *testing.T) {
		stats, err := store.SimilarityStats(ctx, ev.ID)
		if err != nil {
			t.Fatalf("SimilarityStats: %v", err)
		}
		if stats.TotalMatches != int64(len(sims)) {
			t.Errorf("expected %d matches, got %d", len(sims), stats.TotalMatches)
		}
		if stats.Min != 0.30 || stats.Max != 0.95 {
			t.Errorf("unexpected min/max: %f/%f", stats.Min, stats.Max)
		}
	})

	t.Run("false positives", func(t *testing.T) {
		est, err := store.FalsePositiveEstimate(ctx, ev.ID, 0.50)
		if err != nil {
			t.Fatalf("FalsePositiveEstimate: %v", err)
		}
		// 7 of 10 below 0.50
		if est.EstimatePct != 70.0 {
			t.Errorf("expected 70.0%%, got %f", est.EstimatePct)
		}
		if est.LowConfidenceMatches != 7 {
			t.Errorf("expected 7 low-confidence matches, got %d", est.LowConfidenceMatches)
		}
	})

	t.Run("empty event", func(t *testing.T) {
		other := mustCreateEvent(t, ctx, store)
		stats, err := store.SimilarityStats(ctx, other.ID)
		if err != nil {
			t.Fatalf("SimilarityStats: %v", err)
		}
		if stats.TotalMatches != 0 {
			t.Errorf("expected 0 matches, got %d", stats.TotalMatches)
		}
		last, err := store.LastMatchAt(ctx, other.ID)
		if err != nil {
			t.Fatalf("LastMatchAt: %v", err)
		}
		if last != nil {
			t.Errorf("expected nil last match, got %v", last)
		}
	})
}

func TestPhotoCounters(t *testing.T) {
	store, cleanup := setupTestContainer(t)
	defer cleanup()
	ctx := context.Background()

	ev := mustCreateEvent(t, ctx, store)
	photo := mustCreatePhoto(t, ctx, store, ev.ID)

	got, err := store.GetEvent(ctx, ev.ID)
	if err != nil {
		t.Fatalf("GetEvent: %v", err)
	}
	if got.PhotoCount != 1 {
		t.Errorf("expected photo count 1, got %d", got.PhotoCount)
	}

	ms := int64(120)
	if err := store.UpdatePhotoStatus(ctx, photo.ID, facestore.PhotoDone, 3, &ms); err != nil {
		t.Fatalf("UpdatePhotoStatus: %v", err)
	}
	// Second done update must not double-count.
	if err := store.UpdatePhotoStatus(ctx, photo.ID, facestore.PhotoDone, 3, &ms); err != nil {
		t.Fatalf("UpdatePhotoStatus repeat: %v", err)
	}

	got, err = store.GetEvent(ctx, ev.ID)
	if err != nil {
		t.Fatalf("GetEvent: %v", err)
	}
	if got.ProcessedCount != 1 {
		t.Errorf("expected processed count 1, got %d", got.ProcessedCount)
	}

	deleted, err := store.DeletePhoto(ctx, photo.ID)
	if err != nil {
		t.Fatalf("DeletePhoto: %v", err)
	}
	if !deleted {
		t.Fatal("expected photo to be deleted")
	}

	got, err = store.GetEvent(ctx, ev.ID)
	if err != nil {
		t.Fatalf("GetEvent: %v", err)
	}
	if got.PhotoCount != 0 || got.ProcessedCount != 0 {
		t.Errorf("expected counters back to 0, got photos=%d processed=%d", got.PhotoCount, got.ProcessedCount)
	}
}

func TestDeleteExpiredEvents(t *testing.T) {
	store, cleanup := setupTestContainer(t)
	defer cleanup()
	ctx := context.Background()

	past := time.Now().Add(-24 * time.Hour)
	expired := &facestore.Event{
		ID:            uuid.New(),
		Name:          "Old Event",
		ExpiresAt:     &past,
		AccessCode:    facestore.NewCode(),
		OrganizerCode: facestore.NewCode(),
	}
	if err := store.CreateEvent(ctx, expired); err != nil {
		t.Fatalf("CreateEvent expired: %v", err)
	}
	alive := mustCreateEvent(t, ctx, store)

	ids, err := store.DeleteExpiredEvents(ctx, time.Now())
	if err != nil {
		t.Fatalf("DeleteExpiredEvents: %v", err)
	}
	if len(ids) != 1 || ids[0] != expired.ID {
		t.Fatalf("expected expired event deleted, got %v", ids)
	}

	got, err := store.GetEvent(ctx, alive.ID)
	if err != nil {
		t.Fatalf("GetEvent alive: %v", err)
	}
	if got == nil {
		t.Error("expected unexpired event to survive")
	}
}

func TestEnsureVectorIndex(t *testing.T) {
	store, cleanup := setupTestContainer(t)
	defer cleanup()
	ctx := context.Background()

	lists, err := store.EnsureVectorIndex(ctx)
	if err != nil {
		t.Fatalf("EnsureVectorIndex: %v", err)
	}
	if lists < 1 {
		t.Errorf("expected at least 1 list, got %d", lists)
	}
}

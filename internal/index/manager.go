package index

import (
	"context"
	"log"
	"math"
	"sync"

	"github.com/google/uuid"

	"github.com/grapic/facematch/internal/facestore"
)

// Manager owns the per-event index generations. Reads are served from the
// last consistent generation while rebuilds run in the background; search
// never blocks on, or errors because of, concurrent maintenance.
type Manager struct {
	store facestore.EmbeddingReader

	mu         sync.RWMutex
	events     map[uuid.UUID]*EventIndex
	rebuilding map[uuid.UUID]bool

	// MinVectors is the embedding count below which events are not
	// indexed at all; exact scan is both faster and exact there.
	MinVectors int
	// Growth is the count multiple past a generation's build size that
	// triggers a background rebuild.
	Growth float64

	// OnRebuild, when set, observes completed rebuilds (metrics hook).
	OnRebuild func(eventID uuid.UUID, count int)
}

// NewManager creates a Manager over the given embedding source.
func NewManager(store facestore.EmbeddingReader) *Manager {
	return &Manager{
		store:      store,
		events:     make(map[uuid.UUID]*EventIndex),
		rebuilding: make(map[uuid.UUID]bool),
		MinVectors: facestore.IndexMinVectors,
		Growth:     facestore.IndexRebuildGrowth,
	}
}

// Candidates returns a superset of likely-near embeddings for the query.
// The second return reports whether the index served the request; false
// means the caller must fall back to an exact scan (small event, no
// generation yet, or degraded index). Rebuilds are triggered here, on
// volume growth, never on individual inserts.
func (m *Manager) Candidates(ctx context.Context, eventID uuid.UUID, query []float32, k int) ([]facestore.FaceEmbedding, bool, error) {
	count, err := m.store.CountEmbeddings(ctx, eventID)
	if err != nil {
		return nil, false, err
	}
	if count < m.MinVectors {
		return nil, false, nil
	}

	m.mu.RLock()
	gen := m.events[eventID]
	m.mu.RUnlock()

	if gen == nil || float64(count) >= m.Growth*float64(gen.builtCount) {
		m.rebuildAsync(eventID)
	}
	if gen == nil {
		// First build still in flight; serve exactly this time.
		return nil, false, nil
	}

	return gen.Search(query, k), true, nil
}

// rebuildAsync starts a background rebuild unless one is already running
// for the event.
func (m *Manager) rebuildAsync(eventID uuid.UUID) {
	m.mu.Lock()
	if m.rebuilding[eventID] {
		m.mu.Unlock()
		return
	}
	m.rebuilding[eventID] = true
	m.mu.Unlock()

	go func() {
		// Detached from the query's deadline: index maintenance must not
		// die with the request that triggered it.
		if err := m.Rebuild(context.Background(), eventID); err != nil {
			log.Printf("index: background rebuild for event %s failed: %v", eventID, err)
		}
	}()
}

// Rebuild synchronously builds a fresh generation from the store and swaps
// it in. Concurrent readers keep the previous generation until the swap.
func (m *Manager) Rebuild(ctx context.Context, eventID uuid.UUID) error {
	defer func() {
		m.mu.Lock()
		delete(m.rebuilding, eventID)
		m.mu.Unlock()
	}()

	embs, err := m.store.EmbeddingsForEvent(ctx, eventID)
	if err != nil {
		return err
	}

	gen := buildEventIndex(embs)

	m.mu.Lock()
	m.events[eventID] = gen
	m.mu.Unlock()

	if m.OnRebuild != nil {
		m.OnRebuild(eventID, gen.Count())
	}
	return nil
}

// Invalidate drops an event's index, e.g. after a cascading delete.
func (m *Manager) Invalidate(eventID uuid.UUID) {
	m.mu.Lock()
	delete(m.events, eventID)
	m.mu.Unlock()
}

// Generation returns the event's current generation, or nil.
func (m *Manager) Generation(eventID uuid.UUID) *EventIndex {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.events[eventID]
}

// IVFLists returns the ivfflat partition count for a durable vector index
// over n embeddings: approximately the square root of the row count, with
// a sane floor.
func IVFLists(n int) int {
	if n <= 0 {
		return 1
	}
	lists := int(math.Round(math.Sqrt(float64(n))))
	if lists < 1 {
		lists = 1
	}
	return lists
}

// Package memory implements the facestore interfaces with mutex-guarded
// in-process maps. It backs unit tests and deployments without a
// DATABASE_URL, mirroring the platform's original single-node fallback mode.
package memory

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/grapic/facematch/internal/facestore"
)

// Store is an in-memory facestore.Store. All operations take the single
// store lock, which is what makes cascading deletes atomic to readers.
type Store struct {
	mu sync.RWMutex

	events          map[uuid.UUID]*facestore.Event
	byAccessCode    map[string]uuid.UUID
	byOrganizerCode map[string]uuid.UUID

	photos        map[uuid.UUID]*facestore.Photo
	photosByEvent map[uuid.UUID][]uuid.UUID

	embeddings map[uuid.UUID][]facestore.FaceEmbedding // keyed by event
	matches    map[uuid.UUID][]facestore.MatchRecord   // keyed by event

	photoSeq int64
	embSeq   int64

	// Now is the clock; replaceable in tests.
	Now func() time.Time
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		events:          make(map[uuid.UUID]*facestore.Event),
		byAccessCode:    make(map[string]uuid.UUID),
		byOrganizerCode: make(map[string]uuid.UUID),
		photos:          make(map[uuid.UUID]*facestore.Photo),
		photosByEvent:   make(map[uuid.UUID][]uuid.UUID),
		embeddings:      make(map[uuid.UUID][]facestore.FaceEmbedding),
		matches:         make(map[uuid.UUID][]facestore.MatchRecord),
		Now:             time.Now,
	}
}

var _ facestore.Store = (*Store)(nil)

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// cascadeDeleteLocked removes an event and everything scoped to it.
// Caller holds the write lock.
func (s *Store) cascadeDeleteLocked(id uuid.UUID) bool {
	ev, ok := s.events[id]
	if !ok {
		return false
	}

	for _, photoID := range s.photosByEvent[id] {
		delete(s.photos, photoID)
	}
	delete(s.photosByEvent, id)
	delete(s.embeddings, id)
	delete(s.matches, id)
	delete(s.byAccessCode, ev.AccessCode)
	delete(s.byOrganizerCode, ev.OrganizerCode)
	delete(s.events, id)
	return true
}

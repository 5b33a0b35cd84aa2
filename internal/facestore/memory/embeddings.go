package memory

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/grapic/facematch/internal/facestore"
)

// InsertEmbedding appends one embedding. The vector is copied so the record
// stays immutable regardless of what the caller does with its slice.
func (s *Store) InsertEmbedding(ctx context.Context, e *facestore.FaceEmbedding) error {
	if len(e.Vector) != facestore.EmbeddingDim {
		return facestore.ErrDimensionMismatch
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.events[e.EventID]; !ok {
		return facestore.ErrUnknownEvent
	}
	photo, ok := s.photos[e.PhotoID]
	if !ok || photo.EventID != e.EventID {
		return facestore.ErrUnknownPhoto
	}

	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.Now()
	}
	s.embSeq++
	e.Seq = s.embSeq
	e.PhotoSeq = photo.Seq

	stored := *e
	stored.Vector = append([]float32(nil), e.Vector...)
	s.embeddings[e.EventID] = append(s.embeddings[e.EventID], stored)
	return nil
}

// EmbeddingsForEvent returns every embedding for an event, ordered by photo
// upload order then embedding sequence.
func (s *Store) EmbeddingsForEvent(ctx context.Context, eventID uuid.UUID) ([]facestore.FaceEmbedding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := append([]facestore.FaceEmbedding(nil), s.embeddings[eventID]...)
	sort.Slice(out, func(i, j int) bool {
		if out[i].PhotoSeq != out[j].PhotoSeq {
			return out[i].PhotoSeq < out[j].PhotoSeq
		}
		return out[i].Seq < out[j].Seq
	})
	return out, nil
}

// CountEmbeddings returns the number of embeddings for an event.
func (s *Store) CountEmbeddings(ctx context.Context, eventID uuid.UUID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.embeddings[eventID]), nil
}

// DeleteEmbeddingsByPhoto removes all embeddings for a photo. Idempotent.
func (s *Store) DeleteEmbeddingsByPhoto(ctx context.Context, photoID uuid.UUID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	photo, ok := s.photos[photoID]
	if !ok {
		return 0, nil
	}
	return s.deleteEmbeddingsByPhotoLocked(photo.EventID, photoID), nil
}

func (s *Store) deleteEmbeddingsByPhotoLocked(eventID, photoID uuid.UUID) int {
	embs := s.embeddings[eventID]
	kept := embs[:0]
	removed := 0
	for _, e := range embs {
		if e.PhotoID == photoID {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	s.embeddings[eventID] = kept
	return removed
}

// DeleteEmbeddingsByEvent removes all embeddings for an event. Idempotent.
func (s *Store) DeleteEmbeddingsByEvent(ctx context.Context, eventID uuid.UUID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := len(s.embeddings[eventID])
	delete(s.embeddings, eventID)
	return removed, nil
}

package memory

import (
	"context"

	"github.com/google/uuid"

	"github.com/grapic/facematch/internal/facestore"
)

// CreatePhoto persists a new photo and bumps the event photo counter.
func (s *Store) CreatePhoto(ctx context.Context, p *facestore.Photo) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ev, ok := s.events[p.EventID]
	if !ok {
		return facestore.ErrUnknownEvent
	}
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.Status == "" {
		p.Status = facestore.PhotoPending
	}
	if p.UploadedAt.IsZero() {
		p.UploadedAt = s.Now()
	}
	s.photoSeq++
	p.Seq = s.photoSeq

	stored := *p
	s.photos[p.ID] = &stored
	s.photosByEvent[p.EventID] = append(s.photosByEvent[p.EventID], p.ID)
	ev.PhotoCount++
	return nil
}

// GetPhoto retrieves a photo by id, returns nil if not found.
func (s *Store) GetPhoto(ctx context.Context, id uuid.UUID) (*facestore.Photo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.photos[id]
	if !ok {
		return nil, nil
	}
	out := *p
	return &out, nil
}

// PhotosForEvent returns all photos for an event in upload order.
func (s *Store) PhotosForEvent(ctx context.Context, eventID uuid.UUID) ([]facestore.Photo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.photosByEvent[eventID]
	out := make([]facestore.Photo, 0, len(ids))
	for _, id := range ids {
		out = append(out, *s.photos[id])
	}
	return out, nil
}

// UpdatePhotoStatus records the outcome of pipeline processing. A photo
// reaching done bumps the event processed counter.
func (s *Store) UpdatePhotoStatus(ctx context.Context, id uuid.UUID, status facestore.PhotoStatus, faceCount int, processingMS *int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.photos[id]
	if !ok {
		return facestore.ErrUnknownPhoto
	}
	wasDone := p.Status == facestore.PhotoDone
	p.Status = status
	p.FaceCount = faceCount
	p.ProcessingMS = processingMS
	now := s.Now()
	p.ProcessedAt = &now

	if status == facestore.PhotoDone && !wasDone {
		if ev, ok := s.events[p.EventID]; ok {
			ev.ProcessedCount++
		}
	}
	return nil
}

// DeletePhoto removes a photo and its embeddings, adjusting event counters.
func (s *Store) DeletePhoto(ctx context.Context, id uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.photos[id]
	if !ok {
		return false, nil
	}

	s.deleteEmbeddingsByPhotoLocked(p.EventID, id)
	delete(s.photos, id)

	ids := s.photosByEvent[p.EventID]
	for i, photoID := range ids {
		if photoID == id {
			s.photosByEvent[p.EventID] = append(ids[:i], ids[i+1:]...)
			break
		}
	}

	if ev, ok := s.events[p.EventID]; ok {
		ev.PhotoCount--
		if p.Status == facestore.PhotoDone {
			ev.ProcessedCount--
		}
	}
	return true, nil
}

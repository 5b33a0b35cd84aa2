package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/grapic/facematch/internal/facestore"
)

// CreateEvent persists a new event. ID and codes must be set by the caller.
func (s *Store) CreateEvent(ctx context.Context, ev *facestore.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ev.ID == uuid.Nil {
		return fmt.Errorf("event id is required")
	}
	ev.AccessCode = normalizeCode(ev.AccessCode)
	ev.OrganizerCode = normalizeCode(ev.OrganizerCode)
	if ev.AccessCode == "" || ev.OrganizerCode == "" {
		return fmt.Errorf("event codes are required")
	}
	if _, exists := s.events[ev.ID]; exists {
		return fmt.Errorf("event %s already exists", ev.ID)
	}
	if _, taken := s.byAccessCode[ev.AccessCode]; taken {
		return fmt.Errorf("access code already in use")
	}
	if _, taken := s.byOrganizerCode[ev.OrganizerCode]; taken {
		return fmt.Errorf("organizer code already in use")
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = s.Now()
	}

	stored := *ev
	s.events[ev.ID] = &stored
	s.byAccessCode[ev.AccessCode] = ev.ID
	s.byOrganizerCode[ev.OrganizerCode] = ev.ID
	return nil
}

// GetEvent retrieves an event by id, returns nil if not found.
func (s *Store) GetEvent(ctx context.Context, id uuid.UUID) (*facestore.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ev, ok := s.events[id]
	if !ok {
		return nil, nil
	}
	out := *ev
	return &out, nil
}

// GetEventByAccessCode retrieves an event by attendee access code.
func (s *Store) GetEventByAccessCode(ctx context.Context, code string) (*facestore.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byAccessCode[normalizeCode(code)]
	if !ok {
		return nil, nil
	}
	out := *s.events[id]
	return &out, nil
}

// GetEventByOrganizerCode retrieves an event by organizer code.
func (s *Store) GetEventByOrganizerCode(ctx context.Context, code string) (*facestore.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byOrganizerCode[normalizeCode(code)]
	if !ok {
		return nil, nil
	}
	out := *s.events[id]
	return &out, nil
}

// EventsByOwner returns all events owned by the given identity, newest first.
func (s *Store) EventsByOwner(ctx context.Context, ownerID string) ([]facestore.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []facestore.Event
	for _, ev := range s.events {
		if ev.OwnerID == ownerID {
			out = append(out, *ev)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// EventIDs returns the ids of all events.
func (s *Store) EventIDs(ctx context.Context) ([]uuid.UUID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]uuid.UUID, 0, len(s.events))
	for id := range s.events {
		ids = append(ids, id)
	}
	return ids, nil
}

// DeleteEvent removes an event and everything scoped to it in one atomic
// step. Concurrent readers observe either the full pre-delete state or the
// empty post-delete state.
func (s *Store) DeleteEvent(ctx context.Context, id uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cascadeDeleteLocked(id), nil
}

// DeleteExpiredEvents cascades over every event past its expiry.
func (s *Store) DeleteExpiredEvents(ctx context.Context, now time.Time) ([]uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted []uuid.UUID
	for id, ev := range s.events {
		if ev.Expired(now) {
			deleted = append(deleted, id)
		}
	}
	for _, id := range deleted {
		s.cascadeDeleteLocked(id)
	}
	return deleted, nil
}

// IncrementAttendeeCount bumps the attendee usage counter.
func (s *Store) IncrementAttendeeCount(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ev, ok := s.events[id]
	if !ok {
		return facestore.ErrUnknownEvent
	}
	ev.AttendeeCount++
	return nil
}

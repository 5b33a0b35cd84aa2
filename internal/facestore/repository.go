package facestore

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// EventReader provides read-only access to events.
type EventReader interface {
	// GetEvent retrieves an event by id, returns nil if not found.
	GetEvent(ctx context.Context, id uuid.UUID) (*Event, error)
	// GetEventByAccessCode retrieves an event by attendee access code.
	GetEventByAccessCode(ctx context.Context, code string) (*Event, error)
	// GetEventByOrganizerCode retrieves an event by organizer code.
	GetEventByOrganizerCode(ctx context.Context, code string) (*Event, error)
	// EventsByOwner returns all events owned by the given identity,
	// newest first.
	EventsByOwner(ctx context.Context, ownerID string) ([]Event, error)
	// EventIDs returns the ids of all events.
	EventIDs(ctx context.Context) ([]uuid.UUID, error)
}

// EventWriter provides write access to events.
type EventWriter interface {
	EventReader

	// CreateEvent persists a new event. The caller fills ID and codes.
	CreateEvent(ctx context.Context, ev *Event) error
	// DeleteEvent removes an event and, atomically, every photo,
	// embedding, and match record scoped to it. Returns false if the
	// event did not exist.
	DeleteEvent(ctx context.Context, id uuid.UUID) (bool, error)
	// DeleteExpiredEvents cascades DeleteEvent over every event whose
	// expiry is before now, returning the deleted ids.
	DeleteExpiredEvents(ctx context.Context, now time.Time) ([]uuid.UUID, error)
	// IncrementAttendeeCount bumps the attendee usage counter.
	IncrementAttendeeCount(ctx context.Context, id uuid.UUID) error
}

// PhotoReader provides read-only access to photos.
type PhotoReader interface {
	// GetPhoto retrieves a photo by id, returns nil if not found.
	GetPhoto(ctx context.Context, id uuid.UUID) (*Photo, error)
	// PhotosForEvent returns all photos for an event in upload order.
	PhotosForEvent(ctx context.Context, eventID uuid.UUID) ([]Photo, error)
}

// PhotoWriter provides write access to photos.
type PhotoWriter interface {
	PhotoReader

	// CreatePhoto persists a new photo and bumps the event photo counter.
	// Fails with ErrUnknownEvent on a missing event.
	CreatePhoto(ctx context.Context, p *Photo) error
	// UpdatePhotoStatus records the outcome of pipeline processing.
	UpdatePhotoStatus(ctx context.Context, id uuid.UUID, status PhotoStatus, faceCount int, processingMS *int64) error
	// DeletePhoto removes a photo and its embeddings, adjusting event
	// counters. Returns false if the photo did not exist.
	DeletePhoto(ctx context.Context, id uuid.UUID) (bool, error)
}

// EmbeddingReader provides read-only access to face embeddings.
type EmbeddingReader interface {
	// EmbeddingsForEvent returns every embedding for an event, ordered by
	// photo upload order then embedding sequence. This is the exact-scan
	// source for small events and the index build input for large ones.
	EmbeddingsForEvent(ctx context.Context, eventID uuid.UUID) ([]FaceEmbedding, error)
	// CountEmbeddings returns the number of embeddings for an event.
	CountEmbeddings(ctx context.Context, eventID uuid.UUID) (int, error)
}

// EmbeddingWriter provides write access to face embeddings.
type EmbeddingWriter interface {
	EmbeddingReader

	// InsertEmbedding appends one embedding. Fails with
	// ErrDimensionMismatch when the vector length is not EmbeddingDim and
	// with ErrUnknownPhoto/ErrUnknownEvent on referential violations;
	// never partially written.
	InsertEmbedding(ctx context.Context, e *FaceEmbedding) error
	// DeleteEmbeddingsByPhoto removes all embeddings for a photo.
	// Idempotent; returns the number removed.
	DeleteEmbeddingsByPhoto(ctx context.Context, photoID uuid.UUID) (int, error)
	// DeleteEmbeddingsByEvent removes all embeddings for an event.
	// Idempotent; returns the number removed.
	DeleteEmbeddingsByEvent(ctx context.Context, eventID uuid.UUID) (int, error)
}

// MatchReader provides the analytics read operations over match records.
type MatchReader interface {
	// SimilarityDistribution buckets the event's matches into the five
	// fixed confidence bands, returning only non-empty bands ordered by
	// lower bound descending.
	SimilarityDistribution(ctx context.Context, eventID uuid.UUID) ([]SimilarityBand, error)
	// SimilarityStats returns mean/median/min/max/count over all recorded
	// matches for the event. Returns zero stats when none exist.
	SimilarityStats(ctx context.Context, eventID uuid.UUID) (*SimilarityStats, error)
	// FalsePositiveEstimate returns the share of matches below
	// lowThreshold as a percentage, with the raw counts used.
	FalsePositiveEstimate(ctx context.Context, eventID uuid.UUID, lowThreshold float64) (*FalsePositiveEstimate, error)
	// LastMatchAt returns the timestamp of the event's most recent match,
	// or nil when none exist.
	LastMatchAt(ctx context.Context, eventID uuid.UUID) (*time.Time, error)
}

// MatchWriter provides write access to match records.
type MatchWriter interface {
	MatchReader

	// RecordMatch appends one match record. Fails only on referential
	// violation (ErrUnknownEvent/ErrUnknownPhoto).
	RecordMatch(ctx context.Context, m *MatchRecord) error
}

// Store is the full data-access surface a backend must implement.
type Store interface {
	EventWriter
	PhotoWriter
	EmbeddingWriter
	MatchWriter
}

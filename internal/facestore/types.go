package facestore

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
	"time"

	"github.com/google/uuid"
)

// PhotoStatus is the lifecycle state set by the external ingestion pipeline.
type PhotoStatus string

const (
	PhotoPending PhotoStatus = "pending"
	PhotoDone    PhotoStatus = "done"
	PhotoError   PhotoStatus = "error"
)

// Event is the tenant root. One organizer's photo collection and all data
// derived from it hang off a single event.
type Event struct {
	ID            uuid.UUID
	OwnerID       string // empty for events created before owner accounts existed
	Name          string
	Description   string
	CreatedAt     time.Time
	ExpiresAt     *time.Time // nil = never expires
	AccessCode    string     // attendee join code, globally unique
	OrganizerCode string     // organizer management code, globally unique
	PhotoCount    int
	ProcessedCount int
	AttendeeCount int
}

// Expired reports whether the event has passed its expiry time.
func (e *Event) Expired(now time.Time) bool {
	return e.ExpiresAt != nil && e.ExpiresAt.Before(now)
}

// Photo belongs to exactly one event. Mutated only by the ingestion
// pipeline, never by the search path.
type Photo struct {
	ID           uuid.UUID
	Seq          int64 // store-assigned upload order, ascending
	EventID      uuid.UUID
	Filename     string
	OriginalName string
	FileSize     int64
	Width        int
	Height       int
	FaceCount    int
	Status       PhotoStatus
	UploadedAt   time.Time
	ProcessedAt  *time.Time
	ProcessingMS *int64
}

// BoundingBox locates a detected face inside its photo, in pixels.
type BoundingBox struct {
	X float64
	Y float64
	W float64
	H float64
}

// FaceEmbedding is a fixed-length feature vector for one detected face.
// Immutable once written; corrections are delete+insert.
type FaceEmbedding struct {
	ID        uuid.UUID
	Seq       int64 // store-assigned, used as the ANN graph key
	PhotoID   uuid.UUID
	EventID   uuid.UUID // denormalized for partition locality
	Vector    []float32
	BBox      BoundingBox
	CreatedAt time.Time

	// PhotoSeq is the owning photo's upload order, carried alongside the
	// embedding so ranking ties can be broken without a photo lookup.
	PhotoSeq int64
}

// MatchRecord is one append-only analytics fact per returned search match.
type MatchRecord struct {
	ID            uuid.UUID
	EventID       uuid.UUID
	PhotoID       uuid.UUID
	Similarity    float64
	ThresholdUsed float64
	MatchedAt     time.Time
	RequesterID   string // empty for anonymous attendees
	Feedback      string // set later by the out-of-scope feedback flow
	Metadata      map[string]string
}

// SimilarityBand is one bucket of the match confidence distribution.
type SimilarityBand struct {
	Label string  // e.g. "0.70-0.89"
	Low   float64 // inclusive lower bound
	Count int64
}

// SimilarityStats summarizes all recorded matches for one event.
type SimilarityStats struct {
	Mean         float64
	Median       float64
	Min          float64
	Max          float64
	TotalMatches int64
}

// FalsePositiveEstimate is the heuristic accuracy proxy: the share of
// matches below the low-confidence threshold stands in for true negatives
// in the absence of real user feedback.
type FalsePositiveEstimate struct {
	EstimatePct          float64 // percentage, rounded to 2 decimals
	TotalMatches         int64
	LowConfidenceMatches int64
}

// NewCode returns an unguessable uppercase hex token for event access and
// organizer codes.
func NewCode() string {
	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand never fails on supported platforms
		panic("facestore: reading random bytes: " + err.Error())
	}
	return strings.ToUpper(hex.EncodeToString(buf))
}

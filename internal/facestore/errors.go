package facestore

import "errors"

// Error taxonomy shared by every component. Callers match with errors.Is;
// wrapped variants carry context via fmt.Errorf("...: %w", err).
var (
	// ErrDimensionMismatch signals a vector whose length is not EmbeddingDim.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrUnknownEvent signals a reference to an event that does not exist.
	ErrUnknownEvent = errors.New("unknown event")

	// ErrUnknownPhoto signals a reference to a photo that does not exist.
	ErrUnknownPhoto = errors.New("unknown photo")

	// ErrInvalidThreshold signals a similarity threshold outside [0, 1].
	ErrInvalidThreshold = errors.New("threshold out of range")

	// ErrUnauthorized signals a policy denial. The message never names
	// another tenant's data.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrTimeout signals that the caller-supplied deadline expired before
	// a complete result could be produced.
	ErrTimeout = errors.New("operation deadline exceeded")

	// ErrRefreshInProgress signals a concurrent aggregate refresh. Benign:
	// readers keep serving the previous snapshot.
	ErrRefreshInProgress = errors.New("aggregate refresh already in progress")
)

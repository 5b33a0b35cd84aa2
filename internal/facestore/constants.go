package facestore

// EmbeddingDim is the fixed dimension for face embeddings (128 for the
// dlib/face_recognition encoder used by the recognition pipeline).
const EmbeddingDim = 128

// Search defaults and ranking limits.
const (
	// DefaultThreshold is the minimum similarity for a candidate to count
	// as a match when the caller does not supply one.
	DefaultThreshold = 0.40

	// DefaultSearchLimit caps the number of returned matches to bound
	// response payload and latency.
	DefaultSearchLimit = 1000

	// LowConfidenceThreshold is the default cutoff for the false-positive
	// estimator: matches below it are counted as likely false positives.
	LowConfidenceThreshold = 0.50
)

// Per-event ANN index tuning.
const (
	// IndexMinVectors is the embedding count below which an event is
	// searched with an exact linear scan instead of the ANN graph.
	IndexMinVectors = 50

	// IndexRebuildGrowth triggers a background rebuild once an event's
	// embedding count exceeds this multiple of the count at build time.
	IndexRebuildGrowth = 1.5

	// HNSWMaxNeighbors (M) is the maximum number of neighbors per node.
	// Higher values improve recall but increase memory and build time.
	HNSWMaxNeighbors = 16

	// HNSWSearchMultiplier is the factor to request more candidates from
	// the graph than the caller's limit, so enough survive the exact
	// threshold filter.
	HNSWSearchMultiplier = 3
)

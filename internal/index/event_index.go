// Package index maintains per-event approximate nearest-neighbor indexes
// over face embeddings. Partitioning is strictly tenant-scoped: a graph
// never spans events, so one event's pathological data distribution cannot
// slow another's searches.
package index

import (
	"time"

	"github.com/coder/hnsw"

	"github.com/grapic/facematch/internal/facestore"
)

// EventIndex is one immutable generation of an event's HNSW graph. A
// generation is built once and then only read; rebuilds produce a new
// generation that the Manager swaps in.
type EventIndex struct {
	graph      *hnsw.Graph[int64]
	bySeq      map[int64]*facestore.FaceEmbedding
	builtCount int
	builtAt    time.Time
}

// buildEventIndex constructs a generation from a snapshot of an event's
// embeddings.
func buildEventIndex(embs []facestore.FaceEmbedding) *EventIndex {
	g := hnsw.NewGraph[int64]()
	g.M = facestore.HNSWMaxNeighbors
	g.Ml = 1.0 / float64(facestore.HNSWMaxNeighbors) // Standard HNSW formula
	g.Distance = hnsw.CosineDistance

	idx := &EventIndex{
		graph:      g,
		bySeq:      make(map[int64]*facestore.FaceEmbedding, len(embs)),
		builtCount: len(embs),
		builtAt:    time.Now(),
	}

	for i := range embs {
		e := &embs[i]
		if len(e.Vector) == 0 {
			continue
		}
		g.Add(hnsw.MakeNode(e.Seq, e.Vector))
		idx.bySeq[e.Seq] = e
	}
	return idx
}

// Search returns up to k likely-near embeddings. The result is a superset
// candidate list: callers re-rank with exact cosine similarity.
func (x *EventIndex) Search(query []float32, k int) []facestore.FaceEmbedding {
	neighbors := x.graph.Search(query, k)

	out := make([]facestore.FaceEmbedding, 0, len(neighbors))
	for _, n := range neighbors {
		if e, ok := x.bySeq[n.Key]; ok {
			out = append(out, *e)
		}
	}
	return out
}

// Count returns the number of embeddings in this generation.
func (x *EventIndex) Count() int {
	return len(x.bySeq)
}

// BuiltAt returns when this generation was constructed.
func (x *EventIndex) BuiltAt() time.Time {
	return x.builtAt
}

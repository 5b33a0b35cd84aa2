package handlers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/grapic/facematch/internal/facestore"
	"github.com/grapic/facematch/internal/observability"
	"github.com/grapic/facematch/internal/tenancy"
	"github.com/grapic/facematch/internal/web/middleware"
)

// EmbeddingsHandler accepts face embeddings from the recognition pipeline.
type EmbeddingsHandler struct {
	store facestore.Store
}

// NewEmbeddingsHandler creates an EmbeddingsHandler.
func NewEmbeddingsHandler(store facestore.Store) *EmbeddingsHandler {
	return &EmbeddingsHandler{store: store}
}

type ingestEmbeddingRequest struct {
	Vector []float32  `json:"vector"`
	BBox   [4]float64 `json:"bbox"`
}

type ingestEmbeddingsRequest struct {
	Faces []ingestEmbeddingRequest `json:"faces"`
}

// Ingest handles POST /api/photos/{id}/embeddings: all detected faces of
// one photo in a single call. Vectors are validated before anything is
// written; a bad batch is rejected whole.
func (h *EmbeddingsHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	photoID, ok := urlUUID(r, "id")
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid photo id")
		return
	}

	var req ingestEmbeddingsRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	for _, f := range req.Faces {
		if len(f.Vector) != facestore.EmbeddingDim {
			respondStoreError(w, facestore.ErrDimensionMismatch)
			return
		}
	}

	photo, err := h.store.GetPhoto(r.Context(), photoID)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	if photo == nil {
		respondError(w, http.StatusNotFound, "photo not found")
		return
	}

	ev, err := h.store.GetEvent(r.Context(), photo.EventID)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	if ev == nil {
		respondError(w, http.StatusNotFound, "event not found")
		return
	}

	p := middleware.FromContext(r.Context())
	if err := tenancy.Authorize(p, tenancy.ActionIngest, tenancy.Resource{EventID: ev.ID, OwnerID: ev.OwnerID}); err != nil {
		respondStoreError(w, err)
		return
	}

	ids := make([]uuid.UUID, 0, len(req.Faces))
	for _, f := range req.Faces {
		emb := &facestore.FaceEmbedding{
			ID:      uuid.New(),
			PhotoID: photoID,
			EventID: photo.EventID,
			Vector:  f.Vector,
			BBox:    facestore.BoundingBox{X: f.BBox[0], Y: f.BBox[1], W: f.BBox[2], H: f.BBox[3]},
		}
		if err := h.store.InsertEmbedding(r.Context(), emb); err != nil {
			respondStoreError(w, err)
			return
		}
		observability.EmbeddingsIngested.Inc()
		ids = append(ids, emb.ID)
	}

	respondJSON(w, http.StatusCreated, map[string]any{
		"embedding_ids": ids,
		"count":         len(ids),
	})
}

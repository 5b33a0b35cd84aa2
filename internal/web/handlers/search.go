package handlers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/grapic/facematch/internal/config"
	"github.com/grapic/facematch/internal/search"
	"github.com/grapic/facematch/internal/web/middleware"
)

// SearchHandler runs similarity searches for attendees and organizers.
type SearchHandler struct {
	matcher *search.Matcher
	cfg     *config.Config
}

// NewSearchHandler creates a SearchHandler.
func NewSearchHandler(matcher *search.Matcher, cfg *config.Config) *SearchHandler {
	return &SearchHandler{matcher: matcher, cfg: cfg}
}

type searchRequest struct {
	Embedding []float32 `json:"embedding"`
	Threshold *float64  `json:"threshold"`
	Limit     int       `json:"limit"`
}

type searchMatch struct {
	PhotoID    uuid.UUID `json:"photo_id"`
	Similarity float64   `json:"similarity"`
}

type searchResponse struct {
	Matches   []searchMatch `json:"matches"`
	Count     int           `json:"count"`
	Threshold float64       `json:"threshold"`
}

// Search handles POST /api/events/{id}/search. The query embedding comes
// from the client-side face pipeline; the selfie itself never reaches this
// service.
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	eventID, ok := urlUUID(r, "id")
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid event id")
		return
	}

	var req searchRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}

	opts := search.Options{
		Threshold: h.cfg.Search.Threshold,
		Limit:     h.cfg.Search.Limit,
	}
	if req.Threshold != nil {
		opts.Threshold = *req.Threshold
	}
	if req.Limit > 0 {
		opts.Limit = req.Limit
	}

	p := middleware.FromContext(r.Context())
	matches, err := h.matcher.SearchAndRecord(r.Context(), p, eventID, req.Embedding, opts)
	if err != nil {
		respondStoreError(w, err)
		return
	}

	out := make([]searchMatch, 0, len(matches))
	for _, m := range matches {
		out = append(out, searchMatch{PhotoID: m.PhotoID, Similarity: m.Similarity})
	}
	respondJSON(w, http.StatusOK, searchResponse{
		Matches:   out,
		Count:     len(out),
		Threshold: opts.Threshold,
	})
}

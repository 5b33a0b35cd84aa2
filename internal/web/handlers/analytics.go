package handlers

import (
	"net/http"
	"strconv"

	"github.com/grapic/facematch/internal/analytics"
	"github.com/grapic/facematch/internal/facestore"
	"github.com/grapic/facematch/internal/tenancy"
	"github.com/grapic/facematch/internal/web/middleware"
)

// AnalyticsHandler serves match analytics: live aggregate queries and the
// precomputed snapshot.
type AnalyticsHandler struct {
	aggregator *analytics.Aggregator
	refresher  *analytics.Refresher
	events     facestore.EventReader
}

// NewAnalyticsHandler creates an AnalyticsHandler.
func NewAnalyticsHandler(aggregator *analytics.Aggregator, refresher *analytics.Refresher, events facestore.EventReader) *AnalyticsHandler {
	return &AnalyticsHandler{aggregator: aggregator, refresher: refresher, events: events}
}

// Distribution handles GET /api/events/{id}/analytics/distribution.
func (h *AnalyticsHandler) Distribution(w http.ResponseWriter, r *http.Request) {
	eventID, ok := urlUUID(r, "id")
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid event id")
		return
	}

	p := middleware.FromContext(r.Context())
	bands, err := h.aggregator.SimilarityDistribution(r.Context(), p, eventID)
	if err != nil {
		respondStoreError(w, err)
		return
	}

	type bandOut struct {
		Band    string `json:"band"`
		Matches int64  `json:"matches"`
	}
	out := make([]bandOut, 0, len(bands))
	for _, b := range bands {
		out = append(out, bandOut{Band: b.Label, Matches: b.Count})
	}
	respondJSON(w, http.StatusOK, map[string]any{"distribution": out})
}

// Stats handles GET /api/events/{id}/analytics/stats.
func (h *AnalyticsHandler) Stats(w http.ResponseWriter, r *http.Request) {
	eventID, ok := urlUUID(r, "id")
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid event id")
		return
	}

	p := middleware.FromContext(r.Context())
	stats, err := h.aggregator.SimilarityStats(r.Context(), p, eventID)
	if err != nil {
		respondStoreError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"mean":          stats.Mean,
		"median":        stats.Median,
		"min":           stats.Min,
		"max":           stats.Max,
		"total_matches": stats.TotalMatches,
	})
}

// FalsePositives handles GET /api/events/{id}/analytics/false-positives.
// An optional low_threshold query parameter overrides the 0.50 default.
func (h *AnalyticsHandler) FalsePositives(w http.ResponseWriter, r *http.Request) {
	eventID, ok := urlUUID(r, "id")
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid event id")
		return
	}

	low := facestore.LowConfidenceThreshold
	if s := r.URL.Query().Get("low_threshold"); s != "" {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || f <= 0 || f > 1 {
			respondError(w, http.StatusBadRequest, "invalid low_threshold")
			return
		}
		low = f
	}

	p := middleware.FromContext(r.Context())
	est, err := h.aggregator.FalsePositiveEstimate(r.Context(), p, eventID, low)
	if err != nil {
		respondStoreError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"estimated_false_positive_pct": est.EstimatePct,
		"total_matches":                est.TotalMatches,
		"low_confidence_matches":       est.LowConfidenceMatches,
	})
}

// Snapshot handles GET /api/events/{id}/analytics/snapshot: the whole
// precomputed aggregate in one response. Data is as fresh as the last
// refresh, which the payload states.
func (h *AnalyticsHandler) Snapshot(w http.ResponseWriter, r *http.Request) {
	eventID, ok := urlUUID(r, "id")
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid event id")
		return
	}

	ev, err := h.events.GetEvent(r.Context(), eventID)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	if ev == nil {
		respondError(w, http.StatusNotFound, "event not found")
		return
	}
	p := middleware.FromContext(r.Context())
	if err := tenancy.Authorize(p, tenancy.ActionReadAnalytics, tenancy.Resource{EventID: ev.ID, OwnerID: ev.OwnerID}); err != nil {
		respondStoreError(w, err)
		return
	}

	agg := h.refresher.Snapshot(eventID)
	if agg == nil {
		respondError(w, http.StatusNotFound, "no snapshot for event yet")
		return
	}

	type bandOut struct {
		Band       string  `json:"band"`
		Matches    int64   `json:"matches"`
		Percentage float64 `json:"percentage"`
	}
	bands := make([]bandOut, 0, len(agg.Distribution))
	for _, b := range agg.Distribution {
		bands = append(bands, bandOut{Band: b.Label, Matches: b.Count, Percentage: b.Percentage})
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"event_id":     agg.EventID,
		"distribution": bands,
		"stats": map[string]any{
			"mean":          agg.Stats.Mean,
			"median":        agg.Stats.Median,
			"min":           agg.Stats.Min,
			"max":           agg.Stats.Max,
			"total_matches": agg.Stats.TotalMatches,
		},
		"estimated_false_positive_pct": agg.FalsePos.EstimatePct,
		"last_match_at":                agg.LastMatchAt,
		"refreshed_at":                 agg.RefreshedAt,
	})
}

// Refresh handles POST /api/analytics/refresh: force a snapshot rebuild.
// A refresh already in flight yields 409; the previous snapshot stays
// valid, so callers can simply retry later.
func (h *AnalyticsHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	p := middleware.FromContext(r.Context())
	if _, ok := p.(tenancy.Anonymous); ok {
		respondError(w, http.StatusForbidden, "not allowed")
		return
	}

	if err := h.refresher.Refresh(r.Context()); err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "refreshed"})
}

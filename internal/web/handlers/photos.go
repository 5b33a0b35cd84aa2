package handlers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/grapic/facematch/internal/facestore"
	"github.com/grapic/facematch/internal/index"
	"github.com/grapic/facematch/internal/tenancy"
	"github.com/grapic/facematch/internal/web/middleware"
)

// PhotosHandler manages photo registration for the ingestion pipeline.
type PhotosHandler struct {
	store facestore.Store
	idx   *index.Manager
}

// NewPhotosHandler creates a PhotosHandler.
func NewPhotosHandler(store facestore.Store, idx *index.Manager) *PhotosHandler {
	return &PhotosHandler{store: store, idx: idx}
}

type createPhotoRequest struct {
	Filename     string `json:"filename"`
	OriginalName string `json:"original_name"`
	FileSize     int64  `json:"file_size"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
}

type photoResponse struct {
	ID          uuid.UUID             `json:"id"`
	EventID     uuid.UUID             `json:"event_id"`
	Filename    string                `json:"filename"`
	FaceCount   int                   `json:"face_count"`
	Status      facestore.PhotoStatus `json:"status"`
	UploadedAt  time.Time             `json:"uploaded_at"`
	ProcessedAt *time.Time            `json:"processed_at,omitempty"`
}

func photoView(p *facestore.Photo) photoResponse {
	return photoResponse{
		ID:          p.ID,
		EventID:     p.EventID,
		Filename:    p.Filename,
		FaceCount:   p.FaceCount,
		Status:      p.Status,
		UploadedAt:  p.UploadedAt,
		ProcessedAt: p.ProcessedAt,
	}
}

func (h *PhotosHandler) authorizeIngest(r *http.Request, eventID uuid.UUID) error {
	ev, err := h.store.GetEvent(r.Context(), eventID)
	if err != nil {
		return err
	}
	if ev == nil {
		return facestore.ErrUnknownEvent
	}
	p := middleware.FromContext(r.Context())
	return tenancy.Authorize(p, tenancy.ActionIngest, tenancy.Resource{EventID: ev.ID, OwnerID: ev.OwnerID})
}

// Create handles POST /api/events/{id}/photos: the pipeline registers a
// stored photo so embeddings can reference it.
func (h *PhotosHandler) Create(w http.ResponseWriter, r *http.Request) {
	eventID, ok := urlUUID(r, "id")
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid event id")
		return
	}

	var req createPhotoRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if req.Filename == "" {
		respondError(w, http.StatusBadRequest, "filename is required")
		return
	}

	if err := h.authorizeIngest(r, eventID); err != nil {
		respondStoreError(w, err)
		return
	}

	photo := &facestore.Photo{
		ID:           uuid.New(),
		EventID:      eventID,
		Filename:     req.Filename,
		OriginalName: req.OriginalName,
		FileSize:     req.FileSize,
		Width:        req.Width,
		Height:       req.Height,
	}
	if err := h.store.CreatePhoto(r.Context(), photo); err != nil {
		respondStoreError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, photoView(photo))
}

// List handles GET /api/events/{id}/photos.
func (h *PhotosHandler) List(w http.ResponseWriter, r *http.Request) {
	eventID, ok := urlUUID(r, "id")
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid event id")
		return
	}

	ev, err := h.store.GetEvent(r.Context(), eventID)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	if ev == nil {
		respondError(w, http.StatusNotFound, "event not found")
		return
	}

	p := middleware.FromContext(r.Context())
	if err := tenancy.Authorize(p, tenancy.ActionReadMatches, tenancy.Resource{EventID: ev.ID, OwnerID: ev.OwnerID}); err != nil {
		respondStoreError(w, err)
		return
	}

	photos, err := h.store.PhotosForEvent(r.Context(), eventID)
	if err != nil {
		respondStoreError(w, err)
		return
	}

	views := make([]photoResponse, 0, len(photos))
	for i := range photos {
		views = append(views, photoView(&photos[i]))
	}
	respondJSON(w, http.StatusOK, views)
}

type photoStatusRequest struct {
	Status       facestore.PhotoStatus `json:"status"`
	FaceCount    int                   `json:"face_count"`
	ProcessingMS *int64                `json:"processing_ms"`
}

// UpdateStatus handles PATCH /api/photos/{id}: the pipeline reports the
// processing outcome.
func (h *PhotosHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	photoID, ok := urlUUID(r, "id")
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid photo id")
		return
	}

	var req photoStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	switch req.Status {
	case facestore.PhotoPending, facestore.PhotoDone, facestore.PhotoError:
	default:
		respondError(w, http.StatusBadRequest, "invalid photo status")
		return
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
	if err := h.authorizeIngest(r, photo.EventID); err != nil {
		respondStoreError(w, err)
		return
	}

	if err := h.store.UpdatePhotoStatus(r.Context(), photoID, req.Status, req.FaceCount, req.ProcessingMS); err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

// Delete handles DELETE /api/photos/{id}, removing the photo and its
// embeddings.
func (h *PhotosHandler) Delete(w http.ResponseWriter, r *http.Request) {
	photoID, ok := urlUUID(r, "id")
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid photo id")
		return
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
	if err := h.authorizeIngest(r, photo.EventID); err != nil {
		respondStoreError(w, err)
		return
	}

	if _, err := h.store.DeletePhoto(r.Context(), photoID); err != nil {
		respondStoreError(w, err)
		return
	}
	// The index only rebuilds on growth; a shrinking event must drop its
	// generation or searches keep returning the deleted photo.
	h.idx.Invalidate(photo.EventID)

	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

package handlers

import (
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/grapic/facematch/internal/config"
	"github.com/grapic/facematch/internal/facestore"
	"github.com/grapic/facematch/internal/index"
	"github.com/grapic/facematch/internal/tenancy"
	"github.com/grapic/facematch/internal/web/middleware"
)

// EventsHandler manages event lifecycle endpoints.
type EventsHandler struct {
	store facestore.EventWriter
	idx   *index.Manager
	cfg   *config.Config
}

// NewEventsHandler creates an EventsHandler.
func NewEventsHandler(store facestore.EventWriter, idx *index.Manager, cfg *config.Config) *EventsHandler {
	return &EventsHandler{store: store, idx: idx, cfg: cfg}
}

type createEventRequest struct {
	Name          string `json:"name"`
	Description   string `json:"description"`
	ExpiresInDays *int   `json:"expires_in_days"`
}

type eventResponse struct {
	ID             uuid.UUID  `json:"id"`
	Name           string     `json:"name"`
	Description    string     `json:"description,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
	AccessCode     string     `json:"access_code,omitempty"`
	OrganizerCode  string     `json:"organizer_code,omitempty"`
	PhotoCount     int        `json:"photo_count"`
	ProcessedCount int        `json:"processed_count"`
	AttendeeCount  int        `json:"attendee_count"`
}

func ownerView(ev *facestore.Event) eventResponse {
	return eventResponse{
		ID:             ev.ID,
		Name:           ev.Name,
		Description:    ev.Description,
		CreatedAt:      ev.CreatedAt,
		ExpiresAt:      ev.ExpiresAt,
		AccessCode:     ev.AccessCode,
		OrganizerCode:  ev.OrganizerCode,
		PhotoCount:     ev.PhotoCount,
		ProcessedCount: ev.ProcessedCount,
		AttendeeCount:  ev.AttendeeCount,
	}
}

// attendeeView strips the management code; attendees only need the event
// identity and its public counters.
func attendeeView(ev *facestore.Event) eventResponse {
	v := ownerView(ev)
	v.OrganizerCode = ""
	return v
}

// Create handles POST /api/events. Anyone can create an event; the
// returned organizer code is the only management credential, so the owner
// identity is derived from it.
func (h *EventsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createEventRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if req.Name == "" {
		respondError(w, http.StatusBadRequest, "event name is required")
		return
	}

	days := h.cfg.Events.ExpiryDays
	if req.ExpiresInDays != nil {
		days = *req.ExpiresInDays
	}
	var expiresAt *time.Time
	if days > 0 {
		t := time.Now().AddDate(0, 0, days)
		expiresAt = &t
	}

	organizerCode := facestore.NewCode()
	ev := &facestore.Event{
		ID:            uuid.New(),
		OwnerID:       "code:" + organizerCode,
		Name:          req.Name,
		Description:   req.Description,
		ExpiresAt:     expiresAt,
		AccessCode:    facestore.NewCode(),
		OrganizerCode: organizerCode,
	}
	if err := h.store.CreateEvent(r.Context(), ev); err != nil {
		log.Printf("handlers: creating event: %v", err)
		respondStoreError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, ownerView(ev))
}

type joinEventRequest struct {
	AccessCode string `json:"access_code"`
}

// Join handles POST /api/events/join: an attendee exchanges an access code
// for the event identity.
func (h *EventsHandler) Join(w http.ResponseWriter, r *http.Request) {
	var req joinEventRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if req.AccessCode == "" {
		respondError(w, http.StatusBadRequest, "access code is required")
		return
	}

	ev, err := h.store.GetEventByAccessCode(r.Context(), req.AccessCode)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	if ev == nil || ev.Expired(time.Now()) {
		respondError(w, http.StatusNotFound, "event not found")
		return
	}

	respondJSON(w, http.StatusOK, attendeeView(ev))
}

// Get handles GET /api/events/{id}.
func (h *EventsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(r, "id")
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid event id")
		return
	}

	ev, err := h.store.GetEvent(r.Context(), id)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	if ev == nil {
		respondError(w, http.StatusNotFound, "event not found")
		return
	}

	p := middleware.FromContext(r.Context())
	res := tenancy.Resource{EventID: ev.ID, OwnerID: ev.OwnerID}
	if tenancy.Authorize(p, tenancy.ActionManageEvent, res) == nil {
		respondJSON(w, http.StatusOK, ownerView(ev))
		return
	}
	if err := tenancy.Authorize(p, tenancy.ActionSearch, res); err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, attendeeView(ev))
}

// List handles GET /api/events: all events owned by the caller.
func (h *EventsHandler) List(w http.ResponseWriter, r *http.Request) {
	p := middleware.FromContext(r.Context())
	owner, ok := p.(tenancy.Owner)
	if !ok {
		respondError(w, http.StatusForbidden, "not allowed")
		return
	}

	events, err := h.store.EventsByOwner(r.Context(), owner.UserID)
	if err != nil {
		respondStoreError(w, err)
		return
	}

	views := make([]eventResponse, 0, len(events))
	for i := range events {
		views = append(views, ownerView(&events[i]))
	}
	respondJSON(w, http.StatusOK, views)
}

// Delete handles DELETE /api/events/{id}. Removal cascades over photos,
// embeddings, and match history atomically, then drops the event's index.
func (h *EventsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(r, "id")
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid event id")
		return
	}

	ev, err := h.store.GetEvent(r.Context(), id)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	if ev == nil {
		respondError(w, http.StatusNotFound, "event not found")
		return
	}

	p := middleware.FromContext(r.Context())
	if err := tenancy.Authorize(p, tenancy.ActionManageEvent, tenancy.Resource{EventID: ev.ID, OwnerID: ev.OwnerID}); err != nil {
		respondStoreError(w, err)
		return
	}

	deleted, err := h.store.DeleteEvent(r.Context(), id)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	if !deleted {
		respondError(w, http.StatusNotFound, "event not found")
		return
	}
	h.idx.Invalidate(id)

	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

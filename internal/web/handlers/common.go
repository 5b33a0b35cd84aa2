package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/grapic/facematch/internal/facestore"
)

// errInvalidRequestBody is a shared error message for invalid JSON request bodies.
const errInvalidRequestBody = "invalid request body"

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// respondStoreError maps the service error taxonomy to HTTP statuses.
func respondStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, facestore.ErrDimensionMismatch),
		errors.Is(err, facestore.ErrInvalidThreshold):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, facestore.ErrUnknownEvent),
		errors.Is(err, facestore.ErrUnknownPhoto):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, facestore.ErrUnauthorized):
		respondError(w, http.StatusForbidden, "not allowed")
	case errors.Is(err, facestore.ErrTimeout):
		respondError(w, http.StatusGatewayTimeout, "search timed out")
	case errors.Is(err, facestore.ErrRefreshInProgress):
		respondError(w, http.StatusConflict, "refresh already running, previous snapshot remains valid")
	default:
		respondError(w, http.StatusInternalServerError, "internal error")
	}
}

// decodeJSON parses the request body into dst.
func decodeJSON(r *http.Request, dst any) error {
	return json.NewDecoder(r.Body).Decode(dst)
}

// urlUUID parses a UUID URL parameter.
func urlUUID(r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	return id, err == nil
}

// HealthCheck handles the health check endpoint.
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}

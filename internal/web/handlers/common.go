package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/kozaktomas/face-sorter/internal/catalog"
	"github.com/kozaktomas/face-sorter/internal/materialize"
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

// statusForError maps the catalog's typed errors to HTTP status codes.
func statusForError(err error) int {
	switch {
	case errors.Is(err, catalog.ErrUnknownCluster), errors.Is(err, catalog.ErrUnknownObservation):
		return http.StatusNotFound
	case errors.Is(err, catalog.ErrNameConflict), errors.Is(err, materialize.ErrFilesystemConflict):
		return http.StatusConflict
	case errors.Is(err, catalog.ErrInvalidLabel), errors.Is(err, catalog.ErrNotConfirmed):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// respondCatalogError sends an error response with a status derived from the
// error type.
func respondCatalogError(w http.ResponseWriter, err error) {
	respondError(w, statusForError(err), err.Error())
}

// HealthCheck handles the health check endpoint.
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}

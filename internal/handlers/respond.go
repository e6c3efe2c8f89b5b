package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/tuorg/fleetcare/internal/db"
	"github.com/tuorg/fleetcare/internal/fleet"
)

// dateLayout is the wire format for calendar dates in request bodies and
// query parameters.
const dateLayout = "2006-01-02"

// writeJSON writes a JSON response with the given status code
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		json.NewEncoder(w).Encode(v)
	}
}

// writeServiceError maps service errors to HTTP status codes
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, fleet.ErrNotFound), errors.Is(err, db.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, fleet.ErrInvalidInput):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, fleet.ErrConflict):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, fleet.ErrInsufficientData):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	default:
		log.WithError(err).Error("Unhandled service error")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

// parseDate parses an optional YYYY-MM-DD value. An empty string yields nil.
func parseDate(value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	d, err := time.Parse(dateLayout, value)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/zoobzio/clockz"

	"github.com/tuorg/fleetcare/internal/fleet"
	"github.com/tuorg/fleetcare/internal/middleware"
	"github.com/tuorg/fleetcare/internal/models"
)

// BusHandler handles bus lifecycle requests
type BusHandler struct {
	busService    *fleet.BusService
	autoScheduler *fleet.AutoScheduleService
	clock         clockz.Clock
}

// NewBusHandler creates a new bus handler
func NewBusHandler(busService *fleet.BusService, autoScheduler *fleet.AutoScheduleService, clock clockz.Clock) *BusHandler {
	return &BusHandler{
		busService:    busService,
		autoScheduler: autoScheduler,
		clock:         clock,
	}
}

// CreateBusRequest is the body of POST /api/buses.
type CreateBusRequest struct {
	Plate       string `json:"plate"`
	KmInitial   int64  `json:"km_initial"`
	DateEnabled string `json:"date_enabled,omitempty"`
}

// UpdateBusRequest is the body of PUT /api/buses/{id}. It replaces the
// editable fields wholesale.
type UpdateBusRequest struct {
	Plate               string `json:"plate"`
	KmCurrent           int64  `json:"km_current"`
	LastMaintenanceDate string `json:"last_maintenance_date,omitempty"`
	Alias               string `json:"alias,omitempty"`
	Notes               string `json:"notes,omitempty"`
}

// List handles GET /api/buses
func (h *BusHandler) List(w http.ResponseWriter, r *http.Request) {
	buses, err := h.busService.List(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, buses)
}

// Get handles GET /api/buses/{id}
func (h *BusHandler) Get(w http.ResponseWriter, r *http.Request) {
	bus, err := h.busService.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bus)
}

// Create handles POST /api/buses
func (h *BusHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateBusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	dateEnabled, err := parseDate(req.DateEnabled)
	if err != nil {
		http.Error(w, "Invalid date_enabled, expected YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	bus, err := h.busService.Create(r.Context(), req.Plate, req.KmInitial, dateEnabled)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, bus)
}

// Update handles PUT /api/buses/{id}
func (h *BusHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req UpdateBusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	last, err := parseDate(req.LastMaintenanceDate)
	if err != nil {
		http.Error(w, "Invalid last_maintenance_date, expected YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	bus, err := h.busService.UpdateGeneral(r.Context(), r.PathValue("id"), req.Plate, req.KmCurrent, last, req.Alias, req.Notes)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bus)
}

// UpdateKm handles PATCH /api/buses/{id}/km
func (h *BusHandler) UpdateKm(w http.ResponseWriter, r *http.Request) {
	var req struct {
		KmCurrent int64 `json:"km_current"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	bus, err := h.busService.UpdateKm(r.Context(), r.PathValue("id"), req.KmCurrent)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bus)
}

// UpdateLastMaintenance handles PATCH /api/buses/{id}/last-maintenance
func (h *BusHandler) UpdateLastMaintenance(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Date string `json:"date"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	date, err := parseDate(req.Date)
	if err != nil || date == nil {
		http.Error(w, "Invalid date, expected YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	bus, err := h.busService.UpdateLastMaintenance(r.Context(), r.PathValue("id"), *date)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bus)
}

// UpdateStatus handles PATCH /api/buses/{id}/status
func (h *BusHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status        string `json:"status"`
		ReplacementID string `json:"replacement_id,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	bus, err := h.busService.UpdateStatus(r.Context(), r.PathValue("id"), models.BusStatus(req.Status), req.ReplacementID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bus)
}

// Delete handles DELETE /api/buses/{id}
func (h *BusHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.busService.Delete(r.Context(), r.PathValue("id")); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Prediction handles GET /api/buses/{id}/prediction. An optional kmPerDay
// query parameter overrides the configured daily mileage estimate.
func (h *BusHandler) Prediction(w http.ResponseWriter, r *http.Request) {
	var kmPerDay int64
	if v := r.URL.Query().Get("kmPerDay"); v != "" {
		parsed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			http.Error(w, "Invalid kmPerDay", http.StatusBadRequest)
			return
		}
		kmPerDay = parsed
	}

	pred, err := h.busService.Predictor().PredictByBus(r.Context(), r.PathValue("id"), kmPerDay, h.clock.Now())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pred)
}

// NextMaintenance handles GET /api/buses/{id}/next-maintenance
func (h *BusHandler) NextMaintenance(w http.ResponseWriter, r *http.Request) {
	bus, err := h.busService.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"bus_id":                bus.ID.Hex(),
		"status":                bus.Status,
		"next_maintenance_date": bus.NextMaintenanceDate,
	})
}

// AutoSchedule handles POST /api/buses/{id}/auto-schedule. An optional
// adjustDays query parameter shifts the predicted date within policy bounds.
func (h *BusHandler) AutoSchedule(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		http.Error(w, "User context not found", http.StatusUnauthorized)
		return
	}

	var adjustDays *int64
	if v := r.URL.Query().Get("adjustDays"); v != "" {
		parsed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			http.Error(w, "Invalid adjustDays", http.StatusBadRequest)
			return
		}
		adjustDays = &parsed
	}

	order, err := h.autoScheduler.ScheduleByPrediction(r.Context(), r.PathValue("id"), adjustDays, claims.Email)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, order)
}

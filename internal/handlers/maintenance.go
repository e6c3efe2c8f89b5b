package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/tuorg/fleetcare/internal/fleet"
	"github.com/tuorg/fleetcare/internal/models"
)

// MaintenanceHandler handles maintenance order requests
type MaintenanceHandler struct {
	service *fleet.MaintenanceService
}

// NewMaintenanceHandler creates a new maintenance order handler
func NewMaintenanceHandler(service *fleet.MaintenanceService) *MaintenanceHandler {
	return &MaintenanceHandler{service: service}
}

// CreateOrderRequest is the body of POST /api/maintenance.
type CreateOrderRequest struct {
	BusID     string `json:"bus_id"`
	Type      string `json:"type"`
	PlannedAt string `json:"planned_at,omitempty"`
	Notes     string `json:"notes,omitempty"`
}

// List handles GET /api/maintenance. An optional busId query parameter
// restricts the result to one bus.
func (h *MaintenanceHandler) List(w http.ResponseWriter, r *http.Request) {
	var (
		orders []models.MaintenanceOrder
		err    error
	)
	if busID := r.URL.Query().Get("busId"); busID != "" {
		orders, err = h.service.ListByBus(r.Context(), busID)
	} else {
		orders, err = h.service.ListAll(r.Context())
	}
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, orders)
}

// Get handles GET /api/maintenance/{id}
func (h *MaintenanceHandler) Get(w http.ResponseWriter, r *http.Request) {
	order, err := h.service.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

// Create handles POST /api/maintenance
func (h *MaintenanceHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if req.BusID == "" {
		http.Error(w, "bus_id is required", http.StatusBadRequest)
		return
	}

	plannedAt, err := parseDate(req.PlannedAt)
	if err != nil {
		http.Error(w, "Invalid planned_at, expected YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	order, err := h.service.Create(r.Context(), req.BusID, models.MaintenanceType(req.Type), plannedAt, req.Notes)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, order)
}

// Open handles PATCH /api/maintenance/{id}/open
func (h *MaintenanceHandler) Open(w http.ResponseWriter, r *http.Request) {
	order, err := h.service.Open(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

// Close handles PATCH /api/maintenance/{id}/close
func (h *MaintenanceHandler) Close(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Notes string `json:"notes,omitempty"`
	}
	// The body is optional; a close without notes keeps the existing ones.
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid JSON", http.StatusBadRequest)
			return
		}
	}

	order, err := h.service.Close(r.Context(), r.PathValue("id"), req.Notes)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

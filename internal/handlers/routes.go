package handlers

import "net/http"

// NewRouter registers every API route on a ServeMux. Authentication and rate
// limiting are layered on top by the caller.
func NewRouter(busHandler *BusHandler, maintenanceHandler *MaintenanceHandler, notificationHandler *NotificationHandler, authHandler *AuthHandler) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/auth/login", authHandler.Login)
	mux.HandleFunc("POST /api/auth/register", authHandler.Register)
	mux.HandleFunc("GET /api/auth/profile", authHandler.GetProfile)
	mux.HandleFunc("POST /api/auth/change-password", authHandler.ChangePassword)

	mux.HandleFunc("GET /api/buses", busHandler.List)
	mux.HandleFunc("POST /api/buses", busHandler.Create)
	mux.HandleFunc("GET /api/buses/{id}", busHandler.Get)
	mux.HandleFunc("PUT /api/buses/{id}", busHandler.Update)
	mux.HandleFunc("DELETE /api/buses/{id}", busHandler.Delete)
	mux.HandleFunc("PATCH /api/buses/{id}/km", busHandler.UpdateKm)
	mux.HandleFunc("PATCH /api/buses/{id}/last-maintenance", busHandler.UpdateLastMaintenance)
	mux.HandleFunc("PATCH /api/buses/{id}/status", busHandler.UpdateStatus)
	mux.HandleFunc("GET /api/buses/{id}/prediction", busHandler.Prediction)
	mux.HandleFunc("GET /api/buses/{id}/next-maintenance", busHandler.NextMaintenance)
	mux.HandleFunc("POST /api/buses/{id}/auto-schedule", busHandler.AutoSchedule)

	mux.HandleFunc("GET /api/maintenance", maintenanceHandler.List)
	mux.HandleFunc("POST /api/maintenance", maintenanceHandler.Create)
	mux.HandleFunc("GET /api/maintenance/{id}", maintenanceHandler.Get)
	mux.HandleFunc("PATCH /api/maintenance/{id}/open", maintenanceHandler.Open)
	mux.HandleFunc("PATCH /api/maintenance/{id}/close", maintenanceHandler.Close)

	mux.HandleFunc("GET /api/notifications/unread", notificationHandler.ListUnread)
	mux.HandleFunc("GET /api/notifications/unread/count", notificationHandler.CountUnread)
	mux.HandleFunc("PATCH /api/notifications/{id}/read", notificationHandler.MarkRead)

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	return mux
}

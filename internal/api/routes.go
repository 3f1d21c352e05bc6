package api

import (
	"github.com/gorilla/mux"
)

// SetupRoutes configures all API routes
func SetupRoutes(handler *Handler) *mux.Router {
	r := mux.NewRouter()

	// Health check
	r.HandleFunc("/health", handler.HealthCheck).Methods("GET")

	// Position routes
	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/positions", handler.GetAllPositions).Methods("GET")
	api.HandleFunc("/positions/eligible", handler.GetEligiblePositions).Methods("GET")
	api.HandleFunc("/positions/{id:[0-9]+}", handler.GetPosition).Methods("GET")
	api.HandleFunc("/stats", handler.GetStats).Methods("GET")
	api.HandleFunc("/discover", handler.TriggerDiscover).Methods("POST")
	api.HandleFunc("/refresh", handler.TriggerRefresh).Methods("POST")
	api.HandleFunc("/attempts", handler.GetRecentAttempts).Methods("GET")
	api.HandleFunc("/stop", handler.Shutdown).Methods("POST")

	return r
}

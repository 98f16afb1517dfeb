// Package handlers provides the HTTP handlers for the netctld API.
package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"netctld/internal/config"
	"netctld/internal/models"
)

// Handlers holds cross-cutting handler dependencies.
type Handlers struct {
	cfg       *config.Settings
	startTime time.Time
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(cfg *config.Settings) *Handlers {
	return &Handlers{
		cfg:       cfg,
		startTime: time.Now(),
	}
}

// Helper functions
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, models.ErrorResponse{Error: message, Code: status})
}

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	uptime := time.Since(h.startTime).Seconds()
	writeJSON(w, http.StatusOK, models.HealthResponse{
		Status:    "healthy",
		Version:   h.cfg.Version,
		Timestamp: time.Now(),
		Uptime:    uptime,
	})
}

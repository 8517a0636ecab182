// Package handler provides the bot's HTTP endpoints.
package handler

import (
	"encoding/json"
	"net/http"

	"github.com/your-org/flow-signal-bot/pkg/logger"
)

// HealthHandler reports process liveness.
type HealthHandler struct{}

// NewHealthHandler creates a health check handler.
func NewHealthHandler() *HealthHandler { return &HealthHandler{} }

// ServeHTTP implements http.Handler.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]string{"status": "ok"}); err != nil {
		logger.Warnf("Failed to write health response: %v", err)
	}
}

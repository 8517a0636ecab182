package handler

import (
	"encoding/json"
	"net/http"
	"sort"
	"time"

	"github.com/your-org/flow-signal-bot/internal/signal"
	"github.com/your-org/flow-signal-bot/pkg/logger"
)

// StatsHandler serves the current per-symbol signal statistics as JSON.
type StatsHandler struct {
	stats *signal.Stats
}

// NewStatsHandler creates a stats handler over the engine's stats registry.
func NewStatsHandler(stats *signal.Stats) *StatsHandler {
	return &StatsHandler{stats: stats}
}

type statsResponse struct {
	GeneratedAt time.Time            `json:"generated_at"`
	TotalROI    float64              `json:"total_roi"`
	Symbols     []signal.SymbolStats `json:"symbols"`
}

// ServeHTTP implements http.Handler.
func (h *StatsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	snapshot := h.stats.Snapshot()
	symbols := make([]signal.SymbolStats, 0, len(snapshot))
	for _, ss := range snapshot {
		symbols = append(symbols, ss)
	}
	sort.Slice(symbols, func(i, j int) bool { return symbols[i].Symbol < symbols[j].Symbol })

	resp := statsResponse{
		GeneratedAt: time.Now().UTC(),
		TotalROI:    h.stats.TotalROI(),
		Symbols:     symbols,
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logger.Warnf("Failed to write stats response: %v", err)
	}
}

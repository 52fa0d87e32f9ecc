// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"net/http"

	"github.com/okian/meradin/pkg/metrics"
)

// StatsProvider defines the interface for getting service statistics.
type StatsProvider interface {
	GetStats() map[string]interface{}
}

// StatsHandler handles stats requests.
type StatsHandler struct {
	statsProvider StatsProvider
}

// NewStatsHandler creates a new stats handler.
func NewStatsHandler(statsProvider StatsProvider) *StatsHandler {
	return &StatsHandler{statsProvider: statsProvider}
}

// HandleStats handles GET /stats requests: service state merged with the
// summed counters of the metrics registry.
func (h *StatsHandler) HandleStats(w http.ResponseWriter, _ *http.Request) {
	stats := map[string]interface{}{}
	if h.statsProvider != nil {
		for k, v := range h.statsProvider.GetStats() {
			stats[k] = v
		}
	}
	if totals, err := metrics.Totals(); err == nil {
		stats["metrics"] = totals
	}
	writeJSON(w, http.StatusOK, stats)
}

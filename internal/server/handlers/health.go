package handlers

import (
	"net/http"
	"time"

	"github.com/agentstation/feedsync/internal/server/response"
)

// HandleHealth handles GET /health (liveness probe).
func (h *Handlers) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	response.OK(w, map[string]any{
		"status":  "healthy",
		"service": "feedsync-dev",
		"uptime":  time.Since(h.startTime).Round(time.Second).String(),
	})
}

// HandleReady handles GET /ready, reporting the loaded fixtures.
func (h *Handlers) HandleReady(w http.ResponseWriter, _ *http.Request) {
	response.OK(w, map[string]any{
		"status":    "ready",
		"events":    len(h.fixtures.Events),
		"countries": len(h.fixtures.Countries),
		"cache":     h.cache.GetStats(),
	})
}

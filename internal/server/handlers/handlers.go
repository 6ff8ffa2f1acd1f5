// Package handlers provides the HTTP request handlers of the development
// feed server.
package handlers

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/agentstation/feedsync/internal/server/cache"
	"github.com/agentstation/feedsync/internal/server/fixtures"
	"github.com/agentstation/feedsync/internal/server/response"
	"github.com/agentstation/feedsync/pkg/stream"
)

// Routes served by the handlers.
const (
	EventsRoute    = "/api/events"
	ConflictsRoute = stream.Endpoint
)

// Policy controls how requests are authorized.
type Policy struct {
	// RequireToken rejects requests without an access token with 401.
	RequireToken bool

	// Exhausted lists tokens whose credits are used up. Requests made with
	// them fail with an insufficient credits error.
	Exhausted []string

	// ChunkDelay is the pause between streamed chunks.
	ChunkDelay time.Duration
}

// Handlers provides access to all HTTP handlers.
type Handlers struct {
	fixtures  *fixtures.Set
	cache     *cache.Cache[Conflicts]
	policy    Policy
	exhausted map[string]struct{}
	logger    *zerolog.Logger
	startTime time.Time
	now       func() time.Time
}

// New creates a new Handlers instance.
func New(fx *fixtures.Set, c *cache.Cache[Conflicts], policy Policy, logger *zerolog.Logger) *Handlers {
	exhausted := make(map[string]struct{}, len(policy.Exhausted))
	for _, token := range policy.Exhausted {
		exhausted[token] = struct{}{}
	}
	return &Handlers{
		fixtures:  fx,
		cache:     c,
		policy:    policy,
		exhausted: exhausted,
		logger:    logger,
		startTime: time.Now(),
		now:       time.Now,
	}
}

// SetClock replaces the time source used for response timestamps.
func (h *Handlers) SetClock(now func() time.Time) {
	h.now = now
}

// authorize writes the auth or credit failure for token and reports whether
// the request may proceed.
func (h *Handlers) authorize(w http.ResponseWriter, token string) bool {
	if token == "" && h.policy.RequireToken {
		response.Unauthorized(w)
		return false
	}
	if h.isExhausted(token) {
		response.PaymentRequired(w)
		return false
	}
	return true
}

func (h *Handlers) isExhausted(token string) bool {
	if token == "" {
		return false
	}
	_, ok := h.exhausted[token]
	return ok
}

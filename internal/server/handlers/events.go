package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/agentstation/feedsync/internal/server/filter"
	"github.com/agentstation/feedsync/internal/server/middleware"
	"github.com/agentstation/feedsync/internal/server/response"
	"github.com/agentstation/feedsync/pkg/logging"
)

const maxRequestBody = 1 << 20

// EventsRequest is the body of a feed fetch.
type EventsRequest struct {
	Queries     []string `json:"queries"`
	AccessToken string   `json:"accessToken,omitempty"`
}

// EventsResponse is the body of a successful feed fetch.
type EventsResponse struct {
	Events []map[string]any `json:"events"`
}

// HandleEvents handles POST /api/events.
// The token comes from the body, falling back to the query or Authorization header.
func (h *Handlers) HandleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		response.MethodNotAllowed(w, r.Method)
		return
	}

	var req EventsRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody)).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		response.BadRequest(w, "Invalid request body")
		return
	}

	token := req.AccessToken
	if token == "" {
		token = middleware.TokenFromContext(r.Context())
	}
	if !h.authorize(w, token) {
		return
	}

	f := filter.ParseEventFilter(r)
	f.Queries = req.Queries
	events := f.Apply(h.fixtures.Events)

	logger := logging.FromContext(logging.WithQueries(r.Context(), req.Queries))
	logger.Debug().
		Int("matched", len(events)).
		Msg("Serving events")

	response.OK(w, EventsResponse{Events: events})
}

package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/agentstation/feedsync/internal/server/fixtures"
	"github.com/agentstation/feedsync/internal/server/middleware"
	"github.com/agentstation/feedsync/internal/server/response"
	"github.com/agentstation/feedsync/pkg/constants"
	"github.com/agentstation/feedsync/pkg/errors"
	"github.com/agentstation/feedsync/pkg/logging"
)

const conflictsFailedMessage = "Failed to fetch country conflicts"

// Conflicts is the non-streaming conflicts response.
type Conflicts struct {
	Country   string          `json:"country"`
	Past      fixtures.Answer `json:"past"`
	Current   fixtures.Answer `json:"current"`
	Timestamp time.Time       `json:"timestamp"`
}

// HandleConflicts handles GET /api/countries/conflicts. With stream=true the
// answer is sent as server-sent events, one chunk per message; failures
// after the stream started are reported as an in-band error frame.
func (h *Handlers) HandleConflicts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		response.MethodNotAllowed(w, r.Method)
		return
	}

	q := r.URL.Query()
	country := strings.TrimSpace(q.Get("country"))
	if country == "" {
		response.BadRequest(w, "Country parameter is required")
		return
	}

	token := middleware.TokenFromContext(r.Context())
	if token == "" && h.policy.RequireToken {
		response.Unauthorized(w)
		return
	}

	ctx := logging.WithCountry(r.Context(), country)
	r = r.WithContext(ctx)

	if q.Get("stream") == "true" {
		h.streamConflicts(w, r, country, token)
		return
	}

	if h.isExhausted(token) {
		h.conflictsFailed(w, r, errors.NewCreditError(ConflictsRoute, http.StatusPaymentRequired, constants.InsufficientCreditsMessage))
		return
	}

	result, hit, err := h.cache.GetOrLoad(fixtures.Key(country), func() (Conflicts, error) {
		return h.loadConflicts(country)
	})
	if err != nil {
		h.conflictsFailed(w, r, err)
		return
	}

	if hit {
		w.Header().Set("X-Cache", "HIT")
	} else {
		w.Header().Set("X-Cache", "MISS")
	}
	response.OK(w, result)
}

// loadConflicts builds the response for country from the fixtures. Unknown
// countries get empty answers.
func (h *Handlers) loadConflicts(country string) (Conflicts, error) {
	c, _ := h.fixtures.Country(country)
	if c.Fail != "" {
		return Conflicts{}, failure(c.Fail)
	}
	return Conflicts{
		Country:   country,
		Past:      withSources(c.Past),
		Current:   withSources(c.Current),
		Timestamp: h.now().UTC(),
	}, nil
}

func (h *Handlers) conflictsFailed(w http.ResponseWriter, r *http.Request, err error) {
	logging.FromContext(r.Context()).Error().Err(err).Msg("Error fetching country conflicts")
	response.ErrorFromType(w, err, conflictsFailedMessage)
}

// streamConflicts writes the fixture chunks as `data: <json>\n\n` messages.
func (h *Handlers) streamConflicts(w http.ResponseWriter, r *http.Request, country, token string) {
	logger := logging.FromContext(r.Context())
	rc := http.NewResponseController(w)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	c, _ := h.fixtures.Country(country)
	chunks := c.Stream()

	var failed error
	switch {
	case h.isExhausted(token):
		chunks = nil
		failed = errors.NewCreditError(ConflictsRoute, 0, constants.InsufficientCreditsMessage)
	case c.Fail != "":
		chunks = chunks[:min(max(c.FailAfter, 0), len(chunks))]
		failed = failure(c.Fail)
	}

	for i, chunk := range chunks {
		if i > 0 && h.policy.ChunkDelay > 0 {
			select {
			case <-r.Context().Done():
				return
			case <-time.After(h.policy.ChunkDelay):
			}
		}
		if err := writeFrame(w, chunk); err != nil {
			logger.Debug().Err(err).Msg("Stream client went away")
			return
		}
		_ = rc.Flush()
	}

	if failed != nil {
		logger.Warn().Err(failed).Msg("Stream failed")
		_ = writeFrame(w, errorFrame(failed))
		_ = rc.Flush()
	}
}

func writeFrame(w http.ResponseWriter, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return errors.WrapParse("json", "frame", err)
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", data)
	return err
}

// errorFrame is the in-band frame that terminates a failed stream.
func errorFrame(err error) map[string]any {
	frame := map[string]any{
		"type":  "error",
		"error": failureMessage(err),
	}
	if errors.IsInsufficientCredits(err) {
		frame["requiresCredits"] = true
	}
	return frame
}

// failure converts a fixture failure message into the typed error the
// remote API would produce for it.
func failure(message string) error {
	if errors.Classify(http.StatusInternalServerError, message) == errors.ClassCredit {
		return errors.NewCreditError(ConflictsRoute, 0, message)
	}
	return errors.NewAPIError(ConflictsRoute, http.StatusInternalServerError, message)
}

func failureMessage(err error) string {
	var credit *errors.CreditError
	if errors.As(err, &credit) {
		return credit.Message
	}
	var api *errors.APIError
	if errors.As(err, &api) {
		return api.Message
	}
	return err.Error()
}

func withSources(a fixtures.Answer) fixtures.Answer {
	if a.Sources == nil {
		a.Sources = []fixtures.Source{}
	}
	return a
}

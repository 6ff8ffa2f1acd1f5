package feedsync

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/agentstation/feedsync/internal/transport"
	"github.com/agentstation/feedsync/pkg/constants"
	"github.com/agentstation/feedsync/pkg/errors"
	"github.com/agentstation/feedsync/pkg/stream"
)

// Compile-time interface check to ensure proper implementation.
var _ ConflictFetcher = (*client)(nil)

// ConflictFetcher fetches the complete conflicts summary for a country.
type ConflictFetcher interface {
	FetchConflicts(ctx context.Context, country string) (*Conflicts, error)
}

// Source is a reference cited by a conflicts answer.
type Source struct {
	Title string `json:"title,omitempty" yaml:"title,omitempty"`
	URL   string `json:"url" yaml:"url"`
}

// ConflictSet is one answer with its sources.
type ConflictSet struct {
	Conflicts string   `json:"conflicts" yaml:"conflicts"`
	Sources   []Source `json:"sources" yaml:"sources"`
}

// Conflicts is the non-streaming conflicts response.
type Conflicts struct {
	Country   string      `json:"country" yaml:"country"`
	Past      ConflictSet `json:"past" yaml:"past"`
	Current   ConflictSet `json:"current" yaml:"current"`
	Timestamp time.Time   `json:"timestamp" yaml:"timestamp"`
}

// FetchConflicts fetches the past and current conflicts for country. Auth
// and credit failures follow the same policy as feed fetches.
func (c *client) FetchConflicts(ctx context.Context, country string) (*Conflicts, error) {
	if strings.TrimSpace(country) == "" {
		return nil, errors.NewValidationError("country", country, "country is required")
	}

	resp, err := c.transport.Get(ctx, stream.Endpoint, url.Values{"country": {country}},
		transport.WithRequestAuth(&transport.QueryAuth{Param: "accessToken"}))
	if err != nil {
		return nil, err
	}

	var out Conflicts
	if err := transport.DecodeResponse(resp, &out); err != nil {
		switch {
		case errors.IsSessionExpired(err):
			c.signOut(constants.SessionExpiredMessage)
		case errors.IsInsufficientCredits(err):
			c.metrics.CreditRaised()
		}
		c.logger.Warn().Err(err).Str("country", country).Msg("Conflicts fetch failed")
		c.hooks.failed(err)
		return nil, err
	}
	return &out, nil
}

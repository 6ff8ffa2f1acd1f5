package feedsync

import (
	"context"
	"encoding/json"
	"slices"
	"time"

	"github.com/rs/zerolog"

	"github.com/agentstation/feedsync/internal/metrics"
	"github.com/agentstation/feedsync/internal/transport"
	"github.com/agentstation/feedsync/pkg/constants"
	"github.com/agentstation/feedsync/pkg/credit"
	"github.com/agentstation/feedsync/pkg/errors"
	"github.com/agentstation/feedsync/pkg/events"
	"github.com/agentstation/feedsync/pkg/logging"
)

// EventsPath is the feed fetch endpoint.
const EventsPath = "/api/events"

// Compile-time interface check to ensure proper implementation.
var _ Syncer = (*client)(nil)

// Syncer handles loading and refreshing the working set.
type Syncer interface {
	// Start performs the initial load. It is never gated by auth.
	Start(ctx context.Context) error

	// InitialLoad replaces the working set with a fresh fetch. It succeeds at
	// most once; overlapping calls share one request.
	InitialLoad(ctx context.Context) error

	// Refresh appends events not already in the working set.
	Refresh(ctx context.Context) error

	// State returns the current lifecycle state
	State() State

	// LastError returns the message of the most recent failure, or ""
	LastError() string

	// Loading reports whether a fetch is in flight
	Loading() bool

	// RequiresSignIn reports whether refreshes are halted until sign-in
	RequiresSignIn() bool
}

// feedRequest is the body sent to the events endpoint.
type feedRequest struct {
	Queries     []string `json:"queries"`
	AccessToken string   `json:"accessToken,omitempty"`
}

// feedResponse is the body returned by the events endpoint.
type feedResponse struct {
	Events         []json.RawMessage `json:"events"`
	Error          string            `json:"error,omitempty"`
	RequiresReauth bool              `json:"requiresReauth,omitempty"`
}

// Start performs the initial load.
func (c *client) Start(ctx context.Context) error {
	return c.InitialLoad(ctx)
}

// InitialLoad replaces the working set wholesale.
func (c *client) InitialLoad(ctx context.Context) error {
	c.mu.Lock()
	closed, loaded := c.closed, c.loaded
	c.mu.Unlock()

	switch {
	case closed:
		return errors.ErrClosed
	case loaded:
		c.metrics.Fetch(metrics.KindInitial, metrics.ResultSkipped, 0)
		return errors.ErrAlreadyLoaded
	}

	_, err, _ := c.fetches.Do(metrics.KindInitial, func() (any, error) {
		return nil, c.sync(ctx, metrics.KindInitial)
	})
	return err
}

// Refresh fetches and appends unseen events. When auth is required and the
// session is not authenticated it makes no request, moves to
// StateSignInRequired, and returns ErrSignInRequired.
func (c *client) Refresh(ctx context.Context) error {
	authenticated := c.session.IsAuthenticated()

	c.mu.Lock()
	switch {
	case c.closed:
		c.mu.Unlock()
		return errors.ErrClosed
	case !c.loaded:
		c.mu.Unlock()
		return errors.ErrNotLoaded
	case c.options.requiresAuth && !authenticated:
		prev := c.setStateLocked(StateSignInRequired)
		c.resetTimerLocked()
		c.mu.Unlock()

		c.metrics.Fetch(metrics.KindRefresh, metrics.ResultGated, 0)
		c.logger.Debug().Msg("Refresh gated until sign-in")
		c.hooks.stateChanged(prev, StateSignInRequired)
		return errors.ErrSignInRequired
	}
	c.mu.Unlock()

	_, err, _ := c.fetches.Do(metrics.KindRefresh, func() (any, error) {
		return nil, c.sync(ctx, metrics.KindRefresh)
	})
	return err
}

// sync runs one fetch of the given kind and applies its outcome.
func (c *client) sync(ctx context.Context, kind string) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return errors.ErrClosed
	}
	if kind == metrics.KindInitial && c.loaded {
		c.mu.Unlock()
		return errors.ErrAlreadyLoaded
	}
	gen := c.generation
	queries := slices.Clone(c.queries)
	c.inflight++
	c.lastErr = ""
	prev := c.state
	if kind == metrics.KindInitial && c.state == StateIdle {
		c.state = StateLoading
	}
	next := c.state
	c.mu.Unlock()
	c.hooks.stateChanged(prev, next)

	ctx = logging.WithGeneration(logging.WithOperation(logging.WithLogger(ctx, c.logger), kind), gen)
	logger := logging.FromContext(ctx)
	logger.Debug().Int("queries", len(queries)).Msg("Fetching events")

	start := c.clock.Now()
	fetched, err := c.fetch(ctx, queries)
	elapsed := c.clock.Now().Sub(start)

	c.mu.Lock()
	c.inflight--

	if gen != c.generation {
		prev := c.state
		if c.state == StateLoading {
			c.state = StateIdle
		}
		next := c.state
		c.mu.Unlock()

		c.metrics.Fetch(kind, metrics.ResultStale, elapsed)
		logger.Debug().Msg("Discarding stale response")
		c.hooks.stateChanged(prev, next)
		return errors.ErrStaleResponse
	}

	if err != nil {
		c.mu.Unlock()
		return c.recordFailure(kind, err, elapsed, logger)
	}

	var added []events.Event
	if kind == metrics.KindInitial {
		c.set = events.Replace(fetched)
		c.loaded = true
		added = c.set.List()
	} else {
		c.set, added = c.set.Merge(fetched)
	}
	prev = c.setStateLocked(StateLoaded)
	next = StateLoaded
	size := c.set.Len()
	if prev != StateLoaded {
		c.resetTimerLocked()
	}
	c.mu.Unlock()

	c.metrics.Fetch(kind, metrics.ResultOK, elapsed)
	c.metrics.EventsAdded(len(added), size)
	logger.Info().
		Int("fetched", len(fetched)).
		Int("added", len(added)).
		Int("total", size).
		Dur("duration", elapsed).
		Msg("Events synchronized")

	c.hooks.stateChanged(prev, next)
	c.hooks.eventsAdded(added)
	return nil
}

// recordFailure applies the error policy for a failed fetch and returns err.
// Callers must not hold c.mu.
func (c *client) recordFailure(kind string, err error, elapsed time.Duration, logger *zerolog.Logger) error {
	switch {
	case errors.IsSessionExpired(err):
		c.metrics.Fetch(kind, metrics.ResultAuth, elapsed)
		logger.Warn().Err(err).Msg("Session rejected, signing out")
		c.signOut(constants.SessionExpiredMessage)

	case errors.IsInsufficientCredits(err):
		c.metrics.Fetch(kind, metrics.ResultCredit, elapsed)
		c.metrics.CreditRaised()
		logger.Warn().Err(err).Msg("Insufficient credits")
		c.credits.Raise(credit.DefaultMessage)
		c.fail(constants.InsufficientCreditsMessage)

	default:
		c.metrics.Fetch(kind, metrics.ResultError, elapsed)
		logger.Error().Err(err).Msg("Fetch failed")
		c.fail(errorMessage(err))
	}

	c.hooks.failed(err)
	return err
}

// fail records message as the local error and leaves the working set alone.
// A failed initial load returns to idle.
func (c *client) fail(message string) {
	c.mu.Lock()
	c.lastErr = message
	prev := c.state
	if c.state == StateLoading {
		c.state = StateIdle
	}
	next := c.state
	c.mu.Unlock()
	c.hooks.stateChanged(prev, next)
}

// signOut halts refreshes, discards in-flight responses and asks the session
// to sign out.
func (c *client) signOut(message string) {
	c.mu.Lock()
	c.lastErr = message
	c.generation++
	prev := c.setStateLocked(StateSignInRequired)
	c.resetTimerLocked()
	c.mu.Unlock()

	c.session.SignOut()
	c.hooks.stateChanged(prev, StateSignInRequired)
}

// errorMessage returns the text shown for a generic failure.
func errorMessage(err error) string {
	var apiErr *errors.APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return err.Error()
}

// fetch posts the current queries and decodes the returned events. Records
// without an id are dropped.
func (c *client) fetch(ctx context.Context, queries []string) ([]events.Event, error) {
	if queries == nil {
		queries = []string{}
	}
	resp, err := c.transport.PostJSON(ctx, EventsPath, feedRequest{
		Queries:     queries,
		AccessToken: c.session.AccessToken(),
	})
	if err != nil {
		return nil, err
	}

	var body feedResponse
	if err := transport.DecodeResponse(resp, &body); err != nil {
		return nil, err
	}
	if body.RequiresReauth {
		return nil, errors.NewAuthenticationError(EventsPath, resp.StatusCode, body.Error, nil)
	}

	fetched := make([]events.Event, 0, len(body.Events))
	for i, raw := range body.Events {
		var e events.Event
		if err := json.Unmarshal(raw, &e); err != nil {
			c.logger.Warn().Err(err).Int("index", i).Msg("Dropping malformed event")
			continue
		}
		if e.ID == "" {
			c.logger.Warn().Int("index", i).Msg("Dropping event without id")
			continue
		}
		fetched = append(fetched, e)
	}
	return fetched, nil
}

// State returns the current lifecycle state.
func (c *client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// LastError returns the most recent failure message.
func (c *client) LastError() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Loading reports whether a fetch is in flight.
func (c *client) Loading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inflight > 0
}

// RequiresSignIn reports whether the engine is waiting for sign-in.
func (c *client) RequiresSignIn() bool {
	return c.State() == StateSignInRequired
}

// Package feedsync keeps a de-duplicated, in-memory working set of feed
// events current against a remote intelligence API.
//
// The client performs one free initial load, then refreshes on a timer.
// Refreshes are gated on an authenticated session when the app runs in
// valyu mode, and every request path feeds the shared credit signal.
//
// Example usage:
//
//	signal := credit.New()
//	sess := session.New(session.WithToken(token))
//
//	fs, err := feedsync.New(
//	    feedsync.WithBaseURL("https://feed.example.com"),
//	    feedsync.WithSession(sess),
//	    feedsync.WithCreditSignal(signal),
//	    feedsync.WithAppMode("valyu"),
//	    feedsync.WithQueries("conflict", "protest"),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer fs.Close()
//
//	fs.OnEventsAdded(func(added []events.Event) {
//	    log.Printf("%d new events", len(added))
//	})
//
//	if err := fs.Start(ctx); err != nil {
//	    log.Printf("initial load failed: %v", err)
//	}
package feedsync

import (
	"context"
	"sync"
	"time"

	"github.com/juju/clock"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/agentstation/feedsync/internal/metrics"
	"github.com/agentstation/feedsync/internal/transport"
	"github.com/agentstation/feedsync/pkg/credit"
	"github.com/agentstation/feedsync/pkg/errors"
	"github.com/agentstation/feedsync/pkg/events"
	"github.com/agentstation/feedsync/pkg/logging"
	"github.com/agentstation/feedsync/pkg/session"
)

// Compile-time interface check to ensure proper implementation.
var _ Client = (*client)(nil)

// WorkingSet provides read access to the synchronized events.
type WorkingSet interface {
	// Events returns a copy of the working set in insertion order
	Events() []events.Event

	// Len returns the number of events held
	Len() int
}

// Client synchronizes a working set of feed events.
type Client interface {

	// WorkingSet provides read access to the events
	WorkingSet

	// Syncer handles the initial load and refreshes
	Syncer

	// Streamer consumes the incremental conflicts stream
	Streamer

	// ConflictFetcher fetches the non-streaming conflicts summary
	ConflictFetcher

	// AutoRefresher controls the periodic refresh
	AutoRefresher

	// Hooks provides access to event callback registration
	Hooks

	// Close stops the timer and discards any response still in flight
	Close() error
}

// client is the internal implementation of the Client interface.
type client struct {
	options   *options
	transport *transport.Client
	session   session.Auth
	credits   credit.Raiser
	clock     clock.Clock
	logger    *zerolog.Logger
	metrics   *metrics.Engine
	hooks     *hooks

	// fetches coalesces concurrent loads and refreshes
	fetches singleflight.Group

	// base is cancelled on Close and bounds timer driven refreshes
	base       context.Context
	baseCancel context.CancelFunc
	unwatch    func()

	mu         sync.Mutex
	state      State
	loaded     bool
	inflight   int
	lastErr    string
	set        *events.WorkingSet
	queries    []string
	generation uint64
	closed     bool

	// auto refresh state
	autoRefresh bool
	interval    time.Duration
	timer       *refreshTimer
}

// New creates a new Client with the given options. The client is idle until
// Start is called.
func New(opts ...Option) (Client, error) {
	o, err := defaults().apply(opts...)
	if err != nil {
		return nil, err
	}

	logger := logging.OrDefault(o.logger).With().Str("component", "engine").Logger()

	tc := o.transport
	if tc == nil {
		topts := []transport.Option{
			transport.WithTokenSource(o.session),
			transport.WithCreditRaiser(o.credits),
			transport.WithLogger(&logger),
			transport.WithHTTPClient(o.httpClient),
		}
		if o.httpClient == nil {
			topts = append(topts, transport.WithTimeout(o.httpTimeout))
		}
		if tc, err = transport.New(o.baseURL, topts...); err != nil {
			return nil, errors.WrapResource("create", "transport", o.baseURL, err)
		}
	}

	base, cancel := context.WithCancel(context.Background())
	c := &client{
		options:     o,
		transport:   tc,
		session:     o.session,
		credits:     o.credits,
		clock:       o.clock,
		logger:      &logger,
		metrics:     o.metrics,
		hooks:       newHooks(),
		base:        base,
		baseCancel:  cancel,
		state:       StateIdle,
		set:         events.NewWorkingSet(),
		queries:     o.queries,
		autoRefresh: o.autoRefresh,
		interval:    o.interval,
	}
	c.unwatch = c.session.Watch(c.onAuthChange)

	logger.Debug().
		Str("base_url", tc.BaseURL()).
		Bool("requires_auth", o.requiresAuth).
		Bool("auto_refresh", o.autoRefresh).
		Dur("interval", o.interval).
		Int("queries", len(o.queries)).
		Msg("Client created")

	return c, nil
}

// Events returns a copy of the working set.
func (c *client) Events() []events.Event {
	c.mu.Lock()
	set := c.set
	c.mu.Unlock()
	return set.List()
}

// Len returns the number of events in the working set.
func (c *client) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.set.Len()
}

// Close stops automatic refreshes and discards late responses. The working
// set stays readable.
func (c *client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.generation++
	c.resetTimerLocked()
	unwatch := c.unwatch
	c.mu.Unlock()

	unwatch()
	c.baseCancel()
	c.logger.Debug().Msg("Client closed")
	return nil
}

// setStateLocked moves to next and returns the previous state. Callers hold
// c.mu and fire the hook after unlocking.
func (c *client) setStateLocked(next State) State {
	prev := c.state
	c.state = next
	return prev
}

package feedsync

import (
	"context"
	"slices"
	"time"

	"github.com/juju/clock"

	"github.com/agentstation/feedsync/pkg/constants"
	"github.com/agentstation/feedsync/pkg/errors"
)

// Compile-time interface check to ensure proper implementation.
var _ AutoRefresher = (*client)(nil)

// AutoRefresher provides controls for the periodic refresh.
type AutoRefresher interface {
	// AutoRefreshOn enables the periodic refresh
	AutoRefreshOn() error

	// AutoRefreshOff stops the periodic refresh
	AutoRefreshOff() error

	// SetRefreshInterval changes the refresh period
	SetRefreshInterval(interval time.Duration) error

	// SetQueries replaces the feed queries; responses to the old queries are discarded
	SetQueries(queries []string)
}

// AutoRefreshOn enables the periodic refresh. The timer only runs once the
// initial load has succeeded and while sign-in is not required.
func (c *client) AutoRefreshOn() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errors.ErrClosed
	}
	c.autoRefresh = true
	c.resetTimerLocked()
	return nil
}

// AutoRefreshOff stops the periodic refresh.
func (c *client) AutoRefreshOff() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.autoRefresh = false
	c.resetTimerLocked()
	return nil
}

// SetRefreshInterval changes the refresh period and restarts the timer.
func (c *client) SetRefreshInterval(interval time.Duration) error {
	if err := validateInterval(interval); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.interval = interval
	c.resetTimerLocked()
	return nil
}

// SetQueries replaces the queries sent with each fetch.
func (c *client) SetQueries(queries []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.queries = slices.Clone(queries)
	c.generation++
	c.resetTimerLocked()
}

// refreshTimer is the single live timer loop of a client.
type refreshTimer struct {
	timer  clock.Timer
	cancel context.CancelFunc
}

// resetTimerLocked stops the live timer loop, if any, and starts a new one
// when refreshing should run. Callers hold c.mu.
func (c *client) resetTimerLocked() {
	if c.timer != nil {
		c.timer.cancel()
		c.timer.timer.Stop()
		c.timer = nil
	}
	if c.closed || !c.autoRefresh || !c.loaded || c.state == StateSignInRequired {
		return
	}

	ctx, cancel := context.WithCancel(c.base)
	rt := &refreshTimer{timer: c.clock.NewTimer(c.interval), cancel: cancel}
	c.timer = rt
	go c.runTimer(ctx, rt.timer, c.interval)
}

// runTimer refreshes every interval until ctx is cancelled. A tick may
// replace its own loop, so the loop only re-arms while ctx is live.
func (c *client) runTimer(ctx context.Context, timer clock.Timer, interval time.Duration) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.Chan():
			if ctx.Err() != nil {
				return
			}
			c.tick()

			c.mu.Lock()
			live := ctx.Err() == nil
			if live {
				timer.Reset(interval)
			}
			c.mu.Unlock()
			if !live {
				return
			}
		}
	}
}

// tick runs one timer driven refresh.
func (c *client) tick() {
	ctx, cancel := context.WithTimeout(c.base, constants.DefaultHTTPTimeout)
	defer cancel()

	if err := c.Refresh(ctx); err != nil && !errors.Is(err, errors.ErrSignInRequired) {
		c.logger.Debug().Err(err).Msg("Scheduled refresh failed")
	}
}

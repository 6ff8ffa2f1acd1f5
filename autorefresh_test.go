package feedsync_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/juju/clock/testclock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/feedsync"
	"github.com/agentstation/feedsync/pkg/errors"
	"github.com/agentstation/feedsync/pkg/session"
)

const interval = time.Minute

func newTimedClient(t *testing.T, f *fakeFeed, opts ...feedsync.Option) (feedsync.Client, *testclock.Clock) {
	t.Helper()
	clk := testclock.NewClock(time.Now())
	opts = append([]feedsync.Option{
		feedsync.WithClock(clk),
		feedsync.WithAutoRefresh(true),
		feedsync.WithRefreshInterval(interval),
	}, opts...)
	return newClient(t, f, opts...), clk
}

func TestAutoRefreshTicks(t *testing.T) {
	f := newFakeFeed(t, func(call int) (int, string) {
		return http.StatusOK, eventsBody("a", string(rune('a'+call)))
	})
	c, clk := newTimedClient(t, f)
	require.NoError(t, c.Start(context.Background()))

	require.NoError(t, clk.WaitAdvance(interval, time.Second, 1))
	assert.Eventually(t, func() bool { return f.Calls() == 2 }, time.Second, 5*time.Millisecond)

	require.NoError(t, clk.WaitAdvance(interval, time.Second, 1))
	assert.Eventually(t, func() bool { return f.Calls() == 3 }, time.Second, 5*time.Millisecond)
	assert.Eventually(t, func() bool { return c.Len() == 4 }, time.Second, 5*time.Millisecond)
}

func TestTimerWaitsForInitialLoad(t *testing.T) {
	f := newFakeFeed(t, always(http.StatusInternalServerError, `{"error":"down"}`))
	_, clk := newTimedClient(t, f)

	err := clk.WaitAdvance(interval, 50*time.Millisecond, 1)
	assert.Error(t, err)
	assert.Equal(t, 0, f.Calls())
}

func TestAutoRefreshOffStopsTimer(t *testing.T) {
	f := newFakeFeed(t, always(http.StatusOK, eventsBody("a")))
	c, clk := newTimedClient(t, f)
	require.NoError(t, c.Start(context.Background()))

	require.NoError(t, c.AutoRefreshOff())
	assert.Error(t, clk.WaitAdvance(interval, 50*time.Millisecond, 1))
	assert.Equal(t, 1, f.Calls())

	require.NoError(t, c.AutoRefreshOn())
	require.NoError(t, clk.WaitAdvance(interval, time.Second, 1))
	assert.Eventually(t, func() bool { return f.Calls() == 2 }, time.Second, 5*time.Millisecond)
}

func TestSetRefreshIntervalRestartsTimer(t *testing.T) {
	f := newFakeFeed(t, always(http.StatusOK, eventsBody("a")))
	c, clk := newTimedClient(t, f)
	require.NoError(t, c.Start(context.Background()))

	assert.True(t, errors.IsValidationError(c.SetRefreshInterval(0)))

	require.NoError(t, c.SetRefreshInterval(10*time.Second))
	require.NoError(t, clk.WaitAdvance(10*time.Second, time.Second, 1))
	assert.Eventually(t, func() bool { return f.Calls() == 2 }, time.Second, 5*time.Millisecond)
}

func TestTimerGatedThenResumesOnSignIn(t *testing.T) {
	f := newFakeFeed(t, always(http.StatusOK, eventsBody("a")))
	sess := session.New()
	c, clk := newTimedClient(t, f, feedsync.WithAppMode("valyu"), feedsync.WithSession(sess))
	require.NoError(t, c.Start(context.Background()))

	require.NoError(t, clk.WaitAdvance(interval, time.Second, 1))
	assert.Eventually(t, func() bool { return c.RequiresSignIn() }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, f.Calls())

	// No timer runs while sign-in is required.
	assert.Error(t, clk.WaitAdvance(interval, 50*time.Millisecond, 1))
	assert.Equal(t, 1, f.Calls())

	sess.SignIn("tok")
	assert.Equal(t, feedsync.StateLoaded, c.State())

	require.NoError(t, clk.WaitAdvance(interval, time.Second, 1))
	assert.Eventually(t, func() bool { return f.Calls() == 2 }, time.Second, 5*time.Millisecond)
}

func TestCloseStopsTimer(t *testing.T) {
	f := newFakeFeed(t, always(http.StatusOK, eventsBody("a")))
	c, clk := newTimedClient(t, f)
	require.NoError(t, c.Start(context.Background()))

	require.NoError(t, c.Close())
	assert.Error(t, clk.WaitAdvance(interval, 50*time.Millisecond, 1))
	assert.Equal(t, 1, f.Calls())
	assert.ErrorIs(t, c.AutoRefreshOn(), errors.ErrClosed)
}

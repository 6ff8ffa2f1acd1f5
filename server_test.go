package feedsync_test

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/feedsync"
	"github.com/agentstation/feedsync/internal/server"
	"github.com/agentstation/feedsync/internal/server/fixtures"
	"github.com/agentstation/feedsync/pkg/constants"
	"github.com/agentstation/feedsync/pkg/credit"
	"github.com/agentstation/feedsync/pkg/errors"
	"github.com/agentstation/feedsync/pkg/logging"
	"github.com/agentstation/feedsync/pkg/session"
	"github.com/agentstation/feedsync/pkg/stream"
)

const chadFixtures = `
events:
  - {id: evt-1, title: Drone strike on fuel depot, category: conflict}
  - {id: evt-2, title: Flooding displaces thousands, category: humanitarian}
  - {title: record without id}
countries:
  chad:
    past:
      conflicts: Civil war and Libyan intervention.
    fail: upstream timeout
    fail_after: 2
`

// devServer runs the development feed server with cfg applied over defaults.
func devServer(t *testing.T, mutate func(*server.Config), doc string) string {
	t.Helper()
	cfg := server.DefaultConfig()
	cfg.MetricsEnabled = false
	if mutate != nil {
		mutate(&cfg)
	}
	var fx *fixtures.Set
	if doc != "" {
		var err error
		fx, err = fixtures.Parse([]byte(doc), "test.yaml")
		require.NoError(t, err)
	}
	s, err := server.New(cfg, fx, logging.NewNopLogger())
	require.NoError(t, err)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return ts.URL
}

func TestDevServerSelfHosted(t *testing.T) {
	url := devServer(t, nil, chadFixtures)
	c, err := feedsync.New(
		feedsync.WithBaseURL(url),
		feedsync.WithAutoRefresh(false),
		feedsync.WithLogger(logging.NewNopLogger()),
	)
	require.NoError(t, err)
	defer c.Close()

	ctx := context.Background()
	require.NoError(t, c.InitialLoad(ctx))
	if diff := cmp.Diff([]string{"evt-1", "evt-2"}, ids(c)); diff != "" {
		t.Errorf("working set mismatch (-want +got):\n%s", diff)
	}

	// Self-hosted refreshes are not gated and never duplicate ids.
	require.NoError(t, c.Refresh(ctx))
	if diff := cmp.Diff([]string{"evt-1", "evt-2"}, ids(c)); diff != "" {
		t.Errorf("working set changed on refresh (-want +got):\n%s", diff)
	}
	assert.Equal(t, feedsync.StateLoaded, c.State())
}

func TestDevServerQueries(t *testing.T) {
	url := devServer(t, nil, chadFixtures)
	c, err := feedsync.New(
		feedsync.WithBaseURL(url),
		feedsync.WithQueries("FLOOD"),
		feedsync.WithAutoRefresh(false),
		feedsync.WithLogger(logging.NewNopLogger()),
	)
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.InitialLoad(context.Background()))
	assert.Equal(t, []string{"evt-2"}, ids(c))
}

func TestDevServerValyuWithoutTokenSignsOut(t *testing.T) {
	url := devServer(t, func(cfg *server.Config) { cfg.Mode = constants.ModeValyu }, "")
	c, err := feedsync.New(
		feedsync.WithBaseURL(url),
		feedsync.WithAppMode(constants.ModeValyu),
		feedsync.WithAutoRefresh(false),
		feedsync.WithLogger(logging.NewNopLogger()),
	)
	require.NoError(t, err)
	defer c.Close()

	var failures []error
	c.OnError(func(err error) { failures = append(failures, err) })

	err = c.InitialLoad(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsSessionExpired(err))
	assert.Equal(t, feedsync.StateSignInRequired, c.State())
	assert.True(t, c.RequiresSignIn())
	assert.Len(t, failures, 1)
	assert.Zero(t, c.Len())
}

func TestDevServerExhaustedTokenRaisesCredit(t *testing.T) {
	url := devServer(t, func(cfg *server.Config) {
		cfg.Mode = constants.ModeValyu
		cfg.ExhaustedTokens = []string{"tok-empty"}
	}, "")
	credits := credit.New()
	c, err := feedsync.New(
		feedsync.WithBaseURL(url),
		feedsync.WithAppMode(constants.ModeValyu),
		feedsync.WithSession(session.New(session.WithToken("tok-empty"))),
		feedsync.WithCreditSignal(credits),
		feedsync.WithAutoRefresh(false),
		feedsync.WithLogger(logging.NewNopLogger()),
	)
	require.NoError(t, err)
	defer c.Close()

	require.Error(t, c.InitialLoad(context.Background()))
	assert.True(t, credits.HasError())
	assert.Equal(t, credit.DefaultMessage, credits.State().Message)
	assert.NotEqual(t, feedsync.StateSignInRequired, c.State())

	var got []stream.Frame
	err = c.Stream(context.Background(), "ukraine", collectKinds(&got))
	assert.True(t, errors.IsInsufficientCredits(err))
	require.Len(t, got, 1)
	assert.True(t, got[0].RequiresCredits)
}

func TestDevServerStreamFailure(t *testing.T) {
	url := devServer(t, nil, chadFixtures)
	credits := credit.New()
	c, err := feedsync.New(
		feedsync.WithBaseURL(url),
		feedsync.WithCreditSignal(credits),
		feedsync.WithAutoRefresh(false),
		feedsync.WithLogger(logging.NewNopLogger()),
	)
	require.NoError(t, err)
	defer c.Close()

	var got []stream.Frame
	err = c.Stream(context.Background(), "Chad", collectKinds(&got))
	require.Error(t, err)
	assert.False(t, errors.IsInsufficientCredits(err))
	assert.False(t, credits.HasError())

	kinds := make([]string, 0, len(got))
	for _, f := range got {
		if f.IsError() {
			kinds = append(kinds, "error:"+f.Error)
			continue
		}
		kinds = append(kinds, f.Kind)
	}
	if diff := cmp.Diff([]string{"past", "sources", "error:upstream timeout"}, kinds); diff != "" {
		t.Errorf("frames mismatch (-want +got):\n%s", diff)
	}

	summary, err := c.FetchConflicts(context.Background(), "chad")
	assert.Nil(t, summary)
	require.Error(t, err)
}

package feedsync_test

import (
	"context"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/feedsync"
	"github.com/agentstation/feedsync/pkg/credit"
	"github.com/agentstation/feedsync/pkg/errors"
	"github.com/agentstation/feedsync/pkg/session"
	"github.com/agentstation/feedsync/pkg/stream"
)

func sse(frames ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		for _, f := range frames {
			_, _ = io.WriteString(w, "data: "+f+"\n\n")
		}
	}
}

func collectKinds(frames *[]stream.Frame) stream.Sink {
	return stream.SinkFunc(func(f stream.Frame) error {
		*frames = append(*frames, f)
		return nil
	})
}

func TestStreamForwardsFrames(t *testing.T) {
	f := newFakeFeed(t, always(http.StatusOK, eventsBody()))
	f.SetConflicts(sse(`{"type":"current_content","content":"a"}`, `{"type":"done"}`))
	c := newClient(t, f)

	var got []stream.Frame
	require.NoError(t, c.Stream(context.Background(), "Sudan", collectKinds(&got)))
	require.Len(t, got, 2)
	assert.Equal(t, "current_content", got[0].Kind)
	assert.Equal(t, "done", got[1].Kind)
}

func TestStreamCreditFrameRaisesSignal(t *testing.T) {
	f := newFakeFeed(t, always(http.StatusOK, eventsBody()))
	f.SetConflicts(sse(
		`{"type":"current_content","content":"a"}`,
		`{"type":"current_content","content":"b"}`,
		`{"type":"error","error":"Insufficient credits","requiresCredits":true}`,
		`{"type":"current_content","content":"never"}`,
	))
	signal := credit.New()
	c := newClient(t, f, feedsync.WithCreditSignal(signal))

	var got []stream.Frame
	err := c.Stream(context.Background(), "Sudan", collectKinds(&got))
	assert.True(t, errors.IsInsufficientCredits(err))
	require.Len(t, got, 3)
	assert.True(t, got[2].IsError())
	assert.True(t, signal.HasError())
	assert.Equal(t, credit.DefaultMessage, signal.State().Message)
}

func TestStreamAuthRejectedSignsOut(t *testing.T) {
	f := newFakeFeed(t, always(http.StatusOK, eventsBody()))
	f.SetConflicts(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"error":"Authentication required","requiresReauth":true}`)
	})
	sess := session.New(session.WithToken("tok"))
	c := newClient(t, f, feedsync.WithSession(sess))

	var got []stream.Frame
	err := c.Stream(context.Background(), "Sudan", collectKinds(&got))
	assert.True(t, errors.IsSessionExpired(err))
	require.Len(t, got, 1)
	assert.True(t, got[0].RequiresReauth)
	assert.False(t, sess.IsAuthenticated())
	assert.True(t, c.RequiresSignIn())
	assert.Equal(t, "Session expired. Please sign in again.", c.LastError())
}

func TestStreamGenericErrorFrame(t *testing.T) {
	f := newFakeFeed(t, always(http.StatusOK, eventsBody()))
	f.SetConflicts(sse(`{"type":"error","error":"upstream timeout"}`))
	signal := credit.New()
	c := newClient(t, f, feedsync.WithCreditSignal(signal))

	var hookErr error
	c.OnError(func(err error) { hookErr = err })

	var got []stream.Frame
	err := c.Stream(context.Background(), "Sudan", collectKinds(&got))
	var apiErr *errors.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "upstream timeout", apiErr.Message)
	assert.Equal(t, err, hookErr)
	assert.False(t, signal.HasError())
}

func TestStreamRequiresCountry(t *testing.T) {
	f := newFakeFeed(t, always(http.StatusOK, eventsBody()))
	c := newClient(t, f)

	err := c.Stream(context.Background(), "", stream.SinkFunc(func(stream.Frame) error { return nil }))
	assert.True(t, errors.IsValidationError(err))
}

func TestFetchConflicts(t *testing.T) {
	f := newFakeFeed(t, always(http.StatusOK, eventsBody()))
	f.SetConflicts(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.URL.Query().Get("stream"))
		assert.Equal(t, "tok", r.URL.Query().Get("accessToken"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"country": "Chad",
			"past": {"conflicts": "historic", "sources": [{"title": "A", "url": "https://a.example"}]},
			"current": {"conflicts": "ongoing", "sources": []},
			"timestamp": "2026-01-02T03:04:05Z"
		}`)
	})
	c := newClient(t, f, feedsync.WithSession(session.New(session.WithToken("tok"))))

	out, err := c.FetchConflicts(context.Background(), "Chad")
	require.NoError(t, err)
	assert.Equal(t, "Chad", out.Country)
	assert.Equal(t, "historic", out.Past.Conflicts)
	require.Len(t, out.Past.Sources, 1)
	assert.Equal(t, "https://a.example", out.Past.Sources[0].URL)
	assert.Equal(t, "ongoing", out.Current.Conflicts)
	assert.Equal(t, 2026, out.Timestamp.Year())
}

func TestFetchConflictsCreditFailure(t *testing.T) {
	f := newFakeFeed(t, always(http.StatusOK, eventsBody()))
	f.SetConflicts(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		_, _ = io.WriteString(w, `{"error":"Insufficient credits","message":"Please top up credits"}`)
	})
	signal := credit.New()
	c := newClient(t, f, feedsync.WithCreditSignal(signal))

	_, err := c.FetchConflicts(context.Background(), "Chad")
	assert.True(t, errors.IsInsufficientCredits(err))
	assert.True(t, signal.HasError())
}

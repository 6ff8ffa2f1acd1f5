package server_test

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/feedsync/internal/server"
	"github.com/agentstation/feedsync/internal/server/fixtures"
	"github.com/agentstation/feedsync/pkg/constants"
	"github.com/agentstation/feedsync/pkg/logging"
)

const feed = `
events:
  - {id: e1, title: Port closure after drone strike, category: conflict}
  - {id: e2, title: Aid convoy reaches Khartoum, category: humanitarian}
countries:
  ukraine:
    past: {conflicts: old war, sources: [{title: a, url: "https://a.example"}]}
    current: {conflicts: new war}
  chad:
    fail: Insufficient credits
    fail_after: 1
  mali:
    fail: upstream timeout
`

func newServer(t *testing.T, mutate func(*server.Config)) *httptest.Server {
	t.Helper()
	fx, err := fixtures.Parse([]byte(feed), "test.yaml")
	require.NoError(t, err)

	cfg := server.DefaultConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	s, err := server.New(cfg, fx, logging.NewNopLogger())
	require.NoError(t, err)

	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func valyu(cfg *server.Config) {
	cfg.Mode = constants.ModeValyu
	cfg.ExhaustedTokens = []string{"broke"}
}

type result struct {
	status int
	header http.Header
	body   map[string]any
	raw    string
}

func do(t *testing.T, req *http.Request) result {
	t.Helper()
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	r := result{status: resp.StatusCode, header: resp.Header, raw: string(raw)}
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(raw, &r.body), "body: %s", raw)
	}
	return r
}

func postEvents(t *testing.T, ts *httptest.Server, body string) result {
	req, err := http.NewRequest(http.MethodPost, ts.URL+"/api/events", strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	return do(t, req)
}

func get(t *testing.T, ts *httptest.Server, path string) result {
	req, err := http.NewRequest(http.MethodGet, ts.URL+path, nil)
	require.NoError(t, err)
	return do(t, req)
}

func eventIDs(t *testing.T, r result) []string {
	t.Helper()
	list, ok := r.body["events"].([]any)
	require.True(t, ok, "body: %s", r.raw)
	out := make([]string, 0, len(list))
	for _, e := range list {
		out = append(out, e.(map[string]any)["id"].(string))
	}
	return out
}

func TestServerInitialization(t *testing.T) {
	cfg := server.DefaultConfig()
	cfg.Mode = "hosted"
	_, err := server.New(cfg, nil, logging.NewNopLogger())
	assert.Error(t, err)

	s, err := server.New(server.DefaultConfig(), nil, logging.NewNopLogger())
	require.NoError(t, err)
	assert.NotNil(t, s.Registry())
	assert.Equal(t, "localhost:3000", s.HTTPServer().Addr)
}

func TestEvents(t *testing.T) {
	ts := newServer(t, nil)

	r := postEvents(t, ts, `{"queries":[]}`)
	require.Equal(t, http.StatusOK, r.status)
	assert.Equal(t, []string{"e1", "e2"}, eventIDs(t, r))

	r = postEvents(t, ts, `{"queries":["khartoum"]}`)
	assert.Equal(t, []string{"e2"}, eventIDs(t, r))

	r = postEvents(t, ts, ``)
	assert.Equal(t, http.StatusOK, r.status)

	r = postEvents(t, ts, `{"queries":`)
	assert.Equal(t, http.StatusBadRequest, r.status)

	r = get(t, ts, "/api/events")
	assert.Equal(t, http.StatusMethodNotAllowed, r.status)
}

func TestEventsValyuMode(t *testing.T) {
	ts := newServer(t, valyu)

	r := postEvents(t, ts, `{"queries":["drone"]}`)
	assert.Equal(t, http.StatusUnauthorized, r.status)
	assert.Equal(t, "Authentication required", r.body["error"])
	assert.Equal(t, true, r.body["requiresReauth"])

	r = postEvents(t, ts, `{"queries":["drone"],"accessToken":"tok"}`)
	require.Equal(t, http.StatusOK, r.status)
	assert.Equal(t, []string{"e1"}, eventIDs(t, r))

	r = postEvents(t, ts, `{"queries":[],"accessToken":"broke"}`)
	assert.Equal(t, http.StatusPaymentRequired, r.status)
	assert.Equal(t, "Insufficient credits", r.body["error"])
	assert.Equal(t, "Please top up credits", r.body["message"])
}

func TestEventsTokenFromHeader(t *testing.T) {
	ts := newServer(t, valyu)

	req, err := http.NewRequest(http.MethodPost, ts.URL+"/api/events", strings.NewReader(`{"queries":[]}`))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer tok")
	assert.Equal(t, http.StatusOK, do(t, req).status)
}

func TestConflicts(t *testing.T) {
	ts := newServer(t, nil)

	r := get(t, ts, "/api/countries/conflicts?country=Ukraine")
	require.Equal(t, http.StatusOK, r.status, r.raw)
	assert.Equal(t, "MISS", r.header.Get("X-Cache"))
	assert.Equal(t, "Ukraine", r.body["country"])
	assert.Equal(t, "old war", r.body["past"].(map[string]any)["conflicts"])
	assert.Equal(t, []any{}, r.body["current"].(map[string]any)["sources"])
	assert.NotEmpty(t, r.body["timestamp"])

	r = get(t, ts, "/api/countries/conflicts?country=ukraine")
	assert.Equal(t, "HIT", r.header.Get("X-Cache"))

	r = get(t, ts, "/api/countries/conflicts?country=atlantis")
	assert.Equal(t, http.StatusOK, r.status)
	assert.Equal(t, "", r.body["past"].(map[string]any)["conflicts"])
}

func TestConflictsErrors(t *testing.T) {
	ts := newServer(t, valyu)

	tests := []struct {
		name    string
		path    string
		status  int
		error   string
		message string
	}{
		{"missing country", "/api/countries/conflicts", 400, "Country parameter is required", ""},
		{"missing country wins over auth", "/api/countries/conflicts?country=", 400, "Country parameter is required", ""},
		{"no token", "/api/countries/conflicts?country=ukraine", 401, "Authentication required", ""},
		{"exhausted token", "/api/countries/conflicts?country=ukraine&accessToken=broke", 402, "Insufficient credits", "Please top up credits"},
		{"upstream credit failure", "/api/countries/conflicts?country=chad&accessToken=tok", 402, "Insufficient credits", "Please top up credits"},
		{"upstream failure", "/api/countries/conflicts?country=mali&accessToken=tok", 500, "Failed to fetch country conflicts", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := get(t, ts, tt.path)
			assert.Equal(t, tt.status, r.status)
			assert.Equal(t, tt.error, r.body["error"])
			if tt.message != "" {
				assert.Equal(t, tt.message, r.body["message"])
			}
		})
	}
}

func TestConflictsFailureNotCached(t *testing.T) {
	ts := newServer(t, nil)
	for range 2 {
		r := get(t, ts, "/api/countries/conflicts?country=mali")
		assert.Equal(t, http.StatusInternalServerError, r.status)
		assert.Empty(t, r.header.Get("X-Cache"))
	}
}

// frames splits an SSE body into its data payloads.
func frames(t *testing.T, body string) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, msg := range strings.Split(strings.TrimSpace(body), "\n\n") {
		data, ok := strings.CutPrefix(msg, "data: ")
		require.True(t, ok, "message %q", msg)
		var f map[string]any
		require.NoError(t, json.Unmarshal([]byte(data), &f))
		out = append(out, f)
	}
	return out
}

func TestConflictsStream(t *testing.T) {
	ts := newServer(t, nil)

	r := get(t, ts, "/api/countries/conflicts?country=ukraine&stream=true")
	require.Equal(t, http.StatusOK, r.status)
	assert.Equal(t, "text/event-stream", r.header.Get("Content-Type"))
	assert.Equal(t, "no-cache", r.header.Get("Cache-Control"))

	got := frames(t, r.raw)
	require.Len(t, got, 4)
	assert.Equal(t, "past", got[0]["type"])
	assert.Equal(t, "old war", got[0]["content"])
	assert.Equal(t, "current", got[2]["type"])
}

func TestConflictsStreamFailures(t *testing.T) {
	ts := newServer(t, valyu)

	r := get(t, ts, "/api/countries/conflicts?country=chad&stream=true&accessToken=tok")
	got := frames(t, r.raw)
	require.Len(t, got, 2)
	assert.Equal(t, "past", got[0]["type"])
	assert.Equal(t, map[string]any{"type": "error", "error": "Insufficient credits", "requiresCredits": true}, got[1])

	r = get(t, ts, "/api/countries/conflicts?country=mali&stream=true&accessToken=tok")
	got = frames(t, r.raw)
	require.Len(t, got, 1)
	assert.Equal(t, map[string]any{"type": "error", "error": "upstream timeout"}, got[0])

	r = get(t, ts, "/api/countries/conflicts?country=ukraine&stream=true&accessToken=broke")
	got = frames(t, r.raw)
	require.Len(t, got, 1)
	assert.Equal(t, true, got[0]["requiresCredits"])

	r = get(t, ts, "/api/countries/conflicts?country=ukraine&stream=true")
	assert.Equal(t, http.StatusUnauthorized, r.status)
}

func TestHealthAndMetrics(t *testing.T) {
	ts := newServer(t, nil)

	r := get(t, ts, "/health")
	assert.Equal(t, http.StatusOK, r.status)
	assert.Equal(t, "healthy", r.body["status"])

	r = get(t, ts, "/ready")
	assert.Equal(t, float64(2), r.body["events"])
	assert.Equal(t, float64(3), r.body["countries"])

	postEvents(t, ts, `{"queries":[]}`)
	r = get(t, ts, "/metrics")
	assert.Equal(t, http.StatusOK, r.status)
	assert.Contains(t, r.raw, `feedsync_http_requests_total{method="POST",route="/api/events",status="200"} 1`)
	assert.Contains(t, r.raw, "go_goroutines")
}

func TestMetricsDisabled(t *testing.T) {
	ts := newServer(t, func(cfg *server.Config) { cfg.MetricsEnabled = false })
	assert.Equal(t, http.StatusNotFound, get(t, ts, "/metrics").status)
	assert.Equal(t, http.StatusOK, postEvents(t, ts, `{}`).status)
}

func TestCORSAndRateLimit(t *testing.T) {
	ts := newServer(t, func(cfg *server.Config) {
		cfg.CORSEnabled = true
		cfg.RateLimit = 2
	})

	r := get(t, ts, "/health")
	assert.Equal(t, "*", r.header.Get("Access-Control-Allow-Origin"))
	assert.NotEmpty(t, r.header.Get("X-Request-ID"))

	get(t, ts, "/health")
	assert.Equal(t, http.StatusTooManyRequests, get(t, ts, "/health").status)
}

func TestServeListenerShutsDownOnCancel(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	s, err := server.New(server.DefaultConfig(), nil, logging.NewNopLogger())
	require.NoError(t, err)
	srv := s.HTTPServer()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- server.ServeListener(ctx, srv, ln, logging.NewNopLogger()) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + ln.Addr().String() + "/health")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

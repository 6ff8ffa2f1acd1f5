package feedsync_test

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/agentstation/feedsync"
	"github.com/agentstation/feedsync/pkg/logging"
)

// fakeFeed serves the events endpoint with scripted responses and counts calls.
type fakeFeed struct {
	srv *httptest.Server

	mu       sync.Mutex
	calls    int
	requests []feedRequest
	respond  func(call int) (int, string)
	gate     chan struct{}
	entered  chan struct{}
	conflict http.HandlerFunc
}

type feedRequest struct {
	Queries     []string `json:"queries"`
	AccessToken string   `json:"accessToken"`
}

func newFakeFeed(t *testing.T, respond func(call int) (int, string)) *fakeFeed {
	t.Helper()
	f := &fakeFeed{respond: respond}
	f.srv = httptest.NewServer(f)
	t.Cleanup(func() {
		f.mu.Lock()
		if f.gate != nil {
			select {
			case <-f.gate:
			default:
				close(f.gate)
			}
		}
		f.mu.Unlock()
		f.srv.Close()
	})
	return f
}

func (f *fakeFeed) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != feedsync.EventsPath {
		f.mu.Lock()
		h := f.conflict
		f.mu.Unlock()
		if h == nil {
			http.NotFound(w, r)
			return
		}
		h(w, r)
		return
	}

	var req feedRequest
	_ = json.NewDecoder(r.Body).Decode(&req)

	f.mu.Lock()
	f.calls++
	call := f.calls
	f.requests = append(f.requests, req)
	respond, gate, entered := f.respond, f.gate, f.entered
	f.mu.Unlock()

	if entered != nil {
		entered <- struct{}{}
	}
	if gate != nil {
		<-gate
	}

	status, body := respond(call)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

// Calls returns the number of events requests served.
func (f *fakeFeed) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// LastRequest returns the most recent events request body.
func (f *fakeFeed) LastRequest() feedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

// Block makes subsequent requests wait for the returned release func.
func (f *fakeFeed) Block() (entered <-chan struct{}, release func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	gate := make(chan struct{})
	in := make(chan struct{}, 8)
	f.gate, f.entered = gate, in
	var once sync.Once
	return in, func() {
		once.Do(func() {
			f.mu.Lock()
			f.gate, f.entered = nil, nil
			f.mu.Unlock()
			close(gate)
		})
	}
}

// SetRespond replaces the scripted response.
func (f *fakeFeed) SetRespond(respond func(call int) (int, string)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.respond = respond
}

// SetConflicts installs a handler for the conflicts endpoint.
func (f *fakeFeed) SetConflicts(h http.HandlerFunc) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.conflict = h
}

// always responds with the same status and body.
func always(status int, body string) func(int) (int, string) {
	return func(int) (int, string) { return status, body }
}

// eventsBody builds a feed response holding events with the given ids.
func eventsBody(ids ...string) string {
	items := make([]string, len(ids))
	for i, id := range ids {
		items[i] = fmt.Sprintf(`{"id":%q,"title":"event %s"}`, id, id)
	}
	return `{"events":[` + strings.Join(items, ",") + `]}`
}

func newClient(t *testing.T, f *fakeFeed, opts ...feedsync.Option) feedsync.Client {
	t.Helper()
	base := []feedsync.Option{
		feedsync.WithBaseURL(f.srv.URL),
		feedsync.WithLogger(logging.NewNopLogger()),
		feedsync.WithAutoRefresh(false),
	}
	c, err := feedsync.New(append(base, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func ids(c feedsync.WorkingSet) []string {
	evs := c.Events()
	out := make([]string, len(evs))
	for i, e := range evs {
		out[i] = e.ID
	}
	return out
}

// Package metrics holds the Prometheus collectors for the sync engine and the
// feed server. A nil *Engine or *HTTP is valid and records nothing.
package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "feedsync"

// Fetch kinds.
const (
	KindInitial = "initial"
	KindRefresh = "refresh"
	KindStream  = "stream"
)

// Fetch results.
const (
	ResultOK      = "ok"
	ResultGated   = "gated"
	ResultAuth    = "auth"
	ResultCredit  = "credit"
	ResultError   = "error"
	ResultStale   = "stale"
	ResultJoined  = "joined"
	ResultSkipped = "skipped"
)

// Engine records synchronization engine activity.
type Engine struct {
	fetches       *prometheus.CounterVec
	fetchDuration *prometheus.HistogramVec
	eventsAdded   prometheus.Counter
	workingSet    prometheus.Gauge
	creditRaises  prometheus.Counter
	frames        *prometheus.CounterVec
}

// NewEngine creates and registers engine collectors on reg (or the default
// registerer when nil). Registering twice on the same registry reuses the
// collectors already there.
func NewEngine(reg prometheus.Registerer) (*Engine, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Engine{
		fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetches_total",
			Help:      "Feed fetches by kind and result",
		}, []string{"kind", "result"}),
		fetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Latency of feed fetches",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind"}),
		eventsAdded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_added_total",
			Help:      "Events appended to the working set",
		}),
		workingSet: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "working_set_size",
			Help:      "Events currently held in the working set",
		}),
		creditRaises: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "credit_errors_total",
			Help:      "Credit failures detected by the engine",
		}),
		frames: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stream_frames_total",
			Help:      "Stream frames consumed by type",
		}, []string{"type"}),
	}

	var err error
	m.fetches = register(reg, m.fetches, &err)
	m.fetchDuration = register(reg, m.fetchDuration, &err)
	m.eventsAdded = register(reg, m.eventsAdded, &err)
	m.workingSet = register(reg, m.workingSet, &err)
	m.creditRaises = register(reg, m.creditRaises, &err)
	m.frames = register(reg, m.frames, &err)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// Fetch records one fetch attempt.
func (m *Engine) Fetch(kind, result string, d time.Duration) {
	if m == nil {
		return
	}
	m.fetches.WithLabelValues(kind, result).Inc()
	if d > 0 {
		m.fetchDuration.WithLabelValues(kind).Observe(d.Seconds())
	}
}

// EventsAdded records events appended to the working set and its new size.
func (m *Engine) EventsAdded(added, size int) {
	if m == nil {
		return
	}
	m.eventsAdded.Add(float64(added))
	m.workingSet.Set(float64(size))
}

// CreditRaised records a detected credit failure.
func (m *Engine) CreditRaised() {
	if m == nil {
		return
	}
	m.creditRaises.Inc()
}

// Frame records a consumed stream frame.
func (m *Engine) Frame(frameType string) {
	if m == nil {
		return
	}
	m.frames.WithLabelValues(frameType).Inc()
}

// HTTP records requests served by the feed server.
type HTTP struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	inflight prometheus.Gauge
}

// NewHTTP creates and registers HTTP collectors on reg (or the default
// registerer when nil).
func NewHTTP(reg prometheus.Registerer) (*HTTP, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &HTTP{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Requests served by route and status",
		}, []string{"method", "route", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Latency of served requests",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		inflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_inflight_requests",
			Help:      "Requests currently being served",
		}),
	}

	var err error
	m.requests = register(reg, m.requests, &err)
	m.duration = register(reg, m.duration, &err)
	m.inflight = register(reg, m.inflight, &err)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// Middleware instruments next under the given route label.
func (m *HTTP) Middleware(route string, next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		m.inflight.Inc()
		defer m.inflight.Dec()

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		m.requests.WithLabelValues(r.Method, route, strconv.Itoa(rec.status)).Inc()
		m.duration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// Handler serves the metrics gathered by g (or the default gatherer when nil).
func Handler(g prometheus.Gatherer) http.Handler {
	if g == nil {
		g = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// register registers c, returning the already registered collector on a
// duplicate. The first hard failure is stored in errp.
func register[C prometheus.Collector](reg prometheus.Registerer, c C, errp *error) C {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing
			}
		}
		if *errp == nil {
			*errp = err
		}
	}
	return c
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Flush keeps streaming responses working through the recorder.
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap exposes the underlying writer to http.ResponseController.
func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

package feedsync

import (
	"net/http"
	"slices"
	"time"

	"github.com/juju/clock"
	"github.com/rs/zerolog"

	"github.com/agentstation/feedsync/internal/metrics"
	"github.com/agentstation/feedsync/internal/transport"
	"github.com/agentstation/feedsync/pkg/constants"
	"github.com/agentstation/feedsync/pkg/credit"
	"github.com/agentstation/feedsync/pkg/errors"
	"github.com/agentstation/feedsync/pkg/session"
)

// Option is a function that configures a feedsync client.
type Option func(*options) error

// options holds the configuration for a client.
type options struct {
	baseURL      string
	httpClient   *http.Client
	httpTimeout  time.Duration
	transport    *transport.Client
	session      session.Auth
	credits      credit.Raiser
	requiresAuth bool
	queries      []string
	autoRefresh  bool
	interval     time.Duration
	clock        clock.Clock
	logger       *zerolog.Logger
	metrics      *metrics.Engine
}

// defaults returns options with default values.
func defaults() *options {
	return &options{
		baseURL:     constants.DefaultBaseURL,
		httpTimeout: constants.DefaultHTTPTimeout,
		session:     session.Anonymous{},
		autoRefresh: true,
		interval:    constants.DefaultRefreshInterval,
		clock:       clock.WallClock,
	}
}

// apply applies the given options.
func (o *options) apply(opts ...Option) (*options, error) {
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}
	if o.credits == nil {
		o.credits = credit.New()
	}
	return o, nil
}

// WithBaseURL sets the root URL of the feed API.
func WithBaseURL(url string) Option {
	return func(o *options) error {
		if url == "" {
			return errors.NewValidationError("baseURL", url, "base URL is required")
		}
		o.baseURL = url
		return nil
	}
}

// WithHTTPClient sets the http.Client used for requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *options) error {
		o.httpClient = hc
		return nil
	}
}

// WithHTTPTimeout sets the timeout for non-streaming requests.
func WithHTTPTimeout(d time.Duration) Option {
	return func(o *options) error {
		if d < 0 {
			return errors.NewValidationError("httpTimeout", d, "timeout must not be negative")
		}
		o.httpTimeout = d
		return nil
	}
}

// WithTransport uses an already configured transport client. It takes
// precedence over WithBaseURL, WithHTTPClient and WithHTTPTimeout.
func WithTransport(tc *transport.Client) Option {
	return func(o *options) error {
		o.transport = tc
		return nil
	}
}

// WithSession sets the auth collaborator. Defaults to an anonymous session.
func WithSession(auth session.Auth) Option {
	return func(o *options) error {
		if auth == nil {
			return errors.NewValidationError("session", nil, "session is required")
		}
		o.session = auth
		return nil
	}
}

// WithCreditSignal sets the credit signal raised on credit failures.
func WithCreditSignal(r credit.Raiser) Option {
	return func(o *options) error {
		o.credits = r
		return nil
	}
}

// WithRequiresAuth gates refreshes on an authenticated session.
func WithRequiresAuth(required bool) Option {
	return func(o *options) error {
		o.requiresAuth = required
		return nil
	}
}

// WithAppMode sets auth gating from an app mode name.
func WithAppMode(mode string) Option {
	return func(o *options) error {
		switch mode {
		case constants.ModeValyu:
			o.requiresAuth = true
		case constants.ModeSelfHosted, "":
			o.requiresAuth = false
		default:
			return errors.NewValidationError("appMode", mode, "must be valyu or self-hosted")
		}
		return nil
	}
}

// WithQueries sets the feed queries sent with every fetch.
func WithQueries(queries ...string) Option {
	return func(o *options) error {
		o.queries = slices.Clone(queries)
		return nil
	}
}

// WithAutoRefresh configures whether the periodic refresh runs.
func WithAutoRefresh(enabled bool) Option {
	return func(o *options) error {
		o.autoRefresh = enabled
		return nil
	}
}

// WithRefreshInterval configures the period between automatic refreshes.
func WithRefreshInterval(interval time.Duration) Option {
	return func(o *options) error {
		if err := validateInterval(interval); err != nil {
			return err
		}
		o.interval = interval
		return nil
	}
}

// WithClock sets the clock driving the refresh timer.
func WithClock(clk clock.Clock) Option {
	return func(o *options) error {
		if clk != nil {
			o.clock = clk
		}
		return nil
	}
}

// WithLogger sets the logger.
func WithLogger(l *zerolog.Logger) Option {
	return func(o *options) error {
		o.logger = l
		return nil
	}
}

// WithMetrics records engine activity on m.
func WithMetrics(m *metrics.Engine) Option {
	return func(o *options) error {
		o.metrics = m
		return nil
	}
}

func validateInterval(interval time.Duration) error {
	if interval < constants.MinRefreshInterval {
		return &errors.ValidationError{
			Field:   "refreshInterval",
			Value:   interval,
			Message: "refresh interval must be at least " + constants.MinRefreshInterval.String(),
		}
	}
	return nil
}

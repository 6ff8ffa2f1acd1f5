package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/agentstation/feedsync/pkg/constants"
	"github.com/agentstation/feedsync/pkg/credit"
	"github.com/agentstation/feedsync/pkg/errors"
	"github.com/agentstation/feedsync/pkg/logging"
)

// DefaultHTTPTimeout is the default timeout for non-streaming requests.
var DefaultHTTPTimeout = constants.DefaultHTTPTimeout

// RequestIDHeader carries a per-request id for log correlation.
const RequestIDHeader = "X-Request-ID"

// Client is the API access wrapper. Every response it returns has already been
// checked for credit exhaustion, and the credit signal raised when found.
type Client struct {
	http    *http.Client
	baseURL *url.URL
	auth    Authenticator
	tokens  TokenSource
	credits credit.Raiser
	logger  *zerolog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithTimeout sets the http.Client timeout. Zero disables it.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.http.Timeout = d
	}
}

// WithAuthenticator sets the default authenticator.
func WithAuthenticator(a Authenticator) Option {
	return func(c *Client) {
		if a != nil {
			c.auth = a
		}
	}
}

// WithTokenSource sets where access tokens come from.
func WithTokenSource(ts TokenSource) Option {
	return func(c *Client) {
		c.tokens = ts
	}
}

// WithCreditRaiser sets the credit signal raised on credit failures.
func WithCreditRaiser(r credit.Raiser) Option {
	return func(c *Client) {
		c.credits = r
	}
}

// WithLogger sets the logger.
func WithLogger(l *zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// New creates a transport client rooted at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, errors.NewValidationError("base_url", baseURL, err.Error())
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, errors.NewValidationError("base_url", baseURL, "scheme must be http or https")
	}

	c := &Client{
		http:    &http.Client{Timeout: DefaultHTTPTimeout},
		baseURL: u,
		auth:    &NoAuth{},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = logging.OrDefault(c.logger)
	return c, nil
}

// BaseURL returns the root URL requests are resolved against.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// URL resolves path and query against the base URL.
func (c *Client) URL(path string, query url.Values) string {
	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

// AccessToken returns the current token, or "" without a token source.
func (c *Client) AccessToken() string {
	if c.tokens == nil {
		return ""
	}
	return c.tokens.AccessToken()
}

// RequestOption adjusts a single request.
type RequestOption func(*requestOptions)

type requestOptions struct {
	skipCreditCheck bool
	auth            Authenticator
	noTimeout       bool
}

// SkipCreditCheck disables credit detection for one request.
func SkipCreditCheck() RequestOption {
	return func(o *requestOptions) {
		o.skipCreditCheck = true
	}
}

// WithRequestAuth overrides the authenticator for one request.
func WithRequestAuth(a Authenticator) RequestOption {
	return func(o *requestOptions) {
		o.auth = a
	}
}

// Streaming lifts the client timeout for long-lived responses; the request
// context still bounds them.
func Streaming() RequestOption {
	return func(o *requestOptions) {
		o.noTimeout = true
	}
}

// Do performs req with authentication applied and checks the response for
// credit exhaustion. Non-2xx responses are returned, not converted to errors;
// use DecodeResponse or ReadErrorBody to interpret them.
func (c *Client) Do(req *http.Request, opts ...RequestOption) (*http.Response, error) {
	ro := requestOptions{auth: c.auth}
	for _, opt := range opts {
		opt(&ro)
	}

	if token := c.AccessToken(); token != "" && ro.auth != nil {
		ro.auth.Apply(req, token)
	}

	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}
	if req.Body != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}
	requestID := req.Header.Get(RequestIDHeader)
	if requestID == "" {
		requestID = uuid.NewString()
		req.Header.Set(RequestIDHeader, requestID)
	}

	hc := c.http
	if ro.noTimeout && hc.Timeout != 0 {
		clone := *hc
		clone.Timeout = 0
		hc = &clone
	}

	start := time.Now()
	resp, err := hc.Do(req)
	if err != nil {
		c.logger.Debug().Err(err).
			Str("request_id", requestID).
			Str("method", req.Method).
			Str("path", req.URL.Path).
			Msg("Request failed")
		return nil, errors.WrapResource("send", "request", req.Method+" "+req.URL.Path, err)
	}

	c.logger.Debug().
		Str("request_id", requestID).
		Str("method", req.Method).
		Str("path", req.URL.Path).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("Request completed")

	if !ro.skipCreditCheck {
		c.checkCredits(resp)
	}
	return resp, nil
}

// Get performs a GET request against path.
func (c *Client) Get(ctx context.Context, path string, query url.Values, opts ...RequestOption) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL(path, query), nil)
	if err != nil {
		return nil, errors.WrapResource("create", "request", "GET "+path, err)
	}
	return c.Do(req, opts...)
}

// PostJSON performs a POST request with body encoded as JSON.
func (c *Client) PostJSON(ctx context.Context, path string, body any, opts ...RequestOption) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, errors.WrapParse("json", "request body", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL(path, nil), bytes.NewReader(payload))
	if err != nil {
		return nil, errors.WrapResource("create", "request", "POST "+path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.Do(req, opts...)
}

// checkCredits raises the credit signal on a 402, or on any other failure
// whose error text names a credit problem. The body stays readable.
func (c *Client) checkCredits(resp *http.Response) {
	if c.credits == nil {
		return
	}
	if resp.StatusCode == http.StatusPaymentRequired {
		c.raise(resp, "")
		return
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return
	}

	body := ReadErrorBody(resp)
	if errors.Classify(resp.StatusCode, body.Text()) == errors.ClassCredit {
		c.raise(resp, body.Text())
	}
}

func (c *Client) raise(resp *http.Response, detail string) {
	c.logger.Warn().
		Int("status", resp.StatusCode).
		Str("path", resp.Request.URL.Path).
		Str("detail", detail).
		Msg("Insufficient credits")
	c.credits.Raise(credit.DefaultMessage)
}

// rebuffered keeps a peeked body readable from the start.
type rebuffered struct {
	io.Reader
	io.Closer
}

// Package stream consumes the feed API's incremental conflicts response and
// exposes it as a lazy, finite sequence of typed frames.
//
// A stream ends at the first error frame, at end of body, or when the
// consumer closes it. Transport failures never surface as Go errors from
// Next; they arrive as one final error frame:
//
//	s, err := stream.Open(ctx, client, stream.Request{Country: "Sudan"})
//	if err != nil {
//	    return err
//	}
//	defer s.Close()
//
//	for f := range s.All() {
//	    if f.IsError() {
//	        return f.Err()
//	    }
//	    fmt.Println(f.Kind)
//	}
package stream

import (
	"context"
	"io"
	"iter"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/agentstation/feedsync/internal/transport"
	"github.com/agentstation/feedsync/pkg/constants"
	"github.com/agentstation/feedsync/pkg/errors"
	"github.com/agentstation/feedsync/pkg/logging"
)

// Request selects the stream to open.
type Request struct {
	Country string
}

// Validate checks the request.
func (r Request) Validate() error {
	if strings.TrimSpace(r.Country) == "" {
		return errors.NewValidationError("country", r.Country, "country is required")
	}
	return nil
}

type options struct {
	logger   *zerolog.Logger
	maxFrame int
}

// Option configures a Stream.
type Option func(*options)

// WithLogger sets the logger used for stream diagnostics.
func WithLogger(l *zerolog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithMaxFrameSize bounds a single SSE line.
func WithMaxFrameSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxFrame = n
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{maxFrame: constants.MaxFrameSize}
	for _, opt := range opts {
		opt(&o)
	}
	o.logger = logging.OrDefault(o.logger)
	return o
}

// Stream is a lazy, non-restartable sequence of frames.
type Stream struct {
	ctx    context.Context
	body   io.ReadCloser
	dec    *decoder
	logger *zerolog.Logger

	mu      sync.Mutex
	done    bool
	pending *Frame

	closed    atomic.Bool
	closeOnce sync.Once
	stop      func() bool
	count     int
}

// Open issues the stream request through c. It only fails on an invalid
// request; a transport failure or non-2xx response yields a stream holding
// one error frame.
func Open(ctx context.Context, c *transport.Client, req Request, opts ...Option) (*Stream, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	o := buildOptions(opts)
	ctx = logging.WithCountry(logging.WithLogger(ctx, o.logger), req.Country)
	logger := logging.FromContext(ctx)

	query := url.Values{}
	query.Set("country", req.Country)
	query.Set("stream", "true")

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL(Endpoint, query), nil)
	if err != nil {
		return nil, errors.WrapResource("create", "stream", req.Country, err)
	}
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := c.Do(httpReq,
		transport.WithRequestAuth(&transport.QueryAuth{Param: "accessToken"}),
		transport.Streaming(),
	)
	if err != nil {
		logger.Warn().Err(err).Msg("Stream request failed")
		return failed(ctx, ErrorFrame(err.Error()), logger), nil
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		f := statusFrame(resp)
		_ = resp.Body.Close()
		logger.Warn().Int("status", resp.StatusCode).Str("error", f.Error).Msg("Stream rejected")
		return failed(ctx, f, logger), nil
	}

	logger.Debug().Msg("Stream opened")
	return newStream(ctx, resp.Body, o, logger), nil
}

// NewStream wraps an already open event-stream body.
func NewStream(ctx context.Context, body io.ReadCloser, opts ...Option) *Stream {
	o := buildOptions(opts)
	return newStream(ctx, body, o, o.logger)
}

func newStream(ctx context.Context, body io.ReadCloser, o options, logger *zerolog.Logger) *Stream {
	s := &Stream{
		ctx:    ctx,
		body:   body,
		dec:    newDecoder(body, o.maxFrame),
		logger: logger,
	}
	// Closing the body unblocks a pending read when ctx ends.
	s.stop = context.AfterFunc(ctx, s.release)
	return s
}

// failed returns a stream that yields f and ends.
func failed(ctx context.Context, f Frame, logger *zerolog.Logger) *Stream {
	return &Stream{
		ctx:     ctx,
		logger:  logger,
		pending: &f,
		stop:    func() bool { return false },
	}
}

// statusFrame converts a rejected open into an error frame.
func statusFrame(resp *http.Response) Frame {
	body := transport.ReadErrorBody(resp)
	message := body.Text()
	if message == "" {
		message = http.StatusText(resp.StatusCode)
	}

	f := ErrorFrame(message)
	switch errors.Classify(resp.StatusCode, body.Text()) {
	case errors.ClassAuth:
		f.RequiresReauth = true
	case errors.ClassCredit:
		f.RequiresCredits = true
	}
	if body.RequiresReauth {
		f.RequiresReauth = true
	}
	return f
}

// Next returns the next frame. It returns false once the stream has ended;
// after an error frame has been returned nothing further is read.
func (s *Stream) Next() (Frame, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.done {
		return Frame{}, false
	}
	if s.closed.Load() {
		s.finish()
		return Frame{}, false
	}
	if s.pending != nil {
		f := *s.pending
		s.pending = nil
		s.finish()
		return f, true
	}

	data, err := s.dec.next()
	if err != nil {
		s.finish()
		if s.closed.Load() || err == io.EOF {
			s.logger.Debug().Int("frames", s.count).Msg("Stream ended")
			return Frame{}, false
		}
		if ctxErr := s.ctx.Err(); ctxErr != nil {
			err = ctxErr
		}
		s.logger.Warn().Err(err).Int("frames", s.count).Msg("Stream read failed")
		return ErrorFrame(err.Error()), true
	}

	f, err := parseFrame(data)
	if err != nil {
		s.finish()
		s.logger.Warn().Err(err).Int("frames", s.count).Msg("Stream frame rejected")
		return ErrorFrame(err.Error()), true
	}

	s.count++
	if f.IsError() {
		s.finish()
	}
	return f, true
}

// All returns the remaining frames as a range-over-func sequence.
// Breaking out of the loop closes the stream.
func (s *Stream) All() iter.Seq[Frame] {
	return func(yield func(Frame) bool) {
		for {
			f, ok := s.Next()
			if !ok {
				return
			}
			if !yield(f) {
				_ = s.Close()
				return
			}
		}
	}
}

// Close ends the stream without a frame and releases the body.
func (s *Stream) Close() error {
	s.closed.Store(true)
	s.release()
	return nil
}

// finish marks the stream ended. Callers hold s.mu.
func (s *Stream) finish() {
	s.done = true
	s.stop()
	s.release()
}

func (s *Stream) release() {
	s.closeOnce.Do(func() {
		if s.body != nil {
			_ = s.body.Close()
		}
	})
}

// Sink receives frames in arrival order.
type Sink interface {
	Send(Frame) error
}

// SinkFunc adapts a function to a Sink.
type SinkFunc func(Frame) error

// Send implements Sink.
func (f SinkFunc) Send(fr Frame) error {
	return f(fr)
}

// Drain forwards every frame of s to sink and returns the last frame seen.
// A sink error closes the stream and is returned.
func Drain(s *Stream, sink Sink) (Frame, error) {
	var last Frame
	for f := range s.All() {
		last = f
		if err := sink.Send(f); err != nil {
			_ = s.Close()
			return last, err
		}
	}
	return last, nil
}

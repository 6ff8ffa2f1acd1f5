package feedsync

import (
	"context"

	"github.com/agentstation/feedsync/internal/metrics"
	"github.com/agentstation/feedsync/pkg/constants"
	"github.com/agentstation/feedsync/pkg/credit"
	"github.com/agentstation/feedsync/pkg/errors"
	"github.com/agentstation/feedsync/pkg/stream"
)

// Compile-time interface check to ensure proper implementation.
var _ Streamer = (*client)(nil)

// Streamer consumes the incremental conflicts stream.
type Streamer interface {
	// Stream forwards every frame for country to sink in arrival order. It
	// returns the typed error of a terminal error frame, or the sink's error.
	Stream(ctx context.Context, country string, sink stream.Sink) error
}

// Stream opens the conflicts stream for country and drains it into sink.
// Error frames are forwarded too; a credit frame raises the credit signal and
// an auth frame signs the session out.
func (c *client) Stream(ctx context.Context, country string, sink stream.Sink) error {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return errors.ErrClosed
	}

	logger := c.logger.With().Str("operation", metrics.KindStream).Str("country", country).Logger()

	start := c.clock.Now()
	s, err := stream.Open(ctx, c.transport, stream.Request{Country: country}, stream.WithLogger(&logger))
	if err != nil {
		return err
	}
	defer s.Close()

	last, err := stream.Drain(s, stream.SinkFunc(func(f stream.Frame) error {
		c.metrics.Frame(string(f.Type))
		return sink.Send(f)
	}))
	elapsed := c.clock.Now().Sub(start)
	if err != nil {
		c.metrics.Fetch(metrics.KindStream, metrics.ResultError, elapsed)
		return err
	}
	if !last.IsError() {
		c.metrics.Fetch(metrics.KindStream, metrics.ResultOK, elapsed)
		return nil
	}

	frameErr := last.Err()
	switch last.Class() {
	case errors.ClassCredit:
		c.metrics.Fetch(metrics.KindStream, metrics.ResultCredit, elapsed)
		c.metrics.CreditRaised()
		logger.Warn().Str("error", last.Error).Msg("Stream ended: insufficient credits")
		c.credits.Raise(credit.DefaultMessage)
	case errors.ClassAuth:
		c.metrics.Fetch(metrics.KindStream, metrics.ResultAuth, elapsed)
		logger.Warn().Str("error", last.Error).Msg("Stream ended: session rejected")
		c.signOut(constants.SessionExpiredMessage)
	default:
		c.metrics.Fetch(metrics.KindStream, metrics.ResultError, elapsed)
		logger.Warn().Str("error", last.Error).Msg("Stream ended with error")
	}
	c.hooks.failed(frameErr)
	return frameErr
}

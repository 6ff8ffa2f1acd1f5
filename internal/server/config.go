package server

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/agentstation/feedsync/pkg/constants"
	"github.com/agentstation/feedsync/pkg/errors"
)

// Config holds server configuration.
type Config struct {
	// Server settings
	Host string
	Port int

	// Mode is the app mode. Valyu mode requires an access token on every
	// feed request.
	Mode string

	// Feed settings
	FixturesPath    string
	ExhaustedTokens []string
	ChunkDelay      time.Duration

	// CORS settings
	CORSEnabled bool
	CORSOrigins []string

	// Performance settings
	RateLimit int // Requests per minute per IP (0 to disable)
	CacheTTL  time.Duration

	// HTTP timeouts. WriteTimeout stays zero by default because conflict
	// streams are long-lived.
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	// Features
	MetricsEnabled bool
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Host:           "localhost",
		Port:           3000,
		Mode:           constants.ModeSelfHosted,
		CORSEnabled:    false,
		CORSOrigins:    []string{},
		RateLimit:      0,
		CacheTTL:       constants.CacheTTL,
		ReadTimeout:    10 * time.Second,
		IdleTimeout:    120 * time.Second,
		MetricsEnabled: true,
	}
}

// Addr returns the listen address.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// RequiresToken reports whether feed requests need an access token.
func (c Config) RequiresToken() bool {
	return c.Mode == constants.ModeValyu
}

// Validate checks the configuration.
func (c Config) Validate() error {
	switch c.Mode {
	case constants.ModeValyu, constants.ModeSelfHosted:
	default:
		return errors.NewValidationError("mode", c.Mode,
			fmt.Sprintf("must be %q or %q", constants.ModeValyu, constants.ModeSelfHosted))
	}
	if c.Port < 0 || c.Port > 65535 {
		return errors.NewValidationError("port", c.Port, "port out of range")
	}
	if c.RateLimit < 0 {
		return errors.NewValidationError("rate_limit", c.RateLimit, "must not be negative")
	}
	return nil
}

// Package constants provides shared constants used throughout the feedsync codebase.
// This includes timeouts, intervals, buffer sizes, file permissions, and the
// user-facing messages that must read the same on every surface.
package constants

import "time"

// Timeout constants define various timeout durations used in the application
const (
	// DefaultHTTPTimeout is the standard timeout for non-streaming requests to the feed API
	DefaultHTTPTimeout = 30 * time.Second

	// DefaultTimeout is the standard timeout for general operations
	DefaultTimeout = 10 * time.Second

	// ShutdownTimeout bounds graceful shutdown of HTTP servers
	ShutdownTimeout = 10 * time.Second

	// StreamIdleTimeout bounds how long the dev server waits between stream chunks
	StreamIdleTimeout = 2 * time.Minute
)

// Refresh constants control the synchronization engine's periodic timer
const (
	// DefaultRefreshInterval is the default period between automatic refreshes
	DefaultRefreshInterval = 60 * time.Second

	// MinRefreshInterval is the smallest interval accepted by SetRefreshInterval
	MinRefreshInterval = 1 * time.Second
)

// File permission constants define standard Unix file permissions
const (
	// DirPermissions is the default permission for created directories (rwxr-xr-x)
	DirPermissions = 0755

	// FilePermissions is the default permission for created files (rw-r--r--)
	FilePermissions = 0644

	// SecureFilePermissions is for sensitive files like access tokens (rw-------)
	SecureFilePermissions = 0600
)

// Limit constants define buffer sizes and capacities
const (
	// ChannelBufferSize is the default buffer size for channels
	ChannelBufferSize = 100

	// MaxFrameSize is the largest single SSE line the stream decoder accepts
	MaxFrameSize = 1 << 20

	// MaxErrorBodySize caps how much of a failed response body is read for classification
	MaxErrorBodySize = 64 << 10

	// MaxRelayMessageSize caps inbound websocket messages from UI clients
	MaxRelayMessageSize = 4096
)

// Cache constants
const (
	// CacheTTL is the default time-to-live for cached conflict responses
	CacheTTL = 15 * time.Minute

	// CacheCleanupInterval is how often to clean expired cache entries
	CacheCleanupInterval = 5 * time.Minute
)

// Websocket constants
const (
	// WriteWait is the time allowed to write a message to the peer
	WriteWait = 10 * time.Second

	// PongWait is the time allowed to read the next pong message from the peer
	PongWait = 60 * time.Second

	// PingPeriod sends pings to the peer with this period; must be less than PongWait
	PingPeriod = (PongWait * 9) / 10
)

// Messages shown to users
const (
	// SessionExpiredMessage is the local error set when the session is rejected
	SessionExpiredMessage = "Session expired. Please sign in again."

	// InsufficientCreditsMessage is the local error set when credits are exhausted
	InsufficientCreditsMessage = "Insufficient credits"

	// AuthenticationRequiredMessage is returned by the feed server when no token is supplied
	AuthenticationRequiredMessage = "Authentication required"

	// TopUpMessage is returned alongside a 402 by the feed server
	TopUpMessage = "Please top up credits"
)

// DefaultBaseURL is where the feed API is expected when none is configured
const DefaultBaseURL = "http://localhost:3000"

// App modes
const (
	// ModeValyu requires an authenticated session for refreshes and streams
	ModeValyu = "valyu"

	// ModeSelfHosted disables auth gating
	ModeSelfHosted = "self-hosted"
)

// Package session provides the authentication collaborator the sync engine
// reads to decide whether refreshes are allowed.
package session

import (
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Auth is the view of the user session the engine depends on. It is the sole
// source of truth for refresh gating.
type Auth interface {
	// AccessToken returns the current token, or "" when signed out.
	AccessToken() string

	// IsAuthenticated reports whether the session may be used for refreshes.
	IsAuthenticated() bool

	// SignOut invalidates the session.
	SignOut()

	// Watch registers fn for authentication changes and returns a function
	// that removes it.
	Watch(fn func(authenticated bool)) (cancel func())
}

// Session is an in-memory Auth. Tokens that parse as JWTs are checked for
// expiry; any other non-empty token is treated as valid until SignOut.
type Session struct {
	mu       sync.RWMutex
	token    string
	expires  time.Time
	watchers map[int]func(bool)
	nextID   int
	now      func() time.Time
}

// Compile-time interface check to ensure proper implementation.
var _ Auth = (*Session)(nil)

// Option configures a Session.
type Option func(*Session)

// WithNow sets the time source used for token expiry checks.
func WithNow(now func() time.Time) Option {
	return func(s *Session) {
		s.now = now
	}
}

// WithToken starts the session signed in with token.
func WithToken(token string) Option {
	return func(s *Session) {
		s.token = token
		s.expires = tokenExpiry(token)
	}
}

// New creates a session, signed out unless WithToken is given.
func New(opts ...Option) *Session {
	s := &Session{
		watchers: make(map[int]func(bool)),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SignIn stores token and notifies watchers if the session became authenticated.
func (s *Session) SignIn(token string) {
	s.mu.Lock()
	was := s.authenticatedLocked()
	s.token = token
	s.expires = tokenExpiry(token)
	is := s.authenticatedLocked()
	watchers := s.snapshotWatchers()
	s.mu.Unlock()

	if was != is {
		for _, fn := range watchers {
			fn(is)
		}
	}
}

// SignOut clears the token and notifies watchers if the session was authenticated.
func (s *Session) SignOut() {
	s.mu.Lock()
	was := s.authenticatedLocked()
	s.token = ""
	s.expires = time.Time{}
	watchers := s.snapshotWatchers()
	s.mu.Unlock()

	if was {
		for _, fn := range watchers {
			fn(false)
		}
	}
}

// AccessToken implements Auth.
func (s *Session) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// IsAuthenticated implements Auth.
func (s *Session) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.authenticatedLocked()
}

// ExpiresAt returns the token expiry, or the zero time when unknown.
func (s *Session) ExpiresAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.expires
}

// Watch implements Auth. fn runs on the goroutine that changed the session.
func (s *Session) Watch(fn func(authenticated bool)) (cancel func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.watchers[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.watchers, id)
			s.mu.Unlock()
		})
	}
}

func (s *Session) authenticatedLocked() bool {
	if s.token == "" {
		return false
	}
	if s.expires.IsZero() {
		return true
	}
	return s.now().Before(s.expires)
}

func (s *Session) snapshotWatchers() []func(bool) {
	out := make([]func(bool), 0, len(s.watchers))
	for i := 0; i < s.nextID; i++ {
		if fn, ok := s.watchers[i]; ok {
			out = append(out, fn)
		}
	}
	return out
}

// tokenExpiry reads the exp claim of a JWT without verifying its signature.
// Verification belongs to the API; the client only needs to know when to stop
// treating the token as usable.
func tokenExpiry(token string) time.Time {
	if token == "" {
		return time.Time{}
	}
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}
	}
	if claims.ExpiresAt == nil {
		return time.Time{}
	}
	return claims.ExpiresAt.Time
}

// Anonymous is an Auth that is never authenticated and carries no token.
type Anonymous struct{}

// Compile-time interface check to ensure proper implementation.
var _ Auth = Anonymous{}

// AccessToken implements Auth.
func (Anonymous) AccessToken() string { return "" }

// IsAuthenticated implements Auth.
func (Anonymous) IsAuthenticated() bool { return false }

// SignOut implements Auth.
func (Anonymous) SignOut() {}

// Watch implements Auth.
func (Anonymous) Watch(func(bool)) func() { return func() {} }

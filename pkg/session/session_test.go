package session_test

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/feedsync/pkg/session"
)

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "user-1",
		ExpiresAt: jwt.NewNumericDate(exp),
	})
	s, err := tok.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return s
}

func TestOpaqueToken(t *testing.T) {
	s := session.New()
	assert.False(t, s.IsAuthenticated())
	assert.Empty(t, s.AccessToken())

	s.SignIn("opaque-token")
	assert.True(t, s.IsAuthenticated())
	assert.Equal(t, "opaque-token", s.AccessToken())
	assert.True(t, s.ExpiresAt().IsZero())

	s.SignOut()
	assert.False(t, s.IsAuthenticated())
	assert.Empty(t, s.AccessToken())
}

func TestJWTExpiry(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	clock := now
	s := session.New(session.WithNow(func() time.Time { return clock }))

	s.SignIn(signedToken(t, now.Add(time.Hour)))
	assert.True(t, s.IsAuthenticated())
	assert.Equal(t, now.Add(time.Hour).Unix(), s.ExpiresAt().Unix())

	clock = now.Add(2 * time.Hour)
	assert.False(t, s.IsAuthenticated(), "expired token is not authenticated")
	assert.NotEmpty(t, s.AccessToken(), "token is still available for the API to reject")
}

func TestWithToken(t *testing.T) {
	s := session.New(session.WithToken("abc"))
	assert.True(t, s.IsAuthenticated())
}

func TestWatchTransitions(t *testing.T) {
	s := session.New()
	var seen []bool
	cancel := s.Watch(func(ok bool) { seen = append(seen, ok) })

	s.SignIn("a")
	s.SignIn("b") // still authenticated, no notification
	s.SignOut()
	s.SignOut() // already signed out, no notification
	cancel()
	s.SignIn("c")

	assert.Equal(t, []bool{true, false}, seen)
}

func TestAnonymous(t *testing.T) {
	var a session.Auth = session.Anonymous{}
	assert.False(t, a.IsAuthenticated())
	assert.Empty(t, a.AccessToken())
	a.SignOut()
	a.Watch(func(bool) {})()
}

package transport

import (
	"net/http"
)

// Authenticator applies an access token to outgoing requests.
type Authenticator interface {
	Apply(req *http.Request, token string)
}

// TokenSource supplies the current access token. session.Auth satisfies it.
type TokenSource interface {
	AccessToken() string
}

// NoAuth implements no authentication.
type NoAuth struct{}

// Apply implements the Authenticator interface for NoAuth.
func (a *NoAuth) Apply(_ *http.Request, _ string) {}

// BearerAuth implements Bearer token authentication.
type BearerAuth struct{}

// Apply implements the Authenticator interface for BearerAuth.
func (a *BearerAuth) Apply(req *http.Request, token string) {
	req.Header.Set("Authorization", "Bearer "+token)
}

// HeaderAuth implements custom header authentication.
type HeaderAuth struct {
	Header string
}

// Apply implements the Authenticator interface for HeaderAuth.
func (a *HeaderAuth) Apply(req *http.Request, token string) {
	req.Header.Set(a.Header, token)
}

// QueryAuth carries the token as a query parameter.
// The feed stream endpoint expects it as accessToken.
type QueryAuth struct {
	Param string
}

// Apply implements the Authenticator interface for QueryAuth.
func (a *QueryAuth) Apply(req *http.Request, token string) {
	if req.URL == nil {
		return
	}
	query := req.URL.Query()
	query.Set(a.Param, token)
	req.URL.RawQuery = query.Encode()
}

// StaticToken is a TokenSource with a fixed token.
type StaticToken string

// AccessToken implements TokenSource.
func (s StaticToken) AccessToken() string { return string(s) }

package middleware

import (
	"context"
	"net/http"
	"strings"
)

type tokenKey struct{}

// Token extracts the caller's access token from the accessToken query
// parameter or a bearer Authorization header and stores it in the request
// context. It never rejects a request; handlers decide what a missing
// token means.
func Token(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if token := extractToken(r); token != "" {
			r = r.WithContext(context.WithValue(r.Context(), tokenKey{}, token))
		}
		next.ServeHTTP(w, r)
	})
}

// TokenFromContext returns the token stored by Token, or "".
func TokenFromContext(ctx context.Context) string {
	token, _ := ctx.Value(tokenKey{}).(string)
	return token
}

func extractToken(r *http.Request) string {
	if token := r.URL.Query().Get("accessToken"); token != "" {
		return token
	}
	auth := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(auth, "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return ""
}

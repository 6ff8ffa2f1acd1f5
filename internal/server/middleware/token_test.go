package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

// TestToken tests token extraction.
func TestToken(t *testing.T) {
	tests := []struct {
		name   string
		target string
		auth   string
		want   string
	}{
		{"query", "/api/countries/conflicts?accessToken=q-token", "", "q-token"},
		{"query wins", "/api/countries/conflicts?accessToken=q-token", "Bearer h-token", "q-token"},
		{"bearer", "/api/events", "Bearer h-token", "h-token"},
		{"raw header ignored", "/api/events", "h-token", ""},
		{"none", "/api/events", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got string
			next := http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
				got = TokenFromContext(r.Context())
			})
			req := httptest.NewRequest("GET", tt.target, nil)
			if tt.auth != "" {
				req.Header.Set("Authorization", tt.auth)
			}
			Token(next).ServeHTTP(httptest.NewRecorder(), req)
			if got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

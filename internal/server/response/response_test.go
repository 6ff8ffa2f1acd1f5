package response

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/agentstation/feedsync/pkg/errors"
)

func decode(t *testing.T, w *httptest.ResponseRecorder) Error {
	t.Helper()
	var body Error
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON body %q: %v", w.Body.String(), err)
	}
	return body
}

// TestHelpers tests the fixed-status helpers.
func TestHelpers(t *testing.T) {
	tests := []struct {
		name   string
		write  func(http.ResponseWriter)
		status int
		want   Error
	}{
		{"bad request", func(w http.ResponseWriter) { BadRequest(w, "Country parameter is required") },
			http.StatusBadRequest, Error{Error: "Country parameter is required"}},
		{"unauthorized", Unauthorized,
			http.StatusUnauthorized, Error{Error: "Authentication required", RequiresReauth: true}},
		{"payment required", PaymentRequired,
			http.StatusPaymentRequired, Error{Error: "Insufficient credits", Message: "Please top up credits"}},
		{"not found", func(w http.ResponseWriter) { NotFound(w, "Not found") },
			http.StatusNotFound, Error{Error: "Not found"}},
		{"method not allowed", func(w http.ResponseWriter) { MethodNotAllowed(w, "PUT") },
			http.StatusMethodNotAllowed, Error{Error: "Method not allowed", Message: "Method PUT is not supported for this endpoint"}},
		{"internal", func(w http.ResponseWriter) { InternalError(w, "Failed to fetch events") },
			http.StatusInternalServerError, Error{Error: "Failed to fetch events"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			tt.write(w)
			if w.Code != tt.status {
				t.Errorf("expected status %d, got %d", tt.status, w.Code)
			}
			if ct := w.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("expected JSON content type, got %q", ct)
			}
			if got := decode(t, w); got != tt.want {
				t.Errorf("expected body %+v, got %+v", tt.want, got)
			}
		})
	}
}

// TestErrorFromType tests typed error mapping.
func TestErrorFromType(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"auth", errors.NewAuthenticationError("/api/events", 401, "expired", nil), http.StatusUnauthorized},
		{"credit", errors.NewCreditError("/api/events", 402, "empty"), http.StatusPaymentRequired},
		{"wrapped credit", fmt.Errorf("upstream: %w", errors.ErrInsufficientCredits), http.StatusPaymentRequired},
		{"validation", errors.NewValidationError("country", "", "Country parameter is required"), http.StatusBadRequest},
		{"generic", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			ErrorFromType(w, tt.err, "Failed to fetch country conflicts")
			if w.Code != tt.status {
				t.Errorf("expected status %d, got %d", tt.status, w.Code)
			}
		})
	}

	w := httptest.NewRecorder()
	ErrorFromType(w, errors.NewValidationError("country", "", "Country parameter is required"), "x")
	if got := decode(t, w).Error; got != "Country parameter is required" {
		t.Errorf("expected validation message, got %q", got)
	}
}

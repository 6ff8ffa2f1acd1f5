// Package response provides the HTTP response helpers of the development
// feed server. Failures use the feed API's flat error body:
// {"error": "...", "message": "...", "requiresReauth": true}.
package response

import (
	"encoding/json"
	"net/http"

	"github.com/agentstation/feedsync/pkg/constants"
	"github.com/agentstation/feedsync/pkg/errors"
)

// Error is the body of a failed request.
type Error struct {
	Error          string `json:"error"`
	Message        string `json:"message,omitempty"`
	RequiresReauth bool   `json:"requiresReauth,omitempty"`
}

// JSON writes v as JSON with the given status code.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Encoding errors are ignored as headers are already sent (best effort)
	_ = json.NewEncoder(w).Encode(v)
}

// OK writes a successful response with 200 status.
func OK(w http.ResponseWriter, v any) {
	JSON(w, http.StatusOK, v)
}

// BadRequest writes a 400 error response.
func BadRequest(w http.ResponseWriter, message string) {
	JSON(w, http.StatusBadRequest, Error{Error: message})
}

// Unauthorized writes a 401 response asking the caller to sign in again.
func Unauthorized(w http.ResponseWriter) {
	JSON(w, http.StatusUnauthorized, Error{
		Error:          constants.AuthenticationRequiredMessage,
		RequiresReauth: true,
	})
}

// PaymentRequired writes a 402 insufficient credits response.
func PaymentRequired(w http.ResponseWriter) {
	JSON(w, http.StatusPaymentRequired, Error{
		Error:   constants.InsufficientCreditsMessage,
		Message: constants.TopUpMessage,
	})
}

// NotFound writes a 404 error response.
func NotFound(w http.ResponseWriter, message string) {
	JSON(w, http.StatusNotFound, Error{Error: message})
}

// MethodNotAllowed writes a 405 error response.
func MethodNotAllowed(w http.ResponseWriter, method string) {
	JSON(w, http.StatusMethodNotAllowed, Error{
		Error:   "Method not allowed",
		Message: "Method " + method + " is not supported for this endpoint",
	})
}

// RateLimited writes a 429 error response.
func RateLimited(w http.ResponseWriter) {
	JSON(w, http.StatusTooManyRequests, Error{
		Error:   "Rate limit exceeded",
		Message: "Too many requests. Please try again later.",
	})
}

// InternalError writes a 500 error response with a fixed message. The
// underlying error is never exposed to the client.
func InternalError(w http.ResponseWriter, message string) {
	JSON(w, http.StatusInternalServerError, Error{Error: message})
}

// ErrorFromType maps typed errors to the matching response. Errors that are
// not auth, credit, or validation failures become a 500 with fallback.
func ErrorFromType(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.IsSessionExpired(err):
		Unauthorized(w)
	case errors.IsInsufficientCredits(err):
		PaymentRequired(w)
	case errors.IsValidationError(err):
		var v *errors.ValidationError
		if errors.As(err, &v) {
			BadRequest(w, v.Message)
			return
		}
		BadRequest(w, err.Error())
	default:
		InternalError(w, fallback)
	}
}

package stream

import (
	"encoding/json"
	"net/http"

	"github.com/agentstation/feedsync/pkg/errors"
)

// FrameType distinguishes data frames from the terminal error frame.
type FrameType string

const (
	// TypeData carries one incremental payload.
	TypeData FrameType = "data"
	// TypeError ends the stream.
	TypeError FrameType = "error"
)

// Endpoint is the path of the conflicts stream on the feed API.
const Endpoint = "/api/countries/conflicts"

// unknownError is used when an error frame carries no text.
const unknownError = "Unknown error"

// Frame is one message read from a stream.
type Frame struct {
	Type FrameType `json:"type"`

	// Kind is the raw type tag the server sent on a data frame,
	// for example "current_content" or "done".
	Kind string `json:"kind,omitempty"`

	// Payload is the whole JSON object of a data frame.
	Payload json.RawMessage `json:"payload,omitempty"`

	Error           string `json:"error,omitempty"`
	RequiresCredits bool   `json:"requiresCredits,omitempty"`
	RequiresReauth  bool   `json:"requiresReauth,omitempty"`
}

// IsError reports whether f is the terminal error frame.
func (f Frame) IsError() bool {
	return f.Type == TypeError
}

// Class classifies an error frame. Data frames are ClassNone. Explicit flags
// win; otherwise the error text is sniffed for credit phrases.
func (f Frame) Class() errors.Class {
	if !f.IsError() {
		return errors.ClassNone
	}
	switch {
	case f.RequiresReauth:
		return errors.ClassAuth
	case f.RequiresCredits:
		return errors.ClassCredit
	}
	return errors.Classify(http.StatusInternalServerError, f.Error)
}

// Err returns the typed error for an error frame, or nil for a data frame.
func (f Frame) Err() error {
	switch f.Class() {
	case errors.ClassAuth:
		return errors.NewAuthenticationError(Endpoint, 0, f.Error, nil)
	case errors.ClassCredit:
		return errors.NewCreditError(Endpoint, 0, f.Error)
	case errors.ClassGeneric:
		return errors.NewAPIError(Endpoint, 0, f.Error)
	default:
		return nil
	}
}

// Decode unmarshals the payload of a data frame into v.
func (f Frame) Decode(v any) error {
	if f.IsError() {
		return errors.NewValidationError("type", f.Type, "error frames carry no payload")
	}
	if err := json.Unmarshal(f.Payload, v); err != nil {
		return errors.WrapParse("json", "frame", err)
	}
	return nil
}

// ErrorFrame builds a terminal error frame.
func ErrorFrame(message string) Frame {
	if message == "" {
		message = unknownError
	}
	return Frame{Type: TypeError, Error: message}
}

// wireFrame is the subset of a server message the decoder interprets.
type wireFrame struct {
	Type            string `json:"type"`
	Error           string `json:"error"`
	Message         string `json:"message"`
	RequiresCredits bool   `json:"requiresCredits"`
	RequiresReauth  bool   `json:"requiresReauth"`
}

// parseFrame turns the data of one SSE message into a Frame.
func parseFrame(data []byte) (Frame, error) {
	var w wireFrame
	if err := json.Unmarshal(data, &w); err != nil {
		return Frame{}, errors.NewParseError("sse", "", "malformed frame: "+err.Error(), err)
	}

	if w.Type == string(TypeError) {
		f := ErrorFrame(w.Error)
		if w.Error == "" && w.Message != "" {
			f.Error = w.Message
		}
		f.RequiresCredits = w.RequiresCredits
		f.RequiresReauth = w.RequiresReauth
		return f, nil
	}

	return Frame{
		Type:    TypeData,
		Kind:    w.Type,
		Payload: json.RawMessage(append([]byte(nil), data...)),
	}, nil
}

package transport

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"

	"github.com/agentstation/feedsync/pkg/constants"
	"github.com/agentstation/feedsync/pkg/errors"
)

// ErrorBody is the failure envelope the feed API returns.
type ErrorBody struct {
	Error          string `json:"error,omitempty"`
	Message        string `json:"message,omitempty"`
	RequiresReauth bool   `json:"requiresReauth,omitempty"`
}

// Text returns the error field, falling back to message.
func (b ErrorBody) Text() string {
	if b.Error != "" {
		return b.Error
	}
	return b.Message
}

// ReadErrorBody peeks at a response body and decodes the failure envelope.
// Bodies that are not JSON yield a zero ErrorBody. The body remains readable.
func ReadErrorBody(resp *http.Response) ErrorBody {
	var body ErrorBody
	if resp == nil || resp.Body == nil {
		return body
	}

	peek, err := io.ReadAll(io.LimitReader(resp.Body, constants.MaxErrorBodySize))
	resp.Body = rebuffered{
		Reader: io.MultiReader(bytes.NewReader(peek), resp.Body),
		Closer: resp.Body,
	}
	if err != nil || len(peek) == 0 {
		return body
	}
	_ = json.Unmarshal(peek, &body)
	return body
}

// DecodeResponse decodes a JSON response into target and closes the body.
// Failed responses become typed errors via errors.FromStatus.
func DecodeResponse(resp *http.Response, target any) error {
	defer func() {
		_ = resp.Body.Close()
	}()

	endpoint := ""
	if resp.Request != nil && resp.Request.URL != nil {
		endpoint = resp.Request.URL.Path
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body := ReadErrorBody(resp)
		message := body.Text()
		if message == "" {
			message = http.StatusText(resp.StatusCode)
		}
		return errors.FromStatus(endpoint, resp.StatusCode, message, body.RequiresReauth)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.WrapIO("read", "response body", err)
	}
	if err := json.Unmarshal(data, target); err != nil {
		return errors.WrapParse("json", endpoint, err)
	}
	return nil
}

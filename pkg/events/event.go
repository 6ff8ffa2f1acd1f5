// Package events defines the event record carried by the feed and the
// de-duplicated working set the synchronization engine maintains.
package events

import (
	"encoding/json"

	"github.com/agentstation/feedsync/pkg/errors"
)

// Event is an identifiable feed record. ID is the only field the sync engine
// interprets; every other field is carried verbatim in Fields.
type Event struct {
	ID     string
	Fields map[string]json.RawMessage
}

// New creates an event from an id and a set of payload values.
func New(id string, payload map[string]any) (Event, error) {
	e := Event{ID: id, Fields: make(map[string]json.RawMessage, len(payload))}
	for k, v := range payload {
		if k == "id" {
			continue
		}
		raw, err := json.Marshal(v)
		if err != nil {
			return Event{}, errors.WrapParse("json", k, err)
		}
		e.Fields[k] = raw
	}
	return e, nil
}

// MarshalJSON flattens the id and payload fields into one object.
func (e Event) MarshalJSON() ([]byte, error) {
	out := make(map[string]json.RawMessage, len(e.Fields)+1)
	for k, v := range e.Fields {
		out[k] = v
	}
	id, err := json.Marshal(e.ID)
	if err != nil {
		return nil, err
	}
	out["id"] = id
	return json.Marshal(out)
}

// UnmarshalJSON splits an object into its id and payload fields. Numeric ids
// are kept in their JSON text form.
func (e *Event) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	e.ID = ""
	if idRaw, ok := raw["id"]; ok {
		var id string
		if err := json.Unmarshal(idRaw, &id); err != nil {
			var num json.Number
			if numErr := json.Unmarshal(idRaw, &num); numErr != nil {
				return &errors.ValidationError{Field: "id", Value: string(idRaw), Message: "must be a string or number"}
			}
			id = num.String()
		}
		e.ID = id
		delete(raw, "id")
	}
	e.Fields = raw
	return nil
}

// String returns the string value of a payload field, or "" when the field
// is missing or not a string.
func (e Event) String(field string) string {
	raw, ok := e.Fields[field]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

// Decode unmarshals a payload field into v.
func (e Event) Decode(field string, v any) error {
	raw, ok := e.Fields[field]
	if !ok {
		return errors.NewNotFoundError("field", field)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return errors.WrapParse("json", field, err)
	}
	return nil
}

// Package broker provides the event pipeline of the UI relay.
//
// Engine hooks and credit signal transitions are published to a Broker, which
// fans them out in order to every registered transport (WebSocket, SSE).
package broker

import "time"

// EventType represents the type of relayed event.
type EventType string

// Relayed event types.
const (
	// Engine events (from engine hooks).
	EventsAdded  EventType = "events.added"
	StateChanged EventType = "state.changed"
	SyncFailed   EventType = "sync.failed"

	// Credit signal transitions.
	CreditRaised  EventType = "credit.raised"
	CreditCleared EventType = "credit.cleared"

	// Client events (from transport layers).
	ClientConnected EventType = "client.connected"
)

// Event represents a relayed event with type, timestamp, and data.
type Event struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}

// Package relay pushes engine and credit signal updates to UI clients over
// WebSocket and Server-Sent Events.
//
// Routes served by Handler:
//
//	GET    /ws      WebSocket; inbound {"type":"credit.dismiss"} clears the credit signal
//	GET    /events  Server-Sent Events
//	GET    /credit  current credit state
//	POST   /credit  dismiss the credit error (DELETE is accepted too)
//	GET    /health  liveness
//
// Every client first receives a snapshot of the engine state, the working
// set size and the credit state, then the live event stream.
package relay

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/agentstation/feedsync"
	"github.com/agentstation/feedsync/internal/relay/broker"
	"github.com/agentstation/feedsync/internal/relay/broker/adapters"
	"github.com/agentstation/feedsync/internal/relay/sse"
	ws "github.com/agentstation/feedsync/internal/relay/websocket"
	"github.com/agentstation/feedsync/internal/server/response"
	"github.com/agentstation/feedsync/pkg/credit"
	"github.com/agentstation/feedsync/pkg/events"
	"github.com/agentstation/feedsync/pkg/logging"
)

// Inbound message types.
const (
	// DismissCredit clears the credit signal.
	DismissCredit = "credit.dismiss"
)

// SnapshotType is the type of the message every client receives on connect.
const SnapshotType = "snapshot"

// Source is the engine surface the relay observes.
type Source interface {
	feedsync.Hooks
	State() feedsync.State
	Len() int
}

// Snapshot is the state sent to a client when it connects.
type Snapshot struct {
	State  feedsync.State `json:"state"`
	Events int            `json:"events"`
	Credit credit.State   `json:"credit"`
}

// EventsAdded is the payload of events.added.
type EventsAdded struct {
	Count  int            `json:"count"`
	Events []events.Event `json:"events"`
}

// StateChanged is the payload of state.changed.
type StateChanged struct {
	From feedsync.State `json:"from"`
	To   feedsync.State `json:"to"`
}

// Relay fans engine hooks and credit transitions out to UI clients.
type Relay struct {
	source   Source
	credits  *credit.Signal
	broker   *broker.Broker
	hub      *ws.Hub
	sse      *sse.Broadcaster
	upgrader websocket.Upgrader
	logger   *zerolog.Logger

	mu       sync.Mutex
	unwatch  func()
	started  bool
	detached bool
}

// New creates a relay for src. Hooks are registered on src immediately;
// nothing is delivered until Start.
func New(src Source, credits *credit.Signal, logger *zerolog.Logger) *Relay {
	if credits == nil {
		credits = credit.New()
	}
	l := logging.OrDefault(logger).With().Str("component", "relay").Logger()

	r := &Relay{
		source:  src,
		credits: credits,
		broker:  broker.NewBroker(&l),
		hub:     ws.NewHub(&l),
		sse:     sse.NewBroadcaster(&l),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(*http.Request) bool {
				return true
			},
		},
		logger: &l,
	}

	r.broker.Subscribe(adapters.NewWebSocketSubscriber(r.hub))
	r.broker.Subscribe(adapters.NewSSESubscriber(r.sse))

	r.hub.OnConnect(func(c *ws.Client) {
		c.Send(ws.Message{Type: SnapshotType, Timestamp: time.Now().UTC(), Data: r.Snapshot()})
	})
	r.hub.OnMessage(r.handleMessage)
	r.sse.SetGreeting(func() sse.Event {
		return sse.Event{Event: SnapshotType, Data: r.Snapshot()}
	})

	src.OnEventsAdded(func(added []events.Event) {
		if r.isDetached() {
			return
		}
		r.broker.Publish(broker.EventsAdded, EventsAdded{Count: len(added), Events: added})
	})
	src.OnStateChanged(func(old, new feedsync.State) {
		if r.isDetached() {
			return
		}
		r.broker.Publish(broker.StateChanged, StateChanged{From: old, To: new})
	})
	src.OnError(func(err error) {
		if r.isDetached() {
			return
		}
		r.broker.Publish(broker.SyncFailed, map[string]string{"error": err.Error()})
	})
	r.unwatch = credits.Observe(func(s credit.State) {
		if s.HasError {
			r.broker.Publish(broker.CreditRaised, s)
			return
		}
		r.broker.Publish(broker.CreditCleared, s)
	})

	return r
}

// Start runs the broker and both transports until ctx is cancelled.
func (r *Relay) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return
	}
	r.started = true

	go r.broker.Run(ctx)
	go r.hub.Run(ctx)
	go r.sse.Run(ctx)
	r.logger.Info().Msg("Relay started")
}

// Close stops forwarding engine and credit updates. Connected clients are
// released when the Start context is cancelled.
func (r *Relay) Close() error {
	r.mu.Lock()
	r.detached = true
	unwatch := r.unwatch
	r.mu.Unlock()
	unwatch()
	return nil
}

func (r *Relay) isDetached() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.detached
}

// Snapshot returns the current state sent to connecting clients.
func (r *Relay) Snapshot() Snapshot {
	return Snapshot{
		State:  r.source.State(),
		Events: r.source.Len(),
		Credit: r.credits.State(),
	}
}

// Clients returns the number of connected WebSocket and SSE clients.
func (r *Relay) Clients() int {
	return r.hub.ClientCount() + r.sse.ClientCount()
}

func (r *Relay) handleMessage(c *ws.Client, msg ws.Message) {
	switch msg.Type {
	case DismissCredit:
		r.logger.Debug().Str("client_id", c.ID()).Msg("Credit error dismissed")
		r.credits.Clear()
	default:
		r.logger.Debug().
			Str("client_id", c.ID()).
			Str("type", msg.Type).
			Msg("Ignoring unknown relay message")
	}
}

// Handler returns the relay's HTTP routes.
func (r *Relay) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", r.handleWebSocket)
	mux.Handle("/events", r.sse)
	mux.HandleFunc("/credit", r.handleCredit)
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		response.OK(w, map[string]any{
			"status":  "healthy",
			"clients": r.Clients(),
		})
	})
	return mux
}

func (r *Relay) handleWebSocket(w http.ResponseWriter, req *http.Request) {
	conn, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		r.logger.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	client := ws.NewClient("", r.hub, conn)
	r.hub.Register(client)
	r.broker.Publish(broker.ClientConnected, map[string]string{"client_id": client.ID()})

	go client.WritePump()
	go client.ReadPump()
}

func (r *Relay) handleCredit(w http.ResponseWriter, req *http.Request) {
	switch req.Method {
	case http.MethodGet:
		response.OK(w, r.credits.State())
	case http.MethodPost, http.MethodDelete:
		r.credits.Clear()
		response.OK(w, r.credits.State())
	default:
		response.MethodNotAllowed(w, req.Method)
	}
}

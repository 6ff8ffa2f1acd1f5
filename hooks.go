package feedsync

import (
	"sync"

	"github.com/agentstation/feedsync/pkg/events"
)

// Hook function types for engine events
type (
	// EventsAddedHook is called with the events appended to the working set.
	// After the initial load it receives the whole set.
	EventsAddedHook func(added []events.Event)

	// StateChangedHook is called on every state transition
	StateChangedHook func(old, new State)

	// ErrorHook is called with every recorded fetch or stream failure
	ErrorHook func(err error)
)

// Compile-time interface check to ensure proper implementation.
var _ Hooks = (*client)(nil)

// Hooks provides event callback registration.
type Hooks interface {
	OnEventsAdded(fn EventsAddedHook)
	OnStateChanged(fn StateChangedHook)
	OnError(fn ErrorHook)
}

// hooks manages event callbacks. Callbacks run on the goroutine that caused
// the event and never under the engine lock.
type hooks struct {
	mu             sync.RWMutex
	onEventsAdded  []EventsAddedHook
	onStateChanged []StateChangedHook
	onError        []ErrorHook
}

func newHooks() *hooks {
	return &hooks{}
}

// OnEventsAdded registers a callback for events appended to the working set.
func (c *client) OnEventsAdded(fn EventsAddedHook) {
	c.hooks.mu.Lock()
	defer c.hooks.mu.Unlock()
	c.hooks.onEventsAdded = append(c.hooks.onEventsAdded, fn)
}

// OnStateChanged registers a callback for state transitions.
func (c *client) OnStateChanged(fn StateChangedHook) {
	c.hooks.mu.Lock()
	defer c.hooks.mu.Unlock()
	c.hooks.onStateChanged = append(c.hooks.onStateChanged, fn)
}

// OnError registers a callback for recorded failures.
func (c *client) OnError(fn ErrorHook) {
	c.hooks.mu.Lock()
	defer c.hooks.mu.Unlock()
	c.hooks.onError = append(c.hooks.onError, fn)
}

func (h *hooks) eventsAdded(added []events.Event) {
	if len(added) == 0 {
		return
	}
	h.mu.RLock()
	fns := h.onEventsAdded
	h.mu.RUnlock()
	for _, fn := range fns {
		fn(added)
	}
}

func (h *hooks) stateChanged(old, new State) {
	if old == new {
		return
	}
	h.mu.RLock()
	fns := h.onStateChanged
	h.mu.RUnlock()
	for _, fn := range fns {
		fn(old, new)
	}
}

func (h *hooks) failed(err error) {
	if err == nil {
		return
	}
	h.mu.RLock()
	fns := h.onError
	h.mu.RUnlock()
	for _, fn := range fns {
		fn(err)
	}
}

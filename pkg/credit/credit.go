// Package credit provides the credit signal: a single flag and message that
// any request pathway can raise when the caller's usage quota is exhausted,
// and that stays raised until a user explicitly dismisses it.
//
// A Signal is an explicit handle. Create one per process and pass it to every
// component that issues requests:
//
//	signal := credit.New()
//	client, err := feedsync.New(feedsync.WithCreditSignal(signal))
//
//	cancel := signal.Observe(func(s credit.State) {
//	    if s.HasError {
//	        fmt.Println(s.Message)
//	    }
//	})
//	defer cancel()
//
//	// later, on explicit user dismissal
//	signal.Clear()
package credit

import (
	"sync"
)

// DefaultMessage is the message raised when a response signals exhausted credits.
const DefaultMessage = "Please top up credits at https://platform.valyu.ai/user/account/billing"

// State is a snapshot of the signal.
type State struct {
	HasError bool   `json:"hasCreditError"`
	Message  string `json:"errorMessage,omitempty"`
}

// Raiser is implemented by anything that can raise the credit signal.
// Request pathways depend on this rather than on *Signal.
type Raiser interface {
	Raise(message string)
}

// Observer is called with the new state after every transition.
type Observer func(State)

// Signal is the process-wide credit error flag.
type Signal struct {
	mu        sync.RWMutex
	state     State
	observers map[int]Observer
	nextID    int
}

// Compile-time interface check.
var _ Raiser = (*Signal)(nil)

// New creates a lowered signal.
func New() *Signal {
	return &Signal{observers: make(map[int]Observer)}
}

// Raise sets the flag and stores message. Raising an already raised signal
// keeps it raised and overwrites the message; observers are only notified on
// the lowered to raised transition or when the message changes.
func (s *Signal) Raise(message string) {
	if message == "" {
		message = DefaultMessage
	}

	s.mu.Lock()
	changed := !s.state.HasError || s.state.Message != message
	s.state = State{HasError: true, Message: message}
	state := s.state
	observers := s.snapshotObservers()
	s.mu.Unlock()

	if changed {
		notify(observers, state)
	}
}

// Clear lowers the flag. It is only meant to be called on explicit user
// dismissal; successful requests never clear the signal.
func (s *Signal) Clear() {
	s.mu.Lock()
	changed := s.state.HasError
	s.state = State{}
	observers := s.snapshotObservers()
	s.mu.Unlock()

	if changed {
		notify(observers, State{})
	}
}

// State returns the current state.
func (s *Signal) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// HasError reports whether the signal is raised.
func (s *Signal) HasError() bool {
	return s.State().HasError
}

// Observe registers fn for state transitions and returns a function that
// removes it. fn runs on the goroutine that caused the transition.
func (s *Signal) Observe(fn Observer) (cancel func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.observers[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.observers, id)
			s.mu.Unlock()
		})
	}
}

// snapshotObservers copies the observer list; callers hold s.mu.
func (s *Signal) snapshotObservers() []Observer {
	out := make([]Observer, 0, len(s.observers))
	for i := 0; i < s.nextID; i++ {
		if fn, ok := s.observers[i]; ok {
			out = append(out, fn)
		}
	}
	return out
}

func notify(observers []Observer, state State) {
	for _, fn := range observers {
		fn(state)
	}
}

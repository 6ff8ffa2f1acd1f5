package feedsync

// State is the lifecycle state of the synchronization engine.
type State int

const (
	// StateIdle means no initial load has succeeded yet.
	StateIdle State = iota
	// StateLoading means the initial load is in flight.
	StateLoading
	// StateLoaded means the working set holds a successful initial load.
	StateLoaded
	// StateSignInRequired means refreshes are halted until the session is authenticated.
	StateSignInRequired
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateLoaded:
		return "loaded"
	case StateSignInRequired:
		return "sign_in_required"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

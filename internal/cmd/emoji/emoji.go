// Package emoji provides symbol constants for CLI output.
package emoji

// Status symbols.
const (
	// Success marks completed operations and loaded data.
	Success = "✓"

	// Error marks failed requests and raised credit errors.
	Error = "✗"

	// Warning marks recoverable problems such as a stale session.
	Warning = "!"

	// Info marks neutral notices.
	Info = "i"

	// Unknown marks indeterminate states.
	Unknown = "?"

	// Live marks a running watch or relay.
	Live = "●"
)

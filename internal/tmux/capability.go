package tmux

import "errors"

// ErrSessionUnavailable is returned by CaptureSnapshot when the target
// session no longer exists (it can vanish between a scan and a capture).
// Callers treat it as transient and retry on their next cycle.
var ErrSessionUnavailable = errors.New("session unavailable")

// Capability abstracts the local terminal multiplexer. The agent core only
// consumes this interface; the concrete implementation is constructed once
// at startup and injected into the orchestrator and control channel.
type Capability interface {
	// ListSessions returns the names of all live local sessions.
	ListSessions() ([]string, error)

	// CaptureSnapshot returns the rendered screen content of a session,
	// including escape sequences. Returns ErrSessionUnavailable when the
	// session vanished.
	CaptureSnapshot(name string) ([]byte, error)

	// SendKeys types literal text into a session.
	SendKeys(name, text string) error

	// SendSpecialKey sends a symbolic key (enter, escape, up, ctrl-c, ...).
	SendSpecialKey(name, key string) error

	// Resize resizes a session's client area.
	Resize(name string, cols, rows int) error

	// Create creates a new detached session, optionally in cwd.
	Create(name, cwd string) error

	// Kill terminates a session.
	Kill(name string) error

	// IsAvailable reports whether the multiplexer binary is usable.
	IsAvailable() bool

	// Version returns the multiplexer version string when available.
	Version() (string, bool)
}

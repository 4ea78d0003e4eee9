package session

import "errors"

// Sentinel errors for session failures. Callers match with errors.Is;
// wrapped variants carry the originating cause.
var (
	// ErrPtyCreateFailed means pseudo-terminal allocation or process
	// spawn failed.
	ErrPtyCreateFailed = errors.New("pseudo-terminal allocation failed")

	// ErrProcessStartFailed means Start was called on a session that was
	// already started or already disposed. Sessions never restart.
	ErrProcessStartFailed = errors.New("process start failed")

	// ErrProcessNotRunning means the operation requires a running process
	// but the session was never started, has exited, or was disposed.
	ErrProcessNotRunning = errors.New("process is not running")

	// ErrTimeout means a wait deadline elapsed before the awaited event.
	ErrTimeout = errors.New("wait timed out")

	// ErrInvalidConfig means a malformed configuration, key name, or
	// wait pattern.
	ErrInvalidConfig = errors.New("invalid configuration")
)

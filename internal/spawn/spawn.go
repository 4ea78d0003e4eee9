// Package spawn is the process-spawn boundary of the harness: it starts a
// command attached to a pseudo-terminal and delivers incremental output
// chunks plus one terminal exit event to the caller.
//
// Two implementations exist: a local one backed by creack/pty, and an SSH
// one that requests a PTY on a remote host. The session layer depends only
// on the Spawner and Process interfaces, so both behave identically from a
// script's point of view.
package spawn

import (
	"errors"
	"time"
)

// ErrNotSupported is returned when PTY operations are not supported on
// the current platform.
var ErrNotSupported = errors.New("PTY operations not supported on this platform")

// terminateGrace is how long Close waits after SIGTERM before escalating
// to SIGKILL.
const terminateGrace = 100 * time.Millisecond

// Config describes the command to spawn and its terminal geometry.
type Config struct {
	// Command is the program to run.
	Command string

	// Args are the program arguments.
	Args []string

	// Dir is the working directory for the command. Empty means inherit.
	Dir string

	// Env is additional environment in KEY=VALUE form, appended to the
	// parent environment.
	Env []string

	// Cols and Rows set the initial terminal size.
	Cols uint16
	Rows uint16
}

// Callbacks receive the spawned process's events. OnData is called with a
// private copy of each output chunk as it arrives; OnExit is called exactly
// once, after the final OnData, with the process exit code.
type Callbacks struct {
	OnData func(chunk []byte)
	OnExit func(code int)
}

// Signal represents a process signal, kept symbolic so the SSH
// implementation can translate it.
type Signal int

const (
	// SIGINT is the interrupt signal (Ctrl+C).
	SIGINT Signal = iota
	// SIGTERM is the termination signal.
	SIGTERM
	// SIGKILL is the kill signal (cannot be caught).
	SIGKILL
	// SIGHUP is the hangup signal.
	SIGHUP
)

func (s Signal) String() string {
	switch s {
	case SIGINT:
		return "SIGINT"
	case SIGTERM:
		return "SIGTERM"
	case SIGKILL:
		return "SIGKILL"
	case SIGHUP:
		return "SIGHUP"
	default:
		return "UNKNOWN"
	}
}

// Process is a running command attached to a pseudo-terminal.
type Process interface {
	// Write forwards raw bytes to the process's input through the
	// terminal's controller side.
	Write(p []byte) (int, error)

	// Resize changes the terminal size.
	Resize(cols, rows uint16) error

	// Signal sends a signal to the process.
	Signal(sig Signal) error

	// Close tears the process down: graceful termination first, then a
	// hard kill, then release of the terminal handle. Idempotent.
	Close() error
}

// Spawner starts processes attached to pseudo-terminals.
type Spawner interface {
	Spawn(cfg Config, cb Callbacks) (Process, error)
}

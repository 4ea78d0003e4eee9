// Package session owns one spawned process's pseudo-terminal for the
// lifetime of a harness run: writing input, sending named keys, waiting on
// output patterns or exit with per-call timeouts, resizing, killing, and
// disposal.
//
// Output accumulates in an append-only buffer; the ANSI-stripped view is
// derived on demand so there is nothing to invalidate. Waits are modeled
// as a registry of (predicate, resolver) pairs drained after each output
// chunk, each racing its own timer. Disposal resolves every pending
// waiter through the same path as exit events, so a wait can never hang
// past disposal.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/termscript/termscript/internal/ansi"
	"github.com/termscript/termscript/internal/spawn"
)

// Defaults applied when the config leaves them zero.
const (
	DefaultCols    = 80
	DefaultRows    = 24
	DefaultTimeout = 10 * time.Second
)

// State is the session lifecycle state.
type State int

const (
	// StateNotStarted is a created but not yet started session.
	StateNotStarted State = iota
	// StateRunning has a live process attached to the PTY.
	StateRunning
	// StateExited has a terminated process with a recorded exit code.
	StateExited
	// StateDisposed has released the PTY; terminal state.
	StateDisposed
)

func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "not-started"
	case StateRunning:
		return "running"
	case StateExited:
		return "exited"
	case StateDisposed:
		return "disposed"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// Config describes the command a session runs. Immutable once the session
// is created.
type Config struct {
	// Command is the program to run.
	Command string

	// Args are the program arguments.
	Args []string

	// Dir is the working directory. Empty means inherit.
	Dir string

	// Env is additional environment for the command.
	Env map[string]string

	// Cols and Rows set the terminal size (default 80x24).
	Cols uint16
	Rows uint16

	// DefaultTimeout applies to waits that pass no explicit timeout
	// (default 10s).
	DefaultTimeout time.Duration

	// Spawner overrides the process-spawn primitive. Nil means the local
	// PTY spawner.
	Spawner spawn.Spawner

	// Logger for structured logging. Nil means slog.Default().
	Logger *slog.Logger
}

type waiterKind int

const (
	waitOutput waiterKind = iota
	waitExit
)

// waitResult is the single outcome delivered to a registered waiter.
type waitResult struct {
	output string
	code   int
	err    error
}

// waiter is one transient registration against the session's growing
// output (or its exit event). Resolved at most once; retracted by the
// losing side of the timeout race and by disposal.
type waiter struct {
	id   uint64
	kind waiterKind
	pred func(stripped string) bool
	ch   chan waitResult // buffered, capacity 1
}

// Session drives one process under a pseudo-terminal. All methods are
// safe for concurrent use.
type Session struct {
	id      string
	cfg     Config
	spawner spawn.Spawner
	logger  *slog.Logger

	mu       sync.Mutex
	state    State
	started  bool
	proc     spawn.Process
	buf      []byte
	exitCode *int
	waiters  map[uint64]*waiter
	nextID   uint64
}

// New creates a session for the given config. The process is not spawned
// until Start.
func New(cfg Config) (*Session, error) {
	if cfg.Command == "" {
		return nil, fmt.Errorf("%w: command is required", ErrInvalidConfig)
	}
	if cfg.Cols == 0 {
		cfg.Cols = DefaultCols
	}
	if cfg.Rows == 0 {
		cfg.Rows = DefaultRows
	}
	if cfg.DefaultTimeout <= 0 {
		cfg.DefaultTimeout = DefaultTimeout
	}
	spawner := cfg.Spawner
	if spawner == nil {
		spawner = spawn.NewLocalSpawner()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Session{
		id:      uuid.NewString(),
		cfg:     cfg,
		spawner: spawner,
		logger:  logger,
		state:   StateNotStarted,
		waiters: make(map[uint64]*waiter),
	}, nil
}

// ID returns the session's unique identifier.
func (s *Session) ID() string {
	return s.id
}

// Start allocates a pseudo-terminal and spawns the configured command.
// A session starts at most once; a second Start fails even after the
// first run finished, and a disposed session cannot be started.
func (s *Session) Start() error {
	s.mu.Lock()
	if s.state == StateDisposed {
		s.mu.Unlock()
		return fmt.Errorf("%w: session is disposed", ErrProcessStartFailed)
	}
	if s.started {
		s.mu.Unlock()
		return fmt.Errorf("%w: session already started", ErrProcessStartFailed)
	}
	s.started = true
	s.mu.Unlock()

	env := make([]string, 0, len(s.cfg.Env))
	for k, v := range s.cfg.Env {
		env = append(env, k+"="+v)
	}

	proc, err := s.spawner.Spawn(spawn.Config{
		Command: s.cfg.Command,
		Args:    s.cfg.Args,
		Dir:     s.cfg.Dir,
		Env:     env,
		Cols:    s.cfg.Cols,
		Rows:    s.cfg.Rows,
	}, spawn.Callbacks{
		OnData: s.handleData,
		OnExit: s.handleExit,
	})
	if err != nil {
		s.mu.Lock()
		s.started = false
		s.mu.Unlock()
		return fmt.Errorf("%w: %v", ErrPtyCreateFailed, err)
	}

	s.mu.Lock()
	if s.state == StateDisposed {
		// Disposed while spawning: tear the fresh process down.
		s.mu.Unlock()
		_ = proc.Close()
		return fmt.Errorf("%w: session is disposed", ErrProcessStartFailed)
	}
	s.proc = proc
	s.state = StateRunning
	s.mu.Unlock()

	s.logger.Debug("session started",
		"session", s.id, "command", s.cfg.Command,
		"cols", s.cfg.Cols, "rows", s.cfg.Rows)
	return nil
}

// handleData is the spawn layer's output callback: append the chunk and
// drain any waiter whose predicate the grown buffer now satisfies.
func (s *Session) handleData(chunk []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateDisposed {
		return
	}
	s.buf = append(s.buf, chunk...)

	if len(s.waiters) == 0 {
		return
	}
	stripped := ansi.Strip(string(s.buf))
	for id, w := range s.waiters {
		if w.kind != waitOutput {
			continue
		}
		if w.pred(stripped) {
			w.ch <- waitResult{output: stripped}
			delete(s.waiters, id)
		}
	}
}

// handleExit is the spawn layer's exit callback: record the code and
// resolve exit waiters. Output waiters stay registered; no further chunks
// will arrive, so they run out their own timers unless already satisfied.
func (s *Session) handleExit(code int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.exitCode != nil {
		return
	}
	c := code
	s.exitCode = &c
	if s.state == StateRunning {
		s.state = StateExited
	}
	for id, w := range s.waiters {
		if w.kind != waitExit {
			continue
		}
		w.ch <- waitResult{code: code}
		delete(s.waiters, id)
	}
}

// Write forwards raw bytes to the process's input. Legal only while the
// session is running.
func (s *Session) Write(data []byte) error {
	s.mu.Lock()
	if s.state != StateRunning {
		s.mu.Unlock()
		return fmt.Errorf("write: %w (state %s)", ErrProcessNotRunning, s.state)
	}
	proc := s.proc
	s.mu.Unlock()

	if _, err := proc.Write(data); err != nil {
		return fmt.Errorf("write to pty: %w", err)
	}
	return nil
}

// SendKey maps a symbolic key name to its byte sequence and writes it.
func (s *Session) SendKey(name string) error {
	seq, ok := LookupKey(name)
	if !ok {
		return fmt.Errorf("%w: unknown key %q", ErrInvalidConfig, name)
	}
	return s.Write(seq)
}

// WaitFor blocks until the ANSI-stripped cumulative output satisfies the
// pattern, the timeout elapses, the context is canceled, or the session is
// disposed. A pattern already satisfied returns immediately. timeout <= 0
// falls back to the session default. Returns the stripped output at the
// moment of the match.
func (s *Session) WaitFor(ctx context.Context, pattern Pattern, timeout time.Duration) (string, error) {
	if pattern.IsZero() {
		return "", fmt.Errorf("%w: empty wait pattern", ErrInvalidConfig)
	}
	if timeout <= 0 {
		timeout = s.cfg.DefaultTimeout
	}

	s.mu.Lock()
	stripped := ansi.Strip(string(s.buf))
	if pattern.Match(stripped) {
		s.mu.Unlock()
		return stripped, nil
	}
	if s.state == StateNotStarted || s.state == StateDisposed {
		s.mu.Unlock()
		return "", fmt.Errorf("wait for %s: %w (state %s)", pattern, ErrProcessNotRunning, s.State())
	}
	w := s.registerLocked(waitOutput, pattern.Match)
	s.mu.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case res := <-w.ch:
		return res.output, res.err
	case <-timer.C:
		if res, resolved := s.retract(w); resolved {
			return res.output, res.err
		}
		return "", fmt.Errorf("wait for %s after %s: %w", pattern, timeout, ErrTimeout)
	case <-ctx.Done():
		if res, resolved := s.retract(w); resolved {
			return res.output, res.err
		}
		return "", ctx.Err()
	}
}

// WaitForExit blocks until the process exits, returning its exit code.
// If the process already exited the cached code returns immediately,
// without registering a waiter.
func (s *Session) WaitForExit(ctx context.Context, timeout time.Duration) (int, error) {
	if timeout <= 0 {
		timeout = s.cfg.DefaultTimeout
	}

	s.mu.Lock()
	if s.exitCode != nil {
		code := *s.exitCode
		s.mu.Unlock()
		return code, nil
	}
	if s.state != StateRunning {
		s.mu.Unlock()
		return 0, fmt.Errorf("wait for exit: %w (state %s)", ErrProcessNotRunning, s.State())
	}
	w := s.registerLocked(waitExit, nil)
	s.mu.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case res := <-w.ch:
		return res.code, res.err
	case <-timer.C:
		if res, resolved := s.retract(w); resolved {
			return res.code, res.err
		}
		return 0, fmt.Errorf("wait for exit after %s: %w", timeout, ErrTimeout)
	case <-ctx.Done():
		if res, resolved := s.retract(w); resolved {
			return res.code, res.err
		}
		return 0, ctx.Err()
	}
}

// registerLocked adds a waiter to the registry. Caller holds s.mu.
func (s *Session) registerLocked(kind waiterKind, pred func(string) bool) *waiter {
	s.nextID++
	w := &waiter{
		id:   s.nextID,
		kind: kind,
		pred: pred,
		ch:   make(chan waitResult, 1),
	}
	s.waiters[w.id] = w
	return w
}

// retract removes a waiter after its timer (or context) fired. If the
// waiter was already resolved concurrently, the buffered result wins so
// exactly one outcome is observed.
func (s *Session) retract(w *waiter) (waitResult, bool) {
	s.mu.Lock()
	delete(s.waiters, w.id)
	s.mu.Unlock()

	select {
	case res := <-w.ch:
		return res, true
	default:
		return waitResult{}, false
	}
}

// Output returns the accumulated raw output.
func (s *Session) Output() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return string(s.buf)
}

// StrippedOutput returns the accumulated output with all recognized ANSI
// escape sequences removed. A trailing incomplete sequence is withheld
// until it completes.
func (s *Session) StrippedOutput() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ansi.Strip(string(s.buf))
}

// Kill forwards a signal to the process. Killing an already-exited
// process is a no-op, not an error.
func (s *Session) Kill(sig spawn.Signal) error {
	s.mu.Lock()
	if s.state == StateExited {
		s.mu.Unlock()
		return nil
	}
	if s.state != StateRunning {
		s.mu.Unlock()
		return fmt.Errorf("kill: %w (state %s)", ErrProcessNotRunning, s.State())
	}
	proc := s.proc
	s.mu.Unlock()

	return proc.Signal(sig)
}

// Resize changes the terminal size. Legal only while running.
func (s *Session) Resize(cols, rows uint16) error {
	s.mu.Lock()
	if s.state != StateRunning {
		s.mu.Unlock()
		return fmt.Errorf("resize: %w (state %s)", ErrProcessNotRunning, s.State())
	}
	proc := s.proc
	s.mu.Unlock()

	return proc.Resize(cols, rows)
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// IsRunning reports whether the process is currently running.
func (s *Session) IsRunning() bool {
	return s.State() == StateRunning
}

// ExitCode returns the process exit code, if the process has exited.
func (s *Session) ExitCode() (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.exitCode == nil {
		return 0, false
	}
	return *s.exitCode, true
}

// Dispose tears the session down: kills the process if running, resolves
// every pending waiter, and releases the terminal handle. Valid in any
// state and idempotent; the captured output remains readable.
func (s *Session) Dispose() {
	s.mu.Lock()
	if s.state == StateDisposed {
		s.mu.Unlock()
		return
	}
	s.state = StateDisposed
	proc := s.proc
	s.proc = nil
	for id, w := range s.waiters {
		w.ch <- waitResult{err: fmt.Errorf("session disposed: %w", ErrProcessNotRunning)}
		delete(s.waiters, id)
	}
	s.mu.Unlock()

	if proc != nil {
		_ = proc.Close()
	}
	s.logger.Debug("session disposed", "session", s.id)
}

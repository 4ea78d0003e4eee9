package script

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/termscript/termscript/internal/assert"
	"github.com/termscript/termscript/internal/remote"
	"github.com/termscript/termscript/internal/session"
	"github.com/termscript/termscript/internal/spawn"
)

var (
	// ErrScriptExecution marks executor misuse: a concurrent Execute call
	// or an unknown step kind. Unlike step failures it surfaces as an
	// error instead of a failed result.
	ErrScriptExecution = errors.New("script execution error")

	// ErrAssertionFailed tags an assert step whose predicate did not hold.
	ErrAssertionFailed = errors.New("assertion failed")
)

// StepResult is the outcome of one executed step.
type StepResult struct {
	// Index is the step's zero-based position in the script.
	Index int `json:"index"`

	Kind     StepKind      `json:"kind"`
	Success  bool          `json:"success"`
	Duration time.Duration `json:"duration"`

	// OutputSnapshot is the stripped session output right after the step.
	OutputSnapshot string `json:"outputSnapshot"`

	// Err is the step's failure, nil on success.
	Err error `json:"-"`

	// Assertion carries the engine's verdict for assert steps.
	Assertion *assert.Result `json:"assertion,omitempty"`
}

// Result is the aggregate outcome of one script run. A failed run is
// still a complete result; only executor misuse surfaces as an error.
type Result struct {
	// RunID uniquely identifies this execution.
	RunID string `json:"runId"`

	ScriptName string    `json:"scriptName"`
	StartedAt  time.Time `json:"startedAt"`

	Success       bool          `json:"success"`
	Steps         []StepResult  `json:"steps"`
	TotalDuration time.Duration `json:"totalDuration"`

	// ExitCode is the process exit code, when the process exited during
	// the run.
	ExitCode *int `json:"exitCode,omitempty"`

	// Output is the full raw captured output.
	Output string `json:"output"`

	// FirstError is the first step failure, nil on success.
	FirstError error `json:"-"`
}

// FailedStep returns the index of the first failed step, or -1.
func (r *Result) FailedStep() int {
	for _, sr := range r.Steps {
		if !sr.Success {
			return sr.Index
		}
	}
	return -1
}

// Options tune an Executor.
type Options struct {
	// Spawner overrides process spawning, mainly for tests. Nil derives
	// the spawner from the script: SSH for a target, local PTY otherwise.
	Spawner spawn.Spawner

	// SSH configures remote spawning for scripts with a target.
	SSH spawn.SSHOptions

	// Logger for structured logging. Nil means slog.Default().
	Logger *slog.Logger
}

// Executor runs scripts, one at a time, owning exactly one session per
// run. A single executor never runs two scripts concurrently; use
// separate executors for parallel runs.
type Executor struct {
	opts    Options
	logger  *slog.Logger
	running atomic.Bool
}

// NewExecutor creates an executor with the given options.
func NewExecutor(opts Options) *Executor {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{opts: opts, logger: logger}
}

// Execute runs the script against a fresh session and returns the
// complete result. The session is disposed on every exit path. A second
// Execute while one is in flight fails with ErrScriptExecution.
func (e *Executor) Execute(ctx context.Context, sc *Script) (*Result, error) {
	if !e.running.CompareAndSwap(false, true) {
		return nil, fmt.Errorf("%w: executor is already mid-run", ErrScriptExecution)
	}
	defer e.running.Store(false)

	if err := sc.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrScriptExecution, err)
	}

	res := &Result{
		RunID:      uuid.NewString(),
		ScriptName: sc.Name,
		StartedAt:  time.Now(),
	}
	start := time.Now()
	defer func() { res.TotalDuration = time.Since(start) }()

	spawner, err := e.spawnerFor(sc)
	if err != nil {
		res.FirstError = err
		return res, nil
	}
	if len(sc.Fixtures) > 0 {
		if dialer, ok := spawner.(remote.Dialer); ok {
			if err := remote.StageFixtures(dialer, sc.Fixtures, sc.Dir, e.logger); err != nil {
				res.FirstError = err
				return res, nil
			}
		}
	}

	sess, err := session.New(session.Config{
		Command:        sc.Command,
		Args:           sc.Args,
		Dir:            sc.Dir,
		Env:            sc.Env,
		Cols:           sc.Terminal.Cols,
		Rows:           sc.Terminal.Rows,
		DefaultTimeout: sc.DefaultTimeout.Std(),
		Spawner:        spawner,
		Logger:         e.logger,
	})
	if err != nil {
		res.FirstError = err
		return res, nil
	}
	defer sess.Dispose()

	e.logger.Info("script run started",
		"run", res.RunID, "script", sc.Name, "command", sc.Command, "steps", len(sc.Steps))

	if err := sess.Start(); err != nil {
		res.FirstError = err
		res.Output = sess.Output()
		return res, nil
	}

	res.Success = true
	for i, st := range sc.Steps {
		sr, fatal := e.runStep(ctx, sess, sc, i, st)
		res.Steps = append(res.Steps, sr)
		if fatal != nil {
			return nil, fatal
		}
		if !sr.Success {
			res.Success = false
			if res.FirstError == nil {
				res.FirstError = sr.Err
			}
			if !sc.ContinueOnFailure {
				break
			}
		}
	}

	res.Output = sess.Output()
	if code, ok := sess.ExitCode(); ok {
		res.ExitCode = &code
	}

	e.logger.Info("script run finished",
		"run", res.RunID, "script", sc.Name,
		"success", res.Success, "steps", len(res.Steps), "duration", res.TotalDuration)
	return res, nil
}

// runStep executes one step. The second return is non-nil only for
// executor misuse, which aborts the run without a result.
func (e *Executor) runStep(ctx context.Context, sess *session.Session, sc *Script, index int, st Step) (StepResult, error) {
	sr := StepResult{Index: index, Kind: st.Kind}
	begin := time.Now()

	switch st.Kind {
	case StepSend:
		sr.Err = sess.Write([]byte(st.Text))

	case StepSendKey:
		sr.Err = sess.SendKey(st.Key)

	case StepWait:
		pattern, err := st.Wait.compile()
		if err != nil {
			sr.Err = err
			break
		}
		_, sr.Err = sess.WaitFor(ctx, pattern, e.stepTimeout(st, sc))

	case StepWaitForExit:
		_, sr.Err = sess.WaitForExit(ctx, e.stepTimeout(st, sc))

	case StepAssert:
		verdict := assert.Evaluate(sess.Output(), st.Assert)
		sr.Assertion = &verdict
		if !verdict.Passed {
			sr.Err = fmt.Errorf("%w: %s", ErrAssertionFailed, verdict.Message)
		}

	case StepDelay:
		select {
		case <-time.After(st.Delay.Std()):
		case <-ctx.Done():
			sr.Err = ctx.Err()
		}

	default:
		return sr, fmt.Errorf("%w: unknown step kind %q", ErrScriptExecution, st.Kind)
	}

	sr.Duration = time.Since(begin)
	sr.Success = sr.Err == nil
	sr.OutputSnapshot = sess.StrippedOutput()

	if sr.Err != nil {
		e.logger.Warn("step failed",
			"step", index+1, "kind", st.Kind, "error", sr.Err, "duration", sr.Duration)
	} else {
		e.logger.Debug("step ok",
			"step", index+1, "kind", st.Kind, "duration", sr.Duration)
	}
	return sr, nil
}

// stepTimeout resolves a wait deadline: the step's own timeout, then the
// script default, then the session default (signalled by zero).
func (e *Executor) stepTimeout(st Step, sc *Script) time.Duration {
	if st.Timeout > 0 {
		return st.Timeout.Std()
	}
	return sc.DefaultTimeout.Std()
}

// spawnerFor picks the spawn primitive for a script.
func (e *Executor) spawnerFor(sc *Script) (spawn.Spawner, error) {
	if e.opts.Spawner != nil {
		return e.opts.Spawner, nil
	}
	if sc.Target == "" {
		return nil, nil // session falls back to the local PTY spawner
	}
	sp, err := spawn.NewSSHSpawner(sc.Target, e.opts.SSH)
	if err != nil {
		return nil, fmt.Errorf("remote target: %w", err)
	}
	return sp, nil
}

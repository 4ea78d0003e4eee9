//go:build unix

package spawn

import (
	"fmt"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/creack/pty"
)

// LocalSpawner starts commands on the local machine under a creack/pty
// pseudo-terminal.
type LocalSpawner struct{}

// NewLocalSpawner returns a Spawner for local processes.
func NewLocalSpawner() *LocalSpawner {
	return &LocalSpawner{}
}

type localProcess struct {
	cmd  *exec.Cmd
	ptmx *os.File // PTY controller side

	mu     sync.Mutex
	closed bool
	waited chan struct{} // closed once cmd.Wait has returned
}

// Spawn starts the command attached to a fresh PTY. The reader goroutine
// delivers output chunks to cb.OnData; cb.OnExit fires once, after the
// reader has drained, with the process exit code.
func (s *LocalSpawner) Spawn(cfg Config, cb Callbacks) (Process, error) {
	cmd := exec.Command(cfg.Command, cfg.Args...)
	if cfg.Dir != "" {
		cmd.Dir = cfg.Dir
	}
	if len(cfg.Env) > 0 {
		cmd.Env = append(os.Environ(), cfg.Env...)
	}

	winSize := &pty.Winsize{
		Rows: cfg.Rows,
		Cols: cfg.Cols,
	}

	ptmx, err := pty.StartWithSize(cmd, winSize)
	if err != nil {
		return nil, fmt.Errorf("start pty: %w", err)
	}

	p := &localProcess{
		cmd:    cmd,
		ptmx:   ptmx,
		waited: make(chan struct{}),
	}

	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		buf := make([]byte, 4096)
		for {
			n, err := ptmx.Read(buf)
			if n > 0 && cb.OnData != nil {
				chunk := make([]byte, n)
				copy(chunk, buf[:n])
				cb.OnData(chunk)
			}
			if err != nil {
				// EOF or EIO once the child side is gone.
				return
			}
		}
	}()

	go func() {
		code := 0
		if err := cmd.Wait(); err != nil {
			if exitErr, ok := err.(*exec.ExitError); ok {
				code = exitErr.ExitCode()
			} else {
				code = -1
			}
		}
		close(p.waited)
		// Deliver the exit event only after the reader has drained so no
		// output chunk arrives after OnExit.
		<-readDone
		if cb.OnExit != nil {
			cb.OnExit(code)
		}
	}()

	return p, nil
}

func (p *localProcess) Write(data []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return 0, fmt.Errorf("pty is closed")
	}
	return p.ptmx.Write(data)
}

func (p *localProcess) Resize(cols, rows uint16) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return fmt.Errorf("pty is closed")
	}
	return pty.Setsize(p.ptmx, &pty.Winsize{Rows: rows, Cols: cols})
}

func (p *localProcess) Signal(sig Signal) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cmd.Process == nil {
		return fmt.Errorf("process not running")
	}

	var s syscall.Signal
	switch sig {
	case SIGINT:
		s = syscall.SIGINT
	case SIGTERM:
		s = syscall.SIGTERM
	case SIGKILL:
		s = syscall.SIGKILL
	case SIGHUP:
		s = syscall.SIGHUP
	default:
		return fmt.Errorf("unknown signal: %d", sig)
	}

	return p.cmd.Process.Signal(s)
}

// Close terminates the process with SIGTERM, escalates to SIGKILL after a
// short grace period, and releases the PTY handle. Safe to call repeatedly.
func (p *localProcess) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	if p.cmd.Process != nil {
		select {
		case <-p.waited:
			// Already exited.
		default:
			_ = p.cmd.Process.Signal(syscall.SIGTERM)
			select {
			case <-p.waited:
			case <-time.After(terminateGrace):
				_ = p.cmd.Process.Kill()
			}
		}
	}

	if err := p.ptmx.Close(); err != nil {
		return fmt.Errorf("close pty: %w", err)
	}
	return nil
}

package spawn

import (
	"fmt"
	"sync"
)

// FakeSpawner is an in-memory Spawner for deterministic tests: no real
// process, no real terminal. Tests drive output and exit through the
// returned FakeProcess.
type FakeSpawner struct {
	// FailSpawn makes Spawn fail, for exercising allocation errors.
	FailSpawn bool

	// Echo makes every written byte come straight back as output,
	// imitating a line-discipline echo like `cat` under a PTY.
	Echo bool

	// ExitOnCtrlD makes a written 0x04 terminate the fake process with
	// exit code 0, like an interactive shell reading EOF.
	ExitOnCtrlD bool

	mu    sync.Mutex
	procs []*FakeProcess
}

// Spawn returns a new FakeProcess wired to the given callbacks.
func (f *FakeSpawner) Spawn(cfg Config, cb Callbacks) (Process, error) {
	if f.FailSpawn {
		return nil, fmt.Errorf("fake spawn failure")
	}
	p := &FakeProcess{
		cfg:         cfg,
		cb:          cb,
		echo:        f.Echo,
		exitOnCtrlD: f.ExitOnCtrlD,
	}
	f.mu.Lock()
	f.procs = append(f.procs, p)
	f.mu.Unlock()
	return p, nil
}

// Last returns the most recently spawned process, or nil.
func (f *FakeSpawner) Last() *FakeProcess {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.procs) == 0 {
		return nil
	}
	return f.procs[len(f.procs)-1]
}

// FakeProcess records writes and lets tests emit output and exit events.
type FakeProcess struct {
	cfg         Config
	cb          Callbacks
	echo        bool
	exitOnCtrlD bool

	mu      sync.Mutex
	writes  [][]byte
	cols    uint16
	rows    uint16
	signals []Signal
	closed  bool
	exited  bool
}

func (p *FakeProcess) Write(data []byte) (int, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return 0, fmt.Errorf("fake process is closed")
	}
	chunk := make([]byte, len(data))
	copy(chunk, data)
	p.writes = append(p.writes, chunk)
	echo := p.echo
	exitOnCtrlD := p.exitOnCtrlD
	p.mu.Unlock()

	if echo {
		p.EmitData(chunk)
	}
	if exitOnCtrlD {
		for _, b := range chunk {
			if b == 0x04 {
				p.EmitExit(0)
				break
			}
		}
	}
	return len(data), nil
}

func (p *FakeProcess) Resize(cols, rows uint16) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return fmt.Errorf("fake process is closed")
	}
	p.cols, p.rows = cols, rows
	return nil
}

func (p *FakeProcess) Signal(sig Signal) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return fmt.Errorf("fake process is closed")
	}
	p.signals = append(p.signals, sig)
	return nil
}

func (p *FakeProcess) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

// EmitData delivers an output chunk to the session, as the PTY reader
// goroutine would.
func (p *FakeProcess) EmitData(chunk []byte) {
	p.mu.Lock()
	cb := p.cb
	exited := p.exited
	p.mu.Unlock()
	if exited {
		return
	}
	if cb.OnData != nil {
		c := make([]byte, len(chunk))
		copy(c, chunk)
		cb.OnData(c)
	}
}

// EmitExit delivers the exit event exactly once.
func (p *FakeProcess) EmitExit(code int) {
	p.mu.Lock()
	if p.exited {
		p.mu.Unlock()
		return
	}
	p.exited = true
	cb := p.cb
	p.mu.Unlock()
	if cb.OnExit != nil {
		cb.OnExit(code)
	}
}

// Written returns the concatenation of everything written to the process.
func (p *FakeProcess) Written() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []byte
	for _, w := range p.writes {
		out = append(out, w...)
	}
	return out
}

// Signals returns the signals sent to the process, in order.
func (p *FakeProcess) Signals() []Signal {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Signal(nil), p.signals...)
}

// SpawnConfig returns the config the process was spawned with.
func (p *FakeProcess) SpawnConfig() Config {
	return p.cfg
}

// Size returns the last size set by Resize.
func (p *FakeProcess) Size() (cols, rows uint16) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cols, p.rows
}

// Closed reports whether Close has been called.
func (p *FakeProcess) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// Package script models interaction scripts: an ordered list of steps
// (send text, send a named key, wait for output, assert, wait for exit,
// delay) driven against one terminal session per run. Scripts are loaded
// from YAML files and statically validated before anything is spawned.
package script

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/termscript/termscript/internal/assert"
	"github.com/termscript/termscript/internal/session"
)

// StepKind names the action a step performs.
type StepKind string

const (
	StepSend        StepKind = "send"
	StepSendKey     StepKind = "sendKey"
	StepWait        StepKind = "wait"
	StepWaitForExit StepKind = "waitForExit"
	StepAssert      StepKind = "assert"
	StepDelay       StepKind = "delay"
)

// Duration parses YAML duration strings like "5s" or "100ms".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	// Bare scalars like `5` resolve as integers; require a string so the
	// unit is always explicit.
	if node.Kind != yaml.ScalarNode || node.Tag != "!!str" {
		return fmt.Errorf("line %d: duration must be a string like \"5s\"", node.Line)
	}
	parsed, err := time.ParseDuration(node.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", node.Value, err)
	}
	if parsed < 0 {
		return fmt.Errorf("duration %q must not be negative", node.Value)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Terminal is the requested terminal size.
type Terminal struct {
	Cols uint16 `yaml:"cols"`
	Rows uint16 `yaml:"rows"`
}

// WaitSpec is what a wait step waits for: a literal substring or a
// regular expression, exactly one of the two.
type WaitSpec struct {
	Text    string
	Pattern string
}

func (w *WaitSpec) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		return node.Decode(&w.Text)
	}
	var raw struct {
		Text    string `yaml:"text"`
		Pattern string `yaml:"pattern"`
	}
	if err := node.Decode(&raw); err != nil {
		return err
	}
	w.Text, w.Pattern = raw.Text, raw.Pattern
	return nil
}

// compile turns the spec into a matchable session pattern.
func (w WaitSpec) compile() (session.Pattern, error) {
	if w.Pattern != "" {
		return session.CompilePattern(w.Pattern)
	}
	return session.Literal(w.Text), nil
}

// Step is one script action. Exactly one kind field is set per step.
type Step struct {
	Kind StepKind

	// Text is the payload of a send step.
	Text string

	// Key is the symbolic key name of a sendKey step.
	Key string

	// Wait is the expectation of a wait step.
	Wait WaitSpec

	// Assert is the specification of an assert step.
	Assert assert.Spec

	// Timeout overrides the script default for wait and waitForExit.
	Timeout Duration

	// Delay is the pause of a delay step.
	Delay Duration
}

// stepKeys are the mapping keys a step node may carry.
var stepKeys = map[string]bool{
	"send": true, "sendKey": true, "wait": true, "waitForExit": true,
	"assert": true, "delay": true, "timeout": true,
}

func (s *Step) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: step must be a mapping like `- send: \"text\"`", node.Line)
	}
	for i := 0; i < len(node.Content); i += 2 {
		key := node.Content[i].Value
		if !stepKeys[key] {
			return fmt.Errorf("line %d: unknown step field %q", node.Content[i].Line, key)
		}
	}

	// waitForExit is a raw node: decoding into *yaml.Node leaves an empty
	// node behind, so the value form is the only one that round-trips.
	// Kind 0 means the key was absent.
	var raw struct {
		Send        *string      `yaml:"send"`
		SendKey     *string      `yaml:"sendKey"`
		Wait        *WaitSpec    `yaml:"wait"`
		WaitForExit yaml.Node    `yaml:"waitForExit"`
		Assert      *assert.Spec `yaml:"assert"`
		Delay       *Duration    `yaml:"delay"`
		Timeout     Duration     `yaml:"timeout"`
	}
	if err := node.Decode(&raw); err != nil {
		return err
	}
	s.Timeout = raw.Timeout

	kinds := 0
	if raw.Send != nil {
		s.Kind, s.Text = StepSend, *raw.Send
		kinds++
	}
	if raw.SendKey != nil {
		s.Kind, s.Key = StepSendKey, *raw.SendKey
		kinds++
	}
	if raw.Wait != nil {
		s.Kind, s.Wait = StepWait, *raw.Wait
		kinds++
	}
	if raw.WaitForExit.Kind != 0 {
		s.Kind = StepWaitForExit
		// `waitForExit:` alone or `waitForExit: {timeout: 5s}`.
		if raw.WaitForExit.Kind == yaml.MappingNode {
			var inner struct {
				Timeout Duration `yaml:"timeout"`
			}
			if err := raw.WaitForExit.Decode(&inner); err != nil {
				return err
			}
			if inner.Timeout != 0 {
				s.Timeout = inner.Timeout
			}
		}
		kinds++
	}
	if raw.Assert != nil {
		s.Kind, s.Assert = StepAssert, *raw.Assert
		kinds++
	}
	if raw.Delay != nil {
		s.Kind, s.Delay = StepDelay, *raw.Delay
		kinds++
	}

	if kinds != 1 {
		return fmt.Errorf("line %d: step must have exactly one action, got %d", node.Line, kinds)
	}
	return nil
}

// Script is a parsed interaction script.
type Script struct {
	// Name identifies the script in results and history. Defaults to the
	// file name without extension when loaded from disk.
	Name string `yaml:"name"`

	// Command and Args are the program to drive.
	Command string   `yaml:"command"`
	Args    []string `yaml:"args"`

	// Dir is the working directory for the command.
	Dir string `yaml:"dir"`

	// Env is additional environment for the command.
	Env map[string]string `yaml:"env"`

	// Terminal sets the PTY size.
	Terminal Terminal `yaml:"terminal"`

	// Target runs the command on a remote host over SSH, e.g.
	// "ssh://user@host:22". Empty means a local PTY.
	Target string `yaml:"target"`

	// Fixtures are local files staged into the remote working directory
	// before a remote run.
	Fixtures []string `yaml:"fixtures"`

	// DefaultTimeout applies to wait steps without their own timeout.
	DefaultTimeout Duration `yaml:"defaultTimeout"`

	// ContinueOnFailure keeps executing after a failed step, collecting
	// all results instead of aborting at the first failure.
	ContinueOnFailure bool `yaml:"continueOnFailure"`

	Steps []Step `yaml:"steps"`
}

// Parse decodes a script from YAML. Unknown top-level fields are errors.
func Parse(data []byte) (*Script, error) {
	dec := yaml.NewDecoder(strings.NewReader(string(data)))
	dec.KnownFields(true)
	var sc Script
	if err := dec.Decode(&sc); err != nil {
		return nil, fmt.Errorf("parse script: %w", err)
	}
	return &sc, nil
}

// Load reads and parses a script file. A missing name defaults to the
// file's base name.
func Load(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read script: %w", err)
	}
	sc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if sc.Name == "" {
		base := filepath.Base(path)
		sc.Name = strings.TrimSuffix(base, filepath.Ext(base))
	}
	return sc, nil
}

// Validate runs every static check that needs no process: required
// fields, known keys, compilable patterns, well-formed assertions.
func (sc *Script) Validate() error {
	if sc.Command == "" {
		return fmt.Errorf("command is required")
	}
	if len(sc.Steps) == 0 {
		return fmt.Errorf("script has no steps")
	}
	for i, st := range sc.Steps {
		if err := st.validate(); err != nil {
			return fmt.Errorf("step %d (%s): %w", i+1, st.Kind, err)
		}
	}
	return nil
}

func (s Step) validate() error {
	switch s.Kind {
	case StepSend:
		return nil
	case StepSendKey:
		if _, ok := session.LookupKey(s.Key); !ok {
			return fmt.Errorf("unknown key %q (see `termscript keys`)", s.Key)
		}
	case StepWait:
		if s.Wait.Text == "" && s.Wait.Pattern == "" {
			return fmt.Errorf("wait needs a substring or a pattern")
		}
		if s.Wait.Text != "" && s.Wait.Pattern != "" {
			return fmt.Errorf("wait takes a substring or a pattern, not both")
		}
		if _, err := s.Wait.compile(); err != nil {
			return err
		}
	case StepWaitForExit:
		return nil
	case StepAssert:
		return s.Assert.Validate()
	case StepDelay:
		if s.Delay <= 0 {
			return fmt.Errorf("delay must be positive")
		}
	default:
		return fmt.Errorf("unknown step kind %q", s.Kind)
	}
	return nil
}

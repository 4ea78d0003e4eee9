package script

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/termscript/termscript/internal/assert"
)

const sampleYAML = `
name: login-flow
command: mytool
args: ["--interactive"]
dir: ./fixtures
env: {NO_COLOR: "1"}
terminal: {cols: 120, rows: 40}
defaultTimeout: 5s
continueOnFailure: false
steps:
  - send: "hello"
  - sendKey: Enter
  - wait: "prompt>"
    timeout: 2s
  - wait: {pattern: "\\d+ tests passed"}
  - assert:
      mode: contains
      expected: "hello"
      stripAnsi: true
  - sendKey: CtrlD
  - waitForExit: {timeout: 5s}
  - delay: 100ms
`

func TestParseFullScript(t *testing.T) {
	sc, err := Parse([]byte(sampleYAML))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if sc.Name != "login-flow" || sc.Command != "mytool" {
		t.Errorf("header mismatch: name=%q command=%q", sc.Name, sc.Command)
	}
	if sc.Terminal.Cols != 120 || sc.Terminal.Rows != 40 {
		t.Errorf("terminal = %+v", sc.Terminal)
	}
	if sc.DefaultTimeout.Std() != 5*time.Second {
		t.Errorf("defaultTimeout = %s", sc.DefaultTimeout.Std())
	}
	if sc.Env["NO_COLOR"] != "1" {
		t.Errorf("env = %v", sc.Env)
	}
	if len(sc.Steps) != 8 {
		t.Fatalf("got %d steps, want 8", len(sc.Steps))
	}

	wantKinds := []StepKind{
		StepSend, StepSendKey, StepWait, StepWait,
		StepAssert, StepSendKey, StepWaitForExit, StepDelay,
	}
	for i, want := range wantKinds {
		if sc.Steps[i].Kind != want {
			t.Errorf("step %d kind = %s, want %s", i, sc.Steps[i].Kind, want)
		}
	}

	if sc.Steps[0].Text != "hello" {
		t.Errorf("send text = %q", sc.Steps[0].Text)
	}
	if sc.Steps[1].Key != "Enter" {
		t.Errorf("sendKey = %q", sc.Steps[1].Key)
	}
	if sc.Steps[2].Wait.Text != "prompt>" || sc.Steps[2].Timeout.Std() != 2*time.Second {
		t.Errorf("wait step = %+v timeout = %s", sc.Steps[2].Wait, sc.Steps[2].Timeout.Std())
	}
	if sc.Steps[3].Wait.Pattern == "" {
		t.Errorf("regex wait step = %+v", sc.Steps[3].Wait)
	}
	if sc.Steps[4].Assert.Mode != assert.ModeContains || !sc.Steps[4].Assert.StripAnsi {
		t.Errorf("assert spec = %+v", sc.Steps[4].Assert)
	}
	if sc.Steps[6].Timeout.Std() != 5*time.Second {
		t.Errorf("waitForExit timeout = %s", sc.Steps[6].Timeout.Std())
	}
	if sc.Steps[7].Delay.Std() != 100*time.Millisecond {
		t.Errorf("delay = %s", sc.Steps[7].Delay.Std())
	}

	if err := sc.Validate(); err != nil {
		t.Errorf("sample script should validate: %v", err)
	}
}

func TestParseWaitForExitForms(t *testing.T) {
	sc, err := Parse([]byte(`
command: x
steps:
  - waitForExit:
  - waitForExit: {timeout: 3s}
  - waitForExit:
    timeout: 7s
`))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(sc.Steps) != 3 {
		t.Fatalf("got %d steps, want 3", len(sc.Steps))
	}
	for i, st := range sc.Steps {
		if st.Kind != StepWaitForExit {
			t.Errorf("step %d kind = %s", i, st.Kind)
		}
	}
	if sc.Steps[0].Timeout != 0 {
		t.Errorf("bare form timeout = %s, want 0", sc.Steps[0].Timeout.Std())
	}
	if sc.Steps[1].Timeout.Std() != 3*time.Second {
		t.Errorf("inline timeout = %s, want 3s", sc.Steps[1].Timeout.Std())
	}
	if sc.Steps[2].Timeout.Std() != 7*time.Second {
		t.Errorf("sibling timeout = %s, want 7s", sc.Steps[2].Timeout.Std())
	}
}

func TestParseErrors(t *testing.T) {
	cases := []struct {
		name string
		yaml string
		want string
	}{
		{
			"unknown top-level field",
			"command: x\nshell: bash\nsteps: [{send: a}]",
			"shell",
		},
		{
			"unknown step field",
			"command: x\nsteps:\n  - sendText: a",
			"sendText",
		},
		{
			"two actions in one step",
			"command: x\nsteps:\n  - send: a\n    sendKey: Enter",
			"exactly one action",
		},
		{
			"no action in a step",
			"command: x\nsteps:\n  - timeout: 5s",
			"exactly one action",
		},
		{
			"bad duration",
			"command: x\nsteps:\n  - delay: fast",
			"invalid duration",
		},
		{
			"numeric duration",
			"command: x\ndefaultTimeout: 5\nsteps: [{send: a}]",
			"duration must be a string",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.yaml))
			if err == nil {
				t.Fatal("expected a parse error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Errorf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}

func TestLoadDefaultsName(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "smoke-test.yaml")
	if err := os.WriteFile(path, []byte("command: echo\nsteps: [{send: hi}]"), 0o644); err != nil {
		t.Fatal(err)
	}

	sc, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if sc.Name != "smoke-test" {
		t.Errorf("name = %q, want file base name", sc.Name)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("expected an error for a missing file")
	}
}

func TestValidate(t *testing.T) {
	base := func() *Script {
		return &Script{Command: "tool", Steps: []Step{{Kind: StepSend, Text: "x"}}}
	}

	cases := []struct {
		name   string
		mutate func(*Script)
		want   string
	}{
		{"missing command", func(s *Script) { s.Command = "" }, "command is required"},
		{"no steps", func(s *Script) { s.Steps = nil }, "no steps"},
		{"unknown key", func(s *Script) {
			s.Steps = []Step{{Kind: StepSendKey, Key: "SysRq"}}
		}, "unknown key"},
		{"empty wait", func(s *Script) {
			s.Steps = []Step{{Kind: StepWait}}
		}, "substring or a pattern"},
		{"wait with both forms", func(s *Script) {
			s.Steps = []Step{{Kind: StepWait, Wait: WaitSpec{Text: "a", Pattern: "b"}}}
		}, "not both"},
		{"bad wait regex", func(s *Script) {
			s.Steps = []Step{{Kind: StepWait, Wait: WaitSpec{Pattern: "(["}}}
		}, "pattern"},
		{"bad assert", func(s *Script) {
			s.Steps = []Step{{Kind: StepAssert, Assert: assert.Spec{Mode: "fuzzy"}}}
		}, "unknown assertion mode"},
		{"zero delay", func(s *Script) {
			s.Steps = []Step{{Kind: StepDelay}}
		}, "positive"},
		{"unknown kind", func(s *Script) {
			s.Steps = []Step{{Kind: "bogus"}}
		}, "unknown step kind"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sc := base()
			tc.mutate(sc)
			err := sc.Validate()
			if err == nil {
				t.Fatal("expected a validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Errorf("error %q does not mention %q", err, tc.want)
			}
		})
	}

	if err := base().Validate(); err != nil {
		t.Errorf("base script should validate: %v", err)
	}
}

package transcript

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/termscript/termscript/internal/script"
)

func TestSavePreservesRawBytes(t *testing.T) {
	dir := t.TempDir()
	res := &script.Result{
		RunID:  "run-abc123",
		Output: "plain \x1b[1;32mgreen\x1b[0m\r\ndone",
	}

	path, err := Save(dir, res)
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if filepath.Base(path) != "run-abc123.out" {
		t.Errorf("transcript path = %q", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != res.Output {
		t.Errorf("transcript mutated the output: %q", data)
	}
}

func TestSaveNilResult(t *testing.T) {
	if _, err := Save(t.TempDir(), nil); err == nil {
		t.Error("expected an error for a nil result")
	}
}

func TestDefaultDirHonorsHomeOverride(t *testing.T) {
	t.Setenv("TERMSCRIPT_HOME", "/tmp/ts-home")
	if got := DefaultDir(); got != filepath.Join("/tmp/ts-home", "transcripts") {
		t.Errorf("DefaultDir() = %q", got)
	}
}

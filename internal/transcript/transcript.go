// Package transcript saves the raw captured output of a run to disk so
// a failed interaction can be replayed through other tools.
package transcript

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/termscript/termscript/internal/script"
)

// DefaultDir is where transcripts land unless TERMSCRIPT_HOME says
// otherwise.
func DefaultDir() string {
	if home := os.Getenv("TERMSCRIPT_HOME"); home != "" {
		return filepath.Join(home, "transcripts")
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".termscript", "transcripts")
	}
	return filepath.Join(homeDir, ".termscript", "transcripts")
}

// Save writes the run's raw output, escape sequences included, to
// <dir>/<runID>.out and returns the path. An empty dir means DefaultDir.
func Save(dir string, res *script.Result) (string, error) {
	if res == nil {
		return "", fmt.Errorf("result is nil")
	}
	if dir == "" {
		dir = DefaultDir()
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", fmt.Errorf("create transcript dir: %w", err)
	}

	path := filepath.Join(dir, res.RunID+".out")
	if err := os.WriteFile(path, []byte(res.Output), 0600); err != nil {
		return "", fmt.Errorf("write transcript: %w", err)
	}
	return path, nil
}

package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/termscript/termscript/internal/history"
	"github.com/termscript/termscript/internal/report"
	"github.com/termscript/termscript/internal/script"
	"github.com/termscript/termscript/internal/spawn"
	"github.com/termscript/termscript/internal/transcript"
)

var (
	runContinueOnFailure bool
	runNoHistory         bool
	runSaveTranscript    bool
)

// runCmd executes one or more interaction scripts.
var runCmd = &cobra.Command{
	Use:   "run <script.yaml> [more-scripts...]",
	Short: "Run interaction scripts against a pseudo-terminal",
	Long: `Runs each script in order: spawns its command under a PTY, executes the
steps, and prints a pass/fail report with diffs for failed assertions.

The process exits non-zero when any script fails.

Examples:
  termscript run flows/login.yaml
  termscript run flows/*.yaml --continue-on-failure
  termscript run deploy-check.yaml --transcript`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		failed := 0
		for _, path := range args {
			res, err := runScript(ctx, path)
			if err != nil {
				return err
			}
			fmt.Print(report.Render(res))
			if !res.Success {
				failed++
			}
		}

		if failed > 0 {
			return fmt.Errorf("%d of %d scripts failed", failed, len(args))
		}
		return nil
	},
}

// runScript loads, executes, reports on, and records one script.
func runScript(ctx context.Context, path string) (*script.Result, error) {
	sc, err := loadForRun(path)
	if err != nil {
		return nil, err
	}

	ex := script.NewExecutor(script.Options{SSH: sshOptions()})
	res, err := ex.Execute(ctx, sc)
	if err != nil {
		return nil, err
	}

	recordRun(res)
	saveTranscript(res)
	return res, nil
}

func init() {
	runCmd.Flags().BoolVar(&runContinueOnFailure, "continue-on-failure", false,
		"keep executing after a failed step")
	runCmd.Flags().BoolVar(&runNoHistory, "no-history", false,
		"do not record this run in the history database")
	runCmd.Flags().BoolVar(&runSaveTranscript, "transcript", false,
		"save the raw captured output to the transcript directory")
}

// loadForRun loads a script and fills unset values from the global config.
func loadForRun(path string) (*script.Script, error) {
	sc, err := script.Load(path)
	if err != nil {
		return nil, err
	}
	if runContinueOnFailure {
		sc.ContinueOnFailure = true
	}
	if sc.DefaultTimeout == 0 {
		sc.DefaultTimeout = script.Duration(cfg.DefaultTimeout())
	}
	if sc.Terminal.Cols == 0 {
		sc.Terminal.Cols = cfg.TerminalCols
	}
	if sc.Terminal.Rows == 0 {
		sc.Terminal.Rows = cfg.TerminalRows
	}
	if err := sc.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return sc, nil
}

// recordRun persists the result when history is enabled.
func recordRun(res *script.Result) {
	if runNoHistory || !cfg.HistoryEnabled {
		return
	}
	store, err := history.Open()
	if err != nil {
		fmt.Printf("warning: history unavailable: %v\n", err)
		return
	}
	defer store.Close()
	if err := store.RecordRun(res); err != nil {
		fmt.Printf("warning: record run: %v\n", err)
	}
}

// saveTranscript writes the raw output when requested.
func saveTranscript(res *script.Result) {
	if !runSaveTranscript {
		return
	}
	path, err := transcript.Save("", res)
	if err != nil {
		fmt.Printf("warning: save transcript: %v\n", err)
		return
	}
	fmt.Printf("transcript: %s\n", path)
}

// sshOptions builds the remote-target options from the global config.
func sshOptions() spawn.SSHOptions {
	return spawn.SSHOptions{
		IdentityFile:    cfg.SSHIdentityFile,
		InsecureHostKey: cfg.SSHInsecureHostKey,
	}
}

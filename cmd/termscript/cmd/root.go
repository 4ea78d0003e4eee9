// Package cmd implements the CLI commands for termscript.
//
// termscript drives command-line tools inside a real pseudo-terminal:
// scripts send text and named keys, wait for output patterns, assert on
// captured output, and wait for exit, the way an interactive human
// operator would.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/termscript/termscript/internal/config"
	"github.com/termscript/termscript/internal/version"
)

var (
	cfg     *config.Config
	verbose bool
)

// rootCmd represents the base command.
var rootCmd = &cobra.Command{
	Use:   "termscript",
	Short: "Terminal interaction testing - scripted PTY sessions",
	Long: `termscript exercises command-line tools the way a human operator would:
inside a real pseudo-terminal, with raw control codes, prompts, and ANSI
styling.

A YAML script describes the interaction:

  command: mytool
  steps:
    - send: "hello"
    - sendKey: Enter
    - wait: "prompt>"
    - assert: {mode: contains, expected: "hello", stripAnsi: true}
    - sendKey: CtrlD
    - waitForExit: {timeout: 5s}

Run it with:

  termscript run flow.yaml

Completed runs are recorded locally; browse them with 'termscript history'.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := slog.LevelWarn
		if verbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: level,
		})))

		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		return nil
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// isTerminal returns true if stdout is a terminal.
func isTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(keysCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(watchCmd)
}

// versionCmd prints version information.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version.Info())
	},
}

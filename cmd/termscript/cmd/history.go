package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/termscript/termscript/internal/history"
	"github.com/termscript/termscript/internal/tui"
)

var (
	historyLimit       int
	historyScript      string
	historySummary     bool
	historyInteractive bool
)

// historyCmd lists and browses recorded runs.
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded script runs",
	Long: `Lists recent runs from the local history database.

Examples:
  termscript history
  termscript history --script login-flow --limit 20
  termscript history --summary
  termscript history --interactive`,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := history.Open()
		if err != nil {
			return fmt.Errorf("open history: %w", err)
		}
		defer store.Close()

		limit := historyLimit
		if limit <= 0 {
			limit = cfg.HistoryLimit
		}

		if historyInteractive {
			if !isTerminal() {
				return fmt.Errorf("--interactive needs a terminal")
			}
			return tui.Run(store, limit)
		}

		if historySummary {
			return printSummary(store)
		}
		return printRuns(store, limit)
	},
}

func printRuns(store *history.Store, limit int) error {
	var (
		runs []history.Run
		err  error
	)
	if historyScript != "" {
		runs, err = store.RunsForScript(historyScript, limit)
	} else {
		runs, err = store.ListRuns(limit)
	}
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no recorded runs")
		return nil
	}

	fmt.Printf("%-20s %-24s %-6s %-10s %s\n", "STARTED", "SCRIPT", "RESULT", "DURATION", "ERROR")
	for _, r := range runs {
		result := "pass"
		if !r.Success {
			result = "fail"
		}
		fmt.Printf("%-20s %-24s %-6s %-10s %s\n",
			r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			truncate(r.ScriptName, 24),
			result,
			r.Duration.Round(time.Millisecond),
			truncate(r.FirstError, 48))
	}
	return nil
}

func printSummary(store *history.Store) error {
	sums, err := store.Summary()
	if err != nil {
		return err
	}
	if len(sums) == 0 {
		fmt.Println("no recorded runs")
		return nil
	}

	fmt.Printf("%-24s %6s %6s %6s %s\n", "SCRIPT", "RUNS", "PASS", "FAIL", "LAST RUN")
	for _, s := range sums {
		fmt.Printf("%-24s %6d %6d %6d %s\n",
			truncate(s.ScriptName, 24), s.Runs, s.Passes, s.Failures,
			s.LastRun.Local().Format("2006-01-02 15:04:05"))
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	if n <= 3 {
		return s[:n]
	}
	return s[:n-3] + "..."
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 0, "maximum runs to list (default from config)")
	historyCmd.Flags().StringVar(&historyScript, "script", "", "only runs of this script")
	historyCmd.Flags().BoolVar(&historySummary, "summary", false, "aggregate per script")
	historyCmd.Flags().BoolVarP(&historyInteractive, "interactive", "i", false, "browse runs interactively")
}

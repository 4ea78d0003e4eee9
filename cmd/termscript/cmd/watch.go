package cmd

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/termscript/termscript/internal/report"
	"github.com/termscript/termscript/internal/watch"
)

// watchCmd re-runs scripts when their files change.
var watchCmd = &cobra.Command{
	Use:   "watch <script.yaml> [more-scripts...]",
	Short: "Re-run scripts whenever their files change",
	Long: `Runs each script once, then watches the files and re-runs a script when
it is saved. Rapid saves are debounced. Stop with Ctrl+C.

Example:
  termscript watch flows/login.yaml`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		rerun := func(path string) {
			res, err := runScript(ctx, path)
			if err != nil {
				fmt.Printf("✗ %s: %v\n", path, err)
				return
			}
			fmt.Print(report.Render(res))
		}

		for _, path := range args {
			rerun(path)
		}

		w, err := watch.NewWatcher(args, watch.Config{
			DebounceInterval: cfg.WatchDebounce(),
			OnChange: func(path string) {
				fmt.Printf("%s changed, re-running\n", path)
				rerun(path)
			},
			OnError: func(err error) {
				fmt.Printf("watch error: %v\n", err)
			},
		})
		if err != nil {
			return err
		}
		if err := w.Start(ctx); err != nil {
			return err
		}
		defer w.Stop()

		fmt.Println("watching for changes (Ctrl+C to stop)")
		<-ctx.Done()
		return nil
	},
}

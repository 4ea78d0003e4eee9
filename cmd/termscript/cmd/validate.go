package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/termscript/termscript/internal/script"
)

// validateCmd checks scripts without spawning anything.
var validateCmd = &cobra.Command{
	Use:   "validate <script.yaml> [more-scripts...]",
	Short: "Check scripts for errors without running them",
	Long: `Parses each script and runs every static check: known step kinds, known
key names, compilable wait patterns, and well-formed assertion specs.
Nothing is spawned.

Examples:
  termscript validate flows/login.yaml
  termscript validate flows/*.yaml`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		bad := 0
		for _, path := range args {
			sc, err := script.Load(path)
			if err == nil {
				err = sc.Validate()
			}
			if err != nil {
				bad++
				fmt.Printf("✗ %s: %v\n", path, err)
				continue
			}
			fmt.Printf("✓ %s (%d steps)\n", path, len(sc.Steps))
		}
		if bad > 0 {
			return fmt.Errorf("%d of %d scripts invalid", bad, len(args))
		}
		return nil
	},
}

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/termscript/termscript/internal/session"
)

// keysCmd lists the symbolic key names sendKey accepts.
var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "List the key names usable in sendKey steps",
	Run: func(cmd *cobra.Command, args []string) {
		for _, name := range session.KeyNames() {
			seq, _ := session.LookupKey(string(name))
			fmt.Fprintf(cmd.OutOrStdout(), "%-10s % x\n", name, seq)
		}
	},
}

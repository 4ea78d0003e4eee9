// Package main is the entry point for termscript - terminal interaction testing.
package main

import (
	"os"

	"github.com/termscript/termscript/cmd/termscript/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

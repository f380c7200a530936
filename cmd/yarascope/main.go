package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/harrison/yarascope/internal/cmd"
)

func main() {
	rootCmd := cmd.NewRootCommand()

	if err := rootCmd.Execute(); err != nil {
		// Matches are a result, not a failure worth printing
		if !errors.Is(err, cmd.ErrMatchesFound) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(cmd.ExitCode(err))
	}
}

package cmd

import (
	"github.com/spf13/cobra"
)

// Version is injected at build time via -ldflags
var Version = "dev"

// NewRootCommand creates and returns the root cobra command for yarascope
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "yarascope",
		Short: "Scan directory trees with YARA rules",
		Long: `Yarascope compiles a YARA rule file and walks a directory tree,
scanning every regular file against the compiled rules.

Scans honor exclusion lists, report progress as they go, survive
cancellation with partial results, and record their outcomes in a
local history database for later inspection.`,
		Version: Version,
		// Silence usage on errors to avoid duplicate help text
		SilenceUsage: true,
		// Errors are printed once by main with the mapped exit code
		SilenceErrors: true,
	}

	// Add subcommands
	cmd.AddCommand(NewScanCommand())
	cmd.AddCommand(NewRulesCommand())
	cmd.AddCommand(NewHistoryCommand())

	return cmd
}

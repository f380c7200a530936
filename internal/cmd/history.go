package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/harrison/yarascope/internal/config"
	"github.com/harrison/yarascope/internal/history"
)

// NewHistoryCommand creates the history command with its subcommands
func NewHistoryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect recorded scans",
		Long: `Browse the local scan history database: list past scans, show one
scan with its matched files, or clear the database.`,
	}

	cmd.AddCommand(newHistoryListCommand())
	cmd.AddCommand(newHistoryShowCommand())
	cmd.AddCommand(newHistoryClearCommand())

	return cmd
}

// historyDBPath resolves the database location the same way the scan
// command does, so the read side always finds what the write side wrote
func historyDBPath(cmd *cobra.Command) (string, error) {
	override, _ := cmd.Flags().GetString("db-path")
	if override != "" {
		return override, nil
	}

	cfg, err := config.LoadConfigFromDir(".")
	if err != nil {
		return "", err
	}
	return resolveHistoryDBPath("", cfg)
}

func newHistoryListCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded scans, most recent first",
		RunE:  runHistoryList,
	}

	cmd.Flags().Int("limit", 20, "Maximum number of scans to list")
	cmd.Flags().String("db-path", "", "Override history database path (for testing)")

	return cmd
}

func runHistoryList(cmd *cobra.Command, args []string) error {
	dbPath, err := historyDBPath(cmd)
	if err != nil {
		return err
	}

	output := cmd.OutOrStdout()

	// Listing must not create an empty database
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		fmt.Fprintf(output, "No history database found at: %s\n", dbPath)
		return nil
	}

	store, err := history.NewStore(dbPath)
	if err != nil {
		return fmt.Errorf("open history store: %w", err)
	}
	defer store.Close()

	limit, _ := cmd.Flags().GetInt("limit")
	scans, err := store.ListScans(cmd.Context(), limit)
	if err != nil {
		return fmt.Errorf("list scans: %w", err)
	}

	if len(scans) == 0 {
		fmt.Fprintln(output, "No scans recorded.")
		return nil
	}

	color.New(color.FgCyan).Fprintln(output, "=== Scan History ===")
	for _, rec := range scans {
		fmt.Fprintf(output, "%s  %s  %s -> %s\n",
			shortID(rec.ID),
			rec.CreatedAt.Local().Format("2006-01-02 15:04:05"),
			rec.RuleFile,
			rec.Root)

		matched := fmt.Sprintf("%d matched", rec.Matched)
		if rec.Matched > 0 {
			matched = color.New(color.FgRed).Sprint(matched)
		}
		fmt.Fprintf(output, "  %d scanned, %s, %d errors, %s (exit %d)\n",
			rec.Scanned,
			matched,
			rec.Errors,
			rec.Duration.Round(time.Millisecond),
			rec.ExitCode)
	}
	fmt.Fprintf(output, "\n%d scan(s)\n", len(scans))

	return nil
}

// shortID returns the first 8 characters of a scan ID for compact display
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func newHistoryShowCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <scan-id>",
		Short: "Show one recorded scan with its matched files",
		Long: `Show prints a recorded scan and every matched file it stored.

The scan ID may be abbreviated to a unique prefix, such as the
8-character form printed by "history list".`,
		Args: cobra.ExactArgs(1),
		RunE: runHistoryShow,
	}

	cmd.Flags().String("db-path", "", "Override history database path (for testing)")

	return cmd
}

func runHistoryShow(cmd *cobra.Command, args []string) error {
	dbPath, err := historyDBPath(cmd)
	if err != nil {
		return err
	}

	output := cmd.OutOrStdout()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		fmt.Fprintf(output, "No history database found at: %s\n", dbPath)
		return nil
	}

	store, err := history.NewStore(dbPath)
	if err != nil {
		return fmt.Errorf("open history store: %w", err)
	}
	defer store.Close()

	rec, err := store.GetScan(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	hits, err := store.GetScanHits(cmd.Context(), rec.ID)
	if err != nil {
		return fmt.Errorf("load scan hits: %w", err)
	}

	color.New(color.FgCyan).Fprintf(output, "=== Scan %s ===\n", rec.ID)
	fmt.Fprintf(output, "Rules: %s\n", rec.RuleFile)
	fmt.Fprintf(output, "Root: %s\n", rec.Root)
	fmt.Fprintf(output, "Date: %s\n", rec.CreatedAt.Local().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(output, "Files scanned: %d\n", rec.Scanned)
	fmt.Fprintf(output, "Matched: %d\n", rec.Matched)
	fmt.Fprintf(output, "Errors: %d\n", rec.Errors)
	fmt.Fprintf(output, "Duration: %s\n", rec.Duration.Round(time.Millisecond))
	fmt.Fprintf(output, "Exit code: %d\n", rec.ExitCode)

	if len(hits) == 0 {
		fmt.Fprintln(output, "\nNo matched files recorded.")
		return nil
	}

	for _, hit := range hits {
		name := color.New(color.FgRed).Sprint(hit.Filename)
		fmt.Fprintf(output, "\n  %s (%s)\n", name, hit.Path)
		fmt.Fprintf(output, "    md5: %s\n", hit.MD5)
		fmt.Fprintf(output, "    sha1: %s\n", hit.SHA1)
		fmt.Fprintf(output, "    sha256: %s\n", hit.SHA256)
		fmt.Fprintf(output, "    rules: %s\n", strings.Join(hit.Rules, ", "))
		if len(hit.Tags) > 0 {
			fmt.Fprintf(output, "    tags: %s\n", strings.Join(hit.Tags, ", "))
		}
	}

	return nil
}

func newHistoryClearCommand() *cobra.Command {
	var skipConfirm bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete all recorded scans",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistoryClear(cmd, skipConfirm)
		},
	}

	cmd.Flags().BoolVar(&skipConfirm, "yes", false, "Skip the confirmation prompt")
	cmd.Flags().String("db-path", "", "Override history database path (for testing)")

	return cmd
}

func runHistoryClear(cmd *cobra.Command, skipConfirm bool) error {
	dbPath, err := historyDBPath(cmd)
	if err != nil {
		return err
	}

	output := cmd.OutOrStdout()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		fmt.Fprintf(output, "No history database found at: %s\n", dbPath)
		return nil
	}

	if !skipConfirm {
		fmt.Fprintln(output, "WARNING: This will delete ALL recorded scans.")
		if !confirmAction(output, cmd.InOrStdin()) {
			fmt.Fprintln(output, "Operation cancelled.")
			return nil
		}
	}

	store, err := history.NewStore(dbPath)
	if err != nil {
		return fmt.Errorf("open history store: %w", err)
	}
	defer store.Close()

	deleted, err := store.Clear(cmd.Context())
	if err != nil {
		return fmt.Errorf("clear history: %w", err)
	}

	noun := "records"
	if deleted == 1 {
		noun = "record"
	}
	fmt.Fprintf(output, "Deleted %d %s.\n", deleted, noun)

	return nil
}

// confirmAction prompts for confirmation and returns true when the user
// answers yes
func confirmAction(output io.Writer, input io.Reader) bool {
	fmt.Fprint(output, "Continue? [y/N]: ")

	scanner := bufio.NewScanner(input)
	if !scanner.Scan() {
		return false
	}

	answer := strings.ToLower(strings.TrimSpace(scanner.Text()))
	return answer == "y" || answer == "yes"
}

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/harrison/yarascope/internal/config"
	"github.com/harrison/yarascope/internal/engine"
	"github.com/harrison/yarascope/internal/engine/yara"
	"github.com/harrison/yarascope/internal/exclusion"
	"github.com/harrison/yarascope/internal/history"
	"github.com/harrison/yarascope/internal/logger"
	"github.com/harrison/yarascope/internal/pathkey"
	"github.com/harrison/yarascope/internal/report"
	"github.com/harrison/yarascope/internal/scan"
)

// NewScanCommand creates the scan command
func NewScanCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan <rule-file> <root>",
		Short: "Scan a directory tree with a YARA rule file",
		Long: `Scan compiles the given rule file and scans every regular file under
the root directory against it, skipping excluded paths entirely.

The command exits 0 when nothing matched, 1 when at least one file
matched, 2 when the rule file failed to compile, and 3 when a
prerequisite was missing (rule file or root not usable).

Press Ctrl-C to stop a running scan; results gathered up to that
point are still reported.`,
		Args: cobra.ExactArgs(2),
		RunE: runScan,
	}

	cmd.Flags().String("config", "", "Path to config file (default: .yarascope/config.yaml)")
	cmd.Flags().StringArray("exclude", nil, "Path to exclude from the scan (repeatable)")
	cmd.Flags().String("exclusions-file", "", "Exclusion profile to load before scanning")
	cmd.Flags().String("save-exclusions", "", "Write the effective exclusions to this profile file")
	cmd.Flags().String("timeout", "", "Per-file rule evaluation timeout (e.g. 30s, 2m)")
	cmd.Flags().Int("progress-every", 0, "Files between progress checkpoints")
	cmd.Flags().String("log-level", "", "Log verbosity: trace, debug, info, warn, error")
	cmd.Flags().Bool("json", false, "Write the report as JSON to stdout")
	cmd.Flags().String("report-html", "", "Write an HTML report to this file")
	cmd.Flags().Bool("no-history", false, "Skip recording this scan in the history database")
	cmd.Flags().String("db-path", "", "Override history database path (for testing)")

	return cmd
}

func runScan(cmd *cobra.Command, args []string) error {
	// Set up signal handling so Ctrl-C cancels the walk at the next
	// checkpoint instead of killing the process outright
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := loadScanConfig(cmd)
	if err != nil {
		return err
	}

	// Logs go to stderr so --json output on stdout stays machine-readable
	log := logger.NewConsoleLogger(cmd.ErrOrStderr(), cfg.LogLevel)

	ruleFile := args[0]
	source, err := os.ReadFile(ruleFile)
	if err != nil {
		return &scan.PrerequisiteError{Reason: fmt.Sprintf("rule file %s: %v", ruleFile, err)}
	}

	root, err := pathkey.New(args[1])
	if err != nil {
		return &scan.PrerequisiteError{Reason: fmt.Sprintf("scan root %s: %v", args[1], err)}
	}
	rootInfo, err := os.Stat(root.String())
	if err != nil {
		return &scan.PrerequisiteError{Reason: fmt.Sprintf("scan root %s: %v", root, err)}
	}
	if !rootInfo.IsDir() {
		return &scan.PrerequisiteError{Reason: fmt.Sprintf("scan root %s is not a directory", root)}
	}

	excl, err := buildExclusions(cmd, cfg)
	if err != nil {
		return err
	}

	log.LogScanStart(ruleFile, root.String())

	compiler := yara.NewCompilerWithOptions(cfg.Namespace, cfg.ScanTimeout)
	session := scan.NewSession(compiler, scan.Options{
		Progress: func(scanned int, current pathkey.Key) {
			log.LogScanProgress(scanned, current.String())
		},
		OnFileError: func(err error) {
			log.LogWarn(err.Error())
		},
		ProgressEvery: cfg.ProgressEvery,
	})

	stats, store, runErr := session.Run(ctx, string(source), root, excl)

	cancelled := false
	if runErr != nil {
		var compileErr *engine.CompileError
		switch {
		case errors.As(runErr, &compileErr):
			return runErr
		case errors.Is(runErr, context.Canceled), errors.Is(runErr, context.DeadlineExceeded):
			// Partial results are still worth reporting
			cancelled = true
			log.LogWarn(fmt.Sprintf("scan cancelled after %d files; reporting partial results", stats.Scanned))
		default:
			return fmt.Errorf("scan failed: %w", runErr)
		}
	}

	exitCode := ExitOK
	if cancelled || stats.Matched > 0 {
		exitCode = ExitMatches
	}

	data := report.New(ruleFile, root.String(), stats, store, excludedPaths(excl))

	noHistory, _ := cmd.Flags().GetBool("no-history")
	if cfg.History.Enabled && !noHistory {
		scanID, histErr := recordHistory(cmd, cfg, data, exitCode)
		if histErr != nil {
			log.LogWarn(fmt.Sprintf("history not recorded: %v", histErr))
		}
		if scanID != "" {
			data.ScanID = scanID
		}
	}

	if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
		if err := report.WriteJSON(cmd.OutOrStdout(), data); err != nil {
			return fmt.Errorf("failed to write JSON report: %w", err)
		}
		// The human-readable summary still lands on stderr
		log.LogScanSummary(stats.Scanned, stats.Matched, stats.Errors, stats.Duration)
	} else {
		report.NewConsole(cmd.OutOrStdout()).WriteAll(data)
	}

	if htmlPath, _ := cmd.Flags().GetString("report-html"); htmlPath != "" {
		if err := writeHTMLReport(htmlPath, data); err != nil {
			return err
		}
		log.LogInfo(fmt.Sprintf("HTML report written to %s", htmlPath))
	}

	if savePath, _ := cmd.Flags().GetString("save-exclusions"); savePath != "" {
		if err := exclusion.SaveProfile(savePath, excl); err != nil {
			return fmt.Errorf("failed to save exclusions: %w", err)
		}
		log.LogInfo(fmt.Sprintf("Exclusion profile saved to %s", savePath))
	}

	if cancelled {
		return fmt.Errorf("scan cancelled: %w", runErr)
	}
	if stats.Matched > 0 {
		return ErrMatchesFound
	}
	return nil
}

// loadScanConfig loads the config file and merges in only the flags the
// user actually set, so flags take precedence without clobbering file values
func loadScanConfig(cmd *cobra.Command) (*config.Config, error) {
	var cfg *config.Config
	var err error
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		cfg, err = config.LoadConfig(path)
	} else {
		cfg, err = config.LoadConfigFromDir(".")
	}
	if err != nil {
		return nil, err
	}

	var timeoutPtr *time.Duration
	if cmd.Flags().Changed("timeout") {
		raw, _ := cmd.Flags().GetString("timeout")
		timeout, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid timeout format %q: %w", raw, err)
		}
		timeoutPtr = &timeout
	}

	var logLevelPtr *string
	if cmd.Flags().Changed("log-level") {
		level, _ := cmd.Flags().GetString("log-level")
		logLevelPtr = &level
	}

	var progressEveryPtr *int
	if cmd.Flags().Changed("progress-every") {
		every, _ := cmd.Flags().GetInt("progress-every")
		progressEveryPtr = &every
	}

	var exclusionsFilePtr *string
	if cmd.Flags().Changed("exclusions-file") {
		file, _ := cmd.Flags().GetString("exclusions-file")
		exclusionsFilePtr = &file
	}

	cfg.MergeWithFlags(timeoutPtr, logLevelPtr, progressEveryPtr, exclusionsFilePtr)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// buildExclusions assembles the exclusion set from the configured profile
// file plus any --exclude flags
func buildExclusions(cmd *cobra.Command, cfg *config.Config) (*exclusion.Set, error) {
	excl := exclusion.NewSet()
	if cfg.ExclusionsFile != "" {
		loaded, err := exclusion.LoadProfile(cfg.ExclusionsFile)
		if err != nil {
			return nil, err
		}
		excl = loaded
	}

	paths, _ := cmd.Flags().GetStringArray("exclude")
	for _, p := range paths {
		key, err := pathkey.New(p)
		if err != nil {
			return nil, fmt.Errorf("invalid exclusion %s: %w", p, err)
		}
		excl.Exclude(key)
	}

	return excl, nil
}

func excludedPaths(excl *exclusion.Set) []string {
	keys := excl.List()
	paths := make([]string, len(keys))
	for i, k := range keys {
		paths[i] = k.String()
	}
	return paths
}

// resolveHistoryDBPath picks the history database location. An explicit
// override wins, a customized history.db_path is used as a directory, and
// the default lands under the yarascope home so scans started from
// subdirectories share one database.
func resolveHistoryDBPath(override string, cfg *config.Config) (string, error) {
	if override != "" {
		return override, nil
	}
	if cfg.History.DBPath != config.DefaultConfig().History.DBPath {
		return filepath.Join(cfg.History.DBPath, "scans.db"), nil
	}
	return config.GetHistoryDBPath()
}

// recordHistory persists the finished scan and applies the retention policy.
// It returns the assigned scan ID; the ID is valid even when a retention
// step fails after the record was written.
func recordHistory(cmd *cobra.Command, cfg *config.Config, data *report.Data, exitCode int) (string, error) {
	override, _ := cmd.Flags().GetString("db-path")
	dbPath, err := resolveHistoryDBPath(override, cfg)
	if err != nil {
		return "", err
	}

	store, err := history.NewStore(dbPath)
	if err != nil {
		return "", fmt.Errorf("open history store: %w", err)
	}
	defer store.Close()

	// The scan context may already be cancelled; recording must still happen
	ctx := context.Background()

	rec := &history.ScanRecord{
		RuleFile: data.RuleFile,
		Root:     data.Root,
		Scanned:  data.Stats.Scanned,
		Matched:  data.Stats.Matched,
		Errors:   data.Stats.Errors,
		Duration: data.Stats.Duration,
		ExitCode: exitCode,
	}
	if err := store.RecordScan(ctx, rec, hitRecords(data.Hits)); err != nil {
		return "", fmt.Errorf("record scan: %w", err)
	}

	if _, err := store.CleanupOldScans(ctx, cfg.History.KeepScansDays); err != nil {
		return rec.ID, fmt.Errorf("cleanup old scans: %w", err)
	}
	if _, err := store.PruneToLimit(ctx, cfg.History.MaxScans); err != nil {
		return rec.ID, fmt.Errorf("prune scans: %w", err)
	}

	return rec.ID, nil
}

// hitRecords flattens scan hits into history rows. Rules keep their match
// order; tags are de-duplicated across rules.
func hitRecords(hits []scan.Hit) []history.HitRecord {
	records := make([]history.HitRecord, 0, len(hits))
	for _, hit := range hits {
		var rules []string
		var tags []string
		seen := make(map[string]bool)
		for _, rule := range hit.Rules {
			rules = append(rules, rule.Identifier)
			for _, tag := range rule.Tags {
				if !seen[tag] {
					seen[tag] = true
					tags = append(tags, tag)
				}
			}
		}
		records = append(records, history.HitRecord{
			Path:     hit.Path.String(),
			Filename: hit.Filename,
			MD5:      hit.Hashes.MD5,
			SHA1:     hit.Hashes.SHA1,
			SHA256:   hit.Hashes.SHA256,
			Rules:    rules,
			Tags:     tags,
		})
	}
	return records
}

func writeHTMLReport(path string, data *report.Data) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create HTML report: %w", err)
	}
	defer f.Close()

	if err := report.WriteHTML(f, data); err != nil {
		return fmt.Errorf("failed to write HTML report: %w", err)
	}
	return nil
}

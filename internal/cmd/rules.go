package cmd

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/harrison/yarascope/internal/engine"
	"github.com/harrison/yarascope/internal/engine/yara"
	"github.com/harrison/yarascope/internal/ruleinfo"
	"github.com/harrison/yarascope/internal/rulewatch"
	"github.com/harrison/yarascope/internal/scan"
)

// NewRulesCommand creates the rules command with its subcommands
func NewRulesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Inspect and check YARA rule files",
		Long: `Work with rule files without running a scan: summarize their
declarations, compile-check them, or watch them for edits and
recheck on every save.`,
	}

	cmd.AddCommand(newRulesInfoCommand())
	cmd.AddCommand(newRulesCheckCommand())
	cmd.AddCommand(newRulesWatchCommand())

	return cmd
}

func newRulesInfoCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "info <rule-file>",
		Short: "Summarize the declarations in a rule file",
		Args:  cobra.ExactArgs(1),
		RunE:  runRulesInfo,
	}
}

func runRulesInfo(cmd *cobra.Command, args []string) error {
	source, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read rule file: %w", err)
	}

	info := ruleinfo.Analyze(string(source))

	output := cmd.OutOrStdout()
	cyan := color.New(color.FgCyan)

	cyan.Fprintf(output, "\n=== Rule File: %s ===\n\n", args[0])
	fmt.Fprintf(output, "Summary: %s\n", info.Summary())
	if len(info.Imports) > 0 {
		fmt.Fprintf(output, "Imports: %s\n", strings.Join(info.Imports, ", "))
	}

	if len(info.Rules) == 0 {
		fmt.Fprintln(output, "No rule declarations found.")
		return nil
	}

	cyan.Fprintln(output, "\nRules:")
	for _, rule := range info.Rules {
		name := rule.Name
		if rule.Private {
			name = "private " + name
		}
		if rule.Global {
			name = "global " + name
		}
		fmt.Fprintf(output, "\n  %s%s\n", name, formatRuleTags(rule.Tags))
		fmt.Fprintf(output, "    strings: %d\n", rule.Strings)
		fmt.Fprintf(output, "    meta: %d\n", rule.Meta)
		if !rule.HasCondition {
			fmt.Fprintf(output, "    condition: missing\n")
		}
	}

	return nil
}

func formatRuleTags(tags []string) string {
	if len(tags) == 0 {
		return ""
	}
	return fmt.Sprintf(" [%s]", strings.Join(tags, ", "))
}

func newRulesCheckCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check <rule-file>",
		Short: "Compile a rule file and report errors",
		Long: `Check compiles the rule file without scanning anything.

Exits 0 when compilation succeeds, 2 when it fails, and 3 when the
file cannot be read.`,
		Args: cobra.ExactArgs(1),
		RunE: runRulesCheck,
	}

	cmd.Flags().String("namespace", "", "Namespace to compile the rules under")

	return cmd
}

func runRulesCheck(cmd *cobra.Command, args []string) error {
	source, err := os.ReadFile(args[0])
	if err != nil {
		return &scan.PrerequisiteError{Reason: fmt.Sprintf("rule file %s: %v", args[0], err)}
	}

	namespace, _ := cmd.Flags().GetString("namespace")
	compiler := yara.NewCompilerWithOptions(namespace, 0)

	output := cmd.OutOrStdout()

	rules, err := compiler.Compile(string(source))
	if err != nil {
		color.New(color.FgRed).Fprintf(output, "✗ Compilation failed for %s\n", args[0])
		var compileErr *engine.CompileError
		if errors.As(err, &compileErr) {
			fmt.Fprintf(output, "  Error: %s\n", compileErr.Detail)
		}
		return err
	}
	engine.Release(rules)

	info := ruleinfo.Analyze(string(source))
	color.New(color.FgGreen).Fprintf(output, "✓ Compiled %s successfully (%s)\n", args[0], info.Summary())

	return nil
}

func newRulesWatchCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch <rule-file>",
		Short: "Watch a rule file and recheck it on every save",
		Long: `Watch compile-checks the rule file, then watches it for changes and
rechecks after every save until interrupted with Ctrl-C.

Atomic saves (editors that replace the file by rename) are handled;
rapid write bursts are coalesced into a single recheck.`,
		Args: cobra.ExactArgs(1),
		RunE: runRulesWatch,
	}

	cmd.Flags().String("namespace", "", "Namespace to compile the rules under")

	return cmd
}

func runRulesWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	watcher, err := rulewatch.New(args[0])
	if err != nil {
		return &scan.PrerequisiteError{Reason: fmt.Sprintf("rule file %s: %v", args[0], err)}
	}
	defer watcher.Close()

	namespace, _ := cmd.Flags().GetString("namespace")
	compiler := yara.NewCompilerWithOptions(namespace, 0)

	output := cmd.OutOrStdout()
	green := color.New(color.FgGreen)
	red := color.New(color.FgRed)
	yellow := color.New(color.FgYellow)

	checkOnce := func() {
		ts := time.Now().Format("15:04:05")

		source, err := os.ReadFile(watcher.Path())
		if err != nil {
			red.Fprintf(output, "[%s] ✗ %s: %v\n", ts, watcher.Path(), err)
			return
		}

		rules, err := compiler.Compile(string(source))
		if err != nil {
			detail := err.Error()
			var compileErr *engine.CompileError
			if errors.As(err, &compileErr) {
				detail = compileErr.Detail
			}
			red.Fprintf(output, "[%s] ✗ %s: %s\n", ts, watcher.Path(), detail)
			return
		}
		engine.Release(rules)

		info := ruleinfo.Analyze(string(source))
		green.Fprintf(output, "[%s] ✓ %s: %s\n", ts, watcher.Path(), info.Summary())
	}

	fmt.Fprintf(output, "Watching %s (Ctrl-C to stop)\n", watcher.Path())
	checkOnce()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event := <-watcher.Events():
			switch event.Op {
			case rulewatch.FileRemoved:
				yellow.Fprintf(output, "[%s] %s removed; waiting for it to return\n",
					event.Timestamp.Format("15:04:05"), watcher.Path())
			case rulewatch.FileChanged:
				checkOnce()
			}
		case err := <-watcher.Errors():
			yellow.Fprintf(output, "watch error: %v\n", err)
		}
	}
}

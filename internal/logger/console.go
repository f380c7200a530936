// Package logger provides logging for yarascope commands.
//
// The console logger writes timestamped, level-filtered lines and adds
// scan-specific events (start, progress, summary) on top of the generic
// levels. Output is colorized when writing to a terminal. All methods are
// safe for concurrent use.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
)

// Log level constants for filtering
const (
	levelTrace int = 0
	levelDebug int = 1
	levelInfo  int = 2
	levelWarn  int = 3
	levelError int = 4
)

// Logger is the logging surface the commands depend on.
type Logger interface {
	LogTrace(message string)
	LogDebug(message string)
	LogInfo(message string)
	LogWarn(message string)
	LogError(message string)
	LogScanStart(ruleFile, root string)
	LogScanProgress(scanned int, current string)
	LogScanSummary(scanned, matched, errors int, duration time.Duration)
}

// ConsoleLogger logs to a writer with [HH:MM:SS] timestamps and thread
// safety. It filters messages below the configured level and colorizes
// terminal output.
type ConsoleLogger struct {
	writer      io.Writer
	logLevel    string
	mutex       sync.Mutex
	colorOutput bool
}

// NewConsoleLogger creates a ConsoleLogger writing to writer. A nil writer
// silently discards everything. Valid levels are trace, debug, info, warn,
// error (case-insensitive); empty or unknown levels default to "info".
func NewConsoleLogger(writer io.Writer, logLevel string) *ConsoleLogger {
	return &ConsoleLogger{
		writer:      writer,
		logLevel:    normalizeLogLevel(logLevel),
		colorOutput: isTerminal(writer),
	}
}

// isTerminal checks if the writer is a terminal that supports colors.
// Returns true for os.Stdout and os.Stderr when they are TTYs.
func isTerminal(w io.Writer) bool {
	if w == nil {
		return false
	}
	if w == os.Stdout || w == os.Stderr {
		// The color library's detection also honors NO_COLOR.
		return !color.NoColor
	}
	return false
}

// normalizeLogLevel converts a log level string to lowercase and validates
// it. Returns "info" for empty or invalid levels.
func normalizeLogLevel(level string) string {
	normalized := strings.ToLower(strings.TrimSpace(level))

	validLevels := map[string]bool{
		"trace": true,
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}

	if validLevels[normalized] {
		return normalized
	}
	return "info"
}

// shouldLog checks if a message at the given level should be logged.
func (cl *ConsoleLogger) shouldLog(messageLevel string) bool {
	return logLevelToInt(messageLevel) >= logLevelToInt(cl.logLevel)
}

func logLevelToInt(level string) int {
	switch level {
	case "trace":
		return levelTrace
	case "debug":
		return levelDebug
	case "info":
		return levelInfo
	case "warn":
		return levelWarn
	case "error":
		return levelError
	default:
		return levelInfo
	}
}

// LogTrace logs a trace-level message (most verbose).
func (cl *ConsoleLogger) LogTrace(message string) {
	cl.logWithLevel("TRACE", message)
}

// LogDebug logs a debug-level message.
func (cl *ConsoleLogger) LogDebug(message string) {
	cl.logWithLevel("DEBUG", message)
}

// LogInfo logs an info-level message.
func (cl *ConsoleLogger) LogInfo(message string) {
	cl.logWithLevel("INFO", message)
}

// LogWarn logs a warning-level message.
func (cl *ConsoleLogger) LogWarn(message string) {
	cl.logWithLevel("WARN", message)
}

// LogError logs an error-level message.
func (cl *ConsoleLogger) LogError(message string) {
	cl.logWithLevel("ERROR", message)
}

// logWithLevel writes "[HH:MM:SS] [LEVEL] message" if filtering allows it.
func (cl *ConsoleLogger) logWithLevel(level string, message string) {
	if cl.writer == nil {
		return
	}
	if !cl.shouldLog(strings.ToLower(level)) {
		return
	}

	cl.mutex.Lock()
	defer cl.mutex.Unlock()

	ts := timestamp()
	var formatted string
	if cl.colorOutput {
		formatted = fmt.Sprintf("[%s] [%s] %s\n", ts, coloredLevel(level), message)
	} else {
		formatted = fmt.Sprintf("[%s] [%s] %s\n", ts, level, message)
	}

	cl.writer.Write([]byte(formatted))
}

func coloredLevel(level string) string {
	switch strings.ToUpper(level) {
	case "TRACE":
		return color.New(color.FgHiBlack).Sprint(level)
	case "DEBUG":
		return color.New(color.FgCyan).Sprint(level)
	case "INFO":
		return color.New(color.FgBlue).Sprint(level)
	case "WARN":
		return color.New(color.FgYellow).Sprint(level)
	case "ERROR":
		return color.New(color.FgRed).Sprint(level)
	default:
		return level
	}
}

// LogScanStart logs the beginning of a scan at INFO level.
// Format: "[HH:MM:SS] Scanning <root> with rules from <ruleFile>"
func (cl *ConsoleLogger) LogScanStart(ruleFile, root string) {
	if cl.writer == nil || !cl.shouldLog("info") {
		return
	}

	cl.mutex.Lock()
	defer cl.mutex.Unlock()

	ts := timestamp()
	var message string
	if cl.colorOutput {
		rootText := color.New(color.Bold).Sprint(root)
		message = fmt.Sprintf("[%s] Scanning %s with rules from %s\n", ts, rootText, ruleFile)
	} else {
		message = fmt.Sprintf("[%s] Scanning %s with rules from %s\n", ts, root, ruleFile)
	}

	cl.writer.Write([]byte(message))
}

// LogScanProgress logs a checkpoint at INFO level. The walk is lazy, so
// there is no total to report a percentage against; the running count is the
// progress.
// Format: "[HH:MM:SS] Progress: <n> files scanned (<current>)"
func (cl *ConsoleLogger) LogScanProgress(scanned int, current string) {
	if cl.writer == nil || !cl.shouldLog("info") {
		return
	}

	cl.mutex.Lock()
	defer cl.mutex.Unlock()

	ts := timestamp()
	progressMsg := fmt.Sprintf("Progress: %d files scanned (%s)", scanned, current)
	if cl.colorOutput {
		progressMsg = color.New(color.FgCyan).Sprint(progressMsg)
	}

	cl.writer.Write([]byte(fmt.Sprintf("[%s] %s\n", ts, progressMsg)))
}

// LogScanSummary logs the end-of-scan counters at INFO level.
// Format:
//
//	[HH:MM:SS] === Scan Summary ===
//	[HH:MM:SS] Files scanned: <n>
//	[HH:MM:SS] Matched: <n>
//	[HH:MM:SS] Errors: <n>
//	[HH:MM:SS] Duration: <d>
func (cl *ConsoleLogger) LogScanSummary(scanned, matched, errors int, duration time.Duration) {
	if cl.writer == nil || !cl.shouldLog("info") {
		return
	}

	cl.mutex.Lock()
	defer cl.mutex.Unlock()

	ts := timestamp()
	durationStr := formatDuration(duration)

	var output string
	if cl.colorOutput {
		header := color.New(color.Bold).Sprint("=== Scan Summary ===")
		output = fmt.Sprintf("[%s] %s\n", ts, header)
		output += fmt.Sprintf("[%s] Files scanned: %d\n", ts, scanned)

		matchedText := fmt.Sprintf("Matched: %d", matched)
		if matched > 0 {
			matchedText = color.New(color.FgRed).Sprint(matchedText)
		} else {
			matchedText = color.New(color.FgGreen).Sprint(matchedText)
		}
		output += fmt.Sprintf("[%s] %s\n", ts, matchedText)

		if errors > 0 {
			errorsText := color.New(color.FgYellow).Sprintf("Errors: %d", errors)
			output += fmt.Sprintf("[%s] %s\n", ts, errorsText)
		} else {
			output += fmt.Sprintf("[%s] Errors: %d\n", ts, errors)
		}

		output += fmt.Sprintf("[%s] Duration: %s\n", ts, durationStr)
	} else {
		output = fmt.Sprintf("[%s] === Scan Summary ===\n", ts)
		output += fmt.Sprintf("[%s] Files scanned: %d\n", ts, scanned)
		output += fmt.Sprintf("[%s] Matched: %d\n", ts, matched)
		output += fmt.Sprintf("[%s] Errors: %d\n", ts, errors)
		output += fmt.Sprintf("[%s] Duration: %s\n", ts, durationStr)
	}

	cl.writer.Write([]byte(output))
}

// timestamp returns the current time formatted as "15:04:05" (HH:MM:SS).
func timestamp() string {
	return time.Now().Format("15:04:05")
}

// formatDuration converts a time.Duration to a human-readable string.
// Examples: "5s", "1m30s", "2h15m"
func formatDuration(d time.Duration) string {
	switch {
	case d >= time.Hour:
		hours := d / time.Hour
		remainder := d % time.Hour
		if remainder == 0 {
			return fmt.Sprintf("%dh", hours)
		}
		minutes := remainder / time.Minute
		remainder = remainder % time.Minute
		if remainder == 0 {
			return fmt.Sprintf("%dh%dm", hours, minutes)
		}
		seconds := remainder / time.Second
		return fmt.Sprintf("%dh%dm%ds", hours, minutes, seconds)
	case d >= time.Minute:
		minutes := d / time.Minute
		remainder := d % time.Minute
		if remainder == 0 {
			return fmt.Sprintf("%dm", minutes)
		}
		seconds := remainder / time.Second
		return fmt.Sprintf("%dm%ds", minutes, seconds)
	default:
		return fmt.Sprintf("%ds", int64(d.Seconds()))
	}
}

// NoOpLogger is a Logger implementation that discards all log messages.
// Useful for testing or when logging is disabled.
type NoOpLogger struct{}

// NewNoOpLogger creates a NoOpLogger instance.
func NewNoOpLogger() *NoOpLogger {
	return &NoOpLogger{}
}

func (n *NoOpLogger) LogTrace(message string) {}
func (n *NoOpLogger) LogDebug(message string) {}
func (n *NoOpLogger) LogInfo(message string)  {}
func (n *NoOpLogger) LogWarn(message string)  {}
func (n *NoOpLogger) LogError(message string) {}

func (n *NoOpLogger) LogScanStart(ruleFile, root string)          {}
func (n *NoOpLogger) LogScanProgress(scanned int, current string) {}
func (n *NoOpLogger) LogScanSummary(s, m, e int, d time.Duration) {}

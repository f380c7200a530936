package cmd

import (
	"errors"

	"github.com/harrison/yarascope/internal/engine"
	"github.com/harrison/yarascope/internal/scan"
)

// Process exit codes reported by the yarascope binary.
const (
	// ExitOK means the scan completed with no matches
	ExitOK = 0
	// ExitMatches means the scan completed and at least one file matched
	ExitMatches = 1
	// ExitCompileError means the rule file failed to compile
	ExitCompileError = 2
	// ExitPrerequisite means a scan precondition was not met
	ExitPrerequisite = 3
)

// ErrMatchesFound is returned by the scan command when files matched.
// It carries no message worth printing; it exists so main can map the
// result to the matches exit code.
var ErrMatchesFound = errors.New("matches found")

// ExitCode maps a command error to the process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	if errors.Is(err, ErrMatchesFound) {
		return ExitMatches
	}
	var compileErr *engine.CompileError
	if errors.As(err, &compileErr) {
		return ExitCompileError
	}
	var prereqErr *scan.PrerequisiteError
	if errors.As(err, &prereqErr) {
		return ExitPrerequisite
	}
	// Any other failure, including a cancelled scan, is a general error
	return 1
}

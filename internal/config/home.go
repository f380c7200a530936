package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// GetYarascopeHome returns the yarascope home directory
// Priority order:
//  1. YARASCOPE_HOME environment variable (if set)
//  2. Repository root (detected by a .yarascope-root marker or go.mod)
//  3. Current working directory (fallback)
//
// The directory is created if it doesn't exist
func GetYarascopeHome() (string, error) {
	// Try env var first
	if home := os.Getenv("YARASCOPE_HOME"); home != "" {
		return home, nil
	}

	// Try to find the repo root by looking for a marker or go.mod
	repoRoot, err := findRepoRoot()
	if err == nil && repoRoot != "" {
		home := filepath.Join(repoRoot, ".yarascope")
		// Ensure directory exists
		if err := os.MkdirAll(home, 0755); err != nil {
			return "", fmt.Errorf("create yarascope home directory: %w", err)
		}
		return home, nil
	}

	// Fallback to current working directory
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("get working directory: %w", err)
	}

	home := filepath.Join(cwd, ".yarascope")

	// Ensure directory exists
	if err := os.MkdirAll(home, 0755); err != nil {
		return "", fmt.Errorf("create yarascope home directory: %w", err)
	}

	return home, nil
}

// findRepoRoot finds the repository root by looking for go.mod containing
// the yarascope module path, or a .yarascope-root marker
func findRepoRoot() (string, error) {
	// Start from current working directory
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}

	current := cwd
	for {
		// First check for .yarascope-root marker file (highest priority)
		markerPath := filepath.Join(current, ".yarascope-root")
		if _, err := os.Stat(markerPath); err == nil {
			return current, nil
		}

		// Check for go.mod with the yarascope module path
		goModPath := filepath.Join(current, "go.mod")
		if data, err := os.ReadFile(goModPath); err == nil {
			if strings.Contains(string(data), "github.com/harrison/yarascope") {
				return current, nil
			}
		}

		// Move up one directory
		parent := filepath.Dir(current)
		if parent == current {
			// Reached filesystem root
			break
		}
		current = parent
	}

	return "", fmt.Errorf("yarascope repository root not found (looking for .yarascope-root or go.mod with github.com/harrison/yarascope)")
}

// GetHistoryDBPath returns the absolute path to the scan history database
// Always returns: $YARASCOPE_HOME/history/scans.db
func GetHistoryDBPath() (string, error) {
	home, err := GetYarascopeHome()
	if err != nil {
		return "", err
	}

	return filepath.Join(home, "history", "scans.db"), nil
}

// GetHistoryDir returns the scan history directory path
func GetHistoryDir() (string, error) {
	home, err := GetYarascopeHome()
	if err != nil {
		return "", err
	}

	historyDir := filepath.Join(home, "history")

	// Ensure directory exists
	if err := os.MkdirAll(historyDir, 0755); err != nil {
		return "", fmt.Errorf("create history directory: %w", err)
	}

	return historyDir, nil
}

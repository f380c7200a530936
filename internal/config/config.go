package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// HistoryConfig represents scan history persistence configuration
type HistoryConfig struct {
	// Enabled enables recording scans to the history database
	Enabled bool `yaml:"enabled"`

	// DBPath is the path to the history database directory
	DBPath string `yaml:"db_path"`

	// KeepScansDays is the number of days to keep scan records
	KeepScansDays int `yaml:"keep_scans_days"`

	// MaxScans is the maximum number of scan records to keep
	MaxScans int `yaml:"max_scans"`
}

// Config represents yarascope configuration options
type Config struct {
	// ScanTimeout is the per-file rule evaluation timeout
	ScanTimeout time.Duration `yaml:"scan_timeout"`

	// LogLevel sets the logging verbosity (trace, debug, info, warn, error)
	LogLevel string `yaml:"log_level"`

	// ProgressEvery is the file-count interval between progress checkpoints
	ProgressEvery int `yaml:"progress_every"`

	// Namespace is the namespace rule sources are compiled under
	Namespace string `yaml:"namespace"`

	// ExclusionsFile is an exclusion profile loaded before every scan
	ExclusionsFile string `yaml:"exclusions_file"`

	// History contains scan history persistence configuration
	History HistoryConfig `yaml:"history"`
}

// DefaultConfig returns a Config with sensible default values
func DefaultConfig() *Config {
	return &Config{
		ScanTimeout:   30 * time.Second,
		LogLevel:      "info",
		ProgressEvery: 10,
		Namespace:     "yarascope",
		History: HistoryConfig{
			Enabled:       true,
			DBPath:        ".yarascope/history",
			KeepScansDays: 90,
			MaxScans:      500,
		},
	}
}

// LoadConfig loads configuration from the specified file path
// If the file doesn't exist, returns default configuration without error
// If the file exists but is malformed, returns an error
func LoadConfig(path string) (*Config, error) {
	// Start with defaults
	cfg := DefaultConfig()

	// Check if file exists
	if _, err := os.Stat(path); os.IsNotExist(err) {
		// File doesn't exist, return defaults (not an error)
		return cfg, nil
	}

	// Read the file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Parse YAML
	// Use a temporary struct to handle duration parsing
	type yamlConfig struct {
		ScanTimeout    string        `yaml:"scan_timeout"`
		LogLevel       string        `yaml:"log_level"`
		ProgressEvery  int           `yaml:"progress_every"`
		Namespace      string        `yaml:"namespace"`
		ExclusionsFile string        `yaml:"exclusions_file"`
		History        HistoryConfig `yaml:"history"`
	}

	var yamlCfg yamlConfig
	if err := yaml.Unmarshal(data, &yamlCfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Apply non-zero values from file (merging with defaults)
	if yamlCfg.ScanTimeout != "" {
		timeout, err := time.ParseDuration(yamlCfg.ScanTimeout)
		if err != nil {
			return nil, fmt.Errorf("invalid scan_timeout format %q: %w", yamlCfg.ScanTimeout, err)
		}
		cfg.ScanTimeout = timeout
	}
	if yamlCfg.LogLevel != "" {
		cfg.LogLevel = yamlCfg.LogLevel
	}
	if yamlCfg.ProgressEvery != 0 {
		cfg.ProgressEvery = yamlCfg.ProgressEvery
	}
	if yamlCfg.Namespace != "" {
		cfg.Namespace = yamlCfg.Namespace
	}
	if yamlCfg.ExclusionsFile != "" {
		cfg.ExclusionsFile = yamlCfg.ExclusionsFile
	}

	// Merge history config - need to check if the section was provided at all
	// We create a temporary unmarshal to detect if the history section exists
	var rawMap map[string]interface{}
	if err := yaml.Unmarshal(data, &rawMap); err == nil {
		if historySection, exists := rawMap["history"]; exists && historySection != nil {
			// History section exists in YAML, merge it
			history := yamlCfg.History

			// For the nested struct we need to check which fields were actually set
			historyMap, _ := historySection.(map[string]interface{})

			if _, exists := historyMap["enabled"]; exists {
				cfg.History.Enabled = history.Enabled
			}
			if _, exists := historyMap["db_path"]; exists {
				// Explicitly set db_path, even if empty string
				cfg.History.DBPath = history.DBPath
			}
			if _, exists := historyMap["keep_scans_days"]; exists {
				cfg.History.KeepScansDays = history.KeepScansDays
			}
			if _, exists := historyMap["max_scans"]; exists {
				cfg.History.MaxScans = history.MaxScans
			}
		}
	}

	return cfg, nil
}

// LoadConfigFromDir loads configuration from .yarascope/config.yaml in the specified directory
// If the directory or file doesn't exist, returns default configuration without error
func LoadConfigFromDir(dir string) (*Config, error) {
	configPath := filepath.Join(dir, ".yarascope", "config.yaml")
	return LoadConfig(configPath)
}

// MergeWithFlags merges CLI flags into the configuration
// Non-nil flag values override configuration values
// This allows CLI flags to take precedence over config file settings
func (c *Config) MergeWithFlags(scanTimeout *time.Duration, logLevel *string, progressEvery *int, exclusionsFile *string) {
	if scanTimeout != nil {
		c.ScanTimeout = *scanTimeout
	}
	if logLevel != nil {
		c.LogLevel = *logLevel
	}
	if progressEvery != nil {
		c.ProgressEvery = *progressEvery
	}
	if exclusionsFile != nil {
		c.ExclusionsFile = *exclusionsFile
	}
}

// Validate validates the configuration values
// Returns an error if any values are invalid
func (c *Config) Validate() error {
	// Timeout can be 0 (no timeout) or positive, negative is invalid
	if c.ScanTimeout < 0 {
		return fmt.Errorf("scan_timeout must be >= 0, got %v", c.ScanTimeout)
	}

	// Validate log_level
	validLevels := map[string]bool{
		"trace": true,
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[c.LogLevel] {
		return fmt.Errorf("invalid log_level %q, must be one of: trace, debug, info, warn, error", c.LogLevel)
	}

	if c.ProgressEvery <= 0 {
		return fmt.Errorf("progress_every must be > 0, got %d", c.ProgressEvery)
	}

	if c.Namespace == "" {
		return fmt.Errorf("namespace cannot be empty")
	}

	// Validate history configuration
	if c.History.Enabled {
		if c.History.DBPath == "" {
			return fmt.Errorf("history.db_path cannot be empty when history is enabled")
		}
		if c.History.KeepScansDays < 0 {
			return fmt.Errorf("history.keep_scans_days must be >= 0, got %d", c.History.KeepScansDays)
		}
		if c.History.MaxScans < 0 {
			return fmt.Errorf("history.max_scans must be >= 0, got %d", c.History.MaxScans)
		}
	}

	return nil
}

// Package config provides configuration types, defaults and validation for maptel.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/zjrosen/maptel/internal/log"
	"github.com/zjrosen/maptel/internal/tracing"
)

// Config holds all configuration options for maptel.
type Config struct {
	Log     LogConfig     `mapstructure:"log"`
	Cache   CacheConfig   `mapstructure:"cache"`
	Tracing TracingConfig `mapstructure:"tracing"`
	Shell   ShellConfig   `mapstructure:"shell"`
}

// LogConfig controls the diagnostic log.
type LogConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`  // empty means stderr
	Level   string `mapstructure:"level"` // debug, info (default), warn, error
}

// CacheConfig controls the resolution cache.
type CacheConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Expiration      time.Duration `mapstructure:"expiration"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

// TracingConfig holds OpenTelemetry settings.
type TracingConfig struct {
	Enabled      bool    `mapstructure:"enabled"`
	Exporter     string  `mapstructure:"exporter"` // none, file (default), stdout, otlp
	FilePath     string  `mapstructure:"file_path"`
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	SampleRate   float64 `mapstructure:"sample_rate"`
}

// ShellConfig holds interactive shell settings.
type ShellConfig struct {
	Prompt string `mapstructure:"prompt"`
	Color  bool   `mapstructure:"color"`
}

// ProviderConfig converts the tracing section into a tracing.Config.
func (t TracingConfig) ProviderConfig() tracing.Config {
	cfg := tracing.DefaultConfig()
	cfg.Enabled = t.Enabled
	if t.Exporter != "" {
		cfg.Exporter = t.Exporter
	}
	cfg.FilePath = t.FilePath
	if t.OTLPEndpoint != "" {
		cfg.OTLPEndpoint = t.OTLPEndpoint
	}
	if t.SampleRate > 0 {
		cfg.SampleRate = t.SampleRate
	}
	return cfg
}

// DefaultTracesFilePath returns the default JSONL trace file location.
func DefaultTracesFilePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".maptel", "traces", "traces.jsonl")
	}
	return filepath.Join(home, ".config", "maptel", "traces", "traces.jsonl")
}

// Defaults returns the configuration used when no file is present.
func Defaults() Config {
	return Config{
		Log: LogConfig{
			Enabled: false,
			Level:   "info",
		},
		Cache: CacheConfig{
			Enabled:         false,
			Expiration:      10 * time.Minute,
			CleanupInterval: 30 * time.Minute,
		},
		Tracing: TracingConfig{
			Enabled:      false,
			Exporter:     "file",
			FilePath:     DefaultTracesFilePath(),
			OTLPEndpoint: tracing.DefaultOTLPEndpoint,
			SampleRate:   1.0,
		},
		Shell: ShellConfig{
			Prompt: "maptel> ",
			Color:  true,
		},
	}
}

// Validate checks every section and returns the first problem found.
func Validate(cfg Config) error {
	if err := ValidateLog(cfg.Log); err != nil {
		return err
	}
	if err := ValidateCache(cfg.Cache); err != nil {
		return err
	}
	return ValidateTracing(cfg.Tracing)
}

// ValidateLog checks the log section.
func ValidateLog(l LogConfig) error {
	if _, err := log.ParseLevel(l.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	return nil
}

// ValidateCache checks the cache section. Durations only matter when the
// cache is enabled.
func ValidateCache(c CacheConfig) error {
	if !c.Enabled {
		return nil
	}
	if c.Expiration <= 0 {
		return fmt.Errorf("cache.expiration must be positive, got %v", c.Expiration)
	}
	if c.CleanupInterval <= 0 {
		return fmt.Errorf("cache.cleanup_interval must be positive, got %v", c.CleanupInterval)
	}
	return nil
}

// ValidateTracing checks tracing configuration for errors.
// Returns nil if the configuration is valid (empty values use defaults).
func ValidateTracing(t TracingConfig) error {
	if t.SampleRate < 0.0 || t.SampleRate > 1.0 {
		return fmt.Errorf("tracing.sample_rate must be between 0.0 and 1.0, got %v", t.SampleRate)
	}

	switch t.Exporter {
	case "", "none", "file", "stdout", "otlp":
	default:
		return fmt.Errorf("tracing.exporter must be \"none\", \"file\", \"stdout\", or \"otlp\", got %q", t.Exporter)
	}

	if t.Enabled {
		if t.Exporter == "file" && t.FilePath == "" {
			return fmt.Errorf("tracing.file_path is required when exporter is \"file\"")
		}
		if t.Exporter == "otlp" && t.OTLPEndpoint == "" {
			return fmt.Errorf("tracing.otlp_endpoint is required when exporter is \"otlp\"")
		}
	}
	return nil
}

// DefaultConfigTemplate returns the commented YAML written by `config init`.
func DefaultConfigTemplate() string {
	return `# maptel configuration

# Diagnostic log of every registry call.
log:
  enabled: false
  # Empty path logs to stderr.
  path: ""
  # debug, info, warn or error. Cycles are reported at warn.
  level: info

# Memoises transform results. Entries are invalidated when a table changes.
cache:
  enabled: false
  expiration: 10m
  cleanup_interval: 30m

# OpenTelemetry spans for create/destroy/insert/erase/transform.
tracing:
  enabled: false
  # none, file, stdout or otlp
  exporter: file
  file_path: ~/.config/maptel/traces/traces.jsonl
  otlp_endpoint: localhost:4317
  sample_rate: 1.0

shell:
  prompt: "maptel> "
  color: true
`
}

// WriteDefaultConfig creates a config file at the given path with default settings and comments.
// Creates the parent directory if it doesn't exist.
func WriteDefaultConfig(configPath string) error {
	log.Debug(log.CatConfig, "Writing default config", "path", configPath)

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		log.ErrorErr(log.CatConfig, "Failed to create config directory", err, "dir", dir)
		return fmt.Errorf("creating config directory: %w", err)
	}

	if err := os.WriteFile(configPath, []byte(DefaultConfigTemplate()), 0o600); err != nil {
		log.ErrorErr(log.CatConfig, "Failed to write config file", err, "path", configPath)
		return fmt.Errorf("writing config file: %w", err)
	}

	log.Info(log.CatConfig, "Created default config", "path", configPath)
	return nil
}

// ExpandHome replaces a leading "~/" with the user's home directory.
func ExpandHome(path string) string {
	if len(path) < 2 || path[:2] != "~/" {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}

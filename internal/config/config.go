// Package config loads gitundo settings from a YAML file, environment
// variables, and defaults, in that order of precedence (highest first:
// env, file, defaults).
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// Defaults applied when neither the config file nor the environment sets
// a value.
const (
	DefaultStateDir         = ".gitundo"
	DefaultGitBinary        = "git"
	DefaultGitTimeoutSec    = 30
	DefaultBackupPrefix     = "gitundo-backup"
	DefaultLogLevel         = "info"
	DefaultObsSampleRatio   = 0.0
	DefaultObsEnvironment   = ""
	DefaultMetricsListenOff = ""
)

// Validation errors.
var (
	ErrNonPositiveTimeout = errors.New("git timeout must be positive")
	ErrEmptyStateDir      = errors.New("state dir must not be empty")
	ErrBadBackupPrefix    = errors.New("backup prefix is not a valid branch name fragment")
	ErrBadSampleRatio     = errors.New("sample ratio must be between 0 and 1")
	ErrBadLogLevel        = errors.New("log level must be debug, info, warn, or error")
)

// Config is the top-level configuration struct for gitundo.
// Field tags use mapstructure for viper unmarshalling.
type Config struct {
	StateDir      string              `mapstructure:"state_dir"`
	Git           GitConfig           `mapstructure:"git"`
	Rollback      RollbackConfig      `mapstructure:"rollback"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

// GitConfig holds the git subprocess settings.
type GitConfig struct {
	// Binary is the git executable name or path.
	Binary string `mapstructure:"binary"`

	// TimeoutSec bounds each git subprocess invocation.
	TimeoutSec int `mapstructure:"timeout_sec"`
}

// RollbackConfig holds rollback engine settings.
type RollbackConfig struct {
	// BackupPrefix names the backup branches created before a hard reset.
	BackupPrefix string `mapstructure:"backup_prefix"`
}

// ObservabilityConfig holds telemetry settings.
type ObservabilityConfig struct {
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	OTLPHeaders  string  `mapstructure:"otlp_headers"`
	OTLPInsecure bool    `mapstructure:"otlp_insecure"`
	DebugTrace   bool    `mapstructure:"debug_trace"`
	SampleRatio  float64 `mapstructure:"sample_ratio"`
	Environment  string  `mapstructure:"environment"`
	LogLevel     string  `mapstructure:"log_level"`
	LogJSON      bool    `mapstructure:"log_json"`

	// MetricsListen serves /metrics and /healthz when non-empty, e.g.
	// "localhost:9464". Only meaningful for the long-lived MCP mode.
	MetricsListen string `mapstructure:"metrics_listen"`
}

// Validate checks cross-field constraints after unmarshalling.
func (c *Config) Validate() error {
	if c.StateDir == "" {
		return ErrEmptyStateDir
	}

	if c.Git.TimeoutSec <= 0 {
		return ErrNonPositiveTimeout
	}

	if !validBranchFragment(c.Rollback.BackupPrefix) {
		return fmt.Errorf("%w: %q", ErrBadBackupPrefix, c.Rollback.BackupPrefix)
	}

	if c.Observability.SampleRatio < 0 || c.Observability.SampleRatio > 1 {
		return fmt.Errorf("%w: %v", ErrBadSampleRatio, c.Observability.SampleRatio)
	}

	_, err := ParseLogLevel(c.Observability.LogLevel)
	if err != nil {
		return err
	}

	return nil
}

// ParseLogLevel maps a config log level string onto an slog.Level.
func ParseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrBadLogLevel, level)
	}
}

// validBranchFragment rejects prefixes git would refuse in a ref name.
func validBranchFragment(prefix string) bool {
	if prefix == "" {
		return false
	}

	if strings.Contains(prefix, "..") || strings.HasPrefix(prefix, "-") {
		return false
	}

	for _, r := range prefix {
		switch {
		case r == ' ' || r == '~' || r == '^' || r == ':' || r == '?' || r == '*' || r == '[' || r == '\\':
			return false
		case r < 0x20 || r == 0x7f:
			return false
		}
	}

	return true
}

// Package config provides configuration loading and validation for treestat.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/Sumatoshi-tech/treestat/pkg/delta"
	"github.com/Sumatoshi-tech/treestat/pkg/pathmatch"
	"github.com/Sumatoshi-tech/treestat/pkg/snapshot"
)

// Sentinel validation errors.
var (
	ErrInvalidWorkers     = errors.New("analysis workers must not be negative")
	ErrInvalidTimeout     = errors.New("invalid analysis timeout")
	ErrInvalidPattern     = errors.New("invalid pattern")
	ErrInvalidBackend     = errors.New("invalid store backend")
	ErrInvalidRecordCache = errors.New("invalid record cache size")
	ErrInvalidLogLevel    = errors.New("invalid log level")
)

// Config is the top-level configuration struct for treestat.
// Field tags use mapstructure for viper unmarshalling.
type Config struct {
	Analysis      AnalysisConfig      `mapstructure:"analysis"`
	Store         StoreConfig         `mapstructure:"store"`
	Report        ReportConfig        `mapstructure:"report"`
	Logging       LoggingConfig       `mapstructure:"logging"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

// AnalysisConfig selects and bounds the analyzed files.
type AnalysisConfig struct {
	Extensions     []string `mapstructure:"extensions"`
	TestPatterns   []string `mapstructure:"test_patterns"`
	IgnorePatterns []string `mapstructure:"ignore_patterns"`
	Workers        int      `mapstructure:"workers"`
	Timeout        string   `mapstructure:"timeout"`
	SkipVendored   bool     `mapstructure:"skip_vendored"`
}

// StoreConfig locates and tunes the snapshot store.
type StoreConfig struct {
	Backend string `mapstructure:"backend"`
	// Directory is the snapshot repository, relative to the source repository
	// unless absolute.
	Directory   string `mapstructure:"directory"`
	RecordCache string `mapstructure:"record_cache"`
}

// ReportConfig holds delta report settings.
type ReportConfig struct {
	Filters     []string `mapstructure:"filters"`
	CruftScores string   `mapstructure:"cruft_scores"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
}

// ObservabilityConfig holds telemetry export settings.
type ObservabilityConfig struct {
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
	OTLPInsecure bool   `mapstructure:"otlp_insecure"`
	MetricsFile  string `mapstructure:"metrics_file"`
	ServiceName  string `mapstructure:"service_name"`
}

// Validate checks that every setting can be applied.
func (c *Config) Validate() error {
	if c.Analysis.Workers < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidWorkers, c.Analysis.Workers)
	}

	if _, err := c.AnalysisTimeout(); err != nil {
		return err
	}

	for _, patterns := range [][]string{c.Analysis.TestPatterns, c.Analysis.IgnorePatterns, c.Report.Filters} {
		if _, err := pathmatch.Compile(patterns); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidPattern, err)
		}
	}

	switch c.Store.Backend {
	case snapshot.BackendIndex, snapshot.BackendWorktree:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidBackend, c.Store.Backend)
	}

	if _, err := c.RecordCacheBytes(); err != nil {
		return err
	}

	if _, err := delta.ParseScores(c.Report.CruftScores); err != nil {
		return err
	}

	if _, err := c.LogLevel(); err != nil {
		return err
	}

	return nil
}

// AnalysisTimeout parses the per-file analysis bound. Zero means unbounded.
func (c *Config) AnalysisTimeout() (time.Duration, error) {
	if c.Analysis.Timeout == "" {
		return 0, nil
	}

	d, err := time.ParseDuration(c.Analysis.Timeout)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTimeout, c.Analysis.Timeout)
	}

	return d, nil
}

// RecordCacheBytes parses the record cache size, e.g. "64MiB". Zero selects
// the store default.
func (c *Config) RecordCacheBytes() (int64, error) {
	trimmed := strings.TrimSpace(c.Store.RecordCache)
	if trimmed == "" || trimmed == "0" {
		return 0, nil
	}

	n, err := humanize.ParseBytes(trimmed)
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %w", ErrInvalidRecordCache, c.Store.RecordCache, err)
	}

	if n > math.MaxInt64 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidRecordCache, c.Store.RecordCache)
	}

	return int64(n), nil
}

// LogLevel parses the logging level name.
func (c *Config) LogLevel() (slog.Level, error) {
	var level slog.Level

	if err := level.UnmarshalText([]byte(c.Logging.Level)); err != nil {
		return slog.LevelInfo, fmt.Errorf("%w: %q", ErrInvalidLogLevel, c.Logging.Level)
	}

	return level, nil
}

// CruftScores parses the configured cruft weighting.
func (c *Config) CruftScores() (delta.Scores, error) {
	return delta.ParseScores(c.Report.CruftScores)
}

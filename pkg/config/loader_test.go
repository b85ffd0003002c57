package config_test

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/treestat/pkg/config"
	"github.com/Sumatoshi-tech/treestat/pkg/delta"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	cfgPath := filepath.Join(t.TempDir(), ".treestat.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(content), 0o600))

	return cfgPath
}

func TestLoadConfig_EmptyFile_UsesDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadConfig(writeConfig(t, ""))
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, config.DefaultAnalysisExtensions(), cfg.Analysis.Extensions)
	assert.Equal(t, config.DefaultAnalysisTestPatterns(), cfg.Analysis.TestPatterns)
	assert.Empty(t, cfg.Analysis.IgnorePatterns)
	assert.Equal(t, config.DefaultAnalysisWorkers, cfg.Analysis.Workers)
	assert.Equal(t, config.DefaultAnalysisSkipVendored, cfg.Analysis.SkipVendored)
	assert.Equal(t, config.DefaultStoreBackend, cfg.Store.Backend)
	assert.Equal(t, config.DefaultStoreDirectory, cfg.Store.Directory)
	assert.Equal(t, []string{"^SUBTREE_TOTAL"}, cfg.Report.Filters)
	assert.Equal(t, delta.DefaultScores, cfg.Report.CruftScores)
	assert.Equal(t, config.DefaultObservabilityServiceName, cfg.Observability.ServiceName)

	timeout, err := cfg.AnalysisTimeout()
	require.NoError(t, err)
	assert.Zero(t, timeout)

	size, err := cfg.RecordCacheBytes()
	require.NoError(t, err)
	assert.Equal(t, int64(64<<20), size)

	level, err := cfg.LogLevel()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelWarn, level)
}

func TestLoadConfig_ValidFile_Unmarshals(t *testing.T) {
	t.Parallel()

	content := `analysis:
  extensions: [py]
  test_patterns: ['^check_']
  ignore_patterns: ['^vendor/']
  workers: 8
  timeout: 2s
  skip_vendored: false
store:
  backend: worktree
  directory: /tmp/snapshots
  record_cache: 16MB
report:
  filters: ['\.py\.record$']
  cruft_scores: "0,0,1,1,2,2"
logging:
  level: debug
  json: true
observability:
  otlp_endpoint: localhost:4317
  otlp_insecure: true
  metrics_file: /tmp/treestat.prom
  service_name: treestat-ci
`

	cfg, err := config.LoadConfig(writeConfig(t, content))
	require.NoError(t, err)

	assert.Equal(t, []string{"py"}, cfg.Analysis.Extensions)
	assert.Equal(t, []string{"^check_"}, cfg.Analysis.TestPatterns)
	assert.Equal(t, []string{"^vendor/"}, cfg.Analysis.IgnorePatterns)
	assert.Equal(t, 8, cfg.Analysis.Workers)
	assert.False(t, cfg.Analysis.SkipVendored)
	assert.Equal(t, "worktree", cfg.Store.Backend)
	assert.Equal(t, "/tmp/snapshots", cfg.Store.Directory)
	assert.Equal(t, []string{`\.py\.record$`}, cfg.Report.Filters)
	assert.True(t, cfg.Logging.JSON)
	assert.Equal(t, "localhost:4317", cfg.Observability.OTLPEndpoint)
	assert.True(t, cfg.Observability.OTLPInsecure)
	assert.Equal(t, "/tmp/treestat.prom", cfg.Observability.MetricsFile)
	assert.Equal(t, "treestat-ci", cfg.Observability.ServiceName)

	timeout, err := cfg.AnalysisTimeout()
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, timeout)

	size, err := cfg.RecordCacheBytes()
	require.NoError(t, err)
	assert.Equal(t, int64(16_000_000), size)

	scores, err := cfg.CruftScores()
	require.NoError(t, err)
	assert.InDelta(t, 2, scores["F"], 0)

	level, err := cfg.LogLevel()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)
}

func TestLoadConfig_InvalidValues(t *testing.T) {
	t.Parallel()

	for _, tc := range []struct {
		name    string
		content string
		want    error
	}{
		{"workers", "analysis:\n  workers: -1\n", config.ErrInvalidWorkers},
		{"timeout", "analysis:\n  timeout: soon\n", config.ErrInvalidTimeout},
		{"pattern", "analysis:\n  ignore_patterns: ['(']\n", config.ErrInvalidPattern},
		{"backend", "store:\n  backend: s3\n", config.ErrInvalidBackend},
		{"record cache", "store:\n  record_cache: lots\n", config.ErrInvalidRecordCache},
		{"scores", "report:\n  cruft_scores: '1,2'\n", delta.ErrInvalidScores},
		{"level", "logging:\n  level: loud\n", config.ErrInvalidLogLevel},
	} {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			cfg, err := config.LoadConfig(writeConfig(t, tc.content))
			require.ErrorIs(t, err, tc.want)
			assert.Nil(t, cfg)
			assert.Contains(t, err.Error(), "validate config")
		})
	}
}

func TestLoadConfig_MalformedYAML_ReturnsError(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadConfig(writeConfig(t, "analysis:\n  workers: [invalid yaml\n"))
	require.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "read config")
}

func TestLoadConfig_ExplicitPath_NotFound_ReturnsError(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadConfig("/nonexistent/path/config.yaml")
	require.Error(t, err)
	assert.Nil(t, cfg)
}

func TestLoadConfig_EnvOverride_NestedKey(t *testing.T) {
	t.Setenv("TREESTAT_ANALYSIS_WORKERS", "6")
	t.Setenv("TREESTAT_STORE_BACKEND", "worktree")

	cfg, err := config.LoadConfig(writeConfig(t, ""))
	require.NoError(t, err)

	assert.Equal(t, 6, cfg.Analysis.Workers)
	assert.Equal(t, "worktree", cfg.Store.Backend)
}

func TestLoad_ExplicitOverrideWins(t *testing.T) {
	t.Parallel()

	v := viper.New()
	v.Set("analysis.workers", 3)

	cfg, err := config.Load(v, writeConfig(t, "analysis:\n  workers: 8\n"))
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Analysis.Workers)
}

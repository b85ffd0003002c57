// Package commands implements CLI command handlers for treestat.
package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.opentelemetry.io/otel/metric"

	"github.com/Sumatoshi-tech/treestat/pkg/analyzer"
	"github.com/Sumatoshi-tech/treestat/pkg/config"
	"github.com/Sumatoshi-tech/treestat/pkg/delta"
	"github.com/Sumatoshi-tech/treestat/pkg/gitlib"
	"github.com/Sumatoshi-tech/treestat/pkg/observability"
	"github.com/Sumatoshi-tech/treestat/pkg/pathmatch"
	"github.com/Sumatoshi-tech/treestat/pkg/replay"
	"github.com/Sumatoshi-tech/treestat/pkg/snapshot"
	"github.com/Sumatoshi-tech/treestat/pkg/updater"
	"github.com/Sumatoshi-tech/treestat/pkg/version"
)

// ErrRepositoryLoad indicates a failure to find or open the source repository.
var ErrRepositoryLoad = errors.New("failed to load repository")

// App holds the state shared by all commands: configuration, telemetry and
// the source repository location.
type App struct {
	viper      *viper.Viper
	configPath string
	repoPath   string
	verbose    bool
	quiet      bool

	Config    *config.Config
	Logger    *slog.Logger
	Providers observability.Providers
	Metrics   *observability.Metrics

	out io.Writer
}

// NewApp creates an App writing reports to out.
func NewApp(out io.Writer) *App {
	return &App{
		viper:  viper.New(),
		Logger: observability.Discard(),
		out:    out,
	}
}

// Out returns the report destination.
func (a *App) Out() io.Writer {
	return a.out
}

// BindFlags registers the global flags on root and binds those that mirror
// config keys to viper.
func (a *App) BindFlags(root *cobra.Command) error {
	flags := root.PersistentFlags()

	flags.StringVar(&a.configPath, "config", "", "config file (default .treestat.yaml in . or $HOME)")
	flags.StringVarP(&a.repoPath, "repo", "C", "", "source repository (default: the repository containing .)")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "verbose output")
	flags.BoolVarP(&a.quiet, "quiet", "q", false, "only log errors")

	flags.String("cache", config.DefaultStoreDirectory, "snapshot repository (relative to the source repository)")
	flags.String("backend", config.DefaultStoreBackend, "snapshot store backend: index or worktree")
	flags.String("cruft-scores", config.DefaultReportCruftScores, "comma-separated cruft score per grade A,B,C,D,E,F")
	flags.StringArrayP("test-pattern", "t", nil, "regex matched on basenames to identify tests")
	flags.StringArrayP("exclude-pattern", "x", nil, "ignore files whose path matches this regex")
	flags.IntP("jobs", "j", config.DefaultAnalysisWorkers, "files analyzed in parallel (0: one per CPU)")
	flags.Bool("log-json", config.DefaultLoggingJSON, "log in JSON")

	for key, name := range map[string]string{
		"store.directory":          "cache",
		"store.backend":            "backend",
		"report.cruft_scores":      "cruft-scores",
		"analysis.test_patterns":   "test-pattern",
		"analysis.ignore_patterns": "exclude-pattern",
		"analysis.workers":         "jobs",
		"logging.json":             "log-json",
	} {
		if err := a.viper.BindPFlag(key, flags.Lookup(name)); err != nil {
			return fmt.Errorf("bind flag %s: %w", name, err)
		}
	}

	return nil
}

// Setup loads the configuration and starts telemetry.
func (a *App) Setup() error {
	cfg, err := config.Load(a.viper, a.configPath)
	if err != nil {
		return err
	}

	a.Config = cfg

	level, err := cfg.LogLevel()
	if err != nil {
		return err
	}

	switch {
	case a.quiet:
		level = slog.LevelError
	case a.verbose:
		level = slog.LevelDebug
	}

	obsCfg := observability.DefaultConfig()
	obsCfg.ServiceName = cfg.Observability.ServiceName
	obsCfg.ServiceVersion = version.Version
	obsCfg.OTLPEndpoint = cfg.Observability.OTLPEndpoint
	obsCfg.OTLPHeaders = observability.ParseOTLPHeaders(os.Getenv("OTEL_EXPORTER_OTLP_HEADERS"))
	obsCfg.OTLPInsecure = cfg.Observability.OTLPInsecure
	obsCfg.MetricsFile = cfg.Observability.MetricsFile
	obsCfg.LogLevel = level
	obsCfg.LogJSON = cfg.Logging.JSON

	providers, err := observability.Init(obsCfg)
	if err != nil {
		return fmt.Errorf("init observability: %w", err)
	}

	a.Providers = providers
	a.Logger = providers.Logger

	metrics, err := observability.NewMetrics(providers.Meter)
	if err != nil {
		return err
	}

	a.Metrics = metrics

	return nil
}

// Shutdown flushes telemetry and writes the metrics file.
func (a *App) Shutdown() {
	if a.Providers.Shutdown == nil {
		return
	}

	err := a.Providers.Shutdown(context.Background())
	if err != nil {
		a.Logger.Warn("observability shutdown failed", "error", err)
	}
}

// OpenSource opens the source repository.
func (a *App) OpenSource() (*gitlib.Repository, error) {
	path := a.repoPath
	if path == "" {
		path = "."
	}

	repo, err := gitlib.DiscoverRepository(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRepositoryLoad, err)
	}

	return repo, nil
}

// StoreDir resolves the snapshot repository location of source.
func (a *App) StoreDir(source *gitlib.Repository) string {
	dir := a.Config.Store.Directory
	if filepath.IsAbs(dir) {
		return dir
	}

	base := source.WorkDir()
	if base == "" {
		base = source.GitDir()
	}

	return filepath.Join(base, dir)
}

// OpenStore opens the snapshot store at dir with a record cache sized by the
// configuration. The record cache is observed by the metrics.
func (a *App) OpenStore(dir string) (*snapshot.Records, func(), error) {
	store, err := snapshot.Open(dir, a.Config.Store.Backend)
	if err != nil {
		return nil, nil, fmt.Errorf("open snapshot store: %w", err)
	}

	size, err := a.Config.RecordCacheBytes()
	if err != nil {
		return nil, nil, errors.Join(err, store.Close())
	}

	records := snapshot.NewRecords(store, size)

	var reg metric.Registration

	if a.Providers.Meter != nil {
		reg, err = observability.ObserveRecordCache(a.Providers.Meter, func() (int64, int64) {
			stats := records.CacheStats()

			return stats.Hits, stats.Misses
		})
		if err != nil {
			return nil, nil, errors.Join(err, store.Close())
		}
	}

	closer := func() {
		if reg != nil {
			if unregErr := reg.Unregister(); unregErr != nil {
				a.Logger.Warn("unregister record cache metrics", "error", unregErr)
			}
		}

		if closeErr := store.Close(); closeErr != nil {
			a.Logger.Warn("close snapshot store", "error", closeErr)
		}
	}

	return records, closer, nil
}

// Analyzer builds the tree-sitter analyzer.
func (a *App) Analyzer() (analyzer.Analyzer, error) {
	timeout, err := a.Config.AnalysisTimeout()
	if err != nil {
		return nil, err
	}

	return analyzer.NewTreeSitter(analyzer.WithTimeout(timeout)), nil
}

// TestPatterns compiles the configured test-name patterns.
func (a *App) TestPatterns() (pathmatch.Matcher, error) {
	return pathmatch.Compile(a.Config.Analysis.TestPatterns)
}

// UpdaterOptions returns the updater settings of the configuration.
func (a *App) UpdaterOptions() ([]updater.Option, error) {
	tests, err := a.TestPatterns()
	if err != nil {
		return nil, err
	}

	return []updater.Option{
		updater.WithWorkers(a.workers()),
		updater.WithTestPatterns(tests),
		updater.WithExtensions(a.Config.Analysis.Extensions...),
		updater.WithSkipVendored(a.Config.Analysis.SkipVendored),
	}, nil
}

// Filters returns the source path filters: include prefixes and the
// configured ignore patterns.
func (a *App) Filters(paths []string) (updater.Filters, error) {
	ignore, err := pathmatch.Compile(a.Config.Analysis.IgnorePatterns)
	if err != nil {
		return updater.Filters{}, err
	}

	return updater.Filters{Paths: paths, Ignore: ignore}, nil
}

// NewEngine creates a replay engine over source writing to records.
func (a *App) NewEngine(source *gitlib.Repository, records *snapshot.Records, paths []string) (*replay.Engine, error) {
	an, err := a.Analyzer()
	if err != nil {
		return nil, err
	}

	updaterOpts, err := a.UpdaterOptions()
	if err != nil {
		return nil, err
	}

	filters, err := a.Filters(paths)
	if err != nil {
		return nil, err
	}

	return replay.New(source, records, an,
		replay.WithLogger(a.Logger),
		replay.WithMetrics(a.Metrics),
		replay.WithTracer(a.Providers.Tracer),
		replay.WithFilters(filters),
		replay.WithUpdaterOptions(updaterOpts...),
	)
}

// Reconstructor creates a delta reconstructor over the snapshot store of
// records. Empty filters fall back to the configured report filters.
func (a *App) Reconstructor(records *snapshot.Records, filters []string) (*delta.Reconstructor, error) {
	if len(filters) == 0 {
		filters = a.Config.Report.Filters
	}

	m, err := pathmatch.Compile(filters)
	if err != nil {
		return nil, err
	}

	tests, err := a.TestPatterns()
	if err != nil {
		return nil, err
	}

	return delta.New(records.Store().Repository(),
		delta.WithFilters(m),
		delta.WithTestPatterns(tests),
		delta.WithLogger(a.Logger),
	), nil
}

func (a *App) workers() int {
	if a.Config.Analysis.Workers > 0 {
		return a.Config.Analysis.Workers
	}

	return runtime.NumCPU()
}

package replay

import (
	"log/slog"

	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/treestat/pkg/observability"
	"github.com/Sumatoshi-tech/treestat/pkg/updater"
)

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger of the engine and of its updater.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithMetrics sets the instruments commits and updates are counted on.
func WithMetrics(m *observability.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithTracer sets the tracer of the engine and of its updater.
func WithTracer(tracer trace.Tracer) Option {
	return func(e *Engine) {
		if tracer != nil {
			e.tracer = tracer
		}
	}
}

// WithFilters sets the path filters every update runs with.
func WithFilters(filters updater.Filters) Option {
	return func(e *Engine) {
		e.filters = filters
	}
}

// WithUpdaterOptions passes options through to the updater the engine builds.
func WithUpdaterOptions(opts ...updater.Option) Option {
	return func(e *Engine) {
		e.updaterOpts = append(e.updaterOpts, opts...)
	}
}

// WithWorkDir places the work copy in dir instead of a temporary directory.
// The directory is left in place on Close.
func WithWorkDir(dir string) Option {
	return func(e *Engine) {
		e.workDir = dir
	}
}

// Options select how Replay walks a commit list.
type Options struct {
	// Incremental skips seeding and catches the store up to each previous
	// commit before recording the current one.
	Incremental bool
	// Reverse walks the list newest first. It implies catch-up commits.
	Reverse bool
}

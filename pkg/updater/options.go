package updater

import (
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/treestat/pkg/observability"
	"github.com/Sumatoshi-tech/treestat/pkg/pathmatch"
)

// Option configures an Updater.
type Option func(*Updater)

// WithWorkers sets the number of files analyzed concurrently. Values below one mean one.
func WithWorkers(n int) Option {
	return func(u *Updater) {
		u.workers = max(n, 1)
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(u *Updater) {
		if logger != nil {
			u.logger = logger
		}
	}
}

// WithTestPatterns sets the basename patterns that mark test files.
func WithTestPatterns(m pathmatch.Matcher) Option {
	return func(u *Updater) {
		u.tests = m
	}
}

// WithExtensions sets the tracked source file extensions, with or without the dot.
func WithExtensions(exts ...string) Option {
	return func(u *Updater) {
		u.extensions = make(map[string]bool, len(exts))
		for _, ext := range exts {
			if !strings.HasPrefix(ext, ".") {
				ext = "." + ext
			}

			u.extensions[strings.ToLower(ext)] = true
		}
	}
}

// WithMetrics records pass statistics.
func WithMetrics(m *observability.Metrics) Option {
	return func(u *Updater) {
		u.metrics = m
	}
}

// WithTracer sets the tracer for update spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(u *Updater) {
		if tracer != nil {
			u.tracer = tracer
		}
	}
}

// WithSkipVendored excludes paths enry classifies as vendored.
func WithSkipVendored(skip bool) Option {
	return func(u *Updater) {
		u.skipVendored = skip
	}
}

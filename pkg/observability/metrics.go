package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric names.
const (
	MetricReplayCommits     = "treestat.replay.commits"
	MetricFilesAnalyzed     = "treestat.update.files.analyzed"
	MetricFilesFailed       = "treestat.update.files.failed"
	MetricDirsDirty         = "treestat.update.dirs.dirty"
	MetricUpdateDuration    = "treestat.update.duration"
	MetricRecordCacheHits   = "treestat.store.record_cache.hits"
	MetricRecordCacheMisses = "treestat.store.record_cache.misses"

	attrKind = "kind"
)

// Snapshot commit kinds.
const (
	CommitKindSeed    = "seed"
	CommitKindCatchUp = "catch_up"
	CommitKindMirror  = "mirror"
	CommitKindDiff    = "diff"
)

// durationBucketBoundaries covers 10ms to 600s, from single-file updates to
// full rescans of large trees.
var durationBucketBoundaries = []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600}

// Metrics holds the treestat instruments. A nil *Metrics records nothing.
type Metrics struct {
	commits        metric.Int64Counter
	filesAnalyzed  metric.Int64Counter
	filesFailed    metric.Int64Counter
	dirsDirty      metric.Int64Counter
	updateDuration metric.Float64Histogram
}

// UpdateStats summarizes one aggregation pass.
type UpdateStats struct {
	Analyzed int
	Failed   int
	Dirty    int
	Duration time.Duration
}

// NewMetrics creates the instruments from mt.
func NewMetrics(mt metric.Meter) (*Metrics, error) {
	commits, err := mt.Int64Counter(MetricReplayCommits,
		metric.WithDescription("Snapshot commits written"),
		metric.WithUnit("{commit}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", MetricReplayCommits, err)
	}

	analyzed, err := mt.Int64Counter(MetricFilesAnalyzed,
		metric.WithDescription("Source files analyzed"),
		metric.WithUnit("{file}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", MetricFilesAnalyzed, err)
	}

	failed, err := mt.Int64Counter(MetricFilesFailed,
		metric.WithDescription("Source files the analyzer could not process"),
		metric.WithUnit("{file}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", MetricFilesFailed, err)
	}

	dirty, err := mt.Int64Counter(MetricDirsDirty,
		metric.WithDescription("Directories whose aggregates were recomputed"),
		metric.WithUnit("{directory}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", MetricDirsDirty, err)
	}

	duration, err := mt.Float64Histogram(MetricUpdateDuration,
		metric.WithDescription("Aggregation pass duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(durationBucketBoundaries...),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", MetricUpdateDuration, err)
	}

	return &Metrics{
		commits:        commits,
		filesAnalyzed:  analyzed,
		filesFailed:    failed,
		dirsDirty:      dirty,
		updateDuration: duration,
	}, nil
}

// RecordUpdate records one aggregation pass.
func (m *Metrics) RecordUpdate(ctx context.Context, stats UpdateStats) {
	if m == nil {
		return
	}

	m.filesAnalyzed.Add(ctx, int64(stats.Analyzed))
	m.filesFailed.Add(ctx, int64(stats.Failed))
	m.dirsDirty.Add(ctx, int64(stats.Dirty))
	m.updateDuration.Record(ctx, stats.Duration.Seconds())
}

// RecordCommit counts one snapshot commit of the given kind.
func (m *Metrics) RecordCommit(ctx context.Context, kind string) {
	if m == nil {
		return
	}

	m.commits.Add(ctx, 1, metric.WithAttributes(attribute.String(attrKind, kind)))
}

// CacheStatsFunc reports cumulative hits and misses of a cache.
type CacheStatsFunc func() (hits, misses int64)

// ObserveRecordCache registers observable counters fed by stats.
func ObserveRecordCache(mt metric.Meter, stats CacheStatsFunc) (metric.Registration, error) {
	hits, err := mt.Int64ObservableCounter(MetricRecordCacheHits,
		metric.WithDescription("Record cache hits"),
		metric.WithUnit("{hit}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", MetricRecordCacheHits, err)
	}

	misses, err := mt.Int64ObservableCounter(MetricRecordCacheMisses,
		metric.WithDescription("Record cache misses"),
		metric.WithUnit("{miss}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", MetricRecordCacheMisses, err)
	}

	reg, err := mt.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		h, m := stats()
		o.ObserveInt64(hits, h)
		o.ObserveInt64(misses, m)

		return nil
	}, hits, misses)
	if err != nil {
		return nil, fmt.Errorf("register record cache callback: %w", err)
	}

	return reg, nil
}

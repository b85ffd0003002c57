package observability_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/treestat/pkg/observability"
)

func setupTestMeter(t *testing.T) (*sdkmetric.MeterProvider, *sdkmetric.ManualReader) {
	t.Helper()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	return mp, reader
}

func collectMetrics(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()

	var rm metricdata.ResourceMetrics

	require.NoError(t, reader.Collect(context.Background(), &rm))

	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for idx := range rm.ScopeMetrics {
		for midx := range rm.ScopeMetrics[idx].Metrics {
			if rm.ScopeMetrics[idx].Metrics[midx].Name == name {
				return &rm.ScopeMetrics[idx].Metrics[midx]
			}
		}
	}

	return nil
}

func sumValue(t *testing.T, m *metricdata.Metrics) int64 {
	t.Helper()
	require.NotNil(t, m)

	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "metric %s is not an int64 sum", m.Name)

	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}

	return total
}

func TestMetricsRecordUpdate(t *testing.T) {
	t.Parallel()

	mp, reader := setupTestMeter(t)

	m, err := observability.NewMetrics(mp.Meter("test"))
	require.NoError(t, err)

	ctx := context.Background()
	m.RecordUpdate(ctx, observability.UpdateStats{Analyzed: 3, Failed: 1, Dirty: 2, Duration: time.Second})
	m.RecordCommit(ctx, observability.CommitKindMirror)
	m.RecordCommit(ctx, observability.CommitKindCatchUp)

	rm := collectMetrics(t, reader)

	assert.Equal(t, int64(3), sumValue(t, findMetric(rm, observability.MetricFilesAnalyzed)))
	assert.Equal(t, int64(1), sumValue(t, findMetric(rm, observability.MetricFilesFailed)))
	assert.Equal(t, int64(2), sumValue(t, findMetric(rm, observability.MetricDirsDirty)))
	assert.Equal(t, int64(2), sumValue(t, findMetric(rm, observability.MetricReplayCommits)))
	require.NotNil(t, findMetric(rm, observability.MetricUpdateDuration))
}

func TestMetricsNilSafe(t *testing.T) {
	t.Parallel()

	var m *observability.Metrics

	assert.NotPanics(t, func() {
		m.RecordUpdate(context.Background(), observability.UpdateStats{Analyzed: 1})
		m.RecordCommit(context.Background(), observability.CommitKindSeed)
	})
}

func TestObserveRecordCache(t *testing.T) {
	t.Parallel()

	mp, reader := setupTestMeter(t)

	_, err := observability.ObserveRecordCache(mp.Meter("test"), func() (int64, int64) { return 7, 2 })
	require.NoError(t, err)

	rm := collectMetrics(t, reader)

	assert.Equal(t, int64(7), sumValue(t, findMetric(rm, observability.MetricRecordCacheHits)))
	assert.Equal(t, int64(2), sumValue(t, findMetric(rm, observability.MetricRecordCacheMisses)))
}

func TestTracingHandlerInjectsTraceContext(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	inner := slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	logger := slog.New(observability.NewTracingHandler(inner, "test-svc", "1.2.3"))

	traceID, err := trace.TraceIDFromHex("0102030405060708090a0b0c0d0e0f10")
	require.NoError(t, err)

	spanID, err := trace.SpanIDFromHex("0102030405060708")
	require.NoError(t, err)

	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	})

	logger.InfoContext(trace.ContextWithSpanContext(context.Background(), sc), "test message")

	var record map[string]any

	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "0102030405060708090a0b0c0d0e0f10", record["trace_id"])
	assert.Equal(t, "0102030405060708", record["span_id"])
	assert.Equal(t, "test-svc", record["service"])
	assert.Equal(t, "1.2.3", record["version"])
}

func TestNewLoggerLevelAndFormat(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	logger := observability.NewLogger(observability.Config{LogLevel: slog.LevelWarn, LogJSON: true, LogWriter: &buf})

	logger.Info("hidden")
	logger.Warn("shown", "dir", "pkg")

	var record map[string]any

	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "shown", record["msg"])
	assert.Equal(t, "pkg", record["dir"])
	assert.Equal(t, "treestat", record["service"])
}

func TestWriteMetricsFile(t *testing.T) {
	t.Parallel()

	registry := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "treestat_test_total", Help: "test"})
	registry.MustRegister(counter)
	counter.Add(4)

	path := filepath.Join(t.TempDir(), "treestat.prom")
	require.NoError(t, observability.WriteMetricsFile(path, registry))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "treestat_test_total 4")
}

func TestParseOTLPHeaders(t *testing.T) {
	t.Parallel()

	assert.Nil(t, observability.ParseOTLPHeaders(""))
	assert.Nil(t, observability.ParseOTLPHeaders("garbage"))
	assert.Equal(t, map[string]string{"a": "1", "b": "2"}, observability.ParseOTLPHeaders("a=1, b = 2"))
}

func TestInitWritesMetricsFileOnShutdown(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metrics.prom")

	cfg := observability.DefaultConfig()
	cfg.MetricsFile = path
	cfg.LogWriter = &bytes.Buffer{}

	providers, err := observability.Init(cfg)
	require.NoError(t, err)

	m, err := observability.NewMetrics(providers.Meter)
	require.NoError(t, err)

	m.RecordUpdate(context.Background(), observability.UpdateStats{Analyzed: 5})

	require.NoError(t, providers.Shutdown(context.Background()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "treestat_update_files_analyzed")
}

func TestInitNoopWithoutExporters(t *testing.T) {
	cfg := observability.DefaultConfig()
	cfg.LogWriter = &bytes.Buffer{}

	providers, err := observability.Init(cfg)
	require.NoError(t, err)

	require.NotNil(t, providers.Tracer)
	require.NotNil(t, providers.Logger)
	require.NoError(t, providers.Shutdown(context.Background()))
}

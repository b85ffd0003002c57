package config

import (
	"slices"

	"github.com/Sumatoshi-tech/treestat/pkg/analyzer"
	"github.com/Sumatoshi-tech/treestat/pkg/delta"
	"github.com/Sumatoshi-tech/treestat/pkg/pathmatch"
	"github.com/Sumatoshi-tech/treestat/pkg/snapshot"
)

// Analysis defaults.
const (
	DefaultAnalysisWorkers      = 0
	DefaultAnalysisTimeout      = "0s"
	DefaultAnalysisSkipVendored = true
)

// Store defaults.
const (
	DefaultStoreBackend     = snapshot.BackendIndex
	DefaultStoreDirectory   = ".treestat"
	DefaultStoreRecordCache = "64MiB"
)

// DefaultReportCruftScores weighs grades A to F.
const DefaultReportCruftScores = delta.DefaultScores

// Logging defaults.
const (
	DefaultLoggingLevel = "warn"
	DefaultLoggingJSON  = false
)

// Observability defaults.
const (
	DefaultObservabilityServiceName  = "treestat"
	DefaultObservabilityOTLPInsecure = false
)

// DefaultAnalysisExtensions are the extensions the analyzer has a grammar for.
func DefaultAnalysisExtensions() []string {
	return analyzer.SupportedExtensions()
}

// DefaultAnalysisTestPatterns mark test files by basename.
func DefaultAnalysisTestPatterns() []string {
	return slices.Clone(pathmatch.DefaultTestPatterns)
}

// DefaultReportFilters select the root subtree aggregates.
func DefaultReportFilters() []string {
	return slices.Clone(delta.DefaultFilters)
}

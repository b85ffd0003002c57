// Package updater keeps per-file records and directory aggregates of a
// snapshot store in line with a source tree.
//
// An update analyzes the files it is asked about, stores or removes their
// records, recomputes the TOTAL* aggregates of every directory it touched and
// then walks up to the root, deepest directory first, refreshing the SUBTREE_*
// aggregates and pruning directories that no longer hold data.
package updater

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/src-d/enry/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/sync/errgroup"

	"github.com/Sumatoshi-tech/treestat/pkg/analyzer"
	"github.com/Sumatoshi-tech/treestat/pkg/observability"
	"github.com/Sumatoshi-tech/treestat/pkg/pathmatch"
	"github.com/Sumatoshi-tech/treestat/pkg/snapshot"
	"github.com/Sumatoshi-tech/treestat/pkg/statvalue"
)

// ErrReservedName reports a tracked source file below a directory whose name
// is also an aggregate or change manifest name in the store.
var ErrReservedName = errors.New("source directory uses a reserved name")

// Updater is the aggregation engine. It is not safe for concurrent use: one
// Updater writes to one store at a time.
type Updater struct {
	root     string
	records  *snapshot.Records
	analyzer analyzer.Analyzer

	workers      int
	logger       *slog.Logger
	tests        pathmatch.Matcher
	extensions   map[string]bool
	skipVendored bool
	metrics      *observability.Metrics
	tracer       trace.Tracer
}

// New creates an Updater reading sources below root and writing to records.
func New(root string, records *snapshot.Records, a analyzer.Analyzer, opts ...Option) *Updater {
	u := &Updater{
		root:     root,
		records:  records,
		analyzer: a,
		workers:  1,
		logger:   observability.Discard(),
		tests:    pathmatch.MustCompile(pathmatch.DefaultTestPatterns...),
		tracer:   noop.NewTracerProvider().Tracer(""),
	}

	WithExtensions(analyzer.SupportedExtensions()...)(u)

	for _, opt := range opts {
		opt(u)
	}

	return u
}

// Root returns the source directory.
func (u *Updater) Root() string {
	return u.root
}

// WithRoot returns a copy of u reading sources below root.
func (u *Updater) WithRoot(root string) *Updater {
	c := *u
	c.root = root

	return &c
}

// IsTest reports whether the source path p is a test file.
func (u *Updater) IsTest(p string) bool {
	return u.tests.MatchBase(p)
}

// workItem is one directory to visit. files is nil for a full rescan.
type workItem struct {
	dir   string
	files map[string]bool
}

// passStats accumulates the counters of one Update call.
type passStats struct {
	analyzed int
	failed   int
}

// Update brings the store in line with the source tree for the given change
// set and returns every directory whose aggregates were recomputed.
func (u *Updater) Update(ctx context.Context, changed ChangeSet, filters Filters) (DirSet, error) {
	ctx, span := u.tracer.Start(ctx, "treestat.update",
		trace.WithAttributes(
			attribute.Bool("update.all", changed.IsAll()),
			attribute.Int("update.paths", len(changed.paths)),
		))
	defer span.End()

	start := time.Now()

	dirty, stats, err := u.update(ctx, changed, filters)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		return nil, err
	}

	span.SetAttributes(
		attribute.Int("update.analyzed", stats.analyzed),
		attribute.Int("update.failed", stats.failed),
		attribute.Int("update.dirty", len(dirty)),
	)

	u.metrics.RecordUpdate(ctx, observability.UpdateStats{
		Analyzed: stats.analyzed,
		Failed:   stats.failed,
		Dirty:    len(dirty),
		Duration: time.Since(start),
	})

	return dirty, nil
}

func (u *Updater) update(ctx context.Context, changed ChangeSet, filters Filters) (DirSet, passStats, error) {
	var stats passStats

	work, err := u.worklist(changed)
	if err != nil {
		return nil, stats, err
	}

	dirty := make(DirSet)

	for _, item := range work {
		touched, visitErr := u.visitDir(ctx, item, filters, &stats)
		if visitErr != nil {
			return nil, stats, visitErr
		}

		if !touched {
			continue
		}

		dirty.Add(item.dir)

		err = u.aggregateDir(item.dir)
		if err != nil {
			return nil, stats, err
		}
	}

	if len(dirty) == 0 {
		return dirty, stats, nil
	}

	propagated, err := u.propagate(ctx, dirty)
	if err != nil {
		return nil, stats, err
	}

	for dir := range propagated {
		dirty.Add(dir)
	}

	return dirty, stats, nil
}

// worklist lists the directories to visit, deepest first.
func (u *Updater) worklist(changed ChangeSet) ([]workItem, error) {
	dirs := make(DirSet)

	if !changed.IsAll() {
		byDir := make(map[string]map[string]bool)

		for _, p := range changed.paths {
			dir := snapshot.Dir(p)
			if byDir[dir] == nil {
				byDir[dir] = make(map[string]bool)
			}

			byDir[dir][path.Base(p)] = true
			dirs.Add(dir)
		}

		items := make([]workItem, 0, len(byDir))
		for _, dir := range dirs.Sorted() {
			items = append(items, workItem{dir: dir, files: byDir[dir]})
		}

		return items, nil
	}

	err := u.sourceDirs(dirs)
	if err != nil {
		return nil, err
	}

	err = u.storeDirs(snapshot.Root, dirs)
	if err != nil {
		return nil, err
	}

	items := make([]workItem, 0, len(dirs))
	for _, dir := range dirs.Sorted() {
		items = append(items, workItem{dir: dir})
	}

	return items, nil
}

// sourceDirs adds every source directory, skipping dot-directories.
func (u *Updater) sourceDirs(dirs DirSet) error {
	dirs.Add(snapshot.Root)

	err := filepath.WalkDir(u.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if !d.IsDir() || p == u.root {
			return nil
		}

		if strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}

		rel, relErr := filepath.Rel(u.root, p)
		if relErr != nil {
			return relErr
		}

		dirs.Add(filepath.ToSlash(rel))

		return nil
	})
	if err != nil {
		return fmt.Errorf("scan source tree: %w", err)
	}

	return nil
}

// storeDirs adds every directory present in the store below dir.
func (u *Updater) storeDirs(dir string, dirs DirSet) error {
	dirs.Add(dir)

	subdirs, err := u.records.Store().ListDirs(dir)
	if err != nil {
		return err
	}

	for _, sub := range subdirs {
		err = u.storeDirs(snapshot.Join(dir, sub), dirs)
		if err != nil {
			return err
		}
	}

	return nil
}

func (u *Updater) sourcePath(rel string) string {
	return filepath.Join(u.root, filepath.FromSlash(rel))
}

func (u *Updater) sourceExists(rel string) bool {
	info, err := os.Stat(u.sourcePath(rel))

	return err == nil && info.Mode().IsRegular()
}

func (u *Updater) tracked(rel string, filters Filters) bool {
	if !u.extensions[strings.ToLower(path.Ext(rel))] {
		return false
	}

	if u.skipVendored && enry.IsVendor(rel) {
		return false
	}

	return filters.allows(rel)
}

// candidates lists the files of item that should be analyzed.
func (u *Updater) candidates(item workItem, filters Filters) ([]string, error) {
	var names []string

	if item.files == nil {
		entries, err := os.ReadDir(u.sourcePath(item.dir))
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}

		if err != nil {
			return nil, fmt.Errorf("list source dir %s: %w", item.dir, err)
		}

		for _, e := range entries {
			if e.Type().IsRegular() {
				names = append(names, e.Name())
			}
		}
	} else {
		for name := range item.files {
			if u.sourceExists(snapshot.Join(item.dir, name)) {
				names = append(names, name)
			}
		}

		slices.Sort(names)
	}

	out := make([]string, 0, len(names))

	for _, name := range names {
		rel := snapshot.Join(item.dir, name)
		if !u.tracked(rel, filters) {
			continue
		}

		if seg, ok := reservedSegment(rel); ok {
			return nil, fmt.Errorf("%w: %s in %s", ErrReservedName, seg, rel)
		}

		out = append(out, rel)
	}

	return out, nil
}

// reservedSegment finds a directory of rel that would share its stored name
// with an aggregate, or with a change manifest at the top level.
func reservedSegment(rel string) (string, bool) {
	dir := path.Dir(rel)
	if dir == "." {
		return "", false
	}

	for i, seg := range strings.Split(dir, "/") {
		if snapshot.IsAggregate(seg) {
			return seg, true
		}

		if i == 0 && (seg == snapshot.LatestChanges || seg == snapshot.LatestChangesTotal) {
			return seg, true
		}
	}

	return "", false
}

// visitDir analyzes the candidates of one directory, stores their records and
// removes stale ones. It reports whether any record changed.
func (u *Updater) visitDir(ctx context.Context, item workItem, filters Filters, stats *passStats) (bool, error) {
	files, err := u.candidates(item, filters)
	if err != nil {
		return false, err
	}

	u.logger.DebugContext(ctx, "visiting directory", "dir", item.dir, "files", len(files))

	results, err := u.analyzeAll(ctx, files)
	if err != nil {
		return false, err
	}

	touched := false

	for i, rel := range files {
		res := results[i]
		if res == nil {
			stats.failed++

			continue
		}

		stats.analyzed++

		err = u.records.WriteValue(snapshot.RecordPath(rel), res.Value)
		if err != nil {
			return false, err
		}

		err = u.records.WriteMethods(snapshot.MethodsPath(rel), res.Methods)
		if err != nil {
			return false, err
		}

		touched = true
	}

	removed, err := u.removeStale(ctx, item)
	if err != nil {
		return false, err
	}

	return touched || removed, nil
}

// analyzeAll runs the analyzer over files on the worker pool. Failed files
// leave a nil slot.
func (u *Updater) analyzeAll(ctx context.Context, files []string) ([]*analyzer.Result, error) {
	results := make([]*analyzer.Result, len(files))
	if len(files) == 0 {
		return results, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(u.workers)

	for i, rel := range files {
		g.Go(func() error {
			content, err := os.ReadFile(u.sourcePath(rel))
			if err != nil {
				u.logger.WarnContext(gctx, "cannot read source file", "path", rel, "error", err)

				return nil
			}

			res, err := u.analyzer.Analyze(gctx, rel, content)
			if errors.Is(err, analyzer.ErrAnalysisFailed) {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}

				u.logger.WarnContext(gctx, "analysis failed", "path", rel, "error", err)

				return nil
			}

			if err != nil {
				return fmt.Errorf("analyze %s: %w", rel, err)
			}

			results[i] = &res

			return nil
		})
	}

	err := g.Wait()
	if err != nil {
		return nil, err
	}

	return results, nil
}

// removeStale drops records whose source file is gone: every record of the
// directory for a full rescan, only the requested files otherwise.
func (u *Updater) removeStale(ctx context.Context, item workItem) (bool, error) {
	names, err := u.records.Store().ListFiles(item.dir)
	if err != nil {
		return false, err
	}

	removed := false

	for _, name := range names {
		source, ok := strings.CutSuffix(name, snapshot.RecordSuffix)
		if !ok {
			source, ok = strings.CutSuffix(name, snapshot.MethodsSuffix)
		}

		if !ok || (item.files != nil && !item.files[source]) {
			continue
		}

		rel := snapshot.Join(item.dir, source)
		if u.sourceExists(rel) {
			continue
		}

		u.logger.DebugContext(ctx, "removing stale record", "path", snapshot.Join(item.dir, name))

		err = u.records.Remove(snapshot.Join(item.dir, name))
		if err != nil {
			return false, err
		}

		removed = true
	}

	return removed, nil
}

// aggregateDir recomputes TOTAL, TOTAL_TEST and TOTAL_NON_TEST of dir from
// its records, or removes them when none are left.
func (u *Updater) aggregateDir(dir string) error {
	names, err := u.records.Store().ListFiles(dir)
	if err != nil {
		return err
	}

	var (
		total, test, nonTest statvalue.Value
		seen                 bool
	)

	for _, name := range names {
		source, ok := strings.CutSuffix(name, snapshot.RecordSuffix)
		if !ok {
			continue
		}

		v, ok, readErr := u.records.ReadValue(snapshot.Join(dir, name))
		if readErr != nil {
			return readErr
		}

		if !ok {
			continue
		}

		if !seen {
			zero := statvalue.Zero(v)
			total, test, nonTest = zero, zero, zero
			seen = true
		}

		total = statvalue.Add(total, v)

		if u.IsTest(source) {
			test = statvalue.Add(test, v)
		} else {
			nonTest = statvalue.Add(nonTest, v)
		}
	}

	if !seen {
		for _, name := range snapshot.DirectoryAggregates {
			err = u.records.Remove(snapshot.Join(dir, name))
			if err != nil {
				return err
			}
		}

		return nil
	}

	values := []statvalue.Value{total, test, nonTest}

	for i, name := range snapshot.DirectoryAggregates {
		err = u.records.WriteValue(snapshot.Join(dir, name), values[i])
		if err != nil {
			return err
		}
	}

	return nil
}

// propagate refreshes subtree aggregates from the dirty directories up to the
// root, deepest first, so every child is final before its parent reads it.
func (u *Updater) propagate(ctx context.Context, dirty DirSet) (DirSet, error) {
	queue := newDirQueue(dirty)
	finished := make(DirSet)

	for queue.Len() > 0 {
		dir := queue.pop()
		if finished.Has(dir) {
			continue
		}

		u.logger.DebugContext(ctx, "aggregating subtree", "dir", dir)

		err := u.aggregateSubtree(dir)
		if err != nil {
			return nil, err
		}

		finished.Add(dir)

		if dir != snapshot.Root {
			queue.push(snapshot.Dir(dir))
		}
	}

	return finished, nil
}

// aggregateSubtree recomputes the SUBTREE_* aggregates of dir and prunes
// subdirectories without data.
func (u *Updater) aggregateSubtree(dir string) error {
	store := u.records.Store()

	subdirs, err := store.ListDirs(dir)
	if err != nil {
		return err
	}

	existing, err := store.ListFiles(dir)
	if err != nil {
		return err
	}

	withData := make(map[string]bool, len(subdirs))

	for _, name := range snapshot.DirectoryAggregates {
		subtreeName := snapshot.Subtree(name)

		var parts []statvalue.Value

		for _, sub := range subdirs {
			v, ok, readErr := u.records.ReadValue(snapshot.Join(snapshot.Join(dir, sub), subtreeName))
			if readErr != nil {
				return readErr
			}

			if ok {
				parts = append(parts, v)
				withData[sub] = true
			}
		}

		own, ok, readErr := u.records.ReadValue(snapshot.Join(dir, name))
		if readErr != nil {
			return readErr
		}

		if ok {
			parts = append(parts, own)
		}

		sum := statvalue.Sum(parts...)

		switch {
		case !sum.IsNeutral():
			err = u.records.WriteValue(snapshot.Join(dir, subtreeName), sum)
		case slices.Contains(existing, subtreeName):
			err = u.records.Remove(snapshot.Join(dir, subtreeName))
		}

		if err != nil {
			return err
		}
	}

	for _, sub := range subdirs {
		if withData[sub] {
			continue
		}

		err = u.prune(snapshot.Join(dir, sub))
		if err != nil {
			return err
		}
	}

	return nil
}

// prune removes everything stored below dir.
func (u *Updater) prune(dir string) error {
	store := u.records.Store()

	subdirs, err := store.ListDirs(dir)
	if err != nil {
		return err
	}

	for _, sub := range subdirs {
		err = u.prune(snapshot.Join(dir, sub))
		if err != nil {
			return err
		}
	}

	files, err := store.ListFiles(dir)
	if err != nil {
		return err
	}

	for _, name := range files {
		err = u.records.Remove(snapshot.Join(dir, name))
		if err != nil {
			return err
		}
	}

	u.logger.Debug("pruned directory", "dir", dir)

	return store.RemoveDirIfEmpty(dir)
}

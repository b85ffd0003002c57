// Package delta rebuilds per-commit metric changes from a snapshot history.
//
// Nothing is re-analyzed: every record a snapshot commit touched is compared
// with its state at the parent snapshot, and the line counts of the source
// commit come from the change manifest stored alongside.
package delta

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"strings"

	"github.com/Sumatoshi-tech/treestat/pkg/alg/lru"
	"github.com/Sumatoshi-tech/treestat/pkg/gitlib"
	"github.com/Sumatoshi-tech/treestat/pkg/observability"
	"github.com/Sumatoshi-tech/treestat/pkg/pathmatch"
	"github.com/Sumatoshi-tech/treestat/pkg/snapshot"
	"github.com/Sumatoshi-tech/treestat/pkg/statvalue"
)

// DefaultFilters select the root subtree aggregates.
var DefaultFilters = []string{"^SUBTREE_TOTAL"}

// defaultValueCacheEntries bounds the decoded record cache.
const defaultValueCacheEntries = 4096

// LineTotals are summed line changes of the source commit.
type LineTotals = snapshot.LineCounts

// CommitInfo describes the snapshot commit a record belongs to.
type CommitInfo struct {
	Hash gitlib.Hash
	// Source is the source commit id, or the revision pair of a diff snapshot.
	Source string
	// Message is the source commit message without the provenance line.
	Message   string
	Author    gitlib.Signature
	Committer gitlib.Signature
}

// Summary returns the first line of the source message.
func (c CommitInfo) Summary() string {
	summary, _, _ := strings.Cut(c.Message, "\n")

	return summary
}

// Record is the change of one stored record in one snapshot commit.
type Record struct {
	// Path is the record's path in the snapshot tree.
	Path string
	// Source is the source file of a file record, or the aggregate path.
	Source string
	Commit CommitInfo

	Lines        LineTotals
	LinesTest    LineTotals
	LinesNonTest LineTotals

	// Delta is after - before, negated for a path the commit removed.
	Delta statvalue.Value
	After statvalue.Value
}

// IsAggregate reports whether the record is a directory or subtree aggregate.
func (r Record) IsAggregate() bool {
	return !strings.HasSuffix(r.Path, snapshot.RecordSuffix)
}

// Reconstructor reads deltas out of a snapshot repository.
type Reconstructor struct {
	repo    *gitlib.Repository
	filters pathmatch.Matcher
	tests   pathmatch.Matcher
	logger  *slog.Logger
	values  *lru.Cache[gitlib.Hash, statvalue.Value]
}

// Option configures a Reconstructor.
type Option func(*Reconstructor)

// WithFilters keeps only records whose snapshot path matches one of the patterns.
func WithFilters(m pathmatch.Matcher) Option {
	return func(r *Reconstructor) {
		r.filters = m
	}
}

// WithTestPatterns sets the basename patterns that mark test files.
func WithTestPatterns(m pathmatch.Matcher) Option {
	return func(r *Reconstructor) {
		r.tests = m
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Reconstructor) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// New creates a Reconstructor over the snapshot repository repo.
func New(repo *gitlib.Repository, opts ...Option) *Reconstructor {
	r := &Reconstructor{
		repo:    repo,
		filters: pathmatch.MustCompile(DefaultFilters...),
		tests:   pathmatch.MustCompile(pathmatch.DefaultTestPatterns...),
		logger:  observability.Discard(),
		values:  lru.New(lru.WithMaxEntries[gitlib.Hash, statvalue.Value](defaultValueCacheEntries)),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Deltas yields the records of every snapshot in order. Catch-up snapshots
// yield nothing. The first error ends the sequence.
func (r *Reconstructor) Deltas(ctx context.Context, snapshots iter.Seq2[gitlib.Hash, error]) iter.Seq2[Record, error] {
	return func(yield func(Record, error) bool) {
		for hash, err := range snapshots {
			if err == nil {
				err = ctx.Err()
			}

			if err != nil {
				yield(Record{}, err)

				return
			}

			records, err := r.Commit(hash)
			if err != nil {
				yield(Record{}, err)

				return
			}

			for _, rec := range records {
				if !yield(rec, nil) {
					return
				}
			}
		}
	}
}

// Commit returns the records of one snapshot commit.
func (r *Reconstructor) Commit(hash gitlib.Hash) ([]Record, error) {
	commit, err := r.repo.LookupCommit(hash)
	if err != nil {
		return nil, err
	}
	defer commit.Free()

	if snapshot.IsIgnoreMessage(commit.Message()) {
		return nil, nil
	}

	info := commitInfo(commit)

	tree, err := commit.Tree()
	if err != nil {
		return nil, err
	}
	defer tree.Free()

	parentTree, err := commit.ParentTree()
	if err != nil {
		return nil, err
	}
	defer parentTree.Free()

	manifest, err := snapshot.ReadManifest(tree)
	if err != nil {
		return nil, err
	}

	deltas, err := r.diff(parentTree, tree)
	if err != nil {
		return nil, err
	}

	changes := recordChanges(deltas, manifest.Renames)

	r.logger.Debug("reconstructing deltas", "snapshot", hash.Short(), "source", info.Source, "records", len(changes))

	var records []Record

	for _, c := range changes {
		before, after, err := r.loadPair(c)
		if err != nil {
			return nil, err
		}

		delta := statvalue.Sub(after, before)

		for _, p := range c.sides() {
			if !r.filters.Match(p) {
				continue
			}

			// A removed path, deleted or renamed away, carries the flipped delta.
			sign := 1.0
			if p == c.from && p != c.to {
				sign = -1
			}

			rec := Record{
				Path:   p,
				Source: sourceOf(p),
				Commit: info,
				Delta:  statvalue.Scale(delta, sign),
				After:  after,
			}
			rec.Lines, rec.LinesTest, rec.LinesNonTest = manifest.Under(linePrefix(p), r.tests.MatchBase)

			records = append(records, rec)
		}
	}

	return records, nil
}

func (r *Reconstructor) diff(oldTree, newTree *gitlib.Tree) ([]gitlib.DiffDelta, error) {
	diff, err := r.repo.DiffTreeToTree(oldTree, newTree, false)
	if err != nil {
		return nil, err
	}
	defer diff.Free()

	return diff.Deltas()
}

// recordChange is one changed record. from is empty for an added record and
// to is empty for a removed one.
type recordChange struct {
	from, to         string
	fromBlob, toBlob gitlib.Hash
	renamed          bool
	dropped          bool
}

// sides returns the paths a change is reported under, new path first.
func (c recordChange) sides() []string {
	switch {
	case c.renamed:
		return []string{c.to, c.from}
	case c.to != "":
		return []string{c.to}
	}

	return []string{c.from}
}

// recordChanges keeps the record entries of a snapshot diff and joins the
// removal and addition of a file record into one rename when the source file
// was renamed.
func recordChanges(deltas []gitlib.DiffDelta, renames map[string]string) []recordChange {
	var (
		out      []recordChange
		removed  = map[string]int{}
		inserted = map[string]int{}
	)

	for _, d := range deltas {
		change, ok := d.Change()
		if !ok {
			continue
		}

		var c recordChange

		if isRecordPath(change.From) {
			c.from, c.fromBlob = change.From, d.OldFile.Hash
		}

		if isRecordPath(change.To) {
			c.to, c.toBlob = change.To, d.NewFile.Hash
		}

		switch {
		case c.from == "" && c.to == "":
			continue
		case c.from == "":
			inserted[c.to] = len(out)
		case c.to == "":
			removed[c.from] = len(out)
		}

		out = append(out, c)
	}

	for newSource, oldSource := range renames {
		i, okOld := removed[snapshot.RecordPath(oldSource)]
		j, okNew := inserted[snapshot.RecordPath(newSource)]

		if !okOld || !okNew {
			continue
		}

		out[j].from, out[j].fromBlob, out[j].renamed = out[i].from, out[i].fromBlob, true
		out[i].dropped = true
	}

	kept := out[:0]

	for _, c := range out {
		if !c.dropped {
			kept = append(kept, c)
		}
	}

	return kept
}

// loadPair loads both sides of a change. A missing side is a zero of the other's shape.
func (r *Reconstructor) loadPair(c recordChange) (before, after statvalue.Value, err error) {
	if c.from != "" {
		before, err = r.value(c.fromBlob)
		if err != nil {
			return before, after, fmt.Errorf("read %s: %w", c.from, err)
		}
	}

	if c.to != "" {
		after, err = r.value(c.toBlob)
		if err != nil {
			return before, after, fmt.Errorf("read %s: %w", c.to, err)
		}
	}

	switch {
	case c.from == "":
		before = statvalue.Zero(after)
	case c.to == "":
		after = statvalue.Zero(before)
	}

	return before, after, nil
}

func (r *Reconstructor) value(blobHash gitlib.Hash) (statvalue.Value, error) {
	if v, ok := r.values.Get(blobHash); ok {
		return v, nil
	}

	blob, err := r.repo.LookupBlob(blobHash)
	if err != nil {
		return statvalue.Value{}, err
	}
	defer blob.Free()

	v, err := statvalue.Unmarshal(blob.Contents())
	if err != nil {
		return statvalue.Value{}, err
	}

	r.values.Put(blobHash, v)

	return v, nil
}

// After returns the stored value of the record at path as of a snapshot commit.
func (r *Reconstructor) After(hash gitlib.Hash, path string) (statvalue.Value, bool, error) {
	commit, err := r.repo.LookupCommit(hash)
	if err != nil {
		return statvalue.Value{}, false, err
	}
	defer commit.Free()

	tree, err := commit.Tree()
	if err != nil {
		return statvalue.Value{}, false, err
	}
	defer tree.Free()

	data, ok, err := tree.ReadFile(path)
	if err != nil || !ok {
		return statvalue.Value{}, false, err
	}

	v, err := statvalue.Unmarshal(data)
	if err != nil {
		return statvalue.Value{}, false, fmt.Errorf("read %s: %w", path, err)
	}

	return v, true, nil
}

func commitInfo(commit *gitlib.Commit) CommitInfo {
	source, message, _ := strings.Cut(commit.Message(), "\n")

	return CommitInfo{
		Hash:      commit.Hash(),
		Source:    source,
		Message:   message,
		Author:    commit.Author(),
		Committer: commit.Committer(),
	}
}

func isRecordPath(p string) bool {
	if p == "" {
		return false
	}

	return strings.HasSuffix(p, snapshot.RecordSuffix) || snapshot.IsAggregate(baseName(p))
}

// sourceOf strips the record suffix. Aggregates keep their snapshot path.
func sourceOf(p string) string {
	return strings.TrimSuffix(p, snapshot.RecordSuffix)
}

// linePrefix is the source path of a file record or the directory of an
// aggregate, empty for the root.
func linePrefix(p string) string {
	if strings.HasSuffix(p, snapshot.RecordSuffix) {
		return sourceOf(p)
	}

	dir := snapshot.Dir(p)
	if dir == snapshot.Root {
		return ""
	}

	return dir
}

func baseName(p string) string {
	if i := strings.LastIndexByte(p, '/'); i >= 0 {
		return p[i+1:]
	}

	return p
}

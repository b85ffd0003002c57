// Package replay mirrors source history into a snapshot store.
//
// An Engine checks source commits out into a private work copy, one at a
// time, brings the store in line with each of them through an Updater and
// commits the result with the source commit id as provenance. Only the paths a
// commit touched are re-analyzed; everything else is carried over from the
// previous snapshot.
package replay

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/Sumatoshi-tech/treestat/pkg/analyzer"
	"github.com/Sumatoshi-tech/treestat/pkg/gitlib"
	"github.com/Sumatoshi-tech/treestat/pkg/observability"
	"github.com/Sumatoshi-tech/treestat/pkg/snapshot"
	"github.com/Sumatoshi-tech/treestat/pkg/updater"
)

// initialLabel names the empty tree in catch-up messages.
const initialLabel = "initial"

// errStopped ends a replay whose consumer stopped iterating.
var errStopped = errors.New("replay stopped")

// Engine replays source commits into a snapshot store. It is not safe for
// concurrent use.
type Engine struct {
	source  *gitlib.Repository
	records *snapshot.Records
	work    *gitlib.WorkCopy
	updater *updater.Updater

	filters     updater.Filters
	workDir     string
	updaterOpts []updater.Option
	logger      *slog.Logger
	metrics     *observability.Metrics
	tracer      trace.Tracer
}

// New creates an Engine reading history from source and writing to records.
// The work copy lives until Close.
func New(source *gitlib.Repository, records *snapshot.Records, a analyzer.Analyzer, opts ...Option) (*Engine, error) {
	e := &Engine{
		source:  source,
		records: records,
		logger:  observability.Discard(),
		tracer:  noop.NewTracerProvider().Tracer(""),
	}

	for _, opt := range opts {
		opt(e)
	}

	work, err := gitlib.NewWorkCopy(source, e.workDir)
	if err != nil {
		return nil, fmt.Errorf("create work copy: %w", err)
	}

	e.work = work

	updaterOpts := append([]updater.Option{
		updater.WithLogger(e.logger),
		updater.WithTracer(e.tracer),
		updater.WithMetrics(e.metrics),
	}, e.updaterOpts...)

	e.updater = updater.New(work.Dir(), records, a, updaterOpts...)

	return e, nil
}

// Close removes the work copy.
func (e *Engine) Close() error {
	return e.work.Close()
}

// Updater returns the updater the engine drives.
func (e *Engine) Updater() *updater.Updater {
	return e.updater
}

// Range resolves a range expression ("A..B", "A" or empty for HEAD) into
// first-parent commits, oldest first.
func (e *Engine) Range(spec string) ([]gitlib.Hash, error) {
	return e.source.CommitRange(spec)
}

// Replay records one snapshot per commit and yields the snapshot ids in
// replay order. commits must be ordered oldest first. The first error ends
// the sequence; snapshots committed before it stay in the store.
func (e *Engine) Replay(ctx context.Context, commits []gitlib.Hash, opts Options) iter.Seq2[gitlib.Hash, error] {
	return func(yield func(gitlib.Hash, error) bool) {
		if len(commits) == 0 {
			return
		}

		ctx, span := e.tracer.Start(ctx, "treestat.replay",
			trace.WithAttributes(
				attribute.Int("replay.commits", len(commits)),
				attribute.Bool("replay.incremental", opts.Incremental),
				attribute.Bool("replay.reverse", opts.Reverse),
			))
		defer span.End()

		err := e.replay(ctx, commits, opts, yield)
		if err == nil || errors.Is(err, errStopped) {
			return
		}

		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		yield(gitlib.Hash{}, err)
	}
}

func (e *Engine) replay(ctx context.Context, commits []gitlib.Hash, opts Options, yield func(gitlib.Hash, error) bool) error {
	start := 0

	if !opts.Incremental && !opts.Reverse {
		resumed, err := e.resume(commits)
		if err != nil {
			return err
		}

		start = resumed
	}

	order := make([]int, 0, len(commits)-start)
	for i := start; i < len(commits); i++ {
		order = append(order, i)
	}

	if opts.Reverse {
		for i, j := 0, len(order)-1; i < j; i, j = i+1, j-1 {
			order[i], order[j] = order[j], order[i]
		}
	}

	if len(order) == 0 {
		e.logger.InfoContext(ctx, "nothing to replay", "commits", len(commits))

		return nil
	}

	if !opts.Incremental {
		_, seeded, err := e.records.Store().HeadMessage()
		if err != nil {
			return fmt.Errorf("read store head: %w", err)
		}

		if !seeded {
			err = e.seed(ctx, commits[order[0]])
			if err != nil {
				return err
			}
		}
	}

	catchUp := opts.Incremental || opts.Reverse

	for _, i := range order {
		err := ctx.Err()
		if err != nil {
			return err
		}

		previous, err := e.previous(commits, i)
		if err != nil {
			return err
		}

		hash, err := e.mirror(ctx, previous, commits[i], catchUp)
		if err != nil {
			return err
		}

		if !yield(hash, nil) {
			return errStopped
		}
	}

	return nil
}

// resume resets the store to the newest listed commit that already has a
// snapshot and returns the index of the first commit left to replay.
func (e *Engine) resume(commits []gitlib.Hash) (int, error) {
	provenance, err := e.records.Store().Provenance()
	if err != nil {
		return 0, fmt.Errorf("read provenance: %w", err)
	}

	for i := len(commits) - 1; i >= 0; i-- {
		snap, ok := provenance[commits[i].String()]
		if !ok {
			continue
		}

		err = e.records.ResetTo(snap)
		if err != nil {
			return 0, fmt.Errorf("reset store to %s: %w", snap.Short(), err)
		}

		e.logger.Info("resuming replay", "after", commits[i].Short(), "snapshot", snap.Short(), "skipped", i+1)

		return i + 1, nil
	}

	return 0, nil
}

// previous returns the commit that precedes commits[i] chronologically: the
// previous list element, or the first parent at the start of the list.
func (e *Engine) previous(commits []gitlib.Hash, i int) (gitlib.Hash, error) {
	if i > 0 {
		return commits[i-1], nil
	}

	commit, err := e.lookup(commits[0])
	if err != nil {
		return gitlib.Hash{}, err
	}
	defer commit.Free()

	return commit.ParentHash(0), nil
}

func (e *Engine) lookup(hash gitlib.Hash) (*gitlib.Commit, error) {
	commit, err := e.source.LookupCommit(hash)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", gitlib.ErrRevisionNotFound, hash)
	}

	return commit, nil
}

// seed records the full state of the parent of first as the baseline.
func (e *Engine) seed(ctx context.Context, first gitlib.Hash) error {
	ctx, span := e.tracer.Start(ctx, "treestat.replay.seed")
	defer span.End()

	commit, err := e.lookup(first)
	if err != nil {
		return err
	}

	parent := commit.ParentHash(0)
	commit.Free()

	e.logger.InfoContext(ctx, "performing initial analysis", "revision", label(parent))

	err = e.materialize(parent)
	if err != nil {
		return err
	}

	_, err = e.updater.Update(ctx, updater.All(), e.filters)
	if err != nil {
		return fmt.Errorf("seed store: %w", err)
	}

	_, err = e.records.Store().Commit(ctx, snapshot.CommitRequest{Message: snapshot.IgnoreMessage(label(parent))})
	if err != nil {
		return fmt.Errorf("commit seed: %w", err)
	}

	e.metrics.RecordCommit(ctx, observability.CommitKindSeed)

	return nil
}

// mirror records the snapshot of current, updating only the paths that
// differ from previous.
func (e *Engine) mirror(ctx context.Context, previous, current gitlib.Hash, catchUp bool) (gitlib.Hash, error) {
	ctx, span := e.tracer.Start(ctx, "treestat.replay.commit",
		trace.WithAttributes(attribute.String("source.commit", current.String())))
	defer span.End()

	commit, err := e.lookup(current)
	if err != nil {
		return gitlib.Hash{}, err
	}
	defer commit.Free()

	changes, err := e.diffCommits(previous, commit)
	if err != nil {
		return gitlib.Hash{}, err
	}

	changed := updater.Paths(changes.Paths()...)

	if catchUp {
		err = e.catchUp(ctx, previous, changed)
		if err != nil {
			return gitlib.Hash{}, err
		}
	}

	err = e.materialize(current)
	if err != nil {
		return gitlib.Hash{}, err
	}

	dirty, err := e.updater.Update(ctx, changed, e.filters)
	if err != nil {
		return gitlib.Hash{}, fmt.Errorf("update %s: %w", current.Short(), err)
	}

	store := e.records.Store()

	err = snapshot.WriteManifest(store, snapshot.NewManifest(changes))
	if err != nil {
		return gitlib.Hash{}, err
	}

	hash, err := store.Commit(ctx, snapshot.CommitRequest{
		Message:   current.String() + "\n" + commit.Message(),
		Author:    commit.Author(),
		Committer: commit.Committer(),
	})
	if err != nil {
		return gitlib.Hash{}, fmt.Errorf("commit snapshot of %s: %w", current.Short(), err)
	}

	e.metrics.RecordCommit(ctx, observability.CommitKindMirror)

	span.SetAttributes(attribute.String("snapshot.commit", hash.String()), attribute.Int("update.dirty", len(dirty)))
	e.logger.DebugContext(ctx, "recorded snapshot",
		"source", current.Short(), "snapshot", hash.Short(), "changed", len(changes), "dirty", len(dirty))

	return hash, nil
}

// catchUp brings the changed paths of the store to their state at previous.
// Nothing is committed when the store already follows previous.
func (e *Engine) catchUp(ctx context.Context, previous gitlib.Hash, changed updater.ChangeSet) error {
	err := e.materialize(previous)
	if err != nil {
		return err
	}

	_, err = e.updater.Update(ctx, changed, e.filters)
	if err != nil {
		return fmt.Errorf("catch up to %s: %w", label(previous), err)
	}

	before, err := e.head()
	if err != nil {
		return err
	}

	hash, err := e.records.Store().Commit(ctx, snapshot.CommitRequest{
		Message:       snapshot.IgnoreMessage(label(previous)),
		SkipUnchanged: true,
	})
	if err != nil {
		return fmt.Errorf("commit catch-up: %w", err)
	}

	if hash != before {
		e.metrics.RecordCommit(ctx, observability.CommitKindCatchUp)
	}

	return nil
}

// diffCommits returns the changes from previous (the empty tree when zero) to commit.
func (e *Engine) diffCommits(previous gitlib.Hash, commit *gitlib.Commit) (gitlib.Changes, error) {
	tree, err := commit.Tree()
	if err != nil {
		return nil, err
	}
	defer tree.Free()

	var prevTree *gitlib.Tree

	if !previous.IsZero() {
		prev, lookupErr := e.lookup(previous)
		if lookupErr != nil {
			return nil, lookupErr
		}

		prevTree, err = prev.Tree()
		prev.Free()

		if err != nil {
			return nil, err
		}

		defer prevTree.Free()
	}

	changes, err := gitlib.TreeDiff(e.source, prevTree, tree, true)
	if err != nil {
		return nil, fmt.Errorf("diff %s: %w", commit.Hash().Short(), err)
	}

	return changes, nil
}

// materialize makes the work copy match hash, or empties it for the zero hash.
func (e *Engine) materialize(hash gitlib.Hash) error {
	var err error

	if hash.IsZero() {
		err = e.work.CheckoutEmpty()
	} else {
		err = e.work.Checkout(hash)
	}

	if err != nil {
		return fmt.Errorf("materialize %s: %w", label(hash), err)
	}

	return nil
}

// head returns the store head, zero when there is none.
func (e *Engine) head() (gitlib.Hash, error) {
	repo := e.records.Store().Repository()
	if repo == nil {
		return gitlib.Hash{}, nil
	}

	ok, err := repo.HasHead()
	if err != nil || !ok {
		return gitlib.Hash{}, err
	}

	return repo.Head()
}

func label(hash gitlib.Hash) string {
	if hash.IsZero() {
		return initialLabel
	}

	return hash.String()
}

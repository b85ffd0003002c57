package replay

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/treestat/pkg/gitlib"
	"github.com/Sumatoshi-tech/treestat/pkg/observability"
	"github.com/Sumatoshi-tech/treestat/pkg/snapshot"
	"github.com/Sumatoshi-tech/treestat/pkg/updater"
)

// WorkingTreeLabel names the live working tree in diff snapshot messages.
const WorkingTreeLabel = "<working tree>"

// ErrNoWorkingTree is returned when a working tree diff is asked of a bare repository.
var ErrNoWorkingTree = errors.New("source repository has no working tree")

// DiffRevisions records one snapshot describing the change from before to
// after. An empty before means HEAD; an empty after means the live working
// tree of the source repository, staged and unstaged changes included.
//
// Two updates run over the same changed paths: one against before, committed
// as a catch-up, and one against after, committed as "before..after".
func (e *Engine) DiffRevisions(ctx context.Context, before, after string) (gitlib.Hash, error) {
	if before == "" {
		before = "HEAD"
	}

	afterLabel := after
	if afterLabel == "" {
		afterLabel = WorkingTreeLabel
	}

	ctx, span := e.tracer.Start(ctx, "treestat.diff",
		trace.WithAttributes(attribute.String("diff.before", before), attribute.String("diff.after", afterLabel)))
	defer span.End()

	hash, err := e.diffRevisions(ctx, before, after, afterLabel)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		return gitlib.Hash{}, err
	}

	return hash, nil
}

func (e *Engine) diffRevisions(ctx context.Context, before, after, afterLabel string) (gitlib.Hash, error) {
	beforeHash, err := e.source.Resolve(before)
	if err != nil {
		return gitlib.Hash{}, err
	}

	var afterHash gitlib.Hash

	if after != "" {
		afterHash, err = e.source.Resolve(after)
		if err != nil {
			return gitlib.Hash{}, err
		}
	} else if e.source.IsBare() {
		return gitlib.Hash{}, ErrNoWorkingTree
	}

	changes, err := e.diffRevisionTrees(beforeHash, afterHash)
	if err != nil {
		return gitlib.Hash{}, err
	}

	changed := updater.Paths(changes.Paths()...)

	e.logger.InfoContext(ctx, "generating diff", "before", before, "after", afterLabel, "changed", len(changes))

	err = e.catchUp(ctx, beforeHash, changed)
	if err != nil {
		return gitlib.Hash{}, err
	}

	upd := e.updater

	if afterHash.IsZero() {
		upd = upd.WithRoot(e.source.WorkDir())
	} else {
		err = e.materialize(afterHash)
		if err != nil {
			return gitlib.Hash{}, err
		}
	}

	_, err = upd.Update(ctx, changed, e.filters)
	if err != nil {
		return gitlib.Hash{}, fmt.Errorf("update %s: %w", afterLabel, err)
	}

	store := e.records.Store()

	err = snapshot.WriteManifest(store, snapshot.NewManifest(changes))
	if err != nil {
		return gitlib.Hash{}, err
	}

	hash, err := store.Commit(ctx, snapshot.CommitRequest{Message: before + ".." + afterLabel})
	if err != nil {
		return gitlib.Hash{}, fmt.Errorf("commit diff snapshot: %w", err)
	}

	e.metrics.RecordCommit(ctx, observability.CommitKindDiff)

	return hash, nil
}

// diffRevisionTrees diffs the tree of before against the tree of after, or
// against the source working tree when after is zero.
func (e *Engine) diffRevisionTrees(before, after gitlib.Hash) (gitlib.Changes, error) {
	beforeCommit, err := e.lookup(before)
	if err != nil {
		return nil, err
	}
	defer beforeCommit.Free()

	beforeTree, err := beforeCommit.Tree()
	if err != nil {
		return nil, err
	}
	defer beforeTree.Free()

	if after.IsZero() {
		changes, diffErr := gitlib.WorkdirDiff(e.source, beforeTree, true)
		if diffErr != nil {
			return nil, fmt.Errorf("diff working tree: %w", diffErr)
		}

		return changes, nil
	}

	afterCommit, err := e.lookup(after)
	if err != nil {
		return nil, err
	}
	defer afterCommit.Free()

	afterTree, err := afterCommit.Tree()
	if err != nil {
		return nil, err
	}
	defer afterTree.Free()

	changes, err := gitlib.TreeDiff(e.source, beforeTree, afterTree, true)
	if err != nil {
		return nil, fmt.Errorf("diff %s..%s: %w", before.Short(), after.Short(), err)
	}

	return changes, nil
}

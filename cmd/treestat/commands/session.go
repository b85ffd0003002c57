package commands

import (
	"context"
	"fmt"
	"iter"
	"os"

	"github.com/Sumatoshi-tech/treestat/pkg/delta"
	"github.com/Sumatoshi-tech/treestat/pkg/gitlib"
	"github.com/Sumatoshi-tech/treestat/pkg/report"
	"github.com/Sumatoshi-tech/treestat/pkg/replay"
	"github.com/Sumatoshi-tech/treestat/pkg/snapshot"
)

// tempStorePrefix names the throwaway stores of log and diff.
const tempStorePrefix = "treestat-tmp"

// session bundles an open source repository, a snapshot store and the replay
// engine between them.
type session struct {
	app     *App
	source  *gitlib.Repository
	records *snapshot.Records
	engine  *replay.Engine
	cleanup []func()
}

// storeLocation selects where a session keeps its snapshots.
type storeLocation int

const (
	// persistentStore is the configured snapshot repository.
	persistentStore storeLocation = iota
	// freshStore is the configured snapshot repository, emptied first.
	freshStore
	// temporaryStore is removed when the session closes.
	temporaryStore
)

// openSession opens the source repository, the snapshot store and a replay
// engine restricted to the include prefixes paths.
func (a *App) openSession(location storeLocation, paths []string) (*session, error) {
	s := &session{app: a}

	source, err := a.OpenSource()
	if err != nil {
		return nil, err
	}

	s.source = source
	s.cleanup = append(s.cleanup, source.Free)

	dir := a.StoreDir(source)

	switch location {
	case persistentStore:
	case freshStore:
		a.Logger.Info("clearing snapshot store", "dir", dir)

		if err = os.RemoveAll(dir); err != nil {
			s.Close()

			return nil, fmt.Errorf("clear snapshot store: %w", err)
		}
	case temporaryStore:
		dir, err = os.MkdirTemp("", tempStorePrefix)
		if err != nil {
			s.Close()

			return nil, fmt.Errorf("create temporary store: %w", err)
		}

		tmp := dir
		s.cleanup = append(s.cleanup, func() {
			if rmErr := os.RemoveAll(tmp); rmErr != nil {
				a.Logger.Warn("remove temporary store", "dir", tmp, "error", rmErr)
			}
		})
	}

	a.Logger.Debug("opening snapshot store", "dir", dir, "backend", a.Config.Store.Backend)

	records, closeStore, err := a.OpenStore(dir)
	if err != nil {
		s.Close()

		return nil, err
	}

	s.records = records
	s.cleanup = append(s.cleanup, closeStore)

	engine, err := a.NewEngine(source, records, paths)
	if err != nil {
		s.Close()

		return nil, err
	}

	s.engine = engine
	s.cleanup = append(s.cleanup, func() {
		if closeErr := engine.Close(); closeErr != nil {
			a.Logger.Warn("remove work copy", "error", closeErr)
		}
	})

	return s, nil
}

// Close releases everything in reverse order of acquisition.
func (s *session) Close() {
	for i := len(s.cleanup) - 1; i >= 0; i-- {
		s.cleanup[i]()
	}

	s.cleanup = nil
}

// replayRange replays the commits of spec and logs each recorded snapshot.
func (s *session) replayRange(ctx context.Context, spec string, opts replay.Options) (iter.Seq2[gitlib.Hash, error], int, error) {
	commits, err := s.engine.Range(spec)
	if err != nil {
		return nil, 0, err
	}

	total := len(commits)
	s.app.Logger.Info("replaying commits", "range", spec, "commits", total,
		"incremental", opts.Incremental, "reverse", opts.Reverse)

	snapshots := func(yield func(gitlib.Hash, error) bool) {
		n := 0

		for hash, replayErr := range s.engine.Replay(ctx, commits, opts) {
			if replayErr == nil {
				n++
				s.app.Logger.Debug("snapshot recorded", "snapshot", hash.Short(), "done", n, "total", total)
			}

			if !yield(hash, replayErr) {
				return
			}
		}
	}

	return snapshots, total, nil
}

// recordRange brings the store up to date with spec and yields the snapshot
// of every commit in the range, oldest first, including the ones recorded by
// earlier runs.
func (s *session) recordRange(ctx context.Context, spec string) (iter.Seq2[gitlib.Hash, error], error) {
	commits, err := s.engine.Range(spec)
	if err != nil {
		return nil, err
	}

	snapshots, _, err := s.replayRange(ctx, spec, replay.Options{})
	if err != nil {
		return nil, err
	}

	return func(yield func(gitlib.Hash, error) bool) {
		for _, replayErr := range snapshots {
			if replayErr != nil {
				yield(gitlib.Hash{}, replayErr)

				return
			}
		}

		provenance, provErr := s.records.Store().Provenance()
		if provErr != nil {
			yield(gitlib.Hash{}, fmt.Errorf("read provenance: %w", provErr))

			return
		}

		for _, commit := range commits {
			snap, ok := provenance[commit.String()]
			if !ok {
				s.app.Logger.Debug("commit has no snapshot", "commit", commit.Short())

				continue
			}

			if !yield(snap, nil) {
				return
			}
		}
	}, nil
}

// reconstructor returns the delta reader of the session's store.
func (s *session) reconstructor(filters []string) (*delta.Reconstructor, error) {
	return s.app.Reconstructor(s.records, filters)
}

// writeRecords drains records into w.
func writeRecords(records iter.Seq2[delta.Record, error], w interface{ Write(delta.Record) error }) error {
	for rec, err := range records {
		if err != nil {
			return err
		}

		if err := w.Write(rec); err != nil {
			return err
		}
	}

	return nil
}

// textReport builds the git-log style renderer shared by log and diff.
func (a *App) textReport(opts reportFlags, methods report.MethodLister, header bool) (*report.Text, error) {
	scores, err := a.Config.CruftScores()
	if err != nil {
		return nil, err
	}

	textOpts := []report.TextOption{
		report.WithScores(scores),
		report.WithAllMetrics(opts.all),
		report.WithAllGrades(opts.allGrades),
		report.WithCommitHeader(header),
	}

	if !opts.noMethods {
		textOpts = append(textOpts, report.WithMethods(methods))
	}

	if opts.noColor {
		textOpts = append(textOpts, report.WithColor(false))
	}

	return report.NewText(a.out, textOpts...), nil
}

package commands

import (
	"errors"
	"iter"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/treestat/pkg/gitlib"
	"github.com/Sumatoshi-tech/treestat/pkg/replay"
	"github.com/Sumatoshi-tech/treestat/pkg/report"
)

// NewLogCommand creates the git-log style delta report.
func NewLogCommand(app *App) *cobra.Command {
	var (
		flags   reportFlags
		reverse bool
	)

	cmd := &cobra.Command{
		Use:   "log [rev-range] [path...]",
		Short: "Show statistic deltas commit by commit",
		Long: `Show how each commit of rev-range changed the code statistics, newest
first. Only the files each commit touches are analyzed, in a throwaway
snapshot repository, so no earlier update is needed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			spec, paths := rangeArgs(args)

			s, err := app.openSession(temporaryStore, paths)
			if err != nil {
				return err
			}
			defer s.Close()

			snapshots, _, err := s.replayRange(cmd.Context(), spec,
				replay.Options{Incremental: true, Reverse: !reverse})
			if err != nil {
				return err
			}

			return s.writeText(cmd, flags, snapshots, true)
		},
	}

	flags.register(cmd.Flags())
	cmd.Flags().BoolVarP(&reverse, "reverse", "r", false, "oldest commit first")

	return cmd
}

// writeText renders the deltas of snapshots as text. Empty filters select
// the test and non-test tree totals.
func (s *session) writeText(cmd *cobra.Command, flags reportFlags, snapshots iter.Seq2[gitlib.Hash, error], header bool) (err error) {
	names := report.DefaultNames()

	filters := flags.filters
	if len(filters) == 0 {
		filters = names.Patterns()
	}

	rec, err := s.reconstructor(filters)
	if err != nil {
		return err
	}

	text, err := s.app.textReport(flags, rec, header)
	if err != nil {
		return err
	}

	defer func() {
		err = errors.Join(err, text.Close())
	}()

	return writeRecords(rec.Deltas(cmd.Context(), snapshots), text)
}

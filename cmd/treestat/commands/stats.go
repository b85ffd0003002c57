package commands

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/treestat/pkg/delta"
	"github.com/Sumatoshi-tech/treestat/pkg/report"
)

// ErrNoRecords is returned when a range produces nothing to report.
var ErrNoRecords = errors.New("no matching records in range")

// NewStatsCommand creates the command printing the statistics at both ends
// of a range.
func NewStatsCommand(app *App) *cobra.Command {
	var (
		force   bool
		filters []string
	)

	cmd := &cobra.Command{
		Use:   "stats [rev-range] [path...]",
		Short: "Show statistics after the first and last commit of a range",
		RunE: func(cmd *cobra.Command, args []string) error {
			spec, paths := rangeArgs(args)

			s, err := app.openSession(storeFor(force), paths)
			if err != nil {
				return err
			}
			defer s.Close()

			snapshots, err := s.recordRange(cmd.Context(), spec)
			if err != nil {
				return err
			}

			rec, err := s.reconstructor(filters)
			if err != nil {
				return err
			}

			var (
				first, last delta.Record
				seen        bool
			)

			for r, deltaErr := range rec.Deltas(cmd.Context(), snapshots) {
				if deltaErr != nil {
					return deltaErr
				}

				if !seen {
					first, seen = r, true
				}

				last = r
			}

			if !seen {
				return ErrNoRecords
			}

			err = report.WriteValue(app.Out(), "Stats after first commit", first.After)
			if err != nil {
				return err
			}

			return report.WriteValue(app.Out(), "Stats after last commit", last.After)
		},
	}

	registerForce(cmd, &force)
	registerFilters(cmd.Flags(), &filters)

	return cmd
}

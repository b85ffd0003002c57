package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/treestat/pkg/gitlib"
	"github.com/Sumatoshi-tech/treestat/pkg/replay"
)

// NewUpdateCommand creates the command recording snapshots into the
// persistent snapshot repository.
func NewUpdateCommand(app *App) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "update [rev-range] [path...]",
		Short: "Record snapshots for a range of commits",
		Long: `Record one snapshot per first-parent commit of rev-range (default: all of
HEAD) into the snapshot repository. Commits already recorded are skipped, so
repeated runs only analyze new history. Paths restrict the analysis to
those source prefixes.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			spec, paths := rangeArgs(args)

			s, err := app.openSession(storeFor(force), paths)
			if err != nil {
				return err
			}
			defer s.Close()

			snapshots, total, err := s.replayRange(cmd.Context(), spec, replay.Options{})
			if err != nil {
				return err
			}

			var (
				recorded int
				last     gitlib.Hash
			)

			for hash, replayErr := range snapshots {
				if replayErr != nil {
					return replayErr
				}

				recorded++
				last = hash
			}

			if recorded == 0 {
				fmt.Fprintf(app.Out(), "snapshot repository up to date (%d commits)\n", total)

				return nil
			}

			fmt.Fprintf(app.Out(), "recorded %d of %d commits, head %s\n", recorded, total, last.Short())

			return nil
		},
	}

	registerForce(cmd, &force)

	return cmd
}

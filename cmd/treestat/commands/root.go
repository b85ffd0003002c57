package commands

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/treestat/pkg/version"
)

// NewRootCommand builds the treestat command tree writing reports to out.
func NewRootCommand(out io.Writer) (*cobra.Command, error) {
	app := NewApp(out)

	root := &cobra.Command{
		Use:   "treestat",
		Short: "treestat - code quality statistics over git history",
		Long: `treestat records per-file code quality statistics for every commit of a
git repository into a snapshot repository, then reports how they change.

Commands:
  update    Record snapshots for a range of commits
  log       Show statistic deltas commit by commit
  diff      Show statistic deltas between two revisions
  stats     Show statistics after the first and last commit of a range
  csv       Export per-file deltas as CSV
  plot      Chart a statistic over a range of commits
  blast     Write statistics next to the files of a plain directory
  verify    Check the aggregates of the snapshot repository`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "version" {
				return nil
			}

			return app.Setup()
		},
		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			app.Shutdown()
		},
	}

	err := app.BindFlags(root)
	if err != nil {
		return nil, err
	}

	root.AddCommand(
		NewUpdateCommand(app),
		NewLogCommand(app),
		NewDiffCommand(app),
		NewStatsCommand(app),
		NewCSVCommand(app),
		NewPlotCommand(app),
		NewBlastCommand(app),
		NewVerifyCommand(app),
		newVersionCommand(app),
	)

	return root, nil
}

func newVersionCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Fprintln(app.Out(), version.String())
		},
	}
}

package commands

import (
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/treestat/pkg/gitlib"
)

// NewDiffCommand creates the report comparing two revisions.
func NewDiffCommand(app *App) *cobra.Command {
	var (
		flags reportFlags
		paths []string
	)

	cmd := &cobra.Command{
		Use:   "diff [before [after]]",
		Short: "Show statistic deltas between two revisions",
		Long: `Show how the code statistics differ between two revisions. before
defaults to HEAD; without after the live working tree is compared, staged
and unstaged changes included.`,
		Args: cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var before, after string

			if len(args) > 0 {
				before = args[0]
			}

			if len(args) > 1 {
				after = args[1]
			}

			s, err := app.openSession(temporaryStore, paths)
			if err != nil {
				return err
			}
			defer s.Close()

			snap, err := s.engine.DiffRevisions(cmd.Context(), before, after)
			if err != nil {
				return err
			}

			return s.writeText(cmd, flags, func(yield func(gitlib.Hash, error) bool) {
				yield(snap, nil)
			}, false)
		},
	}

	flags.register(cmd.Flags())
	cmd.Flags().StringArrayVarP(&paths, "path", "p", nil, "compare only these source path prefixes")

	return cmd
}

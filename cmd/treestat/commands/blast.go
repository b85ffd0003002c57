package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/treestat/pkg/snapshot"
	"github.com/Sumatoshi-tech/treestat/pkg/updater"
)

// NewBlastCommand creates the command analyzing plain directories outside
// of any history.
func NewBlastCommand(app *App) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "blast path...",
		Short: "Write statistics next to the files of a plain directory",
		Long: `Analyze every supported file under each path and write the .record,
.methods and aggregate files beside them, or under --output. A file path
refreshes that file and the aggregates above it.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			an, err := app.Analyzer()
			if err != nil {
				return err
			}

			opts, err := app.UpdaterOptions()
			if err != nil {
				return err
			}

			opts = append(opts, updater.WithLogger(app.Logger), updater.WithMetrics(app.Metrics),
				updater.WithTracer(app.Providers.Tracer))

			filters, err := app.Filters(nil)
			if err != nil {
				return err
			}

			for _, arg := range args {
				path, err := filepath.Abs(arg)
				if err != nil {
					return err
				}

				info, err := os.Stat(path)
				if err != nil {
					return err
				}

				root, changed := path, updater.All()
				if !info.IsDir() {
					root, changed = filepath.Dir(path), updater.Paths(filepath.Base(path))
				}

				dest := root
				if output != "" {
					dest = output
				}

				records := snapshot.NewRecords(snapshot.NewDirStore(dest), 0)

				dirty, err := updater.New(root, records, an, opts...).Update(cmd.Context(), changed, filters)
				if err != nil {
					return fmt.Errorf("blast %s: %w", arg, err)
				}

				fmt.Fprintf(app.Out(), "%s: %d directories updated\n", arg, len(dirty))
			}

			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "write statistics under this directory instead of beside the files")

	return cmd
}

package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/treestat/pkg/updater"
)

// NewVerifyCommand creates the consistency check of the snapshot repository.
func NewVerifyCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Check the aggregates of the snapshot repository",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			source, err := app.OpenSource()
			if err != nil {
				return err
			}
			defer source.Free()

			records, closeStore, err := app.OpenStore(app.StoreDir(source))
			if err != nil {
				return err
			}
			defer closeStore()

			tests, err := app.TestPatterns()
			if err != nil {
				return err
			}

			err = updater.Check(records, tests)
			if err != nil {
				return err
			}

			fmt.Fprintln(app.Out(), "snapshot repository is consistent")

			return nil
		},
	}
}

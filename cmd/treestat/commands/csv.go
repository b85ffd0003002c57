package commands

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/treestat/pkg/report"
)

// NewCSVCommand creates the spreadsheet export of per-record deltas.
func NewCSVCommand(app *App) *cobra.Command {
	var (
		force   bool
		output  string
		filters []string
	)

	cmd := &cobra.Command{
		Use:   "csv [rev-range] [path...]",
		Short: "Export per-file deltas as CSV",
		RunE: func(cmd *cobra.Command, args []string) (err error) {
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

			out, closeOut, err := openOutput(app.Out(), output)
			if err != nil {
				return err
			}

			defer func() {
				err = errors.Join(err, closeOut())
			}()

			w := report.NewCSV(out)

			err = writeRecords(rec.Deltas(cmd.Context(), snapshots), w)
			if err != nil {
				return err
			}

			return w.Flush()
		},
	}

	registerForce(cmd, &force)
	registerFilters(cmd.Flags(), &filters)
	cmd.Flags().StringVarP(&output, "output", "o", "-", "output file (- for stdout)")

	return cmd
}

// openOutput opens path for writing; "-" and "" select stdout.
func openOutput(stdout io.Writer, path string) (io.Writer, func() error, error) {
	if path == "" || path == "-" {
		return stdout, func() error { return nil }, nil
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("create output: %w", err)
	}

	return f, f.Close, nil
}

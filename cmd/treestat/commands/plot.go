package commands

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/treestat/pkg/report"
	"github.com/Sumatoshi-tech/treestat/pkg/statvalue"
)

// ErrInvalidMetric indicates a --metric value that is not "category.metric".
var ErrInvalidMetric = errors.New("metric must be category.metric")

// NewPlotCommand creates the HTML chart of a statistic over a range.
func NewPlotCommand(app *App) *cobra.Command {
	var (
		force   bool
		output  string
		metric  string
		filters []string
	)

	cmd := &cobra.Command{
		Use:   "plot [rev-range] [path...]",
		Short: "Chart a statistic over a range of commits",
		Long: `Render an interactive HTML line chart with one series per reported
record. The plotted value is the cruft score unless --metric names a
statistic such as stats.lines or grades.F.`,
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			spec, paths := rangeArgs(args)

			chartOpts := []report.ChartOption{report.WithTitle(strings.TrimSpace("treestat " + spec))}

			if metric != "" {
				key, parseErr := parseMetric(metric)
				if parseErr != nil {
					return parseErr
				}

				chartOpts = append(chartOpts, report.WithMetric(key))
			}

			scores, err := app.Config.CruftScores()
			if err != nil {
				return err
			}

			chartOpts = append(chartOpts, report.WithChartScores(scores))

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

			chart := report.NewChart(chartOpts...)

			err = writeRecords(rec.Deltas(cmd.Context(), snapshots), chart)
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

			return chart.Render(out)
		},
	}

	registerForce(cmd, &force)
	registerFilters(cmd.Flags(), &filters)
	cmd.Flags().StringVarP(&output, "output", "o", "treestat.html", "output file (- for stdout)")
	cmd.Flags().StringVarP(&metric, "metric", "m", "", "statistic to plot as category.metric (default: cruft)")

	return cmd
}

func parseMetric(s string) (statvalue.Key, error) {
	category, name, ok := strings.Cut(s, ".")
	if !ok || category == "" || name == "" {
		return statvalue.Key{}, fmt.Errorf("%w: %q", ErrInvalidMetric, s)
	}

	return statvalue.Key{Category: category, Metric: name}, nil
}

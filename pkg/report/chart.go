package report

import (
	"io"
	"strings"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/Sumatoshi-tech/treestat/pkg/delta"
	"github.com/Sumatoshi-tech/treestat/pkg/gitlib"
	"github.com/Sumatoshi-tech/treestat/pkg/statvalue"
)

const (
	chartHeight = "500px"
	labelLength = 7
)

// ChartOption configures a Chart.
type ChartOption func(*Chart)

// WithChartScores sets the cruft weighting used when no metric is selected.
func WithChartScores(scores delta.Scores) ChartOption {
	return func(c *Chart) {
		c.scores = scores
	}
}

// WithChartNames sets the series relabeling rules.
func WithChartNames(names Names) ChartOption {
	return func(c *Chart) {
		c.names = names
	}
}

// WithMetric plots one metric of the after values instead of cruft.
func WithMetric(k statvalue.Key) ChartOption {
	return func(c *Chart) {
		c.metric = &k
	}
}

// WithTitle sets the chart title.
func WithTitle(title string) ChartOption {
	return func(c *Chart) {
		c.title = title
	}
}

// Chart collects the after values of delta records into one line per record
// and renders them as an HTML page. A record that does not change in a commit
// keeps its previous value.
type Chart struct {
	scores delta.Scores
	names  Names
	metric *statvalue.Key
	title  string

	labels []string
	order  []string
	series map[string][]float64
	last   gitlib.Hash
}

// NewChart creates an empty chart.
func NewChart(options ...ChartOption) *Chart {
	c := &Chart{
		scores: delta.MustParseScores(delta.DefaultScores),
		names:  DefaultNames(),
		title:  "treestat",
		series: make(map[string][]float64),
	}

	for _, opt := range options {
		opt(c)
	}

	return c
}

// Write adds rec to the chart.
func (c *Chart) Write(rec delta.Record) error {
	if len(c.labels) == 0 || rec.Commit.Hash != c.last {
		c.last = rec.Commit.Hash
		c.labels = append(c.labels, shortLabel(rec.Commit.Source))

		for name, points := range c.series {
			c.series[name] = append(points, points[len(points)-1])
		}
	}

	name := c.names.Label(rec)

	points, ok := c.series[name]
	if !ok {
		points = make([]float64, len(c.labels))
		c.order = append(c.order, name)
	}

	points[len(points)-1] = c.value(rec.After)
	c.series[name] = points

	return nil
}

// Labels returns the x-axis labels, one per commit.
func (c *Chart) Labels() []string {
	return c.labels
}

// Series returns the points of the named line.
func (c *Chart) Series(name string) []float64 {
	return c.series[name]
}

// Render writes the chart page to w.
func (c *Chart) Render(w io.Writer) error {
	yName := "cruft"
	if c.metric != nil {
		yName = c.metric.String()
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: chartHeight, PageTitle: c.title}),
		charts.WithTitleOpts(opts.Title{Title: c.title, Left: "center"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithDataZoomOpts(
			opts.DataZoom{Type: "slider", Start: 0, End: 100},
			opts.DataZoom{Type: "inside"},
		),
		charts.WithYAxisOpts(opts.YAxis{Name: yName}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Type: "scroll", Top: "8%"}),
	)

	line.SetXAxis(c.labels)

	for _, name := range c.order {
		points := c.series[name]

		data := make([]opts.LineData, len(points))
		for i, v := range points {
			data[i] = opts.LineData{Value: v}
		}

		line.AddSeries(name, data)
	}

	return line.Render(w)
}

func (c *Chart) value(after statvalue.Value) float64 {
	if c.metric != nil {
		n, _ := after.Lookup(*c.metric)

		return n
	}

	return delta.Cruft(after, c.scores)
}

func shortLabel(source string) string {
	if len(source) > labelLength && !strings.Contains(source, "..") {
		return source[:labelLength]
	}

	return source
}

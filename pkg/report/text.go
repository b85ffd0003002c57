package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/Sumatoshi-tech/treestat/pkg/analyzer"
	"github.com/Sumatoshi-tech/treestat/pkg/delta"
	"github.com/Sumatoshi-tech/treestat/pkg/gitlib"
	"github.com/Sumatoshi-tech/treestat/pkg/statvalue"
)

// dateLayout matches the default git log date format.
const dateLayout = "Mon Jan 2 15:04:05 2006 -0700"

const messageIndent = "    "

// MethodLister returns the method-list changes of a snapshot commit.
type MethodLister interface {
	MethodChanges(hash gitlib.Hash) ([]string, error)
}

// TextOption configures a Text renderer.
type TextOption func(*Text)

// WithScores sets the cruft weighting.
func WithScores(scores delta.Scores) TextOption {
	return func(t *Text) {
		t.scores = scores
	}
}

// WithNames sets the record relabeling rules.
func WithNames(names Names) TextOption {
	return func(t *Text) {
		t.names = names
	}
}

// WithAllMetrics prints every metric as a table instead of the grade summary.
func WithAllMetrics(all bool) TextOption {
	return func(t *Text) {
		t.all = all
	}
}

// WithAllGrades prints grades whose delta is zero too.
func WithAllGrades(all bool) TextOption {
	return func(t *Text) {
		t.allGrades = all
	}
}

// WithCommitHeader prints the source commit before its records.
func WithCommitHeader(show bool) TextOption {
	return func(t *Text) {
		t.header = show
	}
}

// WithMethods prints method-list diffs from l after each commit header.
func WithMethods(l MethodLister) TextOption {
	return func(t *Text) {
		t.methods = l
	}
}

// WithColor forces colored output on or off.
func WithColor(enabled bool) TextOption {
	return func(t *Text) {
		for _, c := range []*color.Color{t.added, t.removed, t.heading} {
			if enabled {
				c.EnableColor()
			} else {
				c.DisableColor()
			}
		}
	}
}

// Text writes delta records as a git-log style report.
type Text struct {
	w         io.Writer
	scores    delta.Scores
	names     Names
	all       bool
	allGrades bool
	header    bool
	methods   MethodLister

	added   *color.Color
	removed *color.Color
	heading *color.Color

	current gitlib.Hash
	started bool
}

// NewText creates a Text renderer writing to w.
func NewText(w io.Writer, opts ...TextOption) *Text {
	t := &Text{
		w:       w,
		scores:  delta.MustParseScores(delta.DefaultScores),
		names:   DefaultNames(),
		added:   color.New(color.FgGreen),
		removed: color.New(color.FgRed),
		heading: color.New(color.FgYellow),
	}

	for _, opt := range opts {
		opt(t)
	}

	return t
}

// Write renders one record, preceded by a commit section when the record
// belongs to a different snapshot than the previous one.
func (t *Text) Write(rec delta.Record) error {
	var b strings.Builder

	if !t.started || rec.Commit.Hash != t.current {
		if t.started {
			b.WriteString("\n")
		}

		t.started = true
		t.current = rec.Commit.Hash

		if err := t.writeCommit(&b, rec.Commit); err != nil {
			return err
		}
	}

	t.writeRecord(&b, rec)

	_, err := io.WriteString(t.w, b.String())

	return err
}

// Close terminates the report.
func (t *Text) Close() error {
	if !t.started {
		return nil
	}

	_, err := io.WriteString(t.w, "\n")

	return err
}

func (t *Text) writeCommit(b *strings.Builder, c delta.CommitInfo) error {
	if t.header {
		b.WriteString(t.heading.Sprintf("commit %s", c.Source))
		b.WriteString("\n")
		fmt.Fprintf(b, "Author: %s <%s>\n", c.Author.Name, c.Author.Email)
		fmt.Fprintf(b, "Date:   %s\n\n", c.Committer.When.Format(dateLayout))

		for line := range strings.Lines(strings.TrimRight(c.Message, "\n")) {
			b.WriteString(messageIndent + line)
		}

		b.WriteString("\n\n")
	}

	if t.methods == nil {
		return nil
	}

	changes, err := t.methods.MethodChanges(c.Hash)
	if err != nil {
		return fmt.Errorf("method changes of %s: %w", c.Source, err)
	}

	b.WriteString("METHOD DIFFS:\n")

	for _, line := range changes {
		switch {
		case strings.HasPrefix(line, "+"):
			b.WriteString(t.added.Sprint(line))
		case strings.HasPrefix(line, "-"):
			b.WriteString(t.removed.Sprint(line))
		default:
			b.WriteString(line)
		}

		b.WriteString("\n")
	}

	return nil
}

func (t *Text) writeRecord(b *strings.Builder, rec delta.Record) {
	fmt.Fprintf(b, "\n%s:\n", t.names.Label(rec))

	if t.all {
		b.WriteString(valueTable(rec.Delta, rec.After))
		b.WriteString("\n")

		return
	}

	fmt.Fprintf(b, "  LINES: %s (+%s -%s)\n",
		humanize.Comma(int64(rec.Lines.Lines)),
		humanize.Comma(int64(rec.Lines.Insertions)),
		humanize.Comma(int64(rec.Lines.Deletions)))

	for _, g := range analyzer.Grades {
		n := rec.Delta.Get(analyzer.CategoryGrades, g)
		if n == 0 && !t.allGrades {
			continue
		}

		fmt.Fprintf(b, "  %s: %s\n", g, signed(n))
	}

	cruft := delta.Cruft(rec.Delta, t.scores)

	var rendered string

	switch {
	case cruft > 0:
		rendered = t.removed.Sprint(signed(cruft))
	case cruft < 0:
		rendered = t.added.Sprint(signed(cruft))
	default:
		rendered = signed(cruft)
	}

	fmt.Fprintf(b, "  CRUFT: %s\n", rendered)
}

// valueTable renders the delta and after values of every metric.
func valueTable(d, after statvalue.Value) string {
	tbl := newTable()
	tbl.AppendHeader(table.Row{"Metric", "Delta", "After"})

	for _, k := range keysOf(d, after) {
		n, _ := d.Lookup(k)
		a, _ := after.Lookup(k)

		tbl.AppendRow(table.Row{k.String(), signed(n), statvalue.FormatNumber(a)})
	}

	return tbl.Render()
}

// WriteValue renders a titled metric table of v.
func WriteValue(w io.Writer, title string, v statvalue.Value) error {
	tbl := newTable()
	tbl.SetTitle(title)
	tbl.AppendHeader(table.Row{"Category", "Metric", "Value"})

	for _, k := range v.Keys() {
		n, _ := v.Lookup(k)
		tbl.AppendRow(table.Row{k.Category, k.Metric, statvalue.FormatNumber(n)})
	}

	_, err := io.WriteString(w, tbl.Render()+"\n")

	return err
}

func newTable() table.Writer {
	tbl := table.NewWriter()
	tbl.SetStyle(table.StyleLight)
	tbl.Style().Options.SeparateRows = false
	tbl.Style().Options.SeparateColumns = false
	tbl.Style().Options.DrawBorder = false
	tbl.Style().Options.SeparateHeader = true

	return tbl
}

// keysOf returns the sorted union of the keys of values.
func keysOf(values ...statvalue.Value) []statvalue.Key {
	shape := statvalue.Value{}
	for _, v := range values {
		if !v.IsNeutral() {
			shape = statvalue.Add(shape, statvalue.Zero(v))
		}
	}

	return shape.Keys()
}

func signed(n float64) string {
	if n < 0 {
		return statvalue.FormatNumber(n)
	}

	return "+" + statvalue.FormatNumber(n)
}

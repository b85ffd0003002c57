package report

import (
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"github.com/Sumatoshi-tech/treestat/pkg/delta"
	"github.com/Sumatoshi-tech/treestat/pkg/statvalue"
)

var lineColumns = []string{
	"Total Lines", "Inserted Lines", "Deleted Lines",
	"Test Total Lines", "Test Inserted Lines", "Test Deleted Lines",
	"Non-test Total Lines", "Non-test Inserted Lines", "Non-test Deleted Lines",
}

// CSV writes one row per delta record. The metric columns are fixed by the
// first record; later records missing a metric report zero for it.
type CSV struct {
	w    *csv.Writer
	keys []statvalue.Key
}

// NewCSV creates a CSV writer on w.
func NewCSV(w io.Writer) *CSV {
	return &CSV{w: csv.NewWriter(w)}
}

// Write appends the row of rec, writing the header first when needed.
func (c *CSV) Write(rec delta.Record) error {
	if c.keys == nil {
		c.keys = keysOf(rec.Delta, rec.After)

		if err := c.w.Write(c.header()); err != nil {
			return err
		}
	}

	row := make([]string, 0, 4+len(lineColumns)+2*len(c.keys))
	row = append(row,
		rec.Commit.Committer.When.Format(time.RFC3339),
		rec.Commit.Author.Email,
		rec.Commit.Source,
		Artifact(rec),
	)

	for _, l := range []delta.LineTotals{rec.Lines, rec.LinesTest, rec.LinesNonTest} {
		row = append(row, strconv.Itoa(l.Lines), strconv.Itoa(l.Insertions), strconv.Itoa(l.Deletions))
	}

	for _, v := range []statvalue.Value{rec.Delta, rec.After} {
		for _, k := range c.keys {
			n, _ := v.Lookup(k)
			row = append(row, statvalue.FormatNumber(n))
		}
	}

	return c.w.Write(row)
}

// Flush writes buffered rows to the underlying writer.
func (c *CSV) Flush() error {
	c.w.Flush()

	return c.w.Error()
}

func (c *CSV) header() []string {
	header := make([]string, 0, 4+len(lineColumns)+2*len(c.keys))
	header = append(header, "Commit Time", "Author", "SHA", "Artifact")
	header = append(header, lineColumns...)

	for _, k := range c.keys {
		header = append(header, k.String()+"(delta)")
	}

	for _, k := range c.keys {
		header = append(header, k.String())
	}

	return header
}

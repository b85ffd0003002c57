package gitlib

import (
	"fmt"

	git2go "github.com/libgit2/git2go/v34"
)

// Diff wraps a libgit2 diff.
type Diff struct {
	diff *git2go.Diff
}

// NumDeltas returns the number of deltas in the diff.
func (d *Diff) NumDeltas() (int, error) {
	numDeltas, err := d.diff.NumDeltas()
	if err != nil {
		return 0, fmt.Errorf("get num deltas: %w", err)
	}

	return numDeltas, nil
}

// Delta returns the delta at the given index.
func (d *Diff) Delta(index int) (DiffDelta, error) {
	delta, err := d.diff.Delta(index)
	if err != nil {
		return DiffDelta{}, fmt.Errorf("get delta: %w", err)
	}

	return wrapDelta(delta), nil
}

// Deltas returns all deltas of the diff in order.
func (d *Diff) Deltas() ([]DiffDelta, error) {
	n, err := d.NumDeltas()
	if err != nil {
		return nil, err
	}

	deltas := make([]DiffDelta, 0, n)

	for i := range n {
		delta, deltaErr := d.Delta(i)
		if deltaErr != nil {
			return nil, deltaErr
		}

		deltas = append(deltas, delta)
	}

	return deltas, nil
}

// LineStats walks the diff line by line and returns per-delta insertion and deletion
// counts, in delta order. Binary deltas count zero lines.
func (d *Diff) LineStats() ([]LineStat, error) {
	var stats []LineStat

	err := d.diff.ForEach(func(delta git2go.DiffDelta, _ float64) (git2go.DiffForEachHunkCallback, error) {
		stats = append(stats, LineStat{Delta: wrapDelta(delta)})
		idx := len(stats) - 1

		return func(_ git2go.DiffHunk) (git2go.DiffForEachLineCallback, error) {
			return func(line git2go.DiffLine) error {
				switch line.Origin {
				case git2go.DiffLineAddition:
					stats[idx].Insertions++
				case git2go.DiffLineDeletion:
					stats[idx].Deletions++
				case git2go.DiffLineContext,
					git2go.DiffLineContextEOFNL,
					git2go.DiffLineAddEOFNL,
					git2go.DiffLineDelEOFNL,
					git2go.DiffLineFileHdr,
					git2go.DiffLineHunkHdr,
					git2go.DiffLineBinary:
				}

				return nil
			}, nil
		}, nil
	}, git2go.DiffDetailLines)
	if err != nil {
		return nil, fmt.Errorf("diff foreach: %w", err)
	}

	return stats, nil
}

// Free releases the diff resources.
func (d *Diff) Free() {
	if d.diff == nil {
		return
	}

	err := d.diff.Free()
	d.diff = nil
	// Free errors are non-actionable in cleanup.
	if err != nil {
		return
	}
}

// DiffDelta represents a file change in a diff.
type DiffDelta struct {
	Status  git2go.Delta
	OldFile DiffFile
	NewFile DiffFile
}

// DiffFile represents a file in a diff delta.
type DiffFile struct {
	Path string
	Hash Hash
	Size int64
}

// LineStat is a delta with its changed line counts.
type LineStat struct {
	Delta      DiffDelta
	Insertions int
	Deletions  int
}

func wrapDelta(delta git2go.DiffDelta) DiffDelta {
	return DiffDelta{
		Status:  delta.Status,
		OldFile: DiffFile{Path: delta.OldFile.Path, Hash: HashFromOid(delta.OldFile.Oid), Size: int64(delta.OldFile.Size)},
		NewFile: DiffFile{Path: delta.NewFile.Path, Hash: HashFromOid(delta.NewFile.Oid), Size: int64(delta.NewFile.Size)},
	}
}

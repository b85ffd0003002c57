package updater

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/Sumatoshi-tech/treestat/pkg/pathmatch"
	"github.com/Sumatoshi-tech/treestat/pkg/snapshot"
	"github.com/Sumatoshi-tech/treestat/pkg/statvalue"
)

// ErrInconsistent reports an aggregate that does not match the records below it.
var ErrInconsistent = errors.New("inconsistent aggregate")

// Check verifies every directory and subtree aggregate in the store against
// the records they are computed from, and that no directory without data
// survived pruning.
func Check(records *snapshot.Records, tests pathmatch.Matcher) error {
	_, err := checkDir(records, tests, snapshot.Root)

	return err
}

func checkDir(records *snapshot.Records, tests pathmatch.Matcher, dir string) (bool, error) {
	store := records.Store()

	subdirs, err := store.ListDirs(dir)
	if err != nil {
		return false, err
	}

	children := make([][]statvalue.Value, len(snapshot.DirectoryAggregates))

	for _, sub := range subdirs {
		child := snapshot.Join(dir, sub)

		hasData, childErr := checkDir(records, tests, child)
		if childErr != nil {
			return false, childErr
		}

		if !hasData {
			return false, fmt.Errorf("%w: %s holds no data but was not pruned", ErrInconsistent, child)
		}

		for i, name := range snapshot.DirectoryAggregates {
			v, ok, readErr := records.ReadValue(snapshot.Join(child, snapshot.Subtree(name)))
			if readErr != nil {
				return false, readErr
			}

			if ok {
				children[i] = append(children[i], v)
			}
		}
	}

	own, err := expectedTotals(records, tests, dir)
	if err != nil {
		return false, err
	}

	hasData := false

	for i, name := range snapshot.DirectoryAggregates {
		var want statvalue.Value
		if own != nil {
			want = own[i]
		}

		err = expect(records, snapshot.Join(dir, name), want, own != nil)
		if err != nil {
			return false, err
		}

		parts := children[i]
		if own != nil {
			parts = append(parts, own[i])
		}

		subtree := statvalue.Sum(parts...)

		err = expect(records, snapshot.Join(dir, snapshot.Subtree(name)), subtree, !subtree.IsNeutral())
		if err != nil {
			return false, err
		}

		hasData = hasData || !subtree.IsNeutral()
	}

	return hasData, nil
}

// expectedTotals sums the records of dir, nil when there are none.
func expectedTotals(records *snapshot.Records, tests pathmatch.Matcher, dir string) ([]statvalue.Value, error) {
	names, err := records.Store().ListFiles(dir)
	if err != nil {
		return nil, err
	}

	var totals []statvalue.Value

	for _, name := range names {
		source, ok := strings.CutSuffix(name, snapshot.RecordSuffix)
		if !ok {
			continue
		}

		v, ok, readErr := records.ReadValue(snapshot.Join(dir, name))
		if readErr != nil {
			return nil, readErr
		}

		if !ok {
			continue
		}

		if totals == nil {
			zero := statvalue.Zero(v)
			totals = []statvalue.Value{zero, zero, zero}
		}

		totals[0] = statvalue.Add(totals[0], v)

		if tests.MatchBase(source) {
			totals[1] = statvalue.Add(totals[1], v)
		} else {
			totals[2] = statvalue.Add(totals[2], v)
		}
	}

	return totals, nil
}

func expect(records *snapshot.Records, p string, want statvalue.Value, present bool) error {
	got, ok, err := records.ReadValue(p)
	if err != nil {
		return err
	}

	switch {
	case ok && !present:
		return fmt.Errorf("%w: %s should not exist", ErrInconsistent, p)
	case !ok && present:
		return fmt.Errorf("%w: %s is missing", ErrInconsistent, p)
	case ok && !approxEqual(got, want):
		return fmt.Errorf("%w: %s is %v, want %v", ErrInconsistent, p, got, want)
	}

	return nil
}

// approxEqual compares values with a relative tolerance, since sums of
// non-integer metrics depend on addition order.
func approxEqual(a, b statvalue.Value) bool {
	keys := a.Keys()
	if len(keys) != b.Len() {
		return false
	}

	for _, k := range keys {
		x, _ := a.Lookup(k)

		y, ok := b.Lookup(k)
		if !ok || math.Abs(x-y) > 1e-9*math.Max(1, math.Abs(x)) {
			return false
		}
	}

	return true
}

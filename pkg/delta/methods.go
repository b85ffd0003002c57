package delta

import (
	"slices"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/Sumatoshi-tech/treestat/pkg/gitlib"
	"github.com/Sumatoshi-tech/treestat/pkg/snapshot"
	"github.com/Sumatoshi-tech/treestat/pkg/statvalue"
)

// MethodChanges diffs the method lists a snapshot commit changed against its
// parent. Entries render as "module.name: grade * lines"; removed entries are
// prefixed with "-" and added ones with "+".
func (r *Reconstructor) MethodChanges(hash gitlib.Hash) ([]string, error) {
	commit, err := r.repo.LookupCommit(hash)
	if err != nil {
		return nil, err
	}
	defer commit.Free()

	tree, err := commit.Tree()
	if err != nil {
		return nil, err
	}
	defer tree.Free()

	parentTree, err := commit.ParentTree()
	if err != nil {
		return nil, err
	}
	defer parentTree.Free()

	deltas, err := r.diff(parentTree, tree)
	if err != nil {
		return nil, err
	}

	var before, after []string

	for _, d := range deltas {
		change, ok := d.Change()
		if !ok {
			continue
		}

		if strings.HasSuffix(change.From, snapshot.MethodsSuffix) {
			entries, loadErr := r.methods(d.OldFile.Hash, change.From)
			if loadErr != nil {
				return nil, loadErr
			}

			before = append(before, entries...)
		}

		if strings.HasSuffix(change.To, snapshot.MethodsSuffix) {
			entries, loadErr := r.methods(d.NewFile.Hash, change.To)
			if loadErr != nil {
				return nil, loadErr
			}

			after = append(after, entries...)
		}
	}

	slices.Sort(before)
	slices.Sort(after)

	return diffLines(before, after), nil
}

func (r *Reconstructor) methods(blobHash gitlib.Hash, p string) ([]string, error) {
	blob, err := r.repo.LookupBlob(blobHash)
	if err != nil {
		return nil, err
	}
	defer blob.Free()

	methods, err := statvalue.UnmarshalMethods(blob.Contents())
	if err != nil {
		return nil, err
	}

	module := ""
	if dir := snapshot.Dir(p); dir != snapshot.Root {
		module = strings.ReplaceAll(dir, "/", ".") + "."
	}

	out := make([]string, 0, len(methods))
	for _, m := range methods {
		out = append(out, module+m.String())
	}

	return out, nil
}

// diffLines returns the removed and added lines between two line lists.
func diffLines(before, after []string) []string {
	if len(before) == 0 && len(after) == 0 {
		return nil
	}

	dmp := diffmatchpatch.New()
	src, dst, lineArray := dmp.DiffLinesToRunes(joinLines(before), joinLines(after))
	diffs := dmp.DiffCharsToLines(dmp.DiffMainRunes(src, dst, false), lineArray)

	var out []string

	for _, d := range diffs {
		var prefix string

		switch d.Type {
		case diffmatchpatch.DiffDelete:
			prefix = "-"
		case diffmatchpatch.DiffInsert:
			prefix = "+"
		case diffmatchpatch.DiffEqual:
			continue
		}

		for line := range strings.Lines(d.Text) {
			out = append(out, prefix+strings.TrimSuffix(line, "\n"))
		}
	}

	return out
}

func joinLines(lines []string) string {
	if len(lines) == 0 {
		return ""
	}

	return strings.Join(lines, "\n") + "\n"
}

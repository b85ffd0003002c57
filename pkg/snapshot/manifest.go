package snapshot

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Sumatoshi-tech/treestat/pkg/gitlib"
)

// LineCounts are raw line changes of one path.
type LineCounts struct {
	Lines      int `yaml:"lines"`
	Insertions int `yaml:"insertions"`
	Deletions  int `yaml:"deletions"`
}

// Add returns the element-wise sum.
func (l LineCounts) Add(o LineCounts) LineCounts {
	return LineCounts{
		Lines:      l.Lines + o.Lines,
		Insertions: l.Insertions + o.Insertions,
		Deletions:  l.Deletions + o.Deletions,
	}
}

// ManifestTotal summarizes a manifest.
type ManifestTotal struct {
	Files      int `yaml:"files"`
	Lines      int `yaml:"lines"`
	Insertions int `yaml:"insertions"`
	Deletions  int `yaml:"deletions"`
}

// Manifest records which source paths a snapshot commit changed, with raw line counts.
type Manifest struct {
	Files map[string]LineCounts
	// Renames maps the new path of each renamed source file to its old path.
	Renames map[string]string
	Total   ManifestTotal
}

// manifestEntry is the stored form of one LATEST_CHANGES entry.
type manifestEntry struct {
	Lines      int    `yaml:"lines"`
	Insertions int    `yaml:"insertions"`
	Deletions  int    `yaml:"deletions"`
	From       string `yaml:"from,omitempty"`
}

// NewManifest builds a manifest from source changes, attributing each change to its new path.
func NewManifest(changes gitlib.Changes) Manifest {
	m := Manifest{
		Files:   make(map[string]LineCounts, len(changes)),
		Renames: map[string]string{},
	}

	for _, c := range changes {
		counts := LineCounts{Lines: c.Lines(), Insertions: c.Insertions, Deletions: c.Deletions}
		m.Files[c.Path()] = m.Files[c.Path()].Add(counts)

		if c.Action == gitlib.Rename {
			m.Renames[c.To] = c.From
		}
	}

	for _, counts := range m.Files {
		m.Total.Lines += counts.Lines
		m.Total.Insertions += counts.Insertions
		m.Total.Deletions += counts.Deletions
	}

	m.Total.Files = len(m.Files)

	return m
}

// Paths returns the manifest paths in sorted order.
func (m Manifest) Paths() []string {
	return slices.Sorted(maps.Keys(m.Files))
}

// Under sums the counts of paths inside prefix, split by isTest on each path.
// An empty prefix matches everything; a file prefix matches only that file.
func (m Manifest) Under(prefix string, isTest func(string) bool) (all, test, nonTest LineCounts) {
	for p, counts := range m.Files {
		if prefix != "" && p != prefix && !strings.HasPrefix(p, prefix+"/") {
			continue
		}

		all = all.Add(counts)

		if isTest(p) {
			test = test.Add(counts)
		} else {
			nonTest = nonTest.Add(counts)
		}
	}

	return all, test, nonTest
}

// WriteManifest stores m at the snapshot root.
func WriteManifest(store Store, m Manifest) error {
	files := make(map[string]manifestEntry, len(m.Files))
	for p, counts := range m.Files {
		files[p] = manifestEntry{
			Lines:      counts.Lines,
			Insertions: counts.Insertions,
			Deletions:  counts.Deletions,
			From:       m.Renames[p],
		}
	}

	data, err := yaml.Marshal(files)
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}

	err = WriteFile(store, LatestChanges, data)
	if err != nil {
		return err
	}

	data, err = yaml.Marshal(m.Total)
	if err != nil {
		return fmt.Errorf("marshal manifest total: %w", err)
	}

	return WriteFile(store, LatestChangesTotal, data)
}

// ReadManifest loads the manifest stored in a snapshot tree. A tree without
// one yields an empty manifest.
func ReadManifest(tree *gitlib.Tree) (Manifest, error) {
	m := Manifest{Files: map[string]LineCounts{}, Renames: map[string]string{}}

	data, ok, err := tree.ReadFile(LatestChanges)
	if err != nil || !ok {
		return m, err
	}

	var files map[string]manifestEntry

	err = yaml.Unmarshal(data, &files)
	if err != nil {
		return m, fmt.Errorf("unmarshal manifest: %w", err)
	}

	for p, entry := range files {
		m.Files[p] = LineCounts{Lines: entry.Lines, Insertions: entry.Insertions, Deletions: entry.Deletions}

		if entry.From != "" {
			m.Renames[p] = entry.From
		}
	}

	data, ok, err = tree.ReadFile(LatestChangesTotal)
	if err != nil || !ok {
		return m, err
	}

	err = yaml.Unmarshal(data, &m.Total)
	if err != nil {
		return m, fmt.Errorf("unmarshal manifest total: %w", err)
	}

	return m, nil
}

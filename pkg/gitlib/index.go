package gitlib

import (
	"fmt"
	"strings"

	git2go "github.com/libgit2/git2go/v34"

	"github.com/Sumatoshi-tech/treestat/pkg/safeconv"
)

// Index wraps a libgit2 index, either the repository's on-disk index or a
// detached in-memory one.
type Index struct {
	index    *git2go.Index
	repo     *Repository
	inMemory bool
}

// IndexEntry is one staged path.
type IndexEntry struct {
	Path string
	Hash Hash
}

// NewIndex creates an empty in-memory index whose blobs and trees are written to repo.
func NewIndex(repo *Repository) (*Index, error) {
	index, err := git2go.NewIndex()
	if err != nil {
		return nil, fmt.Errorf("create index: %w", err)
	}

	return &Index{index: index, repo: repo, inMemory: true}, nil
}

// Index opens the repository's on-disk index.
func (r *Repository) Index() (*Index, error) {
	index, err := r.repo.Index()
	if err != nil {
		return nil, fmt.Errorf("open index: %w", err)
	}

	return &Index{index: index, repo: r}, nil
}

// ReadTree replaces the index contents with tree. A nil tree empties the index.
func (i *Index) ReadTree(tree *Tree) error {
	if tree == nil {
		err := i.index.Clear()
		if err != nil {
			return fmt.Errorf("clear index: %w", err)
		}

		return nil
	}

	err := i.index.ReadTree(tree.tree)
	if err != nil {
		return fmt.Errorf("read tree into index: %w", err)
	}

	return nil
}

// AddBlob writes data as a blob and stages it at path without touching any working tree.
func (i *Index) AddBlob(path string, data []byte) error {
	hash, err := i.repo.CreateBlob(data)
	if err != nil {
		return err
	}

	entry := &git2go.IndexEntry{
		Mode: git2go.FilemodeBlob,
		Size: safeconv.FileSizeToUint32(len(data)),
		Id:   hash.ToOid(),
		Path: path,
	}

	err = i.index.Add(entry)
	if err != nil {
		return fmt.Errorf("stage %s: %w", path, err)
	}

	return nil
}

// AddPath stages a file from the repository's working directory.
func (i *Index) AddPath(path string) error {
	err := i.index.AddByPath(path)
	if err != nil {
		return fmt.Errorf("stage %s: %w", path, err)
	}

	return nil
}

// Remove unstages path. Removing a path that is not staged is not an error.
func (i *Index) Remove(path string) error {
	if _, ok := i.Lookup(path); !ok {
		return nil
	}

	err := i.index.RemoveByPath(path)
	if err != nil {
		return fmt.Errorf("unstage %s: %w", path, err)
	}

	return nil
}

// Lookup returns the staged blob hash for path.
func (i *Index) Lookup(path string) (Hash, bool) {
	entry, err := i.index.EntryByPath(path, 0)
	if err != nil || entry == nil {
		return Hash{}, false
	}

	return HashFromOid(entry.Id), true
}

// Read returns the staged contents of path.
func (i *Index) Read(path string) ([]byte, bool, error) {
	hash, ok := i.Lookup(path)
	if !ok {
		return nil, false, nil
	}

	blob, err := i.repo.LookupBlob(hash)
	if err != nil {
		return nil, false, err
	}
	defer blob.Free()

	return blob.Contents(), true, nil
}

// Entries returns staged entries whose path starts with prefix, in index order.
func (i *Index) Entries(prefix string) ([]IndexEntry, error) {
	count := i.index.EntryCount()
	entries := make([]IndexEntry, 0)

	for n := range count {
		entry, err := i.index.EntryByIndex(n)
		if err != nil {
			return nil, fmt.Errorf("read index entry: %w", err)
		}

		if !strings.HasPrefix(entry.Path, prefix) {
			continue
		}

		entries = append(entries, IndexEntry{Path: entry.Path, Hash: HashFromOid(entry.Id)})
	}

	return entries, nil
}

// Len returns the number of staged entries.
func (i *Index) Len() int {
	return safeconv.MustUintToInt(i.index.EntryCount())
}

// WriteTree writes the staged state as a tree object.
func (i *Index) WriteTree() (Hash, error) {
	oid, err := i.index.WriteTreeTo(i.repo.repo)
	if err != nil {
		return Hash{}, fmt.Errorf("write tree: %w", err)
	}

	return HashFromOid(oid), nil
}

// Write persists an on-disk index. It is a no-op for in-memory indexes.
func (i *Index) Write() error {
	if i.inMemory {
		return nil
	}

	err := i.index.Write()
	if err != nil {
		return fmt.Errorf("write index: %w", err)
	}

	return nil
}

// Free releases the index resources.
func (i *Index) Free() {
	if i.index != nil {
		i.index.Free()
		i.index = nil
	}
}

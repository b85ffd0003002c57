package snapshot

import (
	"io"
	"slices"
	"strings"

	"github.com/Sumatoshi-tech/treestat/pkg/gitlib"
)

// IndexStore keeps the working state in an in-memory git index. Writes are
// injected as blobs directly into the object database and the tree is only
// materialized on Commit; no working tree exists.
type IndexStore struct {
	history
}

// OpenIndexStore opens the snapshot repository at path, initializing a bare
// repository when none exists, and stages the head tree.
func OpenIndexStore(path string) (*IndexStore, error) {
	repo, err := openOrInit(path, true)
	if err != nil {
		return nil, err
	}

	store, err := NewIndexStore(repo)
	if err != nil {
		repo.Free()

		return nil, err
	}

	return store, nil
}

// NewIndexStore builds a store over an open repository. Close frees the repository.
func NewIndexStore(repo *gitlib.Repository) (*IndexStore, error) {
	index, err := gitlib.NewIndex(repo)
	if err != nil {
		return nil, err
	}

	s := &IndexStore{history: history{repo: repo, index: index}}

	hasHead, err := repo.HasHead()
	if err == nil && hasHead {
		var head gitlib.Hash

		head, err = repo.Head()
		if err == nil {
			err = s.stage(head)
		}
	}

	if err != nil {
		index.Free()

		return nil, err
	}

	return s, nil
}

func (s *IndexStore) stage(hash gitlib.Hash) error {
	commit, err := s.repo.LookupCommit(hash)
	if err != nil {
		return err
	}
	defer commit.Free()

	tree, err := commit.Tree()
	if err != nil {
		return err
	}
	defer tree.Free()

	return s.index.ReadTree(tree)
}

// ListFiles returns the staged file names directly inside dir.
func (s *IndexStore) ListFiles(dir string) ([]string, error) {
	files, _, err := s.list(dir)

	return files, err
}

// ListDirs returns the staged subdirectory names directly inside dir.
func (s *IndexStore) ListDirs(dir string) ([]string, error) {
	_, dirs, err := s.list(dir)

	return dirs, err
}

func (s *IndexStore) list(dir string) (files, dirs []string, err error) {
	prefix := Join(dir, "")

	entries, err := s.index.Entries(prefix)
	if err != nil {
		return nil, nil, err
	}

	files, dirs = []string{}, []string{}

	for _, e := range entries {
		rest := strings.TrimPrefix(e.Path, prefix)

		sub, _, nested := strings.Cut(rest, "/")
		if !nested {
			files = append(files, rest)

			continue
		}

		if len(dirs) == 0 || dirs[len(dirs)-1] != sub {
			dirs = append(dirs, sub)
		}
	}

	slices.Sort(files)
	slices.Sort(dirs)

	return files, slices.Compact(dirs), nil
}

// Read returns the staged content of path.
func (s *IndexStore) Read(path string) ([]byte, bool, error) {
	return s.index.Read(path)
}

// Write stages content for path when the returned writer is closed.
func (s *IndexStore) Write(path string) (io.WriteCloser, error) {
	return &bufferedWriter{commit: func(data []byte) error {
		return s.index.AddBlob(path, data)
	}}, nil
}

// Remove unstages path.
func (s *IndexStore) Remove(path string) error {
	return s.index.Remove(path)
}

// RemoveDirIfEmpty is a no-op: index directories exist only through their entries.
func (s *IndexStore) RemoveDirIfEmpty(string) error {
	return nil
}

// ResetTo moves head to hash and stages its tree.
func (s *IndexStore) ResetTo(hash gitlib.Hash) error {
	err := s.repo.SetHead(hash)
	if err != nil {
		return err
	}

	return s.stage(hash)
}

// Close releases the index and repository.
func (s *IndexStore) Close() error {
	s.index.Free()
	s.repo.Free()

	return nil
}

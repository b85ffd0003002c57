package snapshot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"

	"github.com/Sumatoshi-tech/treestat/pkg/gitlib"
)

// fsTree implements the working-state half of Store over a directory.
type fsTree struct {
	root string
}

func (t fsTree) abs(p string) string {
	if p == "" || p == Root {
		return t.root
	}

	return filepath.Join(t.root, filepath.FromSlash(p))
}

func (t fsTree) list(dir string, wantDirs bool) ([]string, error) {
	entries, err := os.ReadDir(t.abs(dir))
	if errors.Is(err, fs.ErrNotExist) {
		return []string{}, nil
	}

	if err != nil {
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}

	names := []string{}

	for _, e := range entries {
		if e.IsDir() != wantDirs {
			continue
		}

		if wantDirs && (dir == Root || dir == "") && e.Name() == ".git" {
			continue
		}

		names = append(names, e.Name())
	}

	slices.Sort(names)

	return names, nil
}

func (t fsTree) ListFiles(dir string) ([]string, error) {
	return t.list(dir, false)
}

func (t fsTree) ListDirs(dir string) ([]string, error) {
	return t.list(dir, true)
}

func (t fsTree) Read(p string) ([]byte, bool, error) {
	data, err := os.ReadFile(t.abs(p))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}

	if err != nil {
		return nil, false, fmt.Errorf("read %s: %w", p, err)
	}

	return data, true, nil
}

// writeFile writes data to p, creating parent directories.
func (t fsTree) writeFile(p string, data []byte) error {
	target := t.abs(p)

	err := os.MkdirAll(filepath.Dir(target), 0o755)
	if err != nil {
		return fmt.Errorf("create dir for %s: %w", p, err)
	}

	err = os.WriteFile(target, data, 0o644)
	if err != nil {
		return fmt.Errorf("write %s: %w", p, err)
	}

	return nil
}

func (t fsTree) removeFile(p string) error {
	err := os.Remove(t.abs(p))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", p, err)
	}

	return nil
}

func (t fsTree) RemoveDirIfEmpty(dir string) error {
	if dir == "" || dir == Root {
		return nil
	}

	entries, err := os.ReadDir(t.abs(dir))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}

	if err != nil {
		return fmt.Errorf("list %s: %w", dir, err)
	}

	if len(entries) > 0 {
		return nil
	}

	err = os.Remove(t.abs(dir))
	if err != nil {
		return fmt.Errorf("remove dir %s: %w", dir, err)
	}

	return nil
}

// DirStore keeps records as plain files without history. It backs one-off
// analyses where no snapshot repository is wanted.
type DirStore struct {
	fsTree
}

// NewDirStore returns a store rooted at dir.
func NewDirStore(dir string) *DirStore {
	return &DirStore{fsTree: fsTree{root: dir}}
}

// Write writes path when the returned writer is closed.
func (s *DirStore) Write(p string) (io.WriteCloser, error) {
	return &bufferedWriter{commit: func(data []byte) error {
		return s.writeFile(p, data)
	}}, nil
}

// Remove deletes path.
func (s *DirStore) Remove(p string) error {
	return s.removeFile(p)
}

// Commit is not supported.
func (s *DirStore) Commit(context.Context, CommitRequest) (gitlib.Hash, error) {
	return gitlib.Hash{}, ErrCommitUnsupported
}

// HeadMessage reports no head.
func (s *DirStore) HeadMessage() (string, bool, error) {
	return "", false, nil
}

// ResolveSourceRevision finds nothing.
func (s *DirStore) ResolveSourceRevision(string) (gitlib.Hash, bool, error) {
	return gitlib.Hash{}, false, nil
}

// Provenance is empty.
func (s *DirStore) Provenance() (map[string]gitlib.Hash, error) {
	return map[string]gitlib.Hash{}, nil
}

// ResetTo is not supported.
func (s *DirStore) ResetTo(gitlib.Hash) error {
	return ErrCommitUnsupported
}

// Repository returns nil.
func (s *DirStore) Repository() *gitlib.Repository {
	return nil
}

// Close does nothing.
func (s *DirStore) Close() error {
	return nil
}

package snapshot

import (
	"errors"
	"fmt"
	"io"

	"github.com/Sumatoshi-tech/treestat/pkg/gitlib"
)

// ErrBareRepository is returned when a worktree store is opened on a bare repository.
var ErrBareRepository = errors.New("worktree store needs a non-bare repository")

// WorktreeStore writes records through to the working tree of a non-bare
// repository and stages them in its on-disk index, so the current state can be
// inspected with ordinary tools.
type WorktreeStore struct {
	fsTree
	history
}

// OpenWorktreeStore opens or initializes a non-bare snapshot repository at path.
func OpenWorktreeStore(path string) (*WorktreeStore, error) {
	repo, err := openOrInit(path, false)
	if err != nil {
		return nil, err
	}

	store, err := NewWorktreeStore(repo)
	if err != nil {
		repo.Free()

		return nil, err
	}

	return store, nil
}

// NewWorktreeStore builds a store over an open repository. Close frees the repository.
func NewWorktreeStore(repo *gitlib.Repository) (*WorktreeStore, error) {
	if repo.IsBare() {
		return nil, fmt.Errorf("%w: %s", ErrBareRepository, repo.Path())
	}

	index, err := repo.Index()
	if err != nil {
		return nil, err
	}

	return &WorktreeStore{
		fsTree:  fsTree{root: repo.WorkDir()},
		history: history{repo: repo, index: index},
	}, nil
}

// Write writes and stages path when the returned writer is closed.
func (s *WorktreeStore) Write(p string) (io.WriteCloser, error) {
	return &bufferedWriter{commit: func(data []byte) error {
		err := s.writeFile(p, data)
		if err != nil {
			return err
		}

		return s.index.AddPath(p)
	}}, nil
}

// Remove deletes and unstages path.
func (s *WorktreeStore) Remove(p string) error {
	err := s.removeFile(p)
	if err != nil {
		return err
	}

	return s.index.Remove(p)
}

// ResetTo moves head to hash and checks its tree out.
func (s *WorktreeStore) ResetTo(hash gitlib.Hash) error {
	err := s.repo.SetHead(hash)
	if err != nil {
		return err
	}

	err = s.repo.CheckoutCommit(hash)
	if err != nil {
		return err
	}

	index, err := s.repo.Index()
	if err != nil {
		return err
	}

	s.index.Free()
	s.index = index

	return nil
}

// Close releases the index and repository.
func (s *WorktreeStore) Close() error {
	s.index.Free()
	s.repo.Free()

	return nil
}

package gitlib

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// WorkCopy is a private checkout of a source repository. It borrows the
// source object database through git alternates, so creating it copies no
// objects and checking out revisions never touches the source checkout.
type WorkCopy struct {
	repo    *Repository
	dir     string
	ownsDir bool
}

// NewWorkCopy creates a work copy of source in dir, or in a fresh temporary
// directory when dir is empty.
func NewWorkCopy(source *Repository, dir string) (*WorkCopy, error) {
	ownsDir := false

	if dir == "" {
		tmp, err := os.MkdirTemp("", "treestat-workcopy-")
		if err != nil {
			return nil, fmt.Errorf("create work copy dir: %w", err)
		}

		dir, ownsDir = tmp, true
	}

	initialized, err := InitRepository(dir, false)
	if err != nil {
		return nil, cleanupOnError(dir, ownsDir, err)
	}

	gitDir := initialized.GitDir()
	initialized.Free()

	alternates := filepath.Join(gitDir, "objects", "info", "alternates")
	objects := filepath.Join(source.GitDir(), "objects")

	err = os.MkdirAll(filepath.Dir(alternates), 0o755)
	if err == nil {
		err = os.WriteFile(alternates, []byte(objects+"\n"), 0o644)
	}

	if err != nil {
		return nil, cleanupOnError(dir, ownsDir, fmt.Errorf("link object database: %w", err))
	}

	repo, err := OpenRepository(dir)
	if err != nil {
		return nil, cleanupOnError(dir, ownsDir, err)
	}

	return &WorkCopy{repo: repo, dir: dir, ownsDir: ownsDir}, nil
}

func cleanupOnError(dir string, owned bool, err error) error {
	if !owned {
		return err
	}

	return errors.Join(err, os.RemoveAll(dir))
}

// Dir returns the work copy's working directory.
func (w *WorkCopy) Dir() string {
	return w.dir
}

// Repository returns the work copy's repository handle.
func (w *WorkCopy) Repository() *Repository {
	return w.repo
}

// Checkout materializes the tree of commit hash, removing every file the tree does not contain.
// It returns only after the working directory matches the commit.
func (w *WorkCopy) Checkout(hash Hash) error {
	err := w.repo.CheckoutCommit(hash)
	if err != nil {
		return err
	}

	err = w.repo.repo.SetHeadDetached(hash.ToOid())
	if err != nil {
		return fmt.Errorf("detach HEAD: %w", err)
	}

	return nil
}

// CheckoutEmpty removes every file from the working directory.
func (w *WorkCopy) CheckoutEmpty() error {
	index, err := NewIndex(w.repo)
	if err != nil {
		return err
	}
	defer index.Free()

	empty, err := index.WriteTree()
	if err != nil {
		return err
	}

	tree, err := w.repo.LookupTree(empty)
	if err != nil {
		return err
	}
	defer tree.Free()

	return w.repo.checkoutTree(tree.tree)
}

// Close releases the repository and removes the directory if the work copy created it.
func (w *WorkCopy) Close() error {
	w.repo.Free()

	if !w.ownsDir {
		return nil
	}

	err := os.RemoveAll(w.dir)
	if err != nil {
		return fmt.Errorf("remove work copy: %w", err)
	}

	return nil
}

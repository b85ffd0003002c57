// Package snapshot stores metric records and directory aggregates in a
// commit-addressed git repository.
//
// A Store exposes a mutable working state (listing, reading, writing and
// removing record files) and durable history (commits). Mutations stay staged
// until Commit.
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/Sumatoshi-tech/treestat/pkg/gitlib"
)

// Backend names accepted by Open.
const (
	BackendIndex    = "index"
	BackendWorktree = "worktree"
)

// Sentinel errors.
var (
	ErrCommitUnsupported = errors.New("store has no history")
	ErrUnknownBackend    = errors.New("unknown store backend")
)

// DefaultSignature signs commits that carry no source identity.
var DefaultSignature = gitlib.Signature{Name: "treestat", Email: "treestat@localhost"}

// CommitRequest describes one snapshot commit.
type CommitRequest struct {
	Message   string
	Author    gitlib.Signature
	Committer gitlib.Signature

	// SkipUnchanged returns the current head instead of committing when the
	// staged tree equals the head tree.
	SkipUnchanged bool
}

// Store is a snapshot repository.
type Store interface {
	// ListFiles returns the sorted file names directly inside dir.
	ListFiles(dir string) ([]string, error)
	// ListDirs returns the sorted subdirectory names directly inside dir.
	ListDirs(dir string) ([]string, error)
	// Read returns the staged content of path. A missing path is not an error.
	Read(path string) ([]byte, bool, error)
	// Write opens path for writing. Content is staged when the writer is closed.
	Write(path string) (io.WriteCloser, error)
	// Remove unstages path. Removing a missing path is not an error.
	Remove(path string) error
	// RemoveDirIfEmpty drops dir when nothing is left in it.
	RemoveDirIfEmpty(dir string) error

	// Commit records the staged state.
	Commit(ctx context.Context, req CommitRequest) (gitlib.Hash, error)
	// HeadMessage returns the message of the head commit, if there is one.
	HeadMessage() (string, bool, error)
	// ResolveSourceRevision finds the newest snapshot whose provenance is sha.
	ResolveSourceRevision(sha string) (gitlib.Hash, bool, error)
	// Provenance maps source ids to their newest snapshot commit.
	Provenance() (map[string]gitlib.Hash, error)
	// ResetTo replaces the staged state and head with an existing snapshot.
	ResetTo(hash gitlib.Hash) error
	// Repository returns the backing repository, nil when there is none.
	Repository() *gitlib.Repository

	Close() error
}

// Open opens the snapshot repository at path with the named backend, creating
// it when missing, and wraps it with a listing cache.
func Open(path, backend string) (Store, error) {
	var (
		store Store
		err   error
	)

	switch backend {
	case BackendIndex, "":
		store, err = OpenIndexStore(path)
	case BackendWorktree:
		store, err = OpenWorktreeStore(path)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, backend)
	}

	if err != nil {
		return nil, err
	}

	return Cached(store), nil
}

// WriteFile writes data to path through a store writer.
func WriteFile(store Store, path string, data []byte) error {
	w, err := store.Write(path)
	if err != nil {
		return err
	}

	_, err = w.Write(data)
	if err != nil {
		return errors.Join(fmt.Errorf("write %s: %w", path, err), w.Close())
	}

	return w.Close()
}

// openOrInit opens the repository at path or initializes a new one.
func openOrInit(path string, bare bool) (*gitlib.Repository, error) {
	_, statErr := os.Stat(path)
	if statErr == nil {
		repo, err := gitlib.OpenRepository(path)
		if err == nil {
			return repo, nil
		}

		entries, readErr := os.ReadDir(path)
		if readErr != nil || len(entries) > 0 {
			return nil, err
		}
	}

	err := os.MkdirAll(path, 0o755)
	if err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}

	return gitlib.InitRepository(path, bare)
}

// bufferedWriter stages its content through commit when closed.
type bufferedWriter struct {
	buf    []byte
	commit func([]byte) error
	closed bool
}

func (w *bufferedWriter) Write(p []byte) (int, error) {
	if w.closed {
		return 0, os.ErrClosed
	}

	w.buf = append(w.buf, p...)

	return len(p), nil
}

func (w *bufferedWriter) Close() error {
	if w.closed {
		return os.ErrClosed
	}

	w.closed = true

	return w.commit(w.buf)
}

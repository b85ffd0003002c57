package snapshot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	git2go "github.com/libgit2/git2go/v34"

	"github.com/Sumatoshi-tech/treestat/pkg/gitlib"
)

// history implements the commit side of git-backed stores over a staging index.
type history struct {
	repo  *gitlib.Repository
	index *gitlib.Index
}

func (h *history) Repository() *gitlib.Repository {
	return h.repo
}

func (h *history) Commit(_ context.Context, req CommitRequest) (gitlib.Hash, error) {
	err := h.index.Write()
	if err != nil {
		return gitlib.Hash{}, err
	}

	tree, err := h.index.WriteTree()
	if err != nil {
		return gitlib.Hash{}, err
	}

	var parents []gitlib.Hash

	hasHead, err := h.repo.HasHead()
	if err != nil {
		return gitlib.Hash{}, err
	}

	if hasHead {
		head, headErr := h.headCommit()
		if headErr != nil {
			return gitlib.Hash{}, headErr
		}

		headHash, headTree := head.Hash(), head.TreeHash()
		head.Free()

		if req.SkipUnchanged && headTree == tree {
			return headHash, nil
		}

		parents = append(parents, headHash)
	}

	author, committer := req.Author, req.Committer
	if author.IsZero() {
		author = DefaultSignature
		author.When = time.Now()
	}

	if committer.IsZero() {
		committer = author
	}

	hash, err := h.repo.CreateCommit(tree, author, committer, req.Message, parents...)
	if err != nil {
		return gitlib.Hash{}, fmt.Errorf("commit snapshot: %w", err)
	}

	return hash, nil
}

func (h *history) headCommit() (*gitlib.Commit, error) {
	head, err := h.repo.Head()
	if err != nil {
		return nil, err
	}

	return h.repo.LookupCommit(head)
}

func (h *history) HeadMessage() (string, bool, error) {
	hasHead, err := h.repo.HasHead()
	if err != nil || !hasHead {
		return "", false, err
	}

	commit, err := h.headCommit()
	if err != nil {
		return "", false, err
	}
	defer commit.Free()

	return commit.Message(), true, nil
}

// walk visits snapshot commits newest first until fn returns false.
func (h *history) walk(fn func(hash gitlib.Hash, message string) bool) error {
	hasHead, err := h.repo.HasHead()
	if err != nil || !hasHead {
		return err
	}

	walk, err := h.repo.Walk()
	if err != nil {
		return err
	}
	defer walk.Free()

	walk.Sorting(git2go.SortTopological | git2go.SortTime)

	err = walk.PushHead()
	if err != nil {
		return err
	}

	for {
		hash, nextErr := walk.Next()
		if errors.Is(nextErr, io.EOF) {
			return nil
		}

		if nextErr != nil {
			return nextErr
		}

		commit, lookupErr := h.repo.LookupCommit(hash)
		if lookupErr != nil {
			return lookupErr
		}

		message := commit.Message()
		commit.Free()

		if !fn(hash, message) {
			return nil
		}
	}
}

func (h *history) ResolveSourceRevision(sha string) (gitlib.Hash, bool, error) {
	var (
		found gitlib.Hash
		ok    bool
	)

	err := h.walk(func(hash gitlib.Hash, message string) bool {
		if IsIgnoreMessage(message) || gitlib.FirstToken(message) != sha {
			return true
		}

		found, ok = hash, true

		return false
	})

	return found, ok, err
}

func (h *history) Provenance() (map[string]gitlib.Hash, error) {
	provenance := make(map[string]gitlib.Hash)

	err := h.walk(func(hash gitlib.Hash, message string) bool {
		if IsIgnoreMessage(message) {
			return true
		}

		token := gitlib.FirstToken(message)
		if _, seen := provenance[token]; !seen && token != "" {
			provenance[token] = hash
		}

		return true
	})
	if err != nil {
		return nil, err
	}

	return provenance, nil
}

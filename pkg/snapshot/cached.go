package snapshot

import (
	"io"
	"slices"

	"github.com/Sumatoshi-tech/treestat/pkg/gitlib"
)

// cachedStore memoizes directory listings of an inner store. Writes and
// removes patch the cached listings of the directories they touch; nothing
// else is invalidated until the staged state is replaced by ResetTo.
type cachedStore struct {
	Store

	files map[string][]string
	dirs  map[string][]string
}

// Cached wraps store with per-directory listing caches.
func Cached(store Store) Store {
	if _, ok := store.(*cachedStore); ok {
		return store
	}

	return &cachedStore{
		Store: store,
		files: make(map[string][]string),
		dirs:  make(map[string][]string),
	}
}

func normDir(dir string) string {
	if dir == "" {
		return Root
	}

	return dir
}

func (c *cachedStore) ListFiles(dir string) ([]string, error) {
	dir = normDir(dir)

	if names, ok := c.files[dir]; ok {
		return slices.Clone(names), nil
	}

	names, err := c.Store.ListFiles(dir)
	if err != nil {
		return nil, err
	}

	c.files[dir] = names

	return slices.Clone(names), nil
}

func (c *cachedStore) ListDirs(dir string) ([]string, error) {
	dir = normDir(dir)

	if names, ok := c.dirs[dir]; ok {
		return slices.Clone(names), nil
	}

	names, err := c.Store.ListDirs(dir)
	if err != nil {
		return nil, err
	}

	c.dirs[dir] = names

	return slices.Clone(names), nil
}

func (c *cachedStore) Write(p string) (io.WriteCloser, error) {
	inner, err := c.Store.Write(p)
	if err != nil {
		return nil, err
	}

	return &cachedWriter{WriteCloser: inner, onClose: func() { c.added(p) }}, nil
}

func (c *cachedStore) Remove(p string) error {
	err := c.Store.Remove(p)
	if err != nil {
		return err
	}

	dir := Dir(p)
	if names, ok := c.files[dir]; ok {
		c.files[dir] = removeSorted(names, baseName(p))
	}

	return nil
}

func (c *cachedStore) RemoveDirIfEmpty(dir string) error {
	dir = normDir(dir)

	err := c.Store.RemoveDirIfEmpty(dir)
	if err != nil || dir == Root {
		return err
	}

	files, err := c.ListFiles(dir)
	if err != nil {
		return err
	}

	subdirs, err := c.ListDirs(dir)
	if err != nil {
		return err
	}

	if len(files) > 0 || len(subdirs) > 0 {
		return nil
	}

	delete(c.files, dir)
	delete(c.dirs, dir)

	parent := Dir(dir)
	if names, ok := c.dirs[parent]; ok {
		c.dirs[parent] = removeSorted(names, baseName(dir))
	}

	return nil
}

func (c *cachedStore) ResetTo(hash gitlib.Hash) error {
	c.files = make(map[string][]string)
	c.dirs = make(map[string][]string)

	return c.Store.ResetTo(hash)
}

// added registers a newly written path in the cached listings of its
// directory and of every ancestor.
func (c *cachedStore) added(p string) {
	dir := Dir(p)
	if names, ok := c.files[dir]; ok {
		c.files[dir] = insertSorted(names, baseName(p))
	}

	for dir != Root {
		parent := Dir(dir)
		if names, ok := c.dirs[parent]; ok {
			c.dirs[parent] = insertSorted(names, baseName(dir))
		}

		dir = parent
	}
}

type cachedWriter struct {
	io.WriteCloser

	onClose func()
}

func (w *cachedWriter) Close() error {
	err := w.WriteCloser.Close()
	if err != nil {
		return err
	}

	w.onClose()

	return nil
}

func baseName(p string) string {
	for i := len(p) - 1; i >= 0; i-- {
		if p[i] == '/' {
			return p[i+1:]
		}
	}

	return p
}

func insertSorted(names []string, name string) []string {
	i, found := slices.BinarySearch(names, name)
	if found {
		return names
	}

	return slices.Insert(names, i, name)
}

func removeSorted(names []string, name string) []string {
	i, found := slices.BinarySearch(names, name)
	if !found {
		return names
	}

	return slices.Delete(names, i, i+1)
}

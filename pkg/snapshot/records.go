package snapshot

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/pierrec/lz4/v4"

	"github.com/Sumatoshi-tech/treestat/pkg/alg/lru"
	"github.com/Sumatoshi-tech/treestat/pkg/gitlib"
	"github.com/Sumatoshi-tech/treestat/pkg/statvalue"
)

// DefaultRecordCacheBytes bounds the record cache when no size is configured.
const DefaultRecordCacheBytes = 64 << 20

// Frame tags of cached record bytes.
const (
	frameRaw byte = iota
	frameLZ4
)

// ErrCorruptCacheEntry is returned when a cached record cannot be decompressed.
var ErrCorruptCacheEntry = errors.New("corrupt record cache entry")

// Records reads and writes StatValue records and method lists through a
// Store. Encoded records are kept in a size-bounded LRU, lz4-compressed, so
// aggregation passes that re-read the same directories hit memory instead of
// the object database.
type Records struct {
	store Store
	cache *lru.Cache[string, []byte]
}

// NewRecords wraps store. maxBytes <= 0 selects DefaultRecordCacheBytes.
func NewRecords(store Store, maxBytes int64) *Records {
	if maxBytes <= 0 {
		maxBytes = DefaultRecordCacheBytes
	}

	return &Records{
		store: store,
		cache: lru.New(lru.WithMaxBytes[string](maxBytes, func(b []byte) int64 { return int64(len(b)) })),
	}
}

// Store returns the wrapped store.
func (r *Records) Store() Store {
	return r.store
}

// ReadValue loads the record at path.
func (r *Records) ReadValue(path string) (statvalue.Value, bool, error) {
	data, ok, err := r.read(path)
	if err != nil || !ok {
		return statvalue.Value{}, false, err
	}

	v, err := statvalue.Unmarshal(data)
	if err != nil {
		return statvalue.Value{}, false, fmt.Errorf("read %s: %w", path, err)
	}

	return v, true, nil
}

// WriteValue stores v at path.
func (r *Records) WriteValue(path string, v statvalue.Value) error {
	data, err := statvalue.Marshal(v)
	if err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}

	return r.write(path, data)
}

// ReadMethods loads the method list at path.
func (r *Records) ReadMethods(path string) ([]statvalue.Method, bool, error) {
	data, ok, err := r.read(path)
	if err != nil || !ok {
		return nil, false, err
	}

	methods, err := statvalue.UnmarshalMethods(data)
	if err != nil {
		return nil, false, fmt.Errorf("read %s: %w", path, err)
	}

	return methods, true, nil
}

// WriteMethods stores methods at path, sorted.
func (r *Records) WriteMethods(path string, methods []statvalue.Method) error {
	data, err := statvalue.MarshalMethods(methods)
	if err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}

	return r.write(path, data)
}

// Exists reports whether path is staged.
func (r *Records) Exists(path string) (bool, error) {
	_, ok, err := r.read(path)

	return ok, err
}

// Remove drops path from the store and the cache.
func (r *Records) Remove(path string) error {
	r.cache.Remove(path)

	return r.store.Remove(path)
}

// ResetTo resets the store to an existing snapshot and empties the cache.
func (r *Records) ResetTo(hash gitlib.Hash) error {
	r.cache.Clear()

	return r.store.ResetTo(hash)
}

// CacheStats returns record cache statistics.
func (r *Records) CacheStats() lru.Stats {
	return r.cache.Stats()
}

func (r *Records) read(path string) ([]byte, bool, error) {
	if framed, ok := r.cache.Get(path); ok {
		data, err := unframe(framed)
		if err == nil {
			return data, true, nil
		}

		r.cache.Remove(path)
	}

	data, ok, err := r.store.Read(path)
	if err != nil || !ok {
		return nil, ok, err
	}

	r.cache.Put(path, frame(data))

	return data, true, nil
}

func (r *Records) write(path string, data []byte) error {
	err := WriteFile(r.store, path, data)
	if err != nil {
		r.cache.Remove(path)

		return err
	}

	r.cache.Put(path, frame(data))

	return nil
}

// frame compresses data with lz4, falling back to raw bytes for incompressible input.
func frame(data []byte) []byte {
	compressed := make([]byte, 1+binary.MaxVarintLen64+lz4.CompressBlockBound(len(data)))
	compressed[0] = frameLZ4
	n := 1 + binary.PutUvarint(compressed[1:], uint64(len(data)))

	written, err := lz4.CompressBlock(data, compressed[n:], nil)
	if err != nil || written == 0 {
		raw := make([]byte, 1+len(data))
		raw[0] = frameRaw
		copy(raw[1:], data)

		return raw
	}

	return compressed[:n+written]
}

func unframe(framed []byte) ([]byte, error) {
	if len(framed) == 0 {
		return nil, ErrCorruptCacheEntry
	}

	switch framed[0] {
	case frameRaw:
		out := make([]byte, len(framed)-1)
		copy(out, framed[1:])

		return out, nil
	case frameLZ4:
		size, n := binary.Uvarint(framed[1:])
		if n <= 0 {
			return nil, ErrCorruptCacheEntry
		}

		out := make([]byte, size)

		written, err := lz4.UncompressBlock(framed[1+n:], out)
		if err != nil || uint64(written) != size {
			return nil, ErrCorruptCacheEntry
		}

		return out, nil
	}

	return nil, ErrCorruptCacheEntry
}

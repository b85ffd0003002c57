// Package statvalue provides the numeric vector type stored in snapshot records.
//
// A Value maps (category, metric) keys to numbers. Arithmetic works on the
// union of keys, treating a missing key as zero.
package statvalue

import (
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"
)

// Key identifies one number inside a Value.
type Key struct {
	Category string
	Metric   string
}

// String renders the key as "category.metric".
func (k Key) String() string {
	return k.Category + "." + k.Metric
}

// Compare orders keys by category, then metric.
func (k Key) Compare(other Key) int {
	if c := strings.Compare(k.Category, other.Category); c != 0 {
		return c
	}

	return strings.Compare(k.Metric, other.Metric)
}

// Value is an immutable mapping from Key to number.
// The zero Value is an empty, non-neutral vector.
type Value struct {
	values  map[Key]float64
	neutral bool
}

// Neutral is the result of summing nothing. It is the identity for Add and
// differs from any keyed Value, including an all-zero one.
var Neutral = Value{neutral: true}

// New builds a Value from a flat map. The map is copied.
func New(values map[Key]float64) Value {
	return Value{values: maps.Clone(values)}
}

// FromNested builds a Value from a category -> metric -> number map.
func FromNested(nested map[string]map[string]float64) Value {
	values := make(map[Key]float64)

	for category, metrics := range nested {
		for metric, n := range metrics {
			values[Key{Category: category, Metric: metric}] = n
		}
	}

	return Value{values: values}
}

// Nested returns a category -> metric -> number copy of the value.
func (v Value) Nested() map[string]map[string]float64 {
	nested := make(map[string]map[string]float64)

	for k, n := range v.values {
		metrics, ok := nested[k.Category]
		if !ok {
			metrics = make(map[string]float64)
			nested[k.Category] = metrics
		}

		metrics[k.Metric] = n
	}

	return nested
}

// IsNeutral reports whether v is the empty-sum sentinel.
func (v Value) IsNeutral() bool {
	return v.neutral
}

// Len returns the number of keys.
func (v Value) Len() int {
	return len(v.values)
}

// Get returns the number stored under (category, metric), or zero.
func (v Value) Get(category, metric string) float64 {
	return v.values[Key{Category: category, Metric: metric}]
}

// Lookup returns the number stored under k and whether k is present.
func (v Value) Lookup(k Key) (float64, bool) {
	n, ok := v.values[k]

	return n, ok
}

// Keys returns the keys in sorted order.
func (v Value) Keys() []Key {
	keys := slices.Collect(maps.Keys(v.values))
	slices.SortFunc(keys, Key.Compare)

	return keys
}

// Category returns the metric -> number map of one category.
func (v Value) Category(category string) map[string]float64 {
	out := make(map[string]float64)

	for k, n := range v.values {
		if k.Category == category {
			out[k.Metric] = n
		}
	}

	return out
}

// With returns a copy of v with (category, metric) set to n.
func (v Value) With(category, metric string, n float64) Value {
	values := maps.Clone(v.values)
	if values == nil {
		values = make(map[Key]float64, 1)
	}

	values[Key{Category: category, Metric: metric}] = n

	return Value{values: values}
}

// Equal reports whether both values hold the same keys and numbers.
func (v Value) Equal(other Value) bool {
	if v.neutral || other.neutral {
		return v.neutral == other.neutral
	}

	return maps.Equal(v.values, other.values)
}

// IsZero reports whether every number in v is zero.
func (v Value) IsZero() bool {
	for _, n := range v.values {
		if n != 0 {
			return false
		}
	}

	return true
}

// String renders the value as sorted "category.metric=n" pairs.
func (v Value) String() string {
	if v.neutral {
		return "<neutral>"
	}

	parts := make([]string, 0, len(v.values))
	for _, k := range v.Keys() {
		parts = append(parts, k.String()+"="+FormatNumber(v.values[k]))
	}

	return "{" + strings.Join(parts, " ") + "}"
}

// FormatNumber renders integral numbers without a fractional part.
func FormatNumber(n float64) string {
	if n == float64(int64(n)) {
		return strconv.FormatInt(int64(n), 10)
	}

	return strconv.FormatFloat(n, 'f', -1, 64)
}

// GoString implements fmt.GoStringer for test failure output.
func (v Value) GoString() string {
	return fmt.Sprintf("statvalue.Value%s", v.String())
}

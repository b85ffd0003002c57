package safeconv_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Sumatoshi-tech/treestat/pkg/safeconv"
)

func TestMustUintToInt(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 42, safeconv.MustUintToInt(42))
	assert.Panics(t, func() { safeconv.MustUintToInt(uint(safeconv.MaxInt) + 1) })
}

func TestMustIntToUint(t *testing.T) {
	t.Parallel()

	assert.Equal(t, uint(7), safeconv.MustIntToUint(7))
	assert.Panics(t, func() { safeconv.MustIntToUint(-1) })
}

func TestFileSizeToUint32(t *testing.T) {
	t.Parallel()

	assert.Equal(t, uint32(10), safeconv.FileSizeToUint32(10))
	assert.Equal(t, uint32(5), safeconv.FileSizeToUint32(1<<32+5))
	assert.Panics(t, func() { safeconv.FileSizeToUint32(-1) })
}

func TestRoundToInt(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 3, safeconv.RoundToInt(2.5))
	assert.Equal(t, -2, safeconv.RoundToInt(-1.6))
	assert.Equal(t, 0, safeconv.RoundToInt(math.NaN()))
	assert.Equal(t, safeconv.MaxInt, safeconv.RoundToInt(math.Inf(1)))
}

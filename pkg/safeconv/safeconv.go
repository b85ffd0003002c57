// Package safeconv converts between integer types where libgit2 and Go disagree on width.
package safeconv

import "math"

// MaxInt is the maximum value for int type (platform-dependent).
const MaxInt = int(^uint(0) >> 1)

// MustUintToInt converts uint to int, panics on overflow.
// Use only when overflow is logically impossible.
func MustUintToInt(v uint) int {
	if v > uint(MaxInt) {
		panic("safeconv: uint to int overflow")
	}

	return int(v)
}

// MustIntToUint converts int to uint, panics if negative.
// Use only when negative values are logically impossible.
func MustIntToUint(v int) uint {
	if v < 0 {
		panic("safeconv: negative int to uint conversion")
	}

	return uint(v)
}

// FileSizeToUint32 converts a file size to the 32-bit field git index entries
// use. Sizes above 4 GiB keep their low 32 bits, as git does.
func FileSizeToUint32(v int) uint32 {
	if v < 0 {
		panic("safeconv: negative file size")
	}

	return uint32(uint64(v) & math.MaxUint32)
}

// RoundToInt rounds a metric value to the nearest int, saturating at the int range.
func RoundToInt(v float64) int {
	r := math.Round(v)

	switch {
	case math.IsNaN(r):
		return 0
	case r >= float64(MaxInt):
		return MaxInt
	case r <= float64(-MaxInt-1):
		return -MaxInt - 1
	}

	return int(r)
}

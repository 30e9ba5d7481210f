package vqf

import "math/bits"

// Popcount returns the number of set bits in x. It is a thin, total wrapper
// over math/bits, kept as a named primitive because the block codec and the
// filter's free-space accounting both call it by name.
func Popcount(x uint64) int {
	return bits.OnesCount64(x)
}

// Select returns the 0-based bit position of the k-th set bit in x (k is
// also 0-based: Select(x, 0) is the position of the first set bit). It
// returns 64 if x has fewer than k+1 set bits.
//
// A CPU with BMI2 can do this in one instruction via PDEP + trailing-zero
// count; Go has no portable access to that, so this clears the k lowest
// set bits one at a time and takes the trailing-zero count of what
// remains. k never exceeds BucketsPerBlock-1 (35) on any call site in this
// package, so the loop is bounded and cheap.
func Select(x uint64, k int) uint64 {
	for i := 0; i < k; i++ {
		if x == 0 {
			return 64
		}
		x &= x - 1 // clear the lowest set bit
	}
	if x == 0 {
		return 64
	}
	return uint64(bits.TrailingZeros64(x))
}

// Select128 returns the 0-based bit position of the k-th set bit across the
// 128-bit value formed by v[0] (low word) then v[1] (high word). It returns
// 128 if there are fewer than k+1 set bits total.
//
// Nothing in this package's hot insert/remove/query path needs more than 64
// bits of metadata, since one block's metadata word is exactly 64 bits.
// This is kept and tested for callers that track a bucket's run offset
// jointly with an adjacent word.
func Select128(v [2]uint64, k int) uint64 {
	lowCount := Popcount(v[0])
	if k < lowCount {
		return Select(v[0], k)
	}
	high := Select(v[1], k-lowCount)
	if high == 64 {
		return 128
	}
	return 64 + high
}

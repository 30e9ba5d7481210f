// Package vqf implements a Vector Quotient Filter: a cuckoo-style,
// two-choice approximate set-membership structure built from cache-line
// resident blocks, each holding its own unary run-length metadata word and
// fixed-size tag array, mutated under a per-block spinlock rather than a
// global lock.
//
// A filter never grows; New sizes it for a target number of elements and
// Insert reports failure once it can no longer place a tag without
// exceeding that capacity.
package vqf

import (
	"math/bits"
	"sync/atomic"
)

// keyRemainderBits is the number of low bits of a 64-bit hash spent on
// addressing within a block (the tag) rather than selecting a bucket.
const keyRemainderBits = TagBits

// Filter is a fixed-capacity Vector Quotient Filter.
type Filter struct {
	blocks  []Block
	nblocks uint64
	// rangeBuckets is the total number of quotient buckets across all
	// blocks, nblocks*BucketsPerBlock. That is never a power of two, so
	// addressOf reduces the alternate bucket with a general modulo rather
	// than a bitmask.
	rangeBuckets uint64
	nelts        uint64
	// nslots is the value originally requested of New, kept only so a saved
	// snapshot's header can round-trip it; nblocks, not nslots, is what
	// sizing actually depends on.
	nslots uint64
}

// New allocates a filter sized to hold approximately nslots tags at a
// healthy load factor. nslots is rounded up to the nearest multiple of
// BucketsPerBlock so every block is fully addressable.
func New(nslots uint64) *Filter {
	if nslots == 0 {
		nslots = BucketsPerBlock
	}
	nblocks := (nslots + BucketsPerBlock - 1) / BucketsPerBlock
	if nblocks == 0 {
		nblocks = 1
	}
	blocks := make([]Block, nblocks)
	for i := range blocks {
		blocks[i] = initBlock()
	}
	return &Filter{
		blocks:       blocks,
		nblocks:      nblocks,
		rangeBuckets: nblocks * BucketsPerBlock,
		nslots:       nslots,
	}
}

// FromBlocks reconstructs a Filter from its raw constituent parts, for use
// by internal/persist when loading a snapshot. Callers are responsible for
// ensuring rangeBuckets == len(blocks)*BucketsPerBlock.
func FromBlocks(nslots, nelts, rangeBuckets uint64, blocks []Block) *Filter {
	return &Filter{
		blocks:       blocks,
		nblocks:      uint64(len(blocks)),
		rangeBuckets: rangeBuckets,
		nelts:        nelts,
		nslots:       nslots,
	}
}

// Len reports the number of elements currently held.
func (f *Filter) Len() uint64 { return atomic.LoadUint64(&f.nelts) }

// Cap reports the total number of quotient buckets across all blocks — an
// upper bound on addressable positions, not a guarantee of usable slots,
// since each block multiplexes BucketsPerBlock buckets over fewer tag slots.
func (f *Filter) Cap() uint64 { return f.rangeBuckets }

// FillFactor reports the fraction of addressable buckets currently
// occupied (Len / RangeBuckets), a coarse load signal for monitoring.
func (f *Filter) FillFactor() float64 {
	if f.rangeBuckets == 0 {
		return 0
	}
	return float64(f.Len()) / float64(f.rangeBuckets)
}

// NSlots reports the nslots value originally passed to New.
func (f *Filter) NSlots() uint64 { return f.nslots }

// NumBlocks reports the number of blocks backing the filter.
func (f *Filter) NumBlocks() uint64 { return f.nblocks }

// RangeBuckets reports the total addressable bucket count.
func (f *Filter) RangeBuckets() uint64 { return f.rangeBuckets }

// KeyRemainderBits reports the number of low hash bits spent on the tag
// rather than bucket selection; exposed for validators and diagnostics.
func (f *Filter) KeyRemainderBits() uint { return keyRemainderBits }

// BlockAt returns a pointer to the i-th block, for validators and
// serializers that need direct access to its metadata and tags. Mutating
// through it bypasses the filter's locking discipline and is the caller's
// responsibility.
func (f *Filter) BlockAt(i uint64) *Block { return &f.blocks[i] }

func (f *Filter) blockOf(bucket uint64) (blockIdx uint64, offset int) {
	return bucket / BucketsPerBlock, int(bucket % BucketsPerBlock)
}

// Insert adds hash to the filter with no attached payload. Equivalent to
// InsertVal(hash, 0).
func (f *Filter) Insert(hash uint64) bool {
	return f.InsertVal(hash, 0)
}

// InsertVal adds hash to the filter with an attached 8-bit payload value.
// It returns false if both the primary and alternate candidate blocks are
// out of room.
func (f *Filter) InsertVal(hash uint64, val uint8) bool {
	addr := addressOf(hash, f.rangeBuckets, keyRemainderBits)
	primaryBlock, primaryOffset := f.blockOf(addr.primary)
	altBlock, altOffset := f.blockOf(addr.alt)

	block := &f.blocks[primaryBlock]
	offset := primaryOffset
	block.lock()

	if primaryBlock != altBlock {
		free := block.freeSpace()
		if free < CheckAltThreshold {
			block.unlock()
			first, second := primaryBlock, altBlock
			if second < first {
				first, second = second, first
			}
			f.blocks[first].lock()
			f.blocks[second].lock()

			primaryFree := f.blocks[primaryBlock].freeSpace()
			altFree := f.blocks[altBlock].freeSpace()

			switch {
			case altFree > primaryFree:
				f.blocks[primaryBlock].unlock()
				block = &f.blocks[altBlock]
				offset = altOffset
			case primaryFree == BucketsPerBlock:
				f.blocks[primaryBlock].unlock()
				f.blocks[altBlock].unlock()
				return false
			default:
				f.blocks[altBlock].unlock()
				block = &f.blocks[primaryBlock]
				offset = primaryOffset
			}
		}
	}
	defer block.unlock()

	// Once only the BucketsPerBlock delimiters remain set, the block has no
	// free slot: inserting would push its last delimiter out of the word.
	if block.freeSpace() <= BucketsPerBlock {
		return false
	}

	md := block.metadata()
	_, end := runBounds(md, offset)
	slot := end - uint64(offset)
	if slot >= SlotsPerBlock {
		return false
	}

	stored := uint16(addr.tag) | uint16(val)<<TagBits
	block.insertTagAt(int(slot), stored)
	block.setMetadata(insertMD(md, end))
	atomic.AddUint64(&f.nelts, 1)
	return true
}

// Remove deletes one occurrence of hash from the filter: it tries the
// primary bucket first, then the alternate. It reports whether an
// occurrence was found and removed.
func (f *Filter) Remove(hash uint64) bool {
	addr := addressOf(hash, f.rangeBuckets, keyRemainderBits)
	primaryBlock, primaryOffset := f.blockOf(addr.primary)
	if f.removeFrom(primaryBlock, primaryOffset, addr.tag) {
		return true
	}
	altBlock, altOffset := f.blockOf(addr.alt)
	if altBlock == primaryBlock {
		return false
	}
	return f.removeFrom(altBlock, altOffset, addr.tag)
}

func (f *Filter) removeFrom(blockIdx uint64, offset int, tag uint8) bool {
	block := &f.blocks[blockIdx]
	block.lock()
	defer block.unlock()

	md := block.metadata()
	mask := block.matchMask(md, offset, tag)
	if mask == 0 {
		return false
	}
	slot := bits.TrailingZeros64(mask)
	block.removeTagAt(slot)
	block.setMetadata(removeMD(md, uint64(slot)+uint64(offset)))
	atomic.AddUint64(&f.nelts, ^uint64(0))
	return true
}

// IsPresent reports whether any occurrence of hash (with any attached
// value) is in the filter.
func (f *Filter) IsPresent(hash uint64) bool {
	addr := addressOf(hash, f.rangeBuckets, keyRemainderBits)
	primaryBlock, primaryOffset := f.blockOf(addr.primary)
	if f.hasMatch(primaryBlock, primaryOffset, addr.tag) {
		return true
	}
	altBlock, altOffset := f.blockOf(addr.alt)
	if altBlock == primaryBlock {
		return false
	}
	return f.hasMatch(altBlock, altOffset, addr.tag)
}

func (f *Filter) hasMatch(blockIdx uint64, offset int, tag uint8) bool {
	block := &f.blocks[blockIdx]
	md := block.metadata()
	return block.matchMask(md, offset, tag) != 0
}

// Query returns the payload value attached to the first matching occurrence
// of hash, and whether a match was found at all.
func (f *Filter) Query(hash uint64) (val uint8, ok bool) {
	addr := addressOf(hash, f.rangeBuckets, keyRemainderBits)
	primaryBlock, primaryOffset := f.blockOf(addr.primary)
	if v, found := f.firstValue(primaryBlock, primaryOffset, addr.tag); found {
		return v, true
	}
	altBlock, altOffset := f.blockOf(addr.alt)
	if altBlock == primaryBlock {
		return 0, false
	}
	return f.firstValue(altBlock, altOffset, addr.tag)
}

func (f *Filter) firstValue(blockIdx uint64, offset int, tag uint8) (uint8, bool) {
	block := &f.blocks[blockIdx]
	md := block.metadata()
	mask := block.matchMask(md, offset, tag)
	if mask == 0 {
		return 0, false
	}
	slot := bits.TrailingZeros64(mask)
	return block.valueAt(slot), true
}

// QueryAll returns the payload values of every occurrence of hash, and
// whether any occurrence was found at all.
func (f *Filter) QueryAll(hash uint64) (vals []uint8, ok bool) {
	addr := addressOf(hash, f.rangeBuckets, keyRemainderBits)
	primaryBlock, primaryOffset := f.blockOf(addr.primary)
	altBlock, altOffset := f.blockOf(addr.alt)

	values := make([]uint8, 0, 2)
	values = f.appendValues(values, primaryBlock, primaryOffset, addr.tag)
	if altBlock != primaryBlock {
		values = f.appendValues(values, altBlock, altOffset, addr.tag)
	}
	return values, len(values) > 0
}

func (f *Filter) appendValues(dst []uint8, blockIdx uint64, offset int, tag uint8) []uint8 {
	block := &f.blocks[blockIdx]
	md := block.metadata()
	mask := block.matchMask(md, offset, tag)
	for mask != 0 {
		slot := bits.TrailingZeros64(mask)
		dst = append(dst, block.valueAt(slot))
		mask &= mask - 1
	}
	return dst
}

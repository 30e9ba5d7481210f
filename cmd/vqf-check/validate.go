package main

import (
	"fmt"
	"io"

	"vqf.sievelabs.dev/internal/vqf"
)

// validate walks every block of f and reports the first structural
// invariant it finds broken, or nil if the snapshot is internally
// consistent. It writes progress and a summary to w.
func validate(f *vqf.Filter, verbose bool, w io.Writer) error {
	fmt.Fprintf(w, "Checking snapshot: nslots=%d nblocks=%d range=%d nelts(declared)=%d\n",
		f.NSlots(), f.NumBlocks(), f.RangeBuckets(), f.Len())

	if f.RangeBuckets() != f.NumBlocks()*vqf.BucketsPerBlock {
		return fmt.Errorf("range/block-count mismatch: range=%d but nblocks*BucketsPerBlock=%d",
			f.RangeBuckets(), f.NumBlocks()*vqf.BucketsPerBlock)
	}

	var scannedElts uint64
	for i := uint64(0); i < f.NumBlocks(); i++ {
		block := f.BlockAt(i)
		md := block.RawMetadata()

		occupied, err := blockOccupancy(md)
		if err != nil {
			return fmt.Errorf("block %d: %w", i, err)
		}
		scannedElts += occupied

		if verbose {
			fmt.Fprintf(w, "  block %d: %s\n", i, block.DebugString())
		}
	}

	if scannedElts != f.Len() {
		return fmt.Errorf("declared nelts=%d does not match %d slots found scanning all blocks", f.Len(), scannedElts)
	}

	fmt.Fprintf(w, "OK: %d blocks, %d elements, all invariants hold\n", f.NumBlocks(), f.Len())
	return nil
}

// blockOccupancy derives the number of slots a block's metadata word claims
// as occupied. runBounds's slot = end - offset formula, evaluated at the
// final bucket (offset BucketsPerBlock-1), counts every slot claimed by any
// bucket at or below it, which is exactly the block's total occupancy.
// Scanning tags for nonzero bytes would not be reliable here: a slot that
// insertTagAt shifted data into and removeTagAt has not since cleared can
// hold a stale nonzero byte past the block's true occupancy. This
// deliberately does not check popcount(md) against any fixed constant: an
// empty block's metadata word has 63 set bits, not BucketsPerBlock, since
// besides its BucketsPerBlock delimiters the word keeps one set bit per
// free slot, and each insert consumes one of them.
func blockOccupancy(md uint64) (uint64, error) {
	lastBucketEnd := vqf.Select(md, vqf.BucketsPerBlock-1)
	if lastBucketEnd == 64 {
		return 0, fmt.Errorf("metadata word has fewer than %d run delimiters", vqf.BucketsPerBlock)
	}
	occupied := lastBucketEnd - uint64(vqf.BucketsPerBlock-1)
	if occupied >= vqf.SlotsPerBlock {
		return 0, fmt.Errorf("computed occupancy %d exceeds SlotsPerBlock (%d)", occupied, vqf.SlotsPerBlock)
	}
	return occupied, nil
}

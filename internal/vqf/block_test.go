package vqf

import (
	"testing"
	"unsafe"
)

func TestBlockSize(t *testing.T) {
	var b Block
	// 8 bytes of metadata plus 28 uint16 tag slots: a block should stay
	// small enough to live comfortably in a handful of cache lines, the
	// whole point of organizing the filter this way.
	want := uintptr(8 + SlotsPerBlock*2)
	if got := unsafe.Sizeof(b); got != want {
		t.Errorf("unsafe.Sizeof(Block{}) = %d, want %d", got, want)
	}
}

func TestInitBlockEmpty(t *testing.T) {
	b := initBlock()
	if b.rawMD()&lockBit != 0 {
		t.Fatal("initBlock: lock bit should be clear")
	}
	for offset := 0; offset < BucketsPerBlock; offset++ {
		start, end := runBounds(b.metadata(), offset)
		if end != start {
			t.Errorf("bucket %d: run [%d,%d) should be empty on a fresh block", offset, start, end)
		}
	}
}

func TestLockUnlock(t *testing.T) {
	b := initBlock()
	b.lock()
	if b.rawMD()&lockBit == 0 {
		t.Fatal("lock: top bit should be set while locked")
	}
	b.unlock()
	if b.rawMD()&lockBit != 0 {
		t.Fatal("unlock: top bit should be clear after unlock")
	}
}

func TestInsertRemoveMDRoundTrip(t *testing.T) {
	b := initBlock()
	md := b.metadata()

	// Insert a zero (slot) bit at the end of bucket 0's run (position 0, since a
	// fresh block has its 0-th delimiter at bit 0), then remove it again.
	_, end := runBounds(md, 0)
	inserted := insertMD(md, end)
	start, newEnd := runBounds(inserted, 0)
	if newEnd != start+1 {
		t.Fatalf("after insertMD, bucket 0's run should have grown by one: got [%d,%d)", start, newEnd)
	}

	removed := removeMD(inserted, end)
	if removed != md {
		t.Errorf("removeMD(insertMD(md, p), p) = %#064b, want original %#064b", removed, md)
	}
}

func TestInsertTagRemoveTagRoundTrip(t *testing.T) {
	b := initBlock()
	b.insertTagAt(0, 0x0142)
	if b.tags[0] != 0x0142 {
		t.Fatalf("tags[0] = %#x, want 0x0142", b.tags[0])
	}
	b.insertTagAt(0, 0x0099)
	if b.tags[0] != 0x0099 || b.tags[1] != 0x0142 {
		t.Fatalf("after second insert at 0: tags = %v", b.tags[:2])
	}
	b.removeTagAt(0)
	if b.tags[0] != 0x0142 {
		t.Fatalf("after removeTagAt(0): tags[0] = %#x, want 0x0142", b.tags[0])
	}
}

func TestMatchMaskFindsOnlyOwnBucket(t *testing.T) {
	b := initBlock()
	md := b.metadata()

	// Manually place a tag into bucket 2's run: extend bucket 2's run by
	// one slot and write the tag there, the same sequence Insert performs.
	_, end := runBounds(md, 2)
	slot := end - 2
	b.insertTagAt(int(slot), 0x55)
	md = insertMD(md, end)
	b.setMetadata(md)

	if mask := b.matchMask(md, 2, 0x55); mask == 0 {
		t.Error("matchMask(bucket=2, tag=0x55) should find the tag just inserted")
	}
	if mask := b.matchMask(md, 1, 0x55); mask != 0 {
		t.Error("matchMask(bucket=1, tag=0x55) should not see bucket 2's tag")
	}
	if mask := b.matchMask(md, 2, 0x56); mask != 0 {
		t.Error("matchMask(bucket=2, tag=0x56) should not match a different tag")
	}
}

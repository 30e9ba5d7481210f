package main

import (
	"bytes"
	"strings"
	"testing"

	"vqf.sievelabs.dev/internal/vqf"
)

func TestValidateEmptyFilter(t *testing.T) {
	f := vqf.New(1024)

	var buf bytes.Buffer
	if err := validate(f, false, &buf); err != nil {
		t.Fatalf("validate() returned error on a fresh empty filter: %v", err)
	}
	if !strings.Contains(buf.String(), "OK:") {
		t.Errorf("expected an OK summary line, got %q", buf.String())
	}
}

func TestValidatePopulatedFilter(t *testing.T) {
	f := vqf.New(4096)
	hashSpace := f.RangeBuckets() << vqf.TagBits
	for i := uint64(0); i < 500; i++ {
		if !f.Insert((i*0x9E3779B97F4A7C15 + 1) % hashSpace) {
			t.Fatalf("insert %d unexpectedly reported full", i)
		}
	}

	var buf bytes.Buffer
	if err := validate(f, true, &buf); err != nil {
		t.Fatalf("validate() returned error on a populated filter: %v", err)
	}
	if !strings.Contains(buf.String(), "nelts(declared)=500") {
		t.Errorf("expected declared nelts=500 in output, got %q", buf.String())
	}
}

func TestValidateDetectsNeltsMismatch(t *testing.T) {
	f := vqf.New(64)
	hashSpace := f.RangeBuckets() << vqf.TagBits
	if !f.Insert(12345 % hashSpace) {
		t.Fatal("insert unexpectedly reported full")
	}
	f.Remove(12345 % hashSpace)
	if !f.Insert(99999 % hashSpace) {
		t.Fatal("insert unexpectedly reported full")
	}

	corrupted := vqf.FromBlocks(f.NSlots(), f.Len()+1, f.RangeBuckets(), blocksOf(f))

	var buf bytes.Buffer
	err := validate(corrupted, false, &buf)
	if err == nil {
		t.Fatal("expected validate to reject a mismatched nelts count")
	}
	if !strings.Contains(err.Error(), "does not match") {
		t.Errorf("expected a nelts-mismatch diagnostic, got %v", err)
	}
}

func blocksOf(f *vqf.Filter) []vqf.Block {
	blocks := make([]vqf.Block, f.NumBlocks())
	for i := range blocks {
		blocks[i] = *f.BlockAt(uint64(i))
	}
	return blocks
}

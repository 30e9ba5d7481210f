package vqf

import "testing"

func TestPopcount(t *testing.T) {
	cases := []struct {
		x    uint64
		want int
	}{
		{0, 0},
		{1, 1},
		{0xFF, 8},
		{^uint64(0), 64},
		{^uint64(0) &^ (uint64(1) << 63), 63},
	}
	for _, c := range cases {
		if got := Popcount(c.x); got != c.want {
			t.Errorf("Popcount(%#x) = %d, want %d", c.x, got, c.want)
		}
	}
}

func TestSelect(t *testing.T) {
	// bits set at positions 1, 3, 4, 9
	x := uint64(1<<1 | 1<<3 | 1<<4 | 1<<9)

	cases := []struct {
		k    int
		want uint64
	}{
		{0, 1},
		{1, 3},
		{2, 4},
		{3, 9},
		{4, 64},  // only 4 ones present
		{10, 64}, // far beyond popcount
	}
	for _, c := range cases {
		if got := Select(x, c.k); got != c.want {
			t.Errorf("Select(%#b, %d) = %d, want %d", x, c.k, got, c.want)
		}
	}
}

func TestSelectAllOnes(t *testing.T) {
	x := ^uint64(0) &^ (uint64(1) << 63) // low 63 bits set, as a fresh block starts
	for k := 0; k < 63; k++ {
		if got := Select(x, k); got != uint64(k) {
			t.Fatalf("Select(allOnesLow63, %d) = %d, want %d", k, got, k)
		}
	}
	if got := Select(x, 63); got != 64 {
		t.Errorf("Select(allOnesLow63, 63) = %d, want 64 (bit 63 is clear)", got)
	}
}

func TestSelect128(t *testing.T) {
	v := [2]uint64{1<<2 | 1<<5, 1<<0 | 1<<10}

	cases := []struct {
		k    int
		want uint64
	}{
		{0, 2},   // first one-bit of low word
		{1, 5},   // second one-bit of low word
		{2, 64},  // first one-bit of high word, offset by 64
		{3, 74},  // second one-bit of high word
		{4, 128}, // nothing left
	}
	for _, c := range cases {
		if got := Select128(v, c.k); got != c.want {
			t.Errorf("Select128(%v, %d) = %d, want %d", v, c.k, got, c.want)
		}
	}
}

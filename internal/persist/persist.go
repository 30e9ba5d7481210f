// Package persist implements the on-disk snapshot format for a
// vqf.Filter: a small header naming the filter's dimensions, followed by
// each block's metadata word and tag array packed little-endian, followed
// by a CRC64 checksum of everything before it.
//
// The store is deliberately decoupled from the filesystem. Save and Load
// operate against an afero.Fs, so tests run against afero.NewMemMapFs()
// with zero real I/O and production code points the same functions at
// afero.NewOsFs(), one layer further out than io.Writer/io.Reader so the
// server doesn't have to manage *os.File lifetimes itself.
//
// The Binary Format (VQF1)
// ========================
//
//	+-------+--------+---------+-------+-------+-----+--------+----------+
//	| Magic | NSlots | NBlocks | NElts | Range | KRB | Blocks | Checksum |
//	+-------+--------+---------+-------+-------+-----+--------+----------+
//	 4 bytes  8 bytes  8 bytes  8 bytes 8 bytes  1 B   var      8 bytes
//
// Magic: the 4-byte string "VQF1", a cheap integrity check against loading
// an unrelated file as a snapshot.
//
// NSlots/NBlocks/NElts/Range: little-endian uint64, the filter's own
// dimensions. KRB (key remainder bits) is a single byte; it is fixed by the
// block codec today but is written out so a future codec revision with a
// different split can still be told apart from old snapshots.
//
// Blocks: NBlocks consecutive block records, each the metadata word
// (8 bytes, little-endian) followed by vqf.SlotsPerBlock little-endian
// 16-bit tag cells, matching the in-memory block layout byte-for-byte.
//
// Checksum: a 64-bit CRC (ISO polynomial) over every preceding byte, to
// detect truncated or corrupted snapshot files.
package persist

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"hash/crc64"
	"io"

	"github.com/spf13/afero"

	"vqf.sievelabs.dev/internal/vqf"
)

const magic = "VQF1"

var crcTable = crc64.MakeTable(crc64.ISO)

// Save writes f to path on fs in the VQF1 format, overwriting any existing
// file.
func Save(fs afero.Fs, path string, f *vqf.Filter) error {
	file, err := fs.Create(path)
	if err != nil {
		return fmt.Errorf("persist: create %s: %w", path, err)
	}
	defer file.Close()

	hasher := crc64.New(crcTable)
	w := io.MultiWriter(file, hasher)
	buf := bufio.NewWriter(w)

	if err := writeHeader(buf, f); err != nil {
		return fmt.Errorf("persist: write header: %w", err)
	}
	for i := uint64(0); i < f.NumBlocks(); i++ {
		if err := writeBlock(buf, f.BlockAt(i)); err != nil {
			return fmt.Errorf("persist: write block %d: %w", i, err)
		}
	}
	if err := buf.Flush(); err != nil {
		return fmt.Errorf("persist: flush: %w", err)
	}

	if err := binary.Write(file, binary.LittleEndian, hasher.Sum64()); err != nil {
		return fmt.Errorf("persist: write checksum: %w", err)
	}
	return nil
}

func writeHeader(w io.Writer, f *vqf.Filter) error {
	if _, err := w.Write([]byte(magic)); err != nil {
		return err
	}
	fields := []uint64{f.NSlots(), f.NumBlocks(), f.Len(), f.RangeBuckets()}
	for _, v := range fields {
		if err := binary.Write(w, binary.LittleEndian, v); err != nil {
			return err
		}
	}
	_, err := w.Write([]byte{byte(f.KeyRemainderBits())})
	return err
}

func writeBlock(w io.Writer, b *vqf.Block) error {
	if err := binary.Write(w, binary.LittleEndian, b.RawMetadata()); err != nil {
		return err
	}
	tags := b.RawTags()
	return binary.Write(w, binary.LittleEndian, tags)
}

// Load reads a VQF1 snapshot from path on fs and reconstructs the filter it
// describes. It returns an error if the magic, checksum, or declared block
// count don't check out.
func Load(fs afero.Fs, path string) (*vqf.Filter, error) {
	file, err := fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("persist: open %s: %w", path, err)
	}
	defer file.Close()

	raw, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("persist: read %s: %w", path, err)
	}
	const checksumSize = 8
	if len(raw) < checksumSize {
		return nil, fmt.Errorf("persist: %s is too short to contain a checksum", path)
	}
	body, wantChecksum := raw[:len(raw)-checksumSize], raw[len(raw)-checksumSize:]

	hasher := crc64.New(crcTable)
	hasher.Write(body)
	if got := hasher.Sum64(); got != binary.LittleEndian.Uint64(wantChecksum) {
		return nil, fmt.Errorf("persist: %s failed checksum validation (corrupt or truncated)", path)
	}

	r := newByteReader(body)
	header, err := readHeader(r)
	if err != nil {
		return nil, fmt.Errorf("persist: %s: %w", path, err)
	}

	blocks := make([]vqf.Block, header.nblocks)
	for i := range blocks {
		b, err := readBlock(r)
		if err != nil {
			return nil, fmt.Errorf("persist: %s: block %d: %w", path, i, err)
		}
		blocks[i] = b
	}

	return vqf.FromBlocks(header.nslots, header.nelts, header.rangeBuckets, blocks), nil
}

type snapshotHeader struct {
	nslots       uint64
	nblocks      uint64
	nelts        uint64
	rangeBuckets uint64
	krb          byte
}

func readHeader(r *byteReader) (snapshotHeader, error) {
	var h snapshotHeader
	gotMagic := make([]byte, len(magic))
	if err := r.read(gotMagic); err != nil {
		return h, fmt.Errorf("reading magic: %w", err)
	}
	if string(gotMagic) != magic {
		return h, fmt.Errorf("bad magic %q, want %q", gotMagic, magic)
	}

	fields := []*uint64{&h.nslots, &h.nblocks, &h.nelts, &h.rangeBuckets}
	for _, f := range fields {
		v, err := r.uint64()
		if err != nil {
			return h, err
		}
		*f = v
	}

	krb, err := r.byte()
	if err != nil {
		return h, err
	}
	h.krb = krb
	return h, nil
}

func readBlock(r *byteReader) (vqf.Block, error) {
	md, err := r.uint64()
	if err != nil {
		return vqf.Block{}, fmt.Errorf("reading metadata: %w", err)
	}
	var tags [vqf.SlotsPerBlock]uint16
	for i := range tags {
		v, err := r.uint16()
		if err != nil {
			return vqf.Block{}, fmt.Errorf("reading tag %d: %w", i, err)
		}
		tags[i] = v
	}
	return vqf.BlockFromRaw(md, tags), nil
}

// byteReader is a minimal little-endian cursor over an in-memory buffer.
// Snapshots are read fully into memory by Load before parsing (its own
// checksum pass already required a full read), so this avoids a second
// io.Reader abstraction layered on top of one we already have.
type byteReader struct {
	data []byte
	pos  int
}

func newByteReader(data []byte) *byteReader { return &byteReader{data: data} }

func (r *byteReader) read(dst []byte) error {
	if r.pos+len(dst) > len(r.data) {
		return io.ErrUnexpectedEOF
	}
	copy(dst, r.data[r.pos:])
	r.pos += len(dst)
	return nil
}

func (r *byteReader) byte() (byte, error) {
	var buf [1]byte
	if err := r.read(buf[:]); err != nil {
		return 0, err
	}
	return buf[0], nil
}

func (r *byteReader) uint16() (uint16, error) {
	var buf [2]byte
	if err := r.read(buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(buf[:]), nil
}

func (r *byteReader) uint64() (uint64, error) {
	var buf [8]byte
	if err := r.read(buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(buf[:]), nil
}

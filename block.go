// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package unitykit

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/pierrec/lz4/v4"
	"github.com/ulikunitz/xz/lzma"
)

// CompressionType identifies how a Block's bytes are packed on disk. The
// values are the low 6 bits of a block's flags field (spec §6).
type CompressionType int

// Compression identifiers (spec §6).
const (
	CompressionNone  CompressionType = 0
	CompressionLZMA  CompressionType = 1
	CompressionLZ4   CompressionType = 2
	CompressionLZ4HC CompressionType = 3
	CompressionLZHAM CompressionType = 4
)

func (c CompressionType) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionLZMA:
		return "lzma"
	case CompressionLZ4:
		return "lz4"
	case CompressionLZ4HC:
		return "lz4hc"
	case CompressionLZHAM:
		return "lzham"
	default:
		return fmt.Sprintf("compression(%d)", int(c))
	}
}

// Block describes one compressed chunk inside a UnityFS archive. Blocks
// are immutable once parsed (spec §3).
type Block struct {
	UncompressedSize uint32
	CompressedSize   uint32
	Flags            int16
}

// Compression returns the compression method for this block.
func (b Block) Compression() CompressionType {
	return CompressionType(b.Flags & 0x3F)
}

// BlockStorage presents a seekable, virtually-uncompressed stream over a
// sequence of compressed blocks (spec §4.2). It caches at most one
// decompressed block at a time, evicted implicitly on the next miss.
type BlockStorage struct {
	src    io.ReadSeeker
	base   int64 // absolute offset of the first block's compressed bytes in src
	blocks []Block

	// offsets[i] is the cumulative uncompressed size before block i;
	// coffsets[i] is the cumulative compressed size before block i.
	offsets  []int64
	coffsets []int64
	length   int64

	cursor int64

	cachedBlock int // -1 when nothing is cached
	cachedData  []byte
}

// NewBlockStorage builds a BlockStorage over blocks, whose compressed
// bytes begin at the current position of src.
func NewBlockStorage(src io.ReadSeeker, blocks []Block) (*BlockStorage, error) {
	base, err := src.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, err
	}

	bs := &BlockStorage{
		src:         src,
		base:        base,
		blocks:      blocks,
		offsets:     make([]int64, len(blocks)+1),
		coffsets:    make([]int64, len(blocks)+1),
		cachedBlock: -1,
	}

	var uoff, coff int64
	for i, b := range blocks {
		bs.offsets[i] = uoff
		bs.coffsets[i] = coff
		uoff += int64(b.UncompressedSize)
		coff += int64(b.CompressedSize)
	}
	bs.offsets[len(blocks)] = uoff
	bs.coffsets[len(blocks)] = coff
	bs.length = uoff

	return bs, nil
}

// Len returns the virtual (uncompressed) length of the stream.
func (bs *BlockStorage) Len() int64 { return bs.length }

// Seek implements io.Seeker over the virtual uncompressed space. The
// actual decompression is deferred to the next Read.
func (bs *BlockStorage) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = bs.cursor + offset
	case io.SeekEnd:
		abs = bs.length + offset
	default:
		return 0, fmt.Errorf("unitykit: invalid whence %d", whence)
	}
	if abs < 0 {
		return 0, fmt.Errorf("unitykit: negative seek position")
	}
	bs.cursor = abs
	return abs, nil
}

// blockIndexFor returns the index of the block containing virtual offset
// off, or len(bs.blocks) if off is at or past the end of the stream.
func (bs *BlockStorage) blockIndexFor(off int64) int {
	// Blocks are few in practice (single digits to low hundreds); a
	// linear scan is simpler and plenty fast.
	for i, end := range bs.offsets[1:] {
		if off < end {
			return i
		}
	}
	return len(bs.blocks)
}

func (bs *BlockStorage) loadBlock(idx int) ([]byte, error) {
	if idx == bs.cachedBlock {
		return bs.cachedData, nil
	}

	b := bs.blocks[idx]
	if _, err := bs.src.Seek(bs.base+bs.coffsets[idx], io.SeekStart); err != nil {
		return nil, err
	}
	compressed := make([]byte, b.CompressedSize)
	if _, err := io.ReadFull(bs.src, compressed); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, ErrTruncated
		}
		return nil, err
	}

	data, err := decompressBlock(compressed, b)
	if err != nil {
		return nil, err
	}

	bs.cachedBlock = idx
	bs.cachedData = data
	return data, nil
}

// Read implements io.Reader over the virtual uncompressed space.
func (bs *BlockStorage) Read(p []byte) (int, error) {
	if bs.cursor >= bs.length {
		return 0, io.EOF
	}

	idx := bs.blockIndexFor(bs.cursor)
	if idx >= len(bs.blocks) {
		return 0, io.EOF
	}

	data, err := bs.loadBlock(idx)
	if err != nil {
		return 0, err
	}

	withinBlock := bs.cursor - bs.offsets[idx]
	n := copy(p, data[withinBlock:])
	bs.cursor += int64(n)
	return n, nil
}

// decompressBlock decompresses compressed per b.Compression() and
// b.Flags & 0x3F (spec §4.2).
func decompressBlock(compressed []byte, b Block) ([]byte, error) {
	switch b.Compression() {
	case CompressionNone:
		if uint32(len(compressed)) != b.UncompressedSize {
			// identity blocks are still expected to match declared sizes.
			out := make([]byte, b.UncompressedSize)
			copy(out, compressed)
			return out, nil
		}
		return compressed, nil

	case CompressionLZMA:
		return decompressLZMARaw(compressed, b.UncompressedSize)

	case CompressionLZ4, CompressionLZ4HC:
		out := make([]byte, b.UncompressedSize)
		n, err := lz4.UncompressBlock(compressed, out)
		if err != nil {
			return nil, fmt.Errorf("%w: lz4: %v", ErrCorrupt, err)
		}
		return out[:n], nil

	case CompressionLZHAM:
		return nil, fmt.Errorf("%w: lzham", ErrUnsupported)

	default:
		return nil, fmt.Errorf("%w: compression flag %d", ErrUnsupported, b.Compression())
	}
}

// decompressLZMARaw decompresses a raw (headerless, in the xz sense)
// LZMA1 stream framed the way Unity stores it: a 5-byte properties
// header (lc/lp/pb packed into one byte, a little-endian 4-byte
// dictionary size) immediately followed by the compressed payload, with
// no uncompressed-size trailer - the expected size is supplied out of
// band by the block descriptor (spec §4.2).
func decompressLZMARaw(compressed []byte, uncompressedSize uint32) ([]byte, error) {
	if len(compressed) < 5 {
		return nil, fmt.Errorf("%w: lzma header truncated", ErrTruncated)
	}

	propsByte := compressed[0]
	lc := int(propsByte % 9)
	propsByte /= 9
	pb := int(propsByte / 5)
	lp := int(propsByte % 5)
	dictSize := binary.LittleEndian.Uint32(compressed[1:5])

	props, err := lzma.NewProperties(lc, lp, pb)
	if err != nil {
		return nil, fmt.Errorf("%w: lzma properties: %v", ErrCorrupt, err)
	}

	dictCap := int(dictSize)
	if dictCap <= 0 {
		dictCap = 1 << 20
	}

	cfg := lzma.ReaderConfig{
		DictCap:      dictCap,
		Properties:   &props,
		SizeInHeader: false,
	}

	lr, err := cfg.NewReader(bytes.NewReader(compressed[5:]))
	if err != nil {
		return nil, fmt.Errorf("%w: lzma: %v", ErrMissingCodec, err)
	}

	out := make([]byte, uncompressedSize)
	if _, err := io.ReadFull(lr, out); err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return nil, fmt.Errorf("%w: lzma: %v", ErrCorrupt, err)
	}
	return out, nil
}

// wholeStreamLZMAReader wraps r as a classic 13-byte-headered LZMA1
// stream (1 property byte + 4-byte dict size + 8-byte uncompressed
// size), the framing UnityWeb bundles use for their single whole-archive
// LZMA payload (spec §4.3).
func wholeStreamLZMAReader(r io.Reader) (io.Reader, error) {
	lr, err := lzma.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: lzma: %v", ErrMissingCodec, err)
	}
	return lr, nil
}

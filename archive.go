// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package unitykit

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/edsrzf/mmap-go"
)

// Signature identifies an archive's wire format (spec §4.3, §6).
type Signature string

// Recognized bundle signatures.
const (
	SignatureUnityRaw Signature = "UnityRaw"
	SignatureUnityWeb Signature = "UnityWeb"
	SignatureUnityFS  Signature = "UnityFS"
)

// Archive is one opened AssetBundle: a container of one or more
// SerializedFile assets, plus whatever raw .resource siblings it
// carries (spec §3).
type Archive struct {
	Name          string
	Signature     Signature
	FormatVersion int32
	UnityVersion  string
	Generator     string

	// CompressedSize/UncompressedSize report the on-disk and in-memory
	// footprint of the archive's payload, a supplemental convenience
	// beyond spec §3's core fields (useful for reporting compression
	// ratio).
	CompressedSize   int64
	UncompressedSize int64

	Assets []*SerializedFile

	closer io.Closer
	mapped mmap.MMap
}

// Close releases the archive's owned byte source, if any (spec §5).
func (a *Archive) Close() error {
	var err error
	if a.mapped != nil {
		err = a.mapped.Unmap()
	}
	if a.closer != nil {
		if cerr := a.closer.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// OpenBundle memory-maps path and parses it as an archive (spec §4.3).
// The returned Archive owns the mapping and file handle; Close releases
// both.
func OpenBundle(path string, opts *Options) (*Archive, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	m, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("unitykit: mmap %s: %w", path, err)
	}

	a, err := parseArchive(bytes.NewReader(m), opts, baseName(path))
	if err != nil {
		m.Unmap()
		f.Close()
		return nil, err
	}
	a.mapped = m
	a.closer = f
	return a, nil
}

// OpenBundleBytes parses an in-memory archive image. The returned
// Archive does not own data; callers must keep it alive for the
// Archive's lifetime since object reads stay lazy (spec §5).
func OpenBundleBytes(data []byte, name string, opts *Options) (*Archive, error) {
	return parseArchive(bytes.NewReader(data), opts, name)
}

func baseName(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' || path[i] == '\\' {
			return path[i+1:]
		}
	}
	return path
}

func parseArchive(src io.ReadSeeker, opts *Options, name string) (*Archive, error) {
	if opts == nil {
		opts = defaultOptions()
	}

	r := newReader(src)

	sig, err := r.readCString()
	if err != nil {
		return nil, err
	}

	a := &Archive{Name: name, Signature: Signature(sig)}

	switch a.Signature {
	case SignatureUnityFS:
		if err := a.parseUnityFS(r, opts); err != nil {
			return nil, err
		}
	case SignatureUnityRaw, SignatureUnityWeb:
		if err := a.parseUnityRawWeb(r, opts); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: signature %q", ErrUnsupported, sig)
	}

	return a, nil
}

// archiveFlagMetadataAtEnd marks that the UnityFS metadata
// block lives at the end of the file rather than immediately following
// the archive header (spec §4.3).
const archiveFlagMetadataAtEnd = 0x80

func (a *Archive) parseUnityFS(r *reader, opts *Options) error {
	var err error
	if a.FormatVersion, err = r.readI32(); err != nil {
		return err
	}
	if a.UnityVersion, err = r.readCString(); err != nil {
		return err
	}
	if a.Generator, err = r.readCString(); err != nil {
		return err
	}

	if _, err := r.readI64(); err != nil { // file_size, unused: block/node tables are self-describing
		return err
	}
	ciBlockSize, err := r.readU32()
	if err != nil {
		return err
	}
	uiBlockSize, err := r.readU32()
	if err != nil {
		return err
	}
	flags, err := r.readU32()
	if err != nil {
		return err
	}

	a.CompressedSize = int64(ciBlockSize)
	a.UncompressedSize = int64(uiBlockSize)

	metaBlock := Block{UncompressedSize: uiBlockSize, CompressedSize: ciBlockSize, Flags: int16(flags & 0x3F)}

	var metaBytes []byte
	if flags&archiveFlagMetadataAtEnd != 0 {
		resumeAt, err := r.tell()
		if err != nil {
			return err
		}
		if _, err := r.seek(-int64(ciBlockSize), SeekEnd); err != nil {
			return err
		}
		compressed, err := r.read(int(ciBlockSize))
		if err != nil {
			return err
		}
		metaBytes, err = decompressBlock(compressed, metaBlock)
		if err != nil {
			return err
		}
		if _, err := r.seek(resumeAt, SeekStart); err != nil {
			return err
		}
	} else {
		compressed, err := r.read(int(ciBlockSize))
		if err != nil {
			return err
		}
		metaBytes, err = decompressBlock(compressed, metaBlock)
		if err != nil {
			return err
		}
	}

	mr := newReaderBytes(metaBytes)

	if _, err := mr.read(16); err != nil { // archive GUID, unused beyond framing
		return err
	}

	numBlocks, err := mr.readI32()
	if err != nil {
		return err
	}
	if numBlocks < 0 {
		return fmt.Errorf("%w: negative block count", ErrCorrupt)
	}
	blocks := make([]Block, numBlocks)
	for i := range blocks {
		u, err := mr.readU32()
		if err != nil {
			return err
		}
		c, err := mr.readU32()
		if err != nil {
			return err
		}
		bf, err := mr.readI16()
		if err != nil {
			return err
		}
		blocks[i] = Block{UncompressedSize: u, CompressedSize: c, Flags: bf}
	}

	numNodes, err := mr.readI32()
	if err != nil {
		return err
	}
	if numNodes < 0 {
		return fmt.Errorf("%w: negative node count", ErrCorrupt)
	}

	type node struct {
		offset int64
		size   int64
		status int32
		name   string
	}
	nodes := make([]node, numNodes)
	for i := range nodes {
		off, err := mr.readI64()
		if err != nil {
			return err
		}
		size, err := mr.readI64()
		if err != nil {
			return err
		}
		status, err := mr.readI32()
		if err != nil {
			return err
		}
		name, err := mr.readCString()
		if err != nil {
			return err
		}
		nodes[i] = node{offset: off, size: size, status: status, name: name}
	}

	bs, err := NewBlockStorage(r.src, blocks)
	if err != nil {
		return err
	}

	for _, n := range nodes {
		if _, err := bs.Seek(n.offset, SeekStart); err != nil {
			return err
		}
		raw, err := readExact(bs, n.size)
		if err != nil {
			return err
		}

		asset := &SerializedFile{Name: n.name, opts: opts}
		if isResourceName(n.name) {
			asset.IsResource = true
			asset.rawData = raw
		} else {
			ar := newReaderBytes(raw)
			parsed, err := parseSerializedFile(ar, opts, nil, n.name)
			if err != nil {
				return fmt.Errorf("unitykit: asset %q: %w", n.name, err)
			}
			asset = parsed
		}
		a.Assets = append(a.Assets, asset)
	}

	return nil
}

func (a *Archive) parseUnityRawWeb(r *reader, opts *Options) error {
	var err error
	if a.FormatVersion, err = r.readI32(); err != nil {
		return err
	}
	if a.UnityVersion, err = r.readCString(); err != nil {
		return err
	}
	if a.Generator, err = r.readCString(); err != nil {
		return err
	}

	fileSize, err := r.readU32()
	if err != nil {
		return err
	}
	headerSize, err := r.readI32()
	if err != nil {
		return err
	}
	fileCount, err := r.readI32()
	if err != nil {
		return err
	}
	if _, err = r.readI32(); err != nil { // bundle_count
		return err
	}
	if fileCount < 0 {
		return fmt.Errorf("%w: negative file count", ErrCorrupt)
	}

	a.CompressedSize = int64(fileSize)
	a.UncompressedSize = int64(fileSize)

	if a.FormatVersion >= 2 {
		if _, err := r.readU32(); err != nil { // bundle_size
			return err
		}
	}
	if a.FormatVersion >= 3 {
		if _, err := r.readU32(); err != nil { // uncompressed_bundle_size
			return err
		}
	}
	if headerSize >= 60 {
		if _, err := r.readU32(); err != nil { // compressed_file_size
			return err
		}
		if _, err := r.readU32(); err != nil { // asset_header_size
			return err
		}
	}
	if _, err := r.readI32(); err != nil {
		return err
	}
	if _, err := r.readU8(); err != nil {
		return err
	}
	if _, err := r.readCString(); err != nil { // bundle name
		return err
	}

	if _, err := r.seek(int64(headerSize), SeekStart); err != nil {
		return err
	}

	// UnityWeb bundles wrap everything past the header in one whole-stream
	// LZMA payload; fully materializing it (rather than streaming) is what
	// lets the directory loop below seek freely the same way it does over
	// the uncompressed UnityRaw body (spec §4.3).
	br := r
	if a.Signature == SignatureUnityWeb {
		lr, err := wholeStreamLZMAReader(r.src)
		if err != nil {
			return err
		}
		decompressed, err := io.ReadAll(lr)
		if err != nil {
			return fmt.Errorf("%w: lzma: %v", ErrCorrupt, err)
		}
		br = newReaderBytes(decompressed)
		a.UncompressedSize = int64(headerSize) + int64(len(decompressed))
	}

	for i := int32(0); i < fileCount; i++ {
		entryStart, err := br.tell()
		if err != nil {
			return err
		}

		name, err := br.readCString()
		if err != nil {
			return err
		}
		assetHeaderSize, err := br.readU32()
		if err != nil {
			return err
		}
		size, err := br.readU32()
		if err != nil {
			return err
		}
		afterEntry, err := br.tell()
		if err != nil {
			return err
		}

		isResource := isResourceName(name)
		windowOffset := int64(assetHeaderSize) - 4
		if isResource {
			windowOffset -= int64(len(name))
		}

		if _, err := br.seek(entryStart+windowOffset, SeekStart); err != nil {
			return err
		}
		raw, err := br.read(int(size))
		if err != nil {
			return err
		}

		asset := &SerializedFile{Name: name, opts: opts}
		if isResource {
			asset.IsResource = true
			asset.rawData = raw
		} else {
			ar := newReaderBytes(raw)
			parsed, err := parseSerializedFile(ar, opts, nil, name)
			if err != nil {
				return fmt.Errorf("unitykit: asset %q: %w", name, err)
			}
			asset = parsed
		}
		a.Assets = append(a.Assets, asset)

		if _, err := br.seek(afterEntry, SeekStart); err != nil {
			return err
		}
	}

	return nil
}

func isResourceName(name string) bool {
	return len(name) >= len(".resource") && name[len(name)-len(".resource"):] == ".resource"
}

func readExact(r io.Reader, n int64) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, ErrTruncated
		}
		return nil, err
	}
	return buf, nil
}

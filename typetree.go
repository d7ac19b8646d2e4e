// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package unitykit

import (
	"fmt"
)

// typeTreeNullString is substituted for an unresolvable string-pool
// offset (spec §4.4).
const typeTreeNullString = "(null)"

// postAlignFlag marks a node that requires a post-read 4-byte alignment.
const postAlignFlag = 0x4000

// TypeTree is the self-describing schema tree embedded in (or supplied as
// a fallback for) an asset. It drives ObjectReader's decode (spec §3,
// §4.4). The encoding on disk comes in two flavors - old recursive and
// blob/flat - but both reconstruct into this same shape, the way
// saferwall/pe's doParseResourceDirectory folds two different on-disk
// shapes (named vs. ID-keyed entries) into one ResourceDirectory tree.
type TypeTree struct {
	Type     string
	Name     string
	Size     int32
	Index    uint32
	Flags    int32
	IsArray  bool
	Version  int16
	Children []*TypeTree
}

// PostAlign reports whether this node's kPostAlign flag is set.
func (t *TypeTree) PostAlign() bool {
	return t.Flags&postAlignFlag != 0
}

func (t *TypeTree) String() string {
	return fmt.Sprintf("%s %s (size=%d, index=%d, is_array=%v, flags=%#x)",
		t.Type, t.Name, t.Size, t.Index, t.IsArray, t.Flags)
}

// parseTypeTree dispatches to the recursive or blob decoding of a
// TypeTree depending on the serialized file's format (spec §4.4). opts
// may be nil, in which case every validation knob defaults to enabled.
func parseTypeTree(r *reader, format uint32, globalStrings []byte, opts *Options) (*TypeTree, error) {
	if format == 10 || format >= 12 {
		return parseTypeTreeBlob(r, globalStrings, opts)
	}
	return parseTypeTreeOld(r)
}

// parseTypeTreeOld decodes the legacy recursive encoding: every node
// reads its own fields then recurses into num_fields children.
func parseTypeTreeOld(r *reader) (*TypeTree, error) {
	t := &TypeTree{}

	var err error
	if t.Type, err = r.readCString(); err != nil {
		return nil, err
	}
	if t.Name, err = r.readCString(); err != nil {
		return nil, err
	}
	size, err := r.readI32()
	if err != nil {
		return nil, err
	}
	t.Size = size

	index, err := r.readI32()
	if err != nil {
		return nil, err
	}
	t.Index = uint32(index)

	isArray, err := r.readI32()
	if err != nil {
		return nil, err
	}
	t.IsArray = isArray != 0

	version, err := r.readI32()
	if err != nil {
		return nil, err
	}
	t.Version = int16(version)

	if t.Flags, err = r.readI32(); err != nil {
		return nil, err
	}

	numFields, err := r.readU32()
	if err != nil {
		return nil, err
	}

	for i := uint32(0); i < numFields; i++ {
		child, err := parseTypeTreeOld(r)
		if err != nil {
			return nil, err
		}
		t.Children = append(t.Children, child)
	}

	return t, nil
}

// blobNodeRecord is the fixed 24-byte on-disk record for one node in the
// flat blob encoding (spec §4.4).
type blobNodeRecord struct {
	Version    int16
	Depth      uint8
	IsArray    bool
	TypeOffset int32
	NameOffset int32
	Size       int32
	Index      uint32
	Flags      int32
}

// parseTypeTreeBlob decodes the flat, depth-tagged blob encoding used by
// format 10 and format >= 12 assets, then reconstructs the tree shape
// from the depth stream per spec §4.4's stack algorithm. opts.
// SkipTypeTreeValidation trades the depth-skip guard below for
// tolerance of a malformed/unfamiliar depth stream (spec §7).
func parseTypeTreeBlob(r *reader, globalStrings []byte, opts *Options) (*TypeTree, error) {
	numNodes, err := r.readU32()
	if err != nil {
		return nil, err
	}
	bufferBytes, err := r.readU32()
	if err != nil {
		return nil, err
	}

	records := make([]blobNodeRecord, numNodes)
	for i := range records {
		version, err := r.readI16()
		if err != nil {
			return nil, err
		}
		depth, err := r.readU8()
		if err != nil {
			return nil, err
		}
		isArray, err := r.readU8()
		if err != nil {
			return nil, err
		}
		typeOff, err := r.readI32()
		if err != nil {
			return nil, err
		}
		nameOff, err := r.readI32()
		if err != nil {
			return nil, err
		}
		size, err := r.readI32()
		if err != nil {
			return nil, err
		}
		index, err := r.readU32()
		if err != nil {
			return nil, err
		}
		flags, err := r.readI32()
		if err != nil {
			return nil, err
		}
		records[i] = blobNodeRecord{
			Version: version, Depth: depth, IsArray: isArray != 0,
			TypeOffset: typeOff, NameOffset: nameOff,
			Size: size, Index: index, Flags: flags,
		}
	}

	localBuf, err := r.read(int(bufferBytes))
	if err != nil {
		return nil, err
	}

	lookup := func(offset int32) string {
		if offset < 0 {
			off := offset & 0x7fffffff
			return cStringAt(globalStrings, int(off))
		}
		if offset < int32(bufferBytes) {
			return cStringAt(localBuf, int(offset))
		}
		return typeTreeNullString
	}

	root := &TypeTree{}
	parents := []*TypeTree{root}

	for i, rec := range records {
		var curr *TypeTree
		if rec.Depth == 0 {
			curr = root
		} else {
			depth := int(rec.Depth)
			if depth > len(parents) {
				if opts == nil || !opts.SkipTypeTreeValidation {
					return nil, fmt.Errorf("%w: type tree node %d skips a depth level", ErrCorrupt, i)
				}
				// Clamp to the deepest open parent instead of
				// rejecting the tree outright.
				depth = len(parents)
			}
			for len(parents) > depth {
				parents = parents[:len(parents)-1]
			}
			curr = &TypeTree{}
			parent := parents[len(parents)-1]
			parent.Children = append(parent.Children, curr)
			parents = append(parents, curr)
		}

		curr.Version = rec.Version
		curr.IsArray = rec.IsArray
		curr.Type = lookup(rec.TypeOffset)
		curr.Name = lookup(rec.NameOffset)
		curr.Size = rec.Size
		curr.Index = rec.Index
		curr.Flags = rec.Flags
	}

	return root, nil
}

// cStringAt reads a NUL-terminated string out of pool starting at
// offset. An out-of-range or unterminated offset degrades to the null
// sentinel rather than panicking - string-pool corruption alone should
// not abort an otherwise-readable tree.
func cStringAt(pool []byte, offset int) string {
	if offset < 0 || offset >= len(pool) {
		return typeTreeNullString
	}
	end := offset
	for end < len(pool) && pool[end] != 0 {
		end++
	}
	if end == len(pool) {
		return typeTreeNullString
	}
	return string(pool[offset:end])
}

// Walk visits t and every descendant depth-first, calling fn with each
// node's depth. This is the inverse of the blob encoding and is what
// spec §8 invariant 4 (TypeTree round-trip) exercises.
func (t *TypeTree) Walk(fn func(depth int, node *TypeTree)) {
	t.walk(0, fn)
}

func (t *TypeTree) walk(depth int, fn func(int, *TypeTree)) {
	fn(depth, t)
	for _, c := range t.Children {
		c.walk(depth+1, fn)
	}
}

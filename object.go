// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package unitykit

import (
	"fmt"
	"strings"
)

// objectReader walks a TypeTree against one object's payload bytes,
// producing a Value (spec §4.6). Object payloads are always
// little-endian on disk regardless of the owning asset's header
// endianness.
type objectReader struct {
	r     *reader
	asset *SerializedFile
}

func newObjectReader(payload []byte, asset *SerializedFile) *objectReader {
	r := newReaderBytes(payload)
	r.setLittleEndian()
	return &objectReader{r: r, asset: asset}
}

func (or *objectReader) decode(t *TypeTree) (*Value, error) {
	before, err := or.r.tell()
	if err != nil {
		return nil, err
	}

	val, postAlign, err := or.decodeNode(t)
	if err != nil {
		return nil, err
	}

	after, err := or.r.tell()
	if err != nil {
		return nil, err
	}

	if t.Size > 0 && after-before < int64(t.Size) {
		return nil, fmt.Errorf("%w: %s.%s expected %d bytes, read %d",
			ErrCorrupt, t.Type, t.Name, t.Size, after-before)
	}

	if postAlign || t.PostAlign() {
		if err := or.r.alignTo4(); err != nil {
			return nil, err
		}
	}

	return val, nil
}

// decodeNode decodes t's value and reports whether the caller (a string
// or array's post_align flag lives on a synthetic child node rather than
// t itself) additionally requires alignment.
func (or *objectReader) decodeNode(t *TypeTree) (*Value, bool, error) {
	switch t.Type {
	case "bool":
		b, err := or.r.readBool()
		return &Value{Kind: KindBool, Bool: b, TypeName: t.Type}, false, err

	case "SInt8":
		v, err := or.r.readI8()
		return &Value{Kind: KindInt, Int: int64(v), TypeName: t.Type}, false, err

	case "UInt8", "char":
		v, err := or.r.readU8()
		return &Value{Kind: KindUint, Uint: uint64(v), TypeName: t.Type}, false, err

	case "SInt16":
		v, err := or.r.readI16()
		return &Value{Kind: KindInt, Int: int64(v), TypeName: t.Type}, false, err

	case "UInt16":
		v, err := or.r.readU16()
		return &Value{Kind: KindUint, Uint: uint64(v), TypeName: t.Type}, false, err

	case "SInt32", "int":
		v, err := or.r.readI32()
		return &Value{Kind: KindInt, Int: int64(v), TypeName: t.Type}, false, err

	case "UInt32", "unsigned int":
		v, err := or.r.readU32()
		return &Value{Kind: KindUint, Uint: uint64(v), TypeName: t.Type}, false, err

	case "SInt64":
		v, err := or.r.readI64()
		return &Value{Kind: KindInt, Int: v, TypeName: t.Type}, false, err

	case "UInt64":
		v, err := or.r.readU64()
		return &Value{Kind: KindUint, Uint: v, TypeName: t.Type}, false, err

	case "float":
		if err := or.r.alignTo4(); err != nil {
			return nil, false, err
		}
		v, err := or.r.readF32()
		return &Value{Kind: KindFloat, Float: float64(v), TypeName: t.Type}, false, err

	case "string":
		size, err := or.r.readU32()
		if err != nil {
			return nil, false, err
		}
		s, err := or.r.readFixedString(int(size))
		if err != nil {
			return nil, false, err
		}
		align := false
		if len(t.Children) > 0 {
			align = t.Children[0].PostAlign()
		}
		return &Value{Kind: KindString, String: s, TypeName: t.Type}, align, nil
	}

	if strings.HasPrefix(t.Type, "PPtr<") {
		return or.decodePPtr(t)
	}

	arrayNode := t
	if !t.IsArray {
		if len(t.Children) > 0 && t.Children[0].IsArray {
			arrayNode = t.Children[0]
		} else {
			arrayNode = nil
		}
	}
	if arrayNode != nil {
		return or.decodeArray(t, arrayNode)
	}

	if t.Type == "pair" {
		return or.decodePair(t)
	}

	return or.decodeComposite(t)
}

func (or *objectReader) decodePPtr(t *TypeTree) (*Value, bool, error) {
	ptr, err := parsePPtr(or.r, or.asset, or.asset.longPPtrIDs())
	if err != nil {
		return nil, false, err
	}
	return &Value{Kind: KindPPtr, PPtr: ptr, TypeName: t.Type}, false, nil
}

// decodeArray decodes t, whose is_array child (possibly t itself) drives
// a size-prefixed repetition of its element type. A byte/char element
// type is read as a single contiguous blob rather than one Value per
// byte, matching the original's read(size) shortcut (spec §4.6).
func (or *objectReader) decodeArray(t, arrayNode *TypeTree) (*Value, bool, error) {
	if len(arrayNode.Children) != 2 {
		return nil, false, fmt.Errorf("%w: %s array node has %d children, want 2",
			ErrCorrupt, t.Name, len(arrayNode.Children))
	}
	elemType := arrayNode.Children[1]

	size, err := or.r.readU32()
	if err != nil {
		return nil, false, err
	}

	if elemType.Type == "char" || elemType.Type == "UInt8" {
		data, err := or.r.read(int(size))
		if err != nil {
			return nil, false, err
		}
		return &Value{Kind: KindBytes, Bytes: data, TypeName: t.Type}, arrayNode.PostAlign(), nil
	}

	slice := make([]*Value, 0, size)
	for i := uint32(0); i < size; i++ {
		v, err := or.decode(elemType)
		if err != nil {
			return nil, false, err
		}
		slice = append(slice, v)
	}
	return &Value{Kind: KindSlice, Slice: slice, TypeName: t.Type}, arrayNode.PostAlign(), nil
}

func (or *objectReader) decodePair(t *TypeTree) (*Value, bool, error) {
	if len(t.Children) != 2 {
		return nil, false, fmt.Errorf("%w: pair %s has %d children, want 2",
			ErrCorrupt, t.Name, len(t.Children))
	}
	first, err := or.decode(t.Children[0])
	if err != nil {
		return nil, false, err
	}
	second, err := or.decode(t.Children[1])
	if err != nil {
		return nil, false, err
	}
	return &Value{Kind: KindPair, Pair: [2]*Value{first, second}, TypeName: t.Type}, false, nil
}

func (or *objectReader) decodeComposite(t *TypeTree) (*Value, bool, error) {
	val := newMapValue(t.Type)
	for _, child := range t.Children {
		fieldVal, err := or.decode(child)
		if err != nil {
			return nil, false, err
		}
		val.setField(child.Name, fieldVal)
	}

	switch t.Type {
	case "StreamedResource":
		or.resolveStreamingAsset(val, val.Get("source"))
	case "StreamingInfo":
		or.resolveStreamingAsset(val, val.Get("path"))
	}

	return val, false, nil
}

// resolveStreamingAsset eagerly looks up the external asset a
// StreamedResource/StreamingInfo payload lives in, via the owning
// Environment, and records that asset's name as a "resolvedAsset" string
// field (spec §4.6 "Streamed resources" supplemental feature). Only the
// name is stored on the value, not the asset itself.
// A lookup failure is recorded as a warning, not a hard error: the
// object itself decoded successfully, only the convenience resolution
// failed.
func (or *objectReader) resolveStreamingAsset(val *Value, pathVal *Value) {
	if pathVal == nil || pathVal.Kind != KindString || pathVal.String == "" {
		return
	}
	if or.asset == nil || or.asset.env == nil {
		return
	}
	asset, err := or.asset.env.GetAsset(pathVal.String)
	if err != nil {
		or.asset.logger().Warnf("streaming asset %q unresolved: %v", pathVal.String, err)
		return
	}
	val.setField("resolvedAsset", &Value{Kind: KindString, String: asset.Name, TypeName: "string"})
}

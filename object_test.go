// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package unitykit

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"
)

func TestObjectDecodePrimitiveInt(t *testing.T) {
	tree := &TypeTree{Type: "int", Name: "value", Size: 4}
	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, int32(42))

	or := newObjectReader(buf.Bytes(), &SerializedFile{})
	val, err := or.decode(tree)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if val.Kind != KindInt || val.Int != 42 {
		t.Fatalf("val = %+v, want Int=42", val)
	}
}

func TestObjectDecodeByteBlobArray(t *testing.T) {
	tree := &TypeTree{
		Type: "vector", Name: "bytesField",
		Children: []*TypeTree{
			{
				Type: "Array", Name: "Array", IsArray: true,
				Children: []*TypeTree{
					{Type: "int", Name: "size", Size: 4},
					{Type: "UInt8", Name: "data", Size: 1},
				},
			},
		},
	}

	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, uint32(4))
	buf.Write([]byte{1, 2, 3, 4})

	or := newObjectReader(buf.Bytes(), &SerializedFile{})
	val, err := or.decode(tree)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if val.Kind != KindBytes || !bytes.Equal(val.Bytes, []byte{1, 2, 3, 4}) {
		t.Fatalf("val = %+v, want Bytes=[1 2 3 4]", val)
	}
}

func TestObjectDecodeIntArray(t *testing.T) {
	elemType := &TypeTree{Type: "int", Name: "data", Size: 4}
	tree := &TypeTree{
		Type: "vector", Name: "intsField",
		Children: []*TypeTree{
			{
				Type: "Array", Name: "Array", IsArray: true,
				Children: []*TypeTree{
					{Type: "int", Name: "size", Size: 4},
					elemType,
				},
			},
		},
	}

	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, uint32(3))
	binary.Write(&buf, binary.LittleEndian, int32(10))
	binary.Write(&buf, binary.LittleEndian, int32(20))
	binary.Write(&buf, binary.LittleEndian, int32(30))

	or := newObjectReader(buf.Bytes(), &SerializedFile{})
	val, err := or.decode(tree)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if val.Kind != KindSlice || len(val.Slice) != 3 {
		t.Fatalf("val = %+v, want a 3-element slice", val)
	}
	want := []int64{10, 20, 30}
	for i, w := range want {
		if val.Slice[i].Int != w {
			t.Fatalf("slice[%d] = %d, want %d", i, val.Slice[i].Int, w)
		}
	}
}

func TestObjectDecodePair(t *testing.T) {
	tree := &TypeTree{
		Type: "pair", Name: "kv",
		Children: []*TypeTree{
			{Type: "int", Name: "first", Size: 4},
			{Type: "int", Name: "second", Size: 4},
		},
	}

	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, int32(7))
	binary.Write(&buf, binary.LittleEndian, int32(8))

	or := newObjectReader(buf.Bytes(), &SerializedFile{})
	val, err := or.decode(tree)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if val.Kind != KindPair || val.Pair[0].Int != 7 || val.Pair[1].Int != 8 {
		t.Fatalf("val = %+v, want pair(7,8)", val)
	}
}

func TestObjectDecodeComposite(t *testing.T) {
	tree := &TypeTree{
		Type: "TestObj", Name: "Base", Size: -1,
		Children: []*TypeTree{
			{Type: "int", Name: "a", Size: 4},
			{Type: "bool", Name: "b", Size: 1},
		},
	}

	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, int32(99))
	buf.WriteByte(1)

	or := newObjectReader(buf.Bytes(), &SerializedFile{})
	val, err := or.decode(tree)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if val.Kind != KindMap {
		t.Fatalf("val.Kind = %v, want KindMap", val.Kind)
	}
	if val.Get("a").Int != 99 {
		t.Fatalf("a = %+v, want 99", val.Get("a"))
	}
	if val.Get("b").Bool != true {
		t.Fatalf("b = %+v, want true", val.Get("b"))
	}
	if len(val.Keys) != 2 || val.Keys[0] != "a" || val.Keys[1] != "b" {
		t.Fatalf("Keys = %v, want [a b]", val.Keys)
	}
}

func TestObjectDecodeSizeMismatchIsCorrupt(t *testing.T) {
	// declares 8 bytes but the payload only has 4 - the int read
	// succeeds, but the post-decode size check must catch the shortfall.
	tree := &TypeTree{Type: "int", Name: "value", Size: 8}
	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, int32(1))

	or := newObjectReader(buf.Bytes(), &SerializedFile{})
	_, err := or.decode(tree)
	if !errors.Is(err, ErrCorrupt) {
		t.Fatalf("decode() error = %v, want ErrCorrupt", err)
	}
}

func TestObjectDecodePPtrUsesLongPPtrIDs(t *testing.T) {
	tree := &TypeTree{Type: "PPtr<Texture2D>", Name: "m_Texture"}

	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, int32(1))  // file_id
	binary.Write(&buf, binary.LittleEndian, int64(99)) // path_id (long form)

	asset := &SerializedFile{Format: 17} // format >= 14 -> long PPtr path ids
	or := newObjectReader(buf.Bytes(), asset)
	val, err := or.decode(tree)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if val.Kind != KindPPtr || val.PPtr.FileID != 1 || val.PPtr.PathID != 99 {
		t.Fatalf("val.PPtr = %+v, want FileID=1 PathID=99", val.PPtr)
	}
}

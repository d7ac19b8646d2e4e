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

// buildOldTypeTree serializes a two-level tree in the legacy recursive
// format: root "TestRoot" with one child "value" of type "int".
func buildOldTypeTree(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	writeCString := func(s string) {
		buf.WriteString(s)
		buf.WriteByte(0)
	}
	writeI32 := func(v int32) {
		var b [4]byte
		binary.BigEndian.PutUint32(b[:], uint32(v))
		buf.Write(b[:])
	}
	writeU32 := func(v uint32) {
		var b [4]byte
		binary.BigEndian.PutUint32(b[:], v)
		buf.Write(b[:])
	}

	// root node
	writeCString("TestRoot")
	writeCString("base")
	writeI32(-1) // size
	writeI32(0)  // index
	writeI32(0)  // is_array
	writeI32(1)  // version
	writeI32(0)  // flags
	writeU32(1)  // num_fields

	// child node: int value
	writeCString("int")
	writeCString("value")
	writeI32(4)
	writeI32(1)
	writeI32(0)
	writeI32(1)
	writeI32(0)
	writeU32(0)

	return buf.Bytes()
}

func TestParseTypeTreeOld(t *testing.T) {
	r := newReaderBytes(buildOldTypeTree(t))
	tree, err := parseTypeTree(r, 6, nil, nil)
	if err != nil {
		t.Fatalf("parseTypeTree: %v", err)
	}
	if tree.Type != "TestRoot" || tree.Name != "base" {
		t.Fatalf("root = %+v", tree)
	}
	if len(tree.Children) != 1 {
		t.Fatalf("expected 1 child, got %d", len(tree.Children))
	}
	child := tree.Children[0]
	if child.Type != "int" || child.Name != "value" || child.Size != 4 {
		t.Fatalf("child = %+v", child)
	}
}

// buildBlobTypeTree serializes a three-node flat tree: root (depth 0),
// one child "value" (depth 1) of type "int", and a second child "flag"
// (depth 1) of type "bool".
func buildBlobTypeTree(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	writeI16 := func(v int16) {
		var b [2]byte
		binary.BigEndian.PutUint16(b[:], uint16(v))
		buf.Write(b[:])
	}
	writeI32 := func(v int32) {
		var b [4]byte
		binary.BigEndian.PutUint32(b[:], uint32(v))
		buf.Write(b[:])
	}
	writeU32 := func(v uint32) {
		var b [4]byte
		binary.BigEndian.PutUint32(b[:], v)
		buf.Write(b[:])
	}

	localPool := []byte("TestRoot\x00value\x00int\x00flag\x00bool\x00")
	offsets := map[string]int32{}
	cursor := int32(0)
	for _, s := range []string{"TestRoot", "value", "int", "flag", "bool"} {
		offsets[s] = cursor
		cursor += int32(len(s)) + 1
	}

	writeU32(3) // num_nodes
	writeU32(uint32(len(localPool)))

	writeNode := func(depth uint8, isArray bool, typeOff, nameOff, size int32, index uint32) {
		writeI16(1) // version
		buf.WriteByte(depth)
		if isArray {
			buf.WriteByte(1)
		} else {
			buf.WriteByte(0)
		}
		writeI32(typeOff)
		writeI32(nameOff)
		writeI32(size)
		writeU32(index)
		writeI32(0) // flags
	}

	writeNode(0, false, offsets["TestRoot"], offsets["TestRoot"], -1, 0)
	writeNode(1, false, offsets["int"], offsets["value"], 4, 1)
	writeNode(1, false, offsets["bool"], offsets["flag"], 1, 2)

	buf.Write(localPool)
	return buf.Bytes()
}

func TestParseTypeTreeBlob(t *testing.T) {
	r := newReaderBytes(buildBlobTypeTree(t))
	tree, err := parseTypeTree(r, 15, nil, nil)
	if err != nil {
		t.Fatalf("parseTypeTree: %v", err)
	}
	if tree.Type != "TestRoot" {
		t.Fatalf("root type = %q", tree.Type)
	}
	if len(tree.Children) != 2 {
		t.Fatalf("expected 2 children, got %d", len(tree.Children))
	}
	if tree.Children[0].Name != "value" || tree.Children[0].Type != "int" {
		t.Fatalf("child 0 = %+v", tree.Children[0])
	}
	if tree.Children[1].Name != "flag" || tree.Children[1].Type != "bool" {
		t.Fatalf("child 1 = %+v", tree.Children[1])
	}
}

func TestParseTypeTreeBlobDepthSkipIsCorrupt(t *testing.T) {
	var buf bytes.Buffer
	writeU32 := func(v uint32) {
		var b [4]byte
		binary.BigEndian.PutUint32(b[:], v)
		buf.Write(b[:])
	}
	writeI16 := func(v int16) {
		var b [2]byte
		binary.BigEndian.PutUint16(b[:], uint16(v))
		buf.Write(b[:])
	}
	writeI32 := func(v int32) { writeU32(uint32(v)) }

	writeU32(2) // num_nodes
	writeU32(0) // buffer_bytes

	// root
	writeI16(1)
	buf.WriteByte(0)
	buf.WriteByte(0)
	writeI32(0)
	writeI32(0)
	writeI32(0)
	writeU32(0)
	writeI32(0)

	// node at depth 2, skipping depth 1 - a framing violation
	writeI16(1)
	buf.WriteByte(2)
	buf.WriteByte(0)
	writeI32(0)
	writeI32(0)
	writeI32(0)
	writeU32(0)
	writeI32(0)

	r := newReaderBytes(buf.Bytes())
	_, err := parseTypeTree(r, 15, nil, nil)
	if !errors.Is(err, ErrCorrupt) {
		t.Fatalf("depth-skipping node error = %v, want ErrCorrupt", err)
	}

	r2 := newReaderBytes(buf.Bytes())
	tree, err := parseTypeTree(r2, 15, nil, &Options{SkipTypeTreeValidation: true})
	if err != nil {
		t.Fatalf("SkipTypeTreeValidation: unexpected error: %v", err)
	}
	if len(tree.Children) != 1 {
		t.Fatalf("SkipTypeTreeValidation: expected depth-skipping node clamped under root, got %d children", len(tree.Children))
	}
}

func TestTypeTreeWalkVisitsAllNodes(t *testing.T) {
	r := newReaderBytes(buildBlobTypeTree(t))
	tree, err := parseTypeTree(r, 15, nil, nil)
	if err != nil {
		t.Fatalf("parseTypeTree: %v", err)
	}

	var visited []string
	tree.Walk(func(depth int, n *TypeTree) {
		visited = append(visited, n.Name)
	})
	if len(visited) != 3 {
		t.Fatalf("Walk visited %d nodes, want 3: %v", len(visited), visited)
	}
}

func TestCStringAtOutOfRange(t *testing.T) {
	if got := cStringAt([]byte("abc"), 10); got != typeTreeNullString {
		t.Fatalf("cStringAt out of range = %q, want null sentinel", got)
	}
}

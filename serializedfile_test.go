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

func TestLongPathIDsAndPPtrIDs(t *testing.T) {
	cases := []struct {
		format        uint32
		longObjectIDs bool
		wantPathIDs   bool
		wantPPtrIDs   bool
	}{
		{format: 6, longObjectIDs: false, wantPathIDs: false, wantPPtrIDs: false},
		{format: 10, longObjectIDs: false, wantPathIDs: false, wantPPtrIDs: false},
		// long_object_ids widens the object directory but never a PPtr or add-table id.
		{format: 10, longObjectIDs: true, wantPathIDs: true, wantPPtrIDs: false},
		{format: 13, longObjectIDs: true, wantPathIDs: true, wantPPtrIDs: false},
		{format: 14, longObjectIDs: false, wantPathIDs: true, wantPPtrIDs: true},
		{format: 17, longObjectIDs: false, wantPathIDs: true, wantPPtrIDs: true},
	}
	for _, c := range cases {
		a := &SerializedFile{Format: c.format, LongObjectIDs: c.longObjectIDs}
		if got := a.longPathIDs(); got != c.wantPathIDs {
			t.Fatalf("format=%d longObjectIDs=%v: longPathIDs() = %v, want %v",
				c.format, c.longObjectIDs, got, c.wantPathIDs)
		}
		if got := a.longPPtrIDs(); got != c.wantPPtrIDs {
			t.Fatalf("format=%d longObjectIDs=%v: longPPtrIDs() = %v, want %v",
				c.format, c.longObjectIDs, got, c.wantPPtrIDs)
		}
	}
}

// buildObjectDirectoryEntry serializes one format<=10 object directory
// record: i32 path_id, u32 data_offset, u32 size, i32 type_id, i16
// class_id, i16 is_destroyed.
func buildObjectDirectoryEntry(buf *bytes.Buffer, pathID int32) {
	binary.Write(buf, binary.BigEndian, pathID)
	binary.Write(buf, binary.BigEndian, uint32(0))  // data_offset
	binary.Write(buf, binary.BigEndian, uint32(16)) // size
	binary.Write(buf, binary.BigEndian, int32(0))   // type_id
	binary.Write(buf, binary.BigEndian, int16(1))   // class_id
	binary.Write(buf, binary.BigEndian, int16(0))   // is_destroyed
}

func TestParseObjectDirectoryDuplicatePathIDIsCorrupt(t *testing.T) {
	var buf bytes.Buffer
	binary.Write(&buf, binary.BigEndian, uint32(2)) // num_objects
	buildObjectDirectoryEntry(&buf, 5)
	buildObjectDirectoryEntry(&buf, 5)

	a := &SerializedFile{Format: 6, TypeMeta: newTypeMetadata()}
	err := a.parseObjectDirectory(newReaderBytes(buf.Bytes()))
	if !errors.Is(err, ErrCorrupt) {
		t.Fatalf("parseObjectDirectory error = %v, want ErrCorrupt", err)
	}
}

func TestParseObjectDirectorySingleEntry(t *testing.T) {
	var buf bytes.Buffer
	binary.Write(&buf, binary.BigEndian, uint32(1)) // num_objects
	buildObjectDirectoryEntry(&buf, 42)

	a := &SerializedFile{Format: 6, DataOffset: 100, TypeMeta: newTypeMetadata()}
	if err := a.parseObjectDirectory(newReaderBytes(buf.Bytes())); err != nil {
		t.Fatalf("parseObjectDirectory: %v", err)
	}
	obj, ok := a.Objects[42]
	if !ok {
		t.Fatal("object with path_id 42 not found")
	}
	if obj.DataOffset != 100 { // a.DataOffset + the entry's own 0 offset
		t.Fatalf("DataOffset = %d, want 100", obj.DataOffset)
	}
	if obj.Size != 16 {
		t.Fatalf("Size = %d, want 16", obj.Size)
	}
	if obj.ClassID != 1 {
		t.Fatalf("ClassID = %d, want 1", obj.ClassID)
	}
}

func TestParseObjectDirectoryEnforcesMaxObjectSize(t *testing.T) {
	var buf bytes.Buffer
	binary.Write(&buf, binary.BigEndian, uint32(1)) // num_objects
	buildObjectDirectoryEntry(&buf, 42)              // Size == 16

	a := &SerializedFile{Format: 6, TypeMeta: newTypeMetadata(), opts: &Options{MaxObjectSize: 8}}
	err := a.parseObjectDirectory(newReaderBytes(buf.Bytes()))
	if !errors.Is(err, ErrCorrupt) {
		t.Fatalf("parseObjectDirectory error = %v, want ErrCorrupt", err)
	}

	a2 := &SerializedFile{Format: 6, TypeMeta: newTypeMetadata(), opts: &Options{MaxObjectSize: 16}}
	if err := a2.parseObjectDirectory(newReaderBytes(buf.Bytes())); err != nil {
		t.Fatalf("parseObjectDirectory: unexpected error at exact MaxObjectSize boundary: %v", err)
	}
}

// buildMinimalSerializedFile serializes the smallest legal format-6
// SerializedFile: no objects, no asset refs, zero-field metadata.
func buildMinimalSerializedFile(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	writeCString := func(s string) {
		buf.WriteString(s)
		buf.WriteByte(0)
	}
	writeU32 := func(v uint32) { binary.Write(&buf, binary.BigEndian, v) }

	writeU32(0)  // metadata_size
	writeU32(0)  // file_size
	writeU32(6)  // format
	writeU32(0)  // data_offset

	// TypeMetadata (old format: format < 13)
	writeCString("5.6.0f1") // generator_version
	writeU32(0)             // target_platform
	writeU32(0)             // num_fields

	// object directory: zero objects
	writeU32(0)

	// format < 11: no add table

	// asset refs: zero
	writeU32(0)

	// terminal empty cstring
	buf.WriteByte(0)

	return buf.Bytes()
}

func TestParseSerializedFileMinimal(t *testing.T) {
	data := buildMinimalSerializedFile(t)
	a, err := parseSerializedFile(newReaderBytes(data), defaultOptions(), nil, "test.assets")
	if err != nil {
		t.Fatalf("parseSerializedFile: %v", err)
	}
	if a.Format != 6 {
		t.Fatalf("Format = %d, want 6", a.Format)
	}
	if len(a.Objects) != 0 {
		t.Fatalf("Objects = %v, want empty", a.Objects)
	}
	if len(a.AssetRefs) != 0 {
		t.Fatalf("AssetRefs = %v, want empty", a.AssetRefs)
	}
	if a.Name != "test.assets" {
		t.Fatalf("Name = %q, want test.assets", a.Name)
	}
}

func TestParseSerializedFileRejectsBadFormat(t *testing.T) {
	var buf bytes.Buffer
	writeU32 := func(v uint32) { binary.Write(&buf, binary.BigEndian, v) }
	writeU32(0)
	writeU32(0)
	writeU32(999) // unsupported format
	writeU32(0)

	_, err := parseSerializedFile(newReaderBytes(buf.Bytes()), defaultOptions(), nil, "bad.assets")
	if !errors.Is(err, ErrUnsupported) {
		t.Fatalf("parseSerializedFile error = %v, want ErrUnsupported", err)
	}
}

func TestParseSerializedFileRejectsNonEmptyTerminal(t *testing.T) {
	data := buildMinimalSerializedFile(t)
	// replace the trailing NUL with a non-empty terminal cstring.
	data = data[:len(data)-1]
	data = append(data, []byte("oops")...)
	data = append(data, 0)

	_, err := parseSerializedFile(newReaderBytes(data), defaultOptions(), nil, "bad.assets")
	if !errors.Is(err, ErrCorrupt) {
		t.Fatalf("parseSerializedFile error = %v, want ErrCorrupt", err)
	}
}

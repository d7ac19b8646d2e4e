// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package unitykit

import (
	"fmt"

	"github.com/go-unity/unitykit/log"
)

// ObjectInfo is the object directory record for one object inside a
// SerializedFile: where its bytes live and which TypeTree interprets
// them (spec §3).
type ObjectInfo struct {
	asset *SerializedFile

	PathID     int64
	DataOffset uint32 // relative to the asset's start; the asset's own DataOffset is already added in
	Size       uint32
	TypeID     int32 // negative denotes a MonoBehaviour script reference
	ClassID    int32

	// Format-conditional extra fields, retained for fidelity; spec §9
	// assigns them no semantics beyond "read and keep".
	IsDestroyed int16
	Unk0        int16
	Unk1        uint8

	scriptName string
	scriptRead bool
}

// TypeName returns the class name this object decodes as: the engine
// class name for an ordinary object, or the MonoBehaviour's concrete
// script class name when TypeID < 0 (spec §3's "resolved lazily via the
// asset's own objects").
func (o *ObjectInfo) TypeName() string {
	if o.TypeID >= 0 {
		return ClassName(o.ClassID)
	}
	return o.scriptClassName()
}

// scriptClassName resolves a MonoBehaviour's scripting class name by
// decoding the object and following its m_Script PPtr<MonoScript> to the
// script asset's m_ClassName field, caching the result since resolution
// requires a full object decode (spec §3, §9 MonoBehaviour note).
func (o *ObjectInfo) scriptClassName() string {
	if o.scriptRead {
		return o.scriptName
	}
	o.scriptRead = true

	val, err := o.Read()
	if err != nil {
		return ClassName(o.ClassID)
	}
	scriptField := val.Get("m_Script")
	if scriptField == nil || scriptField.Kind != KindPPtr || scriptField.PPtr.IsNull() {
		return ClassName(o.ClassID)
	}
	scriptVal, err := scriptField.PPtr.Resolve()
	if err != nil {
		return ClassName(o.ClassID)
	}
	nameField := scriptVal.Get("m_ClassName")
	if nameField == nil || nameField.Kind != KindString || nameField.String == "" {
		return ClassName(o.ClassID)
	}
	o.scriptName = nameField.String
	return o.scriptName
}

// typeTree returns the TypeTree that should decode this object: the
// asset's own embedded tree for its class_id if present, otherwise the
// shipped default fallback (spec §4.5).
func (o *ObjectInfo) typeTree() (*TypeTree, error) {
	if tree, ok := o.asset.TypeMeta.TypeTrees[o.ClassID]; ok {
		return tree, nil
	}
	tree, err := defaultTypeTreeFor(o.ClassID)
	if err != nil {
		return nil, err
	}
	if tree == nil {
		o.asset.logger().Warnf("no type tree for class_id %d (path_id %d); object cannot be read",
			o.ClassID, o.PathID)
	}
	return tree, nil
}

// Read decodes this object's payload by walking its TypeTree (spec
// §4.6). Re-reading the same object without intervening mutation yields
// equal values (spec §8 invariant 3) since decoding is purely a function
// of the asset's immutable backing bytes.
func (o *ObjectInfo) Read() (*Value, error) {
	tree, err := o.typeTree()
	if err != nil {
		return nil, err
	}
	if tree == nil {
		return nil, fmt.Errorf("%w: object %d has no type tree", ErrCorrupt, o.PathID)
	}

	start := o.asset.dataWindowStart + int64(o.DataOffset)
	if _, err := o.asset.src.seek(start, SeekStart); err != nil {
		return nil, err
	}

	payload, err := o.asset.src.read(int(o.Size))
	if err != nil {
		return nil, err
	}

	or := newObjectReader(payload, o.asset)
	return or.decode(tree)
}

// SerializedFile ("Asset") is one addressable unit inside an archive, or
// a standalone .assets file (spec §3).
type SerializedFile struct {
	env *Environment
	src *reader

	Name          string
	MetadataSize  uint32
	FileSize      uint32
	Format        uint32
	DataOffset    uint32
	BigEndian     bool
	LongObjectIDs bool

	TypeMeta *TypeMetadata

	Objects   map[int64]*ObjectInfo
	Adds      []AddEntry
	AssetRefs []*AssetRef

	// IsResource marks a .resource entry of an archive: raw bytes only,
	// readable as a streamable blob but never parsed as a SerializedFile
	// (spec §3). Files loaded standalone are always parsed as serialized
	// files and never have it set.
	IsResource bool
	rawData    []byte

	dataWindowStart int64

	typeIndex map[string][]*ObjectInfo

	opts *Options
}

// AddEntry is one entry in the add table (spec §3): a path_id paired
// with an opaque int32 payload.
type AddEntry struct {
	PathID  int64
	Payload int32
}

func (a *SerializedFile) logger() *log.Helper {
	return a.opts.logHelper()
}

// RawData returns the raw bytes of a .resource asset. It is only valid
// when IsResource is true.
func (a *SerializedFile) RawData() []byte {
	return a.rawData
}

// longPathIDs reports whether object-directory path_ids in this asset are
// encoded as i64 rather than i32 (spec §4.5 step 5). PPtr and add-table
// path_ids follow a narrower rule - format >= 14 only, never
// long_object_ids - so they use longPPtrIDs instead.
func (a *SerializedFile) longPathIDs() bool {
	return a.Format >= 14 || a.LongObjectIDs
}

// longPPtrIDs reports whether PPtr and add-table path_ids in this asset
// are encoded as i64 (spec §4.6). Unlike longPathIDs, long_object_ids never applies
// here: a format 7-13 asset with long_object_ids set still encodes PPtr
// path_ids as i32.
func (a *SerializedFile) longPPtrIDs() bool {
	return a.Format >= 14
}

// ObjectsOfType returns every object whose resolved class name matches
// className, built lazily off the primary path_id map the first time
// it's asked for (SPEC_FULL supplemental feature grounded on
// unitypack/asset.py's use of Asset.objects keyed by class).
func (a *SerializedFile) ObjectsOfType(className string) []*ObjectInfo {
	if a.typeIndex == nil {
		a.typeIndex = make(map[string][]*ObjectInfo)
		for _, obj := range a.Objects {
			name := obj.TypeName()
			a.typeIndex[name] = append(a.typeIndex[name], obj)
		}
	}
	return a.typeIndex[className]
}

// parseSerializedFile decodes a SerializedFile from src, which must be
// positioned at the start of the asset's header (spec §4.5). env may be
// nil for a standalone asset opened outside any Environment.
func parseSerializedFile(src *reader, opts *Options, env *Environment, name string) (*SerializedFile, error) {
	a := &SerializedFile{env: env, src: src, Name: name, opts: opts}

	var err error
	if a.MetadataSize, err = src.readU32(); err != nil {
		return nil, err
	}
	if a.FileSize, err = src.readU32(); err != nil {
		return nil, err
	}
	if a.Format, err = src.readU32(); err != nil {
		return nil, err
	}
	if a.Format < 6 || a.Format > 17 {
		return nil, fmt.Errorf("%w: serialized file format %d", ErrUnsupported, a.Format)
	}
	if a.DataOffset, err = src.readU32(); err != nil {
		return nil, err
	}

	a.BigEndian = true
	if a.Format >= 9 {
		endianness, err := src.readU32()
		if err != nil {
			return nil, err
		}
		if endianness == 0 {
			src.setLittleEndian()
			a.BigEndian = false
		}
	}

	a.TypeMeta, err = parseTypeMetadata(src, a.Format, globalStrings(), opts)
	if err != nil {
		return nil, err
	}

	if a.Format >= 7 && a.Format <= 13 {
		longIDs, err := src.readU32()
		if err != nil {
			return nil, err
		}
		a.LongObjectIDs = longIDs != 0
	}

	if err := a.parseObjectDirectory(src); err != nil {
		return nil, err
	}

	if a.Format >= 11 {
		if err := a.parseAddTable(src); err != nil {
			return nil, err
		}
	}

	if a.Format >= 6 {
		if err := a.parseAssetRefs(src); err != nil {
			return nil, err
		}
	}

	terminal, err := src.readCString()
	if err != nil {
		return nil, err
	}
	if terminal != "" {
		return nil, fmt.Errorf("%w: non-empty terminal string %q", ErrCorrupt, terminal)
	}

	return a, nil
}

func (a *SerializedFile) parseObjectDirectory(src *reader) error {
	numObjects, err := src.readU32()
	if err != nil {
		return err
	}

	a.Objects = make(map[int64]*ObjectInfo, numObjects)

	for i := uint32(0); i < numObjects; i++ {
		if a.Format >= 14 {
			if err := src.alignTo4(); err != nil {
				return err
			}
		}

		var pathID int64
		if a.longPathIDs() {
			pathID, err = src.readI64()
		} else {
			var v int32
			v, err = src.readI32()
			pathID = int64(v)
		}
		if err != nil {
			return err
		}

		obj := &ObjectInfo{asset: a, PathID: pathID}

		dataOffset, err := src.readU32()
		if err != nil {
			return err
		}
		obj.DataOffset = a.DataOffset + dataOffset

		if obj.Size, err = src.readU32(); err != nil {
			return err
		}
		if max := a.opts.maxObjectSize(); max > 0 && obj.Size > max {
			return fmt.Errorf("%w: object size %d exceeds MaxObjectSize %d", ErrCorrupt, obj.Size, max)
		}

		if a.Format < 17 {
			if obj.TypeID, err = src.readI32(); err != nil {
				return err
			}
			classID, err := src.readI16()
			if err != nil {
				return err
			}
			obj.ClassID = int32(classID)
		} else {
			if obj.TypeID, err = src.readI32(); err != nil {
				return err
			}
			if obj.TypeID < 0 || int(obj.TypeID) >= len(a.TypeMeta.ClassIDs) {
				return fmt.Errorf("%w: type_id %d out of range", ErrCorrupt, obj.TypeID)
			}
			obj.ClassID = a.TypeMeta.ClassIDs[obj.TypeID]
		}

		switch {
		case a.Format <= 10:
			if obj.IsDestroyed, err = src.readI16(); err != nil {
				return err
			}
		case a.Format >= 11 && a.Format <= 16:
			if obj.Unk0, err = src.readI16(); err != nil {
				return err
			}
		}
		if a.Format >= 15 && a.Format <= 16 {
			if obj.Unk1, err = src.readU8(); err != nil {
				return err
			}
		}

		if _, exists := a.Objects[pathID]; exists {
			return fmt.Errorf("%w: duplicate path_id %d", ErrCorrupt, pathID)
		}
		a.Objects[pathID] = obj
	}

	return nil
}

func (a *SerializedFile) parseAddTable(src *reader) error {
	numAdds, err := src.readU32()
	if err != nil {
		return err
	}

	a.Adds = make([]AddEntry, 0, numAdds)
	for i := uint32(0); i < numAdds; i++ {
		if a.Format >= 14 {
			if err := src.alignTo4(); err != nil {
				return err
			}
		}

		var pathID int64
		if a.longPPtrIDs() {
			pathID, err = src.readI64()
		} else {
			var v int32
			v, err = src.readI32()
			pathID = int64(v)
		}
		if err != nil {
			return err
		}

		payload, err := src.readI32()
		if err != nil {
			return err
		}

		a.Adds = append(a.Adds, AddEntry{PathID: pathID, Payload: payload})
	}

	return nil
}

func (a *SerializedFile) parseAssetRefs(src *reader) error {
	numRefs, err := src.readU32()
	if err != nil {
		return err
	}

	a.AssetRefs = make([]*AssetRef, 0, numRefs)
	for i := uint32(0); i < numRefs; i++ {
		ref, err := parseAssetRef(src, a)
		if err != nil {
			return err
		}
		a.AssetRefs = append(a.AssetRefs, ref)
	}

	return nil
}

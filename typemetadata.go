// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package unitykit

import "fmt"

// TypeMetadata is the per-asset schema section: generator info, target
// platform, and one TypeTree (or just a hash) per class referenced by
// the asset's objects (spec §3, §4.5 step 3).
type TypeMetadata struct {
	GeneratorVersion string
	TargetPlatform   uint32
	HasTypeTrees     bool

	// ClassIDs preserves on-disk order; format >= 17 object directory
	// entries index into this slice to resolve their class_id (spec §9
	// "Open questions").
	ClassIDs []int32

	Hashes    map[int32][]byte
	TypeTrees map[int32]*TypeTree
}

func newTypeMetadata() *TypeMetadata {
	return &TypeMetadata{
		Hashes:    map[int32][]byte{},
		TypeTrees: map[int32]*TypeTree{},
	}
}

// parseTypeMetadata decodes the TypeMetadata section of a serialized
// file per spec §4.5 step 3. format is the owning SerializedFile's
// format; globalStrings backs blob-encoded TypeTree string lookups;
// opts carries the TypeTree validation knobs (spec §7) and may be nil.
func parseTypeMetadata(r *reader, format uint32, globalStrings []byte, opts *Options) (*TypeMetadata, error) {
	tm := newTypeMetadata()

	var err error
	if tm.GeneratorVersion, err = r.readCString(); err != nil {
		return nil, err
	}
	if tm.TargetPlatform, err = r.readU32(); err != nil {
		return nil, err
	}

	if format >= 13 {
		hasTrees, err := r.readBool()
		if err != nil {
			return nil, err
		}
		tm.HasTypeTrees = hasTrees

		numTypes, err := r.readI32()
		if err != nil {
			return nil, err
		}
		if numTypes < 0 {
			return nil, fmt.Errorf("%w: negative type count", ErrCorrupt)
		}

		for i := int32(0); i < numTypes; i++ {
			classID, err := r.readI32()
			if err != nil {
				return nil, err
			}
			tm.ClassIDs = append(tm.ClassIDs, classID)

			hashLen := 16
			if classID < 0 {
				hashLen = 32
			}
			hash, err := r.read(hashLen)
			if err != nil {
				return nil, err
			}
			tm.Hashes[classID] = hash

			if tm.HasTypeTrees {
				tree, err := parseTypeTree(r, format, globalStrings, opts)
				if err != nil {
					return nil, err
				}
				tm.TypeTrees[classID] = tree
			}
		}
	} else {
		tm.HasTypeTrees = true
		numFields, err := r.readI32()
		if err != nil {
			return nil, err
		}
		if numFields < 0 {
			return nil, fmt.Errorf("%w: negative field count", ErrCorrupt)
		}
		for i := int32(0); i < numFields; i++ {
			classID, err := r.readI32()
			if err != nil {
				return nil, err
			}
			tm.ClassIDs = append(tm.ClassIDs, classID)
			tree, err := parseTypeTree(r, format, globalStrings, opts)
			if err != nil {
				return nil, err
			}
			tm.TypeTrees[classID] = tree
		}
	}

	return tm, nil
}

// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package unitykit

import "fmt"

// ObjectPointer ("PPtr") is a persistent pointer: a (file_id, path_id)
// reference that may cross asset boundaries (spec §3, §9). Resolution
// goes through the owning Environment rather than an owning reference to
// another Asset, so bundles never form ownership cycles and loading stays
// lazy and idempotent.
type ObjectPointer struct {
	source *SerializedFile
	FileID int32
	PathID int64
}

// IsNull reports whether this is the null sentinel: file_id == 0 and
// path_id == 0 (spec §3 invariant 6).
func (p *ObjectPointer) IsNull() bool {
	return p == nil || (p.FileID == 0 && p.PathID == 0)
}

func (p *ObjectPointer) String() string {
	if p.IsNull() {
		return "PPtr<nil>"
	}
	return fmt.Sprintf("PPtr(file=%d, path=%d)", p.FileID, p.PathID)
}

// Asset returns the SerializedFile this pointer's path_id is relative
// to: the source asset itself when file_id == 0, otherwise the resolved
// external reference. file_id is 1-based against asset_refs - entry 0
// of the conceptual (self, ref1, ref2, ...) list is the source asset
// itself, so file_id N indexes asset_refs[N-1] (spec §3, §4.7).
func (p *ObjectPointer) Asset() (*SerializedFile, error) {
	if p.FileID == 0 {
		return p.source, nil
	}
	idx := int(p.FileID) - 1
	if idx < 0 || idx >= len(p.source.AssetRefs) {
		return nil, fmt.Errorf("%w: file_id %d out of range", ErrCorrupt, p.FileID)
	}
	return p.source.AssetRefs[idx].Resolve()
}

// Resolve returns the decoded value of this pointer's target object.
// Null pointers remain opaque handles: calling Resolve on one always
// returns ErrNotFound, never a panic (spec §8 invariant 10).
func (p *ObjectPointer) Resolve() (*Value, error) {
	if p.IsNull() {
		return nil, ErrNotFound
	}
	asset, err := p.Asset()
	if err != nil {
		return nil, err
	}
	obj, ok := asset.Objects[p.PathID]
	if !ok {
		return nil, ErrNotFound
	}
	return obj.Read()
}

// parsePPtr reads a PPtr field. Path-id width follows format >= 14 only
// (spec §4.6) - callers should pass source.longPPtrIDs(), not
// source.longPathIDs(): long_object_ids (format 7-13) governs the object
// directory's path_id width but never a PPtr's.
func parsePPtr(r *reader, source *SerializedFile, longPathID bool) (*ObjectPointer, error) {
	fileID, err := r.readI32()
	if err != nil {
		return nil, err
	}

	var pathID int64
	if longPathID {
		pathID, err = r.readI64()
	} else {
		var v int32
		v, err = r.readI32()
		pathID = int64(v)
	}
	if err != nil {
		return nil, err
	}

	return &ObjectPointer{source: source, FileID: fileID, PathID: pathID}, nil
}

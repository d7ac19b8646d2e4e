// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package unitykit

// AssetRef is one entry in a SerializedFile's external-asset reference
// table: a pointer to a sibling asset that objects in this file may
// reference via PPtr.FileID (spec §3).
type AssetRef struct {
	owner *SerializedFile

	AssetPath string
	GUID      [16]byte
	Type      int32
	FilePath  string

	resolved *SerializedFile
}

// Resolve looks the referenced file up in the owning Environment,
// caching the result so repeated calls are idempotent (spec §4.7,
// §8 invariant 10's "no panic" also applies here: failures come back as
// ErrNotFound, not a crash).
func (ar *AssetRef) Resolve() (*SerializedFile, error) {
	if ar.resolved != nil {
		return ar.resolved, nil
	}
	if ar.owner == nil || ar.owner.env == nil {
		return nil, ErrNotFound
	}
	asset, err := ar.owner.env.GetAssetByFilename(ar.FilePath)
	if err != nil {
		return nil, err
	}
	ar.resolved = asset
	return asset, nil
}

func parseAssetRef(r *reader, owner *SerializedFile) (*AssetRef, error) {
	ar := &AssetRef{owner: owner}

	var err error
	if ar.AssetPath, err = r.readCString(); err != nil {
		return nil, err
	}

	guid, err := r.read(16)
	if err != nil {
		return nil, err
	}
	copy(ar.GUID[:], guid)

	if ar.Type, err = r.readI32(); err != nil {
		return nil, err
	}
	if ar.FilePath, err = r.readCString(); err != nil {
		return nil, err
	}

	return ar, nil
}

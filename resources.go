// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package unitykit

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/go-unity/unitykit/internal/resources"
)

// defaultStructsFormat is the serialized-file format the shipped
// structs.dat fallback metadata was encoded at (spec §6).
const defaultStructsFormat = 15

var (
	classNamesOnce sync.Once
	classNames     map[int32]string

	defaultTypesOnce    sync.Once
	defaultTypeMetadata *TypeMetadata
	defaultTypesLoadErr error
)

// globalStrings returns the shared string pool used to resolve
// negative-offset TypeTree string references (spec §4.4, §6).
func globalStrings() []byte {
	return resources.StringsDat
}

// loadClassNames parses classes.json once per process. Static-resource
// load failure at init is fatal per spec §7, so a malformed embed is a
// panic - this can only happen if the shipped resource itself is
// corrupt, not from anything a caller passed in.
func loadClassNames() map[int32]string {
	classNamesOnce.Do(func() {
		var raw map[string]string
		if err := json.Unmarshal(resources.ClassesJSON, &raw); err != nil {
			panic(fmt.Sprintf("unitykit: embedded classes.json is invalid: %v", err))
		}
		classNames = make(map[int32]string, len(raw))
		for k, v := range raw {
			var id int32
			if _, err := fmt.Sscanf(k, "%d", &id); err != nil {
				continue
			}
			classNames[id] = v
		}
	})
	return classNames
}

// ClassName resolves a class_id to its engine class name, falling back
// to "<Unknown #N>" exactly as spec §6 prescribes.
func ClassName(classID int32) string {
	if name, ok := loadClassNames()[classID]; ok {
		return name
	}
	return fmt.Sprintf("<Unknown #%d>", classID)
}

// defaultTypeMetadataFor returns the shipped fallback TypeMetadata,
// loaded once behind sync.Once (spec §9's "lazily-initialized singleton
// behind a once-init primitive").
func defaultTypeMetadataFor() (*TypeMetadata, error) {
	defaultTypesOnce.Do(func() {
		r := newReaderBytes(resources.StructsDat)
		// structs.dat ships little-endian, unlike real archives (which are
		// big-endian until their own endianness byte says otherwise) -
		// it's a synthesized fallback table, not a captured file header.
		r.setLittleEndian()
		defaultTypeMetadata, defaultTypesLoadErr = parseTypeMetadata(r, defaultStructsFormat, globalStrings(), nil)
	})
	return defaultTypeMetadata, defaultTypesLoadErr
}

// defaultTypeTreeFor looks up a fallback TypeTree for classID in the
// shipped structs.dat metadata. A nil, nil return means the class truly
// has no fallback and objects of that class cannot be read (spec §4.5).
func defaultTypeTreeFor(classID int32) (*TypeTree, error) {
	tm, err := defaultTypeMetadataFor()
	if err != nil {
		return nil, err
	}
	return tm.TypeTrees[classID], nil
}

// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package unitykit

import "fmt"

// ValueKind tags the dynamic type carried by a Value (spec §3).
type ValueKind int

// Value kinds.
const (
	KindNil ValueKind = iota
	KindBool
	KindInt
	KindUint
	KindFloat
	KindBytes
	KindString
	KindMap
	KindSlice
	KindPair
	KindPPtr
)

// Value is the language-neutral decoded form ObjectReader produces: a
// tagged variant over primitives, byte blobs, ordered maps, arrays,
// 2-tuples, and cross-asset pointers (spec §3). Composite Values
// (KindMap) preserve field declaration order from the TypeTree, because
// some consumers - Material.saved_properties being the canonical example
// - iterate fields positionally.
type Value struct {
	Kind ValueKind

	Bool   bool
	Int    int64
	Uint   uint64
	Float  float64
	Bytes  []byte
	String string
	Pair   [2]*Value
	Slice  []*Value
	PPtr   *ObjectPointer

	// Map holds the fields by name; Keys holds the declaration order
	// separately from the map itself, since Go map iteration order is
	// unspecified.
	Map  map[string]*Value
	Keys []string

	// TypeName is the TypeTree node's type string this Value was
	// decoded from, used by typed wrappers to recognize known engine
	// classes (spec §4.6).
	TypeName string
}

// Get returns the field named key from a KindMap Value, or nil if
// absent or v is not a map.
func (v *Value) Get(key string) *Value {
	if v == nil || v.Kind != KindMap {
		return nil
	}
	return v.Map[key]
}

func newMapValue(typeName string) *Value {
	return &Value{Kind: KindMap, TypeName: typeName, Map: map[string]*Value{}}
}

func (v *Value) setField(name string, val *Value) {
	if _, exists := v.Map[name]; !exists {
		v.Keys = append(v.Keys, name)
	}
	v.Map[name] = val
}

func (v *Value) GoString() string {
	switch v.Kind {
	case KindNil:
		return "nil"
	case KindBool:
		return fmt.Sprintf("%v", v.Bool)
	case KindInt:
		return fmt.Sprintf("%d", v.Int)
	case KindUint:
		return fmt.Sprintf("%d", v.Uint)
	case KindFloat:
		return fmt.Sprintf("%g", v.Float)
	case KindBytes:
		return fmt.Sprintf("bytes[%d]", len(v.Bytes))
	case KindString:
		return fmt.Sprintf("%q", v.String)
	case KindMap:
		return fmt.Sprintf("%s{%d fields}", v.TypeName, len(v.Keys))
	case KindSlice:
		return fmt.Sprintf("[%d]%s", len(v.Slice), v.TypeName)
	case KindPair:
		return fmt.Sprintf("(%s, %s)", v.Pair[0].GoString(), v.Pair[1].GoString())
	case KindPPtr:
		return v.PPtr.String()
	default:
		return "?"
	}
}

// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package unitykit

import "fmt"

// Wrap inspects a decoded composite Value's TypeName and, if it matches
// a known engine class, returns a typed accessor over it. Unknown
// composites are returned unchanged as *Value (spec §4.6).
func Wrap(v *Value) interface{} {
	if v == nil || v.Kind != KindMap {
		return v
	}
	switch v.TypeName {
	case "AudioClip":
		return AudioClip{v}
	case "Texture2D":
		return Texture2D{v}
	case "TextAsset":
		return TextAsset{v}
	case "Shader":
		return Shader{v}
	case "Mesh":
		return Mesh{v}
	case "GameObject":
		return GameObject{v}
	case "MovieTexture":
		return MovieTexture{v}
	case "Sprite":
		return Sprite{v}
	case "Material":
		return Material{v}
	case "StreamedResource":
		return StreamedResource{v}
	case "StreamingInfo":
		return StreamingInfo{v}
	default:
		if isComponentClass(v.TypeName) {
			return Component{v}
		}
		return v
	}
}

func isComponentClass(typeName string) bool {
	switch typeName {
	case "Transform", "RectTransform", "MonoBehaviour", "Behaviour",
		"Renderer", "MeshRenderer", "MeshFilter", "Collider", "Rigidbody",
		"Animator", "Animation", "Camera", "Light", "AudioSource":
		return true
	default:
		return false
	}
}

func namedField(v *Value, name string) string {
	f := v.Get(name)
	if f == nil || f.Kind != KindString {
		return ""
	}
	return f.String
}

func bytesField(v *Value, name string) []byte {
	f := v.Get(name)
	if f == nil || f.Kind != KindBytes {
		return nil
	}
	return f.Bytes
}

// scriptBytesField reads a field whose TypeTree node type is nominally
// "string" but whose payload is really opaque script/shader source - the
// TypeTree decodes it as KindString (object.go's "string" case), while a
// handful of callers still want raw bytes. Also tolerates KindBytes for
// any asset where the field was typed as a byte array instead.
func scriptBytesField(v *Value, name string) []byte {
	f := v.Get(name)
	if f == nil {
		return nil
	}
	switch f.Kind {
	case KindString:
		return []byte(f.String)
	case KindBytes:
		return f.Bytes
	default:
		return nil
	}
}

// AudioClip exposes an AudioClip object's named fields (spec §4.6).
type AudioClip struct{ *Value }

func (a AudioClip) Name() string   { return namedField(a.Value, "m_Name") }
func (a AudioClip) Data() []byte   { return bytesField(a.Value, "m_AudioData") }
func (a AudioClip) String() string { return fmt.Sprintf("AudioClip(%s)", a.Name()) }

// Texture2D exposes a Texture2D object's named fields, including the
// raw "image data" blob a CLI would hand to an image codec (spec §4.6,
// §6 CLI surface).
type Texture2D struct{ *Value }

func (t Texture2D) Name() string { return namedField(t.Value, "m_Name") }
func (t Texture2D) Width() int64 {
	if f := t.Get("m_Width"); f != nil {
		return f.Int
	}
	return 0
}
func (t Texture2D) Height() int64 {
	if f := t.Get("m_Height"); f != nil {
		return f.Int
	}
	return 0
}
func (t Texture2D) ImageData() []byte   { return bytesField(t.Value, "image data") }
func (t Texture2D) String() string {
	return fmt.Sprintf("Texture2D(%s, %dx%d)", t.Name(), t.Width(), t.Height())
}

// TextAsset exposes a TextAsset object's script bytes (spec §4.6).
type TextAsset struct{ *Value }

func (t TextAsset) Name() string   { return namedField(t.Value, "m_Name") }
func (t TextAsset) Script() []byte { return scriptBytesField(t.Value, "m_Script") }
func (t TextAsset) String() string { return fmt.Sprintf("TextAsset(%s)", t.Name()) }

// Shader exposes a Shader object's compiled/source script bytes (spec
// §4.6).
type Shader struct{ *Value }

func (s Shader) Name() string   { return namedField(s.Value, "m_Name") }
func (s Shader) Script() []byte { return scriptBytesField(s.Value, "m_Script") }
func (s Shader) String() string { return fmt.Sprintf("Shader(%s)", s.Name()) }

// Mesh exposes a Mesh object's named fields (spec §4.6).
type Mesh struct{ *Value }

func (m Mesh) Name() string   { return namedField(m.Value, "m_Name") }
func (m Mesh) String() string { return fmt.Sprintf("Mesh(%s)", m.Name()) }

// GameObject exposes a GameObject's name and attached components (spec
// §4.6).
type GameObject struct{ *Value }

func (g GameObject) Name() string { return namedField(g.Value, "m_Name") }

// Components returns each attached component as its decoded PPtr
// pointer, ready for the caller to Resolve.
func (g GameObject) Components() []*ObjectPointer {
	field := g.Get("m_Component")
	if field == nil || field.Kind != KindSlice {
		return nil
	}
	var out []*ObjectPointer
	for _, entry := range field.Slice {
		if entry == nil || entry.Kind != KindMap {
			continue
		}
		if pptrField := entry.Get("component"); pptrField != nil && pptrField.Kind == KindPPtr {
			out = append(out, pptrField.PPtr)
		}
	}
	return out
}

func (g GameObject) String() string { return fmt.Sprintf("GameObject(%s)", g.Name()) }

// MovieTexture exposes a MovieTexture's raw .ogv movie bytes (spec
// §4.6, §6 CLI surface).
type MovieTexture struct{ *Value }

func (m MovieTexture) Name() string   { return namedField(m.Value, "m_Name") }
func (m MovieTexture) MovieData() []byte { return bytesField(m.Value, "m_MovieData") }
func (m MovieTexture) String() string { return fmt.Sprintf("MovieTexture(%s)", m.Name()) }

// Sprite exposes a Sprite object's named fields (spec §4.6).
type Sprite struct{ *Value }

func (s Sprite) Name() string   { return namedField(s.Value, "m_Name") }
func (s Sprite) String() string { return fmt.Sprintf("Sprite(%s)", s.Name()) }

// Material exposes a Material's saved shader properties. SavedProperties
// preserves field declaration order, since it's positionally meaningful
// the way a shader's property block is (spec §3, §4.6).
type Material struct{ *Value }

func (m Material) Name() string { return namedField(m.Value, "m_Name") }

// SavedProperties returns the material's m_SavedProperties field, still
// in its decoded map/key order, or nil if absent.
func (m Material) SavedProperties() *Value {
	return m.Get("m_SavedProperties")
}

func (m Material) String() string { return fmt.Sprintf("Material(%s)", m.Name()) }

// Component wraps the generic MonoBehaviour/Transform/Renderer/... family
// that all share the `m_GameObject` PPtr-back-reference shape (spec
// §4.6).
type Component struct{ *Value }

func (c Component) GameObject() *ObjectPointer {
	if f := c.Get("m_GameObject"); f != nil && f.Kind == KindPPtr {
		return f.PPtr
	}
	return nil
}

func (c Component) String() string { return fmt.Sprintf("%s(component)", c.TypeName) }

// StreamedResource exposes a streamed-data field's resolved source
// asset alongside its raw source path, offset and size (spec §4.6).
type StreamedResource struct{ *Value }

func (s StreamedResource) Source() string { return namedField(s.Value, "source") }
func (s StreamedResource) Offset() int64 {
	if f := s.Get("offset"); f != nil {
		return f.Int
	}
	return 0
}
func (s StreamedResource) Size() int64 {
	if f := s.Get("size"); f != nil {
		return f.Int
	}
	return 0
}

// ResolvedAssetName is set post-decode when the Environment could
// resolve Source() to a loaded sibling asset (spec §4.6 post-processing
// step); empty when unresolved.
func (s StreamedResource) ResolvedAssetName() string { return namedField(s.Value, "resolvedAsset") }

func (s StreamedResource) String() string {
	return fmt.Sprintf("StreamedResource(%s@%d+%d)", s.Source(), s.Offset(), s.Size())
}

// StreamingInfo is AudioClip's streamed-audio counterpart to
// StreamedResource, keyed by "path" rather than "source" (spec §4.6).
type StreamingInfo struct{ *Value }

func (s StreamingInfo) Path() string { return namedField(s.Value, "path") }
func (s StreamingInfo) Offset() int64 {
	if f := s.Get("offset"); f != nil {
		return f.Int
	}
	return 0
}
func (s StreamingInfo) Size() int64 {
	if f := s.Get("size"); f != nil {
		return f.Int
	}
	return 0
}
func (s StreamingInfo) ResolvedAssetName() string { return namedField(s.Value, "resolvedAsset") }

func (s StreamingInfo) String() string {
	return fmt.Sprintf("StreamingInfo(%s@%d+%d)", s.Path(), s.Offset(), s.Size())
}

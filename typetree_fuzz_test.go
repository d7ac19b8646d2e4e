// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package unitykit

import "testing"

// FuzzParseTypeTree feeds arbitrary bytes through the blob TypeTree
// decoder - the format's self-describing schema section is the part of
// the archive most directly exposed to untrusted input, since it is
// read before any object payload is interpreted. The only property
// under test is "never panics, always returns a definite error or a
// result" (spec §8 invariant 10); well-formed cases are already covered
// by TestParseTypeTreeBlob and friends.
func FuzzParseTypeTree(f *testing.F) {
	f.Add([]byte{})
	f.Add([]byte{0, 0, 0, 0, 0, 0, 0, 0})
	f.Fuzz(func(t *testing.T, data []byte) {
		r := newReaderBytes(data)
		_, _ = parseTypeTree(r, 15, nil, nil)
	})
}

// FuzzParseSerializedFile exercises the top-level SerializedFile parser
// the same way: no input should ever panic, only return an error.
func FuzzParseSerializedFile(f *testing.F) {
	f.Add([]byte{})
	f.Add([]byte{0, 0, 0, 0, 0, 0, 0, 6, 0, 0, 0, 0})
	f.Fuzz(func(t *testing.T, data []byte) {
		_, _ = parseSerializedFile(newReaderBytes(data), defaultOptions(), nil, "fuzz.assets")
	})
}

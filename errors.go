// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package unitykit

import "errors"

// Error taxonomy. Every failure the core raises wraps one of these
// sentinels so callers can branch with errors.Is instead of string
// matching, mirroring the ErrXxx convention in the teacher's helper.go.
var (
	// ErrTruncated means the underlying stream ended before a read
	// could complete.
	ErrTruncated = errors.New("unitykit: unexpected end of stream")

	// ErrUnsupported means the input used a signature, compression
	// method, URL scheme, or format version this library does not
	// implement.
	ErrUnsupported = errors.New("unitykit: unsupported format")

	// ErrCorrupt means a framing invariant was violated: duplicate
	// path_id, non-empty terminal string, a TypeTree depth that skips
	// a level, a size mismatch after decoding an object, and so on.
	ErrCorrupt = errors.New("unitykit: corrupt data")

	// ErrNotFound means an asset or archive lookup failed even after
	// sibling discovery was attempted.
	ErrNotFound = errors.New("unitykit: not found")

	// ErrMissingCodec means an LZMA decoder could not be set up for a
	// block or stream. A codec that runs but fails to decode its input
	// yields ErrCorrupt instead.
	ErrMissingCodec = errors.New("unitykit: codec unavailable")
)

// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package unitykit

import "github.com/go-unity/unitykit/log"

// Options configures how an Archive or Environment is opened, mirroring
// the saferwall/pe Options{Logger, ...} pattern (SPEC_FULL §"Ambient
// stack").
type Options struct {
	// Logger receives diagnostic messages: missing type trees, fallback
	// resolutions, and other non-fatal anomalies encountered while
	// parsing (spec §7). A nil Logger is replaced by a no-op one.
	Logger log.Logger

	// BasePath is the directory an Environment searches when resolving
	// a sibling asset by filename (spec §4.7). Defaults to the
	// directory of the first file Loaded.
	BasePath string

	// MaxObjectSize bounds how large a single object's declared Size may
	// be before it's rejected as corrupt, guarding against a crafted
	// header driving an unbounded allocation (spec §7). Zero means no
	// limit beyond the containing asset's own bounds.
	MaxObjectSize uint32

	// SkipTypeTreeValidation disables the depth-skip guard in
	// parseTypeTreeBlob, trading a defense against malformed input for
	// tolerance of type trees this library doesn't fully understand.
	SkipTypeTreeValidation bool

	helper *log.Helper
}

func defaultOptions() *Options {
	return &Options{}
}

// logHelper lazily wraps Logger in a log.Helper, tolerating a nil
// Options receiver so internal code can call opts.logHelper() without a
// prior nil check.
func (o *Options) logHelper() *log.Helper {
	if o == nil {
		return log.NewHelper(log.NewNopLogger())
	}
	if o.helper == nil {
		o.helper = log.NewHelper(o.Logger)
	}
	return o.helper
}

// maxObjectSize returns MaxObjectSize, tolerating a nil Options receiver
// the same way logHelper does; zero means no limit.
func (o *Options) maxObjectSize() uint32 {
	if o == nil {
		return 0
	}
	return o.MaxObjectSize
}

// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

// Package resources embeds the three static data files unitykit needs at
// initialization: the shared TypeTree string pool, the class_id -> name
// table, and the fallback default type trees (spec §6, §9).
package resources

import _ "embed"

//go:embed strings.dat
var StringsDat []byte

//go:embed classes.json
var ClassesJSON []byte

//go:embed structs.dat
var StructsDat []byte

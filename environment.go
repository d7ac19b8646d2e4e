// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package unitykit

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Environment is the registry that ties multiple archives and
// standalone serialized files together so PPtr and AssetRef fields can
// resolve across file boundaries (spec §4.7).
type Environment struct {
	opts     *Options
	basePath string

	archives []*Archive
	byPath   map[string]*Archive // absolute path -> archive, for load() dedup
	byName   map[string]*SerializedFile
}

// NewEnvironment creates an empty registry rooted at opts.BasePath (or,
// if unset, the directory of the first file Loaded).
func NewEnvironment(opts *Options) *Environment {
	if opts == nil {
		opts = defaultOptions()
	}
	return &Environment{
		opts:     opts,
		basePath: opts.BasePath,
		byPath:   map[string]*Archive{},
		byName:   map[string]*SerializedFile{},
	}
}

// Load opens file as an archive, or returns the already-loaded archive
// if file's absolute path was loaded before (spec §4.7 identity dedup).
// Every asset inside is indexed by lowercased name and gets its env
// pointer set so its objects' PPtr fields can resolve externally.
func (e *Environment) Load(file string) (*Archive, error) {
	abs, err := filepath.Abs(file)
	if err != nil {
		return nil, err
	}
	if a, ok := e.byPath[abs]; ok {
		return a, nil
	}

	a, err := OpenBundle(abs, e.opts)
	if err != nil {
		return nil, err
	}

	if e.basePath == "" {
		e.basePath = filepath.Dir(abs)
	}

	e.archives = append(e.archives, a)
	e.byPath[abs] = a
	for _, asset := range a.Assets {
		asset.env = e
		e.byName[strings.ToLower(asset.Name)] = asset
	}

	return a, nil
}

// GetAssetByFilename looks an asset up by name (case-insensitive),
// falling back to loading it as a standalone serialized file under
// base_path, then to sibling discovery, before giving up with
// ErrNotFound (spec §4.7).
func (e *Environment) GetAssetByFilename(name string) (*SerializedFile, error) {
	key := strings.ToLower(name)
	if asset, ok := e.byName[key]; ok {
		return asset, nil
	}

	if asset, err := e.loadStandalone(name); err == nil {
		return asset, nil
	}

	e.discover(name)
	if asset, ok := e.byName[key]; ok {
		return asset, nil
	}

	return nil, ErrNotFound
}

func (e *Environment) loadStandalone(name string) (*SerializedFile, error) {
	path := filepath.Join(e.basePath, name)
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := newReader(f)
	asset, err := parseSerializedFile(r, e.opts, e, name)
	if err != nil {
		return nil, err
	}

	e.byName[strings.ToLower(name)] = asset
	return asset, nil
}

// discover scans every already-loaded archive's directory for a sibling
// file such that name equals "CAB-" + the sibling's basename without its
// extension (case-insensitively), and loads it on a match (spec §4.7). This is how a main asset's lazily-split CAB-*
// dependency files get pulled in without the caller naming them
// explicitly. The match is single-direction - name itself must be the
// "CAB-"-prefixed one - mirroring original_source/unitypack/environment.py's
// UnityEnvironment.discover, which never treats name as the unprefixed
// side of the comparison.
func (e *Environment) discover(name string) {
	for _, a := range e.archives {
		dir := filepath.Dir(e.pathOf(a))
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, entry := range entries {
			entryBase := strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))
			if strings.EqualFold(name, "CAB-"+entryBase) {
				if _, err := e.Load(filepath.Join(dir, entry.Name())); err != nil {
					e.opts.logHelper().Warnf("discover %q: %v", entry.Name(), err)
				}
			}
		}
	}
}

func (e *Environment) pathOf(a *Archive) string {
	for p, v := range e.byPath {
		if v == a {
			return p
		}
	}
	return e.basePath
}

// GetAsset resolves an archive:/<archive-name>/<asset-name> URL (spec
// §4.7, §6). Any other scheme is Unsupported.
func (e *Environment) GetAsset(url string) (*SerializedFile, error) {
	const scheme = "archive:"
	if !strings.HasPrefix(url, scheme) {
		return nil, fmt.Errorf("%w: url scheme in %q", ErrUnsupported, url)
	}

	rest := strings.TrimPrefix(strings.TrimPrefix(url, scheme), "/")
	parts := strings.SplitN(rest, "/", 2)
	if len(parts) != 2 {
		return nil, fmt.Errorf("%w: malformed archive url %q", ErrCorrupt, url)
	}
	archiveName := strings.ToLower(parts[0])
	assetName := strings.ToLower(parts[1])

	a := e.findArchive(archiveName)
	if a == nil {
		e.discover(archiveName)
		a = e.findArchive(archiveName)
	}
	if a == nil {
		return nil, ErrNotFound
	}

	for _, asset := range a.Assets {
		if strings.ToLower(asset.Name) == assetName {
			return asset, nil
		}
	}
	return nil, ErrNotFound
}

func (e *Environment) findArchive(name string) *Archive {
	for _, a := range e.archives {
		if strings.ToLower(a.Name) == name {
			return a
		}
	}
	return nil
}

// Close releases every archive this environment opened, in load order,
// collecting (but not stopping on) the first error (spec §5).
func (e *Environment) Close() error {
	var firstErr error
	for _, a := range e.archives {
		if err := a.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/go-unity/unitykit"
	"github.com/go-unity/unitykit/log"
)

func newDumpCmd() *cobra.Command {
	var outDir string
	var verbose bool

	cmd := &cobra.Command{
		Use:   "dump <bundle>",
		Short: "Extract known object kinds from an AssetBundle into out/",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDump(args[0], outDir, verbose)
		},
	}

	cmd.Flags().StringVar(&outDir, "out", "out", "output directory")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "log every object considered, not just extracted ones")
	return cmd
}

func runDump(bundlePath, outDir string, verbose bool) error {
	level := log.LevelWarn
	if verbose {
		level = log.LevelDebug
	}
	logger := log.NewFilter(log.NewStdLogger(os.Stderr), log.FilterLevel(level))

	opts := &unitykit.Options{Logger: logger}
	env := unitykit.NewEnvironment(opts)
	defer env.Close()

	archive, err := env.Load(bundlePath)
	if err != nil {
		return fmt.Errorf("load %s: %w", bundlePath, err)
	}

	helper := log.NewHelper(logger)
	extracted := 0

	for _, asset := range archive.Assets {
		if asset.IsResource {
			continue
		}
		for _, obj := range asset.Objects {
			helper.Debugf("%s: considering object %d (class %d)", asset.Name, obj.PathID, obj.ClassID)
			val, err := obj.Read()
			if err != nil {
				helper.Warnf("%s: object %d: %v", asset.Name, obj.PathID, err)
				continue
			}

			dest, data, ok := extractPayload(val)
			if !ok {
				continue
			}

			path := filepath.Join(outDir, asset.Name, dest)
			if err := writeFile(path, data); err != nil {
				return fmt.Errorf("write %s: %w", path, err)
			}
			extracted++
		}
	}

	helper.Infof("extracted %d objects from %s", extracted, bundlePath)
	return nil
}

// extractPayload returns the file name and bytes to write for the
// object kinds the dump command knows how to produce raw output for
// (spec §6). Kinds needing a real transcoder - FSB5 audio, compressed
// texture formats - are written as their raw container bytes rather
// than decoded media, since transcoding is an external collaborator's
// job, not the core library's.
func extractPayload(val *unitykit.Value) (name string, data []byte, ok bool) {
	switch w := unitykit.Wrap(val).(type) {
	case unitykit.AudioClip:
		if d := w.Data(); len(d) > 0 {
			return sanitize(w.Name()) + ".fsb", d, true
		}
	case unitykit.Texture2D:
		if d := w.ImageData(); len(d) > 0 {
			return sanitize(w.Name()) + ".tex2d", d, true
		}
	case unitykit.TextAsset:
		if d := w.Script(); d != nil {
			return sanitize(w.Name()) + ".txt", d, true
		}
	case unitykit.Shader:
		if d := w.Script(); d != nil {
			return sanitize(w.Name()) + ".shader", d, true
		}
	case unitykit.MovieTexture:
		if d := w.MovieData(); len(d) > 0 {
			return sanitize(w.Name()) + ".ogv", d, true
		}
	}
	return "", nil, false
}

func sanitize(name string) string {
	if name == "" {
		return "unnamed"
	}
	out := make([]rune, 0, len(name))
	for _, r := range name {
		switch {
		case r == '/' || r == '\\' || r == 0:
			out = append(out, '_')
		default:
			out = append(out, r)
		}
	}
	return string(out)
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Package atlas loads and stores brain atlases: a directory of volume files
// tied together by a content.json manifest mapping logical region names to
// relative file paths. The same layout serves both full atlases and
// per-subject region-mask sets.
package atlas

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"neuroatlas/internal/nrrd"
	"neuroatlas/pkg/mask"
	"neuroatlas/pkg/volume"
)

// ManifestName is the manifest file looked up inside an atlas directory.
const ManifestName = "content.json"

// ErrExists reports an export target that already exists without the
// overwrite flag set.
var ErrExists = errors.New("atlas output already exists")

// ErrUnknownRegion reports a requested label or mask name missing from the
// manifest.
var ErrUnknownRegion = errors.New("unknown atlas region")

// Manifest maps logical names to volume file paths relative to the manifest
// directory.
type Manifest struct {
	Reference string            `json:"reference,omitempty"`
	Labels    map[string]string `json:"labels,omitempty"`
	Masks     map[string]string `json:"masks,omitempty"`
}

// Atlas is an in-memory atlas: an optional reference volume plus named label
// volumes and binary masks.
type Atlas struct {
	Reference *volume.Image
	Labels    map[string]*volume.Image
	Masks     map[string]*volume.Image
}

// Load reads an atlas directory through its manifest. Nil name slices load
// every entry of the corresponding kind; explicit name slices load exactly
// those and fail on names the manifest does not carry.
func Load(dir string, labelNames, maskNames []string) (*Atlas, error) {
	raw, err := os.ReadFile(filepath.Join(dir, ManifestName))
	if err != nil {
		return nil, fmt.Errorf("loading atlas manifest: %w", err)
	}
	var manifest Manifest
	if err := json.Unmarshal(raw, &manifest); err != nil {
		return nil, fmt.Errorf("loading atlas manifest: %w", err)
	}

	a := &Atlas{
		Labels: map[string]*volume.Image{},
		Masks:  map[string]*volume.Image{},
	}
	if manifest.Reference != "" {
		if a.Reference, err = nrrd.Read(filepath.Join(dir, manifest.Reference)); err != nil {
			return nil, err
		}
	}
	if err := loadRegions(dir, manifest.Labels, labelNames, a.Labels); err != nil {
		return nil, err
	}
	if err := loadRegions(dir, manifest.Masks, maskNames, a.Masks); err != nil {
		return nil, err
	}
	return a, nil
}

func loadRegions(dir string, entries map[string]string, names []string, out map[string]*volume.Image) error {
	if names == nil {
		names = make([]string, 0, len(entries))
		for name := range entries {
			names = append(names, name)
		}
		sort.Strings(names)
	}
	for _, name := range names {
		rel, ok := entries[name]
		if !ok {
			return fmt.Errorf("%w: %q", ErrUnknownRegion, name)
		}
		img, err := nrrd.Read(filepath.Join(dir, rel))
		if err != nil {
			return err
		}
		out[name] = img
	}
	return nil
}

// ExportOptions controls Export.
type ExportOptions struct {
	// Compress gzip-compresses the stored sample data.
	Compress bool

	// Overwrite allows replacing an existing manifest and its volumes.
	Overwrite bool
}

// Export writes every volume of the atlas into dir and a manifest tying them
// together. The existence check runs before any file is written.
func (a *Atlas) Export(dir string, opts ExportOptions) error {
	manifestPath := filepath.Join(dir, ManifestName)
	if !opts.Overwrite {
		if _, err := os.Stat(manifestPath); err == nil {
			return fmt.Errorf("%w: %s", ErrExists, manifestPath)
		}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("exporting atlas: %w", err)
	}

	manifest := Manifest{Labels: map[string]string{}, Masks: map[string]string{}}
	if a.Reference != nil {
		manifest.Reference = "reference.nrrd"
		if err := nrrd.Write(filepath.Join(dir, manifest.Reference), a.Reference, opts.Compress, opts.Overwrite); err != nil {
			return err
		}
	}
	for name, img := range a.Labels {
		rel := name + ".nrrd"
		if err := nrrd.Write(filepath.Join(dir, rel), img, opts.Compress, opts.Overwrite); err != nil {
			return err
		}
		manifest.Labels[name] = rel
	}
	for name, img := range a.Masks {
		rel := name + "_mask.nrrd"
		if err := nrrd.Write(filepath.Join(dir, rel), img, opts.Compress, opts.Overwrite); err != nil {
			return err
		}
		manifest.Masks[name] = rel
	}

	raw, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return fmt.Errorf("exporting atlas: %w", err)
	}
	if err := os.WriteFile(manifestPath, append(raw, '\n'), 0o644); err != nil {
		return fmt.Errorf("exporting atlas: %w", err)
	}
	return nil
}

// Resample returns the atlas with every volume interpolated to the given
// spacing. Masks are re-thresholded so they stay binary.
func (a *Atlas) Resample(spacing []float64) (*Atlas, error) {
	out := &Atlas{
		Labels: make(map[string]*volume.Image, len(a.Labels)),
		Masks:  make(map[string]*volume.Image, len(a.Masks)),
	}
	var err error
	if a.Reference != nil {
		if out.Reference, err = a.Reference.Resample(spacing); err != nil {
			return nil, err
		}
	}
	for name, img := range a.Labels {
		if out.Labels[name], err = img.Resample(spacing); err != nil {
			return nil, err
		}
	}
	for name, img := range a.Masks {
		resampled, err := img.Resample(spacing)
		if err != nil {
			return nil, err
		}
		out.Masks[name] = resampled.Threshold(0.5)
	}
	return out, nil
}

// Crop returns the atlas restricted to the half-open index ranges
// [lo[k], hi[k]) on every volume.
func (a *Atlas) Crop(lo, hi []int) (*Atlas, error) {
	out := &Atlas{
		Labels: make(map[string]*volume.Image, len(a.Labels)),
		Masks:  make(map[string]*volume.Image, len(a.Masks)),
	}
	var err error
	if a.Reference != nil {
		if out.Reference, err = a.Reference.Crop(lo, hi); err != nil {
			return nil, err
		}
	}
	for name, img := range a.Labels {
		if out.Labels[name], err = img.Crop(lo, hi); err != nil {
			return nil, err
		}
	}
	for name, img := range a.Masks {
		if out.Masks[name], err = img.Crop(lo, hi); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// CombineMasks returns the union of the named binary masks as one mask.
func (a *Atlas) CombineMasks(names []string) (*volume.Image, error) {
	if len(names) == 0 {
		return nil, fmt.Errorf("%w: no mask names given", ErrUnknownRegion)
	}
	var combined *volume.Image
	for _, name := range names {
		img, ok := a.Masks[name]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownRegion, name)
		}
		if combined == nil {
			combined = img.Clone()
			continue
		}
		var err error
		if combined, err = mask.Or(combined, img); err != nil {
			return nil, fmt.Errorf("combining mask %q: %w", name, err)
		}
	}
	return combined.Cast(volume.Uint8), nil
}

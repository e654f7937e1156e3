package cli

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"neuroatlas/pkg/atlas"
	"neuroatlas/pkg/volume"
)

// maskOnlyAtlasDir writes an atlas directory holding a single binary mask and
// no reference volume.
func maskOnlyAtlasDir(t *testing.T) string {
	t.Helper()

	data := make([]float64, 27)
	data[13] = 1
	img, err := volume.New(data, []int{3, 3, 3}, []float64{1, 1, 1})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	img.Pixel = volume.Uint8

	dir := t.TempDir()
	a := &atlas.Atlas{Masks: map[string]*volume.Image{"left": img}}
	if err := a.Export(dir, atlas.ExportOptions{}); err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	return dir
}

func TestAtlasInfoWithoutReference(t *testing.T) {
	dir := maskOnlyAtlasDir(t)

	cmd := newAtlasInfoCmd()
	if err := cmd.RunE(cmd, []string{dir}); err != nil {
		t.Fatalf("atlas info on a reference-less atlas failed: %v", err)
	}
}

func TestAtlasInfoEmptyManifest(t *testing.T) {
	dir := t.TempDir()
	manifest := []byte("{\"masks\": {}}\n")
	if err := os.WriteFile(filepath.Join(dir, atlas.ManifestName), manifest, 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cmd := newAtlasInfoCmd()
	if err := cmd.RunE(cmd, []string{dir}); err != nil {
		t.Fatalf("atlas info on an empty manifest failed: %v", err)
	}
}

func TestAtlasExportCropWithoutReference(t *testing.T) {
	src := maskOnlyAtlasDir(t)
	dst := filepath.Join(t.TempDir(), "out")

	cmd := newAtlasExportCmd()
	cmd.SetArgs([]string{src, dst, "--crop-lo", "0,0,0", "--crop-hi", "2,2,2"})
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("atlas export with crop on a reference-less atlas failed: %v", err)
	}

	out, err := atlas.Load(dst, nil, nil)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if out.Reference != nil {
		t.Error("exported atlas unexpectedly gained a reference volume")
	}
	if got := out.Masks["left"]; got == nil || got.Shape[0] != 2 {
		t.Errorf("cropped mask missing or wrong shape: %+v", got)
	}
}

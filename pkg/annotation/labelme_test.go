package annotation

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"neuroatlas/pkg/contour"
	"neuroatlas/pkg/volume"
)

func gradientPlane(rows, cols int) volume.Plane {
	p := volume.NewPlane(rows, cols)
	for i := range p.Data {
		p.Data[i] = float64(i)
	}
	return p
}

func squareContours(planes int) [][]contour.Polyline {
	poly := contour.Polyline{
		{Row: 0.5, Col: 0.5}, {Row: 0.5, Col: 4.5},
		{Row: 4.5, Col: 4.5}, {Row: 4.5, Col: 0.5},
		{Row: 0.5, Col: 0.5},
	}
	out := make([][]contour.Polyline, planes)
	for i := range out {
		out[i] = []contour.Polyline{poly}
	}
	return out
}

func TestExportLabelMeRefusesExistingFiles(t *testing.T) {
	dir := t.TempDir()
	planes := []volume.Plane{gradientPlane(8, 10), gradientPlane(8, 10)}
	contours := map[string][][]contour.Polyline{"hippocampus": squareContours(2)}
	pattern := filepath.Join(dir, "plane_%s.json")

	// Only the second target exists; the export must fail before writing
	// anything, so the first target stays absent.
	if err := os.WriteFile(filepath.Join(dir, "plane_1.json"), []byte("{}\n"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	if _, err := ExportLabelMe(planes, contours, pattern, Options{}); !errors.Is(err, ErrExists) {
		t.Fatalf("ExportLabelMe() error = %v, want ErrExists", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "plane_0.json")); err == nil {
		t.Error("export wrote plane_0.json before failing the existence check")
	}

	files, err := ExportLabelMe(planes, contours, pattern, Options{Overwrite: true})
	if err != nil {
		t.Fatalf("ExportLabelMe() with overwrite: error = %v", err)
	}
	if len(files) != 2 {
		t.Errorf("ExportLabelMe() wrote %d files, want 2", len(files))
	}
}

func TestExportLabelMe(t *testing.T) {
	dir := t.TempDir()
	planes := []volume.Plane{gradientPlane(8, 10), gradientPlane(8, 10)}
	contours := map[string][][]contour.Polyline{"hippocampus": squareContours(2)}

	files, err := ExportLabelMe(planes, contours, filepath.Join(dir, "plane_%s.json"), Options{StampIndex: true})
	if err != nil {
		t.Fatalf("ExportLabelMe() error = %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("ExportLabelMe() wrote %d files, want 2", len(files))
	}
	if filepath.Base(files[1]) != "plane_1.json" {
		t.Errorf("second file = %q, want plane_1.json", filepath.Base(files[1]))
	}

	raw, err := os.ReadFile(files[0])
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}

	if doc.Version != "4.5.6" {
		t.Errorf("version = %q, want 4.5.6", doc.Version)
	}
	if doc.ImageHeight != 8 || doc.ImageWidth != 10 {
		t.Errorf("image size = %dx%d, want 8x10", doc.ImageWidth, doc.ImageHeight)
	}
	if len(doc.Shapes) != 1 {
		t.Fatalf("document has %d shapes, want 1", len(doc.Shapes))
	}
	shape := doc.Shapes[0]
	if shape.Label != "hippocampus" || shape.ShapeType != "polygon" {
		t.Errorf("shape = %q/%q, want hippocampus/polygon", shape.Label, shape.ShapeType)
	}
	if first, last := shape.Points[0], shape.Points[len(shape.Points)-1]; first != last {
		t.Errorf("polygon is not closed: %v vs %v", first, last)
	}
	// Points are [x, y]: the first polyline vertex (row 0.5, col 0.5) must
	// come out as x=0.5, y=0.5 and column 4.5 as x=4.5.
	if shape.Points[1] != [2]float64{4.5, 0.5} {
		t.Errorf("second point = %v, want [4.5 0.5]", shape.Points[1])
	}

	imageData, err := base64.StdEncoding.DecodeString(doc.ImageData)
	if err != nil {
		t.Fatalf("imageData is not valid base64: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(imageData))
	if err != nil {
		t.Fatalf("imageData is not a decodable PNG: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 10 || b.Dy() != 8 {
		t.Errorf("embedded PNG is %dx%d, want 10x8", b.Dx(), b.Dy())
	}
}

func TestExportLabelMeZeroPadding(t *testing.T) {
	dir := t.TempDir()
	planes := make([]volume.Plane, 12)
	for i := range planes {
		planes[i] = gradientPlane(4, 4)
	}
	files, err := ExportLabelMe(planes, nil, filepath.Join(dir, "p%s.json"), Options{})
	if err != nil {
		t.Fatalf("ExportLabelMe() error = %v", err)
	}
	if filepath.Base(files[0]) != "p00.json" || filepath.Base(files[11]) != "p11.json" {
		t.Errorf("file names = %q, %q, want p00.json, p11.json", filepath.Base(files[0]), filepath.Base(files[11]))
	}
}

func TestExportLabelMeValidation(t *testing.T) {
	planes := []volume.Plane{gradientPlane(4, 4)}
	tests := []struct {
		name     string
		planes   []volume.Plane
		contours map[string][][]contour.Polyline
		format   string
	}{
		{"no planes", nil, nil, "p%s.json"},
		{"no placeholder", planes, nil, "plane.json"},
		{"two placeholders", planes, nil, "%s_%s.json"},
		{"plane count mismatch", planes, map[string][][]contour.Polyline{"r": squareContours(3)}, "p%s.json"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ExportLabelMe(tt.planes, tt.contours, tt.format, Options{}); !errors.Is(err, ErrExport) {
				t.Errorf("ExportLabelMe() error = %v, want ErrExport", err)
			}
		})
	}
}

func TestGlyphTableLazy(t *testing.T) {
	first := glyphs()
	second := glyphs()
	if len(first) != 10 {
		t.Fatalf("glyph table has %d entries, want 10", len(first))
	}
	for r, g := range first {
		if second[r] != g {
			t.Errorf("glyph %q re-rendered between accesses", r)
		}
	}
}

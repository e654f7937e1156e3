package summarize

import (
	"errors"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/image/tiff"
)

func writeFrame(t *testing.T, dir, name string, w, h int, value uint8) string {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = value
	}
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("png.Encode() error = %v", err)
	}
	return path
}

func TestMean(t *testing.T) {
	dir := t.TempDir()
	paths := []string{
		writeFrame(t, dir, "f0.png", 4, 3, 100),
		writeFrame(t, dir, "f1.png", 4, 3, 200),
	}

	mean, err := Mean(paths)
	if err != nil {
		t.Fatalf("Mean() error = %v", err)
	}
	if b := mean.Bounds(); b.Dx() != 4 || b.Dy() != 3 {
		t.Fatalf("mean bounds = %v, want 4x3", b)
	}
	// (100+200)/2 widened to 16 bits.
	want := uint16(150 * 256)
	got := mean.Gray16At(0, 0).Y
	if got != want {
		t.Errorf("mean sample = %d, want %d", got, want)
	}
}

func TestMeanRejectsMismatchedFrames(t *testing.T) {
	dir := t.TempDir()
	paths := []string{
		writeFrame(t, dir, "f0.png", 4, 3, 10),
		writeFrame(t, dir, "f1.png", 2, 2, 10),
	}
	if _, err := Mean(paths); !errors.Is(err, ErrSeries) {
		t.Errorf("Mean() error = %v, want ErrSeries", err)
	}
}

func TestMeanEmptySeries(t *testing.T) {
	if _, err := Mean(nil); !errors.Is(err, ErrSeries) {
		t.Errorf("Mean() error = %v, want ErrSeries", err)
	}
}

func TestWriteMean(t *testing.T) {
	dir := t.TempDir()
	paths := []string{writeFrame(t, dir, "f0.png", 3, 3, 64)}
	out := filepath.Join(dir, "series__mean.tif")

	if err := WriteMean(paths, out); err != nil {
		t.Fatalf("WriteMean() error = %v", err)
	}
	f, err := os.Open(out)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer f.Close()
	img, err := tiff.Decode(f)
	if err != nil {
		t.Fatalf("tiff.Decode() error = %v", err)
	}
	if b := img.Bounds(); b.Dx() != 3 || b.Dy() != 3 {
		t.Errorf("summary image bounds = %v, want 3x3", b)
	}
}

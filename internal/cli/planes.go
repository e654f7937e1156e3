package cli

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"

	"neuroatlas/pkg/volume"
)

var numberPattern = regexp.MustCompile(`\d+`)

// extractNumber pulls the first run of digits out of a filename so plane
// images sort in acquisition order regardless of zero padding.
func extractNumber(filename string) int {
	m := numberPattern.FindString(filepath.Base(filename))
	if m == "" {
		return 0
	}
	n, err := strconv.Atoi(m)
	if err != nil {
		return 0
	}
	return n
}

// listPlaneFiles returns the image files in dir sorted by the number embedded
// in their names.
func listPlaneFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading plane directory: %w", err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".png", ".tif", ".tiff", ".jpg", ".jpeg", ".bmp":
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no plane images found in %s", dir)
	}
	sort.Slice(files, func(i, j int) bool {
		return extractNumber(files[i]) < extractNumber(files[j])
	})
	return files, nil
}

// loadPlane reads a single image file as a grayscale plane. Color images are
// reduced to their 16-bit red channel, which matches the gray value for
// grayscale sources.
func loadPlane(path string) (volume.Plane, error) {
	img, err := imaging.Open(path)
	if err != nil {
		return volume.Plane{}, fmt.Errorf("loading plane %s: %w", path, err)
	}
	bounds := img.Bounds()
	plane := volume.NewPlane(bounds.Dy(), bounds.Dx())
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, _, _, _ := img.At(x, y).RGBA()
			plane.Set(y-bounds.Min.Y, x-bounds.Min.X, float64(r))
		}
	}
	return plane, nil
}

// loadPlanes reads every plane image in dir in acquisition order.
func loadPlanes(dir string) ([]volume.Plane, error) {
	files, err := listPlaneFiles(dir)
	if err != nil {
		return nil, err
	}
	planes := make([]volume.Plane, len(files))
	for i, f := range files {
		p, err := loadPlane(f)
		if err != nil {
			return nil, err
		}
		if i > 0 && (p.Rows != planes[0].Rows || p.Cols != planes[0].Cols) {
			return nil, fmt.Errorf("plane %s is %dx%d, expected %dx%d",
				f, p.Rows, p.Cols, planes[0].Rows, planes[0].Cols)
		}
		planes[i] = p
	}
	return planes, nil
}

// ensureWritable fails when path exists and overwrite is not set, before
// anything is written.
func ensureWritable(path string, overwrite bool) error {
	if overwrite {
		return nil
	}
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("output %s already exists (use --overwrite)", path)
	}
	return nil
}

// savePlane writes a plane as a 16-bit grayscale PNG, scaling its values to
// the full sample range.
func savePlane(plane volume.Plane, path string, overwrite bool) error {
	if err := ensureWritable(path, overwrite); err != nil {
		return err
	}
	lo, hi := plane.Data[0], plane.Data[0]
	for _, v := range plane.Data {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	scale := 0.0
	if hi > lo {
		scale = 65535.0 / (hi - lo)
	}

	img := image.NewGray16(image.Rect(0, 0, plane.Cols, plane.Rows))
	for r := 0; r < plane.Rows; r++ {
		for c := 0; c < plane.Cols; c++ {
			img.SetGray16(c, r, color.Gray16{Y: uint16((plane.At(r, c) - lo) * scale)})
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("writing plane %s: %w", path, err)
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("encoding plane %s: %w", path, err)
	}
	return f.Close()
}

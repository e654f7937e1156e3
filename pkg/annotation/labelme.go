// Package annotation exports mask contours as polygon annotation files in
// the labelme JSON layout: one document per plane carrying labeled closed
// polygons and a base64-encoded PNG of the reference plane.
package annotation

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/png"
	"math"
	"os"
	"sort"
	"strings"

	"neuroatlas/pkg/contour"
	"neuroatlas/pkg/volume"
)

// ErrExport reports invalid export arguments.
var ErrExport = errors.New("invalid annotation export")

// labelmeVersion is the tool version the produced documents declare.
const labelmeVersion = "4.5.6"

// Shape is one labeled closed polygon. Points are [x, y] pairs in image
// pixel coordinates: x along the plane's second axis, y along the first.
type Shape struct {
	Label     string         `json:"label"`
	Points    [][2]float64   `json:"points"`
	GroupID   *int           `json:"group_id"`
	ShapeType string         `json:"shape_type"`
	Flags     map[string]any `json:"flags"`
}

// Document is a single-plane annotation file.
type Document struct {
	Version     string         `json:"version"`
	Flags       map[string]any `json:"flags"`
	Shapes      []Shape        `json:"shapes"`
	ImagePath   string         `json:"imagePath"`
	ImageData   string         `json:"imageData"`
	ImageHeight int            `json:"imageHeight"`
	ImageWidth  int            `json:"imageWidth"`
}

// ErrExists reports an annotation target that already exists without the
// overwrite option set.
var ErrExists = errors.New("annotation file already exists")

// Options controls the export.
type Options struct {
	// StampIndex draws the plane index into the reference image corner.
	StampIndex bool

	// Overwrite allows replacing existing annotation files.
	Overwrite bool
}

// ExportLabelMe writes one annotation document per reference plane.
// contours maps a region label to its per-plane polyline lists; every region
// must carry exactly one list per plane. pathFormat must contain a single %s
// verb which receives the zero-padded plane index. The written file paths
// are returned in plane order.
func ExportLabelMe(planes []volume.Plane, contours map[string][][]contour.Polyline, pathFormat string, opts Options) ([]string, error) {
	if len(planes) == 0 {
		return nil, fmt.Errorf("%w: no reference planes", ErrExport)
	}
	if strings.Count(pathFormat, "%s") != 1 {
		return nil, fmt.Errorf("%w: path format %q needs exactly one %%s placeholder", ErrExport, pathFormat)
	}
	for label, perPlane := range contours {
		if len(perPlane) != len(planes) {
			return nil, fmt.Errorf("%w: region %q has %d plane entries, want %d", ErrExport, label, len(perPlane), len(planes))
		}
	}

	counterLength := len(fmt.Sprint(len(planes) - 1))

	// All target paths are checked before the first document is written.
	if !opts.Overwrite {
		for i := range planes {
			path := fmt.Sprintf(pathFormat, fmt.Sprintf("%0*d", counterLength, i))
			if _, err := os.Stat(path); err == nil {
				return nil, fmt.Errorf("%w: %s", ErrExists, path)
			}
		}
	}

	files := make([]string, 0, len(planes))
	for i, plane := range planes {
		doc, err := buildDocument(plane, i, contours, opts)
		if err != nil {
			return nil, err
		}
		raw, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("encoding annotation: %w", err)
		}

		path := fmt.Sprintf(pathFormat, fmt.Sprintf("%0*d", counterLength, i))
		if err := os.WriteFile(path, append(raw, '\n'), 0o644); err != nil {
			return nil, fmt.Errorf("writing annotation: %w", err)
		}
		files = append(files, path)
	}
	return files, nil
}

func buildDocument(plane volume.Plane, index int, contours map[string][][]contour.Polyline, opts Options) (*Document, error) {
	doc := &Document{
		Version:     labelmeVersion,
		Flags:       map[string]any{},
		Shapes:      []Shape{},
		ImageHeight: plane.Rows,
		ImageWidth:  plane.Cols,
	}
	for _, label := range sortedLabels(contours) {
		for _, poly := range contours[label][index] {
			shape := Shape{
				Label:     label,
				Points:    make([][2]float64, 0, len(poly)),
				ShapeType: "polygon",
				Flags:     map[string]any{},
			}
			for _, p := range poly {
				shape.Points = append(shape.Points, [2]float64{p.Col, p.Row})
			}
			doc.Shapes = append(doc.Shapes, shape)
		}
	}

	data, err := encodePlanePNG(plane, index, opts.StampIndex)
	if err != nil {
		return nil, err
	}
	doc.ImageData = data
	return doc, nil
}

// encodePlanePNG renders the plane as an 8-bit grayscale PNG, min-max scaled,
// and returns it base64-encoded.
func encodePlanePNG(plane volume.Plane, index int, stamp bool) (string, error) {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range plane.Data {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	scale := 0.0
	if hi > lo {
		scale = 255 / (hi - lo)
	}

	img := image.NewGray(image.Rect(0, 0, plane.Cols, plane.Rows))
	for r := 0; r < plane.Rows; r++ {
		for c := 0; c < plane.Cols; c++ {
			img.Pix[r*img.Stride+c] = uint8((plane.At(r, c) - lo) * scale)
		}
	}
	if stamp {
		stampIndex(img, index)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("encoding annotation image: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

func sortedLabels(contours map[string][][]contour.Polyline) []string {
	labels := make([]string, 0, len(contours))
	for label := range contours {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return labels
}

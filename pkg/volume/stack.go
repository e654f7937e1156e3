package volume

import (
	"errors"
	"fmt"

	"neuroatlas/pkg/orientation"
)

// ErrStackMismatch reports a plane stack whose elements disagree in shape or
// whose geometry options are invalid.
var ErrStackMismatch = errors.New("invalid plane stack")

// Plane is a single 2-D raster out of an ordered anatomical image stack,
// stored row-major.
type Plane struct {
	Rows, Cols int
	Data       []float64
}

// NewPlane allocates a zero-filled plane.
func NewPlane(rows, cols int) Plane {
	return Plane{Rows: rows, Cols: cols, Data: make([]float64, rows*cols)}
}

// At returns the sample at (row, col).
func (p Plane) At(row, col int) float64 { return p.Data[row*p.Cols+col] }

// Set assigns the sample at (row, col).
func (p Plane) Set(row, col int, v float64) { p.Data[row*p.Cols+col] = v }

// StackOptions describes the geometry of a plane stack.
//
// The orientation letters name the anatomical direction of the origin of each
// axis: StackOrientation is the direction the first plane lies in (planes
// ordered inferior to superior carry "I"), and PlaneOrientation names the
// directions of the first (vertical) and second (horizontal) in-plane axes at
// the image origin in the upper-left corner.
type StackOptions struct {
	// StackOrientation is the single-letter code of the stacking axis.
	StackOrientation string

	// PlaneOrientation holds the single-letter codes of the two in-plane axes.
	PlaneOrientation [2]string

	// PlaneRotation is an in-plane rotation correction in radians, measured
	// counter-clockwise as seen looking along the stacking axis toward the
	// viewer. A magnitude of exactly 45 degrees makes the resulting
	// orientation ambiguous; see FromStack.
	PlaneRotation float64

	// PlaneSpacing is the physical sample spacing of the in-plane axes (µm).
	PlaneSpacing [2]float64

	// PlaneHeight is the physical distance between consecutive planes (µm).
	PlaneHeight float64

	// AsMask normalises the assembled values to [0, 1] and thresholds at 0.5,
	// producing a binary uint8 mask.
	AsMask bool

	// Spacing, when non-nil, resamples the assembled volume to this uniform
	// spacing after reorientation.
	Spacing []float64
}

// arrayCode derives the orientation code of the naturally stacked array: the
// anatomical inverse of each supplied letter, since the supplied letters name
// the origin of each axis while direction matrices are built from
// origin-to-target unit vectors.
func (o StackOptions) arrayCode() (string, error) {
	return orientation.Invert(o.StackOrientation + o.PlaneOrientation[0] + o.PlaneOrientation[1])
}

// FromStack assembles an ordered stack of equally shaped planes into a
// canonically oriented (RAI) volumetric image with its origin at zero.
//
// The planes are stacked along a new leading axis in natural order and the
// direction matrix is derived from the inverted orientation code, optionally
// rotated about the stacking axis by PlaneRotation. The result is then
// reoriented to RAI by a pure axis permutation. If PlaneRotation is exactly
// +/-45 degrees the direction matrix has no unique nearest orientation code;
// the assembled image is then returned in its natural array orientation
// (historical behaviour treats this as a warning, not an error).
func FromStack(planes []Plane, opts StackOptions) (*Image, error) {
	if len(planes) == 0 {
		return nil, fmt.Errorf("%w: empty stack", ErrStackMismatch)
	}
	rows, cols := planes[0].Rows, planes[0].Cols
	for i, p := range planes {
		if p.Rows != rows || p.Cols != cols || len(p.Data) != rows*cols {
			return nil, fmt.Errorf("%w: plane %d is %dx%d, want %dx%d", ErrStackMismatch, i, p.Rows, p.Cols, rows, cols)
		}
	}
	if opts.PlaneHeight <= 0 || opts.PlaneSpacing[0] <= 0 || opts.PlaneSpacing[1] <= 0 {
		return nil, fmt.Errorf("%w: plane spacing and height must be positive", ErrStackMismatch)
	}

	code, err := opts.arrayCode()
	if err != nil {
		return nil, err
	}
	direction, err := orientation.DirectionMatrix(code)
	if err != nil {
		return nil, err
	}
	if opts.PlaneRotation != 0 {
		axis := []float64{direction.At(0, 0), direction.At(1, 0), direction.At(2, 0)}
		direction = orientation.ApplyRotation(direction, axis, opts.PlaneRotation)
	}

	data := make([]float64, len(planes)*rows*cols)
	for i, p := range planes {
		copy(data[i*rows*cols:(i+1)*rows*cols], p.Data)
	}

	img := &Image{
		Data:      data,
		Shape:     []int{len(planes), rows, cols},
		Spacing:   []float64{opts.PlaneHeight, opts.PlaneSpacing[0], opts.PlaneSpacing[1]},
		Origin:    make([]float64, 3),
		Direction: direction,
		Pixel:     Float32,
	}
	if err := img.Validate(); err != nil {
		return nil, err
	}

	reoriented, err := img.Reorient("RAI")
	switch {
	case errors.Is(err, orientation.ErrAmbiguousDirection):
		reoriented = img
	case err != nil:
		return nil, err
	}
	reoriented.Origin = make([]float64, 3)

	if opts.AsMask {
		reoriented = reoriented.Normalise().Threshold(0.5)
	}
	if opts.Spacing != nil {
		reoriented, err = reoriented.Resample(opts.Spacing)
		if err != nil {
			return nil, err
		}
		if opts.AsMask {
			reoriented = reoriented.Threshold(0.5)
		}
	}
	return reoriented, nil
}

// ToStack slices a 3-D volume into an ordered stack of planes following the
// given stack and in-plane orientation letters. The volume is reoriented
// (pure axis permutation, no interpolation) into the inverted-code array
// orientation and the leading axis is then indexed: all planes in order when
// indices is nil, otherwise exactly the requested indices in the order given.
// The per-axis spacing of the reoriented volume is returned alongside.
//
// ToStack is the exact inverse of FromStack under matching orientation
// arguments and zero plane rotation.
func ToStack(img *Image, stackOrientation string, planeOrientation [2]string, indices []int) ([]Plane, []float64, error) {
	if img.Dim() != 3 {
		return nil, nil, fmt.Errorf("%w: slicing requires a 3-D image", ErrInvalidImage)
	}
	opts := StackOptions{StackOrientation: stackOrientation, PlaneOrientation: planeOrientation}
	code, err := opts.arrayCode()
	if err != nil {
		return nil, nil, err
	}
	reoriented, err := img.Reorient(code)
	if err != nil {
		return nil, nil, err
	}

	depth := reoriented.Shape[0]
	rows, cols := reoriented.Shape[1], reoriented.Shape[2]
	if indices == nil {
		indices = make([]int, depth)
		for i := range indices {
			indices[i] = i
		}
	}

	planes := make([]Plane, 0, len(indices))
	for _, i := range indices {
		if i < 0 || i >= depth {
			return nil, nil, fmt.Errorf("%w: plane index %d outside [0, %d)", ErrInvalidImage, i, depth)
		}
		p := NewPlane(rows, cols)
		copy(p.Data, reoriented.Data[i*rows*cols:(i+1)*rows*cols])
		planes = append(planes, p)
	}
	return planes, append([]float64(nil), reoriented.Spacing...), nil
}

// Package volume implements the volumetric image model used throughout
// neuroatlas: a dense 2-D or 3-D grid of scalar samples carrying physical
// spacing, origin and an orthonormal direction matrix mapping array axes to
// the canonical RAI anatomical frame.
//
// Images are value-like. Every operation that changes geometry or sample
// values (Reorient, Resample, Crop, Cast, Threshold, Normalise) returns a new
// consistent Image and never mutates the receiver, so data, spacing and
// direction can never be observed in a mixed state.
package volume

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// ErrInvalidImage reports image metadata that violates the model invariants:
// inconsistent data length, non-positive spacing, or a direction matrix that
// is not orthonormal.
var ErrInvalidImage = errors.New("invalid volume image")

// PixelType identifies the storage sample type of an image. In memory all
// samples are held as float64; the pixel type records how the image is cast
// for storage and what value range is legal.
type PixelType int

const (
	Uint8 PixelType = iota
	Uint32
	Float32
	Float64
)

// String returns the NRRD-style name of the pixel type.
func (p PixelType) String() string {
	switch p {
	case Uint8:
		return "uint8"
	case Uint32:
		return "uint32"
	case Float32:
		return "float"
	case Float64:
		return "double"
	}
	return fmt.Sprintf("PixelType(%d)", int(p))
}

// Image is a dense 2-D or 3-D raster with spatial metadata. Data is stored in
// row-major order with the last axis contiguous.
type Image struct {
	Data      []float64
	Shape     []int
	Spacing   []float64
	Origin    []float64
	Direction *mat.Dense
	Pixel     PixelType
}

// New constructs an Image with identity direction, zero origin and Float32
// pixel type, validating the result.
func New(data []float64, shape []int, spacing []float64) (*Image, error) {
	dim := len(shape)
	identity := mat.NewDense(dim, dim, nil)
	for i := 0; i < dim; i++ {
		identity.Set(i, i, 1)
	}
	img := &Image{
		Data:      data,
		Shape:     shape,
		Spacing:   spacing,
		Origin:    make([]float64, dim),
		Direction: identity,
		Pixel:     Float32,
	}
	if err := img.Validate(); err != nil {
		return nil, err
	}
	return img, nil
}

// Validate checks the model invariants: 2 or 3 axes, data length matching the
// shape, strictly positive spacing, and mutually orthogonal unit direction
// columns.
func (img *Image) Validate() error {
	dim := len(img.Shape)
	if dim != 2 && dim != 3 {
		return fmt.Errorf("%w: dimension %d, want 2 or 3", ErrInvalidImage, dim)
	}
	n := 1
	for _, s := range img.Shape {
		if s <= 0 {
			return fmt.Errorf("%w: non-positive extent in shape %v", ErrInvalidImage, img.Shape)
		}
		n *= s
	}
	if len(img.Data) != n {
		return fmt.Errorf("%w: data length %d does not match shape %v", ErrInvalidImage, len(img.Data), img.Shape)
	}
	if len(img.Spacing) != dim || len(img.Origin) != dim {
		return fmt.Errorf("%w: spacing/origin length does not match dimension %d", ErrInvalidImage, dim)
	}
	for _, s := range img.Spacing {
		if s <= 0 {
			return fmt.Errorf("%w: non-positive spacing %v", ErrInvalidImage, img.Spacing)
		}
	}
	r, c := img.Direction.Dims()
	if r != dim || c != dim {
		return fmt.Errorf("%w: direction matrix is %dx%d, want %dx%d", ErrInvalidImage, r, c, dim, dim)
	}
	var product mat.Dense
	product.Mul(img.Direction.T(), img.Direction)
	identity := mat.NewDense(dim, dim, nil)
	for i := 0; i < dim; i++ {
		identity.Set(i, i, 1)
	}
	if !mat.EqualApprox(&product, identity, 1e-6) {
		return fmt.Errorf("%w: direction matrix is not orthonormal", ErrInvalidImage)
	}
	return nil
}

// Dim returns the number of array axes (2 or 3).
func (img *Image) Dim() int { return len(img.Shape) }

// Strides returns the row-major stride per axis.
func (img *Image) Strides() []int {
	dim := len(img.Shape)
	strides := make([]int, dim)
	strides[dim-1] = 1
	for k := dim - 2; k >= 0; k-- {
		strides[k] = strides[k+1] * img.Shape[k+1]
	}
	return strides
}

// Clone returns a deep copy of the image.
func (img *Image) Clone() *Image {
	out := &Image{
		Data:      append([]float64(nil), img.Data...),
		Shape:     append([]int(nil), img.Shape...),
		Spacing:   append([]float64(nil), img.Spacing...),
		Origin:    append([]float64(nil), img.Origin...),
		Direction: mat.DenseCopyOf(img.Direction),
		Pixel:     img.Pixel,
	}
	return out
}

// MinMax returns the smallest and largest sample values.
func (img *Image) MinMax() (float64, float64) {
	lo, hi := img.Data[0], img.Data[0]
	for _, v := range img.Data {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi
}

// Cast returns a copy of the image with samples converted to the given pixel
// type. Integer targets round to nearest and clamp to the type's range.
func (img *Image) Cast(pt PixelType) *Image {
	out := img.Clone()
	out.Pixel = pt
	switch pt {
	case Uint8:
		castInteger(out.Data, 0, math.MaxUint8)
	case Uint32:
		castInteger(out.Data, 0, math.MaxUint32)
	case Float32:
		for i, v := range out.Data {
			out.Data[i] = float64(float32(v))
		}
	}
	return out
}

func castInteger(data []float64, lo, hi float64) {
	for i, v := range data {
		v = math.Round(v)
		if v < lo {
			v = lo
		}
		if v > hi {
			v = hi
		}
		data[i] = v
	}
}

// Normalise returns a copy with sample values linearly mapped to [0, 1]. A
// constant image maps to all zeros.
func (img *Image) Normalise() *Image {
	out := img.Clone()
	lo, hi := out.MinMax()
	if hi <= lo {
		for i := range out.Data {
			out.Data[i] = 0
		}
		return out
	}
	scale := 1 / (hi - lo)
	for i, v := range out.Data {
		out.Data[i] = (v - lo) * scale
	}
	return out
}

// Threshold returns a binary uint8 mask with 1 where the sample value is
// greater than or equal to level.
func (img *Image) Threshold(level float64) *Image {
	out := img.Clone()
	out.Pixel = Uint8
	for i, v := range out.Data {
		if v >= level {
			out.Data[i] = 1
		} else {
			out.Data[i] = 0
		}
	}
	return out
}

// IsBinary reports whether the image contains no values other than 0 and 1.
func (img *Image) IsBinary() bool {
	for _, v := range img.Data {
		if v != 0 && v != 1 {
			return false
		}
	}
	return true
}

// Crop returns the sub-image over the half-open index ranges [lo[k], hi[k])
// per axis, with the origin moved to the physical position of the new first
// sample.
func (img *Image) Crop(lo, hi []int) (*Image, error) {
	dim := img.Dim()
	if len(lo) != dim || len(hi) != dim {
		return nil, fmt.Errorf("%w: crop bounds length does not match dimension %d", ErrInvalidImage, dim)
	}
	newShape := make([]int, dim)
	for k := 0; k < dim; k++ {
		if lo[k] < 0 || hi[k] > img.Shape[k] || lo[k] >= hi[k] {
			return nil, fmt.Errorf("%w: crop range [%d, %d) invalid for extent %d", ErrInvalidImage, lo[k], hi[k], img.Shape[k])
		}
		newShape[k] = hi[k] - lo[k]
	}

	n := 1
	for _, s := range newShape {
		n *= s
	}
	out := &Image{
		Data:      make([]float64, n),
		Shape:     newShape,
		Spacing:   append([]float64(nil), img.Spacing...),
		Origin:    append([]float64(nil), img.Origin...),
		Direction: mat.DenseCopyOf(img.Direction),
		Pixel:     img.Pixel,
	}
	for k := 0; k < dim; k++ {
		for j := 0; j < dim; j++ {
			out.Origin[j] += img.Direction.At(j, k) * img.Spacing[k] * float64(lo[k])
		}
	}

	strides := img.Strides()
	outStrides := out.Strides()
	idx := make([]int, dim)
	for i := 0; i < n; i++ {
		src := 0
		for k := 0; k < dim; k++ {
			src += (lo[k] + idx[k]) * strides[k]
		}
		dst := 0
		for k := 0; k < dim; k++ {
			dst += idx[k] * outStrides[k]
		}
		out.Data[dst] = img.Data[src]
		increment(idx, newShape)
	}
	return out, nil
}

// increment advances a multi-index in row-major order.
func increment(idx, shape []int) {
	for k := len(idx) - 1; k >= 0; k-- {
		idx[k]++
		if idx[k] < shape[k] {
			return
		}
		idx[k] = 0
	}
}

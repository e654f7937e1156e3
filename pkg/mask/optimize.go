package mask

import (
	"fmt"

	"neuroatlas/pkg/volume"
)

// Options selects the optimizer stages. Both stages are optional; a zero
// value leaves the stage off.
type Options struct {
	// ClosingRadius enables morphological closing with an ellipsoidal
	// structuring element of this physical radius (µm) when positive.
	ClosingRadius float64

	// PerSlice switches 3-D closing to independent 2-D closing of each slice
	// perpendicular to SliceAxis. Required when the in-plane spacing differs
	// from the stacking spacing enough that a single 3-D ellipsoid would be
	// geometrically wrong.
	PerSlice  bool
	SliceAxis int

	// MinComponentSize prunes connected components whose physical size (µm²
	// in 2-D, µm³ in 3-D) is strictly below this value when positive.
	MinComponentSize float64
}

// Optimize cleans a binary mask in two stages: optional morphological
// closing, then optional pruning of small connected components. The result
// is always a uint8 {0, 1} image and the operation is idempotent for fixed
// options.
func Optimize(img *volume.Image, opts Options) (*volume.Image, error) {
	if !img.IsBinary() {
		return nil, fmt.Errorf("%w: sample values outside {0, 1}", ErrInvalidMask)
	}

	out := img
	if opts.ClosingRadius > 0 {
		var err error
		if opts.PerSlice {
			out, err = CloseSlices(out, opts.ClosingRadius, opts.SliceAxis)
			if err != nil {
				return nil, err
			}
		} else {
			elem, err := EllipsoidElement(opts.ClosingRadius, out.Spacing)
			if err != nil {
				return nil, err
			}
			out = Close(out, elem)
		}
	}
	if opts.MinComponentSize > 0 {
		var err error
		out, err = Prune(out, opts.MinComponentSize)
		if err != nil {
			return nil, err
		}
	}
	if out == img {
		out = img.Clone()
	}
	return out.Cast(volume.Uint8), nil
}

// And returns the voxel-wise intersection of two binary masks of identical
// shape.
func And(a, b *volume.Image) (*volume.Image, error) {
	return combine(a, b, func(x, y float64) float64 {
		if x == 1 && y == 1 {
			return 1
		}
		return 0
	})
}

// AndNot returns the voxels of a that are not in b, both binary masks of
// identical shape.
func AndNot(a, b *volume.Image) (*volume.Image, error) {
	return combine(a, b, func(x, y float64) float64 {
		if x == 1 && y == 0 {
			return 1
		}
		return 0
	})
}

// Or returns the voxel-wise union of two binary masks of identical shape.
func Or(a, b *volume.Image) (*volume.Image, error) {
	return combine(a, b, func(x, y float64) float64 {
		if x == 1 || y == 1 {
			return 1
		}
		return 0
	})
}

func combine(a, b *volume.Image, op func(x, y float64) float64) (*volume.Image, error) {
	if !a.IsBinary() || !b.IsBinary() {
		return nil, fmt.Errorf("%w: sample values outside {0, 1}", ErrInvalidMask)
	}
	if a.Dim() != b.Dim() {
		return nil, fmt.Errorf("%w: dimension mismatch %d vs %d", ErrInvalidMask, a.Dim(), b.Dim())
	}
	for k := range a.Shape {
		if a.Shape[k] != b.Shape[k] {
			return nil, fmt.Errorf("%w: shape mismatch %v vs %v", ErrInvalidMask, a.Shape, b.Shape)
		}
	}
	out := a.Clone()
	out.Pixel = volume.Uint8
	for i := range out.Data {
		out.Data[i] = op(a.Data[i], b.Data[i])
	}
	return out, nil
}

package volume

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"neuroatlas/pkg/orientation"
)

// Reorient returns the image rearranged so that its array axes follow the
// given 3-letter orientation code. This is a metadata-driven permutation and
// flip of the array axes, never a resampling: sample values are moved, not
// interpolated.
//
// The permutation is keyed on the direction matrix alone. If the matrix
// carries a residual in-plane rotation the nearest orientation code is used
// and the residual rotation is preserved in the result's direction matrix;
// an exact 45-degree residual has no nearest code and yields
// orientation.ErrAmbiguousDirection.
func (img *Image) Reorient(code string) (*Image, error) {
	if img.Dim() != 3 {
		return nil, fmt.Errorf("%w: reorientation requires a 3-D image", ErrInvalidImage)
	}
	if err := orientation.Valid(code, 3); err != nil {
		return nil, err
	}
	current, err := orientation.CodeFromMatrix(img.Direction)
	if err != nil {
		return nil, err
	}

	// perm[j] is the source axis for target axis j; flip[j] marks reversal.
	perm := make([]int, 3)
	flip := make([]bool, 3)
	for j := 0; j < 3; j++ {
		found := false
		for k := 0; k < 3; k++ {
			if sameAxis(current[k], code[j]) {
				perm[j] = k
				flip[j] = current[k] != code[j]
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("%w: no axis of %q matches %q", orientation.ErrInvalidCode, current, code)
		}
	}

	newShape := []int{img.Shape[perm[0]], img.Shape[perm[1]], img.Shape[perm[2]]}
	newSpacing := []float64{img.Spacing[perm[0]], img.Spacing[perm[1]], img.Spacing[perm[2]]}

	newDirection := mat.NewDense(3, 3, nil)
	for j := 0; j < 3; j++ {
		sign := 1.0
		if flip[j] {
			sign = -1
		}
		for row := 0; row < 3; row++ {
			newDirection.Set(row, j, sign*img.Direction.At(row, perm[j]))
		}
	}

	// A flipped axis moves the first sample to the physical position of the
	// previous last sample along that axis.
	newOrigin := append([]float64(nil), img.Origin...)
	for j := 0; j < 3; j++ {
		if !flip[j] {
			continue
		}
		k := perm[j]
		for row := 0; row < 3; row++ {
			newOrigin[row] += img.Direction.At(row, k) * img.Spacing[k] * float64(img.Shape[k]-1)
		}
	}

	out := &Image{
		Data:      make([]float64, len(img.Data)),
		Shape:     newShape,
		Spacing:   newSpacing,
		Origin:    newOrigin,
		Direction: newDirection,
		Pixel:     img.Pixel,
	}

	srcStrides := img.Strides()
	dstStrides := out.Strides()
	idx := make([]int, 3)
	for range out.Data {
		src := 0
		for j := 0; j < 3; j++ {
			s := idx[j]
			if flip[j] {
				s = newShape[j] - 1 - s
			}
			src += s * srcStrides[perm[j]]
		}
		dst := idx[0]*dstStrides[0] + idx[1]*dstStrides[1] + idx[2]*dstStrides[2]
		out.Data[dst] = img.Data[src]
		increment(idx, newShape)
	}
	return out, nil
}

// sameAxis reports whether two orientation letters name the same anatomical
// axis (possibly with opposite signs).
func sameAxis(a, b byte) bool {
	pairs := map[byte]byte{'R': 'L', 'L': 'R', 'A': 'P', 'P': 'A', 'I': 'S', 'S': 'I'}
	return a == b || pairs[a] == b
}

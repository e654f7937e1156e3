package volume

import (
	"fmt"
	"math"
)

// Resample returns the image interpolated onto a uniform grid with the given
// per-axis spacing, using multilinear interpolation. Origin and direction are
// preserved; the new extent covers the same physical range as the input.
func (img *Image) Resample(spacing []float64) (*Image, error) {
	dim := img.Dim()
	if len(spacing) != dim {
		return nil, fmt.Errorf("%w: spacing length %d does not match dimension %d", ErrInvalidImage, len(spacing), dim)
	}
	for _, s := range spacing {
		if s <= 0 {
			return nil, fmt.Errorf("%w: non-positive target spacing %v", ErrInvalidImage, spacing)
		}
	}

	newShape := make([]int, dim)
	for k := 0; k < dim; k++ {
		extent := float64(img.Shape[k]-1) * img.Spacing[k]
		newShape[k] = int(math.Round(extent/spacing[k])) + 1
		if newShape[k] < 1 {
			newShape[k] = 1
		}
	}

	n := 1
	for _, s := range newShape {
		n *= s
	}
	out := img.Clone()
	out.Data = make([]float64, n)
	out.Shape = newShape
	out.Spacing = append([]float64(nil), spacing...)

	srcStrides := img.Strides()
	idx := make([]int, dim)
	base := make([]int, dim)
	frac := make([]float64, dim)
	for i := 0; i < n; i++ {
		for k := 0; k < dim; k++ {
			t := float64(idx[k]) * spacing[k] / img.Spacing[k]
			b := int(math.Floor(t))
			if b > img.Shape[k]-1 {
				b = img.Shape[k] - 1
			}
			if b < 0 {
				b = 0
			}
			f := t - float64(b)
			if b == img.Shape[k]-1 {
				f = 0
			}
			base[k], frac[k] = b, f
		}

		// Accumulate over the 2^dim corners of the enclosing cell.
		var value float64
		for corner := 0; corner < 1<<dim; corner++ {
			weight := 1.0
			src := 0
			for k := 0; k < dim; k++ {
				if corner&(1<<k) != 0 {
					weight *= frac[k]
					src += (base[k] + 1) * srcStrides[k]
				} else {
					weight *= 1 - frac[k]
					src += base[k] * srcStrides[k]
				}
			}
			if weight != 0 {
				value += weight * img.Data[src]
			}
		}
		out.Data[i] = value
		increment(idx, newShape)
	}
	return out, nil
}

// Package mask implements binary mask clean-up for anatomical volumes:
// morphological closing with a physically sized ellipsoidal structuring
// element and connected-component pruning by physical size.
package mask

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidMask reports a mask that is not binary or optimizer parameters
// that are out of range.
var ErrInvalidMask = errors.New("invalid binary mask")

// Element is a structuring element given as a set of integer offsets from the
// center sample, one offset vector per neighbor.
type Element struct {
	Radii   []int
	Offsets [][]int
}

// EllipsoidElement builds an ellipsoidal structuring element for a physical
// radius in µm. The half-extent along each axis is ceil(radius / spacing[axis])
// samples, so the element covers at least the requested physical extent
// regardless of anisotropy.
func EllipsoidElement(radius float64, spacing []float64) (Element, error) {
	if radius <= 0 {
		return Element{}, fmt.Errorf("%w: structuring element radius %v must be positive", ErrInvalidMask, radius)
	}
	dim := len(spacing)
	radii := make([]int, dim)
	for k, s := range spacing {
		if s <= 0 {
			return Element{}, fmt.Errorf("%w: non-positive spacing %v", ErrInvalidMask, spacing)
		}
		radii[k] = int(math.Ceil(radius / s))
	}

	var offsets [][]int
	offset := make([]int, dim)
	for k := range offset {
		offset[k] = -radii[k]
	}
	for {
		// Inside the unit ellipsoid after per-axis normalisation.
		var sum float64
		for k, d := range offset {
			r := float64(radii[k])
			sum += float64(d) * float64(d) / (r * r)
		}
		if sum <= 1 {
			offsets = append(offsets, append([]int(nil), offset...))
		}

		k := dim - 1
		for ; k >= 0; k-- {
			offset[k]++
			if offset[k] <= radii[k] {
				break
			}
			offset[k] = -radii[k]
		}
		if k < 0 {
			break
		}
	}
	return Element{Radii: radii, Offsets: offsets}, nil
}

package mask

import (
	"fmt"

	"neuroatlas/pkg/volume"
)

// Component is one maximal face-connected set of foreground samples.
type Component struct {
	// Indices holds the flat row-major indices of the member samples.
	Indices []int

	// Lo and Hi are the half-open per-axis bounding box of the component.
	Lo, Hi []int

	// Size is the physical size of the component: the sample count times the
	// product of the spacing over all axes (µm² for 2-D, µm³ for 3-D).
	Size float64
}

// Count returns the number of samples in the component.
func (c Component) Count() int { return len(c.Indices) }

// Components labels all foreground connected components of a binary mask
// using face connectivity (4-neighborhood in 2-D, 6 in 3-D) by breadth-first
// flood fill. Components come back in first-encounter (row-major) order.
func Components(img *volume.Image) ([]Component, error) {
	if !img.IsBinary() {
		return nil, fmt.Errorf("%w: sample values outside {0, 1}", ErrInvalidMask)
	}
	dim := img.Dim()
	strides := img.Strides()

	unit := 1.0
	for _, s := range img.Spacing {
		unit *= s
	}

	visited := make([]bool, len(img.Data))
	var components []Component
	pos := make([]int, dim)
	neighbor := make([]int, dim)

	for seed := range img.Data {
		if visited[seed] || img.Data[seed] == 0 {
			continue
		}

		comp := Component{Lo: make([]int, dim), Hi: make([]int, dim)}
		for k := 0; k < dim; k++ {
			comp.Lo[k] = img.Shape[k]
		}
		queue := []int{seed}
		visited[seed] = true
		for len(queue) > 0 {
			cur := queue[0]
			queue = queue[1:]
			comp.Indices = append(comp.Indices, cur)

			unflatten(cur, strides, pos)
			for k := 0; k < dim; k++ {
				if pos[k] < comp.Lo[k] {
					comp.Lo[k] = pos[k]
				}
				if pos[k]+1 > comp.Hi[k] {
					comp.Hi[k] = pos[k] + 1
				}
			}

			for k := 0; k < dim; k++ {
				for _, step := range [2]int{-1, 1} {
					copy(neighbor, pos)
					neighbor[k] += step
					if neighbor[k] < 0 || neighbor[k] >= img.Shape[k] {
						continue
					}
					flat := 0
					for j := 0; j < dim; j++ {
						flat += neighbor[j] * strides[j]
					}
					if !visited[flat] && img.Data[flat] == 1 {
						visited[flat] = true
						queue = append(queue, flat)
					}
				}
			}
		}
		comp.Size = float64(len(comp.Indices)) * unit
		components = append(components, comp)
	}
	return components, nil
}

// Prune zeroes every component whose physical size is strictly below minSize
// and returns the remaining mask. Components at or above the threshold pass
// through untouched, which makes pruning idempotent.
func Prune(img *volume.Image, minSize float64) (*volume.Image, error) {
	if minSize <= 0 {
		return nil, fmt.Errorf("%w: minimum component size %v must be positive", ErrInvalidMask, minSize)
	}
	components, err := Components(img)
	if err != nil {
		return nil, err
	}
	out := img.Clone()
	for _, comp := range components {
		if comp.Size >= minSize {
			continue
		}
		for _, i := range comp.Indices {
			out.Data[i] = 0
		}
	}
	return out, nil
}

// unflatten converts a flat row-major index into a multi-index.
func unflatten(flat int, strides, pos []int) {
	for k := range strides {
		pos[k] = flat / strides[k]
		flat %= strides[k]
	}
}

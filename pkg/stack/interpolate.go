// Package stack linearly interpolates ordered anatomical plane stacks onto a
// finer stacking grid. It refuses gaps that are not exact multiples of the
// target spacing rather than silently rounding, because a rounded stacking
// grid would shift every downstream physical coordinate.
package stack

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"neuroatlas/pkg/volume"
)

// ErrInvalidStack reports malformed input: too few planes, mismatched plane
// shapes, a wrong gap count or a non-positive target.
var ErrInvalidStack = errors.New("invalid plane stack")

// ErrIncompatibleSpacing reports an inter-plane gap that is not a positive
// exact multiple of the target spacing.
var ErrIncompatibleSpacing = errors.New("incompatible stack spacing")

// divisions tolerance for floating-point gap/target ratios.
const ratioTolerance = 1e-9

// Interpolate resamples an ordered plane stack to the given target spacing by
// element-wise linear interpolation between consecutive planes.
//
// gaps holds the physical distance between each consecutive plane pair:
// either exactly one shared value for the whole stack or one value per pair
// (len(planes)-1 entries). Every gap must be a positive exact multiple of
// target. Each pair contributes the first plane followed by gap/target - 1
// interpolated planes; the final input plane closes the stack, so a uniform
// gap of 3*target over n planes yields 3*(n-1)+1 output planes. No plane is
// emitted twice.
func Interpolate(planes []volume.Plane, gaps []float64, target float64) ([]volume.Plane, error) {
	if len(planes) < 2 {
		return nil, fmt.Errorf("%w: need at least 2 planes, have %d", ErrInvalidStack, len(planes))
	}
	if target <= 0 {
		return nil, fmt.Errorf("%w: target spacing %v must be positive", ErrInvalidStack, target)
	}
	rows, cols := planes[0].Rows, planes[0].Cols
	for i, p := range planes {
		if p.Rows != rows || p.Cols != cols {
			return nil, fmt.Errorf("%w: plane %d is %dx%d, want %dx%d", ErrInvalidStack, i, p.Rows, p.Cols, rows, cols)
		}
	}

	switch len(gaps) {
	case 1:
		shared := gaps[0]
		gaps = make([]float64, len(planes)-1)
		for i := range gaps {
			gaps[i] = shared
		}
	case len(planes) - 1:
	default:
		return nil, fmt.Errorf("%w: %d gaps for %d planes, want 1 or %d", ErrInvalidStack, len(gaps), len(planes), len(planes)-1)
	}

	// Validate every gap before interpolating anything.
	steps := make([]int, len(gaps))
	for i, g := range gaps {
		ratio := g / target
		rounded := math.Round(ratio)
		if g <= 0 || rounded < 1 || math.Abs(ratio-rounded) > ratioTolerance {
			return nil, fmt.Errorf("%w: gap %v is not a positive multiple of target %v", ErrIncompatibleSpacing, g, target)
		}
		steps[i] = int(rounded)
	}

	// Pair segments are independent; interpolate them concurrently and
	// reassemble in index order.
	segments := make([][]volume.Plane, len(gaps))
	var wg sync.WaitGroup
	for i := range gaps {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			segments[i] = interpolatePair(planes[i], planes[i+1], steps[i])
		}(i)
	}
	wg.Wait()

	total := 1
	for _, s := range steps {
		total += s
	}
	out := make([]volume.Plane, 0, total)
	for _, seg := range segments {
		out = append(out, seg...)
	}
	return append(out, clonePlane(planes[len(planes)-1])), nil
}

// interpolatePair emits lo followed by steps-1 convex combinations of lo and
// hi at t = k/steps; hi itself is left for the next segment or the caller.
func interpolatePair(lo, hi volume.Plane, steps int) []volume.Plane {
	out := make([]volume.Plane, 0, steps)
	out = append(out, clonePlane(lo))
	for k := 1; k < steps; k++ {
		t := float64(k) / float64(steps)
		p := volume.NewPlane(lo.Rows, lo.Cols)
		for j := range p.Data {
			p.Data[j] = (1-t)*lo.Data[j] + t*hi.Data[j]
		}
		out = append(out, p)
	}
	return out
}

func clonePlane(p volume.Plane) volume.Plane {
	out := volume.NewPlane(p.Rows, p.Cols)
	copy(out.Data, p.Data)
	return out
}

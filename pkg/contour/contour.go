// Package contour extracts closed boundary polylines from binary mask
// planes. Boundaries follow the 0.5 iso-level between foreground and
// background samples, so a mask pixel at index (r, c) is enclosed by contour
// coordinates offset half a pixel outward from its center.
package contour

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"neuroatlas/pkg/mask"
	"neuroatlas/pkg/volume"
)

// ErrInvalidPlane reports a plane that is not binary or options that are out
// of range.
var ErrInvalidPlane = errors.New("invalid contour input")

// Point is a plane coordinate in index space: Row along the first plane
// axis, Col along the second. Boundary points sit on half-integer positions.
type Point struct {
	Row, Col float64
}

// Polyline is an ordered closed point sequence: the first point is repeated
// as the last.
type Polyline []Point

// Closed reports whether the polyline ends where it starts.
func (p Polyline) Closed() bool {
	return len(p) >= 2 && p[0] == p[len(p)-1]
}

// Options controls contour extraction.
type Options struct {
	// SegmentLength greedily thins contour vertices so consecutive kept
	// vertices are at least this far apart; 0 keeps every traced vertex.
	SegmentLength float64

	// UseVoxels measures SegmentLength in index steps instead of physical
	// distance.
	UseVoxels bool

	// IncludeHoles traces enclosed background regions as separate closed
	// polylines; otherwise holes are filled before tracing and only outer
	// boundaries are returned.
	IncludeHoles bool

	// Workers caps how many planes are extracted concurrently; 0 or less
	// runs one goroutine per plane.
	Workers int
}

// ExtractPlanes extracts contours from an ordered sequence of binary planes,
// one polyline list per plane, preserving plane order. Planes are processed
// concurrently; they share no state.
func ExtractPlanes(planes []volume.Plane, spacing [2]float64, opts Options) ([][]Polyline, error) {
	if opts.SegmentLength < 0 {
		return nil, fmt.Errorf("%w: negative segment length %v", ErrInvalidPlane, opts.SegmentLength)
	}
	var sem chan struct{}
	if opts.Workers > 0 {
		sem = make(chan struct{}, opts.Workers)
	}
	out := make([][]Polyline, len(planes))
	errs := make([]error, len(planes))
	var wg sync.WaitGroup
	for i := range planes {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if sem != nil {
				sem <- struct{}{}
				defer func() { <-sem }()
			}
			out[i], errs[i] = Extract(planes[i], spacing, opts)
		}(i)
	}
	wg.Wait()
	for i, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("plane %d: %w", i, err)
		}
	}
	return out, nil
}

// Extract extracts the closed contours of a single binary plane: one outer
// polyline per connected component, plus one polyline per hole when
// requested, in component discovery order.
func Extract(plane volume.Plane, spacing [2]float64, opts Options) ([]Polyline, error) {
	if opts.SegmentLength < 0 {
		return nil, fmt.Errorf("%w: negative segment length %v", ErrInvalidPlane, opts.SegmentLength)
	}
	img, err := volume.New(plane.Data, []int{plane.Rows, plane.Cols}, []float64{spacing[0], spacing[1]})
	if err != nil {
		return nil, err
	}
	components, err := mask.Components(img)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPlane, err)
	}

	var contours []Polyline
	for _, comp := range components {
		rows := comp.Hi[0] - comp.Lo[0]
		cols := comp.Hi[1] - comp.Lo[1]

		// Component-local image padded by one background pixel on every
		// side, so every boundary closes inside the grid.
		local := make([]uint8, (rows+2)*(cols+2))
		for _, flat := range comp.Indices {
			r := flat/plane.Cols - comp.Lo[0]
			c := flat%plane.Cols - comp.Lo[1]
			local[(r+1)*(cols+2)+c+1] = 1
		}
		if !opts.IncludeHoles {
			fillHoles(local, rows+2, cols+2)
		}

		loops := traceBoundaries(local, rows+2, cols+2)
		for _, loop := range loops {
			// Undo the pad and the component offset; corner coordinates sit
			// half a pixel off the pixel-center grid.
			for j := range loop {
				loop[j].Row += float64(comp.Lo[0]) - 1.5
				loop[j].Col += float64(comp.Lo[1]) - 1.5
			}
			if opts.SegmentLength > 0 {
				loop = simplify(loop, spacing, opts.SegmentLength, opts.UseVoxels)
			}
			contours = append(contours, loop)
		}
	}
	return contours, nil
}

// fillHoles sets every background pixel not reachable from the image border
// to foreground. The input is padded, so the whole border is background and
// a single flood fill finds all outside pixels.
func fillHoles(data []uint8, rows, cols int) {
	outside := make([]bool, len(data))
	queue := []int{0}
	outside[0] = true
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		r, c := cur/cols, cur%cols
		for _, d := range [4][2]int{{-1, 0}, {1, 0}, {0, -1}, {0, 1}} {
			nr, nc := r+d[0], c+d[1]
			if nr < 0 || nr >= rows || nc < 0 || nc >= cols {
				continue
			}
			n := nr*cols + nc
			if !outside[n] && data[n] == 0 {
				outside[n] = true
				queue = append(queue, n)
			}
		}
	}
	for i := range data {
		if data[i] == 0 && !outside[i] {
			data[i] = 1
		}
	}
}

// simplify greedily drops vertices until the distance from the last kept
// vertex exceeds segLength, then re-closes the polyline. Physical distance
// weights the index deltas by the per-axis spacing.
func simplify(loop Polyline, spacing [2]float64, segLength float64, useVoxels bool) Polyline {
	if len(loop) < 3 {
		return loop
	}
	wr, wc := spacing[0], spacing[1]
	if useVoxels {
		wr, wc = 1, 1
	}
	// The closing duplicate is re-added after thinning.
	open := loop[:len(loop)-1]
	kept := Polyline{open[0]}
	for _, p := range open[1:] {
		last := kept[len(kept)-1]
		dr := (p.Row - last.Row) * wr
		dc := (p.Col - last.Col) * wc
		if math.Sqrt(dr*dr+dc*dc) > segLength {
			kept = append(kept, p)
		}
	}
	return append(kept, kept[0])
}

package mask

import (
	"fmt"
	"sync"

	"gonum.org/v1/gonum/mat"

	"neuroatlas/pkg/volume"
)

func identity2() *mat.Dense {
	m := mat.NewDense(2, 2, nil)
	m.Set(0, 0, 1)
	m.Set(1, 1, 1)
	return m
}

// dilate sets every sample covered by the element around any foreground
// sample. Samples outside the image count as background, so the mask may grow
// up to but never past the border.
func dilate(img *volume.Image, elem Element) *volume.Image {
	return applyElement(img, elem, 0, 1)
}

// erode clears every sample whose element neighborhood is not entirely
// foreground. Samples outside the image count as foreground, so a mask
// touching the border is not eaten away from outside.
func erode(img *volume.Image, elem Element) *volume.Image {
	return applyElement(img, elem, 1, 0)
}

// applyElement scans the element neighborhood of every sample looking for
// hit. border stands in for out-of-bounds neighbors. For dilation
// (border 0, hit 1) the first foreground neighbor wins; for erosion
// (border 1, hit 0) the first background neighbor clears the sample.
func applyElement(img *volume.Image, elem Element, border, hit float64) *volume.Image {
	out := img.Clone()
	dim := img.Dim()
	strides := img.Strides()
	idx := make([]int, dim)
	pos := make([]int, dim)
	for i := range out.Data {
		found := false
	neighbors:
		for _, off := range elem.Offsets {
			v := border
			inside := true
			for k := 0; k < dim; k++ {
				pos[k] = idx[k] + off[k]
				if pos[k] < 0 || pos[k] >= img.Shape[k] {
					inside = false
					break
				}
			}
			if inside {
				src := 0
				for k := 0; k < dim; k++ {
					src += pos[k] * strides[k]
				}
				v = img.Data[src]
			}
			if v == hit {
				found = true
				break neighbors
			}
		}
		if found {
			out.Data[i] = hit
		} else {
			out.Data[i] = 1 - hit
		}
		incrementIndex(idx, img.Shape)
	}
	return out
}

// Close performs morphological closing: dilation followed by erosion with the
// same element and the asymmetric border policy above. Closing fills gaps and
// concavities narrower than the element without shrinking the mask anywhere.
func Close(img *volume.Image, elem Element) *volume.Image {
	return erode(dilate(img, elem), elem)
}

// CloseSlices applies 2-D closing independently to every slice of a 3-D mask
// taken perpendicular to the given axis, using the element built from the two
// remaining in-plane spacings. Slices are processed concurrently and written
// back in place along the original axis order.
func CloseSlices(img *volume.Image, radius float64, axis int) (*volume.Image, error) {
	if img.Dim() != 3 {
		return nil, fmt.Errorf("%w: per-slice closing requires a 3-D mask", ErrInvalidMask)
	}
	if axis < 0 || axis > 2 {
		return nil, fmt.Errorf("%w: slice axis %d outside [0, 2]", ErrInvalidMask, axis)
	}

	// In-plane axes in ascending order.
	planeAxes := make([]int, 0, 2)
	for k := 0; k < 3; k++ {
		if k != axis {
			planeAxes = append(planeAxes, k)
		}
	}
	elem, err := EllipsoidElement(radius, []float64{img.Spacing[planeAxes[0]], img.Spacing[planeAxes[1]]})
	if err != nil {
		return nil, err
	}

	out := img.Clone()
	strides := img.Strides()
	rows, cols := img.Shape[planeAxes[0]], img.Shape[planeAxes[1]]

	var wg sync.WaitGroup
	for s := 0; s < img.Shape[axis]; s++ {
		wg.Add(1)
		go func(s int) {
			defer wg.Done()
			slice := &volume.Image{
				Data:      make([]float64, rows*cols),
				Shape:     []int{rows, cols},
				Spacing:   []float64{img.Spacing[planeAxes[0]], img.Spacing[planeAxes[1]]},
				Origin:    make([]float64, 2),
				Direction: identity2(),
				Pixel:     volume.Uint8,
			}
			for r := 0; r < rows; r++ {
				for c := 0; c < cols; c++ {
					src := s*strides[axis] + r*strides[planeAxes[0]] + c*strides[planeAxes[1]]
					slice.Data[r*cols+c] = img.Data[src]
				}
			}
			closed := Close(slice, elem)
			for r := 0; r < rows; r++ {
				for c := 0; c < cols; c++ {
					dst := s*strides[axis] + r*strides[planeAxes[0]] + c*strides[planeAxes[1]]
					out.Data[dst] = closed.Data[r*cols+c]
				}
			}
		}(s)
	}
	wg.Wait()
	return out, nil
}

// incrementIndex advances a row-major multi-index.
func incrementIndex(idx, shape []int) {
	for k := len(idx) - 1; k >= 0; k-- {
		idx[k]++
		if idx[k] < shape[k] {
			return
		}
		idx[k] = 0
	}
}

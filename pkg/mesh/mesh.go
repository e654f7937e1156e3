// Package mesh converts binary region masks into triangle surface meshes
// suitable for 3-D printing and surface rendering.
package mesh

import (
	"errors"
	"fmt"

	"neuroatlas/pkg/volume"
)

var ErrInvalidMesh = errors.New("invalid mesh input")

// Triangle is a single surface facet with an outward-facing unit normal.
// Vertex coordinates are physical, in µm.
type Triangle struct {
	Normal  [3]float32
	Vertex1 [3]float32
	Vertex2 [3]float32
	Vertex3 [3]float32
}

// face describes one of the six axis-aligned voxel faces: the axis normal
// points along, its sign, and the four face corners as voxel-centre offsets.
type face struct {
	axis    int
	sign    float32
	corners [4][3]float32
}

var voxelFaces = [6]face{
	{0, -1, [4][3]float32{{-.5, -.5, -.5}, {-.5, -.5, .5}, {-.5, .5, .5}, {-.5, .5, -.5}}},
	{0, 1, [4][3]float32{{.5, -.5, -.5}, {.5, .5, -.5}, {.5, .5, .5}, {.5, -.5, .5}}},
	{1, -1, [4][3]float32{{-.5, -.5, -.5}, {.5, -.5, -.5}, {.5, -.5, .5}, {-.5, -.5, .5}}},
	{1, 1, [4][3]float32{{-.5, .5, -.5}, {-.5, .5, .5}, {.5, .5, .5}, {.5, .5, -.5}}},
	{2, -1, [4][3]float32{{-.5, -.5, -.5}, {-.5, .5, -.5}, {.5, .5, -.5}, {.5, -.5, -.5}}},
	{2, 1, [4][3]float32{{-.5, -.5, .5}, {.5, -.5, .5}, {.5, .5, .5}, {-.5, .5, .5}}},
}

// FromMask extracts the voxel surface of a binary mask as a triangle mesh.
// Every mask face adjacent to background or to the volume border contributes
// two triangles, so the result is a closed surface for any non-empty mask.
// Coordinates are physical: voxel index scaled by spacing plus the origin.
func FromMask(img *volume.Image) ([]Triangle, error) {
	if img.Dim() != 3 {
		return nil, fmt.Errorf("%w: surface extraction requires a 3-D mask", ErrInvalidMesh)
	}
	if !img.IsBinary() {
		return nil, fmt.Errorf("%w: mask is not binary", ErrInvalidMesh)
	}

	strides := img.Strides()
	at := func(i, j, k int) float64 {
		if i < 0 || j < 0 || k < 0 || i >= img.Shape[0] || j >= img.Shape[1] || k >= img.Shape[2] {
			return 0
		}
		return img.Data[i*strides[0]+j*strides[1]+k*strides[2]]
	}

	var triangles []Triangle
	for i := 0; i < img.Shape[0]; i++ {
		for j := 0; j < img.Shape[1]; j++ {
			for k := 0; k < img.Shape[2]; k++ {
				if at(i, j, k) == 0 {
					continue
				}
				pos := [3]int{i, j, k}
				for _, f := range voxelFaces {
					neighbour := pos
					neighbour[f.axis] += int(f.sign)
					if at(neighbour[0], neighbour[1], neighbour[2]) != 0 {
						continue
					}
					triangles = append(triangles, faceTriangles(img, pos, f)...)
				}
			}
		}
	}
	if len(triangles) == 0 {
		return nil, fmt.Errorf("%w: mask is empty", ErrInvalidMesh)
	}
	return triangles, nil
}

// faceTriangles splits one exposed voxel face into two triangles wound
// counter-clockwise as seen from outside the mask.
func faceTriangles(img *volume.Image, pos [3]int, f face) []Triangle {
	var normal [3]float32
	normal[f.axis] = f.sign

	var corners [4][3]float32
	for c, offset := range f.corners {
		for k := 0; k < 3; k++ {
			corners[c][k] = float32((float64(pos[k])+float64(offset[k]))*img.Spacing[k] + img.Origin[k])
		}
	}
	return []Triangle{
		{Normal: normal, Vertex1: corners[0], Vertex2: corners[1], Vertex3: corners[2]},
		{Normal: normal, Vertex1: corners[0], Vertex2: corners[2], Vertex3: corners[3]},
	}
}

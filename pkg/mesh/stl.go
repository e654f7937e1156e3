package mesh

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"os"
)

// stlHeaderSize is the fixed-length comment block opening a binary STL file.
const stlHeaderSize = 80

// WriteSTL writes triangles to path in binary STL format: an 80-byte header,
// a uint32 facet count and 50 bytes per facet, all little-endian.
func WriteSTL(path string, triangles []Triangle) error {
	if len(triangles) == 0 {
		return fmt.Errorf("%w: no triangles to write", ErrInvalidMesh)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating STL file: %w", err)
	}

	w := bufio.NewWriter(f)
	var header [stlHeaderSize]byte
	copy(header[:], "neuroatlas mask surface")
	if _, err := w.Write(header[:]); err != nil {
		f.Close()
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(len(triangles))); err != nil {
		f.Close()
		return err
	}
	for _, t := range triangles {
		for _, vec := range [][3]float32{t.Normal, t.Vertex1, t.Vertex2, t.Vertex3} {
			if err := binary.Write(w, binary.LittleEndian, vec); err != nil {
				f.Close()
				return err
			}
		}
		// Attribute byte count, unused.
		if err := binary.Write(w, binary.LittleEndian, uint16(0)); err != nil {
			f.Close()
			return err
		}
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

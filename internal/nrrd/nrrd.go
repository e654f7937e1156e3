// Package nrrd reads and writes volumetric images as NRRD files: a plain
// text header followed by raw or gzip little-endian sample data. Only the
// fields the rest of the tool produces are supported; unknown header fields
// are ignored on read.
//
// NRRD orders axes fastest-first while images store the last axis
// contiguous, so sizes and space directions are reversed between the two.
package nrrd

import (
	"bufio"
	"compress/gzip"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"

	"neuroatlas/pkg/volume"
)

// ErrFormat reports a file that is not a readable NRRD of the supported
// subset.
var ErrFormat = errors.New("unsupported nrrd file")

// ErrExists reports a write target that already exists without the overwrite
// flag set.
var ErrExists = errors.New("output file already exists")

const magic = "NRRD0004"

// Write stores an image at path, gzip-compressing the sample data when
// compress is set. An existing file is an error unless overwrite is set; the
// check runs before anything is written.
func Write(path string, img *volume.Image, compress, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%w: %s", ErrExists, path)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("writing nrrd: %w", err)
	}
	defer f.Close()
	if err := Encode(f, img, compress); err != nil {
		return fmt.Errorf("writing nrrd %s: %w", path, err)
	}
	return f.Close()
}

// Read loads an image from path.
func Read(path string) (*volume.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("reading nrrd: %w", err)
	}
	defer f.Close()
	img, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("reading nrrd %s: %w", path, err)
	}
	return img, nil
}

// Encode writes the header and sample data to w.
func Encode(w io.Writer, img *volume.Image, compress bool) error {
	if err := img.Validate(); err != nil {
		return err
	}
	dim := img.Dim()

	var header strings.Builder
	fmt.Fprintf(&header, "%s\n", magic)
	fmt.Fprintf(&header, "type: %s\n", img.Pixel)
	fmt.Fprintf(&header, "dimension: %d\n", dim)
	fmt.Fprintf(&header, "space dimension: %d\n", dim)

	sizes := make([]string, dim)
	directions := make([]string, dim)
	origin := make([]string, dim)
	for k := 0; k < dim; k++ {
		// NRRD axis k is image axis dim-1-k.
		a := dim - 1 - k
		sizes[k] = strconv.Itoa(img.Shape[a])
		comps := make([]string, dim)
		for row := 0; row < dim; row++ {
			comps[row] = formatFloat(img.Direction.At(row, a) * img.Spacing[a])
		}
		directions[k] = "(" + strings.Join(comps, ",") + ")"
		origin[k] = formatFloat(img.Origin[k])
	}
	fmt.Fprintf(&header, "sizes: %s\n", strings.Join(sizes, " "))
	fmt.Fprintf(&header, "space directions: %s\n", strings.Join(directions, " "))
	fmt.Fprintf(&header, "space origin: (%s)\n", strings.Join(origin, ","))
	fmt.Fprintf(&header, "endian: little\n")
	if compress {
		fmt.Fprintf(&header, "encoding: gzip\n")
	} else {
		fmt.Fprintf(&header, "encoding: raw\n")
	}
	fmt.Fprintf(&header, "\n")

	if _, err := io.WriteString(w, header.String()); err != nil {
		return err
	}

	out := w
	var gz *gzip.Writer
	if compress {
		gz = gzip.NewWriter(w)
		out = gz
	}
	if err := writeSamples(out, img); err != nil {
		return err
	}
	if gz != nil {
		return gz.Close()
	}
	return nil
}

// Decode reads one image from r.
func Decode(r io.Reader) (*volume.Image, error) {
	br := bufio.NewReader(r)
	line, err := br.ReadString('\n')
	if err != nil {
		return nil, fmt.Errorf("%w: missing magic", ErrFormat)
	}
	if !strings.HasPrefix(strings.TrimSpace(line), "NRRD") {
		return nil, fmt.Errorf("%w: bad magic %q", ErrFormat, strings.TrimSpace(line))
	}

	fields := map[string]string{}
	for {
		line, err = br.ReadString('\n')
		if err != nil {
			return nil, fmt.Errorf("%w: truncated header", ErrFormat)
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			break
		}
		if strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			return nil, fmt.Errorf("%w: malformed header line %q", ErrFormat, line)
		}
		fields[strings.TrimSpace(key)] = strings.TrimSpace(strings.TrimPrefix(value, "="))
	}

	dim, err := strconv.Atoi(fields["dimension"])
	if err != nil || (dim != 2 && dim != 3) {
		return nil, fmt.Errorf("%w: dimension %q", ErrFormat, fields["dimension"])
	}
	pixel, err := parseType(fields["type"])
	if err != nil {
		return nil, err
	}

	sizeFields := strings.Fields(fields["sizes"])
	if len(sizeFields) != dim {
		return nil, fmt.Errorf("%w: sizes %q", ErrFormat, fields["sizes"])
	}
	shape := make([]int, dim)
	n := 1
	for k, s := range sizeFields {
		v, err := strconv.Atoi(s)
		if err != nil || v <= 0 {
			return nil, fmt.Errorf("%w: sizes %q", ErrFormat, fields["sizes"])
		}
		shape[dim-1-k] = v
		n *= v
	}

	spacing := make([]float64, dim)
	direction := mat.NewDense(dim, dim, nil)
	vectors, err := parseVectors(fields["space directions"], dim)
	if err != nil {
		return nil, err
	}
	for k, vec := range vectors {
		a := dim - 1 - k
		norm := 0.0
		for _, c := range vec {
			norm += c * c
		}
		norm = math.Sqrt(norm)
		if norm == 0 {
			return nil, fmt.Errorf("%w: zero space direction", ErrFormat)
		}
		spacing[a] = norm
		for row := 0; row < dim; row++ {
			direction.Set(row, a, vec[row]/norm)
		}
	}

	origin := make([]float64, dim)
	if raw, ok := fields["space origin"]; ok {
		vecs, err := parseVectors(raw, dim)
		if err != nil || len(vecs) != 1 {
			return nil, fmt.Errorf("%w: space origin %q", ErrFormat, raw)
		}
		copy(origin, vecs[0])
	}

	if endian, ok := fields["endian"]; ok && endian != "little" {
		return nil, fmt.Errorf("%w: endian %q", ErrFormat, endian)
	}

	var data io.Reader = br
	switch fields["encoding"] {
	case "raw":
	case "gzip", "gz":
		gz, err := gzip.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrFormat, err)
		}
		defer gz.Close()
		data = gz
	default:
		return nil, fmt.Errorf("%w: encoding %q", ErrFormat, fields["encoding"])
	}

	samples, err := readSamples(data, n, pixel)
	if err != nil {
		return nil, err
	}

	img := &volume.Image{
		Data:      samples,
		Shape:     shape,
		Spacing:   spacing,
		Origin:    origin,
		Direction: direction,
		Pixel:     pixel,
	}
	if err := img.Validate(); err != nil {
		return nil, err
	}
	return img, nil
}

func parseType(s string) (volume.PixelType, error) {
	switch s {
	case "uint8", "uchar", "unsigned char":
		return volume.Uint8, nil
	case "uint32", "unsigned int":
		return volume.Uint32, nil
	case "float":
		return volume.Float32, nil
	case "double":
		return volume.Float64, nil
	}
	return 0, fmt.Errorf("%w: type %q", ErrFormat, s)
}

// parseVectors splits "(a,b,c) (d,e,f)" into float vectors of length dim.
func parseVectors(s string, dim int) ([][]float64, error) {
	var out [][]float64
	for _, field := range strings.Fields(s) {
		field = strings.TrimPrefix(field, "(")
		field = strings.TrimSuffix(field, ")")
		parts := strings.Split(field, ",")
		if len(parts) != dim {
			return nil, fmt.Errorf("%w: vector %q", ErrFormat, field)
		}
		vec := make([]float64, dim)
		for i, p := range parts {
			v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
			if err != nil {
				return nil, fmt.Errorf("%w: vector %q", ErrFormat, field)
			}
			vec[i] = v
		}
		out = append(out, vec)
	}
	return out, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func writeSamples(w io.Writer, img *volume.Image) error {
	bw := bufio.NewWriter(w)
	var buf [8]byte
	for _, v := range img.Data {
		var b []byte
		switch img.Pixel {
		case volume.Uint8:
			buf[0] = uint8(v)
			b = buf[:1]
		case volume.Uint32:
			binary.LittleEndian.PutUint32(buf[:4], uint32(v))
			b = buf[:4]
		case volume.Float32:
			binary.LittleEndian.PutUint32(buf[:4], math.Float32bits(float32(v)))
			b = buf[:4]
		case volume.Float64:
			binary.LittleEndian.PutUint64(buf[:8], math.Float64bits(v))
			b = buf[:8]
		}
		if _, err := bw.Write(b); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func readSamples(r io.Reader, n int, pixel volume.PixelType) ([]float64, error) {
	width := map[volume.PixelType]int{volume.Uint8: 1, volume.Uint32: 4, volume.Float32: 4, volume.Float64: 8}[pixel]
	raw := make([]byte, n*width)
	if _, err := io.ReadFull(r, raw); err != nil {
		return nil, fmt.Errorf("%w: sample data: %v", ErrFormat, err)
	}
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		b := raw[i*width:]
		switch pixel {
		case volume.Uint8:
			out[i] = float64(b[0])
		case volume.Uint32:
			out[i] = float64(binary.LittleEndian.Uint32(b))
		case volume.Float32:
			out[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(b)))
		case volume.Float64:
			out[i] = math.Float64frombits(binary.LittleEndian.Uint64(b))
		}
	}
	return out, nil
}

// Package orientation implements the anatomical orientation-code algebra used
// throughout neuroatlas. An orientation code is a string over the alphabet
// {R, L, A, P, I, S}, one letter per array axis, naming the anatomical
// direction reached when moving from index 0 to the last index along that
// axis. The canonical reference frame is RAI (Right = +x, Anterior = +y,
// Inferior = +z); all stored volumes are normalised to it.
//
// Both volume assembly and volume slicing are expressed purely in terms of
// composing and inverting codes and deriving the corresponding direction
// matrix, so this package is the single source of truth for axis-flip and
// permutation logic.
package orientation

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// ErrInvalidCode reports an orientation code that is malformed: a character
// outside {R, L, A, P, I, S}, a wrong length, or an anatomical axis that is
// named more than once.
var ErrInvalidCode = errors.New("invalid orientation code")

// ErrAmbiguousDirection reports a direction matrix that cannot be uniquely
// decomposed into an orientation code, which happens when an in-plane
// rotation of exactly +/-45 degrees leaves two components of a column with
// equal magnitude.
var ErrAmbiguousDirection = errors.New("direction matrix has no unique orientation code")

// opposite is the fixed anatomical inversion bijection.
var opposite = map[byte]byte{
	'R': 'L', 'L': 'R',
	'A': 'P', 'P': 'A',
	'I': 'S', 'S': 'I',
}

// axisOf maps each letter to its physical axis in the RAI frame.
var axisOf = map[byte]int{
	'R': 0, 'L': 0,
	'A': 1, 'P': 1,
	'I': 2, 'S': 2,
}

// signOf maps each letter to the sign of its unit vector along that axis.
var signOf = map[byte]float64{
	'R': 1, 'L': -1,
	'A': 1, 'P': -1,
	'I': 1, 'S': -1,
}

// letterFor returns the code letter for a physical axis and sign.
func letterFor(axis int, sign float64) byte {
	letters := [3][2]byte{{'R', 'L'}, {'A', 'P'}, {'I', 'S'}}
	if sign >= 0 {
		return letters[axis][0]
	}
	return letters[axis][1]
}

// Invert maps every letter of code to its anatomical opposite (R<->L, A<->P,
// I<->S), preserving order and length. Codes of any length are accepted since
// inversion is defined letter-wise.
func Invert(code string) (string, error) {
	out := make([]byte, len(code))
	for i := 0; i < len(code); i++ {
		o, ok := opposite[code[i]]
		if !ok {
			return "", fmt.Errorf("%w: unexpected character %q in %q", ErrInvalidCode, code[i], code)
		}
		out[i] = o
	}
	return string(out), nil
}

// Valid reports whether code is a well-formed orientation code of the given
// length with each anatomical axis named at most once.
func Valid(code string, length int) error {
	if len(code) != length {
		return fmt.Errorf("%w: %q has length %d, want %d", ErrInvalidCode, code, len(code), length)
	}
	var seen [3]bool
	for i := 0; i < len(code); i++ {
		axis, ok := axisOf[code[i]]
		if !ok {
			return fmt.Errorf("%w: unexpected character %q in %q", ErrInvalidCode, code[i], code)
		}
		if seen[axis] {
			return fmt.Errorf("%w: axis of %q named twice in %q", ErrInvalidCode, code[i], code)
		}
		seen[axis] = true
	}
	return nil
}

// DirectionMatrix returns the orthonormal 3x3 matrix whose column k is the
// unit vector pointing toward the physical direction named by code[k],
// expressed in the canonical RAI frame. DirectionMatrix("RAI") is the
// identity.
func DirectionMatrix(code string) (*mat.Dense, error) {
	if err := Valid(code, 3); err != nil {
		return nil, err
	}
	d := mat.NewDense(3, 3, nil)
	for k := 0; k < 3; k++ {
		d.Set(axisOf[code[k]], k, signOf[code[k]])
	}
	return d, nil
}

// ApplyRotation rotates every column of direction about axis by angle
// (radians) using the Rodrigues axis-angle formula and returns the rotated
// matrix. The rotation is counter-clockwise about axis by the right-hand
// rule, i.e. counter-clockwise as seen with axis pointing toward the viewer.
func ApplyRotation(direction *mat.Dense, axis []float64, angle float64) *mat.Dense {
	n := math.Sqrt(axis[0]*axis[0] + axis[1]*axis[1] + axis[2]*axis[2])
	kx, ky, kz := axis[0]/n, axis[1]/n, axis[2]/n

	c, s := math.Cos(angle), math.Sin(angle)

	// R = cos(t) I + sin(t) [k]x + (1-cos(t)) k k^T
	r := mat.NewDense(3, 3, []float64{
		c + kx*kx*(1-c), kx*ky*(1-c) - kz*s, kx*kz*(1-c) + ky*s,
		ky*kx*(1-c) + kz*s, c + ky*ky*(1-c), ky*kz*(1-c) - kx*s,
		kz*kx*(1-c) - ky*s, kz*ky*(1-c) + kx*s, c + kz*kz*(1-c),
	})

	var out mat.Dense
	out.Mul(r, direction)
	return &out
}

// CodeFromMatrix decomposes direction into the orientation code of its
// dominant axis components. For direction matrices produced by
// DirectionMatrix, possibly composed with a small in-plane rotation, this
// recovers the underlying code. If any column has two components of equal
// magnitude (an exact +/-45 degree rotation) the decomposition is not unique
// and ErrAmbiguousDirection is returned; callers treat this as a warning
// condition rather than guessing.
func CodeFromMatrix(direction mat.Matrix) (string, error) {
	r, c := direction.Dims()
	if r != 3 || c != 3 {
		return "", fmt.Errorf("%w: matrix is %dx%d, want 3x3", ErrInvalidCode, r, c)
	}

	const tol = 1e-9
	code := make([]byte, 3)
	var used [3]bool
	for k := 0; k < 3; k++ {
		best, second := -1.0, -1.0
		axis := 0
		for j := 0; j < 3; j++ {
			v := math.Abs(direction.At(j, k))
			if v > best {
				second = best
				best, axis = v, j
			} else if v > second {
				second = v
			}
		}
		if best-second < tol {
			return "", fmt.Errorf("%w: column %d", ErrAmbiguousDirection, k)
		}
		if used[axis] {
			return "", fmt.Errorf("%w: axis %d dominant in two columns", ErrAmbiguousDirection, axis)
		}
		used[axis] = true
		code[k] = letterFor(axis, direction.At(axis, k))
	}
	return string(code), nil
}

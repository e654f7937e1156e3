package orientation

import (
	"errors"
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
)

// TestInvert verifies the anatomical inversion bijection
func TestInvert(t *testing.T) {
	testCases := []struct {
		code     string
		expected string
	}{
		{"RAI", "LPS"},
		{"LPS", "RAI"},
		{"SPR", "IAL"},
		{"I", "S"},
		{"AL", "PR"},
		{"", ""},
	}

	for _, tc := range testCases {
		result, err := Invert(tc.code)
		if err != nil {
			t.Fatalf("Invert(%q) returned error: %v", tc.code, err)
		}
		if result != tc.expected {
			t.Errorf("Invert(%q): expected %q, got %q", tc.code, tc.expected, result)
		}
	}
}

// TestInvertInvolution verifies that inversion is its own inverse
func TestInvertInvolution(t *testing.T) {
	for _, code := range []string{"RAI", "LPS", "SAL", "PIR", "AIL"} {
		once, err := Invert(code)
		if err != nil {
			t.Fatalf("Invert(%q) returned error: %v", code, err)
		}
		twice, err := Invert(once)
		if err != nil {
			t.Fatalf("Invert(%q) returned error: %v", once, err)
		}
		if twice != code {
			t.Errorf("Invert(Invert(%q)): expected %q, got %q", code, code, twice)
		}
	}
}

// TestInvertInvalid verifies rejection of characters outside the alphabet
func TestInvertInvalid(t *testing.T) {
	for _, code := range []string{"RAX", "rai", "R-I", "12"} {
		if _, err := Invert(code); !errors.Is(err, ErrInvalidCode) {
			t.Errorf("Invert(%q): expected ErrInvalidCode, got %v", code, err)
		}
	}
}

// TestDirectionMatrixIdentity verifies that the canonical code yields the identity
func TestDirectionMatrixIdentity(t *testing.T) {
	d, err := DirectionMatrix("RAI")
	if err != nil {
		t.Fatalf("DirectionMatrix(RAI) returned error: %v", err)
	}

	identity := mat.NewDiagDense(3, []float64{1, 1, 1})
	if !mat.EqualApprox(d, identity, 1e-12) {
		t.Errorf("DirectionMatrix(RAI) is not the identity:\n%v", mat.Formatted(d))
	}
}

func TestDirectionMatrixColumns(t *testing.T) {
	d, err := DirectionMatrix("SPR")
	if err != nil {
		t.Fatalf("DirectionMatrix(SPR) returned error: %v", err)
	}

	expected := mat.NewDense(3, 3, []float64{
		0, 0, 1,
		0, -1, 0,
		-1, 0, 0,
	})
	if !mat.EqualApprox(d, expected, 1e-12) {
		t.Errorf("DirectionMatrix(SPR):\nexpected\n%v\ngot\n%v",
			mat.Formatted(expected), mat.Formatted(d))
	}
}

// TestDirectionMatrixInvalid verifies rejection of malformed codes
func TestDirectionMatrixInvalid(t *testing.T) {
	testCases := []string{
		"RA",   // wrong length
		"RAIS", // wrong length
		"RLA",  // R/L axis twice
		"AAI",  // A axis twice
		"RAX",  // bad character
	}

	for _, code := range testCases {
		if _, err := DirectionMatrix(code); !errors.Is(err, ErrInvalidCode) {
			t.Errorf("DirectionMatrix(%q): expected ErrInvalidCode, got %v", code, err)
		}
	}
}

// TestDirectionMatrixDoubleInversion verifies that the direction matrix of a
// twice-inverted code equals that of the original code.
func TestDirectionMatrixDoubleInversion(t *testing.T) {
	for _, code := range []string{"RAI", "LPS", "SAL", "IAR", "PIL"} {
		once, _ := Invert(code)
		twice, _ := Invert(once)

		d1, err := DirectionMatrix(code)
		if err != nil {
			t.Fatalf("DirectionMatrix(%q) returned error: %v", code, err)
		}
		d2, err := DirectionMatrix(twice)
		if err != nil {
			t.Fatalf("DirectionMatrix(%q) returned error: %v", twice, err)
		}

		if !mat.EqualApprox(d1, d2, 1e-12) {
			t.Errorf("DirectionMatrix(Invert(Invert(%q))) differs from DirectionMatrix(%q)", code, code)
		}
	}
}

// TestApplyRotation verifies a quarter-turn about the z axis
func TestApplyRotation(t *testing.T) {
	d, _ := DirectionMatrix("RAI")
	rotated := ApplyRotation(d, []float64{0, 0, 1}, math.Pi/2)

	// x -> y, y -> -x, z unchanged
	expected := mat.NewDense(3, 3, []float64{
		0, -1, 0,
		1, 0, 0,
		0, 0, 1,
	})
	if !mat.EqualApprox(rotated, expected, 1e-12) {
		t.Errorf("quarter-turn about z:\nexpected\n%v\ngot\n%v",
			mat.Formatted(expected), mat.Formatted(rotated))
	}
}

// TestApplyRotationPreservesOrthonormality checks that rotation keeps columns
// orthonormal for an arbitrary axis and angle.
func TestApplyRotationPreservesOrthonormality(t *testing.T) {
	d, _ := DirectionMatrix("SAL")
	rotated := ApplyRotation(d, []float64{1, 1, 0}, 0.3)

	var product mat.Dense
	product.Mul(rotated.T(), rotated)

	identity := mat.NewDiagDense(3, []float64{1, 1, 1})
	if !mat.EqualApprox(&product, identity, 1e-9) {
		t.Errorf("rotated matrix is not orthonormal: R^T R =\n%v", mat.Formatted(&product))
	}
}

// TestCodeFromMatrix verifies round-tripping codes through their matrices
func TestCodeFromMatrix(t *testing.T) {
	for _, code := range []string{"RAI", "LPS", "SPR", "IAL", "ASR"} {
		d, err := DirectionMatrix(code)
		if err != nil {
			t.Fatalf("DirectionMatrix(%q) returned error: %v", code, err)
		}
		recovered, err := CodeFromMatrix(d)
		if err != nil {
			t.Fatalf("CodeFromMatrix for %q returned error: %v", code, err)
		}
		if recovered != code {
			t.Errorf("CodeFromMatrix: expected %q, got %q", code, recovered)
		}
	}
}

// TestCodeFromMatrixSmallRotation verifies that a small in-plane rotation does
// not change the recovered code.
func TestCodeFromMatrixSmallRotation(t *testing.T) {
	d, _ := DirectionMatrix("IAL")
	rotated := ApplyRotation(d, []float64{0, 0, 1}, 0.2)

	code, err := CodeFromMatrix(rotated)
	if err != nil {
		t.Fatalf("CodeFromMatrix returned error: %v", err)
	}
	if code != "IAL" {
		t.Errorf("expected IAL after small rotation, got %q", code)
	}
}

// TestCodeFromMatrixAmbiguous verifies that an exact 45-degree rotation is
// reported as ambiguous rather than resolved arbitrarily.
func TestCodeFromMatrixAmbiguous(t *testing.T) {
	d, _ := DirectionMatrix("RAI")
	rotated := ApplyRotation(d, []float64{0, 0, 1}, math.Pi/4)

	if _, err := CodeFromMatrix(rotated); !errors.Is(err, ErrAmbiguousDirection) {
		t.Errorf("expected ErrAmbiguousDirection at 45 degrees, got %v", err)
	}
}

package contour

import (
	"math"
	"testing"

	"neuroatlas/pkg/volume"
)

func planeFrom(t *testing.T, rows, cols int, data []float64) volume.Plane {
	t.Helper()
	if len(data) != rows*cols {
		t.Fatalf("bad fixture: %d samples for %dx%d", len(data), rows, cols)
	}
	p := volume.NewPlane(rows, cols)
	copy(p.Data, data)
	return p
}

func squarePlane(t *testing.T) volume.Plane {
	t.Helper()
	p := volume.NewPlane(6, 6)
	for r := 1; r <= 4; r++ {
		for c := 1; c <= 4; c++ {
			p.Set(r, c, 1)
		}
	}
	return p
}

func TestExtractSquare(t *testing.T) {
	contours, err := Extract(squarePlane(t), [2]float64{1, 1}, Options{})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if len(contours) != 1 {
		t.Fatalf("Extract() returned %d contours, want 1", len(contours))
	}
	c := contours[0]
	if !c.Closed() {
		t.Fatal("contour is not closed")
	}
	// A filled square reduces to its four corners plus the closing
	// duplicate, half a pixel outside the foreground.
	if len(c) != 5 {
		t.Fatalf("contour has %d points, want 5: %v", len(c), c)
	}
	want := map[Point]bool{
		{0.5, 0.5}: true, {0.5, 4.5}: true, {4.5, 0.5}: true, {4.5, 4.5}: true,
	}
	for _, p := range c[:4] {
		if !want[p] {
			t.Errorf("unexpected corner %v", p)
		}
		delete(want, p)
	}
	if len(want) != 0 {
		t.Errorf("missing corners: %v", want)
	}
}

func TestExtractClosure(t *testing.T) {
	// An irregular blob with a hole: every contour must be closed for both
	// zero and positive segment lengths.
	data := []float64{
		0, 0, 0, 0, 0, 0, 0,
		0, 1, 1, 1, 1, 1, 0,
		0, 1, 0, 0, 1, 1, 0,
		0, 1, 0, 0, 1, 0, 0,
		0, 1, 1, 1, 1, 0, 0,
		0, 0, 0, 0, 0, 0, 0,
	}
	plane := planeFrom(t, 6, 7, data)

	for _, segLength := range []float64{0, 2.5} {
		contours, err := Extract(plane, [2]float64{1, 1}, Options{SegmentLength: segLength, IncludeHoles: true})
		if err != nil {
			t.Fatalf("Extract(segLength=%v) error = %v", segLength, err)
		}
		if len(contours) == 0 {
			t.Fatalf("Extract(segLength=%v) returned no contours", segLength)
		}
		for i, c := range contours {
			if !c.Closed() {
				t.Errorf("segLength=%v: contour %d is not closed: %v", segLength, i, c)
			}
		}
	}
}

func TestExtractHoles(t *testing.T) {
	// A square ring: with holes the inner boundary comes back as a second
	// polyline; without, it is filled away.
	p := volume.NewPlane(7, 7)
	for r := 1; r <= 5; r++ {
		for c := 1; c <= 5; c++ {
			if r == 1 || r == 5 || c == 1 || c == 5 {
				p.Set(r, c, 1)
			}
		}
	}

	withHoles, err := Extract(p, [2]float64{1, 1}, Options{IncludeHoles: true})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if len(withHoles) != 2 {
		t.Fatalf("Extract() with holes returned %d contours, want 2", len(withHoles))
	}

	filled, err := Extract(p, [2]float64{1, 1}, Options{})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if len(filled) != 1 {
		t.Errorf("Extract() without holes returned %d contours, want 1", len(filled))
	}
}

func TestExtractComponentsSeparate(t *testing.T) {
	// Two disjoint squares yield one contour each.
	p := volume.NewPlane(5, 9)
	for r := 1; r <= 3; r++ {
		for _, c := range []int{1, 2, 3, 5, 6, 7} {
			p.Set(r, c, 1)
		}
	}
	contours, err := Extract(p, [2]float64{1, 1}, Options{})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if len(contours) != 2 {
		t.Fatalf("Extract() returned %d contours, want 2", len(contours))
	}
}

// staircasePlane builds a blob whose boundary is a dense staircase of unit
// steps, so simplification has vertices to drop.
func staircasePlane(t *testing.T) volume.Plane {
	t.Helper()
	p := volume.NewPlane(7, 7)
	for r := 1; r <= 5; r++ {
		for c := 1; c <= r; c++ {
			p.Set(r, c, 1)
		}
	}
	return p
}

func TestSimplifyPhysicalDistance(t *testing.T) {
	spacing := [2]float64{1, 2}
	dense, err := Extract(staircasePlane(t), spacing, Options{})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	thinned, err := Extract(staircasePlane(t), spacing, Options{SegmentLength: 2.5})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if len(dense) != 1 || len(thinned) != 1 {
		t.Fatalf("contour counts = %d, %d, want 1, 1", len(dense), len(thinned))
	}
	if len(thinned[0]) >= len(dense[0]) {
		t.Errorf("simplification kept %d of %d vertices, want fewer", len(thinned[0]), len(dense[0]))
	}
	c := thinned[0]
	if !c.Closed() {
		t.Fatal("simplified contour is not closed")
	}
	// Greedy thinning guarantees consecutive kept vertices exceed the
	// segment length in physical distance, except across the closing edge.
	for i := 1; i < len(c)-1; i++ {
		dr := (c[i].Row - c[i-1].Row) * spacing[0]
		dc := (c[i].Col - c[i-1].Col) * spacing[1]
		if d := math.Sqrt(dr*dr + dc*dc); d <= 2.5 {
			t.Errorf("kept vertices %d and %d are only %v apart", i-1, i, d)
		}
	}
}

func TestExtractPlanesOrder(t *testing.T) {
	empty := volume.NewPlane(6, 6)
	planes := []volume.Plane{empty, squarePlane(t), empty}
	all, err := ExtractPlanes(planes, [2]float64{1, 1}, Options{})
	if err != nil {
		t.Fatalf("ExtractPlanes() error = %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("ExtractPlanes() returned %d plane results, want 3", len(all))
	}
	if len(all[0]) != 0 || len(all[2]) != 0 {
		t.Errorf("empty planes produced contours: %d, %d", len(all[0]), len(all[2]))
	}
	if len(all[1]) != 1 {
		t.Errorf("square plane produced %d contours, want 1", len(all[1]))
	}
}

func TestExtractPlanesWorkersCap(t *testing.T) {
	empty := volume.NewPlane(6, 6)
	planes := []volume.Plane{squarePlane(t), empty, squarePlane(t), empty}

	unbounded, err := ExtractPlanes(planes, [2]float64{1, 1}, Options{})
	if err != nil {
		t.Fatalf("ExtractPlanes() error = %v", err)
	}
	capped, err := ExtractPlanes(planes, [2]float64{1, 1}, Options{Workers: 1})
	if err != nil {
		t.Fatalf("ExtractPlanes(Workers: 1) error = %v", err)
	}

	if len(capped) != len(unbounded) {
		t.Fatalf("capped run returned %d plane results, want %d", len(capped), len(unbounded))
	}
	for i := range unbounded {
		if len(capped[i]) != len(unbounded[i]) {
			t.Fatalf("plane %d: capped run found %d contours, unbounded %d",
				i, len(capped[i]), len(unbounded[i]))
		}
		for j := range unbounded[i] {
			if len(capped[i][j]) != len(unbounded[i][j]) {
				t.Errorf("plane %d contour %d: vertex counts differ under worker cap", i, j)
			}
		}
	}
}

func TestExtractRejectsNonBinary(t *testing.T) {
	p := volume.NewPlane(2, 2)
	p.Set(0, 0, 0.5)
	if _, err := Extract(p, [2]float64{1, 1}, Options{}); err == nil {
		t.Error("Extract() on non-binary plane: expected error, got nil")
	}
}

func TestExtractNegativeSegmentLength(t *testing.T) {
	if _, err := Extract(volume.NewPlane(2, 2), [2]float64{1, 1}, Options{SegmentLength: -1}); err == nil {
		t.Error("Extract() with negative segment length: expected error, got nil")
	}
}

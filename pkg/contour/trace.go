package contour

// Boundary tracing walks the pixel-corner grid along edges separating
// foreground from background, keeping foreground on the left of the walking
// direction. Outer boundaries and hole boundaries fall out of the same walk:
// every unvisited boundary edge seeds one closed loop.

// Corner-grid directions, clockwise: turning right is (d+1)%4, turning left
// is (d+3)%4.
const (
	dirRight = iota
	dirDown
	dirLeft
	dirUp
)

var cornerDelta = [4][2]int{{0, 1}, {1, 0}, {0, -1}, {-1, 0}}

// decisionPixels returns the pixel offsets, relative to a corner, that decide
// the turn for an outgoing direction: the candidate left-turn blocker and the
// straight-ahead carrier.
var decisionPixels = [4][2][2]int{
	dirRight: {{-1, 0}, {0, 0}},
	dirDown:  {{0, 0}, {0, -1}},
	dirLeft:  {{0, -1}, {-1, -1}},
	dirUp:    {{-1, -1}, {-1, 0}},
}

// traceBoundaries extracts every closed boundary loop of a padded binary
// image. Coordinates are corner-grid positions; corner (r, c) is the
// upper-left corner of pixel (r, c). Each returned loop is closed and has
// collinear runs collapsed to their endpoints.
func traceBoundaries(data []uint8, rows, cols int) []Polyline {
	at := func(r, c int) uint8 {
		if r < 0 || r >= rows || c < 0 || c >= cols {
			return 0
		}
		return data[r*cols+c]
	}
	visited := make(map[[3]int]bool)

	var loops []Polyline
	trace := func(startR, startC, startDir int) {
		var pts Polyline
		r, c, d := startR, startC, startDir
		for {
			visited[[3]int{r, c, d}] = true
			pts = append(pts, Point{Row: float64(r), Col: float64(c)})
			r += cornerDelta[d][0]
			c += cornerDelta[d][1]

			aheadLeft := at(r+decisionPixels[d][0][0], c+decisionPixels[d][0][1])
			aheadRight := at(r+decisionPixels[d][1][0], c+decisionPixels[d][1][1])
			switch {
			case aheadLeft == 0:
				d = (d + 3) % 4
			case aheadRight == 1:
				d = (d + 1) % 4
			}
			if r == startR && c == startC && d == startDir {
				break
			}
		}
		loops = append(loops, closeLoop(collapseCollinear(pts)))
	}

	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			if data[r*cols+c] != 1 {
				continue
			}
			// One candidate directed edge per background 4-neighbor, each
			// oriented with this pixel on its left.
			if at(r-1, c) == 0 && !visited[[3]int{r, c + 1, dirLeft}] {
				trace(r, c+1, dirLeft)
			}
			if at(r+1, c) == 0 && !visited[[3]int{r + 1, c, dirRight}] {
				trace(r+1, c, dirRight)
			}
			if at(r, c-1) == 0 && !visited[[3]int{r, c, dirDown}] {
				trace(r, c, dirDown)
			}
			if at(r, c+1) == 0 && !visited[[3]int{r + 1, c + 1, dirUp}] {
				trace(r+1, c+1, dirUp)
			}
		}
	}
	return loops
}

// collapseCollinear removes vertices interior to straight runs, treating the
// point list as circular.
func collapseCollinear(pts Polyline) Polyline {
	n := len(pts)
	if n < 3 {
		return pts
	}
	out := make(Polyline, 0, n)
	for i := 0; i < n; i++ {
		prev := pts[(i+n-1)%n]
		cur := pts[i]
		next := pts[(i+1)%n]
		cross := (cur.Row-prev.Row)*(next.Col-cur.Col) - (cur.Col-prev.Col)*(next.Row-cur.Row)
		if cross != 0 {
			out = append(out, cur)
		}
	}
	return out
}

// closeLoop appends the first vertex so callers always see an explicitly
// closed polyline.
func closeLoop(pts Polyline) Polyline {
	if len(pts) == 0 {
		return pts
	}
	return append(pts, pts[0])
}

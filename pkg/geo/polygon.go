package geo

import (
	"errors"
	"fmt"

	"github.com/paulmach/orb"
)

var (
	ErrEmptyPolygon     = errors.New("polygon has no rings")
	ErrTooFewPoints     = errors.New("ring has fewer than 4 points")
	ErrRingNotClosed    = errors.New("ring is not closed")
	ErrNonFinite        = errors.New("coordinate is not a finite number")
	ErrZeroArea         = errors.New("ring has zero area")
	ErrSelfIntersection = errors.New("ring is self-intersecting")
	ErrOutOfRange       = errors.New("coordinate outside longitude/latitude range")
)

// ValidatePolygon checks that every ring of p is closed, has at least four
// points, finite coordinates, a non-zero area, and does not cross itself.
func ValidatePolygon(p orb.Polygon) error {
	if len(p) == 0 {
		return ErrEmptyPolygon
	}
	for i, ring := range p {
		if err := ValidateRing(ring); err != nil {
			if i == 0 {
				return fmt.Errorf("exterior ring: %w", err)
			}
			return fmt.Errorf("hole %d: %w", i, err)
		}
	}
	return nil
}

// ValidateRing checks a single closed ring.
func ValidateRing(r orb.Ring) error {
	if len(r) < 4 {
		return ErrTooFewPoints
	}
	for _, p := range r {
		if !IsFinite(p) {
			return ErrNonFinite
		}
	}
	if r[0] != r[len(r)-1] {
		return ErrRingNotClosed
	}

	pts := dedupe(r)
	if len(pts) < 4 || signedArea(pts) == 0 {
		return ErrZeroArea
	}
	if !isSimple(pts) {
		return ErrSelfIntersection
	}
	return nil
}

// dedupe drops consecutive repeated points.
func dedupe(r orb.Ring) []orb.Point {
	out := make([]orb.Point, 0, len(r))
	for i, p := range r {
		if i > 0 && p == r[i-1] {
			continue
		}
		out = append(out, p)
	}
	return out
}

// signedArea is the shoelace area of a closed point sequence.
func signedArea(pts []orb.Point) float64 {
	var sum float64
	for i := 0; i+1 < len(pts); i++ {
		sum += pts[i][0]*pts[i+1][1] - pts[i+1][0]*pts[i][1]
	}
	return sum / 2
}

// isSimple reports whether no two non-adjacent edges of the closed sequence
// share a point. O(n^2); building footprints are small.
func isSimple(pts []orb.Point) bool {
	n := len(pts) - 1 // number of edges
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if j == i+1 || (i == 0 && j == n-1) {
				// Adjacent edges share exactly one vertex; they are only
				// invalid if they fold back over each other.
				if foldsBack(pts, i, j, n) {
					return false
				}
				continue
			}
			if SegmentsIntersect(pts[i], pts[i+1], pts[j], pts[j+1]) {
				return false
			}
		}
	}
	return true
}

// foldsBack reports whether adjacent edges i and j overlap along a line
// beyond their shared vertex (a zero-width spike).
func foldsBack(pts []orb.Point, i, j, n int) bool {
	var shared, a, b orb.Point
	if j == i+1 {
		shared, a, b = pts[j], pts[i], pts[j+1]
	} else {
		// i == 0 and j == n-1 share pts[0] == pts[n].
		shared, a, b = pts[0], pts[1], pts[n-1]
	}
	if orientation(a, shared, b) != 0 {
		return false
	}
	// Collinear: a spike if a and b lie on the same side of shared.
	da := orb.Point{a[0] - shared[0], a[1] - shared[1]}
	db := orb.Point{b[0] - shared[0], b[1] - shared[1]}
	return da[0]*db[0]+da[1]*db[1] > 0
}

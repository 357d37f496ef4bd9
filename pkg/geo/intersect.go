package geo

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// orientation returns the sign of the cross product (b-a) x (c-a):
// 1 for counter-clockwise, -1 for clockwise, 0 for collinear.
func orientation(a, b, c orb.Point) int {
	v := (b[0]-a[0])*(c[1]-a[1]) - (b[1]-a[1])*(c[0]-a[0])
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}

// onSegment reports whether p, known to be collinear with a and b, lies
// within the closed segment ab.
func onSegment(a, b, p orb.Point) bool {
	return p[0] >= math.Min(a[0], b[0]) && p[0] <= math.Max(a[0], b[0]) &&
		p[1] >= math.Min(a[1], b[1]) && p[1] <= math.Max(a[1], b[1])
}

// SegmentsIntersect reports whether the closed segments p1p2 and q1q2 share
// at least one point. Touching endpoints and collinear overlap count.
func SegmentsIntersect(p1, p2, q1, q2 orb.Point) bool {
	o1 := orientation(p1, p2, q1)
	o2 := orientation(p1, p2, q2)
	o3 := orientation(q1, q2, p1)
	o4 := orientation(q1, q2, p2)

	if o1 != o2 && o3 != o4 {
		return true
	}

	// Collinear special cases.
	if o1 == 0 && onSegment(p1, p2, q1) {
		return true
	}
	if o2 == 0 && onSegment(p1, p2, q2) {
		return true
	}
	if o3 == 0 && onSegment(q1, q2, p1) {
		return true
	}
	if o4 == 0 && onSegment(q1, q2, p2) {
		return true
	}
	return false
}

// SegmentIntersectsPolygon reports whether segment ab touches or crosses the
// polygon: any contact with a ring boundary, or lying inside the polygon area
// (outside its holes). Boundary contact counts as an intersection.
func SegmentIntersectsPolygon(a, b orb.Point, poly orb.Polygon) bool {
	if len(poly) == 0 || len(poly[0]) == 0 {
		return false
	}

	seg := orb.Bound{Min: a, Max: a}.Extend(b)
	if !seg.Intersects(poly[0].Bound()) {
		return false
	}

	for _, ring := range poly {
		n := len(ring)
		for i := 0; i+1 < n; i++ {
			if SegmentsIntersect(a, b, ring[i], ring[i+1]) {
				return true
			}
		}
		// Unclosed rings are treated as implicitly closed.
		if n > 1 && ring[0] != ring[n-1] && SegmentsIntersect(a, b, ring[n-1], ring[0]) {
			return true
		}
	}

	// No boundary contact: the segment is either entirely inside the polygon
	// area or entirely outside it, so one endpoint decides.
	return planar.PolygonContains(poly, a)
}

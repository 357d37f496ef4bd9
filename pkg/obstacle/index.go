package obstacle

import (
	"slices"

	"github.com/paulmach/orb"
	"github.com/tidwall/rtree"

	"debris_router/pkg/geo"
)

// Index is an R-tree over obstacle bounding boxes. It is read-only after
// NewIndex and safe for concurrent use.
type Index struct {
	obs  []Obstacle
	tree rtree.RTreeG[int]
}

// NewIndex indexes obs by position. Obstacles without rings are ignored.
func NewIndex(obs []Obstacle) *Index {
	ix := &Index{obs: obs}
	for i, o := range obs {
		if len(o.Polygon) == 0 || len(o.Polygon[0]) == 0 {
			continue
		}
		b := o.Bound()
		ix.tree.Insert(b.Min, b.Max, i)
	}
	return ix
}

// Len returns the number of indexed obstacles.
func (ix *Index) Len() int {
	return ix.tree.Len()
}

// Obstacle returns the obstacle at position i.
func (ix *Index) Obstacle(i int) Obstacle {
	return ix.obs[i]
}

// Intersecting returns the ID of the lowest-positioned obstacle that segment
// ab touches or crosses.
func (ix *Index) Intersecting(a, b orb.Point) (string, bool) {
	i, _, _ := ix.first(a, b, nil)
	if i < 0 {
		return "", false
	}
	return ix.obs[i].ID, true
}

// first returns the position of the lowest-positioned obstacle hit by ab, or
// -1. Candidates whose boxes overlap the segment's box are tested exactly in
// ascending position. buf is reused for the candidate list and returned
// along with the number of exact tests run.
func (ix *Index) first(a, b orb.Point, buf []int) (int, []int, int) {
	seg := orb.Bound{Min: a, Max: a}.Extend(b)

	buf = buf[:0]
	ix.tree.Search(seg.Min, seg.Max, func(_, _ [2]float64, i int) bool {
		buf = append(buf, i)
		return true
	})
	if len(buf) == 0 {
		return -1, buf, 0
	}
	slices.Sort(buf)

	tests := 0
	for _, i := range buf {
		tests++
		if geo.SegmentIntersectsPolygon(a, b, ix.obs[i].Polygon) {
			return i, buf, tests
		}
	}
	return -1, buf, tests
}

package obstacle

import (
	"debris_router/pkg/geo"
	"debris_router/pkg/graph"
)

// Removal records one edge dropped by pruning and the obstacle that caused it.
type Removal struct {
	Edge       uint32 // index into the source graph's Edges
	ObstacleID string
}

// Result is the outcome of pruning a graph.
type Result struct {
	Graph   *graph.Graph // every node of the input, minus the blocked edges
	Removed []Removal    // ascending by Edge
	Checked int          // exact segment/polygon tests performed
}

// Prune removes every edge whose segment intersects any obstacle, boundary
// contact included. Candidate obstacles come from an R-tree over their
// bounding boxes. Nodes are never removed, so endpoints of blocked edges may
// end up isolated.
func Prune(g *graph.Graph, obs []Obstacle) *Result {
	ix := NewIndex(obs)
	return prune(g, func(e int, buf []int) (int, []int, int) {
		a, b := g.Segment(e)
		return ix.first(a, b, buf)
	}, obs)
}

// PruneExhaustive tests every edge against every obstacle. It makes the same
// removal decisions as Prune and exists as a reference for it.
func PruneExhaustive(g *graph.Graph, obs []Obstacle) *Result {
	return prune(g, func(e int, buf []int) (int, []int, int) {
		a, b := g.Segment(e)
		for i, o := range obs {
			if geo.SegmentIntersectsPolygon(a, b, o.Polygon) {
				return i, buf, i + 1
			}
		}
		return -1, buf, len(obs)
	}, obs)
}

type hitFunc func(edge int, buf []int) (obstacle int, _ []int, tests int)

func prune(g *graph.Graph, hit hitFunc, obs []Obstacle) *Result {
	res := &Result{Graph: g}
	if g.IsEmpty() || len(obs) == 0 {
		return res
	}

	remove := make([]bool, len(g.Edges))
	var buf []int
	for e := range g.Edges {
		var (
			i     int
			tests int
		)
		i, buf, tests = hit(e, buf)
		res.Checked += tests
		if i < 0 {
			continue
		}
		remove[e] = true
		res.Removed = append(res.Removed, Removal{Edge: uint32(e), ObstacleID: obs[i].ID})
	}

	if len(res.Removed) > 0 {
		res.Graph = g.WithoutEdges(remove)
	}
	return res
}

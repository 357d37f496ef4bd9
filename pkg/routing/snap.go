package routing

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/tidwall/rtree"

	"debris_router/pkg/graph"
)

// Resolution is a query point resolved to its nearest graph node.
type Resolution struct {
	Node     uint32
	Coord    orb.Point // the node's coordinate
	Distance float64   // Euclidean distance from the query point, working CRS units
}

// Resolver finds the graph node nearest to an arbitrary point using an R-tree
// over node coordinates. It is read-only after NewResolver and safe for
// concurrent use.
type Resolver struct {
	g    *graph.Graph
	tree rtree.RTreeG[uint32]
}

// NewResolver indexes every node of g, isolated nodes included.
func NewResolver(g *graph.Graph) *Resolver {
	r := &Resolver{g: g}
	if g.IsEmpty() {
		return r
	}
	for i, p := range g.Coords {
		r.tree.Insert(p, p, uint32(i))
	}
	return r
}

// Resolve returns the node nearest to p. Among equidistant nodes the lowest
// index wins. It reports false only when the graph has no nodes.
func (r *Resolver) Resolve(p orb.Point) (Resolution, bool) {
	if r.tree.Len() == 0 {
		return Resolution{}, false
	}

	best := uint32(noNode)
	bestDist := 0.0
	r.tree.Nearby(
		rtree.BoxDist[float64, uint32](p, p, nil),
		func(_, _ [2]float64, node uint32, dist float64) bool {
			if best == noNode {
				best, bestDist = node, dist
				return true
			}
			if dist > bestDist {
				return false
			}
			if node < best {
				best = node
			}
			return true
		},
	)
	return r.resolution(p, best), true
}

// ResolveExhaustive scans every node. It returns the same node as Resolve.
func (r *Resolver) ResolveExhaustive(p orb.Point) (Resolution, bool) {
	if r.g.IsEmpty() {
		return Resolution{}, false
	}

	best := uint32(0)
	bestDist := planar.DistanceSquared(p, r.g.Coords[0])
	for i := 1; i < len(r.g.Coords); i++ {
		if d := planar.DistanceSquared(p, r.g.Coords[i]); d < bestDist {
			best, bestDist = uint32(i), d
		}
	}
	return r.resolution(p, best), true
}

func (r *Resolver) resolution(p orb.Point, node uint32) Resolution {
	c := r.g.Coords[node]
	return Resolution{Node: node, Coord: c, Distance: planar.Distance(p, c)}
}

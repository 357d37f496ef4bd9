package graph

import (
	"github.com/paulmach/orb"

	"debris_router/pkg/geo"
)

// Edge is an undirected road segment between two nodes. U < V always holds.
type Edge struct {
	U      uint32
	V      uint32
	Weight float64
}

// Graph is an immutable undirected graph in CSR (Compressed Sparse Row)
// format. Every undirected edge is stored as two arcs, one per direction.
type Graph struct {
	NumNodes uint32
	NumEdges uint32      // undirected edges; len(Edges)
	FirstOut []uint32    // len: NumNodes + 1; FirstOut[i]..FirstOut[i+1] are arcs from node i
	Head     []uint32    // len: 2*NumEdges; target node for each arc
	Weight   []float64   // len: 2*NumEdges; Euclidean length in the working CRS
	EdgeOf   []uint32    // len: 2*NumEdges; index into Edges for each arc
	Coords   []orb.Point // len: NumNodes
	Edges    []Edge      // canonical edge list in insertion order

	// Precision is the quantization applied to coordinates before they were
	// used as node keys (0 = exact equality).
	Precision int

	index map[orb.Point]uint32
}

// EdgesFrom returns the range of arc indices for arcs originating from node u.
func (g *Graph) EdgesFrom(u uint32) (start, end uint32) {
	return g.FirstOut[u], g.FirstOut[u+1]
}

// IsEmpty reports whether the graph has no nodes.
func (g *Graph) IsEmpty() bool {
	return g == nil || g.NumNodes == 0
}

// Lookup returns the node whose coordinate equals p after quantization.
func (g *Graph) Lookup(p orb.Point) (uint32, bool) {
	id, ok := g.index[geo.Quantize(p, g.Precision)]
	return id, ok
}

// Degree returns the number of edges incident to u.
func (g *Graph) Degree(u uint32) int {
	start, end := g.EdgesFrom(u)
	return int(end - start)
}

// Segment returns the endpoint coordinates of edge i.
func (g *Graph) Segment(i int) (orb.Point, orb.Point) {
	e := g.Edges[i]
	return g.Coords[e.U], g.Coords[e.V]
}

// WithoutEdges returns a new graph that keeps every node of g but drops the
// edges i with remove[i] set.
func (g *Graph) WithoutEdges(remove []bool) *Graph {
	kept := make([]Edge, 0, len(g.Edges))
	for i, e := range g.Edges {
		if i < len(remove) && remove[i] {
			continue
		}
		kept = append(kept, e)
	}
	return freeze(g.Coords, kept, g.Precision, g.index)
}

// freeze builds the CSR arrays from a node list and a canonical edge list.
// Arcs of a node keep the order of the edge list.
func freeze(coords []orb.Point, edges []Edge, precision int, index map[orb.Point]uint32) *Graph {
	numNodes := uint32(len(coords))
	numEdges := uint32(len(edges))
	numArcs := 2 * numEdges

	firstOut := make([]uint32, numNodes+1)
	head := make([]uint32, numArcs)
	weight := make([]float64, numArcs)
	edgeOf := make([]uint32, numArcs)

	// Count arcs per node.
	for _, e := range edges {
		firstOut[e.U+1]++
		firstOut[e.V+1]++
	}
	// Prefix sum.
	for i := uint32(1); i <= numNodes; i++ {
		firstOut[i] += firstOut[i-1]
	}

	// Place arcs into CSR order.
	pos := make([]uint32, numNodes)
	copy(pos, firstOut[:numNodes])
	for i, e := range edges {
		a := pos[e.U]
		head[a], weight[a], edgeOf[a] = e.V, e.Weight, uint32(i)
		pos[e.U]++

		b := pos[e.V]
		head[b], weight[b], edgeOf[b] = e.U, e.Weight, uint32(i)
		pos[e.V]++
	}

	if index == nil {
		index = make(map[orb.Point]uint32, numNodes)
		for i, p := range coords {
			index[p] = uint32(i)
		}
	}

	return &Graph{
		NumNodes:  numNodes,
		NumEdges:  numEdges,
		FirstOut:  firstOut,
		Head:      head,
		Weight:    weight,
		EdgeOf:    edgeOf,
		Coords:    coords,
		Edges:     edges,
		Precision: precision,
		index:     index,
	}
}

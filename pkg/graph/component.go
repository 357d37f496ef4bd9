package graph

// UnionFind implements a disjoint-set data structure with path compression
// and union by rank.
type UnionFind struct {
	parent []uint32
	rank   []byte // max rank stays near log2(n)
	size   []uint32
}

// NewUnionFind creates a UnionFind for n elements.
func NewUnionFind(n uint32) *UnionFind {
	parent := make([]uint32, n)
	size := make([]uint32, n)
	for i := range n {
		parent[i] = i
		size[i] = 1
	}
	return &UnionFind{
		parent: parent,
		rank:   make([]byte, n),
		size:   size,
	}
}

// Find returns the representative of the set containing x, with path halving.
func (uf *UnionFind) Find(x uint32) uint32 {
	for uf.parent[x] != x {
		uf.parent[x] = uf.parent[uf.parent[x]] // path halving
		x = uf.parent[x]
	}
	return x
}

// Union merges the sets containing x and y. Returns false if already same set.
func (uf *UnionFind) Union(x, y uint32) bool {
	rx := uf.Find(x)
	ry := uf.Find(y)
	if rx == ry {
		return false
	}

	if uf.rank[rx] < uf.rank[ry] {
		rx, ry = ry, rx
	}
	uf.parent[ry] = rx
	uf.size[rx] += uf.size[ry]
	if uf.rank[rx] == uf.rank[ry] {
		uf.rank[rx]++
	}
	return true
}

// Components labels every node with its connected component. Labels are
// dense, assigned in order of the lowest node index in each component.
type Components struct {
	Label   []uint32
	Count   int
	Largest uint32 // node count of the largest component
}

// Connected reports whether u and v are in the same component, i.e. whether
// a path between them exists.
func (c *Components) Connected(u, v uint32) bool {
	return c.Label[u] == c.Label[v]
}

// ConnectedComponents computes component labels for g. Nodes left without
// edges form singleton components.
func ConnectedComponents(g *Graph) *Components {
	if g.IsEmpty() {
		return &Components{}
	}

	uf := NewUnionFind(g.NumNodes)
	for _, e := range g.Edges {
		uf.Union(e.U, e.V)
	}

	label := make([]uint32, g.NumNodes)
	rootLabel := make(map[uint32]uint32)
	var largest uint32
	for i := uint32(0); i < g.NumNodes; i++ {
		root := uf.Find(i)
		l, ok := rootLabel[root]
		if !ok {
			l = uint32(len(rootLabel))
			rootLabel[root] = l
		}
		label[i] = l
		if uf.size[root] > largest {
			largest = uf.size[root]
		}
	}

	return &Components{
		Label:   label,
		Count:   len(rootLabel),
		Largest: largest,
	}
}

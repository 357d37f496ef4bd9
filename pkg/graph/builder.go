package graph

import (
	"fmt"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"

	"debris_router/pkg/geo"
)

// MergePolicy decides which weight survives when the same endpoint pair is
// added more than once.
type MergePolicy int

const (
	// MergeLast keeps the most recently added weight.
	MergeLast MergePolicy = iota
	// MergeMin keeps the smallest weight seen.
	MergeMin
	// MergeFirst keeps the first weight seen.
	MergeFirst
)

func (p MergePolicy) String() string {
	switch p {
	case MergeLast:
		return "last"
	case MergeMin:
		return "min"
	case MergeFirst:
		return "first"
	default:
		return fmt.Sprintf("MergePolicy(%d)", int(p))
	}
}

// ParseMergePolicy parses "last", "min" or "first". The empty string is "last".
func ParseMergePolicy(s string) (MergePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "last":
		return MergeLast, nil
	case "min":
		return MergeMin, nil
	case "first":
		return MergeFirst, nil
	}
	return MergeLast, fmt.Errorf("unknown merge policy %q (want last, min or first)", s)
}

// Options configures graph construction.
type Options struct {
	Merge MergePolicy
	// Precision quantizes coordinates to this many decimal digits before they
	// become node keys. 0 keeps exact floating-point equality.
	Precision int
}

// BuildStats counts what the builder accepted and skipped.
type BuildStats struct {
	Lines           int // lines offered to AddLine
	SkippedLines    int // lines with fewer than 2 coordinates
	Segments        int // segments turned into edges (including duplicates)
	SkippedSegments int // segments with a non-finite coordinate
	ZeroLength      int // segments whose endpoints resolve to the same node
	Duplicates      int // segments that hit an existing endpoint pair
}

// Builder accumulates road lines into an undirected weighted graph. Nodes are
// created the first time a coordinate is referenced.
type Builder struct {
	opts    Options
	nodes   map[orb.Point]uint32
	coords  []orb.Point
	edgeIdx map[[2]uint32]int
	edges   []Edge
	stats   BuildStats
}

// NewBuilder creates an empty builder.
func NewBuilder(opts Options) *Builder {
	return &Builder{
		opts:    opts,
		nodes:   make(map[orb.Point]uint32),
		edgeIdx: make(map[[2]uint32]int),
	}
}

func (b *Builder) node(p orb.Point) uint32 {
	if idx, ok := b.nodes[p]; ok {
		return idx
	}
	idx := uint32(len(b.coords))
	b.nodes[p] = idx
	b.coords = append(b.coords, p)
	return idx
}

// AddLine walks consecutive coordinate pairs of ls and adds an edge weighted
// by their Euclidean distance.
func (b *Builder) AddLine(ls orb.LineString) {
	b.stats.Lines++
	if len(ls) < 2 {
		b.stats.SkippedLines++
		return
	}

	for i := 0; i+1 < len(ls); i++ {
		from, to := ls[i], ls[i+1]
		if !geo.IsFinite(from) || !geo.IsFinite(to) {
			b.stats.SkippedSegments++
			continue
		}

		from = geo.Quantize(from, b.opts.Precision)
		to = geo.Quantize(to, b.opts.Precision)
		u, v := b.node(from), b.node(to)
		if u == v {
			b.stats.ZeroLength++
			continue
		}

		b.addEdge(u, v, planar.Distance(from, to))
	}
}

func (b *Builder) addEdge(u, v uint32, w float64) {
	if u > v {
		u, v = v, u
	}
	b.stats.Segments++

	key := [2]uint32{u, v}
	i, ok := b.edgeIdx[key]
	if !ok {
		b.edgeIdx[key] = len(b.edges)
		b.edges = append(b.edges, Edge{U: u, V: v, Weight: w})
		return
	}

	b.stats.Duplicates++
	switch b.opts.Merge {
	case MergeLast:
		b.edges[i].Weight = w
	case MergeMin:
		if w < b.edges[i].Weight {
			b.edges[i].Weight = w
		}
	case MergeFirst:
	}
}

// Stats returns the counters accumulated so far.
func (b *Builder) Stats() BuildStats {
	return b.stats
}

// Build freezes the accumulated nodes and edges into a CSR Graph. An empty
// builder yields an empty graph, not an error.
func (b *Builder) Build() *Graph {
	coords := make([]orb.Point, len(b.coords))
	copy(coords, b.coords)
	edges := make([]Edge, len(b.edges))
	copy(edges, b.edges)

	index := make(map[orb.Point]uint32, len(b.nodes))
	for p, idx := range b.nodes {
		index[p] = idx
	}
	return freeze(coords, edges, b.opts.Precision, index)
}

// Build creates a Graph from a set of road lines.
func Build(lines []orb.LineString, opts Options) *Graph {
	b := NewBuilder(opts)
	for _, ls := range lines {
		b.AddLine(ls)
	}
	return b.Build()
}

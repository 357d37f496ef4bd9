package routing

import (
	"sync"

	"debris_router/pkg/geo"
	"debris_router/pkg/graph"
)

// Snapshot is an immutable routable graph together with the indexes built
// over it. Once handed to Engine.Publish it is never modified.
type Snapshot struct {
	Graph      *graph.Graph
	Resolver   *Resolver
	Components *graph.Components
	CRS        string // normalized, e.g. "EPSG:4326"
	Geographic bool   // coordinates are lon/lat degrees
	Version    uint64 // graph fingerprint

	states sync.Pool // *QueryState sized for Graph
}

// NewSnapshot indexes g for routing. crs names the coordinate reference
// system of g's coordinates; empty means EPSG:4326.
func NewSnapshot(g *graph.Graph, crs string) *Snapshot {
	crs = geo.NormalizeCRS(crs)
	s := &Snapshot{
		Graph:      g,
		Resolver:   NewResolver(g),
		Components: graph.ConnectedComponents(g),
		CRS:        crs,
		Geographic: geo.IsGeographic(crs),
		Version:    graph.Fingerprint(g),
	}
	n := g.NumNodes
	s.states.New = func() any { return NewQueryState(n) }
	return s
}

func (s *Snapshot) acquire() *QueryState {
	return s.states.Get().(*QueryState)
}

func (s *Snapshot) release(qs *QueryState) {
	qs.Reset()
	s.states.Put(qs)
}

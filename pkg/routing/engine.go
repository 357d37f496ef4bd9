package routing

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/paulmach/orb"

	"debris_router/pkg/geo"
)

// PathResult is the output of a route query.
type PathResult struct {
	Path        []orb.Point // node coordinates from start node to end node
	Nodes       []uint32
	TotalWeight float64 // sum of edge weights along Path
	// DistanceMeters is the great-circle length of Path. Only set when
	// Geographic is true.
	DistanceMeters float64
	Geographic     bool // coordinates are lon/lat degrees
	Start          Resolution
	End            Resolution
	Settled        int // nodes settled by the search
}

// Router is the interface for route queries.
type Router interface {
	FindRoute(ctx context.Context, start, end orb.Point) (*PathResult, error)
}

// Options tunes the search.
type Options struct {
	// MaxSettled caps the nodes a single query may settle. 0 disables the cap.
	MaxSettled int
}

// Engine implements Router over a published Snapshot. Until a snapshot is
// published every query fails with ErrNotReady.
type Engine struct {
	snap atomic.Pointer[Snapshot]
	opts Options
}

// NewEngine creates an engine with no snapshot.
func NewEngine(opts Options) *Engine {
	return &Engine{opts: opts}
}

// Publish makes s visible to queries. Only the first call takes effect; it
// reports whether s was published.
func (e *Engine) Publish(s *Snapshot) bool {
	return e.snap.CompareAndSwap(nil, s)
}

// Snapshot returns the published snapshot, or nil.
func (e *Engine) Snapshot() *Snapshot {
	return e.snap.Load()
}

// Ready reports whether a snapshot has been published.
func (e *Engine) Ready() bool {
	return e.snap.Load() != nil
}

// FindRoute resolves start and end to their nearest nodes and returns the
// minimum-weight path between them.
func (e *Engine) FindRoute(ctx context.Context, start, end orb.Point) (*PathResult, error) {
	s := e.snap.Load()
	if s == nil {
		return nil, ErrNotReady
	}
	if err := validatePoint(start, s.Geographic); err != nil {
		return nil, fmt.Errorf("start: %w", err)
	}
	if err := validatePoint(end, s.Geographic); err != nil {
		return nil, fmt.Errorf("end: %w", err)
	}
	if s.Graph.IsEmpty() {
		return nil, ErrGraphEmpty
	}

	// Step 1: Resolve both points to their nearest nodes.
	from, ok := s.Resolver.Resolve(start)
	if !ok {
		return nil, fmt.Errorf("start: %w", ErrUnresolvedEndpoint)
	}
	to, ok := s.Resolver.Resolve(end)
	if !ok {
		return nil, fmt.Errorf("end: %w", ErrUnresolvedEndpoint)
	}

	// Step 2: Nodes in different components cannot be joined; skip the search.
	if !s.Components.Connected(from.Node, to.Node) {
		return nil, ErrNoPathFound
	}

	// Step 3: Dijkstra on the pruned graph.
	qs := s.acquire()
	defer s.release(qs)

	nodes, weight, err := shortestPath(ctx, s.Graph, qs, from.Node, to.Node, e.opts.MaxSettled)
	if err != nil {
		return nil, err
	}

	// Step 4: Build geometry from the node sequence.
	path := make([]orb.Point, len(nodes))
	for i, n := range nodes {
		path[i] = s.Graph.Coords[n]
	}

	result := &PathResult{
		Path:        path,
		Nodes:       nodes,
		TotalWeight: weight,
		Start:       from,
		End:         to,
		Settled:     qs.Settled,
	}
	if s.Geographic {
		result.Geographic = true
		result.DistanceMeters = geo.PathLengthMeters(path)
	}
	return result, nil
}

// validatePoint rejects non-finite coordinates, and for geographic
// snapshots, longitudes outside [-180, 180] or latitudes outside [-90, 90].
func validatePoint(p orb.Point, geographic bool) error {
	if !geo.IsFinite(p) {
		return fmt.Errorf("coordinate %v is not finite: %w", [2]float64(p), ErrInvalidInput)
	}
	if geographic && !geo.InGeographicRange(p) {
		return fmt.Errorf("coordinate %v out of range: %w", [2]float64(p), ErrInvalidInput)
	}
	return nil
}

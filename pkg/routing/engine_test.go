package routing

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/paulmach/orb"

	"debris_router/pkg/graph"
	"debris_router/pkg/obstacle"
)

var (
	ptA = orb.Point{0, 0}
	ptB = orb.Point{1, 0}
	ptC = orb.Point{1, 1}
	ptD = orb.Point{0, 1}
)

// squareGraph is A B C D with edges AB BC CD DA (weight 1) and the diagonal AC.
func squareGraph() *graph.Graph {
	return graph.Build([]orb.LineString{
		{ptA, ptB}, // 0
		{ptB, ptC}, // 1
		{ptC, ptD}, // 2
		{ptD, ptA}, // 3
		{ptA, ptC}, // 4
	}, graph.Options{})
}

func debris() []obstacle.Obstacle {
	return []obstacle.Obstacle{{
		ID:      "debris",
		Polygon: orb.Polygon{{{0.4, 0.4}, {0.6, 0.4}, {0.6, 0.6}, {0.4, 0.6}, {0.4, 0.4}}},
	}}
}

func newTestEngine(t *testing.T, g *graph.Graph, crs string, opts Options) *Engine {
	t.Helper()
	e := NewEngine(opts)
	if !e.Publish(NewSnapshot(g, crs)) {
		t.Fatal("Publish returned false on a fresh engine")
	}
	return e
}

func pathWeight(g *graph.Graph, nodes []uint32) float64 {
	var total float64
	for i := 0; i+1 < len(nodes); i++ {
		u, v := nodes[i], nodes[i+1]
		start, end := g.EdgesFrom(u)
		best := math.Inf(1)
		for a := start; a < end; a++ {
			if g.Head[a] == v && g.Weight[a] < best {
				best = g.Weight[a]
			}
		}
		total += best
	}
	return total
}

func TestFindRouteAvoidsObstacle(t *testing.T) {
	pruned := obstacle.Prune(squareGraph(), debris()).Graph
	e := newTestEngine(t, pruned, "", Options{})

	res, err := e.FindRoute(context.Background(), ptA, ptC)
	if err != nil {
		t.Fatalf("FindRoute: %v", err)
	}
	if res.TotalWeight != 2.0 {
		t.Errorf("TotalWeight = %f, want 2", res.TotalWeight)
	}
	if len(res.Path) != 3 || res.Path[0] != ptA || res.Path[2] != ptC {
		t.Fatalf("Path = %v, want A-?-C", res.Path)
	}
	if mid := res.Path[1]; mid != ptB && mid != ptD {
		t.Errorf("path goes through %v, want B or D", mid)
	}
}

func TestFindRouteWithoutObstacleUsesDiagonal(t *testing.T) {
	e := newTestEngine(t, squareGraph(), "", Options{})

	res, err := e.FindRoute(context.Background(), ptA, ptC)
	if err != nil {
		t.Fatalf("FindRoute: %v", err)
	}
	if math.Abs(res.TotalWeight-math.Sqrt2) > 1e-12 || len(res.Path) != 2 {
		t.Errorf("got %v weight %f, want the diagonal", res.Path, res.TotalWeight)
	}
}

func TestFindRouteExactNode(t *testing.T) {
	pruned := obstacle.Prune(squareGraph(), debris()).Graph
	e := newTestEngine(t, pruned, "", Options{})

	res, err := e.FindRoute(context.Background(), ptB, ptC)
	if err != nil {
		t.Fatalf("FindRoute: %v", err)
	}
	if res.Start.Coord != ptB || res.Start.Distance != 0 {
		t.Errorf("start resolved to %+v, want B at distance 0", res.Start)
	}
	if res.TotalWeight != 1.0 || len(res.Path) != 2 || res.Path[1] != ptC {
		t.Errorf("got %v weight %f, want [B C] weight 1", res.Path, res.TotalWeight)
	}
}

func TestFindRouteIsolatedNode(t *testing.T) {
	// Remove BC, CD and AC: C keeps its node but loses every edge.
	g := squareGraph().WithoutEdges([]bool{false, true, true, false, true})
	e := newTestEngine(t, g, "", Options{})

	_, err := e.FindRoute(context.Background(), ptA, ptC)
	if !errors.Is(err, ErrNoPathFound) {
		t.Fatalf("err = %v, want ErrNoPathFound", err)
	}

	var qe *QueryError
	if !errors.As(err, &qe) || qe.Kind != KindNoPathFound {
		t.Errorf("errors.As kind = %v", qe)
	}
}

func TestFindRouteSameNode(t *testing.T) {
	e := newTestEngine(t, squareGraph(), "", Options{})

	res, err := e.FindRoute(context.Background(), orb.Point{0.1, 0.1}, orb.Point{-0.1, 0})
	if err != nil {
		t.Fatalf("FindRoute: %v", err)
	}
	if len(res.Path) != 1 || res.TotalWeight != 0 {
		t.Errorf("got %v weight %f, want single node", res.Path, res.TotalWeight)
	}
}

func TestFindRouteWeightConsistency(t *testing.T) {
	g := gridGraph(12)
	e := newTestEngine(t, g, "", Options{})

	queries := [][2]orb.Point{
		{{0, 0}, {11, 11}},
		{{0.2, 10.7}, {10.6, 0.4}},
		{{5.5, 5.5}, {0, 11}},
	}
	for _, q := range queries {
		res, err := e.FindRoute(context.Background(), q[0], q[1])
		if err != nil {
			t.Fatalf("FindRoute(%v, %v): %v", q[0], q[1], err)
		}
		if got := pathWeight(g, res.Nodes); got != res.TotalWeight {
			t.Errorf("%v: summed weight %f != TotalWeight %f", q, got, res.TotalWeight)
		}
		if want := plainDijkstra(g, res.Start.Node, res.End.Node); math.Abs(want-res.TotalWeight) > 1e-9 {
			t.Errorf("%v: TotalWeight %f, reference %f", q, res.TotalWeight, want)
		}
	}
}

func TestFindRouteGeographicDistance(t *testing.T) {
	g := graph.Build([]orb.LineString{{{37.0, 37.0}, {37.01, 37.0}, {37.01, 37.01}}}, graph.Options{})
	e := newTestEngine(t, g, "EPSG:4326", Options{})

	res, err := e.FindRoute(context.Background(), orb.Point{37.0, 37.0}, orb.Point{37.01, 37.01})
	if err != nil {
		t.Fatalf("FindRoute: %v", err)
	}
	// 0.01° of longitude at 37°N is ~888 m, 0.01° of latitude ~1112 m.
	if !res.Geographic || res.DistanceMeters < 1900 || res.DistanceMeters > 2100 {
		t.Errorf("DistanceMeters = %f (geographic %v), want ~2000", res.DistanceMeters, res.Geographic)
	}

	projected := newTestEngine(t, g, "EPSG:32637", Options{})
	res, err = projected.FindRoute(context.Background(), orb.Point{37.0, 37.0}, orb.Point{37.01, 37.01})
	if err != nil {
		t.Fatalf("FindRoute: %v", err)
	}
	if res.Geographic || res.DistanceMeters != 0 {
		t.Errorf("projected DistanceMeters = %f, want 0", res.DistanceMeters)
	}
}

func TestFindRouteErrors(t *testing.T) {
	ctx := context.Background()

	if _, err := NewEngine(Options{}).FindRoute(ctx, ptA, ptB); !errors.Is(err, ErrNotReady) {
		t.Errorf("unpublished engine: err = %v, want ErrNotReady", err)
	}

	empty := newTestEngine(t, graph.Build(nil, graph.Options{}), "", Options{})
	if _, err := empty.FindRoute(ctx, ptA, ptB); !errors.Is(err, ErrGraphEmpty) {
		t.Errorf("empty graph: err = %v, want ErrGraphEmpty", err)
	}

	e := newTestEngine(t, squareGraph(), "", Options{})
	tests := []struct {
		name       string
		start, end orb.Point
	}{
		{"NaN start", orb.Point{math.NaN(), 0}, ptB},
		{"Inf end", ptA, orb.Point{0, math.Inf(1)}},
		{"latitude out of range", ptA, orb.Point{0, 91}},
		{"longitude out of range", orb.Point{-181, 0}, ptB},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.FindRoute(ctx, tt.start, tt.end)
			if !errors.Is(err, ErrInvalidInput) {
				t.Errorf("err = %v, want ErrInvalidInput", err)
			}
		})
	}
}

func TestFindRouteSearchLimits(t *testing.T) {
	g := gridGraph(20)
	far := orb.Point{19, 19}

	budget := newTestEngine(t, g, "", Options{MaxSettled: 10})
	if _, err := budget.FindRoute(context.Background(), ptA, far); !errors.Is(err, ErrSearchBudget) {
		t.Errorf("err = %v, want ErrSearchBudget", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	e := newTestEngine(t, g, "", Options{})
	if _, err := e.FindRoute(ctx, ptA, far); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}

	// The pooled state must be clean after an aborted search.
	res, err := e.FindRoute(context.Background(), ptA, far)
	if err != nil {
		t.Fatalf("FindRoute after cancel: %v", err)
	}
	if want := plainDijkstra(g, res.Start.Node, res.End.Node); math.Abs(want-res.TotalWeight) > 1e-9 {
		t.Errorf("TotalWeight %f, reference %f", res.TotalWeight, want)
	}
}

func TestPublishOnce(t *testing.T) {
	e := NewEngine(Options{})
	if e.Ready() {
		t.Fatal("new engine reports ready")
	}
	first := NewSnapshot(squareGraph(), "")
	if !e.Publish(first) {
		t.Fatal("first Publish returned false")
	}
	if e.Publish(NewSnapshot(gridGraph(3), "")) {
		t.Error("second Publish returned true")
	}
	if e.Snapshot() != first || !e.Ready() {
		t.Error("published snapshot was replaced")
	}
	if first.Version != graph.Fingerprint(first.Graph) {
		t.Error("snapshot version is not the graph fingerprint")
	}
}

func TestFindRouteConcurrent(t *testing.T) {
	g := gridGraph(15)
	e := newTestEngine(t, g, "", Options{})
	want, err := e.FindRoute(context.Background(), ptA, orb.Point{14, 14})
	if err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := e.FindRoute(context.Background(), ptA, orb.Point{14, 14})
			if err != nil {
				errs <- err
				return
			}
			if res.TotalWeight != want.TotalWeight {
				errs <- errors.New("concurrent query returned a different weight")
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

package cache

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/paulmach/orb"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"debris_router/pkg/graph"
	"debris_router/pkg/metrics"
	"debris_router/pkg/routing"
)

// countingEngine counts the queries that reach the engine.
type countingEngine struct {
	*routing.Engine
	calls int
}

func (c *countingEngine) FindRoute(ctx context.Context, start, end orb.Point) (*routing.PathResult, error) {
	c.calls++
	return c.Engine.FindRoute(ctx, start, end)
}

func newEngine(t *testing.T) *countingEngine {
	t.Helper()
	g := graph.Build([]orb.LineString{
		{{0, 0}, {1, 0}, {1, 1}},
		{{5, 5}, {6, 5}},
	}, graph.Options{})
	e := routing.NewEngine(routing.Options{})
	e.Publish(routing.NewSnapshot(g, "EPSG:3857"))
	return &countingEngine{Engine: e}
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRouterCachesSuccess(t *testing.T) {
	mr := miniredis.RunT(t)
	rc := Open(mr.Addr(), "", 0)
	defer rc.Close()

	eng := newEngine(t)
	c := New(eng, rc, time.Minute, discard())
	ctx := context.Background()
	hits := testutil.ToFloat64(metrics.CacheHitsTotal)

	first, err := c.FindRoute(ctx, orb.Point{0, 0}, orb.Point{1, 1})
	if err != nil {
		t.Fatalf("first query: %v", err)
	}
	second, err := c.FindRoute(ctx, orb.Point{0, 0}, orb.Point{1, 1})
	if err != nil {
		t.Fatalf("second query: %v", err)
	}

	if eng.calls != 1 {
		t.Errorf("engine calls = %d, want 1", eng.calls)
	}
	if got := testutil.ToFloat64(metrics.CacheHitsTotal) - hits; got != 1 {
		t.Errorf("cache hits = %f, want 1", got)
	}
	if second.TotalWeight != first.TotalWeight || len(second.Path) != len(first.Path) {
		t.Errorf("cached result %+v differs from %+v", second, first)
	}
	if first.Settled == 0 || second.Settled != 0 {
		t.Errorf("settled = %d then %d, want a count then 0", first.Settled, second.Settled)
	}
	for i := range first.Path {
		if first.Path[i] != second.Path[i] {
			t.Errorf("path[%d] = %v, want %v", i, second.Path[i], first.Path[i])
		}
	}

	key := Key(eng.Snapshot().Version, orb.Point{0, 0}, orb.Point{1, 1})
	if !mr.Exists(key) {
		t.Fatalf("key %s not stored", key)
	}
	if ttl := mr.TTL(key); ttl != time.Minute {
		t.Errorf("ttl = %v, want 1m", ttl)
	}
}

func TestRouterDoesNotCacheErrors(t *testing.T) {
	mr := miniredis.RunT(t)
	rc := Open(mr.Addr(), "", 0)
	defer rc.Close()

	eng := newEngine(t)
	c := New(eng, rc, time.Minute, discard())

	for i := 0; i < 2; i++ {
		_, err := c.FindRoute(context.Background(), orb.Point{0, 0}, orb.Point{6, 5})
		if !errors.Is(err, routing.ErrNoPathFound) {
			t.Fatalf("err = %v, want ErrNoPathFound", err)
		}
	}
	if eng.calls != 2 {
		t.Errorf("engine calls = %d, want 2", eng.calls)
	}
	if n := len(mr.Keys()); n != 0 {
		t.Errorf("%d keys stored for failed queries", n)
	}
}

func TestRouterRedisDown(t *testing.T) {
	mr := miniredis.RunT(t)
	rc := Open(mr.Addr(), "", 0)
	defer rc.Close()
	mr.Close()

	eng := newEngine(t)
	c := New(eng, rc, time.Minute, discard())
	res, err := c.FindRoute(context.Background(), orb.Point{0, 0}, orb.Point{1, 1})
	if err != nil {
		t.Fatalf("FindRoute with redis down: %v", err)
	}
	if res.TotalWeight != 2 {
		t.Errorf("weight = %f, want 2", res.TotalWeight)
	}
}

func TestRouterBypass(t *testing.T) {
	eng := newEngine(t)
	c := New(eng, nil, time.Minute, discard())
	if _, err := c.FindRoute(context.Background(), orb.Point{0, 0}, orb.Point{1, 0}); err != nil {
		t.Fatal(err)
	}
	if eng.calls != 1 {
		t.Errorf("engine calls = %d, want 1", eng.calls)
	}

	// Before a snapshot is published queries go straight to the engine.
	idle := &countingEngine{Engine: routing.NewEngine(routing.Options{})}
	mr := miniredis.RunT(t)
	rc := Open(mr.Addr(), "", 0)
	defer rc.Close()
	_, err := New(idle, rc, time.Minute, discard()).FindRoute(context.Background(), orb.Point{0, 0}, orb.Point{1, 0})
	if !errors.Is(err, routing.ErrNotReady) {
		t.Errorf("err = %v, want ErrNotReady", err)
	}
}

func TestKey(t *testing.T) {
	a := Key(1, orb.Point{0, 0}, orb.Point{1, 1})
	if !strings.HasPrefix(a, "route:0000000000000001:") {
		t.Errorf("key = %q", a)
	}
	if a == Key(2, orb.Point{0, 0}, orb.Point{1, 1}) {
		t.Error("key ignores graph version")
	}
	if a == Key(1, orb.Point{1, 1}, orb.Point{0, 0}) {
		t.Error("key ignores direction")
	}
}

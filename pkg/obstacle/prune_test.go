package obstacle

import (
	"fmt"
	"slices"
	"testing"

	"github.com/paulmach/orb"

	"debris_router/pkg/geo"
	"debris_router/pkg/graph"
)

func square(id string, minX, minY, maxX, maxY float64) Obstacle {
	return Obstacle{
		ID: id,
		Polygon: orb.Polygon{{
			{minX, minY}, {maxX, minY}, {maxX, maxY}, {minX, maxY}, {minX, minY},
		}},
	}
}

// squareWithDiagonal is A(0,0) B(1,0) C(1,1) D(0,1) with edges AB BC CD DA AC.
func squareWithDiagonal() *graph.Graph {
	return graph.Build([]orb.LineString{
		{{0, 0}, {1, 0}},
		{{1, 0}, {1, 1}},
		{{1, 1}, {0, 1}},
		{{0, 1}, {0, 0}},
		{{0, 0}, {1, 1}},
	}, graph.Options{})
}

func TestPruneRemovesDiagonal(t *testing.T) {
	g := squareWithDiagonal()
	res := Prune(g, []Obstacle{square("debris", 0.4, 0.4, 0.6, 0.6)})

	if len(res.Removed) != 1 {
		t.Fatalf("removed %d edges, want 1", len(res.Removed))
	}
	if res.Removed[0].Edge != 4 || res.Removed[0].ObstacleID != "debris" {
		t.Errorf("removal = %+v, want edge 4 by debris", res.Removed[0])
	}
	if res.Graph.NumEdges != 4 {
		t.Errorf("pruned NumEdges = %d, want 4", res.Graph.NumEdges)
	}
	if res.Graph.NumNodes != g.NumNodes {
		t.Errorf("pruned NumNodes = %d, want %d", res.Graph.NumNodes, g.NumNodes)
	}
	if g.NumEdges != 5 {
		t.Error("input graph was modified")
	}
}

func TestPruneBoundaryContact(t *testing.T) {
	g := graph.Build([]orb.LineString{
		{{0, 0}, {1, 0}},     // touches the obstacle's bottom-left corner
		{{-2, 2}, {0, 2}},    // clear
		{{1.5, 3}, {1.5, 4}}, // starts on the obstacle's top edge
	}, graph.Options{})
	obs := []Obstacle{square("o", 1, -1, 2, 3)}

	res := Prune(g, obs)
	var got []uint32
	for _, r := range res.Removed {
		got = append(got, r.Edge)
	}
	if !slices.Equal(got, []uint32{0, 2}) {
		t.Errorf("removed edges = %v, want [0 2]", got)
	}
}

func TestPruneNoObstacles(t *testing.T) {
	g := squareWithDiagonal()
	res := Prune(g, nil)
	if res.Graph != g {
		t.Error("graph should be returned unchanged")
	}
	if len(res.Removed) != 0 || res.Checked != 0 {
		t.Errorf("unexpected result %+v", res)
	}
}

func TestPruneEmptyGraph(t *testing.T) {
	res := Prune(graph.Build(nil, graph.Options{}), []Obstacle{square("o", 0, 0, 1, 1)})
	if !res.Graph.IsEmpty() || len(res.Removed) != 0 {
		t.Errorf("unexpected result %+v", res)
	}
}

// gridGraph builds an n×n lattice with unit spacing plus one diagonal per cell.
func gridGraph(n int) *graph.Graph {
	var lines []orb.LineString
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			x, y := float64(i), float64(j)
			if i+1 < n {
				lines = append(lines, orb.LineString{{x, y}, {x + 1, y}})
			}
			if j+1 < n {
				lines = append(lines, orb.LineString{{x, y}, {x, y + 1}})
			}
			if i+1 < n && j+1 < n {
				lines = append(lines, orb.LineString{{x, y}, {x + 1, y + 1}})
			}
		}
	}
	return graph.Build(lines, graph.Options{})
}

func gridObstacles() []Obstacle {
	var obs []Obstacle
	for k := 0; k < 12; k++ {
		x := float64(k%4)*2.3 + 0.2
		y := float64(k/4)*2.9 + 0.45
		size := 0.3 + float64(k%3)*0.35
		obs = append(obs, square(fmt.Sprintf("o%d", k), x, y, x+size, y+size))
	}
	// Overlapping pair: the lower position must be recorded.
	obs = append(obs, square("wide", 4.1, 4.1, 6.9, 4.9), square("narrow", 4.5, 4.2, 4.8, 4.8))
	return obs
}

func TestPruneMatchesExhaustive(t *testing.T) {
	g := gridGraph(10)
	obs := gridObstacles()

	fast := Prune(g, obs)
	slow := PruneExhaustive(g, obs)

	if len(fast.Removed) == 0 {
		t.Fatal("expected some edges to be removed")
	}
	if !slices.Equal(fast.Removed, slow.Removed) {
		t.Fatalf("indexed and exhaustive pruning disagree:\n%v\n%v", fast.Removed, slow.Removed)
	}
	if fast.Graph.NumEdges != slow.Graph.NumEdges {
		t.Errorf("NumEdges %d vs %d", fast.Graph.NumEdges, slow.Graph.NumEdges)
	}
	if fast.Checked >= slow.Checked {
		t.Errorf("indexed pruning ran %d exact tests, exhaustive %d", fast.Checked, slow.Checked)
	}
	for _, r := range fast.Removed {
		if r.ObstacleID == "narrow" {
			t.Errorf("edge %d attributed to the later of two overlapping obstacles", r.Edge)
		}
	}
}

func TestPruneSoundAndComplete(t *testing.T) {
	g := gridGraph(10)
	obs := gridObstacles()
	res := Prune(g, obs)

	// Completeness: no surviving edge touches any obstacle.
	for e := range res.Graph.Edges {
		a, b := res.Graph.Segment(e)
		for _, o := range obs {
			if geo.SegmentIntersectsPolygon(a, b, o.Polygon) {
				t.Errorf("surviving edge %v-%v touches %s", a, b, o.ID)
			}
		}
	}

	// Soundness: every removed edge touches its recorded obstacle.
	byID := make(map[string]Obstacle, len(obs))
	for _, o := range obs {
		byID[o.ID] = o
	}
	for _, r := range res.Removed {
		a, b := g.Segment(int(r.Edge))
		if !geo.SegmentIntersectsPolygon(a, b, byID[r.ObstacleID].Polygon) {
			t.Errorf("edge %d removed but does not touch %s", r.Edge, r.ObstacleID)
		}
	}
}

func TestIndexIntersecting(t *testing.T) {
	ix := NewIndex([]Obstacle{
		square("a", 0, 0, 1, 1),
		{ID: "empty"},
		square("b", 5, 5, 6, 6),
	})
	if ix.Len() != 2 {
		t.Errorf("Len = %d, want 2", ix.Len())
	}

	tests := []struct {
		name   string
		a, b   orb.Point
		wantID string
		wantOK bool
	}{
		{"crosses a", orb.Point{-1, 0.5}, orb.Point{2, 0.5}, "a", true},
		{"inside b", orb.Point{5.2, 5.2}, orb.Point{5.8, 5.8}, "b", true},
		{"between", orb.Point{2, 2}, orb.Point{4, 4}, "", false},
		{"box overlap only", orb.Point{0.9, 1.5}, orb.Point{1.5, 0.9}, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, ok := ix.Intersecting(tt.a, tt.b)
			if id != tt.wantID || ok != tt.wantOK {
				t.Errorf("Intersecting = (%q, %v), want (%q, %v)", id, ok, tt.wantID, tt.wantOK)
			}
		})
	}
}

package ingest

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkb"

	"debris_router/pkg/geo"
)

// wkbTable creates a table of (id, geom) rows in a throwaway SQLite file.
// The query readers only need database/sql, so SQLite stands in for
// PostGIS here.
func wkbTable(t *testing.T, rows map[string]orb.Geometry, order []string) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "wkb.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })

	if _, err := db.Exec(`CREATE TABLE shapes (seq INTEGER PRIMARY KEY, id TEXT, geom BLOB)`); err != nil {
		t.Fatal(err)
	}
	for _, id := range order {
		var blob any // untyped nil binds as NULL
		if g := rows[id]; g != nil {
			blob = wkb.MustMarshal(g)
		}
		if _, err := db.Exec(`INSERT INTO shapes (id, geom) VALUES (?, ?)`, id, blob); err != nil {
			t.Fatal(err)
		}
	}
	return db
}

const shapesQuery = `SELECT id, geom FROM shapes ORDER BY seq`

func TestQueryObstacles(t *testing.T) {
	db := wkbTable(t, map[string]orb.Geometry{
		"valid":  orb.Polygon{{{0, 0}, {1, 0}, {1, 1}, {0, 1}, {0, 0}}},
		"bowtie": orb.Polygon{{{0, 0}, {2, 2}, {2, 0}, {0, 1}, {0, 0}}},
		"line":   orb.LineString{{0, 0}, {1, 1}},
		"multi": orb.MultiPolygon{
			{{{5, 5}, {6, 5}, {6, 6}, {5, 6}, {5, 5}}},
			{{{8, 8}, {9, 8}, {9, 9}, {8, 9}, {8, 8}}},
		},
		"null": nil,
	}, []string{"valid", "bowtie", "line", "multi", "null"})

	res, err := QueryObstacles(context.Background(), db, shapesQuery, "")
	if err != nil {
		t.Fatalf("QueryObstacles: %v", err)
	}
	if res.CRS != geo.DefaultCRS {
		t.Errorf("CRS = %q", res.CRS)
	}
	if len(res.Items) != 3 || res.Items[0].ID != "valid" || res.Items[2].ID != "multi/1" {
		t.Errorf("items = %+v", res.Items)
	}
	if len(res.Errors) != 3 {
		t.Fatalf("got %d errors, want 3: %v", len(res.Errors), res.Errors)
	}
	if !errors.Is(res.Errors[0], geo.ErrSelfIntersection) ||
		!errors.Is(res.Errors[1], ErrUnsupportedGeometry) ||
		!errors.Is(res.Errors[2], ErrNoGeometry) {
		t.Errorf("errors = %v", res.Errors)
	}
}

func TestQueryRoads(t *testing.T) {
	db := wkbTable(t, map[string]orb.Geometry{
		"a": orb.LineString{{0, 0}, {1, 0}},
		"b": orb.MultiLineString{{{1, 0}, {2, 0}}, {{2, 0}}},
		"c": orb.Point{3, 3},
	}, []string{"a", "b", "c"})

	res, err := QueryRoads(context.Background(), db, shapesQuery, "EPSG:32637")
	if err != nil {
		t.Fatalf("QueryRoads: %v", err)
	}
	if res.CRS != "EPSG:32637" {
		t.Errorf("CRS = %q", res.CRS)
	}
	if len(res.Items) != 2 || res.Items[1].ID != "b/0" {
		t.Errorf("items = %+v", res.Items)
	}
	if len(res.Errors) != 2 {
		t.Errorf("errors = %v", res.Errors)
	}

	if _, err := QueryRoads(context.Background(), db, `SELECT nope FROM missing`, ""); err == nil {
		t.Error("expected error for a bad query")
	}
}

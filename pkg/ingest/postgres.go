package ingest

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkb"

	"debris_router/pkg/geo"
	"debris_router/pkg/obstacle"
)

// OpenDB opens a Postgres connection pool through the pgx database/sql
// driver and verifies it.
func OpenDB(ctx context.Context, databaseURL string) (*sql.DB, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("openDB: open postgres database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("openDB: verify postgres connection: %w", err)
	}

	return db, nil
}

// Querier is the subset of *sql.DB used by the query readers.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// scanWKB runs query, which must return an identifier and a WKB geometry
// per row (for PostGIS: SELECT id::text, ST_AsBinary(geom) FROM ...), and
// hands each decoded geometry to fn.
func scanWKB(ctx context.Context, q Querier, query string, fn func(id string, g orb.Geometry, err error)) error {
	rows, err := q.QueryContext(ctx, query)
	if err != nil {
		return fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id   string
			blob []byte
		)
		if err := rows.Scan(&id, &blob); err != nil {
			return fmt.Errorf("scan: %w", err)
		}
		if blob == nil {
			fn(id, nil, ErrNoGeometry)
			continue
		}
		g, err := wkb.Unmarshal(blob)
		if err != nil {
			fn(id, nil, fmt.Errorf("decode wkb: %w", err))
			continue
		}
		fn(id, g, nil)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("rows: %w", err)
	}
	return nil
}

// QueryRoads reads road lines with query. crs names the reference system of
// the returned geometry.
func QueryRoads(ctx context.Context, q Querier, query, crs string) (*Result[Road], error) {
	res := &Result[Road]{CRS: geo.NormalizeCRS(crs)}
	err := scanWKB(ctx, q, query, func(id string, g orb.Geometry, err error) {
		if err != nil {
			res.fail("postgres", id, err)
			return
		}
		lines, err := linesOf(g)
		if err != nil {
			res.fail("postgres", id, err)
			return
		}
		for k, ls := range lines {
			pid := partID(id, k, len(lines))
			if len(ls) < 2 {
				res.fail("postgres", pid, errShortLine)
				continue
			}
			if err := checkRange(res.CRS, ls); err != nil {
				res.fail("postgres", pid, err)
				continue
			}
			res.Items = append(res.Items, Road{ID: pid, Source: "postgres", Line: ls})
		}
	})
	if err != nil {
		return nil, fmt.Errorf("query roads: %w", err)
	}
	return res, nil
}

// QueryObstacles reads and validates obstacle polygons with query.
func QueryObstacles(ctx context.Context, q Querier, query, crs string) (*Result[obstacle.Obstacle], error) {
	res := &Result[obstacle.Obstacle]{CRS: geo.NormalizeCRS(crs)}
	err := scanWKB(ctx, q, query, func(id string, g orb.Geometry, err error) {
		if err != nil {
			res.fail("postgres", id, err)
			return
		}
		var parts []orb.Polygon
		switch g := g.(type) {
		case orb.Polygon:
			parts = []orb.Polygon{g}
		case orb.MultiPolygon:
			parts = g
		default:
			res.fail("postgres", id, fmt.Errorf("%w: %s", ErrUnsupportedGeometry, g.GeoJSONType()))
			return
		}
		for k, p := range parts {
			pid := partID(id, k, len(parts))
			if err := geo.ValidatePolygon(p); err != nil {
				res.fail("postgres", pid, err)
				continue
			}
			if err := checkPolygonRange(res.CRS, p); err != nil {
				res.fail("postgres", pid, err)
				continue
			}
			res.Items = append(res.Items, obstacle.Obstacle{ID: pid, Source: "postgres", Polygon: p})
		}
	})
	if err != nil {
		return nil, fmt.Errorf("query obstacles: %w", err)
	}
	return res, nil
}

package ingest

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkb"
	_ "modernc.org/sqlite"
)

var (
	errNotGPKGBlob   = errors.New("not a GeoPackage geometry blob")
	errBadEnvelope   = errors.New("invalid envelope indicator")
	errEmptyGeometry = errors.New("empty geometry")
	errNoLineTable   = errors.New("no line feature table")
)

// envelopeSize maps the envelope contents indicator to its byte length.
var envelopeSize = [...]int{0, 32, 48, 48, 64}

// decodeGPKGBlob strips the GeoPackage binary header and decodes the
// standard WKB that follows it. It also returns the header's srs_id.
func decodeGPKGBlob(b []byte) (orb.Geometry, int32, error) {
	if len(b) < 8 || b[0] != 'G' || b[1] != 'P' {
		return nil, 0, errNotGPKGBlob
	}
	flags := b[3]

	var order binary.ByteOrder = binary.BigEndian
	if flags&0x01 != 0 {
		order = binary.LittleEndian
	}
	srsID := int32(order.Uint32(b[4:8]))

	env := int(flags>>1) & 0x07
	if env >= len(envelopeSize) {
		return nil, srsID, fmt.Errorf("%w: %d", errBadEnvelope, env)
	}
	if flags&0x10 != 0 {
		return nil, srsID, errEmptyGeometry
	}

	start := 8 + envelopeSize[env]
	if len(b) <= start {
		return nil, srsID, fmt.Errorf("%w: truncated header", errNotGPKGBlob)
	}
	g, err := wkb.Unmarshal(b[start:])
	if err != nil {
		return nil, srsID, fmt.Errorf("decode wkb: %w", err)
	}
	return g, srsID, nil
}

// linesOf returns the line parts of a LineString or MultiLineString.
func linesOf(g orb.Geometry) ([]orb.LineString, error) {
	switch g := g.(type) {
	case orb.LineString:
		return []orb.LineString{g}, nil
	case orb.MultiLineString:
		return g, nil
	case nil:
		return nil, ErrNoGeometry
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedGeometry, g.GeoJSONType())
	}
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// ReadGPKG reads road lines from a GeoPackage feature table. An empty table
// name selects the first table, by name, whose geometry type is a
// LINESTRING or MULTILINESTRING.
func ReadGPKG(ctx context.Context, path, table string) (*Result[Road], error) {
	// The driver creates missing files; refuse instead.
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("read gpkg: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("read gpkg: open %q: %w", path, err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("read gpkg: verify connection to %q: %w", path, err)
	}

	table, column, srsID, err := geometryColumn(ctx, db, table)
	if err != nil {
		return nil, fmt.Errorf("read gpkg %q: %w", path, err)
	}
	crs, err := srsName(ctx, db, srsID)
	if err != nil {
		return nil, fmt.Errorf("read gpkg %q: %w", path, err)
	}

	rows, err := db.QueryContext(ctx, fmt.Sprintf("SELECT rowid, %s FROM %s ORDER BY rowid",
		quoteIdent(column), quoteIdent(table)))
	if err != nil {
		return nil, fmt.Errorf("read gpkg %q: query %s: %w", path, table, err)
	}
	defer rows.Close()

	source := path + ":" + table
	res := &Result[Road]{CRS: crs}
	for rows.Next() {
		var (
			fid  int64
			blob []byte
		)
		if err := rows.Scan(&fid, &blob); err != nil {
			return nil, fmt.Errorf("read gpkg %q: scan: %w", path, err)
		}
		id := fmt.Sprintf("%s/%d", table, fid)
		if blob == nil {
			res.fail(source, id, ErrNoGeometry)
			continue
		}

		g, _, err := decodeGPKGBlob(blob)
		if err != nil {
			res.fail(source, id, err)
			continue
		}
		lines, err := linesOf(g)
		if err != nil {
			res.fail(source, id, err)
			continue
		}
		for k, ls := range lines {
			pid := partID(id, k, len(lines))
			if len(ls) < 2 {
				res.fail(source, pid, errShortLine)
				continue
			}
			if err := checkRange(res.CRS, ls); err != nil {
				res.fail(source, pid, err)
				continue
			}
			res.Items = append(res.Items, Road{ID: pid, Source: source, Line: ls})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read gpkg %q: %w", path, err)
	}
	return res, nil
}

func geometryColumn(ctx context.Context, db *sql.DB, table string) (string, string, int64, error) {
	var (
		row    *sql.Row
		column string
		srsID  int64
	)
	if table != "" {
		row = db.QueryRowContext(ctx,
			`SELECT table_name, column_name, srs_id FROM gpkg_geometry_columns WHERE table_name = ?`, table)
	} else {
		row = db.QueryRowContext(ctx,
			`SELECT table_name, column_name, srs_id FROM gpkg_geometry_columns
			 WHERE upper(geometry_type_name) IN ('LINESTRING', 'MULTILINESTRING')
			 ORDER BY table_name LIMIT 1`)
	}
	if err := row.Scan(&table, &column, &srsID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", "", 0, errNoLineTable
		}
		return "", "", 0, fmt.Errorf("geometry columns: %w", err)
	}
	return table, column, srsID, nil
}

func srsName(ctx context.Context, db *sql.DB, srsID int64) (string, error) {
	var (
		org  string
		code int64
	)
	err := db.QueryRowContext(ctx,
		`SELECT organization, organization_coordsys_id FROM gpkg_spatial_ref_sys WHERE srs_id = ?`, srsID,
	).Scan(&org, &code)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return fmt.Sprintf("EPSG:%d", srsID), nil
	case err != nil:
		return "", fmt.Errorf("spatial ref sys %d: %w", srsID, err)
	}
	return fmt.Sprintf("%s:%d", strings.ToUpper(org), code), nil
}

// Package ingest reads road lines and obstacle polygons from files and
// databases. Items that cannot be used are skipped and reported alongside
// the items that were read.
package ingest

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"debris_router/pkg/geo"
)

var (
	// ErrCRSMismatch is reported for a source whose reference system differs
	// from the road network's.
	ErrCRSMismatch = errors.New("reference system differs from road network")
	// ErrUnsupportedGeometry is reported for features of an unexpected type.
	ErrUnsupportedGeometry = errors.New("unsupported geometry type")
	// ErrNoGeometry is reported for features with a null geometry.
	ErrNoGeometry = errors.New("feature has no geometry")
)

// Error describes one input item, or a whole source, that was skipped.
type Error struct {
	Source string // file path or query
	Item   string // feature id; empty when the whole source failed
	Err    error
}

func (e *Error) Error() string {
	if e.Item == "" {
		return fmt.Sprintf("%s: %v", e.Source, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Source, e.Item, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Result holds the items read from one or more sources and the per-item
// errors that were skipped on the way.
type Result[T any] struct {
	CRS    string // normalized reference system of Items
	Items  []T
	Errors []*Error
}

func (r *Result[T]) fail(source, item string, err error) {
	r.Errors = append(r.Errors, &Error{Source: source, Item: item, Err: err})
}

// sourceFailed reports whether the result holds nothing but a single
// source-level error.
func (r *Result[T]) sourceFailed() bool {
	return len(r.Items) == 0 && len(r.Errors) == 1 && r.Errors[0].Item == ""
}

// Merge appends o's items and errors to r. The CRS of r is kept unless it
// is unset.
func (r *Result[T]) Merge(o *Result[T]) {
	if o == nil {
		return
	}
	if r.CRS == "" {
		r.CRS = o.CRS
	}
	r.Items = append(r.Items, o.Items...)
	r.Errors = append(r.Errors, o.Errors...)
}

// Log writes every error at warn level.
func (r *Result[T]) Log(logger *slog.Logger, kind string) {
	for _, e := range r.Errors {
		logger.Warn("skipped input", "kind", kind, "source", e.Source, "item", e.Item, "err", e.Err)
	}
}

// checkRange rejects the first coordinate outside longitude/latitude bounds
// when crs is geographic.
func checkRange(crs string, pts []orb.Point) error {
	if !geo.IsGeographic(crs) {
		return nil
	}
	for _, p := range pts {
		if !geo.InGeographicRange(p) {
			return fmt.Errorf("%w: %v under %s", geo.ErrOutOfRange, [2]float64(p), crs)
		}
	}
	return nil
}

// checkPolygonRange applies checkRange to every ring of p.
func checkPolygonRange(crs string, p orb.Polygon) error {
	for _, r := range p {
		if err := checkRange(crs, r); err != nil {
			return err
		}
	}
	return nil
}

// Road is one line of the road network.
type Road struct {
	ID         string
	Source     string
	Line       orb.LineString
	Properties geojson.Properties
}

// Lines returns the geometry of every road.
func Lines(roads []Road) []orb.LineString {
	lines := make([]orb.LineString, len(roads))
	for i, r := range roads {
		lines[i] = r.Line
	}
	return lines
}

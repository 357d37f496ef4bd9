package ingest

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"debris_router/pkg/geo"
	"debris_router/pkg/obstacle"
)

var errShortLine = errors.New("line has fewer than 2 points")

// collection is a FeatureCollection whose features are decoded one at a
// time, so a single malformed feature does not discard the whole file.
type collection struct {
	Type     string            `json:"type"`
	CRS      *namedCRS         `json:"crs"`
	Features []json.RawMessage `json:"features"`
}

// namedCRS is the pre-RFC 7946 "crs" member.
type namedCRS struct {
	Type       string `json:"type"`
	Properties struct {
		Name string `json:"name"`
	} `json:"properties"`
}

func decodeCollection(data []byte) (*collection, error) {
	var c collection
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decode feature collection: %w", err)
	}
	if c.Type != "FeatureCollection" {
		return nil, fmt.Errorf("decode feature collection: type is %q", c.Type)
	}
	return &c, nil
}

func (c *collection) crs() string {
	if c.CRS == nil {
		return geo.DefaultCRS
	}
	return geo.NormalizeCRS(c.CRS.Properties.Name)
}

func featureID(f *geojson.Feature, source string, i int) string {
	if f.ID != nil {
		return fmt.Sprint(f.ID)
	}
	if id, ok := f.Properties["id"]; ok && id != nil {
		return fmt.Sprint(id)
	}
	return fmt.Sprintf("%s#%d", filepath.Base(source), i)
}

func partID(id string, k, n int) string {
	if n == 1 {
		return id
	}
	return fmt.Sprintf("%s/%d", id, k)
}

// DecodeRoads reads LineString and MultiLineString features from a GeoJSON
// FeatureCollection. Each part of a MultiLineString becomes its own Road.
func DecodeRoads(source string, data []byte) *Result[Road] {
	res := &Result[Road]{CRS: geo.DefaultCRS}
	c, err := decodeCollection(data)
	if err != nil {
		res.fail(source, "", err)
		return res
	}
	res.CRS = c.crs()

	for i, raw := range c.Features {
		f, err := geojson.UnmarshalFeature(raw)
		if err != nil {
			res.fail(source, fmt.Sprintf("feature %d", i), err)
			continue
		}
		id := featureID(f, source, i)

		var parts []orb.LineString
		switch g := f.Geometry.(type) {
		case orb.LineString:
			parts = []orb.LineString{g}
		case orb.MultiLineString:
			parts = g
		case nil:
			res.fail(source, id, ErrNoGeometry)
			continue
		default:
			res.fail(source, id, fmt.Errorf("%w: %s", ErrUnsupportedGeometry, g.GeoJSONType()))
			continue
		}

		for k, ls := range parts {
			pid := partID(id, k, len(parts))
			if len(ls) < 2 {
				res.fail(source, pid, errShortLine)
				continue
			}
			if err := checkRange(res.CRS, ls); err != nil {
				res.fail(source, pid, err)
				continue
			}
			res.Items = append(res.Items, Road{ID: pid, Source: source, Line: ls, Properties: f.Properties})
		}
	}
	return res
}

// DecodeObstacles reads Polygon and MultiPolygon features from a GeoJSON
// FeatureCollection. Every polygon is validated; invalid ones are reported
// and skipped. Each part of a MultiPolygon becomes its own Obstacle.
func DecodeObstacles(source string, data []byte) *Result[obstacle.Obstacle] {
	res := &Result[obstacle.Obstacle]{CRS: geo.DefaultCRS}
	c, err := decodeCollection(data)
	if err != nil {
		res.fail(source, "", err)
		return res
	}
	res.CRS = c.crs()

	for i, raw := range c.Features {
		f, err := geojson.UnmarshalFeature(raw)
		if err != nil {
			res.fail(source, fmt.Sprintf("feature %d", i), err)
			continue
		}
		id := featureID(f, source, i)

		var parts []orb.Polygon
		switch g := f.Geometry.(type) {
		case orb.Polygon:
			parts = []orb.Polygon{g}
		case orb.MultiPolygon:
			parts = g
		case nil:
			res.fail(source, id, ErrNoGeometry)
			continue
		default:
			res.fail(source, id, fmt.Errorf("%w: %s", ErrUnsupportedGeometry, g.GeoJSONType()))
			continue
		}

		for k, p := range parts {
			pid := partID(id, k, len(parts))
			if err := geo.ValidatePolygon(p); err != nil {
				res.fail(source, pid, err)
				continue
			}
			if err := checkPolygonRange(res.CRS, p); err != nil {
				res.fail(source, pid, err)
				continue
			}
			res.Items = append(res.Items, obstacle.Obstacle{ID: pid, Source: source, Polygon: p})
		}
	}
	return res
}

// withCRS sets the legacy "crs" member when crs is not the GeoJSON default.
func withCRS(fc *geojson.FeatureCollection, crs string) *geojson.FeatureCollection {
	crs = geo.NormalizeCRS(crs)
	if crs == geo.DefaultCRS {
		return fc
	}
	fc.ExtraMembers = geojson.Properties{
		"crs": map[string]any{
			"type":       "name",
			"properties": map[string]any{"name": crs},
		},
	}
	return fc
}

// RoadCollection encodes roads as a FeatureCollection of LineStrings.
func RoadCollection(roads []Road, crs string) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, r := range roads {
		f := geojson.NewFeature(r.Line)
		f.ID = r.ID
		for k, v := range r.Properties {
			f.Properties[k] = v
		}
		fc.Append(f)
	}
	return withCRS(fc, crs)
}

// LineCollection encodes bare line segments, such as graph edges, as a
// FeatureCollection. props, if non-nil, supplies properties per line.
func LineCollection(lines []orb.LineString, crs string, props func(i int) geojson.Properties) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for i, ls := range lines {
		f := geojson.NewFeature(ls)
		if props != nil {
			f.Properties = props(i)
		}
		fc.Append(f)
	}
	return withCRS(fc, crs)
}

// ObstacleCollection encodes obstacles as a FeatureCollection of Polygons.
func ObstacleCollection(obs []obstacle.Obstacle, crs string) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, o := range obs {
		f := geojson.NewFeature(o.Polygon)
		f.ID = o.ID
		f.Properties["source"] = filepath.Base(o.Source)
		fc.Append(f)
	}
	return withCRS(fc, crs)
}

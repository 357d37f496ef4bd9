package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"

	"golang.org/x/sync/errgroup"

	"debris_router/pkg/geo"
	"debris_router/pkg/obstacle"
	"debris_router/pkg/osm"
)

// RoadOptions configures LoadRoads.
type RoadOptions struct {
	GPKGTable  string      // feature table; empty picks the first line table
	OSMProfile osm.Profile // highway selection for .pbf input
	OSMBound   [4]float64  // minLon, minLat, maxLon, maxLat; zero keeps all
}

// LoadRoads reads road lines from a GeoJSON (.geojson, .json), GeoPackage
// (.gpkg) or OSM PBF (.pbf) file. An error is returned only when the file
// cannot be read at all; per-feature problems land in the result.
func LoadRoads(ctx context.Context, path string, opts RoadOptions) (*Result[Road], error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".geojson", ".json":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read roads: %w", err)
		}
		res := DecodeRoads(path, data)
		if res.sourceFailed() {
			return nil, fmt.Errorf("read roads: %w", res.Errors[0])
		}
		return res, nil
	case ".gpkg":
		return ReadGPKG(ctx, path, opts.GPKGTable)
	case ".pbf":
		return readPBF(ctx, path, opts)
	}
	return nil, fmt.Errorf("read roads: unsupported file type %q", ext)
}

func readPBF(ctx context.Context, path string, opts RoadOptions) (*Result[Road], error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("read roads: %w", err)
	}
	defer f.Close()

	popts := osm.ParseOptions{Profile: opts.OSMProfile}
	if b := opts.OSMBound; b != [4]float64{} {
		popts.Bound.Min = [2]float64{b[0], b[1]}
		popts.Bound.Max = [2]float64{b[2], b[3]}
	}
	ways, stats, err := osm.Parse(ctx, f, popts)
	if err != nil {
		return nil, fmt.Errorf("read roads: parse %s: %w", path, err)
	}

	res := &Result[Road]{CRS: geo.DefaultCRS, Items: make([]Road, 0, len(ways))}
	for _, w := range ways {
		res.Items = append(res.Items, Road{
			ID:         fmt.Sprintf("way/%d", w.ID),
			Source:     path,
			Line:       w.Line,
			Properties: map[string]any{"osm_id": int64(w.ID), "highway": w.Highway},
		})
	}
	if stats.MissingNodes > 0 {
		res.fail(path, "", fmt.Errorf("%d way nodes without coordinates", stats.MissingNodes))
	}
	return res, nil
}

// ObstacleFiles lists the *.geojson files of dir in name order.
func ObstacleFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("list obstacles: %w", err)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".geojson") {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	slices.Sort(paths)
	return paths, nil
}

// LoadObstacles decodes the given GeoJSON files in parallel and merges them
// in the order given. A file that cannot be read, or whose reference system
// differs from crs, is reported as one error and contributes no obstacles.
func LoadObstacles(ctx context.Context, paths []string, crs string) (*Result[obstacle.Obstacle], error) {
	crs = geo.NormalizeCRS(crs)
	perFile := make([]*Result[obstacle.Obstacle], len(paths))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, path := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			res := &Result[obstacle.Obstacle]{CRS: crs}
			data, err := os.ReadFile(path)
			if err != nil {
				res.fail(path, "", err)
				perFile[i] = res
				return nil
			}
			dec := DecodeObstacles(path, data)
			if !dec.sourceFailed() && dec.CRS != crs {
				res.fail(path, "", fmt.Errorf("%w: %s, want %s", ErrCRSMismatch, dec.CRS, crs))
				perFile[i] = res
				return nil
			}
			perFile[i] = dec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("load obstacles: %w", err)
	}

	out := &Result[obstacle.Obstacle]{CRS: crs}
	for _, r := range perFile {
		out.Merge(r)
	}
	return out, nil
}

// LoadObstacleDir loads every *.geojson file in dir.
func LoadObstacleDir(ctx context.Context, dir, crs string) (*Result[obstacle.Obstacle], error) {
	paths, err := ObstacleFiles(dir)
	if err != nil {
		return nil, err
	}
	return LoadObstacles(ctx, paths, crs)
}

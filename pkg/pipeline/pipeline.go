// Package pipeline runs the startup batch phase: it loads roads and
// obstacles, builds the road graph, prunes blocked edges and produces the
// routing snapshot together with the GeoJSON documents served over HTTP.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"debris_router/pkg/geo"
	"debris_router/pkg/graph"
	"debris_router/pkg/ingest"
	"debris_router/pkg/metrics"
	"debris_router/pkg/obstacle"
	"debris_router/pkg/routing"
)

// ErrGraphBuild is returned when the road input yields no routable edge.
var ErrGraphBuild = errors.New("graph build: no usable road geometry")

// Road network views.
const (
	ViewSource = "source" // lines as ingested
	ViewPruned = "pruned" // surviving graph edges
)

// Options selects the inputs and construction parameters.
type Options struct {
	RoadsPath string
	Roads     ingest.RoadOptions

	ObstaclesDir  string
	ObstacleFiles []string

	// DB serves RoadsQuery and ObstaclesQuery. Rows carry no reference
	// system, so SQL sources are taken to be in CRS.
	DB             ingest.Querier
	RoadsQuery     string
	ObstaclesQuery string
	CRS            string

	Graph graph.Options
	View  string // ViewSource (default) or ViewPruned
}

// Report summarizes one run.
type Report struct {
	CRS            string
	Roads          int
	Obstacles      int
	RoadErrors     int
	ObstacleErrors int
	Build          graph.BuildStats
	Nodes          uint32
	Edges          uint32 // after pruning
	Removed        int
	Checked        int // exact obstacle tests
	Components     int
	Largest        uint32
	Fingerprint    uint64
	Duration       time.Duration
}

// Output is everything the server needs once the batch phase is done.
type Output struct {
	Snapshot    *routing.Snapshot
	RoadNetwork []byte // GeoJSON FeatureCollection
	Obstacles   []byte // GeoJSON FeatureCollection
	Removed     []obstacle.Removal
	Errors      []*ingest.Error
	Report      Report
}

// Run loads the configured sources and assembles the output. Per-item
// ingestion problems are logged and skipped; an unreadable road source or
// an empty graph is an error.
func Run(ctx context.Context, opts Options, logger *slog.Logger) (*Output, error) {
	start := time.Now()

	roads, err := loadRoads(ctx, opts)
	if err != nil {
		return nil, err
	}
	roads.Log(logger, "road")
	metrics.IngestErrorsTotal.WithLabelValues("road").Add(float64(len(roads.Errors)))
	logger.Info("roads loaded", "roads", len(roads.Items), "errors", len(roads.Errors), "crs", roads.CRS)

	obs, err := loadObstacles(ctx, opts, roads.CRS)
	if err != nil {
		return nil, err
	}
	obs.Log(logger, "obstacle")
	metrics.IngestErrorsTotal.WithLabelValues("obstacle").Add(float64(len(obs.Errors)))
	logger.Info("obstacles loaded", "obstacles", len(obs.Items), "errors", len(obs.Errors))

	out, err := Assemble(roads, obs, opts)
	if err != nil {
		return nil, err
	}
	out.Report.Duration = time.Since(start)

	r := out.Report
	logger.Info("graph ready",
		"nodes", r.Nodes,
		"edges", r.Edges,
		"removed", r.Removed,
		"checked", r.Checked,
		"components", r.Components,
		"duplicates", r.Build.Duplicates,
		"fingerprint", fmt.Sprintf("%016x", r.Fingerprint),
		"duration", r.Duration.Round(time.Millisecond),
	)
	record(r)
	return out, nil
}

func loadRoads(ctx context.Context, opts Options) (*ingest.Result[ingest.Road], error) {
	if opts.RoadsQuery != "" {
		if opts.DB == nil {
			return nil, errors.New("roads query configured without a database")
		}
		return ingest.QueryRoads(ctx, opts.DB, opts.RoadsQuery, opts.CRS)
	}
	return ingest.LoadRoads(ctx, opts.RoadsPath, opts.Roads)
}

// loadObstacles merges every configured obstacle source. All of them must
// share crs, the reference system of the roads.
func loadObstacles(ctx context.Context, opts Options, crs string) (*ingest.Result[obstacle.Obstacle], error) {
	out := &ingest.Result[obstacle.Obstacle]{CRS: geo.NormalizeCRS(crs)}

	if opts.ObstaclesDir != "" {
		res, err := ingest.LoadObstacleDir(ctx, opts.ObstaclesDir, crs)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			// A missing directory means no collapse data yet.
			out.Errors = append(out.Errors, &ingest.Error{Source: opts.ObstaclesDir, Err: err})
		case err != nil:
			return nil, err
		default:
			out.Merge(res)
		}
	}
	if len(opts.ObstacleFiles) > 0 {
		res, err := ingest.LoadObstacles(ctx, opts.ObstacleFiles, crs)
		if err != nil {
			return nil, err
		}
		out.Merge(res)
	}
	if opts.ObstaclesQuery != "" {
		if opts.DB == nil {
			return nil, errors.New("obstacles query configured without a database")
		}
		if got := geo.NormalizeCRS(opts.CRS); got != out.CRS {
			out.Errors = append(out.Errors, &ingest.Error{
				Source: "postgres",
				Err:    fmt.Errorf("%w: %s, want %s", ingest.ErrCRSMismatch, got, out.CRS),
			})
			return out, nil
		}
		res, err := ingest.QueryObstacles(ctx, opts.DB, opts.ObstaclesQuery, opts.CRS)
		if err != nil {
			return nil, err
		}
		out.Merge(res)
	}
	return out, nil
}

// Assemble builds, prunes and indexes the graph from already loaded inputs.
func Assemble(roads *ingest.Result[ingest.Road], obs *ingest.Result[obstacle.Obstacle], opts Options) (*Output, error) {
	crs := geo.NormalizeCRS(roads.CRS)

	b := graph.NewBuilder(opts.Graph)
	for _, r := range roads.Items {
		b.AddLine(r.Line)
	}
	g := b.Build()
	if g.NumEdges == 0 {
		return nil, fmt.Errorf("%w: %d lines read, %d skipped", ErrGraphBuild, len(roads.Items), len(roads.Errors))
	}

	pruned := obstacle.Prune(g, obs.Items)
	snap := routing.NewSnapshot(pruned.Graph, crs)

	var network *geojson.FeatureCollection
	if opts.View == ViewPruned {
		network = edgeCollection(pruned.Graph, crs)
	} else {
		network = ingest.RoadCollection(roads.Items, crs)
	}
	networkJSON, err := network.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("encode road network: %w", err)
	}
	obstaclesJSON, err := ingest.ObstacleCollection(obs.Items, crs).MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("encode obstacles: %w", err)
	}

	errs := make([]*ingest.Error, 0, len(roads.Errors)+len(obs.Errors))
	errs = append(errs, roads.Errors...)
	errs = append(errs, obs.Errors...)

	return &Output{
		Snapshot:    snap,
		RoadNetwork: networkJSON,
		Obstacles:   obstaclesJSON,
		Removed:     pruned.Removed,
		Errors:      errs,
		Report: Report{
			CRS:            crs,
			Roads:          len(roads.Items),
			Obstacles:      len(obs.Items),
			RoadErrors:     len(roads.Errors),
			ObstacleErrors: len(obs.Errors),
			Build:          b.Stats(),
			Nodes:          pruned.Graph.NumNodes,
			Edges:          pruned.Graph.NumEdges,
			Removed:        len(pruned.Removed),
			Checked:        pruned.Checked,
			Components:     snap.Components.Count,
			Largest:        snap.Components.Largest,
			Fingerprint:    snap.Version,
		},
	}, nil
}

// edgeCollection encodes every edge of g as a two-point LineString.
func edgeCollection(g *graph.Graph, crs string) *geojson.FeatureCollection {
	lines := make([]orb.LineString, len(g.Edges))
	for i := range g.Edges {
		a, b := g.Segment(i)
		lines[i] = orb.LineString{a, b}
	}
	return ingest.LineCollection(lines, crs, func(i int) geojson.Properties {
		e := g.Edges[i]
		return geojson.Properties{"u": e.U, "v": e.V, "weight": e.Weight}
	})
}

func record(r Report) {
	metrics.GraphNodes.Set(float64(r.Nodes))
	metrics.GraphEdges.Set(float64(r.Edges))
	metrics.RemovedEdges.Set(float64(r.Removed))
	metrics.Obstacles.Set(float64(r.Obstacles))
	metrics.BuildDurationSeconds.Set(r.Duration.Seconds())
}

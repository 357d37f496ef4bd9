package config

import (
	"debris_router/pkg/api"
	"debris_router/pkg/graph"
	"debris_router/pkg/ingest"
	"debris_router/pkg/osm"
	"debris_router/pkg/pipeline"
)

// PipelineOptions translates the data and graph sections into batch phase
// options. db serves the SQL sources and may be nil when none is configured.
func (c Config) PipelineOptions(db ingest.Querier) (pipeline.Options, error) {
	merge, err := graph.ParseMergePolicy(c.Graph.MergePolicy)
	if err != nil {
		return pipeline.Options{}, err
	}
	profile, err := osm.ParseProfile(c.Data.OSMProfile)
	if err != nil {
		return pipeline.Options{}, err
	}
	return pipeline.Options{
		RoadsPath: c.Data.RoadsPath,
		Roads: ingest.RoadOptions{
			GPKGTable:  c.Data.GPKGTable,
			OSMProfile: profile,
			OSMBound:   c.Data.OSMBound,
		},
		ObstaclesDir:   c.Data.ObstaclesDir,
		ObstacleFiles:  c.Data.ObstacleFiles,
		DB:             db,
		RoadsQuery:     c.Data.RoadsQuery,
		ObstaclesQuery: c.Data.ObstaclesQuery,
		CRS:            c.Data.CRS,
		Graph:          graph.Options{Merge: merge, Precision: c.Graph.Precision},
		View:           c.Server.RoadNetworkView,
	}, nil
}

// ServerConfig returns the HTTP server settings.
func (c Config) ServerConfig() api.ServerConfig {
	return api.ServerConfig{
		Addr:            c.Addr(),
		ReadTimeout:     c.Server.ReadTimeout,
		WriteTimeout:    c.Server.WriteTimeout,
		RequestTimeout:  c.Server.RequestTimeout,
		ShutdownTimeout: c.Server.ShutdownTimeout,
		MaxConcurrent:   c.Server.MaxConcurrent,
		CORSOrigin:      c.Server.CORSOrigin,
	}
}

// NeedsDB reports whether any source reads from the database.
func (c Config) NeedsDB() bool {
	return c.Data.RoadsQuery != "" || c.Data.ObstaclesQuery != ""
}

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"debris_router/pkg/api"
	"debris_router/pkg/cache"
	"debris_router/pkg/config"
	"debris_router/pkg/ingest"
	"debris_router/pkg/logger"
	"debris_router/pkg/pipeline"
	"debris_router/pkg/routing"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	l := logger.Setup(cfg.Log.Level, cfg.Log.Format)

	engine := routing.NewEngine(routing.Options{MaxSettled: cfg.Routing.MaxSettled})
	var router routing.Router = engine
	if rc := cache.Open(cfg.Cache.RedisAddr, cfg.Cache.RedisPassword, cfg.Cache.RedisDB); rc != nil {
		defer rc.Close()
		router = cache.New(engine, rc, cfg.Cache.TTL, l)
		l.Info("route cache enabled", "addr", cfg.Cache.RedisAddr, "ttl", cfg.Cache.TTL)
	}

	handlers := api.NewHandlers(router, l)
	srv := api.NewServer(cfg.ServerConfig(), handlers, l)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	// The server answers 503 until the graph is published.
	go func() {
		out, err := build(ctx, cfg, l)
		if err != nil {
			cancel(err)
			return
		}
		engine.Publish(out.Snapshot)
		handlers.Publish(dataset(out))
		l.Info("routing graph published", "version", fmt.Sprintf("%016x", out.Report.Fingerprint))
	}()

	err = api.ListenAndServe(ctx, srv, cfg.Server.ShutdownTimeout, l)
	if cause := context.Cause(ctx); cause != nil && !errors.Is(cause, context.Canceled) {
		l.Error("startup failed", "err", cause, "graph_build", errors.Is(cause, pipeline.ErrGraphBuild))
		os.Exit(1)
	}
	if err != nil {
		l.Error("server stopped", "err", err)
		os.Exit(1)
	}
}

func build(ctx context.Context, cfg config.Config, l *slog.Logger) (*pipeline.Output, error) {
	var db ingest.Querier
	if cfg.NeedsDB() {
		conn, err := ingest.OpenDB(ctx, cfg.Data.DatabaseURL)
		if err != nil {
			return nil, err
		}
		defer conn.Close()
		db = conn
	}
	opts, err := cfg.PipelineOptions(db)
	if err != nil {
		return nil, err
	}
	return pipeline.Run(ctx, opts, l)
}

func dataset(out *pipeline.Output) *api.Dataset {
	r := out.Report
	return &api.Dataset{
		RoadNetwork: out.RoadNetwork,
		Obstacles:   out.Obstacles,
		Stats: api.StatsResponse{
			CRS:              r.CRS,
			NumNodes:         r.Nodes,
			NumEdges:         r.Edges,
			RemovedEdges:     r.Removed,
			Obstacles:        r.Obstacles,
			Components:       r.Components,
			LargestComponent: r.Largest,
			IngestionErrors:  len(out.Errors),
			Fingerprint:      fmt.Sprintf("%016x", r.Fingerprint),
			BuildMillis:      r.Duration.Milliseconds(),
		},
	}
}

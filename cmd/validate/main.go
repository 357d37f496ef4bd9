package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"

	"debris_router/pkg/config"
	"debris_router/pkg/ingest"
	"debris_router/pkg/logger"
	"debris_router/pkg/pipeline"
)

type report struct {
	pipeline.Report
	Errors []string `json:"errors"`
}

func main() {
	configPath := flag.String("config", "", "Path to YAML config file")
	asJSON := flag.Bool("json", false, "Print the report as JSON")
	strict := flag.Bool("strict", false, "Exit non-zero when any input item was skipped")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	l := logger.Setup(cfg.Log.Level, cfg.Log.Format)
	ctx := context.Background()

	var db ingest.Querier
	if cfg.NeedsDB() {
		conn, err := ingest.OpenDB(ctx, cfg.Data.DatabaseURL)
		if err != nil {
			l.Error("database", "err", err)
			os.Exit(1)
		}
		defer conn.Close()
		db = conn
	}
	opts, err := cfg.PipelineOptions(db)
	if err != nil {
		l.Error("options", "err", err)
		os.Exit(1)
	}

	out, err := pipeline.Run(ctx, opts, l)
	if err != nil {
		if errors.Is(err, pipeline.ErrGraphBuild) {
			fmt.Fprintln(os.Stderr, "no routable road geometry in input")
		}
		l.Error("validation failed", "err", err)
		os.Exit(1)
	}

	rep := report{Report: out.Report}
	for _, e := range out.Errors {
		rep.Errors = append(rep.Errors, e.Error())
	}
	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		enc.Encode(rep)
	} else {
		printText(rep)
	}

	if *strict && len(rep.Errors) > 0 {
		os.Exit(2)
	}
}

func printText(r report) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "crs\t%s\n", r.CRS)
	fmt.Fprintf(w, "roads\t%d (%d skipped)\n", r.Roads, r.RoadErrors)
	fmt.Fprintf(w, "obstacles\t%d (%d skipped)\n", r.Obstacles, r.ObstacleErrors)
	fmt.Fprintf(w, "nodes\t%d\n", r.Nodes)
	fmt.Fprintf(w, "edges\t%d (%d removed, %d duplicate segments)\n", r.Edges, r.Removed, r.Build.Duplicates)
	fmt.Fprintf(w, "components\t%d (largest %d nodes)\n", r.Components, r.Largest)
	fmt.Fprintf(w, "fingerprint\t%016x\n", r.Fingerprint)
	fmt.Fprintf(w, "duration\t%s\n", r.Duration)
	w.Flush()
	for _, e := range r.Errors {
		fmt.Println("skipped:", e)
	}
}

// Package config loads service settings from a YAML file, a .env file and
// environment variables, in that order of increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"debris_router/pkg/geo"
	"debris_router/pkg/graph"
	"debris_router/pkg/osm"
	"debris_router/pkg/pipeline"
)

// Road network views served by GET /road-network.
const (
	ViewSource = pipeline.ViewSource
	ViewPruned = pipeline.ViewPruned
)

type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Data    DataConfig    `yaml:"data"`
	Graph   GraphConfig   `yaml:"graph"`
	Routing RoutingConfig `yaml:"routing"`
	Cache   CacheConfig   `yaml:"cache"`
	Log     LogConfig     `yaml:"log"`
}

type ServerConfig struct {
	Port            int           `yaml:"port"`
	CORSOrigin      string        `yaml:"cors-origin"`
	MaxConcurrent   int           `yaml:"max-concurrent"`
	ReadTimeout     time.Duration `yaml:"read-timeout"`
	WriteTimeout    time.Duration `yaml:"write-timeout"`
	RequestTimeout  time.Duration `yaml:"request-timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown-timeout"`
	RoadNetworkView string        `yaml:"road-network-view"`
}

// DataConfig names where roads and obstacles come from. Roads are read from
// RoadsPath unless RoadsQuery is set, in which case they come from
// DatabaseURL. Obstacles are the union of ObstaclesDir, ObstacleFiles and
// ObstaclesQuery.
type DataConfig struct {
	RoadsPath      string     `yaml:"roads"`
	GPKGTable      string     `yaml:"gpkg-table"`
	OSMProfile     string     `yaml:"osm-profile"`
	OSMBound       [4]float64 `yaml:"osm-bound"`
	ObstaclesDir   string     `yaml:"obstacles-dir"`
	ObstacleFiles  []string   `yaml:"obstacle-files"`
	DatabaseURL    string     `yaml:"database-url"`
	RoadsQuery     string     `yaml:"roads-query"`
	ObstaclesQuery string     `yaml:"obstacles-query"`
	// CRS applies to Postgres sources, which carry no CRS of their own.
	CRS string `yaml:"crs"`
}

type GraphConfig struct {
	MergePolicy string `yaml:"merge-policy"`
	Precision   int    `yaml:"precision"`
}

type RoutingConfig struct {
	// MaxSettled caps nodes settled per query. 0 means unlimited.
	MaxSettled int `yaml:"max-settled"`
}

type CacheConfig struct {
	RedisAddr     string        `yaml:"redis-addr"`
	RedisPassword string        `yaml:"redis-password"`
	RedisDB       int           `yaml:"redis-db"`
	TTL           time.Duration `yaml:"ttl"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns a configuration that serves data/roads.geojson and the
// obstacles under data/obstacles on port 8080.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Port:            8080,
			MaxConcurrent:   64,
			ReadTimeout:     5 * time.Second,
			WriteTimeout:    10 * time.Second,
			RequestTimeout:  5 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			RoadNetworkView: ViewSource,
		},
		Data: DataConfig{
			RoadsPath:    "data/roads.geojson",
			OSMProfile:   osm.ProfileDrive.String(),
			ObstaclesDir: "data/obstacles",
			CRS:          geo.DefaultCRS,
		},
		Graph: GraphConfig{
			MergePolicy: graph.MergeLast.String(),
		},
		Cache: CacheConfig{
			TTL: 10 * time.Minute,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load builds the configuration: defaults, then the YAML file at path (if
// path is non-empty), then a .env file in the working directory (if present),
// then the environment. The result is validated.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	// godotenv never overrides variables that are already set.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return cfg, fmt.Errorf("load .env: %w", err)
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) error {
		v, ok := lookup(key)
		if !ok || v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("env %s: %w", key, err)
		}
		*dst = n
		return nil
	}
	dur := func(key string, dst *time.Duration) error {
		v, ok := lookup(key)
		if !ok || v == "" {
			return nil
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("env %s: %w", key, err)
		}
		*dst = d
		return nil
	}

	str("CORS_ORIGIN", &c.Server.CORSOrigin)
	str("ROAD_NETWORK_VIEW", &c.Server.RoadNetworkView)
	str("ROADS_PATH", &c.Data.RoadsPath)
	str("GPKG_TABLE", &c.Data.GPKGTable)
	str("OSM_PROFILE", &c.Data.OSMProfile)
	str("OBSTACLES_DIR", &c.Data.ObstaclesDir)
	str("DATABASE_URL", &c.Data.DatabaseURL)
	str("ROADS_QUERY", &c.Data.RoadsQuery)
	str("OBSTACLES_QUERY", &c.Data.ObstaclesQuery)
	str("DATA_CRS", &c.Data.CRS)
	str("MERGE_POLICY", &c.Graph.MergePolicy)
	str("REDIS_ADDR", &c.Cache.RedisAddr)
	str("REDIS_PASSWORD", &c.Cache.RedisPassword)
	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FORMAT", &c.Log.Format)
	if v, ok := lookup("OBSTACLE_FILES"); ok && v != "" {
		c.Data.ObstacleFiles = splitList(v)
	}

	for _, f := range []func() error{
		func() error { return num("PORT", &c.Server.Port) },
		func() error { return num("MAX_CONCURRENT", &c.Server.MaxConcurrent) },
		func() error { return num("GRAPH_PRECISION", &c.Graph.Precision) },
		func() error { return num("MAX_SETTLED", &c.Routing.MaxSettled) },
		func() error { return num("REDIS_DB", &c.Cache.RedisDB) },
		func() error { return dur("REQUEST_TIMEOUT", &c.Server.RequestTimeout) },
		func() error { return dur("CACHE_TTL", &c.Cache.TTL) },
	} {
		if err := f(); err != nil {
			return err
		}
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate rejects out-of-range numbers and unknown enum values.
func (c Config) Validate() error {
	var errs []error
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	if c.Server.MaxConcurrent <= 0 {
		errs = append(errs, fmt.Errorf("server.max-concurrent must be positive, got %d", c.Server.MaxConcurrent))
	}
	if c.Server.RequestTimeout <= 0 {
		errs = append(errs, errors.New("server.request-timeout must be positive"))
	}
	switch c.Server.RoadNetworkView {
	case ViewSource, ViewPruned:
	default:
		errs = append(errs, fmt.Errorf("server.road-network-view %q (want %s or %s)",
			c.Server.RoadNetworkView, ViewSource, ViewPruned))
	}
	if _, err := graph.ParseMergePolicy(c.Graph.MergePolicy); err != nil {
		errs = append(errs, fmt.Errorf("graph.merge-policy: %w", err))
	}
	if c.Graph.Precision < 0 || c.Graph.Precision > 15 {
		errs = append(errs, fmt.Errorf("graph.precision %d out of range 0..15", c.Graph.Precision))
	}
	if _, err := osm.ParseProfile(c.Data.OSMProfile); err != nil {
		errs = append(errs, fmt.Errorf("data.osm-profile: %w", err))
	}
	if c.Routing.MaxSettled < 0 {
		errs = append(errs, fmt.Errorf("routing.max-settled %d is negative", c.Routing.MaxSettled))
	}
	if c.Data.RoadsPath == "" && c.Data.RoadsQuery == "" {
		errs = append(errs, errors.New("data: one of roads or roads-query is required"))
	}
	if (c.Data.RoadsQuery != "" || c.Data.ObstaclesQuery != "") && c.Data.DatabaseURL == "" {
		errs = append(errs, errors.New("data.database-url is required for SQL sources"))
	}
	return errors.Join(errs...)
}

// Addr is the listen address for the HTTP server.
func (c Config) Addr() string {
	return fmt.Sprintf(":%d", c.Server.Port)
}

package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"runtime"
	"time"

	"github.com/gorilla/mux"

	"debris_router/pkg/logger"
	"debris_router/pkg/metrics"
)

// ServerConfig holds server configuration.
type ServerConfig struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
	MaxConcurrent   int
	CORSOrigin      string
}

// DefaultConfig returns sensible defaults.
func DefaultConfig(addr string) ServerConfig {
	return ServerConfig{
		Addr:            addr,
		ReadTimeout:     5 * time.Second,
		WriteTimeout:    10 * time.Second,
		RequestTimeout:  5 * time.Second,
		ShutdownTimeout: 10 * time.Second,
		MaxConcurrent:   runtime.NumCPU() * 2,
	}
}

// NewRouter registers every route with its middleware.
func NewRouter(cfg ServerConfig, handlers *Handlers, l *slog.Logger) *mux.Router {
	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not_found", "")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "")
	})

	// Concurrency limiter.
	sem := make(chan struct{}, cfg.MaxConcurrent)

	api := r.NewRoute().Subrouter()
	api.HandleFunc("/road-network", handlers.HandleRoadNetwork).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/collapsed-polygons", handlers.HandleCollapsedPolygons).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/shortest-path", handlers.HandleShortestPath).Methods(http.MethodPost, http.MethodOptions)
	api.HandleFunc("/api/v1/health", handlers.HandleHealth).Methods(http.MethodGet)
	api.HandleFunc("/api/v1/stats", handlers.HandleStats).Methods(http.MethodGet)
	api.Use(
		logger.AccessMiddleware(l),
		mux.CORSMethodMiddleware(api),
		withMiddleware(cfg, sem, l),
	)

	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	return r
}

// NewServer creates an HTTP server with all routes and middleware.
func NewServer(cfg ServerConfig, handlers *Handlers, l *slog.Logger) *http.Server {
	return &http.Server{
		Addr:         cfg.Addr,
		Handler:      NewRouter(cfg, handlers, l),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
}

// ListenAndServe serves until ctx is canceled, then shuts down gracefully
// within timeout.
func ListenAndServe(ctx context.Context, srv *http.Server, timeout time.Duration, l *slog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		l.Info("server listening", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		l.Info("shutting down", "cause", context.Cause(ctx))
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

// withMiddleware wraps a handler with recovery, security headers, CORS,
// concurrency limiting and a request timeout.
func withMiddleware(cfg ServerConfig, sem chan struct{}, l *slog.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Security headers.
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("Cache-Control", "no-store")

			// CORS.
			if cfg.CORSOrigin != "" {
				w.Header().Set("Access-Control-Allow-Origin", cfg.CORSOrigin)
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
			}
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			// Concurrency limiter.
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			default:
				w.Header().Set("Retry-After", "1")
				writeError(w, http.StatusServiceUnavailable, "service_unavailable", "")
				return
			}

			// Recovery.
			defer func() {
				if rec := recover(); rec != nil {
					l.Error("panic", "path", r.URL.Path, "panic", rec)
					writeError(w, http.StatusInternalServerError, "internal_error", "")
				}
			}()

			// Request timeout.
			ctx, cancel := context.WithTimeout(r.Context(), cfg.RequestTimeout)
			defer cancel()

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"mime"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/paulmach/orb"

	"debris_router/pkg/metrics"
	"debris_router/pkg/routing"
)

// NoPathMessage is the error body for a query whose endpoints are not
// connected in the pruned network.
const NoPathMessage = "No path exists between the selected locations."

// Dataset holds the documents produced by the batch phase. It is published
// once and never modified afterwards.
type Dataset struct {
	RoadNetwork []byte // GeoJSON FeatureCollection
	Obstacles   []byte // GeoJSON FeatureCollection
	Stats       StatsResponse
}

// Handlers holds the HTTP handlers and their dependencies.
type Handlers struct {
	router routing.Router
	data   atomic.Pointer[Dataset]
	logger *slog.Logger
}

// NewHandlers creates handlers with the given router. Until Publish is
// called every data endpoint answers 503.
func NewHandlers(router routing.Router, logger *slog.Logger) *Handlers {
	return &Handlers{router: router, logger: logger}
}

// Publish makes d visible to the handlers. Only the first call takes effect.
func (h *Handlers) Publish(d *Dataset) bool {
	return h.data.CompareAndSwap(nil, d)
}

// HandleRoadNetwork handles GET /road-network.
func (h *Handlers) HandleRoadNetwork(w http.ResponseWriter, r *http.Request) {
	d := h.data.Load()
	if d == nil {
		writeBuilding(w)
		return
	}
	writeGeoJSON(w, d.RoadNetwork)
}

// HandleCollapsedPolygons handles GET /collapsed-polygons.
func (h *Handlers) HandleCollapsedPolygons(w http.ResponseWriter, r *http.Request) {
	d := h.data.Load()
	if d == nil {
		writeBuilding(w)
		return
	}
	writeGeoJSON(w, d.Obstacles)
}

// HandleShortestPath handles POST /shortest-path.
func (h *Handlers) HandleShortestPath(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	outcome := h.shortestPath(w, r)
	metrics.RouteRequestsTotal.WithLabelValues(outcome).Inc()
	metrics.RouteDurationMs.Observe(float64(time.Since(start).Microseconds()) / 1000)
}

func (h *Handlers) shortestPath(w http.ResponseWriter, r *http.Request) string {
	// Enforce Content-Type.
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "application/json" {
		writeError(w, http.StatusUnprocessableEntity, "invalid_request", "content-type")
		return "invalid"
	}

	// Parse request.
	var req ShortestPathRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1024)).Decode(&req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid_request", "")
		return "invalid"
	}
	if len(req.Start) != 2 {
		writeError(w, http.StatusUnprocessableEntity, "invalid_coordinates", "start")
		return "invalid"
	}
	if len(req.End) != 2 {
		writeError(w, http.StatusUnprocessableEntity, "invalid_coordinates", "end")
		return "invalid"
	}

	// Route. Range and finiteness are checked by the router.
	result, err := h.router.FindRoute(r.Context(),
		orb.Point{req.Start[0], req.Start[1]},
		orb.Point{req.End[0], req.End[1]})
	if err != nil {
		return h.writeRouteError(w, err)
	}
	if result.Settled > 0 {
		metrics.SettledNodes.Observe(float64(result.Settled))
	}

	// Build response.
	resp := ShortestPathResponse{
		Path:        make([][2]float64, len(result.Path)),
		TotalWeight: result.TotalWeight,
		StartSnap:   result.Start.Distance,
		EndSnap:     result.End.Distance,
	}
	for i, p := range result.Path {
		resp.Path[i] = [2]float64(p)
	}
	if result.Geographic {
		m := result.DistanceMeters
		resp.DistanceMeters = &m
	}

	writeJSON(w, http.StatusOK, resp)
	return "ok"
}

// writeRouteError maps a FindRoute error to a status and returns the
// outcome label recorded for it.
func (h *Handlers) writeRouteError(w http.ResponseWriter, err error) string {
	switch {
	case errors.Is(err, routing.ErrNoPathFound):
		writeError(w, http.StatusBadRequest, NoPathMessage, "")
		return "no_path"
	case errors.Is(err, routing.ErrInvalidInput):
		writeError(w, http.StatusUnprocessableEntity, "invalid_coordinates", fieldOf(err))
		return "invalid"
	case errors.Is(err, routing.ErrNotReady):
		writeBuilding(w)
		return "unavailable"
	case errors.Is(err, routing.ErrGraphEmpty):
		writeError(w, http.StatusServiceUnavailable, "graph_empty", "")
		return "unavailable"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusServiceUnavailable, "request_timeout", "")
		return "timeout"
	case errors.Is(err, routing.ErrSearchBudget):
		writeError(w, http.StatusServiceUnavailable, "search_limit_exceeded", "")
		return "timeout"
	}
	h.logger.Error("route query failed", "err", err)
	writeError(w, http.StatusInternalServerError, "internal_error", "")
	return "error"
}

// fieldOf reports which endpoint an engine validation error refers to.
func fieldOf(err error) string {
	for _, f := range []string{"start", "end"} {
		if strings.HasPrefix(err.Error(), f+":") {
			return f
		}
	}
	return ""
}

// HandleHealth handles GET /api/v1/health.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if h.data.Load() == nil {
		writeJSON(w, http.StatusServiceUnavailable, HealthResponse{Status: "building"})
		return
	}
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// HandleStats handles GET /api/v1/stats.
func (h *Handlers) HandleStats(w http.ResponseWriter, r *http.Request) {
	d := h.data.Load()
	if d == nil {
		writeBuilding(w)
		return
	}
	writeJSON(w, http.StatusOK, d.Stats)
}

func writeGeoJSON(w http.ResponseWriter, body []byte) {
	w.Header().Set("Content-Type", "application/geo+json")
	w.Write(body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeBuilding(w http.ResponseWriter) {
	w.Header().Set("Retry-After", "5")
	writeError(w, http.StatusServiceUnavailable, "building", "")
}

func writeError(w http.ResponseWriter, status int, code, field string) {
	writeJSON(w, status, ErrorResponse{Error: code, Field: field})
}

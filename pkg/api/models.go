package api

// ShortestPathRequest is the JSON body for POST /shortest-path. Coordinates
// are [x, y] pairs in the road network's reference system.
type ShortestPathRequest struct {
	Start []float64 `json:"start"`
	End   []float64 `json:"end"`
}

// ShortestPathResponse is the JSON response for a successful route query.
type ShortestPathResponse struct {
	Path        [][2]float64 `json:"path"`
	TotalWeight float64      `json:"total_weight"`
	// DistanceMeters is only present for lon/lat networks.
	DistanceMeters *float64 `json:"distance_meters,omitempty"`
	StartSnap      float64  `json:"start_snap_distance"`
	EndSnap        float64  `json:"end_snap_distance"`
}

// ErrorResponse is the JSON response for errors.
type ErrorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

// StatsResponse is the JSON response for GET /api/v1/stats.
type StatsResponse struct {
	CRS              string `json:"crs"`
	NumNodes         uint32 `json:"num_nodes"`
	NumEdges         uint32 `json:"num_edges"`
	RemovedEdges     int    `json:"removed_edges"`
	Obstacles        int    `json:"obstacles"`
	Components       int    `json:"components"`
	LargestComponent uint32 `json:"largest_component"`
	IngestionErrors  int    `json:"ingestion_errors"`
	Fingerprint      string `json:"fingerprint"`
	BuildMillis      int64  `json:"build_ms"`
}

// HealthResponse is the JSON response for GET /api/v1/health.
type HealthResponse struct {
	Status string `json:"status"`
}

// Package osm extracts road line geometry from OpenStreetMap PBF extracts.
package osm

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/osm"
	"github.com/paulmach/osm/osmpbf"
)

// Way is a road way reduced to its line geometry. A way whose nodes leave
// the bounding box or lack coordinates is split into several Ways that share
// the same ID.
type Way struct {
	ID      osm.WayID
	Highway string
	Line    orb.LineString // lon/lat
}

// Profile selects which highways count as roads.
type Profile int

const (
	// ProfileDrive keeps highways open to motor vehicles.
	ProfileDrive Profile = iota
	// ProfileWalk keeps highways usable on foot.
	ProfileWalk
	// ProfileAll keeps every linear highway.
	ProfileAll
)

func (p Profile) String() string {
	switch p {
	case ProfileDrive:
		return "drive"
	case ProfileWalk:
		return "walk"
	case ProfileAll:
		return "all"
	}
	return fmt.Sprintf("Profile(%d)", int(p))
}

// ParseProfile parses "drive", "walk" or "all". The empty string is "drive".
func ParseProfile(s string) (Profile, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "drive":
		return ProfileDrive, nil
	case "walk":
		return ProfileWalk, nil
	case "all":
		return ProfileAll, nil
	}
	return ProfileDrive, fmt.Errorf("unknown osm profile %q (want drive, walk or all)", s)
}

// carHighways lists highway tag values accessible by car.
var carHighways = map[string]bool{
	"motorway":       true,
	"motorway_link":  true,
	"trunk":          true,
	"trunk_link":     true,
	"primary":        true,
	"primary_link":   true,
	"secondary":      true,
	"secondary_link": true,
	"tertiary":       true,
	"tertiary_link":  true,
	"unclassified":   true,
	"residential":    true,
	"living_street":  true,
	"service":        true,
}

// footHighways lists highway tag values usable on foot, in addition to the
// non-motorway car highways.
var footHighways = map[string]bool{
	"footway":    true,
	"pedestrian": true,
	"path":       true,
	"steps":      true,
	"track":      true,
	"cycleway":   true,
	"bridleway":  true,
}

// nonRoads are highway values that never describe a traversable line.
var nonRoads = map[string]bool{
	"proposed":     true,
	"construction": true,
	"abandoned":    true,
	"platform":     true,
	"raceway":      true,
}

// isCarAccessible returns true if the way is drivable by car.
func isCarAccessible(tags osm.Tags) bool {
	hw := tags.Find("highway")
	if !carHighways[hw] {
		return false
	}

	// Skip area highways (pedestrian plazas).
	if tags.Find("area") == "yes" {
		return false
	}

	// Skip restricted access.
	access := tags.Find("access")
	if access == "no" || access == "private" {
		return false
	}
	if tags.Find("motor_vehicle") == "no" {
		return false
	}

	return true
}

// isWalkable returns true if the way can be used on foot.
func isWalkable(tags osm.Tags) bool {
	hw := tags.Find("highway")
	if hw == "motorway" || hw == "motorway_link" {
		return false
	}
	if !carHighways[hw] && !footHighways[hw] {
		return false
	}
	if tags.Find("area") == "yes" {
		return false
	}
	access := tags.Find("access")
	if access == "no" || access == "private" {
		return tags.Find("foot") == "yes"
	}
	return tags.Find("foot") != "no"
}

// Accepts reports whether a way with these tags is a road under p.
func (p Profile) Accepts(tags osm.Tags) bool {
	switch p {
	case ProfileDrive:
		return isCarAccessible(tags)
	case ProfileWalk:
		return isWalkable(tags)
	}
	hw := tags.Find("highway")
	return hw != "" && !nonRoads[hw] && tags.Find("area") != "yes"
}

// ParseOptions configures the OSM parser.
type ParseOptions struct {
	Profile Profile
	// Bound, if non-zero, keeps only segments with both endpoints inside it.
	Bound orb.Bound
}

// ParseStats counts what Parse kept and dropped.
type ParseStats struct {
	Ways         int // accepted ways
	Nodes        int // node coordinates collected
	MissingNodes int // way node references without coordinates
	Outside      int // way nodes outside the bound
}

// Parse reads an OSM PBF file and returns the road ways selected by the
// profile. The reader is consumed twice (seeks back to start for the second
// pass), so it must implement io.ReadSeeker.
func Parse(ctx context.Context, rs io.ReadSeeker, opts ParseOptions) ([]Way, ParseStats, error) {
	var stats ParseStats

	// Pass 1: Scan ways to collect referenced node IDs.
	referencedNodes := make(map[osm.NodeID]struct{})
	type wayInfo struct {
		id      osm.WayID
		highway string
		nodes   []osm.NodeID
	}
	var ways []wayInfo

	scanner := osmpbf.New(ctx, rs, 1)
	scanner.SkipNodes = true
	scanner.SkipRelations = true

	for scanner.Scan() {
		w, ok := scanner.Object().(*osm.Way)
		if !ok {
			continue
		}
		if len(w.Nodes) < 2 || !opts.Profile.Accepts(w.Tags) {
			continue
		}

		nodeIDs := make([]osm.NodeID, len(w.Nodes))
		for i, wn := range w.Nodes {
			nodeIDs[i] = wn.ID
			referencedNodes[wn.ID] = struct{}{}
		}
		ways = append(ways, wayInfo{id: w.ID, highway: w.Tags.Find("highway"), nodes: nodeIDs})
	}
	if err := scanner.Err(); err != nil {
		scanner.Close()
		return nil, stats, fmt.Errorf("pass 1 (ways): %w", err)
	}
	scanner.Close()
	stats.Ways = len(ways)

	slog.Debug("osm pass 1 complete", "ways", len(ways), "referenced_nodes", len(referencedNodes))

	// Pass 2: Scan nodes to collect coordinates for referenced nodes only.
	if _, err := rs.Seek(0, io.SeekStart); err != nil {
		return nil, stats, fmt.Errorf("seek for pass 2: %w", err)
	}

	coords := make(map[osm.NodeID]orb.Point, len(referencedNodes))

	scanner = osmpbf.New(ctx, rs, 1)
	scanner.SkipWays = true
	scanner.SkipRelations = true

	for scanner.Scan() {
		n, ok := scanner.Object().(*osm.Node)
		if !ok {
			continue
		}
		if _, needed := referencedNodes[n.ID]; !needed {
			continue
		}
		coords[n.ID] = orb.Point{n.Lon, n.Lat}
	}
	if err := scanner.Err(); err != nil {
		scanner.Close()
		return nil, stats, fmt.Errorf("pass 2 (nodes): %w", err)
	}
	scanner.Close()
	stats.Nodes = len(coords)

	slog.Debug("osm pass 2 complete", "node_coordinates", len(coords))

	var out []Way
	for _, w := range ways {
		for _, line := range splitRuns(w.nodes, coords, opts.Bound, &stats) {
			out = append(out, Way{ID: w.id, Highway: w.highway, Line: line})
		}
	}

	if stats.MissingNodes > 0 {
		slog.Warn("osm way nodes without coordinates", "count", stats.MissingNodes)
	}
	if stats.Outside > 0 {
		slog.Info("osm way nodes outside bounding box", "count", stats.Outside)
	}
	return out, stats, nil
}

// splitRuns turns a way's node list into lines made of consecutive nodes
// that have coordinates and lie inside bound. Runs shorter than two nodes
// are dropped.
func splitRuns(nodes []osm.NodeID, coords map[osm.NodeID]orb.Point, bound orb.Bound, stats *ParseStats) []orb.LineString {
	useBound := !bound.IsZero()

	var (
		lines []orb.LineString
		run   orb.LineString
	)
	flush := func() {
		if len(run) >= 2 {
			lines = append(lines, run)
		}
		run = nil
	}

	for _, id := range nodes {
		p, ok := coords[id]
		if !ok {
			stats.MissingNodes++
			flush()
			continue
		}
		if useBound && !bound.Contains(p) {
			stats.Outside++
			flush()
			continue
		}
		run = append(run, p)
	}
	flush()
	return lines
}

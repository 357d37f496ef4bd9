// Package obstacle removes road segments blocked by collapsed structures.
package obstacle

import "github.com/paulmach/orb"

// Obstacle is a collapsed-structure footprint. A route may neither cross nor
// touch it.
type Obstacle struct {
	ID      string // feature id, or "<file>#<n>" when the feature has none
	Source  string // file path or query the obstacle was read from
	Polygon orb.Polygon
}

// Bound returns the bounding box of the exterior ring.
func (o Obstacle) Bound() orb.Bound {
	if len(o.Polygon) == 0 {
		return orb.Bound{}
	}
	return o.Polygon[0].Bound()
}

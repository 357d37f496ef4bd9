package geo

import (
	"math"

	"github.com/paulmach/orb"
)

const earthRadiusMeters = 6_371_000.0

// Haversine returns the great-circle distance in meters between two points.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	lat1r := lat1 * math.Pi / 180
	lat2r := lat2 * math.Pi / 180
	dLat := (lat2 - lat1) * math.Pi / 180
	dLon := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1r)*math.Cos(lat2r)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusMeters * c
}

// PathLengthMeters sums the great-circle length of a lon/lat path.
func PathLengthMeters(path []orb.Point) float64 {
	var total float64
	for i := 1; i < len(path); i++ {
		a, b := path[i-1], path[i]
		total += Haversine(a.Lat(), a.Lon(), b.Lat(), b.Lon())
	}
	return total
}

// IsFinite reports whether both ordinates are finite numbers.
func IsFinite(p orb.Point) bool {
	return !math.IsNaN(p[0]) && !math.IsNaN(p[1]) && !math.IsInf(p[0], 0) && !math.IsInf(p[1], 0)
}

// InGeographicRange reports whether p is a valid longitude/latitude pair.
func InGeographicRange(p orb.Point) bool {
	return math.Abs(p.Lon()) <= 180 && math.Abs(p.Lat()) <= 90
}

// Quantize rounds both ordinates to the given number of decimal digits.
// A precision <= 0 returns p unchanged.
func Quantize(p orb.Point, precision int) orb.Point {
	if precision <= 0 {
		return p
	}
	scale := math.Pow(10, float64(precision))
	return orb.Point{
		math.Round(p[0]*scale) / scale,
		math.Round(p[1]*scale) / scale,
	}
}

// Package geo provides the distance functions used to weight route graphs.
package geo

import (
	"math"

	"github.com/kass/go-globe-routes/pkg/models"
	"github.com/paulmach/orb"
	orbgeo "github.com/paulmach/orb/geo"
)

const (
	earthRadius = 6371.0 // km
	degToRad    = math.Pi / 180.0
)

// FlatDistance returns the equirectangular ("flattened" great-circle) distance
// between two lat/lon points in kilometers. Longitude deltas wrap across the antimeridian.
func FlatDistance(lat1, lon1, lat2, lon2 float64) float64 {
	dLon := (lon2 - lon1) * degToRad
	for dLon > math.Pi {
		dLon -= 2 * math.Pi
	}
	for dLon < -math.Pi {
		dLon += 2 * math.Pi
	}

	meanLat := (lat1 + lat2) / 2 * degToRad
	x := dLon * math.Cos(meanLat)
	y := (lat2 - lat1) * degToRad

	return earthRadius * math.Sqrt(x*x+y*y)
}

// Distance calculates the Haversine distance between two points in kilometers
func Distance(lat1, lon1, lat2, lon2 float64) float64 {
	return orbgeo.DistanceHaversine(orb.Point{lon1, lat1}, orb.Point{lon2, lat2}) / 1000.0
}

// PlanarDistance returns the Euclidean distance between two surface-map positions
func PlanarDistance(a, b models.PlanarCoord) float64 {
	return math.Hypot(b.X-a.X, b.Y-a.Y)
}

// Between returns the route weight between two locations.
// ok is false when the locations are on different bodies or carry mismatched coordinates.
func Between(a, b models.Location) (float64, bool) {
	if a.Kind != b.Kind {
		return 0, false
	}

	switch ca := a.Coords.(type) {
	case models.EarthCoord:
		cb, ok := b.Coords.(models.EarthCoord)
		if !ok {
			return 0, false
		}
		return FlatDistance(ca.Lat, ca.Lon, cb.Lat, cb.Lon), true
	case models.PlanarCoord:
		cb, ok := b.Coords.(models.PlanarCoord)
		if !ok {
			return 0, false
		}
		return PlanarDistance(ca, cb), true
	default:
		return 0, false
	}
}

// Package geospatial holds the distance model used by the recommender.
package geospatial

import (
	"math"

	"github.com/samirrijal/routegate/internal/core/domain"
)

// EarthRadiusKm is the mean Earth radius.
const EarthRadiusKm = 6371.0088

// DistanceKm returns the great-circle (haversine) distance between a and b.
func DistanceKm(a, b domain.GeoPoint) float64 {
	lat1, lat2 := radians(a.Latitude), radians(b.Latitude)
	dLat := lat2 - lat1
	dLon := radians(b.Longitude - a.Longitude)

	h := hav(dLat) + math.Cos(lat1)*math.Cos(lat2)*hav(dLon)
	// Rounding can push h a hair past 1 for antipodal points.
	h = math.Min(1, math.Max(0, h))

	return 2 * EarthRadiusKm * math.Asin(math.Sqrt(h))
}

func hav(theta float64) float64 {
	s := math.Sin(theta / 2)
	return s * s
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}

package usecases

import (
	"maps"
	"slices"
	"strings"

	"github.com/samirrijal/routegate/internal/core/domain"
)

var defaultCities = map[string]domain.GeoPoint{
	"new york":    {Latitude: 40.7128, Longitude: -74.0060},
	"los angeles": {Latitude: 34.0522, Longitude: -118.2437},
	"london":      {Latitude: 51.5074, Longitude: -0.1278},
	"tokyo":       {Latitude: 35.6895, Longitude: 139.6917},
	"sydney":      {Latitude: -33.8688, Longitude: 151.2093},
	"kolkata":     {Latitude: 22.5726, Longitude: 88.3639},
	"mumbai":      {Latitude: 19.0760, Longitude: 72.8777},
}

// StaticGeocoder resolves destination names against a fixed city table.
// It is safe for concurrent use; the table is never modified after construction.
type StaticGeocoder struct {
	cities map[string]domain.GeoPoint
}

// NewStaticGeocoder builds the city table, merging extra over the built-in cities.
func NewStaticGeocoder(extra map[string]domain.GeoPoint) *StaticGeocoder {
	cities := maps.Clone(defaultCities)
	for name, p := range extra {
		if key := normalizeCity(name); key != "" {
			cities[key] = p
		}
	}
	return &StaticGeocoder{cities: cities}
}

// Lookup returns the coordinates of name, ignoring case and surrounding spaces.
func (g *StaticGeocoder) Lookup(name string) (domain.GeoPoint, bool) {
	p, ok := g.cities[normalizeCity(name)]
	return p, ok
}

// Cities lists the known city names in alphabetical order.
func (g *StaticGeocoder) Cities() []string {
	return slices.Sorted(maps.Keys(g.cities))
}

func normalizeCity(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

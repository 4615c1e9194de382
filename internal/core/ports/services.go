package ports

import (
	"context"

	"github.com/samirrijal/routegate/internal/core/domain"
)

// LocationProvider resolves the caller's approximate position.
// A non-2xx answer is reported as *domain.UpstreamResponseError.
type LocationProvider interface {
	Locate(ctx context.Context, ip string) (*domain.LocationReport, error)
}

// Geocoder maps destination city names to coordinates.
type Geocoder interface {
	Lookup(name string) (domain.GeoPoint, bool)
}

// RecommendationProvider is one interchangeable recommendation backend.
type RecommendationProvider interface {
	Endpoint() string
	Health(ctx context.Context) (domain.ProviderHealth, error)
	Recommend(ctx context.Context, req domain.RecommendationRequest) ([]domain.RecommendationOption, error)
}

// IPGeolocator looks up an IP address with a third-party geolocation API.
// An empty ip means the address of the calling host.
type IPGeolocator interface {
	Locate(ctx context.Context, ip string) (*domain.LocationReport, error)
}

// EventPublisher publishes domain events to a message broker.
type EventPublisher interface {
	PublishRouteQuery(ctx context.Context, event *domain.RouteQueryEvent) error
}

// CacheService provides read-through caching.
type CacheService interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttlSeconds int) error
	Delete(ctx context.Context, key string) error
}

package http

import (
	"time"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/routegate/internal/adapters/valkey"
	"github.com/samirrijal/routegate/internal/core/usecases"
)

// Dependencies holds the services needed by HTTP handlers. Each binary fills
// in only the services it serves.
type Dependencies struct {
	Service string

	Gateway     *usecases.GatewayService
	Geocoder    *usecases.StaticGeocoder
	Location    *usecases.LocationService
	Recommender *usecases.RecommenderService

	NATS  *nats.Conn
	Cache *valkey.Cache

	// RequestTimeout bounds a whole aggregation request.
	RequestTimeout time.Duration
	// DocsPath points at the OpenAPI document served under /docs.
	DocsPath string
}

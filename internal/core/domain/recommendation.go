package domain

import "time"

// Preference is the optimisation axis a client asks recommendations for.
type Preference string

const (
	PreferenceFastest  Preference = "fastest"
	PreferenceCheapest Preference = "cheapest"
	PreferenceGreenest Preference = "greenest"
)

// DefaultPreference is used when the client omits one.
const DefaultPreference = PreferenceFastest

// RecommendationOption is a single transport option produced by a
// recommendation provider. The gateway passes it through unmodified and
// never checks its fields.
type RecommendationOption struct {
	ID              string  `json:"id"`
	Mode            string  `json:"mode"`
	DurationMinutes int     `json:"duration_minutes"`
	CostUSD         float64 `json:"cost_usd"`
	CO2Kg           float64 `json:"environmental_impact_co2_kg"`
	DistanceKm      float64 `json:"estimated_distance_km"`
	Source          string  `json:"source_cloud"`
}

// RecommendationRequest is what the gateway forwards to a provider.
type RecommendationRequest struct {
	Origin      GeoPoint
	Destination GeoPoint
	Preference  Preference
}

// RouteRecommendations is the response envelope of an aggregation request.
type RouteRecommendations struct {
	Origin               Origin                 `json:"origin"`
	DestinationRequested string                 `json:"destination_requested"`
	DestinationCoords    GeoPoint               `json:"destination_coords"`
	Preference           Preference             `json:"preference"`
	Recommendations      []RecommendationOption `json:"recommendations"`
	Notes                []string               `json:"notes"`
}

// ProviderHealth is the liveness payload of a recommendation provider.
type ProviderHealth struct {
	Status string `json:"status"`
	Source string `json:"source"`
}

// Healthy reports whether the provider asserted it is ok.
func (h ProviderHealth) Healthy() bool {
	return h.Status == "ok"
}

// ProviderStatus is the health of one configured endpoint.
type ProviderStatus struct {
	Endpoint string `json:"endpoint"`
	Healthy  bool   `json:"healthy"`
	Source   string `json:"source,omitempty"`
	Error    string `json:"error,omitempty"`
}

// RouteQueryEvent is published after every aggregation request.
type RouteQueryEvent struct {
	Destination      string     `json:"destination"`
	Preference       Preference `json:"preference"`
	OriginCity       string     `json:"origin_city,omitempty"`
	OriginFallback   bool       `json:"origin_fallback"`
	Provider         string     `json:"provider,omitempty"`
	HealthyProviders int        `json:"healthy_providers"`
	Recommendations  int        `json:"recommendations"`
	Outcome          string     `json:"outcome"`
	DurationMs       int64      `json:"duration_ms"`
	At               time.Time  `json:"at"`
}

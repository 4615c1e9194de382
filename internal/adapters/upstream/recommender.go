package upstream

import (
	"context"
	"strconv"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/samirrijal/routegate/internal/core/domain"
)

// recommendationsPayload only fixes the shape of the answer; options are opaque.
type recommendationsPayload struct {
	Recommendations []domain.RecommendationOption `json:"recommendations"`
}

// RecommenderClient calls one recommendation service instance.
type RecommenderClient struct {
	baseURL string
	http    *httpClient
}

// NewRecommenderClient creates a client for the recommender at baseURL.
// timeout caps every call; callers normally pass a shorter context deadline.
func NewRecommenderClient(baseURL string, timeout time.Duration) *RecommenderClient {
	return &RecommenderClient{baseURL: baseURL, http: newHTTPClient("routegate-gateway", timeout)}
}

func (c *RecommenderClient) Endpoint() string { return c.baseURL }

// Health calls GET /health.
func (c *RecommenderClient) Health(ctx context.Context) (domain.ProviderHealth, error) {
	var health domain.ProviderHealth
	err := c.http.getJSON(ctx, func(req *fasthttp.Request) {
		req.SetRequestURI(c.baseURL + "/health")
	}, &health)
	return health, err
}

// Recommend calls GET /recommendations. A missing list is returned as empty.
func (c *RecommenderClient) Recommend(ctx context.Context, r domain.RecommendationRequest) ([]domain.RecommendationOption, error) {
	var payload recommendationsPayload
	err := c.http.getJSON(ctx, func(req *fasthttp.Request) {
		req.SetRequestURI(c.baseURL + "/recommendations")
		args := req.URI().QueryArgs()
		args.Set("origin_lat", formatCoord(r.Origin.Latitude))
		args.Set("origin_lon", formatCoord(r.Origin.Longitude))
		args.Set("dest_lat", formatCoord(r.Destination.Latitude))
		args.Set("dest_lon", formatCoord(r.Destination.Longitude))
		args.Set("preference", string(r.Preference))
	}, &payload)
	if err != nil {
		return nil, err
	}
	if payload.Recommendations == nil {
		return []domain.RecommendationOption{}, nil
	}
	return payload.Recommendations, nil
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

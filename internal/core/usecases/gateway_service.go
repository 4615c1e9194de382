package usecases

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"slices"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/samirrijal/routegate/internal/core/domain"
	"github.com/samirrijal/routegate/internal/core/ports"
	"github.com/samirrijal/routegate/internal/pkg/logging"
	"github.com/samirrijal/routegate/internal/pkg/metrics"
	"github.com/samirrijal/routegate/internal/pkg/telemetry"
)

const (
	warnLocationTimeout = "Location Service request timed out. Origin unknown."
	warnOriginUnknown   = "Origin location could not be determined; using default."
)

// GatewayOptions is the immutable configuration of a GatewayService.
type GatewayOptions struct {
	LocationTimeout time.Duration
	HealthTimeout   time.Duration
	RouteTimeout    time.Duration

	// FallbackOrigin is used whenever the location provider gives no coordinates.
	FallbackOrigin domain.Origin

	// RetryOnForwardFailure lets a failed forward move on to another healthy provider.
	RetryOnForwardFailure bool

	// Pick returns an index in [0, n). Defaults to a uniform random choice.
	Pick func(n int) int
}

// DefaultGatewayOptions returns the timeouts and fallback origin used in production.
func DefaultGatewayOptions() GatewayOptions {
	return GatewayOptions{
		LocationTimeout: 5 * time.Second,
		HealthTimeout:   1500 * time.Millisecond,
		RouteTimeout:    10 * time.Second,
		FallbackOrigin: domain.Origin{
			City:     "London (Default Origin)",
			GeoPoint: domain.GeoPoint{Latitude: 51.5074, Longitude: -0.1278},
		},
		Pick: rand.IntN,
	}
}

// RouteQuery is a client request for recommendations.
type RouteQuery struct {
	Destination string
	Preference  domain.Preference
	IP          string
}

// GatewayService aggregates location, geocoding and a recommendation
// provider into one response.
type GatewayService struct {
	locator   ports.LocationProvider
	geocoder  ports.Geocoder
	providers []ports.RecommendationProvider
	events    ports.EventPublisher
	opts      GatewayOptions
}

// NewGatewayService creates a new GatewayService. events may be nil.
func NewGatewayService(
	locator ports.LocationProvider,
	geocoder ports.Geocoder,
	providers []ports.RecommendationProvider,
	events ports.EventPublisher,
	opts GatewayOptions,
) *GatewayService {
	def := DefaultGatewayOptions()
	if opts.LocationTimeout <= 0 {
		opts.LocationTimeout = def.LocationTimeout
	}
	if opts.HealthTimeout <= 0 {
		opts.HealthTimeout = def.HealthTimeout
	}
	if opts.RouteTimeout <= 0 {
		opts.RouteTimeout = def.RouteTimeout
	}
	if opts.FallbackOrigin.City == "" {
		opts.FallbackOrigin = def.FallbackOrigin
	}
	if opts.Pick == nil {
		opts.Pick = def.Pick
	}
	return &GatewayService{
		locator:   locator,
		geocoder:  geocoder,
		providers: slices.Clone(providers),
		events:    events,
		opts:      opts,
	}
}

// GetRouteRecommendations resolves the origin, geocodes the destination,
// picks a healthy provider and returns its recommendations.
//
// Origin resolution never fails the request; every other stage does, with
// a *domain.Error describing the failure.
func (s *GatewayService) GetRouteRecommendations(ctx context.Context, q RouteQuery) (*domain.RouteRecommendations, error) {
	q.Destination = strings.TrimSpace(q.Destination)
	if q.Destination == "" {
		metrics.RouteRequests.WithLabelValues(string(domain.KindMissingParameter)).Inc()
		return nil, domain.NewError(domain.KindMissingParameter, "Destination city parameter ('destination') is required")
	}
	if q.Preference == "" {
		q.Preference = domain.DefaultPreference
	}

	start := time.Now()
	ctx, span := telemetry.Tracer().Start(ctx, "gateway.GetRouteRecommendations",
		trace.WithAttributes(
			attribute.String("route.destination", q.Destination),
			attribute.String("route.preference", string(q.Preference)),
		))
	defer span.End()

	event := &domain.RouteQueryEvent{Destination: q.Destination, Preference: q.Preference}
	result, err := s.aggregate(ctx, q, event)
	s.finish(ctx, span, event, start, err)
	return result, err
}

func (s *GatewayService) aggregate(ctx context.Context, q RouteQuery, event *domain.RouteQueryEvent) (*domain.RouteRecommendations, error) {
	log := logging.FromContext(ctx)

	origin, warning, fallback := s.resolveOrigin(ctx, q.IP)
	event.OriginCity = origin.City
	event.OriginFallback = fallback

	dest, ok := s.geocoder.Lookup(q.Destination)
	if !ok {
		return nil, domain.NewError(domain.KindUnknownDestination,
			fmt.Sprintf("Could not find coordinates for destination city: %s", q.Destination))
	}

	healthy := s.healthyProviders(ctx)
	event.HealthyProviders = len(healthy)
	if len(healthy) == 0 {
		log.Error("no healthy recommendation provider", "configured", len(s.providers))
		return nil, domain.NewError(domain.KindNoProviderAvailable, "Recommendation service is temporarily unavailable")
	}

	notes := []string{}
	if warning != "" {
		notes = append(notes, warning)
	}

	req := domain.RecommendationRequest{Origin: origin.GeoPoint, Destination: dest, Preference: q.Preference}
	recs, endpoint, failovers, err := s.forward(ctx, healthy, req)
	event.Provider = endpoint
	if err != nil {
		return nil, err
	}
	notes = append(notes, failovers...)

	if recs == nil {
		recs = []domain.RecommendationOption{}
	}
	event.Recommendations = len(recs)

	return &domain.RouteRecommendations{
		Origin:               origin,
		DestinationRequested: q.Destination,
		DestinationCoords:    dest,
		Preference:           q.Preference,
		Recommendations:      recs,
		Notes:                notes,
	}, nil
}

// resolveOrigin asks the location provider for coordinates and falls back to
// the configured origin. It returns the origin, a warning for the notes and
// whether the fallback was used.
func (s *GatewayService) resolveOrigin(ctx context.Context, ip string) (domain.Origin, string, bool) {
	ctx, span := telemetry.Tracer().Start(ctx, "gateway.resolve_origin")
	defer span.End()
	log := logging.FromContext(ctx)

	lctx, cancel := context.WithTimeout(ctx, s.opts.LocationTimeout)
	defer cancel()

	start := time.Now()
	report, err := s.locator.Locate(lctx, ip)
	metrics.ObserveUpstream("location", "locate", start)

	var warning, reason string
	var respErr *domain.UpstreamResponseError
	switch {
	case err == nil:
		warning = report.Warning
		if report.HasCoordinates() {
			city := report.City
			if city == "" {
				city = "Unknown"
			}
			log.Debug("origin resolved", "city", city)
			return domain.Origin{
				City:     city,
				GeoPoint: domain.GeoPoint{Latitude: *report.Latitude, Longitude: *report.Longitude},
			}, warning, false
		}
		reason = "missing_coordinates"
		log.Warn("location response missing coordinates")
	case isTimeout(err):
		warning = warnLocationTimeout
		reason = "timeout"
		log.Warn("location lookup timed out", "timeout", s.opts.LocationTimeout)
	case errors.As(err, &respErr):
		warning = fmt.Sprintf("Location Service returned status %d. Origin unknown.", respErr.StatusCode)
		reason = "upstream_status"
		log.Warn("location lookup failed", "status", respErr.StatusCode, "error", respErr.Message)
	default:
		warning = fmt.Sprintf("Could not contact Location Service (%v). Origin unknown.", err)
		reason = "unreachable"
		log.Warn("location service unreachable", "error", err)
	}

	if warning == "" {
		warning = warnOriginUnknown
	}
	metrics.OriginFallbacks.WithLabelValues(reason).Inc()
	span.SetAttributes(attribute.String("origin.fallback_reason", reason))
	return s.opts.FallbackOrigin, warning, true
}

// ProviderStatus probes every configured provider. Order follows configuration.
func (s *GatewayService) ProviderStatus(ctx context.Context) []domain.ProviderStatus {
	ctx, span := telemetry.Tracer().Start(ctx, "gateway.probe_providers")
	defer span.End()

	statuses := make([]domain.ProviderStatus, len(s.providers))
	var g errgroup.Group
	for i, p := range s.providers {
		g.Go(func() error {
			statuses[i] = s.probe(ctx, p)
			return nil
		})
	}
	_ = g.Wait()
	return statuses
}

func (s *GatewayService) healthyProviders(ctx context.Context) []ports.RecommendationProvider {
	statuses := s.ProviderStatus(ctx)

	healthy := make([]ports.RecommendationProvider, 0, len(statuses))
	for i, st := range statuses {
		if st.Healthy {
			healthy = append(healthy, s.providers[i])
		}
	}
	metrics.HealthyProviders.Observe(float64(len(healthy)))
	return healthy
}

func (s *GatewayService) probe(ctx context.Context, p ports.RecommendationProvider) domain.ProviderStatus {
	pctx, cancel := context.WithTimeout(ctx, s.opts.HealthTimeout)
	defer cancel()

	start := time.Now()
	health, err := p.Health(pctx)
	metrics.ObserveUpstream("recommender", "health", start)

	status := domain.ProviderStatus{Endpoint: p.Endpoint()}
	switch {
	case err != nil:
		status.Error = err.Error()
	case !health.Healthy():
		status.Error = fmt.Sprintf("reported status %q", health.Status)
	default:
		status.Healthy = true
		status.Source = health.Source
	}

	result := "healthy"
	if !status.Healthy {
		result = "unhealthy"
		logging.FromContext(ctx).Warn("health check failed", "endpoint", status.Endpoint, "error", status.Error)
	}
	metrics.ProviderProbes.WithLabelValues(status.Endpoint, result).Inc()
	return status
}

// forward sends req to a randomly chosen candidate. With retries enabled a
// failed candidate is dropped and another one is tried until none remain.
func (s *GatewayService) forward(
	ctx context.Context,
	candidates []ports.RecommendationProvider,
	req domain.RecommendationRequest,
) ([]domain.RecommendationOption, string, []string, error) {
	log := logging.FromContext(ctx)
	remaining := slices.Clone(candidates)
	var notes []string

	for {
		idx := s.opts.Pick(len(remaining))
		if idx < 0 || idx >= len(remaining) {
			idx = 0
		}
		p := remaining[idx]
		endpoint := p.Endpoint()
		metrics.ProviderSelections.WithLabelValues(endpoint).Inc()
		log.Info("selected recommendation provider", "endpoint", endpoint, "healthy", len(remaining))

		recs, err := s.recommend(ctx, p, req)
		if err == nil {
			return recs, endpoint, notes, nil
		}
		log.Error("recommendation request failed", "endpoint", endpoint, "error", err)

		remaining = slices.Delete(remaining, idx, idx+1)
		if !s.opts.RetryOnForwardFailure || len(remaining) == 0 {
			return nil, endpoint, nil, translateForwardError(err)
		}
		notes = append(notes, fmt.Sprintf("Recommendation provider %s failed (%v); used another healthy provider.", endpoint, err))
	}
}

func (s *GatewayService) recommend(ctx context.Context, p ports.RecommendationProvider, req domain.RecommendationRequest) ([]domain.RecommendationOption, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "gateway.forward",
		trace.WithAttributes(attribute.String("provider.endpoint", p.Endpoint())))
	defer span.End()

	rctx, cancel := context.WithTimeout(ctx, s.opts.RouteTimeout)
	defer cancel()

	start := time.Now()
	recs, err := p.Recommend(rctx, req)
	metrics.ObserveUpstream("recommender", "recommend", start)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "forward failed")
	}
	return recs, err
}

func translateForwardError(err error) error {
	if isTimeout(err) {
		return &domain.Error{
			Kind:    domain.KindUpstreamTimeout,
			Message: "Fetching recommendations timed out",
			Err:     err,
		}
	}

	var respErr *domain.UpstreamResponseError
	if errors.As(err, &respErr) {
		status := respErr.StatusCode
		if status < http.StatusBadRequest {
			status = http.StatusBadGateway
		}
		return &domain.Error{
			Kind:    domain.KindUpstreamError,
			Status:  status,
			Message: "Failed to get recommendations",
			Details: respErr.Message,
			Err:     err,
		}
	}

	return &domain.Error{
		Kind:    domain.KindUpstreamError,
		Status:  http.StatusServiceUnavailable,
		Message: "Failed to get recommendations",
		Details: "Unknown error communicating with recommendation service.",
		Err:     err,
	}
}

func (s *GatewayService) finish(ctx context.Context, span trace.Span, event *domain.RouteQueryEvent, start time.Time, err error) {
	event.Outcome = "ok"
	if err != nil {
		event.Outcome = string(domain.KindUpstreamError)
		if e, ok := domain.AsError(err); ok {
			event.Outcome = string(e.Kind)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, event.Outcome)
	}
	event.DurationMs = time.Since(start).Milliseconds()
	event.At = time.Now().UTC()
	metrics.RouteRequests.WithLabelValues(event.Outcome).Inc()

	if s.events == nil {
		return
	}
	if perr := s.events.PublishRouteQuery(ctx, event); perr != nil {
		logging.FromContext(ctx).Warn("publish route query event", "error", perr)
	}
}

func isTimeout(err error) bool {
	return errors.Is(err, domain.ErrUpstreamTimeout) || errors.Is(err, context.DeadlineExceeded)
}

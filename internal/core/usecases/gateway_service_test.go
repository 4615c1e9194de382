package usecases_test

import (
	"context"
	"errors"
	"math/rand/v2"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/samirrijal/routegate/internal/core/domain"
	"github.com/samirrijal/routegate/internal/core/ports"
	"github.com/samirrijal/routegate/internal/core/usecases"
)

// --- Mock LocationProvider ---

type mockLocator struct {
	calls    atomic.Int32
	locateFn func(ctx context.Context, ip string) (*domain.LocationReport, error)
}

func (m *mockLocator) Locate(ctx context.Context, ip string) (*domain.LocationReport, error) {
	m.calls.Add(1)
	if m.locateFn != nil {
		return m.locateFn(ctx, ip)
	}
	return nil, errors.New("connection refused")
}

// --- Mock RecommendationProvider ---

type mockProvider struct {
	endpoint    string
	healthCalls atomic.Int32
	recCalls    atomic.Int32
	healthFn    func(ctx context.Context) (domain.ProviderHealth, error)
	recommendFn func(ctx context.Context, req domain.RecommendationRequest) ([]domain.RecommendationOption, error)
}

func (m *mockProvider) Endpoint() string { return m.endpoint }

func (m *mockProvider) Health(ctx context.Context) (domain.ProviderHealth, error) {
	m.healthCalls.Add(1)
	if m.healthFn != nil {
		return m.healthFn(ctx)
	}
	return domain.ProviderHealth{Status: "ok", Source: m.endpoint}, nil
}

func (m *mockProvider) Recommend(ctx context.Context, req domain.RecommendationRequest) ([]domain.RecommendationOption, error) {
	m.recCalls.Add(1)
	if m.recommendFn != nil {
		return m.recommendFn(ctx, req)
	}
	return []domain.RecommendationOption{}, nil
}

// --- Mock EventPublisher ---

type mockEvents struct {
	mu     sync.Mutex
	events []*domain.RouteQueryEvent
	err    error
}

func (m *mockEvents) PublishRouteQuery(ctx context.Context, e *domain.RouteQueryEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, e)
	return m.err
}

func unhealthy(ctx context.Context) (domain.ProviderHealth, error) {
	return domain.ProviderHealth{}, errors.New("dial tcp: connection refused")
}

func reportAt(city string, lat, lon float64, warning string) *domain.LocationReport {
	return &domain.LocationReport{City: city, Latitude: &lat, Longitude: &lon, Warning: warning}
}

func testOptions() usecases.GatewayOptions {
	opts := usecases.DefaultGatewayOptions()
	opts.Pick = func(n int) int { return 0 }
	return opts
}

func newGateway(loc ports.LocationProvider, events ports.EventPublisher, opts usecases.GatewayOptions, providers ...ports.RecommendationProvider) *usecases.GatewayService {
	return usecases.NewGatewayService(loc, usecases.NewStaticGeocoder(nil), providers, events, opts)
}

// --- Tests ---

func TestGateway_TokyoFastestWithFallbackOrigin(t *testing.T) {
	loc := &mockLocator{}
	recommender := usecases.NewRecommenderService("GCP", rand.New(rand.NewPCG(1, 2)))

	var got domain.RecommendationRequest
	p := &mockProvider{
		endpoint: "http://gcp:5002",
		recommendFn: func(ctx context.Context, req domain.RecommendationRequest) ([]domain.RecommendationOption, error) {
			got = req
			return recommender.Recommend(req), nil
		},
	}

	svc := newGateway(loc, nil, testOptions(), p)
	res, err := svc.GetRouteRecommendations(context.Background(), usecases.RouteQuery{Destination: "Tokyo", Preference: "fastest"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := domain.GeoPoint{Latitude: 35.6895, Longitude: 139.6917}
	if res.DestinationCoords != want {
		t.Errorf("expected %v, got %v", want, res.DestinationCoords)
	}
	if res.Origin.City != "London (Default Origin)" || res.Origin.Latitude != 51.5074 {
		t.Errorf("expected London fallback origin, got %+v", res.Origin)
	}
	if got.Origin != res.Origin.GeoPoint || got.Destination != want {
		t.Errorf("forwarded request mismatch: %+v", got)
	}
	if len(res.Recommendations) == 0 {
		t.Fatal("expected recommendations")
	}
	for i := 1; i < len(res.Recommendations); i++ {
		if res.Recommendations[i-1].DurationMinutes > res.Recommendations[i].DurationMinutes {
			t.Fatalf("recommendations not sorted by duration: %+v", res.Recommendations)
		}
	}
	if len(res.Notes) != 1 || !strings.HasPrefix(res.Notes[0], "Could not contact Location Service") {
		t.Errorf("expected origin warning note, got %v", res.Notes)
	}
}

func TestGateway_UnknownDestination(t *testing.T) {
	p := &mockProvider{endpoint: "http://a"}
	svc := newGateway(&mockLocator{}, nil, testOptions(), p)

	_, err := svc.GetRouteRecommendations(context.Background(), usecases.RouteQuery{Destination: "Atlantis"})
	e, ok := domain.AsError(err)
	if !ok {
		t.Fatalf("expected domain error, got %v", err)
	}
	if e.Kind != domain.KindUnknownDestination || e.HTTPStatus() != 404 {
		t.Errorf("expected unknown_destination/404, got %s/%d", e.Kind, e.HTTPStatus())
	}
	if e.Message != "Could not find coordinates for destination city: Atlantis" {
		t.Errorf("unexpected message %q", e.Message)
	}
	if p.recCalls.Load() != 0 {
		t.Error("no forward expected for unknown destination")
	}
}

func TestGateway_MissingDestinationMakesNoCalls(t *testing.T) {
	loc := &mockLocator{}
	p := &mockProvider{endpoint: "http://a"}
	events := &mockEvents{}
	svc := newGateway(loc, events, testOptions(), p)

	for _, dest := range []string{"", "   "} {
		_, err := svc.GetRouteRecommendations(context.Background(), usecases.RouteQuery{Destination: dest})
		e, ok := domain.AsError(err)
		if !ok || e.Kind != domain.KindMissingParameter || e.HTTPStatus() != 400 {
			t.Fatalf("destination %q: expected missing_parameter, got %v", dest, err)
		}
	}
	if loc.calls.Load() != 0 || p.healthCalls.Load() != 0 || p.recCalls.Load() != 0 {
		t.Error("expected no upstream calls")
	}
	if len(events.events) != 0 {
		t.Error("no event expected before validation passes")
	}
}

func TestGateway_NoHealthyProvider(t *testing.T) {
	a := &mockProvider{endpoint: "http://a", healthFn: unhealthy}
	b := &mockProvider{endpoint: "http://b", healthFn: func(ctx context.Context) (domain.ProviderHealth, error) {
		return domain.ProviderHealth{Status: "degraded"}, nil
	}}
	svc := newGateway(&mockLocator{}, nil, testOptions(), a, b)

	_, err := svc.GetRouteRecommendations(context.Background(), usecases.RouteQuery{Destination: "london"})
	e, ok := domain.AsError(err)
	if !ok || e.Kind != domain.KindNoProviderAvailable || e.HTTPStatus() != 503 {
		t.Fatalf("expected no_provider_available/503, got %v", err)
	}
	if a.recCalls.Load() != 0 || b.recCalls.Load() != 0 {
		t.Error("no forward expected without healthy providers")
	}
}

func TestGateway_SelectsOnlyHealthyProviders(t *testing.T) {
	down := &mockProvider{endpoint: "http://down", healthFn: unhealthy}
	up := &mockProvider{endpoint: "http://up"}

	opts := testOptions()
	var seen int
	opts.Pick = func(n int) int { seen = n; return n - 1 }

	svc := newGateway(&mockLocator{}, nil, opts, down, up)
	if _, err := svc.GetRouteRecommendations(context.Background(), usecases.RouteQuery{Destination: "Sydney"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if seen != 1 {
		t.Errorf("expected pick over 1 healthy provider, got %d", seen)
	}
	if down.recCalls.Load() != 0 || up.recCalls.Load() != 1 {
		t.Errorf("expected forward to healthy provider only (down=%d up=%d)", down.recCalls.Load(), up.recCalls.Load())
	}
}

func TestGateway_SlowHealthProbeIsBounded(t *testing.T) {
	slow := &mockProvider{endpoint: "http://slow", healthFn: func(ctx context.Context) (domain.ProviderHealth, error) {
		<-ctx.Done()
		return domain.ProviderHealth{}, ctx.Err()
	}}
	fast := &mockProvider{endpoint: "http://fast"}

	opts := testOptions()
	opts.HealthTimeout = 50 * time.Millisecond
	svc := newGateway(&mockLocator{}, nil, opts, slow, fast)

	start := time.Now()
	if _, err := svc.GetRouteRecommendations(context.Background(), usecases.RouteQuery{Destination: "mumbai"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("slow probe stalled request for %v", elapsed)
	}
	if fast.recCalls.Load() != 1 {
		t.Error("expected forward to fast provider")
	}
}

func TestGateway_OriginFromLocationProvider(t *testing.T) {
	loc := &mockLocator{locateFn: func(ctx context.Context, ip string) (*domain.LocationReport, error) {
		if ip != "8.8.8.8" {
			t.Errorf("expected ip override, got %q", ip)
		}
		return reportAt("Mountain View", 37.386, -122.0838, ""), nil
	}}
	svc := newGateway(loc, nil, testOptions(), &mockProvider{endpoint: "http://a"})

	res, err := svc.GetRouteRecommendations(context.Background(), usecases.RouteQuery{Destination: "Los Angeles", IP: "8.8.8.8"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Origin.City != "Mountain View" || res.Origin.Latitude != 37.386 {
		t.Errorf("unexpected origin %+v", res.Origin)
	}
	if res.Preference != domain.PreferenceFastest {
		t.Errorf("expected default preference fastest, got %s", res.Preference)
	}
	if res.Notes == nil || len(res.Notes) != 0 {
		t.Errorf("expected empty non-nil notes, got %#v", res.Notes)
	}
	if res.Recommendations == nil {
		t.Error("recommendations must never be nil")
	}
}

func TestGateway_OriginWarnings(t *testing.T) {
	tests := []struct {
		name     string
		locate   func(ctx context.Context, ip string) (*domain.LocationReport, error)
		wantCity string
		wantNote string
	}{
		{
			name: "provider default carries its warning",
			locate: func(ctx context.Context, ip string) (*domain.LocationReport, error) {
				return reportAt("New York (Default)", 40.7128, -74.006, "Location API key not configured. Returning default location."), nil
			},
			wantCity: "New York (Default)",
			wantNote: "Location API key not configured. Returning default location.",
		},
		{
			name: "timeout",
			locate: func(ctx context.Context, ip string) (*domain.LocationReport, error) {
				return nil, domain.ErrUpstreamTimeout
			},
			wantCity: "London (Default Origin)",
			wantNote: "Location Service request timed out. Origin unknown.",
		},
		{
			name: "non-2xx",
			locate: func(ctx context.Context, ip string) (*domain.LocationReport, error) {
				return nil, &domain.UpstreamResponseError{StatusCode: 503, Message: "Network error"}
			},
			wantCity: "London (Default Origin)",
			wantNote: "Location Service returned status 503. Origin unknown.",
		},
		{
			name: "missing coordinates without warning",
			locate: func(ctx context.Context, ip string) (*domain.LocationReport, error) {
				return &domain.LocationReport{City: "Nowhere"}, nil
			},
			wantCity: "London (Default Origin)",
			wantNote: "Origin location could not be determined; using default.",
		},
		{
			name: "missing coordinates keeps provider warning",
			locate: func(ctx context.Context, ip string) (*domain.LocationReport, error) {
				return &domain.LocationReport{Warning: "lookup failed"}, nil
			},
			wantCity: "London (Default Origin)",
			wantNote: "lookup failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newGateway(&mockLocator{locateFn: tt.locate}, nil, testOptions(), &mockProvider{endpoint: "http://a"})
			res, err := svc.GetRouteRecommendations(context.Background(), usecases.RouteQuery{Destination: "Kolkata"})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if res.Origin.City != tt.wantCity {
				t.Errorf("expected origin %q, got %q", tt.wantCity, res.Origin.City)
			}
			if len(res.Notes) != 1 || res.Notes[0] != tt.wantNote {
				t.Errorf("expected notes [%q], got %v", tt.wantNote, res.Notes)
			}
		})
	}
}

func TestGateway_LocationTimeoutIsEnforced(t *testing.T) {
	loc := &mockLocator{locateFn: func(ctx context.Context, ip string) (*domain.LocationReport, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	opts := testOptions()
	opts.LocationTimeout = 20 * time.Millisecond
	svc := newGateway(loc, nil, opts, &mockProvider{endpoint: "http://a"})

	res, err := svc.GetRouteRecommendations(context.Background(), usecases.RouteQuery{Destination: "London"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Notes) != 1 || res.Notes[0] != "Location Service request timed out. Origin unknown." {
		t.Errorf("expected timeout note, got %v", res.Notes)
	}
}

func TestGateway_ForwardErrors(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantKind    domain.ErrorKind
		wantStatus  int
		wantDetails string
	}{
		{"timeout", domain.ErrUpstreamTimeout, domain.KindUpstreamTimeout, 504, ""},
		{"deadline", context.DeadlineExceeded, domain.KindUpstreamTimeout, 504, ""},
		{"structured error", &domain.UpstreamResponseError{StatusCode: 400, Message: "Invalid coordinate format"}, domain.KindUpstreamError, 400, "Invalid coordinate format"},
		{"odd status", &domain.UpstreamResponseError{StatusCode: 302, Message: "moved"}, domain.KindUpstreamError, 502, "moved"},
		{"connection", errors.New("connection reset"), domain.KindUpstreamError, 503, "Unknown error communicating with recommendation service."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &mockProvider{
				endpoint: "http://a",
				recommendFn: func(ctx context.Context, req domain.RecommendationRequest) ([]domain.RecommendationOption, error) {
					return nil, tt.err
				},
			}
			svc := newGateway(&mockLocator{}, nil, testOptions(), p)

			_, err := svc.GetRouteRecommendations(context.Background(), usecases.RouteQuery{Destination: "Tokyo"})
			e, ok := domain.AsError(err)
			if !ok {
				t.Fatalf("expected domain error, got %v", err)
			}
			if e.Kind != tt.wantKind || e.HTTPStatus() != tt.wantStatus || e.Details != tt.wantDetails {
				t.Errorf("got kind=%s status=%d details=%q", e.Kind, e.HTTPStatus(), e.Details)
			}
			if p.recCalls.Load() != 1 {
				t.Errorf("expected a single attempt, got %d", p.recCalls.Load())
			}
		})
	}
}

func TestGateway_RetryOnForwardFailure(t *testing.T) {
	failing := &mockProvider{
		endpoint: "http://failing",
		recommendFn: func(ctx context.Context, req domain.RecommendationRequest) ([]domain.RecommendationOption, error) {
			return nil, errors.New("connection reset")
		},
	}
	working := &mockProvider{
		endpoint: "http://working",
		recommendFn: func(ctx context.Context, req domain.RecommendationRequest) ([]domain.RecommendationOption, error) {
			return []domain.RecommendationOption{{ID: "car-1-AWS-123", Mode: "car", DurationMinutes: 30}}, nil
		},
	}

	opts := testOptions()
	opts.RetryOnForwardFailure = true
	svc := newGateway(&mockLocator{locateFn: func(ctx context.Context, ip string) (*domain.LocationReport, error) {
		return reportAt("Paris", 48.85, 2.35, ""), nil
	}}, nil, opts, failing, working)

	res, err := svc.GetRouteRecommendations(context.Background(), usecases.RouteQuery{Destination: "london"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Recommendations) != 1 || res.Recommendations[0].Mode != "car" {
		t.Errorf("unexpected recommendations %+v", res.Recommendations)
	}
	if len(res.Notes) != 1 || !strings.Contains(res.Notes[0], "http://failing") {
		t.Errorf("expected failover note, got %v", res.Notes)
	}
}

func TestGateway_RetryExhausted(t *testing.T) {
	fail := func(ctx context.Context, req domain.RecommendationRequest) ([]domain.RecommendationOption, error) {
		return nil, domain.ErrUpstreamTimeout
	}
	a := &mockProvider{endpoint: "http://a", recommendFn: fail}
	b := &mockProvider{endpoint: "http://b", recommendFn: fail}

	opts := testOptions()
	opts.RetryOnForwardFailure = true
	svc := newGateway(&mockLocator{}, nil, opts, a, b)

	_, err := svc.GetRouteRecommendations(context.Background(), usecases.RouteQuery{Destination: "london"})
	e, ok := domain.AsError(err)
	if !ok || e.Kind != domain.KindUpstreamTimeout {
		t.Fatalf("expected upstream_timeout, got %v", err)
	}
	if a.recCalls.Load()+b.recCalls.Load() != 2 {
		t.Errorf("expected both providers tried once")
	}
}

func TestGateway_Idempotent(t *testing.T) {
	p := &mockProvider{
		endpoint: "http://a",
		recommendFn: func(ctx context.Context, req domain.RecommendationRequest) ([]domain.RecommendationOption, error) {
			return []domain.RecommendationOption{{ID: "bus-1-GCP-100", Mode: "bus", DurationMinutes: 40}}, nil
		},
	}
	svc := newGateway(&mockLocator{}, nil, testOptions(), p)
	q := usecases.RouteQuery{Destination: "Sydney", Preference: "greenest"}

	first, err := svc.GetRouteRecommendations(context.Background(), q)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := svc.GetRouteRecommendations(context.Background(), q)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.Origin != second.Origin || first.DestinationCoords != second.DestinationCoords {
		t.Error("expected identical origin and destination")
	}
	if len(first.Recommendations) != len(second.Recommendations) {
		t.Error("expected same recommendation count")
	}
	if p.healthCalls.Load() != 2 {
		t.Errorf("health must be re-probed per request, got %d probes", p.healthCalls.Load())
	}
}

func TestGateway_PublishesEvents(t *testing.T) {
	events := &mockEvents{err: errors.New("nats down")}
	p := &mockProvider{endpoint: "http://a"}
	svc := newGateway(&mockLocator{}, events, testOptions(), p)

	if _, err := svc.GetRouteRecommendations(context.Background(), usecases.RouteQuery{Destination: "Tokyo"}); err != nil {
		t.Fatalf("publish failure must not fail the request: %v", err)
	}
	_, _ = svc.GetRouteRecommendations(context.Background(), usecases.RouteQuery{Destination: "Atlantis"})

	if len(events.events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events.events))
	}
	ok := events.events[0]
	if ok.Outcome != "ok" || ok.Provider != "http://a" || !ok.OriginFallback || ok.HealthyProviders != 1 {
		t.Errorf("unexpected success event %+v", ok)
	}
	if events.events[1].Outcome != string(domain.KindUnknownDestination) {
		t.Errorf("unexpected failure outcome %q", events.events[1].Outcome)
	}
}

func TestGateway_ProviderStatus(t *testing.T) {
	a := &mockProvider{endpoint: "http://a"}
	b := &mockProvider{endpoint: "http://b", healthFn: unhealthy}
	svc := newGateway(&mockLocator{}, nil, testOptions(), a, b)

	statuses := svc.ProviderStatus(context.Background())
	if len(statuses) != 2 {
		t.Fatalf("expected 2 statuses, got %d", len(statuses))
	}
	if statuses[0].Endpoint != "http://a" || !statuses[0].Healthy || statuses[0].Source != "http://a" {
		t.Errorf("unexpected status %+v", statuses[0])
	}
	if statuses[1].Healthy || statuses[1].Error == "" {
		t.Errorf("expected unhealthy status with error, got %+v", statuses[1])
	}
}

package usecases

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/samirrijal/routegate/internal/core/domain"
	"github.com/samirrijal/routegate/internal/core/ports"
	"github.com/samirrijal/routegate/internal/pkg/logging"
	"github.com/samirrijal/routegate/internal/pkg/metrics"
)

const locationCacheName = "location"

// LocationResult is a location answer together with the status the HTTP
// layer should send. Report is never nil.
type LocationResult struct {
	Report *domain.LocationReport
	Status int
}

// LocationService resolves IP addresses to a coordinate, falling back to a
// default location whenever the geolocation API cannot answer.
type LocationService struct {
	geo      ports.IPGeolocator
	cache    ports.CacheService
	fallback domain.DefaultLocation
	ttl      time.Duration
}

// NewLocationService creates a new LocationService. A nil geo means no API
// key is configured. cache may be nil.
func NewLocationService(geo ports.IPGeolocator, cache ports.CacheService, fallback domain.DefaultLocation, ttl time.Duration) *LocationService {
	return &LocationService{geo: geo, cache: cache, fallback: fallback, ttl: ttl}
}

// Lookup resolves ip. An empty ip resolves the caller's own address.
func (s *LocationService) Lookup(ctx context.Context, ip string) LocationResult {
	log := logging.FromContext(ctx)
	ip = strings.TrimSpace(ip)

	if s.geo == nil {
		log.Warn("ipstack key not configured, serving default location")
		metrics.LocationLookups.WithLabelValues("no_key").Inc()
		return s.defaultResult(http.StatusOK, "Location API key not configured. Returning default location.")
	}

	cacheKey := "location:ip:" + ip
	if ip != "" && s.cache != nil {
		if data, err := s.cache.Get(ctx, cacheKey); err == nil {
			var report domain.LocationReport
			if err := json.Unmarshal(data, &report); err == nil && report.HasCoordinates() {
				metrics.CacheHits.WithLabelValues(locationCacheName).Inc()
				metrics.LocationLookups.WithLabelValues("cached").Inc()
				return LocationResult{Report: &report, Status: http.StatusOK}
			}
			// Unreadable entries are dropped so a failed lookup cannot keep serving them.
			log.Warn("discarding unusable cached location", "key", cacheKey)
			if err := s.cache.Delete(ctx, cacheKey); err != nil {
				log.Warn("cache delete failed", "key", cacheKey, "error", err)
			}
		}
		metrics.CacheMisses.WithLabelValues(locationCacheName).Inc()
	}

	start := time.Now()
	report, err := s.geo.Locate(ctx, ip)
	metrics.ObserveUpstream("ipstack", "locate", start)

	if err == nil && !report.HasCoordinates() {
		err = &domain.GeolocationError{Info: "Unknown IPStack API error"}
	}
	if err != nil {
		return s.failure(ctx, ip, err)
	}

	log.Debug("location resolved", "ip", ip, "city", report.City)
	metrics.LocationLookups.WithLabelValues("resolved").Inc()

	if ip != "" && s.cache != nil {
		if data, err := json.Marshal(report); err == nil {
			_ = s.cache.Set(ctx, cacheKey, data, int(s.ttl.Seconds()))
		}
	}
	return LocationResult{Report: report, Status: http.StatusOK}
}

func (s *LocationService) failure(ctx context.Context, ip string, err error) LocationResult {
	log := logging.FromContext(ctx)

	var apiErr *domain.GeolocationError
	switch {
	case errors.As(err, &apiErr):
		log.Warn("ipstack could not resolve address", "ip", ip, "info", apiErr.Info)
		metrics.LocationLookups.WithLabelValues("api_error").Inc()
		return s.defaultResult(http.StatusOK,
			fmt.Sprintf("Could not fetch location from IPStack (%s). Returning default location.", apiErr.Info))
	case errors.Is(err, domain.ErrUpstreamTimeout) || errors.Is(err, context.DeadlineExceeded):
		log.Error("ipstack request timed out", "ip", ip)
		metrics.LocationLookups.WithLabelValues("timeout").Inc()
		return s.defaultResult(http.StatusGatewayTimeout, "Location service request timed out. Returning default location.")
	default:
		log.Error("ipstack request failed", "ip", ip, "error", err)
		metrics.LocationLookups.WithLabelValues("network_error").Inc()
		return s.defaultResult(http.StatusServiceUnavailable,
			fmt.Sprintf("Network error contacting location service (%v). Returning default location.", err))
	}
}

func (s *LocationService) defaultResult(status int, warning string) LocationResult {
	return LocationResult{Report: s.fallback.Report(warning), Status: status}
}

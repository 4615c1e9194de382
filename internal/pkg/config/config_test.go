package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("routegate-test", 5000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 5000 {
		t.Errorf("expected port 5000, got %d", cfg.Server.Port)
	}
	if cfg.Gateway.LocationTimeout != 5*time.Second {
		t.Errorf("expected 5s location timeout, got %s", cfg.Gateway.LocationTimeout)
	}
	if cfg.Gateway.HealthTimeout != 1500*time.Millisecond {
		t.Errorf("expected 1.5s health timeout, got %s", cfg.Gateway.HealthTimeout)
	}
	if cfg.Gateway.RouteTimeout != 10*time.Second {
		t.Errorf("expected 10s route timeout, got %s", cfg.Gateway.RouteTimeout)
	}
	if len(cfg.Gateway.ProviderURLs) != 2 {
		t.Fatalf("expected 2 default providers, got %v", cfg.Gateway.ProviderURLs)
	}
	if cfg.Gateway.RetryOnForwardFailure {
		t.Error("forward retry must be off by default")
	}

	origin := cfg.Gateway.Origin()
	if origin.City != "London (Default Origin)" || origin.Latitude != 51.5074 || origin.Longitude != -0.1278 {
		t.Errorf("unexpected fallback origin %+v", origin)
	}

	def := cfg.Location.DefaultLocation()
	if def.City != "New York (Default)" || def.Point.Latitude != 40.7128 {
		t.Errorf("unexpected default location %+v", def)
	}
}

func TestLoad_HistoricalEnvNames(t *testing.T) {
	t.Setenv("ROUTING_SERVICE_URLS", "http://a.example:5002/, http://b.example:5003 ,")
	t.Setenv("LOCATION_SERVICE_URL", "http://loc.example:5001/")
	t.Setenv("CLOUD_PROVIDER", "Azure")
	t.Setenv("PORT", "5003")

	cfg, err := Load("routegate-test", 5002)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"http://a.example:5002", "http://b.example:5003"}
	if len(cfg.Gateway.ProviderURLs) != len(want) {
		t.Fatalf("expected %v, got %v", want, cfg.Gateway.ProviderURLs)
	}
	for i := range want {
		if cfg.Gateway.ProviderURLs[i] != want[i] {
			t.Errorf("provider %d: expected %s, got %s", i, want[i], cfg.Gateway.ProviderURLs[i])
		}
	}
	if cfg.Gateway.LocationURL != "http://loc.example:5001" {
		t.Errorf("expected trimmed location url, got %s", cfg.Gateway.LocationURL)
	}
	if cfg.Recommender.Source != "Azure" {
		t.Errorf("expected Azure source, got %s", cfg.Recommender.Source)
	}
	if cfg.Server.Port != 5003 {
		t.Errorf("expected port 5003, got %d", cfg.Server.Port)
	}
}

func TestLoad_PrefixedEnv(t *testing.T) {
	t.Setenv("ROUTEGATE_GATEWAY_ROUTE_TIMEOUT", "3s")
	t.Setenv("ROUTEGATE_GATEWAY_RETRY_ON_FORWARD_FAILURE", "true")

	cfg, err := Load("routegate-test", 5000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Gateway.RouteTimeout != 3*time.Second {
		t.Errorf("expected 3s, got %s", cfg.Gateway.RouteTimeout)
	}
	if !cfg.Gateway.RetryOnForwardFailure {
		t.Error("expected forward retry enabled")
	}
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg := &Config{}
	cfg.Server.Port = 70000
	cfg.Gateway.LocationURL = "ftp://nowhere"
	cfg.NATS.Enabled = true

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	msg := err.Error()
	for _, want := range []string{
		"server.port must be 1-65535",
		"gateway.location_url must use http or https",
		"gateway.provider_urls needs at least one endpoint",
		"gateway.health_timeout must be positive",
		"nats.url is required when nats is enabled",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("expected %q in %q", want, msg)
		}
	}
}

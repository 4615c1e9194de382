package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/samirrijal/routegate/internal/core/domain"
)

// Config holds all application configuration.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Log         LogConfig         `mapstructure:"log"`
	Gateway     GatewayConfig     `mapstructure:"gateway"`
	Location    LocationConfig    `mapstructure:"location"`
	Recommender RecommenderConfig `mapstructure:"recommender"`
	NATS        NATSConfig        `mapstructure:"nats"`
	Valkey      ValkeyConfig      `mapstructure:"valkey"`
	Telemetry   TelemetryConfig   `mapstructure:"telemetry"`
}

type ServerConfig struct {
	Port           int           `mapstructure:"port"`
	ReadTimeout    int           `mapstructure:"read_timeout"`
	WriteTimeout   int           `mapstructure:"write_timeout"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	DocsPath       string        `mapstructure:"docs_path"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// PlaceConfig is a named coordinate.
type PlaceConfig struct {
	City      string  `mapstructure:"city"`
	Region    string  `mapstructure:"region"`
	Country   string  `mapstructure:"country"`
	Latitude  float64 `mapstructure:"latitude"`
	Longitude float64 `mapstructure:"longitude"`
}

type GatewayConfig struct {
	LocationURL           string                 `mapstructure:"location_url"`
	ProviderURLs          []string               `mapstructure:"provider_urls"`
	LocationTimeout       time.Duration          `mapstructure:"location_timeout"`
	HealthTimeout         time.Duration          `mapstructure:"health_timeout"`
	RouteTimeout          time.Duration          `mapstructure:"route_timeout"`
	RetryOnForwardFailure bool                   `mapstructure:"retry_on_forward_failure"`
	FallbackOrigin        PlaceConfig            `mapstructure:"fallback_origin"`
	Cities                map[string]PlaceConfig `mapstructure:"cities"`
}

// Origin returns the fallback origin as a domain value.
func (g GatewayConfig) Origin() domain.Origin {
	return domain.Origin{
		City:     g.FallbackOrigin.City,
		GeoPoint: domain.GeoPoint{Latitude: g.FallbackOrigin.Latitude, Longitude: g.FallbackOrigin.Longitude},
	}
}

// ExtraCities returns configured cities keyed by name.
func (g GatewayConfig) ExtraCities() map[string]domain.GeoPoint {
	out := make(map[string]domain.GeoPoint, len(g.Cities))
	for name, p := range g.Cities {
		out[name] = domain.GeoPoint{Latitude: p.Latitude, Longitude: p.Longitude}
	}
	return out
}

type LocationConfig struct {
	IPStackKey string        `mapstructure:"ipstack_key"`
	IPStackURL string        `mapstructure:"ipstack_url"`
	Timeout    time.Duration `mapstructure:"timeout"`
	CacheTTL   time.Duration `mapstructure:"cache_ttl"`
	Default    PlaceConfig   `mapstructure:"default"`
}

// DefaultLocation returns the location served when lookups fail.
func (l LocationConfig) DefaultLocation() domain.DefaultLocation {
	return domain.DefaultLocation{
		City:        l.Default.City,
		RegionName:  l.Default.Region,
		CountryName: l.Default.Country,
		Point:       domain.GeoPoint{Latitude: l.Default.Latitude, Longitude: l.Default.Longitude},
	}
}

type RecommenderConfig struct {
	Source string `mapstructure:"source"`
}

type NATSConfig struct {
	URL     string `mapstructure:"url"`
	Enabled bool   `mapstructure:"enabled"`
}

type ValkeyConfig struct {
	Addr    string `mapstructure:"addr"`
	Enabled bool   `mapstructure:"enabled"`
}

type TelemetryConfig struct {
	ServiceName string `mapstructure:"service_name"`
	TempoAddr   string `mapstructure:"tempo_addr"`
	Enabled     bool   `mapstructure:"enabled"`
}

// Load reads configuration from .env, an optional config file and environment variables.
// port is the listening port used when nothing overrides it.
func Load(service string, port int) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file found, using process environment")
	}

	v := viper.New()
	setDefaults(v, service, port)

	// Config file (optional)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	_ = v.ReadInConfig() // OK if missing

	// Environment variables: ROUTEGATE_GATEWAY_LOCATION_URL → gateway.location_url
	v.SetEnvPrefix("ROUTEGATE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Historical variable names used by the original deployment scripts.
	_ = v.BindEnv("server.port", "ROUTEGATE_SERVER_PORT", "PORT")
	_ = v.BindEnv("log.level", "ROUTEGATE_LOG_LEVEL", "LOG_LEVEL")
	_ = v.BindEnv("gateway.location_url", "ROUTEGATE_GATEWAY_LOCATION_URL", "LOCATION_SERVICE_URL")
	_ = v.BindEnv("gateway.provider_urls", "ROUTEGATE_GATEWAY_PROVIDER_URLS", "ROUTING_SERVICE_URLS")
	_ = v.BindEnv("location.ipstack_key", "ROUTEGATE_LOCATION_IPSTACK_KEY", "IPSTACK_API_KEY")
	_ = v.BindEnv("recommender.source", "ROUTEGATE_RECOMMENDER_SOURCE", "CLOUD_PROVIDER")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper, service string, port int) {
	v.SetDefault("server.port", port)
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 30)
	v.SetDefault("server.request_timeout", 20*time.Second)
	v.SetDefault("server.docs_path", "api/openapi.yaml")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("gateway.location_url", "http://127.0.0.1:5001")
	v.SetDefault("gateway.provider_urls", []string{"http://127.0.0.1:5002", "http://127.0.0.1:5003"})
	v.SetDefault("gateway.location_timeout", 5*time.Second)
	v.SetDefault("gateway.health_timeout", 1500*time.Millisecond)
	v.SetDefault("gateway.route_timeout", 10*time.Second)
	v.SetDefault("gateway.retry_on_forward_failure", false)
	v.SetDefault("gateway.fallback_origin.city", "London (Default Origin)")
	v.SetDefault("gateway.fallback_origin.latitude", 51.5074)
	v.SetDefault("gateway.fallback_origin.longitude", -0.1278)

	v.SetDefault("location.ipstack_key", "")
	v.SetDefault("location.ipstack_url", "http://api.ipstack.com")
	v.SetDefault("location.timeout", 5*time.Second)
	v.SetDefault("location.cache_ttl", time.Hour)
	v.SetDefault("location.default.city", "New York (Default)")
	v.SetDefault("location.default.region", "New York")
	v.SetDefault("location.default.country", "United States")
	v.SetDefault("location.default.latitude", 40.7128)
	v.SetDefault("location.default.longitude", -74.0060)

	v.SetDefault("recommender.source", "GCP")

	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("nats.enabled", false)
	v.SetDefault("valkey.addr", "localhost:6379")
	v.SetDefault("valkey.enabled", false)
	v.SetDefault("telemetry.service_name", service)
	v.SetDefault("telemetry.tempo_addr", "tempo:4317")
	v.SetDefault("telemetry.enabled", false)
}

// normalize trims provider URLs and drops empty entries.
func (c *Config) normalize() {
	urls := make([]string, 0, len(c.Gateway.ProviderURLs))
	for _, raw := range c.Gateway.ProviderURLs {
		for _, part := range strings.Split(raw, ",") {
			if u := strings.TrimRight(strings.TrimSpace(part), "/"); u != "" {
				urls = append(urls, u)
			}
		}
	}
	c.Gateway.ProviderURLs = urls
	c.Gateway.LocationURL = strings.TrimRight(strings.TrimSpace(c.Gateway.LocationURL), "/")
	c.Location.IPStackURL = strings.TrimRight(strings.TrimSpace(c.Location.IPStackURL), "/")
}

// Validate checks that required configuration fields are present and sane.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Server.ReadTimeout <= 0 {
		errs = append(errs, "server.read_timeout must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, "server.write_timeout must be positive")
	}
	if c.Server.RequestTimeout <= 0 {
		errs = append(errs, "server.request_timeout must be positive")
	}
	if err := checkURL(c.Gateway.LocationURL); err != nil {
		errs = append(errs, "gateway.location_url "+err.Error())
	}
	if len(c.Gateway.ProviderURLs) == 0 {
		errs = append(errs, "gateway.provider_urls needs at least one endpoint")
	}
	for _, u := range c.Gateway.ProviderURLs {
		if err := checkURL(u); err != nil {
			errs = append(errs, fmt.Sprintf("gateway.provider_urls entry %q %s", u, err.Error()))
		}
	}
	if c.Gateway.LocationTimeout <= 0 {
		errs = append(errs, "gateway.location_timeout must be positive")
	}
	if c.Gateway.HealthTimeout <= 0 {
		errs = append(errs, "gateway.health_timeout must be positive")
	}
	if c.Gateway.RouteTimeout <= 0 {
		errs = append(errs, "gateway.route_timeout must be positive")
	}
	if c.Gateway.FallbackOrigin.City == "" {
		errs = append(errs, "gateway.fallback_origin.city is required")
	}
	if err := checkURL(c.Location.IPStackURL); err != nil {
		errs = append(errs, "location.ipstack_url "+err.Error())
	}
	if c.Location.Timeout <= 0 {
		errs = append(errs, "location.timeout must be positive")
	}
	if c.Recommender.Source == "" {
		errs = append(errs, "recommender.source is required")
	}
	if c.NATS.Enabled && c.NATS.URL == "" {
		errs = append(errs, "nats.url is required when nats is enabled")
	}
	if c.Valkey.Enabled && c.Valkey.Addr == "" {
		errs = append(errs, "valkey.addr is required when valkey is enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

func checkURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("is not a valid URL: %v", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("must use http or https, got %q", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("is missing a host: %q", raw)
	}
	return nil
}

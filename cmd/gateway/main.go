package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/samirrijal/routegate/internal/adapters/http"
	natsadapter "github.com/samirrijal/routegate/internal/adapters/nats"
	"github.com/samirrijal/routegate/internal/adapters/upstream"
	"github.com/samirrijal/routegate/internal/core/ports"
	"github.com/samirrijal/routegate/internal/core/usecases"
	"github.com/samirrijal/routegate/internal/pkg/config"
	"github.com/samirrijal/routegate/internal/pkg/logging"
	"github.com/samirrijal/routegate/internal/pkg/telemetry"
)

func main() {
	cfg, err := config.Load("routegate-gateway", 5000)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logging.Setup(cfg.Log.Level, cfg.Log.Format, "gateway")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Telemetry
	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.TempoAddr)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown()
		}
	}

	// NATS (optional): route query events
	var events ports.EventPublisher
	deps := &http.Dependencies{
		Service:        "gateway",
		RequestTimeout: cfg.Server.RequestTimeout,
		DocsPath:       cfg.Server.DocsPath,
	}
	if cfg.NATS.Enabled {
		pub, err := natsadapter.NewPublisher(cfg.NATS.URL)
		if err != nil {
			slog.Warn("nats unavailable, route query events disabled", "error", err)
		} else {
			defer pub.Close()
			events = pub
			deps.NATS = pub.Conn()
		}
	}

	// Upstreams
	locator := upstream.NewLocationClient(cfg.Gateway.LocationURL, cfg.Gateway.LocationTimeout)
	providers := make([]ports.RecommendationProvider, 0, len(cfg.Gateway.ProviderURLs))
	for _, u := range cfg.Gateway.ProviderURLs {
		providers = append(providers, upstream.NewRecommenderClient(u, cfg.Gateway.RouteTimeout))
	}

	opts := usecases.DefaultGatewayOptions()
	opts.LocationTimeout = cfg.Gateway.LocationTimeout
	opts.HealthTimeout = cfg.Gateway.HealthTimeout
	opts.RouteTimeout = cfg.Gateway.RouteTimeout
	opts.FallbackOrigin = cfg.Gateway.Origin()
	opts.RetryOnForwardFailure = cfg.Gateway.RetryOnForwardFailure

	geocoder := usecases.NewStaticGeocoder(cfg.Gateway.ExtraCities())
	deps.Geocoder = geocoder
	deps.Gateway = usecases.NewGatewayService(locator, geocoder, providers, events, opts)

	slog.Info("gateway configured",
		"location_url", cfg.Gateway.LocationURL,
		"providers", cfg.Gateway.ProviderURLs,
		"retry_on_forward_failure", opts.RetryOnForwardFailure,
	)

	app := http.NewApp(http.AppConfig{
		Name:         "RouteGate Gateway",
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	})
	http.SetupGatewayRoutes(app, deps)

	// Graceful shutdown
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		slog.Info("gateway starting", "addr", addr)
		if err := app.Listen(addr); err != nil {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutdown signal received, draining connections...", "signal", sig.String())

	// Give in-flight requests up to 10s to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}

	slog.Info("server stopped")
}

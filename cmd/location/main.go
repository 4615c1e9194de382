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
	"github.com/samirrijal/routegate/internal/adapters/upstream"
	"github.com/samirrijal/routegate/internal/adapters/valkey"
	"github.com/samirrijal/routegate/internal/core/ports"
	"github.com/samirrijal/routegate/internal/core/usecases"
	"github.com/samirrijal/routegate/internal/pkg/config"
	"github.com/samirrijal/routegate/internal/pkg/logging"
	"github.com/samirrijal/routegate/internal/pkg/telemetry"
)

func main() {
	cfg, err := config.Load("routegate-location", 5001)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logging.Setup(cfg.Log.Level, cfg.Log.Format, "location")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.TempoAddr)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown()
		}
	}

	deps := &http.Dependencies{Service: "location"}

	// Cache (optional)
	var cache ports.CacheService
	if cfg.Valkey.Enabled {
		c, err := valkey.New(cfg.Valkey.Addr, "routegate:")
		if err != nil {
			slog.Warn("valkey unavailable, lookups will not be cached", "error", err)
		} else {
			defer c.Close()
			cache = c
			deps.Cache = c
		}
	}

	// Without a key every lookup answers with the default location.
	var geo ports.IPGeolocator
	if cfg.Location.IPStackKey != "" {
		geo = upstream.NewIPStackClient(cfg.Location.IPStackURL, cfg.Location.IPStackKey, cfg.Location.Timeout)
	} else {
		slog.Warn("IPSTACK_API_KEY not set, serving default location")
	}

	deps.Location = usecases.NewLocationService(geo, cache, cfg.Location.DefaultLocation(), cfg.Location.CacheTTL)

	app := http.NewApp(http.AppConfig{
		Name:         "RouteGate Location",
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	})
	http.SetupLocationRoutes(app, deps)

	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		slog.Info("location service starting", "addr", addr)
		if err := app.Listen(addr); err != nil {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutdown signal received, draining connections...", "signal", sig.String())

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}

	slog.Info("server stopped")
}

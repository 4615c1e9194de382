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
	"github.com/samirrijal/routegate/internal/core/usecases"
	"github.com/samirrijal/routegate/internal/pkg/config"
	"github.com/samirrijal/routegate/internal/pkg/logging"
	"github.com/samirrijal/routegate/internal/pkg/telemetry"
)

// Run one instance per simulated provider, e.g.
//
//	PORT=5002 CLOUD_PROVIDER=GCP recommender
//	PORT=5003 CLOUD_PROVIDER=AWS recommender
func main() {
	cfg, err := config.Load("routegate-recommender", 5002)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logging.Setup(cfg.Log.Level, cfg.Log.Format, "recommender").
		Info("recommender identity", "source", cfg.Recommender.Source)

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

	deps := &http.Dependencies{
		Service:     "recommender",
		Recommender: usecases.NewRecommenderService(cfg.Recommender.Source, nil),
	}

	app := http.NewApp(http.AppConfig{
		Name:         "RouteGate Recommender (" + cfg.Recommender.Source + ")",
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	})
	http.SetupRecommenderRoutes(app, deps)

	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		slog.Info("recommender starting", "addr", addr, "source", cfg.Recommender.Source)
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

package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/fiber/v2/middleware/timeout"
	"github.com/google/uuid"

	"github.com/samirrijal/routegate/internal/pkg/metrics"
)

const defaultRequestTimeout = 20 * time.Second

// setupCommon installs the middleware chain and the probe endpoints shared by
// all services.
func setupCommon(app *fiber.App, deps *Dependencies) {
	// Prometheus metrics
	app.Use(metrics.Middleware())
	app.Get("/metrics", metrics.Handler())

	// Request ID
	app.Use(requestid.New(requestid.Config{
		Generator: uuid.NewString,
	}))

	// Propagate request ID into slog context
	app.Use(RequestIDLogMiddleware())

	// Access logs (structured HTTP request logging)
	app.Use(AccessLogMiddleware())

	// Response compression (gzip)
	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))

	// Security headers
	app.Use(func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		return c.Next()
	})

	app.Use(CachingMiddleware())

	app.Get("/health", HealthHandler(deps))
}

// SetupGatewayRoutes registers the aggregation, GraphQL, readiness and docs routes.
func SetupGatewayRoutes(app *fiber.App, deps *Dependencies) {
	setupCommon(app, deps)

	reqTimeout := deps.RequestTimeout
	if reqTimeout <= 0 {
		reqTimeout = defaultRequestTimeout
	}

	app.Get("/ready", ReadyHandler(deps))
	app.Get("/api/route", timeout.NewWithContext(RouteHandler(deps), reqTimeout))
	app.Post("/graphql", timeout.NewWithContext(GraphQLHandler(deps), reqTimeout))

	SetupDocs(app, deps.DocsPath)
}

// SetupLocationRoutes registers the location service routes.
func SetupLocationRoutes(app *fiber.App, deps *Dependencies) {
	setupCommon(app, deps)
	app.Get("/ready", ReadyHandler(deps))
	app.Get("/location", LocationHandler(deps))
}

// SetupRecommenderRoutes registers the recommendation service routes. Its
// /health answer doubles as the provider liveness probe.
func SetupRecommenderRoutes(app *fiber.App, deps *Dependencies) {
	setupCommon(app, deps)
	app.Get("/recommendations", RecommendationsHandler(deps))
}

package http

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
)

// HealthHandler returns a basic liveness check. The recommender answers with
// its provider identity, which the gateway's probe reads.
func HealthHandler(deps *Dependencies) fiber.Handler {
	startedAt := time.Now()

	return func(c *fiber.Ctx) error {
		if deps.Recommender != nil {
			return c.JSON(deps.Recommender.Health())
		}
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": deps.Service,
			"uptime":  time.Since(startedAt).String(),
		})
	}
}

// ReadyHandler checks the recommendation pool, NATS, and cache connectivity.
func ReadyHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 3*time.Second)
		defer cancel()

		checks := make(map[string]any)
		allOK := true

		// Recommendation providers: ready while at least one is healthy.
		if deps.Gateway != nil {
			statuses := deps.Gateway.ProviderStatus(ctx)
			healthy := 0
			for _, s := range statuses {
				if s.Healthy {
					healthy++
				}
			}
			checks["providers"] = statuses
			if healthy == 0 {
				allOK = false
			}
		}

		// NATS
		if deps.NATS != nil {
			if deps.NATS.IsConnected() {
				checks["nats"] = "ok"
			} else {
				checks["nats"] = "disconnected"
				allOK = false
			}
		} else {
			checks["nats"] = "not configured"
		}

		// Valkey cache
		if deps.Cache != nil {
			if err := deps.Cache.Ping(ctx); err != nil {
				checks["cache"] = "error: " + err.Error()
				allOK = false
			} else {
				checks["cache"] = "ok"
			}
		} else {
			checks["cache"] = "not configured"
		}

		status := "ready"
		code := fiber.StatusOK
		if !allOK {
			status = "not ready"
			code = fiber.StatusServiceUnavailable
		}

		return c.Status(code).JSON(fiber.Map{
			"status": status,
			"checks": checks,
		})
	}
}

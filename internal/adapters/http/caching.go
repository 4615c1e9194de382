package http

import (
	"github.com/gofiber/fiber/v2"
)

// CachingMiddleware sets Cache-Control headers on GET responses based on endpoint.
// Handlers that set their own header win.
func CachingMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		err := c.Next()

		if c.Method() != fiber.MethodGet {
			return err
		}
		if existing := c.GetRespHeader(fiber.HeaderCacheControl); existing != "" {
			return err
		}

		var ttl string
		switch c.Path() {
		case "/api/route", "/recommendations", "/location":
			ttl = "no-store" // Every answer is computed per request
		case "/health", "/ready", "/metrics":
			ttl = "no-cache"
		case "/docs", "/docs/openapi.yaml":
			ttl = "public, max-age=3600"
		}

		if ttl != "" {
			c.Set(fiber.HeaderCacheControl, ttl)
		}

		return err
	}
}

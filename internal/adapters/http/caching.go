package http

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

// CachingMiddleware sets Cache-Control headers on GET responses based on endpoint.
// Handlers that set their own header win.
func CachingMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		err := c.Next()

		// Only set on GET requests
		if c.Method() != fiber.MethodGet {
			return err
		}
		// Don't override if already set
		if existing := c.GetRespHeader(fiber.HeaderCacheControl); existing != "" {
			return err
		}

		path := c.Path()
		var ttl string

		// Default cache times by endpoint pattern
		switch {
		case path == "/v1/health" || path == "/v1/ready":
			ttl = "public, max-age=10" // short for system checks

		case path == "/metrics" || path == "/v1/activity":
			ttl = "no-cache" // live data

		case path == "/v1/bounds":
			ttl = "public, max-age=86400" // pure function of the query

		case path == "/v1/collections":
			ttl = "public, max-age=300" // 5 min, collection lists rarely change

		case strings.HasPrefix(path, "/v1/collections/") && strings.HasSuffix(path, "/items"):
			ttl = "public, max-age=60" // upstream data may change

		case strings.HasPrefix(path, "/docs"):
			ttl = "public, max-age=3600" // 1 hour for the API document

		case strings.HasPrefix(path, "/v1/"):
			ttl = "public, max-age=60" // 1 min default for API endpoints
		}

		if ttl != "" {
			c.Set(fiber.HeaderCacheControl, ttl)
		}

		return err
	}
}

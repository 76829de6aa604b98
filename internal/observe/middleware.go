package observe

import (
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Middleware returns a fiber handler that records request latency to
// HTTPRequestDuration and logs failed requests.
func Middleware(m *Metrics) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		elapsed := time.Since(start)

		route := c.Route().Path
		status := c.Response().StatusCode()
		m.HTTPRequestDuration.Record(c.UserContext(), elapsed.Seconds(),
			metric.WithAttributes(
				attribute.String("method", c.Method()),
				attribute.String("route", route),
			),
		)

		if err != nil || status >= fiber.StatusInternalServerError {
			slog.Warn("http request failed",
				"method", c.Method(),
				"path", c.Path(),
				"status", status,
				"duration", elapsed,
				"err", err,
			)
		}
		return err
	}
}

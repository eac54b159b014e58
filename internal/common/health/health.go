package health

import (
	"context"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v3"
)

// ============================================================
// Health Check Handlers
// ============================================================

// Check reports whether a dependency is usable.
type Check func(ctx context.Context) error

// Register mounts /health/live, /health/ready and /health/startup.
// Readiness runs every check with a short timeout.
func Register(r fiber.Router, checks ...Check) {
	r.Get("/health/live", LivenessProbe)
	r.Get("/health/ready", ReadinessProbe(checks...))
	r.Get("/health/startup", StartupProbe)
}

// LivenessProbe проверяет, что приложение работает
func LivenessProbe(c fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "alive"})
}

// ReadinessProbe проверяет готовность зависимостей (БД и т.д.)
func ReadinessProbe(checks ...Check) fiber.Handler {
	return func(c fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.Context(), 2*time.Second)
		defer cancel()
		for _, check := range checks {
			if err := check(ctx); err != nil {
				return c.Status(http.StatusServiceUnavailable).JSON(fiber.Map{
					"status": "not ready",
					"error":  err.Error(),
				})
			}
		}
		return c.JSON(fiber.Map{"status": "ready"})
	}
}

// StartupProbe проверяет, что приложение успешно запустилось
func StartupProbe(c fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "started"})
}

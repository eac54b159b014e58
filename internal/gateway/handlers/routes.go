package handlers

import (
	"github.com/gofiber/fiber/v3"

	"indoormap/internal/common/config"
	"indoormap/internal/gateway/proxy"
)

// ============================================================
// Service Routes (Proxy)
// ============================================================

// Routes wires the public /api/v1 routes onto the three services.
func Routes(api fiber.Router, p *proxy.Proxy, svc config.ServiceURLs) {
	api.Get("/", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{"message": "Indoor Map API v1", "status": "ok"})
	})

	// MapData Service
	api.All("/rest/*", p.Under(svc.MapData+"/rest"))
	api.Post("/upload", p.To(svc.MapData+"/upload"))
	api.Get("/export", p.To(svc.MapData+"/export"))
	api.Get("/files/*", p.Under(svc.MapData+"/files"))

	// Editor Service
	api.All("/editor/*", p.Under(svc.Editor))

	// Converter Service
	api.Post("/convert", p.To(svc.Converter+"/convert"))
	api.Post("/render", p.To(svc.Converter+"/render"))
}

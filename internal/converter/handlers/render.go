package handlers

import (
	"bytes"
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v3"

	"indoormap/internal/converter/mapper"
	"indoormap/internal/converter/models"
	plan "indoormap/internal/mapdata/models"
)

// ============================================================
// Render Handler
// ============================================================

// Render конвертирует документ экспорта обратно в SVG, или в PDF при
// ?format=pdf.
func (h *Handler) Render(c fiber.Ctx) error {
	if len(c.Body()) == 0 {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "body required"})
	}

	doc, err := plan.ParseExportDocument(c.Body())
	if err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	ref, err := georef(c)
	if err != nil && !errors.Is(err, models.ErrNoGeoref) {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	renderer := mapper.NewRenderer(ref)
	if c.Query("format") == "pdf" {
		var buf bytes.Buffer
		if err := renderer.RenderPDF(doc, &buf); err != nil {
			h.log.Error("pdf render failed", "error", err)
			return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
		}
		c.Set("Content-Type", "application/pdf")
		return c.Send(buf.Bytes())
	}

	svg, err := renderer.Render(doc)
	if err != nil {
		h.log.Error("render failed", "error", err)
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	c.Set("Content-Type", "image/svg+xml")
	return c.SendString(svg)
}

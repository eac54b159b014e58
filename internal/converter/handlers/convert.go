package handlers

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v3"
	"github.com/paulmach/orb"

	"indoormap/internal/common/logging"
	"indoormap/internal/converter/mapper"
	"indoormap/internal/converter/models"
	"indoormap/internal/palette"
)

// ============================================================
// Convert Handler
// ============================================================

type Handler struct {
	wallWidth  float64
	wallHeight float64
	palette    *palette.Catalog
	log        *slog.Logger
}

func New(wallWidth, wallHeight float64, cat *palette.Catalog) *Handler {
	return &Handler{
		wallWidth:  wallWidth,
		wallHeight: wallHeight,
		palette:    cat,
		log:        logging.WithComponent("converter-http"),
	}
}

func (h *Handler) Register(r fiber.Router) {
	r.Post("/convert", h.Convert)
	r.Post("/render", h.Render)
}

// Convert конвертирует SVG план в документ экспорта. План приходит файлом
// в multipart/form-data (поле file) или телом запроса; привязка к карте
// задаётся параметрами originLon, originLat и metersPerUnit.
func (h *Handler) Convert(c fiber.Ctx) error {
	ref, err := georef(c)
	if err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	data, err := svgBody(c)
	if err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	conv, err := mapper.New(mapper.Options{
		Georef:     ref,
		WallWidth:  h.wallWidth,
		WallHeight: h.wallHeight,
		Palette:    h.palette,
	}, h.log)
	if err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	doc, report, err := conv.Convert(bytes.NewReader(data))
	if err != nil {
		h.log.Warn("conversion failed", "error", err)
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	h.log.Info("converted plan", "walls", report.Walls, "rooms", report.Rooms,
		"furniture", report.Furniture, "skipped", len(report.Skipped))
	c.Set("X-Skipped-Elements", strconv.Itoa(len(report.Skipped)))
	return c.JSON(doc)
}

func svgBody(c fiber.Ctx) ([]byte, error) {
	if !strings.HasPrefix(c.Get("Content-Type"), "multipart/") {
		if len(c.Body()) == 0 {
			return nil, errors.New("svg body required")
		}
		return c.Body(), nil
	}
	file, err := c.FormFile("file")
	if err != nil {
		return nil, errors.New("file required in multipart/form-data")
	}
	f, err := file.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

// georef reads the map placement from the query string or form fields. All
// three parameters are optional together; the renderer then derives its own.
func georef(c fiber.Ctx) (models.Georef, error) {
	var vals [3]float64
	missing := 0
	for i, key := range []string{"originLon", "originLat", "metersPerUnit"} {
		raw := c.Query(key)
		if raw == "" {
			raw = c.FormValue(key)
		}
		if raw == "" {
			missing++
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return models.Georef{}, errors.New(key + " must be a number")
		}
		vals[i] = v
	}
	if missing > 0 {
		return models.Georef{}, models.ErrNoGeoref
	}
	ref := models.Georef{Origin: orb.Point{vals[0], vals[1]}, MetersPerUnit: vals[2]}
	if !ref.Valid() {
		return models.Georef{}, models.ErrNoGeoref
	}
	return ref, nil
}

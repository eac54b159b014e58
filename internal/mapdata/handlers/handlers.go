package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gofiber/fiber/v3"

	"indoormap/internal/common/logging"
	"indoormap/internal/mapdata/models"
	"indoormap/internal/mapdata/repository"
	"indoormap/internal/mapdata/service"
)

// ============================================================
// MapData Handler
// ============================================================

type Handler struct {
	svc *service.Service
	log *slog.Logger
}

func New(svc *service.Service) *Handler {
	return &Handler{svc: svc, log: logging.WithComponent("mapdata-http")}
}

// Register mounts the table, upload, export and file routes.
func (h *Handler) Register(r fiber.Router) {
	r.Get("/rest/:table", h.List)
	r.Post("/rest/:table", h.Insert)
	r.Patch("/rest/:table/:id", h.Update)
	r.Delete("/rest/:table/:id", h.Delete)
	r.Delete("/rest/:table", h.DeleteWhere)

	r.Post("/upload", h.Upload)
	r.Get("/export", h.Export)
	r.Get("/files/*", h.File)
}

// List возвращает все строки таблицы, опционально с фильтром column=value.
func (h *Handler) List(c fiber.Ctx) error {
	var filters []repository.Filter
	if col := c.Query("column"); col != "" {
		filters = append(filters, repository.Filter{Column: col, Value: c.Query("value")})
	}
	recs, err := h.svc.List(c.Context(), c.Params("table"), filters...)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(recs)
}

func (h *Handler) Insert(c fiber.Ctx) error {
	rec, err := decodeRecord(c)
	if err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "invalid json"})
	}
	out, err := h.svc.Insert(c.Context(), c.Params("table"), rec)
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(http.StatusCreated).JSON(out)
}

// Update применяет частичный патч: меняются только переданные колонки.
func (h *Handler) Update(c fiber.Ctx) error {
	rec, err := decodeRecord(c)
	if err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "invalid json"})
	}
	if err := h.svc.Update(c.Context(), c.Params("table"), c.Params("id"), rec); err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{"status": "updated", "id": c.Params("id")})
}

func (h *Handler) Delete(c fiber.Ctx) error {
	if err := h.svc.Delete(c.Context(), c.Params("table"), c.Params("id")); err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{"status": "deleted", "id": c.Params("id")})
}

func (h *Handler) DeleteWhere(c fiber.Ctx) error {
	col := c.Query("column")
	if col == "" {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "column required"})
	}
	n, err := h.svc.DeleteWhere(c.Context(), c.Params("table"), col, c.Query("value"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{"deleted": n})
}

// ============================================================
// Upload / Export / Files
// ============================================================

// Upload принимает multipart: file, name, geometry (JSON), properties (JSON).
func (h *Handler) Upload(c fiber.Ctx) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "file required"})
	}
	file, err := fileHeader.Open()
	if err != nil {
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": "failed to open file"})
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": "failed to read file"})
	}

	out, err := h.svc.Upload(c.Context(), service.Upload{
		Filename:   fileHeader.Filename,
		Data:       data,
		Name:       c.FormValue("name"),
		Geometry:   []byte(c.FormValue("geometry")),
		Properties: []byte(c.FormValue("properties")),
	})
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(http.StatusCreated).JSON(out)
}

func (h *Handler) Export(c fiber.Ctx) error {
	doc, err := h.svc.Export(c.Context())
	if err != nil {
		return h.fail(c, err)
	}
	body, err := doc.Marshal()
	if err != nil {
		return h.fail(c, err)
	}
	c.Set("Content-Type", "application/json")
	c.Set("Content-Disposition", `attachment; filename="floor-plan.json"`)
	return c.Send(body)
}

func (h *Handler) File(c fiber.Ctx) error {
	key := c.Params("*")
	data, err := h.svc.Objects().Get(key)
	if err != nil {
		if errors.Is(err, service.ErrInvalidKey) || errors.Is(err, os.ErrNotExist) {
			return c.Status(http.StatusNotFound).JSON(fiber.Map{"error": "file not found"})
		}
		return h.fail(c, err)
	}
	if ct := mime.TypeByExtension(filepath.Ext(key)); ct != "" {
		c.Set("Content-Type", ct)
	}
	return c.Send(data)
}

// ============================================================
// Helpers
// ============================================================

func decodeRecord(c fiber.Ctx) (models.Record, error) {
	if len(c.Body()) == 0 {
		return nil, errors.New("empty body")
	}
	var rec models.Record
	if err := json.Unmarshal(c.Body(), &rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func (h *Handler) fail(c fiber.Ctx, err error) error {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, repository.ErrUnknownTable), errors.Is(err, repository.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, repository.ErrUnknownColumn),
		errors.Is(err, repository.ErrEmptyRecord),
		errors.Is(err, service.ErrBadUpload):
		status = http.StatusBadRequest
	}
	if status == http.StatusInternalServerError {
		h.log.Error("request failed", "path", c.Path(), "error", err)
	}
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}

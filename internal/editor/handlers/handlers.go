package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gofiber/fiber/v3"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"indoormap/internal/common/logging"
	"indoormap/internal/editor"
	"indoormap/internal/editor/sessions"
	"indoormap/internal/editor/store"
	"indoormap/internal/mapdata/models"
	"indoormap/internal/palette"
)

// ============================================================
// Editor Handler
// ============================================================

type Handler struct {
	reg     *sessions.Registry
	palette *palette.Catalog
	log     *slog.Logger
}

func New(reg *sessions.Registry, cat *palette.Catalog) *Handler {
	return &Handler{reg: reg, palette: cat, log: logging.WithComponent("editor-http")}
}

// Register mounts the session routes.
func (h *Handler) Register(r fiber.Router) {
	r.Get("/palette", h.Palette)
	r.Post("/sessions", h.Open)

	r.Get("/sessions/:id", h.View)
	r.Delete("/sessions/:id", h.Close)

	s := r.Group("/sessions/:id")
	s.Post("/tool", h.SetTool)
	s.Post("/draw", h.Draw)
	s.Post("/click", h.Click)
	s.Post("/drag/start", h.DragStart)
	s.Post("/drag/move", h.DragMove)
	s.Post("/drag/end", h.DragEnd)
	s.Post("/drag/cancel", h.DragCancel)
	s.Post("/furniture", h.PlaceFurniture)
	s.Post("/furniture/:fid/transform", h.TransformFurniture)
	s.Post("/rooms/:rid/wallify", h.Wallify)
	s.Patch("/rooms/:rid", h.EditRoom)
	s.Patch("/walls/:wid", h.EditWall)
	s.Post("/poi", h.CreatePOI)
	s.Patch("/poi/:pid", h.EditPOI)
	s.Put("/poi/:pid/event", h.SetEvent)
	s.Delete("/features/:kind/:fid", h.DeleteFeature)
	s.Get("/export", h.Export)
	s.Post("/import", h.Import)
	s.Get("/unsynced", h.Unsynced)
	s.Post("/retry", h.Retry)
}

// ============================================================
// Sessions
// ============================================================

func (h *Handler) Palette(c fiber.Ctx) error {
	return c.JSON(h.palette.Items())
}

// Open монтирует новый редактор; при ошибке загрузки карты отвечает 502.
func (h *Handler) Open(c fiber.Ctx) error {
	s, err := h.reg.Open(c.Context())
	if err != nil {
		h.log.Warn("mount failed", "error", err)
		return c.Status(http.StatusBadGateway).JSON(fiber.Map{"error": err.Error()})
	}
	return c.Status(http.StatusCreated).JSON(h.state(s))
}

func (h *Handler) View(c fiber.Ctx) error {
	s, ok := h.session(c)
	if !ok {
		return noSession(c)
	}
	return c.JSON(h.state(s))
}

func (h *Handler) Close(c fiber.Ctx) error {
	if err := h.reg.Close(c.Context(), c.Params("id")); err != nil {
		if errors.Is(err, sessions.ErrUnknownSession) {
			return noSession(c)
		}
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{"status": "closed", "id": c.Params("id")})
}

func (h *Handler) state(s *sessions.Session) fiber.Map {
	tool, state := s.Editor.Tool()
	out := fiber.Map{
		"id":       s.ID,
		"tool":     tool,
		"state":    state,
		"dragging": s.Editor.Dragging(),
		"unsynced": len(s.Editor.Unsynced()),
		"view":     s.Canvas.View(),
	}
	if sel := s.Editor.Snapshot().Selected; sel != nil {
		out["selected"] = fiber.Map{"kind": sel.Kind, "id": sel.ID}
	}
	return out
}

// ============================================================
// Gestures
// ============================================================

type toolRequest struct {
	Tool string `json:"tool"`
}

func (h *Handler) SetTool(c fiber.Ctx) error {
	s, ok := h.session(c)
	if !ok {
		return noSession(c)
	}
	var req toolRequest
	if err := decode(c, &req); err != nil {
		return badJSON(c)
	}
	tool, err := editor.ParseTool(req.Tool)
	if err != nil {
		return h.fail(c, err)
	}
	s.Editor.SetTool(tool)
	return c.JSON(h.state(s))
}

type drawRequest struct {
	ID       string           `json:"id"`
	Geometry geojson.Geometry `json:"geometry"`
}

// Draw принимает завершённый жест: id черновика и GeoJSON геометрию.
func (h *Handler) Draw(c fiber.Ctx) error {
	s, ok := h.session(c)
	if !ok {
		return noSession(c)
	}
	var req drawRequest
	if err := decode(c, &req); err != nil {
		return badJSON(c)
	}
	created, err := s.Editor.Draw(req.ID, req.Geometry.Geometry())
	if err != nil {
		return h.fail(c, err)
	}
	status := http.StatusCreated
	if created.Duplicate {
		status = http.StatusOK
	}
	return c.Status(status).JSON(created)
}

type pointRequest struct {
	At orb.Point `json:"at"`
}

func (h *Handler) Click(c fiber.Ctx) error {
	s, ok := h.session(c)
	if !ok {
		return noSession(c)
	}
	var req pointRequest
	if err := decode(c, &req); err != nil {
		return badJSON(c)
	}
	sel, hit := s.Editor.Click(req.At)
	out := fiber.Map{"selected": nil, "handles": s.Editor.Handles()}
	if hit {
		out["selected"] = fiber.Map{"kind": sel.Kind, "id": sel.ID}
	}
	return c.JSON(out)
}

type dragRequest struct {
	Handle string    `json:"handle"`
	At     orb.Point `json:"at"`
}

func (h *Handler) DragStart(c fiber.Ctx) error {
	s, ok := h.session(c)
	if !ok {
		return noSession(c)
	}
	var req dragRequest
	if err := decode(c, &req); err != nil {
		return badJSON(c)
	}
	if err := s.Editor.StartDrag(req.Handle, req.At); err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{"status": "dragging", "handle": req.Handle})
}

func (h *Handler) DragMove(c fiber.Ctx) error {
	s, ok := h.session(c)
	if !ok {
		return noSession(c)
	}
	var req pointRequest
	if err := decode(c, &req); err != nil {
		return badJSON(c)
	}
	preview, err := s.Editor.MoveDrag(req.At)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{"preview": preview})
}

func (h *Handler) DragEnd(c fiber.Ctx) error {
	s, ok := h.session(c)
	if !ok {
		return noSession(c)
	}
	var req pointRequest
	if err := decode(c, &req); err != nil {
		return badJSON(c)
	}
	ent, err := s.Editor.EndDrag(req.At)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(ent.GeoJSON())
}

func (h *Handler) DragCancel(c fiber.Ctx) error {
	s, ok := h.session(c)
	if !ok {
		return noSession(c)
	}
	if err := s.Editor.CancelDrag(); err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{"status": "cancelled"})
}

// ============================================================
// Furniture / Rooms / Walls
// ============================================================

type placeRequest struct {
	ItemType string    `json:"itemType"`
	At       orb.Point `json:"at"`
}

func (h *Handler) PlaceFurniture(c fiber.Ctx) error {
	s, ok := h.session(c)
	if !ok {
		return noSession(c)
	}
	var req placeRequest
	if err := decode(c, &req); err != nil {
		return badJSON(c)
	}
	f, err := s.Editor.PlaceFurniture(req.ItemType, req.At)
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(http.StatusCreated).JSON(f.GeoJSON())
}

type transformRequest struct {
	Rotation float64 `json:"rotation"`
	ScaleX   float64 `json:"scaleX"`
	ScaleY   float64 `json:"scaleY"`
}

func (h *Handler) TransformFurniture(c fiber.Ctx) error {
	s, ok := h.session(c)
	if !ok {
		return noSession(c)
	}
	req := transformRequest{ScaleX: 1, ScaleY: 1}
	if err := decode(c, &req); err != nil {
		return badJSON(c)
	}
	f, err := s.Editor.SetFurnitureTransform(c.Params("fid"), req.Rotation, req.ScaleX, req.ScaleY)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(f.GeoJSON())
}

func (h *Handler) Wallify(c fiber.Ctx) error {
	s, ok := h.session(c)
	if !ok {
		return noSession(c)
	}
	walls, done, err := s.Editor.Wallify(c.Params("rid"))
	if err != nil {
		return h.fail(c, err)
	}
	fc := geojson.NewFeatureCollection()
	for _, w := range walls {
		fc.Append(w.GeoJSON())
	}
	return c.JSON(fiber.Map{"wallified": done, "walls": fc})
}

func (h *Handler) EditRoom(c fiber.Ctx) error {
	s, ok := h.session(c)
	if !ok {
		return noSession(c)
	}
	var p models.RoomPatch
	if err := decode(c, &p); err != nil {
		return badJSON(c)
	}
	r, err := s.Editor.EditRoom(c.Params("rid"), p)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(r.GeoJSON())
}

func (h *Handler) EditWall(c fiber.Ctx) error {
	s, ok := h.session(c)
	if !ok {
		return noSession(c)
	}
	var p models.WallPatch
	if err := decode(c, &p); err != nil {
		return badJSON(c)
	}
	w, err := s.Editor.EditWall(c.Params("wid"), p)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(w.GeoJSON())
}

// ============================================================
// Points of interest
// ============================================================

type poiRequest struct {
	At orb.Point `json:"at"`
	editor.POIInput
}

func (h *Handler) CreatePOI(c fiber.Ctx) error {
	s, ok := h.session(c)
	if !ok {
		return noSession(c)
	}
	var req poiRequest
	if err := decode(c, &req); err != nil {
		return badJSON(c)
	}
	poi, err := s.Editor.CreatePOI(req.At, req.POIInput)
	if err != nil {
		return h.fail(c, err)
	}
	out := fiber.Map{"poi": poi.GeoJSON()}
	if ev, ok := s.Editor.Event(poi.ID); ok {
		out["event"] = ev
	}
	return c.Status(http.StatusCreated).JSON(out)
}

func (h *Handler) EditPOI(c fiber.Ctx) error {
	s, ok := h.session(c)
	if !ok {
		return noSession(c)
	}
	var p models.POIPatch
	if err := decode(c, &p); err != nil {
		return badJSON(c)
	}
	poi, err := s.Editor.EditPOI(c.Params("pid"), p)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(poi.GeoJSON())
}

func (h *Handler) SetEvent(c fiber.Ctx) error {
	s, ok := h.session(c)
	if !ok {
		return noSession(c)
	}
	var ev models.Event
	if err := decode(c, &ev); err != nil {
		return badJSON(c)
	}
	out, err := s.Editor.SetEvent(c.Params("pid"), ev)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(out)
}

// DeleteFeature удаляет объект; комната забирает свои стены и мебель внутри.
func (h *Handler) DeleteFeature(c fiber.Ctx) error {
	s, ok := h.session(c)
	if !ok {
		return noSession(c)
	}
	kind, ok := models.ParseKind(c.Params("kind"))
	if !ok {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "unknown feature kind"})
	}
	del, err := s.Editor.DeleteFeature(kind, c.Params("fid"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{"deleted": del, "total": del.Total()})
}

// ============================================================
// Export / Import / Sync
// ============================================================

func (h *Handler) Export(c fiber.Ctx) error {
	s, ok := h.session(c)
	if !ok {
		return noSession(c)
	}
	body, err := s.Editor.Export().Marshal()
	if err != nil {
		return h.fail(c, err)
	}
	c.Set("Content-Type", "application/json")
	c.Set("Content-Disposition", `attachment; filename="floor-plan.json"`)
	return c.Send(body)
}

func (h *Handler) Import(c fiber.Ctx) error {
	s, ok := h.session(c)
	if !ok {
		return noSession(c)
	}
	doc, err := models.ParseExportDocument(c.Body())
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(s.Editor.Import(doc))
}

func (h *Handler) Unsynced(c fiber.Ctx) error {
	s, ok := h.session(c)
	if !ok {
		return noSession(c)
	}
	return c.JSON(s.Editor.Unsynced())
}

func (h *Handler) Retry(c fiber.Ctx) error {
	s, ok := h.session(c)
	if !ok {
		return noSession(c)
	}
	return c.JSON(fiber.Map{"requeued": s.Editor.Retry()})
}

// ============================================================
// Helpers
// ============================================================

func (h *Handler) session(c fiber.Ctx) (*sessions.Session, bool) {
	return h.reg.Resolve(c.Params("id"))
}

func noSession(c fiber.Ctx) error {
	return c.Status(http.StatusNotFound).JSON(fiber.Map{"error": "session not found"})
}

func badJSON(c fiber.Ctx) error {
	return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "invalid json"})
}

func decode(c fiber.Ctx, v any) error {
	if len(c.Body()) == 0 {
		return errors.New("empty body")
	}
	return json.Unmarshal(c.Body(), v)
}

func (h *Handler) fail(c fiber.Ctx, err error) error {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, store.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, editor.ErrNoDrag),
		errors.Is(err, editor.ErrDragActive),
		errors.Is(err, store.ErrDuplicate):
		status = http.StatusConflict
	case errors.Is(err, editor.ErrUnknownTool),
		errors.Is(err, editor.ErrToolMismatch),
		errors.Is(err, editor.ErrBadGesture),
		errors.Is(err, editor.ErrBadHandle),
		errors.Is(err, editor.ErrNotEventPOI),
		errors.Is(err, palette.ErrUnknownItem),
		errors.Is(err, models.ErrInvalidGeometry),
		errors.Is(err, models.ErrUnknownFeatureType),
		errors.Is(err, models.ErrSchema):
		status = http.StatusBadRequest
	}
	if status == http.StatusInternalServerError {
		h.log.Error("request failed", "path", c.Path(), "error", err)
	}
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}

package editor

import (
	"errors"
	"fmt"

	"github.com/paulmach/orb"

	"indoormap/internal/editor/store"
	"indoormap/internal/geo"
	"indoormap/internal/mapdata/models"
)

// Tool is the active drawing tool. The empty tool is plain selection.
type Tool string

const (
	ToolNone Tool = ""
	ToolWall Tool = "wall"
	ToolRoom Tool = "room"
)

func ParseTool(s string) (Tool, error) {
	switch Tool(s) {
	case ToolNone, ToolWall, ToolRoom:
		return Tool(s), nil
	case "select", "simple_select":
		return ToolNone, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownTool, s)
}

// DrawState follows idle -> drawing -> created -> drawing. Completing a
// shape re-arms the same tool right away.
type DrawState string

const (
	StateIdle    DrawState = "idle"
	StateDrawing DrawState = "drawing"
	StateCreated DrawState = "created"
)

// Created describes the feature a draw gesture produced.
type Created struct {
	Kind models.Kind `json:"kind"`
	ID   string      `json:"id"`
	// Duplicate is set when the gesture had already been handled.
	Duplicate bool `json:"duplicate"`
}

// SetTool switches tools. Leaving a tool returns to idle. Transient draw
// ids are only remembered while the same tool stays active.
func (e *Editor) SetTool(t Tool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if t != e.tool {
		clear(e.drawn)
	}
	e.tool = t
	if t == ToolNone {
		e.state = StateIdle
	} else {
		e.state = StateDrawing
	}
}

func (e *Editor) Tool() (Tool, DrawState) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tool, e.state
}

// Draw turns a completed gesture into a feature. A line becomes a wall
// buffered to the configured width; a polygon becomes a room. With no tool
// active the geometry decides. A transient id seen before is ignored.
func (e *Editor) Draw(transientID string, g orb.Geometry) (Created, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if transientID != "" {
		if prev, ok := e.drawn[transientID]; ok {
			prev.Duplicate = true
			return prev, nil
		}
	}

	tool := e.tool
	if tool == ToolNone {
		switch g.(type) {
		case orb.LineString:
			tool = ToolWall
		case orb.Polygon:
			tool = ToolRoom
		}
	}

	var (
		ent models.Entity
		err error
	)
	switch tool {
	case ToolWall:
		ent, err = e.wallFromGesture(g)
	case ToolRoom:
		ent, err = e.roomFromGesture(g)
	default:
		err = fmt.Errorf("%w: %s", ErrToolMismatch, geometryType(g))
	}
	if err != nil {
		return Created{}, err
	}

	e.state = StateCreated
	if !e.addLocked(ent) {
		return Created{}, fmt.Errorf("%s %s: %w", ent.FeatureKind(), ent.FeatureID(), store.ErrDuplicate)
	}
	out := Created{Kind: ent.FeatureKind(), ID: ent.FeatureID()}
	if transientID != "" {
		e.drawn[transientID] = out
	}
	e.push(ent.FeatureKind())
	if e.tool != ToolNone {
		e.state = StateDrawing
	} else {
		e.state = StateIdle
	}
	return out, nil
}

func (e *Editor) wallFromGesture(g orb.Geometry) (models.Wall, error) {
	line, ok := g.(orb.LineString)
	if !ok {
		return models.Wall{}, fmt.Errorf("%w: wall needs a line, got %s", ErrToolMismatch, geometryType(g))
	}
	poly, err := geo.BufferLine(line, geo.WallHalfWidth(e.cfg.WallWidth))
	if err != nil {
		return models.Wall{}, fmt.Errorf("%w: %v", ErrBadGesture, err)
	}
	return models.Wall{
		ID:      models.NewID(),
		Polygon: poly,
		Width:   e.cfg.WallWidth,
		Height:  e.cfg.WallHeight,
	}, nil
}

func (e *Editor) roomFromGesture(g orb.Geometry) (models.Room, error) {
	poly, ok := g.(orb.Polygon)
	if !ok {
		return models.Room{}, fmt.Errorf("%w: room needs a polygon, got %s", ErrToolMismatch, geometryType(g))
	}
	poly = geo.ClonePolygon(poly)
	for i, ring := range poly {
		poly[i] = geo.CloseRing(ring)
	}
	if !geo.ValidPolygon(poly) {
		return models.Room{}, fmt.Errorf("%w: %v", ErrBadGesture, models.ErrInvalidGeometry)
	}
	return models.NewDrawnRoom(poly, len(e.store.Snapshot().Rooms)), nil
}

func geometryType(g orb.Geometry) string {
	if g == nil {
		return "nothing"
	}
	return g.GeoJSONType()
}

// ============================================================
// Wallify
// ============================================================

// Wallify derives one wall per edge of the room's outer ring, tagged with
// the room id, and marks the room wallified. Any walls the room already
// owns are replaced as a whole. On a wallified room it does nothing and
// returns false.
func (e *Editor) Wallify(roomID string) ([]models.Wall, bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	room, ok := e.store.Room(roomID)
	if !ok {
		return nil, false, fmt.Errorf("room %s: %w", roomID, store.ErrNotFound)
	}
	if room.Wallified {
		return nil, false, nil
	}
	if len(room.Polygon) == 0 {
		return nil, false, fmt.Errorf("room %s: %w", roomID, models.ErrInvalidGeometry)
	}

	hw := geo.WallHalfWidth(e.cfg.WallWidth)
	vertices := geo.RingVertices(room.Polygon[0])
	walls := make([]models.Wall, 0, len(vertices))
	for i := range vertices {
		a, b := vertices[i], vertices[(i+1)%len(vertices)]
		poly, err := geo.BufferLine(orb.LineString{a, b}, hw)
		if errors.Is(err, geo.ErrDegenerateLine) {
			continue
		}
		if err != nil {
			return nil, false, err
		}
		walls = append(walls, models.Wall{
			ID:      models.NewID(),
			Polygon: poly,
			Width:   e.cfg.WallWidth,
			Height:  e.cfg.WallHeight,
			RoomID:  roomID,
		})
	}

	for _, old := range e.store.ReplaceRoomWalls(roomID, walls) {
		e.sync.Delete(models.TableFeatures, old.ID)
	}
	for _, w := range walls {
		e.sync.Insert(models.TableFeatures, w.Record())
	}
	wallified := true
	p := models.RoomPatch{Wallified: &wallified}
	if _, err := e.store.PatchRoom(roomID, p); err != nil {
		return nil, false, err
	}
	e.sync.Update(models.TableRooms, roomID, p.Columns())
	e.push(models.KindWall, models.KindRoom)
	return walls, true, nil
}

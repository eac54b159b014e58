package editor

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"indoormap/internal/editor/store"
	"indoormap/internal/editor/surface"
	"indoormap/internal/geo"
	"indoormap/internal/mapdata/models"
)

// minScale keeps a scale drag from collapsing an item.
const minScale = 0.1

// dragSession is the state between StartDrag and EndDrag or CancelDrag.
// Nothing is written while it is open; only the preview layer changes.
type dragSession struct {
	handle surface.Handle
	start  orb.Point
	base   models.Entity

	pivot        orb.Point
	startBearing float64
	startDist    float64
}

// StartDrag grabs a handle. The handle id need not be one currently
// shown, so a POI can be dragged with "poi:<id>:move".
func (e *Editor) StartDrag(handleID string, at orb.Point) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.drag != nil {
		return ErrDragActive
	}
	h, err := surface.ParseHandleID(handleID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBadHandle, err)
	}
	base, ok := e.store.Get(h.TargetOf, h.Target)
	if !ok {
		return fmt.Errorf("%s %s: %w", h.TargetOf, h.Target, store.ErrNotFound)
	}

	s := &dragSession{handle: h, start: at, base: base}
	switch v := base.(type) {
	case models.Furniture:
		if h.Kind == surface.HandleVertex {
			return ErrBadHandle
		}
		s.pivot = geo.Centroid(v.Polygon)
		s.startBearing = geo.Bearing(s.pivot, at)
		s.startDist = geo.DistanceMeters(s.pivot, at)
	case models.POI:
		if h.Kind != surface.HandleMove {
			return ErrBadHandle
		}
	case models.Room:
		if h.Kind != surface.HandleVertex || h.Ring >= len(v.Polygon) ||
			h.Vertex >= len(geo.RingVertices(v.Polygon[h.Ring])) {
			return ErrBadHandle
		}
	default:
		return ErrBadHandle
	}
	e.drag = s
	return nil
}

// MoveDrag updates the preview for the pointer at at.
func (e *Editor) MoveDrag(at orb.Point) (*geojson.Feature, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.drag == nil {
		return nil, ErrNoDrag
	}
	preview := e.drag.result(at).GeoJSON()
	e.surface.SetPreview(preview)
	return preview, nil
}

// EndDrag commits the gesture released at at: the store takes the final
// geometry, the preview goes away and exactly one update is queued.
func (e *Editor) EndDrag(at orb.Point) (models.Entity, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := e.drag
	if s == nil {
		return nil, ErrNoDrag
	}
	e.drag = nil
	e.surface.SetPreview(nil)

	var (
		out     models.Entity
		err     error
		table   = models.TableFor(s.base.FeatureKind())
		columns models.Record
	)
	switch v := s.result(at).(type) {
	case models.Furniture:
		base := s.base.(models.Furniture)
		var p models.FurniturePatch
		switch s.handle.Kind {
		case surface.HandleMove:
			p.Original = &v.Original
		case surface.HandleRotate:
			p.Rotation = &v.Rotation
		case surface.HandleScale:
			p.ScaleX, p.ScaleY = &v.ScaleX, &v.ScaleY
		}
		var applied models.Furniture
		applied, err = e.store.PatchFurniture(base.ID, p)
		columns, out = p.Columns(applied), applied
	case models.POI:
		p := models.POIPatch{Point: &v.Point}
		out, err = e.store.PatchPOI(v.ID, p)
		columns = p.Columns()
	case models.Room:
		p := models.RoomPatch{Polygon: &v.Polygon}
		out, err = e.store.PatchRoom(v.ID, p)
		columns = p.Columns()
	}
	if err != nil {
		// the feature was removed while dragging
		return nil, err
	}
	e.sync.Update(table, out.FeatureID(), columns)
	e.push(out.FeatureKind())
	e.refreshHandles()
	return out, nil
}

// CancelDrag drops the gesture and its preview without touching the store.
func (e *Editor) CancelDrag() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.drag == nil {
		return ErrNoDrag
	}
	e.drag = nil
	e.surface.SetPreview(nil)
	return nil
}

// Dragging reports whether a drag session is open.
func (e *Editor) Dragging() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.drag != nil
}

// result is the feature as it would look with the pointer at at.
// Rotation and scale always start again from the baseline footprint.
func (s *dragSession) result(at orb.Point) models.Entity {
	dLon, dLat := at[0]-s.start[0], at[1]-s.start[1]

	switch v := s.base.(type) {
	case models.Furniture:
		switch s.handle.Kind {
		case surface.HandleMove:
			v.Original = geo.Translate(v.Original, dLon, dLat).(orb.Polygon)
		case surface.HandleRotate:
			delta := geo.Bearing(s.pivot, at) - s.startBearing
			v.Rotation = geo.NormalizeDegrees(v.Rotation + delta)
		case surface.HandleScale:
			ratio := 1.0
			if s.startDist > 1e-6 {
				ratio = geo.DistanceMeters(s.pivot, at) / s.startDist
			}
			v.ScaleX = math.Max(minScale, v.ScaleX*ratio)
			v.ScaleY = math.Max(minScale, v.ScaleY*ratio)
		}
		return v.Retransform()

	case models.POI:
		v.Point = orb.Point{v.Point[0] + dLon, v.Point[1] + dLat}
		return v

	case models.Room:
		poly := geo.ClonePolygon(v.Polygon)
		ring := poly[s.handle.Ring]
		ring[s.handle.Vertex] = at
		if s.handle.Vertex == 0 && len(ring) > 1 {
			ring[len(ring)-1] = at
		}
		poly[s.handle.Ring] = geo.CloseRing(ring)
		v.Polygon = poly
		return v
	}
	return s.base
}

// ============================================================
// Transform panel
// ============================================================

// SetFurnitureTransform applies a rotation and scale from the baseline in
// one commit with one write.
func (e *Editor) SetFurnitureTransform(id string, rotation, sx, sy float64) (models.Furniture, error) {
	if sx <= 0 || sy <= 0 || math.IsNaN(rotation) || math.IsInf(rotation, 0) {
		return models.Furniture{}, fmt.Errorf("%w: scale must be positive", ErrBadGesture)
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	rotation = geo.NormalizeDegrees(rotation)
	p := models.FurniturePatch{Rotation: &rotation, ScaleX: &sx, ScaleY: &sy}
	f, err := e.store.PatchFurniture(id, p)
	if err != nil {
		return models.Furniture{}, err
	}
	e.sync.Update(models.TableFeatures, id, p.Columns(f))
	e.push(models.KindFurniture)
	e.refreshHandles()
	return f, nil
}

package editor

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"indoormap/internal/editor/store"
	"indoormap/internal/editor/surface"
	"indoormap/internal/geo"
	"indoormap/internal/mapdata/models"
)

// rotateHandleOffset is how far above a furniture item its rotate handle sits.
const rotateHandleOffset = 0.5

// Click selects the topmost feature under at. Furniture wins over rooms,
// rooms over walls, walls over POIs. Empty space clears the selection.
func (e *Editor) Click(at orb.Point) (store.Selection, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	hits := e.surface.QueryRendered(at, e.cfg.HitRadius)
	for _, kind := range models.Kinds {
		for _, h := range hits {
			if h.Kind != kind {
				continue
			}
			id, ok := e.resolveRendered(kind, h.Feature)
			if !ok {
				continue
			}
			sel := store.Selection{Kind: kind, ID: id}
			e.selectLocked(sel)
			return sel, true
		}
	}
	e.clearSelectionLocked()
	return store.Selection{}, false
}

// Select selects a feature by reference.
func (e *Editor) Select(kind models.Kind, id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.store.Get(kind, id); !ok {
		return fmt.Errorf("%s %s: %w", kind, id, store.ErrNotFound)
	}
	e.selectLocked(store.Selection{Kind: kind, ID: id})
	return nil
}

func (e *Editor) ClearSelection() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.clearSelectionLocked()
}

// resolveRendered maps a rendered feature onto the store. A feature the
// store has not seen yet is adopted locally without a remote write.
func (e *Editor) resolveRendered(kind models.Kind, f *geojson.Feature) (string, bool) {
	id := renderedID(f)
	if id == "" {
		return "", false
	}
	if _, ok := e.store.Get(kind, id); ok {
		return id, true
	}
	ent, err := models.FromGeoJSON(kind, f)
	if err != nil {
		e.log.Warn("rendered feature not adopted", "kind", kind, "id", id, "error", err)
		return "", false
	}
	if err := e.store.Add(ent); err != nil {
		e.log.Warn("rendered feature not adopted", "kind", kind, "id", id, "error", err)
		return "", false
	}
	e.log.Debug("rendered feature adopted", "kind", kind, "id", id)
	return id, true
}

func renderedID(f *geojson.Feature) string {
	if f == nil {
		return ""
	}
	switch v := f.ID.(type) {
	case string:
		if v != "" {
			return v
		}
	case float64:
		return fmt.Sprintf("%v", v)
	}
	return f.Properties.MustString("id", "")
}

func (e *Editor) selectLocked(sel store.Selection) {
	if err := e.store.Select(sel.Kind, sel.ID); err != nil {
		e.clearSelectionLocked()
		return
	}
	e.surface.ClosePopup()
	ent, _ := e.store.Get(sel.Kind, sel.ID)

	switch v := ent.(type) {
	case models.Room:
		e.setHandles(roomHandles(v))
	case models.Furniture:
		e.setHandles(furnitureHandles(v))
	case models.POI:
		e.setHandles(nil)
		var ev *models.Event
		if linked, ok := e.events[v.ID]; ok {
			ev = &linked
		}
		e.surface.ShowPopup(v, ev)
	default:
		e.setHandles(nil)
	}
}

func (e *Editor) clearSelectionLocked() {
	e.store.ClearSelection()
	e.setHandles(nil)
	e.surface.ClosePopup()
}

func (e *Editor) setHandles(h []surface.Handle) {
	e.handles = h
	e.surface.SetHandles(h)
}

// refreshHandles rebuilds handles for the selection after its geometry
// changed.
func (e *Editor) refreshHandles() {
	sel, ok := e.store.Selected()
	if !ok {
		return
	}
	e.selectLocked(sel)
}

// ============================================================
// Handles
// ============================================================

// roomHandles places one vertex handle on each distinct ring vertex.
func roomHandles(r models.Room) []surface.Handle {
	var out []surface.Handle
	for ri, ring := range r.Polygon {
		for vi, pt := range geo.RingVertices(ring) {
			out = append(out, surface.Handle{
				ID:       surface.HandleID(models.KindRoom, r.ID, surface.HandleVertex, ri, vi),
				Kind:     surface.HandleVertex,
				Target:   r.ID,
				TargetOf: models.KindRoom,
				Ring:     ri,
				Vertex:   vi,
				Position: pt,
			})
		}
	}
	return out
}

func furnitureHandles(f models.Furniture) []surface.Handle {
	c := geo.Centroid(f.Polygon)
	b := f.Polygon.Bound()
	top := geo.Offset(orb.Point{c[0], b.Max[1]}, 0, rotateHandleOffset)
	mk := func(kind surface.HandleKind, at orb.Point) surface.Handle {
		return surface.Handle{
			ID:       surface.HandleID(models.KindFurniture, f.ID, kind, 0, 0),
			Kind:     kind,
			Target:   f.ID,
			TargetOf: models.KindFurniture,
			Position: at,
		}
	}
	return []surface.Handle{
		mk(surface.HandleMove, c),
		mk(surface.HandleRotate, top),
		mk(surface.HandleScale, b.Max),
	}
}

// Handles returns the handles currently shown.
func (e *Editor) Handles() []surface.Handle {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]surface.Handle(nil), e.handles...)
}

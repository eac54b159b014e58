package editor

import (
	"fmt"

	"github.com/paulmach/orb"

	"indoormap/internal/editor/store"
	"indoormap/internal/geo"
	"indoormap/internal/mapdata/models"
	"indoormap/internal/palette"
)

// ============================================================
// Property panel
// ============================================================

// panelEdit accumulates panel changes to one feature until the debounce
// fires; the write then carries the merged patch.
type panelEdit struct {
	kind models.Kind
	id   string
	room models.RoomPatch
	poi  models.POIPatch
	deb  *geo.Debouncer
}

func panelKey(kind models.Kind, id string) string {
	return string(kind) + ":" + id
}

// EditRoom applies a panel edit locally at once and writes it after the
// panel has been quiet for the debounce delay.
func (e *Editor) EditRoom(id string, p models.RoomPatch) (models.Room, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	p.Polygon = nil
	r, err := e.store.PatchRoom(id, p)
	if err != nil {
		return models.Room{}, err
	}
	pe := e.panelLocked(models.KindRoom, id)
	pe.room = pe.room.Merge(p)
	e.push(models.KindRoom)
	return r, nil
}

func (e *Editor) EditPOI(id string, p models.POIPatch) (models.POI, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	p.Point = nil
	poi, err := e.store.PatchPOI(id, p)
	if err != nil {
		return models.POI{}, err
	}
	pe := e.panelLocked(models.KindPOI, id)
	pe.poi = pe.poi.Merge(p)
	e.push(models.KindPOI)
	if sel, ok := e.store.Selected(); ok && sel.Kind == models.KindPOI && sel.ID == id {
		e.refreshHandles()
	}
	return poi, nil
}

// EditWall changes wall dimensions with an immediate write.
func (e *Editor) EditWall(id string, p models.WallPatch) (models.Wall, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	p.Polygon = nil
	w, err := e.store.PatchWall(id, p)
	if err != nil {
		return models.Wall{}, err
	}
	e.sync.Update(models.TableFeatures, id, p.Columns())
	e.push(models.KindWall)
	return w, nil
}

func (e *Editor) panelLocked(kind models.Kind, id string) *panelEdit {
	key := panelKey(kind, id)
	pe, ok := e.panels[key]
	if !ok {
		pe = &panelEdit{kind: kind, id: id, deb: geo.NewDebouncer(e.cfg.PanelDebounce)}
		e.panels[key] = pe
	}
	pe.deb.Trigger(func() { e.writePanel(key) })
	return pe
}

func (e *Editor) writePanel(key string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	pe, ok := e.panels[key]
	if !ok {
		return
	}
	delete(e.panels, key)
	switch pe.kind {
	case models.KindRoom:
		e.sync.Update(models.TableRooms, pe.id, pe.room.Columns())
	case models.KindPOI:
		e.sync.Update(models.TablePOI, pe.id, pe.poi.Columns())
	}
}

// FlushPanels writes every pending panel edit now.
func (e *Editor) FlushPanels() int {
	e.mu.Lock()
	pending := make([]*panelEdit, 0, len(e.panels))
	for _, pe := range e.panels {
		pending = append(pending, pe)
	}
	e.mu.Unlock()

	n := 0
	for _, pe := range pending {
		if pe.deb.Flush() {
			n++
		}
	}
	return n
}

// dropPanelLocked forgets a pending edit of a feature about to be deleted.
func (e *Editor) dropPanelLocked(kind models.Kind, id string) {
	key := panelKey(kind, id)
	if pe, ok := e.panels[key]; ok {
		pe.deb.Stop()
		delete(e.panels, key)
	}
}

// ============================================================
// Furniture palette
// ============================================================

// PlaceFurniture drops a palette item centred on at.
func (e *Editor) PlaceFurniture(itemType string, at orb.Point) (models.Furniture, error) {
	item, ok := e.palette.Lookup(itemType)
	if !ok {
		return models.Furniture{}, fmt.Errorf("%w: %q", palette.ErrUnknownItem, itemType)
	}
	if !geo.ValidPoint(at) {
		return models.Furniture{}, fmt.Errorf("%w: bad drop point", ErrBadGesture)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	footprint := geo.RectangleAt(at, item.Width, item.Depth)
	f := models.Furniture{
		ID:       models.NewID(),
		Polygon:  footprint,
		ItemType: item.Type,
		Icon:     item.Icon,
		ScaleX:   1,
		ScaleY:   1,
		Label:    item.Label,
		Original: geo.ClonePolygon(footprint),
	}
	if !e.addLocked(f) {
		return models.Furniture{}, store.ErrDuplicate
	}
	e.push(models.KindFurniture)
	return f, nil
}

// ============================================================
// Points of interest
// ============================================================

// POIInput is a new point of interest. Event is only kept when Category
// is "event".
type POIInput struct {
	Title       string        `json:"title"`
	Category    string        `json:"category"`
	Description string        `json:"description"`
	ImageURL    string        `json:"imageUrl"`
	Address     string        `json:"address"`
	Event       *models.Event `json:"event,omitempty"`
}

func (e *Editor) CreatePOI(at orb.Point, in POIInput) (models.POI, error) {
	if !geo.ValidPoint(at) {
		return models.POI{}, fmt.Errorf("%w: bad point", ErrBadGesture)
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	poi := models.POI{
		ID:          models.NewID(),
		Point:       at,
		Title:       in.Title,
		Category:    in.Category,
		Description: in.Description,
		ImageURL:    in.ImageURL,
		Address:     in.Address,
	}
	if !e.addLocked(poi) {
		return models.POI{}, store.ErrDuplicate
	}
	if in.Event != nil && in.Category == models.CategoryEvent {
		e.putEventLocked(poi.ID, *in.Event)
	}
	e.push(models.KindPOI)
	return poi, nil
}

// SetEvent creates or replaces the event linked to an event POI.
func (e *Editor) SetEvent(poiID string, ev models.Event) (models.Event, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	poi, ok := e.store.POI(poiID)
	if !ok {
		return models.Event{}, fmt.Errorf("poi %s: %w", poiID, store.ErrNotFound)
	}
	if poi.Category != models.CategoryEvent {
		return models.Event{}, fmt.Errorf("poi %s: %w", poiID, ErrNotEventPOI)
	}
	out := e.putEventLocked(poiID, ev)
	if sel, ok := e.store.Selected(); ok && sel.Kind == models.KindPOI && sel.ID == poiID {
		e.refreshHandles()
	}
	return out, nil
}

func (e *Editor) putEventLocked(poiID string, ev models.Event) models.Event {
	ev.POIID = poiID
	if ev.Participants == nil {
		ev.Participants = []string{}
	}
	if prev, ok := e.events[poiID]; ok {
		ev.ID = prev.ID
		rec := ev.Record()
		delete(rec, "id")
		e.sync.Update(models.TableEvents, ev.ID, rec)
	} else {
		if ev.ID == "" {
			ev.ID = models.NewID()
		}
		e.sync.Insert(models.TableEvents, ev.Record())
	}
	e.events[poiID] = ev
	return ev
}

// ============================================================
// Delete
// ============================================================

// Deleted counts the features a delete removed.
type Deleted struct {
	Walls     int `json:"walls"`
	Rooms     int `json:"rooms"`
	Furniture int `json:"furniture"`
	POIs      int `json:"pois"`
	Events    int `json:"events"`
}

func (d Deleted) Total() int {
	return d.Walls + d.Rooms + d.Furniture + d.POIs + d.Events
}

// DeleteFeature removes a feature locally first, then queues the remote
// deletes as independent writes. A room takes its own walls and every
// furniture item whose centroid lies inside it; a POI takes its event.
func (e *Editor) DeleteFeature(kind models.Kind, id string) (Deleted, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var out Deleted
	switch kind {
	case models.KindRoom:
		c, err := e.store.RemoveRoom(id, true)
		if err != nil {
			return out, err
		}
		for _, w := range c.Walls {
			e.forgetLocked(models.KindWall, w.ID)
			e.sync.Delete(models.TableFeatures, w.ID)
		}
		for _, f := range c.Furniture {
			e.forgetLocked(models.KindFurniture, f.ID)
			e.sync.Delete(models.TableFeatures, f.ID)
		}
		e.forgetLocked(models.KindRoom, id)
		e.sync.Delete(models.TableRooms, id)
		out = Deleted{Walls: len(c.Walls), Furniture: len(c.Furniture), Rooms: 1}
		e.push(models.KindWall, models.KindFurniture, models.KindRoom)

	case models.KindPOI:
		if _, err := e.store.Remove(kind, id); err != nil {
			return out, err
		}
		e.forgetLocked(kind, id)
		if _, ok := e.events[id]; ok {
			e.sync.DeleteWhere(models.TableEvents, "poi_id", id)
			delete(e.events, id)
			out.Events = 1
		}
		e.sync.Delete(models.TablePOI, id)
		out.POIs = 1
		e.push(kind)

	case models.KindWall, models.KindFurniture:
		if _, err := e.store.Remove(kind, id); err != nil {
			return out, err
		}
		e.forgetLocked(kind, id)
		e.sync.Delete(models.TableFeatures, id)
		if kind == models.KindWall {
			out.Walls = 1
		} else {
			out.Furniture = 1
		}
		e.push(kind)

	default:
		return out, fmt.Errorf("%w: %q", models.ErrUnknownFeatureType, kind)
	}

	if _, ok := e.store.Selected(); !ok {
		e.clearSelectionLocked()
	}
	return out, nil
}

// forgetLocked drops editor state that refers to a deleted feature.
func (e *Editor) forgetLocked(kind models.Kind, id string) {
	e.dropPanelLocked(kind, id)
	if e.drag != nil && e.drag.handle.TargetOf == kind && e.drag.handle.Target == id {
		e.drag = nil
		e.surface.SetPreview(nil)
	}
}

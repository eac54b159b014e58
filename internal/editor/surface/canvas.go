package surface

import (
	"sync"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"indoormap/internal/geo"
	"indoormap/internal/mapdata/models"
)

// Popup is the open POI popup of a Canvas.
type Popup struct {
	POI   models.POI
	Event *models.Event
}

// Canvas keeps everything in memory. It is what the editor service
// serves to clients and what tests assert against.
type Canvas struct {
	mu      sync.RWMutex
	sources map[models.Kind]*geojson.FeatureCollection
	preview *geojson.Feature
	handles []Handle
	popup   *Popup
	pushes  map[models.Kind]int
}

func NewCanvas() *Canvas {
	return &Canvas{
		sources: map[models.Kind]*geojson.FeatureCollection{},
		pushes:  map[models.Kind]int{},
	}
}

// queryOrder is deliberately not the hit priority; callers rank results.
var queryOrder = []models.Kind{models.KindPOI, models.KindWall, models.KindRoom, models.KindFurniture}

func (c *Canvas) SetSource(kind models.Kind, fc *geojson.FeatureCollection) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sources[kind] = fc
	c.pushes[kind]++
}

func (c *Canvas) QueryRendered(at orb.Point, radius float64) []RenderedFeature {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []RenderedFeature
	for _, kind := range queryOrder {
		fc := c.sources[kind]
		if fc == nil {
			continue
		}
		for _, f := range fc.Features {
			if hits(f.Geometry, at, radius) {
				out = append(out, RenderedFeature{Kind: kind, Feature: f})
			}
		}
	}
	return out
}

func hits(g orb.Geometry, at orb.Point, radius float64) bool {
	switch v := g.(type) {
	case orb.Point:
		return geo.DistanceMeters(v, at) <= radius
	case orb.Polygon:
		if geo.Contains(v, at) {
			return true
		}
		for _, ring := range v {
			if len(ring) > 1 && geo.DistanceToLineMeters(at, orb.LineString(ring)) <= radius {
				return true
			}
		}
	case orb.LineString:
		return len(v) > 1 && geo.DistanceToLineMeters(at, v) <= radius
	}
	return false
}

func (c *Canvas) SetPreview(f *geojson.Feature) {
	c.mu.Lock()
	c.preview = f
	c.mu.Unlock()
}

func (c *Canvas) SetHandles(handles []Handle) {
	c.mu.Lock()
	c.handles = append([]Handle(nil), handles...)
	c.mu.Unlock()
}

func (c *Canvas) ShowPopup(poi models.POI, event *models.Event) {
	c.mu.Lock()
	c.popup = &Popup{POI: poi, Event: event}
	c.mu.Unlock()
}

func (c *Canvas) ClosePopup() {
	c.mu.Lock()
	c.popup = nil
	c.mu.Unlock()
}

// ============================================================
// Read side
// ============================================================

func (c *Canvas) Source(kind models.Kind) *geojson.FeatureCollection {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sources[kind]
}

// Pushes counts SetSource calls per layer.
func (c *Canvas) Pushes(kind models.Kind) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.pushes[kind]
}

func (c *Canvas) Preview() *geojson.Feature {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.preview
}

func (c *Canvas) Handles() []Handle {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]Handle(nil), c.handles...)
}

func (c *Canvas) Popup() *Popup {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.popup == nil {
		return nil
	}
	cp := *c.popup
	return &cp
}

// View is the serializable state of a Canvas.
type View struct {
	Sources map[models.Kind]*geojson.FeatureCollection `json:"sources"`
	Preview *geojson.Feature                           `json:"preview,omitempty"`
	Handles []Handle                                   `json:"handles"`
	Popup   *Popup                                     `json:"popup,omitempty"`
}

func (c *Canvas) View() View {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v := View{
		Sources: make(map[models.Kind]*geojson.FeatureCollection, len(c.sources)),
		Preview: c.preview,
		Handles: append([]Handle{}, c.handles...),
	}
	for k, fc := range c.sources {
		v.Sources[k] = fc
	}
	if c.popup != nil {
		cp := *c.popup
		v.Popup = &cp
	}
	return v
}

// Package editor is the floor-plan editing core. An Editor owns the
// feature store, the map surface and the write queue of one session and
// runs every user gesture under a single lock, one event at a time.
package editor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/paulmach/orb/geojson"

	"indoormap/internal/common/config"
	"indoormap/internal/editor/remote"
	"indoormap/internal/editor/store"
	"indoormap/internal/editor/surface"
	"indoormap/internal/mapdata/models"
	"indoormap/internal/palette"
)

var (
	ErrNoDrag       = errors.New("no drag in progress")
	ErrDragActive   = errors.New("a drag is already in progress")
	ErrUnknownTool  = errors.New("unknown draw tool")
	ErrToolMismatch = errors.New("geometry does not match the active tool")
	ErrBadGesture   = errors.New("gesture produced no usable geometry")
	ErrBadHandle    = errors.New("handle does not apply to this feature")
	ErrNotEventPOI  = errors.New("poi is not an event")
)

// Config tunes the editing gestures.
type Config struct {
	WallWidth     float64       // meters, drawn walls are buffered by max(0.1, WallWidth/2)
	WallHeight    float64       // meters, stored on new walls
	HitRadius     float64       // meters around a click that count as a hit
	PanelDebounce time.Duration // quiet time before a property-panel edit is written
	RemoteTimeout time.Duration
}

// ConfigFrom maps the service configuration onto editor settings.
func ConfigFrom(c config.EditorConfig) Config {
	return Config{
		WallWidth:     c.WallWidth,
		WallHeight:    c.WallHeight,
		HitRadius:     c.HitRadius,
		PanelDebounce: c.PanelDebounce,
		RemoteTimeout: c.RemoteTimeout,
	}
}

func (c Config) withDefaults() Config {
	if c.WallWidth <= 0 {
		c.WallWidth = 0.3
	}
	if c.WallHeight <= 0 {
		c.WallHeight = 3
	}
	if c.HitRadius <= 0 {
		c.HitRadius = 0.5
	}
	if c.PanelDebounce <= 0 {
		c.PanelDebounce = time.Second
	}
	return c
}

// Editor is the owner object every controller works through.
type Editor struct {
	mu      sync.Mutex
	cfg     Config
	store   *store.Store
	surface surface.Surface
	remote  remote.Remote
	sync    *remote.Syncer
	palette *palette.Catalog
	log     *slog.Logger

	tool    Tool
	state   DrawState
	drawn   map[string]Created // transient draw id -> created feature
	drag    *dragSession
	handles []surface.Handle
	events  map[string]models.Event // by poi id
	panels  map[string]*panelEdit   // by "<kind>:<id>"
	mounted bool
}

// New wires an editor to a surface and a remote. Mount must run before
// the editor reflects remote data.
func New(cfg Config, surf surface.Surface, r remote.Remote, cat *palette.Catalog, log *slog.Logger) *Editor {
	if log == nil {
		log = slog.Default()
	}
	if cat == nil {
		cat = palette.Default()
	}
	cfg = cfg.withDefaults()
	return &Editor{
		cfg:     cfg,
		store:   store.New(log),
		surface: surf,
		remote:  r,
		sync:    remote.NewSyncer(r, cfg.RemoteTimeout, log),
		palette: cat,
		log:     log,
		state:   StateIdle,
		drawn:   map[string]Created{},
		events:  map[string]models.Event{},
		panels:  map[string]*panelEdit{},
	}
}

// Mount loads every table and replaces local state wholesale. A read
// failure leaves the editor unmounted and is returned to the caller.
func (e *Editor) Mount(ctx context.Context) error {
	loaded, err := remote.Load(ctx, e.remote, e.log)
	if err != nil {
		return fmt.Errorf("load floor plan: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.store.Replace(loaded.Walls, loaded.Rooms, loaded.Furniture, loaded.POIs)
	e.events = make(map[string]models.Event, len(loaded.Events))
	for _, ev := range loaded.Events {
		e.events[ev.POIID] = ev
	}
	e.drag = nil
	e.clearSelectionLocked()
	e.push(models.Kinds...)
	e.mounted = true
	e.log.Info("floor plan mounted",
		"walls", len(loaded.Walls), "rooms", len(loaded.Rooms),
		"furniture", len(loaded.Furniture), "pois", len(loaded.POIs),
		"dropped", loaded.Dropped)
	return nil
}

func (e *Editor) Mounted() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.mounted
}

// Snapshot exposes the current local state.
func (e *Editor) Snapshot() store.Snapshot {
	return e.store.Snapshot()
}

// Event returns the event linked to a POI.
func (e *Editor) Event(poiID string) (models.Event, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	ev, ok := e.events[poiID]
	return ev, ok
}

func (e *Editor) Palette() []palette.Item {
	return e.palette.Items()
}

// ============================================================
// Sync state
// ============================================================

// Observe reports each remote write outcome.
func (e *Editor) Observe(fn func(remote.Outcome)) {
	e.sync.Observe(fn)
}

func (e *Editor) Unsynced() []remote.Write {
	return e.sync.Unsynced()
}

func (e *Editor) Retry() int {
	return e.sync.Retry()
}

// Flush writes pending panel edits and waits for the write queue.
func (e *Editor) Flush(ctx context.Context) error {
	e.FlushPanels()
	return e.sync.Flush(ctx)
}

// Close flushes everything and stops the write worker.
func (e *Editor) Close(ctx context.Context) error {
	e.FlushPanels()
	return e.sync.Close(ctx)
}

// ============================================================
// Export / import
// ============================================================

// Export builds the downloadable document from the rendered state.
func (e *Editor) Export() *models.ExportDocument {
	r := e.store.Render()
	return models.NewExportDocument(r.Walls, r.Rooms, r.Furniture)
}

// ImportResult counts what an import added.
type ImportResult struct {
	Walls     int `json:"walls"`
	Rooms     int `json:"rooms"`
	Furniture int `json:"furniture"`
	Skipped   int `json:"skipped"`
}

// Import adds every feature of doc as a new local feature with a fresh
// id and writes each one. Wall ownership is remapped to the new room ids.
func (e *Editor) Import(doc *models.ExportDocument) ImportResult {
	walls, rooms, furniture, errs := doc.Entities()

	e.mu.Lock()
	defer e.mu.Unlock()
	res := ImportResult{Skipped: len(errs)}
	for _, err := range errs {
		e.log.Warn("import feature skipped", "error", err)
	}

	roomIDs := make(map[string]string, len(rooms))
	for _, r := range rooms {
		old := r.ID
		r.ID = models.NewID()
		roomIDs[old] = r.ID
		if e.addLocked(r) {
			res.Rooms++
		}
	}
	for _, w := range walls {
		w.ID = models.NewID()
		if w.RoomID != "" {
			w.RoomID = roomIDs[w.RoomID]
		}
		if w.Height == 0 {
			w.Height = e.cfg.WallHeight
		}
		if e.addLocked(w) {
			res.Walls++
		}
	}
	for _, f := range furniture {
		f.ID = models.NewID()
		if e.addLocked(f) {
			res.Furniture++
		}
	}
	e.push(models.KindWall, models.KindRoom, models.KindFurniture)
	return res
}

// addLocked stores a new feature and queues its insert.
func (e *Editor) addLocked(ent models.Entity) bool {
	if err := e.store.Add(ent); err != nil {
		e.log.Warn("feature not added", "kind", ent.FeatureKind(), "id", ent.FeatureID(), "error", err)
		return false
	}
	e.sync.Insert(models.TableFor(ent.FeatureKind()), models.RecordOf(ent))
	return true
}

// ============================================================
// Surface
// ============================================================

// push re-renders the given layers onto the surface.
func (e *Editor) push(kinds ...models.Kind) {
	r := e.store.Render()
	for _, k := range kinds {
		fc := geojson.NewFeatureCollection()
		switch k {
		case models.KindWall:
			for _, w := range r.Walls {
				fc.Append(w.GeoJSON())
			}
		case models.KindRoom:
			for _, rm := range r.Rooms {
				fc.Append(rm.GeoJSON())
			}
		case models.KindFurniture:
			for _, f := range r.Furniture {
				fc.Append(f.GeoJSON())
			}
		case models.KindPOI:
			for _, p := range r.POIs {
				fc.Append(p.GeoJSON())
			}
		}
		e.surface.SetSource(k, fc)
	}
}

// Package store holds the editor's four feature collections and the
// selection slot.
//
// Every mutation replaces the touched collection with a new slice, so a
// Snapshot handed out earlier is never modified and consumers can diff
// collections by revision or by slice identity.
package store

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/paulmach/orb"

	"indoormap/internal/geo"
	"indoormap/internal/mapdata/models"
)

var (
	ErrNotFound  = errors.New("feature not found")
	ErrDuplicate = errors.New("duplicate feature id")
	ErrKind      = errors.New("geometry does not fit feature kind")
)

// Selection references at most one feature across all kinds.
type Selection struct {
	Kind models.Kind
	ID   string
}

// Snapshot is an immutable view of the store.
type Snapshot struct {
	Walls     []models.Wall
	Rooms     []models.Room
	Furniture []models.Furniture
	POIs      []models.POI
	Selected  *Selection
	Revisions map[models.Kind]uint64
}

type Store struct {
	mu        sync.RWMutex
	walls     []models.Wall
	rooms     []models.Room
	furniture []models.Furniture
	pois      []models.POI
	selected  *Selection
	rev       map[models.Kind]uint64
	log       *slog.Logger
}

func New(log *slog.Logger) *Store {
	if log == nil {
		log = slog.Default()
	}
	return &Store{rev: map[models.Kind]uint64{}, log: log}
}

// Snapshot returns the current collections. The slices must not be modified.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	revs := make(map[models.Kind]uint64, len(s.rev))
	for k, v := range s.rev {
		revs[k] = v
	}
	var sel *Selection
	if s.selected != nil {
		cp := *s.selected
		sel = &cp
	}
	return Snapshot{
		Walls:     s.walls,
		Rooms:     s.rooms,
		Furniture: s.furniture,
		POIs:      s.pois,
		Selected:  sel,
		Revisions: revs,
	}
}

func (s *Store) Revision(kind models.Kind) uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rev[kind]
}

// Replace swaps in every collection at once, as after a full load.
// Selection is cleared.
func (s *Store) Replace(walls []models.Wall, rooms []models.Room, furniture []models.Furniture, pois []models.POI) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.walls = append([]models.Wall(nil), walls...)
	s.rooms = append([]models.Room(nil), rooms...)
	s.furniture = append([]models.Furniture(nil), furniture...)
	s.pois = append([]models.POI(nil), pois...)
	s.selected = nil
	for _, k := range models.Kinds {
		s.rev[k]++
	}
}

// ============================================================
// Lookup
// ============================================================

func (s *Store) Get(kind models.Kind, id string) (models.Entity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.find(kind, id)
}

func (s *Store) Wall(id string) (models.Wall, bool) {
	e, ok := s.Get(models.KindWall, id)
	if !ok {
		return models.Wall{}, false
	}
	return e.(models.Wall), true
}

func (s *Store) Room(id string) (models.Room, bool) {
	e, ok := s.Get(models.KindRoom, id)
	if !ok {
		return models.Room{}, false
	}
	return e.(models.Room), true
}

func (s *Store) Furniture(id string) (models.Furniture, bool) {
	e, ok := s.Get(models.KindFurniture, id)
	if !ok {
		return models.Furniture{}, false
	}
	return e.(models.Furniture), true
}

func (s *Store) POI(id string) (models.POI, bool) {
	e, ok := s.Get(models.KindPOI, id)
	if !ok {
		return models.POI{}, false
	}
	return e.(models.POI), true
}

func (s *Store) find(kind models.Kind, id string) (models.Entity, bool) {
	switch kind {
	case models.KindWall:
		if i := indexOf(s.walls, id); i >= 0 {
			return s.walls[i], true
		}
	case models.KindRoom:
		if i := indexOf(s.rooms, id); i >= 0 {
			return s.rooms[i], true
		}
	case models.KindFurniture:
		if i := indexOf(s.furniture, id); i >= 0 {
			return s.furniture[i], true
		}
	case models.KindPOI:
		if i := indexOf(s.pois, id); i >= 0 {
			return s.pois[i], true
		}
	}
	return nil, false
}

// ============================================================
// Mutations
// ============================================================

// Add appends a feature to its collection. Ids are unique across all
// kinds.
func (s *Store) Add(e models.Entity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range models.Kinds {
		if _, exists := s.find(k, e.FeatureID()); exists {
			return fmt.Errorf("%s %s: %w (held by %s)", e.FeatureKind(), e.FeatureID(), ErrDuplicate, k)
		}
	}
	switch v := e.(type) {
	case models.Wall:
		s.walls = appendCopy(s.walls, v)
	case models.Room:
		s.rooms = appendCopy(s.rooms, v)
	case models.Furniture:
		s.furniture = appendCopy(s.furniture, v)
	case models.POI:
		s.pois = appendCopy(s.pois, v)
	default:
		return fmt.Errorf("%w: %T", models.ErrUnknownFeatureType, e)
	}
	s.rev[e.FeatureKind()]++
	return nil
}

// Put replaces the feature with the same kind and id.
func (s *Store) Put(e models.Entity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ok bool
	switch v := e.(type) {
	case models.Wall:
		s.walls, ok = replaceCopy(s.walls, v)
	case models.Room:
		s.rooms, ok = replaceCopy(s.rooms, v)
	case models.Furniture:
		s.furniture, ok = replaceCopy(s.furniture, v)
	case models.POI:
		s.pois, ok = replaceCopy(s.pois, v)
	default:
		return fmt.Errorf("%w: %T", models.ErrUnknownFeatureType, e)
	}
	if !ok {
		return fmt.Errorf("%s %s: %w", e.FeatureKind(), e.FeatureID(), ErrNotFound)
	}
	s.rev[e.FeatureKind()]++
	return nil
}

// SetGeometry replaces one feature's geometry. Furniture keeps its baseline.
func (s *Store) SetGeometry(kind models.Kind, id string, g orb.Geometry) (models.Entity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.find(kind, id)
	if !ok {
		return nil, fmt.Errorf("%s %s: %w", kind, id, ErrNotFound)
	}
	var next models.Entity
	switch v := cur.(type) {
	case models.Wall:
		poly, ok := g.(orb.Polygon)
		if !ok {
			return nil, ErrKind
		}
		v.Polygon = poly
		s.walls, _ = replaceCopy(s.walls, v)
		next = v
	case models.Room:
		poly, ok := g.(orb.Polygon)
		if !ok {
			return nil, ErrKind
		}
		v.Polygon = poly
		s.rooms, _ = replaceCopy(s.rooms, v)
		next = v
	case models.Furniture:
		poly, ok := g.(orb.Polygon)
		if !ok {
			return nil, ErrKind
		}
		v.Polygon = poly
		s.furniture, _ = replaceCopy(s.furniture, v)
		next = v
	case models.POI:
		pt, ok := g.(orb.Point)
		if !ok {
			return nil, ErrKind
		}
		v.Point = pt
		s.pois, _ = replaceCopy(s.pois, v)
		next = v
	}
	s.rev[kind]++
	return next, nil
}

func (s *Store) PatchRoom(id string, p models.RoomPatch) (models.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := indexOf(s.rooms, id)
	if i < 0 {
		return models.Room{}, fmt.Errorf("room %s: %w", id, ErrNotFound)
	}
	r := p.Apply(s.rooms[i])
	s.rooms, _ = replaceCopy(s.rooms, r)
	s.rev[models.KindRoom]++
	return r, nil
}

func (s *Store) PatchWall(id string, p models.WallPatch) (models.Wall, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := indexOf(s.walls, id)
	if i < 0 {
		return models.Wall{}, fmt.Errorf("wall %s: %w", id, ErrNotFound)
	}
	w := p.Apply(s.walls[i])
	s.walls, _ = replaceCopy(s.walls, w)
	s.rev[models.KindWall]++
	return w, nil
}

func (s *Store) PatchFurniture(id string, p models.FurniturePatch) (models.Furniture, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := indexOf(s.furniture, id)
	if i < 0 {
		return models.Furniture{}, fmt.Errorf("furniture %s: %w", id, ErrNotFound)
	}
	f := p.Apply(s.furniture[i])
	s.furniture, _ = replaceCopy(s.furniture, f)
	s.rev[models.KindFurniture]++
	return f, nil
}

func (s *Store) PatchPOI(id string, p models.POIPatch) (models.POI, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := indexOf(s.pois, id)
	if i < 0 {
		return models.POI{}, fmt.Errorf("poi %s: %w", id, ErrNotFound)
	}
	poi := p.Apply(s.pois[i])
	s.pois, _ = replaceCopy(s.pois, poi)
	s.rev[models.KindPOI]++
	return poi, nil
}

// Remove deletes one feature and clears the selection if it pointed there.
func (s *Store) Remove(kind models.Kind, id string) (models.Entity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remove(kind, id)
}

func (s *Store) remove(kind models.Kind, id string) (models.Entity, error) {
	cur, ok := s.find(kind, id)
	if !ok {
		return nil, fmt.Errorf("%s %s: %w", kind, id, ErrNotFound)
	}
	switch kind {
	case models.KindWall:
		s.walls = removeCopy(s.walls, id)
	case models.KindRoom:
		s.rooms = removeCopy(s.rooms, id)
	case models.KindFurniture:
		s.furniture = removeCopy(s.furniture, id)
	case models.KindPOI:
		s.pois = removeCopy(s.pois, id)
	}
	if s.selected != nil && s.selected.Kind == kind && s.selected.ID == id {
		s.selected = nil
	}
	s.rev[kind]++
	return cur, nil
}

// Cascade lists what removing a room takes with it.
type Cascade struct {
	Room      models.Room
	Walls     []models.Wall
	Furniture []models.Furniture
}

// Count is the number of deleted features, room included.
func (c Cascade) Count() int {
	return len(c.Walls) + len(c.Furniture) + 1
}

// RemoveRoom deletes a room. With cascade it also deletes the walls the
// room owns and every furniture item whose centroid lies inside it.
func (s *Store) RemoveRoom(id string, cascade bool) (Cascade, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := indexOf(s.rooms, id)
	if i < 0 {
		return Cascade{}, fmt.Errorf("room %s: %w", id, ErrNotFound)
	}
	out := Cascade{Room: s.rooms[i]}
	if cascade {
		for _, w := range s.walls {
			if w.RoomID == id {
				out.Walls = append(out.Walls, w)
			}
		}
		for _, f := range s.furniture {
			if geo.Contains(out.Room.Polygon, geo.Centroid(f.Polygon)) {
				out.Furniture = append(out.Furniture, f)
			}
		}
		for _, w := range out.Walls {
			s.remove(models.KindWall, w.ID)
		}
		for _, f := range out.Furniture {
			s.remove(models.KindFurniture, f.ID)
		}
	}
	s.remove(models.KindRoom, id)
	return out, nil
}

// ReplaceRoomWalls drops every wall owned by roomID and appends walls in
// one collection replacement. It returns the dropped walls.
func (s *Store) ReplaceRoomWalls(roomID string, walls []models.Wall) []models.Wall {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := make([]models.Wall, 0, len(s.walls)+len(walls))
	var dropped []models.Wall
	for _, w := range s.walls {
		if w.RoomID == roomID {
			dropped = append(dropped, w)
			continue
		}
		next = append(next, w)
	}
	next = append(next, walls...)
	s.walls = next
	s.rev[models.KindWall]++
	return dropped
}

// ============================================================
// Selection
// ============================================================

// Select makes one feature the only selected one. It fails when the
// feature is not in the store.
func (s *Store) Select(kind models.Kind, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.find(kind, id); !ok {
		return fmt.Errorf("%s %s: %w", kind, id, ErrNotFound)
	}
	s.selected = &Selection{Kind: kind, ID: id}
	return nil
}

func (s *Store) ClearSelection() {
	s.mu.Lock()
	s.selected = nil
	s.mu.Unlock()
}

func (s *Store) Selected() (Selection, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.selected == nil {
		return Selection{}, false
	}
	return *s.selected, true
}

// ============================================================
// Render
// ============================================================

// Rendered is what the surface draws: only structurally valid features.
type Rendered struct {
	Walls     []models.Wall
	Rooms     []models.Room
	Furniture []models.Furniture
	POIs      []models.POI
	Dropped   int
}

// Render re-validates every feature on each call. Invalid ones are left
// out and logged but stay in the store.
func (s *Store) Render() Rendered {
	snap := s.Snapshot()
	var out Rendered
	out.Walls = keepValid(s.log, snap.Walls, &out.Dropped)
	out.Rooms = keepValid(s.log, snap.Rooms, &out.Dropped)
	out.Furniture = keepValid(s.log, snap.Furniture, &out.Dropped)
	out.POIs = keepValid(s.log, snap.POIs, &out.Dropped)
	return out
}

func keepValid[T models.Entity](log *slog.Logger, in []T, dropped *int) []T {
	out := make([]T, 0, len(in))
	for _, e := range in {
		if !e.Valid() {
			*dropped++
			log.Warn("invalid geometry dropped from render", "kind", e.FeatureKind(), "id", e.FeatureID())
			continue
		}
		out = append(out, e)
	}
	return out
}

// ============================================================
// Copy-on-write helpers
// ============================================================

func indexOf[T models.Entity](list []T, id string) int {
	for i, e := range list {
		if e.FeatureID() == id {
			return i
		}
	}
	return -1
}

func appendCopy[T any](list []T, v T) []T {
	out := make([]T, len(list), len(list)+1)
	copy(out, list)
	return append(out, v)
}

func replaceCopy[T models.Entity](list []T, v T) ([]T, bool) {
	i := indexOf(list, v.FeatureID())
	if i < 0 {
		return list, false
	}
	out := make([]T, len(list))
	copy(out, list)
	out[i] = v
	return out, true
}

func removeCopy[T models.Entity](list []T, id string) []T {
	out := make([]T, 0, len(list))
	for _, e := range list {
		if e.FeatureID() != id {
			out = append(out, e)
		}
	}
	return out
}

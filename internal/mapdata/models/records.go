package models

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/paulmach/orb"
)

// ============================================================
// Tables
// ============================================================

const (
	TableBuildings = "buildings"
	TableRooms     = "rooms"
	TableFeatures  = "features"
	TablePOI       = "poi"
	TableEvents    = "events"
	TableUsers     = "users"
)

// Record is one table row keyed by column name.
type Record map[string]any

// TableFor maps a feature kind to the table holding it.
func TableFor(kind Kind) string {
	switch kind {
	case KindRoom:
		return TableRooms
	case KindWall, KindFurniture:
		return TableFeatures
	case KindPOI:
		return TablePOI
	}
	return ""
}

// ============================================================
// Encoding
// ============================================================

func (r Room) Record() Record {
	geom, _ := EncodeGeometry(r.Polygon)
	equipment, _ := json.Marshal(nonNil(r.AVEquipment))
	return Record{
		"id":           r.ID,
		"title":        r.Name,
		"room_number":  r.RoomNumber,
		"description":  r.Purpose,
		"seats":        r.Capacity,
		"bookable":     r.Bookable,
		"color":        r.Color,
		"geometry":     geom,
		"wallified":    r.Wallified,
		"av_equipment": string(equipment),
	}
}

func (w Wall) Record() Record {
	geom, _ := EncodeGeometry(w.Polygon)
	rec := Record{
		"id":       w.ID,
		"type":     string(KindWall),
		"geometry": geom,
		"width":    w.Width,
		"height":   w.Height,
	}
	if w.RoomID != "" {
		rec["for"] = w.RoomID
	}
	return rec
}

func (f Furniture) Record() Record {
	geom, _ := EncodeGeometry(f.Polygon)
	rec := Record{
		"id":       f.ID,
		"type":     string(KindFurniture),
		"geometry": geom,
		"name":     f.ItemType,
		"icon":     f.Icon,
		"label":    f.Label,
		"rotation": f.Rotation,
		"scaleX":   f.ScaleX,
		"scaleY":   f.ScaleY,
	}
	if f.Original != nil {
		original, _ := EncodeGeometry(f.Original)
		rec["originalGeometry"] = original
	}
	return rec
}

func (p POI) Record() Record {
	return Record{
		"id":        p.ID,
		"title":     p.Title,
		"desc":      p.Description,
		"lon":       p.Point[0],
		"lat":       p.Point[1],
		"type":      p.Category,
		"image_url": p.ImageURL,
		"address":   p.Address,
	}
}

func (e Event) Record() Record {
	participants, _ := json.Marshal(nonNil(e.Participants))
	return Record{
		"id":           e.ID,
		"name":         e.Name,
		"start_time":   e.StartTime,
		"end_time":     e.EndTime,
		"description":  e.Description,
		"poi_id":       e.POIID,
		"participants": string(participants),
	}
}

// RecordOf returns the row for any entity.
func RecordOf(e Entity) Record {
	switch v := e.(type) {
	case Room:
		return v.Record()
	case Wall:
		return v.Record()
	case Furniture:
		return v.Record()
	case POI:
		return v.Record()
	}
	return nil
}

// ============================================================
// Decoding
// ============================================================

func RoomFromRecord(rec Record) (Room, error) {
	r := Room{
		ID:          rec.Str("id"),
		Name:        rec.Str("title"),
		RoomNumber:  rec.Str("room_number"),
		Purpose:     rec.Str("description"),
		Capacity:    rec.Int("seats"),
		Bookable:    rec.Bool("bookable"),
		Color:       rec.Str("color"),
		Wallified:   rec.Bool("wallified"),
		AVEquipment: stringList(rec["av_equipment"]),
	}
	if r.ID == "" {
		return r, ErrMissingID
	}
	if r.Color == "" {
		r.Color = DefaultRoomColumnColor
	}
	poly, err := rec.Polygon("geometry")
	if err != nil {
		return r, fmt.Errorf("room %s: %w", r.ID, err)
	}
	r.Polygon = poly
	return r, validate(r)
}

// FeatureFromRecord decodes a row of the polymorphic features table.
func FeatureFromRecord(rec Record) (Entity, error) {
	id := rec.Str("id")
	if id == "" {
		return nil, ErrMissingID
	}
	poly, polyErr := rec.Polygon("geometry")

	switch Kind(rec.Str("type")) {
	case KindWall:
		if polyErr != nil {
			return nil, fmt.Errorf("wall %s: %w", id, polyErr)
		}
		w := Wall{
			ID:      id,
			Polygon: poly,
			Width:   rec.Float("width"),
			Height:  rec.Float("height"),
			RoomID:  rec.Str("for"),
		}
		return w, validate(w)

	case KindFurniture:
		if polyErr != nil {
			return nil, fmt.Errorf("furniture %s: %w", id, polyErr)
		}
		f := Furniture{
			ID:       id,
			Polygon:  poly,
			ItemType: rec.Str("name"),
			Icon:     rec.Str("icon"),
			Label:    rec.Str("label"),
			Rotation: rec.Float("rotation"),
			ScaleX:   rec.FloatOr("scaleX", 1),
			ScaleY:   rec.FloatOr("scaleY", 1),
		}
		if original, err := rec.Polygon("originalGeometry"); err == nil {
			f.Original = original
		} else {
			f.Original = poly.Clone()
			f.Rotation, f.ScaleX, f.ScaleY = 0, 1, 1
		}
		return f, validate(f)
	}
	return nil, fmt.Errorf("feature %s: %w: %q", id, ErrUnknownFeatureType, rec.Str("type"))
}

func POIFromRecord(rec Record) (POI, error) {
	p := POI{
		ID:          rec.Str("id"),
		Point:       orb.Point{rec.Float("lon"), rec.Float("lat")},
		Title:       rec.Str("title"),
		Description: rec.Str("desc"),
		Category:    rec.Str("type"),
		ImageURL:    rec.Str("image_url"),
		Address:     rec.Str("address"),
	}
	if p.ID == "" {
		return p, ErrMissingID
	}
	if rec["lon"] == nil || rec["lat"] == nil {
		return p, fmt.Errorf("poi %s: %w", p.ID, ErrInvalidGeometry)
	}
	return p, validate(p)
}

func EventFromRecord(rec Record) (Event, error) {
	e := Event{
		ID:           rec.Str("id"),
		Name:         rec.Str("name"),
		StartTime:    rec.Str("start_time"),
		EndTime:      rec.Str("end_time"),
		Description:  rec.Str("description"),
		POIID:        rec.Str("poi_id"),
		Participants: stringList(rec["participants"]),
	}
	if e.ID == "" {
		return e, ErrMissingID
	}
	return e, nil
}

// ============================================================
// Accessors
// ============================================================

func (r Record) Str(key string) string {
	switch v := r[key].(type) {
	case string:
		return v
	case []byte:
		return string(v)
	case nil:
		return ""
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(v, 10)
	default:
		return fmt.Sprint(v)
	}
}

func (r Record) Float(key string) float64 {
	return r.FloatOr(key, 0)
}

func (r Record) FloatOr(key string, def float64) float64 {
	switch v := r[key].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case json.Number:
		if f, err := v.Float64(); err == nil {
			return f
		}
	case string:
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	case []byte:
		if f, err := strconv.ParseFloat(string(v), 64); err == nil {
			return f
		}
	}
	return def
}

func (r Record) Int(key string) int {
	return int(r.Float(key))
}

// Bool accepts native booleans and SQLite's integer encoding.
func (r Record) Bool(key string) bool {
	switch v := r[key].(type) {
	case bool:
		return v
	case int64:
		return v != 0
	case int:
		return v != 0
	case float64:
		return v != 0
	case string:
		b, _ := strconv.ParseBool(v)
		return b
	}
	return false
}

// Polygon decodes a geometry column stored as GeoJSON text or a decoded object.
func (r Record) Polygon(key string) (orb.Polygon, error) {
	var raw []byte
	switch v := r[key].(type) {
	case nil:
		return nil, ErrInvalidGeometry
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidGeometry, err)
		}
		raw = b
	}
	return DecodePolygon(raw)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

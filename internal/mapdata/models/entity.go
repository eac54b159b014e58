package models

import (
	"errors"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"indoormap/internal/geo"
)

// ============================================================
// Feature kinds
// ============================================================

type Kind string

const (
	KindWall      Kind = "wall"
	KindRoom      Kind = "room"
	KindFurniture Kind = "furniture"
	KindPOI       Kind = "poi"
)

// Kinds in hit-test priority order.
var Kinds = []Kind{KindFurniture, KindRoom, KindWall, KindPOI}

func ParseKind(s string) (Kind, bool) {
	switch Kind(s) {
	case KindWall, KindRoom, KindFurniture, KindPOI:
		return Kind(s), true
	}
	return "", false
}

var (
	ErrInvalidGeometry    = errors.New("invalid geometry")
	ErrUnknownFeatureType = errors.New("unknown feature type")
	ErrMissingID          = errors.New("missing id")
)

// Entity is the shared base of every editor feature.
type Entity interface {
	FeatureID() string
	FeatureKind() Kind
	Geometry() orb.Geometry
	Valid() bool
	GeoJSON() *geojson.Feature
}

// NewID issues a client-side identifier.
func NewID() string {
	return uuid.NewString()
}

// ============================================================
// Entities
// ============================================================

type Wall struct {
	ID      string
	Polygon orb.Polygon
	Width   float64
	Height  float64
	RoomID  string // owning room when created by wallify
}

func (w Wall) FeatureID() string      { return w.ID }
func (w Wall) FeatureKind() Kind      { return KindWall }
func (w Wall) Geometry() orb.Geometry { return w.Polygon }
func (w Wall) Valid() bool            { return w.ID != "" && geo.ValidPolygon(w.Polygon) }

func (w Wall) GeoJSON() *geojson.Feature {
	f := geojson.NewFeature(w.Polygon)
	f.ID = w.ID
	f.Properties["id"] = w.ID
	f.Properties["width"] = w.Width
	f.Properties["height"] = w.Height
	if w.RoomID != "" {
		f.Properties["associatedRoomId"] = w.RoomID
	}
	return f
}

type Room struct {
	ID          string
	Polygon     orb.Polygon
	Name        string
	RoomNumber  string
	Color       string
	Bookable    bool
	Capacity    int
	AVEquipment []string
	Purpose     string
	Wallified   bool
}

func (r Room) FeatureID() string      { return r.ID }
func (r Room) FeatureKind() Kind      { return KindRoom }
func (r Room) Geometry() orb.Geometry { return r.Polygon }
func (r Room) Valid() bool            { return r.ID != "" && geo.ValidPolygon(r.Polygon) }

func (r Room) GeoJSON() *geojson.Feature {
	f := geojson.NewFeature(r.Polygon)
	f.ID = r.ID
	f.Properties["id"] = r.ID
	f.Properties["name"] = r.Name
	f.Properties["roomNumber"] = r.RoomNumber
	f.Properties["color"] = r.Color
	f.Properties["bookable"] = r.Bookable
	f.Properties["capacity"] = r.Capacity
	f.Properties["avEquipment"] = append([]string{}, r.AVEquipment...)
	f.Properties["purpose"] = r.Purpose
	f.Properties["wallified"] = r.Wallified
	return f
}

type Furniture struct {
	ID       string
	Polygon  orb.Polygon
	ItemType string
	Icon     string
	Rotation float64 // degrees clockwise
	ScaleX   float64
	ScaleY   float64
	Label    string
	Original orb.Polygon // footprint at rotation 0, scale 1
}

func (f Furniture) FeatureID() string      { return f.ID }
func (f Furniture) FeatureKind() Kind      { return KindFurniture }
func (f Furniture) Geometry() orb.Geometry { return f.Polygon }

func (f Furniture) Valid() bool {
	return f.ID != "" && geo.ValidPolygon(f.Polygon) && geo.ValidPolygon(f.Original)
}

func (f Furniture) GeoJSON() *geojson.Feature {
	feat := geojson.NewFeature(f.Polygon)
	feat.ID = f.ID
	feat.Properties["id"] = f.ID
	feat.Properties["itemType"] = f.ItemType
	feat.Properties["icon"] = f.Icon
	feat.Properties["rotation"] = f.Rotation
	feat.Properties["scaleX"] = f.ScaleX
	feat.Properties["scaleY"] = f.ScaleY
	feat.Properties["label"] = f.Label
	if f.Original != nil {
		feat.Properties["originalGeometry"] = geojson.NewGeometry(f.Original)
	}
	return feat
}

// Retransform recomputes the footprint from the baseline.
func (f Furniture) Retransform() Furniture {
	f.Polygon = geo.Transform(f.Original, f.Rotation, f.ScaleX, f.ScaleY)
	return f
}

type POI struct {
	ID          string
	Point       orb.Point
	Title       string
	Category    string
	Description string
	ImageURL    string
	Address     string
}

// CategoryEvent marks a POI that carries a linked event.
const CategoryEvent = "event"

func (p POI) FeatureID() string      { return p.ID }
func (p POI) FeatureKind() Kind      { return KindPOI }
func (p POI) Geometry() orb.Geometry { return p.Point }
func (p POI) Valid() bool            { return p.ID != "" && geo.ValidPoint(p.Point) }

func (p POI) GeoJSON() *geojson.Feature {
	f := geojson.NewFeature(p.Point)
	f.ID = p.ID
	f.Properties["id"] = p.ID
	f.Properties["title"] = p.Title
	f.Properties["category"] = p.Category
	f.Properties["description"] = p.Description
	f.Properties["imageUrl"] = p.ImageURL
	f.Properties["address"] = p.Address
	return f
}

// Event is linked 1:1 to a POI whose category is "event".
type Event struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	StartTime    string   `json:"start_time"`
	EndTime      string   `json:"end_time"`
	Description  string   `json:"description"`
	POIID        string   `json:"poi_id"`
	Participants []string `json:"participants"`
}

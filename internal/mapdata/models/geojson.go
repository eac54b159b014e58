package models

import (
	"encoding/json"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// FromGeoJSON rebuilds an entity of the given kind from a rendered feature.
func FromGeoJSON(kind Kind, f *geojson.Feature) (Entity, error) {
	if f == nil {
		return nil, ErrInvalidGeometry
	}
	id := featureID(f)
	if id == "" {
		return nil, ErrMissingID
	}
	p := f.Properties

	switch kind {
	case KindWall:
		poly, ok := f.Geometry.(orb.Polygon)
		if !ok {
			return nil, fmt.Errorf("wall %s: %w", id, ErrInvalidGeometry)
		}
		w := Wall{
			ID:      id,
			Polygon: poly,
			Width:   p.MustFloat64("width", 0),
			Height:  p.MustFloat64("height", 0),
			RoomID:  p.MustString("associatedRoomId", ""),
		}
		return w, validate(w)

	case KindRoom:
		poly, ok := f.Geometry.(orb.Polygon)
		if !ok {
			return nil, fmt.Errorf("room %s: %w", id, ErrInvalidGeometry)
		}
		r := Room{
			ID:          id,
			Polygon:     poly,
			Name:        p.MustString("name", ""),
			RoomNumber:  p.MustString("roomNumber", ""),
			Color:       p.MustString("color", DefaultRoomColumnColor),
			Bookable:    p.MustBool("bookable", false),
			Capacity:    p.MustInt("capacity", 0),
			AVEquipment: stringList(p["avEquipment"]),
			Purpose:     p.MustString("purpose", ""),
			Wallified:   p.MustBool("wallified", false),
		}
		return r, validate(r)

	case KindFurniture:
		poly, ok := f.Geometry.(orb.Polygon)
		if !ok {
			return nil, fmt.Errorf("furniture %s: %w", id, ErrInvalidGeometry)
		}
		fu := Furniture{
			ID:       id,
			Polygon:  poly,
			ItemType: p.MustString("itemType", ""),
			Icon:     p.MustString("icon", ""),
			Rotation: p.MustFloat64("rotation", 0),
			ScaleX:   p.MustFloat64("scaleX", 1),
			ScaleY:   p.MustFloat64("scaleY", 1),
			Label:    p.MustString("label", ""),
		}
		fu.Original = polygonProperty(p["originalGeometry"])
		if fu.Original == nil {
			// without a baseline the current footprint becomes one
			fu.Original = poly.Clone()
			fu.Rotation, fu.ScaleX, fu.ScaleY = 0, 1, 1
		}
		return fu, validate(fu)

	case KindPOI:
		pt, ok := f.Geometry.(orb.Point)
		if !ok {
			return nil, fmt.Errorf("poi %s: %w", id, ErrInvalidGeometry)
		}
		poi := POI{
			ID:          id,
			Point:       pt,
			Title:       p.MustString("title", ""),
			Category:    p.MustString("category", ""),
			Description: p.MustString("description", ""),
			ImageURL:    p.MustString("imageUrl", ""),
			Address:     p.MustString("address", ""),
		}
		return poi, validate(poi)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownFeatureType, kind)
}

func validate(e Entity) error {
	if !e.Valid() {
		return fmt.Errorf("%s %s: %w", e.FeatureKind(), e.FeatureID(), ErrInvalidGeometry)
	}
	return nil
}

func featureID(f *geojson.Feature) string {
	switch v := f.ID.(type) {
	case string:
		if v != "" {
			return v
		}
	case float64:
		return fmt.Sprintf("%v", v)
	}
	if s, ok := f.Properties["id"].(string); ok {
		return s
	}
	return ""
}

// polygonProperty accepts a *geojson.Geometry, a decoded JSON object or a JSON string.
func polygonProperty(v any) orb.Polygon {
	var raw []byte
	switch g := v.(type) {
	case nil:
		return nil
	case *geojson.Geometry:
		if poly, ok := g.Coordinates.(orb.Polygon); ok {
			return poly
		}
		return nil
	case string:
		raw = []byte(g)
	default:
		b, err := json.Marshal(g)
		if err != nil {
			return nil
		}
		raw = b
	}
	poly, err := DecodePolygon(raw)
	if err != nil {
		return nil
	}
	return poly
}

func stringList(v any) []string {
	switch list := v.(type) {
	case []string:
		return append([]string{}, list...)
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case string:
		var out []string
		if json.Unmarshal([]byte(list), &out) == nil {
			return out
		}
	}
	return nil
}

// ============================================================
// Geometry codec
// ============================================================

// EncodeGeometry renders g as GeoJSON geometry text.
func EncodeGeometry(g orb.Geometry) (string, error) {
	data, err := geojson.NewGeometry(g).MarshalJSON()
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// DecodeGeometry parses GeoJSON geometry text.
func DecodeGeometry(data []byte) (orb.Geometry, error) {
	g, err := geojson.UnmarshalGeometry(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidGeometry, err)
	}
	if g.Coordinates == nil {
		return nil, ErrInvalidGeometry
	}
	return g.Coordinates, nil
}

func DecodePolygon(data []byte) (orb.Polygon, error) {
	g, err := DecodeGeometry(data)
	if err != nil {
		return nil, err
	}
	poly, ok := g.(orb.Polygon)
	if !ok {
		return nil, fmt.Errorf("%w: want Polygon, got %s", ErrInvalidGeometry, g.GeoJSONType())
	}
	return poly, nil
}

package models

import (
	"encoding/json"

	"github.com/paulmach/orb"
)

// Patches carry only the fields a user changed. Columns yields the
// matching row keys so remote updates never resend untouched data.

type RoomPatch struct {
	Name        *string      `json:"name,omitempty"`
	RoomNumber  *string      `json:"roomNumber,omitempty"`
	Color       *string      `json:"color,omitempty"`
	Bookable    *bool        `json:"bookable,omitempty"`
	Capacity    *int         `json:"capacity,omitempty"`
	AVEquipment *[]string    `json:"avEquipment,omitempty"`
	Purpose     *string      `json:"purpose,omitempty"`
	Wallified   *bool        `json:"wallified,omitempty"`
	Polygon     *orb.Polygon `json:"-"`
}

func (p RoomPatch) Apply(r Room) Room {
	if p.Name != nil {
		r.Name = *p.Name
	}
	if p.RoomNumber != nil {
		r.RoomNumber = *p.RoomNumber
	}
	if p.Color != nil {
		r.Color = *p.Color
	}
	if p.Bookable != nil {
		r.Bookable = *p.Bookable
	}
	if p.Capacity != nil {
		r.Capacity = *p.Capacity
	}
	if p.AVEquipment != nil {
		r.AVEquipment = append([]string{}, (*p.AVEquipment)...)
	}
	if p.Purpose != nil {
		r.Purpose = *p.Purpose
	}
	if p.Wallified != nil {
		r.Wallified = *p.Wallified
	}
	if p.Polygon != nil {
		r.Polygon = *p.Polygon
	}
	return r
}

func (p RoomPatch) Columns() Record {
	rec := Record{}
	if p.Name != nil {
		rec["title"] = *p.Name
	}
	if p.RoomNumber != nil {
		rec["room_number"] = *p.RoomNumber
	}
	if p.Color != nil {
		rec["color"] = *p.Color
	}
	if p.Bookable != nil {
		rec["bookable"] = *p.Bookable
	}
	if p.Capacity != nil {
		rec["seats"] = *p.Capacity
	}
	if p.AVEquipment != nil {
		data, _ := json.Marshal(nonNil(*p.AVEquipment))
		rec["av_equipment"] = string(data)
	}
	if p.Purpose != nil {
		rec["description"] = *p.Purpose
	}
	if p.Wallified != nil {
		rec["wallified"] = *p.Wallified
	}
	if p.Polygon != nil {
		rec["geometry"], _ = EncodeGeometry(*p.Polygon)
	}
	return rec
}

// Merge layers q over p, later fields winning.
func (p RoomPatch) Merge(q RoomPatch) RoomPatch {
	if q.Name != nil {
		p.Name = q.Name
	}
	if q.RoomNumber != nil {
		p.RoomNumber = q.RoomNumber
	}
	if q.Color != nil {
		p.Color = q.Color
	}
	if q.Bookable != nil {
		p.Bookable = q.Bookable
	}
	if q.Capacity != nil {
		p.Capacity = q.Capacity
	}
	if q.AVEquipment != nil {
		p.AVEquipment = q.AVEquipment
	}
	if q.Purpose != nil {
		p.Purpose = q.Purpose
	}
	if q.Wallified != nil {
		p.Wallified = q.Wallified
	}
	if q.Polygon != nil {
		p.Polygon = q.Polygon
	}
	return p
}

type WallPatch struct {
	Width   *float64     `json:"width,omitempty"`
	Height  *float64     `json:"height,omitempty"`
	Polygon *orb.Polygon `json:"-"`
}

func (p WallPatch) Apply(w Wall) Wall {
	if p.Width != nil {
		w.Width = *p.Width
	}
	if p.Height != nil {
		w.Height = *p.Height
	}
	if p.Polygon != nil {
		w.Polygon = *p.Polygon
	}
	return w
}

func (p WallPatch) Columns() Record {
	rec := Record{}
	if p.Width != nil {
		rec["width"] = *p.Width
	}
	if p.Height != nil {
		rec["height"] = *p.Height
	}
	if p.Polygon != nil {
		rec["geometry"], _ = EncodeGeometry(*p.Polygon)
	}
	return rec
}

// FurniturePatch changes the transform or labels. The footprint is
// always recomputed from the baseline, so Columns includes geometry
// whenever a transform field is set.
type FurniturePatch struct {
	Label    *string      `json:"label,omitempty"`
	Rotation *float64     `json:"rotation,omitempty"`
	ScaleX   *float64     `json:"scaleX,omitempty"`
	ScaleY   *float64     `json:"scaleY,omitempty"`
	Original *orb.Polygon `json:"-"`
}

func (p FurniturePatch) transforms() bool {
	return p.Rotation != nil || p.ScaleX != nil || p.ScaleY != nil || p.Original != nil
}

func (p FurniturePatch) Apply(f Furniture) Furniture {
	if p.Label != nil {
		f.Label = *p.Label
	}
	if p.Rotation != nil {
		f.Rotation = *p.Rotation
	}
	if p.ScaleX != nil {
		f.ScaleX = *p.ScaleX
	}
	if p.ScaleY != nil {
		f.ScaleY = *p.ScaleY
	}
	if p.Original != nil {
		f.Original = *p.Original
	}
	if p.transforms() {
		f = f.Retransform()
	}
	return f
}

// Columns needs the patched furniture to encode the recomputed footprint.
func (p FurniturePatch) Columns(applied Furniture) Record {
	rec := Record{}
	if p.Label != nil {
		rec["label"] = *p.Label
	}
	if p.Rotation != nil {
		rec["rotation"] = *p.Rotation
	}
	if p.ScaleX != nil {
		rec["scaleX"] = *p.ScaleX
	}
	if p.ScaleY != nil {
		rec["scaleY"] = *p.ScaleY
	}
	if p.Original != nil {
		rec["originalGeometry"], _ = EncodeGeometry(*p.Original)
	}
	if p.transforms() {
		rec["geometry"], _ = EncodeGeometry(applied.Polygon)
	}
	return rec
}

type POIPatch struct {
	Title       *string    `json:"title,omitempty"`
	Category    *string    `json:"category,omitempty"`
	Description *string    `json:"description,omitempty"`
	ImageURL    *string    `json:"imageUrl,omitempty"`
	Address     *string    `json:"address,omitempty"`
	Point       *orb.Point `json:"-"`
}

func (p POIPatch) Apply(poi POI) POI {
	if p.Title != nil {
		poi.Title = *p.Title
	}
	if p.Category != nil {
		poi.Category = *p.Category
	}
	if p.Description != nil {
		poi.Description = *p.Description
	}
	if p.ImageURL != nil {
		poi.ImageURL = *p.ImageURL
	}
	if p.Address != nil {
		poi.Address = *p.Address
	}
	if p.Point != nil {
		poi.Point = *p.Point
	}
	return poi
}

func (p POIPatch) Columns() Record {
	rec := Record{}
	if p.Title != nil {
		rec["title"] = *p.Title
	}
	if p.Category != nil {
		rec["type"] = *p.Category
	}
	if p.Description != nil {
		rec["desc"] = *p.Description
	}
	if p.ImageURL != nil {
		rec["image_url"] = *p.ImageURL
	}
	if p.Address != nil {
		rec["address"] = *p.Address
	}
	if p.Point != nil {
		rec["lon"] = p.Point[0]
		rec["lat"] = p.Point[1]
	}
	return rec
}

func (p POIPatch) Merge(q POIPatch) POIPatch {
	if q.Title != nil {
		p.Title = q.Title
	}
	if q.Category != nil {
		p.Category = q.Category
	}
	if q.Description != nil {
		p.Description = q.Description
	}
	if q.ImageURL != nil {
		p.ImageURL = q.ImageURL
	}
	if q.Address != nil {
		p.Address = q.Address
	}
	if q.Point != nil {
		p.Point = q.Point
	}
	return p
}

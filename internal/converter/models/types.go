package models

import (
	"errors"

	"github.com/paulmach/orb"
)

var (
	ErrNoGeoref       = errors.New("georeference requires an origin and a positive meters-per-unit")
	ErrUnsupportedCmd = errors.New("unsupported path command")
)

// ============================================================
// SVG Elements
// ============================================================

type ElementKind string

const (
	ElementWall      ElementKind = "wall"
	ElementRoom      ElementKind = "room"
	ElementFurniture ElementKind = "furniture"
	ElementDoor      ElementKind = "door"
	ElementWindow    ElementKind = "window"
)

// Element is one classified SVG shape in drawing units, y pointing down.
type Element struct {
	ID     string
	Kind   ElementKind
	Points []orb.Point
	Closed bool
}

// ============================================================
// Georeference
// ============================================================

// Georef places the drawing's (0,0) at Origin (lon/lat). One drawing unit
// is MetersPerUnit meters on the ground.
type Georef struct {
	Origin        orb.Point `json:"origin"`
	MetersPerUnit float64   `json:"metersPerUnit"`
}

func (g Georef) Valid() bool {
	return g.MetersPerUnit > 0 && g.Origin != (orb.Point{})
}

// ============================================================
// Conversion report
// ============================================================

type Skipped struct {
	ID     string `json:"id"`
	Reason string `json:"reason"`
}

type Report struct {
	Walls     int       `json:"walls"`
	Rooms     int       `json:"rooms"`
	Furniture int       `json:"furniture"`
	Skipped   []Skipped `json:"skipped"`
}

// Skip records an element that was not converted.
func (r *Report) Skip(id, reason string) {
	r.Skipped = append(r.Skipped, Skipped{ID: id, Reason: reason})
}

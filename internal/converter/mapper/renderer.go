package mapper

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/paulmach/orb"

	"indoormap/internal/converter/models"
	"indoormap/internal/geo"
	plan "indoormap/internal/mapdata/models"
)

// derivedUnit is meters per drawing unit when the caller gives no georeference.
const derivedUnit = 0.01

var unsafeID = regexp.MustCompile(`[^A-Za-z0-9]+`)

// ============================================================
// Renderer
// ============================================================

type Renderer struct {
	ref models.Georef
}

// NewRenderer renders against ref. A zero ref is derived per document: the
// top-left corner of the plan becomes (0,0) and one unit is a centimeter.
func NewRenderer(ref models.Georef) *Renderer {
	return &Renderer{ref: ref}
}

type shape struct {
	id     string
	label  string
	ring   orb.Ring
	stroke string
	fill   string
}

// Render собирает SVG из документа экспорта. Ids follow the import
// prefixes, so the output converts back into the same features.
func (r *Renderer) Render(doc *plan.ExportDocument) (string, error) {
	shapes, bound, err := r.layout(doc)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	fmt.Fprintf(&b, `<svg xmlns="http://www.w3.org/2000/svg" width="%s" height="%s" viewBox="%s %s %s %s">`+"\n",
		formatFloat(bound.Right()-bound.Left()), formatFloat(bound.Top()-bound.Bottom()),
		formatFloat(bound.Left()), formatFloat(bound.Bottom()),
		formatFloat(bound.Right()-bound.Left()), formatFloat(bound.Top()-bound.Bottom()))
	for _, s := range shapes {
		fmt.Fprintf(&b, `  <path id="%s" d="%s" fill="%s" stroke="%s" />`+"\n", s.id, pathData(s.ring), s.fill, s.stroke)
	}
	b.WriteString(`</svg>`)
	return b.String(), nil
}

// layout projects every feature into drawing units and returns the shapes
// in paint order with their common bound.
func (r *Renderer) layout(doc *plan.ExportDocument) ([]shape, orb.Bound, error) {
	if doc == nil {
		return nil, orb.Bound{}, fmt.Errorf("document is nil")
	}
	walls, rooms, furniture, _ := doc.Entities()

	var shapes []shape
	for i, w := range walls {
		shapes = append(shapes, shape{id: fmt.Sprintf("Wall_%d", i+1), ring: w.Polygon[0], stroke: "#000", fill: "#555"})
	}
	names := map[string]int{}
	for i, rm := range rooms {
		shapes = append(shapes, shape{id: roomID(rm.Name, i, names), label: rm.Name, ring: rm.Polygon[0], stroke: "#888", fill: "none"})
	}
	for i, f := range furniture {
		shapes = append(shapes, shape{id: fmt.Sprintf("Furniture_%s_%d", cleanID(f.ItemType, "item"), i+1), ring: f.Polygon[0], stroke: "#2ca02c", fill: "none"})
	}

	ref := r.ref
	if !ref.Valid() {
		ref = deriveGeoref(shapes)
	}

	var bound orb.Bound
	for i := range shapes {
		shapes[i].ring = unproject(ref, shapes[i].ring)
		if i == 0 {
			bound = shapes[i].ring.Bound()
		} else {
			bound = bound.Union(shapes[i].ring.Bound())
		}
	}
	if len(shapes) == 0 {
		bound = orb.Bound{Max: orb.Point{1000, 1000}}
	}
	return shapes, bound, nil
}

// ============================================================
// Geometry helpers
// ============================================================

// deriveGeoref puts the north-west corner of everything at the origin.
func deriveGeoref(shapes []shape) models.Georef {
	if len(shapes) == 0 {
		return models.Georef{Origin: orb.Point{0, 0}, MetersPerUnit: derivedUnit}
	}
	bound := shapes[0].ring.Bound()
	for _, s := range shapes[1:] {
		bound = bound.Union(s.ring.Bound())
	}
	return models.Georef{Origin: orb.Point{bound.Left(), bound.Top()}, MetersPerUnit: derivedUnit}
}

// unproject maps lon/lat back to drawing units (y down).
func unproject(ref models.Georef, ring orb.Ring) orb.Ring {
	out := make(orb.Ring, len(ring))
	for i, p := range ring {
		east, north := geo.Local(ref.Origin, p)
		out[i] = orb.Point{round(east / ref.MetersPerUnit), round(-north / ref.MetersPerUnit)}
	}
	return out
}

func pathData(ring orb.Ring) string {
	pts := geo.RingVertices(ring)
	if len(pts) == 0 {
		return ""
	}
	var d strings.Builder
	d.WriteString("M ")
	d.WriteString(formatPoint(pts[0]))
	for _, p := range pts[1:] {
		d.WriteString(" L ")
		d.WriteString(formatPoint(p))
	}
	d.WriteString(" Z")
	return d.String()
}

// ============================================================
// Formatting helpers
// ============================================================

func roomID(name string, i int, seen map[string]int) string {
	id := "Room_" + cleanID(name, strconv.Itoa(i+1))
	seen[id]++
	if n := seen[id]; n > 1 {
		id = fmt.Sprintf("%s_%d", id, n)
	}
	return id
}

func cleanID(s, fallback string) string {
	s = strings.Trim(unsafeID.ReplaceAllString(s, "_"), "_")
	if s == "" {
		return fallback
	}
	return s
}

func round(v float64) float64 {
	return math.Round(v*100) / 100
}

func formatFloat(val float64) string {
	return strconv.FormatFloat(val, 'f', -1, 64)
}

func formatPoint(p orb.Point) string {
	return formatFloat(p[0]) + " " + formatFloat(p[1])
}

// Package geo holds the geometry helpers used by the floor-plan editor.
//
// Coordinates are lon/lat (orb.Point{lon, lat}). Anything measured in meters
// is computed in a local equirectangular frame centred on a reference point,
// which is accurate for building-sized shapes.
package geo

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// EarthRadius matches orb/geo.
const EarthRadius = 6378137.0

const metersPerDegree = math.Pi * EarthRadius / 180

// frame is a local tangent plane around origin, x east and y north in meters.
type frame struct {
	origin orb.Point
	kx     float64
}

func newFrame(origin orb.Point) frame {
	kx := metersPerDegree * math.Cos(origin[1]*math.Pi/180)
	if math.Abs(kx) < 1e-9 {
		kx = 1e-9
	}
	return frame{origin: origin, kx: kx}
}

func (f frame) toLocal(p orb.Point) vec {
	return vec{(p[0] - f.origin[0]) * f.kx, (p[1] - f.origin[1]) * metersPerDegree}
}

func (f frame) fromLocal(v vec) orb.Point {
	return orb.Point{f.origin[0] + v.x/f.kx, f.origin[1] + v.y/metersPerDegree}
}

type vec struct{ x, y float64 }

func (a vec) add(b vec) vec     { return vec{a.x + b.x, a.y + b.y} }
func (a vec) sub(b vec) vec     { return vec{a.x - b.x, a.y - b.y} }
func (a vec) mul(k float64) vec { return vec{a.x * k, a.y * k} }
func (a vec) dot(b vec) float64 { return a.x*b.x + a.y*b.y }
func (a vec) length() float64   { return math.Hypot(a.x, a.y) }

// DistanceMeters is the distance between two points.
func DistanceMeters(a, b orb.Point) float64 {
	return newFrame(a).toLocal(b).length()
}

// DistanceToLineMeters is the shortest distance from p to the polyline.
func DistanceToLineMeters(p orb.Point, line orb.LineString) float64 {
	if len(line) == 0 {
		return math.Inf(1)
	}
	f := newFrame(p)
	if len(line) == 1 {
		return f.toLocal(line[0]).length()
	}
	best := math.Inf(1)
	for i := 0; i+1 < len(line); i++ {
		a, b := f.toLocal(line[i]), f.toLocal(line[i+1])
		if d := segmentDistance(vec{}, a, b); d < best {
			best = d
		}
	}
	return best
}

func segmentDistance(p, a, b vec) float64 {
	ab := b.sub(a)
	l2 := ab.dot(ab)
	if l2 == 0 {
		return p.sub(a).length()
	}
	t := math.Max(0, math.Min(1, p.sub(a).dot(ab)/l2))
	return p.sub(a.add(ab.mul(t))).length()
}

// Bearing returns degrees clockwise from north, in [0, 360).
func Bearing(from, to orb.Point) float64 {
	d := newFrame(from).toLocal(to)
	deg := math.Atan2(d.x, d.y) * 180 / math.Pi
	if deg < 0 {
		deg += 360
	}
	return deg
}

// Offset moves p by east/north meters.
func Offset(p orb.Point, east, north float64) orb.Point {
	return newFrame(p).fromLocal(vec{east, north})
}

// Local is the inverse of Offset: p in meters east/north of origin.
func Local(origin, p orb.Point) (east, north float64) {
	v := newFrame(origin).toLocal(p)
	return v.x, v.y
}

// Centroid is the area centroid of polygons and the point itself for points.
func Centroid(g orb.Geometry) orb.Point {
	switch v := g.(type) {
	case orb.Point:
		return v
	case nil:
		return orb.Point{}
	}
	c, area := planar.CentroidArea(g)
	if area == 0 || math.IsNaN(c[0]) || math.IsNaN(c[1]) {
		return g.Bound().Center()
	}
	return c
}

// Contains reports whether pt lies inside poly (holes excluded).
func Contains(poly orb.Polygon, pt orb.Point) bool {
	return planar.PolygonContains(poly, pt)
}

// RectangleAt builds an axis-aligned width x depth meter rectangle centred on c.
func RectangleAt(c orb.Point, width, depth float64) orb.Polygon {
	f := newFrame(c)
	hw, hd := width/2, depth/2
	ring := orb.Ring{
		f.fromLocal(vec{-hw, -hd}),
		f.fromLocal(vec{hw, -hd}),
		f.fromLocal(vec{hw, hd}),
		f.fromLocal(vec{-hw, hd}),
	}
	ring = append(ring, ring[0])
	return orb.Polygon{ring}
}

// CloseRing returns ring with its last point equal to its first.
func CloseRing(ring orb.Ring) orb.Ring {
	if len(ring) == 0 || ring.Closed() {
		return ring
	}
	out := make(orb.Ring, len(ring), len(ring)+1)
	copy(out, ring)
	return append(out, ring[0])
}

// RingVertices returns the distinct vertices of a closed ring.
func RingVertices(ring orb.Ring) []orb.Point {
	if len(ring) > 1 && ring.Closed() {
		return append([]orb.Point(nil), ring[:len(ring)-1]...)
	}
	return append([]orb.Point(nil), ring...)
}

package geo

import (
	"math"

	"github.com/paulmach/orb"
)

// Rotate turns poly clockwise by degrees around pivot.
func Rotate(poly orb.Polygon, pivot orb.Point, degrees float64) orb.Polygon {
	rad := degrees * math.Pi / 180
	sin, cos := math.Sin(rad), math.Cos(rad)
	f := newFrame(pivot)
	return mapPolygon(poly, func(p orb.Point) orb.Point {
		v := f.toLocal(p)
		return f.fromLocal(vec{v.x*cos + v.y*sin, -v.x*sin + v.y*cos})
	})
}

// Scale stretches poly around pivot along the east (sx) and north (sy) axes.
func Scale(poly orb.Polygon, pivot orb.Point, sx, sy float64) orb.Polygon {
	f := newFrame(pivot)
	return mapPolygon(poly, func(p orb.Point) orb.Point {
		v := f.toLocal(p)
		return f.fromLocal(vec{v.x * sx, v.y * sy})
	})
}

// Translate shifts a polygon or point by a lon/lat delta.
func Translate(g orb.Geometry, dLon, dLat float64) orb.Geometry {
	move := func(p orb.Point) orb.Point { return orb.Point{p[0] + dLon, p[1] + dLat} }
	switch v := g.(type) {
	case orb.Point:
		return move(v)
	case orb.Polygon:
		return mapPolygon(v, move)
	case orb.LineString:
		out := make(orb.LineString, len(v))
		for i, p := range v {
			out[i] = move(p)
		}
		return out
	}
	return g
}

// Transform derives a furniture footprint from its baseline: scale first,
// then rotate, both around the baseline centroid. The identity transform
// returns an exact copy of the baseline.
func Transform(original orb.Polygon, rotation, sx, sy float64) orb.Polygon {
	if rotation == 0 && sx == 1 && sy == 1 {
		return ClonePolygon(original)
	}
	pivot := Centroid(original)
	out := original
	if sx != 1 || sy != 1 {
		out = Scale(out, pivot, sx, sy)
	}
	if rotation != 0 {
		out = Rotate(out, pivot, rotation)
	}
	return out
}

// NormalizeDegrees maps an angle into [0, 360).
func NormalizeDegrees(deg float64) float64 {
	deg = math.Mod(deg, 360)
	if deg < 0 {
		deg += 360
	}
	return deg
}

// ClonePolygon deep-copies poly.
func ClonePolygon(poly orb.Polygon) orb.Polygon {
	if poly == nil {
		return nil
	}
	return poly.Clone()
}

func mapPolygon(poly orb.Polygon, fn func(orb.Point) orb.Point) orb.Polygon {
	out := make(orb.Polygon, len(poly))
	for i, ring := range poly {
		r := make(orb.Ring, len(ring))
		for j, p := range ring {
			r[j] = fn(p)
		}
		out[i] = r
	}
	return out
}

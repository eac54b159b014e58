package geo

import "github.com/paulmach/orb"

// ValidPoint reports whether p has finite coordinates inside lon/lat range.
func ValidPoint(p orb.Point) bool {
	return finite(p) && p[0] >= -180 && p[0] <= 180 && p[1] >= -90 && p[1] <= 90
}

// ValidLineString needs at least two finite points.
func ValidLineString(ls orb.LineString) bool {
	if len(ls) < 2 {
		return false
	}
	for _, p := range ls {
		if !ValidPoint(p) {
			return false
		}
	}
	return true
}

// ValidPolygon needs an outer ring and closed rings of at least four points.
func ValidPolygon(poly orb.Polygon) bool {
	if len(poly) == 0 {
		return false
	}
	for _, ring := range poly {
		if len(ring) < 4 || !ring.Closed() {
			return false
		}
		for _, p := range ring {
			if !ValidPoint(p) {
				return false
			}
		}
	}
	return true
}

// Valid dispatches on the geometry type the editor understands.
func Valid(g orb.Geometry) bool {
	switch v := g.(type) {
	case orb.Point:
		return ValidPoint(v)
	case orb.LineString:
		return ValidLineString(v)
	case orb.Polygon:
		return ValidPolygon(v)
	}
	return false
}

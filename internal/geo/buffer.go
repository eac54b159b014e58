package geo

import (
	"errors"
	"math"

	clipper "github.com/ctessum/go.clipper"
	"github.com/paulmach/orb"
)

// ErrDegenerateLine is returned when a line has fewer than two distinct points.
var ErrDegenerateLine = errors.New("geo: degenerate line")

// MinWallHalfWidth is the thinnest wall the editor produces, in meters.
const MinWallHalfWidth = 0.1

const (
	// clipper works on integers; one unit is a tenth of a millimeter
	bufferScale = 1e4

	// MiterLimit bounds how far a corner may reach from the centerline,
	// in multiples of the half-width. Sharper corners are squared off.
	MiterLimit = 2.0
)

// WallHalfWidth converts a wall width into the buffer half-width.
func WallHalfWidth(wallWidth float64) float64 {
	return math.Max(MinWallHalfWidth, wallWidth/2)
}

// BufferLine turns a centerline into a polygon whose edges run halfWidth meters
// either side of it. Caps are flat and joins are mitred up to MiterLimit, so
// every vertex lies between halfWidth and MiterLimit*halfWidth from the
// centerline. A line that folds back over itself can yield holes after the
// outer ring.
func BufferLine(line orb.LineString, halfWidth float64) (orb.Polygon, error) {
	if halfWidth <= 0 || math.IsNaN(halfWidth) || math.IsInf(halfWidth, 0) {
		return nil, errors.New("geo: buffer width must be positive")
	}
	pts := dedupe(line)
	if len(pts) < 2 {
		return nil, ErrDegenerateLine
	}
	for _, p := range pts {
		if !finite(p) {
			return nil, ErrDegenerateLine
		}
	}

	f := newFrame(pts[0])
	path := make(clipper.Path, 0, len(pts))
	for _, p := range pts {
		v := f.toLocal(p)
		ip := &clipper.IntPoint{X: toUnits(v.x), Y: toUnits(v.y)}
		if n := len(path); n > 0 && path[n-1].Equals(ip) {
			continue
		}
		path = append(path, ip)
	}
	if len(path) < 2 {
		return nil, ErrDegenerateLine
	}

	co := clipper.NewClipperOffset()
	co.MiterLimit = MiterLimit
	co.AddPath(path, clipper.JtMiter, clipper.EtOpenButt)
	paths := co.Execute(halfWidth * bufferScale)
	if len(paths) == 0 {
		return nil, ErrDegenerateLine
	}

	outer := 0
	for i, p := range paths {
		if math.Abs(clipper.Area(p)) > math.Abs(clipper.Area(paths[outer])) {
			outer = i
		}
	}
	poly := orb.Polygon{toRing(f, paths[outer], true)}
	for i, p := range paths {
		if i != outer {
			poly = append(poly, toRing(f, p, false))
		}
	}
	return poly, nil
}

// toRing converts a clipper path back to lon/lat. Outer rings are
// counter-clockwise and holes clockwise.
func toRing(f frame, p clipper.Path, outer bool) orb.Ring {
	ring := make(orb.Ring, 0, len(p)+1)
	for _, ip := range p {
		ring = append(ring, f.fromLocal(vec{float64(ip.X) / bufferScale, float64(ip.Y) / bufferScale}))
	}
	if (clipper.Area(p) > 0) != outer {
		for i, j := 0, len(ring)-1; i < j; i, j = i+1, j-1 {
			ring[i], ring[j] = ring[j], ring[i]
		}
	}
	return append(ring, ring[0])
}

func toUnits(meters float64) clipper.CInt {
	return clipper.CInt(math.Round(meters * bufferScale))
}

func dedupe(line orb.LineString) []orb.Point {
	out := make([]orb.Point, 0, len(line))
	for _, p := range line {
		if len(out) > 0 && out[len(out)-1].Equal(p) {
			continue
		}
		out = append(out, p)
	}
	return out
}

func finite(p orb.Point) bool {
	return !math.IsNaN(p[0]) && !math.IsNaN(p[1]) && !math.IsInf(p[0], 0) && !math.IsInf(p[1], 0)
}

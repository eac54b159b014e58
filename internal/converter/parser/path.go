package parser

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/paulmach/orb"

	"indoormap/internal/converter/models"
)

// ============================================================
// Path Parser
// ============================================================

var pathToken = regexp.MustCompile(`[A-Za-z]|[-+]?(?:\d+\.?\d*|\.\d+)(?:[eE][-+]?\d+)?`)

// ParsePath reads the straight-segment subset of SVG path data: M, L, H, V
// and Z in absolute and relative form, with implicit repeats. Only the
// first subpath is returned; a Z does not repeat the start point.
func ParsePath(d string) (pts []orb.Point, closed bool, err error) {
	tokens := pathToken.FindAllString(d, -1)
	if len(tokens) == 0 {
		return nil, false, fmt.Errorf("empty path")
	}

	var (
		cmd      byte
		cur      orb.Point
		i        int
		subpaths int
	)
	num := func() (float64, bool) {
		if i >= len(tokens) || isCommand(tokens[i]) {
			return 0, false
		}
		v, err := strconv.ParseFloat(tokens[i], 64)
		if err != nil {
			return 0, false
		}
		i++
		return v, true
	}

	for i < len(tokens) {
		if isCommand(tokens[i]) {
			cmd = tokens[i][0]
			i++
		} else if cmd == 0 {
			return nil, false, fmt.Errorf("path %q: coordinates before a command", d)
		}

		switch cmd {
		case 'M', 'm':
			subpaths++
			if subpaths > 1 {
				return pts, closed, nil
			}
			x, ok1 := num()
			y, ok2 := num()
			if !ok1 || !ok2 {
				return nil, false, fmt.Errorf("path %q: moveto needs two numbers", d)
			}
			if cmd == 'm' {
				x, y = cur[0]+x, cur[1]+y
			}
			cur = orb.Point{x, y}
			pts = append(pts, cur)
			// further pairs are implicit linetos
			if cmd == 'M' {
				cmd = 'L'
			} else {
				cmd = 'l'
			}
			continue

		case 'L', 'l':
			x, ok1 := num()
			y, ok2 := num()
			if !ok1 || !ok2 {
				return nil, false, fmt.Errorf("path %q: lineto needs two numbers", d)
			}
			if cmd == 'l' {
				x, y = cur[0]+x, cur[1]+y
			}
			cur = orb.Point{x, y}

		case 'H', 'h':
			x, ok := num()
			if !ok {
				return nil, false, fmt.Errorf("path %q: horizontal lineto needs a number", d)
			}
			if cmd == 'h' {
				x += cur[0]
			}
			cur = orb.Point{x, cur[1]}

		case 'V', 'v':
			y, ok := num()
			if !ok {
				return nil, false, fmt.Errorf("path %q: vertical lineto needs a number", d)
			}
			if cmd == 'v' {
				y += cur[1]
			}
			cur = orb.Point{cur[0], y}

		case 'Z', 'z':
			closed = true
			if len(pts) > 0 {
				cur = pts[0]
			}
			cmd = 0
			continue

		default:
			return nil, false, fmt.Errorf("%w %q in %q", models.ErrUnsupportedCmd, string(cmd), d)
		}
		if len(pts) == 0 {
			return nil, false, fmt.Errorf("path %q: drawing before moveto", d)
		}
		pts = append(pts, cur)
	}
	return pts, closed, nil
}

// ParsePoints reads the points attribute of <polygon> and <polyline>.
func ParsePoints(s string) ([]orb.Point, error) {
	tokens := pathToken.FindAllString(s, -1)
	if len(tokens)%2 != 0 {
		return nil, fmt.Errorf("points %q: odd number of coordinates", s)
	}
	pts := make([]orb.Point, 0, len(tokens)/2)
	for i := 0; i < len(tokens); i += 2 {
		x, err1 := strconv.ParseFloat(tokens[i], 64)
		y, err2 := strconv.ParseFloat(tokens[i+1], 64)
		if err1 != nil || err2 != nil {
			return nil, fmt.Errorf("points %q: bad coordinate", s)
		}
		pts = append(pts, orb.Point{x, y})
	}
	return pts, nil
}

func isCommand(tok string) bool {
	c := tok[0]
	return (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z')
}

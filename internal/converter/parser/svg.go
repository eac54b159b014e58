package parser

import (
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/paulmach/orb"

	"indoormap/internal/converter/models"
)

// ============================================================
// XML Structures
// ============================================================

type svgDoc struct {
	XMLName xml.Name `xml:"svg"`
	shapes
}

// shapes are the drawable children of <svg> or <g>.
type shapes struct {
	Rects     []rect     `xml:"rect"`
	Paths     []path     `xml:"path"`
	Polygons  []polyline `xml:"polygon"`
	Polylines []polyline `xml:"polyline"`
	Lines     []line     `xml:"line"`
	Groups    []group    `xml:"g"`
}

type group struct {
	ID string `xml:"id,attr"`
	shapes
}

type rect struct {
	ID     string  `xml:"id,attr"`
	X      float64 `xml:"x,attr"`
	Y      float64 `xml:"y,attr"`
	Width  float64 `xml:"width,attr"`
	Height float64 `xml:"height,attr"`
}

type path struct {
	ID string `xml:"id,attr"`
	D  string `xml:"d,attr"`
}

type polyline struct {
	ID     string `xml:"id,attr"`
	Points string `xml:"points,attr"`
}

type line struct {
	ID string  `xml:"id,attr"`
	X1 float64 `xml:"x1,attr"`
	Y1 float64 `xml:"y1,attr"`
	X2 float64 `xml:"x2,attr"`
	Y2 float64 `xml:"y2,attr"`
}

// ============================================================
// Parser
// ============================================================

// ParseSVG returns every shape whose id (or enclosing group id) names a
// plan element. Shapes that fail to parse are reported through bad.
func ParseSVG(r io.Reader) (elements []models.Element, bad []models.Skipped, err error) {
	var doc svgDoc
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, nil, fmt.Errorf("decode svg: %w", err)
	}
	p := &collector{}
	p.walk(doc.shapes, "")
	return p.elements, p.bad, nil
}

type collector struct {
	elements []models.Element
	bad      []models.Skipped
}

func (p *collector) walk(s shapes, inherited string) {
	for _, r := range s.Rects {
		p.add(pick(r.ID, inherited), []orb.Point{
			{r.X, r.Y}, {r.X + r.Width, r.Y}, {r.X + r.Width, r.Y + r.Height}, {r.X, r.Y + r.Height},
		}, true, nil)
	}
	for _, d := range s.Paths {
		pts, closed, err := ParsePath(d.D)
		p.add(pick(d.ID, inherited), pts, closed, err)
	}
	for _, pg := range s.Polygons {
		pts, err := ParsePoints(pg.Points)
		p.add(pick(pg.ID, inherited), pts, true, err)
	}
	for _, pl := range s.Polylines {
		pts, err := ParsePoints(pl.Points)
		p.add(pick(pl.ID, inherited), pts, false, err)
	}
	for _, l := range s.Lines {
		p.add(pick(l.ID, inherited), []orb.Point{{l.X1, l.Y1}, {l.X2, l.Y2}}, false, nil)
	}
	for _, g := range s.Groups {
		p.walk(g.shapes, pick(g.ID, inherited))
	}
}

func (p *collector) add(id string, pts []orb.Point, closed bool, err error) {
	kind, ok := Classify(id)
	if !ok {
		return
	}
	if err != nil {
		p.bad = append(p.bad, models.Skipped{ID: id, Reason: err.Error()})
		return
	}
	p.elements = append(p.elements, models.Element{ID: id, Kind: kind, Points: pts, Closed: closed})
}

func pick(id, inherited string) string {
	if id != "" {
		return id
	}
	return inherited
}

// Classify maps an element id to its plan kind.
func Classify(id string) (models.ElementKind, bool) {
	switch {
	case id == "":
		return "", false
	case strings.HasPrefix(id, "Wall_"), strings.Contains(id, "_Wall_"):
		return models.ElementWall, true
	case strings.HasPrefix(id, "Door_"):
		return models.ElementDoor, true
	case strings.HasPrefix(id, "Window_"):
		return models.ElementWindow, true
	case strings.HasPrefix(id, "Room_"), strings.HasSuffix(id, "_room"), strings.HasSuffix(id, "_Room"):
		return models.ElementRoom, true
	case strings.HasPrefix(id, "Furniture_"), strings.HasPrefix(id, "Item_"):
		return models.ElementFurniture, true
	}
	return "", false
}

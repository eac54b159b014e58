package mapper

import (
	"fmt"
	"io"
	"log/slog"
	"math"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"

	"indoormap/internal/converter/models"
	"indoormap/internal/converter/parser"
	"indoormap/internal/geo"
	plan "indoormap/internal/mapdata/models"
	"indoormap/internal/palette"
)

const (
	defaultWallWidth  = 0.3
	defaultWallHeight = 3.0
)

// ============================================================
// Converter
// ============================================================

type Options struct {
	Georef     models.Georef
	WallWidth  float64 // meters; used to buffer walls drawn as open lines
	WallHeight float64
	Palette    *palette.Catalog
}

type Converter struct {
	opts Options
	log  *slog.Logger
}

func New(opts Options, log *slog.Logger) (*Converter, error) {
	if !opts.Georef.Valid() {
		return nil, models.ErrNoGeoref
	}
	if opts.WallWidth <= 0 {
		opts.WallWidth = defaultWallWidth
	}
	if opts.WallHeight <= 0 {
		opts.WallHeight = defaultWallHeight
	}
	if opts.Palette == nil {
		opts.Palette = palette.Default()
	}
	return &Converter{opts: opts, log: log}, nil
}

// Convert SVG → export document. Elements that cannot become features are
// listed in the report; only an unreadable document is an error.
func (c *Converter) Convert(r io.Reader) (*plan.ExportDocument, models.Report, error) {
	elements, bad, err := parser.ParseSVG(r)
	if err != nil {
		return nil, models.Report{}, err
	}
	report := models.Report{Skipped: append([]models.Skipped{}, bad...)}

	var (
		walls     []plan.Wall
		rooms     []plan.Room
		furniture []plan.Furniture
	)
	for _, el := range elements {
		var err error
		switch el.Kind {
		case models.ElementWall:
			var w plan.Wall
			if w, err = c.wall(el); err == nil {
				walls = append(walls, w)
			}
		case models.ElementRoom:
			var rm plan.Room
			if rm, err = c.room(el); err == nil {
				rooms = append(rooms, rm)
			}
		case models.ElementFurniture:
			var f plan.Furniture
			if f, err = c.furniture(el); err == nil {
				furniture = append(furniture, f)
			}
		default:
			err = fmt.Errorf("%s openings are not imported", el.Kind)
		}
		if err != nil {
			report.Skip(el.ID, err.Error())
		}
	}
	for _, s := range report.Skipped {
		c.log.Warn("svg element skipped", "id", s.ID, "reason", s.Reason)
	}

	report.Walls, report.Rooms, report.Furniture = len(walls), len(rooms), len(furniture)
	return plan.NewExportDocument(walls, rooms, furniture), report, nil
}

// ============================================================
// Element mapping
// ============================================================

func (c *Converter) wall(el models.Element) (plan.Wall, error) {
	w := plan.Wall{ID: plan.NewID(), Height: c.opts.WallHeight}
	if outline, ok := closedOutline(el); ok {
		poly, err := c.polygon(outline)
		if err != nil {
			return w, err
		}
		w.Polygon = poly
		w.Width = thickness(outline) * c.opts.Georef.MetersPerUnit
		return w, nil
	}

	ls := make(orb.LineString, len(el.Points))
	for i, p := range el.Points {
		ls[i] = c.project(p)
	}
	poly, err := geo.BufferLine(ls, geo.WallHalfWidth(c.opts.WallWidth))
	if err != nil {
		return w, err
	}
	w.Polygon = poly
	w.Width = 2 * geo.WallHalfWidth(c.opts.WallWidth)
	return w, nil
}

func (c *Converter) room(el models.Element) (plan.Room, error) {
	outline, ok := closedOutline(el)
	if !ok {
		return plan.Room{}, fmt.Errorf("room outline is not closed")
	}
	poly, err := c.polygon(outline)
	if err != nil {
		return plan.Room{}, err
	}
	return plan.Room{
		ID:          plan.NewID(),
		Polygon:     poly,
		Name:        RoomName(el.ID),
		Color:       plan.DefaultRoomColumnColor,
		Capacity:    plan.DefaultRoomCapacity,
		AVEquipment: []string{},
	}, nil
}

func (c *Converter) furniture(el models.Element) (plan.Furniture, error) {
	outline, ok := closedOutline(el)
	if !ok {
		return plan.Furniture{}, fmt.Errorf("furniture outline is not closed")
	}
	poly, err := c.polygon(outline)
	if err != nil {
		return plan.Furniture{}, err
	}
	itemType := ItemType(el.ID)
	f := plan.Furniture{
		ID:       plan.NewID(),
		Polygon:  poly,
		ItemType: itemType,
		Label:    itemType,
		ScaleX:   1,
		ScaleY:   1,
		Original: geo.ClonePolygon(poly),
	}
	if item, ok := c.opts.Palette.Lookup(itemType); ok {
		f.Icon, f.Label = item.Icon, item.Label
	}
	return f, nil
}

// ============================================================
// Geometry helpers
// ============================================================

// project maps drawing units (y down) to lon/lat.
func (c *Converter) project(p orb.Point) orb.Point {
	k := c.opts.Georef.MetersPerUnit
	return geo.Offset(c.opts.Georef.Origin, p[0]*k, -p[1]*k)
}

func (c *Converter) polygon(outline orb.Ring) (orb.Polygon, error) {
	ring := make(orb.Ring, len(outline))
	for i, p := range outline {
		ring[i] = c.project(p)
	}
	poly := orb.Polygon{ring}
	if !geo.ValidPolygon(poly) {
		return nil, fmt.Errorf("%w: outline outside lon/lat range", plan.ErrInvalidGeometry)
	}
	return poly, nil
}

// closedOutline returns the element as a closed ring in drawing units. An
// open shape counts as closed when its ends coincide.
func closedOutline(el models.Element) (orb.Ring, bool) {
	var pts []orb.Point
	for _, p := range el.Points {
		if len(pts) == 0 || pts[len(pts)-1] != p {
			pts = append(pts, p)
		}
	}
	ends := len(pts) > 1 && pts[0] == pts[len(pts)-1]
	if !el.Closed && !ends {
		return nil, false
	}
	if ends {
		pts = pts[:len(pts)-1]
	}
	if len(pts) < 3 {
		return nil, false
	}
	return geo.CloseRing(orb.Ring(pts)), true
}

// thickness is the short side of the rectangle with the outline's area and
// perimeter.
func thickness(outline orb.Ring) float64 {
	area := math.Abs(planar.Area(outline))
	half := planar.Length(outline) / 2
	disc := half*half - 4*area
	if disc < 0 {
		disc = 0
	}
	return (half - math.Sqrt(disc)) / 2
}

// ============================================================
// Naming
// ============================================================

// RoomName derives a display name from a room id: "Room_Meeting_A" and
// "Meeting_A_room" both become "Meeting A".
func RoomName(id string) string {
	name := id
	switch {
	case strings.HasPrefix(name, "Room_"):
		name = strings.TrimPrefix(name, "Room_")
	case strings.HasSuffix(name, "_room"), strings.HasSuffix(name, "_Room"):
		name = name[:len(name)-len("_room")]
	}
	name = strings.TrimSpace(strings.ReplaceAll(name, "_", " "))
	if name == "" {
		return id
	}
	return name
}

// ItemType reads the palette type from "Furniture_desk_3" or "Item_chair".
func ItemType(id string) string {
	rest := strings.TrimPrefix(strings.TrimPrefix(id, "Furniture_"), "Item_")
	if i := strings.IndexByte(rest, '_'); i >= 0 {
		rest = rest[:i]
	}
	if rest == "" {
		return "item"
	}
	return strings.ToLower(rest)
}

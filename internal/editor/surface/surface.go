// Package surface describes the map widget the editor draws on and ships
// an in-memory Canvas that answers rendered-feature queries geometrically.
package surface

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"indoormap/internal/mapdata/models"
)

// HandleKind is what dragging a handle does.
type HandleKind string

const (
	HandleMove   HandleKind = "move"
	HandleRotate HandleKind = "rotate"
	HandleScale  HandleKind = "scale"
	HandleVertex HandleKind = "vertex"
)

// Handle is a draggable control point.
type Handle struct {
	ID       string      `json:"id"`
	Kind     HandleKind  `json:"kind"`
	Target   string      `json:"target"`
	TargetOf models.Kind `json:"targetKind"`
	Ring     int         `json:"ring,omitempty"`
	Vertex   int         `json:"vertex,omitempty"`
	Position orb.Point   `json:"position"`
}

// HandleID formats "<kind>:<id>:<handle>[:ring:vertex]".
func HandleID(target models.Kind, id string, kind HandleKind, ring, vertex int) string {
	if kind == HandleVertex {
		return fmt.Sprintf("%s:%s:%s:%d:%d", target, id, kind, ring, vertex)
	}
	return fmt.Sprintf("%s:%s:%s", target, id, kind)
}

// ParseHandleID is the inverse of HandleID.
func ParseHandleID(s string) (Handle, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 && len(parts) != 5 {
		return Handle{}, fmt.Errorf("malformed handle id %q", s)
	}
	kind, ok := models.ParseKind(parts[0])
	if !ok {
		return Handle{}, fmt.Errorf("handle %q: unknown feature kind", s)
	}
	h := Handle{ID: s, TargetOf: kind, Target: parts[1], Kind: HandleKind(parts[2])}
	switch h.Kind {
	case HandleMove, HandleRotate, HandleScale:
		if len(parts) != 3 {
			return Handle{}, fmt.Errorf("handle %q: unexpected vertex index", s)
		}
	case HandleVertex:
		if len(parts) != 5 {
			return Handle{}, fmt.Errorf("handle %q: missing vertex index", s)
		}
		ring, err1 := strconv.Atoi(parts[3])
		vertex, err2 := strconv.Atoi(parts[4])
		if err1 != nil || err2 != nil || ring < 0 || vertex < 0 {
			return Handle{}, fmt.Errorf("handle %q: bad vertex index", s)
		}
		h.Ring, h.Vertex = ring, vertex
	default:
		return Handle{}, fmt.Errorf("handle %q: unknown handle kind", s)
	}
	return h, nil
}

// RenderedFeature is one hit returned by QueryRendered.
type RenderedFeature struct {
	Kind    models.Kind
	Feature *geojson.Feature
}

// Surface is the map widget seen by the editor.
type Surface interface {
	// SetSource replaces the whole data source of one layer.
	SetSource(kind models.Kind, fc *geojson.FeatureCollection)
	// QueryRendered returns rendered features within radius meters of at,
	// in no particular layer order.
	QueryRendered(at orb.Point, radius float64) []RenderedFeature
	// SetPreview shows a transient geometry. nil clears it.
	SetPreview(f *geojson.Feature)
	SetHandles(handles []Handle)
	ShowPopup(poi models.POI, event *models.Event)
	ClosePopup()
}

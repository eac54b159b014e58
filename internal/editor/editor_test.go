package editor

import (
	"context"
	"errors"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"indoormap/internal/common/logging"
	"indoormap/internal/editor/surface"
	"indoormap/internal/geo"
	"indoormap/internal/mapdata/models"
)

var origin = orb.Point{13.4050, 52.5200}

type call struct {
	op, table, id string
	rec           models.Record
}

func (c call) String() string { return c.op + " " + c.table + "/" + c.id }

type fakeRemote struct {
	mu     sync.Mutex
	calls  []call
	tables map[string][]models.Record
	failOn string
}

func (f *fakeRemote) add(c call) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, c)
	if f.failOn != "" && strings.HasPrefix(c.String(), f.failOn) {
		return errors.New("remote unavailable")
	}
	return nil
}

func (f *fakeRemote) List(_ context.Context, table string) ([]models.Record, error) {
	if err := f.add(call{op: "list", table: table}); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tables[table], nil
}

func (f *fakeRemote) Insert(_ context.Context, table string, rec models.Record) error {
	return f.add(call{op: "insert", table: table, id: rec.Str("id"), rec: rec})
}

func (f *fakeRemote) Update(_ context.Context, table, id string, patch models.Record) error {
	return f.add(call{op: "update", table: table, id: id, rec: patch})
}

func (f *fakeRemote) Delete(_ context.Context, table, id string) error {
	return f.add(call{op: "delete", table: table, id: id})
}

func (f *fakeRemote) DeleteWhere(_ context.Context, table, column, value string) error {
	return f.add(call{op: "delete_where", table: table, id: column + "=" + value})
}

// writes returns every call except the mount reads.
func (f *fakeRemote) writes() []call {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []call
	for _, c := range f.calls {
		if c.op != "list" {
			out = append(out, c)
		}
	}
	return out
}

func newEditor(t *testing.T, fake *fakeRemote) (*Editor, *surface.Canvas) {
	t.Helper()
	canvas := surface.NewCanvas()
	e := New(Config{WallWidth: 0.3, WallHeight: 3, HitRadius: 0.5, PanelDebounce: time.Hour},
		canvas, fake, nil, logging.Discard())
	if err := e.Mount(context.Background()); err != nil {
		t.Fatalf("mount: %v", err)
	}
	t.Cleanup(func() { e.Close(context.Background()) })
	return e, canvas
}

// settle waits for queued writes without flushing panel edits.
func settle(t *testing.T, e *Editor) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.sync.Flush(ctx); err != nil {
		t.Fatalf("flush: %v", err)
	}
}

// ============================================================
// Draw
// ============================================================

func TestDrawWallAndRoomEndToEnd(t *testing.T) {
	fake := &fakeRemote{}
	e, canvas := newEditor(t, fake)

	line := orb.LineString{origin, geo.Offset(origin, 0, 10), geo.Offset(origin, 10, 10)}
	wall, err := e.Draw("gesture-1", line)
	if err != nil || wall.Kind != models.KindWall {
		t.Fatalf("draw wall: %+v %v", wall, err)
	}
	w, _ := e.store.Wall(wall.ID)
	for _, p := range w.Polygon[0] {
		if d := geo.DistanceToLineMeters(p, line); d < 0.15-1e-3 || d > 0.15*geo.MiterLimit+1e-3 {
			t.Fatalf("wall vertex %.6f m from centerline, want within [0.15, %.2f]", d, 0.15*geo.MiterLimit)
		}
	}

	room, err := e.Draw("gesture-2", geo.RectangleAt(origin, 4, 3))
	if err != nil || room.Kind != models.KindRoom {
		t.Fatalf("draw room: %+v %v", room, err)
	}
	r, _ := e.store.Room(room.ID)
	if r.Name != "Mystery room 1" || r.Color != "#ff0000" || r.Capacity != 10 {
		t.Fatalf("room defaults = %+v", r)
	}

	settle(t, e)
	writes := fake.writes()
	if len(writes) != 2 || writes[0].String() != "insert features/"+wall.ID || writes[1].String() != "insert rooms/"+room.ID {
		t.Fatalf("writes = %v", writes)
	}
	if n := len(canvas.Source(models.KindWall).Features); n != 1 {
		t.Fatalf("wall layer has %d features", n)
	}
}

func TestDrawDeduplicatesTransientID(t *testing.T) {
	fake := &fakeRemote{}
	e, _ := newEditor(t, fake)
	e.SetTool(ToolRoom)

	poly := geo.RectangleAt(origin, 4, 4)
	first, err := e.Draw("same", poly)
	if err != nil {
		t.Fatalf("first draw: %v", err)
	}
	second, err := e.Draw("same", poly)
	if err != nil || !second.Duplicate || second.ID != first.ID {
		t.Fatalf("second draw = %+v %v", second, err)
	}
	settle(t, e)
	if n := len(e.Snapshot().Rooms); n != 1 {
		t.Fatalf("rooms = %d", n)
	}
	if n := len(fake.writes()); n != 1 {
		t.Fatalf("writes = %d", n)
	}
	if tool, state := e.Tool(); tool != ToolRoom || state != StateDrawing {
		t.Fatalf("after create: %s %s", tool, state)
	}
}

func TestSetToolForgetsTransientIDs(t *testing.T) {
	e, _ := newEditor(t, &fakeRemote{})
	e.SetTool(ToolRoom)
	first, err := e.Draw("same", geo.RectangleAt(origin, 4, 4))
	if err != nil {
		t.Fatalf("first draw: %v", err)
	}

	e.SetTool(ToolRoom)
	if again, _ := e.Draw("same", geo.RectangleAt(origin, 4, 4)); !again.Duplicate {
		t.Fatalf("same tool should still dedupe: %+v", again)
	}

	e.SetTool(ToolWall)
	e.SetTool(ToolRoom)
	if n := len(e.drawn); n != 0 {
		t.Fatalf("drawn ids kept across tool change: %d", n)
	}
	second, err := e.Draw("same", geo.RectangleAt(geo.Offset(origin, 10, 0), 4, 4))
	if err != nil || second.Duplicate || second.ID == first.ID {
		t.Fatalf("draw after tool change = %+v %v", second, err)
	}
	settle(t, e)
	if n := len(e.Snapshot().Rooms); n != 2 {
		t.Fatalf("rooms = %d", n)
	}
}

func TestDrawRejectsMismatchAndDegenerate(t *testing.T) {
	e, _ := newEditor(t, &fakeRemote{})
	e.SetTool(ToolWall)
	if _, err := e.Draw("a", geo.RectangleAt(origin, 2, 2)); !errors.Is(err, ErrToolMismatch) {
		t.Fatalf("expected tool mismatch, got %v", err)
	}
	if _, err := e.Draw("b", orb.LineString{origin, origin}); !errors.Is(err, ErrBadGesture) {
		t.Fatalf("expected bad gesture, got %v", err)
	}
	if n := len(e.Snapshot().Walls); n != 0 {
		t.Fatalf("walls = %d", n)
	}
}

// ============================================================
// Wallify
// ============================================================

func TestWallifyOnceThenNoop(t *testing.T) {
	fake := &fakeRemote{}
	e, _ := newEditor(t, fake)
	room, _ := e.Draw("r", geo.RectangleAt(origin, 6, 4))

	walls, done, err := e.Wallify(room.ID)
	if err != nil || !done || len(walls) != 4 {
		t.Fatalf("wallify = %d %v %v", len(walls), done, err)
	}
	for _, w := range walls {
		if w.RoomID != room.ID || !w.Valid() {
			t.Fatalf("wall %+v", w)
		}
	}
	if r, _ := e.store.Room(room.ID); !r.Wallified {
		t.Fatalf("room not marked wallified")
	}

	again, done, err := e.Wallify(room.ID)
	if err != nil || done || again != nil {
		t.Fatalf("second wallify = %v %v %v", again, done, err)
	}
	settle(t, e)
	if n := len(e.Snapshot().Walls); n != 4 {
		t.Fatalf("walls after second call = %d", n)
	}
	// room insert, 4 wall inserts, 1 room update
	if n := len(fake.writes()); n != 6 {
		t.Fatalf("writes = %v", fake.writes())
	}
}

func TestWallifyReplacesOwnedWalls(t *testing.T) {
	e, _ := newEditor(t, &fakeRemote{})
	room, _ := e.Draw("r", geo.RectangleAt(origin, 6, 4))
	stale := models.Wall{ID: "stale", Polygon: geo.RectangleAt(origin, 1, 0.3), Width: 0.3, RoomID: room.ID}
	e.store.Add(stale)

	if _, _, err := e.Wallify(room.ID); err != nil {
		t.Fatalf("wallify: %v", err)
	}
	if _, ok := e.store.Wall("stale"); ok {
		t.Fatalf("owned wall should be regenerated")
	}
	if n := len(e.Snapshot().Walls); n != 4 {
		t.Fatalf("walls = %d", n)
	}
}

// ============================================================
// Selection
// ============================================================

func TestClickPriority(t *testing.T) {
	e, canvas := newEditor(t, &fakeRemote{})
	room, _ := e.Draw("r", geo.RectangleAt(origin, 10, 10))
	desk, err := e.PlaceFurniture("desk", origin)
	if err != nil {
		t.Fatalf("place: %v", err)
	}
	e.Wallify(room.ID)

	sel, ok := e.Click(origin)
	if !ok || sel.Kind != models.KindFurniture || sel.ID != desk.ID {
		t.Fatalf("click on desk selected %+v", sel)
	}
	if n := len(canvas.Handles()); n != 3 {
		t.Fatalf("furniture handles = %d", n)
	}

	sel, _ = e.Click(geo.Offset(origin, 3, 3))
	if sel.Kind != models.KindRoom || sel.ID != room.ID {
		t.Fatalf("click inside room selected %+v", sel)
	}
	if n := len(canvas.Handles()); n != 4 {
		t.Fatalf("room handles = %d", n)
	}

	// inside the east wall and near the room boundary
	sel, _ = e.Click(geo.Offset(origin, 5.05, 0))
	if sel.Kind != models.KindRoom {
		t.Fatalf("room must win over wall, got %+v", sel)
	}

	far := geo.Offset(origin, 100, 0)
	wall, _ := e.Draw("w", orb.LineString{far, geo.Offset(far, 0, 10)})
	at := geo.Offset(far, 0.05, 5)
	e.CreatePOI(at, POIInput{Title: "kiosk"})
	sel, _ = e.Click(at)
	if sel.Kind != models.KindWall || sel.ID != wall.ID {
		t.Fatalf("wall must win over poi, got %+v", sel)
	}
	if len(canvas.Handles()) != 0 || canvas.Popup() != nil {
		t.Fatalf("wall selection shows no handles or popup")
	}

	if _, ok := e.Click(geo.Offset(origin, 500, 500)); ok {
		t.Fatalf("empty click should select nothing")
	}
	if _, ok := e.store.Selected(); ok || len(canvas.Handles()) != 0 {
		t.Fatalf("empty click must clear selection and handles")
	}
}

func TestClickPOIOpensPopupWithEvent(t *testing.T) {
	e, canvas := newEditor(t, &fakeRemote{})
	at := geo.Offset(origin, 20, 0)
	poi, err := e.CreatePOI(at, POIInput{
		Title:    "Launch",
		Category: models.CategoryEvent,
		Event:    &models.Event{Name: "Launch party", StartTime: "2026-01-01T18:00:00Z"},
	})
	if err != nil {
		t.Fatalf("create poi: %v", err)
	}
	sel, ok := e.Click(at)
	if !ok || sel.ID != poi.ID {
		t.Fatalf("selected %+v", sel)
	}
	popup := canvas.Popup()
	if popup == nil || popup.POI.ID != poi.ID || popup.Event == nil || popup.Event.Name != "Launch party" {
		t.Fatalf("popup = %+v", popup)
	}
	e.Click(geo.Offset(origin, 500, 0))
	if canvas.Popup() != nil {
		t.Fatalf("popup should close on empty click")
	}
}

func TestClickAdoptsUnknownRenderedFeature(t *testing.T) {
	fake := &fakeRemote{}
	e, canvas := newEditor(t, fake)

	ghost := models.Room{ID: "ghost", Polygon: geo.RectangleAt(origin, 4, 4), Name: "ghost"}
	fc := geojson.NewFeatureCollection()
	fc.Append(ghost.GeoJSON())
	canvas.SetSource(models.KindRoom, fc)

	sel, ok := e.Click(origin)
	if !ok || sel.ID != "ghost" {
		t.Fatalf("selected %+v", sel)
	}
	if r, ok := e.store.Room("ghost"); !ok || r.Name != "ghost" {
		t.Fatalf("ghost not adopted: %+v", r)
	}
	settle(t, e)
	if n := len(fake.writes()); n != 0 {
		t.Fatalf("adoption must not write, got %v", fake.writes())
	}
}

// ============================================================
// Drag
// ============================================================

func TestDragPreviewsThenCommitsOnce(t *testing.T) {
	fake := &fakeRemote{}
	e, canvas := newEditor(t, fake)
	desk, _ := e.PlaceFurniture("desk", origin)
	settle(t, e)
	before := len(fake.writes())

	handle := surface.HandleID(models.KindFurniture, desk.ID, surface.HandleMove, 0, 0)
	if err := e.StartDrag(handle, origin); err != nil {
		t.Fatalf("start: %v", err)
	}
	for i := 1; i <= 5; i++ {
		if _, err := e.MoveDrag(geo.Offset(origin, float64(i)*0.3, 0)); err != nil {
			t.Fatalf("move: %v", err)
		}
	}
	if canvas.Preview() == nil {
		t.Fatalf("preview missing while dragging")
	}
	settle(t, e)
	if n := len(fake.writes()); n != before {
		t.Fatalf("drag wrote before commit")
	}
	if cur, _ := e.store.Furniture(desk.ID); !cur.Polygon.Equal(desk.Polygon) {
		t.Fatalf("store changed before commit")
	}

	target := geo.Offset(origin, 2, 0)
	if _, err := e.EndDrag(target); err != nil {
		t.Fatalf("end: %v", err)
	}
	settle(t, e)
	writes := fake.writes()[before:]
	if len(writes) != 1 || writes[0].String() != "update features/"+desk.ID {
		t.Fatalf("commit writes = %v", writes)
	}
	if _, ok := writes[0].rec["originalGeometry"]; !ok {
		t.Fatalf("move must persist the baseline: %v", writes[0].rec)
	}
	if canvas.Preview() != nil {
		t.Fatalf("preview must be torn down")
	}
	moved, _ := e.store.Furniture(desk.ID)
	if d := geo.DistanceMeters(geo.Centroid(moved.Polygon), target); d > 1e-3 {
		t.Fatalf("desk centroid %.4f m off target", d)
	}
	if _, err := e.EndDrag(target); !errors.Is(err, ErrNoDrag) {
		t.Fatalf("expected ErrNoDrag, got %v", err)
	}
}

func TestRotateThenResetReturnsBaseline(t *testing.T) {
	e, _ := newEditor(t, &fakeRemote{})
	desk, _ := e.PlaceFurniture("desk", origin)
	c := geo.Centroid(desk.Polygon)

	rotate := surface.HandleID(models.KindFurniture, desk.ID, surface.HandleRotate, 0, 0)
	if err := e.StartDrag(rotate, geo.Offset(c, 0, 1)); err != nil {
		t.Fatalf("start: %v", err)
	}
	got, err := e.EndDrag(geo.Offset(c, 1, 0))
	if err != nil {
		t.Fatalf("end: %v", err)
	}
	rotated := got.(models.Furniture)
	if math.Abs(rotated.Rotation-90) > 1e-6 {
		t.Fatalf("rotation = %v", rotated.Rotation)
	}
	if !rotated.Original.Equal(desk.Original) {
		t.Fatalf("rotation must not touch the baseline")
	}

	if _, err := e.SetFurnitureTransform(desk.ID, 30, 2, 0.5); err != nil {
		t.Fatalf("transform: %v", err)
	}
	reset, err := e.SetFurnitureTransform(desk.ID, 0, 1, 1)
	if err != nil {
		t.Fatalf("reset: %v", err)
	}
	if !reset.Polygon.Equal(desk.Original) {
		t.Fatalf("reset footprint %v != baseline %v", reset.Polygon, desk.Original)
	}
}

func TestScaleDragFromBaseline(t *testing.T) {
	e, _ := newEditor(t, &fakeRemote{})
	desk, _ := e.PlaceFurniture("desk", origin)
	c := geo.Centroid(desk.Polygon)

	scale := surface.HandleID(models.KindFurniture, desk.ID, surface.HandleScale, 0, 0)
	e.StartDrag(scale, geo.Offset(c, 1, 0))
	got, err := e.EndDrag(geo.Offset(c, 2, 0))
	if err != nil {
		t.Fatalf("end: %v", err)
	}
	f := got.(models.Furniture)
	if math.Abs(f.ScaleX-2) > 1e-6 || math.Abs(f.ScaleY-2) > 1e-6 {
		t.Fatalf("scale = %v,%v", f.ScaleX, f.ScaleY)
	}
}

func TestVertexDragKeepsRingClosed(t *testing.T) {
	e, canvas := newEditor(t, &fakeRemote{})
	room, _ := e.Draw("r", geo.RectangleAt(origin, 4, 4))
	if err := e.Select(models.KindRoom, room.ID); err != nil {
		t.Fatalf("select: %v", err)
	}
	h := canvas.Handles()[0]
	if h.Vertex != 0 {
		t.Fatalf("first handle vertex = %d", h.Vertex)
	}
	target := geo.Offset(h.Position, -1, -1)
	if err := e.StartDrag(h.ID, h.Position); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := e.EndDrag(target); err != nil {
		t.Fatalf("end: %v", err)
	}
	r, _ := e.store.Room(room.ID)
	ring := r.Polygon[0]
	if ring[0] != target || ring[len(ring)-1] != target {
		t.Fatalf("ring not closed on moved vertex: %v", ring)
	}
	if len(canvas.Handles()) != 4 || canvas.Handles()[0].Position != target {
		t.Fatalf("handles not refreshed: %+v", canvas.Handles())
	}
}

func TestCancelDragLeavesStoreUntouched(t *testing.T) {
	fake := &fakeRemote{}
	e, canvas := newEditor(t, fake)
	poi, _ := e.CreatePOI(origin, POIInput{Title: "desk"})
	settle(t, e)
	before := len(fake.writes())

	if err := e.StartDrag(surface.HandleID(models.KindPOI, poi.ID, surface.HandleMove, 0, 0), origin); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := e.StartDrag("poi:"+poi.ID+":move", origin); !errors.Is(err, ErrDragActive) {
		t.Fatalf("expected ErrDragActive, got %v", err)
	}
	e.MoveDrag(geo.Offset(origin, 3, 3))
	if err := e.CancelDrag(); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	settle(t, e)
	if p, _ := e.store.POI(poi.ID); p.Point != origin {
		t.Fatalf("poi moved on cancel")
	}
	if canvas.Preview() != nil || len(fake.writes()) != before {
		t.Fatalf("cancel must clear preview and not write")
	}
	if err := e.StartDrag("poi:"+poi.ID+":rotate", origin); !errors.Is(err, ErrBadHandle) {
		t.Fatalf("expected ErrBadHandle, got %v", err)
	}
}

// ============================================================
// Delete
// ============================================================

func TestDeleteRoomCascades(t *testing.T) {
	fake := &fakeRemote{}
	e, _ := newEditor(t, fake)
	room, _ := e.Draw("r", geo.RectangleAt(origin, 10, 10))
	e.Wallify(room.ID)
	e.PlaceFurniture("desk", origin)
	e.PlaceFurniture("chair", geo.Offset(origin, 3, 3))
	outside, _ := e.PlaceFurniture("chair", geo.Offset(origin, 30, 0))
	e.Draw("w", orb.LineString{geo.Offset(origin, 40, 0), geo.Offset(origin, 40, 5)})
	settle(t, e)
	before := len(fake.writes())

	del, err := e.DeleteFeature(models.KindRoom, room.ID)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if del.Walls != 4 || del.Furniture != 2 || del.Rooms != 1 || del.Total() != 7 {
		t.Fatalf("deleted = %+v", del)
	}
	settle(t, e)
	writes := fake.writes()[before:]
	if len(writes) != 7 {
		t.Fatalf("delete writes = %v", writes)
	}
	if last := writes[len(writes)-1]; last.String() != "delete rooms/"+room.ID {
		t.Fatalf("room delete should come last, got %v", last)
	}

	snap := e.Snapshot()
	for _, w := range snap.Walls {
		if w.RoomID == room.ID {
			t.Fatalf("wall %s still references the room", w.ID)
		}
	}
	if len(snap.Walls) != 1 || len(snap.Furniture) != 1 || snap.Furniture[0].ID != outside.ID || len(snap.Rooms) != 0 {
		t.Fatalf("left over: %d walls, %d furniture, %d rooms", len(snap.Walls), len(snap.Furniture), len(snap.Rooms))
	}
}

func TestDeletePOIRemovesEvent(t *testing.T) {
	fake := &fakeRemote{}
	e, _ := newEditor(t, fake)
	poi, _ := e.CreatePOI(origin, POIInput{Category: models.CategoryEvent, Event: &models.Event{Name: "talk"}})
	settle(t, e)
	before := len(fake.writes())

	del, err := e.DeleteFeature(models.KindPOI, poi.ID)
	if err != nil || del.POIs != 1 || del.Events != 1 {
		t.Fatalf("delete = %+v %v", del, err)
	}
	settle(t, e)
	writes := fake.writes()[before:]
	if len(writes) != 2 || writes[0].String() != "delete_where events/poi_id="+poi.ID || writes[1].String() != "delete poi/"+poi.ID {
		t.Fatalf("writes = %v", writes)
	}
	if _, ok := e.Event(poi.ID); ok {
		t.Fatalf("event still linked")
	}
}

// ============================================================
// Property panel
// ============================================================

func TestPanelEditsCoalesce(t *testing.T) {
	fake := &fakeRemote{}
	e, _ := newEditor(t, fake)
	room, _ := e.Draw("r", geo.RectangleAt(origin, 4, 4))
	settle(t, e)
	before := len(fake.writes())

	a, b := "A", "B"
	seats := 4
	e.EditRoom(room.ID, models.RoomPatch{Name: &a})
	got, err := e.EditRoom(room.ID, models.RoomPatch{Name: &b, Capacity: &seats})
	if err != nil || got.Name != "B" || got.Capacity != 4 {
		t.Fatalf("local edit = %+v %v", got, err)
	}
	settle(t, e)
	if n := len(fake.writes()); n != before {
		t.Fatalf("panel edit written before debounce")
	}

	if n := e.FlushPanels(); n != 1 {
		t.Fatalf("flushed %d panels", n)
	}
	settle(t, e)
	writes := fake.writes()[before:]
	if len(writes) != 1 || writes[0].String() != "update rooms/"+room.ID {
		t.Fatalf("writes = %v", writes)
	}
	if writes[0].rec["title"] != "B" || writes[0].rec["seats"] != 4 || len(writes[0].rec) != 2 {
		t.Fatalf("patch = %v", writes[0].rec)
	}
}

func TestPanelEditFiresAfterDelay(t *testing.T) {
	fake := &fakeRemote{}
	canvas := surface.NewCanvas()
	e := New(Config{PanelDebounce: 20 * time.Millisecond}, canvas, fake, nil, logging.Discard())
	defer e.Close(context.Background())
	poi, _ := e.CreatePOI(origin, POIInput{Title: "old"})

	title := "new"
	e.EditPOI(poi.ID, models.POIPatch{Title: &title})

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		for _, w := range fake.writes() {
			if w.String() == "update poi/"+poi.ID {
				return
			}
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("debounced write never arrived: %v", fake.writes())
}

func TestDeleteDropsPendingPanelEdit(t *testing.T) {
	fake := &fakeRemote{}
	e, _ := newEditor(t, fake)
	room, _ := e.Draw("r", geo.RectangleAt(origin, 4, 4))
	name := "gone"
	e.EditRoom(room.ID, models.RoomPatch{Name: &name})
	e.DeleteFeature(models.KindRoom, room.ID)

	if n := e.FlushPanels(); n != 0 {
		t.Fatalf("flushed %d edits of a deleted room", n)
	}
	settle(t, e)
	for _, w := range fake.writes() {
		if w.op == "update" {
			t.Fatalf("unexpected update %v", w)
		}
	}
}

// ============================================================
// Mount, sync, export
// ============================================================

func TestMountFailureIsReturned(t *testing.T) {
	fake := &fakeRemote{failOn: "list features"}
	e := New(Config{}, surface.NewCanvas(), fake, nil, logging.Discard())
	defer e.Close(context.Background())
	if err := e.Mount(context.Background()); err == nil {
		t.Fatalf("expected mount error")
	}
	if e.Mounted() {
		t.Fatalf("failed mount must leave editor unmounted")
	}
}

func TestMountReplacesState(t *testing.T) {
	room := models.NewDrawnRoom(geo.RectangleAt(origin, 4, 4), 0)
	fake := &fakeRemote{tables: map[string][]models.Record{
		models.TableRooms: {room.Record()},
	}}
	e, canvas := newEditor(t, fake)
	if n := len(e.Snapshot().Rooms); n != 1 {
		t.Fatalf("rooms = %d", n)
	}
	for _, k := range models.Kinds {
		if canvas.Pushes(k) == 0 {
			t.Fatalf("layer %s never pushed", k)
		}
	}
}

func TestFailedWritesStayUnsynced(t *testing.T) {
	fake := &fakeRemote{failOn: "insert rooms"}
	e, _ := newEditor(t, fake)
	room, _ := e.Draw("r", geo.RectangleAt(origin, 4, 4))
	settle(t, e)

	if _, ok := e.store.Room(room.ID); !ok {
		t.Fatalf("optimistic room rolled back")
	}
	unsynced := e.Unsynced()
	if len(unsynced) != 1 || unsynced[0].ID != room.ID {
		t.Fatalf("unsynced = %+v", unsynced)
	}
	fake.mu.Lock()
	fake.failOn = ""
	fake.mu.Unlock()
	if n := e.Retry(); n != 1 {
		t.Fatalf("retried %d", n)
	}
	settle(t, e)
	if len(e.Unsynced()) != 0 {
		t.Fatalf("retry left unsynced writes")
	}
}

func TestExportImport(t *testing.T) {
	e, _ := newEditor(t, &fakeRemote{})
	room, _ := e.Draw("r", geo.RectangleAt(origin, 6, 6))
	e.Wallify(room.ID)
	e.PlaceFurniture("sofa", origin)
	e.CreatePOI(origin, POIInput{Title: "not exported"})

	doc := e.Export()
	if doc.Len() != 6 {
		t.Fatalf("export has %d features", doc.Len())
	}
	data, err := doc.Marshal()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	parsed, err := models.ParseExportDocument(data)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	other, _ := newEditor(t, &fakeRemote{})
	res := other.Import(parsed)
	if res.Rooms != 1 || res.Walls != 4 || res.Furniture != 1 || res.Skipped != 0 {
		t.Fatalf("import = %+v", res)
	}
	snap := other.Snapshot()
	for _, w := range snap.Walls {
		if w.RoomID != snap.Rooms[0].ID {
			t.Fatalf("imported wall not remapped to new room id")
		}
	}
	if snap.Rooms[0].ID == room.ID {
		t.Fatalf("import must issue fresh ids")
	}
}

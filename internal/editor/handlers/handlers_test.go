package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"indoormap/internal/common/logging"
	"indoormap/internal/editor"
	"indoormap/internal/editor/remote"
	"indoormap/internal/editor/sessions"
	"indoormap/internal/editor/surface"
	"indoormap/internal/geo"
	"indoormap/internal/mapdata/models"
	"indoormap/internal/mapdata/repository"
	"indoormap/internal/palette"
)

var origin = orb.Point{13.4050, 52.5200}

func newTestApp(t *testing.T) (*fiber.App, *sessions.Registry, *repository.Repository) {
	t.Helper()
	db, err := repository.OpenSQLite(filepath.Join(t.TempDir(), "editor.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	repo := repository.New(db, repository.DriverSQLite)
	if err := repo.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	rem := remote.NewRepositoryRemote(repo)
	cat := palette.Default()
	reg := sessions.NewRegistry(func(c *surface.Canvas) *editor.Editor {
		return editor.New(editor.Config{PanelDebounce: time.Hour}, c, rem, cat, logging.Discard())
	})
	t.Cleanup(func() { reg.CloseAll(context.Background()) })

	app := fiber.New()
	New(reg, cat).Register(app)
	return app, reg, repo
}

func do(t *testing.T, app *fiber.App, method, target string, body any) (int, []byte) {
	t.Helper()
	var r io.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, target, r)
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, target, err)
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, data
}

func open(t *testing.T, app *fiber.App) string {
	t.Helper()
	status, data := do(t, app, http.MethodPost, "/sessions", nil)
	if status != http.StatusCreated {
		t.Fatalf("open: %d %s", status, data)
	}
	var out struct {
		ID string `json:"id"`
	}
	json.Unmarshal(data, &out)
	return out.ID
}

func TestEditorSessionFlow(t *testing.T) {
	app, reg, repo := newTestApp(t)
	id := open(t, app)
	base := "/sessions/" + id

	draw := fiber.Map{"id": "gesture-1", "geometry": geojson.NewGeometry(geo.RectangleAt(origin, 10, 10))}
	status, data := do(t, app, http.MethodPost, base+"/draw", draw)
	var room editor.Created
	if status != http.StatusCreated || json.Unmarshal(data, &room) != nil || room.Kind != models.KindRoom {
		t.Fatalf("draw: %d %s", status, data)
	}
	if status, _ := do(t, app, http.MethodPost, base+"/draw", draw); status != http.StatusOK {
		t.Fatalf("duplicate draw: %d, want 200", status)
	}

	status, data = do(t, app, http.MethodPost, base+"/rooms/"+room.ID+"/wallify", nil)
	var wallified struct {
		Wallified bool                      `json:"wallified"`
		Walls     geojson.FeatureCollection `json:"walls"`
	}
	if status != http.StatusOK || json.Unmarshal(data, &wallified) != nil || !wallified.Wallified || len(wallified.Walls.Features) != 4 {
		t.Fatalf("wallify: %d %s", status, data)
	}

	status, data = do(t, app, http.MethodPost, base+"/furniture", fiber.Map{"itemType": "desk", "at": origin})
	if status != http.StatusCreated {
		t.Fatalf("place: %d %s", status, data)
	}

	status, data = do(t, app, http.MethodPost, base+"/click", fiber.Map{"at": origin})
	var click struct {
		Selected struct {
			Kind string `json:"kind"`
		} `json:"selected"`
		Handles []surface.Handle `json:"handles"`
	}
	if status != http.StatusOK || json.Unmarshal(data, &click) != nil || click.Selected.Kind != "furniture" || len(click.Handles) != 3 {
		t.Fatalf("click: %d %s", status, data)
	}

	if status, _ := do(t, app, http.MethodPost, base+"/drag/end", fiber.Map{"at": origin}); status != http.StatusConflict {
		t.Fatalf("drag end without start: %d, want 409", status)
	}

	status, data = do(t, app, http.MethodDelete, base+"/features/room/"+room.ID, nil)
	var del struct {
		Total int `json:"total"`
	}
	if status != http.StatusOK || json.Unmarshal(data, &del) != nil || del.Total != 6 {
		t.Fatalf("delete: %d %s", status, data)
	}

	status, data = do(t, app, http.MethodGet, base+"/export", nil)
	if status != http.StatusOK {
		t.Fatalf("export: %d %s", status, data)
	}
	if doc, err := models.ParseExportDocument(data); err != nil || doc.Len() != 0 {
		t.Fatalf("export doc: %v", err)
	}

	s, _ := reg.Resolve(id)
	if err := s.Editor.Flush(context.Background()); err != nil {
		t.Fatalf("flush: %v", err)
	}
	for _, table := range []string{models.TableRooms, models.TableFeatures} {
		recs, err := repo.List(context.Background(), table)
		if err != nil || len(recs) != 0 {
			t.Fatalf("%s left in storage: %v %v", table, recs, err)
		}
	}

	if status, _ := do(t, app, http.MethodDelete, base, nil); status != http.StatusOK {
		t.Fatalf("close: %d", status)
	}
	if status, _ := do(t, app, http.MethodGet, base, nil); status != http.StatusNotFound {
		t.Fatalf("closed session: %d, want 404", status)
	}
}

func TestEditorRequestErrors(t *testing.T) {
	app, _, _ := newTestApp(t)
	id := open(t, app)
	base := "/sessions/" + id

	cases := []struct {
		method, target string
		body           any
		want           int
	}{
		{http.MethodGet, "/sessions/nope", nil, http.StatusNotFound},
		{http.MethodPost, base + "/tool", fiber.Map{"tool": "lasso"}, http.StatusBadRequest},
		{http.MethodPost, base + "/furniture", fiber.Map{"itemType": "throne", "at": origin}, http.StatusBadRequest},
		{http.MethodPost, base + "/rooms/missing/wallify", nil, http.StatusNotFound},
		{http.MethodDelete, base + "/features/door/x", nil, http.StatusBadRequest},
		{http.MethodPost, base + "/drag/start", fiber.Map{"handle": "room:x:spin", "at": origin}, http.StatusBadRequest},
		{http.MethodPost, base + "/import", fiber.Map{"walls": 1}, http.StatusBadRequest},
		{http.MethodPost, base + "/click", nil, http.StatusBadRequest},
	}
	for _, c := range cases {
		if status, data := do(t, app, c.method, c.target, c.body); status != c.want {
			t.Fatalf("%s %s: %d %s, want %d", c.method, c.target, status, data, c.want)
		}
	}
}

func TestPOIWithEvent(t *testing.T) {
	app, reg, repo := newTestApp(t)
	id := open(t, app)
	base := "/sessions/" + id

	status, data := do(t, app, http.MethodPost, base+"/poi", fiber.Map{
		"at":       origin,
		"title":    "Demo day",
		"category": models.CategoryEvent,
		"event":    fiber.Map{"name": "Demo", "participants": []string{"u1"}},
	})
	var created struct {
		POI   geojson.Feature `json:"poi"`
		Event models.Event    `json:"event"`
	}
	if status != http.StatusCreated || json.Unmarshal(data, &created) != nil || created.Event.Name != "Demo" {
		t.Fatalf("create poi: %d %s", status, data)
	}
	poiID := created.POI.Properties.MustString("id")

	status, data = do(t, app, http.MethodPut, base+"/poi/"+poiID+"/event", fiber.Map{"name": "Demo v2"})
	if status != http.StatusOK {
		t.Fatalf("set event: %d %s", status, data)
	}

	s, _ := reg.Resolve(id)
	s.Editor.Flush(context.Background())
	events, _ := repo.List(context.Background(), models.TableEvents)
	if len(events) != 1 || events[0].Str("name") != "Demo v2" || events[0].Str("poi_id") != poiID {
		t.Fatalf("events = %v", events)
	}
}

type offlineRemote struct{}

func (offlineRemote) List(context.Context, string) ([]models.Record, error) {
	return nil, errors.New("connection refused")
}
func (offlineRemote) Insert(context.Context, string, models.Record) error         { return nil }
func (offlineRemote) Update(context.Context, string, string, models.Record) error { return nil }
func (offlineRemote) Delete(context.Context, string, string) error                { return nil }
func (offlineRemote) DeleteWhere(context.Context, string, string, string) error   { return nil }

func TestOpenReportsLoadFailure(t *testing.T) {
	reg := sessions.NewRegistry(func(c *surface.Canvas) *editor.Editor {
		return editor.New(editor.Config{}, c, offlineRemote{}, nil, logging.Discard())
	})
	app := fiber.New()
	New(reg, palette.Default()).Register(app)

	if status, data := do(t, app, http.MethodPost, "/sessions", nil); status != http.StatusBadGateway {
		t.Fatalf("open: %d %s, want 502", status, data)
	}
}

package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/paulmach/orb"

	"indoormap/internal/geo"
	"indoormap/internal/mapdata/models"
	"indoormap/internal/mapdata/repository"
	"indoormap/internal/mapdata/service"
)

func newTestApp(t *testing.T) *fiber.App {
	t.Helper()
	dir := t.TempDir()
	db, err := repository.OpenSQLite(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	repo := repository.New(db, repository.DriverSQLite)
	if err := repo.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	svc, err := service.New(repo, service.NewObjectStore(filepath.Join(dir, "objects"), "http://files.test"))
	if err != nil {
		t.Fatalf("service: %v", err)
	}
	t.Cleanup(svc.Close)

	app := fiber.New()
	New(svc).Register(app)
	return app
}

func do(t *testing.T, app *fiber.App, method, target string, body []byte, contentType string) (int, []byte) {
	t.Helper()
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, target, err)
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, data
}

func TestRestRoundTrip(t *testing.T) {
	app := newTestApp(t)
	poi := models.POI{ID: "p1", Point: orb.Point{13.4, 52.5}, Title: "Cafe", Category: models.CategoryEvent}
	body, _ := json.Marshal(poi.Record())

	if status, data := do(t, app, http.MethodPost, "/rest/poi", body, "application/json"); status != http.StatusCreated {
		t.Fatalf("insert: %d %s", status, data)
	}
	ev := models.Event{ID: "e1", Name: "Launch", POIID: "p1"}
	body, _ = json.Marshal(ev.Record())
	if status, data := do(t, app, http.MethodPost, "/rest/events", body, "application/json"); status != http.StatusCreated {
		t.Fatalf("insert event: %d %s", status, data)
	}

	status, data := do(t, app, http.MethodPatch, "/rest/poi/p1", []byte(`{"title":"Bar"}`), "application/json")
	if status != http.StatusOK {
		t.Fatalf("patch: %d %s", status, data)
	}

	status, data = do(t, app, http.MethodGet, "/rest/poi", nil, "")
	var recs []models.Record
	if status != http.StatusOK || json.Unmarshal(data, &recs) != nil || len(recs) != 1 {
		t.Fatalf("list: %d %s", status, data)
	}
	got, err := models.POIFromRecord(recs[0])
	if err != nil || got.Title != "Bar" || got.Category != models.CategoryEvent {
		t.Fatalf("poi = %+v (%v)", got, err)
	}

	status, data = do(t, app, http.MethodDelete, "/rest/events?column=poi_id&value=p1", nil, "")
	if status != http.StatusOK || !strings.Contains(string(data), `"deleted":1`) {
		t.Fatalf("delete where: %d %s", status, data)
	}
	if status, _ := do(t, app, http.MethodDelete, "/rest/poi/p1", nil, ""); status != http.StatusOK {
		t.Fatalf("delete: %d", status)
	}
	if status, _ := do(t, app, http.MethodDelete, "/rest/poi/p1", nil, ""); status != http.StatusNotFound {
		t.Fatalf("second delete: %d, want 404", status)
	}
}

func TestRestErrors(t *testing.T) {
	app := newTestApp(t)
	cases := []struct {
		method, target, body string
		want                 int
	}{
		{http.MethodGet, "/rest/secrets", "", http.StatusNotFound},
		{http.MethodPost, "/rest/rooms", "{", http.StatusBadRequest},
		{http.MethodPost, "/rest/rooms", `{"nope":1}`, http.StatusBadRequest},
		{http.MethodPatch, "/rest/rooms/missing", `{"title":"x"}`, http.StatusNotFound},
		{http.MethodDelete, "/rest/rooms", "", http.StatusBadRequest},
	}
	for _, c := range cases {
		status, data := do(t, app, c.method, c.target, []byte(c.body), "application/json")
		if status != c.want {
			t.Fatalf("%s %s: %d %s, want %d", c.method, c.target, status, data, c.want)
		}
	}
}

func TestUploadExportAndFiles(t *testing.T) {
	app := newTestApp(t)

	poly := geo.RectangleAt(orb.Point{13.4, 52.5}, 1, 1)
	geom, _ := models.EncodeGeometry(poly)

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, _ := w.CreateFormFile("file", "chair.png")
	part.Write([]byte("PNGDATA"))
	w.WriteField("name", "chair")
	w.WriteField("geometry", geom)
	w.WriteField("properties", `{"type":"furniture","label":"Chair"}`)
	w.Close()

	status, data := do(t, app, http.MethodPost, "/upload", buf.Bytes(), w.FormDataContentType())
	if status != http.StatusCreated {
		t.Fatalf("upload: %d %s", status, data)
	}
	var out models.Record
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("decode upload: %v", err)
	}
	url := out.Str("url")
	key := strings.TrimPrefix(url, "http://files.test/")
	if !strings.HasPrefix(key, "floor-plans/") || !strings.HasSuffix(key, "-chair.png") {
		t.Fatalf("object key = %s", key)
	}

	status, data = do(t, app, http.MethodGet, "/files/"+key, nil, "")
	if status != http.StatusOK || string(data) != "PNGDATA" {
		t.Fatalf("file: %d %q", status, data)
	}

	status, data = do(t, app, http.MethodGet, "/export", nil, "")
	if status != http.StatusOK {
		t.Fatalf("export: %d %s", status, data)
	}
	doc, err := models.ParseExportDocument(data)
	if err != nil {
		t.Fatalf("parse export: %v", err)
	}
	_, _, furniture, errs := doc.Entities()
	if len(errs) != 0 || len(furniture) != 1 || furniture[0].Label != "Chair" || furniture[0].Icon != url {
		t.Fatalf("exported furniture = %+v (%v)", furniture, errs)
	}
}

func TestUploadValidation(t *testing.T) {
	app := newTestApp(t)

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, _ := w.CreateFormFile("file", "a.png")
	part.Write([]byte("x"))
	w.WriteField("geometry", `{"type":"Polygon","coordinates":[]}`)
	w.WriteField("properties", `{"type":"door"}`)
	w.Close()

	status, data := do(t, app, http.MethodPost, "/upload", buf.Bytes(), w.FormDataContentType())
	if status != http.StatusBadRequest {
		t.Fatalf("upload: %d %s, want 400", status, data)
	}
}

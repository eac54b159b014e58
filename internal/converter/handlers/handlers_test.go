package handlers

import (
	"bytes"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v3"

	plan "indoormap/internal/mapdata/models"
	"indoormap/internal/palette"
)

const georefQuery = "?originLon=13.405&originLat=52.52&metersPerUnit=0.01"

func newTestApp() *fiber.App {
	app := fiber.New()
	New(0.3, 3, palette.Default()).Register(app)
	return app
}

func officeSVG(t *testing.T) []byte {
	t.Helper()
	data, err := os.ReadFile("../testdata/office.svg")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	return data
}

func send(t *testing.T, app *fiber.App, target, contentType string, body []byte) (*http.Response, []byte) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, target, bytes.NewReader(body))
	req.Header.Set("Content-Type", contentType)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("POST %s: %v", target, err)
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	return resp, data
}

func TestConvertRawBody(t *testing.T) {
	app := newTestApp()
	resp, data := send(t, app, "/convert"+georefQuery, "image/svg+xml", officeSVG(t))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d: %s", resp.StatusCode, data)
	}
	doc, err := plan.ParseExportDocument(data)
	if err != nil || doc.Len() != 5 {
		t.Fatalf("document: %v", err)
	}
	if got := resp.Header.Get("X-Skipped-Elements"); got != "2" {
		t.Fatalf("skipped header = %q", got)
	}
}

func TestConvertMultipart(t *testing.T) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, _ := w.CreateFormFile("file", "office.svg")
	part.Write(officeSVG(t))
	w.WriteField("originLon", "13.405")
	w.WriteField("originLat", "52.52")
	w.WriteField("metersPerUnit", "0.01")
	w.Close()

	resp, data := send(t, newTestApp(), "/convert", w.FormDataContentType(), body.Bytes())
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d: %s", resp.StatusCode, data)
	}
}

func TestConvertRejects(t *testing.T) {
	app := newTestApp()
	cases := []struct {
		target string
		body   []byte
	}{
		{"/convert", officeSVG(t)},
		{"/convert?originLon=x&originLat=52.52&metersPerUnit=0.01", officeSVG(t)},
		{"/convert" + georefQuery, nil},
		{"/convert" + georefQuery, []byte("<svg><rect")},
	}
	for _, c := range cases {
		if resp, data := send(t, app, c.target, "image/svg+xml", c.body); resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("%s: status %d: %s", c.target, resp.StatusCode, data)
		}
	}
}

func TestRender(t *testing.T) {
	app := newTestApp()
	_, doc := send(t, app, "/convert"+georefQuery, "image/svg+xml", officeSVG(t))

	resp, svg := send(t, app, "/render", "application/json", doc)
	if resp.StatusCode != http.StatusOK || !strings.HasPrefix(resp.Header.Get("Content-Type"), "image/svg+xml") {
		t.Fatalf("status %d: %s", resp.StatusCode, svg)
	}
	if !strings.Contains(string(svg), `id="Room_Hall"`) {
		t.Fatalf("svg = %s", svg)
	}

	resp, pdf := send(t, app, "/render?format=pdf", "application/json", doc)
	if resp.StatusCode != http.StatusOK || resp.Header.Get("Content-Type") != "application/pdf" || !bytes.HasPrefix(pdf, []byte("%PDF-")) {
		t.Fatalf("pdf: status %d type %q", resp.StatusCode, resp.Header.Get("Content-Type"))
	}

	if resp, _ := send(t, app, "/render", "application/json", []byte(`{"walls":[]}`)); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("invalid document: status %d", resp.StatusCode)
	}
}

package proxy

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"

	"indoormap/internal/common/health"
	"indoormap/internal/common/logging"
)

// hop-by-hop and length headers are rewritten by fiber itself
var skipResponseHeaders = map[string]bool{
	"Connection":        true,
	"Content-Length":    true,
	"Keep-Alive":        true,
	"Transfer-Encoding": true,
}

var forwardHeaders = []string{"Authorization", "Accept", "Accept-Language", "If-None-Match"}

// ============================================================
// Proxy Handler
// ============================================================

type Proxy struct {
	client *http.Client
	log    *slog.Logger
}

func New(timeout time.Duration) *Proxy {
	return &Proxy{
		client: &http.Client{Timeout: timeout},
		log:    logging.WithComponent("proxy"),
	}
}

// To проксирует запрос на фиксированный URL, сохраняя query string.
func (p *Proxy) To(targetURL string) fiber.Handler {
	return func(c fiber.Ctx) error {
		return p.Forward(c, withQuery(c, targetURL))
	}
}

// Under проксирует wildcard-маршрут: хвост пути после префикса
// дописывается к base.
func (p *Proxy) Under(base string) fiber.Handler {
	base = strings.TrimRight(base, "/")
	return func(c fiber.Ctx) error {
		return p.Forward(c, withQuery(c, base+"/"+c.Params("*")))
	}
}

// Forward проксирует любой метод с учетом multipart/raw.
func (p *Proxy) Forward(c fiber.Ctx, targetURL string) error {
	contentType := c.Get("Content-Type")
	p.log.Debug("forward", "method", c.Method(), "path", c.Path(), "target", targetURL,
		"content_type", contentType, "bytes", len(c.Body()))

	var (
		body []byte
		err  error
	)
	if strings.HasPrefix(contentType, "multipart/form-data") {
		body, contentType, err = repackMultipart(c)
		if err != nil {
			p.log.Warn("bad multipart body", "path", c.Path(), "error", err)
			return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "invalid multipart data"})
		}
	} else {
		body = c.Body()
	}

	req, err := http.NewRequestWithContext(c.Context(), c.Method(), targetURL, bytes.NewReader(body))
	if err != nil {
		p.log.Error("build request", "target", targetURL, "error", err)
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": "proxy failed"})
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for _, h := range forwardHeaders {
		if v := c.Get(h); v != "" {
			req.Header.Set(h, v)
		}
	}

	resp, err := p.client.Do(req)
	if err != nil {
		p.log.Warn("upstream unreachable", "target", targetURL, "error", err)
		return c.Status(http.StatusBadGateway).JSON(fiber.Map{"error": "failed to reach upstream service"})
	}
	defer resp.Body.Close()

	return p.copyResponse(c, resp)
}

// Check reports whether an upstream answers its liveness probe.
func (p *Proxy) Check(baseURL string) health.Check {
	target := strings.TrimRight(baseURL, "/") + "/health/live"
	return func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return err
		}
		resp, err := p.client.Do(req)
		if err != nil {
			return err
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("%s: status %d", target, resp.StatusCode)
		}
		return nil
	}
}

// repackMultipart rebuilds the form so the upstream gets a fresh boundary
// and every part, fields first.
func repackMultipart(c fiber.Ctx) ([]byte, string, error) {
	form, err := c.MultipartForm()
	if err != nil {
		return nil, "", err
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	for key, values := range form.Value {
		for _, value := range values {
			if err := writer.WriteField(key, value); err != nil {
				return nil, "", err
			}
		}
	}

	for key, files := range form.File {
		for _, fh := range files {
			h := make(textproto.MIMEHeader)
			h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, key, fh.Filename))
			if ct := fh.Header.Get("Content-Type"); ct != "" {
				h.Set("Content-Type", ct)
			}
			part, err := writer.CreatePart(h)
			if err != nil {
				return nil, "", err
			}
			f, err := fh.Open()
			if err != nil {
				return nil, "", err
			}
			_, err = io.Copy(part, f)
			f.Close()
			if err != nil {
				return nil, "", err
			}
		}
	}

	if err := writer.Close(); err != nil {
		return nil, "", err
	}
	return body.Bytes(), writer.FormDataContentType(), nil
}

func (p *Proxy) copyResponse(c fiber.Ctx, resp *http.Response) error {
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		p.log.Warn("read upstream response", "error", err)
		return c.Status(http.StatusBadGateway).JSON(fiber.Map{"error": "invalid upstream response"})
	}

	for key, values := range resp.Header {
		if len(values) > 0 && !skipResponseHeaders[key] {
			c.Set(key, values[0])
		}
	}

	c.Status(resp.StatusCode)
	return c.Send(data)
}

func withQuery(c fiber.Ctx, target string) string {
	if q := c.Request().URI().QueryString(); len(q) > 0 {
		return target + "?" + string(q)
	}
	return target
}

package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"indoormap/internal/mapdata/models"
)

// HTTPRemote talks to the mapdata REST API.
type HTTPRemote struct {
	base   string
	client *http.Client
}

func NewHTTPRemote(baseURL string, timeout time.Duration) *HTTPRemote {
	return &HTTPRemote{
		base:   strings.TrimRight(baseURL, "/"),
		client: &http.Client{Timeout: timeout},
	}
}

func (h *HTTPRemote) List(ctx context.Context, table string) ([]models.Record, error) {
	var out []models.Record
	if err := h.do(ctx, http.MethodGet, h.tableURL(table, ""), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (h *HTTPRemote) Insert(ctx context.Context, table string, rec models.Record) error {
	return h.do(ctx, http.MethodPost, h.tableURL(table, ""), rec, nil)
}

func (h *HTTPRemote) Update(ctx context.Context, table, id string, patch models.Record) error {
	return h.do(ctx, http.MethodPatch, h.tableURL(table, id), patch, nil)
}

func (h *HTTPRemote) Delete(ctx context.Context, table, id string) error {
	return h.do(ctx, http.MethodDelete, h.tableURL(table, id), nil, nil)
}

func (h *HTTPRemote) DeleteWhere(ctx context.Context, table, column, value string) error {
	q := url.Values{"column": {column}, "value": {value}}
	return h.do(ctx, http.MethodDelete, h.tableURL(table, "")+"?"+q.Encode(), nil, nil)
}

func (h *HTTPRemote) tableURL(table, id string) string {
	u := h.base + "/rest/" + url.PathEscape(table)
	if id != "" {
		u += "/" + url.PathEscape(id)
	}
	return u
}

func (h *HTTPRemote) do(ctx context.Context, method, target string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, target, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, target, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read %s %s: %w", method, target, err)
	}
	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%s %s: %w", method, target, ErrNotFound)
	}
	if resp.StatusCode >= 300 {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(data, &e)
		if e.Error == "" {
			e.Error = http.StatusText(resp.StatusCode)
		}
		return fmt.Errorf("%s %s: %d %s", method, target, resp.StatusCode, e.Error)
	}
	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decode %s %s: %w", method, target, err)
		}
	}
	return nil
}

package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/paulmach/orb"

	"indoormap/internal/common/logging"
	"indoormap/internal/geo"
	"indoormap/internal/mapdata/models"
	"indoormap/internal/mapdata/repository"
)

const exportKey = "export"

var ErrBadUpload = errors.New("bad upload")

// Service fronts the repository with a read cache, object storage and
// the export document.
type Service struct {
	repo    *repository.Repository
	objects *ObjectStore
	lists   *cache[[]models.Record]
	export  *cache[*models.ExportDocument]
	log     *slog.Logger
}

func New(repo *repository.Repository, objects *ObjectStore) (*Service, error) {
	lists, err := newCache[[]models.Record]()
	if err != nil {
		return nil, fmt.Errorf("list cache: %w", err)
	}
	export, err := newCache[*models.ExportDocument]()
	if err != nil {
		return nil, fmt.Errorf("export cache: %w", err)
	}
	return &Service{
		repo:    repo,
		objects: objects,
		lists:   lists,
		export:  export,
		log:     logging.WithComponent("mapdata"),
	}, nil
}

func (s *Service) Close() {
	s.lists.close()
	s.export.close()
}

func (s *Service) Objects() *ObjectStore { return s.objects }

func (s *Service) Ping(ctx context.Context) error { return s.repo.Ping(ctx) }

// ============================================================
// Tables
// ============================================================

// List serves unfiltered listings from the cache.
func (s *Service) List(ctx context.Context, table string, filters ...repository.Filter) ([]models.Record, error) {
	if len(filters) > 0 {
		return s.repo.List(ctx, table, filters...)
	}
	if recs, ok := s.lists.get(table); ok {
		return recs, nil
	}
	recs, err := s.repo.List(ctx, table)
	if err != nil {
		return nil, err
	}
	s.lists.set(table, recs, int64(len(recs)))
	return recs, nil
}

func (s *Service) Insert(ctx context.Context, table string, rec models.Record) (models.Record, error) {
	out, err := s.repo.Insert(ctx, table, rec)
	if err != nil {
		return nil, err
	}
	s.invalidate(table)
	return out, nil
}

func (s *Service) Update(ctx context.Context, table, id string, patch models.Record) error {
	if err := s.repo.Update(ctx, table, id, patch); err != nil {
		return err
	}
	s.invalidate(table)
	return nil
}

func (s *Service) Delete(ctx context.Context, table, id string) error {
	if err := s.repo.Delete(ctx, table, id); err != nil {
		return err
	}
	s.invalidate(table)
	return nil
}

func (s *Service) DeleteWhere(ctx context.Context, table, column, value string) (int64, error) {
	n, err := s.repo.DeleteWhere(ctx, table, column, value)
	if err != nil {
		return 0, err
	}
	s.invalidate(table)
	return n, nil
}

func (s *Service) invalidate(table string) {
	s.lists.del(table)
	if table == models.TableRooms || table == models.TableFeatures {
		s.export.del(exportKey)
	}
}

// ============================================================
// Export
// ============================================================

// Export assembles walls, rooms and furniture into the export document.
// Rows with invalid geometry are skipped.
func (s *Service) Export(ctx context.Context) (*models.ExportDocument, error) {
	if doc, ok := s.export.get(exportKey); ok {
		return doc, nil
	}

	roomRecs, err := s.List(ctx, models.TableRooms)
	if err != nil {
		return nil, err
	}
	featureRecs, err := s.List(ctx, models.TableFeatures)
	if err != nil {
		return nil, err
	}

	var (
		walls     []models.Wall
		rooms     []models.Room
		furniture []models.Furniture
	)
	for _, rec := range roomRecs {
		r, err := models.RoomFromRecord(rec)
		if err != nil {
			s.log.Warn("skip room", "id", rec.Str("id"), "error", err)
			continue
		}
		rooms = append(rooms, r)
	}
	for _, rec := range featureRecs {
		e, err := models.FeatureFromRecord(rec)
		if err != nil {
			s.log.Warn("skip feature", "id", rec.Str("id"), "error", err)
			continue
		}
		switch v := e.(type) {
		case models.Wall:
			walls = append(walls, v)
		case models.Furniture:
			furniture = append(furniture, v)
		}
	}

	doc := models.NewExportDocument(walls, rooms, furniture)
	s.export.set(exportKey, doc, int64(doc.Len()))
	return doc, nil
}

// ============================================================
// Upload
// ============================================================

type Upload struct {
	Filename   string
	Data       []byte
	Name       string
	Geometry   []byte
	Properties []byte
}

// uploadColumns are the feature properties an upload may set.
var uploadColumns = []string{"width", "height", "for", "icon", "label", "rotation", "scaleX", "scaleY"}

// Upload stores the file and inserts the feature row it belongs to. If
// the insert fails the stored file is removed again.
func (s *Service) Upload(ctx context.Context, up Upload) (models.Record, error) {
	if len(up.Data) == 0 {
		return nil, fmt.Errorf("%w: empty file", ErrBadUpload)
	}
	if err := models.ValidateJSON(models.SchemaGeometry, up.Geometry); err != nil {
		return nil, fmt.Errorf("%w: geometry: %v", ErrBadUpload, err)
	}
	if err := models.ValidateJSON(models.SchemaProperties, up.Properties); err != nil {
		return nil, fmt.Errorf("%w: properties: %v", ErrBadUpload, err)
	}
	var props models.Record
	if err := json.Unmarshal(up.Properties, &props); err != nil {
		return nil, fmt.Errorf("%w: properties: %v", ErrBadUpload, err)
	}

	rec := models.Record{
		"id":   models.NewID(),
		"type": props.Str("type"),
		"name": up.Name,
	}
	for _, col := range uploadColumns {
		if v, ok := props[col]; ok {
			rec[col] = v
		}
	}
	geom, err := uploadGeometry(up.Geometry, rec)
	if err != nil {
		return nil, err
	}
	rec["geometry"] = geom
	if rec.Str("type") == string(models.KindFurniture) {
		if _, ok := rec["originalGeometry"]; !ok && rec.Float("rotation") == 0 {
			rec["originalGeometry"] = geom
		}
		if _, ok := rec["scaleX"]; !ok {
			rec["scaleX"] = 1.0
		}
		if _, ok := rec["scaleY"]; !ok {
			rec["scaleY"] = 1.0
		}
	}

	key := s.objects.FloorPlanKey(up.Filename)
	url, err := s.objects.Put(key, up.Data)
	if err != nil {
		return nil, err
	}
	if rec.Str("icon") == "" {
		rec["icon"] = url
	}

	if _, err := models.FeatureFromRecord(rec); err != nil {
		s.removeObject(key)
		return nil, fmt.Errorf("%w: %v", ErrBadUpload, err)
	}
	out, err := s.Insert(ctx, models.TableFeatures, rec)
	if err != nil {
		s.removeObject(key)
		return nil, err
	}
	out["url"] = url
	s.log.Info("upload stored", "key", key, "feature", out.Str("id"))
	return out, nil
}

func (s *Service) removeObject(key string) {
	if err := s.objects.Delete(key); err != nil {
		s.log.Error("remove orphaned upload", "key", key, "error", err)
	}
}

// uploadGeometry accepts a polygon, or a wall centerline that is buffered
// to the wall width.
func uploadGeometry(raw []byte, rec models.Record) (string, error) {
	g, err := models.DecodeGeometry(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrBadUpload, err)
	}
	switch v := g.(type) {
	case orb.Polygon:
		return models.EncodeGeometry(v)
	case orb.LineString:
		if rec.Str("type") != string(models.KindWall) {
			return "", fmt.Errorf("%w: only walls accept a line", ErrBadUpload)
		}
		poly, err := geo.BufferLine(v, geo.WallHalfWidth(rec.Float("width")))
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrBadUpload, err)
		}
		return models.EncodeGeometry(poly)
	}
	return "", fmt.Errorf("%w: unsupported geometry %s", ErrBadUpload, g.GeoJSONType())
}

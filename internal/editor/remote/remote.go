// Package remote persists editor mutations to the map data tables and
// loads them back on mount.
package remote

import (
	"context"
	"errors"
	"log/slog"

	"indoormap/internal/mapdata/models"
	"indoormap/internal/mapdata/repository"
)

// ErrNotFound is returned when the remote row does not exist.
var ErrNotFound = errors.New("remote row not found")

// Remote is the table API the editor writes through. Each call is an
// independent write; there are no transactions across calls.
type Remote interface {
	List(ctx context.Context, table string) ([]models.Record, error)
	Insert(ctx context.Context, table string, rec models.Record) error
	Update(ctx context.Context, table, id string, patch models.Record) error
	Delete(ctx context.Context, table, id string) error
	DeleteWhere(ctx context.Context, table, column, value string) error
}

// ============================================================
// In-process remote
// ============================================================

// RepositoryRemote writes straight to a mapdata repository.
type RepositoryRemote struct {
	repo *repository.Repository
}

func NewRepositoryRemote(repo *repository.Repository) *RepositoryRemote {
	return &RepositoryRemote{repo: repo}
}

func (r *RepositoryRemote) List(ctx context.Context, table string) ([]models.Record, error) {
	return r.repo.List(ctx, table)
}

func (r *RepositoryRemote) Insert(ctx context.Context, table string, rec models.Record) error {
	_, err := r.repo.Insert(ctx, table, rec)
	return err
}

func (r *RepositoryRemote) Update(ctx context.Context, table, id string, patch models.Record) error {
	return notFound(r.repo.Update(ctx, table, id, patch))
}

func (r *RepositoryRemote) Delete(ctx context.Context, table, id string) error {
	return notFound(r.repo.Delete(ctx, table, id))
}

func (r *RepositoryRemote) DeleteWhere(ctx context.Context, table, column, value string) error {
	_, err := r.repo.DeleteWhere(ctx, table, column, value)
	return err
}

func notFound(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return errors.Join(ErrNotFound, err)
	}
	return err
}

// ============================================================
// Load
// ============================================================

// Loaded is the full editor state read on mount.
type Loaded struct {
	Walls     []models.Wall
	Rooms     []models.Room
	Furniture []models.Furniture
	POIs      []models.POI
	Events    []models.Event
	Dropped   int
}

// Load fetches every table the editor shows. Rows that fail validation
// are logged and skipped; any read error aborts the load.
func Load(ctx context.Context, r Remote, log *slog.Logger) (*Loaded, error) {
	if log == nil {
		log = slog.Default()
	}
	out := &Loaded{}

	rooms, err := r.List(ctx, models.TableRooms)
	if err != nil {
		return nil, err
	}
	for _, rec := range rooms {
		room, err := models.RoomFromRecord(rec)
		if err != nil {
			out.Dropped++
			log.Warn("invalid room skipped", "id", rec.Str("id"), "error", err)
			continue
		}
		out.Rooms = append(out.Rooms, room)
	}

	features, err := r.List(ctx, models.TableFeatures)
	if err != nil {
		return nil, err
	}
	for _, rec := range features {
		e, err := models.FeatureFromRecord(rec)
		if err != nil {
			out.Dropped++
			log.Warn("invalid feature skipped", "id", rec.Str("id"), "type", rec.Str("type"), "error", err)
			continue
		}
		switch v := e.(type) {
		case models.Wall:
			out.Walls = append(out.Walls, v)
		case models.Furniture:
			out.Furniture = append(out.Furniture, v)
		}
	}

	pois, err := r.List(ctx, models.TablePOI)
	if err != nil {
		return nil, err
	}
	for _, rec := range pois {
		poi, err := models.POIFromRecord(rec)
		if err != nil {
			out.Dropped++
			log.Warn("invalid poi skipped", "id", rec.Str("id"), "error", err)
			continue
		}
		out.POIs = append(out.POIs, poi)
	}

	events, err := r.List(ctx, models.TableEvents)
	if err != nil {
		return nil, err
	}
	for _, rec := range events {
		ev, err := models.EventFromRecord(rec)
		if err != nil {
			log.Warn("invalid event skipped", "id", rec.Str("id"), "error", err)
			continue
		}
		out.Events = append(out.Events, ev)
	}
	return out, nil
}

package remote

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/paulmach/orb"

	"indoormap/internal/common/logging"
	"indoormap/internal/geo"
	"indoormap/internal/mapdata/models"
	"indoormap/internal/mapdata/repository"
)

// fakeRemote records calls and fails the ones fail selects.
type fakeRemote struct {
	mu     sync.Mutex
	calls  []string
	tables map[string][]models.Record
	fail   func(op, table, id string) error
	delay  time.Duration
}

func (f *fakeRemote) record(op, table, id string) error {
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, op+" "+table+"/"+id)
	if f.fail != nil {
		return f.fail(op, table, id)
	}
	return nil
}

func (f *fakeRemote) List(_ context.Context, table string) ([]models.Record, error) {
	if err := f.record("list", table, ""); err != nil {
		return nil, err
	}
	return f.tables[table], nil
}

func (f *fakeRemote) Insert(_ context.Context, table string, rec models.Record) error {
	return f.record("insert", table, rec.Str("id"))
}

func (f *fakeRemote) Update(_ context.Context, table, id string, _ models.Record) error {
	return f.record("update", table, id)
}

func (f *fakeRemote) Delete(_ context.Context, table, id string) error {
	return f.record("delete", table, id)
}

func (f *fakeRemote) DeleteWhere(_ context.Context, table, column, value string) error {
	return f.record("delete_where", table, column+"="+value)
}

func (f *fakeRemote) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func TestSyncerKeepsOrder(t *testing.T) {
	fake := &fakeRemote{delay: 2 * time.Millisecond}
	s := NewSyncer(fake, time.Second, logging.Discard())
	defer s.Close(context.Background())

	s.Insert(models.TableRooms, models.Record{"id": "r1"})
	s.Update(models.TableRooms, "r1", models.Record{"title": "A"})
	s.Update(models.TableRooms, "r1", models.Record{"title": "B"})
	s.Delete(models.TableRooms, "r1")
	s.DeleteWhere(models.TableEvents, "poi_id", "p1")

	if err := s.Flush(context.Background()); err != nil {
		t.Fatalf("flush: %v", err)
	}
	want := []string{"insert rooms/r1", "update rooms/r1", "update rooms/r1", "delete rooms/r1", "delete_where events/poi_id=p1"}
	got := fake.Calls()
	if len(got) != len(want) {
		t.Fatalf("calls = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("call %d = %q, want %q (all: %v)", i, got[i], want[i], got)
		}
	}
	if s.Pending() != 0 {
		t.Fatalf("pending after flush = %d", s.Pending())
	}
}

func TestSyncerUnsyncedAndRetry(t *testing.T) {
	var down sync.Mutex
	offline := true
	fake := &fakeRemote{fail: func(op, table, id string) error {
		down.Lock()
		defer down.Unlock()
		if offline && id == "w1" {
			return errors.New("connection refused")
		}
		return nil
	}}
	s := NewSyncer(fake, time.Second, logging.Discard())
	defer s.Close(context.Background())

	var outcomes []Outcome
	var omu sync.Mutex
	s.Observe(func(o Outcome) {
		omu.Lock()
		outcomes = append(outcomes, o)
		omu.Unlock()
	})

	s.Insert(models.TableFeatures, models.Record{"id": "w1"})
	s.Insert(models.TableFeatures, models.Record{"id": "w2"})
	s.Flush(context.Background())

	unsynced := s.Unsynced()
	if len(unsynced) != 1 || unsynced[0].ID != "w1" || unsynced[0].Attempts != 1 || unsynced[0].LastErr == "" {
		t.Fatalf("unsynced = %+v", unsynced)
	}
	omu.Lock()
	if len(outcomes) != 2 || outcomes[0].Err == nil || outcomes[1].Err != nil {
		t.Fatalf("outcomes = %+v", outcomes)
	}
	omu.Unlock()

	down.Lock()
	offline = false
	down.Unlock()

	if n := s.Retry(); n != 1 {
		t.Fatalf("retry requeued %d", n)
	}
	s.Flush(context.Background())
	if len(s.Unsynced()) != 0 {
		t.Fatalf("retry should clear unsynced: %+v", s.Unsynced())
	}
	calls := fake.Calls()
	if calls[len(calls)-1] != "insert features/w1" {
		t.Fatalf("last call = %s", calls[len(calls)-1])
	}
}

// rowRemote keeps row values so tests can compare remote and local state.
type rowRemote struct {
	fakeRemote
	rows map[string]models.Record
}

func (r *rowRemote) Insert(ctx context.Context, table string, rec models.Record) error {
	if err := r.fakeRemote.Insert(ctx, table, rec); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	row := models.Record{}
	for k, v := range rec {
		row[k] = v
	}
	r.rows[table+"/"+rec.Str("id")] = row
	return nil
}

func (r *rowRemote) Update(ctx context.Context, table, id string, patch models.Record) error {
	if err := r.fakeRemote.Update(ctx, table, id, patch); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[table+"/"+id]
	if !ok {
		return ErrNotFound
	}
	for k, v := range patch {
		row[k] = v
	}
	return nil
}

func (r *rowRemote) Delete(ctx context.Context, table, id string) error {
	if err := r.fakeRemote.Delete(ctx, table, id); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.rows, table+"/"+id)
	return nil
}

func (r *rowRemote) row(table, id string) (models.Record, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[table+"/"+id]
	return row, ok
}

// failFirst fails the first call matching op, then lets everything through.
func failFirst(op string) func(string, string, string) error {
	failed := false
	return func(o, _, _ string) error {
		if o == op && !failed {
			failed = true
			return errors.New("connection reset")
		}
		return nil
	}
}

func TestSyncerRetryKeepsLastWriteAfterPartialSuccess(t *testing.T) {
	r := &rowRemote{rows: map[string]models.Record{
		models.TableRooms + "/r1": {"id": "r1", "title": "start", "color": "#fff"},
	}}
	r.fail = failFirst("update")
	s := NewSyncer(r, time.Second, logging.Discard())
	defer s.Close(context.Background())

	s.Update(models.TableRooms, "r1", models.Record{"title": "old", "color": "#000"})
	s.Update(models.TableRooms, "r1", models.Record{"title": "new"})
	s.Flush(context.Background())

	unsynced := s.Unsynced()
	if len(unsynced) != 1 {
		t.Fatalf("unsynced = %+v", unsynced)
	}
	if _, ok := unsynced[0].Record["title"]; ok || unsynced[0].Record.Str("color") != "#000" {
		t.Fatalf("failed update should keep only the columns nothing newer set: %+v", unsynced[0].Record)
	}

	s.Retry()
	s.Flush(context.Background())
	row, _ := r.row(models.TableRooms, "r1")
	if row.Str("title") != "new" || row.Str("color") != "#000" {
		t.Fatalf("remote row after retry = %+v, want title new and color #000", row)
	}
	if n := len(s.Unsynced()); n != 0 {
		t.Fatalf("unsynced after retry = %d", n)
	}
}

func TestSyncerDeleteSupersedesFailedWrites(t *testing.T) {
	r := &rowRemote{rows: map[string]models.Record{}}
	r.fail = failFirst("insert")
	s := NewSyncer(r, time.Second, logging.Discard())
	defer s.Close(context.Background())

	s.Insert(models.TableFeatures, models.Record{"id": "w1", "title": "wall"})
	s.Insert(models.TableFeatures, models.Record{"id": "w2", "title": "other"})
	s.Delete(models.TableFeatures, "w1")
	s.Flush(context.Background())

	if unsynced := s.Unsynced(); len(unsynced) != 0 {
		t.Fatalf("a deleted row should leave nothing to retry: %+v", unsynced)
	}
	if n := s.Retry(); n != 0 {
		t.Fatalf("retry requeued %d", n)
	}
	s.Flush(context.Background())
	if _, ok := r.row(models.TableFeatures, "w1"); ok {
		t.Fatal("deleted row came back")
	}
	if _, ok := r.row(models.TableFeatures, "w2"); !ok {
		t.Fatal("unrelated row missing")
	}
}

func TestSyncerRetryReplaysInsertBeforeUpdate(t *testing.T) {
	r := &rowRemote{rows: map[string]models.Record{}}
	r.fail = failFirst("insert")
	s := NewSyncer(r, time.Second, logging.Discard())
	defer s.Close(context.Background())

	s.Insert(models.TableRooms, models.Record{"id": "r2", "title": "draft"})
	// the row is missing remotely, so this update fails too
	s.Update(models.TableRooms, "r2", models.Record{"title": "final"})
	s.Flush(context.Background())
	if n := len(s.Unsynced()); n != 2 {
		t.Fatalf("unsynced = %d, want 2", n)
	}

	s.Retry()
	s.Flush(context.Background())
	row, ok := r.row(models.TableRooms, "r2")
	if !ok || row.Str("title") != "final" {
		t.Fatalf("remote row = %+v", row)
	}
}

func TestSyncerFlushHonoursContext(t *testing.T) {
	fake := &fakeRemote{delay: 200 * time.Millisecond}
	s := NewSyncer(fake, time.Second, logging.Discard())
	defer s.Close(context.Background())

	s.Insert(models.TableRooms, models.Record{"id": "slow"})
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := s.Flush(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline, got %v", err)
	}
}

func TestLoadSkipsInvalidRows(t *testing.T) {
	poly := geo.RectangleAt(orb.Point{13.4, 52.5}, 2, 2)
	room := models.NewDrawnRoom(poly, 0)
	wall := models.Wall{ID: "w1", Polygon: poly, Width: 0.3}
	furn := models.Furniture{ID: "f1", Polygon: poly, Original: poly, ScaleX: 1, ScaleY: 1}
	poi := models.POI{ID: "p1", Point: orb.Point{13.4, 52.5}}

	fake := &fakeRemote{tables: map[string][]models.Record{
		models.TableRooms: {room.Record(), {"id": "bad-room", "geometry": `{"type":"Polygon","coordinates":[[[0,0],[1,1]]]}`}},
		models.TableFeatures: {
			wall.Record(),
			furn.Record(),
			{"id": "door", "type": "door", "geometry": `{}`},
		},
		models.TablePOI:    {poi.Record(), {"id": "nowhere"}},
		models.TableEvents: {models.Event{ID: "e1", POIID: "p1"}.Record()},
	}}

	loaded, err := Load(context.Background(), fake, logging.Discard())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(loaded.Rooms) != 1 || len(loaded.Walls) != 1 || len(loaded.Furniture) != 1 || len(loaded.POIs) != 1 || len(loaded.Events) != 1 {
		t.Fatalf("loaded = %+v", loaded)
	}
	if loaded.Dropped != 3 {
		t.Fatalf("dropped = %d, want 3", loaded.Dropped)
	}
}

func TestLoadFailsOnReadError(t *testing.T) {
	fake := &fakeRemote{fail: func(op, table, id string) error {
		if table == models.TableFeatures {
			return errors.New("boom")
		}
		return nil
	}}
	if _, err := Load(context.Background(), fake, logging.Discard()); err == nil {
		t.Fatalf("expected load error")
	}
}

func TestHTTPRemote(t *testing.T) {
	var (
		mu   sync.Mutex
		seen []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		seen = append(seen, r.Method+" "+r.URL.RequestURI()+" "+string(body))
		mu.Unlock()
		switch {
		case r.Method == http.MethodGet:
			json.NewEncoder(w).Encode([]models.Record{{"id": "r1"}})
		case r.URL.Path == "/rest/rooms/missing":
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"error":"not found"}`))
		case r.URL.Path == "/rest/secrets":
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":"unknown table"}`))
		default:
			w.WriteHeader(http.StatusOK)
		}
	}))
	defer srv.Close()

	h := NewHTTPRemote(srv.URL+"/", time.Second)
	ctx := context.Background()

	recs, err := h.List(ctx, models.TableRooms)
	if err != nil || len(recs) != 1 || recs[0].Str("id") != "r1" {
		t.Fatalf("list: %v %v", recs, err)
	}
	if err := h.Update(ctx, models.TableRooms, "r1", models.Record{"title": "x"}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := h.Delete(ctx, models.TableRooms, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := h.Insert(ctx, "secrets", models.Record{"id": "s"}); err == nil {
		t.Fatalf("expected error for 400")
	}
	if err := h.DeleteWhere(ctx, models.TableEvents, "poi_id", "p 1"); err != nil {
		t.Fatalf("delete where: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if seen[1] != `PATCH /rest/rooms/r1 {"title":"x"}` {
		t.Fatalf("patch request = %q", seen[1])
	}
	if seen[4] != "DELETE /rest/events?column=poi_id&value=p+1 " {
		t.Fatalf("delete where request = %q", seen[4])
	}
}

func TestRepositoryRemote(t *testing.T) {
	db, err := repository.OpenSQLite(filepath.Join(t.TempDir(), "r.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()
	repo := repository.New(db, repository.DriverSQLite)
	if err := repo.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	r := NewRepositoryRemote(repo)
	ctx := context.Background()

	room := models.NewDrawnRoom(geo.RectangleAt(orb.Point{1, 1}, 2, 2), 0)
	if err := r.Insert(ctx, models.TableRooms, room.Record()); err != nil {
		t.Fatalf("insert: %v", err)
	}
	loaded, err := Load(ctx, r, logging.Discard())
	if err != nil || len(loaded.Rooms) != 1 || loaded.Rooms[0].ID != room.ID {
		t.Fatalf("load: %v %+v", err, loaded)
	}
	if err := r.Delete(ctx, models.TableRooms, "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

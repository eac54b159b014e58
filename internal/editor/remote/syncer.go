package remote

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"indoormap/internal/mapdata/models"
)

type Op string

const (
	OpInsert      Op = "insert"
	OpUpdate      Op = "update"
	OpDelete      Op = "delete"
	OpDeleteWhere Op = "delete_where"
)

// Write is one queued remote call.
type Write struct {
	Seq      uint64        `json:"seq"`
	Op       Op            `json:"op"`
	Table    string        `json:"table"`
	ID       string        `json:"id,omitempty"`
	Record   models.Record `json:"record,omitempty"`
	Column   string        `json:"column,omitempty"`
	Value    string        `json:"value,omitempty"`
	Attempts int           `json:"attempts"`
	LastErr  string        `json:"last_error,omitempty"`
	FailedAt time.Time     `json:"failed_at,omitzero"`
}

func (w Write) String() string {
	switch w.Op {
	case OpDeleteWhere:
		return fmt.Sprintf("%s %s where %s=%s", w.Op, w.Table, w.Column, w.Value)
	}
	return fmt.Sprintf("%s %s/%s", w.Op, w.Table, w.ID)
}

// Outcome reports how a write ended.
type Outcome struct {
	Write Write
	Err   error
}

// Syncer applies writes one at a time in enqueue order on a single
// worker. A delete therefore never overtakes an earlier update of the
// same row. Failed writes are kept as unsynced until retried; local state
// is never rolled back. A later write that succeeds trims or drops the
// failed writes it supersedes, so a retry never restores an older value.
type Syncer struct {
	remote  Remote
	timeout time.Duration
	log     *slog.Logger

	mu       sync.Mutex
	seq      uint64
	pending  []Write
	inflight bool
	unsynced []Write
	waiters  []chan struct{}
	observer func(Outcome)
	closed   bool

	wake chan struct{}
	stop chan struct{}
	done chan struct{}
}

func NewSyncer(r Remote, timeout time.Duration, log *slog.Logger) *Syncer {
	if log == nil {
		log = slog.Default()
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	s := &Syncer{
		remote:  r,
		timeout: timeout,
		log:     log,
		wake:    make(chan struct{}, 1),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go s.run()
	return s
}

// Observe installs a callback invoked after every write.
func (s *Syncer) Observe(fn func(Outcome)) {
	s.mu.Lock()
	s.observer = fn
	s.mu.Unlock()
}

func (s *Syncer) Insert(table string, rec models.Record) uint64 {
	return s.enqueue(Write{Op: OpInsert, Table: table, ID: rec.Str("id"), Record: rec})
}

func (s *Syncer) Update(table, id string, patch models.Record) uint64 {
	if len(patch) == 0 {
		return 0
	}
	return s.enqueue(Write{Op: OpUpdate, Table: table, ID: id, Record: patch})
}

func (s *Syncer) Delete(table, id string) uint64 {
	return s.enqueue(Write{Op: OpDelete, Table: table, ID: id})
}

func (s *Syncer) DeleteWhere(table, column, value string) uint64 {
	return s.enqueue(Write{Op: OpDeleteWhere, Table: table, Column: column, Value: value})
}

func (s *Syncer) enqueue(w Write) uint64 {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.log.Warn("write after close dropped", "write", w.String())
		return 0
	}
	s.seq++
	w.Seq = s.seq
	s.pending = append(s.pending, w)
	s.mu.Unlock()
	s.signal()
	return w.Seq
}

func (s *Syncer) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Pending is the number of queued or running writes.
func (s *Syncer) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.pending)
	if s.inflight {
		n++
	}
	return n
}

// Unsynced returns failed writes, oldest first.
func (s *Syncer) Unsynced() []Write {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Write(nil), s.unsynced...)
}

// Retry requeues every failed write in its original order, ahead of
// writes that have not run yet.
func (s *Syncer) Retry() int {
	s.mu.Lock()
	failed := s.unsynced
	s.unsynced = nil
	sort.Slice(failed, func(i, j int) bool { return failed[i].Seq < failed[j].Seq })
	s.pending = append(failed, s.pending...)
	s.mu.Unlock()
	if len(failed) > 0 {
		s.signal()
	}
	return len(failed)
}

// Flush blocks until every queued write has run.
func (s *Syncer) Flush(ctx context.Context) error {
	s.mu.Lock()
	if len(s.pending) == 0 && !s.inflight {
		s.mu.Unlock()
		return nil
	}
	ch := make(chan struct{})
	s.waiters = append(s.waiters, ch)
	s.mu.Unlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close flushes and stops the worker.
func (s *Syncer) Close(ctx context.Context) error {
	err := s.Flush(ctx)
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return err
	}
	s.closed = true
	s.mu.Unlock()
	close(s.stop)
	<-s.done
	return err
}

// ============================================================
// Worker
// ============================================================

func (s *Syncer) run() {
	defer close(s.done)
	for {
		s.mu.Lock()
		if len(s.pending) == 0 {
			s.inflight = false
			for _, ch := range s.waiters {
				close(ch)
			}
			s.waiters = nil
			s.mu.Unlock()

			select {
			case <-s.wake:
				continue
			case <-s.stop:
				return
			}
		}
		w := s.pending[0]
		s.pending = s.pending[1:]
		s.inflight = true
		s.mu.Unlock()

		err := s.apply(w)
		w.Attempts++

		s.mu.Lock()
		if err != nil {
			w.LastErr = err.Error()
			w.FailedAt = time.Now()
			s.unsynced = append(s.unsynced, w)
		} else {
			s.supersede(w)
		}
		observer := s.observer
		s.mu.Unlock()

		if err != nil {
			s.log.Warn("remote write failed", "op", w.Op, "table", w.Table, "id", w.ID, "attempts", w.Attempts, "error", err)
		}
		if observer != nil {
			observer(Outcome{Write: w, Err: err})
		}
	}
}

// supersede drops or trims failed writes older than done that would undo
// it on retry. Callers hold s.mu.
func (s *Syncer) supersede(done Write) {
	if len(s.unsynced) == 0 {
		return
	}
	removed := map[string]bool{}
	kept := s.unsynced[:0]
	for _, w := range s.unsynced {
		if w.Seq > done.Seq || w.Table != done.Table {
			kept = append(kept, w)
			continue
		}
		switch done.Op {
		case OpDelete:
			if w.ID == done.ID && w.Op != OpDeleteWhere {
				continue
			}
		case OpDeleteWhere:
			if w.Op == OpInsert && w.Record.Str(done.Column) == done.Value {
				removed[w.ID] = true
				continue
			}
		case OpInsert, OpUpdate:
			if w.ID != done.ID {
				break
			}
			switch w.Op {
			case OpInsert:
				if done.Op == OpInsert {
					continue
				}
				w.Record = overlay(w.Record, done.Record)
			case OpUpdate:
				w.Record = without(w.Record, done.Record)
				if len(w.Record) == 0 {
					continue
				}
			}
		}
		kept = append(kept, w)
	}
	s.unsynced = kept
	if len(removed) == 0 {
		return
	}
	kept = s.unsynced[:0]
	for _, w := range s.unsynced {
		if w.Seq < done.Seq && w.Table == done.Table && removed[w.ID] {
			continue
		}
		kept = append(kept, w)
	}
	s.unsynced = kept
}

// overlay returns a copy of rec with the values of newer applied.
func overlay(rec, newer models.Record) models.Record {
	out := make(models.Record, len(rec))
	for k, v := range rec {
		out[k] = v
	}
	for k, v := range newer {
		if k != "id" {
			out[k] = v
		}
	}
	return out
}

// without returns a copy of rec minus the columns newer sets.
func without(rec, newer models.Record) models.Record {
	out := make(models.Record, len(rec))
	for k, v := range rec {
		if _, ok := newer[k]; !ok {
			out[k] = v
		}
	}
	return out
}

func (s *Syncer) apply(w Write) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	switch w.Op {
	case OpInsert:
		return s.remote.Insert(ctx, w.Table, w.Record)
	case OpUpdate:
		return s.remote.Update(ctx, w.Table, w.ID, w.Record)
	case OpDelete:
		return s.remote.Delete(ctx, w.Table, w.ID)
	case OpDeleteWhere:
		return s.remote.DeleteWhere(ctx, w.Table, w.Column, w.Value)
	}
	return fmt.Errorf("unknown op %q", w.Op)
}

package sessions

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"indoormap/internal/editor"
	"indoormap/internal/editor/surface"
)

var ErrUnknownSession = errors.New("unknown editor session")

// ============================================================
// Session Registry
// ============================================================

// Session is one mounted editor and the canvas it draws on.
type Session struct {
	ID      string
	Editor  *editor.Editor
	Canvas  *surface.Canvas
	Created time.Time

	mu   sync.Mutex
	seen time.Time
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.seen = now
	s.mu.Unlock()
}

func (s *Session) LastSeen() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seen
}

// Factory builds an unmounted editor for a new session.
type Factory func(canvas *surface.Canvas) *editor.Editor

type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session // session id -> session
	factory  Factory
	now      func() time.Time
}

func NewRegistry(factory Factory) *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		factory:  factory,
		now:      time.Now,
	}
}

// Open mounts a new editor. A failed mount is returned and nothing is
// registered.
func (r *Registry) Open(ctx context.Context) (*Session, error) {
	canvas := surface.NewCanvas()
	ed := r.factory(canvas)
	if err := ed.Mount(ctx); err != nil {
		ed.Close(ctx)
		return nil, err
	}

	now := r.now()
	s := &Session{ID: uuid.NewString(), Editor: ed, Canvas: canvas, Created: now, seen: now}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.ID] = s
	return s, nil
}

func (r *Registry) Resolve(id string) (*Session, bool) {
	r.mu.Lock()
	s, ok := r.sessions[id]
	r.mu.Unlock()
	if ok {
		s.touch(r.now())
	}
	return s, ok
}

// Close flushes and forgets a session.
func (r *Registry) Close(ctx context.Context, id string) error {
	r.mu.Lock()
	s, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()
	if !ok {
		return ErrUnknownSession
	}
	return s.Editor.Close(ctx)
}

// Expire closes sessions idle for longer than maxIdle.
func (r *Registry) Expire(ctx context.Context, maxIdle time.Duration) int {
	cutoff := r.now().Add(-maxIdle)
	r.mu.Lock()
	var stale []*Session
	for id, s := range r.sessions {
		if s.LastSeen().Before(cutoff) {
			stale = append(stale, s)
			delete(r.sessions, id)
		}
	}
	r.mu.Unlock()

	for _, s := range stale {
		s.Editor.Close(ctx)
	}
	return len(stale)
}

// CloseAll is used on shutdown.
func (r *Registry) CloseAll(ctx context.Context) error {
	r.mu.Lock()
	all := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		all = append(all, s)
	}
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()

	var errs []error
	for _, s := range all {
		if err := s.Editor.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

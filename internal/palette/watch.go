package palette

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"indoormap/internal/geo"
)

// Watcher reloads a catalog whenever its file changes.
type Watcher struct {
	catalog  *Catalog
	path     string
	watcher  *fsnotify.Watcher
	debounce *geo.Debouncer
	log      *slog.Logger
	onReload func()
	done     chan struct{}
}

// Watch follows path's directory, since editors often replace files by
// rename, and reloads after delay of quiet.
func Watch(c *Catalog, path string, delay time.Duration, log *slog.Logger) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", path, err)
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watch %s: %w", abs, err)
	}
	if log == nil {
		log = slog.Default()
	}
	w := &Watcher{
		catalog:  c,
		path:     abs,
		watcher:  fw,
		debounce: geo.NewDebouncer(delay),
		log:      log,
		done:     make(chan struct{}),
	}
	go w.loop()
	return w, nil
}

// OnReload registers a hook run after each successful reload. Call it
// before the file can change.
func (w *Watcher) OnReload(fn func()) {
	w.onReload = fn
}

func (w *Watcher) loop() {
	defer close(w.done)
	for {
		select {
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				w.debounce.Trigger(w.reload)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Warn("palette watcher error", "error", err)
		}
	}
}

func (w *Watcher) reload() {
	data, err := os.ReadFile(w.path)
	if err != nil {
		w.log.Warn("palette reload skipped", "path", w.path, "error", err)
		return
	}
	if err := w.catalog.Reload(data); err != nil {
		w.log.Warn("palette reload rejected", "path", w.path, "error", err)
		return
	}
	w.log.Info("palette reloaded", "path", w.path, "items", len(w.catalog.Items()))
	if w.onReload != nil {
		w.onReload()
	}
}

func (w *Watcher) Close() error {
	w.debounce.Stop()
	err := w.watcher.Close()
	<-w.done
	return err
}

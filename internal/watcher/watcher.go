// Package watcher notices module files edited outside ducklint and asks the
// parser state to catch up.
package watcher

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"

	"ducklint/internal/config"
	"ducklint/internal/paths"
)

// EventType represents the type of file system event
type EventType int

const (
	EventCreate EventType = iota
	EventModify
	EventDelete
	EventRename
)

func (e EventType) String() string {
	switch e {
	case EventCreate:
		return "create"
	case EventModify:
		return "modify"
	case EventDelete:
		return "delete"
	case EventRename:
		return "rename"
	default:
		return "unknown"
	}
}

// Event is one change to a watched file.
type Event struct {
	Type EventType
	// Path is absolute; RelPath is root-relative with forward slashes.
	Path      string
	RelPath   string
	Timestamp time.Time
}

// ChangeHandler receives a debounced batch of events.
type ChangeHandler func(events []Event)

// Config contains watcher configuration
type Config struct {
	Debounce time.Duration
	// Include and Exclude are doublestar globs over root-relative paths. A
	// file is reported when it matches an include and no exclude.
	Include []string
	Exclude []string
}

// ConfigFrom converts the project configuration.
func ConfigFrom(c config.WatchConfig) Config {
	return Config{
		Debounce: time.Duration(c.DebounceMs) * time.Millisecond,
		Include:  c.Include,
		Exclude:  c.Exclude,
	}
}

// Watcher watches a project directory tree.
type Watcher struct {
	root    string
	config  Config
	logger  *slog.Logger
	handler ChangeHandler

	fs    *fsnotify.Watcher
	batch *BatchDebouncer

	mu      sync.Mutex
	started bool
	wg      sync.WaitGroup
	cancel  context.CancelFunc
}

// New creates a watcher for root. Invalid globs are rejected here.
func New(root string, cfg Config, logger *slog.Logger, handler ChangeHandler) (*Watcher, error) {
	for _, p := range append(append([]string(nil), cfg.Include...), cfg.Exclude...) {
		if !doublestar.ValidatePattern(p) {
			return nil, &config.ConfigError{Field: "watch", Message: "invalid glob " + p}
		}
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	w := &Watcher{root: abs, config: cfg, logger: logger, handler: handler}
	w.batch = NewBatchDebouncer(cfg.Debounce, w.emit)
	return w, nil
}

// Start watches every directory under the root and delivers events until ctx
// ends or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started {
		return nil
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	w.fs = fsw
	if err := w.addTree(w.root); err != nil {
		_ = fsw.Close()
		return err
	}

	ctx, w.cancel = context.WithCancel(ctx)
	w.started = true
	w.wg.Add(1)
	go w.loop(ctx)

	w.logger.Info("Watching project",
		"root", w.root,
		"debounce", w.config.Debounce.String(),
	)
	return nil
}

// Stop ends watching and drops events that were not delivered yet.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if !w.started {
		w.mu.Unlock()
		return nil
	}
	w.started = false
	w.cancel()
	err := w.fs.Close()
	w.mu.Unlock()

	w.wg.Wait()
	w.batch.Cancel()
	w.logger.Info("Stopped watching project", "root", w.root)
	return err
}

func (w *Watcher) loop(ctx context.Context) {
	defer w.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.fs.Events:
			if !ok {
				return
			}
			w.handle(ev)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.logger.Warn("File watcher error", "error", err.Error())
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	rel, err := filepath.Rel(w.root, ev.Name)
	if err != nil {
		return
	}
	rel = filepath.ToSlash(rel)

	if ev.Has(fsnotify.Create) {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if !w.skipDir(rel, info.Name()) {
				if err := w.addTree(ev.Name); err != nil {
					w.logger.Warn("Failed to watch new directory", "path", rel, "error", err.Error())
				}
			}
			return
		}
	}
	if !w.Matches(rel) {
		return
	}
	w.batch.Add(Event{Type: eventType(ev.Op), Path: ev.Name, RelPath: rel, Timestamp: time.Now()})
}

func (w *Watcher) emit(events []Event) {
	events = coalesce(events)
	w.logger.Debug("Files changed", "events", len(events))
	if w.handler != nil {
		w.handler(events)
	}
}

// addTree watches dir and every directory below it that is not skipped.
func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(w.root, path)
		if err != nil {
			return err
		}
		if rel != "." && w.skipDir(filepath.ToSlash(rel), d.Name()) {
			return filepath.SkipDir
		}
		return w.fs.Add(path)
	})
}

func (w *Watcher) skipDir(rel, name string) bool {
	return paths.IsStatePath(rel) || strings.HasPrefix(name, ".") || w.excluded(rel+"/")
}

// Matches reports whether a root-relative path is reported to the handler.
func (w *Watcher) Matches(rel string) bool {
	rel = filepath.ToSlash(rel)
	if paths.IsStatePath(rel) || w.excluded(rel) {
		return false
	}
	for _, p := range w.config.Include {
		if ok, _ := doublestar.Match(p, rel); ok {
			return true
		}
	}
	return false
}

func (w *Watcher) excluded(rel string) bool {
	for _, p := range w.config.Exclude {
		if ok, _ := doublestar.Match(p, rel); ok {
			return true
		}
	}
	return false
}

func eventType(op fsnotify.Op) EventType {
	switch {
	case op.Has(fsnotify.Create):
		return EventCreate
	case op.Has(fsnotify.Remove):
		return EventDelete
	case op.Has(fsnotify.Rename):
		return EventRename
	default:
		return EventModify
	}
}

// coalesce keeps the last event per path, in order of first appearance.
func coalesce(events []Event) []Event {
	index := make(map[string]int, len(events))
	var out []Event
	for _, e := range events {
		if i, ok := index[e.Path]; ok {
			out[i] = e
			continue
		}
		index[e.Path] = len(out)
		out = append(out, e)
	}
	return out
}

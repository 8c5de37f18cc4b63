// Package watch reports changes to a project's context tree as they happen
// on disk, so editors working directly on the files can be followed from
// the CLI.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/Buooy/ergon-pm/internal/sanitize"
	"github.com/Buooy/ergon-pm/internal/storage"
)

// ErrWatcherFailed indicates the filesystem watcher failed to initialize.
var ErrWatcherFailed = errors.New("failed to initialize filesystem watcher")

// Op is the kind of change observed.
type Op string

// Change kinds.
const (
	OpCreate Op = "create"
	OpWrite  Op = "write"
	OpRemove Op = "remove"
	OpRename Op = "rename"
)

// Event describes a change to one context file.
type Event struct {
	Project string    `json:"project"`
	Path    string    `json:"path"`
	Op      Op        `json:"op"`
	Time    time.Time `json:"time"`
}

// Watcher follows the markdown files of one project's context tree,
// including directories created after Start.
type Watcher struct {
	project  string
	root     string
	debounce time.Duration
	logger   *zap.Logger

	fsw    *fsnotify.Watcher
	events chan Event
	stop   chan struct{}
	once   sync.Once
}

// New creates a watcher for project. Events for the same file arriving
// within debounce of each other are merged; zero disables merging.
func New(layout *storage.Layout, project string, debounce time.Duration, logger *zap.Logger) (*Watcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	root, err := layout.ContextDir(project)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: project %q has no context directory", storage.ErrNotFound, project)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWatcherFailed, err)
	}

	return &Watcher{
		project:  project,
		root:     root,
		debounce: debounce,
		logger:   logger,
		fsw:      fsw,
		events:   make(chan Event, 64),
		stop:     make(chan struct{}),
	}, nil
}

// Start registers the existing directory tree and begins delivering events
// on Events. Call Stop, or cancel ctx, to release resources.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.addTree(w.root); err != nil {
		return err
	}
	go w.loop(ctx)
	return nil
}

// Stop stops the watcher. It is safe to call more than once.
func (w *Watcher) Stop() {
	w.once.Do(func() {
		close(w.stop)
		_ = w.fsw.Close()
	})
}

// Events returns the channel events are delivered on. It is closed when
// the watcher stops.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if err := w.fsw.Add(p); err != nil {
			return fmt.Errorf("watching %s: %w", p, err)
		}
		return nil
	})
}

func (w *Watcher) loop(ctx context.Context) {
	defer close(w.events)

	pending := make(map[string]Event)
	var timer *time.Timer
	var flush <-chan time.Time

	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-w.stop:
			return
		case <-ctx.Done():
			w.Stop()
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			out, ok := w.translate(ev)
			if !ok {
				continue
			}
			if w.debounce <= 0 {
				if !w.emit(ctx, out) {
					return
				}
				continue
			}
			pending[out.Path] = out
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			flush = timer.C
		case <-flush:
			flush = nil
			keys := make([]string, 0, len(pending))
			for k := range pending {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				if !w.emit(ctx, pending[k]) {
					return
				}
				delete(pending, k)
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("context watcher error", zap.String("project", w.project), zap.Error(err))
		}
	}
}

// translate maps a raw fsnotify event to an Event. New directories are
// registered on the fly and produce no event themselves.
func (w *Watcher) translate(ev fsnotify.Event) (Event, bool) {
	if ev.Has(fsnotify.Create) {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if err := w.addTree(ev.Name); err != nil {
				w.logger.Warn("failed to watch new directory", zap.String("dir", ev.Name), zap.Error(err))
			}
			return Event{}, false
		}
	}
	if !sanitize.HasExtension(ev.Name, storage.MarkdownExt) {
		return Event{}, false
	}

	rel, err := filepath.Rel(w.root, ev.Name)
	if err != nil || sanitize.Within(w.root, ev.Name) != nil {
		return Event{}, false
	}

	var op Op
	switch {
	case ev.Has(fsnotify.Create):
		op = OpCreate
	case ev.Has(fsnotify.Write):
		op = OpWrite
	case ev.Has(fsnotify.Remove):
		op = OpRemove
	case ev.Has(fsnotify.Rename):
		op = OpRename
	default:
		return Event{}, false
	}

	return Event{
		Project: w.project,
		Path:    filepath.ToSlash(rel),
		Op:      op,
		Time:    time.Now().UTC(),
	}, true
}

func (w *Watcher) emit(ctx context.Context, ev Event) bool {
	select {
	case w.events <- ev:
		return true
	case <-w.stop:
		return false
	case <-ctx.Done():
		return false
	}
}

// Package watch triggers rescans on file-system changes. Events are batched
// behind a debounce window so a burst of editor writes produces one rescan,
// not one per keystroke.
package watch

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/quarrylabs/quarry/internal/lang"
)

// Handler receives the deduplicated set of changed paths once the debounce
// window closes. It runs on the watcher goroutine; a slow handler delays the
// next batch but loses no events.
type Handler func(paths []string)

// Watcher observes a directory tree recursively.
type Watcher struct {
	root       string
	debounce   time.Duration
	ignoreDirs map[string]struct{}
	handler    Handler
	logger     *slog.Logger

	fsw *fsnotify.Watcher
}

// New creates a watcher over root. ignoreDirs are directory base names that
// are neither watched nor descended into.
func New(root string, debounce time.Duration, ignoreDirs []string, handler Handler, logger *slog.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	set := make(map[string]struct{}, len(ignoreDirs))
	for _, d := range ignoreDirs {
		set[d] = struct{}{}
	}
	return &Watcher{
		root:       root,
		debounce:   debounce,
		ignoreDirs: set,
		handler:    handler,
		logger:     logger,
		fsw:        fsw,
	}, nil
}

// Run watches until the context is canceled. Newly created directories are
// added to the watch list as they appear.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fsw.Close()

	if err := w.addRecursive(w.root); err != nil {
		return err
	}

	pending := make(map[string]struct{})
	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if !w.relevant(event) {
				continue
			}
			if event.Op&fsnotify.Create != 0 {
				// A new directory needs its own watch before anything
				// inside it can be seen.
				if w.isDir(event.Name) {
					if err := w.addRecursive(event.Name); err != nil {
						w.logger.Warn("watch add failed", "path", event.Name, "error", err)
					}
					continue
				}
			}
			pending[event.Name] = struct{}{}
			// Reset the window on every event: the batch fires only after
			// a full quiet period.
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.debounce)
			}
			fire = timer.C

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", "error", err)

		case <-fire:
			paths := make([]string, 0, len(pending))
			for p := range pending {
				paths = append(paths, p)
			}
			pending = make(map[string]struct{})
			fire = nil
			w.handler(paths)
		}
	}
}

// relevant filters out events in ignored directories, on hidden entries, and
// on files whose extension no supported language claims. Directory events
// pass through so new trees get watched.
func (w *Watcher) relevant(event fsnotify.Event) bool {
	rel, err := filepath.Rel(w.root, event.Name)
	if err != nil {
		return false
	}
	for _, part := range strings.Split(filepath.ToSlash(rel), "/") {
		if part == "." || part == ".." {
			continue
		}
		if strings.HasPrefix(part, ".") {
			return false
		}
		if _, skip := w.ignoreDirs[part]; skip {
			return false
		}
	}
	if w.isDir(event.Name) {
		return true
	}
	ext := filepath.Ext(event.Name)
	if ext == "" {
		return false
	}
	return lang.ForExtension(ext) != ""
}

func (w *Watcher) isDir(path string) bool {
	st, err := os.Stat(path)
	return err == nil && st.IsDir()
}

func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		base := filepath.Base(path)
		if path != root {
			if strings.HasPrefix(base, ".") {
				return filepath.SkipDir
			}
			if _, skip := w.ignoreDirs[base]; skip {
				return filepath.SkipDir
			}
		}
		return w.fsw.Add(path)
	})
}

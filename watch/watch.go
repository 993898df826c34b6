// Package watch re-runs a callback when source documents under a content
// tree change. Events are debounced so a burst of saves triggers one run.
package watch

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"

	"github.com/javierasping/Markdown-translation/lockfile"
	"github.com/javierasping/Markdown-translation/mdfile"
)

// DefaultDebounce is the quiet period used when Options.Debounce is zero.
const DefaultDebounce = 500 * time.Millisecond

// Options configures a Watcher.
type Options struct {
	// Target is the output language; its translation files are ignored.
	Target string
	// Exclude holds doublestar patterns relative to the root.
	Exclude []string
	// Debounce is the quiet period before OnChange runs.
	Debounce time.Duration
	// Logger receives debug and error records. Defaults to slog.Default().
	Logger *slog.Logger
}

// Watcher watches a directory tree for source document changes.
type Watcher struct {
	root    string
	opts    Options
	log     *slog.Logger
	watcher *fsnotify.Watcher

	mu      sync.Mutex
	pending map[string]struct{}
	timer   *time.Timer
	fire    chan []string
}

// New creates a Watcher for root and registers every non-hidden directory.
func New(root string, opts Options) (*Watcher, error) {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	w := &Watcher{
		root:    root,
		opts:    opts,
		log:     logger,
		watcher: fw,
		pending: map[string]struct{}{},
		fire:    make(chan []string, 1),
	}
	if err := w.addTree(root); err != nil {
		_ = fw.Close()
		return nil, err
	}
	return w, nil
}

// Run blocks until ctx is cancelled, calling onChange with the sorted
// relative paths of the sources that changed during each debounce window.
// onChange runs on the Run goroutine, so runs never overlap.
func (w *Watcher) Run(ctx context.Context, onChange func(ctx context.Context, changed []string)) error {
	defer w.watcher.Close()
	defer w.stopTimer()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("watcher events channel closed")
			}
			w.handle(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("watcher errors channel closed")
			}
			w.log.Error("fsnotify error", "error", err)

		case changed := <-w.fire:
			w.log.Debug("change batch", "files", len(changed))
			onChange(ctx, changed)
		}
	}
}

// Close releases the underlying watcher. Run closes it on return.
func (w *Watcher) Close() error {
	w.stopTimer()
	return w.watcher.Close()
}

func (w *Watcher) handle(event fsnotify.Event) {
	w.log.Debug("event received", "name", event.Name, "op", event.Op.String())

	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if !w.ignoredDir(event.Name) {
				if err := w.addTree(event.Name); err != nil {
					w.log.Error("watching new directory", "path", event.Name, "error", err)
				}
			}
			return
		}
	}
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) && !event.Has(fsnotify.Rename) {
		return
	}

	rel, ok := w.relevant(event.Name)
	if !ok {
		return
	}
	w.schedule(rel)
}

// schedule adds rel to the pending batch and restarts the quiet period.
func (w *Watcher) schedule(rel string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.pending[rel] = struct{}{}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.opts.Debounce, w.flush)
}

func (w *Watcher) flush() {
	w.mu.Lock()
	if len(w.pending) == 0 {
		w.mu.Unlock()
		return
	}
	changed := make([]string, 0, len(w.pending))
	for rel := range w.pending {
		changed = append(changed, rel)
	}
	w.pending = map[string]struct{}{}
	w.mu.Unlock()

	sort.Strings(changed)
	select {
	case w.fire <- changed:
	default:
		// A batch is still queued; merge back and retry after another window.
		w.mu.Lock()
		for _, rel := range changed {
			w.pending[rel] = struct{}{}
		}
		w.timer = time.AfterFunc(w.opts.Debounce, w.flush)
		w.mu.Unlock()
	}
}

func (w *Watcher) stopTimer() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
}

// relevant reports whether path is a source document and returns its
// slash-separated path relative to the root.
func (w *Watcher) relevant(path string) (string, bool) {
	rel, err := filepath.Rel(w.root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", false
	}
	rel = filepath.ToSlash(rel)
	base := filepath.Base(path)

	switch {
	case base == lockfile.LockFileName:
		return "", false
	case strings.HasPrefix(base, "."):
		return "", false
	case !strings.HasSuffix(base, ".md"):
		return "", false
	case w.opts.Target != "" && mdfile.IsTranslation(path, w.opts.Target):
		return "", false
	}
	for _, part := range strings.Split(rel, "/") {
		if strings.HasPrefix(part, ".") {
			return "", false
		}
	}
	for _, pattern := range w.opts.Exclude {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return "", false
		}
	}
	return rel, true
}

func (w *Watcher) ignoredDir(path string) bool {
	if path == w.root {
		return false
	}
	return strings.HasPrefix(filepath.Base(path), ".")
}

// addTree registers dir and every non-hidden directory below it.
func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if w.ignoredDir(path) {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			return fmt.Errorf("watching %s: %w", path, err)
		}
		return nil
	})
}

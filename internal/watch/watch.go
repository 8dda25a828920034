// Package watch turns filesystem activity in the cache and activation
// directories into coalesced change notifications.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDelay is how long the watcher waits for activity to settle
const DefaultDelay = 250 * time.Millisecond

// Watcher watches directory trees to a fixed depth. Directories created
// inside a watched tree are picked up while the depth allows it.
type Watcher struct {
	fsw     *fsnotify.Watcher
	delay   time.Duration
	changes chan struct{}
	logger  *slog.Logger

	mu   sync.Mutex
	dirs map[string]int // watched directory -> levels still watched below it
}

// New creates a watcher. Call Close when done.
func New(logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	return &Watcher{
		fsw:     fsw,
		delay:   DefaultDelay,
		changes: make(chan struct{}, 1),
		logger:  logger.With("component", "watch"),
		dirs:    make(map[string]int),
	}, nil
}

// SetDelay changes the debounce window. Call before Run.
func (w *Watcher) SetDelay(d time.Duration) {
	w.delay = d
}

// Add watches dir and its subdirectories down to depth levels.
// Depth 0 watches dir alone.
func (w *Watcher) Add(dir string, depth int) error {
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("watch %s: not a directory", dir)
	}
	return w.addTree(filepath.Clean(dir), depth)
}

func (w *Watcher) addTree(dir string, depth int) error {
	if err := w.fsw.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	w.mu.Lock()
	w.dirs[dir] = depth
	w.mu.Unlock()

	if depth == 0 {
		return nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	for _, e := range entries {
		if !e.IsDir() || e.Name() == ".git" {
			continue
		}
		if err := w.addTree(filepath.Join(dir, e.Name()), depth-1); err != nil {
			w.logger.Debug("could not watch subdirectory", "error", err)
		}
	}
	return nil
}

// Changes delivers one value per settled burst of activity. Bursts that
// arrive while a value is pending are merged into it. The channel is
// closed once Run returns.
func (w *Watcher) Changes() <-chan struct{} {
	return w.changes
}

// Run processes events until ctx is done or the watcher is closed.
// Changes is closed when Run returns. Call Run once.
func (w *Watcher) Run(ctx context.Context) error {
	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
		close(w.changes)
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if !w.handle(event) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.delay)
			} else {
				timer.Reset(w.delay)
			}
			fire = timer.C

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", "error", err)

		case <-fire:
			fire = nil
			select {
			case w.changes <- struct{}{}:
			default:
			}
		}
	}
}

// handle tracks new and removed directories and reports whether the
// event is worth a refresh
func (w *Watcher) handle(event fsnotify.Event) bool {
	if event.Op == fsnotify.Chmod {
		return false
	}
	w.logger.Debug("event", "op", event.Op.String(), "path", event.Name)

	switch {
	case event.Has(fsnotify.Create):
		w.mu.Lock()
		depth, ok := w.dirs[filepath.Dir(event.Name)]
		w.mu.Unlock()
		if !ok || depth == 0 {
			break
		}
		info, err := os.Lstat(event.Name)
		if err != nil || !info.IsDir() || filepath.Base(event.Name) == ".git" {
			break
		}
		if err := w.addTree(event.Name, depth-1); err != nil {
			w.logger.Debug("could not watch new directory", "error", err)
		}

	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		w.mu.Lock()
		for dir := range w.dirs {
			if dir == event.Name || isBelow(dir, event.Name) {
				delete(w.dirs, dir)
			}
		}
		w.mu.Unlock()
	}
	return true
}

// Watched lists the directories currently watched
func (w *Watcher) Watched() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	dirs := make([]string, 0, len(w.dirs))
	for d := range w.dirs {
		dirs = append(dirs, d)
	}
	return dirs
}

// Close stops the watcher and ends Run
func (w *Watcher) Close() error {
	return w.fsw.Close()
}

func isBelow(path, root string) bool {
	rel, err := filepath.Rel(root, path)
	return err == nil && rel != "." && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

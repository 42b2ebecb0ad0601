package colorfilter

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/endorses/colorcat/internal/pkg/constants"
)

// Watcher reloads an Engine when one of its rules files changes. It watches
// the parent directories so files replaced by rename are still seen.
type Watcher struct {
	engine   *Engine
	debounce time.Duration
	onReload func(err error)

	fsWatcher *fsnotify.Watcher
	targets   map[string]struct{}

	mu       sync.Mutex
	running  bool
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// NewWatcher creates a watcher for the engine's user and global files.
// onReload, if set, is called after every reload attempt.
func NewWatcher(e *Engine, onReload func(err error)) *Watcher {
	return &Watcher{
		engine:   e,
		debounce: constants.ReloadDebounce,
		onReload: onReload,
	}
}

// SetDebounce changes how long the watcher waits for writes to settle
func (w *Watcher) SetDebounce(d time.Duration) {
	w.debounce = d
}

// Start begins watching; it returns once the watches are in place. A
// stopped watcher can be started again.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return fmt.Errorf("watcher already running")
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}

	w.targets = make(map[string]struct{})
	dirs := make(map[string]struct{})
	p := w.engine.Paths()
	for _, path := range []string{p.User, p.Global} {
		if path == "" {
			continue
		}
		abs, err := filepath.Abs(path)
		if err != nil {
			abs = path
		}
		w.targets[abs] = struct{}{}
		dirs[filepath.Dir(abs)] = struct{}{}
	}

	watched := 0
	for dir := range dirs {
		if err := fsWatcher.Add(dir); err != nil {
			w.engine.log.Warn("Failed to watch color filters directory", "dir", dir, "error", err)
			continue
		}
		watched++
	}
	if watched == 0 {
		_ = fsWatcher.Close()
		return fmt.Errorf("no color filters directory could be watched")
	}

	w.fsWatcher = fsWatcher
	w.stopChan = make(chan struct{})
	w.running = true
	w.wg.Add(1)
	go w.loop(ctx)

	w.engine.log.Info("Watching color filters", "user", p.User, "global", p.Global)
	return nil
}

func (w *Watcher) loop(ctx context.Context) {
	defer w.wg.Done()

	var timer *time.Timer
	var fire <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopChan:
			return
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			if !w.relevant(event) {
				continue
			}
			w.engine.log.Debug("Color filters file changed", "path", event.Name, "op", event.Op.String())
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
		case <-fire:
			fire = nil
			err := w.engine.Reload()
			if w.onReload != nil {
				w.onReload(err)
			}
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.engine.log.Warn("File watcher error", "error", err)
		}
	}
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return false
	}
	abs, err := filepath.Abs(event.Name)
	if err != nil {
		abs = event.Name
	}
	_, ok := w.targets[abs]
	return ok
}

// Stop ends watching and waits for the loop to exit
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopChan)
	err := w.fsWatcher.Close()
	w.wg.Wait()
	if err != nil {
		return fmt.Errorf("failed to close file watcher: %w", err)
	}
	return nil
}

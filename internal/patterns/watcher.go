package patterns

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/bryanchriswhite/BrowserGuard/internal/logger"
	"github.com/fsnotify/fsnotify"
)

const defaultDebounce = 200 * time.Millisecond

// Watcher signals when either pattern file changes on disk. It never reloads
// anything itself; the daemon loop does that between ticks.
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	files     map[string]struct{}
	debounce  time.Duration

	changes chan struct{}
	done    chan struct{}
	wg      sync.WaitGroup
}

// NewWatcher watches the directories containing the given files.
func NewWatcher(paths ...string) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}

	w := &Watcher{
		fsWatcher: fsWatcher,
		files:     make(map[string]struct{}),
		debounce:  defaultDebounce,
		changes:   make(chan struct{}, 1),
		done:      make(chan struct{}),
	}

	dirs := make(map[string]struct{})
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			fsWatcher.Close()
			return nil, fmt.Errorf("resolve %s: %w", p, err)
		}
		w.files[abs] = struct{}{}
		dirs[filepath.Dir(abs)] = struct{}{}
	}

	// Watching directories survives editors that replace files via rename
	for dir := range dirs {
		if err := fsWatcher.Add(dir); err != nil {
			fsWatcher.Close()
			return nil, fmt.Errorf("watch directory %s: %w", dir, err)
		}
	}

	w.wg.Add(1)
	go w.loop()
	return w, nil
}

// Changes delivers one value per debounced burst of file events.
func (w *Watcher) Changes() <-chan struct{} {
	return w.changes
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	close(w.done)
	err := w.fsWatcher.Close()
	w.wg.Wait()
	return err
}

func (w *Watcher) loop() {
	defer w.wg.Done()
	log := logger.WithComponent("patterns")

	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-w.done:
			return

		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			if _, watched := w.files[filepath.Clean(event.Name)]; !watched {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}

			log.Debug().Str("file", event.Name).Str("op", event.Op.String()).Msg("Pattern file changed")
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(w.debounce, w.notify)

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			log.Warn().Err(err).Msg("Pattern watcher error")
		}
	}
}

func (w *Watcher) notify() {
	select {
	case w.changes <- struct{}{}:
	default:
		// A reload is already pending
	}
}

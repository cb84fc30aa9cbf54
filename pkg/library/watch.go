package library

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultDebounce is the quiet period a Watcher waits for before updating.
const DefaultDebounce = 2 * time.Second

// Watcher triggers an update whenever the music directory changes.
type Watcher struct {
	watcher  *fsnotify.Watcher
	debounce time.Duration
	update   func(ctx context.Context) error
	logger   *zap.Logger
}

// NewWatcher watches root and every directory below it. update is called once
// per burst of filesystem events, after debounce has passed without events.
func NewWatcher(root string, debounce time.Duration, update func(ctx context.Context) error, logger *zap.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	w := &Watcher{watcher: fw, debounce: debounce, update: update, logger: logger}
	if err := w.addTree(root); err != nil {
		fw.Close()
		return nil, err
	}
	return w, nil
}

func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if err := w.watcher.Add(path); err != nil {
				return fmt.Errorf("watch %s: %w", path, err)
			}
		}
		return nil
	})
}

// watchNew adds watches for a path that was just created, if it is a
// directory tree.
func (w *Watcher) watchNew(path string) {
	if err := w.addTree(path); err != nil {
		w.logger.Warn("could not watch new directory", zap.String("path", path), zap.Error(err))
	}
}

// Run processes events until ctx is done. It closes the underlying watcher
// on return.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	timer := time.NewTimer(w.debounce)
	timer.Stop()
	pending := false

	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil

		case ev, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			w.logger.Debug("music dir event", zap.String("path", ev.Name), zap.String("op", ev.Op.String()))
			if ev.Has(fsnotify.Create) {
				// New subdirectories need their own watch.
				w.watchNew(ev.Name)
			}
			if !pending {
				pending = true
			} else if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(w.debounce)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watcher error", zap.Error(err))

		case <-timer.C:
			pending = false
			if err := w.update(ctx); err != nil {
				w.logger.Error("library update failed", zap.Error(err))
			}
		}
	}
}

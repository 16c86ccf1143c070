package store

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher invalidates a store whenever a file under a directory changes.  It
// is a development aid: production stores are reloaded explicitly.
type Watcher struct {
	store    *Store
	root     string
	watcher  *fsnotify.Watcher
	onChange func(fsnotify.Event)
	done     chan struct{}
}

// Watch starts watching every directory under root and invalidates s on each
// write, create, remove or rename.  onChange, if non-nil, is called after
// each invalidation.  The watcher stops when ctx is done or Close is called.
func Watch(ctx context.Context, s *Store, root string, onChange func(fsnotify.Event)) (*Watcher, error) {
	var fsw, err = fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	var w = &Watcher{
		store:    s,
		root:     root,
		watcher:  fsw,
		onChange: onChange,
		done:     make(chan struct{}),
	}
	if err := w.addTree(root); err != nil {
		fsw.Close()
		return nil, err
	}
	go w.run(ctx)
	Logger.Info().Str("root", root).Msg("watching templates")
	return w, nil
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	var err = w.watcher.Close()
	<-w.done
	return err
}

func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.watcher.Add(path)
		}
		return nil
	})
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.done)
	for {
		select {
		case <-ctx.Done():
			w.watcher.Close()
			// Drain until the watcher's channels are closed.
			for range w.watcher.Events {
			}
			return

		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			const relevant = fsnotify.Write | fsnotify.Create | fsnotify.Remove | fsnotify.Rename
			if ev.Op&relevant == 0 {
				continue
			}

			// New directories need their own watch.  A renamed or removed path
			// loses its watch; add it back if it reappears.
			if ev.Op&(fsnotify.Create|fsnotify.Rename|fsnotify.Remove) != 0 {
				if ev.Op&fsnotify.Create == 0 {
					time.Sleep(10 * time.Millisecond)
				}
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					if err := w.addTree(ev.Name); err != nil {
						Logger.Warn().Err(err).Str("path", ev.Name).Msg("re-adding watch")
					}
				}
			}

			w.store.Invalidate()
			Logger.Info().Str("event", ev.String()).Msg("templates changed; cache invalidated")
			if w.onChange != nil {
				w.onChange(ev)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			Logger.Warn().Err(err).Msg("watch error")
		}
	}
}

package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcherInvalidates(t *testing.T) {
	var dir = t.TempDir()
	writeFile(t, dir, "orders/confirmation.hbs", "v1")

	var s = New(DirSource{Root: dir}, Options{Mode: Production})
	var ctx, cancel = context.WithCancel(context.Background())
	defer cancel()

	var changed = make(chan fsnotify.Event, 16)
	w, err := Watch(ctx, s, dir, func(ev fsnotify.Event) { changed <- ev })
	require.NoError(t, err)
	defer w.Close()

	text, err := s.Load(ctx, "orders/confirmation")
	require.NoError(t, err)
	assert.Equal(t, "v1", text)

	writeFile(t, dir, "orders/confirmation.hbs", "v2")
	select {
	case <-changed:
	case <-time.After(5 * time.Second):
		t.Fatal("no change event")
	}

	text, err = s.Load(ctx, "orders/confirmation")
	require.NoError(t, err)
	assert.Equal(t, "v2", text)
}

func TestWatcherNewDirectory(t *testing.T) {
	var dir = t.TempDir()
	var s = New(DirSource{Root: dir}, Options{})
	var changed = make(chan fsnotify.Event, 64)
	w, err := Watch(context.Background(), s, dir, func(ev fsnotify.Event) { changed <- ev })
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, os.Mkdir(filepath.Join(dir, "shipping"), 0o755))
	waitFor(t, changed, filepath.Join(dir, "shipping"))

	// The new directory is watched by the time its event is delivered.
	writeFile(t, dir, "shipping/update.hbs", "shipped")
	waitFor(t, changed, filepath.Join(dir, "shipping", "update.hbs"))
}

func waitFor(t *testing.T, events <-chan fsnotify.Event, name string) {
	t.Helper()
	var deadline = time.After(5 * time.Second)
	for {
		select {
		case ev := <-events:
			if ev.Name == name {
				return
			}
		case <-deadline:
			t.Fatalf("no event for %s", name)
		}
	}
}

func TestWatcherStopsWithContext(t *testing.T) {
	var dir = t.TempDir()
	var ctx, cancel = context.WithCancel(context.Background())
	w, err := Watch(ctx, New(DirSource{Root: dir}, Options{}), dir, nil)
	require.NoError(t, err)
	cancel()
	select {
	case <-w.done:
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop")
	}
	assert.NoError(t, w.Close())
}

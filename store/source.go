package store

import (
	"context"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// Source is a hierarchical backing store of template text.  Paths are
// slash-separated and relative, e.g. "orders/confirmation.hbs".
type Source interface {
	// Read returns the content at path.  A missing resource is reported with
	// an error wrapping fs.ErrNotExist.
	Read(ctx context.Context, path string) ([]byte, error)

	// Describe returns the location of path, for error messages.
	Describe(path string) string
}

// Lister is implemented by sources that can enumerate their content.
type Lister interface {
	// List returns every path under the source, sorted.
	List(ctx context.Context) ([]string, error)
}

// FSSource reads from an fs.FS, such as an embedded filesystem.
type FSSource struct {
	FS   fs.FS
	Name string // label used in Describe
}

func (s FSSource) Read(ctx context.Context, p string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return fs.ReadFile(s.FS, p)
}

func (s FSSource) Describe(p string) string {
	if s.Name == "" {
		return p
	}
	return s.Name + ":" + p
}

func (s FSSource) List(ctx context.Context) ([]string, error) {
	var paths []string
	var err = fs.WalkDir(s.FS, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if !d.IsDir() {
			paths = append(paths, p)
		}
		return nil
	})
	return paths, err
}

// DirSource reads from a directory on disk.  It is the source to use with a
// Watcher.
type DirSource struct {
	Root string
}

func (s DirSource) Read(ctx context.Context, p string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return os.ReadFile(s.Describe(p))
}

func (s DirSource) Describe(p string) string {
	return filepath.Join(s.Root, filepath.FromSlash(p))
}

func (s DirSource) List(ctx context.Context) ([]string, error) {
	return FSSource{FS: os.DirFS(s.Root)}.List(ctx)
}

// validPath reports whether p is a clean relative path that stays within
// the source.
func validPath(p string) bool {
	if p == "" || strings.HasPrefix(p, "/") || strings.Contains(p, `\`) {
		return false
	}
	for _, part := range strings.Split(p, "/") {
		if part == "" || part == "." || part == ".." {
			return false
		}
	}
	return path.Clean(p) == p
}

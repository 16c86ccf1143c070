// Package store loads template text from a backing Source, caching it in
// production and re-reading it on every call in development.
//
// Templates are named "category/name" and live at "category/name.hbs".
// Partials share the "partials/" sub-namespace, so the partial "items" lives
// at "partials/items.hbs".
package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/robfig/soymail/errortypes"
)

var Logger zerolog.Logger = log.With().Str("component", "store").Logger()

// DefaultExtension is appended to template names to form resource paths.
const DefaultExtension = ".hbs"

// PartialNamespace is the directory holding partials.
const PartialNamespace = "partials"

// ErrInvalidName is wrapped by errors for names that are empty, absolute or
// escape the source root.
var ErrInvalidName = errors.New("invalid template name")

// Mode selects the caching behavior of a Store.
type Mode int

const (
	Production  Mode = iota // cache loaded text until Reload or Invalidate
	Development             // re-read on every call
)

func (m Mode) String() string {
	if m == Development {
		return "development"
	}
	return "production"
}

// ParseMode accepts "production"/"prod" and "development"/"dev".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "production", "prod":
		return Production, nil
	case "development", "dev":
		return Development, nil
	}
	return Production, fmt.Errorf("unknown store mode %q", s)
}

// Kind distinguishes top-level templates from partials.
type Kind int

const (
	KindTemplate Kind = iota
	KindPartial
)

func (k Kind) String() string {
	if k == KindPartial {
		return "partial"
	}
	return "template"
}

// TemplateSource is the text of one template as loaded from the source.
type TemplateSource struct {
	Kind      Kind
	Namespace string // e.g. "orders", or "partials" for a partial
	Name      string // base name, e.g. "confirmation"
	Path      string // resource path within the source
	Text      string
	LoadedAt  time.Time
}

// FullName returns the name the template was requested by.
func (t *TemplateSource) FullName() string {
	var ns = t.Namespace
	if t.Kind == KindPartial {
		ns = strings.TrimPrefix(strings.TrimPrefix(ns, PartialNamespace), "/")
	}
	if ns == "" {
		return t.Name
	}
	return ns + "/" + t.Name
}

// Options configures a Store.
type Options struct {
	Mode      Mode
	Extension string // defaults to DefaultExtension
}

// Store loads templates and partials from a Source.  It is safe for
// concurrent use.
type Store struct {
	source Source
	mode   Mode
	ext    string

	mu    sync.RWMutex
	cache map[string]*TemplateSource
	gen   uint64 // incremented by Invalidate; stale loads are not cached
	group singleflight.Group
	now   func() time.Time
}

// New returns a store reading from src.
func New(src Source, opts Options) *Store {
	var ext = opts.Extension
	if ext == "" {
		ext = DefaultExtension
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return &Store{
		source: src,
		mode:   opts.Mode,
		ext:    ext,
		cache:  make(map[string]*TemplateSource),
		now:    time.Now,
	}
}

// Mode returns the store's caching mode.
func (s *Store) Mode() Mode { return s.mode }

// Load returns the text of the named template.
func (s *Store) Load(ctx context.Context, name string) (string, error) {
	var src, err = s.Source(ctx, KindTemplate, name)
	if err != nil {
		return "", err
	}
	return src.Text, nil
}

// LoadPartial returns the text of the named partial.  Store implements the
// render package's partial source with it.
func (s *Store) LoadPartial(ctx context.Context, name string) (string, error) {
	var src, err = s.Source(ctx, KindPartial, name)
	if err != nil {
		return "", err
	}
	return src.Text, nil
}

// PartialExists reports whether the named partial can be loaded.
func (s *Store) PartialExists(ctx context.Context, name string) bool {
	var _, err = s.Source(ctx, KindPartial, name)
	if err == nil {
		return true
	}
	var notFound *errortypes.TemplateNotFoundError
	if !errors.As(err, &notFound) {
		Logger.Warn().Err(err).Str("partial", name).Msg("partial lookup failed")
	}
	return false
}

// Path returns the resource path for a name of the given kind.
func (s *Store) Path(kind Kind, name string) (string, error) {
	name = strings.TrimSuffix(name, s.ext)
	if !validPath(name) {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	if kind == KindPartial {
		name = PartialNamespace + "/" + name
	}
	return name + s.ext, nil
}

// Source returns the loaded entity for a name of the given kind.
func (s *Store) Source(ctx context.Context, kind Kind, name string) (*TemplateSource, error) {
	var p, err = s.Path(kind, name)
	if err != nil {
		return nil, &errortypes.TemplateLoadError{Name: name, Path: name, Err: err}
	}

	if s.mode == Production {
		s.mu.RLock()
		var cached, ok = s.cache[p]
		s.mu.RUnlock()
		if ok {
			return cached, nil
		}
	}

	var v, loadErr, _ = s.group.Do(p, func() (interface{}, error) {
		s.mu.RLock()
		var gen = s.gen
		s.mu.RUnlock()

		var src, err = s.read(ctx, kind, name, p)
		if err != nil {
			return nil, err
		}
		if s.mode == Production {
			s.mu.Lock()
			if s.gen == gen {
				s.cache[p] = src
			}
			s.mu.Unlock()
		}
		return src, nil
	})
	if loadErr != nil {
		return nil, loadErr
	}
	return v.(*TemplateSource), nil
}

func (s *Store) read(ctx context.Context, kind Kind, name, p string) (*TemplateSource, error) {
	var body, err = s.source.Read(ctx, p)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return nil, &errortypes.TemplateNotFoundError{Name: name, Path: s.source.Describe(p), Err: err}
	case err != nil:
		return nil, &errortypes.TemplateLoadError{Name: name, Path: s.source.Describe(p), Err: err}
	}
	Logger.Debug().Str("path", p).Stringer("kind", kind).Msg("loaded")
	var dir, base = path.Split(strings.TrimSuffix(p, s.ext))
	return &TemplateSource{
		Kind:      kind,
		Namespace: strings.TrimSuffix(dir, "/"),
		Name:      base,
		Path:      p,
		Text:      string(body),
		LoadedAt:  s.now(),
	}, nil
}

// Invalidate discards every cached entry.  Loads in flight when it is called
// still return their result but do not repopulate the cache.
func (s *Store) Invalidate() {
	s.mu.Lock()
	s.cache = make(map[string]*TemplateSource)
	s.gen++
	s.mu.Unlock()
}

// Reload re-reads every cached entry and swaps the cache for the result in
// one step, so concurrent readers see either the old or the new text.
// Entries that fail to load are dropped and the first error is returned.
func (s *Store) Reload(ctx context.Context) error {
	s.mu.RLock()
	var entries = make([]*TemplateSource, 0, len(s.cache))
	for _, src := range s.cache {
		entries = append(entries, src)
	}
	s.mu.RUnlock()

	var (
		fresh    = make(map[string]*TemplateSource, len(entries))
		firstErr error
	)
	for _, old := range entries {
		var src, err = s.read(ctx, old.Kind, old.FullName(), old.Path)
		if err != nil {
			Logger.Warn().Err(err).Str("path", old.Path).Msg("reload dropped entry")
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		fresh[src.Path] = src
	}

	s.mu.Lock()
	s.cache = fresh
	s.gen++
	s.mu.Unlock()
	Logger.Info().Int("templates", len(fresh)).Msg("reloaded")
	return firstErr
}

// Cached returns the number of cached entries.
func (s *Store) Cached() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.cache)
}

// List returns the names of every template and partial in the source.  The
// source must implement Lister.
func (s *Store) List(ctx context.Context) (templates, partials []string, err error) {
	var lister, ok = s.source.(Lister)
	if !ok {
		return nil, nil, fmt.Errorf("store: source %T cannot be listed", s.source)
	}
	paths, err := lister.List(ctx)
	if err != nil {
		return nil, nil, err
	}
	for _, p := range paths {
		if !strings.HasSuffix(p, s.ext) {
			continue
		}
		var name = strings.TrimSuffix(p, s.ext)
		if rest := strings.TrimPrefix(name, PartialNamespace+"/"); rest != name {
			partials = append(partials, rest)
		} else {
			templates = append(templates, name)
		}
	}
	sort.Strings(templates)
	sort.Strings(partials)
	return templates, partials, nil
}

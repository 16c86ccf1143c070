package template

import (
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

// Logger receives cache diagnostics.
var Logger zerolog.Logger = log.With().Str("component", "template").Logger()

// Registry caches compiled templates by source identity: the template name
// together with the hash of its text.  It holds one compilation per name, so
// compiling edited text replaces the previous entry and the registry never
// grows past the number of distinct names.  Invalidate drops everything.
type Registry struct {
	mu        sync.RWMutex
	templates map[string]*Template // by name
	group     singleflight.Group
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{templates: make(map[string]*Template)}
}

// Template returns the cached compilation of (name, text), if present.
func (r *Registry) Template(name, text string) (*Template, bool) {
	return r.lookup(name, Hash(text))
}

func (r *Registry) lookup(name, hash string) (*Template, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var t, ok = r.templates[name]
	if !ok || t.Hash != hash {
		return nil, false
	}
	return t, true
}

// Compile returns the cached compilation of (name, text), calling compile to
// build it on a miss.  Concurrent misses for the same key share a single call.
// Failed compilations are not cached.
func (r *Registry) Compile(name, text string, compile func() (*Template, error)) (*Template, error) {
	var hash = Hash(text)
	if t, ok := r.lookup(name, hash); ok {
		return t, nil
	}

	var v, err, _ = r.group.Do(name+"\x00"+hash, func() (interface{}, error) {
		var t, err = compile()
		if err != nil {
			return nil, err
		}
		r.mu.Lock()
		r.templates[name] = t
		r.mu.Unlock()
		Logger.Debug().Str("template", name).Str("hash", t.Hash).Msg("compiled")
		return t, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Template), nil
}

// Len returns the number of cached templates.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.templates)
}

// Invalidate discards every cached template.
func (r *Registry) Invalidate() {
	r.mu.Lock()
	r.templates = make(map[string]*Template)
	r.mu.Unlock()
	Logger.Debug().Msg("invalidated")
}

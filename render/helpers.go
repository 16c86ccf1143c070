package render

import (
	"fmt"
	"sort"
	"sync"

	"github.com/robfig/soymail/data"
)

// Call carries the evaluated arguments of one helper invocation.
type Call struct {
	Name   string
	Args   []data.Value // positional arguments
	Hash   data.Map     // key=value arguments; never nil
	Locale string       // locale of the execution
	This   data.Value   // current context
}

// Arg returns the i'th positional argument, or Undefined.
func (c Call) Arg(i int) data.Value {
	if i < len(c.Args) {
		return c.Args[i]
	}
	return data.Undefined{}
}

// String returns the i'th positional argument as a string, falling back to
// the named hash argument and then to def.
func (c Call) String(i int, key, def string) string {
	if i >= 0 && i < len(c.Args) && !data.IsNil(c.Args[i]) {
		return c.Args[i].String()
	}
	if v, ok := c.Hash[key]; ok && !data.IsNil(v) {
		return v.String()
	}
	return def
}

// Helper is a function that may be invoked from a template.
type Helper struct {
	Apply           func(Call) (data.Value, error)
	ValidArgLengths []int // nil accepts any number of positional arguments
	Raw             bool  // output is markup and must not be escaped
}

// Helpers is a registry of named helpers.  Names are case-sensitive.
// Registering a name that already exists replaces the previous helper; there is
// no way to remove one.
type Helpers struct {
	mu      sync.RWMutex
	helpers map[string]Helper
}

// NewHelpers returns a registry holding the given helpers.
func NewHelpers(helpers map[string]Helper) *Helpers {
	var h = &Helpers{helpers: make(map[string]Helper, len(helpers))}
	h.RegisterAll(helpers)
	return h
}

// Register adds a helper under name, replacing any existing one.
func (h *Helpers) Register(name string, helper Helper) {
	if helper.Apply == nil {
		panic(fmt.Sprintf("render: helper %q has no Apply func", name))
	}
	h.mu.Lock()
	h.helpers[name] = helper
	h.mu.Unlock()
	Logger.Trace().Str("helper", name).Msg("registered")
}

// RegisterAll adds every helper in the map.
func (h *Helpers) RegisterAll(helpers map[string]Helper) {
	for name, helper := range helpers {
		h.Register(name, helper)
	}
}

// Lookup returns the helper registered under name.
func (h *Helpers) Lookup(name string) (Helper, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	var helper, ok = h.helpers[name]
	return helper, ok
}

// Has reports whether name is registered.
func (h *Helpers) Has(name string) bool {
	var _, ok = h.Lookup(name)
	return ok
}

// Names returns the registered helper names, sorted.
func (h *Helpers) Names() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	var names = make([]string, 0, len(h.helpers))
	for name := range h.helpers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func checkNumArgs(allowedNumArgs []int, numArgs int) bool {
	if allowedNumArgs == nil {
		return true
	}
	for _, length := range allowedNumArgs {
		if numArgs == length {
			return true
		}
	}
	return false
}

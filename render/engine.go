// Package render compiles templates and executes them against a data payload
// to produce HTML or plain text.
//
// A template refers into its context with paths:
//
//	{{data.customer.name}}    escaped for its HTML context
//	{{{data.summaryHtml}}}    not escaped
//	{{#if data.paid}}...{{else}}...{{/if}}
//	{{#each data.items}}{{@index}}: {{name}}{{else}}none{{/each}}
//	{{> footer data.store}}
//	{{formatCurrency data.total "EUR"}}
//
// Execution starts with a root context holding "data" (the payload), "locale"
// and "t" (the translations for the locale).  A bare name that is not found in
// the current context is looked up in the enclosing ones.
package render

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/robfig/soymail/ast"
	"github.com/robfig/soymail/data"
	"github.com/robfig/soymail/errortypes"
	"github.com/robfig/soymail/locale"
	"github.com/robfig/soymail/parse"
	"github.com/robfig/soymail/parsepasses"
	"github.com/robfig/soymail/template"
)

// Logger receives execution diagnostics, such as references to missing values.
var Logger zerolog.Logger = log.With().Str("component", "render").Logger()

// DefaultMaxPartialDepth bounds partial inclusion when Options leaves it unset.
const DefaultMaxPartialDepth = 16

// Mode selects how printed values are escaped.
type Mode int

const (
	ModeHTML Mode = iota // escape for the HTML context
	ModeText             // no escaping, e.g. for subject lines
)

// PartialSource provides the text of partials by name.  A missing partial
// should be reported with an error wrapping fs.ErrNotExist or a
// *errortypes.TemplateNotFoundError.
type PartialSource interface {
	LoadPartial(ctx context.Context, name string) (string, error)
}

// PartialFunc adapts a function to a PartialSource.
type PartialFunc func(ctx context.Context, name string) (string, error)

func (f PartialFunc) LoadPartial(ctx context.Context, name string) (string, error) {
	return f(ctx, name)
}

// PartialMap is a PartialSource backed by a map, useful for tests and
// programmatic templates.
type PartialMap map[string]string

func (m PartialMap) LoadPartial(_ context.Context, name string) (string, error) {
	var text, ok = m[name]
	if !ok {
		return "", &errortypes.TemplateNotFoundError{Name: name, Path: "partials/" + name}
	}
	return text, nil
}

// Options configures an Engine.
type Options struct {
	Helpers         *Helpers           // nil: the built-in helpers
	Partials        PartialSource      // nil: partial inclusion fails at execution
	Catalog         *locale.Catalog    // translations for "t" and helpers
	Cache           *template.Registry // nil: a new registry
	Strict          bool               // missing values are errors
	MaxPartialDepth int
	DefaultLocale   string
}

// Engine compiles and executes templates.  It is safe for concurrent use.
type Engine struct {
	helpers  *Helpers
	partials PartialSource
	catalog  *locale.Catalog
	cache    *template.Registry
	strict   bool
	maxDepth int
	locale   string

	mu      sync.RWMutex
	checked map[string]string // name to the hash whose partial graph is acyclic
}

// New returns an engine configured by opts.
func New(opts Options) *Engine {
	var e = &Engine{
		helpers:  opts.Helpers,
		partials: opts.Partials,
		catalog:  opts.Catalog,
		cache:    opts.Cache,
		strict:   opts.Strict,
		maxDepth: opts.MaxPartialDepth,
		locale:   opts.DefaultLocale,
		checked:  make(map[string]string),
	}
	if e.helpers == nil {
		e.helpers = NewHelpers(Builtins(e.catalog))
	}
	if e.cache == nil {
		e.cache = template.NewRegistry()
	}
	if e.maxDepth <= 0 {
		e.maxDepth = DefaultMaxPartialDepth
	}
	if e.locale == "" {
		e.locale = "en"
	}
	return e
}

// Helpers returns the engine's helper registry.
func (e *Engine) Helpers() *Helpers {
	return e.helpers
}

// Strict reports whether missing values are errors.
func (e *Engine) Strict() bool {
	return e.strict
}

// Invalidate discards all compiled templates.
func (e *Engine) Invalidate() {
	e.cache.Invalidate()
	e.mu.Lock()
	e.checked = make(map[string]string)
	e.mu.Unlock()
}

// Compiled is a template ready for execution.
type Compiled struct {
	*template.Template
	engine *Engine
}

// Compile parses text, checks that every helper it calls is registered, and,
// when the engine has a partial source, that partial inclusion starting from
// it cannot recurse.  Compilations are cached by name and text, one per name.
func (e *Engine) Compile(ctx context.Context, name, text string) (*Compiled, error) {
	var tmpl, err = e.compile(name, text)
	if err != nil {
		return nil, err
	}
	if e.partials != nil && len(tmpl.Partials) > 0 {
		e.mu.RLock()
		var ok = e.checked[name] == tmpl.Hash
		e.mu.RUnlock()
		if !ok {
			if err := e.checkPartials(ctx, tmpl, []string{name}); err != nil {
				return nil, err
			}
			e.mu.Lock()
			e.checked[name] = tmpl.Hash
			e.mu.Unlock()
		}
	}
	return &Compiled{tmpl, e}, nil
}

func (e *Engine) compile(name, text string) (*template.Template, error) {
	return e.cache.Compile(name, text, func() (*template.Template, error) {
		var node, err = parse.Template(name, text)
		if err != nil {
			return nil, err
		}
		parsepasses.InferEscapeContexts(node)
		if err := parsepasses.CheckHelpers(node, e.helpers.Has); err != nil {
			return nil, err
		}
		return &template.Template{
			Name:     name,
			Hash:     template.Hash(text),
			Node:     node,
			Partials: parsepasses.PartialNames(node),
		}, nil
	})
}

// checkPartials walks the graph of partials reachable from tmpl and fails if
// one of them includes itself.  Partials that cannot be loaded are skipped:
// they are reported if execution reaches them.
func (e *Engine) checkPartials(ctx context.Context, tmpl *template.Template, path []string) error {
	for _, name := range tmpl.Partials {
		for i, prev := range path {
			if i > 0 && prev == name {
				return partialError(tmpl, name, "recursive partial inclusion: %s",
					strings.Join(append(path[i:], name), " -> "))
			}
		}
		if len(path) > e.maxDepth {
			return partialError(tmpl, name, "partials nested deeper than %d", e.maxDepth)
		}
		var text, err = e.partials.LoadPartial(ctx, name)
		if err != nil {
			continue
		}
		partial, err := e.compile(name, text)
		if err != nil {
			return err
		}
		if err := e.checkPartials(ctx, partial, append(path, name)); err != nil {
			return err
		}
	}
	return nil
}

func partialError(tmpl *template.Template, name, format string, args ...interface{}) error {
	var pos = partialPos(tmpl.Node, name)
	var line, col = tmpl.Node.Location(pos)
	return &errortypes.TemplateCompilationError{
		Template: tmpl.Name,
		Fragment: ast.Fragment(tmpl.Node.Text, pos),
		LineNo:   line,
		ColNo:    col,
		Err:      fmt.Errorf(format, args...),
	}
}

// partialPos finds the first inclusion of the named partial.
func partialPos(node ast.Node, name string) ast.Pos {
	if p, ok := node.(*ast.PartialNode); ok && p.Name == name {
		return p.Pos
	}
	if parent, ok := node.(ast.ParentNode); ok {
		for _, child := range parent.Children() {
			if child == nil {
				continue
			}
			if pos := partialPos(child, name); pos > 0 {
				return pos
			}
		}
	}
	return 0
}

// Input is the per-execution context.
type Input struct {
	Data         interface{}       // payload, converted with data.New
	Locale       string            // empty: the engine's default locale
	Translations map[string]string // nil: taken from the catalog
	Mode         Mode
}

// Execute renders the template against in.  The input is not modified.
func (c *Compiled) Execute(ctx context.Context, in Input) (out string, err error) {
	var e = c.engine
	var loc = in.Locale
	if loc == "" {
		loc = e.locale
	}
	var translations = in.Translations
	if translations == nil && e.catalog != nil {
		translations = e.catalog.Translations(loc)
	}
	var t = make(data.Map, len(translations))
	for k, v := range translations {
		t[k] = data.String(v)
	}
	var root = data.Map{
		"data":   data.New(in.Data),
		"locale": data.String(loc),
		"t":      t,
	}

	var wr strings.Builder
	var s = &state{
		ctx:    ctx,
		engine: e,
		tmpl:   c.Template,
		wr:     &wr,
		mode:   in.Mode,
		locale: loc,
	}
	s.context.push(root, nil)
	defer s.errRecover(&err)
	s.walk(c.Node)
	return wr.String(), nil
}

// ReplaceVariables compiles and executes text in one step, for HTML output.
func (e *Engine) ReplaceVariables(ctx context.Context, text string, payload interface{}, locale string) (string, error) {
	var tmpl, err = e.Compile(ctx, "inline", text)
	if err != nil {
		return "", err
	}
	return tmpl.Execute(ctx, Input{Data: payload, Locale: locale})
}

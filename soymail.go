package soymail

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/robfig/soymail/config"
	"github.com/robfig/soymail/data"
	"github.com/robfig/soymail/design"
	"github.com/robfig/soymail/escape"
	"github.com/robfig/soymail/locale"
	"github.com/robfig/soymail/render"
	"github.com/robfig/soymail/store"
)

var Logger zerolog.Logger = log.With().Str("component", "soymail").Logger()

//go:embed templates
var embeddedTemplates embed.FS

// Templates returns the embedded templates and partials.
func Templates() fs.FS {
	var sub, err = fs.Sub(embeddedTemplates, "templates")
	if err != nil {
		panic(err)
	}
	return sub
}

// Generator produces documents.  It is safe for concurrent use once
// constructed; helpers and document types should be registered during
// initialization.
type Generator struct {
	store    *store.Store
	engine   *render.Engine
	catalog  *locale.Catalog
	injector *design.Injector
	policy   *escape.Policy // nil: no validation checkpoint
	locale   string
	types    *documentTypes
	watcher  *store.Watcher
}

type settings struct {
	store         *store.Store
	source        store.Source
	storeOpts     store.Options
	catalog       *locale.Catalog
	tokens        *design.TokenSet
	injector      *design.Injector
	helpers       *render.Helpers
	policy        *escape.Policy
	strict        bool
	inline        bool
	maxDepth      int
	defaultLocale string
}

// Option configures a Generator.
type Option func(*settings)

// WithStore uses s to load templates.
func WithStore(s *store.Store) Option {
	return func(o *settings) { o.store = s }
}

// WithSource loads templates from src with the given store options.
func WithSource(src store.Source, opts store.Options) Option {
	return func(o *settings) { o.source, o.storeOpts = src, opts }
}

// WithCatalog supplies translations.  The default is the embedded catalog.
func WithCatalog(c *locale.Catalog) Option {
	return func(o *settings) { o.catalog = c }
}

// WithTokens overrides the default design tokens.
func WithTokens(t design.TokenSet) Option {
	return func(o *settings) { o.tokens = &t }
}

// WithInjector replaces the design-system injector.  WithTokens and
// WithInlineStyles are ignored when it is given.
func WithInjector(i *design.Injector) Option {
	return func(o *settings) { o.injector = i }
}

// WithHelpers uses h as the helper registry.  The component helpers are
// registered into it.
func WithHelpers(h *render.Helpers) Option {
	return func(o *settings) { o.helpers = h }
}

// WithValidation adds a structural validation checkpoint after each template
// is loaded.
func WithValidation(p escape.Policy) Option {
	return func(o *settings) { o.policy = &p }
}

// WithStrict makes missing values and unresolved design tokens errors.
func WithStrict(strict bool) Option {
	return func(o *settings) { o.strict = strict }
}

// WithInlineStyles copies stylesheet rules into style attributes.
func WithInlineStyles(inline bool) Option {
	return func(o *settings) { o.inline = inline }
}

// WithMaxPartialDepth bounds partial nesting.
func WithMaxPartialDepth(depth int) Option {
	return func(o *settings) { o.maxDepth = depth }
}

// WithDefaultLocale sets the locale used when a call names none.
func WithDefaultLocale(loc string) Option {
	return func(o *settings) { o.defaultLocale = loc }
}

// New returns a generator.  Without options it renders the built-in document
// types from the embedded templates and translations.
func New(opts ...Option) (*Generator, error) {
	var o = settings{defaultLocale: "en"}
	for _, opt := range opts {
		opt(&o)
	}

	var catalog = o.catalog
	if catalog == nil {
		var err error
		if catalog, err = locale.Embedded(o.defaultLocale); err != nil {
			return nil, err
		}
	}

	var st = o.store
	if st == nil {
		var src = o.source
		if src == nil {
			src = store.FSSource{FS: Templates(), Name: "embedded"}
		}
		st = store.New(src, o.storeOpts)
	}

	var injector = o.injector
	if injector == nil {
		injector = design.NewInjector(design.Options{
			Tokens:  o.tokens,
			Catalog: catalog,
			Inline:  o.inline,
			Strict:  o.strict,
		})
	}

	var helpers = o.helpers
	if helpers == nil {
		helpers = render.NewHelpers(render.Builtins(catalog))
	}
	helpers.RegisterAll(componentHelpers(injector))

	var g = &Generator{
		store: st,
		engine: render.New(render.Options{
			Helpers:         helpers,
			Partials:        st,
			Catalog:         catalog,
			Strict:          o.strict,
			MaxPartialDepth: o.maxDepth,
			DefaultLocale:   o.defaultLocale,
		}),
		catalog:  catalog,
		injector: injector,
		policy:   o.policy,
		locale:   o.defaultLocale,
		types:    newDocumentTypes(),
	}
	for _, dt := range BuiltinDocumentTypes {
		g.RegisterDocumentType(dt)
	}
	return g, nil
}

// FromConfig builds a generator from process configuration.  If cfg asks to
// watch the template directory, the watcher runs until ctx is done or Close
// is called.
func FromConfig(ctx context.Context, cfg config.Config) (*Generator, error) {
	var opts = []Option{
		WithDefaultLocale(cfg.DefaultLocale),
		WithStrict(cfg.Strict),
		WithInlineStyles(cfg.InlineStyles),
	}

	var mode, err = store.ParseMode(cfg.Mode)
	if err != nil {
		return nil, err
	}
	switch {
	case cfg.TemplateDir != "":
		opts = append(opts, WithSource(store.DirSource{Root: cfg.TemplateDir},
			store.Options{Mode: mode, Extension: cfg.Extension}))
	case cfg.S3.Bucket != "":
		var src, err = store.NewS3Source(ctx, store.S3Config{
			Bucket:         cfg.S3.Bucket,
			Prefix:         cfg.S3.Prefix,
			Region:         cfg.S3.Region,
			AccessKeyID:    cfg.S3.AccessKeyID,
			SecretKey:      cfg.S3.SecretKey,
			Endpoint:       cfg.S3.Endpoint,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		}, nil)
		if err != nil {
			return nil, err
		}
		opts = append(opts, WithSource(src, store.Options{Mode: mode, Extension: cfg.Extension}))
	default:
		// The embedded templates always use the default extension.
		opts = append(opts, WithSource(store.FSSource{FS: Templates(), Name: "embedded"},
			store.Options{Mode: mode}))
	}

	catalog, err := locale.Embedded(cfg.DefaultLocale)
	if err != nil {
		return nil, err
	}
	if cfg.LocaleDir != "" {
		if err := catalog.LoadFS(os.DirFS(cfg.LocaleDir), "."); err != nil {
			return nil, fmt.Errorf("loading translations from %s: %w", cfg.LocaleDir, err)
		}
	}
	opts = append(opts, WithCatalog(catalog))

	if cfg.TokensFile != "" {
		var tokens, err = design.LoadTokens(cfg.TokensFile)
		if err != nil {
			return nil, err
		}
		opts = append(opts, WithTokens(tokens))
	}

	if cfg.Validation.Enabled {
		opts = append(opts, WithValidation(escape.Policy{
			FailOnUnclosedTags:        cfg.Validation.FailOnUnclosedTags,
			FailOnUnescapedCharacters: cfg.Validation.FailOnUnescapedChars,
		}))
	}

	g, err := New(opts...)
	if err != nil {
		return nil, err
	}
	if cfg.Watch {
		if err := g.Watch(ctx, cfg.TemplateDir); err != nil {
			return nil, err
		}
	}
	return g, nil
}

// Watch invalidates the template cache whenever a file under dir changes.
func (g *Generator) Watch(ctx context.Context, dir string) error {
	if g.watcher != nil {
		return errors.New("soymail: already watching")
	}
	var w, err = store.Watch(ctx, g.store, dir, func(fsnotify.Event) {
		g.engine.Invalidate()
	})
	if err != nil {
		return err
	}
	g.watcher = w
	return nil
}

// Close stops the watcher, if any.
func (g *Generator) Close() error {
	if g.watcher == nil {
		return nil
	}
	return g.watcher.Close()
}

// Catalog returns the translations in use.
func (g *Generator) Catalog() *locale.Catalog {
	return g.catalog
}

// Store returns the template store.
func (g *Generator) Store() *store.Store {
	return g.store
}

// componentHelpers exposes the injector's component fragments to templates:
//
//	{{button "Label" url variant="secondary"}}
//	{{badge status=order.status}}
func componentHelpers(injector *design.Injector) map[string]render.Helper {
	var component = func(kind string, positional ...string) func(render.Call) (data.Value, error) {
		return func(c render.Call) (data.Value, error) {
			var params = map[string]string{"locale": c.Locale}
			for i, key := range positional {
				if v := c.Arg(i); !data.IsNil(v) {
					params[key] = v.String()
				}
			}
			for k, v := range c.Hash {
				if !data.IsNil(v) {
					params[k] = v.String()
				}
			}
			return data.HTML(injector.GenerateComponentFragment(kind, params)), nil
		}
	}
	return map[string]render.Helper{
		design.KindButton: {Apply: component(design.KindButton, "label", "href"), ValidArgLengths: []int{0, 1, 2}, Raw: true},
		design.KindBadge:  {Apply: component(design.KindBadge, "status"), ValidArgLengths: []int{0, 1}, Raw: true},
	}
}

package soymail

import (
	"context"

	"github.com/robfig/soymail/design"
	"github.com/robfig/soymail/escape"
	"github.com/robfig/soymail/render"
)

// Templates ----------

// LoadTemplate returns the text of the named template.
func (g *Generator) LoadTemplate(ctx context.Context, name string) (string, error) {
	return g.store.Load(ctx, name)
}

// LoadPartial returns the text of the named partial.
func (g *Generator) LoadPartial(ctx context.Context, name string) (string, error) {
	return g.store.LoadPartial(ctx, name)
}

// PartialExists reports whether the named partial can be loaded.
func (g *Generator) PartialExists(ctx context.Context, name string) bool {
	return g.store.PartialExists(ctx, name)
}

// ReloadTemplates re-reads every cached template and drops compiled ones.
func (g *Generator) ReloadTemplates(ctx context.Context) error {
	defer g.engine.Invalidate()
	return g.store.Reload(ctx)
}

// ClearCache discards cached template text and compiled templates.
func (g *Generator) ClearCache() {
	g.store.Invalidate()
	g.engine.Invalidate()
}

// CompileTemplate compiles text under the given name.
func (g *Generator) CompileTemplate(ctx context.Context, name, text string) (*render.Compiled, error) {
	return g.engine.Compile(ctx, name, text)
}

// ReplaceVariables compiles and executes text against payload.
func (g *Generator) ReplaceVariables(ctx context.Context, text string, payload interface{}, loc string) (string, error) {
	if loc == "" {
		loc = g.locale
	}
	return g.engine.ReplaceVariables(ctx, text, payload, loc)
}

// Helpers ----------

// RegisterHelper adds a helper, replacing any helper of the same name.
func (g *Generator) RegisterHelper(name string, helper render.Helper) {
	g.engine.Helpers().Register(name, helper)
}

// RegisterHelpers adds every helper in the map.
func (g *Generator) RegisterHelpers(helpers map[string]render.Helper) {
	g.engine.Helpers().RegisterAll(helpers)
}

// RegisteredHelpers returns the sorted helper names.
func (g *Generator) RegisteredHelpers() []string {
	return g.engine.Helpers().Names()
}

// Design system ----------

// InjectDesignSystem adds the stylesheet to html and resolves its design
// tokens.
func (g *Generator) InjectDesignSystem(html string) (string, error) {
	return g.injector.Inject(html)
}

// GenerateCSS returns the complete stylesheet.
func (g *Generator) GenerateCSS() (string, error) {
	return g.injector.GenerateCSS()
}

// DesignTokens returns a copy of the design tokens in use.
func (g *Generator) DesignTokens() design.TokenSet {
	return g.injector.Tokens()
}

// GenerateComponentFragment returns the markup for a button or badge.
func (g *Generator) GenerateComponentFragment(kind string, params map[string]string) string {
	return g.injector.GenerateComponentFragment(kind, params)
}

// Escaping ----------

// EscapeBody escapes text for HTML element content.
func EscapeBody(text string) string { return escape.EscapeBody(text) }

// EscapeContent escapes a value the way template interpolation does.
func EscapeContent(text string) string { return escape.EscapeContent(text) }

// EscapeAttribute escapes text for a quoted HTML attribute value.
func EscapeAttribute(text string) string { return escape.EscapeAttribute(text) }

// SanitizeCSS removes dangerous constructs from css.  It never fails.
func SanitizeCSS(css string) string { return escape.SanitizeCSS(css) }

// ValidateStructure reports unclosed tags and unescaped characters in html.
func ValidateStructure(html string) escape.ValidationResult { return escape.ValidateStructure(html) }

// ValidateTemplates checks the structure of every template and partial in
// the store, returning the findings by name.  Templates without findings are
// omitted.
func (g *Generator) ValidateTemplates(ctx context.Context) (map[string]escape.ValidationResult, error) {
	var templates, partials, err = g.store.List(ctx)
	if err != nil {
		return nil, err
	}
	var results = make(map[string]escape.ValidationResult)
	var check = func(name, text string) {
		if r := escape.ValidateStructure(text); !r.IsValid {
			results[name] = r
		}
	}
	for _, name := range templates {
		var text, err = g.store.Load(ctx, name)
		if err != nil {
			return nil, err
		}
		check(name, text)
	}
	for _, name := range partials {
		var text, err = g.store.LoadPartial(ctx, name)
		if err != nil {
			return nil, err
		}
		check("partials/"+name, text)
	}
	return results, nil
}

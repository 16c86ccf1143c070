package design

import (
	"fmt"
	"strings"
	"sync"

	"github.com/aymerick/douceur/inliner"
	"github.com/aymerick/douceur/parser"

	"github.com/robfig/soymail/errortypes"
	"github.com/robfig/soymail/escape"
	"github.com/robfig/soymail/locale"
)

// Placeholder marks where Inject places the stylesheet.
const Placeholder = "<!-- soymail:styles -->"

// Stages of injection, as reported in DesignSystemInjectionError.
const (
	StageStylesheet = "stylesheet"
	StageValidate   = "validate"
	StageTokens     = "tokens"
	StageInline     = "inline"
)

// Options configures an Injector.
type Options struct {
	Tokens    *TokenSet       // nil: DefaultTokens
	Fragments []Fragment      // nil: DefaultFragments
	Catalog   *locale.Catalog // labels for status badges
	Inline    bool            // copy stylesheet rules into style attributes
	Strict    bool            // unresolved tokens are errors
}

// Injector merges the generated stylesheet and design tokens into rendered
// documents.  It is safe for concurrent use.
type Injector struct {
	tokens    TokenSet
	fragments []Fragment
	catalog   *locale.Catalog
	inline    bool
	strict    bool

	mu  sync.Mutex
	css string
}

// NewInjector returns an injector configured by opts.
func NewInjector(opts Options) *Injector {
	var i = &Injector{
		fragments: opts.Fragments,
		catalog:   opts.Catalog,
		inline:    opts.Inline,
		strict:    opts.Strict,
	}
	if opts.Tokens != nil {
		i.tokens = opts.Tokens.Clone()
	} else {
		i.tokens = DefaultTokens()
	}
	if i.fragments == nil {
		i.fragments = DefaultFragments()
	}
	return i
}

// Tokens returns a copy of the injector's design tokens.
func (i *Injector) Tokens() TokenSet {
	return i.tokens.Clone()
}

// GenerateCSS returns the complete, sanitized stylesheet.  It is computed once
// and cached.
func (i *Injector) GenerateCSS() (css string, err error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.css != "" {
		return i.css, nil
	}

	defer func() {
		if r := recover(); r != nil {
			err = &errortypes.DesignSystemInjectionError{Stage: StageStylesheet, Err: fmt.Errorf("%v", r)}
		}
	}()
	var raw, unresolved = Stylesheet(i.fragments, i.tokens)
	if len(unresolved) > 0 {
		if i.strict {
			return "", &errortypes.DesignSystemInjectionError{
				Stage: StageTokens,
				Err:   fmt.Errorf("unresolved tokens: %s", strings.Join(unresolved, ", ")),
			}
		}
		Logger.Warn().Strs("tokens", unresolved).Msg("stylesheet has unresolved tokens")
	}
	css = escape.SanitizeCSS(raw)
	if _, err := parser.Parse(css); err != nil {
		return "", &errortypes.DesignSystemInjectionError{Stage: StageValidate, Err: err}
	}
	i.css = css
	return css, nil
}

// Inject resolves the design tokens used directly in the markup, then
// replaces the first stylesheet placeholder with a <style> block and removes
// any further placeholders.  The stylesheet is resolved separately, so token
// values are never scanned twice.  Without a placeholder no stylesheet is
// added, so injecting twice is the same as injecting once.
func (i *Injector) Inject(html string) (string, error) {
	var out, unresolved = ResolveReport(html, i.tokens)
	if len(unresolved) > 0 && i.strict {
		return "", &errortypes.DesignSystemInjectionError{
			Stage: StageTokens,
			Err:   fmt.Errorf("unresolved tokens: %s", strings.Join(unresolved, ", ")),
		}
	}

	if idx := strings.Index(out, Placeholder); idx != -1 {
		var css, err = i.GenerateCSS()
		if err != nil {
			return "", err
		}
		var rest = out[idx+len(Placeholder):]
		if n := strings.Count(rest, Placeholder); n > 0 {
			Logger.Warn().Int("count", n).Msg("removing extra stylesheet placeholders")
			rest = strings.Replace(rest, Placeholder, "", -1)
		}
		out = out[:idx] + "<style type=\"text/css\">\n" + css + "</style>" + rest
	}

	if i.inline {
		var inlined, err = inliner.Inline(out)
		if err != nil {
			return "", &errortypes.DesignSystemInjectionError{Stage: StageInline, Err: err}
		}
		out = inlined
	}
	return out, nil
}

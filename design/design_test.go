package design

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robfig/soymail/errortypes"
	"github.com/robfig/soymail/locale"
)

func TestMain(m *testing.M) {
	zerolog.SetGlobalLevel(zerolog.Disabled)
	os.Exit(m.Run())
}

func TestDefaultTokens(t *testing.T) {
	var tokens = DefaultTokens()
	var v, ok = tokens.Lookup("colors", "primary")
	assert.True(t, ok)
	assert.Equal(t, "#2563eb", v)
	v, _ = tokens.Lookup("typography", "font-weight-bold")
	assert.Equal(t, "600", v)
	_, ok = tokens.Lookup("colors", "nope")
	assert.False(t, ok)
	_, ok = tokens.Lookup("nope", "primary")
	assert.False(t, ok)
	assert.Equal(t, "colors.background", tokens.Keys()[0])
}

func TestLoadTokensOverride(t *testing.T) {
	var dir = t.TempDir()
	var tomlPath = filepath.Join(dir, "brand.toml")
	require.NoError(t, os.WriteFile(tomlPath, []byte("[colors]\nprimary = \"#ff0000\"\nbrand = \"#00ff00\"\n"), 0644))
	var tokens, err = LoadTokens(tomlPath)
	require.NoError(t, err)
	assert.Equal(t, "#ff0000", tokens.Colors["primary"])
	assert.Equal(t, "#00ff00", tokens.Colors["brand"])
	assert.Equal(t, "#dc2626", tokens.Colors["danger"], "defaults are kept")

	var yamlPath = filepath.Join(dir, "brand.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte("spacing:\n  md: 20px\n"), 0644))
	tokens, err = LoadTokens(yamlPath)
	require.NoError(t, err)
	assert.Equal(t, "20px", tokens.Spacing["md"])

	_, err = LoadTokens(filepath.Join(dir, "missing.toml"))
	assert.Error(t, err)
}

func TestResolve(t *testing.T) {
	var tokens = TokenSet{
		Colors:  map[string]string{"primary": "#123", "loop": "[[colors.primary]]"},
		Spacing: map[string]string{"md": "16px"},
	}
	tests := []struct {
		input, output string
		unresolved    []string
	}{
		{"a{color:[[colors.primary]]}", "a{color:#123}", nil},
		{"[[colors.primary]] [[colors.primary]] [[spacing.md]]", "#123 #123 16px", nil},
		{"[[colors.missing]] [[colors.missing]]", "[[colors.missing]] [[colors.missing]]", []string{"colors.missing"}},
		{"[[colors.loop]]", "[[colors.primary]]", nil},
		{"[[[colors.primary]]]", "[#123]", nil},
		{"[[not a token]] [[colors.primary", "[[not a token]] [[colors.primary", nil},
		{"no tokens", "no tokens", nil},
	}
	for _, test := range tests {
		var out, unresolved = ResolveReport(test.input, tokens)
		assert.Equal(t, test.output, out, test.input)
		assert.Equal(t, test.unresolved, unresolved, test.input)
	}
}

func TestStylesheetOrder(t *testing.T) {
	var css, unresolved = Stylesheet(DefaultFragments(), DefaultTokens())
	assert.Empty(t, unresolved)
	assert.NotContains(t, css, "[[")
	var last = -1
	for _, marker := range []string{"/* Base layout */", "/* Components */", "/* Responsive breakpoints */",
		"/* Dark mode */", "/* Accessibility */", "/* Client fallbacks */"} {
		var idx = strings.Index(css, marker)
		require.NotEqual(t, -1, idx, marker)
		assert.Greater(t, idx, last, marker)
		last = idx
	}
}

func TestGenerateCSS(t *testing.T) {
	var injector = NewInjector(Options{})
	var css, err = injector.GenerateCSS()
	require.NoError(t, err)
	assert.NotContains(t, css, "/*")
	assert.Contains(t, css, "#2563eb")
	assert.Contains(t, css, "prefers-color-scheme: dark")

	again, err := injector.GenerateCSS()
	require.NoError(t, err)
	assert.Equal(t, css, again)
}

func TestGenerateCSSUnresolvedStrict(t *testing.T) {
	var injector = NewInjector(Options{
		Fragments: []Fragment{{"base", "a { color: [[colors.nope]]; }"}},
		Strict:    true,
	})
	var _, err = injector.GenerateCSS()
	var derr *errortypes.DesignSystemInjectionError
	require.True(t, errors.As(err, &derr))
	assert.Equal(t, StageTokens, derr.Stage)

	injector = NewInjector(Options{Fragments: []Fragment{{"base", "a { color: [[colors.nope]]; }"}}})
	css, err := injector.GenerateCSS()
	require.NoError(t, err)
	assert.Contains(t, css, "[[colors.nope]]")
}

func TestInject(t *testing.T) {
	var injector = NewInjector(Options{})
	var html = "<html><head>" + Placeholder + "</head><body style=\"color:[[colors.text]]\">" +
		Placeholder + "<p>[[colors.unknown]]</p></body></html>"
	var once, err = injector.Inject(html)
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(once, "<style"))
	assert.NotContains(t, once, Placeholder)
	assert.Contains(t, once, `style="color:#1f2937"`)
	assert.Contains(t, once, "[[colors.unknown]]")

	twice, err := injector.Inject(once)
	require.NoError(t, err)
	assert.Equal(t, once, twice)
}

func TestInjectResolvesStylesheetOnce(t *testing.T) {
	var tokens = DefaultTokens()
	tokens.Colors["quoted"] = "[[colors.primary]]"
	var injector = NewInjector(Options{
		Tokens:    &tokens,
		Fragments: []Fragment{{"base", `q::before { content: "[[colors.quoted]]"; }`}},
	})
	var out, err = injector.Inject("<head>" + Placeholder + "</head><p>[[colors.primary]]</p>")
	require.NoError(t, err)
	assert.Contains(t, out, `content: "[[colors.primary]]"`)
	assert.Contains(t, out, "<p>#2563eb</p>")
}

func TestInjectWithoutPlaceholder(t *testing.T) {
	var injector = NewInjector(Options{})
	var out, err = injector.Inject("<p>[[colors.primary]]</p>")
	require.NoError(t, err)
	assert.Equal(t, "<p>#2563eb</p>", out)
}

func TestInjectInline(t *testing.T) {
	var injector = NewInjector(Options{
		Fragments: []Fragment{{"base", ".note { color: [[colors.primary]]; }"}},
		Inline:    true,
	})
	var out, err = injector.Inject("<html><head>" + Placeholder + "</head><body><p class=\"note\">x</p></body></html>")
	require.NoError(t, err)
	assert.Contains(t, out, "#2563eb")
	assert.Contains(t, out, `style="`)
}

func TestComponentButton(t *testing.T) {
	var injector = NewInjector(Options{})
	var html = injector.GenerateComponentFragment(KindButton, map[string]string{
		"label":   "View <order>",
		"href":    "https://shop.test/orders/1?a=1&b=2",
		"variant": "secondary",
	})
	assert.Contains(t, html, `class="btn btn-secondary"`)
	assert.Contains(t, html, `href="https://shop.test/orders/1?a=1&amp;b=2"`)
	assert.Contains(t, html, "#475569")
	assert.Contains(t, html, "View &lt;order&gt;")

	// unsafe URL degrades to the fallback element
	html = injector.GenerateComponentFragment(KindButton, map[string]string{
		"label": "Click",
		"href":  "javascript:alert(1)",
	})
	assert.Equal(t, "<span>Click</span>", html)
}

func TestComponentBadge(t *testing.T) {
	var catalog, err = locale.Embedded("en")
	require.NoError(t, err)
	var injector = NewInjector(Options{Catalog: catalog})

	var html = injector.GenerateComponentFragment(KindBadge, map[string]string{"status": "shipped", "locale": "vi"})
	assert.Contains(t, html, "Đã gửi hàng")
	assert.NotContains(t, html, ">shipped<")
	assert.Contains(t, html, "badge-success")
	assert.Contains(t, html, "#16a34a")

	html = injector.GenerateComponentFragment(KindBadge, map[string]string{"status": "weird_state"})
	assert.Contains(t, html, ">Weird state<")
	assert.Contains(t, html, "badge-info")
}

func TestComponentFallback(t *testing.T) {
	var injector = NewInjector(Options{})
	assert.Equal(t, "<span>&lt;x&gt;</span>", injector.GenerateComponentFragment("carousel", map[string]string{"content": "<x>"}))
	assert.Equal(t, "<span></span>", injector.GenerateComponentFragment(KindBadge, nil))
}

package design

import (
	"embed"
	"fmt"
	"io/fs"
	"strings"
)

//go:embed defaults/css/*.css
var cssFS embed.FS

// Fragments names the stylesheet fragments in the order they are
// concatenated.  Later fragments override earlier ones by specificity, so the
// order must not change.
var Fragments = []string{
	"base",
	"components",
	"responsive",
	"dark-mode",
	"accessibility",
	"client-fallbacks",
}

// Fragment is the token-parameterized CSS for one concern.
type Fragment struct {
	Name string
	Text string // CSS with [[category.key]] placeholders
}

// LoadFragments reads the named fragments from fsys, as <name>.css in dir.
func LoadFragments(fsys fs.FS, dir string, names []string) ([]Fragment, error) {
	var fragments = make([]Fragment, 0, len(names))
	for _, name := range names {
		var text, err = fs.ReadFile(fsys, dir+"/"+name+".css")
		if err != nil {
			return nil, fmt.Errorf("fragment %s: %w", name, err)
		}
		fragments = append(fragments, Fragment{name, string(text)})
	}
	return fragments, nil
}

// DefaultFragments returns the built-in fragments.
func DefaultFragments() []Fragment {
	var fragments, err = LoadFragments(cssFS, "defaults/css", Fragments)
	if err != nil {
		panic(err)
	}
	return fragments
}

// Stylesheet resolves each fragment independently and concatenates them.  It
// returns the stylesheet and the placeholders left unresolved.
func Stylesheet(fragments []Fragment, tokens TokenSet) (string, []string) {
	var (
		b          strings.Builder
		unresolved []string
	)
	for i, fragment := range fragments {
		var css, missing = ResolveReport(fragment.Text, tokens)
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(strings.TrimSpace(css))
		b.WriteByte('\n')
		for _, ref := range missing {
			unresolved = append(unresolved, fragment.Name+": "+ref)
		}
	}
	return b.String(), unresolved
}

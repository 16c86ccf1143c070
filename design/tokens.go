// Package design turns design tokens into the stylesheet and components of
// generated documents.
//
// Tokens are grouped into categories (colors, typography, spacing, radii,
// shadows and breakpoints) of string values.  Text refers to a token with a
// [[category.key]] placeholder, which Resolve replaces with its value.
package design

import (
	_ "embed"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

//go:embed defaults/tokens.toml
var defaultTokens []byte

// Categories lists the token categories in resolution order.
var Categories = []string{"colors", "typography", "spacing", "radii", "shadows", "breakpoints"}

// TokenSet holds design constants by category and key.
type TokenSet struct {
	Colors      map[string]string `koanf:"colors" json:"colors"`
	Typography  map[string]string `koanf:"typography" json:"typography"`
	Spacing     map[string]string `koanf:"spacing" json:"spacing"`
	Radii       map[string]string `koanf:"radii" json:"radii"`
	Shadows     map[string]string `koanf:"shadows" json:"shadows"`
	Breakpoints map[string]string `koanf:"breakpoints" json:"breakpoints"`
}

// Category returns the tokens of the named category, or nil.
func (t TokenSet) Category(name string) map[string]string {
	switch name {
	case "colors":
		return t.Colors
	case "typography":
		return t.Typography
	case "spacing":
		return t.Spacing
	case "radii":
		return t.Radii
	case "shadows":
		return t.Shadows
	case "breakpoints":
		return t.Breakpoints
	}
	return nil
}

// Lookup returns the value of category.key.
func (t TokenSet) Lookup(category, key string) (string, bool) {
	var value, ok = t.Category(category)[key]
	return value, ok
}

// Keys returns every token as "category.key", in category order and sorted by
// key within a category.
func (t TokenSet) Keys() []string {
	var keys []string
	for _, category := range Categories {
		var names []string
		for name := range t.Category(category) {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			keys = append(keys, category+"."+name)
		}
	}
	return keys
}

// Clone returns a deep copy.
func (t TokenSet) Clone() TokenSet {
	var clone = func(m map[string]string) map[string]string {
		var c = make(map[string]string, len(m))
		for k, v := range m {
			c[k] = v
		}
		return c
	}
	return TokenSet{
		Colors:      clone(t.Colors),
		Typography:  clone(t.Typography),
		Spacing:     clone(t.Spacing),
		Radii:       clone(t.Radii),
		Shadows:     clone(t.Shadows),
		Breakpoints: clone(t.Breakpoints),
	}
}

type rawBytesProvider struct{ bytes []byte }

func (r *rawBytesProvider) ReadBytes() ([]byte, error) { return r.bytes, nil }
func (r *rawBytesProvider) Read() (map[string]interface{}, error) {
	return nil, errors.New("not implemented")
}

// DefaultTokens returns the built-in token set.
func DefaultTokens() TokenSet {
	var tokens, err = LoadTokens("")
	if err != nil {
		panic(fmt.Sprintf("design: invalid embedded tokens: %v", err))
	}
	return tokens
}

// LoadTokens returns the built-in tokens with the file at path, if any,
// merged on top.  The file may be TOML or YAML, chosen by extension.
func LoadTokens(path string) (TokenSet, error) {
	var k = koanf.New(".")
	if err := k.Load(&rawBytesProvider{bytes: defaultTokens}, toml.Parser()); err != nil {
		return TokenSet{}, fmt.Errorf("failed to load default tokens: %w", err)
	}
	if path != "" {
		var parser koanf.Parser = toml.Parser()
		switch strings.ToLower(filepath.Ext(path)) {
		case ".yaml", ".yml":
			parser = yaml.Parser()
		}
		if err := k.Load(file.Provider(path), parser); err != nil {
			return TokenSet{}, fmt.Errorf("failed to load tokens from %s: %w", path, err)
		}
	}

	var tokens TokenSet
	if err := k.UnmarshalWithConf("", &tokens, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return TokenSet{}, fmt.Errorf("failed to unmarshal tokens: %w", err)
	}
	Logger.Debug().Str("path", path).Int("tokens", len(tokens.Keys())).Msg("loaded tokens")
	return tokens, nil
}

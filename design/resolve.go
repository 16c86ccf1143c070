package design

import (
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Logger receives design-system diagnostics.
var Logger zerolog.Logger = log.With().Str("component", "design").Logger()

const (
	openToken  = "[["
	closeToken = "]]"
)

// Resolve replaces every [[category.key]] placeholder in text with the token's
// value.  Unknown placeholders are left as they are.
//
// Resolution is a single left-to-right pass: substituted values are not
// scanned again, so a value that itself contains placeholder syntax is copied
// literally.
func Resolve(text string, tokens TokenSet) string {
	var out, _ = ResolveReport(text, tokens)
	return out
}

// ResolveReport is Resolve, also returning the distinct placeholders that
// could not be resolved, in order of first appearance.
func ResolveReport(text string, tokens TokenSet) (string, []string) {
	if !strings.Contains(text, openToken) {
		return text, nil
	}
	var (
		b          strings.Builder
		unresolved []string
		seen       map[string]bool
	)
	b.Grow(len(text))
	for {
		var start = strings.Index(text, openToken)
		if start == -1 {
			break
		}
		b.WriteString(text[:start])
		text = text[start:]

		var end = strings.Index(text, closeToken)
		if end == -1 {
			break
		}
		var ref = text[len(openToken):end]
		var category, key, ok = splitRef(ref)
		if !ok {
			// Not a placeholder; emit the first bracket and rescan.
			b.WriteByte(text[0])
			text = text[1:]
			continue
		}
		if value, ok := tokens.Lookup(category, key); ok {
			b.WriteString(value)
		} else {
			b.WriteString(text[:end+len(closeToken)])
			if seen == nil {
				seen = make(map[string]bool)
			}
			if !seen[ref] {
				seen[ref] = true
				unresolved = append(unresolved, ref)
			}
		}
		text = text[end+len(closeToken):]
	}
	b.WriteString(text)
	if len(unresolved) > 0 {
		Logger.Debug().Strs("tokens", unresolved).Msg("unresolved design tokens")
	}
	return b.String(), unresolved
}

// splitRef splits "category.key", requiring both to be non-empty names.
func splitRef(ref string) (category, key string, ok bool) {
	var dot = strings.IndexByte(ref, '.')
	if dot <= 0 || dot == len(ref)-1 {
		return "", "", false
	}
	category, key = ref[:dot], ref[dot+1:]
	return category, key, isName(category) && isName(key)
}

func isName(s string) bool {
	for i := 0; i < len(s); i++ {
		var c = s[i]
		switch {
		case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9', c == '-', c == '_':
		default:
			return false
		}
	}
	return true
}

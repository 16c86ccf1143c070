package escape

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	cssComment     = regexp.MustCompile(`/\*[\s\S]*?\*/`)
	cssProtocol    = regexp.MustCompile(`(?i)\b(?:java|vb|live)script\s*:`)
	cssExpression  = regexp.MustCompile(`(?i)expression\s*\((?:[^()]|\([^()]*\))*\)`)
	cssImport      = regexp.MustCompile(`(?i)@import[^;{}]*;?`)
	cssBehavior    = regexp.MustCompile(`(?i)(^|[;{\s])(?:behavior|-moz-binding)\s*:[^;}]*;?`)
	cssOpenSemi    = regexp.MustCompile(`\{\s*;+`)
	cssCloseSemi   = regexp.MustCompile(`\}\s*;+`)
	cssDoubleSemis = regexp.MustCompile(`;(?:\s*;)+`)
)

// SanitizeCSS removes constructs that can execute script or pull in remote
// resources from a stylesheet:
//
//   - comment blocks
//   - javascript:, vbscript: and livescript: pseudo-protocols
//   - expression(...)
//   - @import rules
//   - behavior: and -moz-binding: declarations
//
// Stray semicolons adjacent to braces are dropped, and quoted strings left
// open at the end of a line are closed.  Matching is case-insensitive.
//
// SanitizeCSS is best-effort: if it fails internally, the failure is logged
// and css is returned unchanged.
func SanitizeCSS(css string) (out string) {
	defer func() {
		if r := recover(); r != nil {
			Logger.Warn().Str("error", fmt.Sprint(r)).Msg("css sanitizer failed; returning input unchanged")
			out = css
		}
	}()
	out = cssComment.ReplaceAllString(css, "")
	out = cssProtocol.ReplaceAllString(out, "")
	out = cssExpression.ReplaceAllString(out, "")
	out = cssImport.ReplaceAllString(out, "")
	out = cssBehavior.ReplaceAllString(out, "$1")
	out = cssOpenSemi.ReplaceAllString(out, "{")
	out = cssCloseSemi.ReplaceAllString(out, "}")
	out = cssDoubleSemis.ReplaceAllString(out, ";")
	return balanceQuotes(out)
}

// balanceQuotes closes any string literal that is still open at a newline or
// at the end of input.  Escaped quotes do not terminate a string.
func balanceQuotes(css string) string {
	var b strings.Builder
	b.Grow(len(css) + 2)
	var quote byte
	for i := 0; i < len(css); i++ {
		var c = css[i]
		switch {
		case quote != 0 && c == '\\' && i+1 < len(css) && css[i+1] != '\n':
			b.WriteByte(c)
			i++
			b.WriteByte(css[i])
			continue
		case quote != 0 && c == '\n':
			b.WriteByte(quote)
			quote = 0
		case quote != 0 && c == quote:
			quote = 0
		case quote == 0 && (c == '"' || c == '\''):
			quote = c
		}
		b.WriteByte(c)
	}
	if quote != 0 {
		b.WriteByte(quote)
	}
	return b.String()
}

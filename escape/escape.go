// Package escape converts untrusted strings into HTML-safe text and provides
// best-effort structural diagnostics for rendered markup.
//
// Escaping is total and never fails.  SanitizeCSS is best-effort: on an
// internal failure it logs and returns its input unchanged.  ValidateStructure
// is a diagnostic heuristic; whether its findings are fatal is decided by a
// Policy at each call site.
package escape

import (
	"io"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Logger receives diagnostics from this package.
var Logger zerolog.Logger = log.With().Str("component", "escape").Logger()

var (
	htmlQuot  = "&quot;"
	htmlApos  = "&#x27;"
	htmlAmp   = "&amp;"
	htmlLt    = "&lt;"
	htmlGt    = "&gt;"
	htmlSlash = "&#x2F;"
	htmlGrave = "&#x60;"
	htmlEq    = "&#x3D;"
)

// bodyEntity returns the replacement for c in element content, or "".
func bodyEntity(c byte) string {
	switch c {
	case '&':
		return htmlAmp
	case '<':
		return htmlLt
	case '>':
		return htmlGt
	case '"':
		return htmlQuot
	case '\'':
		return htmlApos
	case '/':
		return htmlSlash
	case '`':
		return htmlGrave
	case '=':
		return htmlEq
	}
	return ""
}

// contentEntity returns the replacement for c in interpolated element
// content, or "".  It is bodyEntity without the slash, so that dates, paths
// and closing tags in data read naturally once decoded.
func contentEntity(c byte) string {
	if c == '/' {
		return ""
	}
	return bodyEntity(c)
}

// attrEntity returns the replacement for c inside a quoted attribute value,
// or "".  Slashes and equals signs are harmless there and are left alone so
// that URLs survive intact.
func attrEntity(c byte) string {
	switch c {
	case '&':
		return htmlAmp
	case '<':
		return htmlLt
	case '>':
		return htmlGt
	case '"':
		return htmlQuot
	case '\'':
		return htmlApos
	case '`':
		return htmlGrave
	}
	return ""
}

// EscapeBody escapes text for use as HTML element content.
// It replaces & < > " ' / ` and = with entities.
func EscapeBody(text string) string {
	var b strings.Builder
	WriteBody(&b, text)
	return b.String()
}

// EscapeContent escapes a value interpolated into element content.
// It replaces & < > " ' ` and =, leaving slashes alone.
func EscapeContent(text string) string {
	var b strings.Builder
	WriteContent(&b, text)
	return b.String()
}

// EscapeAttribute escapes text for use inside a quoted attribute value.
// It replaces & < > " ' and `.
func EscapeAttribute(text string) string {
	var b strings.Builder
	WriteAttribute(&b, text)
	return b.String()
}

// WriteBody writes the body-escaped form of str to w without making copies.
func WriteBody(w io.Writer, str string) {
	writeEscaped(w, str, bodyEntity)
}

// WriteContent writes the content-escaped form of str to w.
func WriteContent(w io.Writer, str string) {
	writeEscaped(w, str, contentEntity)
}

// WriteAttribute writes the attribute-escaped form of str to w without making
// copies.
func WriteAttribute(w io.Writer, str string) {
	writeEscaped(w, str, attrEntity)
}

// writeEscaped is a modified version of the stdlib HTMLEscape routine.
func writeEscaped(w io.Writer, str string, entity func(byte) string) {
	last := 0
	for i := 0; i < len(str); i++ {
		var html = entity(str[i])
		if html == "" {
			continue
		}
		io.WriteString(w, str[last:i])
		io.WriteString(w, html)
		last = i + 1
	}
	io.WriteString(w, str[last:])
}

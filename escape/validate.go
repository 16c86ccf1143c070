package escape

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/robfig/soymail/errortypes"
)

// ValidationResult holds the findings of ValidateStructure.
type ValidationResult struct {
	IsValid                bool
	HasUnclosedTags        bool
	HasUnescapedCharacters bool
	UnclosedTags           []string // deduplicated, in the order found
	Issues                 []string
}

// voidTags never have a closing tag.
var voidTags = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "embed": true,
	"hr": true, "img": true, "input": true, "link": true, "meta": true,
	"param": true, "source": true, "track": true, "wbr": true,
}

// rawTextTags have bodies that are not markup.
var rawTextTags = map[string]bool{
	"script": true, "style": true,
}

var entityRef = regexp.MustCompile(`^&(?:#[0-9]+|#[xX][0-9a-fA-F]+|[a-zA-Z][a-zA-Z0-9]*);`)

// ValidateStructure scans html once, tracking open elements on a stack.
//
// Void elements are not tracked.  A closing tag that does not match the
// innermost open element is reported; any elements still open at the end are
// reported as unclosed.  Comments, doctypes and the bodies of <style> and
// <script> are skipped.  A '<' that does not begin a tag and a '&' that does
// not begin an entity are reported as unescaped characters.
//
// This is a diagnostic heuristic, not a parser, and must not be used as a
// security boundary.
func ValidateStructure(html string) ValidationResult {
	var v = validator{html: html, seen: make(map[string]bool)}
	v.scan()
	for i := len(v.stack) - 1; i >= 0; i-- {
		v.unclosed(v.stack[i], "unclosed tag <%s>")
	}
	var r = v.result
	r.HasUnclosedTags = len(r.UnclosedTags) > 0
	r.IsValid = !r.HasUnclosedTags && !r.HasUnescapedCharacters
	return r
}

type validator struct {
	html   string
	pos    int
	stack  []string
	seen   map[string]bool
	result ValidationResult
}

func (v *validator) scan() {
	for v.pos < len(v.html) {
		switch v.html[v.pos] {
		case '<':
			v.tag()
		case '&':
			if !entityRef.MatchString(v.html[v.pos:]) {
				v.unescaped('&')
			}
			v.pos++
		default:
			v.pos++
		}
	}
}

// tag handles markup beginning at a '<'.
func (v *validator) tag() {
	var rest = v.html[v.pos:]
	switch {
	case strings.HasPrefix(rest, "<!--"):
		var end = strings.Index(rest[4:], "-->")
		if end == -1 {
			v.issue("unterminated comment")
			v.pos = len(v.html)
			return
		}
		v.pos += 4 + end + 3
	case strings.HasPrefix(rest, "<!") || strings.HasPrefix(rest, "<?"):
		v.skipPast('>')
	case strings.HasPrefix(rest, "</"):
		var name = tagName(rest[2:])
		if name == "" {
			v.unescaped('<')
			v.pos++
			return
		}
		v.skipPast('>')
		v.closeTag(name)
	default:
		var name = tagName(rest[1:])
		if name == "" {
			v.unescaped('<')
			v.pos++
			return
		}
		var selfClosing = v.skipTag()
		if selfClosing || voidTags[name] {
			return
		}
		if rawTextTags[name] {
			v.skipRawText(name)
			return
		}
		v.stack = append(v.stack, name)
	}
}

// closeTag pops the stack for a closing tag.  If the name is open further
// down, the elements above it were left unclosed.
func (v *validator) closeTag(name string) {
	if voidTags[name] {
		return
	}
	for i := len(v.stack) - 1; i >= 0; i-- {
		if v.stack[i] != name {
			continue
		}
		for j := len(v.stack) - 1; j > i; j-- {
			v.unclosed(v.stack[j], "unclosed tag <%s>")
		}
		v.stack = v.stack[:i]
		return
	}
	v.unclosed(name, "closing tag </%s> does not match any open tag")
}

// skipTag advances past the end of an opening tag, respecting quoted
// attribute values.  It reports whether the tag was self-closing.
func (v *validator) skipTag() bool {
	var quote byte
	for i := v.pos + 1; i < len(v.html); i++ {
		var c = v.html[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'':
			quote = c
		case c == '>':
			v.pos = i + 1
			return v.html[i-1] == '/'
		}
	}
	v.issue("unterminated tag")
	v.pos = len(v.html)
	return true
}

func (v *validator) skipRawText(name string) {
	var end = strings.Index(strings.ToLower(v.html[v.pos:]), "</"+name)
	if end == -1 {
		v.unclosed(name, "unclosed tag <%s>")
		v.pos = len(v.html)
		return
	}
	v.pos += end
	v.skipPast('>')
}

func (v *validator) skipPast(c byte) {
	var i = strings.IndexByte(v.html[v.pos:], c)
	if i == -1 {
		v.issue("unterminated tag")
		v.pos = len(v.html)
		return
	}
	v.pos += i + 1
}

func (v *validator) unclosed(name, format string) {
	if v.seen[name] {
		return
	}
	v.seen[name] = true
	v.result.UnclosedTags = append(v.result.UnclosedTags, name)
	v.issue(fmt.Sprintf(format, name))
}

func (v *validator) unescaped(c byte) {
	v.result.HasUnescapedCharacters = true
	v.issue(fmt.Sprintf("unescaped %q at offset %d", c, v.pos))
}

func (v *validator) issue(msg string) {
	v.result.Issues = append(v.result.Issues, msg)
}

// tagName returns the lower-cased element name at the start of s, or "".
func tagName(s string) string {
	var i = 0
	for i < len(s) && isNameChar(s[i], i == 0) {
		i++
	}
	return strings.ToLower(s[:i])
}

func isNameChar(c byte, first bool) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z':
		return true
	case first:
		return false
	case '0' <= c && c <= '9', c == '-', c == ':':
		return true
	}
	return false
}

// Policy decides which structural findings are fatal at a validation
// checkpoint.  The zero Policy is advisory: findings are logged and never
// returned as errors.
type Policy struct {
	FailOnUnclosedTags        bool
	FailOnUnescapedCharacters bool
}

// Strict fails on every finding.
var Strict = Policy{FailOnUnclosedTags: true, FailOnUnescapedCharacters: true}

// Check validates the named template's html and returns a
// *errortypes.TemplateValidationError if the policy makes any finding fatal.
func (p Policy) Check(name, html string) error {
	var r = ValidateStructure(html)
	if r.IsValid {
		return nil
	}
	if (p.FailOnUnclosedTags && r.HasUnclosedTags) ||
		(p.FailOnUnescapedCharacters && r.HasUnescapedCharacters) {
		return &errortypes.TemplateValidationError{Template: name, Issues: r.Issues}
	}
	Logger.Debug().Str("template", name).Strs("issues", r.Issues).Msg("structural issues (advisory)")
	return nil
}

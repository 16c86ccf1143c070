package parse

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/robfig/soymail/ast"
)

// Lexer design from text/template

// Tokens ---------------------------------------------------------------------

// item represents a token or text string returned from the scanner.
type item struct {
	typ itemType // The type of this item.
	pos ast.Pos  // The starting position, in bytes, of this item in the input string.
	val string   // The value of this item.
}

func (i item) String() string {
	switch {
	case i.typ == itemEOF:
		return "EOF"
	case i.typ == itemError:
		return i.val
	case len(i.val) > 10:
		return fmt.Sprintf("%.10q...", i.val)
	}
	return fmt.Sprintf("%q", i.val)
}

// itemType identifies the type of lexical items.
type itemType int

// All items.
const (
	itemInvalid itemType = iota // not used
	itemEOF                     // EOF
	itemError                   // error occurred; value is text of error

	itemText    // plain text
	itemComment // {{! ... }} or {{!-- ... --}}

	// Tag delimiters
	itemLeftDelim      // {{
	itemRightDelim     // }}
	itemLeftDelimRaw   // {{{
	itemRightDelimRaw  // }}}
	itemOpenBlock      // # following {{
	itemCloseBlock     // / following {{
	itemPartial        // > following {{
	itemAmpersand      // & following {{
	itemElse           // else
	itemEquals         // =
	itemLeftParen      // (
	itemRightParen     // )
	itemPath           // e.g. order.items, ../name, @index, this
	itemString         // e.g. "hello world"
	itemInteger        // e.g. 42
	itemFloat          // e.g. 1.5
	itemBool           // true or false
	itemNull           // null
	itemUndefinedParam // undefined
)

var keywords = map[string]itemType{
	"else":      itemElse,
	"true":      itemBool,
	"false":     itemBool,
	"null":      itemNull,
	"undefined": itemUndefinedParam,
}

// String converts the itemType into its source string.
// It should only be used for error messages.
func (t itemType) String() string {
	var r, ok = map[itemType]string{
		itemEOF:            "<eof>",
		itemError:          "<error>",
		itemText:           "<text>",
		itemComment:        "<comment>",
		itemLeftDelim:      "{{",
		itemRightDelim:     "}}",
		itemLeftDelimRaw:   "{{{",
		itemRightDelimRaw:  "}}}",
		itemOpenBlock:      "#",
		itemCloseBlock:     "/",
		itemPartial:        ">",
		itemAmpersand:      "&",
		itemElse:           "else",
		itemEquals:         "=",
		itemLeftParen:      "(",
		itemRightParen:     ")",
		itemPath:           "<path>",
		itemString:         "<string>",
		itemInteger:        "<integer>",
		itemFloat:          "<float>",
		itemBool:           "<bool>",
		itemNull:           "null",
		itemUndefinedParam: "undefined",
	}[t]
	if ok {
		return r
	}
	return fmt.Sprintf("item(%d)", t)
}

// isValue returns true if the item may appear as a parameter.
func (t itemType) isValue() bool {
	switch t {
	case itemPath, itemString, itemInteger, itemFloat, itemBool, itemNull, itemUndefinedParam, itemLeftParen:
		return true
	}
	return false
}

// Lexer ----------------------------------------------------------------------

const (
	eof           = -1
	leftDelim     = "{{"
	rightDelim    = "}}"
	leftRawDelim  = "{{{"
	rightRawDelim = "}}}"
	decDigits     = "0123456789"
)

// stateFn represents the state of the lexer as a function that returns the
// next state.
type stateFn func(*lexer) stateFn

// lexer holds the state of the lexical scanning.
//
// Based on the lexer from the "text/template" package.  Items are produced
// on demand by nextItem, so that an abandoned lexer holds no resources.
type lexer struct {
	name    string  // the name of the input; used only during errors.
	input   string  // the string being scanned.
	state   stateFn // the next lexing function to enter.
	pos     ast.Pos // current position in the input.
	start   ast.Pos // start position of this item.
	width   int     // width of last rune read from input.
	items   []item  // scanned items not yet consumed.
	rawTag  bool    // the current tag was opened with {{{
	parens  int     // nesting depth of parentheses in the current tag.
	lastTyp itemType
}

// lex creates a new scanner for the input string.
func lex(name, input string) *lexer {
	return &lexer{
		name:  name,
		input: input,
		state: lexText,
	}
}

// nextItem returns the next item from the input.
func (l *lexer) nextItem() item {
	for len(l.items) == 0 {
		if l.state == nil {
			return item{itemEOF, l.pos, ""}
		}
		l.state = l.state(l)
	}
	var it = l.items[0]
	l.items = l.items[1:]
	return it
}

// next returns the next rune in the input.
func (l *lexer) next() (r rune) {
	if l.pos >= ast.Pos(len(l.input)) {
		l.width = 0
		return eof
	}
	r, l.width = utf8.DecodeRuneInString(l.input[l.pos:])
	l.pos += ast.Pos(l.width)
	return r
}

// peek returns but does not consume the next rune in the input.
func (l *lexer) peek() rune {
	r := l.next()
	l.backup()
	return r
}

// backup steps back one rune. Can only be called once per call of next.
func (l *lexer) backup() {
	l.pos -= ast.Pos(l.width)
}

// emit passes an item back to the client.
func (l *lexer) emit(t itemType) {
	l.items = append(l.items, item{t, l.start, l.input[l.start:l.pos]})
	l.lastTyp = t
	l.start = l.pos
}

// emitValue passes an item with the given value back to the client.
func (l *lexer) emitValue(t itemType, val string) {
	l.items = append(l.items, item{t, l.start, val})
	l.lastTyp = t
	l.start = l.pos
}

// ignore skips over the pending input before this point.
func (l *lexer) ignore() {
	l.start = l.pos
}

// accept consumes the next rune if it's from the valid set.
func (l *lexer) accept(valid string) bool {
	if strings.ContainsRune(valid, l.next()) {
		return true
	}
	l.backup()
	return false
}

// acceptRun consumes a run of runes from the valid set.
func (l *lexer) acceptRun(valid string) bool {
	pos := l.pos
	for strings.ContainsRune(valid, l.next()) {
	}
	l.backup()
	return l.pos > pos
}

// errorf returns an error item and terminates the scan by passing
// back a nil pointer that will be the next state.
func (l *lexer) errorf(format string, args ...interface{}) stateFn {
	l.items = append(l.items, item{itemError, l.start, fmt.Sprintf(format, args...)})
	return nil
}

// State functions ------------------------------------------------------------

// lexText scans until an opening tag delimiter, "{{".
// A backslash immediately before the delimiter makes it literal text.
func lexText(l *lexer) stateFn {
	var text strings.Builder
	var textStart = l.start
	var flush = func() {
		if text.Len() > 0 {
			l.items = append(l.items, item{itemText, textStart, text.String()})
			l.lastTyp = itemText
		}
	}
	for {
		var rest = l.input[l.pos:]
		var i = strings.Index(rest, leftDelim)
		if i == -1 {
			text.WriteString(rest)
			l.pos = ast.Pos(len(l.input))
			flush()
			l.start = l.pos
			l.emit(itemEOF)
			return nil
		}
		if i > 0 && rest[i-1] == '\\' {
			text.WriteString(rest[:i-1])
			text.WriteString(leftDelim)
			l.pos += ast.Pos(i + len(leftDelim))
			continue
		}
		text.WriteString(rest[:i])
		l.pos += ast.Pos(i)
		flush()
		l.start = l.pos
		return lexLeftDelim
	}
}

// lexLeftDelim scans the left tag delimiter and the sigil that follows it,
// if any.
func lexLeftDelim(l *lexer) stateFn {
	l.parens = 0
	if strings.HasPrefix(l.input[l.pos:], leftRawDelim) {
		l.pos += ast.Pos(len(leftRawDelim))
		l.rawTag = true
		l.emit(itemLeftDelimRaw)
		return lexInsideTag
	}
	l.pos += ast.Pos(len(leftDelim))
	l.rawTag = false
	if l.peek() == '!' {
		return lexComment
	}
	l.emit(itemLeftDelim)

	l.acceptRun(" \t\r\n")
	l.ignore()
	switch l.next() {
	case '#':
		l.emit(itemOpenBlock)
	case '/':
		l.emit(itemCloseBlock)
	case '>':
		l.emit(itemPartial)
	case '&':
		l.emit(itemAmpersand)
	default:
		l.backup()
	}
	return lexInsideTag
}

// lexComment scans a comment.  "{{" has been read and "!" is next.
// The long form {{!-- --}} may contain "}}".
func lexComment(l *lexer) stateFn {
	var closer = rightDelim
	if strings.HasPrefix(l.input[l.pos:], "!--") {
		closer = "--" + rightDelim
	}
	var i = strings.Index(l.input[l.pos:], closer)
	if i == -1 {
		return l.errorf("unclosed comment")
	}
	l.pos += ast.Pos(i + len(closer))
	l.emit(itemComment)
	return lexText
}

// lexRightDelim scans the right tag delimiter.
func lexRightDelim(l *lexer) stateFn {
	if l.rawTag {
		if !strings.HasPrefix(l.input[l.pos:], rightRawDelim) {
			return l.errorf("expected %s to close raw tag", rightRawDelim)
		}
		l.pos += ast.Pos(len(rightRawDelim))
		l.emit(itemRightDelimRaw)
		return lexText
	}
	l.pos += ast.Pos(len(rightDelim))
	l.emit(itemRightDelim)
	return lexText
}

// lexInsideTag is called repeatedly to scan elements inside a tag.
func lexInsideTag(l *lexer) stateFn {
	if strings.HasPrefix(l.input[l.pos:], rightDelim) {
		if l.parens > 0 {
			return l.errorf("unclosed left paren")
		}
		return lexRightDelim
	}
	switch r := l.next(); {
	case r == eof:
		return l.errorf("unclosed tag")
	case isSpaceEOL(r):
		l.ignore()
	case r == '=':
		l.emit(itemEquals)
	case r == '(':
		l.parens++
		l.emit(itemLeftParen)
	case r == ')':
		l.parens--
		if l.parens < 0 {
			return l.errorf("unexpected right paren")
		}
		l.emit(itemRightParen)
	case r == '"', r == '\'':
		return stringLexer(r)
	case r == '-' && isDigit(l.peek()), isDigit(r):
		l.backup()
		return lexNumber
	case r == '@', r == '.', isLetterOrUnderscore(r):
		l.backup()
		return lexPath
	default:
		return l.errorf("unrecognized character in tag: %#U", r)
	}
	return lexInsideTag
}

// stringLexer returns a stateFn that lexes strings surrounded by the given quote character.
func stringLexer(quoteChar rune) stateFn {
	// the quote char has already been read.
	return func(l *lexer) stateFn {
		for {
			switch l.next() {
			case eof:
				return l.errorf("unexpected eof while scanning string")
			case '\\':
				l.next() // skip escape sequences
			case quoteChar:
				l.emit(itemString)
				return lexInsideTag
			}
		}
	}
}

// lexPath recognizes identifiers, dotted paths and keywords.
func lexPath(l *lexer) stateFn {
	l.accept("@")
	for isPathChar(l.next()) {
	}
	l.backup()
	var word = l.input[l.start:l.pos]
	if typ, ok := keywords[word]; ok {
		l.emit(typ)
		return lexInsideTag
	}
	l.emit(itemPath)
	return lexInsideTag
}

// lexNumber scans an integer or a decimal float.
func lexNumber(l *lexer) stateFn {
	var typ = itemInteger
	l.accept("-")
	if !l.acceptRun(decDigits) {
		return l.errorf("bad number syntax: %q", l.input[l.start:l.pos])
	}
	if l.accept(".") {
		if !l.acceptRun(decDigits) {
			return l.errorf("bad number syntax: %q", l.input[l.start:l.pos])
		}
		typ = itemFloat
	}
	if isAlphaNumeric(l.peek()) {
		l.next()
		return l.errorf("bad number syntax: %q", l.input[l.start:l.pos])
	}
	l.emit(typ)
	return lexInsideTag
}

// Helpers --------------------------------------------------------------------

// isAlphaNumeric reports whether r is an alphabetic, digit, or underscore.
func isAlphaNumeric(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

// isPathChar reports whether r may appear within a path.  Slashes and dashes
// allow partial names such as "orders/line-item".
func isPathChar(r rune) bool {
	return isAlphaNumeric(r) || r == '.' || r == '/' || r == '-'
}

// isSpace reports whether r is a space character.
func isSpace(r rune) bool {
	return r == ' ' || r == '\t'
}

// isEndOfLine reports whether r is an end-of-line character.
func isEndOfLine(r rune) bool {
	return r == '\r' || r == '\n'
}

// isSpaceEOL returns true if r is space or end of line.
func isSpaceEOL(r rune) bool {
	return isSpace(r) || isEndOfLine(r)
}

func isLetterOrUnderscore(r rune) bool {
	return unicode.IsLetter(r) || r == '_'
}

func isDigit(r rune) bool {
	return '0' <= r && r <= '9'
}

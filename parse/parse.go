// Package parse converts a mail template into its in-memory representation
// (AST).
package parse

import (
	"fmt"
	"runtime"
	"strconv"
	"strings"

	"github.com/robfig/soymail/ast"
	"github.com/robfig/soymail/errortypes"
)

// tree is the parsed representation of a single template.
type tree struct {
	name      string        // name provided for the input
	root      *ast.ListNode // top-level root of the tree
	text      string        // the full input text
	lex       *lexer        // lexer provides a sequence of tokens
	token     [2]item       // two-token lookahead
	peekCount int           // how many tokens have we backed up?
	blocks    []string      // names of the currently open blocks
}

// Template parses the input into a TemplateNode (the AST).
// Syntax errors are reported as *errortypes.TemplateCompilationError.
func Template(name, text string) (node *ast.TemplateNode, err error) {
	var t = &tree{
		name: name,
		text: text,
		lex:  lex(name, text),
	}
	defer t.recover(&err)
	t.root = t.itemList(itemEOF)
	t.lex = nil
	return &ast.TemplateNode{
		Name: t.name,
		Text: t.text,
		Body: t.root,
	}, nil
}

// itemList:
//
//	textOrTag*
//
// Terminates when it comes across the given end token.  The tag-level end
// tokens ({{else}} and {{/...}}) are consumed along with their "{{".
func (t *tree) itemList(until ...itemType) *ast.ListNode {
	var list *ast.ListNode
	for {
		var token = t.next()
		if list == nil {
			list = &ast.ListNode{Pos: token.pos}
		}
		var node, halt = t.textOrTag(token, until)
		if halt {
			return list
		}
		if node != nil {
			list.Nodes = append(list.Nodes, node)
		}
	}
}

// textOrTag reads raw text or recognizes the start of tags until the end tag.
func (t *tree) textOrTag(token item, until []itemType) (node ast.Node, halt bool) {
	for token.typ == itemComment {
		token = t.next() // skip any comments
	}

	// Two ways to end a list:
	// 1. We found the until token (e.g. EOF)
	if isOneOf(token.typ, until) {
		return nil, true
	}

	// 2. The until token begins a tag, e.g. {{else}} {{/if}}
	if token.typ == itemLeftDelim {
		var token2 = t.next()
		if isOneOf(token2.typ, until) {
			return nil, true
		}
		t.backup()
	}

	switch token.typ {
	case itemText:
		var text = token.val
		for {
			var next = t.next()
			if next.typ == itemComment {
				continue
			}
			if next.typ != itemText {
				t.backup()
				break
			}
			text += next.val
		}
		return &ast.RawTextNode{Pos: token.pos, Text: []byte(text)}, false
	case itemLeftDelim:
		return t.beginTag(token), false
	case itemLeftDelimRaw:
		var arg = t.parseExpr("raw print", itemRightDelimRaw)
		t.expect(itemRightDelimRaw, "raw print")
		return &ast.PrintNode{Pos: token.pos, Arg: arg, Raw: true}, false
	case itemEOF:
		t.errorf("unclosed block {{#%s}}", t.blocks[len(t.blocks)-1])
	default:
		t.unexpected(token, "input")
	}
	return nil, false
}

// beginTag parses the contents of a tag.  "{{" has already been read.
func (t *tree) beginTag(open item) ast.Node {
	switch token := t.next(); token.typ {
	case itemOpenBlock:
		var name = t.expect(itemPath, "block")
		switch name.val {
		case "if":
			return t.parseIf(open, name.val, false)
		case "unless":
			return t.parseIf(open, name.val, true)
		case "each":
			return t.parseEach(open)
		case "with":
			return t.parseWith(open)
		}
		t.errorf("unknown block type %q", name.val)
	case itemCloseBlock:
		var name = t.next()
		t.errorf("unexpected closing tag {{/%s}} with no open block", name.val)
	case itemElse:
		t.errorf("{{else}} outside of a block")
	case itemPartial:
		return t.parsePartial(open)
	case itemAmpersand:
		var arg = t.parseExpr("raw print", itemRightDelim)
		t.expect(itemRightDelim, "raw print")
		return &ast.PrintNode{Pos: open.pos, Arg: arg, Raw: true}
	case itemRightDelim:
		t.errorf("empty tag")
	default:
		t.backup()
		var arg = t.parseExpr("print", itemRightDelim)
		t.expect(itemRightDelim, "print")
		return &ast.PrintNode{Pos: open.pos, Arg: arg}
	}
	return nil
}

// "if" or "unless" has just been read.
func (t *tree) parseIf(open item, name string, unless bool) ast.Node {
	t.push(name)
	var conds []*ast.IfCondNode
	var pos = open.pos
	for {
		var cond = t.parseParam(name)
		t.expect(itemRightDelim, name)
		var body = t.itemList(itemElse, itemCloseBlock)
		conds = append(conds, &ast.IfCondNode{Pos: pos, Cond: cond, Body: body})
		t.backup()
		switch tok := t.next(); tok.typ {
		case itemElse:
			pos = tok.pos
			switch next := t.next(); {
			case next.typ == itemRightDelim:
				var body = t.itemList(itemCloseBlock)
				conds = append(conds, &ast.IfCondNode{Pos: tok.pos, Body: body})
				t.closeBlock(name)
				return &ast.IfNode{Pos: open.pos, Unless: unless, Conds: conds}
			case next.typ == itemPath && next.val == "if" && !unless:
				continue
			default:
				t.unexpected(next, "else (expected }} or if)")
			}
		case itemCloseBlock:
			t.closeBlock(name)
			return &ast.IfNode{Pos: open.pos, Unless: unless, Conds: conds}
		}
	}
}

// "each" has just been read.
func (t *tree) parseEach(open item) ast.Node {
	t.push("each")
	var list = t.parseParam("each")
	t.expect(itemRightDelim, "each")
	var body, elseBody = t.bodyAndElse("each")
	return &ast.EachNode{Pos: open.pos, List: list, Body: body, Else: elseBody}
}

// "with" has just been read.
func (t *tree) parseWith(open item) ast.Node {
	t.push("with")
	var ctx = t.parseParam("with")
	t.expect(itemRightDelim, "with")
	var body, elseBody = t.bodyAndElse("with")
	return &ast.WithNode{Pos: open.pos, Context: ctx, Body: body, Else: elseBody}
}

// bodyAndElse reads a block body with an optional {{else}} section, through
// the closing tag.
func (t *tree) bodyAndElse(name string) (body, elseBody *ast.ListNode) {
	body = t.itemList(itemElse, itemCloseBlock)
	t.backup()
	if t.next().typ == itemElse {
		t.expect(itemRightDelim, "else")
		elseBody = t.itemList(itemCloseBlock)
	}
	t.closeBlock(name)
	return body, elseBody
}

// ">" has just been read.
func (t *tree) parsePartial(open item) ast.Node {
	var node = &ast.PartialNode{Pos: open.pos}
	switch tok := t.next(); tok.typ {
	case itemPath:
		node.Name = tok.val
	case itemString:
		node.Name = t.unquote(tok)
	default:
		t.unexpected(tok, "partial (expected name)")
	}
	if !validPartialName(node.Name) {
		t.errorf("invalid partial name %q", node.Name)
	}
	for {
		if t.peek().typ == itemRightDelim {
			t.next()
			return node
		}
		if pair := t.maybeHashPair("partial"); pair != nil {
			node.Hash = append(node.Hash, pair)
			continue
		}
		if node.Context != nil || len(node.Hash) > 0 {
			t.unexpected(t.next(), "partial (expected key=value)")
		}
		node.Context = t.parseParam("partial")
	}
}

// parseExpr parses the contents of a print tag or subexpression:
//
//	param
//	helper param* (key=param)*
//
// It stops before the given closing token.
func (t *tree) parseExpr(context string, closer itemType) ast.Node {
	var first = t.next()
	if first.typ != itemPath {
		t.backup()
		var param = t.parseParam(context)
		if next := t.peek(); next.typ != closer {
			t.unexpected(next, context)
		}
		return param
	}
	if t.next().typ == closer {
		t.backup()
		return t.newPath(first)
	}
	t.backup()

	var fn = &ast.FunctionNode{Pos: first.pos, Name: first.val}
	if !isHelperName(first.val) {
		t.errorf("invalid helper name %q", first.val)
	}
	for t.peek().typ != closer {
		if pair := t.maybeHashPair(context); pair != nil {
			fn.Hash = append(fn.Hash, pair)
			continue
		}
		if len(fn.Hash) > 0 {
			t.unexpected(t.next(), context+" (positional argument after key=value)")
		}
		fn.Args = append(fn.Args, t.parseParam(context))
	}
	return fn
}

// maybeHashPair parses key=param if it is next in the input, or returns nil.
func (t *tree) maybeHashPair(context string) *ast.HashPairNode {
	var key = t.next()
	if key.typ != itemPath {
		t.backup()
		return nil
	}
	var eq = t.next()
	if eq.typ != itemEquals {
		t.backup2(key)
		return nil
	}
	if !isHelperName(key.val) {
		t.errorf("invalid key %q", key.val)
	}
	return &ast.HashPairNode{Pos: key.pos, Key: key.val, Value: t.parseParam(context)}
}

// parseParam parses a single value: a path, a literal, or a parenthesized
// helper call.
func (t *tree) parseParam(context string) ast.Node {
	switch tok := t.next(); tok.typ {
	case itemPath:
		return t.newPath(tok)
	case itemString:
		var value = t.unquote(tok)
		return &ast.StringNode{Pos: tok.pos, Quoted: quoteString(value), Value: value}
	case itemInteger:
		var value, err = strconv.ParseInt(tok.val, 10, 64)
		if err != nil {
			t.error(err)
		}
		return &ast.IntNode{Pos: tok.pos, Value: value}
	case itemFloat:
		var value, err = strconv.ParseFloat(tok.val, 64)
		if err != nil {
			t.error(err)
		}
		return &ast.FloatNode{Pos: tok.pos, Value: value}
	case itemBool:
		return &ast.BoolNode{Pos: tok.pos, True: tok.val == "true"}
	case itemNull, itemUndefinedParam:
		return &ast.NullNode{Pos: tok.pos}
	case itemLeftParen:
		var expr = t.parseExpr("subexpression", itemRightParen)
		t.expect(itemRightParen, "subexpression")
		if _, ok := expr.(*ast.FunctionNode); !ok {
			t.errorf("subexpression must call a helper")
		}
		return expr
	default:
		t.unexpected(tok, context)
	}
	return nil
}

// newPath splits a path token into its parts.
func (t *tree) newPath(tok item) *ast.PathNode {
	var node = &ast.PathNode{Pos: tok.pos, Original: tok.val}
	var s = tok.val
	if strings.HasPrefix(s, "@") {
		node.Data = true
		s = s[1:]
	}
	for strings.HasPrefix(s, "../") {
		node.Depth++
		s = s[3:]
	}
	switch {
	case s == "this" || s == ".":
		return node
	case strings.HasPrefix(s, "this.") || strings.HasPrefix(s, "this/"):
		s = s[len("this."):]
	case strings.HasPrefix(s, "./"):
		s = s[len("./"):]
	}
	for _, part := range strings.FieldsFunc(s, func(r rune) bool { return r == '.' || r == '/' }) {
		if part == "this" || part == ".." {
			t.errorf("invalid path %q", tok.val)
		}
		node.Parts = append(node.Parts, part)
	}
	if len(node.Parts) == 0 || strings.Contains(s, "..") || strings.Contains(s, "//") ||
		strings.HasSuffix(s, ".") || strings.HasSuffix(s, "/") {
		t.errorf("invalid path %q", tok.val)
	}
	return node
}

func (t *tree) unquote(tok item) string {
	var s, err = unquoteString(tok.val)
	if err != nil {
		t.errorf("%v", err)
	}
	return s
}

func (t *tree) push(name string) {
	t.blocks = append(t.blocks, name)
}

// closeBlock reads the name and delimiter of a closing tag, after "{{/" has
// been read, and checks that it matches the open block.
func (t *tree) closeBlock(name string) {
	var tok = t.next()
	if tok.typ != itemPath || tok.val != name {
		t.errorf("mismatched closing tag {{/%s}}, expected {{/%s}}", tok.val, name)
	}
	t.expect(itemRightDelim, "/"+name)
	t.blocks = t.blocks[:len(t.blocks)-1]
}

func isHelperName(s string) bool {
	if s == "" || s == "this" || strings.ContainsAny(s, "./@") {
		return false
	}
	return true
}

func validPartialName(s string) bool {
	if s == "" || strings.HasPrefix(s, "/") || strings.HasPrefix(s, "@") {
		return false
	}
	for _, part := range strings.Split(s, "/") {
		if part == "" || part == "." || part == ".." {
			return false
		}
	}
	return true
}

// Helpers ----------

// next returns the next token.
func (t *tree) next() item {
	if t.peekCount > 0 {
		t.peekCount--
	} else {
		t.token[0] = t.lex.nextItem()
	}
	return t.token[t.peekCount]
}

// backup backs the input stream up one token.
func (t *tree) backup() {
	t.peekCount++
}

// backup2 backs the input stream up two tokens.
// The zeroth token is already there.
func (t *tree) backup2(t1 item) {
	t.token[1] = t1
	t.peekCount = 2
}

// peek returns but does not consume the next token.
func (t *tree) peek() item {
	if t.peekCount > 0 {
		return t.token[t.peekCount-1]
	}
	t.peekCount = 1
	t.token[0] = t.lex.nextItem()
	return t.token[0]
}

// recover is the handler that turns panics into returns from the top level of Parse.
func (t *tree) recover(errp *error) {
	e := recover()
	if e == nil {
		return
	}
	if _, ok := e.(runtime.Error); ok {
		panic(e)
	}
	t.lex = nil
	*errp = e.(error)
}

// expect consumes the next token and guarantees it has the required type.
func (t *tree) expect(expected itemType, context string) item {
	token := t.next()
	if token.typ != expected {
		t.unexpected(token, fmt.Sprintf("%v (expected %v)", context, expected.String()))
	}
	return token
}

// unexpected complains about the token and terminates processing.
func (t *tree) unexpected(token item, context string) {
	if token.typ == itemError {
		t.errorf("lexical error: %v", token)
	}
	if token.typ == itemEOF && len(t.blocks) > 0 {
		t.errorf("unclosed block {{#%s}}", t.blocks[len(t.blocks)-1])
	}
	t.errorf("unexpected %v in %s", token, context)
}

// errorf formats the error and terminates processing.
func (t *tree) errorf(format string, args ...interface{}) {
	// get current token (taking account of backups)
	var tok = t.token[0]
	if t.peekCount > 0 {
		tok = t.token[t.peekCount-1]
	}
	t.root = nil
	var line, col = ast.Location(t.text, tok.pos)
	panic(&errortypes.TemplateCompilationError{
		Template: t.name,
		Fragment: ast.Fragment(t.text, tok.pos),
		LineNo:   line,
		ColNo:    col,
		Err:      fmt.Errorf(format, args...),
	})
}

// error terminates processing.
func (t *tree) error(err error) {
	t.errorf("%s", err)
}

func isOneOf(tocheck itemType, against []itemType) bool {
	for _, x := range against {
		if tocheck == x {
			return true
		}
	}
	return false
}

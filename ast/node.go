// Package ast contains definitions for the in-memory representation of a mail
// template.
package ast

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
)

// Node represents any singular piece of a template.  For example, a sequence
// of raw text or a print tag.
type Node interface {
	String() string // String returns the template source representation of this node.
	Position() Pos  // byte position of start of node in full original input string
}

// ParentNode is any Node that has descendent nodes.  For example, the Children
// of an IfNode are its conditions.
type ParentNode interface {
	Node
	Children() []Node
}

// Pos represents a byte position in the original input text from which this
// template was parsed.  It is useful to construct helpful error messages.
type Pos int

// Position returns this position.  It is implemented as a method so that Nodes
// may embed a Pos and fulfill this part of the Node interface for free.
func (p Pos) Position() Pos {
	return p
}

// TemplateNode is the root of a parsed template.
type TemplateNode struct {
	Name string
	Text string
	Body *ListNode
}

func (n *TemplateNode) Position() Pos {
	return 0
}

func (n *TemplateNode) Children() []Node {
	return []Node{n.Body}
}

func (n *TemplateNode) String() string {
	return n.Body.String()
}

// Location returns the 1-based line and column of pos within the template
// text.
func (n *TemplateNode) Location(pos Pos) (line, col int) {
	return Location(n.Text, pos)
}

// Location returns the 1-based line and column of pos within text.
func Location(text string, pos Pos) (line, col int) {
	if int(pos) > len(text) {
		pos = Pos(len(text))
	}
	line = 1 + strings.Count(text[:pos], "\n")
	col = int(pos) - strings.LastIndex(text[:pos], "\n")
	return line, col
}

// Fragment returns the tag enclosing pos, for use in error messages.
func Fragment(text string, pos Pos) string {
	if int(pos) > len(text) {
		pos = Pos(len(text))
	}
	var start = strings.LastIndex(text[:pos], "{{")
	if start == -1 {
		start = int(pos)
	}
	var end = len(text)
	if i := strings.Index(text[pos:], "}}"); i != -1 {
		end = int(pos) + i + 2
	}
	for end < len(text) && text[end] == '}' {
		end++
	}
	var frag = text[start:end]
	if len(frag) > 60 {
		frag = frag[:57] + "..."
	}
	return frag
}

// ListNode holds a sequence of nodes.
type ListNode struct {
	Pos
	Nodes []Node // The element nodes in lexical order.
}

func (l *ListNode) String() string {
	b := new(bytes.Buffer)
	for _, n := range l.Nodes {
		fmt.Fprint(b, n)
	}
	return b.String()
}

func (l *ListNode) Children() []Node {
	return l.Nodes
}

type RawTextNode struct {
	Pos
	Text []byte // The text; may span newlines.
}

func (t *RawTextNode) String() string {
	return strings.Replace(string(t.Text), "{{", `\{{`, -1)
}

// EscapeContext identifies the escaping applied to a printed value.
type EscapeContext int

const (
	ContextBody EscapeContext = iota // element content
	ContextAttr                      // inside a quoted attribute value
)

func (c EscapeContext) String() string {
	if c == ContextAttr {
		return "attr"
	}
	return "body"
}

// PrintNode interpolates the value of Arg.  Unless Raw is set, the value is
// escaped for its Context.
type PrintNode struct {
	Pos
	Arg     Node
	Raw     bool
	Context EscapeContext
}

func (n *PrintNode) String() string {
	if n.Raw {
		return "{{{" + n.Arg.String() + "}}}"
	}
	return "{{" + n.Arg.String() + "}}"
}

func (n *PrintNode) Children() []Node {
	return []Node{n.Arg}
}

// IfNode is {{#if}} or, when Unless is set, {{#unless}}.  The first condition
// belongs to the opening tag; subsequent ones come from {{else if}} and a final
// condition with a nil Cond from {{else}}.
type IfNode struct {
	Pos
	Unless bool
	Conds  []*IfCondNode
}

func (n *IfNode) String() string {
	var name = "if"
	if n.Unless {
		name = "unless"
	}
	var expr string
	for i, cond := range n.Conds {
		switch {
		case i == 0:
			expr += "{{#" + name + " " + cond.Cond.String() + "}}"
		case cond.Cond == nil:
			expr += "{{else}}"
		default:
			expr += "{{else if " + cond.Cond.String() + "}}"
		}
		expr += cond.Body.String()
	}
	return expr + "{{/" + name + "}}"
}

func (n *IfNode) Children() []Node {
	var nodes = make([]Node, len(n.Conds))
	for i, cond := range n.Conds {
		nodes[i] = cond
	}
	return nodes
}

type IfCondNode struct {
	Pos
	Cond Node // nil for the else branch
	Body *ListNode
}

func (n *IfCondNode) String() string {
	var expr = "{{else}}"
	if n.Cond != nil {
		expr = "{{else if " + n.Cond.String() + "}}"
	}
	return expr + n.Body.String()
}

func (n *IfCondNode) Children() []Node {
	if n.Cond == nil {
		return []Node{n.Body}
	}
	return []Node{n.Cond, n.Body}
}

// EachNode iterates over a list, or a map in key order.  Else is rendered
// when the collection is empty or absent.
type EachNode struct {
	Pos
	List Node
	Body *ListNode
	Else *ListNode
}

func (n *EachNode) String() string {
	var expr = "{{#each " + n.List.String() + "}}" + n.Body.String()
	if n.Else != nil {
		expr += "{{else}}" + n.Else.String()
	}
	return expr + "{{/each}}"
}

func (n *EachNode) Children() []Node {
	var children = []Node{n.List, n.Body}
	if n.Else != nil {
		children = append(children, n.Else)
	}
	return children
}

// WithNode renders Body with Context as the current context.
type WithNode struct {
	Pos
	Context Node
	Body    *ListNode
	Else    *ListNode
}

func (n *WithNode) String() string {
	var expr = "{{#with " + n.Context.String() + "}}" + n.Body.String()
	if n.Else != nil {
		expr += "{{else}}" + n.Else.String()
	}
	return expr + "{{/with}}"
}

func (n *WithNode) Children() []Node {
	var children = []Node{n.Context, n.Body}
	if n.Else != nil {
		children = append(children, n.Else)
	}
	return children
}

// PartialNode includes the named partial, optionally with a new context and
// additional hash values layered on top of it.
type PartialNode struct {
	Pos
	Name    string
	Context Node // may be nil, meaning the current context
	Hash    []*HashPairNode
}

func (n *PartialNode) String() string {
	var expr = "{{> " + n.Name
	if n.Context != nil {
		expr += " " + paramString(n.Context)
	}
	for _, pair := range n.Hash {
		expr += " " + pair.String()
	}
	return expr + "}}"
}

func (n *PartialNode) Children() []Node {
	var children []Node
	if n.Context != nil {
		children = append(children, n.Context)
	}
	for _, pair := range n.Hash {
		children = append(children, pair)
	}
	return children
}

// Values ----------

type NullNode struct {
	Pos
}

func (s *NullNode) String() string {
	return "null"
}

type BoolNode struct {
	Pos
	True bool
}

func (b *BoolNode) String() string {
	if b.True {
		return "true"
	}
	return "false"
}

type IntNode struct {
	Pos
	Value int64
}

func (n *IntNode) String() string {
	return strconv.FormatInt(n.Value, 10)
}

type FloatNode struct {
	Pos
	Value float64
}

func (n *FloatNode) String() string {
	return strconv.FormatFloat(n.Value, 'g', -1, 64)
}

type StringNode struct {
	Pos
	Quoted string // e.g. "hello\tworld"
	Value  string // e.g. hello	world
}

func (s *StringNode) String() string {
	return s.Quoted
}

// PathNode is a reference into the context.
//
//	name          Parts=[name]
//	order.total   Parts=[order total]
//	../name       Depth=1 Parts=[name]
//	this          Parts=[]
//	@index        Data=true Parts=[index]
//	@root.data    Data=true Parts=[root data]
type PathNode struct {
	Pos
	Original string
	Data     bool
	Depth    int
	Parts    []string
}

func (n *PathNode) String() string {
	return n.Original
}

// Simple returns true if the path is a single bare identifier, which may name
// a helper.
func (n *PathNode) Simple() bool {
	return !n.Data && n.Depth == 0 && len(n.Parts) == 1 &&
		!strings.ContainsAny(n.Original, "./")
}

// FunctionNode is a helper invocation, either as the whole of a tag or as a
// parenthesized subexpression.
type FunctionNode struct {
	Pos
	Name string
	Args []Node
	Hash []*HashPairNode
}

func (n *FunctionNode) String() string {
	var expr = n.Name
	for _, arg := range n.Args {
		expr += " " + paramString(arg)
	}
	for _, pair := range n.Hash {
		expr += " " + pair.String()
	}
	return expr
}

func (n *FunctionNode) Children() []Node {
	var children = append([]Node(nil), n.Args...)
	for _, pair := range n.Hash {
		children = append(children, pair)
	}
	return children
}

// HashPairNode is a key=value argument.
type HashPairNode struct {
	Pos
	Key   string
	Value Node
}

func (n *HashPairNode) String() string {
	return n.Key + "=" + paramString(n.Value)
}

func (n *HashPairNode) Children() []Node {
	return []Node{n.Value}
}

func paramString(n Node) string {
	if _, ok := n.(*FunctionNode); ok {
		return "(" + n.String() + ")"
	}
	return n.String()
}

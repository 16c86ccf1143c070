// Package parsepasses contains checks and rewrites applied to a parsed
// template before it is executed.
package parsepasses

import (
	"github.com/robfig/soymail/ast"
)

// InferEscapeContexts marks each escaped print node with the context it
// appears in, by tracking the markup state through the raw text that
// precedes it.  A print inside a quoted attribute value gets attribute
// escaping; everything else keeps the default body escaping.
//
// Each branch of a conditional or loop starts from the state at the block's
// opening tag, and the state after the first branch carries on.
func InferEscapeContexts(node *ast.TemplateNode) {
	var s markupState
	s.walk(node.Body)
}

// markupState is a reduced HTML tokenizer state.
type markupState struct {
	inTag bool // between '<name' and '>'
	quote byte // open attribute quote, when inTag
}

func (s *markupState) walk(node ast.Node) {
	switch node := node.(type) {
	case *ast.RawTextNode:
		s.text(node.Text)
	case *ast.PrintNode:
		if !node.Raw && s.inTag && s.quote != 0 {
			node.Context = ast.ContextAttr
		}
	case *ast.IfNode:
		var entry = *s
		for i, cond := range node.Conds {
			var branch = entry
			branch.walk(cond.Body)
			if i == 0 {
				*s = branch
			}
		}
	case *ast.EachNode:
		s.branches(node.Body, node.Else)
	case *ast.WithNode:
		s.branches(node.Body, node.Else)
	case ast.ParentNode:
		for _, child := range node.Children() {
			s.walk(child)
		}
	}
}

func (s *markupState) branches(body, elseBody *ast.ListNode) {
	var entry = *s
	s.walk(body)
	if elseBody != nil {
		var branch = entry
		branch.walk(elseBody)
	}
}

// text advances the state over a run of raw markup.
func (s *markupState) text(text []byte) {
	for i := 0; i < len(text); i++ {
		var c = text[i]
		switch {
		case !s.inTag:
			if c == '<' && i+1 < len(text) && isTagStart(text[i+1]) {
				s.inTag = true
			}
		case s.quote != 0:
			if c == s.quote {
				s.quote = 0
			}
		case c == '"' || c == '\'':
			s.quote = c
		case c == '>':
			s.inTag = false
		}
	}
}

func isTagStart(c byte) bool {
	return c == '/' || c == '!' || 'a' <= c && c <= 'z' || 'A' <= c && c <= 'Z'
}

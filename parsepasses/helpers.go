package parsepasses

import (
	"fmt"
	"sort"

	"github.com/robfig/soymail/ast"
	"github.com/robfig/soymail/errortypes"
)

// CheckHelpers verifies that every helper invoked with arguments, or as a
// subexpression, is known.  Bare identifiers are left alone: they may name a
// helper or a context value and are resolved during execution.
func CheckHelpers(node *ast.TemplateNode, known func(name string) bool) error {
	var unknown *ast.FunctionNode
	walk(node, func(n ast.Node) bool {
		if fn, ok := n.(*ast.FunctionNode); ok && !known(fn.Name) {
			unknown = fn
			return false
		}
		return true
	})
	if unknown == nil {
		return nil
	}
	var line, col = node.Location(unknown.Pos)
	return &errortypes.TemplateCompilationError{
		Template: node.Name,
		Fragment: ast.Fragment(node.Text, unknown.Pos),
		LineNo:   line,
		ColNo:    col,
		Err:      fmt.Errorf("unknown helper %q", unknown.Name),
	}
}

// PartialNames returns the sorted, distinct names of the partials that node
// includes directly.
func PartialNames(node ast.Node) []string {
	var seen = make(map[string]bool)
	var names []string
	walk(node, func(n ast.Node) bool {
		if p, ok := n.(*ast.PartialNode); ok && !seen[p.Name] {
			seen[p.Name] = true
			names = append(names, p.Name)
		}
		return true
	})
	sort.Strings(names)
	return names
}

// walk calls fn for node and each of its descendants, in order, until fn
// returns false.
func walk(node ast.Node, fn func(ast.Node) bool) bool {
	if !fn(node) {
		return false
	}
	if parent, ok := node.(ast.ParentNode); ok {
		for _, child := range parent.Children() {
			if child == nil {
				continue
			}
			if !walk(child, fn) {
				return false
			}
		}
	}
	return true
}

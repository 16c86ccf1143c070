// Package template holds compiled templates and the cache that maps template
// source to its compiled form.
package template

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/robfig/soymail/ast"
)

// Template is the compiled form of a template source.  It is derived
// deterministically from Name and the source text, and is never modified after
// it is built.
type Template struct {
	Name     string
	Hash     string            // hex sha256 of the source text
	Node     *ast.TemplateNode // parse tree, with escape contexts inferred
	Partials []string          // names of partials included directly
}

// Hash returns the identity of a template source text.
func Hash(text string) string {
	var sum = sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

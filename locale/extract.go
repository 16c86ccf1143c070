package locale

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/robfig/gettext/po"

	"github.com/robfig/soymail/ast"
)

// Extractor collects the messages that templates look up with the t helper,
// for writing a PO template that translators start from.
type Extractor struct {
	file  po.File
	index map[msgKey]int
}

// NewExtractor returns an empty Extractor.
func NewExtractor() *Extractor {
	return &Extractor{index: make(map[msgKey]int)}
}

// Add records every t call in the template whose message id is a string
// literal.  Hash argument names are noted as placeholders.
func (e *Extractor) Add(tree *ast.TemplateNode) {
	e.extract(tree, tree)
}

func (e *Extractor) extract(tree *ast.TemplateNode, node ast.Node) {
	if fn, ok := node.(*ast.FunctionNode); ok && fn.Name == "t" && len(fn.Args) > 0 {
		if id, ok := fn.Args[0].(*ast.StringNode); ok {
			var line, _ = tree.Location(fn.Pos)
			var keys []string
			for _, pair := range fn.Hash {
				keys = append(keys, pair.Key)
			}
			e.AddMessage("", id.Value, fmt.Sprintf("%s:%d", tree.Name, line), keys...)
		}
	}
	if parent, ok := node.(ast.ParentNode); ok {
		for _, child := range parent.Children() {
			e.extract(tree, child)
		}
	}
}

// AddMessage records a message by context and id, merging references and
// placeholders into an earlier entry for the same message.
func (e *Extractor) AddMessage(ctxt, id, ref string, placeholders ...string) {
	var key = msgKey{ctxt, id}
	var i, ok = e.index[key]
	if !ok {
		i = len(e.file.Messages)
		e.index[key] = i
		e.file.Messages = append(e.file.Messages, po.Message{Ctxt: ctxt, Id: id})
	}
	var msg = &e.file.Messages[i]
	if ref != "" && !contains(msg.Comment.References, ref) {
		msg.Comment.References = append(msg.Comment.References, ref)
	}
	if len(placeholders) > 0 {
		var note = "placeholders: " + strings.Join(placeholders, ", ")
		if !contains(msg.Comment.ExtractedComments, note) {
			msg.Comment.ExtractedComments = append(msg.Comment.ExtractedComments, note)
		}
	}
}

// Messages returns the collected messages ordered by context, then id.
func (e *Extractor) Messages() []po.Message {
	var msgs = append([]po.Message(nil), e.file.Messages...)
	sort.SliceStable(msgs, func(i, j int) bool {
		if msgs[i].Ctxt != msgs[j].Ctxt {
			return msgs[i].Ctxt < msgs[j].Ctxt
		}
		return msgs[i].Id < msgs[j].Id
	})
	return msgs
}

// Write writes the collected messages in PO format.
func (e *Extractor) Write(w io.Writer) {
	var file = po.File{Messages: e.Messages()}
	file.WriteTo(w)
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

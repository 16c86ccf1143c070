package render

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"runtime/debug"
	"strconv"
	"strings"

	"github.com/robfig/soymail/ast"
	"github.com/robfig/soymail/data"
	"github.com/robfig/soymail/errortypes"
	"github.com/robfig/soymail/escape"
	"github.com/robfig/soymail/template"
)

// state represents the state of an execution.
type state struct {
	ctx      context.Context
	engine   *Engine
	tmpl     *template.Template // template being executed; a partial while inside one
	wr       *strings.Builder
	node     ast.Node   // current node, for errors
	val      data.Value // temp value for expression being computed
	context  scope      // context stack
	partials []string   // partials being included, outermost first
	mode     Mode
	locale   string
}

// at marks the state to be on node n, for error reporting.
func (s *state) at(node ast.Node) {
	s.node = node
}

// location describes the current position for error messages.
func (s *state) location() string {
	if s.node == nil {
		return s.tmpl.Name
	}
	var line, col = s.tmpl.Node.Location(s.node.Position())
	return fmt.Sprintf("%d:%d", line, col)
}

// errorf formats the error and terminates processing.
func (s *state) errorf(format string, args ...interface{}) {
	panic(&errortypes.TemplateRuntimeError{
		Template: s.tmpl.Name,
		Err:      fmt.Errorf("%s: %s", s.location(), fmt.Sprintf(format, args...)),
	})
}

// errRecover is the handler that turns panics into returns from the top
// level of Execute.
func (s *state) errRecover(errp *error) {
	if e := recover(); e != nil {
		switch e := e.(type) {
		case runtime.Error:
			Logger.Error().Str("template", s.tmpl.Name).Str("stack", string(debug.Stack())).Msg(e.Error())
			*errp = &errortypes.TemplateRuntimeError{
				Template: s.tmpl.Name,
				Err:      fmt.Errorf("%s: %v", s.location(), e),
			}
		case *errortypes.TemplateRuntimeError,
			*errortypes.MissingVariableError,
			*errortypes.TemplateCompilationError:
			*errp = e.(error)
		case error:
			*errp = &errortypes.TemplateRuntimeError{Template: s.tmpl.Name, Err: e}
		default:
			*errp = &errortypes.TemplateRuntimeError{
				Template: s.tmpl.Name,
				Err:      fmt.Errorf("%s: %v", s.location(), e),
			}
		}
	}
}

// walk recursively goes through each node and executes the indicated logic and
// writes the output
func (s *state) walk(node ast.Node) {
	s.val = data.Undefined{}
	s.at(node)
	switch node := node.(type) {
	case *ast.TemplateNode:
		s.walk(node.Body)
	case *ast.ListNode:
		for _, node := range node.Nodes {
			s.walk(node)
		}

		// Output nodes ----------
	case *ast.RawTextNode:
		s.wr.Write(node.Text)
	case *ast.PrintNode:
		s.evalPrint(node)
	case *ast.PartialNode:
		s.evalPartial(node)

		// Control flow ----------
	case *ast.IfNode:
		for i, cond := range node.Conds {
			if cond.Cond == nil {
				s.walk(cond.Body)
				break
			}
			var truthy = s.eval(cond.Cond).Truthy()
			if i == 0 && node.Unless {
				truthy = !truthy
			}
			if truthy {
				s.walk(cond.Body)
				break
			}
		}
	case *ast.EachNode:
		s.evalEach(node)
	case *ast.WithNode:
		var val = s.eval(node.Context)
		if !val.Truthy() {
			if node.Else != nil {
				s.walk(node.Else)
			}
			break
		}
		s.context.push(val, nil)
		s.walk(node.Body)
		s.context.pop()

		// Values ----------
	case *ast.NullNode:
		s.val = data.Null{}
	case *ast.StringNode:
		s.val = data.String(node.Value)
	case *ast.IntNode:
		s.val = data.Int(node.Value)
	case *ast.FloatNode:
		s.val = data.Float(node.Value)
	case *ast.BoolNode:
		s.val = data.Bool(node.True)
	case *ast.PathNode:
		s.val = s.evalPath(node)
	case *ast.FunctionNode:
		s.val = s.evalHelper(node.Name, node.Args, node.Hash)

	default:
		s.errorf("unknown node: %T", node)
	}
}

func (s *state) evalPrint(node *ast.PrintNode) {
	var result = s.eval(node.Arg)
	if path, ok := node.Arg.(*ast.PathNode); ok && isUndefined(result) {
		s.missing(path)
	}
	if _, ok := result.(data.HTML); ok || node.Raw || s.mode == ModeText {
		s.wr.WriteString(result.String())
		return
	}
	if node.Context == ast.ContextAttr {
		escape.WriteAttribute(s.wr, result.String())
	} else {
		escape.WriteContent(s.wr, result.String())
	}
}

// missing handles a printed reference with no value.
func (s *state) missing(path *ast.PathNode) {
	if s.engine.strict {
		panic(&errortypes.MissingVariableError{Template: s.tmpl.Name, Path: path.Original})
	}
	Logger.Debug().
		Str("template", s.tmpl.Name).
		Str("path", path.Original).
		Str("at", s.location()).
		Msg("missing value")
}

func (s *state) evalEach(node *ast.EachNode) {
	var val = s.eval(node.List)
	switch coll := val.(type) {
	case data.List:
		if len(coll) == 0 {
			break
		}
		for i, item := range coll {
			s.context.push(item, loopVars(i, len(coll)))
			s.walk(node.Body)
			s.context.pop()
		}
		return
	case data.Map:
		if len(coll) == 0 {
			break
		}
		var keys = coll.Keys()
		for i, key := range keys {
			var vars = loopVars(i, len(keys))
			vars["key"] = data.String(key)
			s.context.push(coll[key], vars)
			s.walk(node.Body)
			s.context.pop()
		}
		return
	case data.Undefined, data.Null:
	default:
		if val.Truthy() {
			s.at(node)
			s.errorf("In each %q, %q does not resolve to a list or map.",
				node.List.String(), val.String())
		}
	}
	if node.Else != nil {
		s.walk(node.Else)
	}
}

// evalPath resolves a reference into the context.  A simple name that is a
// registered helper is called with no arguments.
func (s *state) evalPath(node *ast.PathNode) data.Value {
	if node.Simple() && s.engine.helpers.Has(node.Parts[0]) {
		return s.evalHelper(node.Parts[0], nil, nil)
	}

	var val data.Value
	var parts = node.Parts
	switch {
	case node.Data:
		switch parts[0] {
		case "root":
			val = s.context.root()
		case "locale":
			val = data.String(s.locale)
		default:
			val = s.context.lookupVar(parts[0])
		}
		parts = parts[1:]
	case node.Depth > 0:
		var f, ok = s.context.at(node.Depth)
		if !ok {
			return data.Undefined{}
		}
		val = f.this
	case len(parts) == 0:
		var f, _ = s.context.at(0)
		return f.this
	default:
		val = s.context.lookup(parts[0])
		parts = parts[1:]
	}

	for _, part := range parts {
		if data.IsNil(val) {
			return data.Undefined{}
		}
		val = member(val, part)
	}
	return val
}

// member returns the named field of a map, or the numeric index or length of
// a list.
func member(val data.Value, name string) data.Value {
	switch val := val.(type) {
	case data.Map:
		return val.Key(name)
	case data.List:
		if name == "length" {
			return data.Int(len(val))
		}
		if i, err := strconv.Atoi(name); err == nil {
			return val.Index(i)
		}
	}
	return data.Undefined{}
}

func isUndefined(val data.Value) bool {
	_, ok := val.(data.Undefined)
	return ok || val == nil
}

func (s *state) evalHelper(name string, argNodes []ast.Node, hashNodes []*ast.HashPairNode) data.Value {
	var helper, ok = s.engine.helpers.Lookup(name)
	if !ok {
		s.errorf("unknown helper %q", name)
	}
	if !checkNumArgs(helper.ValidArgLengths, len(argNodes)) {
		s.helperError(name, fmt.Errorf("called with %v args, expected one of: %v",
			len(argNodes), helper.ValidArgLengths))
	}

	var call = Call{
		Name:   name,
		Args:   make([]data.Value, len(argNodes)),
		Hash:   make(data.Map, len(hashNodes)),
		Locale: s.locale,
	}
	if f, ok := s.context.at(0); ok {
		call.This = f.this
	}
	for i, arg := range argNodes {
		call.Args[i] = s.eval(arg)
	}
	for _, pair := range hashNodes {
		call.Hash[pair.Key] = s.eval(pair.Value)
	}

	var result data.Value
	var err error
	func() {
		defer func() {
			if r := recover(); r != nil {
				Logger.Error().
					Str("template", s.tmpl.Name).
					Str("helper", name).
					Str("stack", string(debug.Stack())).
					Msgf("panic: %v", r)
				err = fmt.Errorf("panic: %v", r)
			}
		}()
		result, err = helper.Apply(call)
	}()
	if err != nil {
		s.helperError(name, err)
	}
	if result == nil {
		result = data.Undefined{}
	}
	if helper.Raw {
		if _, ok := result.(data.HTML); !ok {
			result = data.HTML(result.String())
		}
	}
	return result
}

func (s *state) helperError(name string, err error) {
	panic(&errortypes.TemplateRuntimeError{
		Template: s.tmpl.Name,
		Helper:   name,
		Err:      fmt.Errorf("%s: %w", s.location(), err),
	})
}

// evalPartial includes a partial.  Its context is the given context, or the
// current one, with any hash arguments layered on top.
func (s *state) evalPartial(node *ast.PartialNode) {
	var name = node.Name
	if err := s.ctx.Err(); err != nil {
		s.partialError(name, err)
	}
	for _, active := range s.partials {
		if active == name {
			s.partialError(name, fmt.Errorf("recursive partial inclusion: %s -> %s",
				strings.Join(s.partials, " -> "), name))
		}
	}
	if len(s.partials) >= s.engine.maxDepth {
		s.partialError(name, fmt.Errorf("partials nested deeper than %d", s.engine.maxDepth))
	}
	if s.engine.partials == nil {
		s.partialError(name, errors.New("no partial source configured"))
	}

	var text, err = s.engine.partials.LoadPartial(s.ctx, name)
	if err != nil {
		s.partialError(name, err)
	}
	partial, err := s.engine.compile(name, text)
	if err != nil {
		panic(err)
	}

	var this data.Value
	if node.Context != nil {
		this = s.eval(node.Context)
	} else {
		var f, _ = s.context.at(0)
		this = f.this
	}
	if len(node.Hash) > 0 {
		var merged = make(data.Map)
		if m, ok := this.(data.Map); ok {
			for k, v := range m {
				merged[k] = v
			}
		}
		for _, pair := range node.Hash {
			merged[pair.Key] = s.eval(pair.Value)
		}
		this = merged
	}

	var caller = s.tmpl
	s.tmpl = partial
	s.partials = append(s.partials, name)
	s.context.push(this, nil)
	s.walk(partial.Node)
	s.context.pop()
	s.partials = s.partials[:len(s.partials)-1]
	s.tmpl = caller
	s.at(node)
}

func (s *state) partialError(name string, err error) {
	panic(&errortypes.TemplateRuntimeError{
		Template: s.tmpl.Name,
		Partial:  name,
		Err:      fmt.Errorf("%s: %w", s.location(), err),
	})
}

// eval evaluates a value node and returns the result.
func (s *state) eval(node ast.Node) data.Value {
	s.walk(node)
	return s.val
}

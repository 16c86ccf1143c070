package render

import "github.com/robfig/soymail/data"

// frame is one level of context: the value that "this" refers to, plus the
// @-variables bound by the block that pushed it.
type frame struct {
	this data.Value
	vars map[string]data.Value
}

type scope []frame // a stack of context frames

// push enters a new context.
func (s *scope) push(this data.Value, vars map[string]data.Value) {
	*s = append(*s, frame{this, vars})
}

// pop discards the last frame pushed.
func (s *scope) pop() {
	*s = (*s)[:len(*s)-1]
}

// at returns the frame depth levels above the current one, or false if there
// is no such frame.
func (s scope) at(depth int) (frame, bool) {
	if depth < 0 || depth >= len(s) {
		return frame{}, false
	}
	return s[len(s)-1-depth], true
}

// root returns the outermost context.
func (s scope) root() data.Value {
	return s[0].this
}

// lookup resolves a bare name against the current context, continuing
// outward until some frame's context has it.
func (s scope) lookup(name string) data.Value {
	for i := len(s) - 1; i >= 0; i-- {
		if val := member(s[i].this, name); !isUndefined(val) {
			return val
		}
	}
	return data.Undefined{}
}

// lookupVar checks the frames, deepest out, for an @-variable.
func (s scope) lookupVar(name string) data.Value {
	for i := range s {
		if val, ok := s[len(s)-i-1].vars[name]; ok {
			return val
		}
	}
	return data.Undefined{}
}

// loopVars returns the @-variables for item i of n.
func loopVars(i, n int) map[string]data.Value {
	return map[string]data.Value{
		"index": data.Int(i),
		"first": data.Bool(i == 0),
		"last":  data.Bool(i == n-1),
	}
}

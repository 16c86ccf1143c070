package render

import (
	"context"
	"reflect"
	"testing"

	"github.com/robfig/soymail/data"
)

func constant(s string) Helper {
	return Helper{Apply: func(Call) (data.Value, error) { return data.String(s), nil }}
}

func TestHelperRegistry(t *testing.T) {
	var h = NewHelpers(nil)
	if len(h.Names()) != 0 {
		t.Errorf("expected empty registry, got %v", h.Names())
	}
	h.Register("b", constant("1"))
	h.RegisterAll(map[string]Helper{"a": constant("2"), "B": constant("3")})
	if names := h.Names(); !reflect.DeepEqual(names, []string{"B", "a", "b"}) {
		t.Errorf("unexpected names %v", names)
	}

	// last writer wins
	h.Register("b", constant("4"))
	var helper, _ = h.Lookup("b")
	if v, _ := helper.Apply(Call{}); v.String() != "4" {
		t.Errorf("expected overwritten helper, got %v", v)
	}
	if h.Has("A") {
		t.Errorf("lookups must be case-sensitive")
	}
}

func TestBuiltinNames(t *testing.T) {
	var names = NewHelpers(Builtins(nil)).Names()
	for _, required := range []string{"formatCurrency", "formatDate", "statusText", "get"} {
		var found bool
		for _, name := range names {
			found = found || name == required
		}
		if !found {
			t.Errorf("missing built-in %q", required)
		}
	}
}

func TestRegisteredAfterCompileFailure(t *testing.T) {
	var e = New(Options{})
	if _, err := e.Compile(context.Background(), "x", `{{shout "hi"}}`); err == nil {
		t.Fatal("expected unknown helper error")
	}
	e.Helpers().Register("shout", Helper{
		Apply: func(c Call) (data.Value, error) {
			return data.String(c.Arg(0).String() + "!"), nil
		},
		ValidArgLengths: []int{1},
	})
	var out, err = e.ReplaceVariables(context.Background(), `{{shout "hi"}}`, nil, "en")
	if err != nil || out != "hi!" {
		t.Errorf("got %q, %v", out, err)
	}
}

func TestRawHelper(t *testing.T) {
	var e = New(Options{})
	e.Helpers().Register("bold", Helper{
		Apply: func(c Call) (data.Value, error) {
			return data.String("<b>" + c.Arg(0).String() + "</b>"), nil
		},
		Raw: true,
	})
	var out, err = e.ReplaceVariables(context.Background(), `{{bold data.s}}|{{upper (bold "x")}}`, map[string]string{"s": "a"}, "en")
	if err != nil {
		t.Fatal(err)
	}
	if out != "<b>a</b>|&lt;B&gt;X&lt;/B&gt;" {
		t.Errorf("got %q", out)
	}
}

func TestGetNeverPrintsNil(t *testing.T) {
	var payloads = []interface{}{nil, map[string]interface{}{}, map[string]interface{}{"a": nil}, []int{}}
	for _, payload := range payloads {
		for _, path := range []string{"a", "a.b", "a.b.c", "0", ""} {
			var v, err = helperGet(Call{Args: []data.Value{data.New(payload), data.String(path)}})
			if err != nil {
				t.Fatal(err)
			}
			if s := v.String(); s == "undefined" || s == "null" || s != "" && path != "" {
				t.Errorf("get(%v, %q) = %q", payload, path, s)
			}
		}
	}
}

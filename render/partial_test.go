package render

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/robfig/soymail/errortypes"
)

func TestPartials(t *testing.T) {
	var e = newTestEngine(PartialMap{
		"header":         "<h1>{{title}}</h1>",
		"item":           "<li>{{name}} x{{qty}}</li>",
		"layout/footer":  "<footer>{{data.store}}</footer>",
		"greeting":       "{{t \"greeting\" name=name}}",
		"nested/outer":   "[{{> nested/inner}}]",
		"nested/inner":   "{{label}}",
	})
	var tests = []struct {
		name   string
		input  string
		output string
		data   d
	}{
		{"context", "{{> header data.page}}", "<h1>Hi</h1>", d{"page": d{"title": "Hi"}}},
		{"inherit", "{{#with data.page}}{{> header}}{{/with}}", "<h1>Hi</h1>", d{"page": d{"title": "Hi"}}},
		{"hash", `{{> header title="Bye"}}`, "<h1>Bye</h1>", d{}},
		{"each", "<ul>{{#each data.items}}{{> item}}{{/each}}</ul>", "<ul><li>A x1</li><li>B x2</li></ul>",
			d{"items": []d{{"name": "A", "qty": 1}, {"name": "B", "qty": 2}}}},
		{"outer lookup", "{{#each data.items}}{{> layout/footer}}{{/each}}", "<footer>S</footer>",
			d{"store": "S", "items": []d{{}}}},
		{"helpers", "{{> greeting name=data.n}}", "Hello Ana,", d{"n": "Ana"}},
		{"nested", `{{> nested/outer label="x"}}`, "[x]", d{}},
	}
	for _, test := range tests {
		var out, err = e.ReplaceVariables(context.Background(), test.input, test.data, "en")
		if err != nil {
			t.Errorf("%s: %v", test.name, err)
			continue
		}
		if out != test.output {
			t.Errorf("%s: expected %q, got %q", test.name, test.output, out)
		}
	}
}

func TestMissingPartial(t *testing.T) {
	var e = newTestEngine(PartialMap{})
	var out, err = e.ReplaceVariables(context.Background(), "a{{> nonexistent_partial}}b", nil, "en")
	var rerr *errortypes.TemplateRuntimeError
	if !errors.As(err, &rerr) {
		t.Fatalf("expected runtime error, got %v", err)
	}
	if !strings.Contains(err.Error(), "nonexistent_partial") || rerr.Partial != "nonexistent_partial" {
		t.Errorf("error does not name the partial: %v", err)
	}
	var nf *errortypes.TemplateNotFoundError
	if !errors.As(err, &nf) {
		t.Errorf("expected the not-found cause to be wrapped")
	}
	if out != "" {
		t.Errorf("partial output returned: %q", out)
	}

	// Without any partial source.
	_, err = New(Options{}).ReplaceVariables(context.Background(), "{{> x}}", nil, "en")
	if !errors.As(err, &rerr) || rerr.Partial != "x" {
		t.Errorf("expected runtime error naming x, got %v", err)
	}
}

func TestPartialInFalseBranch(t *testing.T) {
	var e = newTestEngine(PartialMap{})
	var out, err = e.ReplaceVariables(context.Background(), "{{#if data.x}}{{> nope}}{{/if}}ok", nil, "en")
	if err != nil || out != "ok" {
		t.Errorf("got %q, %v", out, err)
	}
}

func TestPartialCycleAtCompile(t *testing.T) {
	var e = newTestEngine(PartialMap{
		"a": "A{{> b}}",
		"b": "B{{#if x}}{{> a}}{{/if}}",
		"c": "{{> c}}",
	})
	for _, input := range []string{"{{> a}}", "{{> c}}"} {
		var _, err = e.Compile(context.Background(), "main", input)
		var cerr *errortypes.TemplateCompilationError
		if !errors.As(err, &cerr) {
			t.Errorf("%s: expected compilation error, got %v", input, err)
			continue
		}
		if !strings.Contains(err.Error(), "recursive partial inclusion") {
			t.Errorf("%s: unexpected error %v", input, err)
		}
	}
}

func TestPartialCycleAtRuntime(t *testing.T) {
	// The source is unavailable while compiling, so only the execution guard
	// can catch the cycle.
	var calls int32
	var source = PartialFunc(func(_ context.Context, name string) (string, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			return "", errors.New("temporarily unavailable")
		}
		return "x{{> loop}}", nil
	})
	var e = New(Options{Partials: source})
	var _, err = e.ReplaceVariables(context.Background(), "{{> loop}}", nil, "en")
	var rerr *errortypes.TemplateRuntimeError
	if !errors.As(err, &rerr) || rerr.Partial != "loop" {
		t.Fatalf("expected runtime error for loop, got %v", err)
	}
	if !strings.Contains(err.Error(), "recursive partial inclusion: loop -> loop") {
		t.Errorf("unexpected error %v", err)
	}
}

func TestPartialDepth(t *testing.T) {
	var partials = PartialMap{}
	for _, name := range []string{"p1", "p2", "p3"} {
		partials[name] = "."
	}
	partials["p1"] = "{{> p2}}"
	partials["p2"] = "{{> p3}}"
	var e = New(Options{Partials: partials, MaxPartialDepth: 2})
	var tmpl, err = e.compile("main", "{{> p1}}")
	if err != nil {
		t.Fatal(err)
	}
	_, err = (&Compiled{tmpl, e}).Execute(context.Background(), Input{})
	if err == nil || !strings.Contains(err.Error(), "nested deeper than 2") {
		t.Errorf("expected depth error, got %v", err)
	}
}

func TestPartialCancelled(t *testing.T) {
	var e = newTestEngine(PartialMap{"p": "x"})
	var tmpl, err = e.Compile(context.Background(), "main", "{{> p}}")
	if err != nil {
		t.Fatal(err)
	}
	var ctx, cancel = context.WithCancel(context.Background())
	cancel()
	_, err = tmpl.Execute(ctx, Input{})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

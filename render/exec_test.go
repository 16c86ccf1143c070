package render

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"github.com/robfig/soymail/data"
	"github.com/robfig/soymail/errortypes"
	"github.com/robfig/soymail/locale"
	"github.com/robfig/soymail/template"
)

func TestMain(m *testing.M) {
	zerolog.SetGlobalLevel(zerolog.Disabled)
	os.Exit(m.Run())
}

type d map[string]interface{}

type execTest struct {
	name   string
	input  string
	output string
	data   interface{}
	ok     bool
}

func (t execTest) fails() execTest {
	t.ok = false
	return t
}

func exprtestwdata(name, input, output string, data interface{}) execTest {
	return execTest{name, input, output, data, true}
}

func exprtest(name, input, output string) execTest {
	return exprtestwdata(name, input, output, nil)
}

func TestBasicExec(t *testing.T) {
	runExecTests(t, []execTest{
		exprtest("empty", "", ""),
		exprtest("text", "Hello world!", "Hello world!"),
		exprtest("escaped delimiter", `\{{name}}`, "{{name}}"),
		exprtest("comment", "a{{! note }}b{{!-- {{x}} --}}c", "abc"),
		exprtestwdata("variable", "Hello {{data.name}}!", "Hello Rob!", d{"name": "Rob"}),
		exprtestwdata("nested", "{{data.order.customer.name}}", "Ana",
			d{"order": d{"customer": d{"name": "Ana"}}}),
		exprtestwdata("slash path", "{{data/order/id}}", "7", d{"order": d{"id": 7}}),
		exprtestwdata("list index", "{{data.items.1}} of {{data.items.length}}", "b of 2",
			d{"items": []string{"a", "b"}}),
		exprtestwdata("missing", "[{{data.nope}}][{{data.a.b.c}}]", "[][]", d{}),
		exprtestwdata("null", "[{{data.x}}]", "[]", d{"x": nil}),
		exprtestwdata("numbers", "{{data.i}} {{data.f}} {{data.b}}", "3 1.5 true",
			d{"i": 3, "f": 1.5, "b": true}),
		exprtest("locale", "{{locale}} {{@locale}}", "en en"),
		exprtestwdata("root", "{{#with data.a}}{{@root.data.b}}{{/with}}", "B",
			d{"a": d{"x": 1}, "b": "B"}),
	})
}

func TestEscaping(t *testing.T) {
	runExecTests(t, []execTest{
		exprtestwdata("body", "<p>{{data.name}}</p>", "<p>&lt;b&gt;X&lt;/b&gt;</p>",
			d{"name": "<b>X</b>"}),
		exprtestwdata("all specials", "{{data.s}}", "&amp;&lt;&gt;&quot;&#x27;/&#x60;&#x3D;",
			d{"s": "&<>\"'/`="}),
		exprtestwdata("triple", "{{{data.html}}}", "<b>X</b>", d{"html": "<b>X</b>"}),
		exprtestwdata("ampersand", "{{& data.html}}", "<b>X</b>", d{"html": "<b>X</b>"}),
		exprtestwdata("attribute", `<a href="{{data.url}}">{{data.url}}</a>`,
			`<a href="https://x.test/?a=1&amp;b=&quot;2&quot;">https://x.test/?a&#x3D;1&amp;b&#x3D;&quot;2&quot;</a>`,
			d{"url": `https://x.test/?a=1&b="2"`}),
		exprtestwdata("html value", "{{data.frag}}", "<i>ok</i>",
			d{"frag": data.HTML("<i>ok</i>")}),
		exprtestwdata("sanitize", "{{sanitize data.bio}}", "<b>hi</b>",
			d{"bio": `<b onclick="x()">hi</b><script>alert(1)</script>`}),
	})
}

func TestIf(t *testing.T) {
	var body = "{{#if data.a}}A{{else if data.b}}B{{else}}C{{/if}}"
	runExecTests(t, []execTest{
		exprtestwdata("if a", body, "A", d{"a": true, "b": true}),
		exprtestwdata("if b", body, "B", d{"a": 0, "b": "x"}),
		exprtestwdata("if else", body, "C", d{"a": "", "b": []int{}}),
		exprtestwdata("if missing", body, "C", d{}),
		exprtestwdata("unless", "{{#unless data.paid}}due{{else}}paid{{/unless}}", "due", d{"paid": false}),
		exprtestwdata("unless paid", "{{#unless data.paid}}due{{else}}paid{{/unless}}", "paid", d{"paid": true}),
		exprtestwdata("if helper", `{{#if (eq data.s "shipped")}}yes{{/if}}`, "yes", d{"s": "shipped"}),
		exprtestwdata("if map", "{{#if data.m}}y{{/if}}", "y", d{"m": d{}}),
	})
}

func TestEach(t *testing.T) {
	var body = "{{#each data.items}}[{{@index}}:{{name}}{{#if @first}} first{{/if}}{{#if @last}} last{{/if}}]{{else}}none{{/each}}"
	runExecTests(t, []execTest{
		exprtestwdata("each", body, "[0:A first][1:B last]",
			d{"items": []d{{"name": "A"}, {"name": "B"}}}),
		exprtestwdata("each empty", body, "none", d{"items": []d{}}),
		exprtestwdata("each missing", body, "none", d{}),
		exprtestwdata("each null", body, "none", d{"items": nil}),
		exprtestwdata("each map", "{{#each data.m}}{{@key}}={{this}};{{/each}}", "a=1;b=2;",
			d{"m": d{"b": 2, "a": 1}}),
		exprtestwdata("each this", "{{#each data.tags}}<{{.}}>{{/each}}", "&lt;x&gt;&lt;y&gt;",
			d{"tags": []string{"x", "y"}}),
		exprtestwdata("each parent", "{{#each data.items}}{{name}}/{{../data.currency}} {{/each}}", "A/EUR ",
			d{"currency": "EUR", "items": []d{{"name": "A"}}}),
		exprtestwdata("each outer lookup", "{{#each data.items}}{{name}}@{{locale}}{{/each}}", "A@en",
			d{"items": []d{{"name": "A"}}}),
		exprtestwdata("nested each",
			"{{#each data.orders}}{{id}}:{{#each lines}}{{sku}}{{@index}}{{/each}};{{/each}}", "1:a0b1;2:;",
			d{"orders": []d{{"id": 1, "lines": []d{{"sku": "a"}, {"sku": "b"}}}, {"id": 2}}}),
		exprtestwdata("each non-list", "{{#each data.s}}x{{/each}}", "", d{"s": "str"}).fails(),
	})
}

func TestWith(t *testing.T) {
	runExecTests(t, []execTest{
		exprtestwdata("with", "{{#with data.customer}}{{name}} ({{../data.id}}){{/with}}", "Ana (9)",
			d{"id": 9, "customer": d{"name": "Ana"}}),
		exprtestwdata("with else", "{{#with data.customer}}{{name}}{{else}}guest{{/with}}", "guest", d{}),
	})
}

func TestHelpers(t *testing.T) {
	runExecTests(t, []execTest{
		exprtestwdata("currency", "{{formatCurrency data.total}}", "$1,234.50", d{"total": 1234.5}),
		exprtestwdata("currency code", `{{formatCurrency data.total "VND" "vi"}}`, "150.000 ₫", d{"total": 150000}),
		exprtestwdata("currency hash", `{{formatCurrency data.total currency="EUR" locale="de"}}`, "1.234,50 €",
			d{"total": "1234.5"}),
		exprtestwdata("currency bad", "{{formatCurrency data.total}}", "", d{"total": "abc"}).fails(),
		exprtestwdata("date", "{{formatDate data.d}}", "March 5, 2024", d{"d": "2024-03-05"}),
		exprtestwdata("date locale", `{{formatDate data.d "vi"}}`, "05/03/2024", d{"d": "2024-03-05T08:00:00Z"}),
		exprtestwdata("number", "{{formatNumber data.n 1}}", "1,234.6", d{"n": 1234.56}),
		exprtestwdata("status", "{{statusText data.s}}", "Shipped", d{"s": "shipped"}),
		exprtestwdata("status vi", `{{statusText data.s "vi"}}`, "Đã gửi hàng", d{"s": "shipped"}),
		exprtestwdata("get", `{{get data "a.b"}}|{{get data "a.zz.q"}}|{{get data.none "x"}}`, "1||",
			d{"a": d{"b": 1}}),
		exprtestwdata("t", `{{t "greeting" name=data.name}}`, "Hello Ana,", d{"name": "Ana"}),
		exprtestwdata("t ctxt", `{{t "delivered" ctxt="status"}}`, "Delivered", nil),
		exprtest("t table", "{{t.order_summary}}", "Order summary"),
		exprtestwdata("default", `{{default data.nick "friend"}}`, "friend", d{}),
		exprtestwdata("logic", `{{and data.a data.b}} {{or data.a data.b}} {{not data.a}}`, "false true false",
			d{"a": 1, "b": 0}),
		exprtestwdata("ne", `{{ne data.a 2}}`, "true", d{"a": 1}),
		exprtestwdata("length", "{{length data.items}} {{length data.m}} {{length data.s}}", "2 1 3",
			d{"items": []int{1, 2}, "m": d{"k": 1}, "s": "abc"}),
		exprtestwdata("case", "{{upper data.s}}{{lower data.s}}", "ABab", d{"s": "Ab"}),
		exprtestwdata("concat", `{{concat "a" data.n "c"}}`, "a1c", d{"n": 1}),
		exprtestwdata("subexpression", `{{upper (concat data.a (lower "B"))}}`, "AB", d{"a": "a"}),
		exprtestwdata("helper escaped", `{{concat "<" data.s}}`, "&lt;b", d{"s": "b"}),
		exprtest("wrong arg count", `{{upper "a" "b"}}`, "").fails(),
	})
}

func TestCompileErrors(t *testing.T) {
	var e = newTestEngine(nil)
	var tests = []struct {
		input string
		err   string
	}{
		{"{{#if a}}x", "unclosed block"},
		{"{{#each a}}x{{/if}}", "mismatched closing tag"},
		{"{{#loop a}}x{{/loop}}", "unknown block type"},
		{"{{nosuch a}}", `unknown helper "nosuch"`},
		{"{{a", "unclosed tag"},
	}
	for _, test := range tests {
		var _, err = e.Compile(context.Background(), "bad", test.input)
		var cerr *errortypes.TemplateCompilationError
		if !errors.As(err, &cerr) {
			t.Errorf("%q: expected compilation error, got %v", test.input, err)
			continue
		}
		if !strings.Contains(err.Error(), test.err) {
			t.Errorf("%q: expected %q in %q", test.input, test.err, err)
		}
		if cerr.LineNo != 1 || cerr.Fragment == "" {
			t.Errorf("%q: expected position and fragment, got %#v", test.input, cerr)
		}
	}
}

func TestHelperFailures(t *testing.T) {
	var helpers = NewHelpers(Builtins(nil))
	helpers.Register("boom", Helper{Apply: func(Call) (data.Value, error) {
		panic("kaboom")
	}})
	helpers.Register("fail", Helper{Apply: func(Call) (data.Value, error) {
		return nil, errors.New("bad input")
	}})
	var e = New(Options{Helpers: helpers})

	for _, name := range []string{"boom", "fail"} {
		var tmpl, err = e.Compile(context.Background(), "greeting", "x{{"+name+" 1}}")
		if err != nil {
			t.Fatal(err)
		}
		out, err := tmpl.Execute(context.Background(), Input{})
		var rerr *errortypes.TemplateRuntimeError
		if !errors.As(err, &rerr) {
			t.Fatalf("%s: expected runtime error, got %v", name, err)
		}
		if rerr.Helper != name || rerr.Template != "greeting" {
			t.Errorf("%s: error does not name helper and template: %#v", name, rerr)
		}
		if out != "" {
			t.Errorf("%s: partial output returned: %q", name, out)
		}
	}
}

func TestStrict(t *testing.T) {
	var e = New(Options{Strict: true})
	var tmpl, err = e.Compile(context.Background(), "s", "{{#if data.x}}{{data.x}}{{/if}}[{{data.missing}}]")
	if err != nil {
		t.Fatal(err)
	}
	_, err = tmpl.Execute(context.Background(), Input{Data: d{}})
	var merr *errortypes.MissingVariableError
	if !errors.As(err, &merr) || merr.Path != "data.missing" {
		t.Errorf("expected missing variable error for data.missing, got %v", err)
	}
	if errortypes.Kind(err) != errortypes.KindMissingVariable {
		t.Errorf("unexpected kind %s", errortypes.Kind(err))
	}
}

func TestTextMode(t *testing.T) {
	var e = newTestEngine(nil)
	var tmpl, _ = e.Compile(context.Background(), "subject", "Order #{{data.n}} & more")
	var out, err = tmpl.Execute(context.Background(), Input{Data: d{"n": "<1>"}, Mode: ModeText})
	if err != nil {
		t.Fatal(err)
	}
	if out != "Order #<1> & more" {
		t.Errorf("got %q", out)
	}
}

func TestInputNotModified(t *testing.T) {
	var e = newTestEngine(PartialMap{"p": "{{a}}{{b}}"})
	var payload = d{"m": d{"a": "1"}}
	var out, err = e.ReplaceVariables(context.Background(), `{{> p data.m b="2"}}`, payload, "en")
	if err != nil {
		t.Fatal(err)
	}
	if out != "12" {
		t.Errorf("got %q", out)
	}
	if _, ok := payload["m"].(d)["b"]; ok {
		t.Errorf("partial hash leaked into the input")
	}
}

func TestDeterminism(t *testing.T) {
	var e = newTestEngine(PartialMap{"row": "<li>{{@key}}={{this}}</li>"})
	var text = "<ul>{{#each data.m}}{{> row}}{{/each}}</ul>{{data.m}}"
	var payload = d{"m": d{"c": 3, "a": 1, "b": 2}}
	var expected, err = e.ReplaceVariables(context.Background(), text, payload, "en")
	if err != nil {
		t.Fatal(err)
	}
	var wg sync.WaitGroup
	var errs = make(chan string, 50)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var out, err = e.ReplaceVariables(context.Background(), text, payload, "en")
			if err != nil || out != expected {
				errs <- fmt.Sprintf("%q, %v", out, err)
			}
		}()
	}
	wg.Wait()
	close(errs)
	for msg := range errs {
		t.Errorf("nondeterministic output: %s", msg)
	}
}

func newTestEngine(partials PartialSource) *Engine {
	var catalog, err = locale.Embedded("en")
	if err != nil {
		panic(err)
	}
	return New(Options{Catalog: catalog, Partials: partials})
}

func runExecTests(t *testing.T, tests []execTest) {
	var e = newTestEngine(nil)
	for _, test := range tests {
		var tmpl, err = e.Compile(context.Background(), test.name, test.input)
		if err != nil {
			t.Errorf("%s: compile error: %s", test.name, err)
			continue
		}
		result, err := tmpl.Execute(context.Background(), Input{Data: test.data, Locale: "en"})
		switch {
		case !test.ok && err == nil:
			t.Errorf("%s: expected error; got none", test.name)
			continue
		case test.ok && err != nil:
			t.Errorf("%s: unexpected execute error: %s", test.name, err)
			continue
		case !test.ok && err != nil:
			// expected error, got one
		}
		if result != test.output {
			t.Errorf("%s: expected\n\t%q\ngot\n\t%q", test.name, test.output, result)
		}
	}
}

func TestReplaceVariablesCacheBounded(t *testing.T) {
	var cache = template.NewRegistry()
	var e = New(Options{Cache: cache})
	for i := 0; i < 50; i++ {
		var out, err = e.ReplaceVariables(context.Background(),
			fmt.Sprintf("<p>%d {{data.name}}</p>", i), map[string]string{"name": "<b>X</b>"}, "en")
		if err != nil {
			t.Fatal(err)
		}
		if want := fmt.Sprintf("<p>%d &lt;b&gt;X&lt;/b&gt;</p>", i); out != want {
			t.Errorf("got %q, expected %q", out, want)
		}
	}
	if cache.Len() != 1 {
		t.Errorf("expected one cached inline template, got %d", cache.Len())
	}
}

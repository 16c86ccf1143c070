package render

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/robfig/soymail/data"
	"github.com/robfig/soymail/escape"
	"github.com/robfig/soymail/locale"
)

// Builtins returns the built-in helpers.  Helpers that translate take their
// messages from catalog, which may be nil.
func Builtins(catalog *locale.Catalog) map[string]Helper {
	var b = builtins{catalog}
	return map[string]Helper{
		"formatCurrency": {b.formatCurrency, []int{1, 2, 3}, false},
		"formatNumber":   {b.formatNumber, []int{1, 2}, false},
		"formatDate":     {b.formatDate, []int{1, 2}, false},
		"statusText":     {b.statusText, []int{1, 2}, false},
		"t":              {b.translate, []int{1}, false},
		"get":            {helperGet, []int{2}, false},
		"eq":             {helperEq, []int{2}, false},
		"ne":             {helperNe, []int{2}, false},
		"not":            {helperNot, []int{1}, false},
		"and":            {helperAnd, nil, false},
		"or":             {helperOr, nil, false},
		"default":        {helperDefault, []int{2}, false},
		"length":         {helperLength, []int{1}, false},
		"upper":          {helperUpper, []int{1}, false},
		"lower":          {helperLower, []int{1}, false},
		"concat":         {helperConcat, nil, false},
		"sanitize":       {helperSanitize, []int{1}, true},
	}
}

type builtins struct {
	catalog *locale.Catalog
}

// formatCurrency amount [currency [locale]]
//
// The currency defaults to the "currency" hash argument, then USD.
func (b builtins) formatCurrency(c Call) (data.Value, error) {
	if data.IsNil(c.Arg(0)) {
		return data.String(""), nil
	}
	var amount, ok = data.ToFloat(c.Arg(0))
	if !ok {
		return nil, fmt.Errorf("not a number: %q", c.Arg(0).String())
	}
	var str, err = locale.FormatCurrency(amount, c.String(1, "currency", "USD"), c.String(2, "locale", c.Locale))
	if err != nil {
		return nil, err
	}
	return data.String(str), nil
}

// formatNumber value [decimals]
func (b builtins) formatNumber(c Call) (data.Value, error) {
	if data.IsNil(c.Arg(0)) {
		return data.String(""), nil
	}
	var v, ok = data.ToFloat(c.Arg(0))
	if !ok {
		return nil, fmt.Errorf("not a number: %q", c.Arg(0).String())
	}
	var decimals = 0
	if s := c.String(1, "decimals", ""); s != "" {
		var err error
		if decimals, err = strconv.Atoi(s); err != nil || decimals < 0 {
			return nil, fmt.Errorf("bad decimals %q", s)
		}
	}
	return data.String(locale.FormatNumber(v, decimals, c.String(-1, "locale", c.Locale))), nil
}

// formatDate date [locale]
//
// Dates are strings in one of the accepted input forms, or Unix seconds.
func (b builtins) formatDate(c Call) (data.Value, error) {
	var t time.Time
	switch v := c.Arg(0).(type) {
	case data.Undefined, data.Null:
		return data.String(""), nil
	case data.Int:
		t = time.Unix(int64(v), 0).UTC()
	case data.String:
		var err error
		if t, err = locale.ParseDate(string(v)); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("not a date: %q", v.String())
	}
	return data.String(locale.FormatDate(t, c.String(1, "locale", c.Locale))), nil
}

// statusText status [locale]
func (b builtins) statusText(c Call) (data.Value, error) {
	var status = c.Arg(0).String()
	var loc = c.String(1, "locale", c.Locale)
	if b.catalog == nil {
		return data.String(locale.Humanize(status)), nil
	}
	return data.String(b.catalog.StatusLabel(status, loc)), nil
}

// t id [ctxt="..."] [name=value ...]
//
// Hash arguments other than ctxt fill {name} placeholders in the message.
func (b builtins) translate(c Call) (data.Value, error) {
	var id = c.Arg(0).String()
	var ctxt = c.String(-1, "ctxt", "")
	var msg = id
	if b.catalog != nil {
		msg = b.catalog.Text(c.Locale, ctxt, id)
	}
	var args = make(map[string]string, len(c.Hash))
	for k, v := range c.Hash {
		if k != "ctxt" {
			args[k] = v.String()
		}
	}
	return data.String(locale.Expand(msg, args)), nil
}

// get object "dotted.path"
//
// Missing or null segments yield the empty string.
func helperGet(c Call) (data.Value, error) {
	var val = c.Arg(0)
	for _, part := range strings.Split(c.Arg(1).String(), ".") {
		if part == "" {
			continue
		}
		val = member(val, part)
		if data.IsNil(val) {
			return data.String(""), nil
		}
	}
	if data.IsNil(val) {
		return data.String(""), nil
	}
	return val, nil
}

func helperEq(c Call) (data.Value, error) {
	return data.Bool(c.Arg(0).Equals(c.Arg(1))), nil
}

func helperNe(c Call) (data.Value, error) {
	return data.Bool(!c.Arg(0).Equals(c.Arg(1))), nil
}

func helperNot(c Call) (data.Value, error) {
	return data.Bool(!c.Arg(0).Truthy()), nil
}

func helperAnd(c Call) (data.Value, error) {
	for _, arg := range c.Args {
		if !arg.Truthy() {
			return data.Bool(false), nil
		}
	}
	return data.Bool(len(c.Args) > 0), nil
}

func helperOr(c Call) (data.Value, error) {
	for _, arg := range c.Args {
		if arg.Truthy() {
			return data.Bool(true), nil
		}
	}
	return data.Bool(false), nil
}

// default value fallback
func helperDefault(c Call) (data.Value, error) {
	if c.Arg(0).Truthy() {
		return c.Arg(0), nil
	}
	return c.Arg(1), nil
}

func helperLength(c Call) (data.Value, error) {
	switch v := c.Arg(0).(type) {
	case data.List:
		return data.Int(len(v)), nil
	case data.Map:
		return data.Int(len(v)), nil
	case data.String:
		return data.Int(utf8.RuneCountInString(string(v))), nil
	case data.Undefined, data.Null:
		return data.Int(0), nil
	}
	return nil, fmt.Errorf("no length for %T", c.Arg(0))
}

func helperUpper(c Call) (data.Value, error) {
	return data.String(strings.ToUpper(c.Arg(0).String())), nil
}

func helperLower(c Call) (data.Value, error) {
	return data.String(strings.ToLower(c.Arg(0).String())), nil
}

func helperConcat(c Call) (data.Value, error) {
	var b strings.Builder
	for _, arg := range c.Args {
		b.WriteString(arg.String())
	}
	return data.String(b.String()), nil
}

// sanitize markup
//
// Prints user-supplied rich text through the UGC sanitizing policy.
func helperSanitize(c Call) (data.Value, error) {
	return data.HTML(escape.SanitizeHTML(c.Arg(0).String())), nil
}

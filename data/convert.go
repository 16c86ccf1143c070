package data

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

var timeType = reflect.TypeOf(time.Time{})

// Marshaler is implemented by types that provide their own template
// representation.
type Marshaler interface {
	MarshalValue() Value
}

// New converts the given data into a template data value, using
// DefaultStructOptions for structs.
func New(value interface{}) Value {
	return NewWith(DefaultStructOptions, value)
}

// NewWith converts the given data value to a template data value, using the
// provided StructOptions for any structs encountered.
func NewWith(convert StructOptions, value interface{}) Value {
	// quick return if we're passed an existing data.Value
	switch val := value.(type) {
	case Value:
		return val
	case Marshaler:
		return val.MarshalValue()
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return Int(i)
		}
		f, _ := val.Float64()
		return Float(f)
	}

	if value == nil {
		return Null{}
	}

	// drill through pointers and interfaces to the underlying type
	var v = reflect.ValueOf(value)
	for v.Kind() == reflect.Interface || v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return Null{}
		}
		v = v.Elem()
	}
	if !v.IsValid() {
		return Null{}
	}
	if v.CanInterface() {
		if m, ok := v.Interface().(Marshaler); ok {
			return m.MarshalValue()
		}
	}

	if v.Type() == timeType {
		var format = convert.TimeFormat
		if format == "" {
			format = time.RFC3339
		}
		return String(v.Interface().(time.Time).Format(format))
	}

	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return Int(v.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return Int(v.Uint())
	case reflect.Float32, reflect.Float64:
		return Float(v.Float())
	case reflect.Bool:
		return Bool(v.Bool())
	case reflect.String:
		return String(v.String())
	case reflect.Slice, reflect.Array:
		if v.Kind() == reflect.Slice && v.IsNil() {
			return Null{}
		}
		var slice = make(List, 0, v.Len())
		for i := 0; i < v.Len(); i++ {
			slice = append(slice, NewWith(convert, v.Index(i).Interface()))
		}
		return slice
	case reflect.Map:
		var m = make(Map, v.Len())
		for _, key := range v.MapKeys() {
			var k string
			if key.Kind() == reflect.String {
				k = key.String()
			} else {
				k = fmt.Sprint(key.Interface())
			}
			m[k] = NewWith(convert, v.MapIndex(key).Interface())
		}
		return m
	case reflect.Struct:
		return convert.Data(v.Interface())
	default:
		return String(fmt.Sprint(v.Interface()))
	}
}

var DefaultStructOptions = StructOptions{
	LowerCamel: true,
	JSONTags:   true,
	TimeFormat: time.RFC3339,
}

// StructOptions provides flexibility in conversion of structs to the
// data.Map format.
type StructOptions struct {
	LowerCamel bool   // if true, convert field names to lowerCamel.
	JSONTags   bool   // if true, a field's json tag name takes precedence.
	TimeFormat string // format string for time.Time. (if empty, use ISO-8601)
}

func (c StructOptions) Data(obj interface{}) Map {
	var m = make(Map)
	var v = reflect.ValueOf(obj)
	var valType = v.Type()
	for i := 0; i < valType.NumField(); i++ {
		if !v.Field(i).CanInterface() {
			continue
		}
		var field = valType.Field(i)
		var key = field.Name
		if c.JSONTags {
			if tag, ok := field.Tag.Lookup("json"); ok {
				var name = strings.Split(tag, ",")[0]
				if name == "-" {
					continue
				}
				if name != "" {
					m[name] = NewWith(c, v.Field(i).Interface())
					continue
				}
			}
		}
		if c.LowerCamel {
			var firstRune, size = utf8.DecodeRuneInString(key)
			key = string(unicode.ToLower(firstRune)) + key[size:]
		}
		m[key] = NewWith(c, v.Field(i).Interface())
	}
	return m
}

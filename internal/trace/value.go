package trace

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"slices"
	"strconv"
	"unicode/utf16"
)

// Value is a sealed interface over the value shapes a trace records.
// Only Null, String, Int, Bool, Array and Object implement it.
//
// Floats are not a trace shape: ValueOf renders them as decimal strings so
// that traces compare byte for byte.
type Value interface {
	traceValue()
}

// Null is the absence of a value: a nil argument or a void result.
type Null struct{}

func (Null) traceValue() {}

// MarshalJSON implements json.Marshaler.
func (Null) MarshalJSON() ([]byte, error) { return []byte("null"), nil }

// String is a string value.
type String string

func (String) traceValue() {}

// Int is an integer value.
type Int int64

func (Int) traceValue() {}

// Bool is a boolean value.
type Bool bool

func (Bool) traceValue() {}

// Array is an ordered list of values.
type Array []Value

func (Array) traceValue() {}

// Object maps keys to values. Iterate with SortedKeys for a stable order.
type Object map[string]Value

func (Object) traceValue() {}

// SortedKeys returns keys in RFC 8785 order (UTF-16 code units).
// This differs from sort.Strings for characters outside the BMP.
func (obj Object) SortedKeys() []string {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareKeys)
	return keys
}

func compareKeys(a, b string) int {
	return slices.Compare(utf16.Encode([]rune(a)), utf16.Encode([]rune(b)))
}

// MarshalJSON renders the object canonically.
func (obj Object) MarshalJSON() ([]byte, error) {
	return MarshalCanonical(obj)
}

// MarshalJSON renders the array canonically.
func (arr Array) MarshalJSON() ([]byte, error) {
	return MarshalCanonical(arr)
}

var (
	errorType    = reflect.TypeFor[error]()
	stringerType = reflect.TypeFor[fmt.Stringer]()
	typeType     = reflect.TypeFor[reflect.Type]()
)

// ValueOf converts an arbitrary Go value into a trace Value.
//
// Conversion rules:
//   - nil, nil pointers and empty structs become Null
//   - integers become Int; uint64 values above MaxInt64 become String
//   - floats become their shortest decimal String
//   - errors, reflect.Type and fmt.Stringer values become String, ahead
//     of the rules below
//   - slices and arrays become Array; []byte stays a String
//   - maps with string keys and structs (exported fields) become Object
//   - anything else becomes a String of the form "<type>"
func ValueOf(v any) Value {
	if v == nil {
		return Null{}
	}
	if tv, ok := v.(Value); ok {
		return tv
	}
	return valueOf(reflect.ValueOf(v), 0)
}

const maxDepth = 32

func valueOf(rv reflect.Value, depth int) Value {
	if !rv.IsValid() {
		return Null{}
	}
	if depth > maxDepth {
		return String("<" + rv.Type().String() + ">")
	}

	t := rv.Type()
	if t.Kind() == reflect.Pointer || t.Kind() == reflect.Interface {
		if rv.IsNil() {
			return Null{}
		}
	}
	if t.Implements(typeType) {
		return String(rv.Interface().(reflect.Type).String())
	}
	if t.Implements(errorType) {
		return String(rv.Interface().(error).Error())
	}
	if t.Implements(stringerType) && rv.CanInterface() {
		return String(rv.Interface().(fmt.Stringer).String())
	}

	switch t.Kind() {
	case reflect.Bool:
		return Bool(rv.Bool())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return Int(rv.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		u := rv.Uint()
		if u > 1<<63-1 {
			return String(strconv.FormatUint(u, 10))
		}
		return Int(int64(u))
	case reflect.Float32:
		return String(strconv.FormatFloat(rv.Float(), 'g', -1, 32))
	case reflect.Float64:
		return String(strconv.FormatFloat(rv.Float(), 'g', -1, 64))
	case reflect.String:
		return String(rv.String())
	case reflect.Pointer, reflect.Interface:
		return valueOf(rv.Elem(), depth+1)
	case reflect.Slice, reflect.Array:
		if t.Elem().Kind() == reflect.Uint8 && t.Kind() == reflect.Slice {
			return String(rv.Bytes())
		}
		arr := make(Array, rv.Len())
		for i := range arr {
			arr[i] = valueOf(rv.Index(i), depth+1)
		}
		return arr
	case reflect.Map:
		if t.Key().Kind() != reflect.String {
			break
		}
		obj := make(Object, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			obj[iter.Key().String()] = valueOf(iter.Value(), depth+1)
		}
		return obj
	case reflect.Struct:
		if t.NumField() == 0 {
			return Null{}
		}
		obj := make(Object, t.NumField())
		for i := range t.NumField() {
			f := t.Field(i)
			if !f.IsExported() {
				continue
			}
			obj[f.Name] = valueOf(rv.Field(i), depth+1)
		}
		return obj
	}
	return String("<" + t.String() + ">")
}

// Equal reports whether a and b have the same canonical form.
func Equal(a, b Value) bool {
	ab, err := MarshalCanonical(a)
	if err != nil {
		return false
	}
	bb, err := MarshalCanonical(b)
	if err != nil {
		return false
	}
	return bytes.Equal(ab, bb)
}

// Decode parses JSON into a Value. Numbers that are not integers decode as
// their literal String, the same shape ValueOf gives floats.
func Decode(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode trace value: %w", err)
	}
	if dec.More() {
		return nil, errors.New("decode trace value: trailing data")
	}
	return fromJSON(raw), nil
}

func fromJSON(v any) Value {
	switch val := v.(type) {
	case nil:
		return Null{}
	case bool:
		return Bool(val)
	case string:
		return String(val)
	case json.Number:
		if n, err := val.Int64(); err == nil {
			return Int(n)
		}
		return String(val.String())
	case []any:
		arr := make(Array, len(val))
		for i, elem := range val {
			arr[i] = fromJSON(elem)
		}
		return arr
	case map[string]any:
		obj := make(Object, len(val))
		for k, elem := range val {
			obj[k] = fromJSON(elem)
		}
		return obj
	default:
		return String(fmt.Sprint(val))
	}
}

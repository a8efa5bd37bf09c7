package member

import (
	"errors"
	"fmt"
	"reflect"
)

// Matcher constrains the argument at one parameter position.
type Matcher struct {
	wildcard bool
	typ      reflect.Type
	value    any
}

// Wildcard matches any argument whose runtime type is assignable to t.
func Wildcard(t reflect.Type) Matcher {
	return Matcher{wildcard: true, typ: t}
}

// Value matches only arguments deeply equal to v.
func Value(v any) Matcher {
	return Matcher{value: v, typ: reflect.TypeOf(v)}
}

// IsWildcard reports whether m accepts any value of its type.
func (m Matcher) IsWildcard() bool { return m.wildcard }

// Type returns the wildcard type, or the dynamic type of the expected value.
func (m Matcher) Type() reflect.Type { return m.typ }

// Expected returns the expected value of a value matcher.
func (m Matcher) Expected() any { return m.value }

// Matches reports whether arg satisfies the matcher.
func (m Matcher) Matches(arg any) bool {
	if !m.wildcard {
		return reflect.DeepEqual(m.value, arg)
	}
	if m.typ == nil {
		return true
	}
	if arg == nil {
		return nillable(m.typ)
	}
	return reflect.TypeOf(arg).AssignableTo(m.typ)
}

// String renders the matcher for logs.
func (m Matcher) String() string {
	if m.wildcard {
		return fmt.Sprintf("any(%s)", typeName(m.typ))
	}
	return fmt.Sprintf("%#v", m.value)
}

func nillable(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Interface, reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return true
	default:
		return false
	}
}

// MatchAll reports whether every argument satisfies its positional matcher.
// The lengths must agree.
func MatchAll(matchers []Matcher, args []any) bool {
	if len(matchers) != len(args) {
		return false
	}
	for i, m := range matchers {
		if !m.Matches(args[i]) {
			return false
		}
	}
	return true
}

var (
	// ErrAmbiguousMatchers is returned when captured matchers can be placed
	// on more than one set of parameter positions.
	ErrAmbiguousMatchers = errors.New("argument matchers are ambiguous")

	// ErrUnplacedMatchers is returned when captured matchers cannot be
	// placed on any parameter position.
	ErrUnplacedMatchers = errors.New("argument matchers do not fit the member parameters")
)

// ResolveMatchers builds the full positional matcher list for a recorded
// sample call.
//
// captured holds the matchers pushed by Any and Eq while the sample ran, in
// call order. When every position was captured they map one to one.
// Otherwise each captured matcher must land on a position whose recorded
// argument is the value that matcher returned, and the placement has to be
// unique. Uncaptured positions match the recorded argument by value.
func ResolveMatchers(params []reflect.Type, args []any, captured []Matcher) ([]Matcher, error) {
	if len(params) != len(args) {
		return nil, fmt.Errorf("%w: %d parameters, %d arguments", ErrUnplacedMatchers, len(params), len(args))
	}

	out := make([]Matcher, len(args))
	if len(captured) == len(args) {
		copy(out, captured)
		return out, nil
	}
	if len(captured) > len(args) {
		return nil, fmt.Errorf("%w: %d matchers for %d parameters", ErrUnplacedMatchers, len(captured), len(args))
	}

	placements := placeMatchers(params, args, captured, 0, 0, nil, nil)
	switch {
	case len(placements) == 0:
		return nil, ErrUnplacedMatchers
	case len(placements) > 1:
		return nil, fmt.Errorf("%w: %d possible placements", ErrAmbiguousMatchers, len(placements))
	}

	for i, arg := range args {
		out[i] = Value(arg)
	}
	for mi, pos := range placements[0] {
		out[pos] = captured[mi]
	}
	return out, nil
}

// placeMatchers enumerates order-preserving placements of captured[mi:] onto
// positions >= pos. Enumeration stops once two placements are known.
func placeMatchers(params []reflect.Type, args []any, captured []Matcher, mi, pos int, cur []int, found [][]int) [][]int {
	if len(found) > 1 {
		return found
	}
	if mi == len(captured) {
		return append(found, append([]int(nil), cur...))
	}
	for p := pos; p <= len(args)-(len(captured)-mi); p++ {
		if !fits(captured[mi], params[p], args[p]) {
			continue
		}
		found = placeMatchers(params, args, captured, mi+1, p+1, append(cur, p), found)
	}
	return found
}

// fits reports whether matcher m could have produced the recorded argument
// at a parameter of type param.
func fits(m Matcher, param reflect.Type, arg any) bool {
	if m.wildcard {
		if m.typ != param {
			return false
		}
		return arg == nil || reflect.ValueOf(arg).IsZero()
	}
	return reflect.DeepEqual(m.value, arg)
}

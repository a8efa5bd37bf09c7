package engine

import (
	"math"
	"reflect"

	"github.com/roach88/aspect/internal/async"
	"github.com/roach88/aspect/internal/member"
)

// Caller routes the members of a forwarding adapter for interface I through
// the engine. Adapters hold a Caller and call Call, Do or Go from every
// member.
//
// A Caller created by Record records calls instead of dispatching them and
// never touches the target.
type Caller[I any] struct {
	engine   *Engine
	pairing  Pairing
	target   I
	recorder *recorder
}

// NewCaller creates a caller dispatching to target through e.
func NewCaller[I any](e *Engine, pairing Pairing, target I) *Caller[I] {
	return &Caller[I]{engine: e, pairing: pairing, target: target}
}

// Target returns the instance behind the proxy.
func (c *Caller[I]) Target() I { return c.target }

// Pairing returns the pairing the caller dispatches for.
func (c *Caller[I]) Pairing() Pairing { return c.pairing }

// Recording reports whether the caller records calls instead of dispatching.
func (c *Caller[I]) Recording() bool { return c.recorder != nil }

// Forwarder is implemented by adapters so generic free functions can reach
// the Caller behind a proxy.
type Forwarder[I any] interface {
	Caller() *Caller[I]
}

// Call dispatches a synchronous member returning a value.
func Call[I, T any](c *Caller[I], sig member.Signature, args []any, fn func(I) (T, error)) (T, error) {
	var zero T
	if c.recorder != nil {
		c.recorder.record(sig, args)
		return zero, nil
	}

	task := c.engine.dispatch(c.pairing, c.target, sig, args, reflect.TypeFor[T](), func() *async.Task[any] {
		v, err := fn(c.target)
		return async.Settled[any](v, err)
	})
	v, err := task.Wait()
	if err != nil {
		return zero, err
	}
	return as[T](v), nil
}

// Do dispatches a synchronous member without a result.
func Do[I any](c *Caller[I], sig member.Signature, args []any, fn func(I) error) error {
	_, err := Call(c, sig, args, func(target I) (async.Void, error) {
		return async.Void{}, fn(target)
	})
	return err
}

// MustCall dispatches a member whose Go signature has no error result.
// A failure panics with the error.
func MustCall[I, T any](c *Caller[I], sig member.Signature, args []any, fn func(I) T) T {
	v, err := Call(c, sig, args, func(target I) (T, error) {
		return fn(target), nil
	})
	if err != nil {
		panic(err)
	}
	return v
}

// MustDo is MustCall for members without a result.
func MustDo[I any](c *Caller[I], sig member.Signature, args []any, fn func(I)) {
	err := Do(c, sig, args, func(target I) error {
		fn(target)
		return nil
	})
	if err != nil {
		panic(err)
	}
}

// Go dispatches an asynchronous member. Hooks observe the awaited value, and
// the returned task completes after Finally has run.
func Go[I, T any](c *Caller[I], sig member.Signature, args []any, fn func(I) *async.Task[T]) *async.Task[T] {
	if c.recorder != nil {
		c.recorder.record(sig, args)
		var zero T
		return async.FromResult(zero)
	}

	task := c.engine.dispatch(c.pairing, c.target, sig, args, reflect.TypeFor[T](), func() *async.Task[any] {
		t := fn(c.target)
		if t == nil {
			return async.FromError[any](ErrNilTask)
		}
		return async.Erase(t)
	})
	return async.Then(task, func(v any, err error) (T, error) {
		if err != nil {
			var zero T
			return zero, err
		}
		return as[T](v), nil
	})
}

// GoVoid dispatches an asynchronous member without a result.
func GoVoid[I any](c *Caller[I], sig member.Signature, args []any, fn func(I) *async.Task[async.Void]) *async.Task[async.Void] {
	return Go(c, sig, args, fn)
}

// as unwraps a value the pipeline already converted with convertResult.
func as[T any](v any) T {
	t, _ := v.(T)
	return t
}

// convertResult converts a pipeline value to the member's result type.
//
// Conversion rules:
//   - nil stays nil and becomes the zero value at the call site
//   - values assignable to want are returned as is
//   - numeric values convert to a numeric want when the value is
//     represented exactly (plans decode numbers as int64)
//
// Anything else is a *ResultTypeError.
func convertResult(sig member.Signature, want reflect.Type, v any) (any, error) {
	if v == nil || want == nil {
		return v, nil
	}
	rv := reflect.ValueOf(v)
	if rv.Type().AssignableTo(want) {
		if want.Kind() == reflect.Interface {
			return v, nil
		}
		return rv.Convert(want).Interface(), nil
	}
	fail := func(reason string) (any, error) {
		return nil, &ResultTypeError{Signature: sig, Want: want, Got: rv.Type(), Value: v, Reason: reason}
	}
	if !numeric(rv.Kind()) || !numeric(want.Kind()) {
		return fail("")
	}
	if reason := lossy(rv, want); reason != "" {
		return fail(reason)
	}
	return rv.Convert(want).Interface(), nil
}

// lossy explains why converting rv to want would change its value, or
// returns "" when the conversion is exact enough to perform. Integers
// converted to floats may round.
func lossy(rv reflect.Value, want reflect.Type) string {
	target := reflect.New(want).Elem()
	switch k := rv.Kind(); {
	case isFloat(k):
		f := rv.Float()
		if isFloat(want.Kind()) {
			if target.OverflowFloat(f) {
				return "overflows " + want.String()
			}
			return ""
		}
		if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
			return "has a fractional part"
		}
		if isUint(want.Kind()) {
			if f < 0 || f >= 1<<64 || target.OverflowUint(uint64(f)) {
				return "overflows " + want.String()
			}
			return ""
		}
		if f < -(1<<63) || f >= 1<<63 || target.OverflowInt(int64(f)) {
			return "overflows " + want.String()
		}
	case isUint(k):
		u := rv.Uint()
		switch {
		case isFloat(want.Kind()):
		case isUint(want.Kind()):
			if target.OverflowUint(u) {
				return "overflows " + want.String()
			}
		case u > math.MaxInt64 || target.OverflowInt(int64(u)):
			return "overflows " + want.String()
		}
	default:
		i := rv.Int()
		switch {
		case isFloat(want.Kind()):
		case isUint(want.Kind()):
			if i < 0 || target.OverflowUint(uint64(i)) {
				return "overflows " + want.String()
			}
		case target.OverflowInt(i):
			return "overflows " + want.String()
		}
	}
	return ""
}

func isFloat(k reflect.Kind) bool { return k == reflect.Float32 || k == reflect.Float64 }

func isUint(k reflect.Kind) bool {
	switch k {
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return true
	default:
		return false
	}
}

func numeric(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	default:
		return false
	}
}

package testservice

import (
	"context"
	"fmt"
	"reflect"
	"sort"

	"github.com/roach88/aspect/internal/async"
	"github.com/roach88/aspect/internal/member"
)

// Entry is one callable member, addressable by name from scenario files
// and the CLI.
type Entry struct {
	Name      string
	Signature member.Signature
	Arity     int
	call      func(ctx context.Context, s Service, args []any) (any, error)
}

// Call invokes the member on s, awaiting async members under ctx. Members
// without an error result panic on failure; the panic is returned as an
// *async.PanicError wrapping the failure.
func (e Entry) Call(ctx context.Context, s Service, args []any) (any, error) {
	if len(args) != e.Arity {
		return nil, fmt.Errorf("%s: got %d arguments, want %d", e.Name, len(args), e.Arity)
	}
	return async.Guard(func() (any, error) { return e.call(ctx, s, args) })
}

// Lookup returns the catalog entry with the given name.
func Lookup(name string) (Entry, bool) {
	e, ok := catalog[name]
	return e, ok
}

// Names returns every catalog name, sorted.
func Names() []string {
	names := make([]string, 0, len(catalog))
	for name := range catalog {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

var catalog = map[string]Entry{}

func add(name string, sig member.Signature, arity int, call func(context.Context, Service, []any) (any, error)) {
	catalog[name] = Entry{Name: name, Signature: sig, Arity: arity, call: call}
}

func await[T any](ctx context.Context, t *async.Task[T]) (any, error) {
	v, err := t.Await(ctx)
	if err != nil {
		return nil, err
	}
	return v, nil
}

func void(err error) (any, error) { return nil, err }

// arg converts args[i] to T. Scenario files decode numbers as int or
// float64, so numeric kinds convert between each other.
func arg[T any](args []any, i int) (T, error) {
	var zero T
	v := args[i]
	if v == nil {
		return zero, nil
	}
	if t, ok := v.(T); ok {
		return t, nil
	}
	want := reflect.TypeFor[T]()
	rv := reflect.ValueOf(v)
	if rv.CanConvert(want) && rv.Kind() != reflect.String && want.Kind() != reflect.String {
		return rv.Convert(want).Interface().(T), nil
	}
	return zero, fmt.Errorf("argument %d: cannot use %T as %v", i, v, want)
}

func init() {
	add("Close", SigClose, 0, func(_ context.Context, s Service, _ []any) (any, error) { return void(s.Close()) })
	add("Name", SigName, 0, func(_ context.Context, s Service, _ []any) (any, error) { return s.Name(), nil })
	add("SetName", SigSetName, 1, func(_ context.Context, s Service, args []any) (any, error) {
		v, err := arg[string](args, 0)
		if err != nil {
			return nil, err
		}
		s.SetName(v)
		return nil, nil
	})
	add("Description", SigDescription, 0, func(_ context.Context, s Service, _ []any) (any, error) { return s.Description(), nil })
	add("SetDescription", SigSetDescription, 1, func(_ context.Context, s Service, args []any) (any, error) {
		v, err := arg[string](args, 0)
		if err != nil {
			return nil, err
		}
		s.SetDescription(v)
		return nil, nil
	})
	add("WasExecuted", SigWasExecuted, 0, func(_ context.Context, s Service, _ []any) (any, error) { return s.WasExecuted(), nil })
	add("SetWasExecuted", SigSetWasExecuted, 1, func(_ context.Context, s Service, args []any) (any, error) {
		v, err := arg[bool](args, 0)
		if err != nil {
			return nil, err
		}
		s.SetWasExecuted(v)
		return nil, nil
	})

	add("Perform", SigPerform, 0, func(_ context.Context, s Service, _ []any) (any, error) { s.Perform(); return nil, nil })
	add("PerformAsync", SigPerformAsync, 0, func(ctx context.Context, s Service, _ []any) (any, error) {
		_, err := await(ctx, s.PerformAsync())
		return void(err)
	})
	add("Perform(string)", SigPerformString, 1, func(_ context.Context, s Service, args []any) (any, error) {
		v, err := arg[string](args, 0)
		if err != nil {
			return nil, err
		}
		s.PerformString(v)
		return nil, nil
	})
	add("PerformAsync(string)", SigPerformStringAsync, 1, func(ctx context.Context, s Service, args []any) (any, error) {
		v, err := arg[string](args, 0)
		if err != nil {
			return nil, err
		}
		_, err = await(ctx, s.PerformStringAsync(v))
		return void(err)
	})
	add("Perform(int)", SigPerformInt, 1, func(_ context.Context, s Service, args []any) (any, error) {
		v, err := arg[int](args, 0)
		if err != nil {
			return nil, err
		}
		s.PerformInt(v)
		return nil, nil
	})
	add("PerformAsync(int)", SigPerformIntAsync, 1, func(ctx context.Context, s Service, args []any) (any, error) {
		v, err := arg[int](args, 0)
		if err != nil {
			return nil, err
		}
		_, err = await(ctx, s.PerformIntAsync(v))
		return void(err)
	})
	addGeneric[int]("int")
	addGeneric[string]("string")
	addGeneric[float64]("float64")

	add("TaggedPerform", SigTaggedPerform, 0, func(_ context.Context, s Service, _ []any) (any, error) {
		s.TaggedPerform()
		return nil, nil
	})
	add("TaggedPerformAsync", SigTaggedPerformAsync, 0, func(ctx context.Context, s Service, _ []any) (any, error) {
		_, err := await(ctx, s.TaggedPerformAsync())
		return void(err)
	})
	add("Fail", SigFail, 0, func(_ context.Context, s Service, _ []any) (any, error) { return void(s.Fail()) })
	add("FailAsync", SigFailAsync, 0, func(ctx context.Context, s Service, _ []any) (any, error) {
		_, err := await(ctx, s.FailAsync())
		return void(err)
	})
	add("Return", SigReturn, 0, func(_ context.Context, s Service, _ []any) (any, error) { return s.Return(), nil })
	add("ReturnAsync", SigReturnAsync, 0, func(ctx context.Context, s Service, _ []any) (any, error) {
		return await(ctx, s.ReturnAsync())
	})
}

func addGeneric[T any](typeName string) {
	t := reflect.TypeFor[T]()
	add("Perform["+typeName+"]", instantiate(SigPerformGeneric, t), 1, func(_ context.Context, s Service, args []any) (any, error) {
		v, err := arg[T](args, 0)
		if err != nil {
			return nil, err
		}
		return Perform(s, v), nil
	})
	add("PerformAsync["+typeName+"]", instantiate(SigPerformGenericAsync, t), 1, func(ctx context.Context, s Service, args []any) (any, error) {
		v, err := arg[T](args, 0)
		if err != nil {
			return nil, err
		}
		return await(ctx, PerformAsync(s, v))
	})
}

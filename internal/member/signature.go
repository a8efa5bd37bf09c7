package member

import (
	"fmt"
	"reflect"
	"slices"
	"strings"
)

// Kind distinguishes methods from property accessors.
type Kind int

const (
	// KindMethod is an ordinary method.
	KindMethod Kind = iota

	// KindGetter reads a property. Getters take no parameters.
	KindGetter

	// KindSetter writes a property. Setters take exactly one parameter.
	KindSetter
)

// String returns the lowercase kind name used in traces and plans.
func (k Kind) String() string {
	switch k {
	case KindMethod:
		return "method"
	case KindGetter:
		return "getter"
	case KindSetter:
		return "setter"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ParseKind converts a kind name back to a Kind.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "method":
		return KindMethod, nil
	case "getter":
		return KindGetter, nil
	case "setter":
		return KindSetter, nil
	default:
		return 0, fmt.Errorf("unknown member kind %q", s)
	}
}

// Signature identifies one member of an interface.
//
// Signatures are immutable values. Two signatures are equal iff every field
// is equal; the name alone never determines identity.
type Signature struct {
	kind      Kind
	name      string
	declaring reflect.Type
	params    []reflect.Type
	async     bool
	arity     int
	typeArgs  []reflect.Type
}

// Option configures a Signature at construction.
type Option func(*Signature)

// Params sets the ordered parameter types.
func Params(types ...reflect.Type) Option {
	return func(s *Signature) {
		s.params = slices.Clone(types)
	}
}

// Async marks a member whose result is delivered through an async.Task.
func Async() Option {
	return func(s *Signature) {
		s.async = true
	}
}

// Generic declares a generic member definition with the given arity.
func Generic(arity int) Option {
	return func(s *Signature) {
		s.arity = arity
	}
}

// NewMethod builds the signature of a method declared on interface I.
func NewMethod[I any](name string, opts ...Option) Signature {
	return newSignature(KindMethod, name, reflect.TypeFor[I](), opts)
}

// NewGetter builds the signature of a property getter declared on I.
func NewGetter[I any](name string, opts ...Option) Signature {
	return newSignature(KindGetter, name, reflect.TypeFor[I](), opts)
}

// NewSetter builds the signature of a property setter declared on I.
// value is the property type and becomes the single parameter.
func NewSetter[I any](name string, value reflect.Type, opts ...Option) Signature {
	opts = append(opts, Params(value))
	return newSignature(KindSetter, name, reflect.TypeFor[I](), opts)
}

func newSignature(kind Kind, name string, declaring reflect.Type, opts []Option) Signature {
	s := Signature{kind: kind, name: name, declaring: declaring}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// Kind returns the member kind.
func (s Signature) Kind() Kind { return s.kind }

// Name returns the logical member name shared by overloads.
func (s Signature) Name() string { return s.name }

// Declaring returns the interface type that declares the member.
func (s Signature) Declaring() reflect.Type { return s.declaring }

// Params returns a copy of the parameter types.
func (s Signature) Params() []reflect.Type { return slices.Clone(s.params) }

// Arity returns the number of parameters.
func (s Signature) Arity() int { return len(s.params) }

// Async reports whether the member completes through a task.
func (s Signature) Async() bool { return s.async }

// GenericArity returns the number of type parameters, zero for non-generic members.
func (s Signature) GenericArity() int { return s.arity }

// IsGeneric reports whether the member has type parameters.
func (s Signature) IsGeneric() bool { return s.arity > 0 }

// TypeArgs returns a copy of the type arguments of an instantiation.
func (s Signature) TypeArgs() []reflect.Type { return slices.Clone(s.typeArgs) }

// IsZero reports whether s is the zero Signature.
func (s Signature) IsZero() bool {
	return s.name == "" && s.declaring == nil
}

// Equal reports structural equality.
func (s Signature) Equal(o Signature) bool {
	return s.kind == o.kind &&
		s.name == o.name &&
		s.declaring == o.declaring &&
		s.async == o.async &&
		s.arity == o.arity &&
		slices.Equal(s.params, o.params) &&
		slices.Equal(s.typeArgs, o.typeArgs)
}

// Definition returns the generic definition of an instantiated signature.
// Non-generic signatures are returned unchanged.
func (s Signature) Definition() Signature {
	if !s.IsGeneric() {
		return s
	}
	def := s
	def.params = nil
	def.typeArgs = nil
	return def
}

// Instantiate binds type arguments to a generic definition. params are the
// parameter types after substitution.
func (s Signature) Instantiate(typeArgs []reflect.Type, params ...reflect.Type) (Signature, error) {
	if !s.IsGeneric() {
		return Signature{}, fmt.Errorf("instantiate %s: member is not generic", s)
	}
	if len(typeArgs) != s.arity {
		return Signature{}, fmt.Errorf("instantiate %s: got %d type arguments, want %d", s, len(typeArgs), s.arity)
	}
	inst := s.Definition()
	inst.typeArgs = slices.Clone(typeArgs)
	inst.params = slices.Clone(params)
	return inst, nil
}

// MustInstantiate is like Instantiate but panics on error.
func (s Signature) MustInstantiate(typeArgs []reflect.Type, params ...reflect.Type) Signature {
	inst, err := s.Instantiate(typeArgs, params...)
	if err != nil {
		panic(err)
	}
	return inst
}

// Key returns a stable string usable as a map key. Distinct signatures have
// distinct keys.
func (s Signature) Key() string {
	var b strings.Builder
	b.WriteString(s.kind.String())
	b.WriteByte('|')
	b.WriteString(typeKey(s.declaring))
	b.WriteByte('|')
	b.WriteString(s.name)
	fmt.Fprintf(&b, "|%d|", s.arity)
	writeTypes(&b, s.typeArgs, typeKey)
	b.WriteByte('|')
	writeTypes(&b, s.params, typeKey)
	if s.async {
		b.WriteString("|async")
	}
	return b.String()
}

// String renders the signature for logs and traces, e.g.
// "Service.Perform(string)" or "get Service.Name".
func (s Signature) String() string {
	var b strings.Builder
	switch s.kind {
	case KindGetter:
		b.WriteString("get ")
	case KindSetter:
		b.WriteString("set ")
	}
	if s.declaring != nil {
		b.WriteString(s.declaring.Name())
		b.WriteByte('.')
	}
	b.WriteString(s.name)
	if len(s.typeArgs) > 0 {
		b.WriteByte('[')
		writeTypes(&b, s.typeArgs, typeName)
		b.WriteByte(']')
	} else if s.arity > 0 {
		fmt.Fprintf(&b, "[%d]", s.arity)
	}
	if s.kind != KindGetter {
		b.WriteByte('(')
		writeTypes(&b, s.params, typeName)
		b.WriteByte(')')
	}
	if s.async {
		b.WriteString(" async")
	}
	return b.String()
}

func writeTypes(b *strings.Builder, types []reflect.Type, render func(reflect.Type) string) {
	for i, t := range types {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(render(t))
	}
}

func typeName(t reflect.Type) string {
	if t == nil {
		return "nil"
	}
	return t.String()
}

// typeKey qualifies named types with their package path so that two types
// with the same short name in different packages never collide.
func typeKey(t reflect.Type) string {
	if t == nil {
		return "nil"
	}
	if t.Name() != "" && t.PkgPath() != "" {
		return t.PkgPath() + "." + t.Name()
	}
	return t.String()
}

package testservice

import (
	"reflect"

	"github.com/roach88/aspect/internal/async"
	"github.com/roach88/aspect/internal/engine"
	"github.com/roach88/aspect/internal/member"
)

var (
	stringType = reflect.TypeFor[string]()
	intType    = reflect.TypeFor[int]()
	boolType   = reflect.TypeFor[bool]()
	anyType    = reflect.TypeFor[any]()
)

// Member signatures. Overloads share a logical name and differ by
// parameters; async members carry the Async flag.
var (
	SigClose = member.NewMethod[Closer]("Close")

	SigName           = member.NewGetter[Service]("Name")
	SigSetName        = member.NewSetter[Service]("Name", stringType)
	SigDescription    = member.NewGetter[Service]("Description")
	SigSetDescription = member.NewSetter[Service]("Description", stringType)
	SigWasExecuted    = member.NewGetter[Service]("WasExecuted")
	SigSetWasExecuted = member.NewSetter[Service]("WasExecuted", boolType)

	SigPerform             = member.NewMethod[Service]("Perform")
	SigPerformAsync        = member.NewMethod[Service]("PerformAsync", member.Async())
	SigPerformString       = member.NewMethod[Service]("Perform", member.Params(stringType))
	SigPerformStringAsync  = member.NewMethod[Service]("PerformAsync", member.Params(stringType), member.Async())
	SigPerformInt          = member.NewMethod[Service]("Perform", member.Params(intType))
	SigPerformIntAsync     = member.NewMethod[Service]("PerformAsync", member.Params(intType), member.Async())
	SigPerformGeneric      = member.NewMethod[Service]("Perform", member.Generic(1))
	SigPerformGenericAsync = member.NewMethod[Service]("PerformAsync", member.Generic(1), member.Async())

	SigTaggedPerform      = member.NewMethod[Service]("TaggedPerform")
	SigTaggedPerformAsync = member.NewMethod[Service]("TaggedPerformAsync", member.Async())

	SigFail      = member.NewMethod[Service]("Fail")
	SigFailAsync = member.NewMethod[Service]("FailAsync", member.Async())

	SigReturn      = member.NewMethod[Service]("Return")
	SigReturnAsync = member.NewMethod[Service]("ReturnAsync", member.Async())
)

// Members is the member table of Service, in declaration order.
var Members = member.NewTable[Service]().
	Declare(SigClose).
	Declare(SigName).
	Declare(SigSetName).
	Declare(SigDescription).
	Declare(SigSetDescription).
	Declare(SigWasExecuted).
	Declare(SigSetWasExecuted).
	Declare(SigPerform).
	Declare(SigPerformAsync).
	Declare(SigPerformString).
	Declare(SigPerformStringAsync).
	Declare(SigPerformInt).
	Declare(SigPerformIntAsync).
	Declare(SigPerformGeneric).
	Declare(SigPerformGenericAsync).
	Declare(SigTaggedPerform, member.DoNotIntercept()).
	Declare(SigTaggedPerformAsync, member.DoNotIntercept()).
	Declare(SigFail).
	Declare(SigFailAsync).
	Declare(SigReturn).
	Declare(SigReturnAsync)

// Contract is the interception contract of Service.
var Contract = &engine.Contract[Service]{
	Table: Members,
	New:   func(c *engine.Caller[Service]) Service { return &proxy{c: c} },
}

func init() {
	engine.RegisterContract(Contract)
}

// proxy forwards every Service member through its Caller.
type proxy struct {
	c *engine.Caller[Service]
}

var _ engine.Forwarder[Service] = (*proxy)(nil)

func (p *proxy) Caller() *engine.Caller[Service] { return p.c }

func (p *proxy) Close() error {
	return engine.Do(p.c, SigClose, nil, func(s Service) error { return s.Close() })
}

func (p *proxy) Name() string {
	return engine.MustCall(p.c, SigName, nil, func(s Service) string { return s.Name() })
}

func (p *proxy) SetName(v string) {
	engine.MustDo(p.c, SigSetName, []any{v}, func(s Service) { s.SetName(v) })
}

func (p *proxy) Description() string {
	return engine.MustCall(p.c, SigDescription, nil, func(s Service) string { return s.Description() })
}

func (p *proxy) SetDescription(v string) {
	engine.MustDo(p.c, SigSetDescription, []any{v}, func(s Service) { s.SetDescription(v) })
}

func (p *proxy) WasExecuted() bool {
	return engine.MustCall(p.c, SigWasExecuted, nil, func(s Service) bool { return s.WasExecuted() })
}

func (p *proxy) SetWasExecuted(v bool) {
	engine.MustDo(p.c, SigSetWasExecuted, []any{v}, func(s Service) { s.SetWasExecuted(v) })
}

func (p *proxy) Perform() {
	engine.MustDo(p.c, SigPerform, nil, func(s Service) { s.Perform() })
}

func (p *proxy) PerformAsync() *async.Task[async.Void] {
	return engine.GoVoid(p.c, SigPerformAsync, nil, func(s Service) *async.Task[async.Void] { return s.PerformAsync() })
}

func (p *proxy) PerformString(v string) {
	engine.MustDo(p.c, SigPerformString, []any{v}, func(s Service) { s.PerformString(v) })
}

func (p *proxy) PerformStringAsync(v string) *async.Task[async.Void] {
	return engine.GoVoid(p.c, SigPerformStringAsync, []any{v}, func(s Service) *async.Task[async.Void] {
		return s.PerformStringAsync(v)
	})
}

func (p *proxy) PerformInt(v int) {
	engine.MustDo(p.c, SigPerformInt, []any{v}, func(s Service) { s.PerformInt(v) })
}

func (p *proxy) PerformIntAsync(v int) *async.Task[async.Void] {
	return engine.GoVoid(p.c, SigPerformIntAsync, []any{v}, func(s Service) *async.Task[async.Void] {
		return s.PerformIntAsync(v)
	})
}

// PerformGeneric dispatches the instantiation for the dynamic type of v.
// Perform[T] dispatches by the static type argument instead.
func (p *proxy) PerformGeneric(v any) any {
	sig := instantiate(SigPerformGeneric, dynamicType(v))
	return engine.MustCall(p.c, sig, []any{v}, func(s Service) any { return s.PerformGeneric(v) })
}

func (p *proxy) PerformGenericAsync(v any) *async.Task[any] {
	sig := instantiate(SigPerformGenericAsync, dynamicType(v))
	return engine.Go(p.c, sig, []any{v}, func(s Service) *async.Task[any] { return s.PerformGenericAsync(v) })
}

func (p *proxy) TaggedPerform() {
	engine.MustDo(p.c, SigTaggedPerform, nil, func(s Service) { s.TaggedPerform() })
}

func (p *proxy) TaggedPerformAsync() *async.Task[async.Void] {
	return engine.GoVoid(p.c, SigTaggedPerformAsync, nil, func(s Service) *async.Task[async.Void] {
		return s.TaggedPerformAsync()
	})
}

func (p *proxy) Fail() error {
	return engine.Do(p.c, SigFail, nil, func(s Service) error { return s.Fail() })
}

func (p *proxy) FailAsync() *async.Task[async.Void] {
	return engine.GoVoid(p.c, SigFailAsync, nil, func(s Service) *async.Task[async.Void] { return s.FailAsync() })
}

func (p *proxy) Return() int {
	return engine.MustCall(p.c, SigReturn, nil, func(s Service) int { return s.Return() })
}

func (p *proxy) ReturnAsync() *async.Task[int] {
	return engine.Go(p.c, SigReturnAsync, nil, func(s Service) *async.Task[int] { return s.ReturnAsync() })
}

// Perform calls the generic Perform[T] member of s.
func Perform[T any](s Service, v T) T {
	fw, ok := s.(engine.Forwarder[Service])
	if !ok {
		r, _ := s.PerformGeneric(v).(T)
		return r
	}
	sig := instantiate(SigPerformGeneric, reflect.TypeFor[T]())
	return engine.MustCall(fw.Caller(), sig, []any{v}, func(target Service) T {
		r, _ := target.PerformGeneric(v).(T)
		return r
	})
}

// PerformAsync calls the generic PerformAsync[T] member of s.
func PerformAsync[T any](s Service, v T) *async.Task[T] {
	fw, ok := s.(engine.Forwarder[Service])
	if !ok {
		return narrow[T](s.PerformGenericAsync(v))
	}
	sig := instantiate(SigPerformGenericAsync, reflect.TypeFor[T]())
	return engine.Go(fw.Caller(), sig, []any{v}, func(target Service) *async.Task[T] {
		return narrow[T](target.PerformGenericAsync(v))
	})
}

func narrow[T any](t *async.Task[any]) *async.Task[T] {
	return async.Then(t, func(v any, err error) (T, error) {
		r, _ := v.(T)
		return r, err
	})
}

func instantiate(def member.Signature, t reflect.Type) member.Signature {
	return def.MustInstantiate([]reflect.Type{t}, t)
}

func dynamicType(v any) reflect.Type {
	if v == nil {
		return anyType
	}
	return reflect.TypeOf(v)
}

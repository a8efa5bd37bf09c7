package engine

import (
	"errors"
	"reflect"

	"github.com/roach88/aspect/internal/async"
	"github.com/roach88/aspect/internal/member"
)

// calc is the interface the engine tests intercept.
type calc interface {
	Add(a, b int) (int, error)
	AddAsync(a, b int) *async.Task[int]
	Label() string
	SetLabel(v string)
	Fail() error
	FailAsync() *async.Task[async.Void]
	Convert(v any) any
	Skip() int
}

var (
	intType = reflect.TypeFor[int]()
	strType = reflect.TypeFor[string]()
	anyType = reflect.TypeFor[any]()

	sigAdd      = member.NewMethod[calc]("Add", member.Params(intType, intType))
	sigAddAsync = member.NewMethod[calc]("Add", member.Params(intType, intType), member.Async())
	sigLabel    = member.NewGetter[calc]("Label")
	sigSetLabel = member.NewSetter[calc]("Label", strType)
	sigFail     = member.NewMethod[calc]("Fail")
	sigFailAsyn = member.NewMethod[calc]("Fail", member.Async())
	sigConvert  = member.NewMethod[calc]("Convert", member.Generic(1))
	sigSkip     = member.NewMethod[calc]("Skip")

	calcTable = member.NewTable[calc]().
			Declare(sigAdd).
			Declare(sigAddAsync).
			Declare(sigLabel).
			Declare(sigSetLabel).
			Declare(sigFail).
			Declare(sigFailAsyn).
			Declare(sigConvert).
			Declare(sigSkip, member.DoNotIntercept())

	errBoom = errors.New("boom")
)

type calcImpl struct {
	label    string
	executed int
	release  chan struct{}
}

func (c *calcImpl) Add(a, b int) (int, error) {
	c.executed++
	return a + b, nil
}

func (c *calcImpl) AddAsync(a, b int) *async.Task[int] {
	return async.Run(func() (int, error) {
		if c.release != nil {
			<-c.release
		}
		return a + b, nil
	})
}

func (c *calcImpl) Label() string     { return c.label }
func (c *calcImpl) SetLabel(v string) { c.label = v }
func (c *calcImpl) Fail() error       { c.executed++; return errBoom }
func (c *calcImpl) FailAsync() *async.Task[async.Void] {
	return async.Run(func() (async.Void, error) { return async.Void{}, errBoom })
}
func (c *calcImpl) Convert(v any) any { return v }
func (c *calcImpl) Skip() int         { return 7 }

type calcProxy struct {
	c *Caller[calc]
}

func (p *calcProxy) Caller() *Caller[calc] { return p.c }

func (p *calcProxy) Add(a, b int) (int, error) {
	return Call(p.c, sigAdd, []any{a, b}, func(t calc) (int, error) { return t.Add(a, b) })
}

func (p *calcProxy) AddAsync(a, b int) *async.Task[int] {
	return Go(p.c, sigAddAsync, []any{a, b}, func(t calc) *async.Task[int] { return t.AddAsync(a, b) })
}

func (p *calcProxy) Label() string {
	return MustCall(p.c, sigLabel, nil, func(t calc) string { return t.Label() })
}

func (p *calcProxy) SetLabel(v string) {
	MustDo(p.c, sigSetLabel, []any{v}, func(t calc) { t.SetLabel(v) })
}

func (p *calcProxy) Fail() error {
	return Do(p.c, sigFail, nil, func(t calc) error { return t.Fail() })
}

func (p *calcProxy) FailAsync() *async.Task[async.Void] {
	return GoVoid(p.c, sigFailAsyn, nil, func(t calc) *async.Task[async.Void] { return t.FailAsync() })
}

// Convert dispatches as the instantiation for the dynamic type of v.
func (p *calcProxy) Convert(v any) any {
	t := reflect.TypeOf(v)
	sig := sigConvert.MustInstantiate([]reflect.Type{t}, t)
	return MustCall(p.c, sig, []any{v}, func(c calc) any { return c.Convert(v) })
}

func (p *calcProxy) Skip() int {
	return MustCall(p.c, sigSkip, nil, func(t calc) int { return t.Skip() })
}

var calcContract = &Contract[calc]{
	Table: calcTable,
	New:   func(c *Caller[calc]) calc { return &calcProxy{c: c} },
}

var calcPairing = PairingOf[calc, *calcImpl]()

// newCalc returns an engine, a proxy and the implementation behind it.
func newCalc(opts ...Option) (*Engine, calc, *calcImpl) {
	e := New(NewRegistry(), opts...)
	impl := &calcImpl{label: "calc"}
	return e, calcContract.Proxy(e, calcPairing, impl), impl
}

package engine

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/roach88/aspect/internal/member"
)

// Contract describes how to intercept interface I: the member table and a
// constructor for the forwarding adapter.
type Contract[I any] struct {
	Table *member.Table
	New   func(c *Caller[I]) I
}

var contracts sync.Map // reflect.Type -> any (*Contract[I])

// RegisterContract makes the contract for I available to ContractFor.
// Registering twice for the same interface replaces the earlier contract.
// Adapter packages call it from init.
func RegisterContract[I any](c *Contract[I]) {
	contracts.Store(reflect.TypeFor[I](), c)
}

// ContractFor returns the contract registered for I.
func ContractFor[I any]() (*Contract[I], error) {
	t := reflect.TypeFor[I]()
	v, ok := contracts.Load(t)
	if !ok {
		return nil, fmt.Errorf("%v: %w", t, ErrNoContract)
	}
	return v.(*Contract[I]), nil
}

// Proxy builds the forwarding adapter for target.
func (c *Contract[I]) Proxy(e *Engine, pairing Pairing, target I) I {
	return c.New(NewCaller(e, pairing, target))
}

// Package locator supplies the instances proxied by the interceptor.
//
// It is the minimal target provider: a registration maps an interface and
// implementation pairing to a factory that runs at most once.
package locator

import (
	"errors"
	"fmt"
	"reflect"
	"sync"
)

// ErrNotRegistered is returned when no factory is registered for a pairing.
var ErrNotRegistered = errors.New("no target registered")

type key struct {
	iface reflect.Type
	impl  reflect.Type
}

type entry struct {
	once    sync.Once
	factory func() (any, error)
	value   any
	err     error
}

// Locator resolves singleton targets by pairing.
//
// Thread-safety: safe for concurrent use. Each factory runs at most once
// even when several goroutines resolve the same pairing.
type Locator struct {
	mu      sync.RWMutex
	entries map[key]*entry
}

// New creates an empty locator.
func New() *Locator {
	return &Locator{entries: make(map[key]*entry)}
}

func (l *Locator) put(k key, e *entry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries[k] = e
}

// Register installs a factory for the pairing of I and Impl. The factory
// runs on first resolution. Registering again replaces the earlier entry.
func Register[I, Impl any](l *Locator, factory func() Impl) {
	l.put(keyOf[I, Impl](), &entry{factory: func() (any, error) { return factory(), nil }})
}

// RegisterInstance installs an existing instance for the pairing.
func RegisterInstance[I, Impl any](l *Locator, v Impl) {
	l.put(keyOf[I, Impl](), &entry{factory: func() (any, error) { return v, nil }})
}

// Target resolves the instance registered for iface and impl.
func (l *Locator) Target(iface, impl reflect.Type) (any, error) {
	l.mu.RLock()
	e, ok := l.entries[key{iface: iface, impl: impl}]
	l.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%v=>%v: %w", iface, impl, ErrNotRegistered)
	}

	e.once.Do(func() {
		e.value, e.err = e.factory()
	})
	return e.value, e.err
}

func keyOf[I, Impl any]() key {
	return key{iface: reflect.TypeFor[I](), impl: reflect.TypeFor[Impl]()}
}

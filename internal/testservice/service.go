// Package testservice is the reference service used to exercise
// interception: an interface covering every member shape (properties,
// overloads, generic, async, exempt and promoted members), a plain
// implementation and its forwarding adapter.
package testservice

import (
	"errors"
	"sync"

	"github.com/roach88/aspect/internal/async"
)

// ErrInvalidOperation is the failure raised by Fail and FailAsync.
var ErrInvalidOperation = errors.New("invalid operation")

// DefaultName is the initial value of Impl's Name property.
const DefaultName = "testValue"

// Closer is embedded in Service; its member is promoted, not declared.
type Closer interface {
	Close() error
}

// Service exposes one member of every shape the interceptor supports.
//
// Overloads share a logical name: PerformString and PerformInt are the
// Perform(string) and Perform(int) overloads, and PerformGeneric is the
// generic Perform[T]. Call the generic member through the Perform and
// PerformAsync functions so the type argument is known.
type Service interface {
	Closer

	Name() string
	SetName(v string)
	Description() string
	SetDescription(v string)
	WasExecuted() bool
	SetWasExecuted(v bool)

	Perform()
	PerformAsync() *async.Task[async.Void]
	PerformString(v string)
	PerformStringAsync(v string) *async.Task[async.Void]
	PerformInt(v int)
	PerformIntAsync(v int) *async.Task[async.Void]
	PerformGeneric(v any) any
	PerformGenericAsync(v any) *async.Task[any]

	TaggedPerform()
	TaggedPerformAsync() *async.Task[async.Void]

	Fail() error
	FailAsync() *async.Task[async.Void]

	Return() int
	ReturnAsync() *async.Task[int]
}

// Impl is the plain implementation. The property accessors of Name and the
// Perform, Fail and Return families set the executed flag; Close and the
// Description accessors do not.
//
// Thread-safety: safe for concurrent use; async members run on their own
// goroutines.
type Impl struct {
	mu          sync.Mutex
	name        string
	description string
	executed    bool
	closed      bool
}

var _ Service = (*Impl)(nil)

// New returns an Impl named DefaultName.
func New() *Impl {
	return &Impl{name: DefaultName}
}

func (s *Impl) markExecuted() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.executed = true
}

func (s *Impl) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Closed reports whether Close was called.
func (s *Impl) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Impl) Name() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.executed = true
	return s.name
}

func (s *Impl) SetName(v string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.name = v
	s.executed = true
}

func (s *Impl) Description() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.description
}

func (s *Impl) SetDescription(v string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.description = v
}

func (s *Impl) WasExecuted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.executed
}

func (s *Impl) SetWasExecuted(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.executed = v
}

func (s *Impl) Perform() { s.markExecuted() }

func (s *Impl) PerformAsync() *async.Task[async.Void] {
	return async.Run(func() (async.Void, error) {
		s.Perform()
		return async.Void{}, nil
	})
}

func (s *Impl) PerformString(string) { s.markExecuted() }

func (s *Impl) PerformStringAsync(string) *async.Task[async.Void] { return s.PerformAsync() }

func (s *Impl) PerformInt(int) { s.markExecuted() }

func (s *Impl) PerformIntAsync(int) *async.Task[async.Void] { return s.PerformAsync() }

func (s *Impl) PerformGeneric(v any) any {
	s.markExecuted()
	return v
}

func (s *Impl) PerformGenericAsync(v any) *async.Task[any] {
	return async.Run(func() (any, error) { return s.PerformGeneric(v), nil })
}

func (s *Impl) TaggedPerform() { s.markExecuted() }

func (s *Impl) TaggedPerformAsync() *async.Task[async.Void] {
	return async.Run(func() (async.Void, error) {
		s.TaggedPerform()
		return async.Void{}, nil
	})
}

func (s *Impl) Fail() error {
	s.markExecuted()
	return ErrInvalidOperation
}

func (s *Impl) FailAsync() *async.Task[async.Void] {
	return async.Run(func() (async.Void, error) { return async.Void{}, s.Fail() })
}

func (s *Impl) Return() int {
	s.markExecuted()
	return 1
}

func (s *Impl) ReturnAsync() *async.Task[int] {
	return async.Run(func() (int, error) { return s.Return(), nil })
}

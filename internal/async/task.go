// Package async provides the deferred-outcome handle shared by synchronous
// and asynchronous members.
//
// A Task completes exactly once with a value or an error. Continuations
// attached with OnComplete or Then run on the goroutine that completes the
// task, or inline when the task has already completed. Synchronous calls are
// modelled as tasks that are complete from the start, so one pipeline serves
// both call shapes.
package async

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
)

// Void is the result type of tasks that produce no value.
type Void = struct{}

// Task is a single-assignment future.
type Task[T any] struct {
	done chan struct{}

	mu        sync.Mutex
	completed bool
	value     T
	err       error
	callbacks []func()
}

func newTask[T any]() *Task[T] {
	return &Task[T]{done: make(chan struct{})}
}

// complete settles the task and runs pending continuations outside the lock.
// Returns false if the task was already complete.
func (t *Task[T]) complete(v T, err error) bool {
	t.mu.Lock()
	if t.completed {
		t.mu.Unlock()
		return false
	}
	t.value, t.err, t.completed = v, err, true
	callbacks := t.callbacks
	t.callbacks = nil
	close(t.done)
	t.mu.Unlock()

	for _, cb := range callbacks {
		cb()
	}
	return true
}

// Run starts fn on a new goroutine. A panic in fn completes the task with a
// *PanicError.
func Run[T any](fn func() (T, error)) *Task[T] {
	t := newTask[T]()
	go func() {
		v, err := Guard(fn)
		t.complete(v, err)
	}()
	return t
}

// FromResult returns a task already completed with v.
func FromResult[T any](v T) *Task[T] {
	t := newTask[T]()
	t.complete(v, nil)
	return t
}

// FromError returns a task already completed with err.
func FromError[T any](err error) *Task[T] {
	t := newTask[T]()
	var zero T
	t.complete(zero, err)
	return t
}

// Settled returns a completed task holding v or err.
func Settled[T any](v T, err error) *Task[T] {
	t := newTask[T]()
	t.complete(v, err)
	return t
}

// Done is closed when the task completes.
func (t *Task[T]) Done() <-chan struct{} {
	return t.done
}

// IsCompleted reports whether the task has completed.
func (t *Task[T]) IsCompleted() bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}

// Await blocks until the task completes or ctx is done. Cancelling ctx stops
// the wait only; the task keeps running.
func (t *Task[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-t.done:
		return t.value, t.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Wait blocks until the task completes.
func (t *Task[T]) Wait() (T, error) {
	<-t.done
	return t.value, t.err
}

// OnComplete registers fn to run with the outcome once the task completes.
func (t *Task[T]) OnComplete(fn func(T, error)) {
	t.mu.Lock()
	if !t.completed {
		t.callbacks = append(t.callbacks, func() { fn(t.value, t.err) })
		t.mu.Unlock()
		return
	}
	t.mu.Unlock()
	fn(t.value, t.err)
}

// Then chains fn after t. fn receives the outcome of t, whether it succeeded
// or failed, and its own result completes the returned task. A panic in fn
// completes the returned task with a *PanicError.
func Then[T, U any](t *Task[T], fn func(T, error) (U, error)) *Task[U] {
	next := newTask[U]()
	t.OnComplete(func(v T, err error) {
		u, uerr := Guard(func() (U, error) { return fn(v, err) })
		next.complete(u, uerr)
	})
	return next
}

// Erase converts a typed task to a task of any.
func Erase[T any](t *Task[T]) *Task[any] {
	return Then(t, func(v T, err error) (any, error) {
		if err != nil {
			return nil, err
		}
		return v, nil
	})
}

// Promise is the producer side of a task completed by hand.
type Promise[T any] struct {
	task *Task[T]
}

// NewPromise creates a promise with a pending task.
func NewPromise[T any]() *Promise[T] {
	return &Promise[T]{task: newTask[T]()}
}

// Task returns the consumer side.
func (p *Promise[T]) Task() *Task[T] { return p.task }

// Resolve completes the task with v. Returns false if already completed.
func (p *Promise[T]) Resolve(v T) bool { return p.task.complete(v, nil) }

// Reject completes the task with err. Returns false if already completed.
func (p *Promise[T]) Reject(err error) bool {
	var zero T
	return p.task.complete(zero, err)
}

// PanicError carries a recovered panic value.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// Unwrap exposes a panic value that is itself an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// Guard calls fn and converts a panic into a *PanicError.
func Guard[T any](fn func() (T, error)) (v T, err error) {
	defer func() {
		if r := recover(); r != nil {
			var zero T
			v, err = zero, &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()
	return fn()
}

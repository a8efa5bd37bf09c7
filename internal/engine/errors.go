package engine

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/roach88/aspect/internal/member"
)

// SelectionError reports a sample call that could not be resolved to
// exactly one member. It is raised at registration time and the rule it
// belonged to is never registered.
type SelectionError struct {
	// Selector names the DSL operation, e.g. "InterceptMethod".
	Selector string

	// Member is the recorded member, when one was recorded.
	Member string

	// Message is a human-readable description.
	Message string

	// Err is the underlying cause, if any.
	Err error
}

func (e *SelectionError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Selector, e.Message)
	if e.Member != "" {
		msg = fmt.Sprintf("%s: %s (member=%s)", e.Selector, e.Message, e.Member)
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *SelectionError) Unwrap() error { return e.Err }

// NewSelectionError creates a SelectionError for the given DSL operation.
func NewSelectionError(selector, message string, err error) *SelectionError {
	return &SelectionError{Selector: selector, Message: message, Err: err}
}

// InvocationError is returned at the call site when the real or replacement
// call failed. errors.Is and errors.As see the original failure through
// Unwrap.
type InvocationError struct {
	Signature member.Signature
	CallID    string
	Err       error
}

func (e *InvocationError) Error() string {
	return fmt.Sprintf("invoke %s: %v (call=%s)", e.Signature, e.Err, e.CallID)
}

func (e *InvocationError) Unwrap() error { return e.Err }

// HookError reports a callback that returned an error or panicked.
// Remaining callbacks of the same phase were not run.
type HookError struct {
	Kind      HookKind
	Rule      int // index among the rules that matched the call
	Signature member.Signature
	CallID    string
	Err       error
}

func (e *HookError) Error() string {
	return fmt.Sprintf("%s hook of rule %d failed for %s: %v (call=%s)", e.Kind, e.Rule, e.Signature, e.Err, e.CallID)
}

func (e *HookError) Unwrap() error { return e.Err }

// ResultTypeError reports a value, usually from OnInvoke or OnReturn, that
// cannot be returned from the member.
//
// Numeric values convert between types only when the value survives: a
// fractional float or an out-of-range integer is rejected with Reason set.
type ResultTypeError struct {
	Signature member.Signature
	Want      reflect.Type
	Got       reflect.Type
	Value     any
	Reason    string
}

func (e *ResultTypeError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("result of %s: %v %v %s, want %v", e.Signature, e.Got, e.Value, e.Reason, e.Want)
	}
	return fmt.Sprintf("result of %s: got %v, want %v", e.Signature, e.Got, e.Want)
}

var (
	// ErrNoContract is returned when no adapter is registered for an interface.
	ErrNoContract = errors.New("no interception contract registered")

	// ErrStaleHandle is returned when replacing a rule whose pairing was
	// reconfigured after the handle was issued.
	ErrStaleHandle = errors.New("registration handle is stale")

	// ErrNilTask is returned when an async member returns a nil task.
	ErrNilTask = errors.New("async member returned a nil task")
)

// IsSelectionError returns true if err is or wraps a *SelectionError.
func IsSelectionError(err error) bool {
	var se *SelectionError
	return errors.As(err, &se)
}

// IsInvocationError returns true if err is or wraps an *InvocationError.
func IsInvocationError(err error) bool {
	var ie *InvocationError
	return errors.As(err, &ie)
}

// IsHookError returns true if err is or wraps a *HookError.
func IsHookError(err error) bool {
	var he *HookError
	return errors.As(err, &he)
}

package member

import (
	"fmt"
	"reflect"
	"sync"
)

// Recording sessions are process-wide: Go has no goroutine-local storage, so
// Any and Eq push onto whichever session is active. Sessions are serialized
// so one registration never observes another's matchers.
var (
	sessionMu sync.Mutex

	activeMu sync.Mutex
	active   *session
)

type session struct {
	captured []Matcher
}

func (s *session) push(m Matcher) {
	activeMu.Lock()
	defer activeMu.Unlock()
	s.captured = append(s.captured, m)
}

func current() *session {
	activeMu.Lock()
	defer activeMu.Unlock()
	return active
}

// Capture runs sample inside a recording session and returns the matchers
// pushed by Any and Eq, in call order. A panic in sample is returned as an
// error.
func Capture(sample func()) (captured []Matcher, err error) {
	sessionMu.Lock()
	defer sessionMu.Unlock()

	s := &session{}
	activeMu.Lock()
	active = s
	activeMu.Unlock()

	defer func() {
		activeMu.Lock()
		active = nil
		activeMu.Unlock()
		if r := recover(); r != nil {
			err = fmt.Errorf("sample call panicked: %v", r)
		}
	}()

	sample()
	return s.captured, nil
}

// Any marks a parameter position as a wildcard for T and returns the zero
// value of T. Outside Capture it only returns the zero value.
func Any[T any]() T {
	if s := current(); s != nil {
		s.push(Wildcard(reflect.TypeFor[T]()))
	}
	var zero T
	return zero
}

// Eq marks a parameter position as matching v exactly and returns v.
// Plain literal arguments already match by value; Eq is needed only to
// disambiguate a position that also holds a zero value.
func Eq[T any](v T) T {
	if s := current(); s != nil {
		s.push(Value(v))
	}
	return v
}

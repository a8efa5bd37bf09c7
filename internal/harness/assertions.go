package harness

import (
	"fmt"
	"strings"

	"github.com/roach88/aspect/internal/testservice"
	"github.com/roach88/aspect/internal/trace"
)

// AssertionError is returned when an assertion fails. It carries the full
// trace to help debug the failure.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	Trace    []trace.Event
}

func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			fmt.Fprintf(&buf, "  %s\n", event)
		}
	}
	return buf.String()
}

func assertTraceContains(events []trace.Event, a Assertion) error {
	for _, e := range events {
		if a.Event.Matches(e) {
			return nil
		}
	}
	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: fmt.Sprintf("event %s", a.Event),
		Actual:   "not found in trace",
		Trace:    events,
	}
}

// assertTraceOrder checks that the patterns match events in the given
// order. Other events may appear in between.
func assertTraceOrder(events []trace.Event, a Assertion) error {
	pos := 0
	for i, p := range a.Events {
		found := -1
		for j := pos; j < len(events); j++ {
			if p.Matches(events[j]) {
				found = j
				break
			}
		}
		if found < 0 {
			actual := fmt.Sprintf("no event %s after position %d", p, pos)
			if i == 0 {
				actual = fmt.Sprintf("no event %s in trace", p)
			}
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("events in order: %s", patterns(a.Events)),
				Actual:   actual,
				Trace:    events,
			}
		}
		pos = found + 1
	}
	return nil
}

func assertTraceCount(events []trace.Event, a Assertion) error {
	count := 0
	for _, e := range events {
		if a.Event.Matches(e) {
			count++
		}
	}
	if count != *a.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d occurrences of %s", *a.Count, a.Event),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    events,
		}
	}
	return nil
}

// assertCallCount counts the calls that reached dispatch for a member,
// whether or not their hooks ran.
func assertCallCount(events []trace.Event, a Assertion) error {
	count := 0
	for _, e := range events {
		if e.Kind == trace.KindInvoked && memberMatches(e.Member, a.Member) {
			count++
		}
	}
	if count != *a.Count {
		return &AssertionError{
			Type:     AssertCallCount,
			Expected: fmt.Sprintf("%d calls to %s", *a.Count, a.Member),
			Actual:   fmt.Sprintf("%d calls", count),
			Trace:    events,
		}
	}
	return nil
}

// assertFinalState reads the target directly, bypassing the proxy.
// Executed is read first because the Name getter sets it.
func assertFinalState(target *testservice.Impl, a Assertion) error {
	want := a.State
	executed := target.WasExecuted()
	closed := target.Closed()
	description := target.Description()
	name := target.Name()
	got := TargetState{Name: &name, Description: &description, Executed: &executed, Closed: &closed}

	mismatch := (want.Name != nil && *want.Name != name) ||
		(want.Description != nil && *want.Description != description) ||
		(want.Executed != nil && *want.Executed != executed) ||
		(want.Closed != nil && *want.Closed != closed)
	if mismatch {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("target state %s", want),
			Actual:   fmt.Sprintf("target state %s", got),
		}
	}
	return nil
}

func patterns(ps []EventPattern) string {
	parts := make([]string, len(ps))
	for i, p := range ps {
		parts[i] = p.String()
	}
	return strings.Join(parts, " -> ")
}

// EvaluateAssertions checks every assertion against the result's trace
// and the target's final state. It returns one message per failure.
func EvaluateAssertions(result *Result, assertions []Assertion, target *testservice.Impl) []string {
	var errs []string

	for i, a := range assertions {
		var err error
		switch a.Type {
		case AssertTraceContains:
			err = assertTraceContains(result.Events, a)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Events, a)
		case AssertTraceCount:
			err = assertTraceCount(result.Events, a)
		case AssertCallCount:
			err = assertCallCount(result.Events, a)
		case AssertFinalState:
			if target == nil {
				err = fmt.Errorf("assertion[%d]: final_state requires a target", i)
			} else {
				err = assertFinalState(target, a)
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, a.Type)
		}
		if err != nil {
			errs = append(errs, err.Error())
		}
	}
	return errs
}

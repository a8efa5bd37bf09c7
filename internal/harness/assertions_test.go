package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/aspect/internal/testservice"
	"github.com/roach88/aspect/internal/trace"
)

func sampleTrace() []trace.Event {
	return []trace.Event{
		{Seq: 1, Kind: trace.KindInvoked, CallID: "c-1", Member: "Service.Perform(int)"},
		{Seq: 2, Kind: trace.KindHook, CallID: "c-1", Member: "Service.Perform(int)", Hook: "before", Rule: "audit"},
		{Seq: 3, Kind: trace.KindHook, CallID: "c-1", Member: "Service.Perform(int)", Hook: "after", Rule: "audit"},
		{Seq: 4, Kind: trace.KindCompleted, CallID: "c-1", Member: "Service.Perform(int)", Outcome: "value"},
		{Seq: 5, Kind: trace.KindInvoked, CallID: "c-2", Member: "set Service.Name(string)"},
		{Seq: 6, Kind: trace.KindCompleted, CallID: "c-2", Member: "set Service.Name(string)", Outcome: "failure", Error: "x"},
	}
}

func TestMemberName(t *testing.T) {
	tests := map[string]string{
		"Service.Perform()":           "Perform",
		"Service.Perform[int](int)":   "Perform",
		"Service.ReturnAsync() async": "ReturnAsync",
		"get Service.Name":            "Name",
		"set Service.Name(string)":    "Name",
		"Closer.Close()":              "Close",
	}
	for sig, want := range tests {
		assert.Equal(t, want, MemberName(sig), sig)
	}
}

func TestEventPattern_Matches(t *testing.T) {
	e := sampleTrace()[1]

	assert.True(t, EventPattern{}.Matches(e))
	assert.True(t, EventPattern{Kind: "hook", Member: "Perform", Hook: "before", Rule: "audit"}.Matches(e))
	assert.True(t, EventPattern{Member: "Service.Perform(int)"}.Matches(e))
	assert.False(t, EventPattern{Member: "Perf"}.Matches(e))
	assert.False(t, EventPattern{Hook: "after"}.Matches(e))
	assert.False(t, EventPattern{Rule: "other"}.Matches(e))
	assert.False(t, EventPattern{Outcome: "value"}.Matches(e))

	assert.Equal(t, "{kind=hook rule=audit}", EventPattern{Kind: "hook", Rule: "audit"}.String())
	assert.Equal(t, "{any event}", EventPattern{}.String())
}

func TestAssertTraceContains(t *testing.T) {
	events := sampleTrace()

	assert.NoError(t, assertTraceContains(events, Assertion{Event: &EventPattern{Kind: "completed", Outcome: "failure"}}))

	err := assertTraceContains(events, Assertion{Event: &EventPattern{Hook: "catch"}})
	require.Error(t, err)
	var ae *AssertionError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, AssertTraceContains, ae.Type)
	assert.Equal(t, "event {hook=catch}", ae.Expected)
	assert.Equal(t, "not found in trace", ae.Actual)
	assert.Len(t, ae.Trace, 6)
}

func TestAssertTraceOrder(t *testing.T) {
	events := sampleTrace()

	t.Run("in order with gaps", func(t *testing.T) {
		err := assertTraceOrder(events, Assertion{Events: []EventPattern{
			{Hook: "before"},
			{Kind: "completed", Member: "Perform"},
			{Member: "Name", Outcome: "failure"},
		}})
		assert.NoError(t, err)
	})

	t.Run("reversed", func(t *testing.T) {
		err := assertTraceOrder(events, Assertion{Events: []EventPattern{
			{Hook: "after"},
			{Hook: "before"},
		}})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no event {hook=before} after position 3")
	})

	t.Run("missing first", func(t *testing.T) {
		err := assertTraceOrder(events, Assertion{Events: []EventPattern{
			{Hook: "catch"},
			{Hook: "before"},
		}})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no event {hook=catch} in trace")
	})

	t.Run("same pattern twice needs two events", func(t *testing.T) {
		err := assertTraceOrder(events, Assertion{Events: []EventPattern{
			{Kind: "invoked"},
			{Kind: "invoked"},
			{Kind: "invoked"},
		}})
		assert.Error(t, err)
	})
}

func TestAssertTraceCount(t *testing.T) {
	events := sampleTrace()

	assert.NoError(t, assertTraceCount(events, Assertion{Event: &EventPattern{Kind: "hook"}, Count: ptr(2)}))
	assert.NoError(t, assertTraceCount(events, Assertion{Event: &EventPattern{Hook: "catch"}, Count: ptr(0)}))

	err := assertTraceCount(events, Assertion{Event: &EventPattern{Member: "Perform"}, Count: ptr(1)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 occurrences of {member=Perform}")
	assert.Contains(t, err.Error(), "Actual: 4 occurrences")
}

func TestAssertCallCount(t *testing.T) {
	events := sampleTrace()

	assert.NoError(t, assertCallCount(events, Assertion{Member: "Perform", Count: ptr(1)}))
	assert.NoError(t, assertCallCount(events, Assertion{Member: "Name", Count: ptr(1)}))
	assert.NoError(t, assertCallCount(events, Assertion{Member: "Return", Count: ptr(0)}))

	err := assertCallCount(events, Assertion{Member: "Perform", Count: ptr(3)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "3 calls to Perform")
}

func TestAssertFinalState(t *testing.T) {
	target := testservice.New()
	target.SetName("n")
	target.SetWasExecuted(false)

	assert.NoError(t, assertFinalState(target, Assertion{State: &TargetState{
		Name:     ptr("n"),
		Executed: ptr(false),
		Closed:   ptr(false),
	}}))

	err := assertFinalState(target, Assertion{State: &TargetState{Description: ptr("d")}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `Expected: target state {description="d"}`)
	assert.Contains(t, err.Error(), `description=""`)
}

func TestAssertionError_Format(t *testing.T) {
	err := &AssertionError{
		Type:     AssertCallCount,
		Expected: "2 calls to Perform",
		Actual:   "1 calls",
		Trace:    sampleTrace()[:2],
	}

	want := "Assertion failed: call_count\n" +
		"  Expected: 2 calls to Perform\n" +
		"  Actual: 1 calls\n" +
		"\nFull trace:\n" +
		"  #1 invoked Service.Perform(int)\n" +
		"  #2 hook before Service.Perform(int) [audit]\n"
	assert.Equal(t, want, err.Error())
}

func TestEvaluateAssertions(t *testing.T) {
	result := NewResult()
	result.Events = sampleTrace()

	errs := EvaluateAssertions(result, []Assertion{
		{Type: AssertTraceCount, Event: &EventPattern{Kind: "hook"}, Count: ptr(2)},
		{Type: AssertCallCount, Member: "Perform", Count: ptr(5)},
		{Type: AssertFinalState, State: &TargetState{}},
		{Type: "bogus"},
	}, nil)

	require.Len(t, errs, 3)
	assert.Contains(t, errs[0], "call_count")
	assert.Equal(t, "assertion[2]: final_state requires a target", errs[1])
	assert.Equal(t, `assertion[3]: unknown assertion type "bogus"`, errs[2])
}

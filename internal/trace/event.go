package trace

import (
	"bytes"
	"fmt"
	"slices"
	"sync"

	"github.com/roach88/aspect/internal/engine"
)

// Kind classifies trace events.
type Kind string

const (
	KindInvoked   Kind = "invoked"
	KindCompleted Kind = "completed"
	KindHook      Kind = "hook"
)

// Event is one line of a call trace.
//
// Seq orders events within a Log. Invoked and completed events carry the
// engine's logical time in CallSeq; hook events carry the hook kind and the
// id of the rule that ran it.
type Event struct {
	Seq     int64
	Kind    Kind
	CallID  string
	CallSeq int64
	Member  string
	Hook    string
	Rule    string
	Args    Array
	Outcome string
	Result  Value
	Error   string
}

// Value renders the event as an Object with snake_case keys. Empty fields
// are omitted.
func (e Event) Value() Object {
	obj := Object{
		"seq":  Int(e.Seq),
		"kind": String(e.Kind),
	}
	put := func(k, v string) {
		if v != "" {
			obj[k] = String(v)
		}
	}
	put("call_id", e.CallID)
	put("member", e.Member)
	put("hook", e.Hook)
	put("rule", e.Rule)
	put("outcome", e.Outcome)
	put("error", e.Error)
	if e.CallSeq != 0 {
		obj["call_seq"] = Int(e.CallSeq)
	}
	if e.Args != nil {
		obj["args"] = e.Args
	}
	if e.Result != nil {
		obj["result"] = e.Result
	}
	return obj
}

func (e Event) String() string {
	switch e.Kind {
	case KindHook:
		return fmt.Sprintf("#%d hook %s %s [%s]", e.Seq, e.Hook, e.Member, e.Rule)
	case KindCompleted:
		return fmt.Sprintf("#%d completed %s %s", e.Seq, e.Member, e.Outcome)
	default:
		return fmt.Sprintf("#%d invoked %s", e.Seq, e.Member)
	}
}

// Log collects events in the order they happen. It implements
// engine.Observer for call events; hooks report themselves through Hook.
//
// Thread-safety: safe for concurrent use.
type Log struct {
	mu     sync.Mutex
	events []Event
}

var _ engine.Observer = (*Log)(nil)

// NewLog creates an empty log.
func NewLog() *Log {
	return &Log{}
}

// Append stamps e with the next log seq and records it.
func (l *Log) Append(e Event) Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	e.Seq = int64(len(l.events) + 1)
	l.events = append(l.events, e)
	return e
}

// Invoked records the start of a call.
func (l *Log) Invoked(inv *engine.Invocation) {
	l.Append(Invoked(inv))
}

// Completed records the end of a call.
func (l *Log) Completed(inv *engine.Invocation) {
	l.Append(Completed(inv))
}

// Hook records that a hook of the given kind ran for rule.
func (l *Log) Hook(inv *engine.Invocation, hook engine.HookKind, rule string) {
	l.Append(Event{
		Kind:   KindHook,
		CallID: inv.ID(),
		Member: inv.Signature().String(),
		Hook:   hook.String(),
		Rule:   rule,
	})
}

// Events returns a copy of the recorded events.
func (l *Log) Events() []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.events)
}

// Reset discards every recorded event.
func (l *Log) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = nil
}

// Invoked builds the event for the start of inv.
func Invoked(inv *engine.Invocation) Event {
	args := make(Array, 0, len(inv.Args()))
	for _, a := range inv.Args() {
		args = append(args, ValueOf(a))
	}
	return Event{
		Kind:    KindInvoked,
		CallID:  inv.ID(),
		CallSeq: inv.Seq(),
		Member:  inv.Signature().String(),
		Args:    args,
	}
}

// Completed builds the event for the end of inv.
func Completed(inv *engine.Invocation) Event {
	out := inv.Outcome()
	e := Event{
		Kind:    KindCompleted,
		CallID:  inv.ID(),
		CallSeq: inv.CompletedSeq(),
		Member:  inv.Signature().String(),
		Outcome: out.State.String(),
	}
	switch out.State {
	case engine.OutcomeValue:
		e.Result = ValueOf(out.Value)
	case engine.OutcomeFailure:
		if out.Err != nil {
			e.Error = out.Err.Error()
		}
	}
	return e
}

// Snapshot renders events as canonical JSON, one event per line, without a
// trailing newline. Golden files store this form.
func Snapshot(events []Event) ([]byte, error) {
	var buf bytes.Buffer
	for i, e := range events {
		line, err := MarshalCanonical(e.Value())
		if err != nil {
			return nil, fmt.Errorf("event %d: %w", e.Seq, err)
		}
		if i > 0 {
			buf.WriteByte('\n')
		}
		buf.Write(line)
	}
	return buf.Bytes(), nil
}

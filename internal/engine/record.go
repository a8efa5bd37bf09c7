package engine

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/roach88/aspect/internal/member"
)

var (
	// ErrNoCallRecorded is returned when a sample expression calls no member.
	ErrNoCallRecorded = errors.New("sample call recorded no member")

	// ErrMultipleCallsRecorded is returned when a sample expression calls
	// more than one member.
	ErrMultipleCallsRecorded = errors.New("sample call recorded more than one member")
)

// Recording is one member call captured from a sample expression.
type Recording struct {
	Signature member.Signature
	Args      []any
}

type recorder struct {
	mu    sync.Mutex
	calls []Recording
}

func (r *recorder) record(sig member.Signature, args []any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, Recording{Signature: sig, Args: slices.Clone(args)})
}

// Record runs sample against a recording adapter and returns the single
// member it called, with one matcher per parameter.
//
// Arguments produced by member.Any or member.Eq become those matchers; the
// remaining arguments match by value. Recording adapters return zero values
// and completed zero tasks, so sample expressions may use results freely.
func Record[I any](contract *Contract[I], sample func(I)) (Recording, []member.Matcher, error) {
	rec := &recorder{}
	proxy := contract.New(&Caller[I]{recorder: rec})

	captured, err := member.Capture(func() { sample(proxy) })
	if err != nil {
		return Recording{}, nil, err
	}

	switch len(rec.calls) {
	case 0:
		return Recording{}, nil, ErrNoCallRecorded
	case 1:
	default:
		names := make([]string, len(rec.calls))
		for i, c := range rec.calls {
			names[i] = c.Signature.String()
		}
		return Recording{}, nil, fmt.Errorf("%w: %v", ErrMultipleCallsRecorded, names)
	}

	call := rec.calls[0]
	matchers, err := member.ResolveMatchers(call.Signature.Params(), call.Args, captured)
	if err != nil {
		return call, nil, err
	}
	return call, matchers, nil
}

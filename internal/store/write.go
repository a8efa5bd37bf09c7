package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/aspect/internal/engine"
	"github.com/roach88/aspect/internal/trace"
)

// ErrPending is returned by WriteCompletion for a call that has not
// completed yet.
var ErrPending = errors.New("call has not completed")

// WriteInvocation inserts the call record for inv.
// Uses ON CONFLICT(id) DO NOTHING: writing the same call twice is a no-op.
//
// Arguments are stored as canonical JSON.
func (s *Store) WriteInvocation(ctx context.Context, inv *engine.Invocation) error {
	args := make(trace.Array, 0, len(inv.Args()))
	for _, a := range inv.Args() {
		args = append(args, trace.ValueOf(a))
	}
	argsJSON, err := trace.MarshalCanonical(args)
	if err != nil {
		return fmt.Errorf("write invocation: %w", err)
	}

	sig := inv.Signature()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO calls
		(id, seq, pairing, member, member_name, member_key, args)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		inv.ID(),
		inv.Seq(),
		inv.Pairing().String(),
		sig.String(),
		sig.Name(),
		sig.Key(),
		string(argsJSON),
	)
	if err != nil {
		return fmt.Errorf("write invocation: %w", err)
	}
	return nil
}

// WriteCompletion inserts the outcome of inv. Each call has at most one
// outcome; a second write is silently ignored.
//
// The call itself must already be recorded (foreign key).
func (s *Store) WriteCompletion(ctx context.Context, inv *engine.Invocation) error {
	out := inv.Outcome()
	var result, errText sql.NullString
	switch out.State {
	case engine.OutcomeValue:
		data, err := trace.MarshalCanonical(trace.ValueOf(out.Value))
		if err != nil {
			return fmt.Errorf("write completion: %w", err)
		}
		result = sql.NullString{String: string(data), Valid: true}
	case engine.OutcomeFailure:
		if out.Err != nil {
			errText = sql.NullString{String: out.Err.Error(), Valid: true}
		}
	default:
		return fmt.Errorf("write completion %s: %w", inv.ID(), ErrPending)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO outcomes
		(call_id, seq, state, result, error)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`,
		inv.ID(),
		inv.CompletedSeq(),
		out.State.String(),
		result,
		errText,
	)
	if err != nil {
		return fmt.Errorf("write completion: %w", err)
	}
	return nil
}

package store

import (
	"cmp"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"

	"github.com/roach88/aspect/internal/trace"
)

// Call is a recorded call with its outcome, if any.
type Call struct {
	ID        string
	Seq       int64
	Pairing   string
	Member    string
	MemberKey string
	Args      trace.Array
	Outcome   *Outcome // nil while the call is pending
}

// Outcome is how a recorded call ended.
type Outcome struct {
	Seq    int64
	State  string
	Result trace.Value
	Error  string
}

const selectCalls = `
	SELECT c.id, c.seq, c.pairing, c.member, c.member_key, c.args,
	       o.seq, o.state, o.result, o.error
	FROM calls c
	LEFT JOIN outcomes o ON o.call_id = c.id
`

// ReadCall retrieves one call by ID.
// Returns sql.ErrNoRows if not found.
func (s *Store) ReadCall(ctx context.Context, id string) (Call, error) {
	row := s.db.QueryRowContext(ctx, selectCalls+`WHERE c.id = ?`, id)
	return scanCall(row)
}

// ReadTrace returns every recorded call.
// Results are ordered by seq, then id.
//
// Returns an empty slice (not nil) for an empty store.
func (s *Store) ReadTrace(ctx context.Context) ([]Call, error) {
	return s.queryCalls(ctx, selectCalls+`ORDER BY c.seq ASC, c.id COLLATE BINARY ASC`)
}

// ReadMemberTrace returns the calls of one member, matched by logical name
// ("Perform") or by full signature ("Service.Perform(int)").
func (s *Store) ReadMemberTrace(ctx context.Context, member string) ([]Call, error) {
	return s.queryCalls(ctx, selectCalls+`
		WHERE c.member_name = ? OR c.member = ?
		ORDER BY c.seq ASC, c.id COLLATE BINARY ASC
	`, member, member)
}

func (s *Store) queryCalls(ctx context.Context, query string, args ...any) ([]Call, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query calls: %w", err)
	}
	defer rows.Close()

	calls := []Call{}
	for rows.Next() {
		c, err := scanCall(rows)
		if err != nil {
			return nil, err
		}
		calls = append(calls, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate calls: %w", err)
	}
	return calls, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCall(row scanner) (Call, error) {
	var (
		c        Call
		argsJSON string
		outSeq   sql.NullInt64
		state    sql.NullString
		result   sql.NullString
		errText  sql.NullString
	)
	err := row.Scan(&c.ID, &c.Seq, &c.Pairing, &c.Member, &c.MemberKey, &argsJSON,
		&outSeq, &state, &result, &errText)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Call{}, err
		}
		return Call{}, fmt.Errorf("scan call: %w", err)
	}

	args, err := trace.Decode([]byte(argsJSON))
	if err != nil {
		return Call{}, fmt.Errorf("call %s args: %w", c.ID, err)
	}
	arr, ok := args.(trace.Array)
	if !ok {
		return Call{}, fmt.Errorf("call %s args: not an array", c.ID)
	}
	c.Args = arr

	if state.Valid {
		c.Outcome = &Outcome{Seq: outSeq.Int64, State: state.String, Error: errText.String}
		if result.Valid {
			v, err := trace.Decode([]byte(result.String))
			if err != nil {
				return Call{}, fmt.Errorf("call %s result: %w", c.ID, err)
			}
			c.Outcome.Result = v
		}
	}
	return c, nil
}

// Events renders calls as trace events ordered by logical time, the same
// shape trace.Log records live. Event seqs are renumbered from 1.
func Events(calls []Call) []trace.Event {
	var events []trace.Event
	for _, c := range calls {
		events = append(events, trace.Event{
			Kind:    trace.KindInvoked,
			CallID:  c.ID,
			CallSeq: c.Seq,
			Member:  c.Member,
			Args:    c.Args,
		})
		if c.Outcome != nil {
			events = append(events, trace.Event{
				Kind:    trace.KindCompleted,
				CallID:  c.ID,
				CallSeq: c.Outcome.Seq,
				Member:  c.Member,
				Outcome: c.Outcome.State,
				Result:  c.Outcome.Result,
				Error:   c.Outcome.Error,
			})
		}
	}
	slices.SortStableFunc(events, func(a, b trace.Event) int {
		return cmp.Compare(a.CallSeq, b.CallSeq)
	})
	for i := range events {
		events[i].Seq = int64(i + 1)
	}
	return events
}

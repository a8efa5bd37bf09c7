package store

import (
	"context"
	"io"
	"log/slog"

	"github.com/roach88/aspect/internal/engine"
)

// Recorder writes every dispatched call to a Store. It implements
// engine.Observer; write errors are logged, never returned to the caller
// of the intercepted member.
type Recorder struct {
	store  *Store
	logger *slog.Logger
}

var _ engine.Observer = (*Recorder)(nil)

// NewRecorder creates a recorder writing to s. A nil logger discards.
func NewRecorder(s *Store, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Recorder{store: s, logger: logger}
}

// Invoked records the call.
func (r *Recorder) Invoked(inv *engine.Invocation) {
	if err := r.store.WriteInvocation(context.Background(), inv); err != nil {
		r.logger.Error("failed to record call",
			"call", inv.ID(),
			"member", inv.Signature().String(),
			"error", err)
	}
}

// Completed records the call's outcome.
func (r *Recorder) Completed(inv *engine.Invocation) {
	if err := r.store.WriteCompletion(context.Background(), inv); err != nil {
		r.logger.Error("failed to record outcome",
			"call", inv.ID(),
			"member", inv.Signature().String(),
			"error", err)
	}
}

package transcribe

import (
	"context"
	"sync/atomic"
)

// Token is a run-scoped cancellation flag. It is set by [Token.Cancel] or by
// the cancellation of the context it was created from, and it is consulted by
// the engine before each processing stage. A Token belongs to exactly one
// run. Safe for concurrent use.
type Token struct {
	cancelled atomic.Bool
	ctx       context.Context
}

// NewToken returns a Token that also reports cancellation once ctx is done.
func NewToken(ctx context.Context) *Token {
	if ctx == nil {
		ctx = context.Background()
	}
	return &Token{ctx: ctx}
}

// Cancel requests the run to stop. Work already started is not preempted.
func (t *Token) Cancel() { t.cancelled.Store(true) }

// Cancelled reports whether the run should stop.
func (t *Token) Cancelled() bool {
	return t.cancelled.Load() || t.ctx.Err() != nil
}

// Err returns the cancellation cause, or nil while the token is live.
func (t *Token) Err() error {
	if err := context.Cause(t.ctx); err != nil {
		return err
	}
	if t.cancelled.Load() {
		return context.Canceled
	}
	return nil
}

package orchestrator

import (
	"context"
	"sync"

	"github.com/aretw0/tripvoice/pkg/ports"
)

// Outcome is the final disposition of an operation.
type Outcome string

const (
	// OutcomeApplied means the response was merged into the conversation.
	OutcomeApplied Outcome = "applied"
	// OutcomeFailed means the service failed; an apology turn may have been appended.
	OutcomeFailed Outcome = "failed"
	// OutcomeStale means a newer trip superseded the operation; nothing was applied.
	OutcomeStale Outcome = "stale"
	// OutcomeRejected means a precondition did not hold and no call was issued.
	OutcomeRejected Outcome = "rejected"
)

// Result describes how an operation resolved.
type Result struct {
	Sequence uint64
	Route    Route
	Outcome  Outcome
	// Reply is the assistant text appended for this operation, if any.
	Reply string
	// Err carries the underlying cause for failed, stale and rejected outcomes.
	Err error
	// Document and Location are set for successful exports.
	Document *ports.Document
	Location string
}

// Ticket tracks an accepted operation until it resolves.
type Ticket struct {
	seq    uint64
	done   chan struct{}
	once   sync.Once
	result Result
}

func newTicket(seq uint64) *Ticket {
	return &Ticket{seq: seq, done: make(chan struct{})}
}

// Sequence returns the number assigned when the operation was accepted.
func (t *Ticket) Sequence() uint64 {
	return t.seq
}

// Done is closed once the operation has resolved.
func (t *Ticket) Done() <-chan struct{} {
	return t.done
}

// Wait blocks until the operation resolves or ctx is done.
func (t *Ticket) Wait(ctx context.Context) (Result, error) {
	select {
	case <-t.done:
		return t.result, nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

func (t *Ticket) resolve(r Result) {
	t.once.Do(func() {
		r.Sequence = t.seq
		t.result = r
		close(t.done)
	})
}

package tool

import (
	"context"
	"sync"

	"github.com/casualjim/athene/pkg/uuidx"
)

type decision struct {
	approved bool
	reason   string
}

// Approval is a one-shot permission request for a single tool call. The
// executor creates it, hands it to the host's observer and blocks the call
// until Approve or Reject lands. Resolution is exactly-once: the first call
// wins, later calls are ignored. Resolving an approval whose agent has
// already gone away is a silent no-op.
type Approval struct {
	id            string
	what          string
	justification string

	once sync.Once
	out  chan decision
}

// NewApproval builds an unresolved approval. what describes the action in
// human terms, justification is the model's stated reason for wanting it.
func NewApproval(what, justification string) *Approval {
	return &Approval{
		id:            uuidx.NewString(),
		what:          what,
		justification: justification,
		out:           make(chan decision, 1),
	}
}

// ID identifies this approval; hosts juggling several pending approvals key
// on it.
func (a *Approval) ID() string { return a.id }

// What describes the action awaiting permission.
func (a *Approval) What() string { return a.what }

// Justification is the model-supplied reason for the call.
func (a *Approval) Justification() string { return a.justification }

// Approve lets the call proceed.
func (a *Approval) Approve() {
	a.resolve(decision{approved: true})
}

// Reject blocks the call. The reason, if any, is reported to the model as
// the call's failure text.
func (a *Approval) Reject(reason string) {
	a.resolve(decision{reason: reason})
}

func (a *Approval) resolve(d decision) {
	// The buffered channel makes resolution non-blocking even when nobody
	// is waiting anymore.
	a.once.Do(func() { a.out <- d })
}

// Wait blocks until the approval resolves or ctx ends. It returns whether
// the call was approved and, on rejection, the reason.
func (a *Approval) Wait(ctx context.Context) (approved bool, reason string, err error) {
	select {
	case d := <-a.out:
		return d.approved, d.reason, nil
	case <-ctx.Done():
		return false, "", ctx.Err()
	}
}

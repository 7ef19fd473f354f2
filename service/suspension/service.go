package suspension

import (
	"context"
	"errors"

	"github.com/warden-ai/warden/service/messaging"
)

var (
	// ErrUnknownSnapshot is returned when an operation references a snapshot
	// identifier that does not exist.
	ErrUnknownSnapshot = errors.New("suspension: unknown snapshot")

	// ErrAlreadyDecided is returned when a second terminal decision is
	// recorded against a snapshot - a decision is applied exactly once.
	ErrAlreadyDecided = errors.New("suspension: snapshot already decided")

	// ErrInvalidDecision is returned for a decision value outside
	// approve/reject/modify.  No state is mutated.
	ErrInvalidDecision = errors.New("suspension: invalid decision")
)

// Service owns the freeze/thaw lifecycle and the audit log.  Implementations
// must allow snapshot and audit operations to be invoked from a
// decision-handling path running concurrently with (or long after) the loop
// that created the snapshot.
type Service interface {
	// Freeze creates an immutable snapshot of in-flight cognitive state,
	// stores it under a new globally unique identifier and appends a
	// state_frozen audit event.  It must not block.
	Freeze(ctx context.Context, input *FreezeInput) (*Snapshot, error)

	// Thaw returns a stored snapshot and appends a state_thawed audit
	// event.  It does not delete the snapshot - a snapshot may be thawed
	// for inspection multiple times.
	Thaw(ctx context.Context, id string) (*Snapshot, error)

	// Discard removes a snapshot.  Deletion is always explicit.
	Discard(ctx context.Context, id string) error

	// RequestApproval assembles a serializable summary for a
	// decision-maker and appends an approval_requested audit event.  It
	// never waits for a decision.
	RequestApproval(ctx context.Context, snapshot *Snapshot) (*Request, error)

	// RecordDecision applies a terminal human decision against a snapshot,
	// exactly once, and computes the loop's continuation.
	RecordDecision(ctx context.Context, id string, decision Decision, options ...DecisionOption) (*Outcome, error)

	// RejectionCycle builds the context patch and preserved state that let
	// a rejection re-enter reasoning as a normal cognitive event.
	RejectionCycle(snapshot *Snapshot, reason string) *RejectionCycle

	// Pending lists requests that have no recorded decision yet.
	Pending(ctx context.Context) ([]*Request, error)

	// AuditLog returns every audit event in append order.
	AuditLog(ctx context.Context) ([]*Event, error)

	// Stats summarises the audit log.
	Stats(ctx context.Context) (*Stats, error)

	// Queue exposes the audit-event fan-out for decision front-ends.
	Queue() messaging.Queue[Event]
}

// DecisionSource supplies decisions synchronously at the intervention check.
// Returning ok==false means no decision is available now and the loop must
// suspend.
type DecisionSource interface {
	Decide(ctx context.Context, request *Request) (*DecisionInput, bool)
}

// AutoApprove is a DecisionSource that approves every request immediately.
// It exists for tests and unattended runs.
type AutoApprove struct {
	Rationale string
}

// Decide implements DecisionSource.
func (a *AutoApprove) Decide(_ context.Context, _ *Request) (*DecisionInput, bool) {
	rationale := a.Rationale
	if rationale == "" {
		rationale = "auto-approved"
	}
	return &DecisionInput{Decision: DecisionApprove, Rationale: rationale}, true
}

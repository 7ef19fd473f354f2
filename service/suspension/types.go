package suspension

import (
	"time"

	"github.com/warden-ai/warden/internal/deepcopy"
	"github.com/warden-ai/warden/model"
)

// EventKind enumerates the audit-event kinds of the suspension lifecycle.
type EventKind string

const (
	EventApprovalRequested EventKind = "approval_requested"
	EventApproved          EventKind = "approved"
	EventRejected          EventKind = "rejected"
	EventModified          EventKind = "modified"
	EventStateFrozen       EventKind = "state_frozen"
	EventStateThawed       EventKind = "state_thawed"
	EventTimeout           EventKind = "timeout"
	EventDelegated         EventKind = "delegated"
)

// Actor tags who produced an audit event.
const (
	ActorHuman  = "human"
	ActorSystem = "system"
)

// Decision is a terminal human verdict against a frozen snapshot.
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
	DecisionModify  Decision = "modify"
)

// Valid reports whether the decision value is one of approve/reject/modify.
func (d Decision) Valid() bool {
	switch d {
	case DecisionApprove, DecisionReject, DecisionModify:
		return true
	}
	return false
}

// Snapshot is the complete unit of transferable loop state, created exactly
// once per suspension event.  Every mutable container inside it is a deep
// copy taken at freeze time - later mutation of the live working store never
// affects a stored snapshot.  Its existence is the sole mechanism by which a
// suspended loop can be resumed.
type Snapshot struct {
	ID            string                 `json:"id"`
	CreatedAt     time.Time              `json:"createdAt"`
	LoopCounter   int                    `json:"loopCounter"`
	PendingAction *model.Action          `json:"pendingAction,omitempty"`
	Output        *model.Output          `json:"cognitionOutput,omitempty"`
	StoreState    map[string]interface{} `json:"storeState,omitempty"`
	EvidenceCache map[string]interface{} `json:"evidenceCache,omitempty"`
	Context       map[string]interface{} `json:"context,omitempty"`
	RuleState     map[string]interface{} `json:"ruleState,omitempty"`
	Level         model.Level            `json:"interventionLevel"`
	Reason        string                 `json:"interventionReason"`
}

// Clone returns a deep copy of the snapshot so that callers can restore and
// mutate state without touching the stored original.
func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return nil
	}
	return &Snapshot{
		ID:            s.ID,
		CreatedAt:     s.CreatedAt,
		LoopCounter:   s.LoopCounter,
		PendingAction: s.PendingAction.Clone(),
		Output:        s.Output.Clone(),
		StoreState:    deepcopy.Map(s.StoreState),
		EvidenceCache: deepcopy.Map(s.EvidenceCache),
		Context:       deepcopy.Map(s.Context),
		RuleState:     deepcopy.Map(s.RuleState),
		Level:         s.Level,
		Reason:        s.Reason,
	}
}

// FreezeInput carries the in-flight cognitive state into Freeze.
type FreezeInput struct {
	LoopCounter   int
	Output        *model.Output
	StoreState    map[string]interface{}
	EvidenceCache map[string]interface{}
	Context       map[string]interface{}
	RuleState     map[string]interface{}
	Level         model.Level
	Reason        string
}

// Event is a single append-only audit record.  For a given snapshot the
// ordering frozen -> requested -> decided -> thawed is preserved.
type Event struct {
	ID             string        `json:"id"`
	CreatedAt      time.Time     `json:"createdAt"`
	Kind           EventKind     `json:"kind"`
	SnapshotID     string        `json:"snapshotId,omitempty"`
	PendingAction  *model.Action `json:"pendingAction,omitempty"`
	Decision       Decision      `json:"decision,omitempty"`
	Feedback       string        `json:"feedback,omitempty"`
	ModifiedAction *model.Action `json:"modifiedAction,omitempty"`
	Rationale      string        `json:"rationale,omitempty"`
	Actor          string        `json:"actor"`
}

// Request is the serializable approval-request summary handed to a
// decision-maker.  It never blocks on an answer.
type Request struct {
	SnapshotID     string                 `json:"snapshotId"`
	CreatedAt      time.Time              `json:"createdAt"`
	Level          model.Level            `json:"interventionLevel"`
	Reason         string                 `json:"interventionReason"`
	PendingAction  *model.Action          `json:"pendingAction,omitempty"`
	Reasoning      string                 `json:"reasoning,omitempty"`
	EvidenceRefs   []string               `json:"evidenceRefs,omitempty"`
	ContextSummary map[string]interface{} `json:"contextSummary,omitempty"`
	Options        []string               `json:"options"`
}

// NextKind describes how the loop continues after a decision.
type NextKind string

const (
	// NextExecute - dispatch the resolved action.
	NextExecute NextKind = "execute"
	// NextReason - re-enter reasoning carrying the rejection as context.
	NextReason NextKind = "reason"
)

// Next is the computed continuation for a recorded decision.
type Next struct {
	Kind NextKind `json:"kind"`
	// Action is the action to dispatch when Kind==NextExecute: the pending
	// action for approve, the replacement for modify.
	Action *model.Action `json:"action,omitempty"`
	// Feedback carries the original reasoning text forward when
	// Kind==NextReason.
	Feedback string `json:"feedback,omitempty"`
	// VirtualRejection flags a rejection cycle.
	VirtualRejection bool `json:"virtualRejection,omitempty"`
}

// Outcome is the result of RecordDecision.
type Outcome struct {
	SnapshotID string    `json:"snapshotId"`
	Decision   Decision  `json:"decision"`
	EventID    string    `json:"eventId"`
	DecidedAt  time.Time `json:"decidedAt"`
	Feedback   string    `json:"feedback,omitempty"`
	Rationale  string    `json:"rationale,omitempty"`
	Next       *Next     `json:"next"`
}

// RejectionCycle is the context patch plus preserved state that turns a
// human rejection into an ordinary, traceable cognitive event.
type RejectionCycle struct {
	Reason        string                 `json:"reason"`
	ContextPatch  map[string]interface{} `json:"contextPatch"`
	StoreState    map[string]interface{} `json:"storeState,omitempty"`
	EvidenceCache map[string]interface{} `json:"evidenceCache,omitempty"`
	Original      *model.Output          `json:"originalCognition,omitempty"`
}

// Stats summarises the audit log.
type Stats struct {
	TotalEvents   int `json:"totalEvents"`
	Approvals     int `json:"approvals"`
	Rejections    int `json:"rejections"`
	Modifications int `json:"modifications"`
	Frozen        int `json:"frozenStates"`
}

// DecisionInput is the shape of a decision once obtained, regardless of the
// mechanism that collected it.
type DecisionInput struct {
	Decision       Decision
	Feedback       string
	ModifiedAction *model.Action
	Rationale      string
}

// DecisionOption customises RecordDecision.
type DecisionOption func(*DecisionInput)

// WithFeedback attaches free-form human feedback, carried into the rejection
// cycle when the decision is reject.
func WithFeedback(feedback string) DecisionOption {
	return func(d *DecisionInput) { d.Feedback = feedback }
}

// WithModifiedAction supplies the replacement action for a modify decision.
func WithModifiedAction(action *model.Action) DecisionOption {
	return func(d *DecisionInput) { d.ModifiedAction = action }
}

// WithRationale attaches the decision rationale for the audit log.
func WithRationale(rationale string) DecisionOption {
	return func(d *DecisionInput) { d.Rationale = rationale }
}

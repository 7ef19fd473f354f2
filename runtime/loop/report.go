package loop

import (
	"github.com/warden-ai/warden/service/suspension"
)

// Outcome of a run.
const (
	OutcomeCompleted     = "completed"
	OutcomeSuspended     = "suspended"
	OutcomeLoopExhausted = "loop_exhausted"
)

// Summary condenses a run into counters and a terminal outcome.
type Summary struct {
	TotalLoops       int    `json:"totalLoops"`
	PolicyViolations int    `json:"policyViolations"`
	Interventions    int    `json:"interventions"`
	Approvals        int    `json:"approvals"`
	Rejections       int    `json:"rejections"`
	Modifications    int    `json:"modifications"`
	Outcome          string `json:"outcome"`
	// SnapshotID identifies the frozen snapshot when Outcome is suspended;
	// pass it to Resume to continue the run.
	SnapshotID string                 `json:"snapshotId,omitempty"`
	FinalStore map[string]interface{} `json:"finalStore,omitempty"`
}

// Report is the full record of a run: every stage transition, the audit log
// accumulated by the suspension manager, and the condensed summary.
type Report struct {
	Task     string              `json:"task"`
	Rules    []string            `json:"rules"`
	Traces   []*Trace            `json:"traces"`
	AuditLog []*suspension.Event `json:"auditLog,omitempty"`
	Stats    *suspension.Stats   `json:"stats,omitempty"`
	Summary  *Summary            `json:"summary"`
}

// Suspended reports whether the run stopped awaiting a human decision.
func (r *Report) Suspended() bool {
	return r.Summary != nil && r.Summary.Outcome == OutcomeSuspended
}

// Completed reports whether the run finished with a final action.
func (r *Report) Completed() bool {
	return r.Summary != nil && r.Summary.Outcome == OutcomeCompleted
}

package model

// Level represents the escalation tier assigned to a proposed action by the
// intervention policy.
type Level string

const (
	// LevelNone - proceed silently, no intervention needed.
	LevelNone Level = "none"
	// LevelNotify - inform a human but proceed.
	LevelNotify Level = "notify"
	// LevelConfirm - require explicit confirmation.
	LevelConfirm Level = "confirm"
	// LevelApprove - require approval with possible modification.
	LevelApprove Level = "approve"
	// LevelBlock - never execute; the loop treats it as a rejection and
	// re-enters reasoning.
	LevelBlock Level = "block"
)

// RequiresDecision reports whether this level stops the proposed action from
// executing as-is.  Notify is advisory: the loop surfaces it and proceeds.
func (l Level) RequiresDecision() bool {
	switch l {
	case LevelConfirm, LevelApprove, LevelBlock:
		return true
	}
	return false
}

// IsNone reports whether no intervention is needed at all.
func (l Level) IsNone() bool {
	return l == "" || l == LevelNone
}

package governance

import (
	"fmt"
	"strings"

	"github.com/warden-ai/warden/model"
	"github.com/warden-ai/warden/runtime/session"
)

// Validator applies the governance rules to cognition output and exposes the
// duplicate-call check against the working store's evidence cache.
type Validator struct {
	rules   *Rules
	session *session.Session
}

// NewValidator creates a validator bound to one loop's rule set and session.
func NewValidator(rules *Rules, sess *session.Session) *Validator {
	if rules == nil {
		rules = NewRules(nil)
	}
	return &Validator{rules: rules, session: sess}
}

// Rules returns the bound rule set.
func (v *Validator) Rules() *Rules {
	return v.rules
}

// Validate checks the output against every enabled rule and accumulates all
// violations into a single message.  The control-validated flag is set before
// rule evaluation when the output carries a final action - one of the rules
// inspects exactly that flag.
func (v *Validator) Validate(output *model.Output) (bool, string) {
	if output == nil {
		return false, "VIOLATIONS: nil cognition output"
	}
	if output.IsFinal {
		output.ControlValidated = true
	}

	var issues []string
	if v.rules.config.MustCiteStoredEvidence && len(output.EvidenceRefs) == 0 {
		issues = append(issues, "missing evidence citations")
	}
	if v.rules.config.NoFinalAnswerWithoutControl && output.IsFinal && !output.ControlValidated {
		issues = append(issues, "final action without control validation")
	}

	if len(issues) > 0 {
		return false, fmt.Sprintf("VIOLATIONS: %s", strings.Join(issues, "; "))
	}
	return true, "PASS"
}

// CheckDuplicate reports whether the action's deterministic evidence key is
// already present in the evidence cache.  A hit is a hard rejection that
// overrides a governance pass.
func (v *Validator) CheckDuplicate(action *model.Action) (bool, string) {
	if !v.rules.config.AvoidRedundantCalls || action.IsEmpty() || v.session == nil {
		return false, ""
	}
	if v.session.HasEvidence(action.EvidenceKey()) {
		return true, "REJECTED: redundant capability call (evidence already stored)"
	}
	return false, ""
}

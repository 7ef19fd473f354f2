// Package governance holds the fixed symbolic constraints every proposed
// action must satisfy before execution, plus the validator that applies them
// to cognition output.
package governance

import (
	"context"
	"fmt"
	"sort"

	"github.com/viant/afs"
	"gopkg.in/yaml.v3"
)

// Config enables or disables individual governance rules.  Field names match
// the rule identifiers reported in audit output.
type Config struct {
	MustCiteStoredEvidence      bool `json:"must_cite_stored_evidence" yaml:"must_cite_stored_evidence"`
	NoFinalAnswerWithoutControl bool `json:"no_final_answer_without_control_pass" yaml:"no_final_answer_without_control_pass"`
	SingleFinalAction           bool `json:"single_final_action" yaml:"single_final_action"`
	AvoidRedundantCalls         bool `json:"avoid_redundant_tool_calls" yaml:"avoid_redundant_tool_calls"`
	ValidateConditionalBranches bool `json:"validate_conditional_branches" yaml:"validate_conditional_branches"`
	RequireApprovalForHighRisk  bool `json:"require_approval_for_high_risk" yaml:"require_approval_for_high_risk"`
	LogAllHumanDecisions        bool `json:"log_all_human_decisions" yaml:"log_all_human_decisions"`
}

// DefaultConfig enables every rule.
func DefaultConfig() *Config {
	return &Config{
		MustCiteStoredEvidence:      true,
		NoFinalAnswerWithoutControl: true,
		SingleFinalAction:           true,
		AvoidRedundantCalls:         true,
		ValidateConditionalBranches: true,
		RequireApprovalForHighRisk:  true,
		LogAllHumanDecisions:        true,
	}
}

// Rules is the active constraint set.  It is consulted by the Validator on
// every loop iteration and its state travels inside frozen snapshots so that
// a resumed loop validates under the rules that were live at freeze time.
type Rules struct {
	config *Config
}

// NewRules creates a rule set; nil config enables everything.
func NewRules(config *Config) *Rules {
	if config == nil {
		config = DefaultConfig()
	}
	return &Rules{config: config}
}

// Names lists the enabled rule identifiers in stable order; they appear in
// audit reports as the active policy names.
func (r *Rules) Names() []string {
	var names []string
	for name, enabled := range r.flags() {
		if enabled {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

func (r *Rules) flags() map[string]bool {
	return map[string]bool{
		"must_cite_stored_evidence":            r.config.MustCiteStoredEvidence,
		"no_final_answer_without_control_pass": r.config.NoFinalAnswerWithoutControl,
		"single_final_action":                  r.config.SingleFinalAction,
		"avoid_redundant_tool_calls":           r.config.AvoidRedundantCalls,
		"validate_conditional_branches":        r.config.ValidateConditionalBranches,
		"require_approval_for_high_risk":       r.config.RequireApprovalForHighRisk,
		"log_all_human_decisions":              r.config.LogAllHumanDecisions,
	}
}

// State returns a serializable snapshot of the rule set for freezing.
func (r *Rules) State() map[string]interface{} {
	flags := r.flags()
	out := make(map[string]interface{}, len(flags))
	for name, enabled := range flags {
		out[name] = enabled
	}
	return out
}

// Restore rebuilds the rule set from a frozen state snapshot.  Unknown keys
// are ignored; missing keys keep their current value.
func (r *Rules) Restore(state map[string]interface{}) {
	set := func(dst *bool, key string) {
		if v, ok := state[key].(bool); ok {
			*dst = v
		}
	}
	set(&r.config.MustCiteStoredEvidence, "must_cite_stored_evidence")
	set(&r.config.NoFinalAnswerWithoutControl, "no_final_answer_without_control_pass")
	set(&r.config.SingleFinalAction, "single_final_action")
	set(&r.config.AvoidRedundantCalls, "avoid_redundant_tool_calls")
	set(&r.config.ValidateConditionalBranches, "validate_conditional_branches")
	set(&r.config.RequireApprovalForHighRisk, "require_approval_for_high_risk")
	set(&r.config.LogAllHumanDecisions, "log_all_human_decisions")
}

// LoadConfig reads a YAML rule configuration from any afs-reachable URL.
func LoadConfig(ctx context.Context, fs afs.Service, URL string) (*Config, error) {
	data, err := fs.DownloadWithURL(ctx, URL)
	if err != nil {
		return nil, fmt.Errorf("failed to load governance config %s: %w", URL, err)
	}
	config := &Config{}
	if err = yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to decode governance config %s: %w", URL, err)
	}
	return config, nil
}

package governance

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/warden-ai/warden/model"
	"github.com/warden-ai/warden/runtime/session"
)

func TestValidate(t *testing.T) {
	type testCase struct {
		name     string
		output   *model.Output
		expected bool
		message  string
	}

	tests := []testCase{
		{
			name: "pass with evidence",
			output: &model.Output{
				Reasoning:    "checked SF weather",
				Action:       &model.Action{Capability: "get_weather"},
				EvidenceRefs: []string{"wx-001"},
			},
			expected: true,
			message:  "PASS",
		},
		{
			name: "missing evidence",
			output: &model.Output{
				Reasoning: "guessing",
				Action:    &model.Action{Capability: "get_weather"},
			},
			expected: false,
			message:  "VIOLATIONS: missing evidence citations",
		},
		{
			name: "final action gets control validated before rules run",
			output: &model.Output{
				Reasoning:    "cancelling trip",
				Action:       &model.Action{Capability: "cancel_trip"},
				EvidenceRefs: []string{"wx-001", "wx-002", "wx-003"},
				IsFinal:      true,
			},
			expected: true,
			message:  "PASS",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			v := NewValidator(NewRules(nil), session.New("s1"))
			passed, message := v.Validate(tc.output)
			assert.Equal(t, tc.expected, passed)
			assert.Equal(t, tc.message, message)
			if tc.output.IsFinal {
				assert.True(t, tc.output.ControlValidated)
			}
		})
	}
}

func TestValidateAccumulatesViolations(t *testing.T) {
	// With the control-validated flag cleared by hand after Validate set it,
	// a second validation with a disabled single rule still reports every
	// active violation in one message.
	v := NewValidator(NewRules(nil), session.New("s1"))
	output := &model.Output{Reasoning: "no evidence, final"}
	passed, message := v.Validate(output)
	assert.False(t, passed)
	assert.Contains(t, message, "missing evidence citations")
}

func TestCheckDuplicate(t *testing.T) {
	sess := session.New("s1")
	v := NewValidator(NewRules(nil), sess)

	action := &model.Action{
		Capability: "get_weather",
		Parameters: map[string]interface{}{"city": "Miami"},
	}
	dup, _ := v.CheckDuplicate(action)
	assert.False(t, dup)

	sess.StoreEvidence(action.EvidenceKey(), map[string]interface{}{"temp": 78})
	dup, message := v.CheckDuplicate(action)
	assert.True(t, dup)
	assert.Contains(t, message, "redundant")

	// Same capability with different parameters is not a duplicate.
	other := &model.Action{
		Capability: "get_weather",
		Parameters: map[string]interface{}{"city": "Atlanta"},
	}
	dup, _ = v.CheckDuplicate(other)
	assert.False(t, dup)

	// Disabled rule never rejects.
	config := DefaultConfig()
	config.AvoidRedundantCalls = false
	relaxed := NewValidator(NewRules(config), sess)
	dup, _ = relaxed.CheckDuplicate(action)
	assert.False(t, dup)
}

func TestRulesStateRoundTrip(t *testing.T) {
	rules := NewRules(nil)
	state := rules.State()
	assert.Equal(t, true, state["must_cite_stored_evidence"])

	state["must_cite_stored_evidence"] = false
	restored := NewRules(nil)
	restored.Restore(state)
	assert.NotContains(t, restored.Names(), "must_cite_stored_evidence")
	assert.Contains(t, restored.Names(), "single_final_action")
}

package loop

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/warden-ai/warden/model"
	"github.com/warden-ai/warden/policy"
	"github.com/warden-ai/warden/service/capability"
	"github.com/warden-ai/warden/service/suspension"
)

// scriptedOracle replays a fixed sequence of cognition steps.
type scriptedOracle struct {
	steps []*model.Output
	calls int
}

func (o *scriptedOracle) Reason(_ context.Context, _ string, _ model.Context) (*model.Output, error) {
	step := o.steps[len(o.steps)-1]
	if o.calls < len(o.steps) {
		step = o.steps[o.calls]
	}
	o.calls++
	return step.Clone(), nil
}

func weatherStep(city string) *model.Output {
	return &model.Output{
		Reasoning: "need the forecast for " + city,
		Action: &model.Action{
			Capability: "get_weather",
			Parameters: map[string]interface{}{"city": city},
		},
		EvidenceRefs: []string{"task"},
		Confidence:   0.9,
	}
}

func tripCapabilities(t *testing.T) *capability.Registry {
	t.Helper()
	registry := capability.New()
	registry.Register("get_weather", "city forecast", func(_ context.Context, params map[string]interface{}) (interface{}, error) {
		return map[string]interface{}{"city": params["city"], "forecast": "sunny"}, nil
	})
	registry.Register("send_email", "outbound mail", func(_ context.Context, params map[string]interface{}) (interface{}, error) {
		return fmt.Sprintf("sent to %v", params["recipient"]), nil
	})
	registry.Register("cancel_trip", "trip cancellation", func(_ context.Context, _ map[string]interface{}) (interface{}, error) {
		return "cancelled", nil
	})
	return registry
}

func TestRunWeatherScenarioAutoApproved(t *testing.T) {
	oracle := &scriptedOracle{steps: []*model.Output{
		weatherStep("San Francisco"),
		weatherStep("Miami"),
		weatherStep("Atlanta"),
		{
			Reasoning: "Miami has the best forecast, emailing the confirmation",
			Action: &model.Action{
				Capability: "send_email",
				Parameters: map[string]interface{}{"recipient": "test-scl@test.com", "destination": "Miami"},
			},
			EvidenceRefs: []string{"weather"},
			IsFinal:      true,
			Confidence:   0.92,
		},
	}}

	l := New(oracle,
		WithCapabilities(tripCapabilities(t)),
		WithDecisionSource(&suspension.AutoApprove{}),
	)
	report, err := l.Run(context.Background(), "plan a weekend trip")
	assert.NoError(t, err)
	assert.True(t, report.Completed())
	assert.Equal(t, 4, report.Summary.TotalLoops)
	// One intervention: the final high-risk send_email.
	assert.Equal(t, 1, report.Summary.Interventions)
	assert.Equal(t, 1, report.Stats.Approvals)
	assert.Equal(t, 1, report.Stats.Frozen)
	assert.Equal(t, 0, report.Summary.PolicyViolations)

	sess := l.Session()
	assert.True(t, sess.HasEvidence((&model.Action{
		Capability: "get_weather",
		Parameters: map[string]interface{}{"city": "Miami"},
	}).EvidenceKey()))
	result, _ := sess.Get("last_action_result")
	assert.Equal(t, "sent to test-scl@test.com", result)
}

func TestRunSuspendsAndResumes(t *testing.T) {
	ctx := context.Background()
	oracle := &scriptedOracle{steps: []*model.Output{
		{
			Reasoning: "forecast is bad everywhere, cancelling",
			Action: &model.Action{
				Capability: "cancel_trip",
				Parameters: map[string]interface{}{"booking": "bk-42"},
			},
			EvidenceRefs: []string{"weather"},
			IsFinal:      true,
			Confidence:   0.95,
		},
	}}

	l := New(oracle, WithCapabilities(tripCapabilities(t)))
	report, err := l.Run(ctx, "decide on the trip")
	assert.NoError(t, err)
	assert.True(t, report.Suspended())
	assert.NotEmpty(t, report.Summary.SnapshotID)
	assert.Equal(t, 1, report.Summary.TotalLoops)

	pending, err := l.Suspender().Pending(ctx)
	assert.NoError(t, err)
	assert.Len(t, pending, 1)
	assert.Equal(t, "cancel_trip", pending[0].PendingAction.Capability)

	resumed, err := l.Resume(ctx, report.Summary.SnapshotID, suspension.DecisionApprove)
	assert.NoError(t, err)
	assert.True(t, resumed.Completed())
	// The counter picks up where the snapshot left it.
	assert.Equal(t, 1, resumed.Summary.TotalLoops)
	assert.Equal(t, 1, resumed.Stats.Approvals)

	evidenceKey := (&model.Action{
		Capability: "cancel_trip",
		Parameters: map[string]interface{}{"booking": "bk-42"},
	}).EvidenceKey()
	assert.True(t, l.Session().HasEvidence(evidenceKey))
}

func TestResumeWithRejectionFeedsNextReasoning(t *testing.T) {
	ctx := context.Background()
	var sawRejection model.Context

	oracle := OracleFunc(func(_ context.Context, _ string, loopContext model.Context) (*model.Output, error) {
		if rejected, _ := loopContext["human_rejected"].(bool); rejected {
			sawRejection = loopContext
			return &model.Output{
				Reasoning:    "acknowledged the rejection, closing without sending",
				EvidenceRefs: []string{"human_feedback"},
				IsFinal:      true,
				Confidence:   0.9,
			}, nil
		}
		return &model.Output{
			Reasoning: "emailing the itinerary",
			Action: &model.Action{
				Capability: "send_email",
				Parameters: map[string]interface{}{"recipient": "wrong@test.com"},
			},
			EvidenceRefs: []string{"task"},
			IsFinal:      true,
			Confidence:   0.9,
		}, nil
	})

	l := New(oracle, WithCapabilities(tripCapabilities(t)))
	report, err := l.Run(ctx, "send itinerary")
	assert.NoError(t, err)
	assert.True(t, report.Suspended())

	resumed, err := l.Resume(ctx, report.Summary.SnapshotID, suspension.DecisionReject,
		suspension.WithFeedback("wrong recipient"))
	assert.NoError(t, err)
	assert.True(t, resumed.Completed())
	assert.Equal(t, 1, resumed.Stats.Rejections)

	assert.NotNil(t, sawRejection)
	assert.Equal(t, "wrong recipient", sawRejection["rejection_reason"])
	assert.NotNil(t, sawRejection["previous_proposal"])
	assert.NotEmpty(t, sawRejection["retry_guidance"])

	var kinds []suspension.EventKind
	for _, event := range resumed.AuditLog {
		kinds = append(kinds, event.Kind)
	}
	assert.Contains(t, kinds, suspension.EventRejected)
}

func TestResumeWithModification(t *testing.T) {
	ctx := context.Background()
	oracle := &scriptedOracle{steps: []*model.Output{
		{
			Reasoning: "emailing the itinerary",
			Action: &model.Action{
				Capability: "send_email",
				Parameters: map[string]interface{}{"recipient": "wrong@test.com"},
			},
			EvidenceRefs: []string{"task"},
			IsFinal:      true,
			Confidence:   0.9,
		},
	}}

	l := New(oracle, WithCapabilities(tripCapabilities(t)))
	report, err := l.Run(ctx, "send itinerary")
	assert.NoError(t, err)
	assert.True(t, report.Suspended())

	resumed, err := l.Resume(ctx, report.Summary.SnapshotID, suspension.DecisionModify,
		suspension.WithModifiedAction(&model.Action{
			Capability: "send_email",
			Parameters: map[string]interface{}{"recipient": "right@test.com"},
		}))
	assert.NoError(t, err)
	assert.True(t, resumed.Completed())
	assert.Equal(t, 1, resumed.Stats.Modifications)

	result, _ := l.Session().Get("last_action_result")
	assert.Equal(t, "sent to right@test.com", result)
}

func TestDuplicateCallRejected(t *testing.T) {
	calls := 0
	oracle := OracleFunc(func(_ context.Context, _ string, loopContext model.Context) (*model.Output, error) {
		calls++
		if _, rejected := loopContext["last_rejection"]; rejected {
			return &model.Output{
				Reasoning:    "forecast already cached, answering from evidence",
				EvidenceRefs: []string{"weather"},
				IsFinal:      true,
				Confidence:   0.9,
			}, nil
		}
		return weatherStep("Miami"), nil
	})

	l := New(oracle, WithCapabilities(tripCapabilities(t)))
	report, err := l.Run(context.Background(), "check Miami weather")
	assert.NoError(t, err)
	assert.True(t, report.Completed())
	// First call executes, second is caught by the evidence cache, third
	// answers from stored evidence.
	assert.Equal(t, 3, calls)
	assert.Equal(t, 1, report.Summary.PolicyViolations)
}

func TestValidationFailureBouncesToReasoning(t *testing.T) {
	oracle := OracleFunc(func(_ context.Context, _ string, loopContext model.Context) (*model.Output, error) {
		if rejection, ok := loopContext["last_rejection"].(string); ok {
			return &model.Output{
				Reasoning:    "corrected: " + rejection,
				EvidenceRefs: []string{"task"},
				IsFinal:      true,
				Confidence:   0.9,
			}, nil
		}
		// No citations: must fail governance and bounce.
		return &model.Output{Reasoning: "unsupported claim", IsFinal: true, Confidence: 0.9}, nil
	})

	l := New(oracle, WithCapabilities(tripCapabilities(t)))
	report, err := l.Run(context.Background(), "answer with evidence")
	assert.NoError(t, err)
	assert.True(t, report.Completed())
	assert.Equal(t, 2, report.Summary.TotalLoops)
	assert.Equal(t, 1, report.Summary.PolicyViolations)
}

func TestLoopExhaustion(t *testing.T) {
	calls := 0
	oracle := OracleFunc(func(_ context.Context, _ string, _ model.Context) (*model.Output, error) {
		calls++
		return weatherStep(fmt.Sprintf("city-%d", calls)), nil
	})

	l := New(oracle, WithCapabilities(tripCapabilities(t)), WithMaxLoops(3))
	report, err := l.Run(context.Background(), "never finishes")
	assert.NoError(t, err)
	assert.Equal(t, OutcomeLoopExhausted, report.Summary.Outcome)
	assert.Equal(t, 3, report.Summary.TotalLoops)
	assert.False(t, report.Completed())
	assert.False(t, report.Suspended())
}

func TestCapabilityFailureRecordedAndLoopContinues(t *testing.T) {
	registry := capability.New()
	registry.Register("flaky", "fails once", func(_ context.Context, params map[string]interface{}) (interface{}, error) {
		if attempt, _ := params["attempt"].(int); attempt == 1 {
			return nil, fmt.Errorf("upstream unavailable")
		}
		return "ok", nil
	})

	attempt := 0
	oracle := OracleFunc(func(_ context.Context, _ string, loopContext model.Context) (*model.Output, error) {
		if result, ok := loopContext["last_action_result"].(string); ok && result == "ok" {
			return &model.Output{Reasoning: "done", EvidenceRefs: []string{"flaky"}, IsFinal: true, Confidence: 0.9}, nil
		}
		attempt++
		return &model.Output{
			Reasoning:    "calling flaky",
			Action:       &model.Action{Capability: "flaky", Parameters: map[string]interface{}{"attempt": attempt}},
			EvidenceRefs: []string{"task"},
			Confidence:   0.9,
		}, nil
	})

	l := New(oracle, WithCapabilities(registry))
	report, err := l.Run(context.Background(), "retry on failure")
	assert.NoError(t, err)
	assert.True(t, report.Completed())
	assert.Equal(t, 2, attempt)
}

func TestUnregisteredCapabilityRecorded(t *testing.T) {
	oracle := OracleFunc(func(_ context.Context, _ string, loopContext model.Context) (*model.Output, error) {
		if result, ok := loopContext["last_action_result"].(string); ok {
			return &model.Output{Reasoning: "gave up: " + result, EvidenceRefs: []string{"task"}, IsFinal: true, Confidence: 0.9}, nil
		}
		return &model.Output{
			Reasoning:    "trying an unknown capability",
			Action:       &model.Action{Capability: "teleport", Parameters: map[string]interface{}{}},
			EvidenceRefs: []string{"task"},
			Confidence:   0.9,
		}, nil
	})

	l := New(oracle, WithCapabilities(capability.New()))
	report, err := l.Run(context.Background(), "unknown capability")
	assert.NoError(t, err)
	assert.True(t, report.Completed())
	assert.Equal(t, 2, report.Summary.TotalLoops)
}

func TestTracesCarryStateAndValidationResult(t *testing.T) {
	oracle := &scriptedOracle{steps: []*model.Output{
		weatherStep("Miami"),
		{
			Reasoning:    "forecast stored, done",
			EvidenceRefs: []string{"weather"},
			IsFinal:      true,
			Confidence:   0.9,
		},
	}}

	l := New(oracle, WithCapabilities(tripCapabilities(t)))
	report, err := l.Run(context.Background(), "check the Miami forecast")
	assert.NoError(t, err)
	assert.True(t, report.Completed())

	var reasoning, validating, executing *Trace
	for _, trace := range report.Traces {
		switch trace.Stage {
		case StageReasoning:
			if reasoning == nil {
				reasoning = trace
			}
		case StageValidating:
			if validating == nil {
				validating = trace
			}
		case StageExecuting:
			executing = trace
		}
	}

	// The reasoning trace records the exact context handed to the oracle.
	assert.NotNil(t, reasoning)
	assert.Equal(t, "check the Miami forecast", reasoning.InputState["task"])

	// Validation outcome is structured, not buried in free text.
	assert.NotNil(t, validating)
	assert.NotNil(t, validating.ValidationResult)
	assert.True(t, *validating.ValidationResult)

	// The executing trace captures the store state after the write-back.
	assert.NotNil(t, executing)
	assert.Contains(t, executing.OutputState, "stored_values")
	assert.Equal(t, []string{(&model.Action{
		Capability: "get_weather",
		Parameters: map[string]interface{}{"city": "Miami"},
	}).EvidenceKey()}, executing.EvidenceRefs)
}

func TestFailedValidationTraceCarriesResult(t *testing.T) {
	oracle := &scriptedOracle{steps: []*model.Output{
		{Reasoning: "answering from memory", Confidence: 0.9, IsFinal: true},
		{Reasoning: "citing the task", EvidenceRefs: []string{"task"}, IsFinal: true, Confidence: 0.9},
	}}

	l := New(oracle, WithCapabilities(tripCapabilities(t)))
	report, err := l.Run(context.Background(), "answer with citations")
	assert.NoError(t, err)
	assert.True(t, report.Completed())

	var failed *Trace
	for _, trace := range report.Traces {
		if trace.Stage == StageValidating && trace.ValidationResult != nil && !*trace.ValidationResult {
			failed = trace
		}
	}
	assert.NotNil(t, failed)
	assert.Contains(t, failed.Detail, "missing evidence citations")
}

func TestNotifyProceedsWithoutSuspension(t *testing.T) {
	oracle := &scriptedOracle{steps: []*model.Output{
		{
			Reasoning: "single-step lookup, flagging the long-running session",
			Action: &model.Action{
				Capability: "get_weather",
				Parameters: map[string]interface{}{"city": "Miami"},
			},
			EvidenceRefs: []string{"task"},
			IsFinal:      true,
			Confidence:   0.9,
		},
	}}

	// ConfirmAfterLoops=1 makes the very first loop an advisory notify;
	// nothing in this policy escalates to confirm or approve.
	l := New(oracle,
		WithCapabilities(tripCapabilities(t)),
		WithPolicy(policy.New(&policy.Config{ConfirmAfterLoops: 1})),
	)
	report, err := l.Run(context.Background(), "quick forecast check")
	assert.NoError(t, err)

	// Advisory: the run completes without freezing anything.
	assert.True(t, report.Completed())
	assert.Empty(t, report.Summary.SnapshotID)
	assert.Equal(t, 1, report.Summary.Interventions)
	assert.Equal(t, 0, report.Stats.Frozen)

	var notified *Trace
	for _, trace := range report.Traces {
		if trace.Stage == StageCheckingIntervention {
			notified = trace
		}
	}
	assert.NotNil(t, notified)
	assert.Equal(t, model.LevelNotify, notified.Level)
	assert.Equal(t, "extended loop count: 1", notified.Reason)
}

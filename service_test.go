package warden

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/warden-ai/warden/model"
	"github.com/warden-ai/warden/service/capability"
	snapshotfs "github.com/warden-ai/warden/service/dao/snapshot/fs"
	"github.com/warden-ai/warden/service/suspension"
)

func tripOracle() *tripPlanner {
	return &tripPlanner{cities: []string{"San Francisco", "Miami", "Atlanta"}}
}

// tripPlanner is a deterministic oracle replaying the weather-trip scenario:
// look up each city once, then email the pick.
type tripPlanner struct {
	cities []string
	step   int
}

func (p *tripPlanner) Reason(_ context.Context, _ string, loopContext model.Context) (*model.Output, error) {
	if rejected, _ := loopContext["human_rejected"].(bool); rejected {
		return &model.Output{
			Reasoning:    "rejection acknowledged, no email sent",
			EvidenceRefs: []string{"human_feedback"},
			IsFinal:      true,
			Confidence:   0.9,
		}, nil
	}
	if p.step < len(p.cities) {
		city := p.cities[p.step]
		p.step++
		return &model.Output{
			Reasoning: "collecting the forecast for " + city,
			Action: &model.Action{
				Capability: "get_weather",
				Parameters: map[string]interface{}{"city": city},
			},
			EvidenceRefs: []string{"task"},
			Confidence:   0.9,
		}, nil
	}
	return &model.Output{
		Reasoning: "Miami wins, emailing the confirmation",
		Action: &model.Action{
			Capability: "send_email",
			Parameters: map[string]interface{}{"recipient": "test-scl@test.com", "destination": "Miami"},
		},
		EvidenceRefs: []string{"weather"},
		IsFinal:      true,
		Confidence:   0.92,
	}, nil
}

func tripRegistry() *capability.Registry {
	registry := capability.New()
	registry.Register("get_weather", "city forecast", func(_ context.Context, params map[string]interface{}) (interface{}, error) {
		return fmt.Sprintf("%v: sunny, 75F", params["city"]), nil
	})
	registry.Register("send_email", "outbound mail", func(_ context.Context, params map[string]interface{}) (interface{}, error) {
		return fmt.Sprintf("sent to %v", params["recipient"]), nil
	})
	return registry
}

func TestServiceRunAutoApproved(t *testing.T) {
	srv := New(tripOracle(),
		WithCapabilities(tripRegistry()),
		WithDecisionSource(&suspension.AutoApprove{Rationale: "trusted scenario"}),
	)
	report, err := srv.Runtime().Run(context.Background(), "plan a weekend trip")
	assert.NoError(t, err)
	assert.True(t, report.Completed())
	assert.Equal(t, 4, report.Summary.TotalLoops)
	assert.Equal(t, 1, report.Summary.Approvals)
}

func TestServiceSuspendAndResume(t *testing.T) {
	ctx := context.Background()
	srv := New(tripOracle(), WithCapabilities(tripRegistry()))

	rt := srv.Runtime()
	report, err := rt.Run(ctx, "plan a weekend trip")
	assert.NoError(t, err)
	assert.True(t, report.Suspended())

	pending, err := rt.Pending(ctx)
	assert.NoError(t, err)
	assert.Len(t, pending, 1)
	assert.Equal(t, "send_email", pending[0].PendingAction.Capability)

	resumed, err := rt.Resume(ctx, report.Summary.SnapshotID, suspension.DecisionReject,
		suspension.WithFeedback("wrong recipient"))
	assert.NoError(t, err)
	assert.True(t, resumed.Completed())
	assert.Equal(t, 1, resumed.Summary.Rejections)
}

func TestCrossProcessResumption(t *testing.T) {
	ctx := context.Background()
	store, err := snapshotfs.New("mem://localhost/warden/cross-process")
	assert.NoError(t, err)

	// First "process" runs until suspension.
	first := New(tripOracle(),
		WithCapabilities(tripRegistry()),
		WithSnapshotDAO(store),
	)
	report, err := first.Runtime().Run(ctx, "plan a weekend trip")
	assert.NoError(t, err)
	assert.True(t, report.Suspended())

	// Second "process" shares only the snapshot store; the oracle re-created
	// here never got to replay the earlier steps.
	second := New(tripOracle(),
		WithCapabilities(tripRegistry()),
		WithSnapshotDAO(store),
	)
	rt := second.Runtime()
	resumed, err := rt.Resume(ctx, report.Summary.SnapshotID, suspension.DecisionApprove)
	assert.NoError(t, err)
	assert.True(t, resumed.Completed())
	// Counter and evidence come back verbatim from the snapshot.
	assert.Equal(t, 4, resumed.Summary.TotalLoops)
	result, _ := rt.Session().Get("last_action_result")
	assert.Equal(t, "sent to test-scl@test.com", result)
}

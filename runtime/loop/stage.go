package loop

import (
	"time"

	"github.com/warden-ai/warden/model"
)

// Stage names a control-loop state.
type Stage string

const (
	StageRetrieving           Stage = "retrieving"
	StageReasoning            Stage = "reasoning"
	StageValidating           Stage = "validating"
	StageCheckingIntervention Stage = "checking_intervention"
	StageExecuting            Stage = "executing"
	StageCompleted            Stage = "completed"
	StageSuspended            Stage = "suspended"
	StageLoopExhausted        Stage = "loop_exhausted"
)

// Trace records one stage transition. Traces are append-only; the full
// sequence reconstructs the run including every validation bounce and
// intervention.
type Trace struct {
	Stage     Stage       `json:"stage"`
	CreatedAt time.Time   `json:"createdAt"`
	Loop      int         `json:"loop"`
	Detail    string      `json:"detail,omitempty"`
	Level     model.Level `json:"level,omitempty"`
	Reason    string      `json:"reason,omitempty"`
	// InputState is the ambient context the stage consumed.
	InputState map[string]interface{} `json:"inputState,omitempty"`
	// OutputState is the working-store summary after the stage ran.
	OutputState map[string]interface{} `json:"outputState,omitempty"`
	// ValidationResult carries the validator verdict on validating traces;
	// nil on every other stage.
	ValidationResult *bool `json:"validationResult,omitempty"`
	// EvidenceRefs holds the citations the cognition carried at this point.
	EvidenceRefs []string `json:"evidenceRefs,omitempty"`
	// SnapshotID links a suspension trace to its frozen snapshot.
	SnapshotID string `json:"snapshotId,omitempty"`
}

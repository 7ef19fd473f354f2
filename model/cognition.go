package model

import "github.com/warden-ai/warden/internal/deepcopy"

// Output represents the result of a single reasoning cycle.  It is produced
// once per loop iteration and never mutated afterwards, with one exception:
// the Validator sets ControlValidated before rule evaluation when the output
// carries a final action.
type Output struct {
	Reasoning        string   `json:"reasoning"`
	Action           *Action  `json:"proposedAction,omitempty"`
	EvidenceRefs     []string `json:"evidenceRefs,omitempty"`
	IsFinal          bool     `json:"isFinalAction"`
	Confidence       float64  `json:"confidence"`
	ControlValidated bool     `json:"controlValidated,omitempty"`
}

// Clone returns a deep copy of the output.
func (o *Output) Clone() *Output {
	if o == nil {
		return nil
	}
	return &Output{
		Reasoning:        o.Reasoning,
		Action:           o.Action.Clone(),
		EvidenceRefs:     append([]string(nil), o.EvidenceRefs...),
		IsFinal:          o.IsFinal,
		Confidence:       o.Confidence,
		ControlValidated: o.ControlValidated,
	}
}

// Context is the ambient context passed between loop stages and into the
// reasoning oracle.  It is a plain map so that arbitrary collaborator data can
// travel with the loop and survive snapshot serialization.
type Context = map[string]interface{}

// CloneContext deep-copies an ambient context.
func CloneContext(ctx Context) Context {
	return deepcopy.Map(ctx)
}

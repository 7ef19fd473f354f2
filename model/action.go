package model

import (
	"encoding/json"
	"fmt"

	"github.com/warden-ai/warden/internal/deepcopy"
)

// Action represents a single capability invocation proposed by the reasoning
// oracle.  Once proposed it is treated as immutable; a human decision may
// replace it wholesale but never mutates it in place.
type Action struct {
	Capability string                 `json:"capability"`
	Parameters map[string]interface{} `json:"parameters,omitempty"`
}

// Clone returns a deep copy so that stored snapshots never alias live state.
func (a *Action) Clone() *Action {
	if a == nil {
		return nil
	}
	return &Action{
		Capability: a.Capability,
		Parameters: deepcopy.Map(a.Parameters),
	}
}

// EvidenceKey derives the deterministic duplicate-call key for this action.
// Two actions with the same capability and canonically equal parameters yield
// the same key - json.Marshal sorts map keys, which gives us the canonical
// form for free.
func (a *Action) EvidenceKey() string {
	if a == nil {
		return ""
	}
	data, err := json.Marshal(a.Parameters)
	if err != nil {
		data = []byte(fmt.Sprintf("%v", a.Parameters))
	}
	return fmt.Sprintf("evidence_%s_%s", a.Capability, data)
}

// IsEmpty reports whether the action carries no capability name, i.e. the
// oracle proposed reasoning-only output.
func (a *Action) IsEmpty() bool {
	return a == nil || a.Capability == ""
}

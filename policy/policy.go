package policy

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/warden-ai/warden/model"
)

// Rule is a registered per-capability strategy.  When evaluation reaches the
// custom-rule step for a capability that has one, the rule's verdict replaces
// the default outcome.
type Rule interface {
	Decide(output *model.Output, ctx model.Context) (model.Level, string)
}

// RuleFunc adapts a plain function to the Rule interface.
type RuleFunc func(output *model.Output, ctx model.Context) (model.Level, string)

// Decide implements Rule.
func (f RuleFunc) Decide(output *model.Output, ctx model.Context) (model.Level, string) {
	return f(output, ctx)
}

// Policy evaluates intervention levels for proposed actions.  A nil *Policy
// means "never intervene" and is the zero-cost default.
type Policy struct {
	config *Config
	mu     sync.RWMutex
	custom map[string]Rule
}

// New creates a policy with the supplied configuration; a nil config falls
// back to DefaultConfig.
func New(config *Config) *Policy {
	if config == nil {
		config = DefaultConfig()
	}
	return &Policy{
		config: config,
		custom: make(map[string]Rule),
	}
}

// Config returns the active configuration.
func (p *Policy) Config() *Config {
	if p == nil {
		return nil
	}
	return p.config
}

// RegisterRule attaches a custom per-capability rule.
func (p *Policy) RegisterRule(capability string, rule Rule) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.custom[strings.ToLower(capability)] = rule
}

func (p *Policy) customRule(capability string) Rule {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.custom[strings.ToLower(capability)]
}

// Evaluate maps (cognition output, ambient context, loop counter) to an
// intervention level and a human-readable reason.  First match wins; the
// order below is the contract:
//
//  1. capability in the high-risk set        -> approve
//  2. capability in the always-confirm set   -> confirm
//  3. final action with ConfirmOnFinal       -> confirm
//  4. loop counter at/past ConfirmAfterLoops -> notify
//  5. confidence below the configured floor  -> confirm
//  6. no evidence refs with NotifyOnMissingEvidence -> notify
//  7. registered custom rule for capability  -> its own verdict
//  8. default                                -> none
func (p *Policy) Evaluate(output *model.Output, ctx model.Context, loopCounter int) (model.Level, string) {
	if p == nil || output == nil {
		return model.LevelNone, ""
	}
	capability := ""
	if output.Action != nil {
		capability = output.Action.Capability
	}
	cfg := p.config

	if cfg.isHighRisk(capability) {
		return model.LevelApprove, fmt.Sprintf("high-risk capability: %s", capability)
	}
	if cfg.isAlwaysConfirm(capability) {
		return model.LevelConfirm, fmt.Sprintf("confirmation required for: %s", capability)
	}
	if cfg.ConfirmOnFinal && output.IsFinal {
		return model.LevelConfirm, "final action requires confirmation"
	}
	if cfg.ConfirmAfterLoops > 0 && loopCounter >= cfg.ConfirmAfterLoops {
		return model.LevelNotify, fmt.Sprintf("extended loop count: %d", loopCounter)
	}
	// A zero confidence means the oracle did not report one.
	if output.Confidence > 0 && output.Confidence < cfg.ConfidenceFloor {
		return model.LevelConfirm, fmt.Sprintf("low confidence: %.2f", output.Confidence)
	}
	if cfg.NotifyOnMissingEvidence && len(output.EvidenceRefs) == 0 {
		return model.LevelNotify, "missing evidence citations"
	}
	if rule := p.customRule(capability); rule != nil {
		return rule.Decide(output, ctx)
	}
	return model.LevelNone, ""
}

// ---------------------------------------------------------------------------
// Context helpers
// ---------------------------------------------------------------------------

type ctxKeyT struct{}

var ctxKey ctxKeyT

// WithPolicy embeds a policy in ctx so that a caller can attach a per-run
// policy without touching engine wiring.
func WithPolicy(ctx context.Context, p *Policy) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxKey, p)
}

// FromContext extracts the embedded policy, or nil.
func FromContext(ctx context.Context) *Policy {
	if ctx == nil {
		return nil
	}
	if v, ok := ctx.Value(ctxKey).(*Policy); ok {
		return v
	}
	return nil
}

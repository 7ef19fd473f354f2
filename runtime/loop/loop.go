// Package loop drives the cognitive control loop: retrieve once, then cycle
// reasoning, validation, intervention checking and execution until the oracle
// produces a final action, the loop ceiling is hit, or the policy suspends the
// run for a human decision.
package loop

import (
	"context"
	"fmt"

	"github.com/warden-ai/warden/governance"
	"github.com/warden-ai/warden/internal/clock"
	"github.com/warden-ai/warden/model"
	"github.com/warden-ai/warden/policy"
	"github.com/warden-ai/warden/runtime/session"
	"github.com/warden-ai/warden/service/capability"
	"github.com/warden-ai/warden/service/suspension"
	"github.com/warden-ai/warden/service/suspension/memory"
	"github.com/warden-ai/warden/tracing"
)

// Oracle produces one cognition step for the current task and context.
type Oracle interface {
	Reason(ctx context.Context, task string, loopContext model.Context) (*model.Output, error)
}

// OracleFunc adapts a plain function to the Oracle interface.
type OracleFunc func(ctx context.Context, task string, loopContext model.Context) (*model.Output, error)

func (f OracleFunc) Reason(ctx context.Context, task string, loopContext model.Context) (*model.Output, error) {
	return f(ctx, task, loopContext)
}

// Retriever runs once before the first reasoning cycle, typically to decompose
// the task and seed the working store.
type Retriever func(ctx context.Context, task string, sess *session.Session) error

const defaultMaxLoops = 10

// Loop is the control-loop state machine for a single task. It is not safe
// for concurrent use; distinct tasks use distinct Loop instances.
type Loop struct {
	oracle        Oracle
	session       *session.Session
	policy        *policy.Policy
	validator     *governance.Validator
	suspender     suspension.Service
	capabilities  *capability.Registry
	decisions     suspension.DecisionSource
	retriever     Retriever
	maxLoops      int
	task          string
	loopContext   model.Context
	counter       int
	traces        []*Trace
	violations    int
	interventions int
}

// Option customises a Loop.
type Option func(*Loop)

// WithSession sets the working store.
func WithSession(sess *session.Session) Option {
	return func(l *Loop) { l.session = sess }
}

// WithPolicy sets the intervention policy.
func WithPolicy(p *policy.Policy) Option {
	return func(l *Loop) { l.policy = p }
}

// WithValidator sets the governance validator.
func WithValidator(v *governance.Validator) Option {
	return func(l *Loop) { l.validator = v }
}

// WithSuspension sets the suspension manager.
func WithSuspension(svc suspension.Service) Option {
	return func(l *Loop) { l.suspender = svc }
}

// WithCapabilities sets the capability registry.
func WithCapabilities(registry *capability.Registry) Option {
	return func(l *Loop) { l.capabilities = registry }
}

// WithDecisionSource attaches a synchronous decision source; without one any
// confirm or approve level suspends the run.
func WithDecisionSource(source suspension.DecisionSource) Option {
	return func(l *Loop) { l.decisions = source }
}

// WithRetriever replaces the default retrieval stage.
func WithRetriever(fn Retriever) Option {
	return func(l *Loop) { l.retriever = fn }
}

// WithMaxLoops sets the reasoning-cycle ceiling.
func WithMaxLoops(n int) Option {
	return func(l *Loop) {
		if n > 0 {
			l.maxLoops = n
		}
	}
}

// New creates a control loop around the given oracle. Missing collaborators
// default to fresh in-memory implementations.
func New(oracle Oracle, options ...Option) *Loop {
	l := &Loop{
		oracle:      oracle,
		maxLoops:    defaultMaxLoops,
		loopContext: model.Context{},
	}
	for _, option := range options {
		option(l)
	}
	if l.session == nil {
		l.session = session.New("")
	}
	if l.policy == nil {
		l.policy = policy.New(nil)
	}
	if l.validator == nil {
		l.validator = governance.NewValidator(nil, l.session)
	}
	if l.suspender == nil {
		l.suspender = memory.New()
	}
	if l.capabilities == nil {
		l.capabilities = capability.New()
	}
	if l.retriever == nil {
		l.retriever = func(_ context.Context, task string, sess *session.Session) error {
			sess.Set("task", task, "")
			return nil
		}
	}
	return l
}

// Session returns the working store.
func (l *Loop) Session() *session.Session {
	return l.session
}

// Suspender returns the suspension manager so decision front-ends can share it.
func (l *Loop) Suspender() suspension.Service {
	return l.suspender
}

// Run executes the loop for the given task until a terminal outcome.
func (l *Loop) Run(ctx context.Context, task string) (*Report, error) {
	l.task = task
	l.loopContext["task"] = task

	ctx, span := tracing.StartSpan(ctx, "loop.retrieving", "INTERNAL")
	err := l.retriever(ctx, task, l.session)
	tracing.EndSpan(span, err)
	if err != nil {
		return nil, fmt.Errorf("retrieval failed: %w", err)
	}
	l.trace(&Trace{Stage: StageRetrieving, Detail: task})

	return l.cycle(ctx)
}

// Resume records the human decision for a frozen snapshot, restores the
// working store, evidence cache, governance rule state and loop counter from
// it, and continues the loop. It works identically whether the snapshot was
// frozen by this instance or loaded from a durable store in another process.
func (l *Loop) Resume(ctx context.Context, snapshotID string, decision suspension.Decision, options ...suspension.DecisionOption) (*Report, error) {
	outcome, err := l.suspender.RecordDecision(ctx, snapshotID, decision, options...)
	if err != nil {
		return nil, err
	}
	snapshot, err := l.suspender.Thaw(ctx, snapshotID)
	if err != nil {
		return nil, err
	}

	l.session.Restore(snapshot.StoreState)
	l.session.RestoreEvidence(snapshot.EvidenceCache)
	l.validator.Rules().Restore(snapshot.RuleState)
	l.counter = snapshot.LoopCounter
	l.loopContext = model.CloneContext(snapshot.Context)
	if task, ok := l.loopContext["task"].(string); ok {
		l.task = task
	}

	done, err := l.applyOutcome(ctx, snapshot, outcome)
	if err != nil {
		return nil, err
	}
	if done {
		return l.report(ctx, OutcomeCompleted, ""), nil
	}
	return l.cycle(ctx)
}

// cycle runs reasoning rounds until a terminal outcome.
func (l *Loop) cycle(ctx context.Context) (*Report, error) {
	for l.counter < l.maxLoops {
		l.counter++

		output, err := l.reason(ctx)
		if err != nil {
			return nil, err
		}

		if !l.validate(ctx, output) {
			continue
		}

		action := output.Action
		if action == nil || action.IsEmpty() {
			if output.IsFinal {
				l.trace(&Trace{Stage: StageCompleted, Detail: output.Reasoning})
				return l.report(ctx, OutcomeCompleted, ""), nil
			}
			// A reasoning-only round; nothing to execute.
			continue
		}

		if dup, message := l.validator.CheckDuplicate(action); dup {
			l.violations++
			l.loopContext["last_rejection"] = message
			failed := false
			l.trace(&Trace{Stage: StageValidating, Detail: message, ValidationResult: &failed})
			continue
		}

		proceed, report, err := l.checkIntervention(ctx, output)
		if err != nil {
			return nil, err
		}
		if report != nil {
			return report, nil
		}
		if !proceed {
			continue
		}

		l.execute(ctx, action)
		if output.IsFinal {
			l.trace(&Trace{Stage: StageCompleted, Detail: output.Reasoning})
			return l.report(ctx, OutcomeCompleted, ""), nil
		}
	}

	l.trace(&Trace{Stage: StageLoopExhausted, Detail: fmt.Sprintf("reached %d loops", l.maxLoops)})
	return l.report(ctx, OutcomeLoopExhausted, ""), nil
}

func (l *Loop) reason(ctx context.Context) (*model.Output, error) {
	ctx, span := tracing.StartSpan(ctx, "loop.reasoning", "INTERNAL")
	input := model.CloneContext(l.loopContext)
	output, err := l.oracle.Reason(ctx, l.task, input)
	tracing.EndSpan(span, err)
	if err != nil {
		return nil, fmt.Errorf("reasoning failed at loop %d: %w", l.counter, err)
	}
	l.trace(&Trace{
		Stage:        StageReasoning,
		Detail:       output.Reasoning,
		InputState:   input,
		EvidenceRefs: output.EvidenceRefs,
	})
	// A rejection only feeds the reasoning round that follows it.
	delete(l.loopContext, "last_rejection")
	return output, nil
}

// validate bounces the loop back to reasoning on failure, carrying the
// violation message so the next round can correct course.
func (l *Loop) validate(ctx context.Context, output *model.Output) bool {
	_, span := tracing.StartSpan(ctx, "loop.validating", "INTERNAL")
	ok, message := l.validator.Validate(output)
	tracing.EndSpan(span, nil)
	result := ok
	l.trace(&Trace{Stage: StageValidating, Detail: message, ValidationResult: &result})
	if !ok {
		l.violations++
		l.loopContext["last_rejection"] = message
	}
	return ok
}

// checkIntervention evaluates the policy. It returns proceed=true when the
// action may execute now, a non-nil report when the run suspends, and
// proceed=false to re-enter reasoning (block level, or a synchronous human
// rejection).
func (l *Loop) checkIntervention(ctx context.Context, output *model.Output) (bool, *Report, error) {
	active := l.policy
	if p := policy.FromContext(ctx); p != nil {
		active = p
	}

	_, span := tracing.StartSpan(ctx, "loop.checking_intervention", "INTERNAL")
	level, reason := active.Evaluate(output, l.loopContext, l.counter)
	tracing.EndSpan(span, nil)
	l.trace(&Trace{Stage: StageCheckingIntervention, Level: level, Reason: reason})

	switch {
	case level.IsNone():
		return true, nil, nil
	case level == model.LevelNotify:
		// Notification does not gate execution and freezes nothing, so the
		// loop trace is the record; no audit event is written.
		l.interventions++
		return true, nil, nil
	case level == model.LevelBlock:
		l.interventions++
		message := fmt.Sprintf("REJECTED: blocked by policy (%s)", reason)
		l.loopContext["last_rejection"] = message
		l.trace(&Trace{Stage: StageValidating, Detail: message})
		return false, nil, nil
	}

	// confirm or approve: freeze the whole cognitive state first so the run
	// survives the wait regardless of how the decision arrives.
	l.interventions++
	snapshot, err := l.suspender.Freeze(ctx, &suspension.FreezeInput{
		LoopCounter:   l.counter,
		Output:        output,
		StoreState:    l.session.Snapshot(),
		EvidenceCache: l.session.EvidenceSnapshot(),
		Context:       model.CloneContext(l.loopContext),
		RuleState:     l.validator.Rules().State(),
		Level:         level,
		Reason:        reason,
	})
	if err != nil {
		return false, nil, fmt.Errorf("freeze failed: %w", err)
	}
	request, err := l.suspender.RequestApproval(ctx, snapshot)
	if err != nil {
		return false, nil, fmt.Errorf("approval request failed: %w", err)
	}
	l.trace(&Trace{Stage: StageSuspended, Level: level, Reason: reason, SnapshotID: snapshot.ID})

	if l.decisions != nil {
		if input, ok := l.decisions.Decide(ctx, request); ok && input != nil {
			outcome, err := l.suspender.RecordDecision(ctx, snapshot.ID, input.Decision, decisionOptions(input)...)
			if err != nil {
				return false, nil, err
			}
			done, err := l.applyOutcome(ctx, snapshot, outcome)
			if err != nil {
				return false, nil, err
			}
			if done {
				return false, l.report(ctx, OutcomeCompleted, ""), nil
			}
			return false, nil, nil
		}
	}
	return false, l.report(ctx, OutcomeSuspended, snapshot.ID), nil
}

// applyOutcome follows a recorded decision's continuation. done is true when
// the continuation executed a final action.
func (l *Loop) applyOutcome(ctx context.Context, snapshot *suspension.Snapshot, outcome *suspension.Outcome) (bool, error) {
	next := outcome.Next
	switch next.Kind {
	case suspension.NextExecute:
		l.execute(ctx, next.Action)
		if snapshot.Output != nil && snapshot.Output.IsFinal {
			l.trace(&Trace{Stage: StageCompleted, Detail: snapshot.Output.Reasoning})
			return true, nil
		}
		return false, nil
	case suspension.NextReason:
		reason := outcome.Feedback
		if reason == "" {
			reason = "rejected by human"
		}
		cycle := l.suspender.RejectionCycle(snapshot, reason)
		for key, value := range cycle.ContextPatch {
			l.loopContext[key] = value
		}
		return false, nil
	}
	return false, fmt.Errorf("unsupported continuation: %s", next.Kind)
}

// execute dispatches the action; evidence from a successful call is written
// into the cache under the action's deterministic key. Failures are recorded
// as the last action result and the loop continues.
func (l *Loop) execute(ctx context.Context, action *model.Action) {
	if action.IsEmpty() {
		message := "error: no action to execute"
		l.loopContext["last_action_result"] = message
		l.trace(&Trace{Stage: StageExecuting, Detail: message})
		return
	}
	ctx, span := tracing.StartSpan(ctx, "loop.executing", "INTERNAL")
	result, err := l.capabilities.Execute(ctx, action.Capability, action.Parameters)
	tracing.EndSpan(span, err)
	if err != nil {
		message := fmt.Sprintf("error: %v", err)
		l.loopContext["last_action_result"] = message
		l.trace(&Trace{Stage: StageExecuting, Detail: message})
		return
	}
	key := action.EvidenceKey()
	l.session.StoreEvidence(key, result)
	l.session.Set("last_action_result", result, key)
	l.loopContext["last_action_result"] = result
	l.trace(&Trace{
		Stage:        StageExecuting,
		Detail:       action.Capability,
		OutputState:  l.session.Summary(),
		EvidenceRefs: []string{key},
	})
}

func (l *Loop) trace(t *Trace) {
	t.CreatedAt = clock.Now()
	t.Loop = l.counter
	l.traces = append(l.traces, t)
}

// report assembles the run record: traces, the suspension manager's audit log
// and stats, and the condensed summary.
func (l *Loop) report(ctx context.Context, outcome, snapshotID string) *Report {
	events, _ := l.suspender.AuditLog(ctx)
	stats, _ := l.suspender.Stats(ctx)

	summary := &Summary{
		TotalLoops:       l.counter,
		PolicyViolations: l.violations,
		Interventions:    l.interventions,
		Outcome:          outcome,
		SnapshotID:       snapshotID,
		FinalStore:       l.session.Summary(),
	}
	if stats != nil {
		summary.Approvals = stats.Approvals
		summary.Rejections = stats.Rejections
		summary.Modifications = stats.Modifications
	}
	return &Report{
		Task:     l.task,
		Rules:    l.validator.Rules().Names(),
		Traces:   l.traces,
		AuditLog: events,
		Stats:    stats,
		Summary:  summary,
	}
}

func decisionOptions(input *suspension.DecisionInput) []suspension.DecisionOption {
	var options []suspension.DecisionOption
	if input.Feedback != "" {
		options = append(options, suspension.WithFeedback(input.Feedback))
	}
	if input.ModifiedAction != nil {
		options = append(options, suspension.WithModifiedAction(input.ModifiedAction))
	}
	if input.Rationale != "" {
		options = append(options, suspension.WithRationale(input.Rationale))
	}
	return options
}

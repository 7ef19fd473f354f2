// Package memory provides the in-memory suspension manager.  Snapshot,
// request and audit-event records go through the generic DAO stores so that a
// durable backend (for example the afs-backed snapshot store) can be swapped
// in without touching the lifecycle logic.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/warden-ai/warden/internal/clock"
	"github.com/warden-ai/warden/internal/deepcopy"
	"github.com/warden-ai/warden/internal/idgen"
	"github.com/warden-ai/warden/service/dao"
	"github.com/warden-ai/warden/service/dao/store"
	"github.com/warden-ai/warden/service/messaging"
	qmem "github.com/warden-ai/warden/service/messaging/memory"
	"github.com/warden-ai/warden/service/suspension"
)

// retryGuidance is merged into the ambient context on every rejection cycle.
const retryGuidance = "consider alternative approaches based on the human feedback"

// summaryLimit bounds free-text excerpts inside approval requests.
const summaryLimit = 200

type service struct {
	snapshots dao.Service[string, suspension.Snapshot]
	requests  dao.Service[string, suspension.Request]
	outcomes  dao.Service[string, suspension.Outcome]
	events    dao.Service[string, suspension.Event]
	queue     messaging.Queue[suspension.Event]
	// decideMu serialises the decided-check, audit append and outcome save so
	// that concurrent decision paths cannot both pass the exactly-once guard.
	decideMu sync.Mutex
}

// key selectors - grab the identifying field
func snapshotKey(s *suspension.Snapshot) string { return s.ID }
func requestKey(r *suspension.Request) string   { return r.SnapshotID }
func outcomeKey(o *suspension.Outcome) string   { return o.SnapshotID }
func eventKey(e *suspension.Event) string       { return e.ID }

// New creates an in-memory suspension manager.
func New(options ...Option) suspension.Service {
	ret := &service{
		snapshots: store.NewMemoryStore[string, suspension.Snapshot](snapshotKey),
		requests:  store.NewMemoryStore[string, suspension.Request](requestKey),
		outcomes:  store.NewMemoryStore[string, suspension.Outcome](outcomeKey),
		events:    store.NewMemoryStore[string, suspension.Event](eventKey),
		queue:     qmem.NewQueue[suspension.Event](qmem.DefaultConfig()),
	}
	for _, option := range options {
		option(ret)
	}
	return ret
}

func (s *service) Freeze(ctx context.Context, input *suspension.FreezeInput) (*suspension.Snapshot, error) {
	if input == nil || input.Output == nil {
		return nil, fmt.Errorf("suspension: freeze requires cognition output")
	}
	// An approve decision replays the pending action verbatim, so an
	// action-less output has nothing a decision could apply to.
	if input.Output.Action.IsEmpty() {
		return nil, fmt.Errorf("suspension: freeze requires a pending action")
	}

	snapshot := &suspension.Snapshot{
		ID:            idgen.New(),
		CreatedAt:     clock.Now(),
		LoopCounter:   input.LoopCounter,
		PendingAction: input.Output.Action.Clone(),
		Output:        input.Output.Clone(),
		StoreState:    deepcopy.Map(input.StoreState),
		EvidenceCache: deepcopy.Map(input.EvidenceCache),
		Context:       deepcopy.Map(input.Context),
		RuleState:     deepcopy.Map(input.RuleState),
		Level:         input.Level,
		Reason:        input.Reason,
	}
	if err := s.snapshots.Save(ctx, snapshot); err != nil {
		return nil, err
	}
	s.appendEvent(ctx, &suspension.Event{
		Kind:          suspension.EventStateFrozen,
		SnapshotID:    snapshot.ID,
		PendingAction: snapshot.PendingAction,
		Actor:         suspension.ActorSystem,
	})
	return snapshot.Clone(), nil
}

func (s *service) Thaw(ctx context.Context, id string) (*suspension.Snapshot, error) {
	snapshot, err := s.lookup(ctx, id)
	if err != nil {
		return nil, err
	}
	s.appendEvent(ctx, &suspension.Event{
		Kind:          suspension.EventStateThawed,
		SnapshotID:    snapshot.ID,
		PendingAction: snapshot.PendingAction,
		Actor:         suspension.ActorSystem,
	})
	return snapshot.Clone(), nil
}

func (s *service) Discard(ctx context.Context, id string) error {
	if _, err := s.lookup(ctx, id); err != nil {
		return err
	}
	return s.snapshots.Delete(ctx, id)
}

func (s *service) RequestApproval(ctx context.Context, snapshot *suspension.Snapshot) (*suspension.Request, error) {
	if snapshot == nil {
		return nil, fmt.Errorf("suspension: nil snapshot")
	}
	request := &suspension.Request{
		SnapshotID:    snapshot.ID,
		CreatedAt:     clock.Now(),
		Level:         snapshot.Level,
		Reason:        snapshot.Reason,
		PendingAction: snapshot.PendingAction.Clone(),
		Reasoning:     truncate(snapshot.Output.Reasoning, summaryLimit),
		EvidenceRefs:  append([]string(nil), snapshot.Output.EvidenceRefs...),
		ContextSummary: map[string]interface{}{
			"loop_counter": snapshot.LoopCounter,
			"task":         truncate(stringValue(snapshot.Context["task"]), summaryLimit),
			"last_result":  truncate(stringValue(snapshot.Context["last_action_result"]), summaryLimit),
		},
		Options: []string{
			string(suspension.DecisionApprove),
			string(suspension.DecisionReject),
			string(suspension.DecisionModify),
		},
	}
	if err := s.requests.Save(ctx, request); err != nil {
		return nil, err
	}
	s.appendEvent(ctx, &suspension.Event{
		Kind:          suspension.EventApprovalRequested,
		SnapshotID:    snapshot.ID,
		PendingAction: snapshot.PendingAction,
		Actor:         suspension.ActorSystem,
	})
	return request, nil
}

func (s *service) RecordDecision(ctx context.Context, id string, decision suspension.Decision, options ...suspension.DecisionOption) (*suspension.Outcome, error) {
	if !decision.Valid() {
		return nil, fmt.Errorf("%w: %q", suspension.ErrInvalidDecision, decision)
	}
	s.decideMu.Lock()
	defer s.decideMu.Unlock()

	snapshot, err := s.lookup(ctx, id)
	if err != nil {
		return nil, err
	}
	if decided, _ := s.outcomes.Load(ctx, id); decided != nil {
		return nil, fmt.Errorf("%w: %s", suspension.ErrAlreadyDecided, id)
	}

	input := &suspension.DecisionInput{Decision: decision}
	for _, option := range options {
		option(input)
	}

	var kind suspension.EventKind
	switch decision {
	case suspension.DecisionApprove:
		kind = suspension.EventApproved
	case suspension.DecisionReject:
		kind = suspension.EventRejected
	case suspension.DecisionModify:
		kind = suspension.EventModified
	}

	event := s.appendEvent(ctx, &suspension.Event{
		Kind:           kind,
		SnapshotID:     snapshot.ID,
		PendingAction:  snapshot.PendingAction,
		Decision:       decision,
		Feedback:       input.Feedback,
		ModifiedAction: input.ModifiedAction,
		Rationale:      input.Rationale,
		Actor:          suspension.ActorHuman,
	})

	outcome := &suspension.Outcome{
		SnapshotID: snapshot.ID,
		Decision:   decision,
		EventID:    event.ID,
		DecidedAt:  event.CreatedAt,
		Feedback:   input.Feedback,
		Rationale:  input.Rationale,
		Next:       nextStep(snapshot, decision, input),
	}
	if err := s.outcomes.Save(ctx, outcome); err != nil {
		return nil, err
	}
	return outcome, nil
}

// nextStep computes the loop continuation for a terminal decision: approve
// executes the pending action, modify executes the replacement (falling back
// to the pending action), reject re-enters reasoning carrying the original
// reasoning text forward as feedback.
func nextStep(snapshot *suspension.Snapshot, decision suspension.Decision, input *suspension.DecisionInput) *suspension.Next {
	switch decision {
	case suspension.DecisionModify:
		action := input.ModifiedAction
		if action == nil {
			action = snapshot.PendingAction
		}
		return &suspension.Next{Kind: suspension.NextExecute, Action: action.Clone()}
	case suspension.DecisionReject:
		return &suspension.Next{
			Kind:             suspension.NextReason,
			Feedback:         snapshot.Output.Reasoning,
			VirtualRejection: true,
		}
	default:
		return &suspension.Next{Kind: suspension.NextExecute, Action: snapshot.PendingAction.Clone()}
	}
}

func (s *service) RejectionCycle(snapshot *suspension.Snapshot, reason string) *suspension.RejectionCycle {
	if snapshot == nil {
		return nil
	}
	var previous interface{}
	if snapshot.PendingAction != nil {
		previous = map[string]interface{}{
			"capability": snapshot.PendingAction.Capability,
			"parameters": deepcopy.Map(snapshot.PendingAction.Parameters),
		}
	}
	return &suspension.RejectionCycle{
		Reason: reason,
		ContextPatch: map[string]interface{}{
			"human_rejected":    true,
			"rejection_reason":  reason,
			"previous_proposal": previous,
			"retry_guidance":    retryGuidance,
		},
		StoreState:    deepcopy.Map(snapshot.StoreState),
		EvidenceCache: deepcopy.Map(snapshot.EvidenceCache),
		Original:      snapshot.Output.Clone(),
	}
}

func (s *service) Pending(ctx context.Context) ([]*suspension.Request, error) {
	all, err := s.requests.List(ctx)
	if err != nil {
		return nil, err
	}
	pending := make([]*suspension.Request, 0, len(all))
	for _, request := range all {
		if decided, _ := s.outcomes.Load(ctx, request.SnapshotID); decided == nil {
			pending = append(pending, request)
		}
	}
	return pending, nil
}

func (s *service) AuditLog(ctx context.Context) ([]*suspension.Event, error) {
	return s.events.List(ctx)
}

func (s *service) Stats(ctx context.Context) (*suspension.Stats, error) {
	events, err := s.events.List(ctx)
	if err != nil {
		return nil, err
	}
	stats := &suspension.Stats{TotalEvents: len(events)}
	for _, event := range events {
		switch event.Kind {
		case suspension.EventApproved:
			stats.Approvals++
		case suspension.EventRejected:
			stats.Rejections++
		case suspension.EventModified:
			stats.Modifications++
		case suspension.EventStateFrozen:
			stats.Frozen++
		}
	}
	return stats, nil
}

func (s *service) Queue() messaging.Queue[suspension.Event] {
	return s.queue
}

func (s *service) lookup(ctx context.Context, id string) (*suspension.Snapshot, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: empty id", suspension.ErrUnknownSnapshot)
	}
	snapshot, err := s.snapshots.Load(ctx, id)
	if err != nil {
		// Durable DAOs signal a miss with ErrNotFound; the memory store
		// returns nil.
		if errors.Is(err, dao.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", suspension.ErrUnknownSnapshot, id)
		}
		return nil, err
	}
	if snapshot == nil {
		return nil, fmt.Errorf("%w: %s", suspension.ErrUnknownSnapshot, id)
	}
	return snapshot, nil
}

// appendEvent stamps, stores and fans out an audit event.  Queue publication
// is best-effort - the DAO copy is the authoritative append-only log.  The
// fan-out must never stall a Freeze or a decision, so when nobody consumes
// the queue and its buffer fills up, events are dropped rather than awaited.
func (s *service) appendEvent(ctx context.Context, event *suspension.Event) *suspension.Event {
	event.ID = idgen.New()
	event.CreatedAt = clock.Now()
	_ = s.events.Save(ctx, event)
	if q, ok := s.queue.(messaging.TryPublisher[suspension.Event]); ok {
		q.TryPublish(ctx, event)
	} else {
		_ = s.queue.Publish(ctx, event)
	}
	return event
}

func truncate(value string, limit int) string {
	if len(value) <= limit {
		return value
	}
	return value[:limit]
}

func stringValue(v interface{}) string {
	if v == nil {
		return ""
	}
	if str, ok := v.(string); ok {
		return str
	}
	return fmt.Sprintf("%v", v)
}

var _ suspension.Service = (*service)(nil)

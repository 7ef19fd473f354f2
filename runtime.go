package warden

import (
	"context"

	"github.com/warden-ai/warden/runtime/loop"
	"github.com/warden-ai/warden/runtime/session"
	"github.com/warden-ai/warden/service/suspension"
)

// Runtime drives one task through the control loop. It is single-threaded;
// concurrent tasks use separate runtimes from the same Service.
type Runtime struct {
	session *session.Session
	loop    *loop.Loop
}

// Session returns the task's working store.
func (r *Runtime) Session() *session.Session {
	return r.session
}

// Run executes the control loop for the given task until it completes,
// suspends for a human decision, or exhausts the loop ceiling. A suspended
// report carries the snapshot ID to pass to Resume.
func (r *Runtime) Run(ctx context.Context, task string) (*loop.Report, error) {
	return r.loop.Run(ctx, task)
}

// Resume records the decision for a frozen snapshot and continues the run
// from the restored cognitive state. It works the same whether the snapshot
// was frozen by this runtime or by another process sharing the snapshot
// store.
func (r *Runtime) Resume(ctx context.Context, snapshotID string, decision suspension.Decision, options ...suspension.DecisionOption) (*loop.Report, error) {
	return r.loop.Resume(ctx, snapshotID, decision, options...)
}

// Pending lists approval requests awaiting a decision.
func (r *Runtime) Pending(ctx context.Context) ([]*suspension.Request, error) {
	return r.loop.Suspender().Pending(ctx)
}

// AuditLog returns the append-only audit trail accumulated so far.
func (r *Runtime) AuditLog(ctx context.Context) ([]*suspension.Event, error) {
	return r.loop.Suspender().AuditLog(ctx)
}

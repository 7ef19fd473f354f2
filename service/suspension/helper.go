package suspension

import (
	"context"
	"time"
)

// DecideFunc decides what to do with a pending approval request.
type DecideFunc func(request *Request) (Decision, []DecisionOption)

// AutoDecider starts a goroutine that polls Pending and applies fn to every
// request.  It returns stop() - call it (or cancel ctx) to exit.  The helper
// exists for unattended runs and tests; interactive front-ends consume the
// event queue instead.
func AutoDecider(ctx context.Context, svc Service, fn DecideFunc, interval time.Duration) (stop func()) {
	if interval <= 0 {
		interval = 20 * time.Millisecond
	}
	done := make(chan struct{})

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-done:
				return
			case <-ticker.C:
				requests, _ := svc.Pending(ctx)
				for _, request := range requests {
					decision, options := fn(request)
					_, _ = svc.RecordDecision(ctx, request.SnapshotID, decision, options...)
				}
			}
		}
	}()
	return func() { close(done) }
}

// AutoApproveAll automatically approves every pending request.
func AutoApproveAll(ctx context.Context, svc Service, interval time.Duration) func() {
	return AutoDecider(ctx, svc, func(*Request) (Decision, []DecisionOption) {
		return DecisionApprove, nil
	}, interval)
}

// AutoRejectAll automatically rejects every pending request with the given
// feedback.
func AutoRejectAll(ctx context.Context, svc Service, feedback string, interval time.Duration) func() {
	return AutoDecider(ctx, svc, func(*Request) (Decision, []DecisionOption) {
		return DecisionReject, []DecisionOption{WithFeedback(feedback)}
	}, interval)
}

// WaitForDecision polls the audit log until a terminal decision is recorded
// for the given snapshot or the timeout elapses.
func WaitForDecision(ctx context.Context, svc Service, snapshotID string, timeout time.Duration) (*Event, error) {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for {
		events, err := svc.AuditLog(ctx)
		if err != nil {
			return nil, err
		}
		for _, event := range events {
			if event.SnapshotID != snapshotID {
				continue
			}
			switch event.Kind {
			case EventApproved, EventRejected, EventModified:
				return event, nil
			}
		}
		if time.Now().After(deadline) {
			return nil, context.DeadlineExceeded
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// Package warden provides a suspension-aware control loop for autonomous
// reasoning agents.
//
// The loop cycles an oracle through reasoning, governance validation,
// intervention checking and capability execution. When the intervention
// policy flags a proposed action as sensitive, the entire cognitive state -
// working store, evidence cache, ambient context, rule state and loop
// counter - is frozen into a snapshot and the run suspends until a human
// approves, rejects or replaces the action. A rejection re-enters reasoning
// as an ordinary, fully traceable cognitive event.
//
// End-users interact with the engine via the Service facade:
//
//	srv := warden.New(oracle)
//	srv.Capabilities().Register("get_weather", "city forecast", handler)
//	rt := srv.Runtime()
//	report, _ := rt.Run(ctx, "plan a weekend trip")
//	if report.Suspended() {
//		report, _ = rt.Resume(ctx, report.Summary.SnapshotID, suspension.DecisionApprove)
//	}
//
// For details see the individual sub-packages.
package warden

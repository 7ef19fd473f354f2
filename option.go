package warden

import (
	"github.com/warden-ai/warden/governance"
	"github.com/warden-ai/warden/policy"
	"github.com/warden-ai/warden/runtime/loop"
	"github.com/warden-ai/warden/service/capability"
	"github.com/warden-ai/warden/service/dao"
	"github.com/warden-ai/warden/service/suspension"
	"github.com/warden-ai/warden/tracing"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Option configures the Service.
type Option func(s *Service)

// WithPolicy sets a fully constructed intervention policy, including any
// registered per-capability rules.
func WithPolicy(p *policy.Policy) Option {
	return func(s *Service) { s.policy = p }
}

// WithPolicyConfig sets the intervention policy configuration.
func WithPolicyConfig(config *policy.Config) Option {
	return func(s *Service) { s.policyConfig = config }
}

// WithGovernanceConfig sets the governance rule configuration applied to every
// runtime.
func WithGovernanceConfig(config *governance.Config) Option {
	return func(s *Service) { s.governanceConfig = config }
}

// WithSuspension sets the suspension manager shared by all runtimes.
func WithSuspension(svc suspension.Service) Option {
	return func(s *Service) { s.suspender = svc }
}

// WithSnapshotDAO backs the default suspension manager with the supplied
// snapshot store, e.g. the afs-based one for cross-process resumption.
func WithSnapshotDAO(store dao.Service[string, suspension.Snapshot]) Option {
	return func(s *Service) { s.snapshotDAO = store }
}

// WithEventDAO backs the default suspension manager's audit log with the
// supplied store.
func WithEventDAO(store dao.Service[string, suspension.Event]) Option {
	return func(s *Service) { s.eventDAO = store }
}

// WithCapabilities sets the capability registry.
func WithCapabilities(registry *capability.Registry) Option {
	return func(s *Service) { s.capabilities = registry }
}

// WithDecisionSource attaches a synchronous decision source; without one any
// confirm or approve escalation suspends the run.
func WithDecisionSource(source suspension.DecisionSource) Option {
	return func(s *Service) { s.decisions = source }
}

// WithRetriever replaces the default retrieval stage.
func WithRetriever(fn loop.Retriever) Option {
	return func(s *Service) { s.retriever = fn }
}

// WithMaxLoops sets the reasoning-cycle ceiling per runtime.
func WithMaxLoops(n int) Option {
	return func(s *Service) { s.maxLoops = n }
}

// WithTracing configures OpenTelemetry tracing. If outputFile is empty the
// stdout exporter is used; otherwise traces are written to the supplied file.
func WithTracing(serviceName, serviceVersion, outputFile string) Option {
	return func(s *Service) {
		_ = tracing.Init(serviceName, serviceVersion, outputFile)
	}
}

// WithTracingExporter configures OpenTelemetry tracing using a custom
// SpanExporter (OTLP, Jaeger, Zipkin, ...).
func WithTracingExporter(serviceName, serviceVersion string, exporter sdktrace.SpanExporter) Option {
	return func(s *Service) {
		_ = tracing.InitWithExporter(serviceName, serviceVersion, exporter)
	}
}

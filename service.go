package warden

import (
	"github.com/warden-ai/warden/governance"
	"github.com/warden-ai/warden/policy"
	"github.com/warden-ai/warden/runtime/loop"
	"github.com/warden-ai/warden/runtime/session"
	"github.com/warden-ai/warden/service/capability"
	"github.com/warden-ai/warden/service/dao"
	"github.com/warden-ai/warden/service/suspension"
	"github.com/warden-ai/warden/service/suspension/memory"
)

// Service is the engine facade: it holds the shared collaborators (policy,
// governance configuration, suspension manager, capability registry) and
// spawns per-task runtimes.
type Service struct {
	policy           *policy.Policy
	policyConfig     *policy.Config
	governanceConfig *governance.Config
	suspender        suspension.Service
	snapshotDAO      dao.Service[string, suspension.Snapshot]
	eventDAO         dao.Service[string, suspension.Event]
	capabilities     *capability.Registry
	decisions        suspension.DecisionSource
	retriever        loop.Retriever
	oracle           loop.Oracle
	maxLoops         int
}

func (s *Service) init(options []Option) {
	for _, option := range options {
		option(s)
	}
	s.ensureBaseSetup()
}

func (s *Service) ensureBaseSetup() {
	if s.policy == nil {
		if s.policyConfig == nil {
			s.policyConfig = policy.DefaultConfig()
		}
		s.policy = policy.New(s.policyConfig)
	}
	if s.governanceConfig == nil {
		s.governanceConfig = governance.DefaultConfig()
	}
	if s.suspender == nil {
		var daoOptions []memory.Option
		if s.snapshotDAO != nil {
			daoOptions = append(daoOptions, memory.WithSnapshotDAO(s.snapshotDAO))
		}
		if s.eventDAO != nil {
			daoOptions = append(daoOptions, memory.WithEventDAO(s.eventDAO))
		}
		s.suspender = memory.New(daoOptions...)
	}
	if s.capabilities == nil {
		s.capabilities = capability.New()
	}
}

// Capabilities returns the registry so callers can register handlers after
// construction.
func (s *Service) Capabilities() *capability.Registry {
	return s.capabilities
}

// Suspender returns the shared suspension manager; decision front-ends use it
// to list pending requests and record decisions out of band.
func (s *Service) Suspender() suspension.Service {
	return s.suspender
}

// Runtime creates a runtime for one task: a fresh working store and governance
// rule set wired to the shared policy, suspension manager and capabilities.
func (s *Service) Runtime() *Runtime {
	sess := session.New("")
	rules := governance.NewRules(s.governanceConfig)
	validator := governance.NewValidator(rules, sess)

	options := []loop.Option{
		loop.WithSession(sess),
		loop.WithPolicy(s.policy),
		loop.WithValidator(validator),
		loop.WithSuspension(s.suspender),
		loop.WithCapabilities(s.capabilities),
	}
	if s.decisions != nil {
		options = append(options, loop.WithDecisionSource(s.decisions))
	}
	if s.retriever != nil {
		options = append(options, loop.WithRetriever(s.retriever))
	}
	if s.maxLoops > 0 {
		options = append(options, loop.WithMaxLoops(s.maxLoops))
	}
	return &Runtime{
		session: sess,
		loop:    loop.New(s.oracle, options...),
	}
}

// New creates the engine around the given reasoning oracle.
func New(oracle loop.Oracle, options ...Option) *Service {
	ret := &Service{oracle: oracle}
	ret.init(options)
	return ret
}

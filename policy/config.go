package policy

import (
	"context"
	"fmt"
	"strings"

	"github.com/viant/afs"
	"gopkg.in/yaml.v3"
)

// Config is the declarative, serialisable part of a policy.  Every threshold
// is an explicit named option - there are no hidden defaults beyond the
// evaluation order documented on Evaluate.
type Config struct {
	// HighRisk capabilities always require an approve-level decision.
	HighRisk []string `json:"highRisk,omitempty" yaml:"highRisk,omitempty"`
	// AlwaysConfirm capabilities always require confirmation.
	AlwaysConfirm []string `json:"alwaysConfirm,omitempty" yaml:"alwaysConfirm,omitempty"`
	// ConfirmOnFinal requires confirmation for any final action.
	ConfirmOnFinal bool `json:"confirmOnFinal" yaml:"confirmOnFinal"`
	// ConfirmAfterLoops escalates to notify once the loop counter reaches
	// this value; zero disables the check.
	ConfirmAfterLoops int `json:"confirmAfterLoops,omitempty" yaml:"confirmAfterLoops,omitempty"`
	// ConfidenceFloor escalates to confirm when the reported confidence is
	// below this value.
	ConfidenceFloor float64 `json:"confidenceFloor,omitempty" yaml:"confidenceFloor,omitempty"`
	// NotifyOnMissingEvidence escalates to notify when an output cites no
	// evidence.
	NotifyOnMissingEvidence bool `json:"notifyOnMissingEvidence" yaml:"notifyOnMissingEvidence"`
}

// DefaultConfig mirrors the stock governance posture: destructive or
// externally visible capabilities need approval, image generation needs
// confirmation, and long-running or poorly-evidenced loops notify.
func DefaultConfig() *Config {
	return &Config{
		HighRisk:                []string{"send_email", "cancel_trip", "make_payment", "delete_data"},
		AlwaysConfirm:           []string{"generate_image"},
		ConfirmOnFinal:          true,
		ConfirmAfterLoops:       10,
		ConfidenceFloor:         0.7,
		NotifyOnMissingEvidence: true,
	}
}

func containsFold(set []string, name string) bool {
	if name == "" {
		return false
	}
	for _, candidate := range set {
		if strings.EqualFold(candidate, name) {
			return true
		}
	}
	return false
}

func (c *Config) isHighRisk(capability string) bool {
	return containsFold(c.HighRisk, capability)
}

func (c *Config) isAlwaysConfirm(capability string) bool {
	return containsFold(c.AlwaysConfirm, capability)
}

// LoadConfig reads a YAML policy configuration from any afs-reachable URL
// (file, mem, s3, gs, ...).
func LoadConfig(ctx context.Context, fs afs.Service, URL string) (*Config, error) {
	data, err := fs.DownloadWithURL(ctx, URL)
	if err != nil {
		return nil, fmt.Errorf("failed to load policy config %s: %w", URL, err)
	}
	config := &Config{}
	if err = yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to decode policy config %s: %w", URL, err)
	}
	return config, nil
}

package policy

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// policyFile is the top-level YAML document shape.
type policyFile struct {
	Policies []Policy `yaml:"policies"`
}

// ParseYAML decodes a policy set from YAML bytes. Policies without an
// explicit enabled key default to enabled.
func ParseYAML(raw []byte) ([]Policy, error) {
	var file policyFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse policies: %w", err)
	}
	// yaml zero-values Enabled to false; treat a missing key as enabled by
	// round-tripping through a probe type.
	var probe struct {
		Policies []map[string]any `yaml:"policies"`
	}
	if err := yaml.Unmarshal(raw, &probe); err == nil {
		for i := range file.Policies {
			if i < len(probe.Policies) {
				if _, explicit := probe.Policies[i]["enabled"]; !explicit {
					file.Policies[i].Enabled = true
				}
			}
		}
	}
	for _, p := range file.Policies {
		if p.ID == "" {
			return nil, fmt.Errorf("parse policies: policy without id")
		}
	}
	return file.Policies, nil
}

// LoadFile reads and parses a YAML policy file.
func LoadFile(path string) ([]Policy, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy file: %w", err)
	}
	return ParseYAML(raw)
}

// LoadFile parses a YAML policy file and registers every policy on the
// engine. Already registered ids are replaced.
func (e *Engine) LoadFile(path string) (int, error) {
	policies, err := LoadFile(path)
	if err != nil {
		return 0, err
	}
	for _, p := range policies {
		if err := e.AddPolicy(p); err != nil {
			return 0, err
		}
	}
	return len(policies), nil
}

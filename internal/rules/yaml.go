package rules

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ruleFile is the on-disk shape of a declarative rule set.
type ruleFile struct {
	Rules []struct {
		ID             string      `yaml:"id"`
		Description    string      `yaml:"description"`
		Conditions     []Condition `yaml:"conditions"`
		OutputNodeType string      `yaml:"output_node_type"`
	} `yaml:"rules"`
}

// LoadFile reads declarative rules from a YAML file and registers them.
// Construct functions are bound by output node type via BuilderFor, so a
// rule file can only produce nodes the vocabulary knows how to build.
// Later files (or re-used ids) overwrite earlier rules, last write wins.
func LoadFile(r *Registry, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read rules file: %w", err)
	}

	var f ruleFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return 0, fmt.Errorf("parse rules file %s: %w", path, err)
	}

	for i, decl := range f.Rules {
		if decl.ID == "" {
			return 0, fmt.Errorf("rules file %s: rule %d has no id", path, i)
		}
		construct, err := BuilderFor(decl.OutputNodeType)
		if err != nil {
			return 0, fmt.Errorf("rules file %s: rule %q: %w", path, decl.ID, err)
		}
		r.Register(&Rule{
			ID:             decl.ID,
			Description:    decl.Description,
			Conditions:     decl.Conditions,
			OutputNodeType: decl.OutputNodeType,
			Construct:      construct,
		})
	}

	return len(f.Rules), nil
}

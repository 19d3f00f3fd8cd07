package lint

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// PolicyFileName is the file the CLI looks for next to the manifests
// it lints.
const PolicyFileName = ".depradar.yaml"

// Policy adjusts rule severities or disables rules entirely. The zero
// value keeps every rule at its default severity.
type Policy struct {
	Rules map[string]RulePolicy `yaml:"rules"`
}

type RulePolicy struct {
	Disabled bool     `yaml:"disabled"`
	Severity Severity `yaml:"severity"`
}

// ReadPolicy loads a policy file.
func ReadPolicy(path string) (Policy, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		return Policy{}, err
	}
	var policy Policy
	err = yaml.Unmarshal(contents, &policy)
	if err != nil {
		return Policy{}, fmt.Errorf("parse %s: %w", path, err)
	}
	err = policy.validate()
	if err != nil {
		return Policy{}, fmt.Errorf("%s: %w", path, err)
	}
	return policy, nil
}

// DiscoverPolicy loads ".depradar.yaml" from the given directory when
// one exists. A missing file is not an error, lints then run with the
// defaults.
func DiscoverPolicy(dir string) (Policy, error) {
	path := filepath.Join(dir, PolicyFileName)
	_, err := os.Stat(path)
	if os.IsNotExist(err) {
		return Policy{}, nil
	}
	if err != nil {
		return Policy{}, err
	}
	return ReadPolicy(path)
}

func (p Policy) validate() error {
	for rule, rp := range p.Rules {
		switch rp.Severity {
		case "", SeverityError, SeverityWarning, SeverityInfo:
		default:
			return fmt.Errorf("unknown severity %q for rule %q", rp.Severity, rule)
		}
	}
	return nil
}

func (p Policy) apply(findings []Finding) []Finding {
	if len(p.Rules) == 0 {
		return findings
	}
	var kept []Finding
	for _, f := range findings {
		rp, ok := p.Rules[f.Rule]
		if !ok {
			kept = append(kept, f)
			continue
		}
		if rp.Disabled {
			continue
		}
		if rp.Severity != "" {
			f.Severity = rp.Severity
		}
		kept = append(kept, f)
	}
	return kept
}

// Package lint checks requirements manifests: every non-comment,
// non-blank line must parse as a package specifier, and no package may
// carry constraints that cannot all hold at once, within one file or
// across the audited set.
package lint

import (
	"fmt"
	"sort"

	"github.com/DoguKody/depradar/lib/requirements"
)

type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

const (
	RuleMalformedLine          = "malformed-line"
	RuleConflictingConstraints = "conflicting-constraints"
	RuleDuplicatePackage       = "duplicate-package"
	RuleUnpinned               = "unpinned"
	RuleNonCanonicalName       = "non-canonical-name"
)

var defaultSeverities = map[string]Severity{
	RuleMalformedLine:          SeverityError,
	RuleConflictingConstraints: SeverityError,
	RuleDuplicatePackage:       SeverityWarning,
	RuleUnpinned:               SeverityInfo,
	RuleNonCanonicalName:       SeverityInfo,
}

type Finding struct {
	Rule     string   `json:"rule"`
	Severity Severity `json:"severity"`
	File     string   `json:"file,omitempty"`
	Line     int      `json:"line,omitempty"`
	Package  string   `json:"package,omitempty"`
	Message  string   `json:"message"`
}

// HasErrors reports whether any finding is error severity.
func HasErrors(findings []Finding) bool {
	for _, f := range findings {
		if f.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Run lints the given manifests with the default rule severities.
func Run(files ...requirements.File) []Finding {
	return RunWithPolicy(Policy{}, files...)
}

// RunWithPolicy lints the given manifests. Per-file rules see one file
// at a time while conflict detection works on every specifier in the
// set, so a pin in one file can contradict a bound in another.
func RunWithPolicy(policy Policy, files ...requirements.File) []Finding {
	var findings []Finding

	for _, file := range files {
		findings = append(findings, checkMalformed(file)...)
		findings = append(findings, checkDuplicates(file)...)
		findings = append(findings, checkSpecifierHygiene(file)...)
	}
	findings = append(findings, checkConflicts(files)...)

	findings = policy.apply(findings)
	SortFindings(findings)
	return findings
}

// SortFindings orders findings by file, line and rule so reports stay
// stable across runs.
func SortFindings(findings []Finding) {
	sort.SliceStable(findings, func(i, j int) bool {
		if findings[i].File != findings[j].File {
			return findings[i].File < findings[j].File
		}
		if findings[i].Line != findings[j].Line {
			return findings[i].Line < findings[j].Line
		}
		return findings[i].Rule < findings[j].Rule
	})
}

func checkMalformed(file requirements.File) []Finding {
	var findings []Finding
	for _, line := range file.Malformed() {
		findings = append(findings, Finding{
			Rule:     RuleMalformedLine,
			Severity: defaultSeverities[RuleMalformedLine],
			File:     file.Name,
			Line:     line.Number,
			Message:  fmt.Sprintf("%q does not parse as a package specifier: %s", line.Raw, line.Err),
		})
	}
	return findings
}

func checkDuplicates(file requirements.File) []Finding {
	var findings []Finding
	firstSeen := make(map[string]int)
	for _, spec := range file.Specifiers() {
		first, seen := firstSeen[spec.Canonical]
		if !seen {
			firstSeen[spec.Canonical] = spec.Line
			continue
		}
		findings = append(findings, Finding{
			Rule:     RuleDuplicatePackage,
			Severity: defaultSeverities[RuleDuplicatePackage],
			File:     file.Name,
			Line:     spec.Line,
			Package:  spec.Canonical,
			Message:  fmt.Sprintf("%s already appears on line %d", spec.Canonical, first),
		})
	}
	return findings
}

func checkSpecifierHygiene(file requirements.File) []Finding {
	var findings []Finding
	for _, spec := range file.Specifiers() {
		if message, unpinned := unpinnedMessage(spec); unpinned {
			findings = append(findings, Finding{
				Rule:     RuleUnpinned,
				Severity: defaultSeverities[RuleUnpinned],
				File:     file.Name,
				Line:     spec.Line,
				Package:  spec.Canonical,
				Message:  message,
			})
		}
		if spec.Name != spec.Canonical {
			findings = append(findings, Finding{
				Rule:     RuleNonCanonicalName,
				Severity: defaultSeverities[RuleNonCanonicalName],
				File:     file.Name,
				Line:     spec.Line,
				Package:  spec.Canonical,
				Message:  fmt.Sprintf("%q is known to the index as %q", spec.Name, spec.Canonical),
			})
		}
	}
	return findings
}

func unpinnedMessage(spec requirements.Specifier) (string, bool) {
	if len(spec.Constraints) == 0 {
		return fmt.Sprintf("%s has no version constraint", spec.Canonical), true
	}
	for _, c := range spec.Constraints {
		if c.Op != requirements.OpGreaterEqual && c.Op != requirements.OpGreater {
			return "", false
		}
	}
	return fmt.Sprintf("%s only has lower bounds, installs are not reproducible", spec.Canonical), true
}

func checkConflicts(files []requirements.File) []Finding {
	grouped := make(map[string][]requirements.Specifier)
	var order []string
	for _, file := range files {
		for _, spec := range file.Specifiers() {
			if _, seen := grouped[spec.Canonical]; !seen {
				order = append(order, spec.Canonical)
			}
			grouped[spec.Canonical] = append(grouped[spec.Canonical], spec)
		}
	}

	var findings []Finding
	for _, name := range order {
		specs := grouped[name]
		conflict, ok := unsatisfiable(specs)
		if !ok {
			continue
		}
		findings = append(findings, Finding{
			Rule:     RuleConflictingConstraints,
			Severity: defaultSeverities[RuleConflictingConstraints],
			File:     conflict.file,
			Line:     conflict.line,
			Package:  name,
			Message:  conflict.message,
		})
	}
	return findings
}

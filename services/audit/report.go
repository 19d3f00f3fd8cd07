package audit

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/DoguKody/depradar/lib/lint"
	"github.com/DoguKody/depradar/lib/osv"
	"github.com/DoguKody/depradar/lib/pypi"
	"github.com/DoguKody/depradar/lib/requirements"

	"go.opentelemetry.io/otel/codes"
)

// Rules produced by the online half of an audit, layered on top of the
// offline lint rules.
const (
	RuleUnknownPackage = "unknown-package"
	RuleUnknownRelease = "unknown-release"
	RuleYankedRelease  = "yanked-release"
	RuleOutdatedPin    = "outdated-pin"
	RuleVulnerable     = "vulnerable"
	RuleUnauditable    = "unauditable"
)

// CheckRegistry resolves every package against the index and checks
// pinned versions for existence, yanks, staleness and known
// vulnerabilities. Packages the index cannot answer for degrade into
// unauditable findings; an OSV outage fails the audit instead, a clean
// report that skipped vulnerability data would be misleading.
func CheckRegistry(ctx context.Context, index pypi.Client, vulnDb osv.Client, manifests []requirements.File) ([]lint.Finding, error) {
	ctx, span := tracer.Start(ctx, "CheckRegistry")
	defer span.End()

	var specs []requirements.Specifier
	for _, manifest := range manifests {
		specs = append(specs, manifest.Specifiers()...)
	}

	projects := map[string]*pypi.Project{}
	lookupErrs := map[string]error{}
	var resolved []string
	for _, spec := range specs {
		if _, done := projects[spec.Canonical]; done {
			continue
		}
		if _, done := lookupErrs[spec.Canonical]; done {
			continue
		}
		project, err := index.Lookup(ctx, spec.Canonical)
		if err != nil {
			lookupErrs[spec.Canonical] = err
			continue
		}
		projects[spec.Canonical] = project
		resolved = append(resolved, spec.Canonical)
	}

	var findings []lint.Finding
	pinned := map[string]string{}
	for _, spec := range specs {
		if err, failed := lookupErrs[spec.Canonical]; failed {
			findings = append(findings, lookupFinding(spec, err, resolved))
			continue
		}
		project := projects[spec.Canonical]

		version, isPinned := spec.Pinned()
		if !isPinned {
			findings = append(findings, lint.Finding{
				Rule:     RuleUnauditable,
				Severity: lint.SeverityInfo,
				File:     spec.File,
				Line:     spec.Line,
				Package:  spec.Canonical,
				Message:  "no exact pin, release and vulnerability checks skipped",
			})
			continue
		}

		release, found := project.Release(version)
		if !found {
			findings = append(findings, lint.Finding{
				Rule:     RuleUnknownRelease,
				Severity: lint.SeverityError,
				File:     spec.File,
				Line:     spec.Line,
				Package:  spec.Canonical,
				Message:  fmt.Sprintf("pinned version %s does not exist on the index", version),
			})
			continue
		}
		if release.Yanked {
			message := fmt.Sprintf("pinned version %s was yanked", version)
			if release.YankedReason != "" {
				message += ": " + release.YankedReason
			}
			findings = append(findings, lint.Finding{
				Rule:     RuleYankedRelease,
				Severity: lint.SeverityError,
				File:     spec.File,
				Line:     spec.Line,
				Package:  spec.Canonical,
				Message:  message,
			})
		}
		if latest, ok := project.LatestRelease(); ok {
			current, errCurrent := requirements.ParseVersion(version)
			newest, errNewest := requirements.ParseVersion(latest.Version)
			if errCurrent == nil && errNewest == nil && current.Compare(newest) < 0 {
				findings = append(findings, lint.Finding{
					Rule:     RuleOutdatedPin,
					Severity: lint.SeverityInfo,
					File:     spec.File,
					Line:     spec.Line,
					Package:  spec.Canonical,
					Message:  fmt.Sprintf("pinned version %s is behind latest %s", version, latest.Version),
				})
			}
		}
		pinned[spec.Canonical] = version
	}

	if len(pinned) > 0 {
		queries := make([]osv.PackageVersion, 0, len(pinned))
		for name, version := range pinned {
			queries = append(queries, osv.PackageVersion{Name: name, Version: version})
		}
		vulnerabilities, err := vulnDb.QueryAll(ctx, queries)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "osv lookup failed")
			return nil, err
		}

		for _, spec := range specs {
			version, ok := pinned[spec.Canonical]
			if !ok {
				continue
			}
			for _, vuln := range vulnerabilities[spec.Canonical] {
				findings = append(findings, lint.Finding{
					Rule:     RuleVulnerable,
					Severity: lint.SeverityError,
					File:     spec.File,
					Line:     spec.Line,
					Package:  spec.Canonical,
					Message:  vulnerabilityMessage(version, vuln),
				})
			}
		}
	}

	return findings, nil
}

func lookupFinding(spec requirements.Specifier, err error, resolved []string) lint.Finding {
	if errors.Is(err, pypi.ErrNotFound) {
		message := fmt.Sprintf("%q is not on the package index", spec.Name)
		if suggestion := pypi.Suggest(spec.Canonical, resolved); suggestion != "" {
			message += fmt.Sprintf(", did you mean %q?", suggestion)
		}
		return lint.Finding{
			Rule:     RuleUnknownPackage,
			Severity: lint.SeverityError,
			File:     spec.File,
			Line:     spec.Line,
			Package:  spec.Canonical,
			Message:  message,
		}
	}
	return lint.Finding{
		Rule:     RuleUnauditable,
		Severity: lint.SeverityWarning,
		File:     spec.File,
		Line:     spec.Line,
		Package:  spec.Canonical,
		Message:  fmt.Sprintf("index lookup failed: %s", err),
	}
}

func vulnerabilityMessage(version string, vuln osv.Vulnerability) string {
	message := fmt.Sprintf("%s is affected by %s", version, vuln.Id)
	if len(vuln.Aliases) > 0 {
		message += fmt.Sprintf(" (%s)", strings.Join(vuln.Aliases, ", "))
	}
	if vuln.Summary != "" {
		message += ": " + vuln.Summary
	}
	return message
}

func findingKey(f lint.Finding) string {
	return fmt.Sprintf("%s|%s|%s|%d|%s", f.Rule, f.Package, f.File, f.Line, f.Message)
}

// diffFindings reports what appeared and what went away between two
// reports. Keys include the message, so an outdated pin falling further
// behind counts as a change.
func diffFindings(previous, current []lint.Finding) (added, resolved []lint.Finding) {
	before := map[string]bool{}
	for _, f := range previous {
		before[findingKey(f)] = true
	}
	after := map[string]bool{}
	for _, f := range current {
		key := findingKey(f)
		after[key] = true
		if !before[key] {
			added = append(added, f)
		}
	}
	for _, f := range previous {
		if !after[findingKey(f)] {
			resolved = append(resolved, f)
		}
	}
	return added, resolved
}

package lint

import (
	"strings"
	"testing"

	"github.com/DoguKody/depradar/lib/requirements"
	"github.com/stretchr/testify/require"
)

func parse(t *testing.T, name, text string) requirements.File {
	t.Helper()
	file, err := requirements.Parse(name, strings.NewReader(text))
	require.NoError(t, err)
	return file
}

func findByRule(findings []Finding, rule string) []Finding {
	var matched []Finding
	for _, f := range findings {
		if f.Rule == rule {
			matched = append(matched, f)
		}
	}
	return matched
}

func TestCleanManifestPair(t *testing.T) {
	pipeline, err := requirements.ParseFile("testdata/requirements.txt")
	require.NoError(t, err)
	composer, err := requirements.ParseFile("testdata/requirements-composer.txt")
	require.NoError(t, err)

	findings := Run(pipeline, composer)
	require.False(t, HasErrors(findings))

	// The only findings on the real pair are the informational ones
	// about lower-bound specifiers.
	for _, f := range findings {
		require.Equal(t, RuleUnpinned, f.Rule)
		require.Equal(t, SeverityInfo, f.Severity)
	}
	require.Len(t, findings, 2)
}

func TestMalformedLine(t *testing.T) {
	file := parse(t, "requirements.txt", "pandas==2.1.4\nnot a specifier!!\n")

	findings := Run(file)
	malformed := findByRule(findings, RuleMalformedLine)
	require.Len(t, malformed, 1)
	require.Equal(t, SeverityError, malformed[0].Severity)
	require.Equal(t, "requirements.txt", malformed[0].File)
	require.Equal(t, 2, malformed[0].Line)
	require.Contains(t, malformed[0].Message, "does not parse")
	require.True(t, HasErrors(findings))
}

func TestConflictingPins(t *testing.T) {
	a := parse(t, "requirements.txt", "prophet==1.1.5\n")
	b := parse(t, "requirements-composer.txt", "prophet==1.1.2\n")

	findings := Run(a, b)
	conflicts := findByRule(findings, RuleConflictingConstraints)
	require.Len(t, conflicts, 1)
	require.Equal(t, "prophet", conflicts[0].Package)
	require.Equal(t, "requirements-composer.txt", conflicts[0].File)
	require.Equal(t, 1, conflicts[0].Line)
	require.Contains(t, conflicts[0].Message, "requirements.txt:1")
}

func TestAgreeingPinsDoNotConflict(t *testing.T) {
	a := parse(t, "a.txt", "pandas==2.1.4\n")
	b := parse(t, "b.txt", "pandas==2.1.4.0\n")

	findings := Run(a, b)
	require.Empty(t, findByRule(findings, RuleConflictingConstraints))
}

func TestPinViolatesBound(t *testing.T) {
	a := parse(t, "a.txt", "pandas==2.1.4\n")
	b := parse(t, "b.txt", "pandas<2.0\n")

	findings := Run(a, b)
	conflicts := findByRule(findings, RuleConflictingConstraints)
	require.Len(t, conflicts, 1)
	require.Contains(t, conflicts[0].Message, "violates")
}

func TestPinViolatesPrefixPin(t *testing.T) {
	a := parse(t, "a.txt", "pandas==2.2.0\n")
	b := parse(t, "b.txt", "pandas==2.1.*\n")

	findings := Run(a, b)
	require.Len(t, findByRule(findings, RuleConflictingConstraints), 1)
}

func TestDisjointBounds(t *testing.T) {
	a := parse(t, "a.txt", "selenium>=4.16\n")
	b := parse(t, "b.txt", "selenium<4.0\n")

	findings := Run(a, b)
	conflicts := findByRule(findings, RuleConflictingConstraints)
	require.Len(t, conflicts, 1)
	require.Contains(t, conflicts[0].Message, "no version satisfies")
}

func TestTouchingBoundsAreSatisfiable(t *testing.T) {
	a := parse(t, "a.txt", "selenium>=4.16\n")
	b := parse(t, "b.txt", "selenium<=4.16\n")

	findings := Run(a, b)
	require.Empty(t, findByRule(findings, RuleConflictingConstraints))
}

func TestSinglePointRangeExcluded(t *testing.T) {
	a := parse(t, "a.txt", "selenium>=4.16,<=4.16\n")
	b := parse(t, "b.txt", "selenium!=4.16\n")

	findings := Run(a, b)
	conflicts := findByRule(findings, RuleConflictingConstraints)
	require.Len(t, conflicts, 1)
	require.Contains(t, conflicts[0].Message, "excludes")
}

func TestCompatibleReleaseRanges(t *testing.T) {
	{
		a := parse(t, "a.txt", "urllib3~=1.26.5\n")
		b := parse(t, "b.txt", "urllib3>=2.0\n")
		findings := Run(a, b)
		require.Len(t, findByRule(findings, RuleConflictingConstraints), 1)
	}
	{
		a := parse(t, "a.txt", "urllib3~=1.26.5\n")
		b := parse(t, "b.txt", "urllib3>=1.26.8\n")
		findings := Run(a, b)
		require.Empty(t, findByRule(findings, RuleConflictingConstraints))
	}
}

func TestDuplicatePackage(t *testing.T) {
	file := parse(t, "requirements.txt", "requests==2.31.0\n\nRequests==2.31.0\n")

	findings := Run(file)
	duplicates := findByRule(findings, RuleDuplicatePackage)
	require.Len(t, duplicates, 1)
	require.Equal(t, 3, duplicates[0].Line)
	require.Equal(t, "requests", duplicates[0].Package)
	require.Contains(t, duplicates[0].Message, "line 1")
}

func TestUnpinned(t *testing.T) {
	file := parse(t, "requirements.txt", "lxml\nboto3>=1.34\npandas==2.1.4\n")

	findings := Run(file)
	unpinned := findByRule(findings, RuleUnpinned)
	require.Len(t, unpinned, 2)
	require.Equal(t, "lxml", unpinned[0].Package)
	require.Equal(t, "boto3", unpinned[1].Package)
}

func TestNonCanonicalName(t *testing.T) {
	file := parse(t, "requirements.txt", "Apache_Airflow==2.9.1\n")

	findings := Run(file)
	nonCanonical := findByRule(findings, RuleNonCanonicalName)
	require.Len(t, nonCanonical, 1)
	require.Equal(t, "apache-airflow", nonCanonical[0].Package)
}

func TestFindingsAreSorted(t *testing.T) {
	a := parse(t, "b.txt", "lxml\nbad line!\n")
	b := parse(t, "a.txt", "lxml\n")

	findings := Run(a, b)
	require.Len(t, findings, 3)
	require.Equal(t, "a.txt", findings[0].File)
	require.Equal(t, "b.txt", findings[1].File)
	require.Equal(t, 1, findings[1].Line)
	require.Equal(t, 2, findings[2].Line)
}

package lint

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writePolicy(t *testing.T, text string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, PolicyFileName)
	err := os.WriteFile(path, []byte(text), 0o644)
	require.NoError(t, err)
	return dir
}

func TestPolicyOverrides(t *testing.T) {
	dir := writePolicy(t, `
rules:
  unpinned:
    severity: error
  non-canonical-name:
    disabled: true
`)
	policy, err := DiscoverPolicy(dir)
	require.NoError(t, err)

	file := parse(t, "requirements.txt", "lxml\nApache_Airflow==2.9.1\n")
	findings := RunWithPolicy(policy, file)

	unpinned := findByRule(findings, RuleUnpinned)
	require.Len(t, unpinned, 1)
	require.Equal(t, SeverityError, unpinned[0].Severity)
	require.True(t, HasErrors(findings))

	require.Empty(t, findByRule(findings, RuleNonCanonicalName))
}

func TestDiscoverPolicyMissingFile(t *testing.T) {
	policy, err := DiscoverPolicy(t.TempDir())
	require.NoError(t, err)
	require.Empty(t, policy.Rules)
}

func TestReadPolicyRejectsUnknownSeverity(t *testing.T) {
	dir := writePolicy(t, `
rules:
  unpinned:
    severity: loud
`)
	_, err := ReadPolicy(filepath.Join(dir, PolicyFileName))
	require.ErrorContains(t, err, "unknown severity")
}

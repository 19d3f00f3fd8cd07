package audit

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/DoguKody/depradar/lib/lint"
	"github.com/DoguKody/depradar/lib/osv"
	"github.com/DoguKody/depradar/lib/pypi"
	"github.com/DoguKody/depradar/lib/testutil"
	"github.com/DoguKody/depradar/services/audit/db"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

const requestsStubBody = `{
	"info": {"name": "requests", "version": "2.32.3"},
	"releases": {
		"2.31.0": [{"filename": "requests-2.31.0-py3-none-any.whl", "upload_time_iso_8601": "2023-05-22T15:12:42Z", "yanked": false, "yanked_reason": null}],
		"2.32.3": [{"filename": "requests-2.32.3-py3-none-any.whl", "upload_time_iso_8601": "2024-05-29T15:37:47Z", "yanked": false, "yanked_reason": null}]
	}
}`

const prophetStubBody = `{
	"info": {"name": "prophet", "version": "1.1.5"},
	"releases": {
		"1.1.4": [{"filename": "prophet-1.1.4.tar.gz", "upload_time_iso_8601": "2023-05-10T08:00:00Z", "yanked": false, "yanked_reason": null}],
		"1.1.5": [{"filename": "prophet-1.1.5.tar.gz", "upload_time_iso_8601": "2023-10-10T08:00:00Z", "yanked": false, "yanked_reason": null}]
	}
}`

const pandasStubBody = `{
	"info": {"name": "pandas", "version": "2.2.2"},
	"releases": {
		"2.0.0": [{"filename": "pandas-2.0.0-py3-none-any.whl", "upload_time_iso_8601": "2023-04-03T08:00:00Z", "yanked": true, "yanked_reason": "broken dtype promotion"}],
		"2.1.4": [{"filename": "pandas-2.1.4-py3-none-any.whl", "upload_time_iso_8601": "2023-12-08T08:00:00Z", "yanked": false, "yanked_reason": null}],
		"2.2.2": [{"filename": "pandas-2.2.2-py3-none-any.whl", "upload_time_iso_8601": "2024-04-10T08:00:00Z", "yanked": false, "yanked_reason": null}]
	}
}`

const boto3StubBody = `{
	"info": {"name": "boto3", "version": "1.34.100"},
	"releases": {
		"1.34.100": [{"filename": "boto3-1.34.100-py3-none-any.whl", "upload_time_iso_8601": "2024-05-01T08:00:00Z", "yanked": false, "yanked_reason": null}]
	}
}`

const prophetVulnsBody = `{
	"vulns": [{
		"id": "GHSA-0001",
		"summary": "arbitrary code execution in model loading",
		"aliases": ["CVE-2024-0001"],
		"severity": [{"type": "CVSS_V3", "score": "9.8"}]
	}]
}`

// newRegistryStub serves both the package index and the vulnerability
// database from one server.
func newRegistryStub(t testing.TB) *httptest.Server {
	mux := http.NewServeMux()
	for path, body := range map[string]string{
		"/pypi/requests/json": requestsStubBody,
		"/pypi/prophet/json":  prophetStubBody,
		"/pypi/pandas/json":   pandasStubBody,
		"/pypi/boto3/json":    boto3StubBody,
	} {
		body := body
		mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("content-type", "application/json")
			w.Write([]byte(body))
		})
	}
	mux.HandleFunc("/v1/query", func(w http.ResponseWriter, r *http.Request) {
		var query struct {
			Package struct {
				Name string `json:"name"`
			} `json:"package"`
			Version string `json:"version"`
		}
		err := json.NewDecoder(r.Body).Decode(&query)
		if err != nil {
			t.Errorf("bad osv query: %v", err)
			return
		}
		w.Header().Set("content-type", "application/json")
		if query.Package.Name == "prophet" && query.Version == "1.1.5" {
			w.Write([]byte(prophetVulnsBody))
			return
		}
		w.Write([]byte("{}"))
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	return httptest.NewServer(mux)
}

func setup(t testing.TB) (Service, func()) {
	res, cleanup := testutil.SetupService(t, testutil.ServiceParams{
		Name:     "services/audit",
		DbSchema: db.Schema,
	})

	registry := newRegistryStub(t)

	service := NewService(res.DB, Options{
		Pypi: pypi.NewClient(pypi.ClientOptions{BaseUrl: registry.URL}),
		Osv:  osv.NewClient(osv.ClientOptions{BaseUrl: registry.URL}),
	})

	return service, func() {
		registry.Close()
		cleanup()
	}
}

const auditedManifest = `requests==2.31.0
prophet==1.1.5
pandas==2.0.0
boto3>=1.34
reqests==2.31.0
`

func TestPutManifestSet(t *testing.T) {
	service, cleanup := setup(t)
	defer cleanup()
	ctx := context.Background()

	report, err := service.PutManifestSet(ctx, "scout-radar", []FileInput{
		{Name: "requirements.txt", Content: auditedManifest},
	})
	require.NoError(t, err)
	require.Equal(t, KindLint, report.Kind)
	require.True(t, strings.HasPrefix(report.Id, "dr-"))

	expected := []lint.Finding{
		{
			Rule:     lint.RuleUnpinned,
			Severity: lint.SeverityInfo,
			File:     "requirements.txt",
			Line:     4,
			Package:  "boto3",
			Message:  "boto3 only has lower bounds, installs are not reproducible",
		},
	}
	diff := cmp.Diff(expected, report.Findings)
	if diff != "" {
		t.Fatal(diff)
	}

	{
		set, err := service.GetSet(ctx, "scout-radar")
		require.NoError(t, err)
		require.Equal(t, "scout-radar", set.Name)
		require.Len(t, set.Files, 1)
		require.Equal(t, "requirements.txt", set.Files[0].Name)
		require.Equal(t, auditedManifest, set.Files[0].Content)
		require.Len(t, set.Files[0].Sha256, 64)
	}
	{
		sets, err := service.ListSets(ctx)
		require.NoError(t, err)
		require.Len(t, sets, 1)
		require.Equal(t, "scout-radar", sets[0].Name)
	}
	{
		// replacing a set drops files that are no longer sent
		_, err := service.PutManifestSet(ctx, "scout-radar", []FileInput{
			{Name: "requirements.txt", Content: "requests==2.32.3\n"},
			{Name: "requirements-dev.txt", Content: "pytest==8.2.0\n"},
		})
		require.NoError(t, err)
		set, err := service.GetSet(ctx, "scout-radar")
		require.NoError(t, err)
		require.Len(t, set.Files, 2)
	}
	{
		_, err := service.PutManifestSet(ctx, "", []FileInput{{Name: "a", Content: ""}})
		require.Error(t, err)
		_, err = service.PutManifestSet(ctx, "x", nil)
		require.Error(t, err)
		_, err = service.PutManifestSet(ctx, "x", []FileInput{{Name: "a"}, {Name: "a"}})
		require.Error(t, err)
	}
}

func TestRunAudit(t *testing.T) {
	service, cleanup := setup(t)
	defer cleanup()
	ctx := context.Background()

	_, err := service.RunAudit(ctx, "missing")
	require.ErrorIs(t, err, ErrSetNotFound)

	putReport, err := service.PutManifestSet(ctx, "scout-radar", []FileInput{
		{Name: "requirements.txt", Content: auditedManifest},
	})
	require.NoError(t, err)

	report, err := service.RunAudit(ctx, "scout-radar")
	require.NoError(t, err)
	require.Equal(t, KindFull, report.Kind)
	require.NotEqual(t, putReport.Id, report.Id)

	expected := []lint.Finding{
		{
			Rule: RuleOutdatedPin, Severity: lint.SeverityInfo,
			File: "requirements.txt", Line: 1, Package: "requests",
			Message: "pinned version 2.31.0 is behind latest 2.32.3",
		},
		{
			Rule: RuleVulnerable, Severity: lint.SeverityError,
			File: "requirements.txt", Line: 2, Package: "prophet",
			Message: "1.1.5 is affected by GHSA-0001 (CVE-2024-0001): arbitrary code execution in model loading",
		},
		{
			Rule: RuleOutdatedPin, Severity: lint.SeverityInfo,
			File: "requirements.txt", Line: 3, Package: "pandas",
			Message: "pinned version 2.0.0 is behind latest 2.2.2",
		},
		{
			Rule: RuleYankedRelease, Severity: lint.SeverityError,
			File: "requirements.txt", Line: 3, Package: "pandas",
			Message: "pinned version 2.0.0 was yanked: broken dtype promotion",
		},
		{
			Rule: RuleUnauditable, Severity: lint.SeverityInfo,
			File: "requirements.txt", Line: 4, Package: "boto3",
			Message: "no exact pin, release and vulnerability checks skipped",
		},
		{
			Rule: lint.RuleUnpinned, Severity: lint.SeverityInfo,
			File: "requirements.txt", Line: 4, Package: "boto3",
			Message: "boto3 only has lower bounds, installs are not reproducible",
		},
		{
			Rule: RuleUnknownPackage, Severity: lint.SeverityError,
			File: "requirements.txt", Line: 5, Package: "reqests",
			Message: `"reqests" is not on the package index, did you mean "requests"?`,
		},
	}
	diff := cmp.Diff(expected, report.Findings)
	if diff != "" {
		t.Fatal(diff)
	}

	{
		latest, err := service.GetLatestReport(ctx, "scout-radar")
		require.NoError(t, err)
		require.Equal(t, report.Id, latest.Id)
		diff := cmp.Diff(report.Findings, latest.Findings)
		if diff != "" {
			t.Fatal(diff)
		}
	}
	{
		reports, err := service.ListReports(ctx, "scout-radar")
		require.NoError(t, err)
		require.Len(t, reports, 2)
		require.Equal(t, report.Id, reports[0].Id)
		require.Equal(t, KindFull, reports[0].Kind)
		require.Equal(t, putReport.Id, reports[1].Id)
		require.Equal(t, KindLint, reports[1].Kind)
	}
	{
		got, err := service.GetReport(ctx, report.Id)
		require.NoError(t, err)
		require.Equal(t, report.Id, got.Id)
		require.Equal(t, KindFull, got.Kind)
	}
	{
		_, err := service.GetReport(ctx, "dr-missing0")
		require.ErrorIs(t, err, ErrReportNotFound)
	}
}

func TestAuditAll(t *testing.T) {
	service, cleanup := setup(t)
	defer cleanup()
	ctx := context.Background()

	_, err := service.PutManifestSet(ctx, "alpha", []FileInput{
		{Name: "requirements.txt", Content: "requests==2.32.3\n"},
	})
	require.NoError(t, err)
	_, err = service.PutManifestSet(ctx, "beta", []FileInput{
		{Name: "requirements.txt", Content: "prophet==1.1.5\n"},
	})
	require.NoError(t, err)

	service.AuditAll(ctx)

	{
		report, err := service.GetLatestReport(ctx, "alpha")
		require.NoError(t, err)
		require.Equal(t, KindFull, report.Kind)
		require.Empty(t, report.Findings)
	}
	{
		report, err := service.GetLatestReport(ctx, "beta")
		require.NoError(t, err)
		require.Equal(t, KindFull, report.Kind)
		require.Len(t, report.Findings, 1)
		require.Equal(t, RuleVulnerable, report.Findings[0].Rule)
	}
}

func TestDeleteSet(t *testing.T) {
	service, cleanup := setup(t)
	defer cleanup()
	ctx := context.Background()

	require.ErrorIs(t, service.DeleteSet(ctx, "missing"), ErrSetNotFound)

	report, err := service.PutManifestSet(ctx, "scout-radar", []FileInput{
		{Name: "requirements.txt", Content: "requests==2.32.3\n"},
	})
	require.NoError(t, err)

	err = service.DeleteSet(ctx, "scout-radar")
	require.NoError(t, err)

	_, err = service.GetSet(ctx, "scout-radar")
	require.ErrorIs(t, err, ErrSetNotFound)
	_, err = service.GetLatestReport(ctx, "scout-radar")
	require.ErrorIs(t, err, ErrSetNotFound)
	_, err = service.GetReport(ctx, report.Id)
	require.ErrorIs(t, err, ErrReportNotFound)
}

func TestDiffFindings(t *testing.T) {
	stale := lint.Finding{
		Rule: RuleOutdatedPin, Package: "requests",
		File: "requirements.txt", Line: 1, Message: "behind latest 2.32.3",
	}
	vulnerable := lint.Finding{
		Rule: RuleVulnerable, Package: "prophet",
		File: "requirements.txt", Line: 2, Message: "affected by GHSA-0001",
	}
	staler := lint.Finding{
		Rule: RuleOutdatedPin, Package: "requests",
		File: "requirements.txt", Line: 1, Message: "behind latest 2.33.0",
	}

	{
		added, resolved := diffFindings(
			[]lint.Finding{stale, vulnerable},
			[]lint.Finding{vulnerable, staler},
		)
		require.Equal(t, []lint.Finding{staler}, added)
		require.Equal(t, []lint.Finding{stale}, resolved)
	}
	{
		added, resolved := diffFindings(
			[]lint.Finding{stale},
			[]lint.Finding{stale},
		)
		require.Empty(t, added)
		require.Empty(t, resolved)
	}
}

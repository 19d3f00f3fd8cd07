package notify

import (
	"context"
	"io"
	"log"
	"testing"

	"github.com/DoguKody/depradar/lib/lint"
	"github.com/DoguKody/depradar/lib/telemetry"

	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setup(t testing.TB) (Notifier, func()) {
	cleanup := telemetry.SetupForTesting("test:services/notify")

	// suppress logging
	testcontainers.Logger = log.New(io.Discard, "", 0)

	smtp, err := testcontainers.GenericContainer(
		context.Background(),
		testcontainers.GenericContainerRequest{
			Started: true,
			ContainerRequest: testcontainers.ContainerRequest{
				Image:        "haravich/fake-smtp-server",
				ExposedPorts: []string{"1025:1025", "1080:1080"},
				WaitingFor:   wait.ForLog("smtp://0.0.0.0:1025"),
			},
		},
	)
	if err != nil {
		t.Fatal(err)
	}

	notifier := NewNotifier(Options{
		Smtp: SmtpConfig{
			Server:       "localhost",
			Port:         1025,
			EmailAddress: "radar@depradar.dev",
			Password:     "default",
		},
		Recipients: []string{"oncall@depradar.dev"},
	})

	return notifier, func() {
		cleanup()
		err := smtp.Terminate(context.Background())
		if err != nil {
			t.Fatal(err)
		}
	}
}

var globalClient = resty.New()

func getLatestEmailText(t testing.TB) string {
	res, err := globalClient.R().
		Get("http://127.0.0.1:1080/messages/1.plain")
	if err != nil {
		t.Fatal(err)
	}
	return res.String()
}

func TestSendAuditDigest(t *testing.T) {
	notifier, cleanup := setup(t)
	defer cleanup()

	err := notifier.SendAuditDigest(context.Background(), Digest{
		SetName:  "scout-radar",
		ReportId: "dr-1a2b3c4d",
		New: []lint.Finding{
			{
				Rule:     "vulnerable",
				Severity: lint.SeverityError,
				File:     "requirements.txt",
				Line:     7,
				Package:  "prophet",
				Message:  "1.1.5 is affected by GHSA-0001",
			},
		},
		Resolved: []lint.Finding{
			{
				Rule:     "outdated-pin",
				Severity: lint.SeverityInfo,
				File:     "requirements.txt",
				Line:     3,
				Package:  "requests",
				Message:  "2.30.0 is behind latest 2.32.3",
			},
		},
		Total: 4,
	})
	require.NoError(t, err)

	body := getLatestEmailText(t)
	require.Contains(t, body, "dr-1a2b3c4d")
	require.Contains(t, body, "prophet")
	require.Contains(t, body, "GHSA-0001")
	require.Contains(t, body, "Resolved since the last report (1)")
	require.Contains(t, body, "4 findings in total")
}

func TestDisabledNotifierSkipsSend(t *testing.T) {
	notifier := NewNotifier(Options{})
	require.False(t, notifier.Enabled())

	// nothing configured, must not try to dial anything
	err := notifier.SendAuditDigest(context.Background(), Digest{SetName: "x"})
	require.NoError(t, err)
}

// Package notify emails audit digests when a scheduled run changes the
// findings for a manifest set.
package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/DoguKody/depradar/lib/lint"
	"github.com/DoguKody/depradar/lib/telemetry"

	"github.com/jordan-wright/email"
	"go.opentelemetry.io/otel/codes"
)

var tracer = telemetry.Tracer("depradar.services.notify")

type SmtpConfig struct {
	Server       string `json:"server"`
	Port         int    `json:"port"`
	EmailAddress string `json:"email_address"`
	Password     string `json:"password"`
}

type Options struct {
	Smtp       SmtpConfig `json:"smtp"`
	Recipients []string   `json:"recipients"`
}

type Notifier struct {
	config Options
}

func NewNotifier(options Options) Notifier {
	return Notifier{config: options}
}

// Enabled reports whether the notifier has somewhere to deliver to.
// Digests are skipped silently otherwise.
func (n Notifier) Enabled() bool {
	return n.config.Smtp.Server != "" && len(n.config.Recipients) > 0
}

type Digest struct {
	SetName  string
	ReportId string
	New      []lint.Finding
	Resolved []lint.Finding
	Total    int
}

func renderFindings(out *strings.Builder, findings []lint.Finding) {
	for _, finding := range findings {
		fmt.Fprintf(
			out, "  [%s] %s:%d %s: %s\n",
			finding.Severity, finding.File, finding.Line,
			finding.Package, finding.Message,
		)
	}
}

func renderDigest(digest Digest) string {
	out := &strings.Builder{}
	fmt.Fprintf(
		out, "Audit report %s for manifest set %q.\n\n",
		digest.ReportId, digest.SetName,
	)

	if len(digest.New) > 0 {
		fmt.Fprintf(out, "New findings (%d):\n", len(digest.New))
		renderFindings(out, digest.New)
		out.WriteString("\n")
	}
	if len(digest.Resolved) > 0 {
		fmt.Fprintf(out, "Resolved since the last report (%d):\n", len(digest.Resolved))
		renderFindings(out, digest.Resolved)
		out.WriteString("\n")
	}

	fmt.Fprintf(out, "The report now carries %d findings in total.\n", digest.Total)
	return out.String()
}

func (n Notifier) SendAuditDigest(ctx context.Context, digest Digest) error {
	_, span := tracer.Start(ctx, "SendAuditDigest")
	defer span.End()

	if !n.Enabled() {
		return nil
	}

	mail := email.NewEmail()
	mail.From = fmt.Sprintf("depradar <%s>", n.config.Smtp.EmailAddress)
	mail.To = n.config.Recipients
	mail.Subject = fmt.Sprintf(
		"depradar: %d new findings for %s",
		len(digest.New), digest.SetName,
	)
	mail.Text = []byte(renderDigest(digest))

	addr := fmt.Sprintf("%s:%d", n.config.Smtp.Server, n.config.Smtp.Port)
	err := mail.Send(
		addr,
		smtp.PlainAuth("", n.config.Smtp.EmailAddress, n.config.Smtp.Password, n.config.Smtp.Server),
	)
	if err != nil && strings.Contains(err.Error(), "server doesn't support AUTH") {
		err = mail.Send(addr, nil)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to send digest email")
		return err
	}

	return nil
}

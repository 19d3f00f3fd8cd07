// Package audit stores named sets of pip manifests and runs lint and
// registry audits over them, keeping a report history per set.
package audit

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/DoguKody/depradar/lib/lint"
	"github.com/DoguKody/depradar/lib/osv"
	"github.com/DoguKody/depradar/lib/pypi"
	"github.com/DoguKody/depradar/lib/requirements"
	"github.com/DoguKody/depradar/lib/telemetry"
	"github.com/DoguKody/depradar/services/audit/db"
	"github.com/DoguKody/depradar/services/notify"

	"github.com/mazen160/go-random"
	"go.opentelemetry.io/otel/codes"

	_ "modernc.org/sqlite"
)

var tracer = telemetry.Tracer("depradar.services.audit")

var (
	ErrSetNotFound    = fmt.Errorf("manifest set does not exist")
	ErrReportNotFound = fmt.Errorf("audit report does not exist")
)

type ReportKind string

const (
	// KindLint reports carry only offline rules, produced on upload.
	KindLint ReportKind = "lint"
	// KindFull reports add registry and vulnerability checks.
	KindFull ReportKind = "full"
)

type FileInput struct {
	Name    string
	Content string
}

type ManifestFile struct {
	Name      string    `json:"name"`
	Content   string    `json:"content,omitempty"`
	Sha256    string    `json:"sha256"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Set struct {
	Name      string         `json:"name"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	Files     []ManifestFile `json:"files,omitempty"`
}

type Report struct {
	Id         string         `json:"id"`
	Set        string         `json:"set"`
	Kind       ReportKind     `json:"kind"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
	Findings   []lint.Finding `json:"findings"`
}

type ReportSummary struct {
	Id         string     `json:"id"`
	Set        string     `json:"set"`
	Kind       ReportKind `json:"kind"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt time.Time  `json:"finished_at"`
}

type Options struct {
	Pypi     pypi.Client
	Osv      osv.Client
	Notifier notify.Notifier
	// Policy overrides lint rule severities server-side.
	Policy lint.Policy
}

type Service struct {
	db       *sql.DB
	qry      *db.Queries
	pypi     pypi.Client
	osv      osv.Client
	notifier notify.Notifier
	policy   lint.Policy
}

func NewService(database *sql.DB, options Options) Service {
	return Service{
		db:       database,
		qry:      db.New(database),
		pypi:     options.Pypi,
		osv:      options.Osv,
		notifier: options.Notifier,
		policy:   options.Policy,
	}
}

func newReportId() (string, error) {
	suffix, err := random.String(8)
	if err != nil {
		return "", err
	}
	return "dr-" + strings.ToLower(suffix), nil
}

func buildReport(set string, kind ReportKind, started, finished time.Time, findings []lint.Finding) (Report, error) {
	id, err := newReportId()
	if err != nil {
		return Report{}, err
	}
	if findings == nil {
		findings = []lint.Finding{}
	}
	return Report{
		Id:         id,
		Set:        set,
		Kind:       kind,
		StartedAt:  started.UTC(),
		FinishedAt: finished.UTC(),
		Findings:   findings,
	}, nil
}

func (s Service) insertReport(ctx context.Context, qry *db.Queries, report Report) error {
	findings, err := json.Marshal(report.Findings)
	if err != nil {
		return err
	}
	return qry.CreateAuditReport(ctx, db.CreateAuditReportParams{
		ID:         report.Id,
		Setname:    report.Set,
		Kind:       string(report.Kind),
		Startedat:  report.StartedAt.Unix(),
		Finishedat: report.FinishedAt.Unix(),
		Findings:   string(findings),
	})
}

func rowToReport(row db.AuditReport) (Report, error) {
	var findings []lint.Finding
	err := json.Unmarshal([]byte(row.Findings), &findings)
	if err != nil {
		return Report{}, fmt.Errorf("report %s is corrupted: %w", row.ID, err)
	}
	return Report{
		Id:         row.ID,
		Set:        row.Setname,
		Kind:       ReportKind(row.Kind),
		StartedAt:  time.Unix(row.Startedat, 0).UTC(),
		FinishedAt: time.Unix(row.Finishedat, 0).UTC(),
		Findings:   findings,
	}, nil
}

func parseManifests(rows []db.ManifestFile) ([]requirements.File, error) {
	manifests := make([]requirements.File, 0, len(rows))
	for _, row := range rows {
		manifest, err := requirements.Parse(row.Name, strings.NewReader(row.Content))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", row.Name, err)
		}
		manifests = append(manifests, manifest)
	}
	return manifests, nil
}

// PutManifestSet creates or replaces a set and its files, lints the new
// content offline and stores the resulting report.
func (s Service) PutManifestSet(ctx context.Context, name string, files []FileInput) (Report, error) {
	ctx, span := tracer.Start(ctx, "PutManifestSet")
	defer span.End()

	name = strings.TrimSpace(name)
	if name == "" {
		return Report{}, fmt.Errorf("set name must not be empty")
	}
	if len(files) == 0 {
		return Report{}, fmt.Errorf("a manifest set needs at least one file")
	}
	seen := map[string]bool{}
	for _, file := range files {
		if strings.TrimSpace(file.Name) == "" {
			return Report{}, fmt.Errorf("manifest file name must not be empty")
		}
		if seen[file.Name] {
			return Report{}, fmt.Errorf("duplicate manifest file %q", file.Name)
		}
		seen[file.Name] = true
	}

	now := time.Now()

	manifests := make([]requirements.File, 0, len(files))
	for _, file := range files {
		manifest, err := requirements.Parse(file.Name, strings.NewReader(file.Content))
		if err != nil {
			return Report{}, fmt.Errorf("%s: %w", file.Name, err)
		}
		manifests = append(manifests, manifest)
	}
	findings := lint.RunWithPolicy(s.policy, manifests...)

	report, err := buildReport(name, KindLint, now, time.Now(), findings)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to assemble report")
		return Report{}, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to begin transaction")
		return Report{}, err
	}
	defer tx.Rollback()
	txqry := s.qry.WithTx(tx)

	err = txqry.UpsertManifestSet(ctx, db.UpsertManifestSetParams{
		Name:      name,
		Createdat: now.Unix(),
		Updatedat: now.Unix(),
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to upsert manifest set")
		return Report{}, err
	}
	err = txqry.DeleteManifestFiles(ctx, name)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to clear previous files")
		return Report{}, err
	}
	for _, file := range files {
		digest := sha256.Sum256([]byte(file.Content))
		err = txqry.CreateManifestFile(ctx, db.CreateManifestFileParams{
			Setname:   name,
			Name:      file.Name,
			Content:   file.Content,
			Sha256:    hex.EncodeToString(digest[:]),
			Updatedat: now.Unix(),
		})
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to insert manifest file")
			return Report{}, err
		}
	}
	err = s.insertReport(ctx, txqry, report)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to insert report")
		return Report{}, err
	}

	err = tx.Commit()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to commit")
		return Report{}, err
	}

	slog.InfoContext(
		ctx, "stored manifest set",
		"set", name, "files", len(files), "findings", len(report.Findings),
	)
	return report, nil
}

// RunAudit lints a set offline, layers registry and vulnerability
// findings on top and persists the result. When the findings changed
// since the previous report a digest email goes out.
func (s Service) RunAudit(ctx context.Context, setName string) (Report, error) {
	ctx, span := tracer.Start(ctx, "RunAudit")
	defer span.End()

	started := time.Now()

	_, err := s.qry.GetManifestSet(ctx, setName)
	if errors.Is(err, sql.ErrNoRows) {
		return Report{}, ErrSetNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to load manifest set")
		return Report{}, err
	}

	fileRows, err := s.qry.GetManifestFiles(ctx, setName)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to load manifest files")
		return Report{}, err
	}
	manifests, err := parseManifests(fileRows)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to parse stored manifests")
		return Report{}, err
	}

	findings := lint.RunWithPolicy(s.policy, manifests...)
	online, err := CheckRegistry(ctx, s.pypi, s.osv, manifests)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "registry checks failed")
		return Report{}, err
	}
	findings = append(findings, online...)
	lint.SortFindings(findings)

	report, err := buildReport(setName, KindFull, started, time.Now(), findings)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to assemble report")
		return Report{}, err
	}

	previous, err := s.qry.GetLatestAuditReport(ctx, setName)
	hasPrevious := err == nil
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to load previous report")
		return Report{}, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to begin transaction")
		return Report{}, err
	}
	defer tx.Rollback()

	err = s.insertReport(ctx, s.qry.WithTx(tx), report)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to insert report")
		return Report{}, err
	}
	err = tx.Commit()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to commit")
		return Report{}, err
	}

	slog.InfoContext(
		ctx, "audit finished",
		"set", setName, "report", report.Id, "findings", len(report.Findings),
	)

	if hasPrevious {
		s.maybeSendDigest(ctx, report, previous)
	}
	return report, nil
}

func (s Service) maybeSendDigest(ctx context.Context, report Report, previousRow db.AuditReport) {
	if !s.notifier.Enabled() {
		return
	}
	previous, err := rowToReport(previousRow)
	if err != nil {
		slog.WarnContext(
			ctx, "skipping digest, previous report is unreadable",
			"report", previousRow.ID, "err", err,
		)
		return
	}
	added, resolved := diffFindings(previous.Findings, report.Findings)
	if len(added) == 0 && len(resolved) == 0 {
		return
	}
	err = s.notifier.SendAuditDigest(ctx, notify.Digest{
		SetName:  report.Set,
		ReportId: report.Id,
		New:      added,
		Resolved: resolved,
		Total:    len(report.Findings),
	})
	if err != nil {
		// the report is already stored, a broken mail server must
		// not fail the audit
		slog.ErrorContext(ctx, "failed to send audit digest", "set", report.Set, "err", err)
	}
}

// AuditAll re-audits every stored set, logging failures per set rather
// than aborting the sweep. The cron schedule calls this.
func (s Service) AuditAll(ctx context.Context) {
	ctx, span := tracer.Start(ctx, "AuditAll")
	defer span.End()

	sets, err := s.qry.ListManifestSets(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to list manifest sets")
		slog.ErrorContext(ctx, "scheduled audit could not list sets", "err", err)
		return
	}
	for _, set := range sets {
		report, err := s.RunAudit(ctx, set.Name)
		if err != nil {
			slog.ErrorContext(ctx, "scheduled audit failed", "set", set.Name, "err", err)
			continue
		}
		slog.InfoContext(
			ctx, "scheduled audit finished",
			"set", set.Name, "report", report.Id, "findings", len(report.Findings),
		)
	}
}

func (s Service) GetSet(ctx context.Context, name string) (Set, error) {
	ctx, span := tracer.Start(ctx, "GetSet")
	defer span.End()

	row, err := s.qry.GetManifestSet(ctx, name)
	if errors.Is(err, sql.ErrNoRows) {
		return Set{}, ErrSetNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to load manifest set")
		return Set{}, err
	}

	fileRows, err := s.qry.GetManifestFiles(ctx, name)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to load manifest files")
		return Set{}, err
	}

	set := Set{
		Name:      row.Name,
		CreatedAt: time.Unix(row.Createdat, 0).UTC(),
		UpdatedAt: time.Unix(row.Updatedat, 0).UTC(),
	}
	for _, fileRow := range fileRows {
		set.Files = append(set.Files, ManifestFile{
			Name:      fileRow.Name,
			Content:   fileRow.Content,
			Sha256:    fileRow.Sha256,
			UpdatedAt: time.Unix(fileRow.Updatedat, 0).UTC(),
		})
	}
	return set, nil
}

func (s Service) ListSets(ctx context.Context) ([]Set, error) {
	ctx, span := tracer.Start(ctx, "ListSets")
	defer span.End()

	rows, err := s.qry.ListManifestSets(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to list manifest sets")
		return nil, err
	}

	sets := make([]Set, 0, len(rows))
	for _, row := range rows {
		sets = append(sets, Set{
			Name:      row.Name,
			CreatedAt: time.Unix(row.Createdat, 0).UTC(),
			UpdatedAt: time.Unix(row.Updatedat, 0).UTC(),
		})
	}
	return sets, nil
}

// DeleteSet removes a set together with its files and report history.
func (s Service) DeleteSet(ctx context.Context, name string) error {
	ctx, span := tracer.Start(ctx, "DeleteSet")
	defer span.End()

	_, err := s.qry.GetManifestSet(ctx, name)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrSetNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to load manifest set")
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to begin transaction")
		return err
	}
	defer tx.Rollback()
	txqry := s.qry.WithTx(tx)

	err = txqry.DeleteAuditReports(ctx, name)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to delete reports")
		return err
	}
	err = txqry.DeleteManifestFiles(ctx, name)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to delete files")
		return err
	}
	err = txqry.DeleteManifestSet(ctx, name)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to delete set")
		return err
	}

	return tx.Commit()
}

func (s Service) GetReport(ctx context.Context, id string) (Report, error) {
	ctx, span := tracer.Start(ctx, "GetReport")
	defer span.End()

	row, err := s.qry.GetAuditReport(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return Report{}, ErrReportNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to load report")
		return Report{}, err
	}
	return rowToReport(row)
}

func (s Service) GetLatestReport(ctx context.Context, setName string) (Report, error) {
	ctx, span := tracer.Start(ctx, "GetLatestReport")
	defer span.End()

	_, err := s.qry.GetManifestSet(ctx, setName)
	if errors.Is(err, sql.ErrNoRows) {
		return Report{}, ErrSetNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to load manifest set")
		return Report{}, err
	}

	row, err := s.qry.GetLatestAuditReport(ctx, setName)
	if errors.Is(err, sql.ErrNoRows) {
		return Report{}, ErrReportNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to load latest report")
		return Report{}, err
	}
	return rowToReport(row)
}

func (s Service) ListReports(ctx context.Context, setName string) ([]ReportSummary, error) {
	ctx, span := tracer.Start(ctx, "ListReports")
	defer span.End()

	_, err := s.qry.GetManifestSet(ctx, setName)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSetNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to load manifest set")
		return nil, err
	}

	rows, err := s.qry.ListAuditReports(ctx, setName)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to list reports")
		return nil, err
	}

	summaries := make([]ReportSummary, 0, len(rows))
	for _, row := range rows {
		summaries = append(summaries, ReportSummary{
			Id:         row.ID,
			Set:        row.Setname,
			Kind:       ReportKind(row.Kind),
			StartedAt:  time.Unix(row.Startedat, 0).UTC(),
			FinishedAt: time.Unix(row.Finishedat, 0).UTC(),
		})
	}
	return summaries, nil
}

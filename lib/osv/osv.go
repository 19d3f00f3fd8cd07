// Package osv queries the OSV vulnerability database for known
// advisories against pinned package versions.
package osv

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/DoguKody/depradar/lib/restyutil"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"
)

type Vulnerability struct {
	Id       string   `json:"id"`
	Summary  string   `json:"summary,omitempty"`
	Severity string   `json:"severity,omitempty"`
	Aliases  []string `json:"aliases,omitempty"`
}

type Client struct {
	http        *resty.Client
	concurrency int
}

type ClientOptions struct {
	// BaseUrl defaults to https://api.osv.dev.
	BaseUrl string
	// Concurrency bounds parallel QueryAll lookups, default 8.
	Concurrency int
}

func NewClient(options ClientOptions) Client {
	if options.BaseUrl == "" {
		options.BaseUrl = "https://api.osv.dev"
	}
	if options.Concurrency <= 0 {
		options.Concurrency = 8
	}

	client := resty.New()
	client.SetBaseURL(options.BaseUrl)
	client.SetHeader("user-agent", "depradar/1.0 (+https://github.com/DoguKody/depradar)")
	client.SetHeader("content-type", "application/json")
	client.SetTimeout(time.Second * 30)

	restyutil.InstrumentClient(client, tracer, restyInstrumentOutput)

	return Client{http: client, concurrency: options.Concurrency}
}

type queryRequest struct {
	Package queryPackage `json:"package"`
	Version string       `json:"version"`
}

type queryPackage struct {
	Name      string `json:"name"`
	Ecosystem string `json:"ecosystem"`
}

type querySeverity struct {
	Type  string `json:"type"`
	Score string `json:"score"`
}

type queryVulnerability struct {
	Id       string          `json:"id"`
	Summary  string          `json:"summary"`
	Aliases  []string        `json:"aliases"`
	Severity []querySeverity `json:"severity"`
}

type queryResponse struct {
	Vulns []queryVulnerability `json:"vulns"`
}

// Query returns the advisories known for an exact version of a PyPI
// package. An empty slice means the version is clean as far as OSV
// knows.
func (c Client) Query(ctx context.Context, name, version string) ([]Vulnerability, error) {
	ctx, span := tracer.Start(ctx, "Query")
	defer span.End()
	span.SetAttributes(
		attribute.String("package", name),
		attribute.String("version", version),
	)

	res, err := c.http.R().
		SetContext(ctx).
		SetBody(queryRequest{
			Package: queryPackage{
				Name:      name,
				Ecosystem: "PyPI",
			},
			Version: version,
		}).
		Post("/v1/query")
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "request failed")
		return nil, err
	}
	if res.StatusCode() != 200 {
		err := fmt.Errorf("unexpected status %d from osv", res.StatusCode())
		span.RecordError(err)
		span.SetStatus(codes.Error, "bad status")
		return nil, err
	}

	var body queryResponse
	err = json.Unmarshal(res.Body(), &body)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to unmarshal response")
		return nil, err
	}

	vulnerabilities := []Vulnerability{}
	for _, vuln := range body.Vulns {
		severity := ""
		if len(vuln.Severity) > 0 {
			severity = vuln.Severity[0].Score
		}
		vulnerabilities = append(vulnerabilities, Vulnerability{
			Id:       vuln.Id,
			Summary:  vuln.Summary,
			Severity: severity,
			Aliases:  vuln.Aliases,
		})
	}
	return vulnerabilities, nil
}

type PackageVersion struct {
	Name    string
	Version string
}

// QueryAll fans the given package versions out over bounded concurrent
// lookups and keys the results by package name. The first failing
// lookup cancels the rest.
func (c Client) QueryAll(ctx context.Context, queries []PackageVersion) (map[string][]Vulnerability, error) {
	ctx, span := tracer.Start(ctx, "QueryAll")
	defer span.End()

	var mutex sync.Mutex
	results := map[string][]Vulnerability{}

	group, ctx := errgroup.WithContext(ctx)
	group.SetLimit(c.concurrency)
	for _, query := range queries {
		query := query
		group.Go(func() error {
			vulnerabilities, err := c.Query(ctx, query.Name, query.Version)
			if err != nil {
				return err
			}
			mutex.Lock()
			results[query.Name] = vulnerabilities
			mutex.Unlock()
			return nil
		})
	}

	err := group.Wait()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "batched lookup failed")
		return nil, err
	}
	return results, nil
}

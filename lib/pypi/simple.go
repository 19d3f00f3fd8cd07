package pypi

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/DoguKody/depradar/lib/htmlutil"
	"github.com/DoguKody/depradar/lib/requirements"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel/codes"
)

// SimpleIndex fetches the PEP 503 index page for a package and
// reconstructs its release list from the anchor filenames. Upload times
// are not part of this surface so Release.UploadedAt stays zero.
func (c Client) SimpleIndex(ctx context.Context, name string) (*Project, error) {
	ctx, span := tracer.Start(ctx, "SimpleIndex")
	defer span.End()

	canonical := requirements.NormalizeName(name)

	res, err := c.http.R().
		SetContext(ctx).
		Get(fmt.Sprintf("/simple/%s/", canonical))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "request failed")
		return nil, err
	}
	if res.StatusCode() == 404 {
		return nil, ErrNotFound
	}
	if res.StatusCode() != 200 {
		err := fmt.Errorf("unexpected status %d from simple index", res.StatusCode())
		span.RecordError(err)
		span.SetStatus(codes.Error, "bad status")
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(res.Body()))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to parse index page")
		return nil, err
	}

	type fileCount struct {
		total  int
		yanked int
		reason string
	}
	counts := map[string]*fileCount{}
	for _, anchor := range htmlutil.GetAnchors(ctx, doc.Selection) {
		version, ok := versionFromFilename(anchor.Name)
		if !ok {
			continue
		}
		count := counts[version]
		if count == nil {
			count = &fileCount{}
			counts[version] = count
		}
		count.total++
		if reason, yanked := anchor.Attrs["data-yanked"]; yanked {
			count.yanked++
			if count.reason == "" {
				count.reason = reason
			}
		}
	}

	project := &Project{Name: canonical}
	for version, count := range counts {
		release := Release{Version: version}
		if count.yanked == count.total {
			release.Yanked = true
			release.YankedReason = count.reason
		}
		project.Releases = append(project.Releases, release)
	}
	sortReleases(project.Releases)

	if latest, ok := project.LatestRelease(); ok {
		project.Latest = latest.Version
	} else if len(project.Releases) > 0 {
		project.Latest = project.Releases[0].Version
	}
	return project, nil
}

var sdistSuffixes = []string{".tar.gz", ".tar.bz2", ".tgz", ".zip"}

// versionFromFilename extracts the version segment of a wheel or sdist
// filename. Wheel names escape the project name so the version is
// always the second dash-separated field; sdists put it after the last
// dash of the stem.
func versionFromFilename(filename string) (string, bool) {
	lower := strings.ToLower(filename)

	if strings.HasSuffix(lower, ".whl") {
		parts := strings.Split(filename, "-")
		if len(parts) < 2 {
			return "", false
		}
		version := parts[1]
		if _, err := requirements.ParseVersion(version); err != nil {
			return "", false
		}
		return version, true
	}

	for _, suffix := range sdistSuffixes {
		if !strings.HasSuffix(lower, suffix) {
			continue
		}
		stem := filename[:len(filename)-len(suffix)]
		idx := strings.LastIndex(stem, "-")
		if idx < 0 {
			return "", false
		}
		version := stem[idx+1:]
		if _, err := requirements.ParseVersion(version); err != nil {
			return "", false
		}
		return version, true
	}

	return "", false
}

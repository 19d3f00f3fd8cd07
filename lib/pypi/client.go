// Package pypi looks up package metadata on a PyPI-compatible index. It
// prefers the JSON API and falls back to the PEP 503 simple index when
// the JSON surface is unavailable.
package pypi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/DoguKody/depradar/lib/requirements"
	"github.com/DoguKody/depradar/lib/restyutil"

	"github.com/antzucaro/matchr"
	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.opentelemetry.io/otel/codes"
)

var ErrNotFound = fmt.Errorf("package does not exist on the index")

type Release struct {
	Version      string    `json:"version"`
	UploadedAt   time.Time `json:"uploaded_at,omitempty"`
	Yanked       bool      `json:"yanked,omitempty"`
	YankedReason string    `json:"yanked_reason,omitempty"`
}

type Project struct {
	// Name is the PEP 503 canonical form, not the display name.
	Name           string    `json:"name"`
	Summary        string    `json:"summary,omitempty"`
	Latest         string    `json:"latest"`
	RequiresPython string    `json:"requires_python,omitempty"`
	Homepage       string    `json:"homepage,omitempty"`
	// Releases is sorted newest first.
	Releases []Release `json:"releases"`
}

// LatestRelease reports the newest release that is neither yanked nor a
// pre-release. ok is false when every release is excluded.
func (p Project) LatestRelease() (Release, bool) {
	for _, release := range p.Releases {
		if release.Yanked {
			continue
		}
		version, err := requirements.ParseVersion(release.Version)
		if err != nil || version.IsPrerelease() {
			continue
		}
		return release, true
	}
	return Release{}, false
}

// Release looks up a release by version string, comparing PEP 440
// equality rather than raw text. Versions that do not parse, legal
// under arbitrary equality pins, fall back to a case-insensitive
// string match.
func (p Project) Release(version string) (Release, bool) {
	want, err := requirements.ParseVersion(version)
	if err != nil {
		for _, release := range p.Releases {
			if strings.EqualFold(release.Version, version) {
				return release, true
			}
		}
		return Release{}, false
	}
	for _, release := range p.Releases {
		got, err := requirements.ParseVersion(release.Version)
		if err != nil {
			continue
		}
		if want.Compare(got) == 0 {
			return release, true
		}
	}
	return Release{}, false
}

type Client struct {
	http  *resty.Client
	cache *expirable.LRU[string, *Project]
}

type ClientOptions struct {
	// BaseUrl defaults to https://pypi.org.
	BaseUrl string
	// CacheTtl defaults to 15 minutes.
	CacheTtl time.Duration
	// CacheSize defaults to 512 projects.
	CacheSize int
}

func NewClient(options ClientOptions) Client {
	if options.BaseUrl == "" {
		options.BaseUrl = "https://pypi.org"
	}
	if options.CacheTtl <= 0 {
		options.CacheTtl = time.Minute * 15
	}
	if options.CacheSize <= 0 {
		options.CacheSize = 512
	}

	client := resty.New()
	client.SetBaseURL(options.BaseUrl)
	client.SetHeader("user-agent", "depradar/1.0 (+https://github.com/DoguKody/depradar)")
	client.SetTimeout(time.Second * 30)

	restyutil.InstrumentClient(client, tracer, restyInstrumentOutput)

	return Client{
		http:  client,
		cache: expirable.NewLRU[string, *Project](options.CacheSize, nil, options.CacheTtl),
	}
}

type projectInfo struct {
	Name           string `json:"name"`
	Summary        string `json:"summary"`
	Version        string `json:"version"`
	RequiresPython string `json:"requires_python"`
	HomePage       string `json:"home_page"`
}

type releaseFile struct {
	Filename     string    `json:"filename"`
	UploadTime   time.Time `json:"upload_time_iso_8601"`
	Yanked       bool      `json:"yanked"`
	YankedReason string    `json:"yanked_reason"`
}

type projectResponse struct {
	Info     projectInfo              `json:"info"`
	Releases map[string][]releaseFile `json:"releases"`
}

// Project fetches metadata through the JSON API. Missing packages
// return ErrNotFound.
func (c Client) Project(ctx context.Context, name string) (*Project, error) {
	ctx, span := tracer.Start(ctx, "Project")
	defer span.End()

	canonical := requirements.NormalizeName(name)

	res, err := c.http.R().
		SetContext(ctx).
		Get(fmt.Sprintf("/pypi/%s/json", canonical))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "request failed")
		return nil, err
	}
	if res.StatusCode() == 404 {
		return nil, ErrNotFound
	}
	if res.StatusCode() != 200 {
		err := fmt.Errorf("unexpected status %d from json api", res.StatusCode())
		span.RecordError(err)
		span.SetStatus(codes.Error, "bad status")
		return nil, err
	}

	var body projectResponse
	err = json.Unmarshal(res.Body(), &body)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to unmarshal project")
		return nil, err
	}

	project := &Project{
		Name:           canonical,
		Summary:        body.Info.Summary,
		Latest:         body.Info.Version,
		RequiresPython: body.Info.RequiresPython,
		Homepage:       body.Info.HomePage,
	}
	for version, files := range body.Releases {
		// a version key without files cannot be installed, pip
		// skips it and so do we
		if len(files) == 0 {
			continue
		}
		release := Release{Version: version, Yanked: true}
		for _, file := range files {
			if release.UploadedAt.IsZero() || file.UploadTime.Before(release.UploadedAt) {
				release.UploadedAt = file.UploadTime
			}
			// a release counts as yanked only when every file is
			if file.Yanked {
				if release.YankedReason == "" {
					release.YankedReason = file.YankedReason
				}
			} else {
				release.Yanked = false
			}
		}
		if !release.Yanked {
			release.YankedReason = ""
		}
		project.Releases = append(project.Releases, release)
	}
	sortReleases(project.Releases)

	return project, nil
}

// Lookup returns project metadata for name, consulting the in-process
// cache first. When the JSON API fails for anything other than a
// missing package, the simple index is tried before giving up.
func (c Client) Lookup(ctx context.Context, name string) (*Project, error) {
	canonical := requirements.NormalizeName(name)
	if cached, ok := c.cache.Get(canonical); ok {
		return cached, nil
	}

	project, err := c.Project(ctx, name)
	if errors.Is(err, ErrNotFound) {
		return nil, err
	}
	if err != nil {
		slog.WarnContext(
			ctx, "json api lookup failed, trying simple index",
			"package", canonical, "err", err,
		)
		project, err = c.SimpleIndex(ctx, name)
		if err != nil {
			return nil, err
		}
	}

	c.cache.Add(canonical, project)
	return project, nil
}

func sortReleases(releases []Release) {
	sort.SliceStable(releases, func(i, j int) bool {
		a, errA := requirements.ParseVersion(releases[i].Version)
		b, errB := requirements.ParseVersion(releases[j].Version)
		if errA != nil || errB != nil {
			return releases[i].Version > releases[j].Version
		}
		return a.Compare(b) > 0
	})
}

// Suggest returns the known package name closest to name, or "" when
// nothing is similar enough to be a plausible misspelling.
func Suggest(name string, known []string) string {
	canonical := requirements.NormalizeName(name)
	best := ""
	bestScore := 0.85
	for _, candidate := range known {
		candidateCanonical := requirements.NormalizeName(candidate)
		if candidateCanonical == canonical {
			continue
		}
		score := matchr.JaroWinkler(canonical, candidateCanonical, false)
		if score > bestScore {
			best = candidateCanonical
			bestScore = score
		}
	}
	return best
}

// Package registry exposes live package index metadata, release
// history and known vulnerabilities for single packages.
package registry

import (
	"context"
	"fmt"

	"github.com/DoguKody/depradar/lib/osv"
	"github.com/DoguKody/depradar/lib/pypi"
	"github.com/DoguKody/depradar/lib/requirements"
	"github.com/DoguKody/depradar/lib/telemetry"

	"go.opentelemetry.io/otel/codes"
)

var tracer = telemetry.Tracer("depradar.services.registry")

var ErrInvalidName = fmt.Errorf("not a valid package name")

type Service struct {
	pypi pypi.Client
	osv  osv.Client
}

func NewService(pypiClient pypi.Client, osvClient osv.Client) Service {
	return Service{
		pypi: pypiClient,
		osv:  osvClient,
	}
}

type PackageView struct {
	Name           string         `json:"name"`
	Summary        string         `json:"summary,omitempty"`
	Latest         string         `json:"latest"`
	RequiresPython string         `json:"requires_python,omitempty"`
	Homepage       string         `json:"homepage,omitempty"`
	Releases       []pypi.Release `json:"releases"`
	// Vulnerabilities known for the latest stable release.
	Vulnerabilities []osv.Vulnerability `json:"vulnerabilities"`
}

// GetPackage resolves a package against the index and checks its
// latest stable release against the vulnerability database.
func (s Service) GetPackage(ctx context.Context, name string) (PackageView, error) {
	ctx, span := tracer.Start(ctx, "GetPackage")
	defer span.End()

	if !requirements.IsValidName(name) {
		return PackageView{}, fmt.Errorf("%q: %w", name, ErrInvalidName)
	}

	project, err := s.pypi.Lookup(ctx, name)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "index lookup failed")
		return PackageView{}, err
	}

	view := PackageView{
		Name:            project.Name,
		Summary:         project.Summary,
		Latest:          project.Latest,
		RequiresPython:  project.RequiresPython,
		Homepage:        project.Homepage,
		Releases:        project.Releases,
		Vulnerabilities: []osv.Vulnerability{},
	}

	latest, ok := project.LatestRelease()
	if !ok {
		return view, nil
	}
	vulnerabilities, err := s.osv.Query(ctx, project.Name, latest.Version)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "vulnerability lookup failed")
		return PackageView{}, err
	}
	view.Vulnerabilities = vulnerabilities

	return view, nil
}

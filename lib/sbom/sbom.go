// Package sbom renders manifest sets as CycloneDX bills of materials.
package sbom

import (
	"fmt"
	"sort"
	"time"

	"github.com/DoguKody/depradar/lib/requirements"

	"github.com/google/uuid"
)

const (
	bomFormat   = "CycloneDX"
	specVersion = "1.4"
	toolVersion = "1.0.0"
)

type Document struct {
	BomFormat    string      `json:"bomFormat"`
	SpecVersion  string      `json:"specVersion"`
	SerialNumber string      `json:"serialNumber"`
	Version      int         `json:"version"`
	Metadata     Metadata    `json:"metadata"`
	Components   []Component `json:"components"`
}

type Metadata struct {
	Timestamp time.Time `json:"timestamp"`
	Tools     []Tool    `json:"tools"`
}

type Tool struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type Component struct {
	Type       string     `json:"type"`
	Name       string     `json:"name"`
	Version    string     `json:"version,omitempty"`
	Purl       string     `json:"purl,omitempty"`
	Properties []Property `json:"properties,omitempty"`
}

type Property struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Build collapses the given manifests into one component list. A
// package appearing in several files becomes a single component; the
// first pinned occurrence decides its version. Malformed lines are the
// linter's concern and are skipped here.
func Build(files []requirements.File) Document {
	byName := map[string]*Component{}
	names := []string{}

	for _, file := range files {
		for _, spec := range file.Specifiers() {
			component := byName[spec.Canonical]
			if component == nil {
				component = &Component{
					Type: "library",
					Name: spec.Canonical,
				}
				byName[spec.Canonical] = component
				names = append(names, spec.Canonical)
			}

			version, pinned := spec.Pinned()
			if pinned && component.Version == "" {
				component.Version = version
			}
			component.Properties = appendProperty(component.Properties, Property{
				Name:  "depradar:manifest",
				Value: file.Name,
			})
			if !pinned && len(spec.Constraints) > 0 {
				component.Properties = appendProperty(component.Properties, Property{
					Name:  "depradar:constraint",
					Value: spec.String(),
				})
			}
		}
	}

	sort.Strings(names)
	components := make([]Component, 0, len(names))
	for _, name := range names {
		component := byName[name]
		if component.Version == "" {
			component.Purl = "pkg:pypi/" + component.Name
		} else {
			component.Purl = fmt.Sprintf("pkg:pypi/%s@%s", component.Name, component.Version)
		}
		components = append(components, *component)
	}

	return Document{
		BomFormat:    bomFormat,
		SpecVersion:  specVersion,
		SerialNumber: "urn:uuid:" + uuid.NewString(),
		Version:      1,
		Metadata: Metadata{
			Timestamp: time.Now().UTC(),
			Tools:     []Tool{{Name: "depradar", Version: toolVersion}},
		},
		Components: components,
	}
}

func appendProperty(properties []Property, p Property) []Property {
	for _, existing := range properties {
		if existing == p {
			return properties
		}
	}
	return append(properties, p)
}

package sbom

import (
	"strings"
	"testing"

	"github.com/DoguKody/depradar/lib/requirements"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, name, text string) requirements.File {
	file, err := requirements.Parse(name, strings.NewReader(text))
	require.NoError(t, err)
	return file
}

func TestBuild(t *testing.T) {
	base := mustParse(t, "requirements.txt", `
requests==2.31.0
pandas==2.1.4
boto3>=1.34
lxml
`)
	composer := mustParse(t, "requirements-composer.txt", `
pandas==2.1.4
Apache-Airflow==2.9.1
`)

	doc := Build([]requirements.File{base, composer})

	require.Equal(t, "CycloneDX", doc.BomFormat)
	require.Equal(t, "1.4", doc.SpecVersion)
	require.True(t, strings.HasPrefix(doc.SerialNumber, "urn:uuid:"))
	require.Equal(t, 1, doc.Version)
	require.False(t, doc.Metadata.Timestamp.IsZero())
	require.Equal(t, []Tool{{Name: "depradar", Version: "1.0.0"}}, doc.Metadata.Tools)

	expected := []Component{
		{
			Type:    "library",
			Name:    "apache-airflow",
			Version: "2.9.1",
			Purl:    "pkg:pypi/apache-airflow@2.9.1",
			Properties: []Property{
				{Name: "depradar:manifest", Value: "requirements-composer.txt"},
			},
		},
		{
			Type: "library",
			Name: "boto3",
			Purl: "pkg:pypi/boto3",
			Properties: []Property{
				{Name: "depradar:manifest", Value: "requirements.txt"},
				{Name: "depradar:constraint", Value: "boto3>=1.34"},
			},
		},
		{
			Type: "library",
			Name: "lxml",
			Purl: "pkg:pypi/lxml",
			Properties: []Property{
				{Name: "depradar:manifest", Value: "requirements.txt"},
			},
		},
		{
			Type:    "library",
			Name:    "pandas",
			Version: "2.1.4",
			Purl:    "pkg:pypi/pandas@2.1.4",
			Properties: []Property{
				{Name: "depradar:manifest", Value: "requirements.txt"},
				{Name: "depradar:manifest", Value: "requirements-composer.txt"},
			},
		},
		{
			Type:    "library",
			Name:    "requests",
			Version: "2.31.0",
			Purl:    "pkg:pypi/requests@2.31.0",
			Properties: []Property{
				{Name: "depradar:manifest", Value: "requirements.txt"},
			},
		},
	}
	diff := cmp.Diff(expected, doc.Components)
	if diff != "" {
		t.Fatal(diff)
	}
}

func TestBuildSkipsMalformedLines(t *testing.T) {
	file := mustParse(t, "requirements.txt", `
requests==2.31.0
pandas==2.1.&
`)

	doc := Build([]requirements.File{file})
	require.Len(t, doc.Components, 1)
	require.Equal(t, "requests", doc.Components[0].Name)
}

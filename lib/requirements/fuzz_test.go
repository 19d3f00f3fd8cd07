package requirements

import (
	"strings"
	"testing"
)

// FuzzParseSpecifier feeds the specifier parser random and malformed
// lines. Parsing may fail, it must never panic, and anything that
// parses has to survive a format round trip.
//
// Run with: go test -fuzz=FuzzParseSpecifier -fuzztime=30s
func FuzzParseSpecifier(f *testing.F) {
	f.Add("requests")
	f.Add("requests==2.31.0")
	f.Add("pandas>=2.0,<3")
	f.Add("Apache-Airflow==2.9.1")
	f.Add("prophet~=1.1")
	f.Add("lxml===5.2.1.weird")
	f.Add("numpy==1.26.*")
	f.Add("")
	f.Add("==1.0")
	f.Add("name==")
	f.Add("name ==  1.0 , <2.0")
	f.Add("-not-a-name==1.0")

	f.Fuzz(func(t *testing.T, line string) {
		spec, err := ParseSpecifier(line)
		if err != nil {
			return
		}

		if spec.Name == "" {
			t.Fatalf("parsed %q into a specifier without a name", line)
		}
		if spec.Canonical != NormalizeName(spec.Name) {
			t.Fatalf(
				"canonical %q does not match normalized name %q",
				spec.Canonical, NormalizeName(spec.Name),
			)
		}

		again, err := ParseSpecifier(spec.String())
		if err != nil {
			t.Fatalf("formatted specifier %q does not parse back: %v", spec.String(), err)
		}
		if again.Canonical != spec.Canonical {
			t.Fatalf("round trip changed canonical name: %q -> %q", spec.Canonical, again.Canonical)
		}
		if len(again.Constraints) != len(spec.Constraints) {
			t.Fatalf(
				"round trip changed constraint count for %q: %d -> %d",
				line, len(spec.Constraints), len(again.Constraints),
			)
		}
	})
}

// FuzzParseVersion checks that version parsing never panics and that
// parsed versions compare equal to themselves after a string round
// trip.
func FuzzParseVersion(f *testing.F) {
	f.Add("1.0")
	f.Add("2.31.0")
	f.Add("1!2.0.post1.dev3")
	f.Add("1.1.5rc1")
	f.Add("2.9.1+local.7")
	f.Add("0")
	f.Add("...")
	f.Add("v1.0")
	f.Add(strings.Repeat("1.", 100))

	f.Fuzz(func(t *testing.T, text string) {
		v, err := ParseVersion(text)
		if err != nil {
			return
		}

		again, err := ParseVersion(v.String())
		if err != nil {
			t.Fatalf("rendered version %q does not parse back: %v", v.String(), err)
		}
		if v.Compare(again) != 0 {
			t.Fatalf("version %q does not compare equal to its round trip %q", text, v.String())
		}
		if again.Compare(v) != 0 {
			t.Fatalf("comparison of %q is not symmetric", text)
		}
	})
}

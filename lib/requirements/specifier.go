package requirements

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	OpEqual        = "=="
	OpNotEqual     = "!="
	OpLessEqual    = "<="
	OpGreaterEqual = ">="
	OpLess         = "<"
	OpGreater      = ">"
	OpCompatible   = "~="
	OpArbitrary    = "==="
)

// operators is ordered longest first so that "===" is not read as "=="
// followed by "=".
var operators = []string{OpArbitrary, OpEqual, OpNotEqual, OpLessEqual, OpGreaterEqual, OpCompatible, OpLess, OpGreater}

var (
	nameRegex     = regexp.MustCompile(`^[A-Za-z0-9](?:[A-Za-z0-9._-]*[A-Za-z0-9])?`)
	nameOnlyRegex = regexp.MustCompile(`^[A-Za-z0-9](?:[A-Za-z0-9._-]*[A-Za-z0-9])?$`)
	separatorRuns = regexp.MustCompile(`[-_.]+`)
)

// NormalizeName canonicalizes a package name the way the index does:
// lowercased, with every run of dots, dashes and underscores collapsed
// to a single dash. "Apache_Airflow" and "apache-airflow" identify the
// same package.
func NormalizeName(name string) string {
	return separatorRuns.ReplaceAllString(strings.ToLower(name), "-")
}

// IsValidName reports whether name is acceptable as a package name on
// its own: it must start and end with an alphanumeric character.
func IsValidName(name string) bool {
	return nameOnlyRegex.MatchString(name)
}

// Constraint is a single version clause such as ">=2.1.0". For the
// arbitrary-equality operator "===" only Raw is meaningful, the clause
// compares by literal string. A trailing ".*" on an equality clause
// turns it into a prefix match and sets Prefix.
type Constraint struct {
	Op      string
	Raw     string
	Version Version
	Prefix  bool
}

func (c Constraint) String() string {
	return c.Op + c.Raw
}

// Match reports whether the given version satisfies the clause.
func (c Constraint) Match(v Version) bool {
	switch c.Op {
	case OpArbitrary:
		return strings.EqualFold(strings.TrimSpace(c.Raw), v.String())
	case OpEqual:
		if c.Prefix {
			return matchPrefix(v, c.Version)
		}
		return stripLocalUnlessPinned(v, c.Version).Compare(c.Version) == 0
	case OpNotEqual:
		if c.Prefix {
			return !matchPrefix(v, c.Version)
		}
		return stripLocalUnlessPinned(v, c.Version).Compare(c.Version) != 0
	case OpLessEqual:
		return stripLocal(v).Compare(c.Version) <= 0
	case OpGreaterEqual:
		return stripLocal(v).Compare(c.Version) >= 0
	case OpLess:
		return stripLocal(v).Compare(c.Version) < 0
	case OpGreater:
		return stripLocal(v).Compare(c.Version) > 0
	case OpCompatible:
		lower := Constraint{Op: OpGreaterEqual, Version: c.Version}
		upper := Constraint{Op: OpLess, Version: compatibleUpperBound(c.Version)}
		return lower.Match(v) && upper.Match(v)
	}
	return false
}

// matchPrefix implements "==X.Y.*": the candidate belongs to the same
// epoch and its release starts with the stated segments.
func matchPrefix(v Version, base Version) bool {
	if v.Epoch != base.Epoch {
		return false
	}
	release := v.Release
	for len(release) < len(base.Release) {
		release = append(release, 0)
	}
	for i, segment := range base.Release {
		if release[i] != segment {
			return false
		}
	}
	return true
}

// stripLocalUnlessPinned drops the candidate's local label when the
// clause itself has none, so "==1.0" accepts "1.0+cpu" while
// "==1.0+cpu" stays exact.
func stripLocalUnlessPinned(v Version, base Version) Version {
	if base.Local == "" {
		return stripLocal(v)
	}
	return v
}

func stripLocal(v Version) Version {
	v.Local = ""
	return v
}

// compatibleUpperBound computes the exclusive upper limit implied by
// "~=": the second-to-last release segment bumped by one, so ~=1.4.5
// allows everything below 1.5 and ~=2.2 everything below 3.
func compatibleUpperBound(v Version) Version {
	release := append([]int{}, v.Release[:len(v.Release)-1]...)
	release[len(release)-1]++
	return Version{Epoch: v.Epoch, Release: release}
}

// Specifier is one requirement: a package name plus zero or more
// version clauses. Canonical is the normalized form of Name and is what
// every cross-file comparison keys on. File and Line point back at the
// manifest the specifier came from and are zero for standalone parses.
type Specifier struct {
	Name        string
	Canonical   string
	Constraints []Constraint
	File        string
	Line        int
}

func (s Specifier) String() string {
	parts := make([]string, len(s.Constraints))
	for i, c := range s.Constraints {
		parts[i] = c.String()
	}
	return s.Name + strings.Join(parts, ",")
}

// Allows reports whether the version satisfies every clause of the
// specifier. A bare name allows everything.
func (s Specifier) Allows(v Version) bool {
	for _, c := range s.Constraints {
		if !c.Match(v) {
			return false
		}
	}
	return true
}

// Pinned returns the exactly pinned version text, if the specifier has
// an "==" or "===" clause without a prefix wildcard.
func (s Specifier) Pinned() (string, bool) {
	for _, c := range s.Constraints {
		if c.Prefix {
			continue
		}
		if c.Op == OpEqual || c.Op == OpArbitrary {
			return strings.TrimSpace(c.Raw), true
		}
	}
	return "", false
}

// ParseSpecifier parses a single requirement line such as
// "pandas>=1.3.0,<3" or a bare "boto3". Inline comments are stripped
// first. Errors mention the byte offset of the offending part.
func ParseSpecifier(line string) (Specifier, error) {
	text, _ := splitInlineComment(line)
	text = strings.TrimRight(text, " \t")

	trimmed := strings.TrimLeft(text, " \t")
	offset := len(text) - len(trimmed)
	if trimmed == "" {
		return Specifier{}, fmt.Errorf("empty specifier")
	}

	name := nameRegex.FindString(trimmed)
	if name == "" {
		return Specifier{}, fmt.Errorf("col %d: expected a package name, got %q", offset+1, firstToken(trimmed))
	}
	spec := Specifier{
		Name:      name,
		Canonical: NormalizeName(name),
	}

	rest := trimmed[len(name):]
	offset += len(name)
	if strings.TrimSpace(rest) == "" {
		return spec, nil
	}
	if lead := rest[0]; lead != ' ' && lead != '\t' && !isOperatorStart(lead) && lead != ',' {
		return Specifier{}, fmt.Errorf("col %d: unexpected character %q after package name", offset+1, rest[0])
	}

	for _, clause := range strings.Split(rest, ",") {
		constraint, err := parseConstraint(clause, offset)
		if err != nil {
			return Specifier{}, err
		}
		spec.Constraints = append(spec.Constraints, constraint)
		offset += len(clause) + 1
	}
	return spec, nil
}

func parseConstraint(clause string, offset int) (Constraint, error) {
	trimmed := strings.TrimLeft(clause, " \t")
	col := offset + len(clause) - len(trimmed) + 1
	if trimmed == "" {
		return Constraint{}, fmt.Errorf("col %d: empty version clause", col)
	}

	var op string
	for _, candidate := range operators {
		if strings.HasPrefix(trimmed, candidate) {
			op = candidate
			break
		}
	}
	if op == "" {
		return Constraint{}, fmt.Errorf("col %d: expected a version operator, got %q", col, firstToken(trimmed))
	}

	raw := strings.TrimSpace(trimmed[len(op):])
	if raw == "" {
		return Constraint{}, fmt.Errorf("col %d: missing version after %q", col, op)
	}
	constraint := Constraint{Op: op, Raw: raw}

	if op == OpArbitrary {
		return constraint, nil
	}

	versionText := raw
	if strings.HasSuffix(raw, ".*") {
		if op != OpEqual && op != OpNotEqual {
			return Constraint{}, fmt.Errorf("col %d: %q does not support a .* suffix", col, op)
		}
		constraint.Prefix = true
		versionText = strings.TrimSuffix(raw, ".*")
	}

	version, err := ParseVersion(versionText)
	if err != nil {
		return Constraint{}, fmt.Errorf("col %d: %w", col, err)
	}
	if constraint.Prefix && (version.Local != "" || version.Dev != nil) {
		return Constraint{}, fmt.Errorf("col %d: %q cannot combine a .* suffix with dev or local segments", col, raw)
	}
	if op == OpCompatible {
		if len(version.Release) < 2 {
			return Constraint{}, fmt.Errorf("col %d: %q needs at least two release segments", col, OpCompatible+raw)
		}
		if version.Local != "" {
			return Constraint{}, fmt.Errorf("col %d: %q does not allow a local label", col, OpCompatible+raw)
		}
	}
	constraint.Version = version
	return constraint, nil
}

func isOperatorStart(c byte) bool {
	return c == '=' || c == '!' || c == '<' || c == '>' || c == '~'
}

func firstToken(text string) string {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return text
	}
	return fields[0]
}

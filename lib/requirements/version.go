package requirements

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// versionRegex accepts the release scheme used on PyPI: an optional
// epoch, a dotted release, then optional pre/post/dev segments and an
// optional local label.
var versionRegex = regexp.MustCompile(`(?i)^\s*v?` +
	`(?:(?P<epoch>[0-9]+)!)?` +
	`(?P<release>[0-9]+(?:\.[0-9]+)*)` +
	`(?P<pre>[-_.]?(?:a|b|c|rc|alpha|beta|pre|preview)[-_.]?[0-9]*)?` +
	`(?P<post>-[0-9]+|[-_.]?(?:post|rev|r)[-_.]?[0-9]*)?` +
	`(?P<dev>[-_.]?dev[-_.]?[0-9]*)?` +
	`(?:\+(?P<local>[a-z0-9]+(?:[-_.][a-z0-9]+)*))?` +
	`\s*$`)

type PreRelease struct {
	// Phase is "a", "b" or "rc" after normalizing the spelled-out
	// aliases (alpha, beta, pre, preview).
	Phase  string
	Number int
}

// Version is a parsed package version. The zero value is not a valid
// version, always construct one through ParseVersion.
type Version struct {
	Epoch   int
	Release []int
	Pre     *PreRelease
	Post    *int
	Dev     *int
	Local   string

	raw string
}

func ParseVersion(text string) (Version, error) {
	match := versionRegex.FindStringSubmatch(text)
	if match == nil {
		return Version{}, fmt.Errorf("invalid version %q", text)
	}
	groups := make(map[string]string)
	for i, name := range versionRegex.SubexpNames() {
		if name != "" {
			groups[name] = match[i]
		}
	}

	v := Version{raw: strings.TrimSpace(text)}

	if groups["epoch"] != "" {
		epoch, err := strconv.Atoi(groups["epoch"])
		if err != nil {
			return Version{}, fmt.Errorf("invalid epoch in %q: %w", text, err)
		}
		v.Epoch = epoch
	}

	for _, segment := range strings.Split(groups["release"], ".") {
		n, err := strconv.Atoi(segment)
		if err != nil {
			return Version{}, fmt.Errorf("invalid release segment in %q: %w", text, err)
		}
		v.Release = append(v.Release, n)
	}

	if groups["pre"] != "" {
		phase, number := splitLetterNumber(groups["pre"])
		switch phase {
		case "alpha":
			phase = "a"
		case "beta":
			phase = "b"
		case "c", "pre", "preview":
			phase = "rc"
		}
		v.Pre = &PreRelease{Phase: phase, Number: number}
	}

	if groups["post"] != "" {
		var number int
		if strings.HasPrefix(groups["post"], "-") {
			n, err := strconv.Atoi(groups["post"][1:])
			if err != nil {
				return Version{}, fmt.Errorf("invalid post release in %q: %w", text, err)
			}
			number = n
		} else {
			_, number = splitLetterNumber(groups["post"])
		}
		v.Post = &number
	}

	if groups["dev"] != "" {
		_, number := splitLetterNumber(groups["dev"])
		v.Dev = &number
	}

	v.Local = strings.ToLower(groups["local"])

	return v, nil
}

func MustParseVersion(text string) Version {
	v, err := ParseVersion(text)
	if err != nil {
		panic(err)
	}
	return v
}

// splitLetterNumber takes a segment like ".rc1", "_post", "dev3" and
// returns the lowercased letter part and the trailing number, which
// defaults to zero when absent.
func splitLetterNumber(segment string) (string, int) {
	segment = strings.ToLower(strings.Trim(segment, "-_."))
	letter := strings.TrimRight(segment, "0123456789")
	rest := segment[len(letter):]
	if rest == "" {
		return letter, 0
	}
	number, err := strconv.Atoi(rest)
	if err != nil {
		return letter, 0
	}
	return letter, number
}

// String returns the version as it was written.
func (v Version) String() string {
	return v.raw
}

func (v Version) IsPrerelease() bool {
	return v.Pre != nil || v.Dev != nil
}

// Compare returns -1, 0 or 1 depending on how v orders against o.
// Trailing zeros in the release never matter, so 1.0 == 1.0.0, and the
// pre/post/dev segments order the way pip installs them: 1.0.dev1 <
// 1.0a1 < 1.0 < 1.0.post1.
func (v Version) Compare(o Version) int {
	if v.Epoch != o.Epoch {
		return compareInt(v.Epoch, o.Epoch)
	}
	if c := compareRelease(v.Release, o.Release); c != 0 {
		return c
	}
	if c := comparePre(v, o); c != 0 {
		return c
	}
	if c := compareOptional(v.Post, o.Post, -1); c != 0 {
		return c
	}
	if c := compareOptional(v.Dev, o.Dev, 1); c != 0 {
		return c
	}
	return compareLocal(v.Local, o.Local)
}

func compareInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func compareRelease(a, b []int) int {
	a = trimTrailingZeros(a)
	b = trimTrailingZeros(b)
	for i := 0; i < len(a) && i < len(b); i++ {
		if c := compareInt(a[i], b[i]); c != 0 {
			return c
		}
	}
	return compareInt(len(a), len(b))
}

func trimTrailingZeros(release []int) []int {
	end := len(release)
	for end > 1 && release[end-1] == 0 {
		end--
	}
	return release[:end]
}

// comparePre ranks the pre-release segment. A version with neither pre
// nor post but a dev segment sits below every pre-release of the same
// release, a version without any pre-release sits above all of them.
func comparePre(a, b Version) int {
	rank := func(v Version) int {
		if v.Pre == nil && v.Post == nil && v.Dev != nil {
			return -1
		}
		if v.Pre == nil {
			return 1
		}
		return 0
	}
	ra, rb := rank(a), rank(b)
	if ra != rb {
		return compareInt(ra, rb)
	}
	if ra != 0 {
		return 0
	}
	if c := strings.Compare(a.Pre.Phase, b.Pre.Phase); c != 0 {
		return c
	}
	return compareInt(a.Pre.Number, b.Pre.Number)
}

// compareOptional orders optional numeric segments. missingRank places
// the absent side: post releases sort after the bare version (absent is
// lowest) while dev releases sort before it (absent is highest).
func compareOptional(a, b *int, missingRank int) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return compareInt(missingRank, 0)
	case b == nil:
		return compareInt(0, missingRank)
	default:
		return compareInt(*a, *b)
	}
}

func compareLocal(a, b string) int {
	switch {
	case a == "" && b == "":
		return 0
	case a == "":
		return -1
	case b == "":
		return 1
	}
	as := strings.FieldsFunc(a, func(r rune) bool { return r == '.' || r == '-' || r == '_' })
	bs := strings.FieldsFunc(b, func(r rune) bool { return r == '.' || r == '-' || r == '_' })
	for i := 0; i < len(as) && i < len(bs); i++ {
		an, aerr := strconv.Atoi(as[i])
		bn, berr := strconv.Atoi(bs[i])
		switch {
		case aerr == nil && berr == nil:
			if c := compareInt(an, bn); c != 0 {
				return c
			}
		case aerr == nil:
			return 1
		case berr == nil:
			return -1
		default:
			if c := strings.Compare(as[i], bs[i]); c != 0 {
				return c
			}
		}
	}
	return compareInt(len(as), len(bs))
}

package lint

import (
	"fmt"
	"strings"

	"github.com/DoguKody/depradar/lib/requirements"
)

type conflict struct {
	file    string
	line    int
	message string
}

type clause struct {
	spec       requirements.Specifier
	constraint requirements.Constraint
}

func (c clause) ref() string {
	if c.spec.File == "" {
		return c.constraint.String()
	}
	return fmt.Sprintf("%s (%s:%d)", c.constraint.String(), c.spec.File, c.spec.Line)
}

type boundary struct {
	clause
	version   requirements.Version
	inclusive bool
}

// unsatisfiable reports whether the constraints collected for one
// package rule out every version. It understands exact pins, ordered
// bounds, "~=" ranges, "==X.Y.*" prefix pins and "!=" exclusions. A
// "===" clause whose text is not a parseable version is compared by
// string against other pins and otherwise left alone.
func unsatisfiable(specs []requirements.Specifier) (conflict, bool) {
	var pins []clause
	var others []clause
	var lowers []boundary
	var uppers []boundary

	for _, spec := range specs {
		for _, constraint := range spec.Constraints {
			cl := clause{spec: spec, constraint: constraint}
			switch {
			case constraint.Op == requirements.OpArbitrary:
				pins = append(pins, cl)
			case constraint.Op == requirements.OpEqual && !constraint.Prefix:
				pins = append(pins, cl)
			case constraint.Op == requirements.OpEqual && constraint.Prefix:
				others = append(others, cl)
				lowers = append(lowers, boundary{clause: cl, version: constraint.Version, inclusive: true})
				uppers = append(uppers, boundary{clause: cl, version: bumpLastSegment(constraint.Version), inclusive: false})
			case constraint.Op == requirements.OpCompatible:
				others = append(others, cl)
				lowers = append(lowers, boundary{clause: cl, version: constraint.Version, inclusive: true})
				uppers = append(uppers, boundary{clause: cl, version: bumpSecondToLast(constraint.Version), inclusive: false})
			case constraint.Op == requirements.OpGreaterEqual:
				others = append(others, cl)
				lowers = append(lowers, boundary{clause: cl, version: constraint.Version, inclusive: true})
			case constraint.Op == requirements.OpGreater:
				others = append(others, cl)
				lowers = append(lowers, boundary{clause: cl, version: constraint.Version, inclusive: false})
			case constraint.Op == requirements.OpLessEqual:
				others = append(others, cl)
				uppers = append(uppers, boundary{clause: cl, version: constraint.Version, inclusive: true})
			case constraint.Op == requirements.OpLess:
				others = append(others, cl)
				uppers = append(uppers, boundary{clause: cl, version: constraint.Version, inclusive: false})
			default:
				others = append(others, cl)
			}
		}
	}

	if c, ok := conflictingPins(pins); ok {
		return c, true
	}
	if c, ok := pinOutsideConstraints(pins, others); ok {
		return c, true
	}
	if len(pins) == 0 {
		if c, ok := emptyRange(lowers, uppers, others); ok {
			return c, true
		}
	}
	return conflict{}, false
}

// conflictingPins finds two exact pins that cannot name the same
// version. Parseable pins compare by version so "==1.0" and "===1.0.0"
// agree, everything else falls back to the literal text.
func conflictingPins(pins []clause) (conflict, bool) {
	for i := 0; i < len(pins); i++ {
		for j := i + 1; j < len(pins); j++ {
			a, b := pins[i], pins[j]
			av, aerr := requirements.ParseVersion(a.constraint.Raw)
			bv, berr := requirements.ParseVersion(b.constraint.Raw)

			same := false
			if aerr == nil && berr == nil {
				same = av.Compare(bv) == 0
			} else {
				same = strings.EqualFold(strings.TrimSpace(a.constraint.Raw), strings.TrimSpace(b.constraint.Raw))
			}
			if same {
				continue
			}
			return conflict{
				file: b.spec.File,
				line: b.spec.Line,
				message: fmt.Sprintf(
					"pinned to both %s and %s",
					a.ref(), b.ref(),
				),
			}, true
		}
	}
	return conflict{}, false
}

// pinOutsideConstraints checks every exact pin against every other
// clause of the same package.
func pinOutsideConstraints(pins []clause, others []clause) (conflict, bool) {
	for _, pin := range pins {
		version, err := requirements.ParseVersion(pin.constraint.Raw)
		if err != nil {
			continue
		}
		for _, other := range others {
			if other.constraint.Match(version) {
				continue
			}
			return conflict{
				file: other.spec.File,
				line: other.spec.Line,
				message: fmt.Sprintf(
					"pin %s violates %s",
					pin.ref(), other.ref(),
				),
			}, true
		}
	}
	return conflict{}, false
}

// emptyRange reports a conflict when the strongest lower bound clears
// the weakest upper bound, or when the range narrows to a single
// version that an exclusion then removes.
func emptyRange(lowers, uppers []boundary, others []clause) (conflict, bool) {
	if len(lowers) == 0 || len(uppers) == 0 {
		return conflict{}, false
	}

	maxLower := lowers[0]
	for _, b := range lowers[1:] {
		c := b.version.Compare(maxLower.version)
		if c > 0 || (c == 0 && !b.inclusive) {
			maxLower = b
		}
	}
	minUpper := uppers[0]
	for _, b := range uppers[1:] {
		c := b.version.Compare(minUpper.version)
		if c < 0 || (c == 0 && !b.inclusive) {
			minUpper = b
		}
	}

	c := maxLower.version.Compare(minUpper.version)
	if c > 0 || (c == 0 && !(maxLower.inclusive && minUpper.inclusive)) {
		return conflict{
			file: minUpper.spec.File,
			line: minUpper.spec.Line,
			message: fmt.Sprintf(
				"no version satisfies both %s and %s",
				maxLower.ref(), minUpper.ref(),
			),
		}, true
	}

	if c == 0 {
		// The range admits exactly one version, make sure no "!="
		// clause shoots it down.
		for _, other := range others {
			if other.constraint.Op != requirements.OpNotEqual {
				continue
			}
			if other.constraint.Match(maxLower.version) {
				continue
			}
			return conflict{
				file: other.spec.File,
				line: other.spec.Line,
				message: fmt.Sprintf(
					"%s and %s only admit %s, which %s excludes",
					maxLower.ref(), minUpper.ref(), maxLower.version, other.ref(),
				),
			}, true
		}
	}
	return conflict{}, false
}

func bumpLastSegment(v requirements.Version) requirements.Version {
	release := append([]int{}, v.Release...)
	release[len(release)-1]++
	return requirements.Version{Epoch: v.Epoch, Release: release}
}

func bumpSecondToLast(v requirements.Version) requirements.Version {
	release := append([]int{}, v.Release[:len(v.Release)-1]...)
	release[len(release)-1]++
	return requirements.Version{Epoch: v.Epoch, Release: release}
}

// Package versioning parses and orders the semantic versions carried by catalog
// descriptors and ledger records.
package versioning

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"golang.org/x/mod/semver"
)

// Comparison is the ordering of two versions.
type Comparison int

const (
	ComparisonUnknown Comparison = iota
	ComparisonLess
	ComparisonEqual
	ComparisonGreater
)

func (c Comparison) String() string {
	switch c {
	case ComparisonLess:
		return "less"
	case ComparisonEqual:
		return "equal"
	case ComparisonGreater:
		return "greater"
	default:
		return "unknown"
	}
}

// Full MAJOR.MINOR.PATCH is required; the "v1" and "v1.2" shorthands that
// x/mod/semver tolerates are rejected so manifests stay unambiguous.
var semverPattern = regexp.MustCompile(`^(?:[vV])?(0|[1-9]\d*)\.(0|[1-9]\d*)\.(0|[1-9]\d*)(?:-([0-9A-Za-z.-]+))?(?:\+([0-9A-Za-z.-]+))?$`)

// Normalize validates v and returns its canonical "vMAJOR.MINOR.PATCH[-pre]" form.
func Normalize(v string) (string, error) {
	s := strings.TrimSpace(v)
	if s == "" {
		return "", fmt.Errorf("version cannot be empty")
	}
	if !semverPattern.MatchString(s) {
		return "", fmt.Errorf("invalid semver '%s'", v)
	}
	if s[0] == 'V' {
		s = "v" + s[1:]
	} else if s[0] != 'v' {
		s = "v" + s
	}
	if !semver.IsValid(s) {
		return "", fmt.Errorf("invalid semver '%s'", v)
	}
	return semver.Canonical(s), nil
}

// Valid reports whether v is a full semantic version.
func Valid(v string) bool {
	_, err := Normalize(v)
	return err == nil
}

// Compare orders a against b. Build metadata is ignored, prerelease versions
// sort before their release.
func Compare(a, b string) (Comparison, error) {
	na, err := Normalize(a)
	if err != nil {
		return ComparisonUnknown, err
	}
	nb, err := Normalize(b)
	if err != nil {
		return ComparisonUnknown, err
	}
	switch semver.Compare(na, nb) {
	case -1:
		return ComparisonLess, nil
	case 1:
		return ComparisonGreater, nil
	default:
		return ComparisonEqual, nil
	}
}

// IsNewer reports whether candidate is strictly greater than current.
func IsNewer(candidate, current string) (bool, error) {
	cmp, err := Compare(candidate, current)
	if err != nil {
		return false, err
	}
	return cmp == ComparisonGreater, nil
}

// InRange reports whether lower < v <= upper.
func InRange(v, lower, upper string) bool {
	lo, err := Compare(v, lower)
	if err != nil || lo != ComparisonGreater {
		return false
	}
	hi, err := Compare(v, upper)
	if err != nil {
		return false
	}
	return hi == ComparisonLess || hi == ComparisonEqual
}

// Sort orders versions ascending; invalid versions sort first, lexically.
func Sort(versions []string) {
	sort.SliceStable(versions, func(i, j int) bool {
		ni, ei := Normalize(versions[i])
		nj, ej := Normalize(versions[j])
		switch {
		case ei != nil && ej != nil:
			return versions[i] < versions[j]
		case ei != nil:
			return true
		case ej != nil:
			return false
		}
		return semver.Compare(ni, nj) < 0
	})
}

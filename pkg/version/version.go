package version

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Prerelease identifies the a/b tag carried by a prerelease version.
type Prerelease byte

const (
	// None marks a release version with no prerelease tag.
	None Prerelease = 0
	// Alpha sorts before Beta and before the equivalent release.
	Alpha Prerelease = 'a'
	// Beta sorts after Alpha, before the equivalent release.
	Beta Prerelease = 'b'
)

// Version is an immutable (major, minor, patch) triple with an optional
// prerelease tag and ordinal, per spec §3.
type Version struct {
	Major, Minor, Patch int
	Pre                 Prerelease
	Ordinal             int // only meaningful when Pre != None
}

var grammar = regexp.MustCompile(`^(\d{1,3})\.(\d{1,3})\.(\d{1,3})(?:([ab])(\d+))?$`)

// Parse accepts only the exact grammar in spec §4.1: it lowercases the
// input first, rejects a trailing "." and rejects the all-zero main
// triple 0.0.0. It does not reject leading zeros explicitly — the
// grammar's 1-3 digit rule makes "01" parse as 1, matching source intent.
func Parse(text string) (Version, bool) {
	text = strings.ToLower(strings.TrimSpace(text))
	if strings.HasSuffix(text, ".") {
		return Version{}, false
	}

	m := grammar.FindStringSubmatch(text)
	if m == nil {
		return Version{}, false
	}

	major, err1 := strconv.Atoi(m[1])
	minor, err2 := strconv.Atoi(m[2])
	patch, err3 := strconv.Atoi(m[3])
	if err1 != nil || err2 != nil || err3 != nil {
		return Version{}, false
	}
	if major > 999 || minor > 999 || patch > 999 {
		return Version{}, false
	}
	if major == 0 && minor == 0 && patch == 0 {
		return Version{}, false
	}

	v := Version{Major: major, Minor: minor, Patch: patch}

	if m[4] != "" {
		ordinal, err := strconv.Atoi(m[5])
		if err != nil || ordinal < 1 {
			return Version{}, false
		}
		switch m[4] {
		case "a":
			v.Pre = Alpha
		case "b":
			v.Pre = Beta
		}
		v.Ordinal = ordinal
	}

	return v, true
}

// IsPrerelease reports whether v carries an a/b tag.
func (v Version) IsPrerelease() bool {
	return v.Pre != None
}

// Format renders the canonical M.m.p[{a|b}N] textual form, such that
// Parse(Format(v)) == v for every valid Version.
func (v Version) Format() string {
	base := fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
	if v.Pre == None {
		return base
	}
	return fmt.Sprintf("%s%c%d", base, v.Pre, v.Ordinal)
}

func (v Version) String() string { return v.Format() }

// Compare implements the total order from spec §3: lexicographic on
// (major, minor, patch); a prerelease sorts before its equivalent
// release; Alpha sorts before Beta within prereleases; within the same
// tag, ordinals compare numerically.
//
// Returns -1, 0, or 1, matching sort.Interface-style comparators.
func Compare(a, b Version) int {
	if c := compareInt(a.Major, b.Major); c != 0 {
		return c
	}
	if c := compareInt(a.Minor, b.Minor); c != 0 {
		return c
	}
	if c := compareInt(a.Patch, b.Patch); c != 0 {
		return c
	}

	switch {
	case a.Pre == None && b.Pre == None:
		return 0
	case a.Pre == None:
		return 1 // release sorts after any prerelease of the same triple
	case b.Pre == None:
		return -1
	case a.Pre != b.Pre:
		if a.Pre == Alpha {
			return -1
		}
		return 1
	default:
		return compareInt(a.Ordinal, b.Ordinal)
	}
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

// Less reports whether a sorts strictly before b.
func Less(a, b Version) bool { return Compare(a, b) < 0 }

// Equal reports whether a and b denote the same version.
func Equal(a, b Version) bool { return Compare(a, b) == 0 }

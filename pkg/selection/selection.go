package selection

import (
	"fmt"
	"strings"

	"github.com/cuemby/pkgforge/pkg/version"
)

// comparator is one of the fixed comparison operators the grammar accepts.
type comparator string

const (
	cmpEQ    comparator = "="
	cmpGT    comparator = ">"
	cmpGE    comparator = ">="
	cmpLT    comparator = "<"
	cmpLE    comparator = "<="
	cmpTilde comparator = "~"
	cmpCaret comparator = "^"
)

// clauseKind distinguishes the three clause shapes the grammar supports.
type clauseKind int

const (
	kindComparator clauseKind = iota
	kindRange
	kindWildcard
)

// clause is a single selection term: a comparator applied to a version, an
// inclusive range, or a wildcard over major (or major.minor).
type clause struct {
	kind clauseKind

	cmp comparator
	v   version.Version

	lo, hi version.Version // kindRange

	major, minor int  // kindWildcard
	hasMinor     bool // true for "1.2.x", false for "1.x"
}

// Expr is a parsed selection expression: a union ("||") of clauses, any
// one of which being satisfied makes the whole expression match.
type Expr struct {
	clauses []clause
	text    string // original, for clauses the grammar round-trips losslessly via Format
}

// Parse parses a selection expression. It returns (false, zero Expr) on
// any grammar violation; spec §4.10 treats such strings as rejected at
// ingestion.
func Parse(text string) (Expr, bool) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return Expr{}, false
	}

	parts := strings.Split(trimmed, "||")
	clauses := make([]clause, 0, len(parts))
	for _, part := range parts {
		c, ok := parseClause(strings.TrimSpace(part))
		if !ok {
			return Expr{}, false
		}
		clauses = append(clauses, c)
	}

	return Expr{clauses: clauses}, true
}

func parseClause(s string) (clause, bool) {
	if s == "" {
		return clause{}, false
	}

	if strings.Contains(s, "-") && !strings.HasPrefix(s, "-") {
		segs := strings.SplitN(s, "-", 2)
		if len(segs) == 2 {
			lo, ok1 := version.Parse(strings.TrimSpace(segs[0]))
			hi, ok2 := version.Parse(strings.TrimSpace(segs[1]))
			if ok1 && ok2 {
				return clause{kind: kindRange, lo: lo, hi: hi}, true
			}
		}
	}

	if strings.HasSuffix(s, ".x") {
		base := strings.TrimSuffix(s, ".x")
		segs := strings.Split(base, ".")
		switch len(segs) {
		case 1:
			major, ok := parseComponent(segs[0])
			if !ok {
				return clause{}, false
			}
			return clause{kind: kindWildcard, major: major}, true
		case 2:
			major, ok1 := parseComponent(segs[0])
			minor, ok2 := parseComponent(segs[1])
			if !ok1 || !ok2 {
				return clause{}, false
			}
			return clause{kind: kindWildcard, major: major, minor: minor, hasMinor: true}, true
		}
		return clause{}, false
	}

	for _, cmp := range []comparator{cmpGE, cmpLE, cmpGT, cmpLT, cmpTilde, cmpCaret, cmpEQ} {
		if strings.HasPrefix(s, string(cmp)) {
			rest := strings.TrimSpace(strings.TrimPrefix(s, string(cmp)))
			v, ok := version.Parse(rest)
			if !ok {
				continue
			}
			return clause{kind: kindComparator, cmp: cmp, v: v}, true
		}
	}

	// bare version implies exact match
	if v, ok := version.Parse(s); ok {
		return clause{kind: kindComparator, cmp: cmpEQ, v: v}, true
	}

	return clause{}, false
}

func parseComponent(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, false
		}
		n = n*10 + int(r-'0')
	}
	return n, true
}

// Evaluate reports whether v satisfies e: at least one clause must match.
func Evaluate(e Expr, v version.Version) bool {
	for _, c := range e.clauses {
		if clauseMatches(c, v) {
			return true
		}
	}
	return false
}

func clauseMatches(c clause, v version.Version) bool {
	switch c.kind {
	case kindRange:
		return !version.Less(v, c.lo) && !version.Less(c.hi, v)
	case kindWildcard:
		if v.Major != c.major {
			return false
		}
		if c.hasMinor {
			return v.Minor == c.minor
		}
		return true
	case kindComparator:
		switch c.cmp {
		case cmpEQ:
			return version.Equal(v, c.v)
		case cmpGT:
			return version.Less(c.v, v)
		case cmpGE:
			return !version.Less(v, c.v)
		case cmpLT:
			return version.Less(v, c.v)
		case cmpLE:
			return !version.Less(c.v, v)
		case cmpTilde:
			upper := version.Version{Major: c.v.Major, Minor: c.v.Minor, Patch: 999}
			return !version.Less(v, c.v) && !version.Less(upper, v)
		case cmpCaret:
			upper := version.Version{Major: c.v.Major, Minor: 999, Patch: 999}
			return !version.Less(v, c.v) && !version.Less(upper, v)
		}
	}
	return false
}

// Format renders e back to its canonical textual form, such that
// Parse(Format(e)) == e for every Expr produced by Parse.
func Format(e Expr) string {
	parts := make([]string, len(e.clauses))
	for i, c := range e.clauses {
		parts[i] = formatClause(c)
	}
	return strings.Join(parts, "||")
}

func formatClause(c clause) string {
	switch c.kind {
	case kindRange:
		return fmt.Sprintf("%s-%s", c.lo.Format(), c.hi.Format())
	case kindWildcard:
		if c.hasMinor {
			return fmt.Sprintf("%d.%d.x", c.major, c.minor)
		}
		return fmt.Sprintf("%d.x", c.major)
	case kindComparator:
		return string(c.cmp) + c.v.Format()
	}
	return ""
}

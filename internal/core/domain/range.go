package domain

import (
	"strings"

	"github.com/Masterminds/semver/v3"
	"go.trai.ch/zerr"
)

// RangeKind classifies a version range expression.
type RangeKind uint8

const (
	// RangeSemver is a parseable semver constraint (exact, caret, tilde, comparator).
	RangeSemver RangeKind = iota
	// RangeTag is a distribution tag such as "latest".
	RangeTag
	// RangeWorkspace is the "workspace:*" protocol binding a name to a local package.
	RangeWorkspace
)

const workspacePrefix = "workspace:"

// Range is a parsed version range expression from a manifest or a registry
// dependency list.
type Range struct {
	raw  string
	kind RangeKind

	constraint *semver.Constraints
	tag        string
}

// ParseRange parses a range expression. Expressions that are neither a
// workspace protocol nor a valid semver constraint are treated as dist-tags,
// matching registry behavior where "latest" or "next" select a tagged version.
func ParseRange(expr string) (Range, error) {
	trimmed := strings.TrimSpace(expr)
	if trimmed == "" {
		trimmed = "latest"
	}

	if strings.HasPrefix(trimmed, workspacePrefix) {
		return Range{raw: trimmed, kind: RangeWorkspace}, nil
	}

	if c, err := semver.NewConstraint(trimmed); err == nil {
		return Range{raw: trimmed, kind: RangeSemver, constraint: c}, nil
	}

	// Dist-tags are plain identifiers. Anything with comparator characters
	// was meant as a constraint and failed to parse.
	if strings.ContainsAny(trimmed, "<>=~^* ") {
		return Range{}, zerr.With(zerr.Wrap(ErrInvalidRange, "not a constraint, tag or workspace protocol"), "range", trimmed)
	}

	return Range{raw: trimmed, kind: RangeTag, tag: trimmed}, nil
}

// MustParseRange is a test helper that panics on parse failure.
func MustParseRange(expr string) Range {
	r, err := ParseRange(expr)
	if err != nil {
		panic(err)
	}
	return r
}

// Kind returns the range classification.
func (r Range) Kind() RangeKind { return r.kind }

// Tag returns the dist-tag name for RangeTag ranges.
func (r Range) Tag() string { return r.tag }

// String returns the original expression.
func (r Range) String() string { return r.raw }

// Satisfies reports whether the concrete version matches the range.
// Tag ranges match any version (selection happens via registry metadata);
// workspace ranges match nothing from the registry.
func (r Range) Satisfies(v *semver.Version) bool {
	switch r.kind {
	case RangeSemver:
		return r.constraint.Check(v)
	case RangeTag:
		return true
	default:
		return false
	}
}

// SatisfiesVersion parses the version string and checks it against the range.
// Unparseable versions never satisfy a semver range.
func (r Range) SatisfiesVersion(version string) bool {
	v, err := semver.NewVersion(version)
	if err != nil {
		return r.kind == RangeTag
	}
	return r.Satisfies(v)
}

package depresolve

import (
	"strings"

	mm "github.com/Masterminds/semver/v3"
)

// A VersionSelector decides whether a candidate version string satisfies one half (preferred or
// rejected) of a [VersionConstraint]. This package provides [ExactVersionSelector],
// [RangeVersionSelector] and [LatestVersionSelector].
type VersionSelector interface {
	// Accept reports whether version satisfies this selector.
	Accept(version string) bool

	// RequiresMetadata reports whether deciding Accept for some version requires fetching that
	// version's component metadata first (true for selectors that inspect, e.g., a "latest"
	// pointer resolved from the repository rather than the version string alone).
	RequiresMetadata() bool

	// CanShortCircuitWhenVersionAlreadyPreselected reports whether a version already selected for
	// the module may be reused for this selector without a fresh resolution.
	CanShortCircuitWhenVersionAlreadyPreselected() bool
}

// ExactVersionSelector accepts exactly one version string, compared byte-for-byte.
type ExactVersionSelector struct {
	Version string
}

func (s ExactVersionSelector) Accept(version string) bool { return version == s.Version }
func (ExactVersionSelector) RequiresMetadata() bool        { return false }
func (ExactVersionSelector) CanShortCircuitWhenVersionAlreadyPreselected() bool {
	return true
}

// RangeVersionSelector accepts any version satisfying a Masterminds/semver/v3 constraint
// expression, e.g. ">=1.2.0, <2.0.0" or "^1.4". Versions that fail to parse as semver are rejected.
type RangeVersionSelector struct {
	constraint *mm.Constraints
	raw        string
}

// NewRangeVersionSelector parses expr as a Masterminds/semver/v3 constraint.
func NewRangeVersionSelector(expr string) (RangeVersionSelector, error) {
	c, err := mm.NewConstraint(expr)
	if err != nil {
		return RangeVersionSelector{}, err
	}
	return RangeVersionSelector{constraint: c, raw: expr}, nil
}

func (s RangeVersionSelector) Accept(version string) bool {
	v, err := mm.NewVersion(version)
	if err != nil {
		return false
	}
	return s.constraint.Check(v)
}

func (RangeVersionSelector) RequiresMetadata() bool { return false }
func (RangeVersionSelector) CanShortCircuitWhenVersionAlreadyPreselected() bool {
	return true
}

func (s RangeVersionSelector) String() string { return s.raw }

// LatestVersionSelector stands for whatever version the repository reports as latest. Its Accept
// matches only the literal version string "latest" (case-insensitively); mapping it to a concrete
// version is left to the [IdResolver], which can tell it apart by RequiresMetadata. It always
// requires metadata and, because "latest" can change between resolutions, never short-circuits.
type LatestVersionSelector struct{}

func (LatestVersionSelector) Accept(version string) bool {
	return strings.EqualFold(version, "latest")
}
func (LatestVersionSelector) RequiresMetadata() bool { return true }
func (LatestVersionSelector) CanShortCircuitWhenVersionAlreadyPreselected() bool {
	return false
}

// CompareVersions orders two version strings, used to pick a module's "ordered set of known
// versions" and by [HighestVersionResolver]. Versions that parse as Masterminds/semver/v3 versions
// are compared numerically; otherwise the comparison falls back to a plain string comparison so
// that non-semver version schemes still produce a total, if arbitrary, order.
func CompareVersions(a, b string) int {
	av, aerr := mm.NewVersion(a)
	bv, berr := mm.NewVersion(b)
	if aerr == nil && berr == nil {
		return av.Compare(bv)
	}
	return strings.Compare(a, b)
}

package depresolve

// A VersionConstraint is the immutable version half of a selector declaration: a preferred
// selector (which may accept a candidate version, and may short-circuit), an optional rejected
// selector (which invalidates a selection that accepts it), and the "require/strictly/force" flags
// described in the data model.
type VersionConstraint struct {
	// Preferred is consulted when choosing or confirming a selection. May be nil, in which case
	// selectorAgreesWith never keeps the current pick on this constraint's behalf, while
	// allSelectorsAgreeWith counts this constraint as agreeing with any candidate.
	Preferred VersionSelector

	// Rejected, if non-nil, marks a component whose version it accepts as rejected once selected.
	Rejected VersionSelector

	// Require is true for an ordinary "must be at least this version" declaration.
	Require bool

	// Strictly is true when the declaration additionally forbids any version other than exactly
	// what Preferred accepts, even if a looser constraint elsewhere would otherwise win.
	Strictly bool

	// Force is true when this single selector's resolution must collapse the module's entire
	// resolved set to just this component.
	Force bool
}

// NewRequireConstraint builds the common case: an ordinary "require at least this version"
// constraint with no rejection.
func NewRequireConstraint(preferred VersionSelector) VersionConstraint {
	return VersionConstraint{Preferred: preferred, Require: true}
}

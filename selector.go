package depresolve

import "context"

// A SelectorState is one declared dependency's selector half: the target module plus the
// [VersionConstraint] that edge declared, together with whatever an [IdResolver] has resolved it
// to so far. A selector whose preferred version selector can short-circuit reuses a resolution
// already cached for another selector of the same module when it accepts that resolution's
// version (the short-circuit rule), via [SelectorStateResolverResults].
type SelectorState struct {
	owner      *ModuleResolveState
	constraint VersionConstraint

	resolved   bool
	result     IdResolveResult
	selectedBy *ComponentState
}

func newSelectorState(owner *ModuleResolveState, constraint VersionConstraint) *SelectorState {
	return &SelectorState{owner: owner, constraint: constraint}
}

func (s *SelectorState) String() string { return s.owner.id.String() }

// TargetModule returns the module this selector declares a dependency on.
func (s *SelectorState) TargetModule() *ModuleResolveState { return s.owner }

// Constraint returns the declared version constraint.
func (s *SelectorState) Constraint() VersionConstraint { return s.constraint }

// IsForce reports whether this selector's constraint forces its module to the exact resolution
// this selector produces.
func (s *SelectorState) IsForce() bool { return s.constraint.Force }

// Accepts reports whether this selector's preferred version selector accepts version. It does not
// consult the reject rule; see [SelectorState.Rejects]. A nil preferred selector never accepts
// anything.
func (s *SelectorState) Accepts(version string) bool {
	if s.constraint.Preferred == nil {
		return false
	}
	return s.constraint.Preferred.Accept(version)
}

// Rejects reports whether this selector's reject rule matches version.
func (s *SelectorState) Rejects(version string) bool {
	if s.constraint.Rejected == nil {
		return false
	}
	return s.constraint.Rejected.Accept(version)
}

// CanShortCircuit reports whether this selector's preferred version selector permits reusing an
// already-selected version for its module without a fresh resolver call.
func (s *SelectorState) CanShortCircuit() bool {
	return s.constraint.Preferred != nil && s.constraint.Preferred.CanShortCircuitWhenVersionAlreadyPreselected()
}

// Resolve resolves this selector to a concrete component id, consulting cache first so that a
// selector whose preferred version selector can short-circuit onto an already-resolved compatible
// version never reaches the external resolver at all.
func (s *SelectorState) Resolve(ctx context.Context, resolver IdResolver, cache *SelectorStateResolverResults) IdResolveResult {
	if s.resolved {
		return s.result
	}
	if cached, ok := cache.AlreadyHaveResolution(s); ok {
		cache.RegisterResolution(s, cached)
		s.result = cached
		s.resolved = true
		return cached
	}
	result := resolver.Resolve(ctx, s)
	cache.recordExternalCall()
	cache.RegisterResolution(s, result)
	s.result = result
	s.resolved = true
	return result
}

// Select records the component this selector currently resolves to, for [ComponentState]'s
// selectedBy bookkeeping.
func (s *SelectorState) Select(c *ComponentState) {
	if s.selectedBy == c {
		return
	}
	if s.selectedBy != nil {
		s.selectedBy.removeSelector(s)
	}
	s.selectedBy = c
	if c != nil {
		c.addSelector(s)
	}
}

// SelectedComponent returns the component this selector is currently counted against, or nil.
func (s *SelectorState) SelectedComponent() *ComponentState { return s.selectedBy }

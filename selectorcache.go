package depresolve

// SelectorStateResolverResults is the cross-edge resolution cache, grounded verbatim on
// SelectorStateResolverResults.java's alreadyHaveResolution/registerResolution pair. Unlike a plain
// memo keyed by constraint shape, it propagates a newer compatible result to older cached selectors
// too, so that a later, more specific selector can still benefit earlier ones once it resolves.
// Results are only ever shared between selectors that target the same module.
type SelectorStateResolverResults struct {
	order      []*SelectorState
	results    map[*SelectorState]IdResolveResult
	totalCalls int
}

// NewSelectorStateResolverResults constructs an empty cache, one per resolution.
func NewSelectorStateResolverResults() *SelectorStateResolverResults {
	return &SelectorStateResolverResults{results: map[*SelectorState]IdResolveResult{}}
}

// AlreadyHaveResolution scans existing results for one whose succeeded version dep's preferred
// selector accepts, provided dep can short-circuit onto an already-picked version. It returns that
// result and true without touching the external resolver.
func (c *SelectorStateResolverResults) AlreadyHaveResolution(dep *SelectorState) (IdResolveResult, bool) {
	if !dep.CanShortCircuit() {
		return IdResolveResult{}, false
	}
	for _, s := range c.order {
		if s.TargetModule() != dep.TargetModule() {
			continue
		}
		res, ok := c.results[s]
		if !ok || res.Failure != nil {
			continue
		}
		if dep.Accepts(res.MVI.Version) {
			return res, true
		}
	}
	return IdResolveResult{}, false
}

// RegisterResolution records result as dep's resolution and, if it succeeded, overwrites any
// previously cached selector whose preferred selector would also accept this version — the same
// short-circuit rule applied retroactively, propagating a newer compatible result to older
// selectors.
func (c *SelectorStateResolverResults) RegisterResolution(dep *SelectorState, result IdResolveResult) {
	if _, exists := c.results[dep]; !exists {
		c.order = append(c.order, dep)
	}
	c.results[dep] = result
	if result.Failure != nil {
		return
	}
	for _, s := range c.order {
		if s == dep || s.TargetModule() != dep.TargetModule() {
			continue
		}
		if s.CanShortCircuit() && s.Accepts(result.MVI.Version) {
			c.results[s] = result
		}
	}
}

func (c *SelectorStateResolverResults) recordExternalCall() { c.totalCalls++ }

// TotalResolutions returns how many times the external [IdResolver] was actually invoked through
// this cache, useful for asserting that short-circuiting selectors cause zero additional
// resolutions.
func (c *SelectorStateResolverResults) TotalResolutions() int { return c.totalCalls }

// GetResolved folds every selector's cached result into the set of distinct components it resolved
// to, using intern to turn a raw result into an interned [ComponentState]. If any registered
// selector's constraint is forced, only that selector's component is returned (the force
// short-circuit). A failed result anywhere propagates verbatim.
func (c *SelectorStateResolverResults) GetResolved(intern func(IdResolveResult) *ComponentState) ([]*ComponentState, error) {
	var forced *ComponentState
	seen := map[ComponentID]*ComponentState{}
	var out []*ComponentState
	for _, s := range c.order {
		res, ok := c.results[s]
		if !ok {
			continue
		}
		if res.Failure != nil {
			return nil, res.Failure
		}
		comp := intern(res)
		if s.IsForce() {
			forced = comp
		}
		if _, dup := seen[comp.ID()]; !dup {
			seen[comp.ID()] = comp
			out = append(out, comp)
		}
	}
	if forced != nil {
		return []*ComponentState{forced}, nil
	}
	return out, nil
}

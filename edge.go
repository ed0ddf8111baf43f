package depresolve

// An EdgeState is one declared dependency from a node to a selector, and, once resolved, to the
// one or more configurations of the target component that dependency attaches to.
type EdgeState struct {
	from     *NodeState
	selector *SelectorState
	decl     DependencyDeclaration

	filtered bool // dropped by an EdgeFilter before ever being resolved

	target     *ComponentState // set by SetTarget during the serial-selection phase
	attachedTo *ComponentState // the target AttachToTargetConfigurations last ran against
	targets    []*NodeState     // configurations of attachedTo this edge is currently attached to

	failure error
}

func newEdgeState(from *NodeState, selector *SelectorState, decl DependencyDeclaration) *EdgeState {
	return &EdgeState{from: from, selector: selector, decl: decl}
}

func (e *EdgeState) String() string { return e.decl.Target.String() }

// From returns the node this dependency was declared on.
func (e *EdgeState) From() *NodeState { return e.from }

// Selector returns the selector this edge resolves through.
func (e *EdgeState) Selector() *SelectorState { return e.selector }

// Declaration returns the as-declared dependency, after any substitution the traversal already
// applied when the edge was constructed. Module replacement is not reflected here.
func (e *EdgeState) Declaration() DependencyDeclaration { return e.decl }

// IsFiltered reports whether an [EdgeFilter] dropped this edge before resolution.
func (e *EdgeState) IsFiltered() bool { return e.filtered }

func (e *EdgeState) setFiltered() { e.filtered = true }

// Failure returns the non-fatal failure recorded against this edge, if any.
func (e *EdgeState) Failure() error { return e.failure }

func (e *EdgeState) setFailure(err error) { e.failure = err }

// TargetComponent returns the component this edge currently points at, or nil if selection has not
// yet run (or failed) for it.
func (e *EdgeState) TargetComponent() *ComponentState { return e.target }

// SetTarget points this edge at target. Calling it repeatedly with the same target is a cheap
// no-op; it never itself creates nodes or touches the [AttributeMatcher] — that happens in the
// later, separate [EdgeState.AttachToTargetConfigurations] call. Being a pure pointer assignment,
// SetTarget is always safe to call from performSelection before conflict resolution has had a
// chance to decide the edge should really point elsewhere, since a later restart can always call
// it again with the winning target and rely on [EdgeState.AttachToTargetConfigurations]'s own
// idempotent no-op guard.
func (e *EdgeState) SetTarget(target *ComponentState) { e.target = target }

// TargetNodes returns the configurations of the current target this edge is attached to, in
// attachment order. Empty until [EdgeState.AttachToTargetConfigurations] has run at least once
// since the current target was set.
func (e *EdgeState) TargetNodes() []*NodeState {
	out := make([]*NodeState, len(e.targets))
	copy(out, e.targets)
	return out
}

// AttachToTargetConfigurations is the serial-attachment step of resolveEdges: it asks matcher
// which configurations of e.target this dependency should attach to, creates
// any NodeState that does not exist yet, and records this edge as incoming on each. Calling it
// again while the target has not changed since the last call is a no-op; calling it after the
// target changed first detaches from whatever configurations it was previously attached to,
// cascading a deselect to any node left with no remaining incoming edges.
func (e *EdgeState) AttachToTargetConfigurations(matcher AttributeMatcher) ([]*NodeState, error) {
	if e.filtered || e.failure != nil {
		return nil, nil
	}
	if e.attachedTo == e.target {
		return nil, nil
	}
	e.detachFromTarget()
	if e.target == nil {
		return nil, nil
	}

	configs, err := matcher.MatchConfigurations(e, e.target)
	if err != nil {
		e.setFailure(err)
		return nil, err
	}

	var newlySelected []*NodeState
	for _, cd := range configs {
		node := findOrCreateNode(e.target, cd)
		node.addIncoming(e)
		e.targets = append(e.targets, node)
		if !node.selected {
			node.selected = true
			newlySelected = append(newlySelected, node)
		}
	}
	e.attachedTo = e.target
	return newlySelected, nil
}

// detachFromTarget removes this edge from every configuration it is currently attached to, and
// cascades a deselect to any node left with no remaining incoming edges.
func (e *EdgeState) detachFromTarget() {
	targets := e.targets
	e.targets = nil
	e.attachedTo = nil
	for _, node := range targets {
		node.removeIncoming(e)
		if len(node.incoming) == 0 && !node.Component().IsRoot() {
			node.deselect()
		}
	}
}

// findOrCreateNode returns the existing NodeState for (component, config), creating one if this is
// the first edge to attach to that configuration.
func findOrCreateNode(component *ComponentState, cd ConfigurationDescriptor) *NodeState {
	for _, n := range component.Nodes() {
		if n.config == cd {
			return n
		}
	}
	node := newNodeState(component.owner.resolveState.nextNodeID(), component, cd)
	component.addNode(node)
	return node
}

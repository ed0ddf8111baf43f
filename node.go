package depresolve

import "sort"

// A NodeState is one configuration (variant) of a component that participates in the graph. A
// component that is never depended on from more than one configuration typically has exactly one
// NodeState; a component with several requested configurations has one NodeState per
// configuration actually reached.
type NodeState struct {
	id int

	owner  *ComponentState
	config ConfigurationDescriptor

	// incoming is kept in attachment order so that assembleResult's edge-visit order is
	// deterministic across repeated runs against the same frozen resolvers.
	incoming []*EdgeState

	// outgoing is populated in declaration order each time the traversal visits this node; a node
	// that is deselected and later selected again is visited again and gets a fresh set.
	outgoing      []*EdgeState
	outgoingBuilt bool

	selected bool
	queued   bool
}

func newNodeState(id int, owner *ComponentState, config ConfigurationDescriptor) *NodeState {
	return &NodeState{id: id, owner: owner, config: config}
}

func (n *NodeState) String() string { return n.owner.String() }

// ID returns this node's stable arena id, used to break ties deterministically and as a map key
// where a pointer would otherwise do, per the design notes' "stable integer ids" guidance.
func (n *NodeState) ID() int { return n.id }

// Component returns the component this node is a configuration of.
func (n *NodeState) Component() *ComponentState { return n.owner }

// Configuration returns the opaque configuration descriptor this node represents.
func (n *NodeState) Configuration() ConfigurationDescriptor { return n.config }

// IsSelected reports whether this node's owning component is currently selected for its module and
// this node has not been pruned by a cascading deselect.
func (n *NodeState) IsSelected() bool { return n.selected }

func (n *NodeState) addIncoming(e *EdgeState) { n.incoming = append(n.incoming, e) }

func (n *NodeState) removeIncoming(e *EdgeState) {
	for i, x := range n.incoming {
		if x == e {
			n.incoming = append(n.incoming[:i], n.incoming[i+1:]...)
			return
		}
	}
}

// IncomingEdges returns the edges currently attached to this node, in attachment order.
func (n *NodeState) IncomingEdges() []*EdgeState {
	out := make([]*EdgeState, len(n.incoming))
	copy(out, n.incoming)
	return out
}

// OutgoingEdges returns this node's declared dependency edges as last set by the traversal's
// visit of this node (empty before that visit). Order matches declaration order.
func (n *NodeState) OutgoingEdges() []*EdgeState {
	out := make([]*EdgeState, len(n.outgoing))
	copy(out, n.outgoing)
	return out
}

// setOutgoing is called by the traversal's dependency-enumeration step each time it visits the
// node, to populate the node's declared outgoing edges from its component's metadata.
func (n *NodeState) setOutgoing(edges []*EdgeState) {
	n.outgoing = edges
	n.outgoingBuilt = true
}

func (n *NodeState) outgoingReady() bool { return n.outgoingBuilt }

// declaredDependencies reads this node's raw dependency declarations straight off its component's
// resolved metadata, with no substitution, filtering, or pending-dep gating applied yet. Metadata
// that does not implement [DependencyDeclaring] is treated as a leaf.
func (n *NodeState) declaredDependencies() []DependencyDeclaration {
	declaring, ok := n.owner.Metadata().(DependencyDeclaring)
	if !ok {
		return nil
	}
	return declaring.Dependencies(n.config)
}

// declaredCapabilities reads this node's declared capabilities straight off its component's
// resolved metadata.
func (n *NodeState) declaredCapabilities() []Capability {
	declaring, ok := n.owner.Metadata().(DependencyDeclaring)
	if !ok {
		return nil
	}
	return declaring.Capabilities(n.config)
}

// deselect marks this node unselected and detaches it from every edge it was the target of,
// cascading the detachment to any downstream node left with no remaining incoming edges. This is
// the "prune configurations no longer required" half of a module restart (getDeselectVersionAction)
// and of plain graph pruning when an edge is removed outright.
func (n *NodeState) deselect() {
	if !n.selected {
		return
	}
	n.selected = false
	for _, e := range n.outgoing {
		e.detachFromTarget()
	}
}

// sortNodesByID returns nodes sorted by arena id, for iteration that must be deterministic where
// insertion order was not already tracked (e.g. a freshly cloned mapset.Set). No caller in this
// package uses it; [ComponentState.Nodes] sorts its own result inline.
func sortNodesByID(nodes []*NodeState) []*NodeState {
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].id < nodes[j].id })
	return nodes
}
